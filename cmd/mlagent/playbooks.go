package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mlagent/internal/playbook"
)

var playbooksCmd = &cobra.Command{
	Use:   "playbooks",
	Short: "List available analysis playbooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mgr, err := playbook.Discover([]string{cfg.Paths.PlaybooksDir})
		if err != nil {
			return err
		}
		for _, info := range mgr.List() {
			fmt.Printf("%-16s %s\n", info.Name, info.Description)
		}
		return nil
	},
}

var playbooksShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print one playbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mgr, err := playbook.Discover([]string{cfg.Paths.PlaybooksDir})
		if err != nil {
			return err
		}
		body, err := mgr.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderMarkdown(body))
		return nil
	},
}

func init() {
	playbooksCmd.AddCommand(playbooksShowCmd)
}
