package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mlagent/internal/dataset"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List available datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		resolver, err := newResolver(cfg)
		if err != nil {
			return err
		}
		entries := resolver.ListAvailable()
		if len(entries) == 0 {
			fmt.Printf("no datasets found in %s\n", cfg.Paths.DatasetsDir)
			return nil
		}
		for _, e := range entries {
			marker := ""
			if e.Builtin {
				marker = " (catalog)"
			}
			fmt.Printf("%-24s %8s%s  %s\n", e.Name, humanSize(e.Size), marker, e.Path)
		}
		return nil
	},
}

var datasetsInfoCmd = &cobra.Command{
	Use:   "info [identifier]",
	Short: "Show a dataset summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		resolver, err := newResolver(cfg)
		if err != nil {
			return err
		}
		path, err := resolver.Resolve(args[0])
		if err != nil {
			return err
		}
		table, err := dataset.LoadTable(path)
		if err != nil {
			return err
		}
		fmt.Print(table.Describe())
		return nil
	},
}

func init() {
	datasetsCmd.AddCommand(datasetsInfoCmd)
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
