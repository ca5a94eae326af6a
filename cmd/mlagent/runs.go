package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mlagent/internal/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := storage.NewSQLiteStore(cfg.Paths.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs yet")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%-40s %-10s %2d iter  %s\n", r.ID, r.Status, r.Iterations, r.Goal)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run's solution and execution records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := storage.NewSQLiteStore(cfg.Paths.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		meta, err := store.LoadRun(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Run: %s (%s)\nDataset: %s\nModel: %s\nGoal: %s\n\n",
			meta.ID, meta.Status, meta.Dataset, meta.Model, meta.Goal)
		fmt.Println(renderMarkdown(meta.Solution))

		records, err := store.LoadRecords(meta.ID)
		if err != nil {
			return err
		}
		for _, rec := range records {
			status := "ok"
			if !rec.Success {
				status = "error"
			}
			fmt.Printf("\n[%d] %s (%dms, %d figures)\n%s\n", rec.Index, status, rec.DurationMS, rec.Figures, rec.Code)
			if rec.Error != "" {
				fmt.Printf("-> %s\n", rec.Error)
			}
		}
		if meta.ArtifactsDir != "" {
			fmt.Printf("\nartifacts: %s\n", meta.ArtifactsDir)
		}
		return nil
	},
}

func init() {
	runsCmd.AddCommand(runsShowCmd)
}
