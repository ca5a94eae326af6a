package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mlagent/internal/config"
	"mlagent/internal/dataset"
	"mlagent/internal/engine"
	"mlagent/internal/exttools"
	"mlagent/internal/playbook"
	"mlagent/internal/provider"
	"mlagent/internal/storage"
)

var version = "dev"

var (
	configPath string
	modelFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "mlagent",
	Short: "Agentic ML engineer: datasets in, executed pipelines and notebooks out",
	Long: `mlagent turns a natural-language analysis goal into an executed ML
pipeline: it resolves datasets, drives a model through a bounded
generate/execute loop against a persistent Python sandbox, and writes
plots, a notebook, and a transcript per run.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default $MLAGENT_HOME/config.json)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "override the configured model")
	rootCmd.AddCommand(runCmd, chatCmd, serveCmd, mcpCmd, datasetsCmd, runsCmd, playbooksCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if modelFlag != "" {
		cfg.Provider.Model = modelFlag
	}
	if err := cfg.EnsureDirs(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newResolver(cfg config.Config) (*dataset.Resolver, error) {
	return dataset.NewResolver(cfg.Paths.DatasetsDir, cfg.Paths.CatalogPath)
}

func newProvider(cfg config.Config) *provider.OpenAIProvider {
	return provider.NewOpenAIProvider(provider.OpenAIConfig{
		BaseURL:    cfg.Provider.BaseURL,
		APIKey:     cfg.Provider.APIKey,
		Model:      cfg.Provider.Model,
		TimeoutMS:  cfg.Provider.TimeoutMS,
		MaxRetries: cfg.Provider.MaxRetries,
	})
}

// newRunner wires the full pipeline. The returned store must be closed by
// the caller.
func newRunner(cfg config.Config) (*engine.Runner, *storage.SQLiteStore, error) {
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewSQLiteStore(cfg.Paths.DBPath)
	if err != nil {
		return nil, nil, err
	}
	playbooks, err := loadPlaybooks(cfg, nil)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	ext := exttools.NewManager(cfg.Tools)
	ext.StartEnabled(context.Background())

	return &engine.Runner{
		Provider: newProvider(cfg),
		Resolver: resolver,
		Store:    store,
		Extra:    ext.Tools(),
		Playbook: playbooks,
		Config:   &cfg,
	}, store, nil
}

// loadPlaybooks loads the configured playbook bodies plus any extra names
// requested on the command line.
func loadPlaybooks(cfg config.Config, extra []string) ([]string, error) {
	names := append(append([]string(nil), cfg.Agent.Playbooks...), extra...)
	if len(names) == 0 {
		return nil, nil
	}
	mgr, err := playbook.Discover([]string{cfg.Paths.PlaybooksDir})
	if err != nil {
		return nil, err
	}
	var bodies []string
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		body, err := mgr.Load(name)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, body)
	}
	return bodies, nil
}
