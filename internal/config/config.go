package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProviderConfig configures the model backend (OpenAI-compatible).
type ProviderConfig struct {
	BaseURL    string `json:"base_url"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	TimeoutMS  int    `json:"timeout_ms"`
	MaxRetries int    `json:"max_retries"`
}

// AgentConfig bounds a single agent run.
type AgentConfig struct {
	MaxIterations  int      `json:"max_iterations"`
	ExecTimeoutSec int      `json:"exec_timeout_seconds"`
	PlanningMode   bool     `json:"planning_mode"`
	Playbooks      []string `json:"playbooks"`
}

// SandboxConfig configures the python worker.
type SandboxConfig struct {
	PythonBin        string `json:"python_bin"`
	OutputLimitBytes int    `json:"output_limit_bytes"`
}

// ExternalToolConfig describes one external tool server: a subprocess that
// answers line-delimited JSON requests on stdio.
type ExternalToolConfig struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Command     []string          `json:"command"`
	Environment map[string]string `json:"environment"`
	Enabled     bool              `json:"enabled"`
	TimeoutMS   int               `json:"timeout_ms"`
}

// ToolsConfig extends the built-in tool set.
type ToolsConfig struct {
	External []ExternalToolConfig `json:"external"`
}

// PathsConfig holds the on-disk layout.
type PathsConfig struct {
	DatasetsDir  string `json:"datasets_dir"`
	ArtifactsDir string `json:"artifacts_dir"`
	RunsDir      string `json:"runs_dir"`
	PlaybooksDir string `json:"playbooks_dir"`
	CatalogPath  string `json:"catalog_path"`
	DBPath       string `json:"db_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// Config 顶层配置：JSON 文件 + 环境变量覆盖
// Config is the top-level configuration: JSON file + env overrides.
type Config struct {
	Provider ProviderConfig `json:"provider"`
	Agent    AgentConfig    `json:"agent"`
	Sandbox  SandboxConfig  `json:"sandbox"`
	Tools    ToolsConfig    `json:"tools"`
	Paths    PathsConfig    `json:"paths"`
	Server   ServerConfig   `json:"server"`
}

// Load reads the config file at path (optional) and applies defaults and
// environment overrides. A missing explicit path is an error; a missing
// default path is not.
func Load(path string) (Config, error) {
	cfg := defaults()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = filepath.Join(baseDir(), "config.json")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// defaults only
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	fillZero(&cfg)
	return cfg, nil
}

func baseDir() string {
	if dir := strings.TrimSpace(os.Getenv("MLAGENT_HOME")); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mlagent"
	}
	return filepath.Join(home, ".mlagent")
}

func defaults() Config {
	base := baseDir()
	return Config{
		Provider: ProviderConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-5",
			TimeoutMS:  600_000,
			MaxRetries: 3,
		},
		Agent: AgentConfig{
			MaxIterations:  15,
			ExecTimeoutSec: 60,
			PlanningMode:   true,
		},
		Sandbox: SandboxConfig{
			PythonBin:        "python3",
			OutputLimitBytes: 1 << 20,
		},
		Paths: PathsConfig{
			DatasetsDir:  filepath.Join(base, "datasets"),
			ArtifactsDir: filepath.Join(base, "artifacts"),
			RunsDir:      filepath.Join(base, "runs"),
			PlaybooksDir: filepath.Join(base, "playbooks"),
			CatalogPath:  filepath.Join(base, "catalog.yaml"),
			DBPath:       filepath.Join(base, "mlagent.db"),
		},
		Server: ServerConfig{Addr: "127.0.0.1:8787"},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("MLAGENT_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("MLAGENT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxIterations = n
		}
	}
	if v := os.Getenv("MLAGENT_EXEC_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.ExecTimeoutSec = n
		}
	}
	if v := os.Getenv("MLAGENT_PYTHON"); v != "" {
		cfg.Sandbox.PythonBin = v
	}
	if v := os.Getenv("MLAGENT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// fillZero restores defaults for fields a config file may have blanked.
func fillZero(cfg *Config) {
	def := defaults()
	if strings.TrimSpace(cfg.Provider.BaseURL) == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	if strings.TrimSpace(cfg.Provider.Model) == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.MaxRetries <= 0 {
		cfg.Provider.MaxRetries = def.Provider.MaxRetries
	}
	if cfg.Agent.MaxIterations <= 0 {
		cfg.Agent.MaxIterations = def.Agent.MaxIterations
	}
	if cfg.Agent.ExecTimeoutSec <= 0 {
		cfg.Agent.ExecTimeoutSec = def.Agent.ExecTimeoutSec
	}
	if strings.TrimSpace(cfg.Sandbox.PythonBin) == "" {
		cfg.Sandbox.PythonBin = def.Sandbox.PythonBin
	}
	if cfg.Sandbox.OutputLimitBytes <= 0 {
		cfg.Sandbox.OutputLimitBytes = def.Sandbox.OutputLimitBytes
	}
	for p, d := range map[*string]string{
		&cfg.Paths.DatasetsDir:  def.Paths.DatasetsDir,
		&cfg.Paths.ArtifactsDir: def.Paths.ArtifactsDir,
		&cfg.Paths.RunsDir:      def.Paths.RunsDir,
		&cfg.Paths.PlaybooksDir: def.Paths.PlaybooksDir,
		&cfg.Paths.CatalogPath:  def.Paths.CatalogPath,
		&cfg.Paths.DBPath:       def.Paths.DBPath,
	} {
		if strings.TrimSpace(*p) == "" {
			*p = d
		}
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = def.Server.Addr
	}
}

// EnsureDirs creates the artifact/run/dataset directories if missing.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.DatasetsDir, c.Paths.ArtifactsDir, c.Paths.RunsDir, filepath.Dir(c.Paths.DBPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}
