// Package config loads and validates the chartbridge service
// configuration from a TOML file. Secrets (the generator API key) are
// taken from the environment; a .env file is honored when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// SessionsConfig holds session registry related configuration.
type SessionsConfig struct {
	SampleTimeout    string `toml:"sample_timeout"`    // wait window for a fresh data sample
	SendBuffer       int    `toml:"send_buffer"`       // per-connection outbound queue depth
	IdleEviction     string `toml:"idle_eviction"`     // idle time before an empty session is reaped
	EvictionInterval string `toml:"eviction_interval"` // how often the janitor runs
}

// GetSampleTimeout returns the sample wait window as a duration.
func (s *SessionsConfig) GetSampleTimeout() (time.Duration, error) {
	return time.ParseDuration(s.SampleTimeout)
}

// GetSampleTimeoutOrDefault returns the sample wait window, panicking
// on an invalid value. Config validation catches that earlier.
func (s *SessionsConfig) GetSampleTimeoutOrDefault() time.Duration {
	d, err := s.GetSampleTimeout()
	if err != nil {
		panic(fmt.Sprintf("invalid sample timeout: %v", err))
	}
	return d
}

// GetIdleEviction returns the session idle eviction TTL as a duration.
func (s *SessionsConfig) GetIdleEviction() (time.Duration, error) {
	return time.ParseDuration(s.IdleEviction)
}

// GetEvictionInterval returns the janitor interval as a duration.
func (s *SessionsConfig) GetEvictionInterval() (time.Duration, error) {
	return time.ParseDuration(s.EvictionInterval)
}

// GeneratorConfig holds chart generator related configuration.
type GeneratorConfig struct {
	Model       string `toml:"model"`        // model name passed to the completions API
	APIKeyEnv   string `toml:"api_key_env"`  // environment variable holding the API key
	BaseURL     string `toml:"base_url"`     // optional API base URL override
	MaxAttempts uint   `toml:"max_attempts"` // retry attempts for the generator call
	CallTimeout string `toml:"call_timeout"` // per-call deadline
}

// GetAPIKey returns the generator API key from the environment.
func (g *GeneratorConfig) GetAPIKey() string {
	return os.Getenv(g.APIKeyEnv)
}

// GetCallTimeout returns the generator call deadline as a duration.
func (g *GeneratorConfig) GetCallTimeout() (time.Duration, error) {
	return time.ParseDuration(g.CallTimeout)
}

// ExportConfig holds component export related configuration.
type ExportConfig struct {
	Enabled         bool     `toml:"enabled"`          // whether the export endpoints are mounted
	ScaffoldCommand []string `toml:"scaffold_command"` // command that scaffolds a component project
	BuildCommand    []string `toml:"build_command"`    // command that builds the scaffolded project
	DownloadsDir    string   `toml:"downloads_dir"`    // where built artifacts are published
	StepTimeout     string   `toml:"step_timeout"`     // deadline for each external step
}

// GetStepTimeout returns the per-step deadline as a duration.
func (e *ExportConfig) GetStepTimeout() (time.Duration, error) {
	return time.ParseDuration(e.StepTimeout)
}

// ConfigParam holds all configuration parameters for the service.
type ConfigParam struct {
	FormatVersion string `toml:"format_version"` // version of this configuration file format

	ServerHostName string `toml:"server_hostname"` // hostname the server advertises
	ServerPort     string `toml:"server_port"`     // port for the server
	HandleCORS     bool   `toml:"handle_cors"`     // whether to handle CORS
	WorkingDir     string `toml:"working_dir"`     // working directory for the server

	Sessions  SessionsConfig  `toml:"sessions"`
	Generator GeneratorConfig `toml:"generator"`
	Export    ExportConfig    `toml:"export"`
}

var cfg *ConfigParam

// Config returns the current configuration.
func Config() *ConfigParam {
	return cfg
}

// GetURL returns the base URL the server is reachable at.
func GetURL() string {
	return "http://" + Config().ServerHostName + ":" + Config().ServerPort
}

// ValidateConfig checks required values and fills in defaults.
func ValidateConfig(cfg *ConfigParam) error {
	if cfg.FormatVersion != ConfigFormatVersion {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}

	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if cfg.ServerHostName == "" {
		cfg.ServerHostName = "localhost"
	}

	if cfg.Sessions.SampleTimeout == "" {
		cfg.Sessions.SampleTimeout = "5s"
	}
	if _, err := cfg.Sessions.GetSampleTimeout(); err != nil {
		return fmt.Errorf("invalid sessions.sample_timeout: %v", err)
	}
	if cfg.Sessions.SendBuffer <= 0 {
		cfg.Sessions.SendBuffer = 32
	}
	if cfg.Sessions.IdleEviction == "" {
		cfg.Sessions.IdleEviction = "30m"
	}
	if _, err := cfg.Sessions.GetIdleEviction(); err != nil {
		return fmt.Errorf("invalid sessions.idle_eviction: %v", err)
	}
	if cfg.Sessions.EvictionInterval == "" {
		cfg.Sessions.EvictionInterval = "1m"
	}
	if _, err := cfg.Sessions.GetEvictionInterval(); err != nil {
		return fmt.Errorf("invalid sessions.eviction_interval: %v", err)
	}

	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gpt-4o"
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generator.MaxAttempts == 0 {
		cfg.Generator.MaxAttempts = 3
	}
	if cfg.Generator.CallTimeout == "" {
		cfg.Generator.CallTimeout = "60s"
	}
	if _, err := cfg.Generator.GetCallTimeout(); err != nil {
		return fmt.Errorf("invalid generator.call_timeout: %v", err)
	}

	if cfg.WorkingDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error getting user home directory: %v", err)
		}
		cfg.WorkingDir = filepath.Join(homeDir, ".chartbridge")
	}
	if err := os.MkdirAll(cfg.WorkingDir, 0700); err != nil {
		return fmt.Errorf("error creating working directory: %v", err)
	}

	if len(cfg.Export.ScaffoldCommand) == 0 {
		cfg.Export.ScaffoldCommand = []string{"npx", "create-incorta-component", "new"}
	}
	if len(cfg.Export.BuildCommand) == 0 {
		cfg.Export.BuildCommand = []string{"npm", "run", "build"}
	}
	if cfg.Export.DownloadsDir == "" {
		cfg.Export.DownloadsDir = filepath.Join(cfg.WorkingDir, "downloads")
	}
	if err := os.MkdirAll(cfg.Export.DownloadsDir, 0700); err != nil {
		return fmt.Errorf("error creating downloads directory: %v", err)
	}
	if cfg.Export.StepTimeout == "" {
		cfg.Export.StepTimeout = "180s"
	}
	if _, err := cfg.Export.GetStepTimeout(); err != nil {
		return fmt.Errorf("invalid export.step_timeout: %v", err)
	}

	return nil
}

// LoadConfig loads configuration from a file and validates it.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}

	// Secrets come from the environment; a .env file is optional.
	godotenv.Load()

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	cfg = &ConfigParam{}
	if _, err := toml.Decode(string(content), cfg); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	return nil
}

// ConfigFormatVersion is the current version of the configuration file format.
const ConfigFormatVersion = "0.1.0"

// TestInit loads a minimal configuration rooted in a per-test temp
// directory. Tests that touch config call this first.
func TestInit(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
format_version = "%s"
server_hostname = "localhost"
server_port = "0"
working_dir = %q

[sessions]
sample_timeout = "250ms"
idle_eviction = "1m"
eviction_interval = "100ms"

[export]
enabled = false
`, ConfigFormatVersion, dir)

	path := filepath.Join(dir, "chartbridge.conf")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("error writing test config: %v", err)
	}
	if err := LoadConfig(path); err != nil {
		t.Fatalf("error loading test config: %v", err)
	}
}
