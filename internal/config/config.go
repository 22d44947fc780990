package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML carries human-readable values like
// "30s" instead of nanosecond integers.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full gnbctl runtime configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	GNB     GNBConfig     `yaml:"gnb"`
	Process ProcessConfig `yaml:"process"`
	Audit   AuditConfig   `yaml:"audit"`
	Docs    DocsConfig    `yaml:"docs"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr      string   `yaml:"listenAddr" validate:"required,hostname_port"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// AuthConfig holds the bearer token settings. Disabled is for lab bring-up
// only; the secret is required otherwise.
type AuthConfig struct {
	Disabled  bool   `yaml:"disabled"`
	JWTSecret string `yaml:"jwtSecret"`
}

// GNBConfig names the managed radio process and its configuration file.
type GNBConfig struct {
	ExecutablePath string   `yaml:"executablePath" validate:"required"`
	ConfPath       string   `yaml:"confPath" validate:"required"`
	Pattern        string   `yaml:"pattern"`
	LogDir         string   `yaml:"logDir" validate:"required"`
	ExtraArgs      []string `yaml:"extraArgs"`
	UseSudo        bool     `yaml:"useSudo"`
}

// ProcessConfig holds lifecycle timing.
type ProcessConfig struct {
	PollInterval    Duration `yaml:"pollInterval"`
	GracefulTimeout Duration `yaml:"gracefulTimeout"`
	ForcedTimeout   Duration `yaml:"forcedTimeout"`
	SettleDelay     Duration `yaml:"settleDelay"`
}

// AuditConfig holds the action log location.
type AuditConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// DocsConfig holds the specification corpus location.
type DocsConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the built-in baseline.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:8742",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(5 * time.Minute),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		GNB: GNBConfig{
			ExecutablePath: "/opt/oai/nr-softmodem",
			ConfPath:       "/opt/oai/etc/gnb.sa.band78.conf",
			LogDir:         "/var/log/gnb",
			UseSudo:        true,
		},
		Process: ProcessConfig{
			PollInterval:    Duration(500 * time.Millisecond),
			GracefulTimeout: Duration(30 * time.Second),
			ForcedTimeout:   Duration(5 * time.Second),
			SettleDelay:     Duration(2 * time.Second),
		},
		Audit: AuditConfig{
			Path: "/var/log/gnb/actions.jsonl",
		},
		Docs: DocsConfig{
			Dir: "/opt/gnbctl/specs",
		},
	}
}

// Load merges the baseline, the YAML file at path when non-empty, and the
// GNBCTL_* environment, then validates. Write timeouts stay generous because
// a restart holds its response open through the full stop and start cycle.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.GNB.Pattern == "" {
		cfg.GNB.Pattern = filepath.Base(cfg.GNB.ExecutablePath)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// mergeFile decodes the YAML file over cfg. Absent keys keep their current
// values; unknown keys are rejected.
func mergeFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies GNBCTL_* environment variables to cfg. A value
// that fails to parse is an error rather than a silent fallback.
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("GNBCTL_LISTEN_ADDR"); val != "" {
		cfg.Server.ListenAddr = val
	}
	if val := os.Getenv("GNBCTL_JWT_SECRET"); val != "" {
		cfg.Auth.JWTSecret = val
	}
	if val := os.Getenv("GNBCTL_AUTH_DISABLED"); val != "" {
		cfg.Auth.Disabled = val == "1" || val == "true"
	}
	if val := os.Getenv("GNBCTL_GNB_EXECUTABLE"); val != "" {
		cfg.GNB.ExecutablePath = val
	}
	if val := os.Getenv("GNBCTL_GNB_CONF"); val != "" {
		cfg.GNB.ConfPath = val
	}
	if val := os.Getenv("GNBCTL_GNB_PATTERN"); val != "" {
		cfg.GNB.Pattern = val
	}
	if val := os.Getenv("GNBCTL_GNB_LOG_DIR"); val != "" {
		cfg.GNB.LogDir = val
	}
	if val := os.Getenv("GNBCTL_AUDIT_LOG"); val != "" {
		cfg.Audit.Path = val
	}
	if val := os.Getenv("GNBCTL_DOCS_DIR"); val != "" {
		cfg.Docs.Dir = val
	}

	for _, override := range []struct {
		env  string
		dest *Duration
	}{
		{"GNBCTL_POLL_INTERVAL", &cfg.Process.PollInterval},
		{"GNBCTL_GRACEFUL_TIMEOUT", &cfg.Process.GracefulTimeout},
		{"GNBCTL_FORCED_TIMEOUT", &cfg.Process.ForcedTimeout},
		{"GNBCTL_SETTLE_DELAY", &cfg.Process.SettleDelay},
	} {
		val := os.Getenv(override.env)
		if val == "" {
			continue
		}
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", override.env, val, err)
		}
		*override.dest = Duration(parsed)
	}
	return nil
}
