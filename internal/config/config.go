package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the durable store. Driver is "sqlite" (default) or
// "postgres".
type StorageConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres DatabaseConfig `yaml:"postgres"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// AuthConfig protects the API with an X-API-Key header. An empty key leaves
// the API open, which is how it runs behind tsnet.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type ExtractionConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LedgerConfig struct {
	TimeZone    string        `yaml:"timezone"`
	StalePolicy string        `yaml:"stale_policy"`
	IdleTTL     time.Duration `yaml:"idle_ttl"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, fills defaults, then applies
// environment variable overrides. Env vars use the prefix GYMWHISPER_:
//
//	GYMWHISPER_SERVER_HOST, GYMWHISPER_SERVER_PORT,
//	GYMWHISPER_STORAGE_DRIVER, GYMWHISPER_STORAGE_PATH,
//	GYMWHISPER_DB_HOST, GYMWHISPER_DB_PORT, GYMWHISPER_DB_NAME,
//	GYMWHISPER_DB_USER, GYMWHISPER_DB_PASSWORD, GYMWHISPER_DB_SSLMODE,
//	GYMWHISPER_AUTH_API_KEY,
//	GYMWHISPER_EXTRACTION_PROVIDER, GYMWHISPER_EXTRACTION_API_KEY,
//	GYMWHISPER_EXTRACTION_MODEL, GYMWHISPER_EXTRACTION_BASE_URL,
//	GYMWHISPER_EXTRACTION_TIMEOUT,
//	GYMWHISPER_LEDGER_TIMEZONE, GYMWHISPER_LEDGER_STALE_POLICY,
//	GYMWHISPER_LEDGER_IDLE_TTL,
//	GYMWHISPER_TAILSCALE_ENABLED, GYMWHISPER_TAILSCALE_HOSTNAME,
//	GYMWHISPER_TAILSCALE_STATE_DIR
//
// When the extraction API key is still empty, GEMINI_API_KEY or
// OPENAI_API_KEY is used depending on the provider.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:     ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage:    StorageConfig{Driver: "sqlite", Path: "data/gymwhisper.db"},
		Extraction: ExtractionConfig{Provider: "gemini"},
		Ledger: LedgerConfig{
			TimeZone:    "America/Los_Angeles",
			StalePolicy: "apply",
			IdleTTL:     12 * time.Hour,
		},
		Tailscale: TailscaleConfig{Hostname: "gymwhisper", StateDir: "tsnet-state"},
	}
}

func applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
		return nil
	}
	dur := func(name string, dst *time.Duration) error {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
		return nil
	}

	str("GYMWHISPER_SERVER_HOST", &cfg.Server.Host)
	if err := num("GYMWHISPER_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}

	str("GYMWHISPER_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("GYMWHISPER_STORAGE_PATH", &cfg.Storage.Path)
	str("GYMWHISPER_DB_HOST", &cfg.Storage.Postgres.Host)
	if err := num("GYMWHISPER_DB_PORT", &cfg.Storage.Postgres.Port); err != nil {
		return err
	}
	str("GYMWHISPER_DB_NAME", &cfg.Storage.Postgres.Name)
	str("GYMWHISPER_DB_USER", &cfg.Storage.Postgres.User)
	str("GYMWHISPER_DB_PASSWORD", &cfg.Storage.Postgres.Password)
	str("GYMWHISPER_DB_SSLMODE", &cfg.Storage.Postgres.SSLMode)

	str("GYMWHISPER_AUTH_API_KEY", &cfg.Auth.APIKey)

	str("GYMWHISPER_EXTRACTION_PROVIDER", &cfg.Extraction.Provider)
	str("GYMWHISPER_EXTRACTION_API_KEY", &cfg.Extraction.APIKey)
	str("GYMWHISPER_EXTRACTION_MODEL", &cfg.Extraction.Model)
	str("GYMWHISPER_EXTRACTION_BASE_URL", &cfg.Extraction.BaseURL)
	if err := dur("GYMWHISPER_EXTRACTION_TIMEOUT", &cfg.Extraction.Timeout); err != nil {
		return err
	}
	if cfg.Extraction.APIKey == "" {
		switch cfg.Extraction.Provider {
		case "gemini":
			str("GEMINI_API_KEY", &cfg.Extraction.APIKey)
		case "openai":
			str("OPENAI_API_KEY", &cfg.Extraction.APIKey)
		}
	}

	str("GYMWHISPER_LEDGER_TIMEZONE", &cfg.Ledger.TimeZone)
	str("GYMWHISPER_LEDGER_STALE_POLICY", &cfg.Ledger.StalePolicy)
	if err := dur("GYMWHISPER_LEDGER_IDLE_TTL", &cfg.Ledger.IdleTTL); err != nil {
		return err
	}

	if v := os.Getenv("GYMWHISPER_TAILSCALE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GYMWHISPER_TAILSCALE_ENABLED: %w", err)
		}
		cfg.Tailscale.Enabled = b
	}
	str("GYMWHISPER_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	str("GYMWHISPER_TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	case "postgres":
		pg := c.Storage.Postgres
		if pg.Host == "" {
			return fmt.Errorf("storage.postgres.host is required")
		}
		if pg.Port == 0 {
			return fmt.Errorf("storage.postgres.port is required")
		}
		if pg.Name == "" {
			return fmt.Errorf("storage.postgres.name is required")
		}
		if pg.User == "" {
			return fmt.Errorf("storage.postgres.user is required")
		}
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}

	switch c.Extraction.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("extraction.provider must be gemini or openai, got %q", c.Extraction.Provider)
	}
	if c.Extraction.APIKey == "" {
		return fmt.Errorf("extraction.api_key is required")
	}
	if c.Extraction.Timeout < 0 {
		return fmt.Errorf("extraction.timeout must not be negative")
	}

	if _, err := time.LoadLocation(c.Ledger.TimeZone); err != nil {
		return fmt.Errorf("ledger.timezone: %w", err)
	}
	switch c.Ledger.StalePolicy {
	case "apply", "discard":
	default:
		return fmt.Errorf("ledger.stale_policy must be apply or discard, got %q", c.Ledger.StalePolicy)
	}
	if c.Ledger.IdleTTL < 0 {
		return fmt.Errorf("ledger.idle_ttl must not be negative")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
