// Package config loads the scanner's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// MasterKeyEnv overrides the configured master key when set, so the key
// can be kept out of the config file entirely.
const MasterKeyEnv = "SCANNER_MASTER_KEY"

// Duration wraps time.Duration with YAML support for strings like "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the deployment configuration. The master key is mandatory;
// everything else has working defaults.
type Config struct {
	Listen    string `yaml:"listen"`
	DataDir   string `yaml:"data_dir"`
	BackupDir string `yaml:"backup_dir"`
	MasterKey string `yaml:"master_key"`

	Pairing PairingConfig `yaml:"pairing"`

	SessionTTL Duration `yaml:"session_ttl"`
	CacheSize  int      `yaml:"cache_size"`
}

// PairingConfig configures the pairing authority.
type PairingConfig struct {
	Mode        string   `yaml:"mode"`
	CodeTTL     Duration `yaml:"code_ttl"`
	MaxAttempts int      `yaml:"max_attempts"`
}

// Default returns the configuration defaults applied before the file is
// read.
func Default() Config {
	return Config{
		Listen:    ":8080",
		DataDir:   "data",
		BackupDir: "data/backups",
		Pairing: PairingConfig{
			Mode:        "code",
			CodeTTL:     Duration(5 * time.Minute),
			MaxAttempts: 3,
		},
		SessionTTL: Duration(30 * 24 * time.Hour),
		CacheSize:  1024,
	}
}

// Load reads the YAML file at path over the defaults. A missing file is
// fine when SCANNER_MASTER_KEY is set; a malformed one is not.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment only.
	default:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if key := os.Getenv(MasterKeyEnv); key != "" {
		cfg.MasterKey = key
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MasterKey == "" {
		return fmt.Errorf("master key is required (config master_key or %s)", MasterKeyEnv)
	}
	switch c.Pairing.Mode {
	case "code", "qr":
	default:
		return fmt.Errorf("pairing mode must be %q or %q, got %q", "code", "qr", c.Pairing.Mode)
	}
	if c.Pairing.MaxAttempts <= 0 {
		return fmt.Errorf("pairing max_attempts must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	return nil
}
