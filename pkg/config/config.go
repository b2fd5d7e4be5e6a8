package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrConfig wraps every configuration failure. It is fatal at startup.
var ErrConfig = errors.New("config error")

// Config defines runtime settings for vshell.
type Config struct {
	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`

	User   UserConfig   `yaml:"user" toml:"user"`
	System SystemConfig `yaml:"system" toml:"system"`
	Paths  PathsConfig  `yaml:"paths" toml:"paths"`
}

type UserConfig struct {
	Name string `yaml:"name" toml:"name"`
}

type SystemConfig struct {
	Hostname string `yaml:"hostname" toml:"hostname"`
}

type PathsConfig struct {
	FSArchive     string `yaml:"fs_archive" toml:"fs_archive"`
	LogFile       string `yaml:"log_file" toml:"log_file"`
	StartupScript string `yaml:"startup_script" toml:"startup_script"`
	SandboxDir    string `yaml:"sandbox_dir" toml:"sandbox_dir"`
}

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		User:     UserConfig{Name: "user"},
		System:   SystemConfig{Hostname: "localhost"},
		Paths: PathsConfig{
			LogFile:    "./vshell_log.xml",
			SandboxDir: "./virtual_fs",
		},
	}
}

// Load reads configuration from a YAML or TOML file (by extension) and
// applies environment overrides. An empty path uses defaults and env only.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read config file: %v", ErrConfig, err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config %s: %v", ErrConfig, path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"VSHELL_USER", &cfg.User.Name},
		{"VSHELL_HOSTNAME", &cfg.System.Hostname},
		{"VSHELL_FS_ARCHIVE", &cfg.Paths.FSArchive},
		{"VSHELL_LOG_FILE", &cfg.Paths.LogFile},
		{"VSHELL_STARTUP_SCRIPT", &cfg.Paths.StartupScript},
		{"VSHELL_SANDBOX_DIR", &cfg.Paths.SandboxDir},
		{"VSHELL_LOG_LEVEL", &cfg.LogLevel},
		{"VSHELL_LOG_FORMAT", &cfg.LogFormat},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate checks the fields a session cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.User.Name == "" {
		missing = append(missing, "user.name")
	}
	if c.System.Hostname == "" {
		missing = append(missing, "system.hostname")
	}
	if c.Paths.FSArchive == "" {
		missing = append(missing, "paths.fs_archive")
	}
	if c.Paths.LogFile == "" {
		missing = append(missing, "paths.log_file")
	}
	if c.Paths.SandboxDir == "" {
		missing = append(missing, "paths.sandbox_dir")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfig, strings.Join(missing, ", "))
	}
	return nil
}

// DefaultConfigPath returns the config file used when none is given.
func DefaultConfigPath() string {
	if path := os.Getenv("VSHELL_CONFIG"); path != "" {
		return path
	}
	return "config.toml"
}
