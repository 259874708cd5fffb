// Package config loads server settings from YAML files and TASQMCP_ env vars.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "TASQMCP"

type Config struct {
	Tasq    TasqConfig    `mapstructure:"tasq" yaml:"tasq"`
	Project ProjectConfig `mapstructure:"project" yaml:"project"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	MCP     ListenConfig  `mapstructure:"mcp" yaml:"mcp"`
	HTTP    ListenConfig  `mapstructure:"http" yaml:"http"`
	Tools   ToolsConfig   `mapstructure:"tools" yaml:"tools"`
}

type TasqConfig struct {
	Program string `mapstructure:"program" yaml:"program"`
	// SearchPath overrides PATH for locating Program. Empty means the process PATH.
	SearchPath string `mapstructure:"search_path" yaml:"search_path"`
}

type ProjectConfig struct {
	Marker string `mapstructure:"marker" yaml:"marker"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ListenConfig is a listen address. Empty disables the listener; for MCP it
// means serving on stdio instead of streamable HTTP.
type ListenConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

type ToolsConfig struct {
	// Allow limits the exposed tools. Empty exposes all of them.
	Allow []string `mapstructure:"allow" yaml:"allow"`
}

func DefaultConfig() *Config {
	return &Config{
		Tasq:    TasqConfig{Program: "tasq"},
		Project: ProjectConfig{Marker: ".tasq"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

type Options struct {
	// File is an explicit config file. It must exist when set.
	File string
	// Home overrides the user home directory used to find the global file.
	Home string
}

// GlobalConfigPath returns $HOME/.config/tasqmcp/config.yaml.
func GlobalConfigPath(home string) string {
	return filepath.Join(home, ".config", "tasqmcp", "config.yaml")
}

// Load merges defaults, the global config file, an explicit file and env vars,
// in increasing order of precedence, and validates the result.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	home := opts.Home
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if home != "" {
		global := GlobalConfigPath(home)
		if _, err := os.Stat(global); err == nil {
			v.SetConfigFile(global)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("read %s: %w", global, err)
			}
		}
	}

	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(opts.File)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", opts.File, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("tasq.program", d.Tasq.Program)
	v.SetDefault("tasq.search_path", d.Tasq.SearchPath)
	v.SetDefault("project.marker", d.Project.Marker)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("mcp.listen", d.MCP.Listen)
	v.SetDefault("http.listen", d.HTTP.Listen)
	v.SetDefault("tools.allow", []string{})
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Tasq.Program) == "" {
		errs = append(errs, errors.New("tasq.program must not be empty"))
	}
	if m := c.Project.Marker; m == "" || m == "." || m == ".." || strings.ContainsAny(m, `/\`) {
		errs = append(errs, fmt.Errorf("project.marker %q must be a single directory name", m))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}
	return errors.Join(errs...)
}
