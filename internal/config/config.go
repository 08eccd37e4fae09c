// Package config handles configuration loading from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Config holds daemon configuration.
type Config struct {
	Interface       string        `yaml:"interface"`
	SnapLen         int           `yaml:"snaplen"`
	Promiscuous     bool          `yaml:"promiscuous"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	Filter          string        `yaml:"filter"`
	ReadFile        string        `yaml:"read_file"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Display         bool          `yaml:"display"`
	Output          OutputConfig  `yaml:"output"`
	Socket          string        `yaml:"socket"`
	LogLevel        string        `yaml:"log_level"`
	LogFile         string        `yaml:"log_file"`
}

// OutputConfig describes where records are persisted.
type OutputConfig struct {
	Format   string `yaml:"format"`
	Dir      string `yaml:"dir"`
	Layer2   string `yaml:"layer2"`
	Layer3   string `yaml:"layer3"`
	Layer4   string `yaml:"layer4"`
	Database string `yaml:"database"`
}

// DefaultConfigPath is the default location for the config file.
const DefaultConfigPath = "/etc/pktmon/pktmon.yaml"

// Load reads configuration from a YAML file. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	path = expandHome(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// Defaults returns a config with default values.
func Defaults() *Config {
	return &Config{
		Interface:       "",
		SnapLen:         65536,
		Promiscuous:     true,
		ReadTimeout:     10 * time.Millisecond,
		RefreshInterval: 5 * time.Second,
		Display:         true,
		Output: OutputConfig{
			Format: FormatCSV,
			Dir:    ".",
		},
		LogLevel: "info",
	}
}

// Validate checks that the configuration can start a monitoring session.
func (c *Config) Validate() error {
	if c.Interface == "" && c.ReadFile == "" {
		return errors.New("an interface or a capture file must be specified")
	}
	if c.SnapLen <= 0 {
		return fmt.Errorf("snaplen must be positive, got %d", c.SnapLen)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got %s", c.ReadTimeout)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	switch c.Output.Format {
	case FormatCSV, FormatSQLite:
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", c.Output.Format, FormatCSV, FormatSQLite)
	}
	return nil
}

// Paths returns the resolved locations of the three layer tables and the
// database file.
func (o OutputConfig) Paths() (layer2, layer3, layer4, database string) {
	dir := expandHome(o.Dir)
	if dir == "" {
		dir = "."
	}
	resolve := func(p, def string) string {
		if p == "" {
			return filepath.Join(dir, def)
		}
		p = expandHome(p)
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	return resolve(o.Layer2, "layer2.csv"),
		resolve(o.Layer3, "layer3.csv"),
		resolve(o.Layer4, "layer4.csv"),
		resolve(o.Database, "packets.db")
}

// Locations returns the files the configured format writes to.
func (o OutputConfig) Locations() []string {
	l2, l3, l4, db := o.Paths()
	if o.Format == FormatSQLite {
		return []string{db}
	}
	return []string{l2, l3, l4}
}

// expandHome expands a leading ~ to the home directory.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
