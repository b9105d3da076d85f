// Package config loads the split tool's settings from a TOML file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/OpenTraceLab/OpenTraceSplit/pkg/bus"
	"github.com/OpenTraceLab/OpenTraceSplit/pkg/units"
)

// Config controls a split run.
type Config struct {
	Split  SplitConfig  `toml:"split"`
	Output OutputConfig `toml:"output"`
	Log    LogConfig    `toml:"log"`
}

// SplitConfig holds the bus parameters. Lengths accept unit suffixes
// ("1.4mm", "55mil") or bare numbers in millimetres.
type SplitConfig struct {
	Width      units.Length `toml:"width"`      // width of each new track (default: 1.4mm)
	Separation units.Length `toml:"separation"` // gap between new tracks (default: 0.2mm)
	Count      int          `toml:"count"`      // tracks per split (default: 2)
	GroupName  string       `toml:"group_name"` // name of each created group; "{net}" expands to the net name
}

// OutputConfig controls where the edited board goes.
type OutputConfig struct {
	InPlace      bool   `toml:"in_place"`      // overwrite the input board
	Backup       bool   `toml:"backup"`        // copy the input aside before overwriting it
	BackupSuffix string `toml:"backup_suffix"` // appended to the board path (default: ".bak")
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn or error (default: info)
}

// DefaultConfig returns the defaults of the interactive plugin dialog.
func DefaultConfig() *Config {
	return &Config{
		Split: SplitConfig{
			Width:      1_400_000,
			Separation: 200_000,
			Count:      2,
			GroupName:  "{net} bus",
		},
		Output: OutputConfig{
			BackupSuffix: ".bak",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values; unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// Validate checks the configuration and fills empty optional fields.
func (c *Config) Validate() error {
	if err := c.Split.Bus().Validate(); err != nil {
		return err
	}

	if c.Output.BackupSuffix == "" {
		c.Output.BackupSuffix = ".bak"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}

	return nil
}

// Bus returns the parameters in the form the splitter takes.
func (s SplitConfig) Bus() bus.SplitConfig {
	return bus.SplitConfig{
		Width:      bus.Length(s.Width),
		Separation: bus.Length(s.Separation),
		Count:      s.Count,
	}
}

// LogLevel returns the parsed log level, falling back to info.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
