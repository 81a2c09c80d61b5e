package config

import "time"

// Config represents the complete pkmeter configuration
type Config struct {
	BaseDir    string                   `yaml:"-"` // Directory containing config file, for resolving relative paths
	PluginDirs StringOrSlice            `yaml:"plugin_dirs"`
	Settings   SettingsConfig           `yaml:"settings"`
	Logging    LoggingConfig            `yaml:"logging"`
	Template   TemplateConfig           `yaml:"template"`
	DataSource DataSourceConfig         `yaml:"datasource"`
	Locale     string                   `yaml:"locale"`
	Monitor    string                   `yaml:"monitor_command"` // Command the System widget opens; a component setting overrides it
	Dev        DevConfig                `yaml:"dev"`
	Profiles   map[string]ProfileConfig `yaml:"profiles"` // Named overrides selected with --profile
}

// SettingsConfig selects the persisted settings backend
type SettingsConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or mysql
	DSN    string `yaml:"dsn"`    // Connection string; for sqlite a file path (default: <config dir>/settings.db)
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stderr, stdout, or file path
}

// TemplateConfig holds the markup defaults shared by every widget tree
type TemplateConfig struct {
	StorePrefix string `yaml:"store_prefix"` // Dependency prefix, also the store's name in expressions
	Margins     []int  `yaml:"margins"`      // 1, 2 or 4 numbers, like the padding attribute
	Spacing     int    `yaml:"spacing"`
}

// DataSourceConfig holds polling defaults
type DataSourceConfig struct {
	Interval time.Duration `yaml:"interval"` // Used when a component has no interval setting
}

// DevConfig holds developer settings
type DevConfig struct {
	Watch    bool          `yaml:"watch"`    // Rebuild widgets when manifests or markup change
	Debounce time.Duration `yaml:"debounce"` // Quiet period before a rebuild (default: 200ms)
}

// ProfileConfig holds per-profile overrides
// All fields are optional - only non-zero values override the base config
type ProfileConfig struct {
	PluginDirs StringOrSlice  `yaml:"plugin_dirs"`
	Settings   SettingsConfig `yaml:"settings"`
	Logging    LoggingConfig  `yaml:"logging"`
	Watch      *bool          `yaml:"watch"`
}

// StringOrSlice supports YAML fields that can be either a string or a slice of strings
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler to handle both string and []string
func (s *StringOrSlice) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var slice []string
	if err := unmarshal(&slice); err != nil {
		return err
	}
	*s = slice
	return nil
}

// Contains checks if the slice contains the given string
func (s StringOrSlice) Contains(str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		PluginDirs: StringOrSlice{"./plugins", "~/.config/pkmeter/plugins"},
		Settings: SettingsConfig{
			Driver: "sqlite",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Template: TemplateConfig{
			StorePrefix: "data.",
			Margins:     []int{30, 30, 30, 30},
			Spacing:     0,
		},
		DataSource: DataSourceConfig{
			Interval: time.Second,
		},
		Locale:  "en_US",
		Monitor: "gnome-system-monitor",
		Dev: DevConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// LayoutMargins expands Template.Margins to left, top, right, bottom.
func (c *Config) LayoutMargins() [4]int {
	m := c.Template.Margins
	switch len(m) {
	case 1:
		return [4]int{m[0], m[0], m[0], m[0]}
	case 2:
		return [4]int{m[0], m[1], m[0], m[1]}
	case 4:
		return [4]int{m[0], m[1], m[2], m[3]}
	}
	return [4]int{}
}
