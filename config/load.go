package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ErrNoConfig is returned by resolveConfigPath when no file exists in
// any default location.
var ErrNoConfig = errors.New("no config file found")

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations and falls back
// to Defaults when none exists.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the resolved path.
// The path is empty when no file was found and defaults are in use.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if errors.Is(err, ErrNoConfig) {
		cfg := Defaults()
		cfg.BaseDir = defaultConfigDir()
		resolvePaths(cfg)
		return cfg, "", validate(cfg)
	}
	if err != nil {
		return nil, "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	// Interpolate environment variables
	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.BaseDir = filepath.Dir(absPath)
	resolvePaths(cfg)

	if err := validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, absPath, nil
}

// resolvePaths expands ~ and makes relative paths absolute against BaseDir.
func resolvePaths(cfg *Config) {
	for i, dir := range cfg.PluginDirs {
		cfg.PluginDirs[i] = resolvePath(cfg.BaseDir, dir)
	}
	if cfg.Settings.Driver == "sqlite" {
		if cfg.Settings.DSN == "" {
			cfg.Settings.DSN = filepath.Join(cfg.BaseDir, "settings.db")
		} else if cfg.Settings.DSN != ":memory:" {
			cfg.Settings.DSN = resolvePath(cfg.BaseDir, cfg.Settings.DSN)
		}
	}
	switch cfg.Logging.Output {
	case "", "stderr", "stdout":
	default:
		cfg.Logging.Output = resolvePath(cfg.BaseDir, cfg.Logging.Output)
	}
}

func resolvePath(base, path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}
	return path
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "pkmeter")
}

// Validate performs full configuration validation.
// Call this after applying CLI overrides (like --profile).
func Validate(cfg *Config) error {
	return validate(cfg)
}

// Warnings returns non-fatal configuration issues that should be reported to the user.
func Warnings(cfg *Config) []string {
	var warnings []string

	found := 0
	for _, dir := range cfg.PluginDirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			found++
		}
	}
	if found == 0 {
		warnings = append(warnings, "no plugin directory exists - no widgets will be shown")
	}

	if _, err := language.Parse(strings.ReplaceAll(cfg.Locale, "_", "-")); err != nil {
		warnings = append(warnings, fmt.Sprintf("locale %q is not a valid language tag - using en_US", cfg.Locale))
	}

	if cfg.Dev.Watch && cfg.Dev.Debounce == 0 {
		warnings = append(warnings, "dev.watch: debounce is 0 - every file event triggers a rebuild")
	}

	if cfg.Settings.Driver == "sqlite" && cfg.Settings.DSN == ":memory:" {
		warnings = append(warnings, "settings: in-memory sqlite - widget positions and settings are not persisted")
	}

	return warnings
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > PKMETER_CONFIG env > ./pkmeter.yaml > ~/.config/pkmeter/pkmeter.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	// Try PKMETER_CONFIG environment variable
	if envPath := getenv("PKMETER_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("PKMETER_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	// Try ./pkmeter.yaml
	if _, err := os.Stat("pkmeter.yaml"); err == nil {
		return "pkmeter.yaml", nil
	}

	// Try ~/.config/pkmeter/pkmeter.yaml
	xdgPath := filepath.Join(defaultConfigDir(), "pkmeter.yaml")
	if _, err := os.Stat(xdgPath); err == nil {
		return xdgPath, nil
	}

	return "", ErrNoConfig
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := string(parts[1])
		value := getenv(varName)

		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	var errs []string

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[cfg.Settings.Driver] {
		errs = append(errs, fmt.Sprintf("invalid settings driver: %s (must be sqlite, postgres, or mysql)", cfg.Settings.Driver))
	}
	if cfg.Settings.Driver != "sqlite" && cfg.Settings.DSN == "" {
		errs = append(errs, fmt.Sprintf("settings: %s requires a dsn", cfg.Settings.Driver))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be json or text)", cfg.Logging.Format))
	}

	switch len(cfg.Template.Margins) {
	case 1, 2, 4:
	default:
		errs = append(errs, fmt.Sprintf("template.margins: expected 1, 2 or 4 numbers, got %d", len(cfg.Template.Margins)))
	}
	if cfg.Template.Spacing < 0 {
		errs = append(errs, fmt.Sprintf("template.spacing: must not be negative (got %d)", cfg.Template.Spacing))
	}
	if strings.TrimSuffix(cfg.Template.StorePrefix, ".") == "" {
		errs = append(errs, "template.store_prefix is required")
	}

	if cfg.DataSource.Interval <= 0 {
		errs = append(errs, fmt.Sprintf("datasource.interval: must be positive (got %s)", cfg.DataSource.Interval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ApplyProfile applies a named profile to the configuration.
// Only non-zero values in the profile override the base config.
// Returns an error if the profile name doesn't exist.
func ApplyProfile(cfg *Config, profileName string) error {
	if cfg.Profiles == nil {
		return fmt.Errorf("no profiles defined in config")
	}

	p, ok := cfg.Profiles[profileName]
	if !ok {
		var names []string
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown profile %q (available: %s)", profileName, strings.Join(names, ", "))
	}

	if len(p.PluginDirs) > 0 {
		cfg.PluginDirs = append(StringOrSlice(nil), p.PluginDirs...)
	}
	if p.Settings.Driver != "" {
		cfg.Settings.Driver = p.Settings.Driver
	}
	if p.Settings.DSN != "" {
		cfg.Settings.DSN = p.Settings.DSN
	}
	if p.Logging.Level != "" {
		cfg.Logging.Level = p.Logging.Level
	}
	if p.Logging.Format != "" {
		cfg.Logging.Format = p.Logging.Format
	}
	if p.Logging.Output != "" {
		cfg.Logging.Output = p.Logging.Output
	}
	if p.Watch != nil {
		cfg.Dev.Watch = *p.Watch
	}
	resolvePaths(cfg)
	return nil
}
