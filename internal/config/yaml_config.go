package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the structure of the config.yaml file.
// Keyword overrides and extra sources are easier to manage in YAML than env vars.
type YAMLConfig struct {
	Keywords map[string]string `yaml:"keywords"` // Laid over whatever the sources return
	Sources  []SourceConfig    `yaml:"sources"`  // Tried after the env-configured sources
	Defaults DefaultsConfig    `yaml:"defaults"`
}

// SourceConfig defines an additional keyword source.
type SourceConfig struct {
	Type     string `yaml:"type"`     // "url" or "file"
	Location string `yaml:"location"` // URL or file path
}

// DefaultsConfig defines default settings.
type DefaultsConfig struct {
	Mode string `yaml:"mode"` // Substitution mode for /api/substitute when none is given
}

// LoadYAMLConfig loads the YAML configuration file.
// Path is determined by CONFIG_FILE env var, defaulting to "config.yaml".
// Returns nil without error if the config file doesn't exist.
func LoadYAMLConfig() (*YAMLConfig, error) {
	path := getEnv("CONFIG_FILE", "config.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional
			return nil, nil
		}
		return nil, err
	}

	return ParseYAMLConfig(data)
}

// ParseYAMLConfig decodes YAML configuration and applies defaults.
func ParseYAMLConfig(data []byte) (*YAMLConfig, error) {
	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Defaults.Mode == "" {
		cfg.Defaults.Mode = "exact"
	}

	// Empty keys can never match and are dropped here.
	delete(cfg.Keywords, "")

	return &cfg, nil
}

// GetSourcesByType returns the configured sources of one type.
func (c *YAMLConfig) GetSourcesByType(typ string) []SourceConfig {
	if c == nil {
		return nil
	}
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

// DefaultMode returns the configured default mode, or "" when unset.
func (c *YAMLConfig) DefaultMode() string {
	if c == nil {
		return ""
	}
	return c.Defaults.Mode
}
