package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings are per-invocation options layered from defaults, APOLO_*
// environment variables and command-line flags.
type Settings struct {
	ConfigDir   string `mapstructure:"config"`
	URL         string `mapstructure:"url"`
	Cluster     string `mapstructure:"cluster"`
	Org         string `mapstructure:"org"`
	Project     string `mapstructure:"project"`
	Color       string `mapstructure:"color"`
	Verbose     int    `mapstructure:"verbose"`
	Quiet       bool   `mapstructure:"quiet"`
	MetricsDump string `mapstructure:"metrics-dump"`
}

// Color modes accepted by --color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// LoadSettings resolves Settings from flags, environment and defaults.
// Flags win over APOLO_* variables, which win over defaults.
func LoadSettings(flags *pflag.FlagSet) (Settings, error) {
	var s Settings
	v := viper.New()

	v.SetDefault("config", DefaultDir())
	v.SetDefault("url", "")
	v.SetDefault("cluster", "")
	v.SetDefault("org", "")
	v.SetDefault("project", "")
	v.SetDefault("color", ColorAuto)
	v.SetDefault("verbose", 0)
	v.SetDefault("quiet", false)
	v.SetDefault("metrics-dump", "")

	v.SetEnvPrefix("apolo")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return s, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("failed to parse settings: %w", err)
	}

	switch s.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return s, fmt.Errorf("invalid --color %q: expected auto, always or never", s.Color)
	}
	return s, nil
}
