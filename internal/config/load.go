package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDirName is the config directory created under the user's home.
	DefaultDirName = ".apolo"

	// FileName is the config file inside the config directory.
	FileName = "config.yaml"

	// DirEnv overrides the config directory.
	DirEnv = "APOLO_CONFIG"

	// PassedConfigEnv carries a base64-encoded config file into jobs.
	PassedConfigEnv = "APOLO_PASSED_CONFIG"

	// DefaultURL is the platform API used when logging in without --url.
	DefaultURL = "https://api.apolo.us/api/v1"
)

// DefaultDir returns the config directory, honouring APOLO_CONFIG.
func DefaultDir() string {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads the config from dir. A config passed through APOLO_PASSED_CONFIG
// takes precedence so the CLI works inside jobs without a home directory.
func Load(dir string) (*Config, error) {
	if passed := os.Getenv(PassedConfigEnv); passed != "" {
		return FromPassed(passed)
	}

	// #nosec G304
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parseConfig(data)
}

// FromPassed decodes a base64-encoded config file.
func FromPassed(encoded string) (*Config, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", PassedConfigEnv, err)
	}
	return parseConfig(data)
}

// Encode returns the base64 form accepted by FromPassed.
func Encode(cfg *Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("config is missing the platform url")
	}
	if cfg.Clusters == nil {
		cfg.Clusters = map[string]Cluster{}
	}
	return &cfg, nil
}

// Save writes the config to dir, readable only by the current user.
func Save(dir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to restrict config file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), Path(dir)); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// Remove deletes the config file. Removing a missing file is not an error.
func Remove(dir string) error {
	if err := os.Remove(Path(dir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove config file: %w", err)
	}
	return nil
}
