package storage

import (
	"fmt"
)

// ProviderLocal selects the local filesystem backend.
const ProviderLocal = "local"

// Default configuration values.
const (
	DefaultProvider    = ProviderLocal
	DefaultBasePath    = "./data"
	DefaultMaxFileSize = int64(10 * 1024 * 1024) // 10 MB
)

// Config holds storage configuration.
type Config struct {
	// Provider selects the storage backend.
	Provider string `yaml:"provider" mapstructure:"provider"`

	// BasePath is the root directory for local storage.
	BasePath string `yaml:"base_path" mapstructure:"base_path"`

	// MaxFileSize caps uploads in bytes.
	MaxFileSize int64 `yaml:"max_file_size" mapstructure:"max_file_size"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
}

// Validate checks that the configuration is valid for the selected provider.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return fmt.Errorf("storage: base_path is required for local provider")
		}
	case "":
		return fmt.Errorf("storage: provider is required")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("storage: max_file_size must be positive")
	}
	return nil
}
