package shop

import (
	"fmt"
	"time"

	"github.com/kbukum/shopstream/resilience"
)

// Config holds the storefront settings.
type Config struct {
	// TickPeriod paces the recommendation and file streams.
	TickPeriod time.Duration `yaml:"tick_period" mapstructure:"tick_period"`
	// ChunkSize is the byte size of streamed file chunks.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
	// ChunkFile is the stored file served by ReadChunk when no path is given.
	ChunkFile string `yaml:"chunk_file" mapstructure:"chunk_file"`
	// GreetingSeed is the user id published on every user lookup.
	GreetingSeed int64 `yaml:"greeting_seed" mapstructure:"greeting_seed"`
	// Seed inserts the demo catalog on startup.
	Seed bool `yaml:"seed" mapstructure:"seed"`
	// Retry wraps recommendation lookups.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.TickPeriod <= 0 {
		c.TickPeriod = time.Second
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkFile == "" {
		c.ChunkFile = "war-and-peace.txt"
	}
	if c.GreetingSeed == 0 {
		c.GreetingSeed = 1002
	}
	c.Retry.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.TickPeriod <= 0 {
		return fmt.Errorf("shop.tick_period must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("shop.chunk_size must be positive")
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("shop.%w", err)
	}
	return nil
}
