package bus

import "fmt"

// Config holds bus settings.
type Config struct {
	// QueueSize bounds the number of undelivered messages per channel.
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`
	// DeadLetterCapacity bounds the number of retained dead letters.
	DeadLetterCapacity int `yaml:"dead_letter_capacity" mapstructure:"dead_letter_capacity"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
	if c.DeadLetterCapacity == 0 {
		c.DeadLetterCapacity = 100
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.QueueSize < 1 {
		return fmt.Errorf("bus.queue_size must be positive (got: %d)", c.QueueSize)
	}
	if c.DeadLetterCapacity < 0 {
		return fmt.Errorf("bus.dead_letter_capacity must not be negative (got: %d)", c.DeadLetterCapacity)
	}
	return nil
}
