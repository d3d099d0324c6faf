package main

import (
	"github.com/kbukum/shopstream/bus"
	"github.com/kbukum/shopstream/config"
	"github.com/kbukum/shopstream/database"
	"github.com/kbukum/shopstream/internal/shop"
	"github.com/kbukum/shopstream/observability"
	"github.com/kbukum/shopstream/server"
	"github.com/kbukum/shopstream/sse"
	"github.com/kbukum/shopstream/storage"
)

// Config is the service configuration loaded from cmd/shop/config.yml and
// SHOP_* environment variables.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Bus           bus.Config           `yaml:"bus" mapstructure:"bus"`
	SSE           sse.Config           `yaml:"sse" mapstructure:"sse"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Shop          shop.Config          `yaml:"shop" mapstructure:"shop"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Bus.ApplyDefaults()
	c.SSE.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Shop.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.ServiceConfig, &c.Server, &c.Database, &c.Bus, &c.Storage, &c.Shop, &c.Observability,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
