package bootstrap

import (
	"github.com/kbukum/shopstream/config"
)

// Config is the constraint for application configuration types.
// Any struct embedding config.ServiceConfig satisfies it through promoted
// methods, as long as it is used by pointer.
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Database database.Config `yaml:"database" mapstructure:"database"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
