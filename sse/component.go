package sse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/shopstream/component"
)

// Config holds hub settings.
type Config struct {
	// KeepAlive is the idle interval between keep-alive comments.
	KeepAlive time.Duration `yaml:"keep_alive" mapstructure:"keep_alive"`
	// ClientBuffer bounds the undelivered events per client.
	ClientBuffer int `yaml:"client_buffer" mapstructure:"client_buffer"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = 64
	}
}

// Component runs a Hub under the component registry.
type Component struct {
	hub *Hub
	wg  sync.WaitGroup
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a component around a fresh Hub.
func NewComponent(cfg Config) *Component {
	return &Component{hub: NewHub(cfg)}
}

// Hub returns the managed hub.
func (c *Component) Hub() *Hub { return c.hub }

// Name returns the component name.
func (c *Component) Name() string { return "sse" }

// Start launches the hub loop.
func (c *Component) Start(_ context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()
	return nil
}

// Stop stops the hub and waits for its loop to exit.
func (c *Component) Stop(_ context.Context) error {
	c.hub.Stop()
	c.wg.Wait()
	return nil
}

// Health reports the number of connected clients.
func (c *Component) Health(_ context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d clients connected", c.hub.ClientCount()),
	}
}

// Describe returns summary info for the startup banner.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "SSE Hub",
		Type:    "sse",
		Details: fmt.Sprintf("keep-alive %s", c.hub.cfg.KeepAlive),
	}
}
