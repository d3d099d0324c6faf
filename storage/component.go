package storage

import (
	"context"
	"fmt"

	"github.com/kbukum/shopstream/component"
	"github.com/kbukum/shopstream/logger"
)

// Component wraps Storage for the component registry.
type Component struct {
	storage Storage
	cfg     Config
	log     *logger.Logger
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a storage component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("storage")}
}

// Storage returns the underlying Storage, or nil if not started.
func (c *Component) Storage() Storage {
	return c.storage
}

// Name returns the component name.
func (c *Component) Name() string { return "storage" }

// Start initializes the storage backend.
func (c *Component) Start(_ context.Context) error {
	s, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("storage start: %w", err)
	}
	c.storage = s
	return nil
}

// Stop releases the backend.
func (c *Component) Stop(_ context.Context) error {
	c.storage = nil
	return nil
}

// Health checks the backend root.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name()}
	if c.storage == nil {
		h.Status, h.Message = component.StatusUnhealthy, "storage not initialized"
		return h
	}
	files, err := c.storage.List(ctx, "")
	if err != nil {
		h.Status, h.Message = component.StatusUnhealthy, fmt.Sprintf("health check failed: %v", err)
		return h
	}
	h.Status = component.StatusHealthy
	h.Message = fmt.Sprintf("files=%d", len(files))
	return h
}

// Describe returns summary info for the startup banner.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Storage",
		Type:    "storage",
		Details: fmt.Sprintf("provider=%s base_path=%s", c.cfg.Provider, c.cfg.BasePath),
	}
}
