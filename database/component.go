package database

import (
	"context"
	"fmt"

	"github.com/kbukum/shopstream/component"
	"github.com/kbukum/shopstream/logger"
)

// Component wraps DB for the component registry.
type Component struct {
	db     *DB
	cfg    Config
	log    *logger.Logger
	models []any
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a database component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("database")}
}

// WithAutoMigrate registers models migrated on Start when AutoMigrate is set.
func (c *Component) WithAutoMigrate(models ...any) *Component {
	c.models = append(c.models, models...)
	return c
}

// DB returns the database, or nil before Start.
func (c *Component) DB() *DB {
	return c.db
}

// Name returns the component name.
func (c *Component) Name() string { return "database" }

// Start connects and runs auto-migration.
func (c *Component) Start(ctx context.Context) error {
	db, err := Open(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	c.db = db

	if c.cfg.AutoMigrate && len(c.models) > 0 {
		if err := db.AutoMigrate(c.models...); err != nil {
			return fmt.Errorf("database auto-migrate: %w", err)
		}
	}
	return nil
}

// Stop closes the connection pool.
func (c *Component) Stop(_ context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Health pings the database and reports pool usage.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name()}
	if c.db == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
		return h
	}
	if err := c.db.PingContext(ctx); err != nil {
		h.Status, h.Message = component.StatusUnhealthy, fmt.Sprintf("ping failed: %v", err)
		return h
	}
	sqlDB, _ := c.db.GormDB.DB()
	stats := sqlDB.Stats()
	h.Status = component.StatusHealthy
	h.Message = fmt.Sprintf("open=%d in_use=%d", stats.OpenConnections, stats.InUse)
	return h
}

// Describe returns summary info for the startup banner.
func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("%s pool=%d/%d", c.cfg.Driver, c.cfg.MaxOpenConns, c.cfg.MaxIdleConns)
	if c.cfg.AutoMigrate {
		details += " auto-migrate=on"
	}
	return component.Description{Name: "Database", Type: "database", Details: details}
}
