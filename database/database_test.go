package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/kbukum/shopstream/component"
	"github.com/kbukum/shopstream/errors"
	"github.com/kbukum/shopstream/logger"
)

type widget struct {
	BaseModel
	Name string `gorm:"uniqueIndex"`
}

func memoryConfig(t *testing.T) Config {
	cfg := Config{
		DSN:         fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
		AutoMigrate: true,
		LogLevel:    "silent",
	}
	cfg.ApplyDefaults()
	return cfg
}

func startComponent(t *testing.T) *Component {
	t.Helper()
	comp := NewComponent(memoryConfig(t), logger.Nop()).WithAutoMigrate(&widget{})
	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = comp.Stop(context.Background()) })
	return comp
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Driver != DriverSQLite || cfg.DSN == "" || cfg.MaxOpenConns != 4 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_DefaultIdleFollowsSmallPool(t *testing.T) {
	cfg := Config{MaxOpenConns: 1}
	cfg.ApplyDefaults()
	if cfg.MaxIdleConns != 1 {
		t.Errorf("MaxIdleConns = %d, want 1", cfg.MaxIdleConns)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("single-connection pool should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"driver", func(c *Config) { c.Driver = "postgres" }},
		{"dsn", func(c *Config) { c.DSN = "" }},
		{"pool", func(c *Config) { c.MaxIdleConns = c.MaxOpenConns + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	comp := NewComponent(memoryConfig(t), logger.Nop())
	if comp.DB() != nil {
		t.Error("DB() should be nil before Start")
	}
	if h := comp.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := comp.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s (%s)", h.Status, h.Message)
	}
	if err := comp.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := comp.DB().Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if d := comp.Describe(); !strings.Contains(d.Details, "sqlite") {
		t.Errorf("unexpected description %+v", d)
	}
}

func TestFromDatabase(t *testing.T) {
	db := startComponent(t).DB()
	ctx := context.Background()

	if err := db.WithContext(ctx).Create(&widget{Name: "Pen"}).Error; err != nil {
		t.Fatal(err)
	}
	dup := db.WithContext(ctx).Create(&widget{Name: "Pen"}).Error
	if !errors.IsCode(FromDatabase(dup, "widget", ""), errors.ErrCodeAlreadyExists) {
		t.Errorf("expected ALREADY_EXISTS for %v", dup)
	}

	var w widget
	missing := db.WithContext(ctx).Where("name = ?", "Hat").First(&w).Error
	appErr := FromDatabase(missing, "widget", "Hat")
	if !errors.IsCode(appErr, errors.ErrCodeNotFound) || !stderrors.Is(appErr, gorm.ErrRecordNotFound) {
		t.Errorf("expected NOT_FOUND wrapping the gorm error, got %v", appErr)
	}

	if !errors.IsCode(FromDatabase(context.Canceled, "widget", ""), errors.ErrCodeCancelled) {
		t.Error("expected CANCELLED for context errors")
	}
	if !errors.IsCode(FromDatabase(stderrors.New("disk I/O error"), "widget", ""), errors.ErrCodeDatabaseError) {
		t.Error("expected DATABASE_ERROR for anything else")
	}
	if FromDatabase(nil, "widget", "") != nil {
		t.Error("nil error must map to nil")
	}
}

func TestWithTransaction_RollsBack(t *testing.T) {
	db := startComponent(t).DB()
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Name: "Cup"}).Error; err != nil {
			return err
		}
		return stderrors.New("abort")
	})
	if err == nil {
		t.Fatal("expected the transaction error")
	}

	var count int64
	db.WithContext(ctx).Model(&widget{}).Count(&count)
	if count != 0 {
		t.Errorf("expected rollback, found %d rows", count)
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, logger.Nop())
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}
