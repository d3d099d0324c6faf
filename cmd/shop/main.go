// Command shop runs the reactive storefront service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/shopstream/bootstrap"
	"github.com/kbukum/shopstream/bus"
	"github.com/kbukum/shopstream/component"
	"github.com/kbukum/shopstream/config"
	"github.com/kbukum/shopstream/database"
	"github.com/kbukum/shopstream/internal/shop"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/observability"
	"github.com/kbukum/shopstream/server"
	"github.com/kbukum/shopstream/sse"
	"github.com/kbukum/shopstream/storage"
	_ "github.com/kbukum/shopstream/storage/local"
	"github.com/kbukum/shopstream/version"
)

const serviceName = "shop"

// componentLoggers are registered after the app logger is installed.
var componentLoggers = []string{"database", "storage", "bus", "http", "seed", "shop", "messaging", "api"}

func main() {
	configFile := flag.String("config", "", "path to config.yml")
	flag.Parse()

	if err := run(context.Background(), *configFile); err != nil {
		fmt.Fprintf(os.Stderr, "shop: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	opts := []config.LoaderOption{config.WithEnvPrefix("SHOP")}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}

	cfg := &Config{}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return err
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().String()
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

// newApp registers the infrastructure components and wires the business
// layer onto them once they have started.
func newApp(cfg *Config, opts ...bootstrap.Option) (*bootstrap.App[*Config], error) {
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}

	logger.RegisterDefaults(componentLoggers...)

	db := database.NewComponent(cfg.Database, logger.Get("database")).WithAutoMigrate(shop.Models()...)
	files := storage.NewComponent(cfg.Storage, logger.Get("storage"))
	b, err := bus.New(cfg.Bus, bus.WithLogger(logger.Get("bus")))
	if err != nil {
		return nil, err
	}
	events := sse.NewComponent(cfg.SSE)
	srv := server.New(cfg.Server, logger.Get("http"))

	// Registration order is start order. The server is launched once its
	// routes are wired.
	for _, c := range []component.Component{
		observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment),
		db,
		files,
		b,
		events,
	} {
		if err := app.RegisterComponent(c); err != nil {
			return nil, err
		}
	}

	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		return wire(ctx, a, infra{db: db.DB(), files: files.Storage(), bus: b, hub: events.Hub(), server: srv})
	})

	return app, nil
}
