package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kbukum/shopstream/bootstrap"
	"github.com/kbukum/shopstream/bus"
	"github.com/kbukum/shopstream/database"
	"github.com/kbukum/shopstream/internal/api"
	"github.com/kbukum/shopstream/internal/messaging"
	"github.com/kbukum/shopstream/internal/shop"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/observability"
	"github.com/kbukum/shopstream/server"
	"github.com/kbukum/shopstream/sse"
	"github.com/kbukum/shopstream/storage"
)

// infra holds the started components the business layer is wired onto.
type infra struct {
	db     *database.DB
	files  storage.Storage
	bus    *bus.Bus
	hub    *sse.Hub
	server *server.Server
}

func wire(ctx context.Context, app *bootstrap.App[*Config], in infra) error {
	cfg := app.Cfg.Shop
	if cfg.Seed {
		if err := shop.Seed(ctx, in.db, in.files, cfg.ChunkFile, logger.Get("seed")); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	seed := uint64(time.Now().UnixNano())
	svc := shop.NewService(cfg,
		shop.NewUserStore(in.db, rand.New(rand.NewPCG(seed, 1))),
		shop.NewProductStore(in.db, rand.New(rand.NewPCG(seed, 2))),
		shop.NewOrderStore(in.db),
		shop.NewFileSource(in.files, cfg.ChunkSize),
		in.bus,
		shop.WithLogger(logger.Get("shop")),
	)

	if err := messaging.Register(in.bus, in.hub, logger.Get("messaging")); err != nil {
		return fmt.Errorf("register stages: %w", err)
	}
	app.Summary.TrackConsumer("greet", messaging.UserChannel, messaging.HelloChannel)
	app.Summary.TrackConsumer("broadcast", messaging.HelloChannel, "")

	metrics, err := observability.NewMetrics(observability.Meter(app.Name))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	in.server.ApplyMiddleware(metrics)
	in.server.RegisterDefaultEndpoints(app.Name, app.Components.HealthAll)

	api.NewHandler(svc, in.bus, in.hub,
		api.WithLogger(logger.Get("api")),
		api.WithMetrics(metrics),
		api.WithKeepAlive(app.Cfg.SSE.KeepAlive),
	).Register(in.server.GinEngine())

	return app.Components.Launch(ctx, server.NewComponent(in.server))
}
