// Package bootstrap orchestrates the service lifecycle.
//
// An App owns the typed configuration, the logger, and the component
// registry. Run starts components in registration order, runs configure
// callbacks and hooks, prints a startup summary, then blocks until a signal
// arrives and shuts everything down in reverse order.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(dbComponent)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    return wireRoutes(a)
//	})
//	err = app.Run(ctx)
package bootstrap
