// Package database provides the GORM-backed SQLite database as a
// lifecycle component.
//
//	comp := database.NewComponent(cfg.Database, log).WithAutoMigrate(&shop.User{}, &shop.Product{})
//	registry.Register(comp)
//	// after Start
//	users := shop.NewUserStore(comp.DB(), rng)
//
// Connection attempts are retried with backoff. Queries are logged through
// the service logger and traced as db.query spans. FromDatabase maps GORM
// errors onto the AppError taxonomy.
package database
