// Package server provides the HTTP server: a Gin engine behind a net/http
// middleware chain, served over HTTP/1.1 and cleartext HTTP/2.
//
//	srv := server.New(cfg.Server, log)
//	srv.ApplyMiddleware(metrics)
//	srv.RegisterDefaultEndpoints(cfg.Name, registry.HealthAll)
//	api.Mount(srv.GinEngine().Group("/shop"), handler)
//	registry.Register(server.NewComponent(srv))
//
// Middleware (server/middleware): Recovery, RequestID, CORS, BodySizeLimit
// and RequestLogger wrap every request; Tracing and Metrics run on Gin
// routes. Endpoints (server/endpoint): /health and /info.
package server
