// Package endpoint provides the service's built-in Gin handlers.
package endpoint
