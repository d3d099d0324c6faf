// Package api mounts the storefront routes on a Gin engine and writes the
// service's deferred values and pipelines to HTTP responses: JSON envelopes
// for single values, NDJSON or plain text for finite streams, and
// server-sent events for unbounded ones.
package api
