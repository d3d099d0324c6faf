// Package errors provides the structured error type shared by the shop
// service with machine-readable codes, HTTP status mapping and retryable
// detection.
//
// Error taxonomy used across the service:
//
//   - NotFound: a lookup by key yields nothing.
//   - UpstreamFailure: a store query or file read fails.
//   - HandlerFailure: a bus stage handler returns an error or panics.
//   - Cancelled: a subscription is torn down before completion.
//
// Failures travel as plain error values through deferred and pipeline
// compositions; AsAppError recovers the structured form at the edges.
package errors
