// Package resilience wraps calls to flaky collaborators with retries.
//
// Retries live at the call site, never inside the composition core:
//
//	product := resilience.RetryDeferred(cfg, store.RecommendedOne())
//	name, err := product.Await(ctx)
//
// The default policy retries any error except context termination and
// AppErrors flagged as not retryable.
package resilience
