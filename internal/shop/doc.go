// Package shop holds the storefront domain: the gorm-backed user, product
// and order stores, the chunked file source, and Service, which composes
// them into the deferred values and pipelines the HTTP layer serves.
package shop
