// Package storage provides the object storage abstraction the shop reads
// seeded files from.
//
// Backends register themselves through RegisterFactory, so importing a
// provider package is enough to make it selectable:
//
//	import _ "github.com/kbukum/shopstream/storage/local"
//
// # Configuration
//
//	storage:
//	  provider: "local"
//	  base_path: "./data"
package storage
