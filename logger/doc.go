// Package logger provides structured logging on top of zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("bus")
//	log.Info("message acked", logger.Fields("channel", "hello"))
package logger
