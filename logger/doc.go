// Package logger provides structured logging for speechgate using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with map-based structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("failover")
//	log.Info("provider changed", logger.Fields("provider", "neural-on-device"))
package logger
