// Package logging builds the hub's slog logger from the logging section of
// config.yaml. Every entry carries the service name and build version;
// Component adds a "component" attribute for one subsystem.
//
//	logging:
//	  level: info        # debug, info, warn, error
//	  format: json       # or text
//	  output: stdout     # stdout, stderr or file
//	  file:
//	    path: /var/log/grayhub/hub.log
//	    max_size_mb: 20
//
// File output rotates through lumberjack; Close releases the file.
//
//	log := logging.New(cfg.Logging, version)
//	defer log.Close()
//	log.Component("scheduler").Error("script failed", "schedule", 7, "error", err)
package logging
