// Package config provides centralized configuration management for the
// transparency disclosure pipeline. It handles loading configuration from
// multiple sources, validation, and a type-safe API for accessing
// configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. A YAML configuration file
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern INTR_* for namespacing:
//
//	INTR_SERVER_PORT=8080
//	INTR_PATHS_DATA_FILE=data/disclosures.json
//	INTR_LOGGING_LEVEL=info
//	INTR_INGEST_CONCURRENCY=8
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
