// Package config loads application configuration from environment variables
// into tagged structs. A .env file in the working directory is applied once
// per process before the first parse, which keeps local development and
// container deployments on the same code path.
//
// Usage:
//
//	type ServerConfig struct {
//	    Addr            string        `env:"SERVER_ADDR" envDefault:":8080"`
//	    ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
//	}
//
//	var cfg ServerConfig
//	config.MustLoad(&cfg)
package config
