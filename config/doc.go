// Package config loads service configuration with Viper.
//
// Values are read from a YAML file, then from a .env file and the process
// environment. Environment variables override file values; with
// WithEnvPrefix("SHOP") the variable SHOP_SERVER_PORT sets server.port.
//
// # Usage
//
//	var cfg Config
//	err := config.LoadConfig("shop", &cfg, config.WithEnvPrefix("SHOP"))
package config
