// Package config provides configuration loading for speechgate.
//
// It uses Viper to load a YAML file and environment variables, with an
// optional .env file loaded through godotenv. Environment variables use the
// SPEECHGATE_ prefix with underscore-separated paths, e.g.
// SPEECHGATE_RESILIENCE_MAX_RETRIES overrides resilience.max_retries.
//
// # Usage
//
//	var cfg MyConfig
//	err := config.LoadConfig("speechgate", &cfg, config.WithConfigFile("config.yml"))
//
// Watch reloads a config file whenever it changes on disk.
package config
