// Package config provides configuration loading and validation for asrkit
// applications.
//
// It uses Viper to load configuration from YAML files and environment
// variables, with .env file support via godotenv. Application settings cover
// the default engine, per-engine backend settings, fallback ordering, polling
// budgets, batch concurrency, and transcript export.
//
// # Usage
//
//	var cfg config.Config
//	err := config.LoadConfig("asr-service", &cfg)
//	cfg.ApplyDefaults()
//	err = cfg.Validate()
package config
