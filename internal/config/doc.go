// Package config provides configuration management for the interest-rates
// pipelines. It handles loading configuration from multiple sources,
// validation, and the directory layout shared by every command.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority), including a .env file
//	2. A YAML file (RATES_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern RATES_<SECTION>_<FIELD>:
//
//	RATES_LOGGING_LEVEL=debug
//	RATES_PATHS_BASE_DIR=/srv/interest-rates
//	RATES_CACHE_BACKEND=redis
//	RATES_PIPELINE_END_YEAR=2022
//	RATES_PUBLISH_DATABASE_URL=postgres://...
//
// # Path Management
//
// Paths is built once from PathsConfig and handed to the sources, exporters
// and steps that need it:
//
//	paths, err := config.NewPaths(cfg.Paths)
//	raw := paths.RawDataPath("ids_service_raw.csv")
//	out := paths.OutputPath("fed_rate_hikes.csv")
package config
