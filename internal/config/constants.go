package config

// Application constants
const (
	AppName    = "interest-rates"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable (RATES_LOGGING_LEVEL, ...).
	EnvPrefix = "RATES"

	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)
