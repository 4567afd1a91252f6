package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Sources   SourcesConfig   `yaml:"sources" envconfig:"SOURCES"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Schedule  ScheduleConfig  `yaml:"schedule" envconfig:"SCHEDULE"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Publish   PublishConfig   `yaml:"publish" envconfig:"PUBLISH"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/pipelines.log"`
}

// PathsConfig contains file system paths configuration. Relative directories
// are resolved against BaseDir, which defaults to the working directory.
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	RawDataDir string `yaml:"raw_data_dir" envconfig:"RAW_DATA_DIR" default:"raw_data"`
	OutputDir  string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"output"`
	CacheDir   string `yaml:"cache_dir" envconfig:"CACHE_DIR" default:"raw_data/cache"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// SourcesConfig configures the remote datasets and how they are fetched.
// Table sources are either http(s) URLs or file names in the raw data
// directory.
type SourcesConfig struct {
	IDSBaseURL          string        `yaml:"ids_base_url" envconfig:"IDS_BASE_URL" default:"https://api.worldbank.org/v2"`
	WEOBaseURL          string        `yaml:"weo_base_url" envconfig:"WEO_BASE_URL" default:"https://www.imf.org/external/datamapper/api/v1"`
	FREDURL             string        `yaml:"fred_url" envconfig:"FRED_URL" default:"https://fred.stlouisfed.org/graph/fredgraph.csv"`
	InflationTable      string        `yaml:"inflation_table" envconfig:"INFLATION_TABLE" default:"wfp_inflation.csv"`
	HealthSpendingTable string        `yaml:"health_spending_table" envconfig:"HEALTH_SPENDING_TABLE" default:"health_spending_gdp.csv"`
	GeometriesTable     string        `yaml:"geometries_table" envconfig:"GEOMETRIES_TABLE" default:"flourish_geometries.csv"`
	CountriesOverride   string        `yaml:"countries_override" envconfig:"COUNTRIES_OVERRIDE"`
	RequestsPerSecond   float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" default:"4"`
	Burst               int           `yaml:"burst" envconfig:"BURST" default:"2"`
	Timeout             time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"60s"`
	CacheTTL            time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"24h"`
	PageSize            int           `yaml:"page_size" envconfig:"PAGE_SIZE" default:"1000"`
	MaxVintageFallbacks int           `yaml:"max_vintage_fallbacks" envconfig:"MAX_VINTAGE_FALLBACKS" default:"7"`
	UserAgent           string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"interest-rates-pipelines/1.0"`
}

// CacheConfig selects where raw source responses are cached.
type CacheConfig struct {
	Backend       string `yaml:"backend" envconfig:"BACKEND" default:"sqlite"`
	SQLiteFile    string `yaml:"sqlite_file" envconfig:"SQLITE_FILE" default:"responses.db"`
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `yaml:"key_prefix" envconfig:"KEY_PREFIX" default:"interest-rates:"`
}

// PipelineConfig holds the analysis windows used by the chart steps.
type PipelineConfig struct {
	StartYear           int           `yaml:"start_year" envconfig:"START_YEAR" default:"2000"`
	EndYear             int           `yaml:"end_year" envconfig:"END_YEAR" default:"2021"`
	MapYear             int           `yaml:"map_year" envconfig:"MAP_YEAR" default:"2021"`
	DifferenceStartYear int           `yaml:"difference_start_year" envconfig:"DIFFERENCE_START_YEAR" default:"2017"`
	DifferenceEndYear   int           `yaml:"difference_end_year" envconfig:"DIFFERENCE_END_YEAR" default:"2021"`
	DebtServiceYear     int           `yaml:"debt_service_year" envconfig:"DEBT_SERVICE_YEAR" default:"2020"`
	InflationStartYear  int           `yaml:"inflation_start_year" envconfig:"INFLATION_START_YEAR" default:"2019"`
	InflationEndYear    int           `yaml:"inflation_end_year" envconfig:"INFLATION_END_YEAR" default:"2023"`
	WeeklyDay           string        `yaml:"weekly_day" envconfig:"WEEKLY_DAY" default:"monday"`
	ExecutionMode       string        `yaml:"execution_mode" envconfig:"EXECUTION_MODE" default:"sequential"`
	MaxConcurrency      int           `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" default:"4"`
	Workbook            bool          `yaml:"workbook" envconfig:"WORKBOOK" default:"true"`
	StepTimeout         time.Duration `yaml:"step_timeout" envconfig:"STEP_TIMEOUT" default:"30m"`
}

// ScheduleConfig contains cron specs (with seconds) for the daemon.
type ScheduleConfig struct {
	Frequent string `yaml:"frequent" envconfig:"FREQUENT" default:"0 0 6 * * *"`
	Weekly   string `yaml:"weekly" envconfig:"WEEKLY" default:"0 30 6 * * 1"`
	Timezone string `yaml:"timezone" envconfig:"TIMEZONE" default:"UTC"`
}

// ServerConfig contains status server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"20"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"40"`
}

// PublishConfig contains the optional output sinks. Empty values disable them.
type PublishConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	DatabaseURL     string `yaml:"database_url" envconfig:"DATABASE_URL"`
}

// TelemetryConfig toggles OpenTelemetry providers.
type TelemetryConfig struct {
	Environment   string `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS" default:"true"`
	EnableTracing bool   `yaml:"enable_tracing" envconfig:"ENABLE_TRACING" default:"false"`
}

// Load loads configuration from .env, environment variables and an optional
// YAML file. Environment variables take precedence over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence).
// A file value is used wherever the environment left the built-in default.
func mergeConfigs(fileConfig, envConfig Config) Config {
	defaults := Default()
	mergeValue(
		reflect.ValueOf(&envConfig).Elem(),
		reflect.ValueOf(fileConfig),
		reflect.ValueOf(*defaults),
	)
	return envConfig
}

func mergeValue(dst, file, def reflect.Value) {
	if dst.Kind() == reflect.Struct {
		for i := 0; i < dst.NumField(); i++ {
			mergeValue(dst.Field(i), file.Field(i), def.Field(i))
		}
		return
	}
	if file.IsZero() {
		return
	}
	if reflect.DeepEqual(dst.Interface(), def.Interface()) {
		dst.Set(file)
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	switch strings.ToLower(c.Cache.Backend) {
	case CacheBackendSQLite, CacheBackendRedis, CacheBackendMemory:
	default:
		return fmt.Errorf("invalid cache backend: %q", c.Cache.Backend)
	}

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging output: %q", c.Logging.Output)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	if c.Pipeline.StartYear > c.Pipeline.EndYear {
		return fmt.Errorf("pipeline start year %d is after end year %d", c.Pipeline.StartYear, c.Pipeline.EndYear)
	}
	if c.Pipeline.DifferenceStartYear > c.Pipeline.DifferenceEndYear {
		return fmt.Errorf("difference start year %d is after end year %d", c.Pipeline.DifferenceStartYear, c.Pipeline.DifferenceEndYear)
	}
	if c.Pipeline.InflationStartYear > c.Pipeline.InflationEndYear {
		return fmt.Errorf("inflation start year %d is after end year %d", c.Pipeline.InflationStartYear, c.Pipeline.InflationEndYear)
	}
	if _, err := ParseWeekday(c.Pipeline.WeeklyDay); err != nil {
		return err
	}

	switch c.Pipeline.ExecutionMode {
	case "sequential", "parallel":
	default:
		return fmt.Errorf("invalid execution mode: %q", c.Pipeline.ExecutionMode)
	}

	if c.Sources.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.Sources.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.Sources.Timeout <= 0 {
		return fmt.Errorf("source timeout must be positive")
	}

	if (c.Publish.SpreadsheetID == "") != (c.Publish.CredentialsFile == "") {
		return fmt.Errorf("spreadsheet id and credentials file must be set together")
	}

	return nil
}

// ParseWeekday parses an English weekday name.
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday: %q", name)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/pipelines.log",
		},
		Paths: PathsConfig{
			RawDataDir: "raw_data",
			OutputDir:  "output",
			CacheDir:   "raw_data/cache",
			LogsDir:    "logs",
		},
		Sources: SourcesConfig{
			IDSBaseURL:          "https://api.worldbank.org/v2",
			WEOBaseURL:          "https://www.imf.org/external/datamapper/api/v1",
			FREDURL:             "https://fred.stlouisfed.org/graph/fredgraph.csv",
			InflationTable:      "wfp_inflation.csv",
			HealthSpendingTable: "health_spending_gdp.csv",
			GeometriesTable:     "flourish_geometries.csv",
			RequestsPerSecond:   4,
			Burst:               2,
			Timeout:             60 * time.Second,
			CacheTTL:            24 * time.Hour,
			PageSize:            1000,
			MaxVintageFallbacks: 7,
			UserAgent:           "interest-rates-pipelines/1.0",
		},
		Cache: CacheConfig{
			Backend:    CacheBackendSQLite,
			SQLiteFile: "responses.db",
			RedisAddr:  "localhost:6379",
			KeyPrefix:  "interest-rates:",
		},
		Pipeline: PipelineConfig{
			StartYear:           2000,
			EndYear:             2021,
			MapYear:             2021,
			DifferenceStartYear: 2017,
			DifferenceEndYear:   2021,
			DebtServiceYear:     2020,
			InflationStartYear:  2019,
			InflationEndYear:    2023,
			WeeklyDay:           "monday",
			ExecutionMode:       "sequential",
			MaxConcurrency:      4,
			Workbook:            true,
			StepTimeout:         30 * time.Minute,
		},
		Schedule: ScheduleConfig{
			Frequent: "0 0 6 * * *",
			Weekly:   "0 30 6 * * 1",
			Timezone: "UTC",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Telemetry: TelemetryConfig{
			Environment:   "development",
			EnableMetrics: true,
		},
	}
}
