package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory
const FileName = "simtools.cfg.json"

// TeamConfig holds per-team generator settings.
// Command is a "lat,lon" string; it has no default.
type TeamConfig struct {
	Name       string `json:"name" mapstructure:"name"`
	Command    string `json:"command" mapstructure:"command"`
	Scouts     int    `json:"scouts" mapstructure:"scouts"`
	Messengers int    `json:"messengers" mapstructure:"messengers"`
	Attackers  int    `json:"attackers" mapstructure:"attackers"`
}

// GeneratorConfig holds route generator settings
type GeneratorConfig struct {
	TeamA         TeamConfig
	TeamB         TeamConfig
	SpawnDxM      float64
	SpawnDyM      float64
	MinSpeedKph   float64
	MaxSpeedKph   float64
	MinPoints     int
	NoiseScaleDeg float64
	Seed          *uint64
}

// ViewerConfig holds playback settings
type ViewerConfig struct {
	StepSec  int64
	Interval time.Duration
}

// OutputConfig holds where generated scenarios are written
type OutputConfig struct {
	Dir      string
	Compress bool
}

// MemoryConfig holds file archive settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite archive settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// StorageConfig selects and configures the archive backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// InfluxConfig holds InfluxDB export settings
type InfluxConfig struct {
	Enabled    bool
	Host       string
	Port       string
	Protocol   string
	Token      string
	Org        string
	Bucket     string
	BackupPath string

	// MaxFramesPerSec throttles exports; 0 means unlimited
	MaxFramesPerSec float64
}

// APIConfig holds the web frontend that scenarios and traces are published to
type APIConfig struct {
	URL string
	Key string
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool

	// TraceEndpoint is an OTLP/gRPC collector for spans
	TraceEndpoint string
	SampleRatio   float64
}

// DefaultPerformance mirrors the capability table the simulators ship with.
var DefaultPerformance = map[string]map[string]float64{
	"scout":     {"comm_range_m": 5000, "detect_range_m": 10000},
	"messenger": {"comm_range_m": 8000},
	"attacker":  {"bom_range_m": 1000},
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./simlogs")

	viper.SetDefault("generator.teamA.name", "Alpha Team")
	viper.SetDefault("generator.teamA.command", "")
	viper.SetDefault("generator.teamA.scouts", 10)
	viper.SetDefault("generator.teamA.messengers", 20)
	viper.SetDefault("generator.teamA.attackers", 50)
	viper.SetDefault("generator.teamB.name", "Bravo Team")
	viper.SetDefault("generator.teamB.command", "")
	viper.SetDefault("generator.teamB.scouts", 10)
	viper.SetDefault("generator.teamB.messengers", 20)
	viper.SetDefault("generator.teamB.attackers", 50)
	viper.SetDefault("generator.spawnDxM", 10000.0)
	viper.SetDefault("generator.spawnDyM", 30000.0)
	viper.SetDefault("generator.minSpeedKph", 20.0)
	viper.SetDefault("generator.maxSpeedKph", 80.0)
	viper.SetDefault("generator.minPoints", 5)
	viper.SetDefault("generator.noiseScaleDeg", 0.1)

	viper.SetDefault("performance", DefaultPerformance)

	viper.SetDefault("viewer.stepSec", 60)
	viper.SetDefault("viewer.interval", "100ms")

	viper.SetDefault("output.dir", "./scenarios")
	viper.SetDefault("output.compress", false)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./archive")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./archive/simtools.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "simtools")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "simtools")
	viper.SetDefault("influx.bucket", "traces")
	viper.SetDefault("influx.backupPath", "./simlogs/influx_backup.log.gz")
	viper.SetDefault("influx.maxFramesPerSec", 0)

	viper.SetDefault("api.url", "http://localhost:5000")
	viper.SetDefault("api.key", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "simtools")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.traceEndpoint", "")
	viper.SetDefault("otel.sampleRatio", 1.0)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults are in
// place even when the file cannot be read.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func getTeam(prefix string) TeamConfig {
	return TeamConfig{
		Name:       viper.GetString(prefix + ".name"),
		Command:    viper.GetString(prefix + ".command"),
		Scouts:     viper.GetInt(prefix + ".scouts"),
		Messengers: viper.GetInt(prefix + ".messengers"),
		Attackers:  viper.GetInt(prefix + ".attackers"),
	}
}

// GetGeneratorConfig returns the route generator settings
func GetGeneratorConfig() GeneratorConfig {
	cfg := GeneratorConfig{
		TeamA:         getTeam("generator.teamA"),
		TeamB:         getTeam("generator.teamB"),
		SpawnDxM:      viper.GetFloat64("generator.spawnDxM"),
		SpawnDyM:      viper.GetFloat64("generator.spawnDyM"),
		MinSpeedKph:   viper.GetFloat64("generator.minSpeedKph"),
		MaxSpeedKph:   viper.GetFloat64("generator.maxSpeedKph"),
		MinPoints:     viper.GetInt("generator.minPoints"),
		NoiseScaleDeg: viper.GetFloat64("generator.noiseScaleDeg"),
	}
	if viper.IsSet("generator.seed") {
		seed := viper.GetUint64("generator.seed")
		cfg.Seed = &seed
	}
	return cfg
}

// GetPerformance returns the role capability table. A configured
// "performance" block replaces the defaults as a whole.
func GetPerformance() (map[string]map[string]float64, error) {
	perf := make(map[string]map[string]float64)
	if err := viper.UnmarshalKey("performance", &perf); err != nil {
		return nil, fmt.Errorf("invalid performance config: %w", err)
	}
	return perf, nil
}

// GetViewerConfig returns the playback settings
func GetViewerConfig() ViewerConfig {
	return ViewerConfig{
		StepSec:  viper.GetInt64("viewer.stepSec"),
		Interval: viper.GetDuration("viewer.interval"),
	}
}

// GetOutputConfig returns where scenarios are written
func GetOutputConfig() OutputConfig {
	return OutputConfig{
		Dir:      viper.GetString("output.dir"),
		Compress: viper.GetBool("output.compress"),
	}
}

// GetStorageConfig returns the archive backend settings
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

// GetDatabaseConfig returns the Postgres connection settings
func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB export settings
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),

		MaxFramesPerSec: viper.GetFloat64("influx.maxFramesPerSec"),
	}
}

// GetAPIConfig returns the web frontend settings
func GetAPIConfig() APIConfig {
	return APIConfig{
		URL: viper.GetString("api.url"),
		Key: viper.GetString("api.key"),
	}
}

// GetGraylogConfig returns the GELF settings
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),

		TraceEndpoint: viper.GetString("otel.traceEndpoint"),
		SampleRatio:   viper.GetFloat64("otel.sampleRatio"),
	}
}
