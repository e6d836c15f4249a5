package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "trafficsim.cfg.json"

// SimConfig holds the simulation run parameters
type SimConfig struct {
	Seed           uint64        `json:"seed" mapstructure:"seed"`
	Vehicles       int           `json:"vehicles" mapstructure:"vehicles"`
	MaxTicks       uint64        `json:"maxTicks" mapstructure:"maxTicks"`
	TickInterval   time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	GreenDuration  int           `json:"greenDuration" mapstructure:"greenDuration"`
	RedDuration    int           `json:"redDuration" mapstructure:"redDuration"`
	YellowDuration int           `json:"yellowDuration" mapstructure:"yellowDuration"`
	LayoutFile     string        `json:"layoutFile" mapstructure:"layoutFile"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// WebSocketConfig holds live streaming backend settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`

	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
}

// ServerConfig holds the HTTP polling server settings
type ServerConfig struct {
	Address string
}

// GeoConfig places the grid on a map: the origin is the north-west corner
// of cell (0,0) and every cell is CellSize metres wide.
type GeoConfig struct {
	OriginLon float64
	OriginLat float64
	CellSize  float64
}

// GraylogConfig holds GELF output settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFormat", "text")
	viper.SetDefault("logsDir", "./trafficlogs")

	viper.SetDefault("sim.seed", 1)
	viper.SetDefault("sim.vehicles", 17)
	viper.SetDefault("sim.maxTicks", 5000)
	viper.SetDefault("sim.tickInterval", "0s")
	viper.SetDefault("sim.greenDuration", 5)
	viper.SetDefault("sim.redDuration", 5)
	viper.SetDefault("sim.yellowDuration", 0)
	viper.SetDefault("sim.layoutFile", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./runs")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.sqlite.dumpPath", "./runs/trafficsim.db")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("api.serverUrl", "http://localhost:8000")
	viper.SetDefault("server.address", ":8000")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "trafficsim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "trafficsim")
	viper.SetDefault("influx.bucket", "trafficsim")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "trafficsim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metricInterval", "10s")

	viper.SetDefault("geo.originLon", -99.1332)
	viper.SetDefault("geo.originLat", 19.4326)
	viper.SetDefault("geo.cellSize", 10.0)
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"seed":          "sim.seed",
	"vehicles":      "sim.vehicles",
	"max-ticks":     "sim.maxTicks",
	"tick-interval": "sim.tickInterval",
	"layout":        "sim.layoutFile",
	"storage":       "storage.type",
	"log-level":     "logLevel",
	"log-format":    "logFormat",
	"address":       "server.address",
	"server-url":    "api.serverUrl",
}

// BindFlags lets the known flags in fs override config values.
// Flags not defined in fs are skipped.
func BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
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

// GetSimConfig returns the simulation configuration
func GetSimConfig() SimConfig {
	return SimConfig{
		Seed:           viper.GetUint64("sim.seed"),
		Vehicles:       viper.GetInt("sim.vehicles"),
		MaxTicks:       viper.GetUint64("sim.maxTicks"),
		TickInterval:   viper.GetDuration("sim.tickInterval"),
		GreenDuration:  viper.GetInt("sim.greenDuration"),
		RedDuration:    viper.GetInt("sim.redDuration"),
		YellowDuration: viper.GetInt("sim.yellowDuration"),
		LayoutFile:     viper.GetString("sim.layoutFile"),
	}
}

// GetStorageConfig returns the storage configuration
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetDBConfig returns the Postgres connection configuration
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),

		MetricInterval: viper.GetDuration("otel.metricInterval"),
	}
}

// GetServerConfig returns the HTTP server configuration
func GetServerConfig() ServerConfig {
	return ServerConfig{Address: viper.GetString("server.address")}
}

// GetGeoConfig returns the map projection configuration
func GetGeoConfig() GeoConfig {
	return GeoConfig{
		OriginLon: viper.GetFloat64("geo.originLon"),
		OriginLat: viper.GetFloat64("geo.originLat"),
		CellSize:  viper.GetFloat64("geo.cellSize"),
	}
}

// GetGraylogConfig returns the GELF output configuration
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
