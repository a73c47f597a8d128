package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "auv_analyzer.cfg.json"

// ErrNoConfigFile is returned by Load when the config file is absent.
// Defaults and environment overrides still apply.
var ErrNoConfigFile = errors.New("config file not found")

// AnalysisConfig holds trajectory and alignment settings
type AnalysisConfig struct {
	GapThreshold      time.Duration `json:"gapThreshold" mapstructure:"gapThreshold"`
	AlignMode         string        `json:"alignMode" mapstructure:"alignMode"`
	TimeBasis         string        `json:"timeBasis" mapstructure:"timeBasis"`
	TimeTolerance     time.Duration `json:"timeTolerance" mapstructure:"timeTolerance"`
	DistanceTolerance float64       `json:"distanceTolerance" mapstructure:"distanceTolerance"`
	SpatialTolerance  float64       `json:"spatialTolerance" mapstructure:"spatialTolerance"`
	Interpolate       bool          `json:"interpolate" mapstructure:"interpolate"`
	ResampleInterval  float64       `json:"resampleInterval" mapstructure:"resampleInterval"`
}

// FileConfig holds JSON/CSV report file settings
type FileConfig struct {
	CompressOutput bool `json:"compressOutput" mapstructure:"compressOutput"`
	WriteCSV       bool `json:"writeCSV" mapstructure:"writeCSV"`
}

// SQLiteConfig holds SQLite report settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// StorageConfig holds report sink settings
type StorageConfig struct {
	Types     []string     `json:"types" mapstructure:"types"`
	OutputDir string       `json:"outputDir" mapstructure:"outputDir"`
	File      FileConfig   `json:"file" mapstructure:"file"`
	SQLite    SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./auvlogs")
	viper.SetDefault("sessionsRoot", "..")
	viper.SetDefault("outputDir", ".")
	viper.SetDefault("workers", 4)

	viper.SetDefault("analysis.gapThreshold", "10s")
	viper.SetDefault("analysis.alignMode", "time")
	viper.SetDefault("analysis.timeBasis", "elapsed")
	viper.SetDefault("analysis.timeTolerance", "5s")
	viper.SetDefault("analysis.distanceTolerance", 5.0)
	viper.SetDefault("analysis.spatialTolerance", 0.0)
	viper.SetDefault("analysis.interpolate", true)
	viper.SetDefault("analysis.resampleInterval", 0.0)

	viper.SetDefault("storage.types", []string{"file"})
	viper.SetDefault("storage.file.compressOutput", false)
	viper.SetDefault("storage.file.writeCSV", true)
	viper.SetDefault("storage.sqlite.path", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "auv")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "auv-analyzer")
	viper.SetDefault("influx.bucket", "auv_missions")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
	viper.SetDefault("graylog.level", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "auv-analyzer")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)
}

// Load sets default values, applies a .env file and AUV_ environment
// overrides, then reads the JSON config file from configDir. A missing
// config file returns ErrNoConfigFile; the rest of the configuration is
// still usable.
func Load(configDir string) error {
	SetDefaults()

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error reading .env file: %w", err)
	}
	viper.SetEnvPrefix("AUV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%s in %s: %w", FileName, configDir, ErrNoConfigFile)
		}
		return fmt.Errorf("error reading config file: %v", err)
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

// GetAnalysisConfig returns the analysis settings.
func GetAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		GapThreshold:      viper.GetDuration("analysis.gapThreshold"),
		AlignMode:         viper.GetString("analysis.alignMode"),
		TimeBasis:         viper.GetString("analysis.timeBasis"),
		TimeTolerance:     viper.GetDuration("analysis.timeTolerance"),
		DistanceTolerance: viper.GetFloat64("analysis.distanceTolerance"),
		SpatialTolerance:  viper.GetFloat64("analysis.spatialTolerance"),
		Interpolate:       viper.GetBool("analysis.interpolate"),
		ResampleInterval:  viper.GetFloat64("analysis.resampleInterval"),
	}
}

// GetStorageConfig returns the report sink settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Types:     viper.GetStringSlice("storage.types"),
		OutputDir: viper.GetString("outputDir"),
		File: FileConfig{
			CompressOutput: viper.GetBool("storage.file.compressOutput"),
			WriteCSV:       viper.GetBool("storage.file.writeCSV"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
