package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/treedupe/tdupe"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	TreeDupe TreeDupeConfig `mapstructure:"treedupe"`
}

// DatabaseConfig stores results database connection details.
type DatabaseConfig struct {
	DSN  string `mapstructure:"dsn"`
	Type string `mapstructure:"type"`
}

// ScanConfig stores traversal behaviour for the enumeration and count pass.
// Symlinked directories are never followed, so a file is enumerated at most
// once per root.
type ScanConfig struct {
	IncludeHidden bool `mapstructure:"includeHidden"`
	Workers       int  `mapstructure:"workers"`
}

// TreeDupeConfig stores treedupe specific configurations.
type TreeDupeConfig struct {
	Paths      []string       `mapstructure:"paths"`
	Scan       ScanConfig     `mapstructure:"scan"`
	Database   DatabaseConfig `mapstructure:"database"`
	ReportPath string         `mapstructure:"reportPath"`
	CacheDir   string         `mapstructure:"cacheDir"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("..")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("treedupe.paths", []string{"."})
	viper.SetDefault("treedupe.scan.includeHidden", false)
	viper.SetDefault("treedupe.scan.workers", 0)
	viper.SetDefault("treedupe.cacheDir", internal.DefaultCacheDir)
	viper.SetDefault("treedupe.database.dsn", internal.DefaultDatabaseDSN)
	viper.SetDefault("treedupe.database.type", internal.DefaultDatabaseType)
	viper.SetDefault("treedupe.reportPath", "")

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g. treedupe.scan.includeHidden becomes TREEDUPE_SCAN_INCLUDEHIDDEN

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults will be used.
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
