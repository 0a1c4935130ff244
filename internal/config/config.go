// Package config provides configuration management for vclustersim.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for a simulation run.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Placement  PlacementConfig  `mapstructure:"placement"`
	Workload   WorkloadConfig   `mapstructure:"workload"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SimulationConfig describes the simulated datacenter.
type SimulationConfig struct {
	Hosts              int     `mapstructure:"hosts"`
	PesPerHost         int     `mapstructure:"pes_per_host"`
	HostMemoryMiB      int64   `mapstructure:"host_memory_mib"`
	HostBandwidthMbps  int64   `mapstructure:"host_bandwidth_mbps"`
	HostStorageMiB     int64   `mapstructure:"host_storage_mib"`
	VMDestructionDelay float64 `mapstructure:"vm_destruction_delay"`

	// LevelFilter restricts the workload to VMs declaring one
	// oversubscription level; zero disables the filter.
	LevelFilter float64 `mapstructure:"level_filter"`
}

// CatalogConfig holds the oversubscription-level template.
type CatalogConfig struct {
	Levels []float64 `mapstructure:"levels"`
}

// SchedulerConfig tunes the PE scheduler.
type SchedulerConfig struct {
	// CriticalSize is the minimum distinct-consumer count for pooling math.
	CriticalSize int `mapstructure:"critical_size"`

	// MigrationOverhead is the fraction of CPU withheld from migrating VMs,
	// in [0, 1].
	MigrationOverhead float64 `mapstructure:"migration_overhead"`
}

// PlacementConfig tunes the placement policy.
type PlacementConfig struct {
	FirstFit bool `mapstructure:"first_fit"`
}

// WorkloadConfig points at the CloudFactory workload files.
type WorkloadConfig struct {
	VMsFile    string `mapstructure:"vms_file"`
	ModelsFile string `mapstructure:"models_file"`
}

// DatabaseConfig holds optional PostgreSQL result persistence.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("VCLUSTERSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Simulation: one 64-core host with 256 GiB, the CloudFactory default.
	v.SetDefault("simulation.hosts", 1)
	v.SetDefault("simulation.pes_per_host", 64)
	v.SetDefault("simulation.host_memory_mib", 256*1024)
	v.SetDefault("simulation.host_bandwidth_mbps", 100*1024)
	v.SetDefault("simulation.host_storage_mib", 10*1024*1024)
	v.SetDefault("simulation.vm_destruction_delay", 10.0)
	v.SetDefault("simulation.level_filter", 0.0)

	// Catalog: 16 levels, 1.0 ... 16.0.
	levels := make([]float64, 16)
	for i := range levels {
		levels[i] = float64(i + 1)
	}
	v.SetDefault("catalog.levels", levels)

	// Scheduler
	v.SetDefault("scheduler.critical_size", 2)
	v.SetDefault("scheduler.migration_overhead", 0.1)

	// Placement
	v.SetDefault("placement.first_fit", false)

	// Workload
	v.SetDefault("workload.vms_file", "vms.properties")
	v.SetDefault("workload.models_file", "models.properties")

	// Database (disabled unless a sweep wants persisted results)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "vclustersim")
	v.SetDefault("database.user", "vclustersim")
	v.SetDefault("database.password", "vclustersim")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}
