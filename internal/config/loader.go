package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")             // Current directory
		v.AddConfigPath("./configs")     // Project configs directory
		v.AddConfigPath("./config")      // Alternative config directory
		v.AddConfigPath("/etc/tagwatch") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides (TAGWATCH_ANALYSIS_HIGH_ALARM)
	v.SetEnvPrefix("TAGWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 5565)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.body_limit", 16*1024*1024)

	// Analysis defaults
	v.SetDefault("analysis.value_column", "value")
	v.SetDefault("analysis.window", 5)
	v.SetDefault("analysis.low_alarm", 0.0)
	v.SetDefault("analysis.high_alarm", 100.0)
	v.SetDefault("analysis.sample_interval", "1s")
	v.SetDefault("analysis.interval", "1m")
	v.SetDefault("analysis.remove_outliers", false)

	// Source defaults
	v.SetDefault("source.type", "csv")
	v.SetDefault("source.path", "./data")
	v.SetDefault("source.table", "datapoints")
	v.SetDefault("source.timezone", "UTC")

	// Sink defaults
	v.SetDefault("sink.type", "none")
	v.SetDefault("sink.subject_prefix", "tagwatch.datapoints")
	v.SetDefault("sink.batch_size", 1000)

	// Queue defaults
	v.SetDefault("queue.type", "nats")
	v.SetDefault("queue.url", "nats://localhost:4222")
	v.SetDefault("queue.stream", "tagwatch")
	v.SetDefault("queue.subjects", []string{"tagwatch.>"})

	// Registry defaults
	v.SetDefault("registry.type", "memory")
	v.SetDefault("registry.prefix", "/tagwatch/series/")
	v.SetDefault("registry.cache_ttl", "30s")

	// Jobs defaults
	v.SetDefault("jobs.enabled", false)
	v.SetDefault("jobs.subject", "tagwatch.jobs")
	v.SetDefault("jobs.result_subject", "tagwatch.results")
	v.SetDefault("jobs.group", "tagwatch-analyzer")
	v.SetDefault("jobs.max_deliver", 3)
	v.SetDefault("jobs.timeout", "2m")

	// Etcd defaults
	v.SetDefault("etcd.endpoints", []string{"http://localhost:2379"})
	v.SetDefault("etcd.dial_timeout", "5s")

	// Export defaults
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.compress", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			HTTPPort:     5565,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			BodyLimit:    16 * 1024 * 1024,
		},
		Analysis: AnalysisConfig{
			ValueColumn:    "value",
			Window:         5,
			LowAlarm:       0,
			HighAlarm:      100,
			SampleInterval: time.Second,
			Interval:       "1m",
		},
		Source: SourceConfig{
			Type:     "csv",
			Path:     "./data",
			Table:    "datapoints",
			Timezone: "UTC",
		},
		Sink: SinkConfig{
			Type:          "none",
			SubjectPrefix: "tagwatch.datapoints",
			BatchSize:     1000,
		},
		Queue: QueueConfig{
			Type:     "nats",
			URL:      "nats://localhost:4222",
			Stream:   "tagwatch",
			Subjects: []string{"tagwatch.>"},
		},
		Jobs: JobsConfig{
			Subject:       "tagwatch.jobs",
			ResultSubject: "tagwatch.results",
			Group:         "tagwatch-analyzer",
			MaxDeliver:    3,
			Timeout:       2 * time.Minute,
		},
		Registry: RegistryConfig{
			Type:     "memory",
			Prefix:   "/tagwatch/series/",
			CacheTTL: 30 * time.Second,
		},
		Etcd: EtcdConfig{
			Endpoints:   []string{"http://localhost:2379"},
			DialTimeout: 5 * time.Second,
		},
		Export: ExportConfig{
			Dir: ".",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
