package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Source   SourceConfig   `mapstructure:"source"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Registry RegistryConfig `mapstructure:"registry"`
	Etcd     EtcdConfig     `mapstructure:"etcd"`
	Export   ExportConfig   `mapstructure:"export"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`      // Bind address for server (e.g., 0.0.0.0 for all interfaces)
	HTTPPort     int           `mapstructure:"http_port"` // HTTP server port
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"` // Max request body in bytes
}

// AnalysisConfig holds the per-tag pipeline defaults
type AnalysisConfig struct {
	ValueColumn    string        `mapstructure:"value_column"`
	Window         int           `mapstructure:"window"`          // Trailing window for rolling features (default: 5)
	LowAlarm       float64       `mapstructure:"low_alarm"`       // Values strictly below raise Low Alarm
	HighAlarm      float64       `mapstructure:"high_alarm"`      // Values strictly above raise High Alarm
	SampleInterval time.Duration `mapstructure:"sample_interval"` // Row spacing used to turn slopes into per-second rates
	Interval       string        `mapstructure:"interval"`        // Expected sampling interval for gap analysis ("1m", "PT5M")
	RemoveOutliers bool          `mapstructure:"remove_outliers"` // Drop rows outside the Tukey fences before analysis
	FillMethod     string        `mapstructure:"fill_method"`     // Interpolation: time, linear, ffill, bfill, or empty to skip
	ImputeMethod   string        `mapstructure:"impute_method"`   // Imputation: mean, median, mad, or empty to skip
}

// SourceConfig selects where raw datapoints come from
type SourceConfig struct {
	Type     string `mapstructure:"type"`     // csv (default), sqlite, postgres
	Path     string `mapstructure:"path"`     // Directory of <tag>.csv files for the csv source
	DSN      string `mapstructure:"dsn"`      // Connection string for sql sources
	Table    string `mapstructure:"table"`    // Datapoint table for sql sources (default: datapoints)
	Timezone string `mapstructure:"timezone"` // Zone for timestamps without offset (e.g., "Asia/Tokyo", "+09:00", "UTC")
}

// SinkConfig selects where derived datapoints are pushed
type SinkConfig struct {
	Type          string `mapstructure:"type"`           // none (default), queue, sql
	SubjectPrefix string `mapstructure:"subject_prefix"` // Queue subject prefix (default: tagwatch.datapoints)
	BatchSize     int    `mapstructure:"batch_size"`     // Datapoints per message or insert batch
}

// QueueConfig represents message queue configuration
type QueueConfig struct {
	Type     string `mapstructure:"type"`     // Queue type: nats (default), redis, kafka, memory
	URL      string `mapstructure:"url"`      // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication

	// Stream is the NATS JetStream stream name and the Redis stream key prefix
	Stream   string   `mapstructure:"stream"`   // default: "tagwatch"
	Subjects []string `mapstructure:"subjects"` // Subjects bound to the NATS stream (default: "tagwatch.>")

	// Redis-specific options
	RedisDB int `mapstructure:"redis_db"` // Redis database number (default: 0)

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"` // Kafka broker addresses
}

// JobsConfig controls the queue-driven analysis worker
type JobsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Subject       string        `mapstructure:"subject"`        // Subject jobs are read from (default: tagwatch.jobs)
	ResultSubject string        `mapstructure:"result_subject"` // Subject results are published to (default: tagwatch.results)
	Group         string        `mapstructure:"group"`          // Consumer group shared by analyzer instances
	Consumer      string        `mapstructure:"consumer"`       // Consumer name within the group (default: hostname)
	MaxDeliver    int           `mapstructure:"max_deliver"`    // Delivery attempts before a job is dropped
	Timeout       time.Duration `mapstructure:"timeout"`        // Per-job deadline
}

// RegistryConfig selects the series registry backend
type RegistryConfig struct {
	Type     string        `mapstructure:"type"`      // memory (default), etcd
	Prefix   string        `mapstructure:"prefix"`    // Key prefix in etcd (default: /tagwatch/series/)
	CacheTTL time.Duration `mapstructure:"cache_ttl"` // Local cache TTL for etcd lookups
}

// EtcdConfig represents etcd configuration
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// ExportConfig controls where cleaned tables are written
type ExportConfig struct {
	Dir      string `mapstructure:"dir"`       // Local directory or s3://bucket/prefix
	Compress bool   `mapstructure:"compress"`  // Snappy-frame the CSV (.sz)
	S3Region string `mapstructure:"s3_region"` // Region for s3:// destinations
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, UnixMs, etc
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source config: %w", err)
	}

	if err := c.Sink.Validate(c.Source); err != nil {
		return fmt.Errorf("sink config: %w", err)
	}

	if c.Jobs.Enabled {
		if err := c.Jobs.Validate(); err != nil {
			return fmt.Errorf("jobs config: %w", err)
		}
	}

	if c.Registry.Type == "etcd" {
		if err := c.Etcd.Validate(); err != nil {
			return fmt.Errorf("etcd config: %w", err)
		}
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	return nil
}

// Validate validates analysis configuration
func (c *AnalysisConfig) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("analysis.window must be at least 1")
	}

	if c.LowAlarm > c.HighAlarm {
		return fmt.Errorf("analysis.low_alarm (%v) cannot exceed analysis.high_alarm (%v)", c.LowAlarm, c.HighAlarm)
	}

	if c.SampleInterval <= 0 {
		return fmt.Errorf("analysis.sample_interval must be positive")
	}

	validFill := map[string]bool{"": true, "time": true, "linear": true, "ffill": true, "bfill": true}
	if !validFill[c.FillMethod] {
		return fmt.Errorf("analysis.fill_method must be one of: time, linear, ffill, bfill")
	}

	validImpute := map[string]bool{"": true, "mean": true, "median": true, "mad": true}
	if !validImpute[c.ImputeMethod] {
		return fmt.Errorf("analysis.impute_method must be one of: mean, median, mad")
	}

	return nil
}

// Validate validates source configuration
func (c *SourceConfig) Validate() error {
	switch c.Type {
	case "csv":
		if c.Path == "" {
			return fmt.Errorf("source.path is required for csv source")
		}
	case "sqlite", "postgres":
		if c.DSN == "" {
			return fmt.Errorf("source.dsn is required for %s source", c.Type)
		}
	default:
		return fmt.Errorf("source.type must be one of: csv, sqlite, postgres")
	}

	return nil
}

// Validate validates sink configuration. A sql sink writes to the source database.
func (c *SinkConfig) Validate(source SourceConfig) error {
	switch c.Type {
	case "none", "queue":
	case "sql":
		if source.Type != "sqlite" && source.Type != "postgres" {
			return fmt.Errorf("sink.type sql requires a sqlite or postgres source")
		}
	default:
		return fmt.Errorf("sink.type must be one of: none, queue, sql")
	}

	if c.BatchSize < 0 {
		return fmt.Errorf("sink.batch_size cannot be negative")
	}

	return nil
}

// Validate validates jobs configuration
func (c *JobsConfig) Validate() error {
	if c.Subject == "" || c.ResultSubject == "" {
		return fmt.Errorf("jobs.subject and jobs.result_subject are required")
	}

	if c.Subject == c.ResultSubject {
		return fmt.Errorf("jobs.result_subject must differ from jobs.subject")
	}

	if c.MaxDeliver < 1 {
		return fmt.Errorf("jobs.max_deliver must be at least 1")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("jobs.timeout must be positive")
	}

	return nil
}

// Validate validates etcd configuration
func (c *EtcdConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd.endpoints is required")
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("etcd.dial_timeout must be positive")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
