package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// RetrieveTimeout bounds a single datapoint retrieval
	RetrieveTimeout = 60 * time.Second

	// PushTimeout bounds a single push-back of derived datapoints
	PushTimeout = 30 * time.Second

	// RegistryTimeout bounds series registry lookups and creates
	RegistryTimeout = 5 * time.Second

	// ShutdownTimeout is the grace period for the HTTP server on exit
	ShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Buffer and Batch Size Constants
// =============================================================================

const (
	// DefaultBatchSize is the number of datapoints per pushed message or insert batch
	DefaultBatchSize = 1000

	// MaxBatchSize is the maximum allowed batch size
	MaxBatchSize = 10000
)

// =============================================================================
// Queue Type Constants
// =============================================================================

// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream queue (default)
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (for testing)
	QueueTypeMemory QueueType = "memory"
)

// =============================================================================
// Source and Sink Type Constants
// =============================================================================

// SourceType selects where raw datapoints are retrieved from
type SourceType string

const (
	SourceTypeCSV      SourceType = "csv"
	SourceTypeSQLite   SourceType = "sqlite"
	SourceTypePostgres SourceType = "postgres"
)

// SinkType selects where derived datapoints are pushed
type SinkType string

const (
	SinkTypeNone  SinkType = "none"
	SinkTypeQueue SinkType = "queue"
	SinkTypeSQL   SinkType = "sql"
)
