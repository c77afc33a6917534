package subscriber

import (
	"fmt"
	"strings"

	"github.com/soltixdb/tagwatch/internal/config"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/utils"
)

// New creates a Subscriber for the configured queue backend.
// Default is NATS if type is not specified
func New(qcfg config.QueueConfig, cfg Config, logger *logging.Logger) (Subscriber, error) {
	cfg = cfg.withDefaults()
	queueType := utils.QueueType(strings.ToLower(qcfg.Type))

	// Default to NATS if not specified
	if queueType == "" {
		queueType = utils.QueueTypeNATS
	}

	switch queueType {
	case utils.QueueTypeNATS:
		return NewNATSSubscriber(NATSConfig{
			URL:      qcfg.URL,
			Username: qcfg.Username,
			Password: qcfg.Password,
		}, cfg, logger)

	case utils.QueueTypeRedis:
		return NewRedisSubscriber(RedisConfig{
			URL:      qcfg.URL,
			Password: qcfg.Password,
			DB:       qcfg.RedisDB,
			Stream:   qcfg.Stream,
		}, cfg, logger)

	case utils.QueueTypeKafka:
		return NewKafkaSubscriber(qcfg.KafkaBrokers, cfg, logger)

	case utils.QueueTypeMemory:
		return NewMemorySubscriber(cfg, logger), nil

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: nats, redis, kafka, memory)", queueType)
	}
}
