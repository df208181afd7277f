package queue

import (
	"fmt"
	"log/slog"

	"github.com/cuongbtq/vendor-jobs/internal/config"
	"github.com/cuongbtq/vendor-jobs/shared/rabbitmq"
	"github.com/redis/go-redis/v9"
)

// New builds the queue backend selected by cfg.Queue.Backend
func New(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (Queue, error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendRedis, "":
		logger.Info("Using Redis job queue", slog.String("key", cfg.Queue.Name))
		return NewRedisQueue(rdb, cfg.Queue.Name, logger), nil

	case config.QueueBackendRabbitMQ:
		client, err := rabbitmq.NewClient(rabbitMQConfig(&cfg.RabbitMQ), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RabbitMQ queue: %w", err)
		}
		logger.Info("Using RabbitMQ job queue", slog.String("queue", cfg.RabbitMQ.Queue.Name))
		return NewRabbitMQQueue(client, logger), nil
	}

	return nil, fmt.Errorf("unknown queue backend: %q", cfg.Queue.Backend)
}

func rabbitMQConfig(c *config.RabbitMQConfig) *rabbitmq.Config {
	exchangeType := c.Exchange.Type
	if exchangeType == "" {
		exchangeType = "direct"
	}

	return &rabbitmq.Config{
		Host:               c.Host,
		Port:               c.Port,
		User:               c.User,
		Password:           c.Password,
		VHost:              c.VHost,
		ExchangeName:       c.Exchange.Name,
		ExchangeType:       exchangeType,
		ExchangeDurable:    c.Exchange.Durable,
		ExchangeAutoDelete: c.Exchange.AutoDelete,
		QueueName:          c.Queue.Name,
		QueueDurable:       c.Queue.Durable,
		QueueAutoDelete:    c.Queue.AutoDelete,
		QueueExclusive:     c.Queue.Exclusive,
		RoutingKey:         c.RoutingKey,
		RetryAttempts:      c.Connection.RetryAttempts,
		RetryInterval:      c.Connection.RetryInterval,
		Heartbeat:          c.Connection.Heartbeat,
		ConnectionTimeout:  c.Connection.ConnectionTimeout,
		PublishRetries:     c.Publish.RetryAttempts,
		PublishRetryDelay:  c.Publish.RetryInterval,
		PublishBackoffMult: c.Publish.BackoffMultiplier,
	}
}
