package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taxirn/internal/shared/config"
	"taxirn/internal/shared/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrChannelUnavailable — канал закрыт или еще не открыт
var ErrChannelUnavailable = errors.New("rabbitmq channel not available")

const (
	maxConnectAttempts = 10
	maxRetryDelay      = 30 * time.Second
	publishTimeout     = 5 * time.Second
)

// RabbitMQ — подключение к брокеру и один канал для публикации
type RabbitMQ struct {
	url    string
	conn   *amqp.Connection
	ch     *amqp.Channel
	log    *logger.Logger
	mu     sync.RWMutex
	closed bool
}

// NewRabbitMQ подключается к брокеру с повторными попытками (задержка x1.5, максимум 30s)
func NewRabbitMQ(ctx context.Context, cfg config.MQConfig, log *logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{url: cfg.AMQPURL(), log: log}

	delay := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		if lastErr = r.connect(); lastErr == nil {
			log.Info(logger.Entry{
				Action:     "rabbitmq_connected",
				Message:    fmt.Sprintf("connected to %s:%d", cfg.Host, cfg.Port),
				Additional: map[string]any{"attempt": attempt},
			})
			return r, nil
		}

		log.Warn(logger.Entry{
			Action:  "rabbitmq_connection_attempt_failed",
			Message: lastErr.Error(),
			Additional: map[string]any{
				"attempt":      attempt,
				"max_attempts": maxConnectAttempts,
				"retry_in_sec": delay.Seconds(),
			},
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(time.Duration(float64(delay)*1.5), maxRetryDelay)
	}

	return nil, fmt.Errorf("connect rabbitmq after %d attempts: %w", maxConnectAttempts, lastErr)
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	r.mu.Lock()
	r.conn, r.ch = conn, ch
	r.mu.Unlock()
	return nil
}

// Channel возвращает активный канал (nil если соединение закрыто)
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ch
}

// Publish публикует persistent JSON сообщение в exchange
func (r *RabbitMQ) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	ch := r.Channel()
	if ch == nil {
		return ErrChannelUnavailable
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return ch.PublishWithContext(publishCtx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
}

// Consume читает очередь с ручным ack; handler вызывается последовательно
// в отдельной горутине до отмены ctx или закрытия канала
func (r *RabbitMQ) Consume(ctx context.Context, queue, consumer string, handler func(amqp.Delivery)) error {
	ch := r.Channel()
	if ch == nil {
		return ErrChannelUnavailable
	}

	msgs, err := ch.Consume(
		queue,
		consumer,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	r.log.Info(logger.Entry{
		Action:  "consumer_started",
		Message: fmt.Sprintf("consuming from queue: %s", queue),
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					r.log.Info(logger.Entry{Action: "consumer_stopped", Message: queue})
					return
				}
				handler(msg)
			}
		}
	}()
	return nil
}

// Close закрывает канал и соединение; повторный вызов безопасен
func (r *RabbitMQ) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	if r.ch != nil {
		_ = r.ch.Close()
		r.ch = nil
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.log.Info(logger.Entry{Action: "rabbitmq_closed", Message: "connection closed"})
}
