// internal/services/queue_service.go
// RabbitMQ 發送結果事件服務

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
)

// amqpChannel QueueService 使用到的 channel 方法
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// QueueService RabbitMQ 發送結果事件服務
// 每次發送嘗試發布一則事件，供下游報表使用
type QueueService struct {
	queueName string
	conn      *amqp.Connection
	channel   amqpChannel
	mu        sync.Mutex
}

// NewQueueService 建立隊列服務
func NewQueueService(cfg *config.Config) (*QueueService, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// 宣告結果隊列
	if _, err := channel.QueueDeclare(
		cfg.OutcomeQueueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare outcome queue: %w", err)
	}

	return &QueueService{
		queueName: cfg.OutcomeQueueName,
		conn:      conn,
		channel:   channel,
	}, nil
}

// newQueueServiceWithChannel 使用既有 channel 建立 (測試用)
func newQueueServiceWithChannel(queueName string, channel amqpChannel) *QueueService {
	return &QueueService{queueName: queueName, channel: channel}
}

// Record 發布發送結果事件 (實作 OutcomeRecorder)
func (s *QueueService) Record(ctx context.Context, attempt *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}

	return s.channel.PublishWithContext(
		ctx,
		"",          // exchange
		s.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         string(attempt.Status),
			Body:         body,
		},
	)
}

// Close 關閉連接
func (s *QueueService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
