package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SyncEvent is the message published after every sync run so downstream
// consumers (analytics, notifications) can react without polling.
type SyncEvent struct {
	RunID             string    `json:"run_id"`
	UserID            string    `json:"user_id"`
	Exchange          string    `json:"exchange"`
	Success           bool      `json:"success"`
	TotalOrders       int       `json:"total_orders"`
	TotalTransactions int       `json:"total_transactions"`
	TotalSynced       int       `json:"total_synced"`
	FinishedAt        time.Time `json:"finished_at"`
}

// SyncEventProducer defines the interface for publishing sync events
type SyncEventProducer interface {
	PublishSyncEvent(ctx context.Context, event *SyncEvent) error
	Close() error
}

// KafkaSyncProducer implements SyncEventProducer using Kafka
type KafkaSyncProducer struct {
	writer *kafka.Writer
}

// NewKafkaSyncProducer creates a new Kafka producer for sync events
func NewKafkaSyncProducer(config KafkaConfig) *KafkaSyncProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{}, // events for the same user go to the same partition
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaSyncProducer{writer: writer}
}

var _ SyncEventProducer = (*KafkaSyncProducer)(nil)

// PublishSyncEvent sends one sync event to Kafka, keyed by user id.
func (p *KafkaSyncProducer) PublishSyncEvent(ctx context.Context, event *SyncEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: data,
		Time:  time.Now(),
	})
}

// Close closes the producer
func (p *KafkaSyncProducer) Close() error {
	return p.writer.Close()
}

// EventFromSummary converts a finished run into its published form.
func EventFromSummary(sum *model.SyncSummary) *SyncEvent {
	return &SyncEvent{
		RunID:             sum.RunID,
		UserID:            sum.UserID,
		Exchange:          sum.Exchange,
		Success:           sum.Success(),
		TotalOrders:       sum.Orders.DataCount,
		TotalTransactions: sum.Transactions.DataCount,
		TotalSynced:       sum.TotalSynced(),
		FinishedAt:        sum.FinishedAt,
	}
}
