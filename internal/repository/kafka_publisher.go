package repository

import (
	"context"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	pkgkafka "github.com/jam2205/TradingView-Screener/pkg/kafka"
)

// KafkaPublisher emits collected snapshots onto a topic, keyed by dataset so
// snapshots of the same dataset keep their order within a partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	return p.producer.Publish(ctx, p.topic, []byte(snap.Dataset), snap)
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }

var _ drepo.SnapshotPublisher = (*KafkaPublisher)(nil)
