// Package producer publishes session telemetry to a message broker for the worker to forward.
package producer

import (
	"context"
	"io"

	"continuous-auth/backend/internal/telemetry"
	"continuous-auth/backend/internal/telemetry/domain"
)

// Producer is a telemetry sink that owns a broker connection.
type Producer interface {
	telemetry.EventEmitter
	io.Closer
}

// Open returns a Kafka producer when brokers and topic are both set and a no-op producer
// otherwise. enabled reports which one it returned.
func Open(brokers []string, topic string) (p Producer, enabled bool, err error) {
	k, err := NewKafkaProducer(brokers, topic)
	if err != nil {
		return nil, false, err
	}
	if k == nil {
		return nop{}, false, nil
	}
	return k, true, nil
}

type nop struct{}

func (nop) Emit(context.Context, *domain.Event) error { return nil }
func (nop) Close() error                              { return nil }
