// Package kafka streams audit events to a Kafka topic through a sarama
// AsyncProducer.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/heartnote/authcore/internal/audit"
	"go.uber.org/zap"
)

// Sink publishes each audit event as a JSON message keyed by user ID (or
// identity when the user is unknown), so one account's events stay ordered
// within a partition.
type Sink struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *zap.Logger
	failed   atomic.Uint64
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

var _ audit.Sink = (*Sink)(nil)

// NewProducerConfig returns the producer settings used by Dial.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 100 * time.Millisecond
	cfg.Producer.Flush.Messages = 100
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Metadata.Retry.Max = 3
	cfg.Metadata.Retry.Backoff = 250 * time.Millisecond
	return cfg
}

// Dial connects an async producer to brokers.
func Dial(brokers []string, topic string, logger *zap.Logger) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka audit sink requires at least one broker")
	}
	producer, err := sarama.NewAsyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewSink(producer, topic, logger), nil
}

// NewSink wraps an existing producer. The sink owns it from here on.
func NewSink(producer sarama.AsyncProducer, topic string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sink{
		producer: producer,
		topic:    topic,
		logger:   logger.Named("audit.kafka"),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.handleErrors()
	return s
}

func (s *Sink) handleErrors() {
	defer s.wg.Done()
	for {
		select {
		case perr, ok := <-s.producer.Errors():
			if !ok {
				return
			}
			if perr == nil {
				continue
			}
			s.failed.Add(1)
			s.logger.Error("audit publish failed",
				zap.Error(perr.Err),
				zap.String("topic", perr.Msg.Topic),
			)
		case <-s.done:
			return
		}
	}
}

// Emit enqueues event on the producer. It gives up when ctx ends.
func (s *Sink) Emit(ctx context.Context, event audit.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.failed.Add(1)
		return
	}

	key := event.UserID
	if key == "" {
		key = event.Identity
	}
	msg := &sarama.ProducerMessage{
		Topic:     s.topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: event.Timestamp,
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
		},
	}

	select {
	case s.producer.Input() <- msg:
	case <-ctx.Done():
		s.failed.Add(1)
	case <-s.done:
	}
}

// Failed counts events that were not handed to Kafka or that Kafka rejected.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

// Close flushes pending messages and stops the producer.
func (s *Sink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		if cerr := s.producer.Close(); cerr != nil {
			err = fmt.Errorf("close kafka producer: %w", cerr)
		}
	})
	return err
}
