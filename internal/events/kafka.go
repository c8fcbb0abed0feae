package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaBus publishes completion events to a Kafka topic keyed by ticket id
// and consumes them through a consumer group.
type KafkaBus struct {
	cfg    KafkaConfig
	writer *kafka.Writer

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	readers []*kafka.Reader
}

func NewKafkaBus(cfg KafkaConfig) *KafkaBus {
	ctx, cancel := context.WithCancel(context.Background())

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaBus{
		cfg:    cfg,
		writer: writer,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *KafkaBus) Publish(ctx context.Context, evt *TicketCompleted) error {
	msg, err := encodeMessage(evt)
	if err != nil {
		return err
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish ticket completed %s: %w", evt.TicketID, err)
	}
	return nil
}

func (b *KafkaBus) Subscribe(h Handler) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.cfg.Brokers,
		Topic:    b.cfg.Topic,
		GroupID:  b.cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	b.mu.Lock()
	b.readers = append(b.readers, reader)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(reader, h)
	}()
}

func (b *KafkaBus) consume(reader *kafka.Reader, h Handler) {
	for {
		m, err := reader.FetchMessage(b.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || b.ctx.Err() != nil {
				return
			}
			slog.Error("Failed to fetch ticket event", "error", err, "topic", b.cfg.Topic)
			time.Sleep(time.Second)
			continue
		}

		evt, err := decodeMessage(m)
		if err != nil {
			slog.Error("Dropping malformed ticket event", "error", err, "partition", m.Partition, "offset", m.Offset)
		} else if err := h(b.ctx, evt); err != nil {
			slog.Error("Failed to handle ticket completed event",
				"error", err, "ticket_id", evt.TicketID, "offset", m.Offset)
		}

		if err := reader.CommitMessages(b.ctx, m); err != nil && b.ctx.Err() == nil {
			slog.Error("Failed to commit ticket event", "error", err, "offset", m.Offset)
		}
	}
}

func (b *KafkaBus) Close() error {
	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, r := range b.readers {
		errs = append(errs, r.Close())
	}
	errs = append(errs, b.writer.Close())
	return errors.Join(errs...)
}

func encodeMessage(evt *TicketCompleted) (kafka.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode ticket completed: %w", err)
	}
	return kafka.Message{
		Key:   []byte(evt.TicketID),
		Value: data,
		Time:  evt.CompletedAt,
	}, nil
}

func decodeMessage(m kafka.Message) (*TicketCompleted, error) {
	var evt TicketCompleted
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		return nil, fmt.Errorf("decode ticket completed: %w", err)
	}
	if evt.TicketID == "" {
		return nil, errors.New("decode ticket completed: missing ticket id")
	}
	return &evt, nil
}
