package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Record is one feed message handed to a consumer handler.
type Record struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Time      time.Time
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	// GroupID enables committed offsets. Without a group the consumer tails
	// partition 0 and never commits.
	GroupID string
	// FromStart replays the retained feed instead of starting at the end.
	FromStart bool
}

type Consumer struct {
	r      messageReader
	commit bool
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	start := kafka.LastOffset
	if cfg.FromStart {
		start = kafka.FirstOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             cfg.Topic,
		GroupID:           cfg.GroupID,
		StartOffset:       start,
		MaxWait:           time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	})
	if cfg.GroupID == "" {
		_ = r.SetOffset(start)
	}
	return &Consumer{r: r, commit: cfg.GroupID != ""}
}

func newConsumerWithReader(r messageReader, commit bool) *Consumer {
	return &Consumer{r: r, commit: commit}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume hands every message to handle until fetching fails or handle returns an error.
// With a group, offsets are committed only after handle succeeded.
func (c *Consumer) Consume(ctx context.Context, handle func(context.Context, Record) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := handle(ctx, toRecord(msg)); err != nil {
			return errors.Wrapf(err, "handle offset %d", msg.Offset)
		}
		if !c.commit {
			continue
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

func toRecord(msg kafka.Message) Record {
	rec := Record{
		Key:       msg.Key,
		Value:     msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Time:      msg.Time,
	}
	if len(msg.Headers) > 0 {
		rec.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			rec.Headers[h.Key] = string(h.Value)
		}
	}
	return rec
}
