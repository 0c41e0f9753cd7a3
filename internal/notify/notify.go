package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/ParcelDesk/internal/broker/kafka"
	"github.com/BearBump/ParcelDesk/internal/broker/messages"
	"github.com/BearBump/ParcelDesk/internal/models"
)

type Producer interface {
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
}

// Publisher puts package change events on the broker.
// Kafka may not be ready right after startup, so publishes are retried with exponential backoff.
type Publisher struct {
	producer Producer

	maxTries        uint
	initialInterval time.Duration
	now             func() time.Time
}

func New(producer Producer) *Publisher {
	return &Publisher{
		producer:        producer,
		maxTries:        5,
		initialInterval: 150 * time.Millisecond,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) WithRetry(maxTries uint, initial time.Duration) *Publisher {
	if maxTries > 0 {
		p.maxTries = maxTries
	}
	if initial > 0 {
		p.initialInterval = initial
	}
	return p
}

func (p *Publisher) PackageUpdated(ctx context.Context, pkg models.Package, source string) error {
	return p.publish(ctx, messages.NewPackageUpdated(pkg, source))
}

func (p *Publisher) PackageDeleted(ctx context.Context, number string) error {
	return p.publish(ctx, messages.NewPackageDeleted(number, p.now()))
}

func (p *Publisher) publish(ctx context.Context, msg messages.PackageUpdated) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal package updated")
	}

	headers := map[string]string{
		kafka.HeaderContentType: "application/json",
		kafka.HeaderSource:      msg.Source,
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initialInterval

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.producer.Publish(ctx, []byte(msg.TrackingNumber), b, headers)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(p.maxTries))
	if err != nil {
		return errors.Wrap(err, "publish package updated")
	}
	return nil
}
