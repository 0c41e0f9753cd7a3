package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/ParcelDesk/config"
	"github.com/BearBump/ParcelDesk/internal/broker/kafka"
	"github.com/BearBump/ParcelDesk/internal/carriers"
	"github.com/BearBump/ParcelDesk/internal/freshness"
	"github.com/BearBump/ParcelDesk/internal/httpclient"
	"github.com/BearBump/ParcelDesk/internal/integrations/track17"
	"github.com/BearBump/ParcelDesk/internal/integrations/track17/fake"
	"github.com/BearBump/ParcelDesk/internal/logger"
	"github.com/BearBump/ParcelDesk/internal/metrics"
	"github.com/BearBump/ParcelDesk/internal/notify"
	"github.com/BearBump/ParcelDesk/internal/ratelimit"
	"github.com/BearBump/ParcelDesk/internal/services/syncer"
	"github.com/BearBump/ParcelDesk/internal/storage"
	"github.com/BearBump/ParcelDesk/internal/storage/badgerstore"
	"github.com/BearBump/ParcelDesk/internal/storage/pgstore"
	"github.com/BearBump/ParcelDesk/internal/storage/redisstore"
	"github.com/BearBump/ParcelDesk/internal/storage/sqlitestore"
)

type producer interface {
	notify.Producer
	Close() error
}

type feedConsumer interface {
	Consume(ctx context.Context, handle func(context.Context, kafka.Record) error) error
	Close() error
}

// factories lets tests swap the outside world.
type factories struct {
	openStore   func(cfg *config.Config) (storage.Store, error)
	newRemote   func(cfg *config.Config, q *ratelimit.Queue, rec *metrics.Recorder) syncer.Remote
	newProducer func(cfg *config.Config) producer
	newConsumer func(cfg *config.Config, fromStart bool) feedConsumer
}

func defaultFactories() factories {
	return factories{
		openStore: openStore,
		newRemote: newRemote,
		newProducer: func(cfg *config.Config) producer {
			return kafka.NewProducer(cfg.KafkaBrokers(), cfg.Kafka.PackageUpdatedTopicName)
		},
		newConsumer: func(cfg *config.Config, fromStart bool) feedConsumer {
			return kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:   cfg.KafkaBrokers(),
				Topic:     cfg.Kafka.PackageUpdatedTopicName,
				GroupID:   cfg.Kafka.ConsumerGroup,
				FromStart: fromStart,
			})
		},
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		st, err := sqlitestore.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "badger":
		st, err := badgerstore.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "redis":
		st := redisstore.New(cfg.RedisAddr())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := pgstore.New(cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// newRemote talks to the configured proxy, or to the in-memory demo remote when there is none.
func newRemote(cfg *config.Config, q *ratelimit.Queue, rec *metrics.Recorder) syncer.Remote {
	if cfg.Track17.BaseURL == "" {
		logger.Get().Info("no track17 base_url configured, using the demo remote")
		return fake.New().WithQueue(q)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if cfg.Track17.Token != "" {
		headers["17token"] = cfg.Track17.Token
	}
	httpc := httpclient.NewClient(time.Duration(cfg.Track17.TimeoutSeconds)*time.Second, headers)
	return track17.New(cfg.Track17.BaseURL, httpc, q).WithRecorder(rec)
}

type deps struct {
	store    storage.Store
	queue    *ratelimit.Queue
	metrics  *metrics.Recorder
	carriers *carriers.Directory
	dash     *syncer.Dashboard
	closers  []func() error
}

func bootstrap(cfg *config.Config, f factories) (*deps, error) {
	dir, err := carriers.Load(cfg.Carriers.Path)
	if err != nil {
		return nil, errors.Wrap(err, "load carriers")
	}

	st, err := f.openStore(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", cfg.Storage.Driver)
	}
	d := &deps{
		store:    st,
		metrics:  metrics.New(),
		carriers: dir,
		closers:  []func() error{st.Close},
	}

	d.queue = ratelimit.NewQueue(time.Duration(cfg.Track17.RequestIntervalMs) * time.Millisecond).
		WithWaitObserver(d.metrics.ObserveQueueWait)
	if cfg.Redis.QuotaPerMinute > 0 {
		quota := redisstore.NewQuota(cfg.RedisAddr())
		d.queue.WithGate(quota, "", int64(cfg.Redis.QuotaPerMinute))
		d.closers = append(d.closers, quota.Close)
	}
	d.closers = append(d.closers, func() error {
		d.queue.Close()
		return nil
	})

	remote := f.newRemote(cfg, d.queue, d.metrics)
	d.dash = syncer.NewDashboard(st, remote, freshness.New(time.Duration(cfg.Cache.TTLSeconds)*time.Second)).
		WithMetrics(d.metrics)
	d.dash.List.WithPageSize(cfg.Track17.PageSize)

	if cfg.Kafka.Enabled {
		p := f.newProducer(cfg)
		d.dash.WithNotifier(notify.New(p))
		d.closers = append(d.closers, p.Close, d.dash.Close)
	}
	return d, nil
}

// Close releases everything in reverse order of acquisition.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Get().Warn("close", zap.Error(err))
		}
	}
}
