package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BearBump/ParcelDesk/internal/logger"
	"github.com/BearBump/ParcelDesk/internal/models"
)

const (
	DefaultFeedBuffer         = 256
	DefaultFeedPublishTimeout = 30 * time.Second
	DefaultFeedDrainTimeout   = 5 * time.Second
)

type feedEvent struct {
	pkg     models.Package
	number  string
	source  string
	deleted bool
}

// AsyncNotifier queues change events and hands them to the wrapped Notifier on
// a single goroutine, in the order they were queued. Its methods never block:
// when the buffer is full the event is dropped and logged.
type AsyncNotifier struct {
	next    Notifier
	ch      chan feedEvent
	log     *zap.Logger
	timeout time.Duration
	drain   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func NewAsyncNotifier(next Notifier, buffer int) *AsyncNotifier {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &AsyncNotifier{
		next:    next,
		ch:      make(chan feedEvent, buffer),
		log:     logger.Named("syncer.feed"),
		timeout: DefaultFeedPublishTimeout,
		drain:   DefaultFeedDrainTimeout,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go n.loop()
	return n
}

// WithTimeouts bounds a single delivery and the wait in Close. Zero keeps the current value.
func (n *AsyncNotifier) WithTimeouts(publish, drain time.Duration) *AsyncNotifier {
	if publish > 0 {
		n.timeout = publish
	}
	if drain > 0 {
		n.drain = drain
	}
	return n
}

// PackageUpdated queues the event. The caller's context is not carried over.
func (n *AsyncNotifier) PackageUpdated(_ context.Context, pkg models.Package, source string) error {
	n.enqueue(feedEvent{pkg: pkg, number: pkg.TrackingNumber, source: source})
	return nil
}

func (n *AsyncNotifier) PackageDeleted(_ context.Context, number string) error {
	n.enqueue(feedEvent{number: number, deleted: true})
	return nil
}

// Dropped is the number of events that never reached the wrapped Notifier's queue.
func (n *AsyncNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Close stops accepting events and waits for the queued ones to be delivered.
// When the drain timeout passes first, the remaining deliveries are cancelled.
func (n *AsyncNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return nil
	}
	n.closed = true
	close(n.ch)
	n.mu.Unlock()

	t := time.NewTimer(n.drain)
	defer t.Stop()
	select {
	case <-n.done:
	case <-t.C:
		n.log.Warn("change feed drain timed out", zap.Int("pending", len(n.ch)))
		n.cancel()
		<-n.done
	}
	n.cancel()
	return nil
}

func (n *AsyncNotifier) enqueue(ev feedEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.drop(ev, "closed")
		return
	}
	select {
	case n.ch <- ev:
	default:
		n.drop(ev, "buffer full")
	}
}

func (n *AsyncNotifier) drop(ev feedEvent, reason string) {
	n.dropped.Add(1)
	n.log.Warn("change event dropped",
		zap.String("number", ev.number),
		zap.Bool("deleted", ev.deleted),
		zap.String("reason", reason))
}

func (n *AsyncNotifier) loop() {
	defer close(n.done)
	for ev := range n.ch {
		ctx, cancel := context.WithTimeout(n.ctx, n.timeout)
		var err error
		if ev.deleted {
			err = n.next.PackageDeleted(ctx, ev.number)
		} else {
			err = n.next.PackageUpdated(ctx, ev.pkg, ev.source)
		}
		cancel()
		if err != nil {
			n.log.Warn("publish change event",
				zap.String("number", ev.number),
				zap.Bool("deleted", ev.deleted),
				zap.Error(err))
		}
	}
}
