package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/ParcelDesk/internal/logger"
)

// DefaultInterval is the minimum gap between the starts of two consecutive tasks.
const DefaultInterval = 350 * time.Millisecond

var ErrClosed = errors.New("request queue closed")

// Task is one unit of remote work. It receives the submitter's context.
type Task func(ctx context.Context) error

// Gate is a shared per-minute counter, e.g. a Redis INCR key.
type Gate interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type job struct {
	ctx context.Context
	fn  Task
	res chan error
	at  time.Time
}

// Queue runs submitted tasks one at a time in submission order,
// starting each no sooner than interval after the previous start.
type Queue struct {
	interval time.Duration

	gate           Gate
	gateKey        string
	quotaPerMinute int64
	overQuotaPause time.Duration

	onWait func(time.Duration)

	startOnce sync.Once
	mu        sync.Mutex
	pending   []*job
	closed    bool
	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	lastStart time.Time
}

func NewQueue(interval time.Duration) *Queue {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Queue{
		interval:       interval,
		gateKey:        "rl:track17",
		overQuotaPause: 500 * time.Millisecond,
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
}

// WithGate makes the worker consult g before every task once perMinute > 0.
// While the shared counter is over quota the worker pauses and asks again.
func (q *Queue) WithGate(g Gate, key string, perMinute int64) *Queue {
	q.gate = g
	if key != "" {
		q.gateKey = key
	}
	q.quotaPerMinute = perMinute
	return q
}

// WithWaitObserver reports how long each task sat in the queue before starting.
func (q *Queue) WithWaitObserver(fn func(time.Duration)) *Queue {
	q.onWait = fn
	return q
}

func (q *Queue) Interval() time.Duration {
	return q.interval
}

// Execute enqueues fn and blocks until it has run. The task's error is returned only here.
// If ctx ends while waiting, Execute returns ctx.Err() and the task is skipped when its turn comes.
func (q *Queue) Execute(ctx context.Context, fn Task) error {
	q.startOnce.Do(func() { go q.loop() })

	j := &job{ctx: ctx, fn: fn, res: make(chan error, 1), at: time.Now()}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, j)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-j.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do is Execute for tasks that produce a value.
func Do[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := q.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Len is the number of tasks waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close rejects new tasks, fails pending ones with ErrClosed and waits for the running task.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	rest := q.pending
	q.pending = nil
	q.mu.Unlock()

	close(q.done)
	for _, j := range rest {
		j.res <- ErrClosed
	}

	// Never started: close stopped ourselves so the wait below returns.
	q.startOnce.Do(func() { close(q.stopped) })
	<-q.stopped
}

func (q *Queue) loop() {
	defer close(q.stopped)

	for {
		j, ok := q.next()
		if !ok {
			return
		}
		if err := j.ctx.Err(); err != nil {
			j.res <- err
			continue
		}
		if !q.waitTurn(j) {
			j.res <- ErrClosed
			return
		}
		if !q.waitQuota(j) {
			continue
		}

		if q.onWait != nil {
			q.onWait(time.Since(j.at))
		}
		// stamped right before the task so spacing holds between task starts
		q.lastStart = time.Now()
		j.res <- run(j)
	}
}

func (q *Queue) next() (*job, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.pending) > 0 {
			j := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return j, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-q.done:
			return nil, false
		}
	}
}

func (q *Queue) waitTurn(j *job) bool {
	if q.lastStart.IsZero() {
		return true
	}
	d := time.Until(q.lastStart.Add(q.interval))
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-q.done:
		return false
	}
}

// waitQuota blocks while the shared gate says no. Gate errors fail open.
func (q *Queue) waitQuota(j *job) bool {
	if q.gate == nil || q.quotaPerMinute <= 0 {
		return true
	}
	for {
		now := time.Now().UTC()
		key := fmt.Sprintf("%s:%s", q.gateKey, now.Format("200601021504"))
		allowed, n, err := q.gate.Allow(j.ctx, key, q.quotaPerMinute, 70*time.Second)
		if err != nil {
			logger.Named("ratelimit").Warn("quota gate unavailable", zap.Error(err))
			return true
		}
		if allowed {
			return true
		}
		logger.Named("ratelimit").Warn("shared quota exceeded", zap.String("key", key), zap.Int64("count", n))

		t := time.NewTimer(q.overQuotaPause)
		select {
		case <-t.C:
		case <-j.ctx.Done():
			t.Stop()
			j.res <- j.ctx.Err()
			return false
		case <-q.done:
			t.Stop()
			j.res <- ErrClosed
			return false
		}
	}
}

func run(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task panicked: %v", r)
		}
	}()
	return j.fn(j.ctx)
}
