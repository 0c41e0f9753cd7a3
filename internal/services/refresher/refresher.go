// Package refresher keeps the local cache warm while the HTTP server is running.
package refresher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BearBump/ParcelDesk/internal/logger"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/services/syncer"
)

type Lister interface {
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
	Snapshot() syncer.Snapshot[[]models.Package]
}

type Inspector interface {
	Inspect(ctx context.Context, number string, force bool) (syncer.Snapshot[*models.PackageDetails], error)
}

type DetailsCache interface {
	GetPackageDetails(ctx context.Context, number string) (*models.PackageDetails, error)
}

type Refresher struct {
	list      Lister
	inspector Inspector
	cache     DetailsCache
	planner   *Planner
	log       *zap.Logger

	interval    time.Duration
	warmLimit   int
	concurrency int

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalWarmed         atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(list Lister) *Refresher {
	return &Refresher{
		list:              list,
		planner:           NewPlanner(DefaultPlannerConfig()),
		log:               logger.Named("refresher"),
		interval:          time.Minute,
		concurrency:       2,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (r *Refresher) WithInterval(d time.Duration) *Refresher {
	if d > 0 {
		r.interval = d
	}
	return r
}

// WithDetailsWarmup makes every cycle also refresh the details of up to limit due packages.
func (r *Refresher) WithDetailsWarmup(inspector Inspector, cache DetailsCache, limit, concurrency int) *Refresher {
	r.inspector = inspector
	r.cache = cache
	r.warmLimit = limit
	if concurrency > 0 {
		r.concurrency = concurrency
	}
	return r
}

func (r *Refresher) WithPlanner(cfg PlannerConfig) *Refresher {
	r.planner = NewPlanner(cfg)
	return r
}

// Trigger asks for an immediate forced cycle (best-effort, non-blocking).
func (r *Refresher) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalCycles   int64      `json:"totalCycles"`
	TotalWarmed   int64      `json:"totalWarmed"`
	TotalErrors   int64      `json:"totalErrors"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (r *Refresher) Stats() Stats {
	st := Stats{
		StartedAt:   time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalCycles: r.totalCycles.Load(),
		TotalWarmed: r.totalWarmed.Load(),
		TotalErrors: r.totalErrors.Load(),
		InFlight:    r.inFlight.Load(),
	}
	if n := r.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

// Run blocks until ctx is done. The first cycle starts immediately.
func (r *Refresher) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.runOnce(ctx, false)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.runOnce(ctx, false)
		case <-r.triggerCh:
			r.runOnce(ctx, true)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context, force bool) {
	now := time.Now().UTC()
	r.lastCycleUnixNano.Store(now.UnixNano())
	r.totalCycles.Add(1)

	var err error
	if force {
		err = r.list.Refresh(ctx)
	} else {
		err = r.list.Load(ctx)
	}
	if err != nil {
		r.recordError(err)
		r.log.Error("list sync", zap.Bool("forced", force), zap.Error(err))
		return
	}

	if r.inspector == nil || r.warmLimit <= 0 {
		return
	}
	r.warm(ctx, r.due(ctx, now))
}

func (r *Refresher) due(ctx context.Context, now time.Time) []string {
	var out []string
	for _, p := range r.list.Snapshot().Data {
		if len(out) >= r.warmLimit {
			break
		}
		var checkedAt time.Time
		d, err := r.cache.GetPackageDetails(ctx, p.TrackingNumber)
		if err != nil {
			r.log.Warn("read cached details", zap.String("number", p.TrackingNumber), zap.Error(err))
			continue
		}
		if d != nil {
			checkedAt = d.UpdatedAt
		}
		if r.planner.Due(p.Status, checkedAt, now) {
			out = append(out, p.TrackingNumber)
		}
	}
	return out
}

func (r *Refresher) warm(ctx context.Context, numbers []string) {
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, n := range numbers {
		sem <- struct{}{}
		wg.Add(1)
		r.inFlight.Add(1)
		go func() {
			defer func() {
				r.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if _, err := r.inspector.Inspect(ctx, n, true); err != nil {
				r.recordError(err)
				r.log.Warn("warm details", zap.String("number", n), zap.Error(err))
				return
			}
			r.totalWarmed.Add(1)
		}()
	}
	wg.Wait()
}

func (r *Refresher) recordError(err error) {
	r.totalErrors.Add(1)
	r.lastErrorMu.Lock()
	r.lastError = err.Error()
	r.lastErrorMu.Unlock()
}
