package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/ParcelDesk/internal/broker/messages"
	"github.com/BearBump/ParcelDesk/internal/freshness"
	"github.com/BearBump/ParcelDesk/internal/integrations/track17"
	"github.com/BearBump/ParcelDesk/internal/logger"
	"github.com/BearBump/ParcelDesk/internal/metrics"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/storage"
)

// DetailsController follows one selected package at a time.
type DetailsController struct {
	store    storage.Store
	remote   Remote
	policy   freshness.Policy
	notifier Notifier
	metrics  Metrics
	log      *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	gen  uint64
	key  string
	snap Snapshot[*models.PackageDetails]
	hub  *hub[*models.PackageDetails]
}

func NewDetailsController(store storage.Store, remote Remote, policy freshness.Policy) *DetailsController {
	return &DetailsController{
		store:  store,
		remote: remote,
		policy: policy,
		log:    logger.Named("syncer.details"),
		now:    utcNow,
		hub:    newHub[*models.PackageDetails](),
	}
}

func (c *DetailsController) WithNotifier(n Notifier) *DetailsController {
	c.notifier = n
	return c
}

func (c *DetailsController) WithMetrics(m Metrics) *DetailsController {
	c.metrics = m
	return c
}

func (c *DetailsController) WithClock(now func() time.Time) *DetailsController {
	c.now = now
	return c
}

// Key is the tracking number currently selected, "" when none.
func (c *DetailsController) Key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

func (c *DetailsController) Snapshot() Snapshot[*models.PackageDetails] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copySnapLocked()
}

func (c *DetailsController) Subscribe() (<-chan Snapshot[*models.PackageDetails], func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hub.subscribe(c.copySnapLocked())
}

// Select switches to key and runs a normal sync cycle for it.
// Results still in flight for the previous key are discarded. An empty key clears the view.
func (c *DetailsController) Select(ctx context.Context, key string) error {
	return c.selectKey(ctx, key, false)
}

func (c *DetailsController) selectKey(ctx context.Context, key string, force bool) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.key = key
	c.snap = Snapshot[*models.PackageDetails]{}
	if key == "" {
		c.publishLocked()
		c.mu.Unlock()
		return nil
	}
	c.snap.Loading = true
	c.snap.State = StateLoading
	c.publishLocked()
	c.mu.Unlock()

	return c.run(ctx, gen, key, force)
}

// Refresh forces a fetch of the selected package.
func (c *DetailsController) Refresh(ctx context.Context) error {
	c.mu.Lock()
	key := c.key
	if key == "" {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.snap.Refreshing, c.snap.Loading = true, false
	c.snap.State = StateRefreshing
	c.snap.Error, c.snap.ErrorKind = "", KindNone
	c.publishLocked()
	c.mu.Unlock()

	return c.run(ctx, gen, key, true)
}

// UpdateTitle changes the shown title only; persisting is the list's job.
func (c *DetailsController) UpdateTitle(number, title string) {
	c.patchShown(number, models.PackagePatch{Title: &title})
}

// UpdateCarrier changes the shown carrier only.
func (c *DetailsController) UpdateCarrier(number string, carrier int) {
	c.patchShown(number, models.PackagePatch{CarrierCode: &carrier})
}

func (c *DetailsController) patchShown(number string, patch models.PackagePatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.Data == nil || c.key != number {
		return
	}
	d := cloneDetails(c.snap.Data)
	patch.Apply(&d.Package)
	c.snap.Data = d
	c.publishLocked()
}

func (c *DetailsController) current(gen uint64, key string) bool {
	return c.gen == gen && c.key == key
}

func (c *DetailsController) run(ctx context.Context, gen uint64, key string, force bool) error {
	cached, err := c.store.GetPackageDetails(ctx, key)
	if err != nil {
		c.log.Warn("read cached details", zap.String("number", key), zap.Error(err))
		cached = nil
	}

	if cached != nil {
		c.mu.Lock()
		if c.current(gen, key) {
			c.snap.Data = cloneDetails(cached)
			if !force {
				c.snap.Loading = false
				c.snap.State = StateReady
			}
			c.publishLocked()
		}
		c.mu.Unlock()
	}

	now := c.now()
	if !force && cached != nil && c.policy.IsFresh(cached.UpdatedAt, now) {
		c.finish(gen, key, nil, metrics.ResultFresh)
		return nil
	}

	info, err := c.remote.GetTrackInfo(ctx, key)
	if err != nil {
		if cached != nil {
			c.log.Warn("details fetch failed, keeping cached details", zap.String("number", key), zap.Error(err))
			c.finish(gen, key, nil, metrics.ResultDegraded)
			return nil
		}
		if c.finish(gen, key, err, metrics.ResultError) {
			return errors.Wrap(err, "load package details")
		}
		return nil
	}

	fresh := track17.ToPackageDetails(*info, now)
	if cached != nil {
		mergeDetails(&fresh, cached)
	}

	c.mu.Lock()
	if !c.current(gen, key) {
		c.mu.Unlock()
		c.cycle(metrics.ResultDiscarded)
		return nil
	}
	saved := true
	if err := c.store.SavePackageDetails(ctx, fresh); err != nil {
		c.log.Error("save details", zap.String("number", key), zap.Error(err))
		saved = false
	}
	c.snap.Data = cloneDetails(&fresh)
	c.snap.Loading, c.snap.Refreshing = false, false
	c.snap.State = StateReady
	c.publishLocked()
	c.mu.Unlock()

	c.cycle(metrics.ResultFetched)
	if saved && c.notifier != nil && (cached == nil || cached.Status != fresh.Status) {
		if err := c.notifier.PackageUpdated(ctx, fresh.Package, messages.SourceDetails); err != nil {
			c.log.Warn("notify package updated", zap.String("number", key), zap.Error(err))
		}
	}
	return nil
}

func (c *DetailsController) finish(gen uint64, key string, err error, result string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.current(gen, key) {
		c.cycle(metrics.ResultDiscarded)
		return false
	}
	c.snap.Loading, c.snap.Refreshing = false, false
	if err != nil {
		c.snap.State = StateError
		c.snap.Error = Message(err)
		c.snap.ErrorKind = KindOf(err)
	} else {
		c.snap.State = StateReady
	}
	c.publishLocked()
	c.cycle(result)
	return true
}

func (c *DetailsController) cycle(result string) {
	if c.metrics != nil {
		c.metrics.SyncCycle("details", result)
	}
}

func (c *DetailsController) copySnapLocked() Snapshot[*models.PackageDetails] {
	s := c.snap
	s.Data = cloneDetails(c.snap.Data)
	return s
}

func (c *DetailsController) publishLocked() {
	c.hub.publish(c.copySnapLocked())
}

// mergeDetails keeps the cached title and first-seen time over whatever the remote sent.
func mergeDetails(fresh *models.PackageDetails, cached *models.PackageDetails) {
	if cached.Title != "" {
		fresh.Title = cached.Title
	}
	if !cached.CreatedAt.IsZero() {
		fresh.CreatedAt = cached.CreatedAt
	}
}

func cloneDetails(d *models.PackageDetails) *models.PackageDetails {
	if d == nil {
		return nil
	}
	out := *d
	out.TrackingHistory = append([]models.TrackingEvent(nil), d.TrackingHistory...)
	if d.LastEvent != nil {
		ev := *d.LastEvent
		out.LastEvent = &ev
	}
	if d.TrackedAt != nil {
		t := *d.TrackedAt
		out.TrackedAt = &t
	}
	return &out
}
