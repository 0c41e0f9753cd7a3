package syncer

import (
	"context"
	"sort"
	"strings"
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

// ListController owns the package list view.
type ListController struct {
	store    storage.Store
	remote   Remote
	policy   freshness.Policy
	notifier Notifier
	metrics  Metrics
	log      *zap.Logger
	now      func() time.Time
	pageSize int

	mu   sync.Mutex
	gen  uint64
	snap Snapshot[[]models.Package]
	hub  *hub[[]models.Package]
}

func NewListController(store storage.Store, remote Remote, policy freshness.Policy) *ListController {
	return &ListController{
		store:    store,
		remote:   remote,
		policy:   policy,
		log:      logger.Named("syncer.list"),
		now:      utcNow,
		pageSize: track17.MaxPageSize,
		snap:     Snapshot[[]models.Package]{Data: []models.Package{}},
		hub:      newHub[[]models.Package](),
	}
}

func (c *ListController) WithNotifier(n Notifier) *ListController {
	c.notifier = n
	return c
}

func (c *ListController) WithMetrics(m Metrics) *ListController {
	c.metrics = m
	return c
}

func (c *ListController) WithPageSize(n int) *ListController {
	if n > 0 && n <= track17.MaxPageSize {
		c.pageSize = n
	}
	return c
}

func (c *ListController) WithClock(now func() time.Time) *ListController {
	c.now = now
	return c
}

func (c *ListController) Snapshot() Snapshot[[]models.Package] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copySnapLocked()
}

// Subscribe returns a channel that always holds the latest snapshot, starting with the current one.
func (c *ListController) Subscribe() (<-chan Snapshot[[]models.Package], func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hub.subscribe(c.copySnapLocked())
}

// Load runs a normal sync cycle: the network is only used when the cache is stale or empty.
// The returned error is the one surfaced in the snapshot, i.e. nil when stale data could be shown.
func (c *ListController) Load(ctx context.Context) error {
	return c.sync(ctx, false)
}

// Refresh runs a forced sync cycle.
func (c *ListController) Refresh(ctx context.Context) error {
	return c.sync(ctx, true)
}

func (c *ListController) sync(ctx context.Context, force bool) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.snap.Error, c.snap.ErrorKind = "", KindNone
	if force {
		c.snap.Refreshing, c.snap.Loading = true, false
		c.snap.State = StateRefreshing
	} else {
		c.snap.Loading, c.snap.Refreshing = true, false
		c.snap.State = StateLoading
	}
	c.publishLocked()
	c.mu.Unlock()

	cached, err := c.store.GetPackages(ctx)
	if err != nil {
		c.log.Warn("read cached packages", zap.Error(err))
		cached = nil
	}

	if len(cached) > 0 {
		c.mu.Lock()
		if c.gen == gen {
			c.snap.Data = sortPackages(cached)
			if !force {
				c.snap.Loading = false
				c.snap.State = StateReady
			}
			c.publishLocked()
		}
		c.mu.Unlock()
	}

	now := c.now()
	if !force && len(cached) > 0 && c.policy.AnyFresh(updatedTimes(cached), now) {
		c.finish(gen, nil, metrics.ResultFresh)
		return nil
	}

	items, err := c.remote.ListTracks(ctx, 1, c.pageSize)
	if err != nil {
		if len(cached) > 0 {
			c.log.Warn("list fetch failed, keeping cached packages", zap.Error(err))
			c.finish(gen, nil, metrics.ResultDegraded)
			return nil
		}
		if c.finish(gen, err, metrics.ResultError) {
			return errors.Wrap(err, "load packages")
		}
		return nil
	}

	byNumber := make(map[string]models.Package, len(cached))
	for _, p := range cached {
		byNumber[p.TrackingNumber] = p
	}
	fresh := make([]models.Package, 0, len(items))
	var changed []models.Package
	for _, it := range items {
		pkg := track17.ToPackage(it, now)
		old, ok := byNumber[pkg.TrackingNumber]
		if ok {
			mergeListItem(&pkg, old)
		}
		if !ok || old.Status != pkg.Status {
			changed = append(changed, pkg)
		}
		fresh = append(fresh, pkg)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.cycle(metrics.ResultDiscarded)
		return nil
	}
	if len(fresh) > 0 {
		if err := c.store.SavePackages(ctx, fresh); err != nil {
			c.log.Error("save packages", zap.Error(err))
			changed = nil
		}
		c.snap.Data = sortPackages(fresh)
	}
	c.snap.Loading, c.snap.Refreshing = false, false
	c.snap.State = StateReady
	c.publishLocked()
	c.mu.Unlock()

	c.cycle(metrics.ResultFetched)
	c.notifyUpdated(ctx, changed, messages.SourceList)
	return nil
}

// finish ends cycle gen. It reports false when a newer generation already took over.
func (c *ListController) finish(gen uint64, err error, result string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
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

// Add registers a package remotely and then force-reloads the list.
// Once the registration went through Add reports success; a failed reload
// only shows up in the list snapshot.
func (c *ListController) Add(ctx context.Context, number string, carrier int, title string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return c.fail("add package", models.NewValidationError("trackingNumber", "is required"))
	}
	if carrier <= 0 {
		return c.fail("add package", models.NewValidationError("carrier", "is required"))
	}
	c.clearError()

	if err := c.remote.Register(ctx, number, carrier, strings.TrimSpace(title)); err != nil {
		return c.fail("add package", err)
	}
	if err := c.Refresh(ctx); err != nil {
		c.log.Warn("reload after add", zap.String("number", number), zap.Error(err))
	}
	return nil
}

// Delete removes the package remotely, then from both cache tables, then from the list.
func (c *ListController) Delete(ctx context.Context, number string) error {
	if number == "" {
		return c.fail("delete package", models.NewValidationError("trackingNumber", "is required"))
	}
	c.clearError()

	if err := c.remote.DeleteTracks(ctx, number); err != nil {
		return c.fail("delete package", err)
	}
	if err := c.store.DeletePackage(ctx, number); err != nil {
		return c.fail("delete package", err)
	}

	c.mutate(func(list []models.Package) []models.Package {
		out := make([]models.Package, 0, len(list))
		for _, p := range list {
			if p.TrackingNumber != number {
				out = append(out, p)
			}
		}
		return out
	})

	if c.notifier != nil {
		if err := c.notifier.PackageDeleted(ctx, number); err != nil {
			c.log.Warn("notify package deleted", zap.String("number", number), zap.Error(err))
		}
	}
	return nil
}

// UpdateTitle renames a package remotely (as its tag) and then locally.
func (c *ListController) UpdateTitle(ctx context.Context, number, title string) error {
	c.clearError()

	cached, err := c.store.GetPackage(ctx, number)
	if err != nil {
		return c.fail("update package", err)
	}
	if cached == nil {
		return c.fail("update package", models.ErrNotFound)
	}

	if err := c.remote.ChangeInfo(ctx, number, cached.CarrierCode, &title); err != nil {
		return c.fail("update package", err)
	}
	return c.applyLocal(ctx, "update package", number, models.PackagePatch{Title: &title})
}

// UpdateCarrier switches the carrier remotely and then locally.
func (c *ListController) UpdateCarrier(ctx context.Context, number string, carrier int) error {
	if carrier <= 0 {
		return c.fail("update carrier", models.NewValidationError("carrier", "is required"))
	}
	c.clearError()

	if err := c.remote.ChangeInfo(ctx, number, carrier, nil); err != nil {
		return c.fail("update carrier", err)
	}
	return c.applyLocal(ctx, "update carrier", number, models.PackagePatch{CarrierCode: &carrier})
}

// applyLocal persists patch to both tables (details best-effort) and to the in-memory list.
func (c *ListController) applyLocal(ctx context.Context, action, number string, patch models.PackagePatch) error {
	if err := c.store.UpdatePackage(ctx, number, patch); err != nil {
		return c.fail(action, err)
	}
	if err := c.store.UpdatePackageDetails(ctx, number, patch); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.log.Debug("details not cached yet", zap.String("number", number))
		} else {
			c.log.Warn("update cached details", zap.String("number", number), zap.Error(err))
		}
	}

	var updated *models.Package
	c.mutate(func(list []models.Package) []models.Package {
		out := make([]models.Package, len(list))
		for i, p := range list {
			if p.TrackingNumber == number {
				patch.Apply(&p)
				p.UpdatedAt = c.now()
				cp := p
				updated = &cp
			}
			out[i] = p
		}
		return out
	})

	if updated != nil {
		c.notifyUpdated(ctx, []models.Package{*updated}, messages.SourceEdit)
	}
	return nil
}

// mutate replaces the published list. It supersedes any in-flight cycle so a fetch that
// started before the mutation cannot overwrite it.
func (c *ListController) mutate(fn func([]models.Package) []models.Package) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.snap.Data = sortPackages(fn(c.snap.Data))
	c.snap.Loading, c.snap.Refreshing = false, false
	c.snap.State = StateReady
	c.snap.Error, c.snap.ErrorKind = "", KindNone
	c.publishLocked()
}

func (c *ListController) clearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.Error == "" {
		return
	}
	c.snap.Error, c.snap.ErrorKind = "", KindNone
	if c.snap.State == StateError {
		c.snap.State = StateReady
	}
	c.publishLocked()
}

// fail records a mutation failure in the snapshot and returns err to the caller.
// The list itself is left untouched.
func (c *ListController) fail(action string, err error) error {
	c.mu.Lock()
	c.snap.Error = mutationMessage(action, err)
	c.snap.ErrorKind = KindOf(err)
	c.publishLocked()
	c.mu.Unlock()
	return errors.Wrap(err, action)
}

func (c *ListController) notifyUpdated(ctx context.Context, pkgs []models.Package, source string) {
	if c.notifier == nil {
		return
	}
	for _, p := range pkgs {
		if err := c.notifier.PackageUpdated(ctx, p, source); err != nil {
			c.log.Warn("notify package updated", zap.String("number", p.TrackingNumber), zap.Error(err))
		}
	}
}

func (c *ListController) cycle(result string) {
	if c.metrics != nil {
		c.metrics.SyncCycle("list", result)
	}
}

func (c *ListController) copySnapLocked() Snapshot[[]models.Package] {
	s := c.snap
	s.Data = make([]models.Package, len(c.snap.Data))
	copy(s.Data, c.snap.Data)
	return s
}

func (c *ListController) publishLocked() {
	c.hub.publish(c.copySnapLocked())
}

// mergeListItem carries the user-owned fields of the cached summary into a fetched one.
// The remote tag only loses to the cached title when the remote has none.
func mergeListItem(fresh *models.Package, cached models.Package) {
	if fresh.Title == "" && cached.Title != "" {
		fresh.Title = cached.Title
	}
	if !cached.CreatedAt.IsZero() {
		fresh.CreatedAt = cached.CreatedAt
	}
}

// sortPackages orders newest first by CreatedAt.
func sortPackages(in []models.Package) []models.Package {
	out := append([]models.Package(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].TrackingNumber < out[j].TrackingNumber
	})
	if out == nil {
		out = []models.Package{}
	}
	return out
}

func updatedTimes(pkgs []models.Package) []time.Time {
	out := make([]time.Time, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, p.UpdatedAt)
	}
	return out
}
