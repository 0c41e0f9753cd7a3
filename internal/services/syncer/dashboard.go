package syncer

import (
	"context"

	"github.com/BearBump/ParcelDesk/internal/freshness"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/storage"
)

// Dashboard ties the list and the selected-package view together.
type Dashboard struct {
	store    storage.Store
	remote   Remote
	policy   freshness.Policy
	notifier *AsyncNotifier
	metrics  Metrics

	List    *ListController
	Details *DetailsController
}

func NewDashboard(store storage.Store, remote Remote, policy freshness.Policy) *Dashboard {
	return &Dashboard{
		store:   store,
		remote:  remote,
		policy:  policy,
		List:    NewListController(store, remote, policy),
		Details: NewDetailsController(store, remote, policy),
	}
}

// WithNotifier puts n behind an AsyncNotifier shared by every controller of the
// dashboard, so sync cycles never wait for the change feed. Close drains it.
func (d *Dashboard) WithNotifier(n Notifier) *Dashboard {
	if d.notifier != nil {
		_ = d.notifier.Close()
	}
	d.notifier = NewAsyncNotifier(n, DefaultFeedBuffer)
	d.List.WithNotifier(d.notifier)
	d.Details.WithNotifier(d.notifier)
	return d
}

// Close flushes pending change events.
func (d *Dashboard) Close() error {
	if d.notifier == nil {
		return nil
	}
	return d.notifier.Close()
}

func (d *Dashboard) WithMetrics(m Metrics) *Dashboard {
	d.metrics = m
	d.List.WithMetrics(m)
	d.Details.WithMetrics(m)
	return d
}

func (d *Dashboard) Load(ctx context.Context) error {
	return d.List.Load(ctx)
}

func (d *Dashboard) Refresh(ctx context.Context) error {
	return d.List.Refresh(ctx)
}

func (d *Dashboard) Add(ctx context.Context, number string, carrier int, title string) error {
	return d.List.Add(ctx, number, carrier, title)
}

func (d *Dashboard) Select(ctx context.Context, number string) error {
	return d.Details.Select(ctx, number)
}

func (d *Dashboard) Rename(ctx context.Context, number, title string) error {
	if err := d.List.UpdateTitle(ctx, number, title); err != nil {
		return err
	}
	d.Details.UpdateTitle(number, title)
	return nil
}

func (d *Dashboard) ChangeCarrier(ctx context.Context, number string, carrier int) error {
	if err := d.List.UpdateCarrier(ctx, number, carrier); err != nil {
		return err
	}
	d.Details.UpdateCarrier(number, carrier)
	return nil
}

// Delete removes a package; a selected package is deselected before the remote call.
func (d *Dashboard) Delete(ctx context.Context, number string) error {
	if d.Details.Key() == number {
		_ = d.Details.Select(ctx, "")
	}
	return d.List.Delete(ctx, number)
}

// Inspect runs one details cycle for number on a controller of its own, so concurrent
// callers do not supersede each other the way a shared selection would.
func (d *Dashboard) Inspect(ctx context.Context, number string, force bool) (Snapshot[*models.PackageDetails], error) {
	c := NewDetailsController(d.store, d.remote, d.policy)
	if d.notifier != nil {
		c.WithNotifier(d.notifier)
	}
	if d.metrics != nil {
		c.WithMetrics(d.metrics)
	}
	c.now = d.Details.now

	err := c.selectKey(ctx, number, force)
	return c.Snapshot(), err
}
