// Package syncer keeps the local package cache and the remote tracking service in step.
//
// Each controller runs cache-first sync cycles: publish what the cache has, stop if it is
// still fresh, otherwise fetch, merge the user-owned fields back in, persist and publish.
// Every cycle captures a generation number; anything that bumps the generation (a newer
// cycle, a key switch, a local mutation) makes the older cycle's results invisible.
package syncer

import (
	"context"
	"time"

	"github.com/BearBump/ParcelDesk/internal/integrations/track17"
	"github.com/BearBump/ParcelDesk/internal/models"
)

// Remote is the logical tracking API. *track17.Client and the demo remote implement it.
type Remote interface {
	Register(ctx context.Context, number string, carrier int, tag string) error
	ListTracks(ctx context.Context, page, pageSize int) ([]track17.TrackListItem, error)
	GetTrackInfo(ctx context.Context, number string) (*track17.TrackInfo, error)
	DeleteTracks(ctx context.Context, numbers ...string) error
	ChangeInfo(ctx context.Context, number string, carrier int, tag *string) error
}

// Notifier is told about every package the controllers persist or remove.
// Calls happen inline with the sync cycle; Dashboard wraps its notifier in an AsyncNotifier.
type Notifier interface {
	PackageUpdated(ctx context.Context, pkg models.Package, source string) error
	PackageDeleted(ctx context.Context, number string) error
}

type Metrics interface {
	SyncCycle(controller, result string)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
