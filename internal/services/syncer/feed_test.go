package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/ParcelDesk/internal/broker/messages"
	"github.com/BearBump/ParcelDesk/internal/freshness"
	"github.com/BearBump/ParcelDesk/internal/integrations/track17"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/services/syncer/mocks"
)

// stalledNotifier behaves like a publisher retrying against an unreachable broker:
// every call hangs until released or cancelled, then fails.
type stalledNotifier struct {
	release chan struct{}
	calls   atomic.Int32
}

func newStalledNotifier() *stalledNotifier {
	return &stalledNotifier{release: make(chan struct{})}
}

func (n *stalledNotifier) wait(ctx context.Context) error {
	n.calls.Add(1)
	select {
	case <-n.release:
	case <-ctx.Done():
	}
	return errors.New("kafka: broker unavailable")
}

func (n *stalledNotifier) PackageUpdated(ctx context.Context, _ models.Package, _ string) error {
	return n.wait(ctx)
}

func (n *stalledNotifier) PackageDeleted(ctx context.Context, _ string) error {
	return n.wait(ctx)
}

func TestDashboard_LoadDoesNotWaitForChangeFeed(t *testing.T) {
	ctx := context.Background()
	remote := mocks.NewMockRemote(t)
	items := make([]track17.TrackListItem, 0, 8)
	for i := range 8 {
		items = append(items, listItem(fmt.Sprintf("LX%d", i), "InTransit", "2026-03-01T10:00:00Z"))
	}
	remote.On("ListTracks", mock.Anything, 1, track17.MaxPageSize).Return(items, nil).Once()

	feed := newStalledNotifier()
	d := NewDashboard(newTestStore(t), remote, freshness.New(freshness.DefaultTTL)).WithNotifier(feed)
	d.List.WithClock(fixedClock)

	start := time.Now()
	require.NoError(t, d.Load(ctx))
	require.Less(t, time.Since(start), time.Second)
	require.Len(t, d.List.Snapshot().Data, 8)

	require.Eventually(t, func() bool { return feed.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(feed.release)
	require.NoError(t, d.Close())
	require.EqualValues(t, 8, feed.calls.Load())
}

func TestAsyncNotifier_DeliversInOrder(t *testing.T) {
	ctx := context.Background()
	rec := &recordingNotifier{}
	n := NewAsyncNotifier(rec, 8)

	require.NoError(t, n.PackageUpdated(ctx, models.Package{TrackingNumber: "A", Status: models.StatusInTransit}, messages.SourceList))
	require.NoError(t, n.PackageDeleted(ctx, "B"))
	require.NoError(t, n.PackageUpdated(ctx, models.Package{TrackingNumber: "C", Status: models.StatusDelivered}, messages.SourceDetails))
	require.NoError(t, n.Close())

	require.Equal(t, []notification{
		{number: "A", status: models.StatusInTransit, source: messages.SourceList},
		{number: "B", deleted: true},
		{number: "C", status: models.StatusDelivered, source: messages.SourceDetails},
	}, rec.all())
	require.Zero(t, n.Dropped())
}

func TestAsyncNotifier_DropsWhenBufferFull(t *testing.T) {
	ctx := context.Background()
	stalled := newStalledNotifier()
	n := NewAsyncNotifier(stalled, 1)

	require.NoError(t, n.PackageDeleted(ctx, "A"))
	require.Eventually(t, func() bool { return stalled.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, n.PackageDeleted(ctx, "B"))
	require.NoError(t, n.PackageDeleted(ctx, "C"))
	require.EqualValues(t, 1, n.Dropped())

	close(stalled.release)
	require.NoError(t, n.Close())
	require.EqualValues(t, 2, stalled.calls.Load())
}

func TestAsyncNotifier_CloseGivesUpAfterDrainTimeout(t *testing.T) {
	ctx := context.Background()
	stalled := newStalledNotifier()
	n := NewAsyncNotifier(stalled, 4).WithTimeouts(time.Minute, 50*time.Millisecond)

	require.NoError(t, n.PackageDeleted(ctx, "A"))
	require.NoError(t, n.PackageDeleted(ctx, "B"))

	start := time.Now()
	require.NoError(t, n.Close())
	require.Less(t, time.Since(start), time.Second)

	require.NoError(t, n.PackageDeleted(ctx, "C"))
	require.EqualValues(t, 1, n.Dropped())
	require.NoError(t, n.Close())
}
