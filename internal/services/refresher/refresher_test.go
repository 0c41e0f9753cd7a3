package refresher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/services/syncer"
)

type fakeList struct {
	mu        sync.Mutex
	loads     int
	refreshes int
	err       error
	data      []models.Package
}

func (l *fakeList) Load(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	return l.err
}

func (l *fakeList) Refresh(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshes++
	return l.err
}

func (l *fakeList) Snapshot() syncer.Snapshot[[]models.Package] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return syncer.Snapshot[[]models.Package]{Data: l.data, State: syncer.StateReady}
}

func (l *fakeList) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads, l.refreshes
}

type fakeInspector struct {
	mu     sync.Mutex
	seen   []string
	failOn string
}

func (i *fakeInspector) Inspect(_ context.Context, number string, force bool) (syncer.Snapshot[*models.PackageDetails], error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen = append(i.seen, number)
	if number == i.failOn {
		return syncer.Snapshot[*models.PackageDetails]{}, errors.New("remote down")
	}
	return syncer.Snapshot[*models.PackageDetails]{}, nil
}

type fakeCache map[string]*models.PackageDetails

func (c fakeCache) GetPackageDetails(_ context.Context, number string) (*models.PackageDetails, error) {
	return c[number], nil
}

func TestRefresher_Run_StopsOnContextCancel(t *testing.T) {
	list := &fakeList{}
	r := New(list).WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	loads, refreshes := list.counts()
	require.GreaterOrEqual(t, loads, 2)
	require.Zero(t, refreshes)
	require.NotNil(t, r.Stats().LastCycleAt)
}

func TestRefresher_TriggerForcesRefresh(t *testing.T) {
	list := &fakeList{}
	r := New(list).WithInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	r.Trigger()
	require.Eventually(t, func() bool {
		_, refreshes := list.counts()
		return refreshes == 1
	}, time.Second, 5*time.Millisecond)
	require.NotNil(t, r.Stats().LastTriggerAt)
}

func TestRefresher_ListErrorRecorded(t *testing.T) {
	list := &fakeList{err: errors.New("load packages: HTTP 503")}
	r := New(list)

	r.runOnce(context.Background(), false)

	st := r.Stats()
	require.Equal(t, int64(1), st.TotalCycles)
	require.Equal(t, int64(1), st.TotalErrors)
	require.Equal(t, "load packages: HTTP 503", st.LastError)
}

func TestRefresher_WarmsDueDetails(t *testing.T) {
	now := time.Now().UTC()
	list := &fakeList{data: []models.Package{
		{TrackingNumber: "NEVER", Status: models.StatusInTransit},
		{TrackingNumber: "STALE", Status: models.StatusInTransit},
		{TrackingNumber: "RECENT", Status: models.StatusInTransit},
		{TrackingNumber: "DONE", Status: models.StatusDelivered},
		{TrackingNumber: "BROKEN", Status: models.StatusAlert},
	}}
	cache := fakeCache{
		"STALE":  {Package: models.Package{UpdatedAt: now.Add(-time.Hour)}},
		"RECENT": {Package: models.Package{UpdatedAt: now.Add(-time.Minute)}},
		"DONE":   {Package: models.Package{UpdatedAt: now.Add(-time.Hour)}},
	}
	insp := &fakeInspector{failOn: "BROKEN"}
	r := New(list).WithDetailsWarmup(insp, cache, 10, 1)

	r.runOnce(context.Background(), false)

	require.ElementsMatch(t, []string{"NEVER", "STALE", "BROKEN"}, insp.seen)
	st := r.Stats()
	require.Equal(t, int64(2), st.TotalWarmed)
	require.Equal(t, int64(1), st.TotalErrors)
	require.Zero(t, st.InFlight)
}

func TestRefresher_WarmupLimit(t *testing.T) {
	list := &fakeList{data: []models.Package{
		{TrackingNumber: "A"}, {TrackingNumber: "B"}, {TrackingNumber: "C"},
	}}
	insp := &fakeInspector{}
	r := New(list).WithDetailsWarmup(insp, fakeCache{}, 2, 2)

	r.runOnce(context.Background(), false)
	require.Len(t, insp.seen, 2)
}
