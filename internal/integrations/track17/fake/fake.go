package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/ParcelDesk/internal/integrations/track17"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/ratelimit"
)

// Remote is an in-memory stand-in for the tracking proxy, used when no base URL is configured.
// Statuses and histories are derived from a hash of (carrier, number) so they are stable across runs.
type Remote struct {
	mu    sync.Mutex
	items map[string]*entry
	now   func() time.Time
	queue *ratelimit.Queue
}

type entry struct {
	number     string
	carrier    int
	tag        *string
	registered time.Time
}

var demoStatuses = []models.Status{
	models.StatusInTransit,
	models.StatusInTransit,
	models.StatusPickUp,
	models.StatusDelivered,
	models.StatusNotFound,
}

func New() *Remote {
	return &Remote{items: map[string]*entry{}, now: func() time.Time { return time.Now().UTC() }}
}

// WithQueue sends every call through q, the same path the real client takes.
func (f *Remote) WithQueue(q *ratelimit.Queue) *Remote {
	f.queue = q
	return f
}

func (f *Remote) exec(ctx context.Context, fn func() error) error {
	if f.queue == nil {
		return fn()
	}
	return f.queue.Execute(ctx, func(context.Context) error { return fn() })
}

func (f *Remote) Register(ctx context.Context, number string, carrier int, tag string) error {
	return f.exec(ctx, func() error { return f.register(number, carrier, tag) })
}

func (f *Remote) ListTracks(ctx context.Context, _, _ int) ([]track17.TrackListItem, error) {
	var out []track17.TrackListItem
	err := f.exec(ctx, func() error {
		out = f.listTracks()
		return nil
	})
	return out, err
}

func (f *Remote) GetTrackInfo(ctx context.Context, number string) (*track17.TrackInfo, error) {
	var info *track17.TrackInfo
	err := f.exec(ctx, func() error {
		var err error
		info, err = f.getTrackInfo(number)
		return err
	})
	return info, err
}

func (f *Remote) DeleteTracks(ctx context.Context, numbers ...string) error {
	if len(numbers) == 0 {
		return models.NewValidationError("numbers", "must not be empty")
	}
	return f.exec(ctx, func() error { return f.deleteTracks(numbers) })
}

func (f *Remote) ChangeInfo(ctx context.Context, number string, carrier int, tag *string) error {
	return f.exec(ctx, func() error { return f.changeInfo(number, carrier, tag) })
}

func (f *Remote) register(number string, carrier int, tag string) error {
	if number == "" {
		return models.NewValidationError("number", "is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[number]; ok {
		return track17.NewAPIError(-18019901, "The tracking number is already registered.", nil)
	}
	e := &entry{number: number, carrier: carrier, registered: f.now()}
	if tag != "" {
		e.tag = &tag
	}
	f.items[number] = e
	return nil
}

func (f *Remote) listTracks() []track17.TrackListItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]track17.TrackListItem, 0, len(f.items))
	for _, e := range f.items {
		info := f.info(e)
		out = append(out, track17.TrackListItem{
			Number:          info.Number,
			Carrier:         info.Carrier,
			PackageStatus:   info.PackageStatus,
			LatestEventTime: info.LatestEventTime,
			LatestEventInfo: info.LatestEventInfo,
			RegisterTime:    info.RegisterTime,
			TrackTime:       info.TrackTime,
			Tag:             info.Tag,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (f *Remote) getTrackInfo(number string) (*track17.TrackInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[number]
	if !ok {
		return nil, track17.NewAPIError(-18019902, "The tracking number is not registered.", nil)
	}
	info := f.info(e)
	return &info, nil
}

func (f *Remote) deleteTracks(numbers []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range numbers {
		if _, ok := f.items[n]; !ok {
			return track17.NewAPIError(-18019902, "The tracking number is not registered.", nil)
		}
		delete(f.items, n)
	}
	return nil
}

func (f *Remote) changeInfo(number string, carrier int, tag *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[number]
	if !ok {
		return track17.NewAPIError(-18019902, "The tracking number is not registered.", nil)
	}
	e.carrier = carrier
	if tag != nil {
		t := *tag
		e.tag = &t
	}
	return nil
}

func (f *Remote) info(e *entry) track17.TrackInfo {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%d|%s", e.carrier, e.number)))
	v := h.Sum32()

	status := demoStatuses[int(v%uint32(len(demoStatuses)))]
	now := f.now()

	var events []track17.ProviderEvent
	if status != models.StatusNotFound {
		steps := []string{"Shipment information received", "Departed origin facility", "Arrived at destination hub"}
		switch status {
		case models.StatusPickUp:
			steps = append(steps, "Available for pickup")
		case models.StatusDelivered:
			steps = append(steps, "Delivered")
		}
		for i := len(steps) - 1; i >= 0; i-- {
			at := e.registered.Add(time.Duration(i) * 6 * time.Hour)
			events = append(events, track17.ProviderEvent{
				TimeUTC:     at.Format(time.RFC3339),
				Description: steps[i],
				Location:    fmt.Sprintf("Hub %d", (v>>uint(i))%90+10),
			})
		}
	}

	info := track17.TrackInfo{
		Number:        e.number,
		Carrier:       e.carrier,
		PackageStatus: status.String(),
		RegisterTime:  e.registered.Format(time.RFC3339),
		TrackTime:     now.Format(time.RFC3339),
		Tag:           e.tag,
		TrackInfo:     &track17.TrackInfoBody{Tracking: &track17.Tracking{Providers: []track17.Provider{{Events: events}}}},
	}
	if len(events) > 0 {
		info.LatestEventInfo = events[0].Description
		info.LatestEventTime = events[0].TimeUTC
	}
	return info
}
