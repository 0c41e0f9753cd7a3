package track17

import (
	"strings"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
}

// ParseTime accepts the ISO-8601 and UTC spellings the provider uses.
// Strings without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// unixSeconds returns 0 for anything unparseable.
func unixSeconds(s string) int64 {
	t, ok := ParseTime(s)
	if !ok {
		return 0
	}
	return t.Unix()
}

func tag(t *string) string {
	if t == nil {
		return ""
	}
	return *t
}

func timeOr(s string, fallback time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return fallback
}

func timePtr(s string) *time.Time {
	t, ok := ParseTime(s)
	if !ok {
		return nil
	}
	return &t
}

// ToPackage converts a list row. UpdatedAt is set to now: it is the local sync time.
func ToPackage(item TrackListItem, now time.Time) models.Package {
	now = now.UTC()
	pkg := models.Package{
		TrackingNumber: item.Number,
		CarrierCode:    item.Carrier,
		Status:         models.ParseStatus(item.PackageStatus),
		Title:          tag(item.Tag),
		CreatedAt:      timeOr(item.RegisterTime, now),
		UpdatedAt:      now,
		TrackedAt:      timePtr(item.TrackTime),
	}
	if item.LatestEventInfo != "" {
		pkg.LastEvent = &models.TrackingEvent{
			Description: item.LatestEventInfo,
			Timestamp:   unixSeconds(item.LatestEventTime),
		}
	}
	return pkg
}

// ToPackageDetails flattens providers into one history in the order received.
// With no provider events, the latest_event_* summary becomes a one-element history.
func ToPackageDetails(info TrackInfo, now time.Time) models.PackageDetails {
	now = now.UTC()

	var history []models.TrackingEvent
	if info.TrackInfo != nil && info.TrackInfo.Tracking != nil {
		for _, p := range info.TrackInfo.Tracking.Providers {
			for _, e := range p.Events {
				ts := e.TimeUTC
				if ts == "" {
					ts = e.TimeISO
				}
				history = append(history, models.TrackingEvent{
					Description: e.Description,
					Location:    e.Location,
					Timestamp:   unixSeconds(ts),
				})
			}
		}
	}
	if len(history) == 0 && info.LatestEventInfo != "" {
		history = append(history, models.TrackingEvent{
			Description: info.LatestEventInfo,
			Timestamp:   unixSeconds(info.LatestEventTime),
		})
	}
	if history == nil {
		history = []models.TrackingEvent{}
	}

	d := models.PackageDetails{
		Package: models.Package{
			TrackingNumber: info.Number,
			CarrierCode:    info.Carrier,
			Status:         models.ParseStatus(info.PackageStatus),
			Title:          tag(info.Tag),
			CreatedAt:      timeOr(info.RegisterTime, now),
			UpdatedAt:      now,
			TrackedAt:      timePtr(info.TrackTime),
		},
		TrackingHistory: history,
	}
	if len(history) > 0 {
		last := history[0]
		d.LastEvent = &last
	}
	return d
}
