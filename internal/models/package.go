package models

import "time"

// Status is the shipment state reported by the tracking service.
type Status int

const (
	StatusNotFound    Status = 0
	StatusInTransit   Status = 10
	StatusPickUp      Status = 20
	StatusUndelivered Status = 30
	StatusDelivered   Status = 40
	StatusAlert       Status = 50
	StatusExpired     Status = 60
)

var statusNames = map[Status]string{
	StatusNotFound:    "NotFound",
	StatusInTransit:   "InTransit",
	StatusPickUp:      "PickUp",
	StatusUndelivered: "Undelivered",
	StatusDelivered:   "Delivered",
	StatusAlert:       "Alert",
	StatusExpired:     "Expired",
}

var statusByName = func() map[string]Status {
	m := make(map[string]Status, len(statusNames))
	for s, n := range statusNames {
		m[n] = s
	}
	return m
}()

// AllStatuses lists the statuses in their natural order.
func AllStatuses() []Status {
	return []Status{
		StatusNotFound, StatusInTransit, StatusPickUp, StatusUndelivered,
		StatusDelivered, StatusAlert, StatusExpired,
	}
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return statusNames[StatusNotFound]
}

// ParseStatus maps the exact remote spelling to a Status. Anything unknown is NotFound.
func ParseStatus(s string) Status {
	if st, ok := statusByName[s]; ok {
		return st
	}
	return StatusNotFound
}

// TrackingEvent is a single carrier scan. Timestamp is unix seconds, 0 when unknown.
type TrackingEvent struct {
	Description string `json:"description"`
	Location    string `json:"location"`
	Timestamp   int64  `json:"timestamp"`
	StatusCode  int    `json:"statusCode"`
}

// Package is the list-level view of a tracked parcel.
//
// Title and CreatedAt are owned by the user/local cache; UpdatedAt is the local
// write time used for freshness, TrackedAt is what the provider reported.
type Package struct {
	TrackingNumber string         `json:"trackingNumber"`
	CarrierCode    int            `json:"carrierCode"`
	Status         Status         `json:"status"`
	Title          string         `json:"title,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	TrackedAt      *time.Time     `json:"trackedAt,omitempty"`
	LastEvent      *TrackingEvent `json:"lastEvent,omitempty"`
}

type PackageDetails struct {
	Package
	TrackingHistory []TrackingEvent `json:"trackingHistory"`
}

// PackagePatch is a partial update; nil fields are left untouched.
type PackagePatch struct {
	Title       *string `json:"title,omitempty"`
	CarrierCode *int    `json:"carrierCode,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

func (p PackagePatch) Apply(pkg *Package) {
	if p.Title != nil {
		pkg.Title = *p.Title
	}
	if p.CarrierCode != nil {
		pkg.CarrierCode = *p.CarrierCode
	}
	if p.Status != nil {
		pkg.Status = *p.Status
	}
}

func (p PackagePatch) IsEmpty() bool {
	return p.Title == nil && p.CarrierCode == nil && p.Status == nil
}
