package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/BearBump/ParcelDesk/internal/models"
)

const (
	SourceList    = "list"
	SourceDetails = "details"
	SourceEdit    = "edit"
	SourceDelete  = "delete"
)

// PackageUpdated is emitted after a package is written to (or removed from) the local cache.
type PackageUpdated struct {
	EventID        uuid.UUID     `json:"event_id"`
	TrackingNumber string        `json:"tracking_number"`
	CarrierCode    int           `json:"carrier_code"`
	Status         models.Status `json:"status"`
	StatusName     string        `json:"status_name"`
	Title          string        `json:"title,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Source         string        `json:"source"`
	Deleted        bool          `json:"deleted,omitempty"`
}

func NewPackageUpdated(p models.Package, source string) PackageUpdated {
	return PackageUpdated{
		EventID:        uuid.New(),
		TrackingNumber: p.TrackingNumber,
		CarrierCode:    p.CarrierCode,
		Status:         p.Status,
		StatusName:     p.Status.String(),
		Title:          p.Title,
		UpdatedAt:      p.UpdatedAt,
		Source:         source,
	}
}

func NewPackageDeleted(number string, at time.Time) PackageUpdated {
	return PackageUpdated{
		EventID:        uuid.New(),
		TrackingNumber: number,
		UpdatedAt:      at,
		Source:         SourceDelete,
		Deleted:        true,
	}
}
