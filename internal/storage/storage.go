// Package storage defines the two-table package cache shared by every backend.
//
// The summary table holds models.Package and the details table models.PackageDetails,
// both keyed by tracking number. Reads of a missing key return (nil, nil);
// updates of a missing key return models.ErrNotFound.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ParcelDesk/internal/models"
)

type Store interface {
	// SavePackages upserts the whole batch atomically.
	SavePackages(ctx context.Context, pkgs []models.Package) error
	GetPackages(ctx context.Context) ([]models.Package, error)
	GetPackage(ctx context.Context, number string) (*models.Package, error)
	// UpdatePackage merges patch into the stored summary and stamps UpdatedAt.
	UpdatePackage(ctx context.Context, number string, patch models.PackagePatch) error

	SavePackageDetails(ctx context.Context, d models.PackageDetails) error
	GetPackageDetails(ctx context.Context, number string) (*models.PackageDetails, error)
	UpdatePackageDetails(ctx context.Context, number string, patch models.PackagePatch) error

	// DeletePackage removes number from both tables in one transaction.
	DeletePackage(ctx context.Context, number string) error
	Clear(ctx context.Context) error
	Close() error
}

// UTCNow is the default backend clock.
func UTCNow() time.Time {
	return time.Now().UTC()
}

func ValidateKey(number string) error {
	if number == "" {
		return models.NewValidationError("trackingNumber", "is required")
	}
	return nil
}

func ValidatePackages(pkgs []models.Package) error {
	for _, p := range pkgs {
		if err := ValidateKey(p.TrackingNumber); err != nil {
			return err
		}
	}
	return nil
}

func EncodePackage(p models.Package) ([]byte, error) {
	b, err := json.Marshal(p)
	return b, errors.Wrap(err, "encode package")
}

func DecodePackage(b []byte) (*models.Package, error) {
	var p models.Package
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, errors.Wrap(err, "decode package")
	}
	return &p, nil
}

func EncodeDetails(d models.PackageDetails) ([]byte, error) {
	if d.TrackingHistory == nil {
		d.TrackingHistory = []models.TrackingEvent{}
	}
	b, err := json.Marshal(d)
	return b, errors.Wrap(err, "encode details")
}

func DecodeDetails(b []byte) (*models.PackageDetails, error) {
	var d models.PackageDetails
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, errors.Wrap(err, "decode details")
	}
	return &d, nil
}

// PatchPackage applies patch to the encoded summary, stamps UpdatedAt with at and
// returns the re-encoded record.
func PatchPackage(payload []byte, patch models.PackagePatch, at time.Time) ([]byte, time.Time, error) {
	p, err := DecodePackage(payload)
	if err != nil {
		return nil, time.Time{}, err
	}
	patch.Apply(p)
	p.UpdatedAt = at
	b, err := EncodePackage(*p)
	return b, p.UpdatedAt, err
}

// PatchDetails is PatchPackage for the details table.
func PatchDetails(payload []byte, patch models.PackagePatch, at time.Time) ([]byte, time.Time, error) {
	d, err := DecodeDetails(payload)
	if err != nil {
		return nil, time.Time{}, err
	}
	patch.Apply(&d.Package)
	d.UpdatedAt = at
	b, err := EncodeDetails(*d)
	return b, d.UpdatedAt, err
}
