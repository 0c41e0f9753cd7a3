// Package storetest is the behaviour every storage.Store backend must pass.
package storetest

import (
	"context"
	"sort"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/storage"
)

type Suite struct {
	suite.Suite

	// NewStore returns an empty store that stamps updates with now. It is called once per test.
	NewStore func(now func() time.Time) storage.Store

	store storage.Store
	ctx   context.Context
	t0    time.Time
	now   time.Time
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.t0 = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	s.now = s.t0.Add(3 * time.Hour)
	s.store = s.NewStore(func() time.Time { return s.now })
	s.Require().NoError(s.store.Clear(s.ctx))
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *Suite) pkg(number string, status models.Status, updated time.Time) models.Package {
	return models.Package{
		TrackingNumber: number,
		CarrierCode:    3011,
		Status:         status,
		CreatedAt:      s.t0,
		UpdatedAt:      updated,
		LastEvent:      &models.TrackingEvent{Description: "Accepted", Timestamp: s.t0.Unix()},
	}
}

func (s *Suite) details(number string) models.PackageDetails {
	return models.PackageDetails{
		Package: s.pkg(number, models.StatusInTransit, s.t0),
		TrackingHistory: []models.TrackingEvent{
			{Description: "Departed", Location: "Shanghai", Timestamp: s.t0.Add(time.Hour).Unix()},
			{Description: "Accepted", Location: "Shenzhen", Timestamp: s.t0.Unix()},
		},
	}
}

func (s *Suite) numbers(pkgs []models.Package) []string {
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, p.TrackingNumber)
	}
	sort.Strings(out)
	return out
}

func (s *Suite) TestEmpty() {
	pkgs, err := s.store.GetPackages(s.ctx)
	s.Require().NoError(err)
	s.Empty(pkgs)

	p, err := s.store.GetPackage(s.ctx, "missing")
	s.Require().NoError(err)
	s.Nil(p)

	d, err := s.store.GetPackageDetails(s.ctx, "missing")
	s.Require().NoError(err)
	s.Nil(d)
}

func (s *Suite) TestSaveAndGetPackages() {
	title := s.pkg("B2", models.StatusDelivered, s.t0)
	title.Title = "Gift"
	s.Require().NoError(s.store.SavePackages(s.ctx, []models.Package{
		s.pkg("A1", models.StatusInTransit, s.t0),
		title,
	}))

	pkgs, err := s.store.GetPackages(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"A1", "B2"}, s.numbers(pkgs))

	got, err := s.store.GetPackage(s.ctx, "B2")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("Gift", got.Title)
	s.Equal(models.StatusDelivered, got.Status)
	s.True(s.t0.Equal(got.CreatedAt))
	s.Require().NotNil(got.LastEvent)
	s.Equal("Accepted", got.LastEvent.Description)
}

func (s *Suite) TestSavePackagesUpserts() {
	s.Require().NoError(s.store.SavePackages(s.ctx, []models.Package{
		s.pkg("A1", models.StatusInTransit, s.t0),
		s.pkg("B2", models.StatusInTransit, s.t0),
	}))
	s.Require().NoError(s.store.SavePackages(s.ctx, []models.Package{
		s.pkg("A1", models.StatusDelivered, s.t0.Add(time.Hour)),
	}))

	pkgs, err := s.store.GetPackages(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"A1", "B2"}, s.numbers(pkgs))

	got, err := s.store.GetPackage(s.ctx, "A1")
	s.Require().NoError(err)
	s.Equal(models.StatusDelivered, got.Status)
	s.True(s.t0.Add(time.Hour).Equal(got.UpdatedAt))
}

func (s *Suite) TestSavePackagesRejectsEmptyKey() {
	err := s.store.SavePackages(s.ctx, []models.Package{
		s.pkg("A1", models.StatusInTransit, s.t0),
		s.pkg("", models.StatusInTransit, s.t0),
	})
	var ve *models.ValidationError
	s.Require().ErrorAs(err, &ve)

	pkgs, err := s.store.GetPackages(s.ctx)
	s.Require().NoError(err)
	s.Empty(pkgs, "a rejected batch must not be partially applied")
}

func (s *Suite) TestUpdatePackage() {
	s.Require().NoError(s.store.SavePackages(s.ctx, []models.Package{s.pkg("A1", models.StatusInTransit, s.t0)}))

	title := "Headphones"
	carrier := 7041
	s.Require().NoError(s.store.UpdatePackage(s.ctx, "A1", models.PackagePatch{Title: &title, CarrierCode: &carrier}))

	got, err := s.store.GetPackage(s.ctx, "A1")
	s.Require().NoError(err)
	s.Equal("Headphones", got.Title)
	s.Equal(7041, got.CarrierCode)
	s.Equal(models.StatusInTransit, got.Status)
	s.True(s.t0.Equal(got.CreatedAt))
	s.True(s.now.Equal(got.UpdatedAt), "updates are stamped by the injected clock, got %s", got.UpdatedAt)
}

func (s *Suite) TestUpdateMissing() {
	title := "x"
	s.ErrorIs(s.store.UpdatePackage(s.ctx, "nope", models.PackagePatch{Title: &title}), models.ErrNotFound)
	s.ErrorIs(s.store.UpdatePackageDetails(s.ctx, "nope", models.PackagePatch{Title: &title}), models.ErrNotFound)
}

func (s *Suite) TestDetails() {
	s.Require().NoError(s.store.SavePackageDetails(s.ctx, s.details("A1")))

	got, err := s.store.GetPackageDetails(s.ctx, "A1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Len(got.TrackingHistory, 2)
	s.Equal("Departed", got.TrackingHistory[0].Description)

	// details and summaries are independent tables
	p, err := s.store.GetPackage(s.ctx, "A1")
	s.Require().NoError(err)
	s.Nil(p)

	title := "Books"
	s.Require().NoError(s.store.UpdatePackageDetails(s.ctx, "A1", models.PackagePatch{Title: &title}))
	got, err = s.store.GetPackageDetails(s.ctx, "A1")
	s.Require().NoError(err)
	s.Equal("Books", got.Title)
	s.Len(got.TrackingHistory, 2)
	s.True(s.now.Equal(got.UpdatedAt))
}

func (s *Suite) TestDeletePackageRemovesBothTables() {
	s.Require().NoError(s.store.SavePackages(s.ctx, []models.Package{
		s.pkg("A1", models.StatusInTransit, s.t0),
		s.pkg("B2", models.StatusInTransit, s.t0),
	}))
	s.Require().NoError(s.store.SavePackageDetails(s.ctx, s.details("A1")))

	s.Require().NoError(s.store.DeletePackage(s.ctx, "A1"))

	p, err := s.store.GetPackage(s.ctx, "A1")
	s.Require().NoError(err)
	s.Nil(p)
	d, err := s.store.GetPackageDetails(s.ctx, "A1")
	s.Require().NoError(err)
	s.Nil(d)

	pkgs, err := s.store.GetPackages(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"B2"}, s.numbers(pkgs))

	s.NoError(s.store.DeletePackage(s.ctx, "A1"), "deleting twice is not an error")
}

func (s *Suite) TestClear() {
	s.Require().NoError(s.store.SavePackages(s.ctx, []models.Package{s.pkg("A1", models.StatusInTransit, s.t0)}))
	s.Require().NoError(s.store.SavePackageDetails(s.ctx, s.details("A1")))

	s.Require().NoError(s.store.Clear(s.ctx))

	pkgs, err := s.store.GetPackages(s.ctx)
	s.Require().NoError(err)
	s.Empty(pkgs)
	d, err := s.store.GetPackageDetails(s.ctx, "A1")
	s.Require().NoError(err)
	s.Nil(d)
}
