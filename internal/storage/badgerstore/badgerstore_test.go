package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/storage"
	"github.com/BearBump/ParcelDesk/internal/storage/storetest"
)

func TestBadgerStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		NewStore: func(now func() time.Time) storage.Store {
			st, err := Open("")
			require.NoError(t, err)
			return st.WithClock(now)
		},
	})
}

func TestBadgerStore_OnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, st.SavePackageDetails(ctx, models.PackageDetails{
		Package: models.Package{TrackingNumber: "A1", UpdatedAt: time.Now().UTC()},
	}))
	require.NoError(t, st.Close())

	st, err = Open(dir)
	require.NoError(t, err)
	defer st.Close()

	d, err := st.GetPackageDetails(ctx, "A1")
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NotNil(t, d.TrackingHistory)
}
