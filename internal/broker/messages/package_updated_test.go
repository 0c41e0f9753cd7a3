package messages

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/ParcelDesk/internal/models"
)

func TestNewPackageUpdated(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewPackageUpdated(models.Package{
		TrackingNumber: "A1",
		CarrierCode:    3011,
		Status:         models.StatusDelivered,
		Title:          "Gift",
		UpdatedAt:      at,
	}, SourceList)

	require.NotEqual(t, uuid.Nil, m.EventID)
	require.Equal(t, "Delivered", m.StatusName)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	require.Contains(t, string(b), `"tracking_number":"A1"`)
	require.Contains(t, string(b), `"source":"list"`)
	require.Contains(t, string(b), `"status":40,"status_name":"Delivered"`)
	require.NotContains(t, string(b), `"deleted"`)
}

func TestNewPackageDeleted(t *testing.T) {
	a := NewPackageDeleted("A1", time.Now())
	b := NewPackageDeleted("A1", time.Now())
	require.True(t, a.Deleted)
	require.Equal(t, SourceDelete, a.Source)
	require.NotEqual(t, a.EventID, b.EventID)
}
