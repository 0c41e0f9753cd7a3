package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatus_RoundTrip(t *testing.T) {
	for _, s := range AllStatuses() {
		require.Equal(t, s, ParseStatus(s.String()), s.String())
	}
}

func TestParseStatus_Unknown(t *testing.T) {
	require.Equal(t, StatusNotFound, ParseStatus("Lost"))
	require.Equal(t, StatusNotFound, ParseStatus(""))
	require.Equal(t, StatusNotFound, ParseStatus("delivered")) // exact match only
}

func TestStatus_Order(t *testing.T) {
	all := AllStatuses()
	for i := 1; i < len(all); i++ {
		require.Less(t, all[i-1], all[i])
	}
	require.Equal(t, "NotFound", Status(99).String())
}

func TestStatus_JSONIsNumericCode(t *testing.T) {
	b, err := json.Marshal(Package{TrackingNumber: "A1", Status: StatusDelivered})
	require.NoError(t, err)
	require.Contains(t, string(b), `"status":40`)

	var p Package
	require.NoError(t, json.Unmarshal([]byte(`{"trackingNumber":"A1","status":20}`), &p))
	require.Equal(t, StatusPickUp, p.Status)
}

func TestPackagePatch_Apply(t *testing.T) {
	p := Package{TrackingNumber: "A1", CarrierCode: 1, Title: "old", Status: StatusInTransit}

	PackagePatch{}.Apply(&p)
	require.Equal(t, "old", p.Title)

	title := "Gift"
	carrier := 7041
	PackagePatch{Title: &title, CarrierCode: &carrier}.Apply(&p)
	require.Equal(t, "Gift", p.Title)
	require.Equal(t, 7041, p.CarrierCode)
	require.Equal(t, StatusInTransit, p.Status)

	require.True(t, PackagePatch{}.IsEmpty())
	require.False(t, PackagePatch{Title: &title}.IsEmpty())
}

func TestCarrier_Names(t *testing.T) {
	c := Carrier{Name: "China Post", NameZhCN: "中国邮政"}
	n := c.Names()
	require.Equal(t, "China Post", n["en"])
	require.Equal(t, "中国邮政", n["zh-CN"])
	_, ok := n["zh-HK"]
	require.False(t, ok)
}
