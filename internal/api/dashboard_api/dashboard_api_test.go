package dashboard_api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ParcelDesk/internal/carriers"
	"github.com/BearBump/ParcelDesk/internal/freshness"
	"github.com/BearBump/ParcelDesk/internal/integrations/track17/fake"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/services/refresher"
	"github.com/BearBump/ParcelDesk/internal/services/syncer"
	"github.com/BearBump/ParcelDesk/internal/storage/sqlitestore"
)

type fakeRefresher struct {
	triggered int
}

func (r *fakeRefresher) Trigger() { r.triggered++ }

func (r *fakeRefresher) Stats() refresher.Stats {
	return refresher.Stats{TotalCycles: 3}
}

func newTestServer(t *testing.T, opts ...func(*DashboardAPI)) *httptest.Server {
	t.Helper()
	st, err := sqlitestore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dir, err := carriers.Load("")
	require.NoError(t, err)

	dash := syncer.NewDashboard(st, fake.New(), freshness.New(freshness.DefaultTTL))
	api := New(dash, dir)
	for _, o := range opts {
		o(api)
	}
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

type listResponse struct {
	Data  []models.Package `json:"data"`
	State string           `json:"state"`
	Error string           `json:"error"`
}

func TestPackages_Flow(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/packages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list listResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Empty(t, list.Data)
	require.Equal(t, "ready", list.State)

	resp, body = do(t, http.MethodPost, srv.URL+"/packages", addRequest{TrackingNumber: "LX100", Carrier: 3011, Title: "Books"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, "Books", list.Data[0].Title)

	resp, body = do(t, http.MethodGet, srv.URL+"/packages/LX100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var details struct {
		Data models.PackageDetails `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &details))
	require.Equal(t, "LX100", details.Data.TrackingNumber)
	require.NotNil(t, details.Data.TrackingHistory)

	title := "Novels"
	resp, body = do(t, http.MethodPatch, srv.URL+"/packages/LX100", patchRequest{Title: &title})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var pkg models.Package
	require.NoError(t, json.Unmarshal(body, &pkg))
	require.Equal(t, "Novels", pkg.Title)

	resp, _ = do(t, http.MethodPost, srv.URL+"/packages/LX100/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/packages/LX100", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodPost, srv.URL+"/packages/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Empty(t, list.Data)
}

func TestPackages_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/packages", addRequest{Carrier: 3011})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var er errorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	require.Equal(t, syncer.KindValidation, er.Kind)

	resp, body = do(t, http.MethodGet, srv.URL+"/packages/UNKNOWN", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &er))
	require.Equal(t, "API Error (-18019902): The tracking number is not registered.", er.Error)

	title := "x"
	resp, _ = do(t, http.MethodPatch, srv.URL+"/packages/UNKNOWN", patchRequest{Title: &title})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPatch, srv.URL+"/packages/UNKNOWN", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/packages/UNKNOWN", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/packages", strings.NewReader("{"))
	require.NoError(t, err)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = r.Body.Close()
	require.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestCarriers(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/carriers?q=dhl", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found []models.Carrier
	require.NoError(t, json.Unmarshal(body, &found))
	require.Len(t, found, 1)
	require.Equal(t, 100001, found[0].ID)

	resp, body = do(t, http.MethodGet, srv.URL+"/carriers/popular", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &found))
	require.Equal(t, 1151, found[0].ID)

	resp, _ = do(t, http.MethodGet, srv.URL+"/carriers/19131", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/carriers/1", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/carriers/abc", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOptionalRoutes(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := do(t, http.MethodGet, srv.URL+"/stats", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	ref := &fakeRefresher{}
	srv = newTestServer(t, func(a *DashboardAPI) {
		a.WithRefresher(ref).
			WithSwagger(sw).
			WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("parceldesk_sync_cycles_total 1\n"))
			}))
	})

	resp, body := do(t, http.MethodGet, srv.URL+"/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"totalCycles":3`)

	resp, _ = do(t, http.MethodPost, srv.URL+"/trigger", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, 1, ref.triggered)

	resp, body = do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "parceldesk_sync_cycles_total")

	resp, body = do(t, http.MethodGet, srv.URL+"/swagger.json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"swagger"`)

	resp, _ = do(t, http.MethodGet, srv.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, statusFor(syncer.KindInternal))
	require.Equal(t, http.StatusBadGateway, statusFor(syncer.KindTransport))
}
