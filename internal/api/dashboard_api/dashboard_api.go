package dashboard_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/BearBump/ParcelDesk/internal/carriers"
	"github.com/BearBump/ParcelDesk/internal/logger"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/BearBump/ParcelDesk/internal/services/refresher"
	"github.com/BearBump/ParcelDesk/internal/services/syncer"
)

type Refresher interface {
	Trigger()
	Stats() refresher.Stats
}

type DashboardAPI struct {
	dash        *syncer.Dashboard
	carriers    *carriers.Directory
	refresher   Refresher
	metrics     http.Handler
	swaggerPath string
	log         *zap.Logger
}

func New(dash *syncer.Dashboard, dir *carriers.Directory) *DashboardAPI {
	return &DashboardAPI{dash: dash, carriers: dir, log: logger.Named("http")}
}

func (a *DashboardAPI) WithRefresher(r Refresher) *DashboardAPI {
	a.refresher = r
	return a
}

func (a *DashboardAPI) WithMetrics(h http.Handler) *DashboardAPI {
	a.metrics = h
	return a
}

// WithSwagger serves the given swagger file under /swagger.json and its UI under /docs/.
func (a *DashboardAPI) WithSwagger(path string) *DashboardAPI {
	a.swaggerPath = path
	return a
}

type addRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	Carrier        int    `json:"carrier"`
	Title          string `json:"title,omitempty"`
}

type patchRequest struct {
	Title   *string `json:"title,omitempty"`
	Carrier *int    `json:"carrier,omitempty"`
}

type errorResponse struct {
	Error string           `json:"error"`
	Kind  syncer.ErrorKind `json:"kind"`
}

func (a *DashboardAPI) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/packages", func(r chi.Router) {
		r.Get("/", a.listPackages)
		r.Post("/", a.addPackage)
		r.Post("/refresh", a.refreshPackages)

		r.Route("/{number}", func(r chi.Router) {
			r.Get("/", a.getPackage)
			r.Patch("/", a.patchPackage)
			r.Delete("/", a.deletePackage)
			r.Post("/refresh", a.refreshPackage)
		})
	})

	r.Get("/carriers", a.searchCarriers)
	r.Get("/carriers/popular", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.carriers.Popular())
	})
	r.Get("/carriers/{id}", a.getCarrier)

	if a.refresher != nil {
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, a.refresher.Stats())
		})
		r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
			a.refresher.Trigger()
			writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
		})
	}

	if a.metrics != nil {
		r.Handle("/metrics", a.metrics)
	}

	if a.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, a.swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(a.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	return r
}

func (a *DashboardAPI) listPackages(w http.ResponseWriter, r *http.Request) {
	if err := a.dash.Load(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.dash.List.Snapshot())
}

func (a *DashboardAPI) refreshPackages(w http.ResponseWriter, r *http.Request) {
	if err := a.dash.Refresh(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.dash.List.Snapshot())
}

func (a *DashboardAPI) addPackage(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, models.NewValidationError("body", "is not valid JSON"))
		return
	}
	if err := a.dash.Add(r.Context(), req.TrackingNumber, req.Carrier, req.Title); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.dash.List.Snapshot())
}

func (a *DashboardAPI) getPackage(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	a.inspect(w, r, force)
}

func (a *DashboardAPI) refreshPackage(w http.ResponseWriter, r *http.Request) {
	a.inspect(w, r, true)
}

func (a *DashboardAPI) inspect(w http.ResponseWriter, r *http.Request, force bool) {
	snap, err := a.dash.Inspect(r.Context(), chi.URLParam(r, "number"), force)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *DashboardAPI) patchPackage(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, models.NewValidationError("body", "is not valid JSON"))
		return
	}
	if req.Title == nil && req.Carrier == nil {
		a.writeError(w, models.NewValidationError("body", "needs title or carrier"))
		return
	}

	ctx := r.Context()
	if req.Title != nil {
		if err := a.dash.Rename(ctx, number, *req.Title); err != nil {
			a.writeError(w, err)
			return
		}
	}
	if req.Carrier != nil {
		if err := a.dash.ChangeCarrier(ctx, number, *req.Carrier); err != nil {
			a.writeError(w, err)
			return
		}
	}

	for _, p := range a.dash.List.Snapshot().Data {
		if p.TrackingNumber == number {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *DashboardAPI) deletePackage(w http.ResponseWriter, r *http.Request) {
	if err := a.dash.Delete(r.Context(), chi.URLParam(r, "number")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *DashboardAPI) searchCarriers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.carriers.Search(r.URL.Query().Get("q")))
}

func (a *DashboardAPI) getCarrier(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, models.NewValidationError("id", "must be a number"))
		return
	}
	c, ok := a.carriers.ByID(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "carrier not found", Kind: syncer.KindNotFound})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *DashboardAPI) writeError(w http.ResponseWriter, err error) {
	kind := syncer.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: syncer.Message(err), Kind: kind})
}

func statusFor(kind syncer.ErrorKind) int {
	switch kind {
	case syncer.KindValidation:
		return http.StatusBadRequest
	case syncer.KindNotFound:
		return http.StatusNotFound
	case syncer.KindTransport, syncer.KindAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
