package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/couchcryptid/neo-risk-service/internal/domain"
)

const (
	sourceHeader = "X-Data-Source"
	maxBodyBytes = 64 << 10
)

type api struct {
	lister   AsteroidLister
	alerts   AlertStore
	messages MessageHistory
	logger   *slog.Logger
}

func (a *api) listAsteroids(w http.ResponseWriter, r *http.Request) {
	listing := a.lister.ListAsteroids(r.Context())
	asteroids := listing.Asteroids
	if asteroids == nil {
		asteroids = []domain.Asteroid{}
	}
	w.Header().Set(sourceHeader, string(listing.Source))
	writeJSON(w, http.StatusOK, asteroids)
}

type userRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (a *api) upsertUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeBody(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}
	user, err := a.alerts.UpsertUser(r.Context(), email, strings.TrimSpace(req.Name))
	if err != nil {
		a.storeError(w, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *api) listAlerts(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}

	user, err := a.alerts.UserByEmail(r.Context(), email)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, []domain.Alert{})
		return
	}
	if err != nil {
		a.storeError(w, "user", err)
		return
	}

	alerts, err := a.alerts.ListAlerts(r.Context(), user.ID)
	if err != nil {
		a.storeError(w, "alert", err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

type createAlertRequest struct {
	Name      string `json:"name"`
	Threshold *int   `json:"threshold"`
	Email     string `json:"email"`
}

func (a *api) createAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		writeError(w, http.StatusBadRequest, "name required")
		return
	case req.Threshold == nil || *req.Threshold < 0 || *req.Threshold > 100:
		writeError(w, http.StatusBadRequest, "threshold must be between 0 and 100")
		return
	case strings.TrimSpace(req.Email) == "":
		writeError(w, http.StatusBadRequest, "email required")
		return
	}

	user, err := a.alerts.UserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		a.storeError(w, "user", err)
		return
	}

	alert, err := a.alerts.CreateAlert(r.Context(), domain.Alert{
		Name:      name,
		Threshold: *req.Threshold,
		Enabled:   true,
		UserID:    user.ID,
	})
	if err != nil {
		a.storeError(w, "alert", err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (a *api) setAlertEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := alertID(w, r)
	if !ok {
		return
	}
	var req setEnabledRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled required")
		return
	}

	alert, err := a.alerts.SetAlertEnabled(r.Context(), id, *req.Enabled)
	if err != nil {
		a.storeError(w, "alert", err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (a *api) deleteAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := alertID(w, r)
	if !ok {
		return
	}
	if err := a.alerts.DeleteAlert(r.Context(), id); err != nil {
		a.storeError(w, "alert", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *api) recentMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.messages.Recent(r.Context())
	if err != nil {
		a.storeError(w, "message", err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// storeError maps a store failure to a response. Missing records are 404;
// anything else is logged and reported as 500 without internals.
func (a *api) storeError(w http.ResponseWriter, resource string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, resource+" not found")
		return
	}
	a.logger.Error("store operation failed", "resource", resource, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func alertID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
