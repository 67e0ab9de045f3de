// Package httpapi exposes a Meter over HTTP
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cubny/taximeter"
	"github.com/cubny/taximeter/internal/location"
)

// Exporter writes the drive history as a text report
type Exporter interface {
	ExportHistoryText(ctx context.Context, dir string) (string, error)
}

// Pusher forwards samples to the meter's location watch
type Pusher interface {
	Push(ctx context.Context, p taximeter.Position) error
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// PresetsResponse is the JSON response for GET /api/presets
type PresetsResponse struct {
	Presets  taximeter.Presets `json:"presets"`
	Selected string            `json:"selected"`
}

// SelectPresetRequest is the body of PUT /api/preset
type SelectPresetRequest struct {
	ID string `json:"id"`
}

// FinishResponse is the JSON response for POST /api/session/finish
type FinishResponse struct {
	Status      taximeter.Status       `json:"status"`
	HistoryItem *taximeter.HistoryItem `json:"history_item"`
}

// Sample is one position of POST /api/samples
type Sample struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	TimestampMs int64   `json:"timestamp_ms"`
	SpeedMps    float64 `json:"speed_mps,omitempty"`
	AccuracyM   float64 `json:"accuracy_m,omitempty"`
}

// SamplesRequest is the body of POST /api/samples
type SamplesRequest struct {
	Samples []Sample `json:"samples"`
}

// SamplesResponse is the JSON response for POST /api/samples
type SamplesResponse struct {
	Accepted int `json:"accepted"`
}

// HistoryResponse is the JSON response for GET /api/history
type HistoryResponse struct {
	Items []taximeter.HistoryItem `json:"items"`
}

// ExportResponse is the JSON response for POST /api/history/export
type ExportResponse struct {
	Path string `json:"path"`
}

// Handler handles HTTP requests for one meter
type Handler struct {
	meter     *taximeter.Meter
	exporter  Exporter
	exportDir string
	// pusher is nil when positions come from somewhere else than the API, e.g. a replay
	pusher Pusher
}

func NewHandler(meter *taximeter.Meter, exporter Exporter, exportDir string, pusher Pusher) *Handler {
	return &Handler{meter: meter, exporter: exporter, exportDir: exportDir, pusher: pusher}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"state":     h.meter.Status().State,
		"timestamp": time.Now().UTC(),
	})
}

// GetPresets handles GET /api/presets
func (h *Handler) GetPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PresetsResponse{
		Presets:  h.meter.Presets(),
		Selected: h.meter.Preset().ID,
	})
}

// SelectPreset handles PUT /api/preset
func (h *Handler) SelectPreset(w http.ResponseWriter, r *http.Request) {
	var req SelectPresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.meter.SelectPreset(req.ID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.meter.Status())
}

// GetSession handles GET /api/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.meter.Status())
}

// SessionAction handles POST /api/session/{action}
func (h *Handler) SessionAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		st  taximeter.Status
		err error
	)
	switch chi.URLParam(r, "action") {
	case "start":
		st, err = h.meter.Start(ctx)
	case "pause":
		st, err = h.meter.Pause(ctx)
	case "resume":
		st, err = h.meter.Resume(ctx)
	case "finish":
		h.finish(w, r)
		return
	case "restore":
		h.restore(w, r)
		return
	default:
		writeError(w, http.StatusNotFound, "unknown session action")
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request) {
	item, err := h.meter.Finish(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, FinishResponse{Status: h.meter.Status(), HistoryItem: item})
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	snap, err := h.meter.PendingSnapshot(r.Context())
	if err != nil {
		log.Printf("[http] load snapshot: %s", err)
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "no interrupted session to restore")
		return
	}
	st, err := h.meter.Restore(r.Context(), *snap)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PostSamples handles POST /api/samples
func (h *Handler) PostSamples(w http.ResponseWriter, r *http.Request) {
	if h.pusher == nil {
		writeError(w, http.StatusConflict, "positions are not taken from the api")
		return
	}
	var req SamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accepted := 0
	for _, s := range req.Samples {
		p := taximeter.Position{
			Coordinate: taximeter.Coordinate{Latitude: s.Latitude, Longitude: s.Longitude},
			Timestamp:  time.UnixMilli(s.TimestampMs),
			SpeedMps:   s.SpeedMps,
			AccuracyM:  s.AccuracyM,
		}
		if err := h.pusher.Push(r.Context(), p); err != nil {
			if accepted == 0 {
				writeError(w, statusFor(err), err.Error())
				return
			}
			break
		}
		accepted++
	}
	writeJSON(w, http.StatusAccepted, SamplesResponse{Accepted: accepted})
}

// GetHistory handles GET /api/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.meter.History(r.Context())
	if err != nil {
		log.Printf("[http] load history: %s", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: items})
}

// ExportHistory handles POST /api/history/export
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	path, err := h.exporter.ExportHistoryText(r.Context(), h.exportDir)
	if err != nil {
		log.Printf("[http] export history: %s", err)
		writeError(w, http.StatusInternalServerError, "failed to export history")
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Path: path})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, taximeter.ErrUnknownPreset):
		return http.StatusNotFound
	case errors.Is(err, taximeter.ErrIllegalTransition), errors.Is(err, location.ErrNotWatching):
		return http.StatusConflict
	case errors.Is(err, taximeter.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, taximeter.ErrInvalidSnapshot):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %s", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
