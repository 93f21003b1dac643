package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Farooqbasha008/advideo/internal/bundle"
	"github.com/Farooqbasha008/advideo/internal/exporter"
	"github.com/Farooqbasha008/advideo/internal/session"
	"github.com/Farooqbasha008/advideo/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/exports", listExportsHandler(cfg))
		r.Post("/export", startExportHandler(cfg))
		r.Get("/export/{id}", getExportHandler(cfg))
		r.Post("/export/{id}/cancel", cancelExportHandler(cfg))
		r.Get("/export/{id}/artifact", exportArtifactHandler(cfg))

		r.Post("/bundles", startBundleHandler(cfg))
		r.Get("/bundles/{id}", getBundleHandler(cfg))
		r.Get("/bundles/{id}/archive", bundleArchiveHandler(cfg))
		r.Get("/bundles/{id}/scenes/{index}/archive", sceneArchiveHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := "idle"
		resp := StatusResponse{}

		if id, active := cfg.Exporter.Active(); active {
			state = "exporting"
			resp.ActiveExportID = id
		}
		if id, active := cfg.Bundler.Active(); active {
			if state == "idle" {
				state = "bundling"
			}
			resp.ActiveBundleID = id
		}
		resp.State = state

		if cfg.Doctor != nil {
			if caps, err := cfg.Doctor.Get(r.Context()); err == nil {
				resp.Encoders = &EncoderResponse{
					HardwareH264: caps.HardwareH264,
					HasLibx264:   caps.HasLibx264,
					HasLibvpx:    caps.HasLibvpx,
				}
				if !caps.ProbedAt.IsZero() {
					resp.Encoders.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}

		exports, err := cfg.Repository.ListExports(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		resp := make([]ExportResponse, 0, len(exports))
		for _, e := range exports {
			resp = append(resp, ExportToResponse(e))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		exp, err := cfg.Exporter.Start(r.Context(), timeline.Timeline(req.Timeline), exporter.Options{
			Title:      req.Title,
			Format:     req.Format,
			Resolution: req.Resolution,
			Quality:    req.Quality,
		})
		switch {
		case errors.Is(err, exporter.ErrBusy):
			WriteError(w, http.StatusConflict, err.Error(), "BUSY")
			return
		case err != nil:
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusAccepted, ExportToResponse(exp))
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exp, err := cfg.Repository.GetExport(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if exp == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, ExportToResponse(exp))
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		exp, err := cfg.Repository.GetExport(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if exp == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}
		if activeID, active := cfg.Exporter.Active(); !active || activeID != id {
			WriteError(w, http.StatusConflict, "export is not running", "NOT_RUNNING")
			return
		}

		cfg.Exporter.Cancel()
		WriteJSON(w, http.StatusAccepted, map[string]string{"status": "canceling"})
	}
}

func exportArtifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exp, err := cfg.Repository.GetExport(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if exp == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}
		if exp.ArtifactPath == "" {
			WriteError(w, http.StatusNotFound, "export has no artifact", "NOT_FOUND")
			return
		}

		if err := cfg.Store.ServeFile(w, r, exp.ArtifactPath); err != nil {
			cfg.Logger.Error("artifact serving error", "error", err, "export_id", exp.ID)
		}
	}
}

func startBundleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BundleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		b, err := cfg.Bundler.Run(r.Context(), req.Project)
		switch {
		case errors.Is(err, bundle.ErrBusy):
			WriteError(w, http.StatusConflict, err.Error(), "BUSY")
			return
		case err != nil:
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusAccepted, BundleToResponse(b, nil))
	}
}

func getBundleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		b, err := cfg.Repository.GetBundle(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if b == nil {
			WriteError(w, http.StatusNotFound, "bundle not found", "NOT_FOUND")
			return
		}

		assets, err := cfg.Repository.GetSceneAssets(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, BundleToResponse(b, assets))
	}
}

func bundleArchiveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := cfg.Repository.GetBundle(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if b == nil {
			WriteError(w, http.StatusNotFound, "bundle not found", "NOT_FOUND")
			return
		}
		if b.ArchivePath == "" {
			if b.Status == session.StatusRunning {
				WriteError(w, http.StatusConflict, "bundle still running", "NOT_READY")
				return
			}
			WriteError(w, http.StatusNotFound, "bundle has no archive", "NOT_FOUND")
			return
		}

		if err := cfg.Store.ServeFile(w, r, b.ArchivePath); err != nil {
			cfg.Logger.Error("archive serving error", "error", err, "bundle_id", b.ID)
		}
	}
}

func sceneArchiveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil || index < 0 {
			WriteError(w, http.StatusBadRequest, "invalid scene index", "BAD_REQUEST")
			return
		}

		b, err := cfg.Repository.GetBundle(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if b == nil {
			WriteError(w, http.StatusNotFound, "bundle not found", "NOT_FOUND")
			return
		}
		if index >= b.SceneCount {
			WriteError(w, http.StatusNotFound, "scene index out of range", "NOT_FOUND")
			return
		}

		// The scene zip only exists once the scene became downloadable.
		if err := cfg.Store.ServeFile(w, r, cfg.Store.SceneArchivePath(id, index)); err != nil {
			cfg.Logger.Error("scene archive serving error", "error", err, "bundle_id", id, "scene", index)
		}
	}
}
