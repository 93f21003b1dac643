package api

import (
	"time"

	"github.com/Farooqbasha008/advideo/internal/bundle"
	"github.com/Farooqbasha008/advideo/internal/session"
	"github.com/Farooqbasha008/advideo/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State          string           `json:"state"`
	ActiveExportID string           `json:"active_export_id,omitempty"`
	ActiveBundleID string           `json:"active_bundle_id,omitempty"`
	Encoders       *EncoderResponse `json:"encoders,omitempty"`
}

type EncoderResponse struct {
	HardwareH264 string `json:"hardware_h264,omitempty"`
	HasLibx264   bool   `json:"has_libx264"`
	HasLibvpx    bool   `json:"has_libvpx"`
	LastProbeAt  string `json:"last_probe_at,omitempty"`
}

type ExportRequest struct {
	Title      string          `json:"title"`
	Format     string          `json:"format,omitempty"`
	Resolution string          `json:"resolution,omitempty"`
	Quality    string          `json:"quality,omitempty"`
	Timeline   []timeline.Item `json:"timeline"`
}

type ExportResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Stage       string `json:"stage"`
	Progress    int    `json:"progress"`
	Format      string `json:"format"`
	Resolution  string `json:"resolution"`
	Quality     string `json:"quality"`
	Encoder     string `json:"encoder,omitempty"`
	HasArtifact bool   `json:"has_artifact"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type BundleRequest struct {
	Project bundle.Project `json:"project"`
}

type BundleResponse struct {
	ID           string               `json:"id"`
	ProjectID    string               `json:"project_id"`
	Title        string               `json:"title"`
	Status       string               `json:"status"`
	Progress     int                  `json:"progress"`
	SceneCount   int                  `json:"scene_count"`
	Downloadable bool                 `json:"downloadable"`
	Error        string               `json:"error,omitempty"`
	Assets       []SceneAssetResponse `json:"assets,omitempty"`
	CreatedAt    string               `json:"created_at"`
	UpdatedAt    string               `json:"updated_at"`
}

type SceneAssetResponse struct {
	SceneIndex int    `json:"scene_index"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ExportToResponse(e *session.Export) ExportResponse {
	return ExportResponse{
		ID:          e.ID,
		Title:       e.Title,
		Status:      e.Status,
		Stage:       e.Stage,
		Progress:    e.Progress,
		Format:      e.Format,
		Resolution:  e.Resolution,
		Quality:     e.Quality,
		Encoder:     e.Encoder,
		HasArtifact: e.ArtifactPath != "",
		Error:       e.Error,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}

func BundleToResponse(b *session.Bundle, assets []*session.SceneAsset) BundleResponse {
	resp := BundleResponse{
		ID:           b.ID,
		ProjectID:    b.ProjectID,
		Title:        b.Title,
		Status:       b.Status,
		Progress:     b.Progress,
		SceneCount:   b.SceneCount,
		Downloadable: b.ArchivePath != "",
		Error:        b.Error,
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    b.UpdatedAt.Format(time.RFC3339),
	}
	for _, a := range assets {
		resp.Assets = append(resp.Assets, SceneAssetResponse{
			SceneIndex: a.SceneIndex,
			Type:       a.Type,
			Status:     a.Status,
			Error:      a.Error,
		})
	}
	return resp
}
