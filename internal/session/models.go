// Package session holds the persisted state of export and bundle runs: the
// models, the Repository contract and its sqlite implementation.
package session

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"

	StageInit     = "init"
	StagePrepare  = "prepare"
	StageRender   = "render"
	StageFlush    = "flush"
	StageMux      = "mux"
	StageFinalize = "finalize"
)

// Export is one video export session.
type Export struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	Format       string    `json:"format"`
	Resolution   string    `json:"resolution"`
	Quality      string    `json:"quality"`
	Stage        string    `json:"stage"`
	Progress     int       `json:"progress"`
	Encoder      string    `json:"encoder,omitempty"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Bundle is one asset-bundle export session covering every scene of a
// project.
type Bundle struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	SceneCount  int       `json:"scene_count"`
	ArchivePath string    `json:"archive_path,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	AssetPreview   = "preview"
	AssetVideo     = "video"
	AssetVoiceover = "voiceover"
	AssetMusic     = "music"

	AssetPending    = "pending"
	AssetProcessing = "processing"
	AssetCompleted  = "completed"
	AssetError      = "error"
)

// AssetTypes is the fixed slot order for one scene.
var AssetTypes = []string{AssetPreview, AssetVideo, AssetVoiceover, AssetMusic}

// SceneAsset is one asset slot of one scene inside a bundle.
type SceneAsset struct {
	BundleID   string `json:"bundle_id"`
	SceneIndex int    `json:"scene_index"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}

func NewID() string {
	return uuid.NewString()
}
