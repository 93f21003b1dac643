// Package bundle exports every scene of a project as a downloadable asset
// bundle: per-scene zips with the visual, voiceover and music files plus a
// scene-info manifest, and one project-wide archive.
package bundle

import "fmt"

// Scene is one storyboard scene with whatever asset URLs are already known.
// A missing voiceover or music URL is generated during the run when the
// scene carries a script or music prompt; a missing visual URL leaves the
// slot pending, visuals are never generated here.
type Scene struct {
	Script      string            `json:"script,omitempty"`
	MusicPrompt string            `json:"music_prompt,omitempty"`
	Params      map[string]string `json:"params,omitempty"`

	PreviewURL   string `json:"preview_url,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	VoiceoverURL string `json:"voiceover_url,omitempty"`
	MusicURL     string `json:"music_url,omitempty"`
}

// Project is the unit a bundle run covers.
type Project struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Scenes []Scene `json:"scenes"`
}

func (p Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("project id is required")
	}
	if len(p.Scenes) == 0 {
		return fmt.Errorf("project has no scenes")
	}
	return nil
}

// Event is one slot status change, published to observers as it happens.
type Event struct {
	SceneIndex int    `json:"scene_index"`
	AssetType  string `json:"asset_type"`
	Status     string `json:"status"`
}
