package bundle

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Farooqbasha008/advideo/internal/session"
)

// sceneInfo is the scene-info.json written into every scene zip.
type sceneInfo struct {
	Script      string            `json:"script,omitempty"`
	MusicPrompt string            `json:"music_prompt,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Assets      map[string]string `json:"assets"` // asset type -> status
}

// manifest is the manifest.json at the root of the project archive.
type manifest struct {
	ProjectID  string          `json:"project_id"`
	Title      string          `json:"title"`
	ExportedAt time.Time       `json:"exported_at"`
	Scenes     []manifestScene `json:"scenes"`
}

type manifestScene struct {
	Index        int               `json:"index"`
	HasPreview   bool              `json:"has_preview"`
	HasVideo     bool              `json:"has_video"`
	HasVoiceover bool              `json:"has_voiceover"`
	HasMusic     bool              `json:"has_music"`
	Params       map[string]string `json:"params,omitempty"`
}

// buildSceneZip packages one scene's materialized assets plus its
// scene-info.json. The zip is cached: once built it is reused. Returns ""
// for a scene that is not downloadable.
func buildSceneZip(st *sceneState) (string, error) {
	zipPath := st.dir + ".zip"
	if _, err := os.Stat(zipPath); err == nil {
		return zipPath, nil
	}

	if !sceneDownloadable(st) {
		return "", nil
	}
	var files []string
	for _, typ := range session.AssetTypes {
		if s := st.slots[typ]; s.localPath != "" {
			files = append(files, s.localPath)
		}
	}
	if len(files) == 0 {
		return "", nil
	}

	info := sceneInfo{
		Script:      st.scene.Script,
		MusicPrompt: st.scene.MusicPrompt,
		Params:      st.scene.Params,
		Assets:      make(map[string]string, len(st.slots)),
	}
	for typ, s := range st.slots {
		info.Assets[typ] = s.status
	}
	infoJSON, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal scene info: %w", err)
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("create scene zip: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, path := range files {
		if err := addFileToZip(zw, path, filepath.Base(path)); err != nil {
			zw.Close()
			os.Remove(zipPath)
			return "", err
		}
	}
	w, err := zw.Create("scene-info.json")
	if err != nil {
		zw.Close()
		os.Remove(zipPath)
		return "", err
	}
	if _, err := w.Write(infoJSON); err != nil {
		zw.Close()
		os.Remove(zipPath)
		return "", err
	}
	if err := zw.Close(); err != nil {
		os.Remove(zipPath)
		return "", fmt.Errorf("close scene zip: %w", err)
	}
	return zipPath, nil
}

// buildProjectZip packages every scene folder plus the project manifest.
func (e *Exporter) buildProjectZip(project Project, b *session.Bundle, scenes []*sceneState) (string, error) {
	archivePath := e.store.BundleArchivePath(b.ID)

	m := manifest{
		ProjectID:  project.ID,
		Title:      project.Title,
		ExportedAt: time.Now().UTC(),
	}
	for i, st := range scenes {
		m.Scenes = append(m.Scenes, manifestScene{
			Index:        i,
			HasPreview:   st.slots[session.AssetPreview].status == session.AssetCompleted,
			HasVideo:     st.slots[session.AssetVideo].status == session.AssetCompleted,
			HasVoiceover: st.slots[session.AssetVoiceover].status == session.AssetCompleted,
			HasMusic:     st.slots[session.AssetMusic].status == session.AssetCompleted,
			Params:       st.scene.Params,
		})
	}
	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create project archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for i, st := range scenes {
		prefix := fmt.Sprintf("scene-%d/", i+1)
		for _, typ := range session.AssetTypes {
			s := st.slots[typ]
			if s.localPath == "" {
				continue
			}
			if err := addFileToZip(zw, s.localPath, prefix+filepath.Base(s.localPath)); err != nil {
				zw.Close()
				os.Remove(archivePath)
				return "", err
			}
		}
	}
	w, err := zw.Create("manifest.json")
	if err != nil {
		zw.Close()
		os.Remove(archivePath)
		return "", err
	}
	if _, err := w.Write(manifestJSON); err != nil {
		zw.Close()
		os.Remove(archivePath)
		return "", err
	}
	if err := zw.Close(); err != nil {
		os.Remove(archivePath)
		return "", fmt.Errorf("close project archive: %w", err)
	}
	return archivePath, nil
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
