package session

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateExport(ctx context.Context, e *Export) error
	GetExport(ctx context.Context, id string) (*Export, error)
	ListExports(ctx context.Context, limit int) ([]*Export, error)
	UpdateExportProgress(ctx context.Context, id, stage string, progress int) error
	UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error
	SetExportArtifact(ctx context.Context, id, artifactPath string) error
	SetExportEncoder(ctx context.Context, id, encoder string) error

	CreateBundle(ctx context.Context, b *Bundle) error
	GetBundle(ctx context.Context, id string) (*Bundle, error)
	UpdateBundleProgress(ctx context.Context, id string, progress int) error
	UpdateBundleStatus(ctx context.Context, id, status, errorMsg string) error
	SetBundleArchive(ctx context.Context, id, archivePath string) error

	UpsertSceneAsset(ctx context.Context, a *SceneAsset) error
	GetSceneAssets(ctx context.Context, bundleID string) ([]*SceneAsset, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateExport(ctx context.Context, e *Export) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exports (id, title, status, format, resolution, quality, stage, progress, encoder, artifact_path, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Title, e.Status, e.Format, e.Resolution, e.Quality, e.Stage, e.Progress,
		nullString(e.Encoder), nullString(e.ArtifactPath), nullString(e.Error),
		e.CreatedAt.Format(time.RFC3339), e.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetExport(ctx context.Context, id string) (*Export, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, status, format, resolution, quality, stage, progress, encoder, artifact_path, error, created_at, updated_at
		FROM exports WHERE id = ?
	`, id)

	var e Export
	var encoder, artifactPath, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&e.ID, &e.Title, &e.Status, &e.Format, &e.Resolution, &e.Quality,
		&e.Stage, &e.Progress, &encoder, &artifactPath, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.Encoder = encoder.String
	e.ArtifactPath = artifactPath.String
	e.Error = errMsg.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}

func (r *SQLiteRepository) ListExports(ctx context.Context, limit int) ([]*Export, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, status, format, resolution, quality, stage, progress, encoder, artifact_path, error, created_at, updated_at
		FROM exports ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		var e Export
		var encoder, artifactPath, errMsg sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&e.ID, &e.Title, &e.Status, &e.Format, &e.Resolution, &e.Quality,
			&e.Stage, &e.Progress, &encoder, &artifactPath, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.Encoder = encoder.String
		e.ArtifactPath = artifactPath.String
		e.Error = errMsg.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		exports = append(exports, &e)
	}
	return exports, rows.Err()
}

func (r *SQLiteRepository) UpdateExportProgress(ctx context.Context, id, stage string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET stage = ?, progress = ?, updated_at = datetime('now') WHERE id = ?
	`, stage, progress, id)
	return err
}

func (r *SQLiteRepository) UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) SetExportArtifact(ctx context.Context, id, artifactPath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET artifact_path = ?, updated_at = datetime('now') WHERE id = ?
	`, artifactPath, id)
	return err
}

func (r *SQLiteRepository) SetExportEncoder(ctx context.Context, id, encoder string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET encoder = ?, updated_at = datetime('now') WHERE id = ?
	`, encoder, id)
	return err
}

func (r *SQLiteRepository) CreateBundle(ctx context.Context, b *Bundle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bundles (id, project_id, title, status, progress, scene_count, archive_path, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.ProjectID, b.Title, b.Status, b.Progress, b.SceneCount,
		nullString(b.ArchivePath), nullString(b.Error),
		b.CreatedAt.Format(time.RFC3339), b.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetBundle(ctx context.Context, id string) (*Bundle, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, status, progress, scene_count, archive_path, error, created_at, updated_at
		FROM bundles WHERE id = ?
	`, id)

	var b Bundle
	var archivePath, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&b.ID, &b.ProjectID, &b.Title, &b.Status, &b.Progress, &b.SceneCount,
		&archivePath, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.ArchivePath = archivePath.String
	b.Error = errMsg.String
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

func (r *SQLiteRepository) UpdateBundleProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bundles SET progress = ?, updated_at = datetime('now') WHERE id = ?
	`, progress, id)
	return err
}

func (r *SQLiteRepository) UpdateBundleStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bundles SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) SetBundleArchive(ctx context.Context, id, archivePath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bundles SET archive_path = ?, updated_at = datetime('now') WHERE id = ?
	`, archivePath, id)
	return err
}

func (r *SQLiteRepository) UpsertSceneAsset(ctx context.Context, a *SceneAsset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scene_assets (bundle_id, scene_index, asset_type, status, url, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bundle_id, scene_index, asset_type) DO UPDATE SET
			status = excluded.status,
			url = excluded.url,
			error = excluded.error
	`, a.BundleID, a.SceneIndex, a.Type, a.Status, nullString(a.URL), nullString(a.Error))
	return err
}

func (r *SQLiteRepository) GetSceneAssets(ctx context.Context, bundleID string) ([]*SceneAsset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bundle_id, scene_index, asset_type, status, url, error
		FROM scene_assets WHERE bundle_id = ? ORDER BY scene_index, asset_type
	`, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*SceneAsset
	for rows.Next() {
		var a SceneAsset
		var url, errMsg sql.NullString

		if err := rows.Scan(&a.BundleID, &a.SceneIndex, &a.Type, &a.Status, &url, &errMsg); err != nil {
			return nil, err
		}
		a.URL = url.String
		a.Error = errMsg.String
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
