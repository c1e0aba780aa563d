package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const mediaColumns = `media_id, library_id, path, filename, file_ext, media_type,
	file_size, mtime_ms, fingerprint, duration_ms, width, height, fps,
	video_codec, video_bitrate, audio_codec, audio_channels, audio_sample_rate,
	container_format, rotation, creation_time, camera_make, camera_model,
	gps_lat, gps_lng, is_live_photo_component, live_photo_pair_id,
	status, progress, error_code, error_message, last_completed_stage,
	indexed_at_ms, created_at_ms`

type mediaScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row mediaScanner) (*Media, error) {
	var m Media
	var isLive int
	err := row.Scan(
		&m.MediaID, &m.LibraryID, &m.Path, &m.Filename, &m.FileExt, &m.MediaType,
		&m.FileSize, &m.MtimeMs, &m.Fingerprint, &m.DurationMs, &m.Width, &m.Height, &m.FPS,
		&m.VideoCodec, &m.VideoBitrate, &m.AudioCodec, &m.AudioChannels, &m.AudioSampleRate,
		&m.ContainerFormat, &m.Rotation, &m.CreationTime, &m.CameraMake, &m.CameraModel,
		&m.GPSLat, &m.GPSLng, &isLive, &m.LivePhotoPairID,
		&m.Status, &m.Progress, &m.ErrorCode, &m.ErrorMessage, &m.LastCompletedStage,
		&m.IndexedAtMs, &m.CreatedAtMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning media: %w", err)
	}
	m.IsLivePhotoComponent = isLive != 0
	return &m, nil
}

// InsertMedia inserts a fully-populated media row.
func (s *Store) InsertMedia(ctx context.Context, m *Media) error {
	if m.CreatedAtMs == 0 {
		m.CreatedAtMs = nowMs()
	}
	if m.Status == "" {
		m.Status = StatusQueued
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media (`+mediaColumns+`)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.MediaID, m.LibraryID, m.Path, m.Filename, m.FileExt, m.MediaType,
		m.FileSize, m.MtimeMs, m.Fingerprint, m.DurationMs, m.Width, m.Height, m.FPS,
		m.VideoCodec, m.VideoBitrate, m.AudioCodec, m.AudioChannels, m.AudioSampleRate,
		m.ContainerFormat, m.Rotation, m.CreationTime, m.CameraMake, m.CameraModel,
		m.GPSLat, m.GPSLng, boolToInt(m.IsLivePhotoComponent), m.LivePhotoPairID,
		m.Status, m.Progress, m.ErrorCode, m.ErrorMessage, m.LastCompletedStage,
		m.IndexedAtMs, m.CreatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("inserting media: %w", err)
	}
	return nil
}

// GetMedia returns a media row by id.
func (s *Store) GetMedia(ctx context.Context, mediaID string) (*Media, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE media_id = ?`, mediaID)
	return scanMedia(row)
}

// MediaByLibraryPath loads every media row of a library into a map keyed
// by path. The scanner snapshots before interleaving writes.
func (s *Store) MediaByLibraryPath(ctx context.Context, libraryID string) (map[string]*Media, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE library_id = ?`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("loading library media: %w", err)
	}
	defer rows.Close()

	byPath := make(map[string]*Media)
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		byPath[m.Path] = m
	}
	return byPath, rows.Err()
}

// MediaFilter narrows ListMedia.
type MediaFilter struct {
	LibraryID             string
	MediaType             string
	Status                string
	Tag                   string
	FavoritesOnly         bool
	IncludeLiveComponents bool
	Limit                 int
	Offset                int
}

// ListMedia returns a filtered page of media rows and the pre-pagination
// total. Live-photo components are excluded unless opted in.
func (s *Store) ListMedia(ctx context.Context, f MediaFilter) ([]Media, int, error) {
	conds := []string{"1=1"}
	var args []any
	if !f.IncludeLiveComponents {
		conds = append(conds, "m.is_live_photo_component = 0")
	}
	if f.LibraryID != "" {
		conds = append(conds, "m.library_id = ?")
		args = append(args, f.LibraryID)
	}
	if f.MediaType != "" {
		conds = append(conds, "m.media_type = ?")
		args = append(args, f.MediaType)
	}
	if f.Status != "" {
		conds = append(conds, "m.status = ?")
		args = append(args, f.Status)
	}
	if f.FavoritesOnly {
		conds = append(conds, "m.media_id IN (SELECT media_id FROM media_favorites)")
	}
	if f.Tag != "" {
		conds = append(conds, "m.media_id IN (SELECT media_id FROM media_tags WHERE tag = ?)")
		args = append(args, f.Tag)
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM media m WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting media: %w", err)
	}

	query := `SELECT ` + prefixColumns(mediaColumns, "m.") + ` FROM media m WHERE ` + where +
		` ORDER BY m.created_at_ms DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing media: %w", err)
	}
	defer rows.Close()

	var out []Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

// UpdateMediaFromScan overwrites technical and source columns after a
// changed fingerprint, resets the item to QUEUED and clears error state.
func (s *Store) UpdateMediaFromScan(ctx context.Context, m *Media) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media SET
			filename = ?, file_ext = ?, media_type = ?, file_size = ?, mtime_ms = ?,
			fingerprint = ?, duration_ms = ?, width = ?, height = ?, fps = ?,
			video_codec = ?, video_bitrate = ?, audio_codec = ?, audio_channels = ?,
			audio_sample_rate = ?, container_format = ?, rotation = ?,
			creation_time = ?, camera_make = ?, camera_model = ?, gps_lat = ?, gps_lng = ?,
			is_live_photo_component = ?, live_photo_pair_id = ?,
			status = ?, progress = 0, error_code = NULL, error_message = NULL,
			last_completed_stage = NULL, indexed_at_ms = NULL
		 WHERE media_id = ?`,
		m.Filename, m.FileExt, m.MediaType, m.FileSize, m.MtimeMs,
		m.Fingerprint, m.DurationMs, m.Width, m.Height, m.FPS,
		m.VideoCodec, m.VideoBitrate, m.AudioCodec, m.AudioChannels,
		m.AudioSampleRate, m.ContainerFormat, m.Rotation,
		m.CreationTime, m.CameraMake, m.CameraModel, m.GPSLat, m.GPSLng,
		boolToInt(m.IsLivePhotoComponent), m.LivePhotoPairID,
		StatusQueued, m.MediaID,
	)
	if err != nil {
		return fmt.Errorf("updating media from scan: %w", err)
	}
	return nil
}

// TouchMedia records a new size and mtime without disturbing indexing
// state. Used when a rescan finds the content fingerprint unchanged.
func (s *Store) TouchMedia(ctx context.Context, mediaID string, fileSize, mtimeMs int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media SET file_size = ?, mtime_ms = ? WHERE media_id = ?`,
		fileSize, mtimeMs, mediaID)
	if err != nil {
		return fmt.Errorf("touching media: %w", err)
	}
	return nil
}

// SetMediaProbe overwrites the technical and source-metadata columns
// from a completed probe, leaving indexing state alone.
func (s *Store) SetMediaProbe(ctx context.Context, m *Media) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media SET
			duration_ms = ?, width = ?, height = ?, fps = ?,
			video_codec = ?, video_bitrate = ?, audio_codec = ?, audio_channels = ?,
			audio_sample_rate = ?, container_format = ?, rotation = ?,
			creation_time = ?, camera_make = ?, camera_model = ?, gps_lat = ?, gps_lng = ?
		 WHERE media_id = ?`,
		m.DurationMs, m.Width, m.Height, m.FPS,
		m.VideoCodec, m.VideoBitrate, m.AudioCodec, m.AudioChannels,
		m.AudioSampleRate, m.ContainerFormat, m.Rotation,
		m.CreationTime, m.CameraMake, m.CameraModel, m.GPSLat, m.GPSLng,
		m.MediaID,
	)
	if err != nil {
		return fmt.Errorf("updating media probe: %w", err)
	}
	return nil
}

// DeleteMedia removes a media row; derived rows cascade.
func (s *Store) DeleteMedia(ctx context.Context, mediaID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE media_id = ?`, mediaID)
	if err != nil {
		return fmt.Errorf("deleting media: %w", err)
	}
	return requireRow(res)
}

// SetMediaStatus writes status and progress.
func (s *Store) SetMediaStatus(ctx context.Context, mediaID, status string, progress float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media SET status = ?, progress = ? WHERE media_id = ?`,
		status, progress, mediaID)
	if err != nil {
		return fmt.Errorf("setting media status: %w", err)
	}
	return nil
}

// GetMediaStatus reads the current status only; the pipeline polls this
// at stage boundaries for cooperative cancellation.
func (s *Store) GetMediaStatus(ctx context.Context, mediaID string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM media WHERE media_id = ?`, mediaID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading media status: %w", err)
	}
	return status, nil
}

// SetLastCompletedStage records resumption state after a stage commits.
func (s *Store) SetLastCompletedStage(ctx context.Context, mediaID, stage string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media SET last_completed_stage = ? WHERE media_id = ?`, stage, mediaID)
	if err != nil {
		return fmt.Errorf("setting last completed stage: %w", err)
	}
	return nil
}

// MarkMediaDone finalizes a successful run.
func (s *Store) MarkMediaDone(ctx context.Context, mediaID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media SET status = ?, progress = 1.0, error_code = NULL,
			error_message = NULL, indexed_at_ms = ? WHERE media_id = ?`,
		StatusDone, nowMs(), mediaID)
	if err != nil {
		return fmt.Errorf("marking media done: %w", err)
	}
	return nil
}

// MarkMediaFailed records a terminal stage failure.
func (s *Store) MarkMediaFailed(ctx context.Context, mediaID, code, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media SET status = ?, error_code = ?, error_message = ? WHERE media_id = ?`,
		StatusFailed, code, message, mediaID)
	if err != nil {
		return fmt.Errorf("marking media failed: %w", err)
	}
	return nil
}

// RequeueMedia resets an item to QUEUED for a full re-index, clearing
// errors and the resume marker.
func (s *Store) RequeueMedia(ctx context.Context, mediaID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media SET status = ?, progress = 0, error_code = NULL, error_message = NULL,
			last_completed_stage = NULL, indexed_at_ms = NULL
		 WHERE media_id = ?`,
		StatusQueued, mediaID)
	if err != nil {
		return fmt.Errorf("requeueing media: %w", err)
	}
	return nil
}

// RequeueFailed returns every FAILED item to QUEUED, clearing errors
// and resume markers, and reports how many were requeued.
func (s *Store) RequeueFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE media SET status = ?, progress = 0, error_code = NULL, error_message = NULL,
			last_completed_stage = NULL, indexed_at_ms = NULL
		 WHERE status = ?`,
		StatusQueued, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("requeueing failed media: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SetLivePhotoPair links or unlinks an item with its live photo
// partner. isComponent marks the video half that listings hide.
func (s *Store) SetLivePhotoPair(ctx context.Context, mediaID string, isComponent bool, pairID *string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media SET is_live_photo_component = ?, live_photo_pair_id = ? WHERE media_id = ?`,
		boolToInt(isComponent), pairID, mediaID)
	if err != nil {
		return fmt.Errorf("setting live photo pair: %w", err)
	}
	return nil
}

// RequeueUnfinished forces any row that is neither DONE nor in an
// intermediate stage back to QUEUED. Re-scans use it for self-healing.
func (s *Store) RequeueUnfinished(ctx context.Context, libraryID string) (int64, error) {
	placeholders := strings.Repeat("?,", len(InProgressStatuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{StatusDone}
	for _, st := range InProgressStatuses {
		args = append(args, st)
	}
	args = append(args, libraryID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE media SET status = 'QUEUED', progress = 0,
			error_code = NULL, error_message = NULL
		 WHERE status != ? AND status NOT IN (`+placeholders+`) AND library_id = ?`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("requeueing unfinished media: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// QueuedMedia returns up to limit queued items per the ordering policy.
// When recentFirst is set, items are ordered by the greatest of mtime,
// creation time and insertion time, newest first; otherwise FIFO.
func (s *Store) QueuedMedia(ctx context.Context, limit int, recentFirst bool) ([]Media, error) {
	order := "created_at_ms ASC"
	if recentFirst {
		order = `MAX(mtime_ms,
			COALESCE(CAST(strftime('%s', creation_time) AS INTEGER) * 1000, 0),
			created_at_ms) DESC`
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE status = ? ORDER BY `+order+` LIMIT ?`,
		StatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting queued media: %w", err)
	}
	defer rows.Close()

	var out []Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// CountMediaByStatus groups media rows by status.
func (s *Store) CountMediaByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM media GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting media by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DoneMediaIDs returns the ids of all DONE items, optionally restricted
// to a library. The search planner iterates these for shard lookups.
func (s *Store) DoneMediaIDs(ctx context.Context, libraryID string) ([]string, error) {
	query := `SELECT media_id FROM media WHERE status = ?`
	args := []any{StatusDone}
	if libraryID != "" {
		query += ` AND library_id = ?`
		args = append(args, libraryID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting done media: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning media id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DoneMediaMissingFaces returns DONE items that have frames but no face
// rows, the candidates for a one-off face backfill.
func (s *Store) DoneMediaMissingFaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.media_id FROM media m
		 WHERE m.status = ?
		   AND EXISTS (SELECT 1 FROM frames f WHERE f.video_id = m.media_id)
		   AND NOT EXISTS (SELECT 1 FROM faces fa WHERE fa.video_id = m.media_id)
		 ORDER BY m.created_at_ms ASC`, StatusDone)
	if err != nil {
		return nil, fmt.Errorf("selecting media missing faces: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning media id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceMediaMetadata swaps the extra key/value metadata rows of an item.
func (s *Store) ReplaceMediaMetadata(ctx context.Context, mediaID string, meta map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning metadata tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media_metadata WHERE media_id = ?`, mediaID); err != nil {
		return fmt.Errorf("clearing media metadata: %w", err)
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO media_metadata (media_id, key, value) VALUES (?, ?, ?)`,
			mediaID, k, v); err != nil {
			return fmt.Errorf("inserting media metadata: %w", err)
		}
	}
	return tx.Commit()
}

// MediaMetadata returns the extra metadata map for an item.
func (s *Store) MediaMetadata(ctx context.Context, mediaID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM media_metadata WHERE media_id = ?`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("loading media metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning metadata row: %w", err)
		}
		meta[k] = v.String
	}
	return meta, rows.Err()
}

func prefixColumns(cols, prefix string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
