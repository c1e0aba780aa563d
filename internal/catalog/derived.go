package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ReplaceFrames deletes prior frame rows for an item and inserts the new
// set in one transaction.
func (s *Store) ReplaceFrames(ctx context.Context, videoID string, frames []Frame) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning frames tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("clearing frames: %w", err)
	}
	for _, f := range frames {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO frames (frame_id, video_id, frame_index, timestamp_ms, thumbnail_path, colors)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			f.FrameID, f.VideoID, f.FrameIndex, f.TimestampMs, f.ThumbnailPath, f.Colors); err != nil {
			return fmt.Errorf("inserting frame: %w", err)
		}
	}
	return tx.Commit()
}

// FramesForVideo returns the frames of an item ordered by frame_index.
func (s *Store) FramesForVideo(ctx context.Context, videoID string) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame_id, video_id, frame_index, timestamp_ms, thumbnail_path, colors
		 FROM frames WHERE video_id = ? ORDER BY frame_index ASC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("loading frames: %w", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.FrameID, &f.VideoID, &f.FrameIndex, &f.TimestampMs, &f.ThumbnailPath, &f.Colors); err != nil {
			return nil, fmt.Errorf("scanning frame: %w", err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// FramesByIndex fetches specific frame rows of one item keyed by index.
// The search planner batches shard hits through this.
func (s *Store) FramesByIndex(ctx context.Context, videoID string, indexes []int) (map[int]Frame, error) {
	if len(indexes) == 0 {
		return map[int]Frame{}, nil
	}
	placeholders := strings.Repeat("?,", len(indexes))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{videoID}
	for _, idx := range indexes {
		args = append(args, idx)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame_id, video_id, frame_index, timestamp_ms, thumbnail_path, colors
		 FROM frames WHERE video_id = ? AND frame_index IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("loading frames by index: %w", err)
	}
	defer rows.Close()

	out := make(map[int]Frame, len(indexes))
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.FrameID, &f.VideoID, &f.FrameIndex, &f.TimestampMs, &f.ThumbnailPath, &f.Colors); err != nil {
			return nil, fmt.Errorf("scanning frame: %w", err)
		}
		out[f.FrameIndex] = f
	}
	return out, rows.Err()
}

// ReplaceDetections swaps all detections of an item in one transaction.
func (s *Store) ReplaceDetections(ctx context.Context, videoID string, dets []Detection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning detections tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM detections WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("clearing detections: %w", err)
	}
	for _, d := range dets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO detections (video_id, frame_id, timestamp_ms, label, confidence,
				bbox_x, bbox_y, bbox_w, bbox_h)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.VideoID, d.FrameID, d.TimestampMs, d.Label, d.Confidence,
			d.BboxX, d.BboxY, d.BboxW, d.BboxH); err != nil {
			return fmt.Errorf("inserting detection: %w", err)
		}
	}
	return tx.Commit()
}

// DetectionMoment is one (item, timestamp) with the best confidence for
// a label, as consumed by the search planner's detection pass.
type DetectionMoment struct {
	VideoID       string
	TimestampMs   int64
	MaxConfidence float64
	Labels        []string
	ThumbnailPath string
}

// DetectionMoments groups detections of one label by moment, keeping the
// max confidence, restricted to DONE items and optionally one library.
func (s *Store) DetectionMoments(ctx context.Context, label, libraryID string, limit int) ([]DetectionMoment, error) {
	query := `SELECT d.video_id, d.timestamp_ms, MAX(d.confidence),
			GROUP_CONCAT(DISTINCT d.label),
			COALESCE(MIN(f.thumbnail_path), '')
		FROM detections d
		JOIN media m ON m.media_id = d.video_id
		LEFT JOIN frames f ON f.frame_id = d.frame_id
		WHERE d.label = ? AND m.status = ?`
	args := []any{label, StatusDone}
	if libraryID != "" {
		query += ` AND m.library_id = ?`
		args = append(args, libraryID)
	}
	query += ` GROUP BY d.video_id, d.timestamp_ms ORDER BY MAX(d.confidence) DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("grouping detections: %w", err)
	}
	defer rows.Close()

	var out []DetectionMoment
	for rows.Next() {
		var m DetectionMoment
		var joined string
		if err := rows.Scan(&m.VideoID, &m.TimestampMs, &m.MaxConfidence, &joined, &m.ThumbnailPath); err != nil {
			return nil, fmt.Errorf("scanning detection moment: %w", err)
		}
		if joined != "" {
			m.Labels = strings.Split(joined, ",")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DetectionLabelsNear returns distinct labels from the given set detected
// within the window around a timestamp of one item.
func (s *Store) DetectionLabelsNear(ctx context.Context, videoID string, timestampMs, windowMs int64, labels []string) ([]string, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(labels))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{videoID, timestampMs - windowMs, timestampMs + windowMs}
	for _, l := range labels {
		args = append(args, l)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT label FROM detections
		 WHERE video_id = ? AND timestamp_ms BETWEEN ? AND ? AND label IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("looking up nearby detections: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LabelMoment is one grouped moment of the label-only search path.
type LabelMoment struct {
	VideoID       string
	TimestampMs   int64
	Labels        []string
	ThumbnailPath string
}

// LabelMoments groups detections matching any of labels by moment and
// joins the nearest frame for a thumbnail, ordered by distinct-label
// hits descending then timestamp ascending.
func (s *Store) LabelMoments(ctx context.Context, labels []string, libraryID string, limit, offset int) ([]LabelMoment, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(labels))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(labels)+4)
	for _, l := range labels {
		args = append(args, l)
	}
	args = append(args, StatusDone)

	query := `SELECT d.video_id, d.timestamp_ms,
			GROUP_CONCAT(DISTINCT d.label),
			COUNT(DISTINCT d.label) AS label_hits,
			COALESCE(MIN(f.thumbnail_path), '')
		FROM detections d
		JOIN media m ON m.media_id = d.video_id
		LEFT JOIN frames f ON f.frame_id = d.frame_id
		WHERE d.label IN (` + placeholders + `) AND m.status = ?`
	if libraryID != "" {
		query += ` AND m.library_id = ?`
		args = append(args, libraryID)
	}
	query += ` GROUP BY d.video_id, d.timestamp_ms
		ORDER BY label_hits DESC, d.timestamp_ms ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("grouping label moments: %w", err)
	}
	defer rows.Close()

	var out []LabelMoment
	for rows.Next() {
		var m LabelMoment
		var joined string
		var hits int
		if err := rows.Scan(&m.VideoID, &m.TimestampMs, &joined, &hits, &m.ThumbnailPath); err != nil {
			return nil, fmt.Errorf("scanning label moment: %w", err)
		}
		if joined != "" {
			m.Labels = strings.Split(joined, ",")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountLabelMoments returns the total moment count the label-only path
// would page through, mirroring the grouping of LabelMoments.
func (s *Store) CountLabelMoments(ctx context.Context, labels []string, libraryID string) (int, error) {
	if len(labels) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(labels))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(labels)+2)
	for _, l := range labels {
		args = append(args, l)
	}
	args = append(args, StatusDone)

	query := `SELECT COUNT(*) FROM (
			SELECT d.video_id FROM detections d
			JOIN media m ON m.media_id = d.video_id
			WHERE d.label IN (` + placeholders + `) AND m.status = ?`
	if libraryID != "" {
		query += ` AND m.library_id = ?`
		args = append(args, libraryID)
	}
	query += ` GROUP BY d.video_id, d.timestamp_ms)`

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting label moments: %w", err)
	}
	return n, nil
}

// FrameThumbnailInWindow returns the thumbnail of the first frame of an
// item inside [startMs, endMs), or "" when the window has no frames.
func (s *Store) FrameThumbnailInWindow(ctx context.Context, videoID string, startMs, endMs int64) (string, error) {
	var thumb string
	err := s.db.QueryRowContext(ctx,
		`SELECT thumbnail_path FROM frames
		 WHERE video_id = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		 ORDER BY timestamp_ms ASC LIMIT 1`, videoID, startMs, endMs).Scan(&thumb)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up window thumbnail: %w", err)
	}
	return thumb, nil
}

// ReplaceTranscript swaps the transcript of an item in both the base
// table and the full-text index within one transaction.
func (s *Store) ReplaceTranscript(ctx context.Context, videoID string, segments []TranscriptSegment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transcript tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_segments WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("clearing transcript segments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_fts WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("clearing transcript fts: %w", err)
	}
	for _, seg := range segments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transcript_segments (video_id, start_ms, end_ms, text, confidence)
			 VALUES (?, ?, ?, ?, ?)`,
			seg.VideoID, seg.StartMs, seg.EndMs, seg.Text, seg.Confidence); err != nil {
			return fmt.Errorf("inserting transcript segment: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transcript_fts (video_id, start_ms, end_ms, text)
			 VALUES (?, ?, ?, ?)`,
			seg.VideoID, seg.StartMs, seg.EndMs, seg.Text); err != nil {
			return fmt.Errorf("inserting fts row: %w", err)
		}
	}
	return tx.Commit()
}

// TranscriptForVideo returns the segments of an item in start order.
func (s *Store) TranscriptForVideo(ctx context.Context, videoID string) ([]TranscriptSegment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, video_id, start_ms, end_ms, text, confidence
		 FROM transcript_segments WHERE video_id = ? ORDER BY start_ms ASC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("loading transcript: %w", err)
	}
	defer rows.Close()

	var segs []TranscriptSegment
	for rows.Next() {
		var seg TranscriptSegment
		if err := rows.Scan(&seg.ID, &seg.VideoID, &seg.StartMs, &seg.EndMs, &seg.Text, &seg.Confidence); err != nil {
			return nil, fmt.Errorf("scanning transcript segment: %w", err)
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// TranscriptHit is one full-text match with its BM25 rank and snippet.
type TranscriptHit struct {
	VideoID string
	StartMs int64
	EndMs   int64
	Snippet string
	Rank    float64
}

// SearchTranscripts runs an exact-phrase match on the full-text index,
// ranked by BM25, optionally restricted to one library.
func (s *Store) SearchTranscripts(ctx context.Context, phrase, libraryID string, limit int) ([]TranscriptHit, error) {
	// Embedded double quotes would break the phrase syntax.
	phrase = strings.ReplaceAll(phrase, `"`, "")
	match := `"` + phrase + `"`

	query := `SELECT t.video_id, t.start_ms, t.end_ms,
			snippet(transcript_fts, 3, '<mark>', '</mark>', '...', 20),
			bm25(transcript_fts)
		FROM transcript_fts t`
	args := []any{}
	if libraryID != "" {
		query += ` JOIN media m ON m.media_id = t.video_id`
	}
	query += ` WHERE transcript_fts MATCH ?`
	args = append(args, match)
	if libraryID != "" {
		query += ` AND m.library_id = ?`
		args = append(args, libraryID)
	}
	query += ` ORDER BY bm25(transcript_fts) LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching transcripts: %w", err)
	}
	defer rows.Close()

	var hits []TranscriptHit
	for rows.Next() {
		var h TranscriptHit
		if err := rows.Scan(&h.VideoID, &h.StartMs, &h.EndMs, &h.Snippet, &h.Rank); err != nil {
			return nil, fmt.Errorf("scanning transcript hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
