package catalog

import (
	"context"
	"fmt"
)

// RepairAfterCrash returns interrupted work to a restartable state. Items
// stuck in an intermediate stage go back to QUEUED (keeping
// last_completed_stage so the pipeline can resume past finished work),
// and their jobs are closed out as FAILED.
func (s *Store) RepairAfterCrash(ctx context.Context) (requeued, failed int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning repair tx: %w", err)
	}
	defer tx.Rollback()

	inProgress := make([]any, len(InProgressStatuses))
	placeholders := ""
	for i, st := range InProgressStatuses {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		inProgress[i] = st
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE media SET status = ?, progress = 0
		 WHERE status IN (`+placeholders+`)`,
		append([]any{StatusQueued}, inProgress...)...)
	if err != nil {
		return 0, 0, fmt.Errorf("requeueing interrupted media: %w", err)
	}
	requeued, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_code = 'interrupted',
			error_message = 'engine stopped while job was running', updated_at_ms = ?
		 WHERE status NOT IN (?, ?, ?)`,
		StatusFailed, nowMs(), StatusDone, StatusFailed, StatusCancelled)
	if err != nil {
		return 0, 0, fmt.Errorf("failing interrupted jobs: %w", err)
	}
	failed, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing repair: %w", err)
	}
	return requeued, failed, nil
}

// WipeDerived drops everything the pipeline produced while keeping the
// scanned media rows, person identities and the learned face data
// (references, negatives, pair thresholds). Items return to QUEUED;
// persons keep their names but lose face counts and thumbnails. The
// caller removes derived files on disk.
func (s *Store) WipeDerived(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning wipe tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM frames`,
		`DELETE FROM detections`,
		`DELETE FROM transcript_segments`,
		`DELETE FROM transcript_fts`,
		`DELETE FROM faces`,
		`DELETE FROM jobs`,
		`DELETE FROM media_metadata`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("wiping derived data: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE persons SET face_count = 0, thumbnail_face_id = NULL, updated_at_ms = ?`,
		nowMs()); err != nil {
		return fmt.Errorf("resetting persons: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE media SET status = ?, progress = 0, error_code = NULL, error_message = NULL,
			last_completed_stage = NULL, indexed_at_ms = NULL`,
		StatusQueued); err != nil {
		return fmt.Errorf("resetting media: %w", err)
	}
	return tx.Commit()
}

// WipeFaces drops every face row and the learning state while keeping
// person identities. The caller removes crop files on disk.
func (s *Store) WipeFaces(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning face wipe tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM faces`,
		`DELETE FROM face_references`,
		`DELETE FROM face_negatives`,
		`DELETE FROM person_pair_thresholds`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("wiping faces: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE persons SET face_count = 0, thumbnail_face_id = NULL, updated_at_ms = ?`,
		nowMs()); err != nil {
		return fmt.Errorf("resetting persons: %w", err)
	}
	return tx.Commit()
}

// Stats is the aggregate snapshot served by the stats endpoint.
type Stats struct {
	LibraryCount     int            `json:"library_count"`
	MediaTotal       int            `json:"media_total"`
	MediaByType      map[string]int `json:"media_by_type"`
	MediaByStatus    map[string]int `json:"media_by_status"`
	TotalFileSize    int64          `json:"total_file_size"`
	TotalDurationMs  int64          `json:"total_duration_ms"`
	FrameCount       int            `json:"frame_count"`
	DetectionCount   int            `json:"detection_count"`
	TranscriptCount  int            `json:"transcript_segment_count"`
	FaceCount        int            `json:"face_count"`
	AssignedFaces    int            `json:"assigned_face_count"`
	PersonCount      int            `json:"person_count"`
	ActiveJobCount   int            `json:"active_job_count"`
}

// CollectStats runs the aggregate counts behind the stats endpoint.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		MediaByType:   map[string]int{},
		MediaByStatus: map[string]int{},
	}

	scalars := []struct {
		query string
		dest  any
	}{
		{`SELECT COUNT(*) FROM libraries`, &st.LibraryCount},
		{`SELECT COUNT(*) FROM media`, &st.MediaTotal},
		{`SELECT COALESCE(SUM(file_size), 0) FROM media`, &st.TotalFileSize},
		{`SELECT COALESCE(SUM(duration_ms), 0) FROM media`, &st.TotalDurationMs},
		{`SELECT COUNT(*) FROM frames`, &st.FrameCount},
		{`SELECT COUNT(*) FROM detections`, &st.DetectionCount},
		{`SELECT COUNT(*) FROM transcript_segments`, &st.TranscriptCount},
		{`SELECT COUNT(*) FROM faces`, &st.FaceCount},
		{`SELECT COUNT(*) FROM faces WHERE person_id IS NOT NULL`, &st.AssignedFaces},
		{`SELECT COUNT(*) FROM persons`, &st.PersonCount},
	}
	for _, q := range scalars {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("collecting stats: %w", err)
		}
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status NOT IN (?, ?, ?)`,
		StatusDone, StatusFailed, StatusCancelled).Scan(&st.ActiveJobCount); err != nil {
		return nil, fmt.Errorf("counting active jobs: %w", err)
	}

	for _, group := range []struct {
		query string
		dest  map[string]int
	}{
		{`SELECT media_type, COUNT(*) FROM media GROUP BY media_type`, st.MediaByType},
		{`SELECT status, COUNT(*) FROM media GROUP BY status`, st.MediaByStatus},
	} {
		rows, err := s.db.QueryContext(ctx, group.query)
		if err != nil {
			return nil, fmt.Errorf("grouping stats: %w", err)
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning stats group: %w", err)
			}
			group.dest[key] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return st, nil
}
