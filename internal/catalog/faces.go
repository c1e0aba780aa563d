package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const faceColumns = `face_id, video_id, frame_id, timestamp_ms,
	bbox_x, bbox_y, bbox_w, bbox_h, confidence, embedding, crop_path,
	age, gender, person_id, cluster_id,
	assignment_source, assignment_confidence, assigned_at_ms, created_at_ms`

func scanFace(row interface{ Scan(...any) error }) (Face, error) {
	var f Face
	err := row.Scan(&f.FaceID, &f.VideoID, &f.FrameID, &f.TimestampMs,
		&f.BboxX, &f.BboxY, &f.BboxW, &f.BboxH, &f.Confidence, &f.Embedding, &f.CropPath,
		&f.Age, &f.Gender, &f.PersonID, &f.ClusterID,
		&f.AssignmentSource, &f.AssignmentConfidence, &f.AssignedAtMs, &f.CreatedAtMs)
	return f, err
}

// ReplaceFaces swaps all faces of an item in one transaction. Used when
// an item is re-indexed; assignments on the old rows are discarded
// because the detections themselves are being regenerated.
func (s *Store) ReplaceFaces(ctx context.Context, videoID string, faces []Face) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning faces tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM faces WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("clearing faces: %w", err)
	}
	for _, f := range faces {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO faces (`+faceColumns+`) VALUES
			 (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.FaceID, f.VideoID, f.FrameID, f.TimestampMs,
			f.BboxX, f.BboxY, f.BboxW, f.BboxH, f.Confidence, f.Embedding, f.CropPath,
			f.Age, f.Gender, f.PersonID, f.ClusterID,
			f.AssignmentSource, f.AssignmentConfidence, f.AssignedAtMs, f.CreatedAtMs); err != nil {
			return fmt.Errorf("inserting face: %w", err)
		}
	}
	return tx.Commit()
}

// GetFace returns one face row including its embedding.
func (s *Store) GetFace(ctx context.Context, faceID string) (*Face, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+faceColumns+` FROM faces WHERE face_id = ?`, faceID)
	f, err := scanFace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading face: %w", err)
	}
	return &f, nil
}

// FacesForVideo returns the faces of one item in timestamp order.
func (s *Store) FacesForVideo(ctx context.Context, videoID string) ([]Face, error) {
	return s.queryFaces(ctx,
		`SELECT `+faceColumns+` FROM faces WHERE video_id = ? ORDER BY timestamp_ms ASC`, videoID)
}

// FacesForPerson returns the faces assigned to a person, newest
// assignment first.
func (s *Store) FacesForPerson(ctx context.Context, personID string) ([]Face, error) {
	return s.queryFaces(ctx,
		`SELECT `+faceColumns+` FROM faces WHERE person_id = ?
		 ORDER BY assigned_at_ms DESC, created_at_ms DESC`, personID)
}

// UnassignedFaces returns faces without a person, grouped cluster-first
// so the review UI can present whole clusters.
func (s *Store) UnassignedFaces(ctx context.Context, limit int) ([]Face, error) {
	return s.queryFaces(ctx,
		`SELECT `+faceColumns+` FROM faces WHERE person_id IS NULL
		 ORDER BY cluster_id IS NULL, cluster_id, confidence DESC LIMIT ?`, limit)
}

// ReviewQueue returns auto-assigned faces whose recognition confidence
// fell below the review cutoff, lowest confidence first.
func (s *Store) ReviewQueue(ctx context.Context, cutoff float64, limit int) ([]Face, error) {
	return s.queryFaces(ctx,
		`SELECT `+faceColumns+` FROM faces
		 WHERE person_id IS NOT NULL AND assignment_source = ?
		   AND assignment_confidence IS NOT NULL AND assignment_confidence < ?
		 ORDER BY assignment_confidence ASC LIMIT ?`, SourceAuto, cutoff, limit)
}

// FacesWithEmbeddings streams every face that has an embedding,
// optionally restricted to assigned or unassigned rows. assigned=nil
// means both.
func (s *Store) FacesWithEmbeddings(ctx context.Context, assigned *bool) ([]Face, error) {
	query := `SELECT ` + faceColumns + ` FROM faces WHERE embedding IS NOT NULL`
	if assigned != nil {
		if *assigned {
			query += ` AND person_id IS NOT NULL`
		} else {
			query += ` AND person_id IS NULL`
		}
	}
	return s.queryFaces(ctx, query)
}

// AssignFace sets (or clears, with personID == nil) a face's person along
// with the assignment provenance columns.
func (s *Store) AssignFace(ctx context.Context, faceID string, personID *string, source string, confidence *float64) error {
	var res sql.Result
	var err error
	if personID == nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE faces SET person_id = NULL, assignment_source = NULL,
			 assignment_confidence = NULL, assigned_at_ms = NULL WHERE face_id = ?`, faceID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE faces SET person_id = ?, assignment_source = ?,
			 assignment_confidence = ?, assigned_at_ms = ? WHERE face_id = ?`,
			*personID, source, confidence, nowMs(), faceID)
	}
	if err != nil {
		return fmt.Errorf("assigning face: %w", err)
	}
	return requireRow(res)
}

// SetFaceCluster records the greedy clustering result for one face.
func (s *Store) SetFaceCluster(ctx context.Context, faceID string, clusterID *string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE faces SET cluster_id = ? WHERE face_id = ?`, clusterID, faceID)
	if err != nil {
		return fmt.Errorf("setting face cluster: %w", err)
	}
	return nil
}

// AssignCluster assigns every unassigned face of a cluster to a person
// in one statement and returns the number of faces moved.
func (s *Store) AssignCluster(ctx context.Context, clusterID, personID, source string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE faces SET person_id = ?, assignment_source = ?, assigned_at_ms = ?
		 WHERE cluster_id = ? AND person_id IS NULL`,
		personID, source, nowMs(), clusterID)
	if err != nil {
		return 0, fmt.Errorf("assigning cluster: %w", err)
	}
	return res.RowsAffected()
}

// PersonAppearance is one face-level sighting of a person in an item.
type PersonAppearance struct {
	VideoID     string
	PersonID    string
	PersonName  string
	TimestampMs int64
}

// PersonAppearances returns the sighting timestamps of the listed
// persons across DONE items. The search planner builds appearance
// windows from it.
func (s *Store) PersonAppearances(ctx context.Context, personIDs []string, libraryID string) ([]PersonAppearance, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(personIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(personIDs)+2)
	for _, id := range personIDs {
		args = append(args, id)
	}
	args = append(args, StatusDone)

	query := `SELECT f.video_id, f.person_id, p.name, f.timestamp_ms
		FROM faces f
		JOIN media m ON m.media_id = f.video_id
		JOIN persons p ON p.person_id = f.person_id
		WHERE f.person_id IN (` + placeholders + `) AND m.status = ?`
	if libraryID != "" {
		query += ` AND m.library_id = ?`
		args = append(args, libraryID)
	}
	query += ` ORDER BY f.video_id, f.timestamp_ms`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading person appearances: %w", err)
	}
	defer rows.Close()

	var out []PersonAppearance
	for rows.Next() {
		var a PersonAppearance
		if err := rows.Scan(&a.VideoID, &a.PersonID, &a.PersonName, &a.TimestampMs); err != nil {
			return nil, fmt.Errorf("scanning appearance: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) queryFaces(ctx context.Context, query string, args ...any) ([]Face, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading faces: %w", err)
	}
	defer rows.Close()

	var faces []Face
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning face: %w", err)
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}
