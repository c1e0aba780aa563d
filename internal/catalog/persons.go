package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const personColumns = `person_id, name, thumbnail_face_id, face_count,
	recognition_mode, created_at_ms, updated_at_ms`

func scanPerson(row interface{ Scan(...any) error }) (Person, error) {
	var p Person
	err := row.Scan(&p.PersonID, &p.Name, &p.ThumbnailFaceID, &p.FaceCount,
		&p.RecognitionMode, &p.CreatedAtMs, &p.UpdatedAtMs)
	return p, err
}

// CreatePerson inserts a person. The name is unique; a duplicate
// surfaces as an error from the unique index.
func (s *Store) CreatePerson(ctx context.Context, p *Person) error {
	now := nowMs()
	p.CreatedAtMs = now
	p.UpdatedAtMs = now
	if p.RecognitionMode == "" {
		p.RecognitionMode = ModeAverage
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persons (`+personColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.PersonID, p.Name, p.ThumbnailFaceID, p.FaceCount,
		p.RecognitionMode, p.CreatedAtMs, p.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("creating person: %w", err)
	}
	return nil
}

func (s *Store) GetPerson(ctx context.Context, personID string) (*Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE person_id = ?`, personID)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading person: %w", err)
	}
	return &p, nil
}

// GetPersonByName resolves a person by exact name, as the search
// planner needs when classifying query terms.
func (s *Store) GetPersonByName(ctx context.Context, name string) (*Person, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE name = ? COLLATE NOCASE`, name)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading person by name: %w", err)
	}
	return &p, nil
}

func (s *Store) ListPersons(ctx context.Context) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM persons ORDER BY name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing persons: %w", err)
	}
	defer rows.Close()

	var persons []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// UpdatePerson writes name, recognition mode and thumbnail choice.
func (s *Store) UpdatePerson(ctx context.Context, p *Person) error {
	p.UpdatedAtMs = nowMs()
	res, err := s.db.ExecContext(ctx,
		`UPDATE persons SET name = ?, thumbnail_face_id = ?, recognition_mode = ?, updated_at_ms = ?
		 WHERE person_id = ?`,
		p.Name, p.ThumbnailFaceID, p.RecognitionMode, p.UpdatedAtMs, p.PersonID)
	if err != nil {
		return fmt.Errorf("updating person: %w", err)
	}
	return requireRow(res)
}

// DeletePerson removes a person. Faces keep their rows with person_id
// nulled by the foreign key; references, negatives and favorites cascade.
func (s *Store) DeletePerson(ctx context.Context, personID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning person delete tx: %w", err)
	}
	defer tx.Rollback()

	// Drop the provenance columns on faces that pointed here so they
	// return to the unassigned pool cleanly.
	if _, err := tx.ExecContext(ctx,
		`UPDATE faces SET assignment_source = NULL, assignment_confidence = NULL, assigned_at_ms = NULL
		 WHERE person_id = ?`, personID); err != nil {
		return fmt.Errorf("clearing face provenance: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM person_favorites WHERE person_id = ?`, personID); err != nil {
		return fmt.Errorf("clearing person favorite: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM person_pair_thresholds WHERE person_a_id = ? OR person_b_id = ?`,
		personID, personID); err != nil {
		return fmt.Errorf("clearing pair thresholds: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE person_id = ?`, personID)
	if err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// RecountPersonFaces recomputes face_count from the live assignments.
func (s *Store) RecountPersonFaces(ctx context.Context, personID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE persons SET face_count =
			(SELECT COUNT(*) FROM faces WHERE person_id = ?), updated_at_ms = ?
		 WHERE person_id = ?`, personID, nowMs(), personID)
	if err != nil {
		return fmt.Errorf("recounting person faces: %w", err)
	}
	return nil
}

// SetPersonThumbnail picks the display face for a person.
func (s *Store) SetPersonThumbnail(ctx context.Context, personID string, faceID *string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE persons SET thumbnail_face_id = ?, updated_at_ms = ? WHERE person_id = ?`,
		faceID, nowMs(), personID)
	if err != nil {
		return fmt.Errorf("setting person thumbnail: %w", err)
	}
	return nil
}

// AddFaceReference marks a face as a high-weight exemplar for a person.
// Re-adding an existing reference updates its weight.
func (s *Store) AddFaceReference(ctx context.Context, faceID, personID string, weight float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO face_references (face_id, person_id, weight, created_at_ms)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(face_id, person_id) DO UPDATE SET weight = excluded.weight`,
		faceID, personID, weight, nowMs())
	if err != nil {
		return fmt.Errorf("adding face reference: %w", err)
	}
	return nil
}

func (s *Store) RemoveFaceReference(ctx context.Context, faceID, personID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM face_references WHERE face_id = ? AND person_id = ?`, faceID, personID)
	if err != nil {
		return fmt.Errorf("removing face reference: %w", err)
	}
	return requireRow(res)
}

func (s *Store) FaceReferences(ctx context.Context, personID string) ([]FaceReference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT face_id, person_id, weight, created_at_ms
		 FROM face_references WHERE person_id = ? ORDER BY created_at_ms ASC`, personID)
	if err != nil {
		return nil, fmt.Errorf("loading face references: %w", err)
	}
	defer rows.Close()

	var refs []FaceReference
	for rows.Next() {
		var r FaceReference
		if err := rows.Scan(&r.FaceID, &r.PersonID, &r.Weight, &r.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("scanning face reference: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// AddFaceNegative records "this face is NOT this person". Duplicate
// pairs are ignored.
func (s *Store) AddFaceNegative(ctx context.Context, faceID, personID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO face_negatives (face_id, person_id, created_at_ms)
		 VALUES (?, ?, ?) ON CONFLICT(face_id, person_id) DO NOTHING`,
		faceID, personID, nowMs())
	if err != nil {
		return fmt.Errorf("adding face negative: %w", err)
	}
	return nil
}

func (s *Store) FaceNegatives(ctx context.Context, personID string) ([]FaceNegative, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT face_id, person_id, created_at_ms
		 FROM face_negatives WHERE person_id = ?`, personID)
	if err != nil {
		return nil, fmt.Errorf("loading face negatives: %w", err)
	}
	defer rows.Close()

	var negs []FaceNegative
	for rows.Next() {
		var n FaceNegative
		if err := rows.Scan(&n.FaceID, &n.PersonID, &n.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("scanning face negative: %w", err)
		}
		negs = append(negs, n)
	}
	return negs, rows.Err()
}

// BumpPairThreshold raises the confusion threshold between two persons
// after a correction. First correction seeds the initial value; later
// ones add the step up to the cap. The pair is stored in sorted order.
func (s *Store) BumpPairThreshold(ctx context.Context, personA, personB string, initial, step, ceiling float64) error {
	if personB < personA {
		personA, personB = personB, personA
	}
	now := nowMs()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO person_pair_thresholds
			(person_a_id, person_b_id, threshold, correction_count, created_at_ms, updated_at_ms)
		 VALUES (?, ?, ?, 1, ?, ?)
		 ON CONFLICT(person_a_id, person_b_id) DO UPDATE SET
			threshold = MIN(threshold + ?, ?),
			correction_count = correction_count + 1,
			updated_at_ms = ?`,
		personA, personB, initial, now, now, step, ceiling, now)
	if err != nil {
		return fmt.Errorf("bumping pair threshold: %w", err)
	}
	return nil
}

// MergePersons moves every face, reference and negative from one person
// onto another, then removes the source person. Returns the number of
// faces that moved.
func (s *Store) MergePersons(ctx context.Context, fromID, toID string) (int64, error) {
	if fromID == toID {
		return 0, fmt.Errorf("cannot merge a person into itself")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning merge tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE faces SET person_id = ? WHERE person_id = ?`, toID, fromID)
	if err != nil {
		return 0, fmt.Errorf("moving faces: %w", err)
	}
	moved, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx,
		`UPDATE OR IGNORE face_references SET person_id = ? WHERE person_id = ?`,
		toID, fromID); err != nil {
		return 0, fmt.Errorf("moving face references: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM face_references WHERE person_id = ?`, fromID); err != nil {
		return 0, fmt.Errorf("clearing leftover references: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE OR IGNORE face_negatives SET person_id = ? WHERE person_id = ?`,
		toID, fromID); err != nil {
		return 0, fmt.Errorf("moving face negatives: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM face_negatives WHERE person_id = ?`, fromID); err != nil {
		return 0, fmt.Errorf("clearing leftover negatives: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM person_pair_thresholds WHERE person_a_id IN (?, ?) OR person_b_id IN (?, ?)`,
		fromID, toID, fromID, toID); err != nil {
		return 0, fmt.Errorf("clearing pair thresholds: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM person_favorites WHERE person_id = ?`, fromID); err != nil {
		return 0, fmt.Errorf("clearing source favorite: %w", err)
	}
	res, err = tx.ExecContext(ctx, `DELETE FROM persons WHERE person_id = ?`, fromID)
	if err != nil {
		return 0, fmt.Errorf("deleting merged person: %w", err)
	}
	if err := requireRow(res); err != nil {
		return 0, err
	}
	now := nowMs()
	if _, err := tx.ExecContext(ctx,
		`UPDATE persons SET face_count =
			(SELECT COUNT(*) FROM faces WHERE person_id = ?), updated_at_ms = ?
		 WHERE person_id = ?`, toID, now, toID); err != nil {
		return 0, fmt.Errorf("recounting target faces: %w", err)
	}
	return moved, tx.Commit()
}

// PairThresholds loads the full learned pair map keyed by the sorted
// (a, b) pair.
func (s *Store) PairThresholds(ctx context.Context) (map[[2]string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_a_id, person_b_id, threshold FROM person_pair_thresholds`)
	if err != nil {
		return nil, fmt.Errorf("loading pair thresholds: %w", err)
	}
	defer rows.Close()

	out := map[[2]string]float64{}
	for rows.Next() {
		var a, b string
		var t float64
		if err := rows.Scan(&a, &b, &t); err != nil {
			return nil, fmt.Errorf("scanning pair threshold: %w", err)
		}
		out[[2]string{a, b}] = t
	}
	return out, rows.Err()
}

// ListPairThresholds returns the full confusion-pair rows, most
// corrected first.
func (s *Store) ListPairThresholds(ctx context.Context) ([]PairThreshold, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_a_id, person_b_id, threshold, correction_count, created_at_ms, updated_at_ms
		 FROM person_pair_thresholds ORDER BY correction_count DESC, updated_at_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing pair thresholds: %w", err)
	}
	defer rows.Close()

	var pairs []PairThreshold
	for rows.Next() {
		var p PairThreshold
		if err := rows.Scan(&p.PersonAID, &p.PersonBID, &p.Threshold,
			&p.CorrectionCount, &p.CreatedAtMs, &p.UpdatedAtMs); err != nil {
			return nil, fmt.Errorf("scanning pair threshold: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
