package catalog

import "fmt"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS libraries (
		library_id TEXT PRIMARY KEY,
		folder_path TEXT NOT NULL UNIQUE,
		name TEXT,
		recursive INTEGER NOT NULL DEFAULT 1,
		created_at_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS media (
		media_id TEXT PRIMARY KEY,
		library_id TEXT NOT NULL REFERENCES libraries(library_id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_ext TEXT NOT NULL,
		media_type TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		mtime_ms INTEGER NOT NULL DEFAULT 0,
		fingerprint TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER,
		width INTEGER,
		height INTEGER,
		fps REAL,
		video_codec TEXT,
		video_bitrate INTEGER,
		audio_codec TEXT,
		audio_channels INTEGER,
		audio_sample_rate INTEGER,
		container_format TEXT,
		rotation INTEGER NOT NULL DEFAULT 0,
		creation_time TEXT,
		camera_make TEXT,
		camera_model TEXT,
		gps_lat REAL,
		gps_lng REAL,
		is_live_photo_component INTEGER NOT NULL DEFAULT 0,
		live_photo_pair_id TEXT,
		status TEXT NOT NULL DEFAULT 'QUEUED',
		progress REAL NOT NULL DEFAULT 0,
		error_code TEXT,
		error_message TEXT,
		last_completed_stage TEXT,
		indexed_at_ms INTEGER,
		created_at_ms INTEGER NOT NULL,
		UNIQUE(library_id, path)
	)`,
	`CREATE TABLE IF NOT EXISTS media_metadata (
		media_id TEXT NOT NULL REFERENCES media(media_id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		value TEXT,
		PRIMARY KEY (media_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS frames (
		frame_id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL REFERENCES media(media_id) ON DELETE CASCADE,
		frame_index INTEGER NOT NULL,
		timestamp_ms INTEGER NOT NULL,
		thumbnail_path TEXT NOT NULL,
		colors TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id TEXT NOT NULL REFERENCES media(media_id) ON DELETE CASCADE,
		frame_id TEXT,
		timestamp_ms INTEGER NOT NULL,
		label TEXT NOT NULL,
		confidence REAL NOT NULL,
		bbox_x REAL, bbox_y REAL, bbox_w REAL, bbox_h REAL
	)`,
	`CREATE TABLE IF NOT EXISTS transcript_segments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id TEXT NOT NULL REFERENCES media(media_id) ON DELETE CASCADE,
		start_ms INTEGER NOT NULL,
		end_ms INTEGER NOT NULL,
		text TEXT NOT NULL,
		confidence REAL
	)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS transcript_fts USING fts5(
		video_id,
		start_ms UNINDEXED,
		end_ms UNINDEXED,
		text,
		tokenize="unicode61"
	)`,
	`CREATE TABLE IF NOT EXISTS persons (
		person_id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		thumbnail_face_id TEXT,
		face_count INTEGER NOT NULL DEFAULT 0,
		recognition_mode TEXT NOT NULL DEFAULT 'average',
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS faces (
		face_id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL REFERENCES media(media_id) ON DELETE CASCADE,
		frame_id TEXT,
		timestamp_ms INTEGER NOT NULL,
		bbox_x REAL, bbox_y REAL, bbox_w REAL, bbox_h REAL,
		confidence REAL NOT NULL,
		embedding BLOB,
		crop_path TEXT,
		age INTEGER,
		gender TEXT,
		person_id TEXT REFERENCES persons(person_id) ON DELETE SET NULL,
		cluster_id TEXT,
		assignment_source TEXT,
		assignment_confidence REAL,
		assigned_at_ms INTEGER,
		created_at_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS face_references (
		face_id TEXT NOT NULL,
		person_id TEXT NOT NULL REFERENCES persons(person_id) ON DELETE CASCADE,
		weight REAL NOT NULL DEFAULT 1.0,
		created_at_ms INTEGER NOT NULL,
		UNIQUE(face_id, person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS face_negatives (
		face_id TEXT NOT NULL,
		person_id TEXT NOT NULL REFERENCES persons(person_id) ON DELETE CASCADE,
		created_at_ms INTEGER NOT NULL,
		UNIQUE(face_id, person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS person_pair_thresholds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		person_a_id TEXT NOT NULL,
		person_b_id TEXT NOT NULL,
		threshold REAL NOT NULL,
		correction_count INTEGER NOT NULL DEFAULT 0,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL,
		UNIQUE(person_a_id, person_b_id)
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL,
		status TEXT NOT NULL,
		current_stage TEXT,
		progress REAL NOT NULL DEFAULT 0,
		message TEXT,
		error_code TEXT,
		error_message TEXT,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS media_favorites (
		media_id TEXT PRIMARY KEY,
		created_at_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS person_favorites (
		person_id TEXT PRIMARY KEY,
		created_at_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS media_tags (
		media_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL,
		UNIQUE(media_id, tag)
	)`,
}

// migrationColumns is the additive migration manifest: columns that newer
// versions added to existing tables. On open, any column missing from the
// live table is added; new columns must be nullable or carry a default.
var migrationColumns = map[string][][2]string{
	"media": {
		{"rotation", "INTEGER NOT NULL DEFAULT 0"},
		{"is_live_photo_component", "INTEGER NOT NULL DEFAULT 0"},
		{"live_photo_pair_id", "TEXT"},
		{"last_completed_stage", "TEXT"},
		{"camera_make", "TEXT"},
		{"camera_model", "TEXT"},
		{"gps_lat", "REAL"},
		{"gps_lng", "REAL"},
	},
	"faces": {
		{"cluster_id", "TEXT"},
		{"age", "INTEGER"},
		{"gender", "TEXT"},
		{"assignment_source", "TEXT"},
		{"assignment_confidence", "REAL"},
		{"assigned_at_ms", "INTEGER"},
	},
	"persons": {
		{"recognition_mode", "TEXT NOT NULL DEFAULT 'average'"},
	},
	"frames": {
		{"colors", "TEXT"},
	},
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_media_library ON media(library_id)`,
	`CREATE INDEX IF NOT EXISTS idx_media_status ON media(status)`,
	`CREATE INDEX IF NOT EXISTS idx_media_fingerprint ON media(fingerprint)`,
	`CREATE INDEX IF NOT EXISTS idx_frames_video ON frames(video_id, frame_index)`,
	`CREATE INDEX IF NOT EXISTS idx_detections_video ON detections(video_id, timestamp_ms)`,
	`CREATE INDEX IF NOT EXISTS idx_detections_label ON detections(label)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_video ON transcript_segments(video_id, start_ms)`,
	`CREATE INDEX IF NOT EXISTS idx_faces_video ON faces(video_id, timestamp_ms)`,
	`CREATE INDEX IF NOT EXISTS idx_faces_person ON faces(person_id)`,
	`CREATE INDEX IF NOT EXISTS idx_faces_cluster ON faces(cluster_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_video ON jobs(video_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
}

func (s *Store) createSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// migrate adds missing columns per the manifest, then applies idempotent
// back-fills.
func (s *Store) migrate() error {
	for table, cols := range migrationColumns {
		existing, err := s.tableColumns(table)
		if err != nil {
			return err
		}
		for _, col := range cols {
			name, ddl := col[0], col[1]
			if _, ok := existing[name]; ok {
				continue
			}
			s.log.Info("migrating catalog", "table", table, "column", name)
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, ddl)
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("adding column %s.%s: %w", table, name, err)
			}
		}
	}

	// Assignments predating provenance tracking count as legacy.
	if _, err := s.db.Exec(
		`UPDATE faces SET assignment_source = 'legacy'
		 WHERE person_id IS NOT NULL AND assignment_source IS NULL`,
	); err != nil {
		return fmt.Errorf("back-filling assignment_source: %w", err)
	}
	return nil
}

func (s *Store) tableColumns(table string) (map[string]struct{}, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("introspecting %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning table_info row: %w", err)
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

func (s *Store) createIndexes() error {
	for _, stmt := range indexStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("index statement failed: %w", err)
		}
	}
	return nil
}
