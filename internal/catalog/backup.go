package catalog

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
)

// backupTables lists every table included in a backup, with the primary
// key columns a merge restore upserts on. Restore order matters because
// of the foreign keys; dump shares the order for readability.
var backupTables = []struct {
	name string
	pk   []string
}{
	{"libraries", []string{"library_id"}},
	{"media", []string{"media_id"}},
	{"media_metadata", []string{"media_id", "key"}},
	{"frames", []string{"frame_id"}},
	{"detections", []string{"id"}},
	{"transcript_segments", []string{"id"}},
	{"persons", []string{"person_id"}},
	{"faces", []string{"face_id"}},
	{"face_references", []string{"face_id", "person_id"}},
	{"face_negatives", []string{"face_id", "person_id"}},
	{"person_pair_thresholds", []string{"person_a_id", "person_b_id"}},
	{"settings", []string{"key"}},
	{"media_favorites", []string{"media_id"}},
	{"person_favorites", []string{"person_id"}},
	{"media_tags", []string{"media_id", "tag"}},
}

// Backup is a portable JSON snapshot of the catalog. Blob columns are
// base64 strings; everything else keeps its SQLite type.
type Backup struct {
	Version     int                         `json:"version"`
	CreatedAtMs int64                       `json:"created_at_ms"`
	Tables      map[string][]map[string]any `json:"tables"`
}

const backupVersion = 1

// DumpBackup reads every backed-up table into a snapshot.
func (s *Store) DumpBackup(ctx context.Context) (*Backup, error) {
	b := &Backup{
		Version:     backupVersion,
		CreatedAtMs: nowMs(),
		Tables:      map[string][]map[string]any{},
	}
	for _, table := range backupTables {
		rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+table.name)
		if err != nil {
			return nil, fmt.Errorf("dumping %s: %w", table.name, err)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("reading %s columns: %w", table.name, err)
		}
		var records []map[string]any
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning %s row: %w", table.name, err)
			}
			record := make(map[string]any, len(cols))
			for i, col := range cols {
				switch v := values[i].(type) {
				case []byte:
					record[col] = base64.StdEncoding.EncodeToString(v)
				default:
					record[col] = v
				}
			}
			records = append(records, record)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterating %s: %w", table.name, err)
		}
		rows.Close()
		b.Tables[table.name] = records
	}
	return b, nil
}

// RestoreBackup applies a snapshot. In replace mode each table is
// truncated before its rows are inserted; in merge mode rows are
// upserted by primary key and existing rows not in the backup survive.
// Restored counts are returned per table.
func (s *Store) RestoreBackup(ctx context.Context, b *Backup, replace bool) (map[string]int, error) {
	if b.Version != backupVersion {
		return nil, fmt.Errorf("unsupported backup version %d", b.Version)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning restore tx: %w", err)
	}
	defer tx.Rollback()

	counts := map[string]int{}
	if replace {
		// Children first so the cascades don't race the inserts.
		for i := len(backupTables) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+backupTables[i].name); err != nil {
				return nil, fmt.Errorf("truncating %s: %w", backupTables[i].name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_fts`); err != nil {
			return nil, fmt.Errorf("truncating transcript fts: %w", err)
		}
	}

	for _, table := range backupTables {
		records := b.Tables[table.name]
		for _, record := range records {
			if err := upsertRecord(ctx, tx, table.name, table.pk, record); err != nil {
				return nil, err
			}
		}
		counts[table.name] = len(records)
	}

	// Rebuild the full-text index from the restored segments.
	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_fts`); err != nil {
		return nil, fmt.Errorf("clearing transcript fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transcript_fts (video_id, start_ms, end_ms, text)
		 SELECT video_id, start_ms, end_ms, text FROM transcript_segments`); err != nil {
		return nil, fmt.Errorf("rebuilding transcript fts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing restore: %w", err)
	}
	return counts, nil
}

func upsertRecord(ctx context.Context, tx *sql.Tx, table string, pk []string, record map[string]any) error {
	cols := make([]string, 0, len(record))
	args := make([]any, 0, len(record))
	for col, value := range record {
		cols = append(cols, col)
		args = append(args, decodeBackupValue(col, value))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")

	var updates []string
	for _, col := range cols {
		if containsString(pk, col) {
			continue
		}
		updates = append(updates, col+" = excluded."+col)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s`,
		table, strings.Join(cols, ", "), placeholders,
		strings.Join(pk, ", "), strings.Join(updates, ", "))
	if len(updates) == 0 {
		query = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO NOTHING`,
			table, strings.Join(cols, ", "), placeholders, strings.Join(pk, ", "))
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("restoring %s row: %w", table, err)
	}
	return nil
}

// decodeBackupValue turns base64-encoded blob columns back into bytes.
func decodeBackupValue(col string, value any) any {
	if col != "embedding" {
		return value
	}
	text, ok := value.(string)
	if !ok {
		return value
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return value
	}
	return raw
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
