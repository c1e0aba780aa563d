package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateLibrary inserts a new library row.
func (s *Store) CreateLibrary(ctx context.Context, lib *Library) error {
	if lib.CreatedAtMs == 0 {
		lib.CreatedAtMs = nowMs()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO libraries (library_id, folder_path, name, recursive, created_at_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		lib.LibraryID, lib.FolderPath, lib.Name, boolToInt(lib.Recursive), lib.CreatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("inserting library: %w", err)
	}
	return nil
}

// GetLibrary returns a library by id.
func (s *Store) GetLibrary(ctx context.Context, libraryID string) (*Library, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT library_id, folder_path, name, recursive, created_at_ms
		 FROM libraries WHERE library_id = ?`, libraryID)
	return scanLibrary(row)
}

// GetLibraryByPath returns a library by its folder path.
func (s *Store) GetLibraryByPath(ctx context.Context, folderPath string) (*Library, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT library_id, folder_path, name, recursive, created_at_ms
		 FROM libraries WHERE folder_path = ?`, folderPath)
	return scanLibrary(row)
}

// ListLibraries returns all libraries in creation order.
func (s *Store) ListLibraries(ctx context.Context) ([]Library, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT library_id, folder_path, name, recursive, created_at_ms
		 FROM libraries ORDER BY created_at_ms ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing libraries: %w", err)
	}
	defer rows.Close()

	var libs []Library
	for rows.Next() {
		var lib Library
		var name sql.NullString
		var recursive int
		if err := rows.Scan(&lib.LibraryID, &lib.FolderPath, &name, &recursive, &lib.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("scanning library: %w", err)
		}
		lib.Name = name.String
		lib.Recursive = recursive != 0
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}

// UpdateLibrary updates name and recursive flag.
func (s *Store) UpdateLibrary(ctx context.Context, lib *Library) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE libraries SET name = ?, recursive = ? WHERE library_id = ?`,
		lib.Name, boolToInt(lib.Recursive), lib.LibraryID)
	if err != nil {
		return fmt.Errorf("updating library: %w", err)
	}
	return requireRow(res)
}

// DeleteLibrary removes a library; media and derived rows cascade.
func (s *Store) DeleteLibrary(ctx context.Context, libraryID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM libraries WHERE library_id = ?`, libraryID)
	if err != nil {
		return fmt.Errorf("deleting library: %w", err)
	}
	return requireRow(res)
}

func scanLibrary(row *sql.Row) (*Library, error) {
	var lib Library
	var name sql.NullString
	var recursive int
	err := row.Scan(&lib.LibraryID, &lib.FolderPath, &name, &recursive, &lib.CreatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning library: %w", err)
	}
	lib.Name = name.String
	lib.Recursive = recursive != 0
	return &lib, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
