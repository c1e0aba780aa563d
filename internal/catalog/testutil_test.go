package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "gaze.db"), slog.Default())
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreateLibrary(t *testing.T, store *Store, id, path string) *Library {
	t.Helper()
	lib := &Library{LibraryID: id, FolderPath: path, Name: "test", Recursive: true}
	if err := store.CreateLibrary(context.Background(), lib); err != nil {
		t.Fatalf("creating library: %v", err)
	}
	return lib
}

func mustInsertMedia(t *testing.T, store *Store, id, libraryID, path, mediaType string) *Media {
	t.Helper()
	m := &Media{
		MediaID:   id,
		LibraryID: libraryID,
		Path:      path,
		Filename:  filepath.Base(path),
		FileExt:   filepath.Ext(path),
		MediaType: mediaType,
		FileSize:  1024,
		MtimeMs:   1700000000000,
		Status:    StatusQueued,
	}
	if err := store.InsertMedia(context.Background(), m); err != nil {
		t.Fatalf("inserting media: %v", err)
	}
	return m
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
