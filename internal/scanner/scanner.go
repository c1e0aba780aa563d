// Package scanner discovers media files in library folders and
// reconciles them against the catalog: new files are registered, files
// with a changed fingerprint are reset for re-indexing, and files that
// disappeared are removed.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
	"github.com/gazehq/gaze-engine/internal/constants"
	"github.com/gazehq/gaze-engine/internal/fingerprint"
)

// ErrAlreadyScanning is returned when a scan is requested for a library
// that is still being scanned.
var ErrAlreadyScanning = errors.New("already_scanning")

// Result summarizes one reconciliation pass.
type Result struct {
	LibraryID string `json:"library_id"`
	Total     int    `json:"total"`
	New       int    `json:"new"`
	Changed   int    `json:"changed"`
	Unchanged int    `json:"unchanged"`
	Deleted   int    `json:"deleted"`
	LivePairs int    `json:"live_photo_pairs"`
}

// Progress is reported during a scan every few files.
type Progress struct {
	LibraryID string `json:"library_id"`
	Scanned   int    `json:"scanned"`
	Total     int    `json:"total"`
}

// Scanner walks libraries and keeps the catalog in sync with disk. One
// scan per library runs at a time.
type Scanner struct {
	store *catalog.Store
	cfg   *config.Config
	log   *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

func New(store *catalog.Store, cfg *config.Config, log *slog.Logger) *Scanner {
	return &Scanner{
		store:  store,
		cfg:    cfg,
		log:    log.With("component", "scanner"),
		active: make(map[string]struct{}),
	}
}

// Scan reconciles one library. onProgress may be nil.
func (s *Scanner) Scan(ctx context.Context, lib *catalog.Library, onProgress func(Progress)) (*Result, error) {
	s.mu.Lock()
	if _, running := s.active[lib.LibraryID]; running {
		s.mu.Unlock()
		return nil, ErrAlreadyScanning
	}
	s.active[lib.LibraryID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, lib.LibraryID)
		s.mu.Unlock()
	}()

	files, err := s.discover(lib)
	if err != nil {
		return nil, err
	}

	known, err := s.store.MediaByLibraryPath(ctx, lib.LibraryID)
	if err != nil {
		return nil, err
	}

	result := &Result{LibraryID: lib.LibraryID, Total: len(files)}
	seen := make(map[string]struct{}, len(files))

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen[file.path] = struct{}{}

		if err := s.reconcileFile(ctx, lib, file, known, result); err != nil {
			s.log.Warn("skipping file", "path", file.path, "error", err)
			continue
		}

		if onProgress != nil && (i+1)%constants.ScanProgressInterval == 0 {
			onProgress(Progress{LibraryID: lib.LibraryID, Scanned: i + 1, Total: len(files)})
		}
	}

	// Anything the walk did not see is gone from disk.
	for path, m := range known {
		if _, ok := seen[path]; ok {
			continue
		}
		if err := s.store.DeleteMedia(ctx, m.MediaID); err != nil {
			s.log.Warn("removing vanished media", "path", path, "error", err)
			continue
		}
		result.Deleted++
	}

	if err := s.pairLivePhotos(ctx, lib, result); err != nil {
		return nil, err
	}

	// Re-scans are self-healing: anything not DONE and not mid-stage
	// gets another chance.
	if n, err := s.store.RequeueUnfinished(ctx, lib.LibraryID); err != nil {
		return nil, err
	} else if n > 0 {
		s.log.Info("requeued unfinished items", "library", lib.LibraryID, "count", n)
	}

	if onProgress != nil {
		onProgress(Progress{LibraryID: lib.LibraryID, Scanned: len(files), Total: len(files)})
	}
	s.log.Info("scan finished",
		"library", lib.LibraryID,
		"total", result.Total,
		"new", result.New,
		"changed", result.Changed,
		"deleted", result.Deleted)
	return result, nil
}

// IsScanning reports whether the library currently has an active scan.
func (s *Scanner) IsScanning(libraryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.active[libraryID]
	return running
}

type discovered struct {
	path      string
	ext       string
	mediaType string
	size      int64
	mtimeMs   int64
}

func (s *Scanner) discover(lib *catalog.Library) ([]discovered, error) {
	root := lib.FolderPath
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("library folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library path %s is not a directory", root)
	}

	var files []discovered
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Warn("walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			// Skip hidden directories and non-recursive subfolders.
			if path != root {
				if strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				if !lib.Recursive {
					return fs.SkipDir
				}
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		var mediaType string
		switch {
		case s.cfg.IsVideoExt(ext):
			mediaType = catalog.MediaTypeVideo
		case s.cfg.IsPhotoExt(ext):
			mediaType = catalog.MediaTypePhoto
		default:
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, discovered{
			path:      path,
			ext:       ext,
			mediaType: mediaType,
			size:      fi.Size(),
			mtimeMs:   fi.ModTime().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking library: %w", err)
	}
	return files, nil
}

func (s *Scanner) reconcileFile(ctx context.Context, lib *catalog.Library, file discovered, known map[string]*catalog.Media, result *Result) error {
	existing := known[file.path]

	// Size and mtime matching means the fingerprint cannot have changed.
	if existing != nil && existing.FileSize == file.size && existing.MtimeMs == file.mtimeMs {
		result.Unchanged++
		return nil
	}

	fp, err := fingerprint.File(file.path)
	if err != nil {
		return fmt.Errorf("fingerprinting: %w", err)
	}

	if existing == nil {
		m := &catalog.Media{
			MediaID:     uuid.NewString(),
			LibraryID:   lib.LibraryID,
			Path:        file.path,
			Filename:    filepath.Base(file.path),
			FileExt:     file.ext,
			MediaType:   file.mediaType,
			FileSize:    file.size,
			MtimeMs:     file.mtimeMs,
			Fingerprint: fp,
			Status:      catalog.StatusQueued,
		}
		if err := s.store.InsertMedia(ctx, m); err != nil {
			return err
		}
		result.New++
		return nil
	}

	if existing.Fingerprint == fp {
		// Touched but identical content; just remember the new mtime.
		result.Unchanged++
		return s.store.TouchMedia(ctx, existing.MediaID, file.size, file.mtimeMs)
	}

	existing.FileSize = file.size
	existing.MtimeMs = file.mtimeMs
	existing.Fingerprint = fp
	if err := s.store.UpdateMediaFromScan(ctx, existing); err != nil {
		return err
	}
	result.Changed++
	return nil
}

// Only an Apple-style still plus a .mov sibling can form a live photo.
var livePhotoStillExts = map[string]bool{
	".heic": true,
	".heif": true,
	".jpg":  true,
	".jpeg": true,
}

// pairLivePhotos marks short .mov files sharing a still's path stem as
// live photo components so listings can hide them behind the still. The
// shared pair id is the still's content fingerprint.
func (s *Scanner) pairLivePhotos(ctx context.Context, lib *catalog.Library, result *Result) error {
	known, err := s.store.MediaByLibraryPath(ctx, lib.LibraryID)
	if err != nil {
		return err
	}

	photosByStem := make(map[string]*catalog.Media)
	for _, m := range known {
		if m.MediaType == catalog.MediaTypePhoto && livePhotoStillExts[m.FileExt] {
			photosByStem[pathStem(m.Path)] = m
		}
	}

	for _, m := range known {
		if m.MediaType != catalog.MediaTypeVideo {
			continue
		}
		var photo *catalog.Media
		if m.FileExt == ".mov" {
			photo = photosByStem[pathStem(m.Path)]
		}
		if photo == nil {
			if m.IsLivePhotoComponent {
				// Partner still is gone or the pair is illegal; promote
				// back to a normal video.
				if err := s.store.SetLivePhotoPair(ctx, m.MediaID, false, nil); err != nil {
					return err
				}
			}
			continue
		}
		// An unprobed video pairs optimistically; the probe stage demotes
		// it if the duration turns out past the cutoff.
		if m.DurationMs != nil && *m.DurationMs > constants.LivePhotoMaxDurationMs {
			continue
		}
		pairID := photo.Fingerprint
		if m.IsLivePhotoComponent && m.LivePhotoPairID != nil && *m.LivePhotoPairID == pairID {
			continue
		}
		if err := s.store.SetLivePhotoPair(ctx, m.MediaID, true, &pairID); err != nil {
			return err
		}
		if err := s.store.SetLivePhotoPair(ctx, photo.MediaID, false, &pairID); err != nil {
			return err
		}
		result.LivePairs++
	}
	return nil
}

func pathStem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
