// Package lifecycle owns process-level concerns: the engine lockfile,
// the parent-process watchdog, external tool checks and the startup
// crash repair pass.
package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// Lockfile advertises a running engine to the desktop front-end: where
// to connect and which processes own the instance.
type Lockfile struct {
	Port        int    `json:"port"`
	Token       string `json:"token"`
	EngineUUID  string `json:"engine_uuid"`
	EnginePID   int    `json:"engine_pid"`
	ParentPID   int    `json:"parent_pid"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// ReadLockfile loads an existing lockfile. A missing file returns
// os.ErrNotExist.
func ReadLockfile(path string) (*Lockfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lf Lockfile
	if err := json.Unmarshal(raw, &lf); err != nil {
		return nil, fmt.Errorf("decoding lockfile: %w", err)
	}
	return &lf, nil
}

// WriteLockfile persists the lockfile readable only by the owner; it
// carries the auth token.
func WriteLockfile(path string, lf *Lockfile) error {
	raw, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding lockfile: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("writing lockfile: %w", err)
	}
	return nil
}

// RemoveLockfile deletes the lockfile; already gone is fine.
func RemoveLockfile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lockfile: %w", err)
	}
	return nil
}

// AcquireLockfile writes a fresh lockfile for this process. An existing
// lock held by a live process is reported so the caller can log it; a
// stale one is silently replaced.
func AcquireLockfile(path string, lf *Lockfile) (previousOwner int, err error) {
	if existing, readErr := ReadLockfile(path); readErr == nil {
		if existing.EnginePID != os.Getpid() && PIDAlive(existing.EnginePID) {
			previousOwner = existing.EnginePID
		}
	}
	lf.EnginePID = os.Getpid()
	lf.CreatedAtMs = time.Now().UnixMilli()
	if err := WriteLockfile(path, lf); err != nil {
		return previousOwner, err
	}
	return previousOwner, nil
}

// PIDAlive reports whether a process with the given pid exists. Signal
// zero probes without delivering anything.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return errors.Is(err, syscall.EPERM)
}
