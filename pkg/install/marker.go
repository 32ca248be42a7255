// Package install manages the installation marker: a small JSON document whose
// presence on disk is the only signal that the application has been installed.
//
// The marker moves through two states, NOT_INSTALLED and INSTALLED. The
// transition happens once, through Marker.Create, and is never reversed.
package install

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/sorathiyaom089/Student-Management-System/pkg/config"
)

// TimeLayout is the layout of Record.InstalledOn.
const TimeLayout = "2006-01-02 15:04:05"

// DatabaseVersionPending is stored until the engine version has been detected.
const DatabaseVersionPending = "Detected during installation"

// State is the installation status.
type State string

const (
	StateNotInstalled State = "NOT_INSTALLED"
	StateInstalled    State = "INSTALLED"
)

// ErrAlreadyInstalled is returned by Create when the marker already exists.
var ErrAlreadyInstalled = errors.New("application is already installed")

// PersistenceError reports an I/O failure while writing the marker.
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("install marker %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Record is the content of the installation marker. It is written once and
// never updated.
type Record struct {
	InstalledOn     string `json:"installed_on"`
	Version         string `json:"version"`
	RuntimeVersion  string `json:"runtime_version"`
	DatabaseVersion string `json:"database_version"`
}

// InstalledAt parses InstalledOn in loc.
func (r Record) InstalledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(TimeLayout, r.InstalledOn, loc)
}

// NewRecord builds the record for an installation happening at now.
// An empty dbVersion is stored as DatabaseVersionPending.
func NewRecord(now time.Time, appVersion, dbVersion string) Record {
	if dbVersion == "" {
		dbVersion = DatabaseVersionPending
	}
	return Record{
		InstalledOn:     now.Format(TimeLayout),
		Version:         appVersion,
		RuntimeVersion:  runtime.Version(),
		DatabaseVersion: dbVersion,
	}
}

// Marker is the installation marker file at a fixed path.
type Marker struct {
	path string
	now  func() time.Time
}

// NewMarker returns the marker stored at path.
func NewMarker(path string) *Marker {
	return &Marker{path: path, now: time.Now}
}

// MarkerFor returns the marker configured by cfg (install.lock_path).
func MarkerFor(cfg *config.Config) *Marker {
	return NewMarker(cfg.LockPath())
}

// Path returns the marker location.
func (m *Marker) Path() string { return m.path }

// IsInstalled reports whether the marker exists. It has no side effects.
func (m *Marker) IsInstalled() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// State returns the current installation state.
func (m *Marker) State() State {
	if m.IsInstalled() {
		return StateInstalled
	}
	return StateNotInstalled
}

// Read parses the marker. It returns an error wrapping os.ErrNotExist when the
// application is not installed.
func (m *Marker) Read() (*Record, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode install marker: %w", err)
	}
	return &rec, nil
}

// Create writes rec as the marker if, and only if, no marker exists yet.
// The check and the write are one atomic step: concurrent callers race on
// the final link and exactly one of them wins; the others get
// ErrAlreadyInstalled. Readers never observe a partially written marker.
func (m *Marker) Create(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &PersistenceError{Path: m.path, Op: "encode", Err: err}
	}
	data = append(data, '\n')

	if m.IsInstalled() {
		return ErrAlreadyInstalled
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, ".install.lock-*")
	if err != nil {
		return &PersistenceError{Path: m.path, Op: "create temp file", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &PersistenceError{Path: m.path, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &PersistenceError{Path: m.path, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistenceError{Path: m.path, Op: "close", Err: err}
	}

	// os.Link fails when the target exists, which gives create-if-absent
	// semantics for a fully written file.
	err = os.Link(tmpPath, m.path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrExist):
		return ErrAlreadyInstalled
	default:
		hlog.Debugf("[Install] hard link unsupported (%v), falling back to exclusive create", err)
		return m.createExclusive(data)
	}
}

func (m *Marker) createExclusive(data []byte) error {
	f, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrAlreadyInstalled
		}
		return &PersistenceError{Path: m.path, Op: "create", Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(m.path)
		return &PersistenceError{Path: m.path, Op: "write", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(m.path)
		return &PersistenceError{Path: m.path, Op: "close", Err: err}
	}
	return nil
}

// CreateInstallLock writes a marker for cfg's application version with the
// engine version still pending. It reports success as a boolean; failures,
// including an existing marker, are logged and yield false.
func (m *Marker) CreateInstallLock(cfg *config.Config) bool {
	rec := NewRecord(m.now(), cfg.App.Version, "")
	if err := m.Create(rec); err != nil {
		hlog.Warnf("[Install] create install lock: %v", err)
		return false
	}
	return true
}
