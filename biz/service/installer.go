package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"gorm.io/gorm"

	"github.com/sorathiyaom089/Student-Management-System/biz/dal/db"
	"github.com/sorathiyaom089/Student-Management-System/biz/dal/model"
	"github.com/sorathiyaom089/Student-Management-System/pkg/config"
	"github.com/sorathiyaom089/Student-Management-System/pkg/constants"
	"github.com/sorathiyaom089/Student-Management-System/pkg/database"
	"github.com/sorathiyaom089/Student-Management-System/pkg/install"
	"github.com/sorathiyaom089/Student-Management-System/pkg/lock"
	"github.com/sorathiyaom089/Student-Management-System/pkg/security"
	"github.com/sorathiyaom089/Student-Management-System/pkg/storage"
)

// ErrDatabaseUnreachable is returned by Install when the configured database
// cannot be reached.
var ErrDatabaseUnreachable = errors.New("database unreachable")

// Check item names.
const (
	CheckConfiguration   = "configuration"
	CheckDatabase        = "database"
	CheckDatabaseVersion = "database_version"
	CheckConfigDirectory = "config_directory"
	CheckUploadStorage   = "upload_storage"
	CheckPasswordHashing = "password_hashing"
)

const hashCheckSample = "install-check"

// CheckItem is one line of the pre-installation report.
type CheckItem struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report is the result of Installer.Check. Ready is true when every item
// passed and the application is not yet installed.
type Report struct {
	State install.State `json:"state"`
	Items []CheckItem   `json:"items"`
	Ready bool          `json:"ready"`
}

// Item returns the named check, or nil.
func (r *Report) Item(name string) *CheckItem {
	for i := range r.Items {
		if r.Items[i].Name == name {
			return &r.Items[i]
		}
	}
	return nil
}

// Status describes the installation state. RecordedVersion is the app_version
// stored in system_settings; VersionMismatch flags a value that differs from
// the marker.
type Status struct {
	State           install.State   `json:"state"`
	Record          *install.Record `json:"record,omitempty"`
	RecordedVersion string          `json:"recorded_version,omitempty"`
	VersionMismatch bool            `json:"version_mismatch,omitempty"`
}

// Installer runs the one-time installation flow.
type Installer struct {
	cfg    *config.Config
	marker *install.Marker
	locker lock.Locker
	store  storage.Storage
	dao    *db.SystemSettingDAO
	now    func() time.Time
}

// NewInstaller wires the installer. A nil locker means single-host locking;
// a nil store makes the upload storage check fail.
func NewInstaller(cfg *config.Config, locker lock.Locker, store storage.Storage) *Installer {
	if locker == nil {
		locker = lock.Local{}
	}
	return &Installer{
		cfg:    cfg,
		marker: install.MarkerFor(cfg),
		locker: locker,
		store:  store,
		dao:    db.NewSystemSettingDAO(),
		now:    time.Now,
	}
}

// Marker returns the installation marker the installer manages.
func (s *Installer) Marker() *install.Marker { return s.marker }

// Check verifies the environment without changing the installation state.
func (s *Installer) Check(ctx context.Context) *Report {
	report := &Report{State: s.marker.State()}

	report.add(CheckConfiguration, true, fmt.Sprintf("%s %s (%s driver)",
		s.cfg.App.Name, s.cfg.App.Version, s.cfg.Database.Driver))

	version, err := database.DetectVersion(ctx, s.cfg.Database)
	switch {
	case database.IsConnectivityError(err):
		report.add(CheckDatabase, false, err.Error())
		report.add(CheckDatabaseVersion, false, "skipped: database unreachable")
	case err != nil:
		report.add(CheckDatabase, true, "reachable")
		report.add(CheckDatabaseVersion, false, err.Error())
	default:
		report.add(CheckDatabase, true, "reachable")
		report.add(CheckDatabaseVersion, true, version)
	}

	if detail, err := checkMarkerDir(filepath.Dir(s.marker.Path())); err != nil {
		report.add(CheckConfigDirectory, false, err.Error())
	} else {
		report.add(CheckConfigDirectory, true, detail)
	}

	if err := checkHashing(s.cfg.Security.HashAlgo); err != nil {
		report.add(CheckPasswordHashing, false, err.Error())
	} else {
		report.add(CheckPasswordHashing, true, s.cfg.Security.HashAlgo)
	}

	switch {
	case s.store == nil:
		report.add(CheckUploadStorage, false, "storage not configured")
	default:
		if err := storage.Probe(ctx, s.store); err != nil {
			report.add(CheckUploadStorage, false, err.Error())
		} else {
			report.add(CheckUploadStorage, true, s.store.Type())
		}
	}

	report.Ready = report.State == install.StateNotInstalled
	for _, item := range report.Items {
		report.Ready = report.Ready && item.OK
	}
	return report
}

func (r *Report) add(name string, ok bool, detail string) {
	r.Items = append(r.Items, CheckItem{Name: name, OK: ok, Detail: detail})
}

// Install performs the installation: it refuses when already installed,
// requires a reachable database, writes the marker and records installation
// metadata in system_settings. With Redis enabled the flow runs under the
// distributed install lock.
func (s *Installer) Install(ctx context.Context) (*install.Record, error) {
	var rec *install.Record
	err := lock.WithLock(ctx, s.locker, func(ctx context.Context) error {
		if s.marker.IsInstalled() {
			return install.ErrAlreadyInstalled
		}

		if err := database.Probe(ctx, s.cfg.Database); err != nil {
			return fmt.Errorf("%w: %w", ErrDatabaseUnreachable, err)
		}

		conn, err := database.Open(s.cfg.Database)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDatabaseUnreachable, err)
		}
		defer closeConn(ctx, conn)

		version, err := database.ServerVersion(ctx, conn)
		if err != nil {
			hlog.CtxWarnf(ctx, "[Installer] detect database version: %v", err)
			version = ""
		}

		r := install.NewRecord(s.now(), s.cfg.App.Version, version)
		if err := os.MkdirAll(filepath.Dir(s.marker.Path()), 0o755); err != nil {
			return &install.PersistenceError{Path: s.marker.Path(), Op: "create directory", Err: err}
		}
		if err := s.marker.Create(r); err != nil {
			return err
		}
		rec = &r
		hlog.CtxInfof(ctx, "[Installer] installed %s %s at %s", s.cfg.App.Name, r.Version, s.marker.Path())

		// the marker is authoritative; a settings failure does not undo it
		if err := s.recordSettings(ctx, conn, r); err != nil {
			hlog.CtxWarnf(ctx, "[Installer] record system settings: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Installer) recordSettings(ctx context.Context, conn *gorm.DB, rec install.Record) error {
	if err := s.dao.Migrate(ctx, conn); err != nil {
		return err
	}
	if prev, err := s.dao.ExistsByKey(ctx, conn, constants.SettingInstalledOn); err == nil && prev {
		hlog.CtxInfof(ctx, "[Installer] overwriting metadata of a previous installation")
	}
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		values := map[string]string{
			constants.SettingInstalledOn: rec.InstalledOn,
			constants.SettingAppVersion:  rec.Version,
			constants.SettingAppName:     s.cfg.App.Name,
		}
		for _, key := range constants.InstallSettings {
			if err := s.dao.Upsert(ctx, tx, key, values[key]); err != nil {
				return fmt.Errorf("upsert %s: %w", key, err)
			}
		}
		return nil
	})
}

// Status reports the installation state and, when installed, the marker
// content. The recorded app_version is looked up when the database is
// reachable; database errors are logged and leave it empty.
func (s *Installer) Status(ctx context.Context) (*Status, error) {
	if !s.marker.IsInstalled() {
		return &Status{State: install.StateNotInstalled}, nil
	}
	rec, err := s.marker.Read()
	if err != nil {
		return &Status{State: install.StateInstalled}, err
	}
	status := &Status{State: install.StateInstalled, Record: rec}
	if v, err := s.recordedVersion(ctx); err != nil {
		hlog.CtxWarnf(ctx, "[Installer] read recorded version: %v", err)
	} else {
		status.RecordedVersion = v
		status.VersionMismatch = v != rec.Version
	}
	return status, nil
}

func (s *Installer) recordedVersion(ctx context.Context) (string, error) {
	// Open would create a missing sqlite file
	if err := database.Probe(ctx, s.cfg.Database); err != nil {
		return "", err
	}
	conn, err := database.Open(s.cfg.Database)
	if err != nil {
		return "", err
	}
	defer closeConn(ctx, conn)
	setting, err := s.dao.GetByKey(ctx, conn, constants.SettingAppVersion)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// Settings lists the installation metadata stored in system_settings.
func (s *Installer) Settings(ctx context.Context) ([]model.SystemSetting, error) {
	conn, err := database.Open(s.cfg.Database)
	if err != nil {
		return nil, err
	}
	defer closeConn(ctx, conn)
	return s.dao.List(ctx, conn)
}

func closeConn(ctx context.Context, conn *gorm.DB) {
	if err := database.Close(conn); err != nil {
		hlog.CtxWarnf(ctx, "[Installer] close database: %v", err)
	}
}

func checkHashing(algo string) error {
	hashed, err := security.HashPassword(algo, hashCheckSample)
	if err != nil {
		return err
	}
	if !security.CheckPassword(algo, hashed, hashCheckSample) {
		return fmt.Errorf("%s hash did not verify", algo)
	}
	return nil
}

// checkMarkerDir accepts a missing marker directory when its nearest existing
// ancestor is writable, since Install creates it.
func checkMarkerDir(dir string) (string, error) {
	target := dir
	for {
		info, err := os.Stat(target)
		if err == nil {
			if !info.IsDir() {
				return "", fmt.Errorf("%s is not a directory", target)
			}
			break
		}
		parent := filepath.Dir(target)
		if !os.IsNotExist(err) || parent == target {
			return "", err
		}
		target = parent
	}
	if err := checkWritable(target); err != nil {
		return "", err
	}
	if target != dir {
		return dir + " (created on install)", nil
	}
	return dir, nil
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
