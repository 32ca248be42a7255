package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sorathiyaom089/Student-Management-System/biz/dal/db"
	"github.com/sorathiyaom089/Student-Management-System/pkg/config"
	"github.com/sorathiyaom089/Student-Management-System/pkg/constants"
	"github.com/sorathiyaom089/Student-Management-System/pkg/database"
	"github.com/sorathiyaom089/Student-Management-System/pkg/install"
	"github.com/sorathiyaom089/Student-Management-System/pkg/lock"
	"github.com/sorathiyaom089/Student-Management-System/pkg/security"
	"github.com/sorathiyaom089/Student-Management-System/pkg/storage"
)

type fixture struct {
	cfg   *config.Config
	store storage.Storage
}

// newFixture returns a configuration pointing at a fresh SQLite database and
// marker/upload locations inside a temp directory.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Database.Driver = database.DriverSQLite
	cfg.Database.Name = filepath.Join(dir, "students.db")
	cfg.Install.LockPath = filepath.Join(dir, "config", "install.lock")
	cfg.Upload.Path = filepath.Join(dir, "upload")
	if err := os.MkdirAll(filepath.Dir(cfg.Install.LockPath), 0o755); err != nil {
		t.Fatalf("create config dir: %v", err)
	}

	conn, err := database.Open(cfg.Database)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := conn.Exec("CREATE TABLE students (id INTEGER PRIMARY KEY, name TEXT)").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := database.Close(conn); err != nil {
		t.Fatalf("close database: %v", err)
	}

	store, err := storage.New(cfg.Storage, cfg.UploadPath())
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	return &fixture{cfg: cfg, store: store}
}

func TestInstallerCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("Ready", func(t *testing.T) {
		f := newFixture(t)
		report := NewInstaller(f.cfg, nil, f.store).Check(ctx)
		if report.State != install.StateNotInstalled {
			t.Fatalf("expected NOT_INSTALLED, got %s", report.State)
		}
		for _, item := range report.Items {
			if !item.OK {
				t.Errorf("check %s failed: %s", item.Name, item.Detail)
			}
		}
		if !report.Ready {
			t.Fatal("expected report to be ready")
		}
		if v := report.Item(CheckDatabaseVersion); v == nil || !strings.HasPrefix(v.Detail, "3.") {
			t.Fatalf("expected sqlite 3.x version, got %+v", v)
		}
	})

	t.Run("DatabaseUnreachable", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Database.Name = filepath.Join(t.TempDir(), "missing.db")
		report := NewInstaller(f.cfg, nil, f.store).Check(ctx)
		if report.Ready {
			t.Fatal("expected report not to be ready")
		}
		if item := report.Item(CheckDatabase); item == nil || item.OK {
			t.Fatalf("expected database check to fail, got %+v", item)
		}
		if item := report.Item(CheckDatabaseVersion); item == nil || item.OK || !strings.HasPrefix(item.Detail, "skipped") {
			t.Fatalf("expected version check to be skipped, got %+v", item)
		}
		if _, err := os.Stat(f.cfg.Database.Name); !os.IsNotExist(err) {
			t.Fatalf("check must not create the database file, stat err %v", err)
		}
	})

	t.Run("NoStorage", func(t *testing.T) {
		f := newFixture(t)
		report := NewInstaller(f.cfg, nil, nil).Check(ctx)
		if item := report.Item(CheckUploadStorage); item == nil || item.OK {
			t.Fatalf("expected storage check to fail, got %+v", item)
		}
	})

	t.Run("AlreadyInstalled", func(t *testing.T) {
		f := newFixture(t)
		svc := NewInstaller(f.cfg, nil, f.store)
		if _, err := svc.Install(ctx); err != nil {
			t.Fatalf("Install failed: %v", err)
		}
		report := svc.Check(ctx)
		if report.State != install.StateInstalled || report.Ready {
			t.Fatalf("expected installed and not ready, got %s ready=%v", report.State, report.Ready)
		}
	})
}

func TestInstallerInstall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewInstaller(f.cfg, nil, f.store)
	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	svc.now = func() time.Time { return fixed }

	rec, err := svc.Install(ctx)
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if rec.InstalledOn != "2024-03-01 09:30:00" {
		t.Errorf("unexpected installed_on %q", rec.InstalledOn)
	}
	if rec.Version != f.cfg.App.Version {
		t.Errorf("expected version %s, got %s", f.cfg.App.Version, rec.Version)
	}
	if !strings.HasPrefix(rec.DatabaseVersion, "3.") {
		t.Errorf("expected detected sqlite version, got %q", rec.DatabaseVersion)
	}
	if !svc.Marker().IsInstalled() {
		t.Fatal("expected marker to exist")
	}

	t.Run("SettingsRecorded", func(t *testing.T) {
		conn, err := database.Open(f.cfg.Database)
		if err != nil {
			t.Fatalf("open database: %v", err)
		}
		defer database.Close(conn)

		dao := db.NewSystemSettingDAO()
		want := map[string]string{
			constants.SettingInstalledOn: "2024-03-01 09:30:00",
			constants.SettingAppVersion:  f.cfg.App.Version,
			constants.SettingAppName:     f.cfg.App.Name,
		}
		for key, value := range want {
			s, err := dao.GetByKey(ctx, conn, key)
			if err != nil {
				t.Fatalf("GetByKey(%s) failed: %v", key, err)
			}
			if s.Value != value {
				t.Errorf("%s: expected %q, got %q", key, value, s.Value)
			}
		}
	})

	t.Run("SettingsListed", func(t *testing.T) {
		settings, err := svc.Settings(ctx)
		if err != nil {
			t.Fatalf("Settings failed: %v", err)
		}
		if len(settings) != len(constants.InstallSettings) {
			t.Fatalf("unexpected settings %+v", settings)
		}
		for i, s := range settings {
			if s.Key != constants.InstallSettings[i] {
				t.Errorf("position %d: expected %s, got %s", i, constants.InstallSettings[i], s.Key)
			}
		}
	})

	t.Run("SecondInstallRefused", func(t *testing.T) {
		before, err := os.ReadFile(svc.Marker().Path())
		if err != nil {
			t.Fatalf("read marker: %v", err)
		}
		if _, err := svc.Install(ctx); !errors.Is(err, install.ErrAlreadyInstalled) {
			t.Fatalf("expected ErrAlreadyInstalled, got %v", err)
		}
		after, _ := os.ReadFile(svc.Marker().Path())
		if string(before) != string(after) {
			t.Fatal("marker changed by refused install")
		}
	})

	t.Run("Status", func(t *testing.T) {
		status, err := svc.Status(context.Background())
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status.State != install.StateInstalled || status.Record == nil {
			t.Fatalf("unexpected status %+v", status)
		}
		if *status.Record != *rec {
			t.Fatalf("expected %+v, got %+v", *rec, *status.Record)
		}
		if status.RecordedVersion != f.cfg.App.Version || status.VersionMismatch {
			t.Fatalf("expected recorded version %s without mismatch, got %+v", f.cfg.App.Version, status)
		}
	})

	t.Run("StatusVersionMismatch", func(t *testing.T) {
		conn, err := database.Open(f.cfg.Database)
		if err != nil {
			t.Fatalf("open database: %v", err)
		}
		if err := db.NewSystemSettingDAO().Upsert(ctx, conn, constants.SettingAppVersion, "1.0"); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		database.Close(conn)

		status, err := svc.Status(ctx)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status.RecordedVersion != "1.0" || !status.VersionMismatch {
			t.Fatalf("expected mismatch against recorded 1.0, got %+v", status)
		}
	})
}

func TestInstallerStatusDatabaseGone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewInstaller(f.cfg, nil, f.store)
	if _, err := svc.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if err := os.Remove(f.cfg.Database.Name); err != nil {
		t.Fatalf("remove database: %v", err)
	}

	status, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != install.StateInstalled || status.RecordedVersion != "" || status.VersionMismatch {
		t.Fatalf("unexpected status %+v", status)
	}
	if _, err := os.Stat(f.cfg.Database.Name); !os.IsNotExist(err) {
		t.Fatalf("status must not recreate the database file, stat err %v", err)
	}
}

func TestInstallerCreatesMarkerDir(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.Install.LockPath = filepath.Join(t.TempDir(), "fresh", "config", "install.lock")
	svc := NewInstaller(f.cfg, nil, f.store)

	report := svc.Check(ctx)
	item := report.Item(CheckConfigDirectory)
	if item == nil || !item.OK {
		t.Fatalf("expected missing config directory to pass, got %+v", item)
	}
	if _, err := os.Stat(filepath.Dir(f.cfg.Install.LockPath)); !os.IsNotExist(err) {
		t.Fatalf("check must not create the directory, stat err %v", err)
	}

	if _, err := svc.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if !svc.Marker().IsInstalled() {
		t.Fatal("expected marker to exist")
	}
}

func TestInstallerCheckPasswordHashing(t *testing.T) {
	ctx := context.Background()

	for _, algo := range security.SupportedAlgorithms {
		t.Run(algo, func(t *testing.T) {
			f := newFixture(t)
			f.cfg.Security.HashAlgo = algo
			item := NewInstaller(f.cfg, nil, f.store).Check(ctx).Item(CheckPasswordHashing)
			if item == nil || !item.OK || item.Detail != algo {
				t.Fatalf("expected %s hashing to pass, got %+v", algo, item)
			}
		})
	}

	t.Run("Unsupported", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Security.HashAlgo = "md5"
		report := NewInstaller(f.cfg, nil, f.store).Check(ctx)
		if item := report.Item(CheckPasswordHashing); item == nil || item.OK {
			t.Fatalf("expected md5 hashing to fail, got %+v", item)
		}
		if report.Ready {
			t.Fatal("expected report not to be ready")
		}
	})
}

func TestInstallerDatabaseUnreachable(t *testing.T) {
	f := newFixture(t)
	f.cfg.Database.Name = filepath.Join(t.TempDir(), "missing.db")
	svc := NewInstaller(f.cfg, nil, f.store)

	_, err := svc.Install(context.Background())
	if !errors.Is(err, ErrDatabaseUnreachable) {
		t.Fatalf("expected ErrDatabaseUnreachable, got %v", err)
	}
	if !database.IsConnectivityError(err) {
		t.Fatalf("expected wrapped ConnectivityError, got %v", err)
	}
	if svc.Marker().IsInstalled() {
		t.Fatal("marker must not be created without a database")
	}

	status, err := svc.Status(context.Background())
	if err != nil || status.State != install.StateNotInstalled || status.Record != nil {
		t.Fatalf("unexpected status %+v, err %v", status, err)
	}
}

func TestInstallerConcurrent(t *testing.T) {
	f := newFixture(t)
	svc := NewInstaller(f.cfg, nil, f.store)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Install(context.Background())
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, install.ErrAlreadyInstalled) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful install, got %d", successes)
	}
}

func TestInstallerDistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	f := newFixture(t)
	locker := lock.New(client, lock.InstallLockKey, 30*time.Second, time.Second)
	svc := NewInstaller(f.cfg, locker, f.store)

	if _, err := svc.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if mr.Exists(lock.InstallLockKey) {
		t.Fatal("expected install lock to be released")
	}

	t.Run("HeldElsewhere", func(t *testing.T) {
		other := newFixture(t)
		if err := mr.Set(lock.InstallLockKey, "another-host"); err != nil {
			t.Fatalf("set lock: %v", err)
		}
		defer mr.Del(lock.InstallLockKey)

		busy := NewInstaller(other.cfg, lock.New(client, lock.InstallLockKey, 30*time.Second, 100*time.Millisecond), other.store)
		if _, err := busy.Install(context.Background()); !errors.Is(err, lock.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
		if busy.Marker().IsInstalled() {
			t.Fatal("marker must not be created without the lock")
		}
	})
}
