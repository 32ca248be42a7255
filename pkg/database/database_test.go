package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/sorathiyaom089/Student-Management-System/pkg/config"
)

func sqliteConfig(path string) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:  DriverSQLite,
		Host:    "localhost",
		Name:    path,
		Charset: "utf8mb4",
	}
}

func createSQLiteFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "students.db")
	db, err := Open(sqliteConfig(path))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := db.Exec("CREATE TABLE students (id INTEGER PRIMARY KEY, name TEXT)").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := Close(db); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	return path
}

func TestDSN(t *testing.T) {
	t.Run("MySQL", func(t *testing.T) {
		dsn, err := DSN(config.DatabaseConfig{
			Driver:  "mysql",
			Host:    "localhost",
			Name:    "student_management",
			User:    "root",
			Charset: "utf8mb4",
		}, 5*time.Second)
		if err != nil {
			t.Fatalf("DSN returned error: %v", err)
		}
		if !strings.HasPrefix(dsn, "root@tcp(localhost:3306)/student_management?") {
			t.Fatalf("unexpected dsn %s", dsn)
		}
		parsed, err := gomysql.ParseDSN(dsn)
		if err != nil {
			t.Fatalf("ParseDSN(%s) returned error: %v", dsn, err)
		}
		if parsed.Addr != "localhost:3306" || parsed.DBName != "student_management" || parsed.User != "root" {
			t.Fatalf("unexpected endpoint in %s", dsn)
		}
		if !parsed.ParseTime || parsed.Timeout != 5*time.Second || parsed.Params["charset"] != "utf8mb4" {
			t.Fatalf("unexpected parameters in %s", dsn)
		}
	})

	t.Run("MySQLEscapesCredentials", func(t *testing.T) {
		dsn, err := DSN(config.DatabaseConfig{Driver: "mysql", Host: "db:3307", Name: "sms", User: "u", Password: "p@ss/w:rd", Charset: "utf8"}, 0)
		if err != nil {
			t.Fatalf("DSN returned error: %v", err)
		}
		parsed, err := gomysql.ParseDSN(dsn)
		if err != nil {
			t.Fatalf("ParseDSN(%s) returned error: %v", dsn, err)
		}
		if parsed.Passwd != "p@ss/w:rd" || parsed.Addr != "db:3307" {
			t.Fatalf("credentials not preserved in %s", dsn)
		}
		if strings.Contains(dsn, "timeout=") {
			t.Fatalf("expected no timeout parameter, got %s", dsn)
		}
	})

	t.Run("Postgres", func(t *testing.T) {
		dsn, err := DSN(config.DatabaseConfig{
			Driver:   "postgresql",
			Host:     "127.0.0.1",
			Name:     "students",
			User:     "postgres",
			Password: "pa ss",
			Charset:  "utf8mb4",
		}, 3*time.Second)
		if err != nil {
			t.Fatalf("DSN returned error: %v", err)
		}
		want := "host=127.0.0.1 port=5432 user=postgres password='pa ss' dbname=students sslmode=disable client_encoding=UTF8 connect_timeout=3"
		if dsn != want {
			t.Fatalf("expected %s, got %s", want, dsn)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := DSN(config.DatabaseConfig{Driver: "oracle", Host: "x", Name: "y"}, 0); err == nil {
			t.Fatal("expected error for unsupported driver")
		}
	})
}

func TestTestConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("SQLiteReachable", func(t *testing.T) {
		path := createSQLiteFile(t)
		if !TestConnection(ctx, sqliteConfig(path)) {
			t.Fatal("expected existing sqlite database to be reachable")
		}
	})

	t.Run("SQLiteMissingFileIsNotCreated", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.db")
		if TestConnection(ctx, sqliteConfig(path)) {
			t.Fatal("expected missing sqlite database to be unreachable")
		}
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("probe must not create the database file, stat err: %v", err)
		}
	})

	t.Run("MySQLWrongPort", func(t *testing.T) {
		cfg := config.DatabaseConfig{
			Driver:  "mysql",
			Host:    "127.0.0.1",
			Port:    1,
			Name:    "student_management",
			User:    "root",
			Charset: "utf8mb4",
		}
		if TestConnection(ctx, cfg) {
			t.Fatal("expected wrong port to be unreachable")
		}
	})

	t.Run("PostgresWrongPort", func(t *testing.T) {
		cfg := config.DatabaseConfig{
			Driver:   "postgres",
			Host:     "127.0.0.1",
			Port:     1,
			Name:     "students",
			User:     "postgres",
			Password: "wrong",
			Charset:  "utf8",
		}
		if TestConnection(ctx, cfg) {
			t.Fatal("expected wrong port to be unreachable")
		}
	})

	t.Run("UnresolvableHost", func(t *testing.T) {
		cfg := config.DatabaseConfig{
			Driver:  "mysql",
			Host:    "db.invalid",
			Name:    "student_management",
			User:    "root",
			Charset: "utf8mb4",
		}
		if TestConnection(ctx, cfg) {
			t.Fatal("expected unresolvable host to be unreachable")
		}
	})

	t.Run("UnsupportedDriver", func(t *testing.T) {
		if TestConnection(ctx, config.DatabaseConfig{Driver: "oracle", Host: "x", Name: "y"}) {
			t.Fatal("expected unsupported driver to be unreachable")
		}
	})

	t.Run("ExpiredContext", func(t *testing.T) {
		path := createSQLiteFile(t)
		expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
		defer cancel()
		if TestConnection(expired, sqliteConfig(path)) {
			t.Fatal("expected expired context to fail the probe")
		}
	})
}

func TestProbeReturnsConnectivityError(t *testing.T) {
	err := Probe(context.Background(), sqliteConfig(filepath.Join(t.TempDir(), "missing.db")))
	if !IsConnectivityError(err) {
		t.Fatalf("expected ConnectivityError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestDetectVersion(t *testing.T) {
	path := createSQLiteFile(t)
	version, err := DetectVersion(context.Background(), sqliteConfig(path))
	if err != nil {
		t.Fatalf("DetectVersion returned error: %v", err)
	}
	if !strings.HasPrefix(version, "3.") {
		t.Fatalf("expected sqlite 3.x version, got %q", version)
	}
}

func TestDetectVersionUnreachable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	version, err := DetectVersion(context.Background(), sqliteConfig(path))
	if !IsConnectivityError(err) {
		t.Fatalf("expected ConnectivityError, got %v", err)
	}
	if version != "" {
		t.Fatalf("expected empty version, got %q", version)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected database file not to be created, stat err %v", err)
	}
}
