package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sorathiyaom089/Student-Management-System/pkg/config"
)

// ConnectivityError reports that the configured database could not be reached.
type ConnectivityError struct {
	Driver string
	Target string
	Err    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("database %s %s unreachable: %v", e.Driver, e.Target, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Probe performs a single connect/ping/close round trip against the
// configured database. The attempt is bounded by DefaultProbeTimeout or the
// ctx deadline, whichever is sooner. The connection is always released before
// Probe returns.
func Probe(ctx context.Context, cfg config.DatabaseConfig) error {
	return probe(ctx, cfg, nil)
}

// DetectVersion probes the database like Probe and, on the same connection,
// reports the engine version. Failing to connect yields a ConnectivityError;
// a failing version query is returned as is.
func DetectVersion(ctx context.Context, cfg config.DatabaseConfig) (string, error) {
	var version string
	err := probe(ctx, cfg, func(ctx context.Context, db *gorm.DB) error {
		v, err := ServerVersion(ctx, db)
		version = v
		return err
	})
	return version, err
}

func probe(ctx context.Context, cfg config.DatabaseConfig, then func(context.Context, *gorm.DB) error) (err error) {
	driver := normalizeDriver(cfg.Driver)
	fail := func(cause error) error {
		return &ConnectivityError{Driver: driver, Target: target(cfg), Err: cause}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fail(fmt.Errorf("driver panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()
	timeout := DefaultProbeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return fail(context.DeadlineExceeded)
	}

	// sqlite would silently create a missing database file
	if driver == DriverSQLite && cfg.Name != ":memory:" {
		if _, err := os.Stat(cfg.Name); err != nil {
			return fail(err)
		}
	}

	dialector, err := Dialector(cfg, timeout)
	if err != nil {
		return fail(err)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		closeQuietly(db)
		return fail(err)
	}
	defer closeQuietly(db)

	sqlDB, err := db.DB()
	if err != nil {
		return fail(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fail(err)
	}
	if then != nil {
		return then(ctx, db)
	}
	return nil
}

// TestConnection reports whether the configured database accepts a
// connection. It never returns an error: every failure collapses to false.
func TestConnection(ctx context.Context, cfg config.DatabaseConfig) bool {
	if err := Probe(ctx, cfg); err != nil {
		hlog.CtxDebugf(ctx, "[Database] connection test failed: %v", err)
		return false
	}
	return true
}

// IsConnectivityError reports whether err is a ConnectivityError.
func IsConnectivityError(err error) bool {
	var connErr *ConnectivityError
	return errors.As(err, &connErr)
}

// ServerVersion queries the engine version of an open connection.
func ServerVersion(ctx context.Context, db *gorm.DB) (string, error) {
	var query string
	switch db.Dialector.Name() {
	case "mysql":
		query = "SELECT VERSION()"
	case "postgres":
		query = "SHOW server_version"
	case "sqlite":
		query = "SELECT sqlite_version()"
	default:
		return "", fmt.Errorf("unsupported dialect: %s", db.Dialector.Name())
	}
	var version string
	if err := db.WithContext(ctx).Raw(query).Scan(&version).Error; err != nil {
		return "", err
	}
	return version, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeQuietly(db *gorm.DB) {
	if db == nil || db.Config == nil || db.ConnPool == nil {
		return
	}
	if err := Close(db); err != nil {
		hlog.Debugf("[Database] close connection: %v", err)
	}
}

func target(cfg config.DatabaseConfig) string {
	if normalizeDriver(cfg.Driver) == DriverSQLite {
		return cfg.Name
	}
	return fmt.Sprintf("%s/%s", cfg.Host, cfg.Name)
}
