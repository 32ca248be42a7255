package database

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sorathiyaom089/Student-Management-System/pkg/config"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultProbeTimeout bounds a single reachability probe.
const DefaultProbeTimeout = 5 * time.Second

// Open initialises a gorm.DB according to the supplied configuration.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	driver := normalizeDriver(cfg.Driver)
	if driver == DriverSQLite {
		if err := ensureDir(filepath.Dir(cfg.Name)); err != nil {
			return nil, err
		}
	}
	db, err := open(cfg, DefaultProbeTimeout, logger.Warn)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func open(cfg config.DatabaseConfig, timeout time.Duration, level logger.LogLevel) (*gorm.DB, error) {
	dialector, err := Dialector(cfg, timeout)
	if err != nil {
		return nil, err
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
}

// Dialector returns the gorm dialector for cfg. timeout bounds the connection
// handshake for drivers that support it.
func Dialector(cfg config.DatabaseConfig, timeout time.Duration) (gorm.Dialector, error) {
	dsn, err := DSN(cfg, timeout)
	if err != nil {
		return nil, err
	}
	switch normalizeDriver(cfg.Driver) {
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// DSN builds the driver specific connection string.
func DSN(cfg config.DatabaseConfig, timeout time.Duration) (string, error) {
	switch normalizeDriver(cfg.Driver) {
	case DriverMySQL:
		if cfg.Host == "" || cfg.Name == "" {
			return "", fmt.Errorf("mysql host and name must be configured")
		}
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		mc := gomysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = hostPort(cfg.Host, port)
		mc.DBName = cfg.Name
		mc.ParseTime = true
		mc.Loc = time.Local
		mc.Timeout = timeout
		if cfg.Charset != "" {
			mc.Params = map[string]string{"charset": cfg.Charset}
		}
		return mc.FormatDSN(), nil
	case DriverPostgres:
		if cfg.Host == "" || cfg.Name == "" {
			return "", fmt.Errorf("postgres host and name must be configured")
		}
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		parts := []string{
			"host=" + quoteKV(cfg.Host),
			"port=" + strconv.Itoa(port),
			"user=" + quoteKV(cfg.User),
			"password=" + quoteKV(cfg.Password),
			"dbname=" + quoteKV(cfg.Name),
			"sslmode=disable",
		}
		if cfg.Charset != "" {
			parts = append(parts, "client_encoding="+quoteKV(postgresEncoding(cfg.Charset)))
		}
		if timeout > 0 {
			secs := int(timeout / time.Second)
			if secs < 1 {
				secs = 1
			}
			parts = append(parts, "connect_timeout="+strconv.Itoa(secs))
		}
		return strings.Join(parts, " "), nil
	case DriverSQLite:
		if cfg.Name == "" {
			return "", fmt.Errorf("sqlite path must be configured")
		}
		return cfg.Name, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "", "mysql", "mariadb":
		return DriverMySQL
	case "postgres", "postgresql":
		return DriverPostgres
	case "sqlite", "sqlite3":
		return DriverSQLite
	default:
		return strings.ToLower(driver)
	}
}

func hostPort(host string, port int) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(port))
}

func quoteKV(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// postgresEncoding maps MySQL charset names onto PostgreSQL client encodings.
func postgresEncoding(charset string) string {
	switch strings.ToLower(charset) {
	case "utf8", "utf8mb3", "utf8mb4":
		return "UTF8"
	case "latin1":
		return "LATIN1"
	default:
		return charset
	}
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
