package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sorathiyaom089/Student-Management-System/pkg/validator"
)

// DefaultFileName is the configuration file looked up when no path is given.
const DefaultFileName = "config.yaml"

// Environment variables that override secrets from the YAML file.
const (
	EnvDatabasePassword = "STUDENT_DB_PASSWORD"
	EnvSMSAPIKey        = "STUDENT_SMS_API_KEY"
	EnvRedisPassword    = "STUDENT_REDIS_PASSWORD"
)

// Config is the configuration set of one process. It is built once by Load
// and must be treated as read-only afterwards; a new process reloads it from
// the same file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Security SecurityConfig `yaml:"security"`
	Upload   UploadConfig   `yaml:"upload"`
	SMS      SMSConfig      `yaml:"sms"`
	Install  InstallConfig  `yaml:"install"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`

	dir      string
	location *time.Location
}

// ServerConfig defines HTTP server options.
type ServerConfig struct {
	Address string `yaml:"address" validate:"required"`
}

// AppConfig describes the deployed application.
type AppConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Version  string `yaml:"version" validate:"required"`
	URL      string `yaml:"url" validate:"required,url"`
	Debug    bool   `yaml:"debug"`
	Timezone string `yaml:"timezone" validate:"required,timezone"`
}

// DatabaseConfig holds the connection endpoint of the student database.
// For the sqlite driver Name is the database file path.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" validate:"required,oneof=mysql postgres sqlite"`
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	Name     string `yaml:"name" validate:"required"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Charset  string `yaml:"charset" validate:"required"`
}

// SecurityConfig holds password hashing and session settings.
type SecurityConfig struct {
	HashAlgo string `yaml:"hash_algo" validate:"required,hash_algo"`
	// SessionTimeout is expressed in seconds.
	SessionTimeout int `yaml:"session_timeout" validate:"gte=0"`
}

// SessionTTL returns the session timeout as a duration.
func (s SecurityConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTimeout) * time.Second
}

// UploadConfig defines file upload constraints.
type UploadConfig struct {
	// MaxFileSize is expressed in bytes.
	MaxFileSize       int64      `yaml:"max_file_size" validate:"gte=0"`
	Path              string     `yaml:"path" validate:"required"`
	AllowedExtensions Extensions `yaml:"allowed_extensions" validate:"required,min=1,unique,dive,ext_token"`
}

// SMSConfig holds the optional SMS gateway settings. All fields may be empty.
type SMSConfig struct {
	Gateway  string `yaml:"gateway" validate:"omitempty,url"`
	APIKey   string `yaml:"api_key"`
	SenderID string `yaml:"sender_id"`
}

// Enabled reports whether an SMS gateway is configured.
func (s SMSConfig) Enabled() bool {
	return s.Gateway != "" && s.APIKey != ""
}

// InstallConfig locates the installation marker.
type InstallConfig struct {
	// LockPath is resolved against the directory of the configuration file
	// when relative.
	LockPath string `yaml:"lock_path" validate:"required"`
}

// RedisConfig defines Redis connection settings for the distributed install lock.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address" validate:"required_if=Enabled true"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// StorageConfig selects where uploaded files are kept. Local storage uses
// Upload.Path as its root.
type StorageConfig struct {
	Type string   `yaml:"type" validate:"oneof=local s3"`
	S3   S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// Extensions is the upload extension allowlist. It decodes from either a YAML
// sequence or the legacy comma separated string ("jpg,jpeg,png").
type Extensions []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Extensions) UnmarshalYAML(value *yaml.Node) error {
	var items []string
	switch value.Kind {
	case yaml.ScalarNode:
		items = strings.Split(value.Value, ",")
	case yaml.SequenceNode:
		if err := value.Decode(&items); err != nil {
			return err
		}
	default:
		return fmt.Errorf("line %d: allowed_extensions must be a list or a comma separated string", value.Line)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(item), "."))
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	*e = out
	return nil
}

// Contains reports whether ext (with or without a leading dot) is allowed.
func (e Extensions) Contains(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range e {
		if allowed == ext {
			return true
		}
	}
	return false
}

// requiredKeys must be present in the configuration file. Empty values are
// accepted where validation allows them (e.g. database.password).
var requiredKeys = []string{
	"database.host",
	"database.name",
	"database.user",
	"database.password",
	"database.charset",
	"app.name",
	"app.version",
	"app.url",
	"app.debug",
	"app.timezone",
	"security.hash_algo",
	"security.session_timeout",
	"upload.max_file_size",
	"upload.path",
	"upload.allowed_extensions",
}

// Load reads a YAML configuration file from the provided path.
// It searches in the current working directory first, then next to the binary executable.
// Any missing or invalid key yields an *Error. On success the process-wide
// time.Local is switched to the configured timezone.
func Load(name string) (*Config, error) {
	if name == "" {
		name = DefaultFileName
	}
	configPath := findConfigFile(name)
	if configPath == "" {
		return nil, &Error{Reason: fmt.Sprintf("configuration file %q not found", name)}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &Error{Reason: "read configuration file", Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(configPath)

	if err := loadDotEnv(filepath.Join(cfg.dir, ".env")); err != nil {
		return nil, &Error{Reason: "load .env", Err: err}
	}
	cfg.applyEnv()

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	hlog.Infof("[Config] loaded config from: %s", configPath)
	return cfg, nil
}

// Parse decodes and validates a configuration document without touching the
// filesystem or the environment. Relative paths resolve against the working
// directory.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Reason: "decode configuration", Err: err}
	}
	for _, key := range requiredKeys {
		v, ok := lookupKey(raw, key)
		if !ok {
			return nil, &Error{Key: key, Reason: "required key is missing"}
		}
		// a blank leaf would leave the default in place; "" spells an empty value
		if v == nil {
			return nil, &Error{Key: key, Reason: "required key has no value"}
		}
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, &Error{Reason: "decode configuration", Err: err}
	}
	applyDefaults(cfg)
	cfg.dir = "."
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish re-validates after environment overrides and applies the timezone.
func (c *Config) finish() error {
	if err := c.validate(); err != nil {
		return err
	}
	time.Local = c.location
	return nil
}

func (c *Config) validate() error {
	if err := validator.Struct(c); err != nil {
		return newValidationError(err)
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return &Error{Key: "app.timezone", Reason: "unknown timezone", Err: err}
	}
	c.location = loc
	return nil
}

// Default returns the values of the shipped configuration template.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		App: AppConfig{
			Name:     "Student Management System",
			Version:  "2.0",
			URL:      "http://localhost/student-management/",
			Debug:    true,
			Timezone: "Asia/Dhaka",
		},
		Database: DatabaseConfig{
			Driver:  "mysql",
			Host:    "localhost",
			Name:    "student_management",
			User:    "root",
			Charset: "utf8mb4",
		},
		Security: SecurityConfig{
			HashAlgo:       "sha256",
			SessionTimeout: 3600,
		},
		Upload: UploadConfig{
			MaxFileSize:       5 * 1024 * 1024, // 5MB
			Path:              "upload/",
			AllowedExtensions: Extensions{"jpg", "jpeg", "png", "pdf", "doc", "docx"},
		},
		Install: InstallConfig{
			LockPath: "config/install.lock",
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Storage: StorageConfig{
			Type: "local",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if cfg.Install.LockPath == "" {
		cfg.Install.LockPath = "config/install.lock"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvDatabasePassword); ok {
		c.Database.Password = v
	}
	if v, ok := os.LookupEnv(EnvSMSAPIKey); ok {
		c.SMS.APIKey = v
	}
	if v, ok := os.LookupEnv(EnvRedisPassword); ok {
		c.Redis.Password = v
	}
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Dir returns the directory holding the loaded configuration file.
func (c *Config) Dir() string {
	if c.dir == "" {
		return "."
	}
	return c.dir
}

// Location returns the configured timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// LockPath returns the absolute-or-config-relative path of the installation marker.
func (c *Config) LockPath() string {
	if filepath.IsAbs(c.Install.LockPath) {
		return c.Install.LockPath
	}
	return filepath.Join(c.Dir(), c.Install.LockPath)
}

// UploadPath returns the upload directory resolved like LockPath.
func (c *Config) UploadPath() string {
	if filepath.IsAbs(c.Upload.Path) {
		return c.Upload.Path
	}
	return filepath.Join(c.Dir(), c.Upload.Path)
}

func lookupKey(raw map[string]any, dotted string) (any, bool) {
	var node any = raw
	for _, part := range strings.Split(dotted, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// findConfigFile searches for a config file in the current directory first,
// then next to the binary executable. Returns the full path or empty string.
func findConfigFile(name string) string {
	if _, err := os.Stat(name); err == nil {
		abs, _ := filepath.Abs(name)
		return abs
	}
	if filepath.IsAbs(name) {
		return ""
	}

	exe, err := os.Executable()
	if err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}
