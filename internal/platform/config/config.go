package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	pstrings "taskboard/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr        string `yaml:"addr"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	ProjectID  string `yaml:"project_id"`
	AdminKey   string `yaml:"admin_key"`
	SigningKey string `yaml:"signing_key"`

	Session  SessionConfig  `yaml:"session"`
	Database DatabaseConfig `yaml:"database"`
	Blobs    BlobConfig     `yaml:"blobs"`
	Redis    RedisConfig    `yaml:"redis"`
	Audit    AuditConfig    `yaml:"audit"`
}

// SessionConfig controls the session credential.
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
}

// DatabaseConfig names the document store and its collections.
// An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL                  string `yaml:"url"`
	DatabaseID           string `yaml:"database_id"`
	ProjectsCollectionID string `yaml:"projects_collection_id"`
	TasksCollectionID    string `yaml:"tasks_collection_id"`
	CommentsCollectionID string `yaml:"comments_collection_id"`
}

// BlobConfig names the file bucket. An empty SQLitePath selects the in-memory store.
type BlobConfig struct {
	BucketID         string `yaml:"bucket_id"`
	SQLitePath       string `yaml:"sqlite_path"`
	MaxUploadBytes   int64  `yaml:"max_upload_bytes"`
	MaxBufferedBytes int64  `yaml:"max_buffered_bytes"`
	PreviewWidth     int    `yaml:"preview_width"`
	PreviewFanout    int    `yaml:"preview_fanout"`
}

// RedisConfig configures the session store connection. An empty URL selects memory.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuditConfig enables the Kafka audit sink when brokers are set.
type AuditConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envOr("TASKBOARD_ADDR", ":8080"),
		Environment: envOr("TASKBOARD_ENV", "development"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		ProjectID:   os.Getenv("TASKBOARD_PROJECT_ID"),
		AdminKey:    os.Getenv("TASKBOARD_ADMIN_KEY"),
		SigningKey:  os.Getenv("SESSION_SIGNING_KEY"),
		Session: SessionConfig{
			CookieName: envOr("SESSION_COOKIE_NAME", "taskboard_session"),
			TTL:        envDuration("SESSION_TTL", 365*24*time.Hour),
		},
		Database: DatabaseConfig{
			URL:                  os.Getenv("DATABASE_URL"),
			DatabaseID:           envOr("TASKBOARD_DATABASE_ID", "taskboard"),
			ProjectsCollectionID: envOr("PROJECTS_COLLECTION_ID", "projects"),
			TasksCollectionID:    envOr("TASKS_COLLECTION_ID", "tasks"),
			CommentsCollectionID: envOr("COMMENTS_COLLECTION_ID", "comments"),
		},
		Blobs: BlobConfig{
			BucketID:         envOr("TASKBOARD_BUCKET_ID", "images"),
			SQLitePath:       os.Getenv("BLOB_SQLITE_PATH"),
			MaxUploadBytes:   envInt64("MAX_UPLOAD_BYTES", 30<<20),
			MaxBufferedBytes: envInt64("MAX_BUFFERED_UPLOAD_BYTES", 5<<20),
			PreviewWidth:     int(envInt64("PREVIEW_WIDTH", 200)),
			PreviewFanout:    int(envInt64("PREVIEW_FANOUT", 4)),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     int(envInt64("REDIS_POOL_SIZE", 10)),
			MinIdleConns: int(envInt64("REDIS_MIN_IDLE_CONNS", 2)),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: AuditConfig{
			Brokers: pstrings.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			Topic:   envOr("AUDIT_TOPIC", "taskboard.audit"),
		},
	}
}

// LoadFile overlays a YAML file onto base. Keys absent from the file keep base values.
func LoadFile(path string, base Server) (Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every missing required value at once.
func (s Server) Validate() error {
	var errs []error
	required := []struct{ name, value string }{
		{"project id", s.ProjectID},
		{"admin key", s.AdminKey},
		{"session signing key", s.SigningKey},
		{"session cookie name", s.Session.CookieName},
		{"database id", s.Database.DatabaseID},
		{"projects collection id", s.Database.ProjectsCollectionID},
		{"tasks collection id", s.Database.TasksCollectionID},
		{"comments collection id", s.Database.CommentsCollectionID},
		{"bucket id", s.Blobs.BucketID},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}
	if len(s.SigningKey) > 0 && len(s.SigningKey) < 32 {
		errs = append(errs, errors.New("session signing key must be at least 32 bytes"))
	}
	if s.Blobs.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	if s.Blobs.MaxBufferedBytes <= 0 {
		errs = append(errs, errors.New("max buffered upload bytes must be positive"))
	}
	if s.Blobs.MaxBufferedBytes > s.Blobs.MaxUploadBytes {
		errs = append(errs, errors.New("max buffered upload bytes must not exceed max upload bytes"))
	}
	if len(s.Audit.Brokers) > 0 && s.Audit.Topic == "" {
		errs = append(errs, errors.New("audit topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
