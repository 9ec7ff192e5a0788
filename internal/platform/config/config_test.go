package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validServer() Server {
	t := Server{}
	t.ProjectID = "taskboard"
	t.AdminKey = "admin-key"
	t.SigningKey = "0123456789abcdef0123456789abcdef"
	t.Session.CookieName = "taskboard_session"
	t.Database = DatabaseConfig{DatabaseID: "db", ProjectsCollectionID: "p", TasksCollectionID: "t", CommentsCollectionID: "c"}
	t.Blobs = BlobConfig{BucketID: "images", MaxUploadBytes: 10, MaxBufferedBytes: 5}
	return t
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("TASKBOARD_ADDR", "")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "taskboard_session", cfg.Session.CookieName)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Audit.Brokers)
	assert.Equal(t, 200, cfg.Blobs.PreviewWidth)
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, validServer().Validate())
	})

	t.Run("reports every missing value", func(t *testing.T) {
		err := Server{}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "admin key is required")
		assert.Contains(t, err.Error(), "bucket id is required")
	})

	t.Run("short signing key rejected", func(t *testing.T) {
		cfg := validServer()
		cfg.SigningKey = "short"
		assert.ErrorContains(t, cfg.Validate(), "at least 32 bytes")
	})

	t.Run("zero upload limit rejected", func(t *testing.T) {
		cfg := validServer()
		cfg.Blobs.MaxUploadBytes = 0
		cfg.Blobs.MaxBufferedBytes = 0
		err := cfg.Validate()
		assert.ErrorContains(t, err, "max upload bytes must be positive")
		assert.ErrorContains(t, err, "max buffered upload bytes must be positive")
	})
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9090\"\nsession:\n  ttl: 30m\n"), 0o600))

	base := validServer()
	base.Addr = ":8080"
	base.Session.TTL = time.Hour

	cfg, err := LoadFile(path, base)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "taskboard_session", cfg.Session.CookieName)
	assert.Equal(t, "admin-key", cfg.AdminKey)
}
