package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 100, cfg.Messaging.PreviewLength)
	assert.Equal(t, 3*time.Second, cfg.Messaging.TypingDebounce)
	assert.Equal(t, 120*time.Second, cfg.Presence.HeartbeatInterval)
	assert.Equal(t, 5*time.Minute, cfg.Presence.StalenessThreshold)
	assert.Equal(t, 5*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Sync.SelfEchoWindow)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SYNC_POLL_INTERVAL", "10s")
	t.Setenv("MESSAGE_PREVIEW_LENGTH", "50")
	t.Setenv("SYNC_SELF_ECHO_WINDOW", "bogus")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 10*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 50, cfg.Messaging.PreviewLength)
	// unparseable values fall back to the default
	assert.Equal(t, 5*time.Second, cfg.Sync.SelfEchoWindow)
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:         "db.internal",
			Port:         "3307",
			Username:     "svc",
			Password:     "secret",
			DatabaseName: "carematch",
		},
	}

	assert.Equal(t,
		"svc:secret@tcp(db.internal:3307)/carematch?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DSN())
}
