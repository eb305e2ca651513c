package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 11000, cfg.Endpoint.Port)
	assert.Empty(t, cfg.Endpoint.Host)
	assert.Equal(t, []string{"This is a test", "Test 2", "Test 3"}, cfg.Messages)
	assert.Equal(t, "<EOF>", cfg.Terminator)
	assert.Equal(t, 5*time.Second, cfg.WaitTimeout.Duration)
	assert.Equal(t, 256, cfg.ReceiveBufferSize)
	assert.Equal(t, 3*time.Second, cfg.StartupDelay.Duration)
	assert.NoError(t, cfg.Validate())

	cfg.Messages[0] = "changed"
	assert.Equal(t, "This is a test", DefaultMessages[0])
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("file overlays defaults", func(t *testing.T) {
		path := writeFile(t, `
endpoint:
  host: 127.0.0.1
  port: 12000
messages: ["hello", "world"]
wait_timeout: 250ms
startup_delay: 0s
log:
  level: debug
resolver:
  cache: memory
  ttl: 30s
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1", cfg.Endpoint.Host)
		assert.Equal(t, 12000, cfg.Endpoint.Port)
		assert.Equal(t, []string{"hello", "world"}, cfg.Messages)
		assert.Equal(t, 250*time.Millisecond, cfg.WaitTimeout.Duration)
		assert.Equal(t, time.Duration(0), cfg.StartupDelay.Duration)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "console", cfg.Log.Format)
		assert.Equal(t, "memory", cfg.Resolver.Cache)
		assert.Equal(t, 30*time.Second, cfg.Resolver.TTL.Duration)
		assert.Equal(t, 256, cfg.ReceiveBufferSize)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(writeFile(t, "wait_timeout: soon\n"))
		assert.ErrorContains(t, err, "invalid duration")
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeFile(t, "endpoint:\n  port: 70000\nreceive_buffer_size: 0\n"))
		require.Error(t, err)
		assert.ErrorContains(t, err, "endpoint.port")
		assert.ErrorContains(t, err, "receive_buffer_size")
	})
}

func TestValidate(t *testing.T) {
	t.Run("message containing terminator", func(t *testing.T) {
		cfg := Default()
		cfg.Messages = []string{"ok", "bad<EOF>"}
		assert.ErrorContains(t, cfg.Validate(), "messages[1]")
	})

	t.Run("custom terminator frames both directions", func(t *testing.T) {
		cfg := Default()
		cfg.Terminator = "|"
		cfg.Messages = []string{"a<EOF>b"}
		require.NoError(t, cfg.Validate())

		cfg.Messages = []string{"a|b"}
		assert.ErrorContains(t, cfg.Validate(), "messages[0]")

		cfg.Messages = []string{"ab"}
		cfg.Server.Reply = "x|y"
		assert.ErrorContains(t, cfg.Validate(), "server.reply")
	})

	t.Run("custom terminator from file", func(t *testing.T) {
		cfg, err := Load(writeFile(t, "terminator: \"|\"\n"))
		require.NoError(t, err)
		assert.Equal(t, "|", cfg.Terminator)
	})

	t.Run("empty messages", func(t *testing.T) {
		cfg := Default()
		cfg.Messages = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown resolver cache", func(t *testing.T) {
		cfg := Default()
		cfg.Resolver.Cache = "memcached"
		assert.ErrorContains(t, cfg.Validate(), "resolver.cache")
	})

	t.Run("non-positive wait timeout", func(t *testing.T) {
		cfg := Default()
		cfg.WaitTimeout.Duration = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestLoggerOptions(t *testing.T) {
	cfg := Default()
	cfg.Log.Dir = "/var/log/eof"

	opts := cfg.LoggerOptions("eofclient")
	assert.Equal(t, "eofclient", opts.Service)
	assert.Equal(t, "info", opts.Level)
	assert.Equal(t, "console", opts.Format)
	assert.Equal(t, "/var/log/eof", opts.Dir)
}
