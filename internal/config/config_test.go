package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	return Load(viper.New(), fs)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Zero(t, cfg.RequestTimeout)
	assert.True(t, cfg.AltScreen)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DefaultLogFile(), cfg.Log.File)
	assert.Empty(t, cfg.Headers)
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := load(t,
		"--api-url", "http://guide.internal:9000/",
		"--poll-interval", "5s",
		"--request-timeout", "12s",
		"--header", "X-Team: energy",
		"--header", "Authorization: Bearer abc",
	)
	require.NoError(t, err)
	assert.Equal(t, "http://guide.internal:9000", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 12*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "energy", cfg.Headers.Get("X-Team"))
	assert.Equal(t, "Bearer abc", cfg.Headers.Get("Authorization"))
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RENEWGUIDE_POLL_INTERVAL", "45s")
	t.Setenv("NEXT_PUBLIC_API_URL", "http://legacy:8000")
	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "http://legacy:8000", cfg.APIURL)
	assert.Equal(t, 45*time.Second, cfg.PollInterval)

	t.Setenv("RENEWGUIDE_API_URL", "http://primary:8000")
	cfg, err = load(t)
	require.NoError(t, err)
	assert.Equal(t, "http://primary:8000", cfg.APIURL)
}

func TestLoadDotEnvAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RENEWGUIDE_REQUEST_TIMEOUT=3s\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RENEWGUIDE_REQUEST_TIMEOUT") })
	configPath := filepath.Join(dir, "renewguide.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("api-url: http://from-file:8000\nlog:\n  level: debug\n"), 0o600))

	cfg, err := load(t, "--config", configPath)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:8000", cfg.APIURL)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := load(t, "--api-url", "localhost")
	assert.Error(t, err)

	_, err = load(t, "--api-url", "ftp://files.example.com")
	assert.Error(t, err)

	_, err = load(t, "--poll-interval", "100ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll-interval")

	_, err = load(t, "--request-timeout=-1s")
	assert.Error(t, err)

	_, err = load(t, "--log.format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")

	_, err = load(t, "--header", "no-colon")
	assert.Error(t, err)

	_, err = load(t, "--header", "Content-Type: text/plain")
	assert.Error(t, err)
}

func TestInitLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renewguide.log")
	l, err := InitLogger(LogConfig{Level: "INFO", Format: "json", File: path}, "renewguide", "test")
	require.NoError(t, err)
	l.Infow("hello", "k", "v")
	_ = l.Flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
