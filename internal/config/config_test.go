package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectorFlags(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	v := viper.New()
	fs := pflag.NewFlagSet("projector", pflag.ContinueOnError)
	BindProjectorFlags(v, fs)
	require.NoError(t, fs.Parse(args))
	return v
}

func presenterFlags(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	v := viper.New()
	fs := pflag.NewFlagSet("presenter", pflag.ContinueOnError)
	BindPresenterFlags(v, fs)
	require.NoError(t, fs.Parse(args))
	return v
}

func TestProjectorDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	cfg, err := LoadProjector(projectorFlags(t, "--data-dir", dir))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8765", cfg.Listen)
	assert.Equal(t, 60, cfg.FPS)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 0.01, cfg.MinRate)
	assert.True(t, cfg.Journal)
	assert.Equal(t, 256, cfg.ProbeCacheLimit)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.DirExists(t, dir)
}

func TestProjectorEnvOverrides(t *testing.T) {
	t.Setenv("PROJECTOR_LISTEN", "0.0.0.0:9000")
	t.Setenv("PROJECTOR_FPS", "30")
	t.Setenv("PROJECTOR_LOG_LEVEL", "debug")

	cfg, err := LoadProjector(projectorFlags(t, "--data-dir", t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, 30, cfg.FPS)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestProjectorFlagBeatsEnv(t *testing.T) {
	t.Setenv("PROJECTOR_FPS", "30")
	cfg, err := LoadProjector(projectorFlags(t, "--fps", "24", "--data-dir", t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.FPS)
}

func TestProjectorValidation(t *testing.T) {
	for _, args := range [][]string{
		{"--listen", "nonsense"},
		{"--fps", "0"},
		{"--min-rate", "0"},
		{"--probe-timeout", "0s"},
		{"--log-level", "LOUD"},
	} {
		_, err := LoadProjector(projectorFlags(t, append(args, "--data-dir", t.TempDir())...))
		var cerr ErrConfig
		assert.ErrorAs(t, err, &cerr, args)
	}
}

func TestPresenterConfig(t *testing.T) {
	cfg, err := LoadPresenter(presenterFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8765", cfg.URL)
	assert.Equal(t, "VideoEnd", cfg.DefaultSkip)

	cfg, err = LoadPresenter(presenterFlags(t, "--url", "ws://10.0.0.2:8765", "--default-skip", "Time(30)"))
	require.NoError(t, err)
	assert.Equal(t, "Time(30)", cfg.DefaultSkip)

	_, err = LoadPresenter(presenterFlags(t, "--default-skip", "Sometimes"))
	assert.ErrorAs(t, err, new(ErrConfig))
	_, err = LoadPresenter(presenterFlags(t, "--url", "http://127.0.0.1:8765"))
	assert.ErrorAs(t, err, new(ErrConfig))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger("warn", &buf)
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	_, err = NewLogger("chatty", &buf)
	assert.Error(t, err)
}
