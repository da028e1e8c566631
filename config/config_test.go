package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.DeviceID)
	assert.Equal(t, DefaultModelPath, cfg.ModelPath)
	assert.Equal(t, DefaultBackend, cfg.Backend)
	assert.Equal(t, 3, cfg.Stride)
	assert.Equal(t, 5*time.Second, cfg.Cooldown)
	assert.Equal(t, 0.4, cfg.Confidence)
	assert.True(t, cfg.ShowWindow)
}

func TestLoadFlagsOverride(t *testing.T) {
	cfg, err := Load([]string{
		"-device", "2",
		"-stride", "5",
		"-cooldown", "10s",
		"-backend", "ort",
		"-show-window=false",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.DeviceID)
	assert.Equal(t, 5, cfg.Stride)
	assert.Equal(t, 10*time.Second, cfg.Cooldown)
	assert.Equal(t, "ort", cfg.Backend)
	assert.False(t, cfg.ShowWindow)
}

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv("SENTRY_STRIDE", "7")
	t.Setenv("SENTRY_MODEL", "custom.onnx")
	t.Setenv("SENTRY_COOLDOWN", "2s")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Stride)
	assert.Equal(t, "custom.onnx", cfg.ModelPath)
	assert.Equal(t, 2*time.Second, cfg.Cooldown)
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	t.Setenv("SENTRY_STRIDE", "7")

	cfg, err := Load([]string{"-stride", "2"})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Stride)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load([]string{"-backend", "tensorrt"})
	assert.Error(t, err)

	_, err = Load([]string{"-stride", "0"})
	assert.Error(t, err)

	_, err = Load([]string{"-cooldown", "-1s"})
	assert.Error(t, err)

	_, err = Load([]string{"-confidence", "1.5"})
	assert.Error(t, err)
}
