package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.IP)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.ReusePort, "expected reuseport default true")
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("REACTORD_PORT", "9090")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "reactord-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("port: 7070\nmax_threads: 2\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := Load(f.Name(), nil)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, 2, cfg.MaxThreads)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := &Config{Port: 0, MaxRequestSize: 1024, MaxResponseSize: 1024}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBodyLargerThanRequestBuffer(t *testing.T) {
	cfg := &Config{Port: 8080, MaxRequestSize: 1024, MaxResponseSize: 1024, MaxBodySize: 4096}
	assert.Error(t, cfg.Validate())
}

func TestValidateClampsMaxThreads(t *testing.T) {
	cfg := &Config{Port: 8080, MaxThreads: 1 << 20, MaxRequestSize: 1024, MaxResponseSize: 1024}
	require.NoError(t, cfg.Validate())
	assert.Greater(t, cfg.MaxThreads, 0, "expected clamp to a positive value")
}

func TestConnectionTimeoutConversion(t *testing.T) {
	cfg := &Config{ConnectionTimeoutMs: 1500}
	assert.EqualValues(t, 1500, cfg.ConnectionTimeout().Milliseconds())
}
