package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCreatesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(path)
	require.NoError(t, err)

	cfg := mgr.Get()
	assert.False(t, cfg.Reporter.Enabled)
	assert.Empty(t, cfg.Reporter.Endpoint)
	assert.False(t, cfg.Reporter.EnableMediaReporting)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.DiagnosticsPort)

	// The default file is written on first run.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestManagerRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(path)
	require.NoError(t, err)

	want := ReporterConfig{
		Enabled:              true,
		Endpoint:             "wss://telemetry.example.com/ws",
		AuthToken:            "s3cret",
		EnableMediaReporting: true,
	}
	require.NoError(t, mgr.SetReporter(want))

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, want, reloaded.GetReporter())
}

func TestManagerGetReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(path)
	require.NoError(t, err)

	cfg := mgr.Get()
	cfg.Reporter.Endpoint = "wss://mutated.example.com"
	assert.Empty(t, mgr.Get().Reporter.Endpoint)
}

func TestManagerRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reporter: [not a mapping"), 0600))

	_, err := NewManager(path)
	require.Error(t, err)
}

func TestNormalizedEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{"ws passthrough", "ws://localhost:8080/ws", "ws://localhost:8080/ws"},
		{"wss passthrough", "wss://example.com/ws", "wss://example.com/ws"},
		{"http rewritten", "http://example.com/ws", "ws://example.com/ws"},
		{"https rewritten", "https://example.com/ws", "wss://example.com/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ReporterConfig{Endpoint: tt.endpoint}
			assert.Equal(t, tt.want, c.NormalizedEndpoint())
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ReporterConfig
		wantErr bool
	}{
		{"disabled skips validation", ReporterConfig{Enabled: false}, false},
		{"valid ws", ReporterConfig{Enabled: true, Endpoint: "ws://localhost:8080/ws"}, false},
		{"valid https rewrite", ReporterConfig{Enabled: true, Endpoint: "https://example.com/ws"}, false},
		{"empty endpoint", ReporterConfig{Enabled: true, Endpoint: ""}, true},
		{"wrong scheme", ReporterConfig{Enabled: true, Endpoint: "ftp://example.com"}, true},
		{"missing host", ReporterConfig{Enabled: true, Endpoint: "ws://"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEndpoint)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
