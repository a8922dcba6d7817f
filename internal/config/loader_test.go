package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	// Loading the written file yields the same values.
	again, _, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rendezvous_port: 12000
ingress_port: 12001
handshake_timeout: 3s
mdns_enabled: true
`), 0o600))

	t.Setenv("SHAREDCANVAS_INGRESS_PORT", "13001")
	t.Setenv("SHAREDCANVAS_IDLE_TIMEOUT", "1m")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, 12000, cfg.RendezvousPort, "file overrides default")
	assert.Equal(t, 13001, cfg.IngressPort, "env overrides file")
	assert.Equal(t, 11002, cfg.EgressPort, "default kept")
	assert.Equal(t, 3*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, time.Minute, cfg.IdleTimeout)
	assert.True(t, cfg.MDNSEnabled)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rendezvous_port: [\n"), 0o600))

	_, _, err := Load(nil, path)
	assert.Error(t, err)
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{IngressPort: 20001, HTTPAddr: "127.0.0.1:9000", MDNSEnabled: true})

	assert.Equal(t, 20001, cfg.IngressPort)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, 11000, cfg.RendezvousPort)
	assert.True(t, cfg.MDNSEnabled)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	ephemeral := Default()
	ephemeral.RendezvousPort, ephemeral.IngressPort, ephemeral.EgressPort = 0, 0, 0
	assert.NoError(t, ephemeral.Validate())

	clash := Default()
	clash.EgressPort = clash.IngressPort
	assert.Error(t, clash.Validate())

	badTimeout := Default()
	badTimeout.HandshakeTimeout = 0
	assert.Error(t, badTimeout.Validate())
}
