package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvfabric/kvfabric/pkg/types"
)

func TestLoadProviderOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provider.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bindAddr: :8081\nhandlerPoolSize: 8\n"), 0o644))

	cfg, err := LoadProvider(path)
	require.NoError(t, err)
	require.Equal(t, ":8081", cfg.BindAddr)
	require.Equal(t, 8, cfg.HandlerPoolSize)
	require.Equal(t, ":9090", cfg.MetricsAddr) // untouched default
}

func TestLoadProviderEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadProvider("")
	require.NoError(t, err)
	require.Equal(t, types.DefaultProviderConfig(), cfg)
}

func TestLoadManifestMultiDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "databases.yaml")
	manifest := `
apiVersion: kvfabric/v1
kind: Database
spec:
  name: orders
  backend: map
---
apiVersion: kvfabric/v1
kind: Database
spec:
  name: audit
  backend: log_store
  path: /var/lib/kvfabric/audit
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	cfgs, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	require.Equal(t, "orders", cfgs[0].Name)
	require.Equal(t, types.BackendMap, cfgs[0].Backend)
	require.Equal(t, "audit", cfgs[1].Name)
	require.Equal(t, types.BackendLogStore, cfgs[1].Backend)
}

func TestLoadManifestRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apiVersion: kvfabric/v1\nkind: Widget\nspec:\n  name: x\n"), 0o644))

	_, err := LoadManifest(path)
	require.Error(t, err)
}
