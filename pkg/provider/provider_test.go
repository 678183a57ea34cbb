package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/types"
)

func freePort(t *testing.T) string {
	t.Helper()
	// Port 0 lets the OS pick a free port; tests only need Serve to start
	// and stop cleanly, not a known address.
	return "127.0.0.1:0"
}

func TestProviderServeAndShutdown(t *testing.T) {
	cfg := types.DefaultProviderConfig()
	cfg.BindAddr = freePort(t)
	cfg.MetricsAddr = ""
	cfg.HealthAddr = ""

	p := New(cfg, comparator.New())
	_, err := p.Engine().Attach(types.AttachConfig{Name: "A", Backend: types.BackendMap})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = p.Serve(ctx)
	require.NoError(t, err)
}

func TestProviderEngineAttachBeforeServe(t *testing.T) {
	cfg := types.DefaultProviderConfig()
	p := New(cfg, comparator.New())

	info, err := p.Engine().Attach(types.AttachConfig{Name: "orders", Backend: types.BackendMap})
	require.NoError(t, err)
	require.Equal(t, "orders", info.Name)
	require.Equal(t, 1, p.Engine().CountDatabases())
}
