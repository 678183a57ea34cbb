package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/engine"
	"github.com/kvfabric/kvfabric/pkg/lock"
	"github.com/kvfabric/kvfabric/pkg/registry"
	"github.com/kvfabric/kvfabric/pkg/types"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(registry.New(comparator.New()), lock.New())
}

func TestCollectorPopulatesDatabasesTotalByBackend(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Attach(types.AttachConfig{Name: "A", Backend: types.BackendMap})
	require.NoError(t, err)
	_, err = e.Attach(types.AttachConfig{Name: "B", Backend: types.BackendMap})
	require.NoError(t, err)
	_, err = e.Attach(types.AttachConfig{Name: "C", Backend: types.BackendNull})
	require.NoError(t, err)

	c := NewCollector(e)
	c.collect()

	require.Equal(t, float64(2), testutil.ToFloat64(DatabasesTotal.WithLabelValues("map")))
	require.Equal(t, float64(1), testutil.ToFloat64(DatabasesTotal.WithLabelValues("null")))
}

func TestCollectorStartStop(t *testing.T) {
	e := newTestEngine(t)
	c := NewCollector(e)
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()
}
