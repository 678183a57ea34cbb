package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
)

func newTestRegistry() *Registry {
	return New(comparator.New())
}

func TestAttachAssignsIncreasingIDs(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Attach(types.AttachConfig{Name: "a", Backend: types.BackendMap})
	require.NoError(t, err)
	b, err := r.Attach(types.AttachConfig{Name: "b", Backend: types.BackendMap})
	require.NoError(t, err)
	require.Greater(t, b.ID, a.ID)
}

func TestAttachDuplicateNameRejected(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Attach(types.AttachConfig{Name: "a", Backend: types.BackendMap})
	require.NoError(t, err)
	_, err = r.Attach(types.AttachConfig{Name: "a", Backend: types.BackendMap})
	require.Equal(t, errs.DbName, errs.StatusOf(err))
}

func TestAttachUnknownComparatorRejected(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Attach(types.AttachConfig{Name: "a", Backend: types.BackendMap, ComparatorName: "nope"})
	require.Equal(t, errs.CompFunc, errs.StatusOf(err))
}

func TestResolveByNameAndID(t *testing.T) {
	r := newTestRegistry()
	info, err := r.Attach(types.AttachConfig{Name: "a", Backend: types.BackendMap})
	require.NoError(t, err)

	b1, id, _, err := r.ResolveByName("a")
	require.NoError(t, err)
	require.Equal(t, info.ID, id)

	b2, _, err := r.ResolveByID(info.ID)
	require.NoError(t, err)
	require.Same(t, b1, b2)
}

func TestRemoveDetaches(t *testing.T) {
	r := newTestRegistry()
	info, err := r.Attach(types.AttachConfig{Name: "a", Backend: types.BackendMap})
	require.NoError(t, err)
	require.NoError(t, r.Remove(info.ID))

	_, _, _, err = r.ResolveByName("a")
	require.Equal(t, errs.DbName, errs.StatusOf(err))
}

func TestRemoveUnknownID(t *testing.T) {
	r := newTestRegistry()
	err := r.Remove(999)
	require.Equal(t, errs.UnknownDb, errs.StatusOf(err))
}

func TestRemoveAllClearsRegistry(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Attach(types.AttachConfig{Name: "a", Backend: types.BackendMap})
	require.NoError(t, err)
	_, err = r.Attach(types.AttachConfig{Name: "b", Backend: types.BackendMap})
	require.NoError(t, err)

	n, err := r.RemoveAll()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 0, r.Count())
}

func TestListPreservesAttachOrder(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Attach(types.AttachConfig{Name: "z", Backend: types.BackendMap})
	require.NoError(t, err)
	_, err = r.Attach(types.AttachConfig{Name: "a", Backend: types.BackendMap})
	require.NoError(t, err)

	list := r.List()
	require.Equal(t, []string{"z", "a"}, []string{list[0].Name, list[1].Name})
}
