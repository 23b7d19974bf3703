package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
	api "github.com/xkayo32/pydevbot/api/v1"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence/inmem"
)

func TestRegistry(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, reg Registry, storage *inmem.Storage){
		"resolve known type":            testResolveKnown,
		"unknown type is typed error":   testResolveUnknown,
		"resolve caches template":       testResolveCaches,
		"invalidate drops cached entry": testInvalidate,
	} {
		t.Run(scenario, func(t *testing.T) {
			storage := inmem.NewStorage()
			for _, tpl := range BuiltinTemplates() {
				require.NoError(t, storage.SaveTemplate(tpl))
			}
			fn(t, NewRegistry(storage), storage)
		})
	}
}

func testResolveKnown(t *testing.T, reg Registry, storage *inmem.Storage) {
	tpl, err := reg.Resolve(model.NODE_TYPE_CONDITION)
	require.NoError(t, err)
	require.Equal(t, model.NODE_TYPE_CONDITION, tpl.Type)
	require.Len(t, tpl.OutputHandles, 3)
}

func testResolveUnknown(t *testing.T, reg Registry, storage *inmem.Storage) {
	_, err := reg.Resolve(model.NodeType("teleport"))
	require.Error(t, err)
	require.True(t, api.IsTemplateNotFound(err))
}

func testResolveCaches(t *testing.T, reg Registry, storage *inmem.Storage) {
	_, err := reg.Resolve(model.NODE_TYPE_MESSAGE)
	require.NoError(t, err)

	require.NoError(t, storage.DeleteTemplate(model.NODE_TYPE_MESSAGE))

	tpl, err := reg.Resolve(model.NODE_TYPE_MESSAGE)
	require.NoError(t, err)
	require.Equal(t, model.NODE_TYPE_MESSAGE, tpl.Type)
}

func testInvalidate(t *testing.T, reg Registry, storage *inmem.Storage) {
	_, err := reg.Resolve(model.NODE_TYPE_MESSAGE)
	require.NoError(t, err)

	require.NoError(t, storage.DeleteTemplate(model.NODE_TYPE_MESSAGE))
	reg.Invalidate(model.NODE_TYPE_MESSAGE)

	_, err = reg.Resolve(model.NODE_TYPE_MESSAGE)
	require.Error(t, err)
	require.True(t, api.IsTemplateNotFound(err))
}
