package sso_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-saml-sp/sso"
)

const testPrincipal = "user-1"

func TestRecordAndActive(t *testing.T) {
	registry := sso.NewInMemoryRegistry()

	t.Run("no legs for unknown principal", func(t *testing.T) {
		require.Empty(t, registry.Active(testPrincipal))
	})

	t.Run("legs come back in recording order", func(t *testing.T) {
		first := sso.Session{SessionIndex: "idx-1", NameID: "alice@example.org"}
		second := sso.Session{SessionIndex: "idx-2", NameID: "alice@example.org"}
		require.NoError(t, registry.Record(testPrincipal, first))
		require.NoError(t, registry.Record(testPrincipal, second))

		active := registry.Active(testPrincipal)
		require.Len(t, active, 2)
		require.Equal(t, first, active[0])
		require.Equal(t, second, active[1])
	})

	t.Run("empty principal id is rejected", func(t *testing.T) {
		require.Error(t, registry.Record("", sso.Session{SessionIndex: "idx-3"}))
	})
}

func TestClear(t *testing.T) {
	registry := sso.NewInMemoryRegistry()
	require.NoError(t, registry.Record(testPrincipal, sso.Session{SessionIndex: "idx-1"}))

	require.NoError(t, registry.Clear(testPrincipal))
	require.Empty(t, registry.Active(testPrincipal))

	// Clearing an already clear principal is a no-op.
	require.NoError(t, registry.Clear(testPrincipal))
	require.NoError(t, registry.Clear("never-seen"))
}

func TestDropBySessionIndex(t *testing.T) {
	registry := sso.NewInMemoryRegistry()
	require.NoError(t, registry.Record("user-1", sso.Session{SessionIndex: "shared"}))
	require.NoError(t, registry.Record("user-1", sso.Session{SessionIndex: "own"}))
	require.NoError(t, registry.Record("user-2", sso.Session{SessionIndex: "shared"}))

	t.Run("drops matching legs across principals", func(t *testing.T) {
		require.Equal(t, 2, registry.DropBySessionIndex("shared"))

		remaining := registry.Active("user-1")
		require.Len(t, remaining, 1)
		require.Equal(t, "own", remaining[0].SessionIndex)
		require.Empty(t, registry.Active("user-2"))
	})

	t.Run("unknown index drops nothing", func(t *testing.T) {
		require.Equal(t, 0, registry.DropBySessionIndex("missing"))
	})

	t.Run("empty index drops nothing", func(t *testing.T) {
		require.Equal(t, 0, registry.DropBySessionIndex(""))
	})
}
