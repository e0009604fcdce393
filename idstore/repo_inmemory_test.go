package idstore_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-saml-sp/idstore"
)

const (
	testEntityID  = "https://idp.example.org/metadata"
	testMessageID = "_8f2e61a3b4c5d6e7f8091a2b3c4d5e6f70819a2b"
)

func TestSetAndHas(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := idstore.NewInMemoryStore(clock)

	t.Run("unknown id is absent", func(t *testing.T) {
		require.False(t, store.Has(testEntityID, testMessageID))
	})

	t.Run("recorded id is present until expiry", func(t *testing.T) {
		require.NoError(t, store.Set(testEntityID, testMessageID, clock.Now().Add(10*time.Minute)))
		require.True(t, store.Has(testEntityID, testMessageID))

		clock.Advance(9 * time.Minute)
		require.True(t, store.Has(testEntityID, testMessageID))

		clock.Advance(2 * time.Minute)
		require.False(t, store.Has(testEntityID, testMessageID))
	})

	t.Run("same id under another entity is a distinct entry", func(t *testing.T) {
		require.NoError(t, store.Set("https://other.example.org", testMessageID, clock.Now().Add(time.Minute)))
		require.True(t, store.Has("https://other.example.org", testMessageID))
		require.False(t, store.Has(testEntityID, testMessageID))
	})

	t.Run("set is an upsert, last expiry wins", func(t *testing.T) {
		require.NoError(t, store.Set(testEntityID, "_msg", clock.Now().Add(time.Minute)))
		require.NoError(t, store.Set(testEntityID, "_msg", clock.Now().Add(time.Hour)))
		clock.Advance(30 * time.Minute)
		require.True(t, store.Has(testEntityID, "_msg"))
	})

	t.Run("empty keys are rejected", func(t *testing.T) {
		require.Error(t, store.Set("", testMessageID, clock.Now().Add(time.Minute)))
		require.Error(t, store.Set(testEntityID, "", clock.Now().Add(time.Minute)))
	})
}

func TestDeleteExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := idstore.NewInMemoryStore(clock)

	require.NoError(t, store.Set(testEntityID, "_live", clock.Now().Add(time.Hour)))
	require.NoError(t, store.Set(testEntityID, "_dead", clock.Now().Add(time.Minute)))

	clock.Advance(5 * time.Minute)
	require.Equal(t, 1, store.DeleteExpired())
	require.True(t, store.Has(testEntityID, "_live"))
	require.False(t, store.Has(testEntityID, "_dead"))
	require.Equal(t, 0, store.DeleteExpired())
}
