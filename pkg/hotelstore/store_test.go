package hotelstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndGet(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	has, err := s.HasCountry(ctx, 4)
	require.NoError(t, err)
	assert.False(t, has)

	err = s.SaveCountry(ctx, 4, []Hotel{
		{ID: 17659, Name: "SWISSOTEL THE BOSPHORUS", Stars: 5, RegionName: "Стамбул"},
		{ID: 0, Name: "без id"},
		{ID: 12, Name: ""},
	})
	require.NoError(t, err)

	has, err = s.HasCountry(ctx, 4)
	require.NoError(t, err)
	assert.True(t, has)

	h, ok, err := s.Get(ctx, 4, 17659)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Hotel{CountryID: 4, ID: 17659, Name: "SWISSOTEL THE BOSPHORUS", Stars: 5, RegionName: "Стамбул"}, h)

	_, ok, err = s.Get(ctx, 4, 12)
	require.NoError(t, err)
	assert.False(t, ok)

	// Тот же id в другой стране — другой отель
	_, ok, err = s.Get(ctx, 1, 17659)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SaveCountryReplaces(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCountry(ctx, 1, []Hotel{{ID: 1, Name: "Old"}, {ID: 2, Name: "Gone"}}))
	require.NoError(t, s.SaveCountry(ctx, 1, []Hotel{{ID: 1, Name: "New"}}))

	h, ok, err := s.Get(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "New", h.Name)

	_, ok, err = s.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_EmptyCountryIsLoaded(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCountry(ctx, 99, nil))
	has, err := s.HasCountry(ctx, 99)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestStore_PersistsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotels.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveCountry(ctx, 4, []Hotel{{ID: 7, Name: "Rixos"}}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	h, ok, err := s.Get(ctx, 4, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Rixos", h.Name)
}
