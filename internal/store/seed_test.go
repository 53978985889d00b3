package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFromFile(t *testing.T) {
	st := openTestStore(t)

	seed := `[
		{"id": "s1", "title": "Seeded One", "synopsis": "first", "released": 2001, "genre": "Drama", "image": "https://img.example/s1.png"},
		{"id": "s2", "title": "Seeded Two", "synopsis": "second", "released": 2002, "genre": "Horror"},
		{"id": "", "title": "No ID", "synopsis": "skipped", "released": 2003, "genre": "Action"}
	]`
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	ctx := context.Background()
	count, err := st.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	total, err := st.CountTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	got, err := st.GetTitle(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Seeded One", got.Title)
	assert.True(t, got.Image.Valid)

	// Re-seeding updates in place instead of erroring.
	count, err = st.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	total, err = st.CountTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSeedFromFileMissing(t *testing.T) {
	st := openTestStore(t)
	_, err := st.SeedFromFile(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
