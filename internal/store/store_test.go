package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})
	return st
}

func seedCatalog(t *testing.T, st *Store, titles []Title) {
	t.Helper()
	ctx := context.Background()
	for i := range titles {
		require.NoError(t, st.UpsertTitle(ctx, &titles[i]))
	}
}

func testTitles() []Title {
	return []Title{
		{ID: "t1", Title: "The Matrix", Synopsis: "A hacker wakes up.", Released: 1999, Genre: "Sci-Fi", CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "t2", Title: "Heat", Synopsis: "Cops and robbers.", Released: 1995, Genre: "Action", CreatedAt: "2024-01-02T00:00:00Z"},
		{ID: "t3", Title: "Matrix Reloaded", Synopsis: "More of the same.", Released: 2003, Genre: "Sci-Fi", CreatedAt: "2024-01-03T00:00:00Z"},
		{ID: "t4", Title: "Amélie", Synopsis: "A Paris waitress.", Released: 2001, Genre: "Romance", CreatedAt: "2024-01-04T00:00:00Z"},
		{ID: "t5", Title: "Alien", Synopsis: "In space no one hears you.", Released: 1979, Genre: "Horror", CreatedAt: "2024-01-05T00:00:00Z"},
	}
}

func titleIDs(titles []Title) []string {
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		out = append(out, t.ID)
	}
	return out
}

func TestListTitlesCaseInsensitiveQuery(t *testing.T) {
	st := openTestStore(t)
	seedCatalog(t, st, testTitles())
	ctx := context.Background()

	upper, _, err := st.ListTitles(ctx, TitleQuery{Query: "MATRIX"})
	require.NoError(t, err)
	lower, _, err := st.ListTitles(ctx, TitleQuery{Query: "matrix"})
	require.NoError(t, err)

	assert.Equal(t, []string{"t1", "t3"}, titleIDs(upper))
	assert.Equal(t, titleIDs(upper), titleIDs(lower))
}

func TestListTitlesYearBoundsInclusive(t *testing.T) {
	st := openTestStore(t)
	seedCatalog(t, st, testTitles())
	ctx := context.Background()

	year := 1999
	got, total, err := st.ListTitles(ctx, TitleQuery{MinYear: &year, MaxYear: &year})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1999), got[0].Released)
}

func TestListTitlesEmptyGenresMatchesAll(t *testing.T) {
	st := openTestStore(t)
	seedCatalog(t, st, testTitles())
	ctx := context.Background()

	all, total, err := st.ListTitles(ctx, TitleQuery{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, all, 5)

	scifi, total, err := st.ListTitles(ctx, TitleQuery{Genres: []string{"Sci-Fi"}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"t1", "t3"}, titleIDs(scifi))
}

func TestListTitlesStablePagination(t *testing.T) {
	st := openTestStore(t)
	seedCatalog(t, st, testTitles())
	ctx := context.Background()

	var seen []string
	for offset := 0; offset < 5; offset += 2 {
		page, total, err := st.ListTitles(ctx, TitleQuery{Limit: 2, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		seen = append(seen, titleIDs(page)...)
	}

	// No title skipped or duplicated across sequential pages.
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5"}, seen)
}

func TestInsertRelationIdempotent(t *testing.T) {
	st := openTestStore(t)
	seedCatalog(t, st, testTitles())
	ctx := context.Background()

	require.NoError(t, st.InsertRelation(ctx, "u1", "t1", KindFavorite))
	require.NoError(t, st.InsertRelation(ctx, "u1", "t1", KindFavorite))

	rels, err := st.ListRelations(ctx, "u1", KindFavorite, 0, 0)
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func TestDeleteRelationIdempotent(t *testing.T) {
	st := openTestStore(t)
	seedCatalog(t, st, testTitles())
	ctx := context.Background()

	require.NoError(t, st.InsertRelation(ctx, "u1", "t1", KindFavorite))
	require.NoError(t, st.DeleteRelation(ctx, "u1", "t1", KindFavorite))
	// Deleting the already-absent relation is still a success.
	require.NoError(t, st.DeleteRelation(ctx, "u1", "t1", KindFavorite))

	has, err := st.HasRelation(ctx, "u1", "t1", KindFavorite)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRelationKindsAreIndependent(t *testing.T) {
	st := openTestStore(t)
	seedCatalog(t, st, testTitles())
	ctx := context.Background()

	require.NoError(t, st.InsertRelation(ctx, "u1", "t1", KindFavorite))
	require.NoError(t, st.InsertRelation(ctx, "u1", "t1", KindWatchLater))
	require.NoError(t, st.DeleteRelation(ctx, "u1", "t1", KindFavorite))

	favs, err := st.RelationIDs(ctx, "u1", KindFavorite)
	require.NoError(t, err)
	later, err := st.RelationIDs(ctx, "u1", KindWatchLater)
	require.NoError(t, err)

	assert.Empty(t, favs)
	assert.True(t, later["t1"])
}

func TestRelationsScopedToPrincipal(t *testing.T) {
	st := openTestStore(t)
	seedCatalog(t, st, testTitles())
	ctx := context.Background()

	require.NoError(t, st.InsertRelation(ctx, "u1", "t1", KindFavorite))
	require.NoError(t, st.InsertRelation(ctx, "u2", "t2", KindFavorite))

	favs, err := st.RelationIDs(ctx, "u1", KindFavorite)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"t1": true}, favs)
}

func TestActivities(t *testing.T) {
	st := openTestStore(t)
	seedCatalog(t, st, testTitles())
	ctx := context.Background()

	require.NoError(t, st.InsertActivity(ctx, "u1", "t1", KindFavorite, ActionAdded))
	require.NoError(t, st.InsertActivity(ctx, "u1", "t1", KindFavorite, ActionRemoved))
	require.NoError(t, st.InsertActivity(ctx, "u2", "t2", KindWatchLater, ActionAdded))

	acts, err := st.ListActivities(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	// Newest first.
	assert.Equal(t, ActionRemoved, acts[0].Action)
	assert.Equal(t, ActionAdded, acts[1].Action)
}

func TestListGenres(t *testing.T) {
	st := openTestStore(t)
	seedCatalog(t, st, testTitles())

	genres, err := st.ListGenres(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Action", "Horror", "Romance", "Sci-Fi"}, genres)
}
