package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/repository"
	"github.com/user/movielist/internal/testutil"
)

func TestMovieListCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(t)
	owner := testutil.NewOwner()

	created, err := repos.MovieList.Create(ctx, owner, "周末", []model.MovieEntry{
		{Title: "Alien", URL: "http://a"},
		{Title: "Heat"},
	})
	require.NoError(t, err)
	require.Len(t, created.ID, 26)
	require.Equal(t, int64(1), created.Version)

	got, err := repos.MovieList.Get(ctx, owner, created.ID)
	require.NoError(t, err)
	require.Equal(t, "周末", got.Name)
	require.Equal(t, []string{"Alien", "Heat"}, testutil.Titles(got))
	require.Equal(t, "http://a", got.Movies[0].URL)

	other := testutil.NewOwner()
	_, err = repos.MovieList.Get(ctx, other, created.ID)
	require.ErrorIs(t, err, repository.ErrListNotFound)
}

func TestMovieListCreateRejectsEmptyTitle(t *testing.T) {
	repos := testutil.NewRepos(t)

	_, err := repos.MovieList.Create(context.Background(), testutil.NewOwner(), "x", []model.MovieEntry{{Title: ""}})
	require.ErrorIs(t, err, repository.ErrEmptyTitle)
}

func TestMovieListEmptyMoviesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(t)
	owner := testutil.NewOwner()

	created, err := repos.MovieList.Create(ctx, owner, "空", nil)
	require.NoError(t, err)

	got, err := repos.MovieList.Get(ctx, owner, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Movies)
	require.Empty(t, got.Movies)
}

func TestMovieListListByOwner(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(t)
	owner := testutil.NewOwner()

	first := testutil.SeedList(t, repos, owner, "one", "A")
	second := testutil.SeedList(t, repos, owner, "two", "B")
	testutil.SeedList(t, repos, testutil.NewOwner(), "other", "C")

	lists, err := repos.MovieList.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	require.Equal(t, first.ID, lists[0].ID)
	require.Equal(t, second.ID, lists[1].ID)

	count, err := repos.MovieList.CountByOwner(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestMovieListArrayUnionKeepsDuplicates(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(t)
	owner := testutil.NewOwner()
	list := testutil.SeedList(t, repos, owner, "l", "A")

	_, err := repos.MovieList.ArrayUnion(ctx, owner, list.ID, model.MovieEntry{Title: "B"})
	require.NoError(t, err)
	updated, err := repos.MovieList.ArrayUnion(ctx, owner, list.ID, model.MovieEntry{Title: "B"})
	require.NoError(t, err)

	require.Equal(t, []string{"A", "B", "B"}, testutil.Titles(updated))
	require.Equal(t, int64(3), updated.Version)
}

func TestMovieListArrayUnionConcurrent(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(t)
	owner := testutil.NewOwner()
	list := testutil.SeedList(t, repos, owner, "l")

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repos.MovieList.ArrayUnion(ctx, owner, list.ID, model.MovieEntry{Title: fmt.Sprintf("M%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repos.MovieList.Get(ctx, owner, list.ID)
	require.NoError(t, err)
	require.Len(t, got.Movies, writers)
	require.Equal(t, int64(1+writers), got.Version)
}

func TestMovieListArrayRemoveExactMatch(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(t)
	owner := testutil.NewOwner()

	list, err := repos.MovieList.Create(ctx, owner, "l", []model.MovieEntry{
		{Title: "X", Note: "hi"},
		{Title: "Y"},
	})
	require.NoError(t, err)

	after, removed, err := repos.MovieList.ArrayRemove(ctx, owner, list.ID, model.MovieEntry{Title: "X"})
	require.NoError(t, err)
	require.Zero(t, removed)
	require.Equal(t, list.Movies, after.Movies)
	require.Equal(t, int64(1), after.Version)

	after, removed, err = repos.MovieList.ArrayRemove(ctx, owner, list.ID, model.MovieEntry{Title: "X", Note: "hi"})
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, []string{"Y"}, testutil.Titles(after))
	require.Equal(t, int64(2), after.Version)
}

func TestMovieListUpdate(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(t)
	owner := testutil.NewOwner()
	list := testutil.SeedList(t, repos, owner, "l", "A")

	_, changed, err := repos.MovieList.Update(ctx, owner, list.ID, func(l *model.MovieList) bool {
		l.Movies[0].Note = "好看"
		return true
	})
	require.NoError(t, err)
	require.True(t, changed)

	_, changed, err = repos.MovieList.Update(ctx, owner, list.ID, func(l *model.MovieList) bool {
		l.Movies[0].Title = ""
		return true
	})
	require.ErrorIs(t, err, repository.ErrEmptyTitle)
	require.False(t, changed)

	got, err := repos.MovieList.Get(ctx, owner, list.ID)
	require.NoError(t, err)
	require.Equal(t, "A", got.Movies[0].Title)
	require.Equal(t, "好看", got.Movies[0].Note)
}

func TestMovieListDelete(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(t)
	owner := testutil.NewOwner()
	list := testutil.SeedList(t, repos, owner, "l", "A", "B")

	require.NoError(t, repos.MovieList.Delete(ctx, owner, list.ID))
	require.ErrorIs(t, repos.MovieList.Delete(ctx, owner, list.ID), repository.ErrListNotFound)

	_, err := repos.MovieList.ArrayUnion(ctx, owner, list.ID, model.MovieEntry{Title: "D"})
	require.ErrorIs(t, err, repository.ErrListNotFound)
}
