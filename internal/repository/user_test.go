package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/movielist/internal/model"
	"github.com/user/movielist/internal/repository"
	"github.com/user/movielist/internal/testutil"
)

func TestUserAnonymousUpgrade(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(t)

	anon, err := repos.User.CreateAnonymous(ctx)
	require.NoError(t, err)
	require.True(t, anon.IsAnonymous())
	require.Len(t, anon.UID, 36)

	upgraded, err := repos.User.Upgrade(ctx, anon.UID, "a@example.com", "alice", "secret123")
	require.NoError(t, err)
	require.Equal(t, anon.UID, upgraded.UID)
	require.Equal(t, model.RoleUser, upgraded.Role)

	found, err := repos.User.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.True(t, repos.User.CheckPassword(found, "secret123"))
	require.False(t, repos.User.CheckPassword(found, "wrong"))

	other, err := repos.User.CreateAnonymous(ctx)
	require.NoError(t, err)
	_, err = repos.User.Upgrade(ctx, other.UID, "a@example.com", "bob", "pw")
	require.ErrorIs(t, err, repository.ErrEmailTaken)

	missing, err := repos.User.FindByUID(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUserDeleteStaleAnonymous(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(t)

	idle, err := repos.User.CreateAnonymous(ctx)
	require.NoError(t, err)
	withList, err := repos.User.CreateAnonymous(ctx)
	require.NoError(t, err)
	testutil.SeedList(t, repos, model.Owner{Namespace: "test", ID: withList.UID}, "keep", "A")

	deleted, err := repos.User.DeleteStaleAnonymous(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	gone, err := repos.User.FindByUID(ctx, idle.UID)
	require.NoError(t, err)
	require.Nil(t, gone)

	kept, err := repos.User.FindByUID(ctx, withList.UID)
	require.NoError(t, err)
	require.NotNil(t, kept)
}
