package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/movielist/internal/apperr"
	"github.com/user/movielist/internal/model"
)

var testOwner = model.Owner{Namespace: "test", ID: "u1"}

func resolved(t *testing.T, lists int64) *Session {
	t.Helper()
	sess := NewSession()
	sess.BeginAuth()
	require.NoError(t, sess.Resolve(testOwner, lists))
	return sess
}

func TestSessionResolve(t *testing.T) {
	sess := NewSession()
	require.Equal(t, ViewUnauthenticated, sess.View)
	require.False(t, sess.Authenticated())

	err := sess.Resolve(testOwner, 0)
	require.True(t, apperr.Is(err, apperr.CodeInvalidState))

	sess.BeginAuth()
	require.Equal(t, ViewAuthenticating, sess.View)
	require.NoError(t, sess.Resolve(testOwner, 0))
	require.Equal(t, ViewNoLists, sess.View)
	require.Equal(t, testOwner, sess.Owner())

	require.Equal(t, ViewHasLists, resolved(t, 3).View)
}

func TestSessionResolveRejectsIncompleteOwner(t *testing.T) {
	for _, owner := range []model.Owner{{Namespace: "test"}, {ID: "u1"}, {}} {
		sess := NewSession()
		sess.BeginAuth()
		err := sess.Resolve(owner, 1)
		require.True(t, apperr.Is(err, apperr.CodeUnauthorized), "%+v", owner)
		require.Equal(t, ViewAuthenticating, sess.View)
		require.False(t, sess.Authenticated())
	}
}

func TestSessionImportSelectsNewList(t *testing.T) {
	sess := resolved(t, 0)

	require.NoError(t, sess.Imported("L1"))
	require.Equal(t, ViewHasLists, sess.View)
	require.Equal(t, "L1", sess.SelectedListID)

	// 详情页中导入会先离开详情页
	require.NoError(t, sess.Open("L1"))
	require.NoError(t, sess.Imported("L2"))
	require.Equal(t, ViewHasLists, sess.View)
	require.Empty(t, sess.OpenListID)
	require.Equal(t, "L2", sess.SelectedListID)

	unauth := NewSession()
	require.True(t, apperr.Is(unauth.Imported("L1"), apperr.CodeInvalidState))
}

func TestSessionOpenBack(t *testing.T) {
	sess := resolved(t, 1)

	require.True(t, apperr.Is(sess.Back(), apperr.CodeInvalidState))
	require.NoError(t, sess.Open("L1"))
	require.Equal(t, ViewListDetail, sess.View)
	require.True(t, apperr.Is(sess.Open("L2"), apperr.CodeInvalidState))

	require.NoError(t, sess.Back())
	require.Equal(t, ViewHasLists, sess.View)
	require.Empty(t, sess.OpenListID)

	noLists := resolved(t, 0)
	require.True(t, apperr.Is(noLists.Open("L1"), apperr.CodeInvalidState))
}

func TestSessionSelectClearsPickOnChange(t *testing.T) {
	sess := resolved(t, 2)
	require.NoError(t, sess.Select("L1"))
	sess.SetPick("L1", "Alien")

	require.NoError(t, sess.Select("L1"))
	require.True(t, sess.HasPick())

	require.NoError(t, sess.Select("L2"))
	require.False(t, sess.HasPick())
}

func TestSessionListRemoved(t *testing.T) {
	t.Run("open list vanishes", func(t *testing.T) {
		sess := resolved(t, 2)
		require.NoError(t, sess.Select("L1"))
		sess.SetPick("L1", "Alien")
		require.NoError(t, sess.Open("L1"))

		sess.ListRemoved("L1", 1)
		require.Equal(t, ViewHasLists, sess.View)
		require.Empty(t, sess.SelectedListID)
		require.False(t, sess.HasPick())
	})

	t.Run("last list deleted", func(t *testing.T) {
		sess := resolved(t, 1)
		require.NoError(t, sess.Select("L1"))

		sess.ListRemoved("L1", 0)
		require.Equal(t, ViewNoLists, sess.View)
	})

	t.Run("other list keeps selection", func(t *testing.T) {
		sess := resolved(t, 2)
		require.NoError(t, sess.Select("L1"))
		sess.SetPick("L1", "Alien")

		sess.ListRemoved("L2", 1)
		require.Equal(t, "L1", sess.SelectedListID)
		require.True(t, sess.HasPick())
	})
}

func TestSessionMovieRemoved(t *testing.T) {
	sess := resolved(t, 1)
	sess.SetPick("L1", "Alien")

	sess.MovieRemoved("L1", "Heat")
	require.True(t, sess.HasPick())
	sess.MovieRemoved("L2", "Alien")
	require.True(t, sess.HasPick())
	sess.MovieRemoved("L1", "Alien")
	require.False(t, sess.HasPick())
}

func TestSessionSignOutAndCredentialChange(t *testing.T) {
	sess := resolved(t, 1)
	require.NoError(t, sess.Select("L1"))
	sess.Fail("出错了")

	sess.BeginAuth()
	require.Equal(t, ViewAuthenticating, sess.View)
	require.Empty(t, sess.SelectedListID)
	require.False(t, sess.Authenticated())

	require.NoError(t, sess.Resolve(model.Owner{Namespace: "test", ID: "u2"}, 0))
	require.Equal(t, "u2", sess.OwnerID)

	sess.SignOut()
	require.Equal(t, ViewUnauthenticated, sess.View)
	require.Empty(t, sess.OwnerID)
	require.Empty(t, sess.Message)
}

func TestSessionMessageSlot(t *testing.T) {
	sess := NewSession()
	sess.Fail("first")
	sess.Fail("second")

	require.Equal(t, "second", sess.TakeMessage())
	require.Empty(t, sess.TakeMessage())
}
