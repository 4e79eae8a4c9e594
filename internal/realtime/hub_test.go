package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/movielist/internal/model"
)

var alice = model.Owner{Namespace: "test", ID: "alice"}

func recv(t *testing.T, sub *Subscription) Change {
	t.Helper()
	select {
	case ch, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return ch
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
		return Change{}
	}
}

func requireNothing(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ch := <-sub.C:
		t.Fatalf("unexpected change %+v", ch)
	default:
	}
}

func TestHubDocumentAndCollection(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()

	doc, err := hub.SubscribeDocument(alice, "L1")
	require.NoError(t, err)
	defer doc.Unsubscribe()
	coll, err := hub.SubscribeCollection(alice)
	require.NoError(t, err)
	defer coll.Unsubscribe()

	require.NoError(t, hub.Publish(ctx, Change{Namespace: "test", OwnerID: "alice", ListID: "L2", Version: 1}))
	requireNothing(t, doc)
	require.Equal(t, "L2", recv(t, coll).ListID)

	require.NoError(t, hub.Publish(ctx, Change{Namespace: "test", OwnerID: "alice", ListID: "L1", Version: 2}))
	require.Equal(t, int64(2), recv(t, doc).Version)
	require.Equal(t, "L1", recv(t, coll).ListID)

	require.NoError(t, hub.Publish(ctx, Change{Namespace: "test", OwnerID: "bob", ListID: "L1", Version: 3}))
	requireNothing(t, doc)
	requireNothing(t, coll)
}

func TestHubLatestWins(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()

	sub, err := hub.SubscribeDocument(alice, "L1")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	for v := int64(1); v <= 5; v++ {
		require.NoError(t, hub.Publish(ctx, Change{Namespace: "test", OwnerID: "alice", ListID: "L1", Version: v}))
	}
	require.Equal(t, int64(5), recv(t, sub).Version)
	requireNothing(t, sub)
}

func TestHubKeepsNewestPendingVersion(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()

	sub, err := hub.SubscribeDocument(alice, "L1")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// v2 先于 v1 发布
	require.NoError(t, hub.Publish(ctx, Change{Namespace: "test", OwnerID: "alice", ListID: "L1", Version: 2}))
	require.NoError(t, hub.Publish(ctx, Change{Namespace: "test", OwnerID: "alice", ListID: "L1", Version: 1}))
	require.Equal(t, int64(2), recv(t, sub).Version)
	requireNothing(t, sub)

	require.NoError(t, hub.Publish(ctx, Change{Namespace: "test", OwnerID: "alice", ListID: "L1", Deleted: true}))
	require.NoError(t, hub.Publish(ctx, Change{Namespace: "test", OwnerID: "alice", ListID: "L1", Version: 3}))
	require.True(t, recv(t, sub).Deleted)
}

func TestSupersedes(t *testing.T) {
	v1 := Change{ListID: "L1", Version: 1}
	v2 := Change{ListID: "L1", Version: 2}
	gone := Change{ListID: "L1", Deleted: true}

	require.True(t, supersedes(v2, v1))
	require.False(t, supersedes(v1, v2))
	require.True(t, supersedes(gone, v2))
	require.False(t, supersedes(v2, gone))
	require.True(t, supersedes(Change{ListID: "L2"}, v2))
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub, err := hub.SubscribeCollection(alice)
	require.NoError(t, err)
	require.Equal(t, 1, hub.Subscribers())

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.Equal(t, 0, hub.Subscribers())

	_, ok := <-sub.C
	require.False(t, ok)

	require.NoError(t, hub.Publish(context.Background(), Change{Namespace: "test", OwnerID: "alice", ListID: "L1"}))
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	sub, err := hub.SubscribeCollection(alice)
	require.NoError(t, err)

	hub.Close()
	_, ok := <-sub.C
	require.False(t, ok)
	sub.Unsubscribe()

	_, err = hub.SubscribeCollection(alice)
	require.ErrorIs(t, err, ErrHubClosed)
	require.ErrorIs(t, hub.Publish(context.Background(), Change{}), ErrHubClosed)
}

func TestHubConcurrentPublish(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()

	sub, err := hub.SubscribeCollection(alice)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = hub.Publish(ctx, Change{Namespace: "test", OwnerID: "alice", ListID: "L", Version: int64(i)})
		}(i)
	}
	wg.Wait()

	recv(t, sub)
	sub.Unsubscribe()
}

func TestDecodeChange(t *testing.T) {
	change, err := decodeChange(`{"ns":"test","owner":"alice","list":"L1","version":4,"deleted":true}`)
	require.NoError(t, err)
	require.Equal(t, Change{Namespace: "test", OwnerID: "alice", ListID: "L1", Version: 4, Deleted: true}, change)
	require.Equal(t, alice, change.Owner())

	_, err = decodeChange(`{"ns":"test"}`)
	require.Error(t, err)
	_, err = decodeChange(`not json`)
	require.Error(t, err)
}
