package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/store"
	"DailyBitesserver/internal/store/memory"
)

type plainDocs struct {
	store.DocumentStore
}

func newRepo(t *testing.T) (*store.Repository, *memory.Store) {
	t.Helper()
	mem := memory.New()
	ctx := context.Background()
	for _, d := range []domain.UserDocument{
		{UID: "U1", Username: "alice"},
		{UID: "U2", Username: "bob", Friends: []string{"U3"}, FriendRequests: []string{"U1"}},
		{UID: "U3", Username: "carol", Friends: []string{"U2"}},
	} {
		_, err := mem.CreateDocument(ctx, d)
		require.NoError(t, err)
	}
	return store.NewRepository(mem), mem
}

func TestRepositoryReads(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	friends, err := repo.GetFriends(ctx, "U2")
	require.NoError(t, err)
	assert.Equal(t, []string{"U3"}, friends.Sorted())

	pending, err := repo.GetPendingRequests(ctx, "U2")
	require.NoError(t, err)
	assert.True(t, pending.Has("U1"))

	ok, err := repo.AreFriends(ctx, "U3", "U2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AreFriends(ctx, "U1", "U2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.Load(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRepositoryLoadPair(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	a, b, err := repo.LoadPair(ctx, "U2", "U3")
	require.NoError(t, err)
	assert.Equal(t, "U2", a.UID)
	assert.Equal(t, "U3", b.UID)
	assert.Equal(t, domain.RelationshipFriends, domain.Status(a.View(), b.View()))

	_, _, err = repo.LoadPair(ctx, "U2", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplySetField(t *testing.T) {
	repo, mem := newRepo(t)
	ctx := context.Background()

	rel, err := repo.Load(ctx, "U1")
	require.NoError(t, err)

	v, err := repo.ApplySetField(ctx, "U1", domain.FieldFriends, rel.Friends.With("U2"), rel.Version)
	require.NoError(t, err)
	assert.NotEqual(t, rel.Version, v)

	_, err = repo.ApplySetField(ctx, "U1", domain.FieldFriends, rel.Friends, rel.Version)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = repo.ApplySetField(ctx, "U1", domain.FieldUsername, nil, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	doc, err := mem.GetDocument(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U2"}, doc.Friends)
}

func TestRepositoryCommit(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	assert.True(t, repo.Atomic())

	err := repo.Commit(ctx, []store.SetMutation{{UID: "U1", Field: domain.FieldFriendRequests, Add: []string{"U3"}}})
	require.NoError(t, err)

	pending, err := repo.GetPendingRequests(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, pending.Has("U3"))

	plain := store.NewRepository(plainDocs{DocumentStore: memory.New()})
	assert.False(t, plain.Atomic())
	assert.ErrorIs(t, plain.Commit(ctx, nil), store.ErrAtomicUnsupported)
}
