package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/store"
)

func seed(t *testing.T, s *Store, uid, username string) domain.UserDocument {
	t.Helper()
	doc, err := s.CreateDocument(context.Background(), domain.UserDocument{UID: uid, Username: username})
	require.NoError(t, err)
	return doc
}

func TestCreateDocument(t *testing.T) {
	s := New()
	ctx := context.Background()

	doc := seed(t, s, "U1", "alice")
	assert.Equal(t, "1", doc.Version)
	assert.Empty(t, doc.Friends)

	_, err := s.CreateDocument(ctx, domain.UserDocument{UID: "U1", Username: "other"})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	_, err = s.CreateDocument(ctx, domain.UserDocument{UID: "U9", Username: "ALICE"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestPatchDocumentVersioning(t *testing.T) {
	s := New()
	ctx := context.Background()
	doc := seed(t, s, "U1", "alice")

	v2, err := s.PatchDocument(ctx, "U1", []string{domain.FieldFriends}, domain.UserDocument{Friends: []string{"U2"}}, doc.Version)
	require.NoError(t, err)
	assert.Equal(t, "2", v2)

	_, err = s.PatchDocument(ctx, "U1", []string{domain.FieldFriends}, domain.UserDocument{}, doc.Version)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	// Unconditional writes always apply.
	_, err = s.PatchDocument(ctx, "U1", []string{domain.FieldFriendRequests}, domain.UserDocument{FriendRequests: []string{"U3"}}, "")
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U2"}, got.Friends)
	assert.Equal(t, []string{"U3"}, got.FriendRequests)
	assert.Equal(t, "alice", got.Username, "fields outside the mask are untouched")

	_, err = s.PatchDocument(ctx, "missing", []string{domain.FieldFriends}, domain.UserDocument{}, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetDocumentReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "U1", "alice")
	_, err := s.PatchDocument(ctx, "U1", []string{domain.FieldFriends}, domain.UserDocument{Friends: []string{"U2"}}, "")
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, "U1")
	require.NoError(t, err)
	got.Friends[0] = "mutated"

	again, err := s.GetDocument(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U2"}, again.Friends)
}

func TestCommitSetMutationsIsAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "U1", "alice")
	seed(t, s, "U2", "bob")

	err := s.CommitSetMutations(ctx, []store.SetMutation{
		{UID: "U1", Field: domain.FieldFriends, Add: []string{"U2"}},
		{UID: "U404", Field: domain.FieldFriends, Add: []string{"U1"}},
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	u1, _ := s.GetDocument(ctx, "U1")
	assert.Empty(t, u1.Friends)

	err = s.CommitSetMutations(ctx, []store.SetMutation{
		{UID: "U1", Field: domain.FieldFriends, Add: []string{"U2"}},
		{UID: "U2", Field: domain.FieldFriends, Add: []string{"U1"}},
		{UID: "U1", Field: domain.FieldFriendRequests, Remove: []string{"U2"}},
	})
	require.NoError(t, err)

	u1, _ = s.GetDocument(ctx, "U1")
	u2, _ := s.GetDocument(ctx, "U2")
	assert.Equal(t, []string{"U2"}, u1.Friends)
	assert.Equal(t, []string{"U1"}, u2.Friends)
	assert.Equal(t, "2", u1.Version, "one version bump per commit")
}

func TestSearchUsers(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "U1", "alice")
	seed(t, s, "U2", "alfred")
	seed(t, s, "U3", "bob")

	got, err := s.SearchUsers(ctx, "AL", 10, "U1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alfred", got[0].Username)

	got, err = s.SearchUsers(ctx, "", 10, "")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.SearchUsers(ctx, "a", 1, "")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	taken, err := s.UsernameTaken(ctx, "Bob")
	require.NoError(t, err)
	assert.True(t, taken)
}
