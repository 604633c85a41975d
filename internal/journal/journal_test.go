package journal

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DailyBitesserver/internal/domain"
)

func acceptSteps() []domain.Step {
	return []domain.Step{
		{Name: "add_friend_to_accepter", UID: "U2", Field: domain.FieldFriends, Member: "U1", Add: true, Status: domain.StepPending},
		{Name: "add_friend_to_requester", UID: "U1", Field: domain.FieldFriends, Member: "U2", Add: true, Status: domain.StepPending},
	}
}

func TestKeyIsDeterministicAndOrdered(t *testing.T) {
	k1 := Key(domain.OpAcceptRequest, "U2", "U1")
	assert.Equal(t, k1, Key(domain.OpAcceptRequest, "U2", "U1"))
	assert.NotEqual(t, k1, Key(domain.OpAcceptRequest, "U1", "U2"))
	assert.NotEqual(t, k1, Key(domain.OpRemoveFriend, "U2", "U1"))
	assert.Len(t, k1, 64)
}

func exerciseJournal(t *testing.T, j Journal) {
	t.Helper()
	ctx := context.Background()

	_, err := j.Get(ctx, domain.OpAcceptRequest, "U2", "U1")
	require.ErrorIs(t, err, ErrNotFound)

	rec, resumed, err := j.Begin(ctx, domain.OpAcceptRequest, "U2", "U1", acceptSteps())
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.NotEmpty(t, rec.RunID)
	assert.True(t, rec.Incomplete())

	rec.Steps[0].Status = domain.StepDone
	require.NoError(t, j.Save(ctx, rec))

	got, err := j.Get(ctx, domain.OpAcceptRequest, "U2", "U1")
	require.NoError(t, err)
	assert.Equal(t, rec.RunID, got.RunID)
	assert.Equal(t, domain.StepDone, got.Steps[0].Status)
	assert.Equal(t, domain.StepPending, got.Steps[1].Status)

	again, resumed, err := j.Begin(ctx, domain.OpAcceptRequest, "U2", "U1", acceptSteps())
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, rec.RunID, again.RunID)

	require.NoError(t, j.Complete(ctx, again))
	_, err = j.Get(ctx, domain.OpAcceptRequest, "U2", "U1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryJournal(t *testing.T) {
	exerciseJournal(t, NewMemory(time.Hour))
}

func TestMemoryJournalExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	j := NewMemory(time.Minute)
	j.Now = func() time.Time { return now }
	ctx := context.Background()

	first, _, err := j.Begin(ctx, domain.OpRemoveFriend, "U1", "U2", acceptSteps())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = j.Get(ctx, domain.OpRemoveFriend, "U1", "U2")
	assert.ErrorIs(t, err, ErrNotFound)

	second, resumed, err := j.Begin(ctx, domain.OpRemoveFriend, "U1", "U2", acceptSteps())
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRedisJournal(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseJournal(t, NewRedis(client, time.Hour))
}

func TestRedisJournalTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	j := NewRedis(client, time.Minute)
	ctx := context.Background()

	rec, _, err := j.Begin(ctx, domain.OpAcceptRequest, "U2", "U1", acceptSteps())
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+rec.Key))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+rec.Key))

	mr.FastForward(2 * time.Minute)
	_, err = j.Get(ctx, domain.OpAcceptRequest, "U2", "U1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnectFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	_ = client.Close()

	addr := mr.Addr()
	mr.Close()
	_, err = Connect(context.Background(), addr, 0)
	assert.Error(t, err)
}
