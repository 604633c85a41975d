package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"DailyBitesserver/internal/domain"
)

const keyPrefix = "relsaga:"

// Redis stores journal records as JSON strings with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl, now: time.Now}
}

// Connect opens a client and verifies it answers within five seconds.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) Begin(ctx context.Context, op domain.Operation, a, b string, steps []domain.Step) (Record, bool, error) {
	rec := newRecord(op, a, b, steps, r.now())

	resumed := false
	prev, err := r.load(ctx, rec.Key)
	switch {
	case err == nil:
		rec = resume(prev, rec)
		resumed = true
	case !errors.Is(err, ErrNotFound):
		return Record{}, false, err
	}

	if err := r.store(ctx, rec); err != nil {
		return Record{}, false, err
	}
	return rec, resumed, nil
}

func (r *Redis) Save(ctx context.Context, rec Record) error {
	rec.UpdatedAt = r.now()
	return r.store(ctx, rec)
}

func (r *Redis) Complete(ctx context.Context, rec Record) error {
	if err := r.client.Del(ctx, keyPrefix+rec.Key).Err(); err != nil {
		return fmt.Errorf("journal complete: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, op domain.Operation, a, b string) (Record, error) {
	return r.load(ctx, Key(op, a, b))
}

func (r *Redis) load(ctx context.Context, key string) (Record, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("journal get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("journal decode: %w", err)
	}
	return rec, nil
}

func (r *Redis) store(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal encode: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+rec.Key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("journal set: %w", err)
	}
	return nil
}
