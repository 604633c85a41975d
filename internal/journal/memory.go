package journal

import (
	"context"
	"sync"
	"time"

	"DailyBitesserver/internal/domain"
)

type memEntry struct {
	rec     Record
	expires time.Time
}

// Memory is a process-local journal. Records expire after TTL.
type Memory struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	records map[string]memEntry
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{TTL: ttl, Now: time.Now, records: make(map[string]memEntry)}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Memory) Begin(ctx context.Context, op domain.Operation, a, b string, steps []domain.Step) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	now := m.now()
	rec := newRecord(op, a, b, steps, now)

	m.mu.Lock()
	defer m.mu.Unlock()

	resumed := false
	if prev, ok := m.records[rec.Key]; ok && now.Before(prev.expires) {
		rec = resume(prev.rec, rec)
		resumed = true
	}
	m.records[rec.Key] = memEntry{rec: rec, expires: now.Add(m.TTL)}
	return rec, resumed, nil
}

func (m *Memory) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := m.now()
	rec.UpdatedAt = now
	rec.Steps = append([]domain.Step(nil), rec.Steps...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = memEntry{rec: rec, expires: now.Add(m.TTL)}
	return nil
}

func (m *Memory) Complete(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, rec.Key)
	return nil
}

func (m *Memory) Get(ctx context.Context, op domain.Operation, a, b string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	key := Key(op, a, b)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	if !m.now().Before(e.expires) {
		delete(m.records, key)
		return Record{}, ErrNotFound
	}
	return e.rec, nil
}
