// Package journal keeps the step log of multi-document relationship
// operations. A record is written when an operation starts, updated after
// each step and removed when the operation completes, so any record still
// present after its operation returned marks an interrupted run.
package journal

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"DailyBitesserver/internal/domain"
)

var ErrNotFound = errors.New("journal record not found")

const DefaultTTL = 24 * time.Hour

type Record struct {
	Key       string           `json:"key"`
	RunID     string           `json:"run_id"`
	Op        domain.Operation `json:"op"`
	A         string           `json:"a"`
	B         string           `json:"b"`
	Steps     []domain.Step    `json:"steps"`
	StartedAt time.Time        `json:"started_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Incomplete reports whether any step of the record has not taken effect.
func (r Record) Incomplete() bool {
	for _, s := range r.Steps {
		if !s.Completed() {
			return true
		}
	}
	return false
}

type Journal interface {
	// Begin stores a fresh record for (op, a, b). If an earlier record for the
	// same key is still present it is returned with resumed set and its run id
	// is kept.
	Begin(ctx context.Context, op domain.Operation, a, b string, steps []domain.Step) (rec Record, resumed bool, err error)
	Save(ctx context.Context, rec Record) error
	Complete(ctx context.Context, rec Record) error
	Get(ctx context.Context, op domain.Operation, a, b string) (Record, error)
}

// Key derives the deterministic operation key for (op, a, b).
func Key(op domain.Operation, a, b string) string {
	sum := blake2b.Sum256([]byte(strings.Join([]string{string(op), a, b}, "|")))
	return hex.EncodeToString(sum[:])
}

func newRecord(op domain.Operation, a, b string, steps []domain.Step, now time.Time) Record {
	return Record{
		Key:       Key(op, a, b),
		RunID:     uuid.NewString(),
		Op:        op,
		A:         a,
		B:         b,
		Steps:     append([]domain.Step(nil), steps...),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// resume carries the identity of an interrupted run over to a fresh record.
func resume(prev, next Record) Record {
	next.RunID = prev.RunID
	next.StartedAt = prev.StartedAt
	return next
}
