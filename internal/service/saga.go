package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/journal"
	"DailyBitesserver/internal/store"
)

const (
	defaultWriteMaxAttempts = 5
	defaultWriteBackoff     = 25 * time.Millisecond
	defaultWriteMaxBackoff  = time.Second
)

func addStep(name, uid, field, member string) domain.Step {
	return domain.Step{Name: name, UID: uid, Field: field, Member: member, Add: true, Status: domain.StepPending}
}

func removeStep(name, uid, field, member string) domain.Step {
	return domain.Step{Name: name, UID: uid, Field: field, Member: member, Status: domain.StepPending}
}

func (s *FriendsService) logger() *slog.Logger {
	return loggerOr(s.Logger)
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func (s *FriendsService) maxAttempts() int {
	if s.WriteMaxAttempts > 0 {
		return s.WriteMaxAttempts
	}
	return defaultWriteMaxAttempts
}

func (s *FriendsService) backoff(attempt int) time.Duration {
	base := s.WriteBackoff
	if base <= 0 {
		base = defaultWriteBackoff
	}
	ceiling := s.WriteMaxBackoff
	if ceiling <= 0 {
		ceiling = defaultWriteMaxBackoff
	}
	d := time.Duration(math.Pow(2, float64(attempt-1))) * base
	if d > ceiling {
		d = ceiling
	}
	return d
}

// applyStep performs one read-modify-write of a single set field. Version
// conflicts re-read and recompute; any other error ends the step.
func (s *FriendsService) applyStep(ctx context.Context, step *domain.Step) error {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts(); attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.backoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		step.Attempts = attempt + 1

		rel, err := s.Repo.Load(ctx, step.UID)
		if err != nil {
			return err
		}
		cur := rel.Field(step.Field)
		next := cur.Without(step.Member)
		if step.Add {
			next = cur.With(step.Member)
		}
		if next.Equal(cur) {
			step.Status = domain.StepSkipped
			return nil
		}

		_, err = s.Repo.ApplySetField(ctx, step.UID, step.Field, next, rel.Version)
		if err == nil {
			step.Status = domain.StepDone
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		lastErr = err
		s.logger().Debug("relationship write conflict",
			slog.String("step", step.Name),
			slog.String("uid", step.UID),
			slog.Int("attempt", step.Attempts),
		)
	}
	return fmt.Errorf("%s after %d attempts: %w", step.Name, step.Attempts, lastErr)
}

// run executes steps in order and classifies the result: Failure when no step
// took effect, PartialCompletion when some did, Success when all did.
func (s *FriendsService) run(ctx context.Context, op domain.Operation, a, b string, steps []domain.Step) (domain.OpResult, error) {
	res := domain.OpResult{Op: op, Steps: steps}

	var rec journal.Record
	journaled := false
	if s.Journal != nil && len(steps) > 1 {
		r, resumed, err := s.Journal.Begin(ctx, op, a, b, steps)
		if err != nil {
			s.logger().Warn("journal begin failed", slog.String("op", string(op)), slog.Any("err", err))
		} else {
			rec, journaled = r, true
			res.RunID = r.RunID
			res.Resumed = resumed
		}
	}

	var runErr error
	if s.AtomicWrites && s.Repo.Atomic() {
		res.Atomic = true
		runErr = s.commitAtomic(ctx, res.Steps)
	} else {
		runErr = s.runSteps(ctx, res.Steps, func() {
			if journaled {
				rec.Steps = res.Steps
				if err := s.Journal.Save(context.WithoutCancel(ctx), rec); err != nil {
					s.logger().Warn("journal save failed", slog.String("op", string(op)), slog.Any("err", err))
				}
			}
		})
	}

	anyDone := len(res.CompletedSteps()) > 0
	if journaled && (runErr == nil || !anyDone) {
		if err := s.Journal.Complete(context.WithoutCancel(ctx), rec); err != nil {
			s.logger().Warn("journal complete failed", slog.String("op", string(op)), slog.Any("err", err))
		}
	}

	switch {
	case runErr == nil:
		res.Outcome = domain.OutcomeSuccess
		return res, nil
	case !anyDone:
		res.Outcome = domain.OutcomeFailure
		return res, runErr
	default:
		res.Outcome = domain.OutcomePartialCompletion
		s.logger().Error("relationship operation partially completed",
			slog.String("op", string(op)),
			slog.String("a", a),
			slog.String("b", b),
			slog.Any("done", res.CompletedSteps()),
			slog.Any("err", runErr),
		)
		return res, &domain.PartialCompletionError{Op: op, Result: res, Cause: runErr}
	}
}

func (s *FriendsService) runSteps(ctx context.Context, steps []domain.Step, afterStep func()) error {
	for i := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.applyStep(ctx, &steps[i]); err != nil {
			steps[i].Status = domain.StepFailed
			steps[i].Error = err.Error()
			afterStep()
			return err
		}
		afterStep()
	}
	return nil
}

// commitAtomic issues every step as one multi-document commit.
func (s *FriendsService) commitAtomic(ctx context.Context, steps []domain.Step) error {
	muts := make([]store.SetMutation, 0, len(steps))
	for _, st := range steps {
		m := store.SetMutation{UID: st.UID, Field: st.Field}
		if st.Add {
			m.Add = []string{st.Member}
		} else {
			m.Remove = []string{st.Member}
		}
		muts = append(muts, m)
	}

	err := s.Repo.Commit(ctx, muts)
	for i := range steps {
		steps[i].Attempts = 1
		if err != nil {
			steps[i].Status = domain.StepFailed
			steps[i].Error = err.Error()
		} else {
			steps[i].Status = domain.StepDone
		}
	}
	return err
}
