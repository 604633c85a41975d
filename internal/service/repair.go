package service

import (
	"context"
	"errors"
	"log/slog"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/journal"
)

// Repair restores the pair invariants between a and b:
//
//   - a request pending between friends is removed;
//   - a one-sided friendship with a pending request, or with an interrupted
//     accept on record, is completed as an accept;
//   - any other one-sided friendship is completed as a removal;
//   - mutual requests become a friendship;
//   - self references are dropped.
func (s *FriendsService) Repair(ctx context.Context, a, b string) (domain.OpResult, error) {
	if err := validatePair(a, b); err != nil {
		return failed(domain.OpRepair), err
	}

	ra, rb, err := s.Repo.LoadPair(ctx, a, b)
	if err != nil {
		return failed(domain.OpRepair), err
	}

	steps := s.repairSteps(ctx, ra, rb)
	if len(steps) == 0 {
		return succeeded(domain.OpRepair, domain.Status(ra.View(), rb.View())), nil
	}

	res, err := s.run(ctx, domain.OpRepair, a, b, steps)
	if err != nil {
		return res, err
	}
	s.clearInterrupted(ctx, a, b)

	if ra, rb, err = s.Repo.LoadPair(ctx, a, b); err == nil {
		res.State = domain.Status(ra.View(), rb.View())
	}
	return res, nil
}

func (s *FriendsService) repairSteps(ctx context.Context, ra, rb domain.Relations) []domain.Step {
	var steps []domain.Step
	for _, r := range []domain.Relations{ra, rb} {
		if r.Friends.Has(r.UID) {
			steps = append(steps, removeStep("remove_self_friend", r.UID, domain.FieldFriends, r.UID))
		}
		if r.Requests.Has(r.UID) {
			steps = append(steps, removeStep("remove_self_request", r.UID, domain.FieldFriendRequests, r.UID))
		}
	}

	a, b := ra.UID, rb.UID
	aHasB, bHasA := ra.Friends.Has(b), rb.Friends.Has(a)
	aPending, bPending := ra.Requests.Has(b), rb.Requests.Has(a)

	switch {
	case aHasB && bHasA:
	case aHasB || bHasA:
		holder, other := a, b
		if bHasA {
			holder, other = b, a
		}
		if !aPending && !bPending && !s.acceptInterrupted(ctx, a, b) {
			return append(steps, removeStep("complete_remove", holder, domain.FieldFriends, other))
		}
		steps = append(steps, addStep("complete_accept", other, domain.FieldFriends, holder))
	case aPending && bPending:
		steps = append(steps,
			addStep("collapse_add_friend", a, domain.FieldFriends, b),
			addStep("collapse_add_friend", b, domain.FieldFriends, a),
		)
	default:
		return steps
	}

	if aPending {
		steps = append(steps, removeStep("remove_stale_request", a, domain.FieldFriendRequests, b))
	}
	if bPending {
		steps = append(steps, removeStep("remove_stale_request", b, domain.FieldFriendRequests, a))
	}
	return steps
}

// acceptInterrupted reports whether the journal holds an incomplete accept for
// the pair that is newer than any incomplete removal of it.
func (s *FriendsService) acceptInterrupted(ctx context.Context, a, b string) bool {
	accept, ok := s.latestIncomplete(ctx, domain.OpAcceptRequest, a, b)
	if !ok {
		return false
	}
	remove, ok := s.latestIncomplete(ctx, domain.OpRemoveFriend, a, b)
	return !ok || remove.UpdatedAt.Before(accept.UpdatedAt)
}

// latestIncomplete returns the most recently updated incomplete record of op
// for the pair in either order.
func (s *FriendsService) latestIncomplete(ctx context.Context, op domain.Operation, a, b string) (journal.Record, bool) {
	var (
		latest journal.Record
		found  bool
	)
	if s.Journal == nil {
		return latest, false
	}
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		rec, err := s.Journal.Get(ctx, op, pair[0], pair[1])
		if err != nil {
			if !errors.Is(err, journal.ErrNotFound) {
				s.logger().Warn("journal lookup failed", slog.String("op", string(op)), slog.Any("err", err))
			}
			continue
		}
		if rec.Incomplete() && (!found || rec.UpdatedAt.After(latest.UpdatedAt)) {
			latest, found = rec, true
		}
	}
	return latest, found
}

// clearInterrupted drops the records of interrupted accepts and removals on
// the pair once an operation has converged it.
func (s *FriendsService) clearInterrupted(ctx context.Context, a, b string) {
	if s.Journal == nil {
		return
	}
	for _, op := range []domain.Operation{domain.OpAcceptRequest, domain.OpRemoveFriend} {
		for _, pair := range [][2]string{{a, b}, {b, a}} {
			rec, err := s.Journal.Get(ctx, op, pair[0], pair[1])
			if err != nil {
				continue
			}
			if err := s.Journal.Complete(ctx, rec); err != nil {
				s.logger().Warn("journal complete failed", slog.String("op", string(op)), slog.Any("err", err))
			}
		}
	}
}

func needsHeal(vs []domain.Violation) bool {
	for _, v := range vs {
		if v.Kind != domain.ViolationMutualRequests {
			return true
		}
	}
	return false
}

// heal runs Repair and re-reads the pair. A failed repair is logged, not
// returned; the caller proceeds with whatever state the documents now hold.
func (s *FriendsService) heal(ctx context.Context, a, b string, vs []domain.Violation) (domain.Relations, domain.Relations, error) {
	res, err := s.Repair(ctx, a, b)
	if err != nil {
		s.logger().Warn("relationship repair failed",
			slog.String("a", a),
			slog.String("b", b),
			slog.Int("violations", len(vs)),
			slog.Any("done", res.CompletedSteps()),
			slog.Any("err", err),
		)
	}
	return s.Repo.LoadPair(ctx, a, b)
}
