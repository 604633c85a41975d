package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/journal"
	"DailyBitesserver/internal/store"
)

// FriendsService applies relationship mutations as ordered single-document
// steps and derives relationship state from freshly read documents.
type FriendsService struct {
	Repo    *store.Repository
	Journal journal.Journal
	Logger  *slog.Logger

	WriteMaxAttempts int
	WriteBackoff     time.Duration
	WriteMaxBackoff  time.Duration
	// AtomicWrites issues multi-step operations as a single commit when the
	// store supports it.
	AtomicWrites bool
	HealOnRead   bool
}

const summaryFetchConcurrency = 8

func validatePair(actor, target string) error {
	if strings.TrimSpace(actor) == "" {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(target) == "" {
		return domain.NewValidationError(map[string]string{"uid": "required"})
	}
	if actor == target {
		return domain.NewValidationError(map[string]string{"uid": "cannot target yourself"})
	}
	return nil
}

func failed(op domain.Operation) domain.OpResult {
	return domain.OpResult{Op: op, Outcome: domain.OutcomeFailure, Steps: []domain.Step{}}
}

func succeeded(op domain.Operation, state domain.RelationshipState) domain.OpResult {
	return domain.OpResult{Op: op, Outcome: domain.OutcomeSuccess, Steps: []domain.Step{}, State: state}
}

func (s *FriendsService) SendRequest(ctx context.Context, from, to string) (domain.OpResult, error) {
	if err := validatePair(from, to); err != nil {
		return failed(domain.OpSendRequest), err
	}

	fromRel, toRel, err := s.Repo.LoadPair(ctx, from, to)
	if err != nil {
		return failed(domain.OpSendRequest), err
	}
	if vs := domain.Inspect(fromRel.View(), toRel.View()); needsHeal(vs) {
		fromRel, toRel, err = s.heal(ctx, from, to, vs)
		if err != nil {
			return failed(domain.OpSendRequest), err
		}
	}

	switch {
	case fromRel.Friends.Has(to):
		res := failed(domain.OpSendRequest)
		res.State = domain.RelationshipFriends
		return res, domain.ErrFriendshipExists
	case fromRel.Requests.Has(to):
		// The recipient already asked; sending back accepts.
		return s.acceptSaga(ctx, from, to, toRel)
	}

	res, err := s.run(ctx, domain.OpSendRequest, from, to, []domain.Step{
		addStep("add_request_to_recipient", to, domain.FieldFriendRequests, from),
	})
	if err != nil {
		return res, err
	}
	res.State = domain.RelationshipRequestSent

	// A counter-request that landed while ours was written collapses the pair.
	fromRel, err = s.Repo.Load(ctx, from)
	if err != nil {
		return res, nil
	}
	if fromRel.Requests.Has(to) {
		toRel, err = s.Repo.Load(ctx, to)
		if err != nil {
			return res, nil
		}
		s.logger().Info("mutual friend requests collapsed", slog.String("a", from), slog.String("b", to))
		return s.acceptSaga(ctx, from, to, toRel)
	}
	return res, nil
}

func (s *FriendsService) AcceptRequest(ctx context.Context, accepter, requester string) (domain.OpResult, error) {
	if err := validatePair(accepter, requester); err != nil {
		return failed(domain.OpAcceptRequest), err
	}

	accRel, reqRel, err := s.Repo.LoadPair(ctx, accepter, requester)
	if err != nil {
		return failed(domain.OpAcceptRequest), err
	}

	mutual := accRel.Friends.Has(requester) && reqRel.Friends.Has(accepter)
	pending := accRel.Requests.Has(requester) || reqRel.Requests.Has(accepter)
	switch {
	case mutual && !pending:
		return succeeded(domain.OpAcceptRequest, domain.RelationshipFriends), nil
	case !mutual && !accRel.Requests.Has(requester):
		return failed(domain.OpAcceptRequest), domain.ErrRequestNotFound
	}
	return s.acceptSaga(ctx, accepter, requester, reqRel)
}

// acceptSaga runs the accept steps. The fourth step only exists when the
// requester holds a counter-request from the accepter.
func (s *FriendsService) acceptSaga(ctx context.Context, accepter, requester string, reqRel domain.Relations) (domain.OpResult, error) {
	steps := []domain.Step{
		addStep("add_friend_to_accepter", accepter, domain.FieldFriends, requester),
		addStep("add_friend_to_requester", requester, domain.FieldFriends, accepter),
		removeStep("remove_request_from_accepter", accepter, domain.FieldFriendRequests, requester),
	}
	if reqRel.Requests.Has(accepter) {
		steps = append(steps, removeStep("remove_request_from_requester", requester, domain.FieldFriendRequests, accepter))
	}

	res, err := s.run(ctx, domain.OpAcceptRequest, accepter, requester, steps)
	if err == nil {
		s.clearInterrupted(ctx, accepter, requester)
		res.State = domain.RelationshipFriends
		return res, nil
	}

	var pe *domain.PartialCompletionError
	if errors.As(err, &pe) && res.Steps[0].Completed() && res.Steps[1].Completed() {
		// Friends both ways; only request cleanup is outstanding.
		res.State = domain.RelationshipFriends
		res.CleanupPending = true
		pe.Result = res
	}
	return res, err
}

func (s *FriendsService) RejectRequest(ctx context.Context, rejecter, requester string) (domain.OpResult, error) {
	return s.dropRequest(ctx, domain.OpRejectRequest, "remove_request_from_rejecter", rejecter, requester)
}

// CancelRequest withdraws the request from sent to recipient.
func (s *FriendsService) CancelRequest(ctx context.Context, from, recipient string) (domain.OpResult, error) {
	return s.dropRequest(ctx, domain.OpCancelRequest, "remove_request_from_recipient", recipient, from)
}

func (s *FriendsService) dropRequest(ctx context.Context, op domain.Operation, stepName, holder, requester string) (domain.OpResult, error) {
	if err := validatePair(holder, requester); err != nil {
		return failed(op), err
	}
	rel, err := s.Repo.Load(ctx, holder)
	if err != nil {
		return failed(op), err
	}

	res, err := s.run(ctx, op, holder, requester, []domain.Step{
		removeStep(stepName, holder, domain.FieldFriendRequests, requester),
	})
	if err != nil {
		return res, err
	}
	// Dropping a stale request between friends leaves the friendship intact.
	res.State = domain.RelationshipNone
	if rel.Friends.Has(requester) {
		res.State = domain.RelationshipFriends
	}
	return res, nil
}

func (s *FriendsService) RemoveFriend(ctx context.Context, remover, removed string) (domain.OpResult, error) {
	if err := validatePair(remover, removed); err != nil {
		return failed(domain.OpRemoveFriend), err
	}
	remRel, othRel, err := s.Repo.LoadPair(ctx, remover, removed)
	if err != nil {
		return failed(domain.OpRemoveFriend), err
	}

	// A request left behind by an interrupted accept would turn back into a
	// pending request once the friendship is gone.
	var steps []domain.Step
	if remRel.Friends.Has(removed) || othRel.Friends.Has(remover) {
		if remRel.Requests.Has(removed) {
			steps = append(steps, removeStep("remove_stale_request_from_remover", remover, domain.FieldFriendRequests, removed))
		}
		if othRel.Requests.Has(remover) {
			steps = append(steps, removeStep("remove_stale_request_from_removed", removed, domain.FieldFriendRequests, remover))
		}
	}
	steps = append(steps,
		removeStep("remove_friend_from_remover", remover, domain.FieldFriends, removed),
		removeStep("remove_friend_from_removed", removed, domain.FieldFriends, remover),
	)

	res, err := s.run(ctx, domain.OpRemoveFriend, remover, removed, steps)
	if err != nil {
		return res, err
	}
	s.clearInterrupted(ctx, remover, removed)
	res.State = domain.RelationshipNone
	return res, nil
}

// Status reports how viewer relates to subject. Violations are logged and,
// when HealOnRead is set, repaired before the state is computed.
func (s *FriendsService) Status(ctx context.Context, viewer, subject string) (domain.RelationshipReport, error) {
	report := domain.RelationshipReport{Viewer: viewer, Subject: subject, State: domain.RelationshipNone}
	if strings.TrimSpace(subject) == "" {
		return report, domain.NewValidationError(map[string]string{"uid": "required"})
	}

	vRel, sRel, err := s.Repo.LoadPair(ctx, viewer, subject)
	if err != nil {
		return report, err
	}

	report.Violations = domain.Inspect(vRel.View(), sRel.View())
	if len(report.Violations) > 0 {
		s.logViolations(viewer, subject, report.Violations)
		if s.HealOnRead && viewer != subject {
			vRel, sRel, err = s.heal(ctx, viewer, subject, report.Violations)
			if err != nil {
				return report, err
			}
			report.Healed = true
			report.Violations = domain.Inspect(vRel.View(), sRel.View())
		}
	}

	report.State = domain.Status(vRel.View(), sRel.View())
	return report, nil
}

// Overview lists the friends and incoming requests of uid. Entries whose
// document no longer exists are skipped.
func (s *FriendsService) Overview(ctx context.Context, uid string) (domain.FriendsOverview, error) {
	rel, err := s.Repo.Load(ctx, uid)
	if err != nil {
		return domain.FriendsOverview{}, err
	}

	var out domain.FriendsOverview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Friends, err = s.summaries(gctx, rel.Friends.Sorted())
		return err
	})
	g.Go(func() error {
		var err error
		out.Incoming, err = s.summaries(gctx, rel.Requests.Sorted())
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.FriendsOverview{}, err
	}
	return out, nil
}

func (s *FriendsService) FriendsOf(ctx context.Context, uid string) ([]domain.UserSummary, error) {
	friends, err := s.Repo.GetFriends(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.summaries(ctx, friends.Sorted())
}

func (s *FriendsService) summaries(ctx context.Context, uids []string) ([]domain.UserSummary, error) {
	docs := make([]*domain.UserDocument, len(uids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryFetchConcurrency)
	for i, uid := range uids {
		g.Go(func() error {
			doc, err := s.Repo.LoadDocument(gctx, uid)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					s.logger().Warn("relationship points at missing user", slog.String("uid", uid))
					return nil
				}
				return err
			}
			docs[i] = &doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.UserSummary, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, d.Summary())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

func (s *FriendsService) logViolations(viewer, subject string, vs []domain.Violation) {
	logViolations(s.logger(), viewer, subject, vs)
}

func logViolations(logger *slog.Logger, viewer, subject string, vs []domain.Violation) {
	for _, v := range vs {
		logger.Warn("relationship invariant violated",
			slog.String("viewer", viewer),
			slog.String("subject", subject),
			slog.String("violation", string(v.Kind)),
			slog.String("holder", v.Holder),
			slog.String("member", v.Member),
		)
	}
}
