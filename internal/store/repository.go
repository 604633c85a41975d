package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"DailyBitesserver/internal/domain"
)

var ErrAtomicUnsupported = errors.New("store does not support atomic commits")

// Repository translates raw user documents into typed relationship views and
// owns the single-document write of a relationship field. It never retries;
// retry policy belongs to the caller.
type Repository struct {
	docs DocumentStore
}

func NewRepository(docs DocumentStore) *Repository {
	return &Repository{docs: docs}
}

func (r *Repository) Documents() DocumentStore { return r.docs }

func (r *Repository) LoadDocument(ctx context.Context, uid string) (domain.UserDocument, error) {
	if strings.TrimSpace(uid) == "" {
		return domain.UserDocument{}, domain.NewValidationError(map[string]string{"uid": "required"})
	}
	doc, err := r.docs.GetDocument(ctx, uid)
	if err != nil {
		return domain.UserDocument{}, err
	}
	if doc.UID == "" {
		doc.UID = uid
	}
	return doc, nil
}

func (r *Repository) Load(ctx context.Context, uid string) (domain.Relations, error) {
	doc, err := r.LoadDocument(ctx, uid)
	if err != nil {
		return domain.Relations{}, err
	}
	return doc.Relations(), nil
}

// LoadPair reads both documents concurrently.
func (r *Repository) LoadPair(ctx context.Context, a, b string) (domain.Relations, domain.Relations, error) {
	var ra, rb domain.Relations
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ra, err = r.Load(gctx, a)
		return err
	})
	g.Go(func() error {
		var err error
		rb, err = r.Load(gctx, b)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Relations{}, domain.Relations{}, err
	}
	return ra, rb, nil
}

func (r *Repository) GetFriends(ctx context.Context, uid string) (domain.UIDSet, error) {
	rel, err := r.Load(ctx, uid)
	if err != nil {
		return nil, err
	}
	return rel.Friends, nil
}

func (r *Repository) GetPendingRequests(ctx context.Context, uid string) (domain.UIDSet, error) {
	rel, err := r.Load(ctx, uid)
	if err != nil {
		return nil, err
	}
	return rel.Requests, nil
}

// AreFriends answers from a's document only.
func (r *Repository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	friends, err := r.GetFriends(ctx, a)
	if err != nil {
		return false, err
	}
	return friends.Has(b), nil
}

// ApplySetField writes the entire set to the named relationship field and
// returns the new document version.
func (r *Repository) ApplySetField(ctx context.Context, uid, field string, set domain.UIDSet, expectedVersion string) (string, error) {
	doc := domain.UserDocument{UID: uid}
	switch field {
	case domain.FieldFriends:
		doc.Friends = set.Sorted()
	case domain.FieldFriendRequests:
		doc.FriendRequests = set.Sorted()
	default:
		return "", domain.NewValidationError(map[string]string{"field": fmt.Sprintf("unknown relationship field %q", field)})
	}

	version, err := r.docs.PatchDocument(ctx, uid, []string{field}, doc, expectedVersion)
	if err != nil {
		return "", fmt.Errorf("apply %s on %s: %w", field, uid, err)
	}
	return version, nil
}

// Atomic reports whether the underlying store can commit multi-document mutations.
func (r *Repository) Atomic() bool {
	_, ok := r.docs.(Committer)
	return ok
}

func (r *Repository) Commit(ctx context.Context, muts []SetMutation) error {
	c, ok := r.docs.(Committer)
	if !ok {
		return ErrAtomicUnsupported
	}
	if err := c.CommitSetMutations(ctx, muts); err != nil {
		return fmt.Errorf("commit %d mutations: %w", len(muts), err)
	}
	return nil
}
