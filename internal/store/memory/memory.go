// Package memory is an in-process document store used in dev mode and tests.
// Every document carries a monotonically increasing version so conditional
// writes behave like the remote adapters.
package memory

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/store"
)

type entry struct {
	doc     domain.UserDocument
	version int64
}

type Store struct {
	mu   sync.RWMutex
	docs map[string]*entry
}

func New() *Store {
	return &Store{docs: make(map[string]*entry)}
}

var (
	_ store.DocumentStore    = (*Store)(nil)
	_ store.Committer        = (*Store)(nil)
	_ store.UsersSearchStore = (*Store)(nil)
	_ store.Pinger           = (*Store)(nil)
)

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) GetDocument(ctx context.Context, uid string) (domain.UserDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.UserDocument{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.docs[uid]
	if !ok {
		return domain.UserDocument{}, domain.ErrNotFound
	}
	return e.snapshot(), nil
}

func (s *Store) CreateDocument(ctx context.Context, doc domain.UserDocument) (domain.UserDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.UserDocument{}, err
	}
	if doc.UID == "" {
		return domain.UserDocument{}, domain.NewValidationError(map[string]string{"uid": "required"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.UID]; ok {
		return domain.UserDocument{}, domain.ErrUserExists
	}
	if doc.Username != "" && s.usernameTakenLocked(doc.Username) {
		return domain.UserDocument{}, domain.ErrUsernameTaken
	}

	e := &entry{doc: copyDoc(doc), version: 1}
	s.docs[doc.UID] = e
	return e.snapshot(), nil
}

func (s *Store) PatchDocument(ctx context.Context, uid string, mask []string, doc domain.UserDocument, expectedVersion string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.docs[uid]
	if !ok {
		return "", domain.ErrNotFound
	}
	if expectedVersion != "" && expectedVersion != strconv.FormatInt(e.version, 10) {
		return "", domain.ErrVersionConflict
	}

	next := e.doc
	for _, field := range mask {
		switch field {
		case domain.FieldUsername:
			next.Username = doc.Username
		case domain.FieldName:
			next.Name = doc.Name
		case domain.FieldEmail:
			next.Email = doc.Email
		case domain.FieldBio:
			next.Bio = doc.Bio
		case domain.FieldProfilePicURL:
			next.ProfilePicURL = doc.ProfilePicURL
		case domain.FieldFriends:
			next.Friends = slices.Clone(doc.Friends)
		case domain.FieldFriendRequests:
			next.FriendRequests = slices.Clone(doc.FriendRequests)
		default:
			return "", domain.NewValidationError(map[string]string{"mask": "unknown field " + field})
		}
	}

	e.doc = next
	e.version++
	return strconv.FormatInt(e.version, 10), nil
}

// CommitSetMutations applies all mutations or none. Members are added only if
// missing and removed wherever present.
func (s *Store) CommitSetMutations(ctx context.Context, muts []store.SetMutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range muts {
		if _, ok := s.docs[m.UID]; !ok {
			return domain.ErrNotFound
		}
		if m.Field != domain.FieldFriends && m.Field != domain.FieldFriendRequests {
			return domain.NewValidationError(map[string]string{"field": "unknown field " + m.Field})
		}
	}

	touched := map[string]bool{}
	for _, m := range muts {
		e := s.docs[m.UID]
		cur := e.doc.Relations().Field(m.Field)
		for _, id := range m.Add {
			cur = cur.With(id)
		}
		for _, id := range m.Remove {
			cur = cur.Without(id)
		}
		if m.Field == domain.FieldFriends {
			e.doc.Friends = cur.Sorted()
		} else {
			e.doc.FriendRequests = cur.Sorted()
		}
		touched[m.UID] = true
	}
	for uid := range touched {
		s.docs[uid].version++
	}
	return nil
}

// SearchUsers matches a case-insensitive username prefix.
func (s *Store) SearchUsers(ctx context.Context, prefix string, limit int, excludeUID string) ([]domain.UserDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []domain.UserDocument{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.UserDocument{}
	for uid, e := range s.docs {
		if uid == excludeUID {
			continue
		}
		if strings.HasPrefix(strings.ToLower(e.doc.Username), prefix) {
			out = append(out, e.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usernameTakenLocked(username), nil
}

func (s *Store) usernameTakenLocked(username string) bool {
	for _, e := range s.docs {
		if strings.EqualFold(e.doc.Username, username) {
			return true
		}
	}
	return false
}

func (e *entry) snapshot() domain.UserDocument {
	d := copyDoc(e.doc)
	d.Version = strconv.FormatInt(e.version, 10)
	return d
}

func copyDoc(d domain.UserDocument) domain.UserDocument {
	d.Friends = slices.Clone(d.Friends)
	d.FriendRequests = slices.Clone(d.FriendRequests)
	d.Version = ""
	return d
}
