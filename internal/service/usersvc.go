package service

import (
	"context"
	"log/slog"
	"strings"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/store"
)

const (
	defaultSearchLimit = 25
	maxSearchLimit     = 50
)

type UsersService struct {
	Store  store.UsersSearchStore
	Repo   *store.Repository
	Logger *slog.Logger
}

// Search returns users whose username starts with q, annotated with how the
// viewer relates to each. The viewer is never part of the result.
func (s *UsersService) Search(ctx context.Context, viewer, q string, limit int) ([]domain.SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, domain.NewValidationError(map[string]string{"q": "required"})
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	viewerRel, err := s.Repo.Load(ctx, viewer)
	if err != nil {
		return nil, err
	}

	docs, err := s.Store.SearchUsers(ctx, q, limit, viewer)
	if err != nil {
		return nil, err
	}

	out := make([]domain.SearchResult, 0, len(docs))
	for _, d := range docs {
		if d.UID == viewer {
			continue
		}
		subject := d.Relations().View()
		if vs := domain.Inspect(viewerRel.View(), subject); len(vs) > 0 {
			logViolations(loggerOr(s.Logger), viewer, d.UID, vs)
		}
		out = append(out, domain.SearchResult{
			UserSummary:  d.Summary(),
			Relationship: domain.Status(viewerRel.View(), subject),
		})
	}
	return out, nil
}
