package postgres

import (
	"context"
	"strings"

	"DailyBitesserver/internal/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchUsers matches a case-insensitive username prefix.
func (s *UsersStore) SearchUsers(ctx context.Context, prefix string, limit int, excludeUID string) ([]domain.UserDocument, error) {
	if limit <= 0 || limit > 50 {
		limit = 25
	}

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []domain.UserDocument{}, nil
	}

	query := `
		SELECT ` + documentColumns + `
		FROM users
		WHERE uid <> $3
		  AND lower(username) LIKE lower($1) || '%'
		ORDER BY username ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, likeEscaper.Replace(prefix), limit, excludeUID)
	if err != nil {
		return nil, domain.TransportError("search users", err)
	}
	defer rows.Close()

	out := []domain.UserDocument{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, domain.TransportError("scan user", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.TransportError("search users", err)
	}

	return out, nil
}

func (s *UsersStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(username) = lower($1))`, username).Scan(&taken)
	if err != nil {
		return false, domain.TransportError("username taken", err)
	}
	return taken, nil
}
