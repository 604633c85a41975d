package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/store"
)

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

var (
	_ store.DocumentStore    = (*UsersStore)(nil)
	_ store.Committer        = (*UsersStore)(nil)
	_ store.UsersSearchStore = (*UsersStore)(nil)
	_ store.Pinger           = (*UsersStore)(nil)
)

func (s *UsersStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return domain.TransportError("ping postgres", err)
	}
	return nil
}

func (s *UsersStore) GetDocument(ctx context.Context, uid string) (domain.UserDocument, error) {
	q := `SELECT ` + documentColumns + ` FROM users WHERE uid = $1`

	doc, err := scanDocument(s.pool.QueryRow(ctx, q, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserDocument{}, domain.ErrNotFound
		}
		return domain.UserDocument{}, domain.TransportError("get document", err)
	}
	return doc, nil
}

func (s *UsersStore) CreateDocument(ctx context.Context, doc domain.UserDocument) (domain.UserDocument, error) {
	q := `
		INSERT INTO users (uid, username, name, email, bio, profile_pic_url, friends, friend_requests)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + documentColumns

	created, err := scanDocument(s.pool.QueryRow(ctx, q,
		doc.UID,
		doc.Username,
		doc.Name,
		doc.Email,
		doc.Bio,
		doc.ProfilePicURL,
		nonNil(doc.Friends),
		nonNil(doc.FriendRequests),
	))
	if err != nil {
		return domain.UserDocument{}, mapUserWriteError(err)
	}
	return created, nil
}

// PatchDocument updates the masked columns and bumps the version. With an
// expected version the update only matches that exact row version.
func (s *UsersStore) PatchDocument(ctx context.Context, uid string, mask []string, doc domain.UserDocument, expectedVersion string) (string, error) {
	sets := make([]string, 0, len(mask)+2)
	args := make([]any, 0, len(mask)+2)
	for _, field := range mask {
		col, ok := fieldColumns[field]
		if !ok {
			return "", domain.NewValidationError(map[string]string{"mask": "unknown field " + field})
		}
		args = append(args, fieldValue(doc, field))
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	sets = append(sets, "version = version + 1", "updated_at = now()")

	args = append(args, uid)
	where := fmt.Sprintf("uid = $%d", len(args))
	if expectedVersion != "" {
		v, err := strconv.ParseInt(expectedVersion, 10, 64)
		if err != nil {
			return "", domain.ErrVersionConflict
		}
		args = append(args, v)
		where += fmt.Sprintf(" AND version = $%d", len(args))
	}

	q := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE ` + where + ` RETURNING version`

	var version int64
	err := s.pool.QueryRow(ctx, q, args...).Scan(&version)
	if err == nil {
		return strconv.FormatInt(version, 10), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", mapUserWriteError(err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE uid = $1)`, uid).Scan(&exists); err != nil {
		return "", domain.TransportError("patch document", err)
	}
	if !exists {
		return "", domain.ErrNotFound
	}
	return "", domain.ErrVersionConflict
}

// CommitSetMutations applies every mutation inside one serializable
// transaction, retried on serialization failures.
func (s *UsersStore) CommitSetMutations(ctx context.Context, muts []store.SetMutation) error {
	err := crdbpgx.ExecuteTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		docs := map[string]domain.Relations{}
		order := []string{}
		for _, m := range muts {
			if _, ok := docs[m.UID]; ok {
				continue
			}
			d, err := scanDocument(tx.QueryRow(ctx, `SELECT `+documentColumns+` FROM users WHERE uid = $1 FOR UPDATE`, m.UID))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return domain.ErrNotFound
				}
				return err
			}
			docs[m.UID] = d.Relations()
			order = append(order, m.UID)
		}

		for _, m := range muts {
			rel := docs[m.UID]
			cur := rel.Field(m.Field)
			if cur == nil {
				return domain.NewValidationError(map[string]string{"field": "unknown field " + m.Field})
			}
			for _, id := range m.Add {
				cur = cur.With(id)
			}
			for _, id := range m.Remove {
				cur = cur.Without(id)
			}
			if m.Field == domain.FieldFriends {
				rel.Friends = cur
			} else {
				rel.Requests = cur
			}
			docs[m.UID] = rel
		}

		for _, uid := range order {
			rel := docs[uid]
			_, err := tx.Exec(ctx, `
				UPDATE users
				SET friends = $2, friend_requests = $3, version = version + 1, updated_at = now()
				WHERE uid = $1
			`, uid, rel.Friends.Sorted(), rel.Requests.Sorted())
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	return domain.TransportError("commit", err)
}

func mapUserWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		if strings.Contains(pgerr.ConstraintName, "username") {
			return domain.ErrUsernameTaken
		}
		return domain.ErrUserExists
	}
	return domain.TransportError("write user", err)
}
