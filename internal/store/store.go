// Package store defines the document store contract and the relationship
// repository built on it. Adapters live in the subpackages.
package store

import (
	"context"

	"DailyBitesserver/internal/domain"
)

// DocumentStore is the per-document, non-transactional store the engine runs on.
//
// PatchDocument replaces only the fields named in mask with the values carried
// by doc; array fields are replaced wholesale. A non-empty expectedVersion makes
// the write conditional: the adapter returns domain.ErrVersionConflict when the
// stored document has moved on. Transport-level failures wrap domain.ErrTransport.
type DocumentStore interface {
	GetDocument(ctx context.Context, uid string) (domain.UserDocument, error)
	PatchDocument(ctx context.Context, uid string, mask []string, doc domain.UserDocument, expectedVersion string) (string, error)
	CreateDocument(ctx context.Context, doc domain.UserDocument) (domain.UserDocument, error)
}

// SetMutation adds and removes members of one array field of one document.
type SetMutation struct {
	UID    string
	Field  string
	Add    []string
	Remove []string
}

// Committer is implemented by stores that can apply set mutations to several
// documents in a single atomic request using native add/remove transforms.
type Committer interface {
	CommitSetMutations(ctx context.Context, muts []SetMutation) error
}

// UsersSearchStore runs username prefix searches.
type UsersSearchStore interface {
	SearchUsers(ctx context.Context, prefix string, limit int, excludeUID string) ([]domain.UserDocument, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}
