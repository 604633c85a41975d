// Package firestore stores user documents in Cloud Firestore through its REST
// API. Conditional writes use the document updateTime as version token.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	fsapi "google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/store"
)

const (
	datastoreScope    = "https://www.googleapis.com/auth/datastore"
	DefaultDatabase   = "(default)"
	DefaultCollection = "users"

	pingDocument = "__ping__"
)

type Config struct {
	ProjectID       string
	Database        string
	Collection      string
	CredentialsPath string
	// Endpoint overrides the API base URL, e.g. for the emulator. Requests to
	// an overridden endpoint are sent without credentials.
	Endpoint string
}

type Store struct {
	docs       *fsapi.ProjectsDatabasesDocumentsService
	database   string
	collection string
}

var (
	_ store.DocumentStore = (*Store)(nil)
	_ store.Committer     = (*Store)(nil)
	_ store.Pinger        = (*Store)(nil)
)

func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(strings.TrimRight(cfg.Endpoint, "/")+"/"), option.WithoutAuthentication())
	case strings.TrimSpace(cfg.CredentialsPath) != "":
		raw, err := os.ReadFile(cfg.CredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("read firestore credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, raw, datastoreScope)
		if err != nil {
			return nil, fmt.Errorf("load firestore credentials: %w", err)
		}
		if cfg.ProjectID == "" {
			cfg.ProjectID = creds.ProjectID
		}
		opts = append(opts, option.WithCredentials(creds))
	default:
		opts = append(opts, option.WithScopes(datastoreScope))
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project id required")
	}

	svc, err := fsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	return &Store{
		docs:       svc.Projects.Databases.Documents,
		database:   fmt.Sprintf("projects/%s/databases/%s", cfg.ProjectID, cfg.Database),
		collection: cfg.Collection,
	}, nil
}

func (s *Store) parent() string { return s.database + "/documents" }

func (s *Store) name(uid string) string {
	return s.parent() + "/" + s.collection + "/" + uid
}

func (s *Store) GetDocument(ctx context.Context, uid string) (domain.UserDocument, error) {
	doc, err := s.docs.Get(s.name(uid)).Context(ctx).Do()
	if err != nil {
		return domain.UserDocument{}, mapError("get document", err)
	}
	return fromDocument(uid, doc), nil
}

func (s *Store) PatchDocument(ctx context.Context, uid string, mask []string, doc domain.UserDocument, expectedVersion string) (string, error) {
	fields, err := toFields(doc, mask)
	if err != nil {
		return "", err
	}

	call := s.docs.Patch(s.name(uid), &fsapi.Document{Fields: fields}).
		UpdateMaskFieldPaths(mask...).
		Context(ctx)
	if expectedVersion != "" {
		call = call.CurrentDocumentUpdateTime(expectedVersion)
	} else {
		call = call.CurrentDocumentExists(true)
	}

	updated, err := call.Do()
	if err != nil {
		return "", mapError("patch document", err)
	}
	return updated.UpdateTime, nil
}

func (s *Store) CreateDocument(ctx context.Context, doc domain.UserDocument) (domain.UserDocument, error) {
	fields, err := toFields(doc, allFields)
	if err != nil {
		return domain.UserDocument{}, err
	}

	created, err := s.docs.CreateDocument(s.parent(), s.collection, &fsapi.Document{Fields: fields}).
		DocumentId(doc.UID).
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
			return domain.UserDocument{}, domain.ErrUserExists
		}
		return domain.UserDocument{}, mapError("create document", err)
	}
	return fromDocument(doc.UID, created), nil
}

// CommitSetMutations sends one commit with appendMissingElements and
// removeAllFromArray transforms. Every touched document must exist.
func (s *Store) CommitSetMutations(ctx context.Context, muts []store.SetMutation) error {
	writes := make([]*fsapi.Write, 0, len(muts))
	for _, m := range muts {
		if m.Field != domain.FieldFriends && m.Field != domain.FieldFriendRequests {
			return domain.NewValidationError(map[string]string{"field": "unknown field " + m.Field})
		}
		var transforms []*fsapi.FieldTransform
		if len(m.Add) > 0 {
			transforms = append(transforms, &fsapi.FieldTransform{FieldPath: m.Field, AppendMissingElements: stringArray(m.Add)})
		}
		if len(m.Remove) > 0 {
			transforms = append(transforms, &fsapi.FieldTransform{FieldPath: m.Field, RemoveAllFromArray: stringArray(m.Remove)})
		}
		if len(transforms) == 0 {
			continue
		}
		writes = append(writes, &fsapi.Write{
			Transform:       &fsapi.DocumentTransform{Document: s.name(m.UID), FieldTransforms: transforms},
			CurrentDocument: &fsapi.Precondition{Exists: true},
		})
	}
	if len(writes) == 0 {
		return nil
	}

	_, err := s.docs.Commit(s.database, &fsapi.CommitRequest{Writes: writes}).Context(ctx).Do()
	if err != nil {
		return mapError("commit", err)
	}
	return nil
}

// Ping reads a document that is not expected to exist; any answer from the
// API, including not found, counts as healthy.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.GetDocument(ctx, pingDocument)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func mapError(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return domain.TransportError(op, err)
	}
	switch {
	case gerr.Code == http.StatusNotFound:
		return domain.ErrNotFound
	case gerr.Code == http.StatusConflict, gerr.Code == http.StatusPreconditionFailed:
		return domain.ErrVersionConflict
	case gerr.Code == http.StatusBadRequest &&
		(strings.Contains(gerr.Body, "FAILED_PRECONDITION") || strings.Contains(gerr.Message, "FAILED_PRECONDITION")):
		return domain.ErrVersionConflict
	default:
		return domain.TransportError(op, err)
	}
}
