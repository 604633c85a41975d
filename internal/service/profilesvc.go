package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/store"
)

type ProfileService struct {
	Repo   *store.Repository
	Logger *slog.Logger
	// Usernames is optional; without it uniqueness is left to the store.
	Usernames store.UsersSearchStore
}

type ProfileUpdate struct {
	Name          *string
	Bio           *string
	ProfilePicURL *string
}

func validUsername(s string) bool {
	if len(s) < 3 || len(s) > 24 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

func validText(s string, limit int) bool {
	if len(s) > limit {
		return false
	}
	for _, r := range s {
		if r < 32 && r != '\n' {
			return false
		}
	}
	return true
}

// Register creates the user document for uid with empty relationship sets.
func (s *ProfileService) Register(ctx context.Context, uid, username, email, name string) (domain.UserDocument, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	fields := map[string]string{}
	if strings.TrimSpace(uid) == "" {
		return domain.UserDocument{}, domain.ErrUnauthorized
	}
	if !validUsername(username) {
		fields["username"] = "must be 3-24 characters of letters, digits or underscore"
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			fields["email"] = "invalid"
		}
	}
	if !validText(name, 48) {
		fields["name"] = "must be 48 characters or less"
	}
	if len(fields) > 0 {
		return domain.UserDocument{}, domain.NewValidationError(fields)
	}

	if s.Usernames != nil {
		taken, err := s.Usernames.UsernameTaken(ctx, username)
		if err != nil {
			return domain.UserDocument{}, err
		}
		if taken {
			return domain.UserDocument{}, domain.ErrUsernameTaken
		}
	}

	return s.Repo.Documents().CreateDocument(ctx, domain.UserDocument{
		UID:            uid,
		Username:       username,
		Name:           name,
		Email:          email,
		Friends:        []string{},
		FriendRequests: []string{},
	})
}

func (s *ProfileService) UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) (domain.UserDocument, error) {
	var (
		mask   []string
		doc    domain.UserDocument
		fields = map[string]string{}
	)
	if upd.Name != nil {
		doc.Name = strings.TrimSpace(*upd.Name)
		if !validText(doc.Name, 48) {
			fields["name"] = "must be 48 characters or less"
		}
		mask = append(mask, domain.FieldName)
	}
	if upd.Bio != nil {
		doc.Bio = strings.TrimSpace(*upd.Bio)
		if !validText(doc.Bio, 280) {
			fields["bio"] = "must be 280 characters or less"
		}
		mask = append(mask, domain.FieldBio)
	}
	if upd.ProfilePicURL != nil {
		doc.ProfilePicURL = strings.TrimSpace(*upd.ProfilePicURL)
		if doc.ProfilePicURL != "" && !strings.HasPrefix(doc.ProfilePicURL, "https://") {
			fields["profile_pic_url"] = "must be an https URL"
		}
		mask = append(mask, domain.FieldProfilePicURL)
	}
	if len(fields) > 0 {
		return domain.UserDocument{}, domain.NewValidationError(fields)
	}
	if len(mask) == 0 {
		return s.Repo.LoadDocument(ctx, uid)
	}

	if _, err := s.Repo.Documents().PatchDocument(ctx, uid, mask, doc, ""); err != nil {
		return domain.UserDocument{}, err
	}
	return s.Repo.LoadDocument(ctx, uid)
}

// View returns subject's profile as seen by viewer. Email is only shown to
// the owner.
func (s *ProfileService) View(ctx context.Context, viewer, subject string) (domain.Profile, error) {
	sDoc, err := s.Repo.LoadDocument(ctx, subject)
	if err != nil {
		return domain.Profile{}, err
	}
	sRel := sDoc.Relations()

	p := domain.Profile{
		UserSummary:  sDoc.Summary(),
		Bio:          sDoc.Bio,
		FriendCount:  sRel.Friends.Len(),
		Relationship: domain.RelationshipNone,
	}
	if viewer == subject {
		p.Email = sDoc.Email
		return p, nil
	}

	vRel, err := s.Repo.Load(ctx, viewer)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return p, nil
		}
		return domain.Profile{}, err
	}
	if vs := domain.Inspect(vRel.View(), sRel.View()); len(vs) > 0 {
		logViolations(loggerOr(s.Logger), viewer, subject, vs)
	}
	p.Relationship = domain.Status(vRel.View(), sRel.View())
	return p, nil
}
