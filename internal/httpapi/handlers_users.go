package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/service"
)

type registerRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type updateProfileRequest struct {
	Name          *string `json:"name"`
	Bio           *string `json:"bio"`
	ProfilePicURL *string `json:"profile_pic_url"`
}

// ownProfile renders the caller's own document.
func ownProfile(doc domain.UserDocument) domain.Profile {
	return domain.Profile{
		UserSummary:  doc.Summary(),
		Email:        doc.Email,
		Bio:          doc.Bio,
		FriendCount:  len(doc.Friends),
		Relationship: domain.RelationshipNone,
	}
}

func (a *api) handleUsersRegister(w http.ResponseWriter, r *http.Request) {
	id, ok := CurrentIdentity(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	email := req.Email
	if strings.TrimSpace(email) == "" {
		email = id.Email
	}

	doc, err := a.profileSvc.Register(r.Context(), id.UID, req.Username, email, req.Name)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	a.logger.Info("user registered", "uid", doc.UID, "provider", id.Provider)
	WriteJSON(w, http.StatusCreated, ownProfile(doc))
}

func (a *api) handleUsersMe(w http.ResponseWriter, r *http.Request) {
	uid := CurrentUID(r.Context())
	p, err := a.profileSvc.View(r.Context(), uid, uid)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (a *api) handleUsersMeUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if _, err := decodeJSONAllowEmpty(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	doc, err := a.profileSvc.UpdateProfile(r.Context(), CurrentUID(r.Context()), service.ProfileUpdate{
		Name:          req.Name,
		Bio:           req.Bio,
		ProfilePicURL: req.ProfilePicURL,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ownProfile(doc))
}

func (a *api) handleUsersGet(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}

	p, err := a.profileSvc.View(r.Context(), CurrentUID(r.Context()), uid)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (a *api) handleUsersSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteDomainError(w, domain.NewValidationError(map[string]string{"limit": "must be a number"}))
			return
		}
		limit = n
	}

	out, err := a.usersSvc.Search(r.Context(), CurrentUID(r.Context()), q, limit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}
