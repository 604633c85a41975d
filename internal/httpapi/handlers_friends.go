package httpapi

import (
	"net/http"
	"strings"

	"DailyBitesserver/internal/domain"
)

func (a *api) handleFriendsList(w http.ResponseWriter, r *http.Request) {
	out, err := a.friendsSvc.Overview(r.Context(), CurrentUID(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleUsersFriends(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}

	friends, err := a.friendsSvc.FriendsOf(r.Context(), uid)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"friends": friends})
}

type createFriendRequestRequest struct {
	UID string `json:"uid"`
}

func (a *api) handleFriendsCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req createFriendRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	res, err := a.friendsSvc.SendRequest(r.Context(), CurrentUID(r.Context()), strings.TrimSpace(req.UID))
	a.writeOp(w, r, res, err)
}

func (a *api) handleFriendsAccept(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}
	res, err := a.friendsSvc.AcceptRequest(r.Context(), CurrentUID(r.Context()), uid)
	a.writeOp(w, r, res, err)
}

func (a *api) handleFriendsReject(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}
	res, err := a.friendsSvc.RejectRequest(r.Context(), CurrentUID(r.Context()), uid)
	a.writeOp(w, r, res, err)
}

func (a *api) handleFriendsCancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}
	res, err := a.friendsSvc.CancelRequest(r.Context(), CurrentUID(r.Context()), uid)
	a.writeOp(w, r, res, err)
}

func (a *api) handleFriendsRemove(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}
	res, err := a.friendsSvc.RemoveFriend(r.Context(), CurrentUID(r.Context()), uid)
	a.writeOp(w, r, res, err)
}

func (a *api) handleRelationshipStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}
	report, err := a.friendsSvc.Status(r.Context(), CurrentUID(r.Context()), uid)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (a *api) handleRelationshipRepair(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUID(w, r)
	if !ok {
		return
	}
	res, err := a.friendsSvc.Repair(r.Context(), CurrentUID(r.Context()), uid)
	a.writeOp(w, r, res, err)
}

func pathUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := strings.TrimSpace(r.PathValue("uid"))
	if uid == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"uid": "required"}))
		return "", false
	}
	return uid, true
}
