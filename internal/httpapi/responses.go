package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"DailyBitesserver/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// opResponse is the body of every relationship mutation. Error is only set
// for partial completions.
type opResponse struct {
	domain.OpResult
	Error *apiError `json:"error,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "validation_error", Message: "invalid request", Fields: verr.Fields}})
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrUsernameTaken):
		WriteError(w, http.StatusConflict, "username_taken", "username already taken")
	case errors.Is(err, domain.ErrUserExists):
		WriteError(w, http.StatusConflict, "user_exists", "user already registered")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, domain.ErrFriendshipExists):
		WriteError(w, http.StatusConflict, "friendship_exists", "already friends")
	case errors.Is(err, domain.ErrVersionConflict):
		WriteError(w, http.StatusConflict, "version_conflict", "document changed concurrently, retry")
	case errors.Is(err, domain.ErrRequestNotFound):
		WriteError(w, http.StatusNotFound, "request_not_found", "friend request not found")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
	case errors.Is(err, domain.ErrTransport):
		WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "document store unavailable")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// writeOp renders the result of a relationship mutation: 200 on success, 202
// with the step list on partial completion, and the mapped error otherwise.
func (a *api) writeOp(w http.ResponseWriter, r *http.Request, res domain.OpResult, err error) {
	switch domain.OutcomeOf(err) {
	case domain.OutcomeSuccess:
		WriteJSON(w, http.StatusOK, opResponse{OpResult: res})
	case domain.OutcomePartialCompletion:
		var perr *domain.PartialCompletionError
		if errors.As(err, &perr) && len(res.Steps) == 0 {
			res = perr.Result
		}
		WriteJSON(w, http.StatusAccepted, opResponse{
			OpResult: res,
			Error:    &apiError{Code: "partial_completion", Message: err.Error()},
		})
	default:
		if errors.Is(err, domain.ErrTransport) {
			a.logger.Warn("relationship operation failed",
				"op", res.Op,
				"uid", CurrentUID(r.Context()),
				"err", err,
			)
		}
		WriteDomainError(w, err)
	}
}
