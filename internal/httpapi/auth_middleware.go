package httpapi

import (
	"context"
	"net/http"

	"DailyBitesserver/internal/auth"
	"DailyBitesserver/internal/domain"
)

type authCtxKey int

const authIdentityKey authCtxKey = iota

// requireAuth verifies the bearer ID token and stores the caller identity in
// the request context.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		id, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authIdentityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func CurrentIdentity(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(authIdentityKey).(auth.Identity)
	return id, ok && id.UID != ""
}

// CurrentUID is the caller uid, or "" outside requireAuth.
func CurrentUID(ctx context.Context) string {
	id, _ := CurrentIdentity(ctx)
	return id.UID
}
