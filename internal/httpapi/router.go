package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"DailyBitesserver/internal/auth"
	"DailyBitesserver/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	StorePing func(context.Context) error

	Verifier auth.Verifier
	Friends  *service.FriendsService
	Users    *service.UsersService
	Profile  *service.ProfileService

	// MutationsPerMinute caps relationship mutations per caller. Zero disables the limit.
	MutationsPerMinute int
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:     logger,
		isProd:     opts.IsProd,
		storePing:  opts.StorePing,
		verifier:   opts.Verifier,
		friendsSvc: opts.Friends,
		usersSvc:   opts.Users,
		profileSvc: opts.Profile,
	}
	if opts.MutationsPerMinute > 0 {
		api.mutationLimiter = newCallerLimiter(opts.MutationsPerMinute, time.Minute, opts.MutationsPerMinute)
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)

	if api.verifier == nil {
		apiMux.HandleFunc("/v1/", handleNotImplemented)
	} else {
		if api.profileSvc != nil {
			apiMux.HandleFunc("POST /v1/users/me", api.requireAuth(api.handleUsersRegister))
			apiMux.HandleFunc("GET /v1/users/me", api.requireAuth(api.handleUsersMe))
			apiMux.HandleFunc("PATCH /v1/users/me", api.requireAuth(api.handleUsersMeUpdate))
			apiMux.HandleFunc("GET /v1/users/{uid}", api.requireAuth(api.handleUsersGet))
		}
		if api.usersSvc != nil && api.usersSvc.Store != nil {
			apiMux.HandleFunc("GET /v1/users/search", api.requireAuth(api.handleUsersSearch))
		}

		if api.friendsSvc != nil {
			apiMux.HandleFunc("GET /v1/users/{uid}/friends", api.requireAuth(api.handleUsersFriends))
			apiMux.HandleFunc("GET /v1/friends", api.requireAuth(api.handleFriendsList))
			apiMux.HandleFunc("POST /v1/friends/requests", api.requireAuth(api.limitMutations(api.handleFriendsCreateRequest)))
			apiMux.HandleFunc("POST /v1/friends/requests/{uid}/accept", api.requireAuth(api.limitMutations(api.handleFriendsAccept)))
			apiMux.HandleFunc("POST /v1/friends/requests/{uid}/reject", api.requireAuth(api.limitMutations(api.handleFriendsReject)))
			apiMux.HandleFunc("POST /v1/friends/requests/{uid}/cancel", api.requireAuth(api.limitMutations(api.handleFriendsCancel)))
			apiMux.HandleFunc("DELETE /v1/friends/{uid}", api.requireAuth(api.limitMutations(api.handleFriendsRemove)))
			apiMux.HandleFunc("GET /v1/relationships/{uid}", api.requireAuth(api.handleRelationshipStatus))
			apiMux.HandleFunc("POST /v1/relationships/{uid}/repair", api.requireAuth(api.limitMutations(api.handleRelationshipRepair)))
		}
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	storePing func(context.Context) error

	verifier   auth.Verifier
	friendsSvc *service.FriendsService
	usersSvc   *service.UsersService
	profileSvc *service.ProfileService

	mutationLimiter *callerLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.storePing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.storePing(ctx); err != nil {
			a.logger.Warn("store ping failed", slog.Any("err", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
