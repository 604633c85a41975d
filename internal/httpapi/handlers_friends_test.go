package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"DailyBitesserver/internal/auth"
	"DailyBitesserver/internal/domain"
	"DailyBitesserver/internal/journal"
	"DailyBitesserver/internal/service"
	"DailyBitesserver/internal/store"
	"DailyBitesserver/internal/store/memory"
)

// failingDocs fails patches of one uid/field pair with a transport error.
type failingDocs struct {
	*memory.Store

	failUID   string
	failField string
}

func (f *failingDocs) PatchDocument(ctx context.Context, uid string, mask []string, doc domain.UserDocument, expectedVersion string) (string, error) {
	if uid == f.failUID && len(mask) == 1 && mask[0] == f.failField {
		return "", domain.TransportError("patch "+uid, errors.New("unavailable"))
	}
	return f.Store.PatchDocument(ctx, uid, mask, doc, expectedVersion)
}

type testServer struct {
	handler http.Handler
	mem     *memory.Store
	docs    *failingDocs
}

func newTestServer(t *testing.T, mutationsPerMinute int) testServer {
	t.Helper()

	mem := memory.New()
	for _, d := range []domain.UserDocument{
		{UID: "U1", Username: "alice", Email: "alice@example.com"},
		{UID: "U2", Username: "bob", Email: "bob@example.com"},
		{UID: "U3", Username: "carol"},
	} {
		if _, err := mem.CreateDocument(context.Background(), d); err != nil {
			t.Fatalf("seed %s: %v", d.UID, err)
		}
	}

	docs := &failingDocs{Store: mem}
	repo := store.NewRepository(docs)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewRouter(RouterOpts{
		Logger:    logger,
		StorePing: mem.Ping,
		Verifier:  &auth.Chain{Verifiers: []auth.Verifier{auth.DevVerifier{}}},
		Friends: &service.FriendsService{
			Repo:             repo,
			Journal:          journal.NewMemory(time.Hour),
			Logger:           logger,
			WriteMaxAttempts: 3,
			WriteBackoff:     time.Millisecond,
			HealOnRead:       true,
		},
		Users:              &service.UsersService{Store: mem, Repo: repo},
		Profile:            &service.ProfileService{Repo: repo, Usernames: mem},
		MutationsPerMinute: mutationsPerMinute,
	})
	return testServer{handler: h, mem: mem, docs: docs}
}

func (s testServer) do(t *testing.T, uid, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if uid != "" {
		req.Header.Set("Authorization", "Bearer dev:"+uid)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decodeOp(t *testing.T, rr *httptest.ResponseRecorder) opResponse {
	t.Helper()
	var out opResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode op response: %v (%s)", err, rr.Body.String())
	}
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error: %v (%s)", err, rr.Body.String())
	}
	return env.Error.Code
}

func TestFriendsFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, 0)

	rr := s.do(t, "U1", http.MethodPost, "/v1/friends/requests", `{"uid":"U2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("send: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if out := decodeOp(t, rr); out.Outcome != domain.OutcomeSuccess || out.State != domain.RelationshipRequestSent {
		t.Fatalf("send: unexpected result %+v", out.OpResult)
	}

	rr = s.do(t, "U2", http.MethodGet, "/v1/relationships/U1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rr.Code)
	}
	var report domain.RelationshipReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.State != domain.RelationshipRequestReceived {
		t.Fatalf("status: expected REQUEST_RECEIVED, got %s", report.State)
	}

	rr = s.do(t, "U2", http.MethodPost, "/v1/friends/requests/U1/accept", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	out := decodeOp(t, rr)
	if out.State != domain.RelationshipFriends || len(out.Steps) != 3 {
		t.Fatalf("accept: unexpected result %+v", out.OpResult)
	}

	rr = s.do(t, "U1", http.MethodGet, "/v1/friends", "")
	var overview domain.FriendsOverview
	if err := json.Unmarshal(rr.Body.Bytes(), &overview); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if len(overview.Friends) != 1 || overview.Friends[0].Username != "bob" || len(overview.Incoming) != 0 {
		t.Fatalf("unexpected overview: %+v", overview)
	}

	rr = s.do(t, "U3", http.MethodGet, "/v1/users/U2/friends", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"alice"`) {
		t.Fatalf("friends of: got %d %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, "U1", http.MethodDelete, "/v1/friends/U2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if out := decodeOp(t, rr); out.State != domain.RelationshipNone {
		t.Fatalf("remove: unexpected state %s", out.State)
	}
}

func TestFriendsRequiresBearerToken(t *testing.T) {
	s := newTestServer(t, 0)

	rr := s.do(t, "", http.MethodGet, "/v1/friends", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/friends", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestFriendsErrorMapping(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"self request", http.MethodPost, "/v1/friends/requests", `{"uid":"U1"}`, http.StatusBadRequest, "validation_error"},
		{"bad json", http.MethodPost, "/v1/friends/requests", `{"username":"bob"}`, http.StatusBadRequest, "bad_json"},
		{"unknown user", http.MethodPost, "/v1/friends/requests", `{"uid":"U404"}`, http.StatusNotFound, "not_found"},
		{"accept without request", http.MethodPost, "/v1/friends/requests/U2/accept", "", http.StatusNotFound, "request_not_found"},
		{"unknown route", http.MethodGet, "/v1/nope", "", http.StatusNotFound, "not_found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := s.do(t, "U1", tc.method, tc.path, tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rr.Code, rr.Body.String())
			}
			if got := errorCode(t, rr); got != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, got)
			}
		})
	}
}

func TestFriendsAcceptPartialReturnsAccepted(t *testing.T) {
	s := newTestServer(t, 0)

	if rr := s.do(t, "U1", http.MethodPost, "/v1/friends/requests", `{"uid":"U2"}`); rr.Code != http.StatusOK {
		t.Fatalf("send: got %d", rr.Code)
	}

	s.docs.failUID, s.docs.failField = "U1", domain.FieldFriends
	rr := s.do(t, "U2", http.MethodPost, "/v1/friends/requests/U1/accept", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", rr.Code, rr.Body.String())
	}
	out := decodeOp(t, rr)
	if out.Error == nil || out.Error.Code != "partial_completion" {
		t.Fatalf("expected partial_completion error, got %+v", out.Error)
	}
	if out.Outcome != domain.OutcomePartialCompletion {
		t.Fatalf("unexpected outcome %s", out.Outcome)
	}
	if out.Steps[0].Status != domain.StepDone || out.Steps[1].Status != domain.StepFailed {
		t.Fatalf("unexpected steps: %+v", out.Steps)
	}

	s.docs.failUID = ""
	rr = s.do(t, "U2", http.MethodPost, "/v1/relationships/U1/repair", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("repair: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if out := decodeOp(t, rr); out.State != domain.RelationshipFriends {
		t.Fatalf("repair: expected FRIENDS, got %s", out.State)
	}
}

func TestFriendsSendTransportFailure(t *testing.T) {
	s := newTestServer(t, 0)
	s.docs.failUID, s.docs.failField = "U2", domain.FieldFriendRequests

	rr := s.do(t, "U1", http.MethodPost, "/v1/friends/requests", `{"uid":"U2"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d (%s)", rr.Code, rr.Body.String())
	}
	if got := errorCode(t, rr); got != "store_unavailable" {
		t.Fatalf("unexpected code %q", got)
	}
}

func TestFriendsRejectAndCancel(t *testing.T) {
	s := newTestServer(t, 0)

	s.do(t, "U1", http.MethodPost, "/v1/friends/requests", `{"uid":"U2"}`)
	rr := s.do(t, "U1", http.MethodPost, "/v1/friends/requests/U2/cancel", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	s.do(t, "U3", http.MethodPost, "/v1/friends/requests", `{"uid":"U2"}`)
	rr = s.do(t, "U2", http.MethodPost, "/v1/friends/requests/U3/reject", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	doc, err := s.mem.GetDocument(context.Background(), "U2")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if len(doc.FriendRequests) != 0 {
		t.Fatalf("expected no pending requests, got %v", doc.FriendRequests)
	}
}

func TestFriendsMutationRateLimit(t *testing.T) {
	s := newTestServer(t, 1)

	if rr := s.do(t, "U1", http.MethodPost, "/v1/friends/requests", `{"uid":"U2"}`); rr.Code != http.StatusOK {
		t.Fatalf("first send: got %d", rr.Code)
	}
	rr := s.do(t, "U1", http.MethodPost, "/v1/friends/requests", `{"uid":"U3"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	// Reads and other callers are not limited.
	if rr := s.do(t, "U1", http.MethodGet, "/v1/friends", ""); rr.Code != http.StatusOK {
		t.Fatalf("read: got %d", rr.Code)
	}
	if rr := s.do(t, "U3", http.MethodPost, "/v1/friends/requests", `{"uid":"U2"}`); rr.Code != http.StatusOK {
		t.Fatalf("other caller: got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, 0)
	rr := s.do(t, "", http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: got %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	down := &api{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), storePing: func(context.Context) error {
		return errors.New("down")
	}}
	rec := httptest.NewRecorder()
	down.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
