package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arthea/api/internal/auth"
	"arthea/api/internal/store"
)

func newTestServer(f *fakeStore) (*HTTPServer, *Service) {
	svc := newTestService(f)
	return NewHTTPServer(svc, "*"), svc
}

func tokenForUser(t *testing.T, svc *Service, userID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(svc.cfg.JWTSecret), auth.Claims{
		Sub:  userID,
		Name: "Test User",
		Role: "architect",
		JTI:  "jti_test",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, server *HTTPServer, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = bytes.NewBufferString("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func fakeWithRole(role string) *fakeStore {
	return &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Test User", Role: role}, nil
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})

	rr := doRequest(t, server, http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if payload := decodeResponse(t, rr); payload["ok"] != true {
		t.Fatalf("expected ok true, got %v", payload["ok"])
	}
}

func TestPreflightIsBodyless(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})

	rr := doRequest(t, server, http.MethodOptions, "/api/comments", "", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("expected empty preflight body, got %q", rr.Body.String())
	}
}

func TestReadyEndpointReportsDatabase(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})
	rr := doRequest(t, server, http.MethodGet, "/api/ready", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSessionLoginReturnsContract(t *testing.T) {
	var ensuredName string
	server, _ := newTestServer(&fakeStore{
		ensureUserByNameFn: func(_ context.Context, name string) (store.User, error) {
			ensuredName = name
			return store.User{ID: "usr_1", DisplayName: name, Role: "client"}, nil
		},
	})

	rr := doRequest(t, server, http.MethodPost, "/api/session/login", "", `{"name":"  Mara  "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["token"] == "" || payload["token"] == nil {
		t.Fatal("expected token in response")
	}
	if payload["role"] != "client" {
		t.Fatalf("expected client role, got %v", payload["role"])
	}
	if ensuredName != "Mara" {
		t.Fatalf("expected trimmed name Mara, got %q", ensuredName)
	}
}

func TestRequireSessionRejectsMissingToken(t *testing.T) {
	server, _ := newTestServer(&fakeStore{})
	rr := doRequest(t, server, http.MethodPost, "/api/rounds", "", `{"subjectId":"proj_1"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCreateRoundForbiddenForClient(t *testing.T) {
	server, svc := newTestServer(fakeWithRole("client"))
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodPost, "/api/rounds", token, `{"subjectId":"proj_1"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateRoundAsArchitect(t *testing.T) {
	f := fakeWithRole("architect")
	var inserted store.Round
	f.insertRoundFn = func(_ context.Context, round store.Round) error {
		inserted = round
		return nil
	}
	server, svc := newTestServer(f)
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodPost, "/api/rounds", token, `{"subjectId":"proj_1"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if inserted.SubjectID != "proj_1" {
		t.Fatalf("expected proj_1, got %s", inserted.SubjectID)
	}
	payload := decodeResponse(t, rr)
	if payload["status"] != "open" {
		t.Fatalf("expected open, got %v", payload["status"])
	}
}

func TestFreezeRoundConflictSurfacesAsInvalidState(t *testing.T) {
	f := fakeWithRole("architect")
	f.getRoundFn = func(_ context.Context, id string) (store.Round, error) {
		return store.Round{ID: id, Status: "frozen"}, nil
	}
	f.freezeRoundFn = func(context.Context, string, time.Time) (bool, error) {
		return false, nil
	}
	server, svc := newTestServer(f)
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodPost, "/api/rounds/rnd_1/freeze", token, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["code"] != "INVALID_STATE" {
		t.Fatalf("expected INVALID_STATE, got %v", payload["code"])
	}
}

func TestSendToTeamForbiddenForClient(t *testing.T) {
	server, svc := newTestServer(fakeWithRole("client"))
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodPost, "/api/comments/send-to-team", token, `{"commentIds":["cmt_1"]}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestTeamAlwaysGetsVisibleView(t *testing.T) {
	f := fakeWithRole("team")
	visibleCalled := false
	allCalled := false
	f.listVisibleForTeamFn = func(context.Context, string) ([]store.Comment, error) {
		visibleCalled = true
		return nil, nil
	}
	f.listCommentsBySubjectFn = func(context.Context, string) ([]store.Comment, error) {
		allCalled = true
		return nil, nil
	}
	server, svc := newTestServer(f)
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodGet, "/api/subjects/proj_1/comments?view=all", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if !visibleCalled || allCalled {
		t.Fatalf("expected visible view only, visible=%v all=%v", visibleCalled, allCalled)
	}
}

func TestCommentAuthorTypeDefaultsFromRole(t *testing.T) {
	for role, wantType := range map[string]string{
		"client":    "client",
		"team":      "team",
		"architect": "architect",
	} {
		t.Run(role, func(t *testing.T) {
			f := fakeWithRole(role)
			var inserted store.Comment
			f.insertCommentFn = func(_ context.Context, comment store.Comment) error {
				inserted = comment
				return nil
			}
			server, svc := newTestServer(f)
			token := tokenForUser(t, svc, "usr_7")

			body := `{"roundId":"rnd_1","subjectId":"proj_1","content":"tighten the stair detail"}`
			rr := doRequest(t, server, http.MethodPost, "/api/comments", token, body)
			if rr.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
			}
			if inserted.AuthorType != wantType {
				t.Fatalf("expected author type %s, got %s", wantType, inserted.AuthorType)
			}
		})
	}
}

func TestOfficeChannelForbiddenForClient(t *testing.T) {
	server, svc := newTestServer(fakeWithRole("client"))
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodGet, "/api/chat/office/messages", token, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodGet, "/api/chat/client_architect/messages", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestChatPostUsesSessionIdentity(t *testing.T) {
	f := fakeWithRole("architect")
	var inserted store.ChatMessage
	f.insertChatMessageFn = func(_ context.Context, message store.ChatMessage) error {
		inserted = message
		return nil
	}
	server, svc := newTestServer(f)
	token := tokenForUser(t, svc, "usr_9")

	rr := doRequest(t, server, http.MethodPost, "/api/chat/office/messages", token, `{"content":"@ann ping","authorId":"spoofed","authorName":"Spoofed"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if inserted.AuthorID != "usr_9" || inserted.AuthorName != "Test User" {
		t.Fatalf("expected session identity, got %s/%s", inserted.AuthorID, inserted.AuthorName)
	}
	if len(inserted.Mentions) != 1 || inserted.Mentions[0] != "ann" {
		t.Fatalf("expected mention ann, got %v", inserted.Mentions)
	}
}

func TestPollWithoutSinceStartsFromNow(t *testing.T) {
	f := fakeWithRole("client")
	var gotSince time.Time
	f.listNotificationsFn = func(_ context.Context, _ string, since time.Time, _ int) ([]store.Notification, error) {
		gotSince = since
		return []store.Notification{{ID: "ntf_1", UserID: "usr_1", Type: "new_comment"}}, nil
	}
	server, svc := newTestServer(f)
	token := tokenForUser(t, svc, "usr_1")

	before := time.Now().UTC()
	rr := doRequest(t, server, http.MethodGet, "/api/notifications/poll", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if gotSince.Before(before.Add(-time.Second)) {
		t.Fatalf("expected since to default to request time, got %v", gotSince)
	}
}

func TestNotificationsSinceQueryValidation(t *testing.T) {
	server, svc := newTestServer(fakeWithRole("architect"))
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodGet, "/api/notifications?since=yesterday", token, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestMarkNotificationReadRoute(t *testing.T) {
	f := fakeWithRole("client")
	var markedID string
	f.markNotificationReadFn = func(_ context.Context, id string) error {
		markedID = id
		return nil
	}
	server, svc := newTestServer(f)
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodPost, "/api/notifications/ntf_7/read", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if markedID != "ntf_7" {
		t.Fatalf("expected ntf_7, got %s", markedID)
	}
}

func TestExportForbiddenForClient(t *testing.T) {
	server, svc := newTestServer(fakeWithRole("client"))
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodGet, "/api/rounds/rnd_1/export.pdf", token, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestExportUnavailableWithoutService(t *testing.T) {
	server, svc := newTestServer(fakeWithRole("architect"))
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodGet, "/api/rounds/rnd_1/export.pdf", token, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	server, svc := newTestServer(fakeWithRole("architect"))
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodGet, "/api/widgets", token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSessionLookupFailureIs500(t *testing.T) {
	f := &fakeStore{
		getUserByIDFn: func(context.Context, string) (store.User, error) {
			return store.User{}, errors.New("connection refused")
		},
	}
	server, svc := newTestServer(f)
	token := tokenForUser(t, svc, "usr_1")

	rr := doRequest(t, server, http.MethodGet, "/api/rounds/rnd_1", token, "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
