package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kaaltube/backend/internal/auth"
	"github.com/kaaltube/backend/internal/media"
	"github.com/kaaltube/backend/internal/middleware"
	"github.com/kaaltube/backend/internal/models"
)

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     []string        `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func postJSON(t *testing.T, router http.Handler, path string, payload any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return jsonRequest(t, router, http.MethodPost, path, payload, cookies...)
}

func jsonRequest(t *testing.T, router http.Handler, method, path string, payload any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// testStack wires the real auth services over in-memory stores behind the
// full router.
type testStack struct {
	router   http.Handler
	users    *memUsers
	mailer   *captureSender
	tokens   *auth.TokenService
	owners   map[string]models.OwnerSummary
	videos   *memVideos
	comments *memComments
	subs     *memSubscriptions
	search   *staticSearch
	cleaner  *fakeCleaner
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	users := newMemUsers()
	mailer := &captureSender{}
	tokens := auth.NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, users)
	otp := auth.NewOTPService(users, mailer)

	owners := map[string]models.OwnerSummary{}
	videos := newMemVideos(owners)
	comments := newMemComments(owners)
	subs := newMemSubscriptions(owners)
	search := &staticSearch{}
	cleaner := &fakeCleaner{}

	deps := Dependencies{
		Users:         users,
		Tokens:        tokens,
		OTP:           otp,
		Videos:        videos,
		Comments:      comments,
		Likes:         newMemLikes(videos, comments),
		Subscriptions: subs,
		Search:        search,
		Assets:        newFakeUploader(),
		Cleaner:       cleaner,
		CDN:           media.NewCDN("https://cdn.test", ""),
	}

	return &testStack{
		router:   NewRouter(deps),
		users:    users,
		mailer:   mailer,
		tokens:   tokens,
		owners:   owners,
		videos:   videos,
		comments: comments,
		subs:     subs,
		search:   search,
		cleaner:  cleaner,
	}
}

// sessionFor mints a valid access cookie for the user.
func (s *testStack) sessionFor(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	pair, err := s.tokens.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return &http.Cookie{Name: middleware.AccessCookie, Value: pair.AccessToken}
}

func (s *testStack) do(method, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

var otpCodePattern = regexp.MustCompile(`\b(\d{6})\b`)

func (s *testStack) lastOTPCode(t *testing.T) string {
	t.Helper()
	msg, ok := s.mailer.last()
	if !ok {
		t.Fatal("expected a verification email")
	}
	match := otpCodePattern.FindStringSubmatch(msg.Text)
	if match == nil {
		t.Fatalf("no code found in email body %q", msg.Text)
	}
	return match[1]
}

func TestRegisterValidation(t *testing.T) {
	stack := newTestStack(t)

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"missing fields", map[string]string{"username": "ada"}},
		{"invalid email", map[string]string{"username": "ada", "email": "nope", "fullName": "Ada", "password": "longenough"}},
		{"short password", map[string]string{"username": "ada", "email": "ada@example.com", "fullName": "Ada", "password": "short"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, stack.router, "/api/v1/users/register", tc.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			env := decodeEnvelope(t, rec)
			if env.Success {
				t.Fatal("expected failure envelope")
			}
		})
	}
}

func TestRegisterConflict(t *testing.T) {
	stack := newTestStack(t)

	payload := map[string]string{
		"username": "ada", "email": "ada@example.com",
		"fullName": "Ada Lovelace", "password": "longenough",
	}

	if rec := postJSON(t, stack.router, "/api/v1/users/register", payload); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec := postJSON(t, stack.router, "/api/v1/users/register", payload); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	stack := newTestStack(t)

	rec := postJSON(t, stack.router, "/api/v1/users/register", map[string]string{
		"username": "ada", "email": "ada@example.com",
		"fullName": "Ada Lovelace", "password": "longenough",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	login := map[string]string{"email": "ada@example.com", "password": "longenough"}

	// Unverified accounts cannot log in.
	rec = postJSON(t, stack.router, "/api/v1/users/login", login)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("login before verify: expected 403, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); !strings.Contains(env.Message, "verify your email") {
		t.Fatalf("unexpected message %q", env.Message)
	}

	rec = postJSON(t, stack.router, "/api/v1/users/verify-otp", map[string]string{
		"email": "ada@example.com", "code": stack.lastOTPCode(t),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, stack.router, "/api/v1/users/login", login)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	byName := map[string]*http.Cookie{}
	for _, cookie := range cookies {
		byName[cookie.Name] = cookie
	}
	access, ok := byName[middleware.AccessCookie]
	if !ok || access.Value == "" {
		t.Fatal("expected access token cookie on login")
	}
	refresh, ok := byName[middleware.RefreshCookie]
	if !ok || refresh.Value == "" {
		t.Fatal("expected refresh token cookie on login")
	}
	if !access.HttpOnly || !access.Secure {
		t.Fatalf("unexpected access cookie attributes: %+v", access)
	}

	// The cookie authenticates subsequent requests.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(access)
	meRec := httptest.NewRecorder()
	stack.router.ServeHTTP(meRec, req)
	if meRec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", meRec.Code)
	}
	env := decodeEnvelope(t, meRec)
	var me userResponse
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if me.Username != "ada" || !me.Verified {
		t.Fatalf("unexpected current user %+v", me)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	stack := newTestStack(t)
	seedVerifiedUser(t, stack, "ada", "ada@example.com", "longenough")

	rec := postJSON(t, stack.router, "/api/v1/users/login", map[string]string{
		"email": "ada@example.com", "password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = postJSON(t, stack.router, "/api/v1/users/login", map[string]string{
		"email": "nobody@example.com", "password": "longenough",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown account: expected 404, got %d", rec.Code)
	}
}

func TestRefreshReuseRejected(t *testing.T) {
	stack := newTestStack(t)
	userID := seedVerifiedUser(t, stack, "ada", "ada@example.com", "longenough")

	pair, err := stack.tokens.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Signing is second-granular; move the clock so the rotated pair differs.
	stack.tokens.NowFunc = func() time.Time { return time.Now().UTC().Add(2 * time.Second) }

	// First rotation succeeds and supersedes the presented token.
	rec := postJSON(t, stack.router, "/api/v1/users/refresh-token", nil,
		&http.Cookie{Name: middleware.RefreshCookie, Value: pair.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, stack.router, "/api/v1/users/refresh-token", nil,
		&http.Cookie{Name: middleware.RefreshCookie, Value: pair.RefreshToken})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("reuse: expected 403, got %d", rec.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	stack := newTestStack(t)
	userID := seedVerifiedUser(t, stack, "ada", "ada@example.com", "longenough")

	pair, err := stack.tokens.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := postJSON(t, stack.router, "/api/v1/users/logout", nil,
		&http.Cookie{Name: middleware.AccessCookie, Value: pair.AccessToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}

	user, err := stack.users.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if user.RefreshToken != "" {
		t.Fatal("expected stored refresh token cleared")
	}

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Value != "" {
			t.Fatalf("expected cleared cookie %s", cookie.Name)
		}
	}
}

func TestResendOTPAlreadyVerified(t *testing.T) {
	stack := newTestStack(t)
	seedVerifiedUser(t, stack, "ada", "ada@example.com", "longenough")

	rec := postJSON(t, stack.router, "/api/v1/users/resend-otp", map[string]string{
		"email": "ada@example.com",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func seedVerifiedUser(t *testing.T, stack *testStack, username, emailAddr, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     emailAddr,
		FullName:  strings.ToUpper(username[:1]) + username[1:],
		Password:  string(hashed),
		Verified:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := stack.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	stack.owners[user.ID] = models.OwnerSummary{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
	}
	return user.ID
}
