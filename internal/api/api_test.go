package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/socialnet/network/internal/api/objects"
	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/internal/db/dbtest"
	"github.com/socialnet/network/internal/feed"
	"github.com/socialnet/network/internal/models"
	"github.com/socialnet/network/internal/social"
	"github.com/socialnet/network/pkg/config"
)

type testServer struct {
	t        *testing.T
	engine   *gin.Engine
	database *db.DB
	cookie   string
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if cfg == nil {
		cfg = &config.Config{}
	}
	database := dbtest.New(t)
	router := NewRouter(cfg, database, nil, NewSessionManager(&cfg.Session))
	router.accounts = router.accounts.WithHashCost(bcrypt.MinCost)
	t.Cleanup(router.Close)

	engine := gin.New()
	router.SetupRoutes(engine)
	return &testServer{t: t, engine: engine, database: database, cookie: router.sessions.Cookie.Name}
}

// request performs one request, carrying session when it is non-nil
func (s *testServer) request(method, path, contentType string, body io.Reader, session *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if session != nil {
		req.AddCookie(session)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) form(path string, values url.Values, session *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.request(http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()), session)
}

func (s *testServer) sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	s.t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == s.cookie {
			return c
		}
	}
	s.t.Fatalf("response has no %s cookie", s.cookie)
	return nil
}

// signUp registers username over HTTP and returns its account and session
func (s *testServer) signUp(username string) (*models.Account, *http.Cookie) {
	s.t.Helper()
	rec := s.form("/register", url.Values{
		"username":     {username},
		"email":        {username + "@example.com"},
		"password":     {"secret"},
		"confirmation": {"secret"},
	}, nil)
	if rec.Code != http.StatusFound {
		s.t.Fatalf("register %s: status = %d, body = %s", username, rec.Code, rec.Body.String())
	}
	account, err := db.NewAccountRepository(db.NewRepository(s.database.DB)).GetByUsername(context.Background(), username)
	if err != nil || account == nil {
		s.t.Fatalf("registered account %s not found: %v", username, err)
	}
	return account, s.sessionCookie(rec)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, code int, message string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, code, rec.Body.String())
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] != message {
		t.Errorf("error = %q, want %q", body["error"], message)
	}
}

type pageResponse struct {
	Page    feed.Page       `json:"page"`
	Profile *social.Profile `json:"profile"`
}

func TestIndexPagination(t *testing.T) {
	s := newTestServer(t, nil)
	author := dbtest.Account(t, s.database, "author")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		dbtest.Post(t, s.database, author.ID, fmt.Sprintf("post %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	tests := []struct {
		query  string
		number int
		posts  int
	}{
		{"", 1, 10},
		{"?page=2", 2, 2},
		{"?page=7", 2, 2},
		{"?page=-1", 1, 10},
		{"?page=abc", 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := s.request(http.MethodGet, "/"+tt.query, "", nil, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp pageResponse
			decode(t, rec, &resp)
			if resp.Page.Number != tt.number || len(resp.Page.Posts) != tt.posts || resp.Page.NumPages != 2 {
				t.Errorf("page = %d (%d posts of %d pages), want %d (%d posts of 2 pages)",
					resp.Page.Number, len(resp.Page.Posts), resp.Page.NumPages, tt.number, tt.posts)
			}
		})
	}
}

func TestPostJSONFields(t *testing.T) {
	s := newTestServer(t, nil)
	author := dbtest.Account(t, s.database, "author")
	dbtest.Post(t, s.database, author.ID, "hello", time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC))

	rec := s.request(http.MethodGet, "/", "", nil, nil)
	var raw struct {
		Page struct {
			Posts []map[string]interface{} `json:"posts"`
		} `json:"page"`
	}
	decode(t, rec, &raw)
	if len(raw.Page.Posts) != 1 {
		t.Fatalf("posts = %v, want one", raw.Page.Posts)
	}
	post := raw.Page.Posts[0]
	for _, key := range []string{"post_id", "poster", "poster_id", "likers", "timestamp", "body"} {
		if _, ok := post[key]; !ok {
			t.Errorf("post is missing %q: %v", key, post)
		}
	}
	if _, ok := post["liked"]; ok {
		t.Error("anonymous feed should not include liked")
	}
	if post["timestamp"] != "Mar 01 2024, 02:05 PM" {
		t.Errorf("timestamp = %v", post["timestamp"])
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	s := newTestServer(t, nil)
	_, session := s.signUp("alice")

	if rec := s.request(http.MethodGet, "/following", "", nil, session); rec.Code != http.StatusOK {
		t.Fatalf("GET /following signed in: status = %d, want 200", rec.Code)
	}

	register := func(username, password, confirmation string) *httptest.ResponseRecorder {
		return s.form("/register", url.Values{
			"username": {username}, "email": {""}, "password": {password}, "confirmation": {confirmation},
		}, nil)
	}
	assertError(t, register("bob", "a", "b"), http.StatusBadRequest, "Passwords must match.")
	assertError(t, register("alice", "a", "a"), http.StatusConflict, "Username already taken.")

	rec := s.form("/login", url.Values{"username": {"alice"}, "password": {"wrong"}}, nil)
	assertError(t, rec, http.StatusUnauthorized, "Invalid username and/or password.")

	rec = s.form("/login?next=%2Ffollowing", url.Values{"username": {"alice"}, "password": {"secret"}}, nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/following" {
		t.Fatalf("login: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
	session = s.sessionCookie(rec)

	rec = s.request(http.MethodPost, "/logout", "", nil, session)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("logout: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = s.request(http.MethodGet, "/following", "", nil, session)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login?next=%2Ffollowing" {
		t.Errorf("GET /following after logout: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLoginRequired(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.form("/post", url.Values{"body": {"hi"}}, nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login?next=%2Fpost" {
		t.Errorf("POST /post: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}

	assertError(t, s.request(http.MethodGet, "/edit/1", "", nil, nil), http.StatusUnauthorized, "Login required.")
	assertError(t, s.request(http.MethodPost, "/like/1", "", nil, nil), http.StatusUnauthorized, "Login required.")
}

func TestFollowingFeedScenario(t *testing.T) {
	s := newTestServer(t, nil)
	a, aSession := s.signUp("a")
	b, bSession := s.signUp("b")

	for _, body := range []string{"first", "second"} {
		rec := s.form("/post", url.Values{"body": {body}}, bSession)
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
			t.Fatalf("POST /post: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
		}
	}

	rec := s.form(fmt.Sprintf("/follow_unfollow/%d", b.ID), url.Values{"following_btn": {"Follow"}}, aSession)
	if want := fmt.Sprintf("/user/%d", b.ID); rec.Code != http.StatusFound || rec.Header().Get("Location") != want {
		t.Fatalf("follow: status = %d, location = %q, want %q", rec.Code, rec.Header().Get("Location"), want)
	}

	var resp pageResponse
	decode(t, s.request(http.MethodGet, "/following", "", nil, aSession), &resp)
	if len(resp.Page.Posts) != 2 {
		t.Fatalf("following feed has %d posts, want 2", len(resp.Page.Posts))
	}
	if resp.Page.Posts[0].Body != "second" || resp.Page.Posts[1].Body != "first" {
		t.Errorf("following feed = %q, %q; want newest first", resp.Page.Posts[0].Body, resp.Page.Posts[1].Body)
	}

	resp = pageResponse{}
	decode(t, s.request(http.MethodGet, fmt.Sprintf("/user/%d", b.ID), "", nil, aSession), &resp)
	if resp.Profile == nil || !resp.Profile.IsFollowing || resp.Profile.Followers != 1 {
		t.Errorf("profile = %+v, want followed by a", resp.Profile)
	}
	if len(resp.Page.Posts) != 2 {
		t.Errorf("profile feed has %d posts, want 2", len(resp.Page.Posts))
	}

	s.form(fmt.Sprintf("/follow_unfollow/%d", b.ID), url.Values{"following_btn": {"Unfollow"}}, aSession)
	resp = pageResponse{}
	decode(t, s.request(http.MethodGet, "/following", "", nil, aSession), &resp)
	if len(resp.Page.Posts) != 0 {
		t.Errorf("following feed after unfollow has %d posts, want 0", len(resp.Page.Posts))
	}

	rec = s.form(fmt.Sprintf("/follow_unfollow/%d", a.ID), url.Values{"following_btn": {"Follow"}}, aSession)
	assertError(t, rec, http.StatusBadRequest, "You cannot follow yourself.")
	rec = s.form("/follow_unfollow/9999", url.Values{"following_btn": {"Follow"}}, aSession)
	assertError(t, rec, http.StatusNotFound, "User not found.")
}

func TestProfileNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	assertError(t, s.request(http.MethodGet, "/user/9999", "", nil, nil), http.StatusNotFound, "User not found.")
	assertError(t, s.request(http.MethodGet, "/user/abc", "", nil, nil), http.StatusNotFound, "User not found.")
}

func TestEditEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	owner, ownerSession := s.signUp("owner")
	_, otherSession := s.signUp("other")
	post := dbtest.Post(t, s.database, owner.ID, "original", time.Now())
	path := fmt.Sprintf("/edit/%d", post.ID)

	put := func(body string, session *http.Cookie) *httptest.ResponseRecorder {
		return s.request(http.MethodPut, path, "application/json", strings.NewReader(body), session)
	}
	read := func() objects.Post {
		rec := s.request(http.MethodGet, path, "", nil, ownerSession)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: status = %d", path, rec.Code)
		}
		var p objects.Post
		decode(t, rec, &p)
		return p
	}

	if got := read(); got.Body != "original" || got.PostID != post.ID {
		t.Errorf("GET = %+v", got)
	}

	if rec := put(`{"text": null}`, ownerSession); rec.Code != http.StatusNoContent {
		t.Fatalf("PUT null: status = %d, want 204", rec.Code)
	}
	if got := read(); got.Body != "original" {
		t.Errorf("body after null text = %q, want unchanged", got.Body)
	}

	if rec := put(`{"text": "rewritten"}`, ownerSession); rec.Code != http.StatusNoContent {
		t.Fatalf("PUT text: status = %d, want 204", rec.Code)
	}
	if got := read(); got.Body != "rewritten" {
		t.Errorf("body = %q, want rewritten", got.Body)
	}

	assertError(t, put(`{"text": "x"}`, otherSession), http.StatusForbidden, "You cannot edit this post.")
	assertError(t, s.request(http.MethodGet, path, "", nil, otherSession), http.StatusForbidden, "You cannot edit this post.")
	assertError(t, s.request(http.MethodDelete, path, "", nil, ownerSession), http.StatusBadRequest, "GET or PUT request required.")
	assertError(t, s.request(http.MethodGet, "/edit/9999", "", nil, ownerSession), http.StatusNotFound, "Post not found.")
	assertError(t, put(`not json`, ownerSession), http.StatusBadRequest, "Invalid JSON body.")
	assertError(t, put(`not json`, otherSession), http.StatusForbidden, "You cannot edit this post.")
}

func TestLikeEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	owner, ownerSession := s.signUp("owner")
	_, fanSession := s.signUp("fan")
	post := dbtest.Post(t, s.database, owner.ID, "likeable", time.Now())
	path := fmt.Sprintf("/like/%d", post.ID)

	assertError(t, s.request(http.MethodPost, path, "", nil, ownerSession), http.StatusForbidden, "You cannot like this post.")

	for i, want := range []int64{1, 0} {
		rec := s.request(http.MethodPost, path, "", nil, fanSession)
		if rec.Code != http.StatusOK {
			t.Fatalf("toggle %d: status = %d", i, rec.Code)
		}
		var p objects.Post
		decode(t, rec, &p)
		if p.Likers != want {
			t.Errorf("toggle %d: likers = %d, want %d", i, p.Likers, want)
		}
	}

	assertError(t, s.request(http.MethodPost, "/like/9999", "", nil, fanSession), http.StatusNotFound, "Post not found.")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true, PerMinute: 1, Burst: 1},
	})
	_, session := s.signUp("writer")

	if rec := s.form("/post", url.Values{"body": {"one"}}, session); rec.Code != http.StatusFound {
		t.Fatalf("first post: status = %d, want 302", rec.Code)
	}
	rec := s.form("/post", url.Values{"body": {"two"}}, session)
	assertError(t, rec, http.StatusTooManyRequests, "Too many requests.")
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: true, PerMinute: 60, Burst: 1})
	defer rl.Stop()

	rl.Allow(1)
	rl.Allow(2)
	if rl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rl.Len())
	}
	rl.cleanup(time.Now().Add(time.Hour))
	if rl.Len() != 0 {
		t.Errorf("Len() after cleanup = %d, want 0", rl.Len())
	}

	if NewRateLimiter(&config.RateLimitConfig{}) != nil {
		t.Error("disabled rate limiter should be nil")
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.request(http.MethodGet, "/health", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("response has no request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"not found", social.PostNotFound(), http.StatusNotFound, "Post not found."},
		{"forbidden", social.Forbidden("no"), http.StatusForbidden, "no"},
		{"bad request", social.BadRequest("bad"), http.StatusBadRequest, "bad"},
		{"conflict", social.Conflict("taken"), http.StatusConflict, "taken"},
		{"unauthorized", social.Unauthorized("who"), http.StatusUnauthorized, "who"},
		{"wrapped", fmt.Errorf("outer: %w", social.AccountNotFound()), http.StatusNotFound, "User not found."},
		{"api error", NewError(http.StatusTeapot, "tea"), http.StatusTeapot, "tea"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "Internal server error."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got.Code != tt.code || got.Message != tt.message {
				t.Errorf("FromError() = %d %q, want %d %q", got.Code, got.Message, tt.code, tt.message)
			}
		})
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/following":           "/following",
		"//evil.example":       "/",
		"https://evil.example": "/",
		"/\\evil.example":      "/",
	}
	for in, want := range tests {
		if got := safeNext(in); got != want {
			t.Errorf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}
