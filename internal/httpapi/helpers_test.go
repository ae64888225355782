package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/reelauth"
	"github.com/MrEthical07/reelauth/internal/stores/memory"
	"github.com/MrEthical07/reelauth/recommend"
)

type mail struct {
	kind  string
	to    string
	token string
	user  string
}

type mailbox struct {
	mu   sync.Mutex
	sent []mail
}

func (m *mailbox) NotifyVerification(_ context.Context, to, _, link string) error {
	return m.record("verify", to, link)
}

func (m *mailbox) NotifyPasswordReset(_ context.Context, to, _, link string) error {
	return m.record("reset", to, link)
}

func (m *mailbox) record(kind, to, link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail{kind: kind, to: to, token: u.Query().Get("token"), user: u.Query().Get("u")})
	return nil
}

func (m *mailbox) last(t *testing.T, kind string) mail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i]
		}
	}
	t.Fatalf("no %s mail sent", kind)
	return mail{}
}

type testServer struct {
	router  http.Handler
	store   *memory.Users
	mailbox *mailbox
}

type serverOption func(*reelauth.Config, *Options)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := reelauth.DefaultConfig()
	cfg.JWT.CurrentKID = "k1"
	cfg.JWT.Keys = map[string][]byte{"k1": []byte("http-test-secret-0123456789abcdef")}
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Tokens.HashCost = bcrypt.MinCost
	cfg.RateLimit.Mail = reelauth.RateLimitRule{}
	cfg.Links = reelauth.LinkConfig{ClientURL: "http://app.test", ServerURL: "http://api.test"}

	feed, err := recommend.NewService(recommend.NewMemoryCatalog([]recommend.Movie{
		{ID: 1, Title: "Alien", Genres: []string{"horror", "scifi"}, Popularity: 80, VoteAverage: 8.4},
		{ID: 2, Title: "Aliens", Genres: []string{"action", "scifi"}, Popularity: 70, VoteAverage: 8.3},
		{ID: 3, Title: "Heat", Genres: []string{"crime"}, Popularity: 60, VoteAverage: 8.3},
		{ID: 4, Title: "Notting Hill", Genres: []string{"romance"}, Popularity: 50, VoteAverage: 7.2},
	}), 0)
	require.NoError(t, err)

	o := Options{
		Feed:      feed,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ClientURL: cfg.Links.ClientURL,
	}
	for _, fn := range opts {
		fn(&cfg, &o)
	}

	ts := &testServer{store: memory.NewUsers(), mailbox: &mailbox{}}
	engine, err := reelauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(ts.store).
		WithNotifier(ts.mailbox).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	o.Auth = engine
	o.RefreshTTL = cfg.JWT.RefreshTTL
	router, err := NewRouter(o)
	require.NoError(t, err)
	ts.router = router
	return ts
}

type reqOption func(*http.Request)

func withCookie(c *http.Cookie) reqOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withBearer(token string) reqOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withHeader(key, value string) reqOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts ...reqOption) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range opts {
		fn(req)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", refreshCookieName)
	return nil
}

// verifiedLogin registers, follows the mailed verification link and logs in.
func (s *testServer) verifiedLogin(t *testing.T, email, password string) (string, *http.Cookie) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	m := s.mailbox.last(t, "verify")
	rec = s.do(t, http.MethodGet, "/auth/verify-email?token="+url.QueryEscape(m.token)+"&u="+m.user, nil)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	return s.login(t, email, password)
}

func (s *testServer) login(t *testing.T, email, password string) (string, *http.Cookie) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	token, _ := body["accessToken"].(string)
	require.NotEmpty(t, token)
	return token, refreshCookie(t, rec)
}
