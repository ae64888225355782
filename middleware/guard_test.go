package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/reelauth"
)

type fakeVerifier struct {
	token string
	calls int
}

func (f *fakeVerifier) ValidateAccess(token string) (*reelauth.Identity, error) {
	f.calls++
	if token != f.token {
		return nil, reelauth.ErrUnauthorized
	}
	return &reelauth.Identity{UserID: "64b7f0c2a1b2c3d4e5f60718", Email: "a@x.com"}, nil
}

func TestGuardRejects(t *testing.T) {
	v := &fakeVerifier{token: "good"}
	h := Guard(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "good", "Basic good", "Bearer ", "Bearer bad"} {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", header, rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"error":"unauthorized"}` {
			t.Fatalf("%q: unexpected body %s", header, rec.Body.String())
		}
	}
	if v.calls != 1 {
		t.Fatalf("verifier should only see well-formed headers, got %d calls", v.calls)
	}
}

func TestGuardAttachesIdentity(t *testing.T) {
	v := &fakeVerifier{token: "good"}
	var got *reelauth.Identity
	h := Guard(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("identity missing")
		}
		got = id
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got == nil || got.Email != "a@x.com" {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestGuardNilVerifier(t *testing.T) {
	h := Guard(nil)(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	out := buf.String()
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"path":"/auth/login"`) {
		t.Fatalf("unexpected log line %s", out)
	}
}

