package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIRequiresBearer(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/me", "/api/sessions", "/api/feed"} {
		rec := s.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "unauthorized", decodeBody(t, rec)["error"])
	}

	rec := s.do(t, http.MethodGet, "/api/me", nil, withBearer("not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeReturnsProfile(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.verifiedLogin(t, "a@x.com", "Password123!")

	rec := s.do(t, http.MethodGet, "/api/me", nil, withBearer(access))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, true, body["emailVerified"])
	assert.Equal(t, []any{}, body["watched"])
	_, leaked := body["passwordHash"]
	assert.False(t, leaked)
}

func TestListsAndReactions(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.verifiedLogin(t, "a@x.com", "Password123!")
	auth := withBearer(access)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/lists/watched/603", nil, auth).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/lists/watched/603", nil, auth).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/lists/to-watch/27205", nil, auth).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/reactions/603", map[string]string{"reaction": "like"}, auth).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/reactions/27205", map[string]string{"reaction": "like"}, auth).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/reactions/27205", map[string]string{"reaction": "dislike"}, auth).Code)

	body := decodeBody(t, s.do(t, http.MethodGet, "/api/me", nil, auth))
	assert.Equal(t, []any{float64(603)}, body["watched"])
	assert.Equal(t, []any{float64(27205)}, body["toWatch"])
	assert.Equal(t, []any{float64(603)}, body["liked"])
	assert.Equal(t, []any{float64(27205)}, body["disliked"])

	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/lists/watched/603", nil, auth).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/reactions/27205", map[string]string{"reaction": "none"}, auth).Code)

	body = decodeBody(t, s.do(t, http.MethodGet, "/api/me", nil, auth))
	assert.Equal(t, []any{}, body["watched"])
	assert.Equal(t, []any{}, body["disliked"])
}

func TestListsRejectBadInput(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.verifiedLogin(t, "a@x.com", "Password123!")
	auth := withBearer(access)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"unknown list", http.MethodPut, "/api/lists/favourites/1", nil},
		{"non numeric id", http.MethodPut, "/api/lists/watched/abc", nil},
		{"zero id", http.MethodDelete, "/api/lists/watched/0", nil},
		{"unknown reaction", http.MethodPut, "/api/reactions/1", map[string]string{"reaction": "love"}},
		{"missing reaction", http.MethodPut, "/api/reactions/1", map[string]string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.method, tc.path, tc.body, auth)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestSessionsCountsLogins(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.verifiedLogin(t, "a@x.com", "Password123!")
	s.login(t, "a@x.com", "Password123!")

	rec := s.do(t, http.MethodGet, "/api/sessions", nil, withBearer(access))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"])
	sessions, _ := body["sessions"].([]any)
	require.Len(t, sessions, 2)
	first, _ := sessions[0].(map[string]any)
	assert.NotEmpty(t, first["jti"])
	_, leaked := first["hash"]
	assert.False(t, leaked)
}

func TestFeedRanksAndValidatesLimit(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.verifiedLogin(t, "a@x.com", "Password123!")
	auth := withBearer(access)

	rec := s.do(t, http.MethodGet, "/api/feed?limit=2", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items, _ := decodeBody(t, rec)["items"].([]any)
	require.Len(t, items, 2)
	top, _ := items[0].(map[string]any)
	assert.EqualValues(t, 1, top["id"], "empty profile falls back to popularity")

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/reactions/1", map[string]string{"reaction": "like"}, auth).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/lists/watched/1", nil, auth).Code)

	rec = s.do(t, http.MethodGet, "/api/feed", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	items, _ = decodeBody(t, rec)["items"].([]any)
	require.NotEmpty(t, items)
	top, _ = items[0].(map[string]any)
	assert.EqualValues(t, 2, top["id"], "shared scifi genre ranks first")
	for _, it := range items {
		assert.NotEqualValues(t, 1, it.(map[string]any)["id"], "watched movies are excluded")
	}

	for _, bad := range []string{"0", "-1", "abc", "1000"} {
		rec = s.do(t, http.MethodGet, "/api/feed?limit="+bad, nil, auth)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}
