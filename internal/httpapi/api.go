package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/reelauth"
	"github.com/MrEthical07/reelauth/middleware"
	"github.com/MrEthical07/reelauth/recommend"
)

const maxFeedLimit = 100

type meResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	EmailVerified bool      `json:"emailVerified"`
	Watched       []int64   `json:"watched"`
	ToWatch       []int64   `json:"toWatch"`
	Liked         []int64   `json:"liked"`
	Disliked      []int64   `json:"disliked"`
	CreatedAt     time.Time `json:"createdAt"`
}

type sessionsResponse struct {
	Count    int                          `json:"count"`
	Sessions []reelauth.RefreshTokenEntry `json:"sessions"`
}

type reactionRequest struct {
	Reaction string `json:"reaction" validate:"required,oneof=like dislike none"`
}

type feedResponse struct {
	Items []recommend.Scored `json:"items"`
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// profile loads the caller's record. ok is false once a response was written.
func (h *Handler) profile(w http.ResponseWriter, r *http.Request) (*reelauth.User, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, reelauth.ErrUnauthorized.Error())
		return nil, false
	}
	u, err := h.auth.Profile(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return u, true
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := h.profile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
		Watched:       nonNil(u.Watched),
		ToWatch:       nonNil(u.ToWatch),
		Liked:         nonNil(u.Liked),
		Disliked:      nonNil(u.Disliked),
		CreatedAt:     u.CreatedAt,
	})
}

// Sessions handles GET /api/sessions.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	u, ok := h.profile(w, r)
	if !ok {
		return
	}
	sessions := u.RefreshTokens
	if sessions == nil {
		sessions = []reelauth.RefreshTokenEntry{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Count: len(sessions), Sessions: sessions})
}

// AddToList handles PUT /api/lists/{list}/{tmdbId}.
func (h *Handler) AddToList(w http.ResponseWriter, r *http.Request) {
	h.mutateList(w, r, h.auth.AddToList)
}

// RemoveFromList handles DELETE /api/lists/{list}/{tmdbId}.
func (h *Handler) RemoveFromList(w http.ResponseWriter, r *http.Request) {
	h.mutateList(w, r, h.auth.RemoveFromList)
}

type listMutation func(ctx context.Context, userID string, list reelauth.List, movieID int64) error

func (h *Handler) mutateList(w http.ResponseWriter, r *http.Request, fn listMutation) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, reelauth.ErrUnauthorized.Error())
		return
	}
	movieID, ok := movieParam(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), id.UserID, reelauth.List(chi.URLParam(r, "list")), movieID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w)
}

// SetReaction handles PUT /api/reactions/{tmdbId}.
func (h *Handler) SetReaction(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, reelauth.ErrUnauthorized.Error())
		return
	}
	movieID, ok := movieParam(w, r)
	if !ok {
		return
	}
	var req reactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.auth.SetReaction(r.Context(), id.UserID, movieID, reelauth.Reaction(req.Reaction)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w)
}

// Feed handles GET /api/feed?limit=.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := recommend.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxFeedLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxFeedLimit))
			return
		}
		limit = n
	}

	u, ok := h.profile(w, r)
	if !ok {
		return
	}
	items, err := h.feed.Feed(r.Context(), recommend.Library{
		Watched:  u.Watched,
		Liked:    u.Liked,
		Disliked: u.Disliked,
	}, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []recommend.Scored{}
	}
	writeJSON(w, http.StatusOK, feedResponse{Items: items})
}

func movieParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tmdbId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, reelauth.ErrInvalidMovieID.Error())
		return 0, false
	}
	return id, true
}
