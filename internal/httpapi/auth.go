package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/reelauth"
)

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"displayName" validate:"omitempty,max=64"`
}

func (r *registerRequest) normalize() {
	r.Email = reelauth.NormalizeEmail(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
}

type registerResponse struct {
	OK     bool   `json:"ok"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	AccessToken string              `json:"accessToken"`
	User        reelauth.PublicUser `json:"user"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetRequest struct {
	Token    string `json:"token" validate:"required"`
	UserID   string `json:"u" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.auth.Register(r.Context(), reelauth.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{OK: true, UserID: res.UserID, Email: res.Email})
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := reelauth.WithClientIP(r.Context(), clientIP(r))
	res, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.cookies.set(w, res.RefreshToken)
	writeJSON(w, http.StatusOK, sessionResponse{AccessToken: res.AccessToken, User: res.User})
}

// Refresh handles POST /auth/refresh. Only the cookie is read.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.Refresh(r.Context(), refreshToken(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.cookies.set(w, res.RefreshToken)
	writeJSON(w, http.StatusOK, sessionResponse{AccessToken: res.AccessToken, User: res.User})
}

// Logout handles POST /auth/logout. It always succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := refreshToken(r); token != "" {
		h.auth.Logout(r.Context(), token)
	}
	h.cookies.clear(w)
	writeOK(w)
}

// ResendVerification handles POST /auth/resend-verification. Unknown and
// already verified addresses get the same answer as a real resend.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.auth.ResendVerification(r.Context(), req.Email); err != nil {
		if errors.Is(err, reelauth.ErrMissingField) {
			h.fail(w, r, err)
			return
		}
		h.logger.WarnContext(r.Context(), "resend verification failed", "error", err)
	}
	writeOK(w)
}

// VerifyEmail handles GET /auth/verify-email?token=&u= from the mailed
// link and redirects the browser to the client on success.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.auth.VerifyEmail(r.Context(), q.Get("token"), q.Get("u")); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, h.clientURL+"/verify-email/success", http.StatusFound)
}

// Forgot handles POST /auth/forgot. The answer never depends on the
// account.
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeLenient(r, &req); err == nil && req.Email != "" {
		if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
			h.logger.WarnContext(r.Context(), "forgot password failed", "error", err)
		}
	}
	writeOK(w)
}

// Reset handles POST /auth/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Token, req.UserID, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w)
}
