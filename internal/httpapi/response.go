package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/reelauth"
)

type errorBody struct {
	Error             string `json:"error"`
	NeedsVerification bool   `json:"needsVerification,omitempty"`
	RetryAfter        int    `json:"retryAfter,omitempty"`
}

type okBody struct {
	OK bool `json:"ok"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// fail maps engine errors to the status taxonomy. Anything unrecognised is
// logged and answered with a generic 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var rl *reelauth.RateLimitError
	switch {
	case errors.As(err, &rl):
		secs := rl.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: rl.Error(), RetryAfter: secs})
	case errors.Is(err, reelauth.ErrEmailNotVerified):
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:             "please verify your email before logging in",
			NeedsVerification: true,
		})
	case errors.Is(err, reelauth.ErrMissingField),
		errors.Is(err, reelauth.ErrPasswordPolicy),
		errors.Is(err, reelauth.ErrInvalidUserID),
		errors.Is(err, reelauth.ErrVerificationInvalid),
		errors.Is(err, reelauth.ErrResetInvalid),
		errors.Is(err, reelauth.ErrInvalidList),
		errors.Is(err, reelauth.ErrInvalidReaction),
		errors.Is(err, reelauth.ErrInvalidMovieID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, reelauth.ErrAccountExists), errors.Is(err, reelauth.ErrEmailTaken):
		writeError(w, http.StatusConflict, reelauth.ErrAccountExists.Error())
	case errors.Is(err, reelauth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, reelauth.ErrInvalidCredentials.Error())
	case errors.Is(err, reelauth.ErrRefreshMissing):
		writeError(w, http.StatusUnauthorized, reelauth.ErrRefreshMissing.Error())
	case errors.Is(err, reelauth.ErrRefreshInvalid):
		writeError(w, http.StatusUnauthorized, reelauth.ErrRefreshInvalid.Error())
	case errors.Is(err, reelauth.ErrUnauthorized), errors.Is(err, reelauth.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, reelauth.ErrUnauthorized.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

const maxBodyBytes = 1 << 20

// decode reads a JSON body into dst and runs struct validation. An empty
// body decodes as the zero value so missing fields report by name.
// normalizer is implemented by request bodies that clean their fields
// before validation.
type normalizer interface {
	normalize()
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeLenient(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func decodeLenient(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "max":
		return fe.Field() + " is too long"
	default:
		return fe.Field() + " is invalid"
	}
}

// clientIP is the host part of RemoteAddr, which middleware.RealIP rewrites
// only for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
