package httpapi

import (
	"net/http"
	"time"
)

const (
	refreshCookieName = "rt"
	refreshCookiePath = "/auth"
)

type cookieConfig struct {
	production bool
	maxAge     time.Duration
}

func (c cookieConfig) sameSite() http.SameSite {
	if c.production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteStrictMode
}

func (c cookieConfig) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(c.maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.production,
		SameSite: c.sameSite(),
	})
}

func (c cookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.production,
		SameSite: c.sameSite(),
	})
}

func refreshToken(r *http.Request) string {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
