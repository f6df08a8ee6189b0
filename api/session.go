package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

const refreshTokenKey = "refreshToken"

// session returns the cookie session. A cookie that fails to decode yields a fresh session
// together with the error.
func (h *Handler) session(r *http.Request) (*sessions.Session, error) {
	session, err := h.cookieStore.Get(r, h.sessionName)
	if err != nil {
		return session, fmt.Errorf("error getting session: %w", err)
	}

	return session, nil
}

// storedRefreshToken returns the refresh token kept in the cookie, or an empty string.
func (h *Handler) storedRefreshToken(r *http.Request) string {
	session, err := h.session(r)
	if err != nil {
		return ""
	}

	token, _ := session.Values[refreshTokenKey].(string)

	return token
}

func (h *Handler) storeRefreshToken(w http.ResponseWriter, r *http.Request, token string) error {
	session, err := h.session(r)
	if session == nil {
		return err
	}

	if token == "" {
		delete(session.Values, refreshTokenKey)
	} else {
		session.Values[refreshTokenKey] = token
	}

	err = session.Save(r, w)
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}

	return nil
}

// refreshTokenFromRequest prefers the token in the body and falls back to the cookie.
func (h *Handler) refreshTokenFromRequest(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}

	return h.storedRefreshToken(r)
}
