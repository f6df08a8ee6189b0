package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nasermirzaei89/myboard/authentication"
)

type memberResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	NickName     string    `json:"nickName"`
	Age          int       `json:"age"`
	Role         string    `json:"role"`
	RegisteredAt time.Time `json:"registeredAt"`
}

func newMemberResponse(member *authentication.Member) memberResponse {
	return memberResponse{
		ID:           member.ID,
		Username:     member.Username,
		Name:         member.Name,
		NickName:     member.NickName,
		Age:          member.Age,
		Role:         string(member.Role),
		RegisteredAt: member.RegisteredAt,
	}
}

type tokenPairResponse struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

// writeTokenPair responds with pair and keeps its refresh token in the session cookie.
func (h *Handler) writeTokenPair(w http.ResponseWriter, r *http.Request, pair *authentication.TokenPair) {
	err := h.storeRefreshToken(w, r, pair.RefreshToken)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, tokenPairResponse{
		AccessToken:           pair.AccessToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
	})
}

func (h *Handler) clearRefreshToken(w http.ResponseWriter, r *http.Request) {
	err := h.storeRefreshToken(w, r, "")
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to clear refresh token cookie", "error", err)
	}
}

type signUpRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	NickName string `json:"nickName"`
	Age      int    `json:"age"`
}

func (h *Handler) HandleSignUp() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body signUpRequest

		err := readJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		member, err := h.authSvc.Register(r.Context(), authentication.RegisterRequest{
			Username: body.Username,
			Password: body.Password,
			Name:     body.Name,
			NickName: body.NickName,
			Age:      body.Age,
			Role:     authentication.RoleUser,
		})
		if err != nil {
			writeError(w, r, err)

			return
		}

		writeJSON(w, r, http.StatusCreated, newMemberResponse(member))
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest

		err := readJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		pair, err := h.authSvc.Login(r.Context(), body.Username, body.Password)
		if err != nil {
			writeError(w, r, err)

			return
		}

		h.writeTokenPair(w, r, pair)
	})
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// readRefreshTokenRequest accepts an empty body so the cookie alone can carry the token.
func readRefreshTokenRequest(w http.ResponseWriter, r *http.Request) (refreshTokenRequest, error) {
	var body refreshTokenRequest

	if r.ContentLength == 0 {
		return body, nil
	}

	err := readJSON(w, r, &body)
	if err != nil {
		return body, err
	}

	return body, nil
}

func (h *Handler) HandleRefreshToken() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := readRefreshTokenRequest(w, r)
		if err != nil {
			writeError(w, r, err)

			return
		}

		token := h.refreshTokenFromRequest(r, body.RefreshToken)
		if token == "" {
			writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "refresh token required"})

			return
		}

		pair, err := h.authSvc.Refresh(r.Context(), token)
		if err != nil {
			h.clearRefreshToken(w, r)
			writeError(w, r, err)

			return
		}

		h.writeTokenPair(w, r, pair)
	})
}

func (h *Handler) HandleLogout() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := readRefreshTokenRequest(w, r)
		if err != nil {
			writeError(w, r, err)

			return
		}

		token := h.refreshTokenFromRequest(r, body.RefreshToken)

		h.clearRefreshToken(w, r)

		if token != "" {
			err = h.authSvc.Logout(r.Context(), token)
			if err != nil {
				writeError(w, r, err)

				return
			}
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) HandleGetCurrentMember() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		member, err := h.authSvc.GetCurrentMember(r.Context())
		if err != nil {
			writeError(w, r, err)

			return
		}

		writeJSON(w, r, http.StatusOK, newMemberResponse(member))
	})
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	NickName *string `json:"nickName"`
	Age      *int    `json:"age"`
}

func (h *Handler) HandleUpdateProfile() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body updateProfileRequest

		err := readJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		member, err := h.authSvc.UpdateProfile(r.Context(), authentication.UpdateProfileRequest{
			Name:     body.Name,
			NickName: body.NickName,
			Age:      body.Age,
		})
		if err != nil {
			writeError(w, r, err)

			return
		}

		writeJSON(w, r, http.StatusOK, newMemberResponse(member))
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) HandleChangePassword() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body changePasswordRequest

		err := readJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		err = h.authSvc.ChangePassword(r.Context(), body.CurrentPassword, body.NewPassword)
		if err != nil {
			writeError(w, r, err)

			return
		}

		h.clearRefreshToken(w, r)

		w.WriteHeader(http.StatusNoContent)
	})
}

type withdrawRequest struct {
	Password string `json:"password"`
}

func (h *Handler) HandleWithdraw() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body withdrawRequest

		err := readJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		err = h.authSvc.Withdraw(r.Context(), body.Password)
		if err != nil {
			writeError(w, r, err)

			return
		}

		h.clearRefreshToken(w, r)

		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) HandleGetMember() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		member, err := h.authSvc.GetMember(r.Context(), r.PathValue("memberId"))
		if err != nil {
			writeError(w, r, err)

			return
		}

		writeJSON(w, r, http.StatusOK, newMemberResponse(member))
	})
}
