package authapi

import (
	"time"

	"huddle/cmd/identity"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokensPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// authResponse is the success shape for register and login.
type authResponse struct {
	Success bool          `json:"success"`
	Tokens  tokensPayload `json:"tokens"`
}

// refreshResponse deliberately omits the refresh token: the rotated token
// travels only in the httpOnly cookie.
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}
