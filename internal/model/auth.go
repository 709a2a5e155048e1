package model

import (
	"github.com/golang-jwt/jwt/v5"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Role        Role   `json:"role"`
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID    int64 `json:"user_id"`
	Role      Role  `json:"role"`
	ProfileID int64 `json:"profile_id"`
}

func (c *TokenClaims) Actor() *Actor {
	return &Actor{UserID: c.UserID, Role: c.Role, ProfileID: c.ProfileID}
}

type MeResponse struct {
	Actor   *Actor  `json:"actor"`
	Profile Profile `json:"profile"`
}
