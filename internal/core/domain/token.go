package domain

import (
	"time"

	"github.com/google/uuid"
)

const TokenTypeBearer = "Bearer"

// Claim types embedded in access tokens.
const (
	ClaimSubject           = "sub"
	ClaimTokenID           = "jti"
	ClaimPreferredUsername = "preferred_username"
	ClaimEmail             = "email"
	ClaimGivenName         = "given_name"
	ClaimFamilyName        = "family_name"
	ClaimRole              = "role"
)

type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type UserInfo struct {
	IsAuthenticated    bool    `json:"isAuthenticated"`
	Username           string  `json:"username,omitempty"`
	AuthenticationType string  `json:"authenticationType,omitempty"`
	Claims             []Claim `json:"claims"`
}

type TokenPair struct {
	AccessToken  string   `json:"accessToken"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int      `json:"expiresIn"`
	RefreshToken string   `json:"refreshToken"`
	UserInfo     UserInfo `json:"userInfo"`
}

// AccessClaims is the decoded content of a validated access token.
type AccessClaims struct {
	UserID     uuid.UUID
	TokenID    string
	Username   string
	Email      string
	GivenName  string
	FamilyName string
	Roles      []string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

func (c *AccessClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type LogoutResult struct {
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
}

// BuildClaims lists the identity facts exposed to clients, in the same order
// they appear in an access token.
func BuildClaims(user *User, roles []string) []Claim {
	claims := []Claim{
		{Type: ClaimSubject, Value: user.ID.String()},
		{Type: ClaimPreferredUsername, Value: user.Username},
		{Type: ClaimEmail, Value: user.Email},
		{Type: ClaimGivenName, Value: user.FirstName},
		{Type: ClaimFamilyName, Value: user.LastName},
	}
	for _, r := range roles {
		claims = append(claims, Claim{Type: ClaimRole, Value: r})
	}
	return claims
}
