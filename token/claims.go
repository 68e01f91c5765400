package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates the three credential families the service issues.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindAdmin   Kind = "admin"
)

// Claims is the signed claim set carried by every token.
//
// Refresh tokens carry only the registered claims plus Kind and
// SessionID: permissions are re-resolved at access-token issuance so a
// role change takes effect on the next refresh cycle. Access and admin
// tokens snapshot role and permissions at issuance time.
type Claims struct {
	Kind        Kind     `json:"tkn"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	MFAVerified bool     `json:"mfa,omitempty"`
	SessionID   string   `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// JTI returns the token's unique identifier, the revocation key.
func (c *Claims) JTI() string {
	return c.ID
}

// Subject returns the principal the token was issued to.
func (c *Claims) SubjectID() string {
	return c.Subject
}

// ParseUnverified decodes the claim set without checking the
// signature. The result must never feed an authorization decision; it
// exists for reactions to tokens that already failed verification,
// such as identifying the session behind a replayed refresh token.
func ParseUnverified(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, ErrMalformed
	}
	return claims, nil
}
