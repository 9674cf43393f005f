package realtime

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// credentialInfo is what we can learn from a bearer token without verifying
// it. The server remains the only authority on whether it is accepted.
type credentialInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// inspectCredential reads the subject and expiry of a JWT credential. Opaque
// tokens return ok == false.
func inspectCredential(token string) (credentialInfo, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return credentialInfo{}, false
	}

	var info credentialInfo
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, true
}
