package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	sessionIDKey  = "sessionId"
	credentialKey = "credential"

	// CredentialHeader carries a caller-supplied Gemini API key that is passed through untouched.
	CredentialHeader = "X-Gemini-Api-Key"
)

// Session records the session id from the route and any pass-through credential.
// It never rejects a request: unknown sessions are the handler's concern.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.Param("sessionId")); id != "" {
			c.Set(sessionIDKey, id)
		}
		if cred := credentialFromHeaders(c); cred != "" {
			c.Set(credentialKey, cred)
		}
		c.Next()
	}
}

func credentialFromHeaders(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(CredentialHeader)); key != "" {
		return key
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// SessionIDFromContext fetches the session id set by the Session middleware.
func SessionIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(sessionIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// CredentialFromContext fetches the pass-through credential, if the caller sent one.
func CredentialFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(credentialKey)
	if cred, ok := val.(string); ok {
		return cred
	}
	return ""
}
