package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const sessionCookieName = "session_id"

const (
	contextKeyUserID = "user_id"
	contextKeyRole   = "role"
)

// UserIDFromContext returns the current user ID set by RequireSession. 0 if not set.
func UserIDFromContext(c *gin.Context) int64 {
	v, ok := c.Get(contextKeyUserID)
	if !ok {
		return 0
	}
	id, ok := v.(int64)
	if !ok {
		return 0
	}
	return id
}

// RoleFromContext returns the current user role set by RequireSession.
func RoleFromContext(c *gin.Context) string {
	v, ok := c.Get(contextKeyRole)
	if !ok {
		return ""
	}
	role, _ := v.(string)
	return role
}

// RequireSession returns a middleware that checks for a valid session cookie
// and sets the current user ID and role in context. If missing or invalid,
// responds with 401.
func RequireSession(sessions *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(sessionCookieName)
		if err != nil || sessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		id, ok := sessions.Get(c.Request.Context(), sessionID)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.Set(contextKeyUserID, id.UserID)
		c.Set(contextKeyRole, id.Role)
		c.Next()
	}
}

// RequireRole returns a middleware allowing only the listed roles. Must run
// after RequireSession.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[RoleFromContext(c)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}
