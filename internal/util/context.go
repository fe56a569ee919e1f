package util

import (
	"github.com/gin-gonic/gin"
)

// Context keys set by the identity middleware
const (
	UserAliasKey   = "user_alias"
	AccessTokenKey = "access_token"
)

// GetUserAlias returns the pseudonymous id of the caller, or "" for anonymous requests
func GetUserAlias(c *gin.Context) string {
	return c.GetString(UserAliasKey)
}

// GetAccessToken returns the caller's upstream bearer token, or ""
func GetAccessToken(c *gin.Context) string {
	return c.GetString(AccessTokenKey)
}

// RequireUserAlias extracts the caller's alias.
// If the request is anonymous it responds with 401 Unauthorized and returns false.
func RequireUserAlias(c *gin.Context) (string, bool) {
	alias := GetUserAlias(c)
	if alias == "" {
		RespondUnauthorized(c)
		return "", false
	}
	return alias, true
}
