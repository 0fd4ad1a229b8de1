package middleware

import (
	"errors"
	"net/http"
	"strings"

	"shelfmate/config"
	"shelfmate/internal/auth"
	"shelfmate/internal/domain"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"

	"github.com/gin-gonic/gin"
)

const (
	ctxAuthUserID = "auth_user_id"
	ctxMember     = "member"
)

// Authenticate validates the bearer JWT and sets the login identity.
func Authenticate(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ctxAuthUserID, claims.Identity())
		c.Next()
	}
}

// MemberRequired resolves the identity to a live member. Withdrawn members
// have no identity pointer and are rejected like strangers.
func MemberRequired(members *repository.MemberRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := members.GetByAuthUserID(c.Request.Context(), GetAuthUserID(c))
		if errors.Is(err, domain.ErrMemberNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no member for this identity"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "member lookup failed"})
			return
		}
		c.Set(ctxMember, m)
		c.Next()
	}
}

// GetAuthUserID returns the identity set by Authenticate.
func GetAuthUserID(c *gin.Context) string {
	return c.GetString(ctxAuthUserID)
}

// GetMember returns the member set by MemberRequired.
func GetMember(c *gin.Context) *models.Member {
	v, ok := c.Get(ctxMember)
	if !ok {
		return nil
	}
	m, _ := v.(*models.Member)
	return m
}

// GetMemberID returns the authenticated member's id, or 0.
func GetMemberID(c *gin.Context) uint {
	if m := GetMember(c); m != nil {
		return m.ID
	}
	return 0
}
