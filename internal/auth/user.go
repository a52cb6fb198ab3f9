package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userHeader = "X-User-ID"

const userKey = "auth.user_id"

// UserMiddleware resolves the acting user from the X-User-ID header.
// Identity management lives in front of this service; every scoped route
// requires the header.
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader(userHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid " + userHeader + " header",
			})
			return
		}
		c.Set(userKey, id)
		c.Next()
	}
}

// UserID returns the acting user set by UserMiddleware.
func UserID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(userKey)
	id, _ := v.(uuid.UUID)
	return id
}
