package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"
)

// Context keys to store Telegram init-data derived fields.
const (
	UserIdCtxParam    = "user_id"
	FirstNameCtxParam = "first_name"
	LastNameCtxParam  = "last_name"
	UsernameCtxParam  = "username"
)

// InitDataHeader carries the raw Mini App init-data.
const InitDataHeader = "X-Telegram-Init-Data"

// InitData validates Telegram Mini Apps init-data and stores parsed fields in context.
// It expects init-data in one of the following places (checked in order):
//  1. Header: "X-Telegram-Init-Data"
//  2. Query:  "init_data" (raw string)
//
// If token is empty, the middleware will return 500 to avoid insecure defaults.
func InitData(token string, expIn time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "init-data validation is not configured"})
			return
		}

		raw := c.GetHeader(InitDataHeader)
		if raw == "" {
			raw = c.Query("init_data")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing init_data"})
			return
		}

		// expIn==0 disables TTL check as per library contract
		if err := initdata.Validate(raw, token, expIn); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid init_data"})
			return
		}

		parsed, err := initdata.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid init_data format"})
			return
		}
		if parsed.User.ID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "init_data has no user"})
			return
		}

		c.Set(UserIdCtxParam, parsed.User.ID)
		c.Set(FirstNameCtxParam, parsed.User.FirstName)
		c.Set(LastNameCtxParam, parsed.User.LastName)
		c.Set(UsernameCtxParam, parsed.User.Username)
		c.Next()
	}
}

// UserID returns the caller id stored by InitData.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(UserIdCtxParam)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id != 0
}
