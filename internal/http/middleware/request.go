package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"access-bot-backend/internal/common/errors"
	"access-bot-backend/internal/common/logger"
)

const (
	RequestIDHeader   = "X-Request-ID"
	RequestIDCtxParam = "request_id"
)

// RequestID middleware для добавления ID запроса
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDCtxParam, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// Logger пишет одну строку на запрос
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Msg("Request processed")
	}
}

// Recovery превращает панику в ответ INTERNAL_ERROR
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("panic", fmt.Sprintf("%v", recovered)).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		AbortWithError(c, errors.New(errors.ErrCodeInternal, "Internal server error"))
	})
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
}

// AbortWithError отправляет ошибку в формате JSON и прерывает цепочку
func AbortWithError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, "Internal server error")
	}
	requestID := GetRequestID(c)
	appErr.WithRequestID(requestID).
		WithContext("path", c.Request.URL.Path).
		WithContext("method", c.Request.Method)

	status := HTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("request_id", requestID).Str("code", string(appErr.Code)).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Str("request_id", requestID).Str("code", string(appErr.Code)).Msg("Request rejected")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}

// HTTPStatus возвращает HTTP статус код для кода ошибки
func HTTPStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeForbidden, errors.ErrCodeUserBanned:
		return http.StatusForbidden
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeProviderNetwork, errors.ErrCodeProviderAPI:
		return http.StatusBadGateway
	case errors.ErrCodeConfiguration:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// GetRequestID возвращает ID запроса из контекста
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(RequestIDCtxParam); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
