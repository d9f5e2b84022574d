package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode представляет код ошибки
type ErrorCode string

const (
	// Общие ошибки
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeForbidden  ErrorCode = "FORBIDDEN"
	ErrCodeConflict   ErrorCode = "CONFLICT"

	// Ошибки пользователей
	ErrCodeUserBanned ErrorCode = "USER_BANNED"

	// Ошибки платежного провайдера
	ErrCodeProviderNetwork ErrorCode = "PROVIDER_NETWORK_ERROR"
	ErrCodeProviderAPI     ErrorCode = "PROVIDER_API_ERROR"

	// Ошибки конфигурации
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// Ошибки базы данных
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

// AppError представляет типизированную ошибку приложения
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	UserID    int64                  `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

// Error возвращает строковое представление ошибки
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает причину ошибки
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsProvider проверяет, пришла ли ошибка от платежного провайдера
func (e *AppError) IsProvider() bool {
	return e.Code == ErrCodeProviderNetwork || e.Code == ErrCodeProviderAPI
}

// WithContext добавляет контекст к ошибке
func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail добавляет детальную информацию к ошибке
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID добавляет ID запроса к ошибке
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// WithUserID добавляет ID пользователя к ошибке
func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

// New создает новую ошибку приложения
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap оборачивает существующую ошибку
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf оборачивает существующую ошибку с форматированием
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Конструкторы для часто используемых ошибок

// NewValidationError создает ошибку валидации
func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// NewNotFoundError создает ошибку "не найдено"
func NewNotFoundError(resource, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// NewForbiddenError создает ошибку доступа
func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

// NewBannedError создает ошибку "пользователь заблокирован"
func NewBannedError(userID int64) *AppError {
	return New(ErrCodeUserBanned, fmt.Sprintf("User is banned: %d", userID)).
		WithUserID(userID)
}

// NewConflictError создает ошибку конфликта: переход недопустим в текущем состоянии.
// Вызывающий код трактует ее как "уже обработано" и не повторяет попытку.
func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

// NewProviderNetworkError создает ошибку сети при обращении к провайдеру
func NewProviderNetworkError(method string, attempts int, err error) *AppError {
	return Wrap(err, ErrCodeProviderNetwork, fmt.Sprintf("Provider %s unreachable after %d attempts", method, attempts)).
		WithDetail("method", method).
		WithDetail("attempts", attempts)
}

// NewProviderAPIError создает ошибку ответа провайдера
func NewProviderAPIError(method string, status int, reason string) *AppError {
	return New(ErrCodeProviderAPI, fmt.Sprintf("Provider %s failed: %s", method, reason)).
		WithDetail("method", method).
		WithDetail("http_status", status).
		WithDetail("reason", reason)
}

// NewConfigurationError создает ошибку отсутствующей настройки
func NewConfigurationError(setting string) *AppError {
	return New(ErrCodeConfiguration, fmt.Sprintf("Missing configuration: %s", setting)).
		WithDetail("setting", setting)
}

// NewDatabaseError создает ошибку базы данных
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// AsAppError приводит ошибку к AppError, в том числе обернутую
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil || !stderrors.As(err, &appErr) {
		return nil, false
	}
	return appErr, true
}

// CodeOf возвращает код ошибки или ErrCodeInternal для посторонних ошибок
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

func hasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

func IsConflict(err error) bool        { return hasCode(err, ErrCodeConflict) }
func IsNotFound(err error) bool        { return hasCode(err, ErrCodeNotFound) }
func IsForbidden(err error) bool       { return hasCode(err, ErrCodeForbidden) }
func IsBanned(err error) bool          { return hasCode(err, ErrCodeUserBanned) }
func IsProviderNetwork(err error) bool { return hasCode(err, ErrCodeProviderNetwork) }
func IsProviderAPI(err error) bool     { return hasCode(err, ErrCodeProviderAPI) }
func IsConfiguration(err error) bool   { return hasCode(err, ErrCodeConfiguration) }
func IsValidation(err error) bool      { return hasCode(err, ErrCodeValidation) }
