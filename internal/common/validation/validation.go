package validation

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"access-bot-backend/internal/common/errors"
	domain "access-bot-backend/internal/domain/account"
)

const (
	// Максимальные длины полей профиля Telegram
	MaxUsernameLength  = 32
	MaxFirstNameLength = 64
	MaxLastNameLength  = 64
)

// UserID разбирает идентификатор пользователя Telegram из аргумента команды или пути
func UserID(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.NewValidationError(field, "cannot be empty")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError(field, "must be an integer")
	}
	if id <= 0 {
		return 0, errors.NewValidationError(field, "must be positive")
	}
	return id, nil
}

// PaymentMethod проверяет необязательный способ оплаты
func PaymentMethod(m domain.PaymentMethod) error {
	if m == domain.MethodNone || m.Valid() {
		return nil
	}
	return errors.NewValidationError("method", "must be rub or crypto")
}

// Profile обрезает пробелы и слишком длинные поля профиля
func Profile(p domain.Profile) domain.Profile {
	p.Username = truncate(strings.TrimPrefix(strings.TrimSpace(p.Username), "@"), MaxUsernameLength)
	p.FirstName = truncate(strings.TrimSpace(p.FirstName), MaxFirstNameLength)
	p.LastName = truncate(strings.TrimSpace(p.LastName), MaxLastNameLength)
	return p
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
