package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// validator.go - валидация входных данных запросов
//
// Назначение:
// Проверка корректности параметров до обращения к провайдерам и БД.
// Ошибки валидации собираются в ValidationErrors со списком полей -
// клиент получает 400 с перечислением проблемных параметров.

// FieldError - ошибка валидации одного поля
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors - набор ошибок валидации запроса
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add добавляет ошибку поля
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// HasErrors возвращает true, если есть хотя бы одна ошибка
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

var (
	symbolRe = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)
	coinRe   = regexp.MustCompile(`^[A-Z]{2,10}$`)
)

// ValidateSymbol проверяет формат торгового символа (BTCUSDT)
func ValidateSymbol(symbol string) error {
	if !symbolRe.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %q", symbol)
	}
	return nil
}

// ValidateCoin проверяет формат валюты расчётов (USDT, USDC)
func ValidateCoin(coin string) error {
	if !coinRe.MatchString(coin) {
		return fmt.Errorf("invalid coin format: %q", coin)
	}
	return nil
}

// ValidateAPIKey - базовая проверка API ключа перед тестовым подключением
func ValidateAPIKey(key string) error {
	if len(key) < 8 {
		return fmt.Errorf("api key too short")
	}
	if strings.TrimSpace(key) != key {
		return fmt.Errorf("api key contains leading or trailing whitespace")
	}
	return nil
}

// ValidateTimeRange проверяет временной диапазон (epoch миллисекунды)
func ValidateTimeRange(from, to int64) error {
	if from < 0 || to < 0 {
		return fmt.Errorf("time range values must be non-negative")
	}
	if to != 0 && from > to {
		return fmt.Errorf("from must not be after to")
	}
	return nil
}

// ValidatePagination нормализует параметры пагинации.
// Возвращает скорректированные page/limit.
func ValidatePagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return page, limit
}
