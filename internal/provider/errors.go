package provider

import (
	"errors"
	"fmt"
)

// Таксономия ошибок провайдера.
//
// Разделение принципиально для координатора синхронизации:
// - AuthError: ключи отклонены - не retry'ится, аккаунт требует
//   переавторизации, клиентскому уровню возвращается отличимый код
// - TransientError: сеть/таймаут/rate-limit - retry'ится с backoff
// - DataError: неожиданная форма ответа - батч отбрасывается,
//   watermark не продвигается

// AuthError - провайдер отклонил учётные данные
type AuthError struct {
	Provider string
	Code     string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: invalid credentials (code %s): %s", e.Provider, e.Code, e.Message)
}

// Retryable - повторный вызов с теми же ключами бессмысленен
func (e *AuthError) Retryable() bool { return false }

// TransientError - временная ошибка (сеть, таймаут, rate-limit)
type TransientError struct {
	Provider string
	Message  string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %s", e.Provider, e.Message)
}

func (e *TransientError) Unwrap() error   { return e.Err }
func (e *TransientError) Retryable() bool { return true }
func (e *TransientError) Temporary() bool { return true }

// DataError - провайдер вернул ответ неожиданной формы
type DataError struct {
	Provider string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Message)
}

func (e *DataError) Unwrap() error   { return e.Err }
func (e *DataError) Retryable() bool { return false }

// IsAuthError проверяет, является ли ошибка (или обёрнутая) AuthError
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransientError проверяет, является ли ошибка временной
func IsTransientError(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsDataError проверяет, является ли ошибка ошибкой формата данных
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}
