package models

import "time"

// Поддерживаемые провайдеры (биржи)
const (
	ProviderBybit  = "bybit"
	ProviderBitget = "bitget"
)

// Account представляет привязанный биржевой аккаунт пользователя.
//
// API ключи хранятся зашифрованными (AES-256-GCM), IV хранится отдельной
// колонкой согласно контракту encryption-at-rest. Расшифрованные ключи
// существуют только в памяти на время запроса и никогда не логируются.
type Account struct {
	ID           int       `json:"id" db:"id"`
	UserID       int       `json:"user_id" db:"user_id"`
	Provider     string    `json:"provider" db:"provider"` // bybit, bitget
	Label        string    `json:"label" db:"label"`       // отображаемое имя аккаунта
	UID          string    `json:"uid" db:"uid"`           // уникальный идентификатор от провайдера, ключ синхронизации
	APIKeyEnc    string    `json:"-" db:"api_key_enc"`     // зашифрован, не возвращается в JSON
	APIKeyIV     string    `json:"-" db:"api_key_iv"`
	APISecretEnc string    `json:"-" db:"api_secret_enc"` // зашифрован
	APISecretIV  string    `json:"-" db:"api_secret_iv"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// AccountSync представляет watermark синхронизации для пары (uid, coin).
//
// Инвариант: LastSyncTime монотонно не убывает. Продвигается единственным
// условным upsert'ом (только если новое значение больше текущего) — это
// одновременно и защита от гонки двух конкурентных синхронизаций.
type AccountSync struct {
	ID           int       `json:"id" db:"id"`
	UID          string    `json:"uid" db:"uid"`
	Coin         string    `json:"coin" db:"coin"`
	LastSyncTime int64     `json:"last_sync_time" db:"last_sync_time"` // epoch миллисекунды
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// IsSupportedProvider проверяет, поддерживается ли провайдер
func IsSupportedProvider(name string) bool {
	switch name {
	case ProviderBybit, ProviderBitget:
		return true
	}
	return false
}
