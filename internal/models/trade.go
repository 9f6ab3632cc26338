package models

import "time"

// Side constants for trades (направление закрытой позиции)
const (
	SideLong  = "long"  // длинная позиция (ставка на рост)
	SideShort = "short" // короткая позиция (ставка на падение)
)

// Состояния цикла синхронизации (см. service.SyncService)
const (
	SyncStateIdle      = "idle"
	SyncStateFetching  = "fetching"
	SyncStateMerging   = "merging"
	SyncStateAdvancing = "advancing"
	SyncStateFailed    = "failed"
)

// Trade представляет каноническую закрытую позицию.
//
// Это провайдеро-независимое представление: каждый Provider Client
// нормализует свой wire-формат в эту структуру на границе.
//
// Инвариант: PositionID уникален в пределах аккаунта (uid). Повторная
// вставка того же PositionID — no-op, никогда не ошибка и никогда не
// дубликат строки (первая запись — источник истины).
type Trade struct {
	ID         int       `json:"id" db:"id"`
	AccountID  int       `json:"account_id" db:"account_id"`
	UID        string    `json:"uid" db:"uid"`                 // uid аккаунта у провайдера
	PositionID string    `json:"position_id" db:"position_id"` // идентификатор позиции от провайдера
	Coin       string    `json:"coin" db:"coin"`               // валюта расчётов (USDT, USDC)
	Symbol     string    `json:"symbol" db:"symbol"`           // торговая пара (BTCUSDT)
	Side       string    `json:"side" db:"side"`               // long или short
	EntryPrice float64   `json:"entry_price" db:"entry_price"`
	ExitPrice  float64   `json:"exit_price" db:"exit_price"`
	Quantity   float64   `json:"quantity" db:"quantity"`
	Pnl        float64   `json:"pnl" db:"pnl"`             // реализованный PNL
	OpenTime   int64     `json:"open_time" db:"open_time"` // epoch миллисекунды
	CloseTime  int64     `json:"close_time" db:"close_time"`
	Win        bool      `json:"win" db:"win"` // производный флаг: pnl строго > 0
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// TradeFilter задаёт условия выборки сделок из хранилища
type TradeFilter struct {
	UID      string // обязательный
	Coin     string // обязательный
	Symbol   string // опциональный
	FromTime int64  // close_time >= FromTime (0 = без ограничения)
	ToTime   int64  // close_time <= ToTime (0 = без ограничения)
	Page     int    // страница, начиная с 1
	Limit    int    // размер страницы
}

// SyncResult - итог одного цикла синхронизации для пары (uid, coin)
type SyncResult struct {
	Synced    bool  `json:"synced"`    // были ли добавлены новые сделки
	Merged    int   `json:"merged"`    // количество добавленных сделок
	Fetched   int   `json:"fetched"`   // количество полученных от провайдера сделок
	Watermark int64 `json:"watermark"` // итоговый watermark после цикла
}
