package models

// OpenPosition представляет открытую позицию у провайдера.
//
// Эфемерные данные: snapshot запрашивается по требованию и никогда
// не сохраняется в хранилище сделок.
type OpenPosition struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"` // long или short
	Size             float64 `json:"size"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	Leverage         int     `json:"leverage"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
	LiquidationPrice float64 `json:"liquidation_price"`
	UpdatedAt        int64   `json:"updated_at"` // epoch миллисекунды
}

// Candle представляет одну свечу (kline) от провайдера
type Candle struct {
	Symbol    string  `json:"symbol"`
	Interval  string  `json:"interval"` // 1m, 5m, 1h, 1d
	StartTime int64   `json:"start_time"` // epoch миллисекунды
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}
