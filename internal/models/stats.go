package models

// NetPnLResult - суммарный реализованный PNL по выборке сделок
type NetPnLResult struct {
	Value       float64 `json:"value"`
	TotalTrades int     `json:"total_trades"`
}

// SymbolStat представляет агрегат по одному символу
type SymbolStat struct {
	Symbol      string  `json:"symbol"`
	NetPnl      float64 `json:"net_pnl"`
	TradesCount int     `json:"trades_count"`
	WinRate     float64 `json:"win_rate"`
}

// DayProfit - агрегат PNL за один календарный день.
//
// Date в формате YYYY-MM-DD в таймзоне, запрошенной клиентом:
// время закрытия сделки конвертируется в таймзону до бакетирования.
type DayProfit struct {
	Date        string  `json:"date"`
	NetPnl      float64 `json:"net_pnl"`
	TradesCount int     `json:"trades_count"`
}

// PlaybookCompletionStat - процент выполнения чек-листа по сделке
type PlaybookCompletionStat struct {
	TradeID    int     `json:"trade_id"`
	PlaybookID int     `json:"playbook_id"`
	Completion float64 `json:"completion"` // 0-100
}

// Statistics представляет полную агрегированную статистику по выборке сделок.
//
// Вычисляется на каждый запрос заново и никогда не кэшируется между
// синхронизациями: смысл пайплайна sync-then-stat именно в отражении
// актуального состояния после синхронизации.
type Statistics struct {
	NetPnl     NetPnLResult             `json:"net_pnl"`
	WinRate    float64                  `json:"win_rate"` // доля сделок с pnl > 0, [0..1]
	Wins       int                      `json:"wins"`
	Losses     int                      `json:"losses"`
	PerSymbol  []SymbolStat             `json:"per_symbol"`
	PerDay     []DayProfit              `json:"per_day"`
	Playbooks  []PlaybookCompletionStat `json:"playbooks,omitempty"`
	Synced     bool                     `json:"synced"` // выполнялась ли синхронизация перед расчётом
}

// ExposureResult - агрегат по snapshot'у открытых позиций
type ExposureResult struct {
	Positions     int     `json:"positions"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	TotalNotional float64 `json:"total_notional"` // сумма size * mark_price
}
