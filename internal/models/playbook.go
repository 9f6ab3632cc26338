package models

import "time"

// Playbook представляет торговый чек-лист пользователя
type Playbook struct {
	ID        int            `json:"id" db:"id"`
	UserID    int            `json:"user_id" db:"user_id"`
	Name      string         `json:"name" db:"name"`
	Rules     []PlaybookRule `json:"rules"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// PlaybookRule - одно правило чек-листа, порядок задаётся Position
type PlaybookRule struct {
	ID         int    `json:"id" db:"id"`
	PlaybookID int    `json:"playbook_id" db:"playbook_id"`
	Position   int    `json:"position" db:"position"`
	Text       string `json:"text" db:"text"`
}

// PlaybookTradeProgress - прогресс выполнения чек-листа для конкретной сделки.
//
// Checked хранит отмеченные правила (rule_id -> true). Completion -
// производный процент выполнения: отмеченные / всего правил.
// Сделка без применимых правил даёт 0%, а не ошибку деления.
type PlaybookTradeProgress struct {
	ID         int          `json:"id" db:"id"`
	TradeID    int          `json:"trade_id" db:"trade_id"`
	PlaybookID int          `json:"playbook_id" db:"playbook_id"`
	Checked    map[int]bool `json:"checked"`
	TotalRules int          `json:"total_rules"`
	Completion float64      `json:"completion"` // процент 0-100
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}

// CheckedCount возвращает количество отмеченных правил
func (p *PlaybookTradeProgress) CheckedCount() int {
	n := 0
	for _, v := range p.Checked {
		if v {
			n++
		}
	}
	return n
}
