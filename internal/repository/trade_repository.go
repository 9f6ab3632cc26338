package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tradejournal/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades.
//
// Дедупликация сделана на уровне БД: UNIQUE (uid, position_id) плюс
// INSERT ... ON CONFLICT DO NOTHING. Первая записанная версия сделки -
// источник истины, повторные вставки молча игнорируются.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// InsertIfAbsent вставляет сделку, если позиции ещё нет в хранилище.
// Возвращает true, если строка была вставлена, false - если дубликат.
func (r *TradeRepository) InsertIfAbsent(trade *models.Trade) (bool, error) {
	query := `
		INSERT INTO trades (account_id, uid, position_id, coin, symbol, side, entry_price, exit_price, quantity, pnl, open_time, close_time, win, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (uid, position_id) DO NOTHING`

	result, err := r.db.Exec(
		query,
		trade.AccountID,
		trade.UID,
		trade.PositionID,
		trade.Coin,
		trade.Symbol,
		trade.Side,
		trade.EntryPrice,
		trade.ExitPrice,
		trade.Quantity,
		trade.Pnl,
		trade.OpenTime,
		trade.CloseTime,
		trade.Win,
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(id int) (*models.Trade, error) {
	query := `
		SELECT id, account_id, uid, position_id, coin, symbol, side, entry_price, exit_price, quantity, pnl, open_time, close_time, win, created_at
		FROM trades
		WHERE id = $1`

	trade := &models.Trade{}
	err := r.db.QueryRow(query, id).Scan(
		&trade.ID,
		&trade.AccountID,
		&trade.UID,
		&trade.PositionID,
		&trade.Coin,
		&trade.Symbol,
		&trade.Side,
		&trade.EntryPrice,
		&trade.ExitPrice,
		&trade.Quantity,
		&trade.Pnl,
		&trade.OpenTime,
		&trade.CloseTime,
		&trade.Win,
		&trade.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// List возвращает страницу сделок по фильтру, от новых к старым
func (r *TradeRepository) List(filter models.TradeFilter) ([]*models.Trade, error) {
	where, args := buildTradeWhere(filter)

	query := `
		SELECT id, account_id, uid, position_id, coin, symbol, side, entry_price, exit_price, quantity, pnl, open_time, close_time, win, created_at
		FROM trades
		` + where + `
		ORDER BY close_time DESC`

	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		offset := (page - 1) * filter.Limit
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	return r.queryTrades(query, args)
}

// ListForStats возвращает все сделки по фильтру без пагинации,
// от старых к новым (порядок, который ожидает расчёт статистики)
func (r *TradeRepository) ListForStats(filter models.TradeFilter) ([]*models.Trade, error) {
	where, args := buildTradeWhere(filter)

	query := `
		SELECT id, account_id, uid, position_id, coin, symbol, side, entry_price, exit_price, quantity, pnl, open_time, close_time, win, created_at
		FROM trades
		` + where + `
		ORDER BY close_time ASC`

	return r.queryTrades(query, args)
}

// Count возвращает количество сделок по фильтру
func (r *TradeRepository) Count(filter models.TradeFilter) (int, error) {
	where, args := buildTradeWhere(filter)

	query := `SELECT COUNT(*) FROM trades ` + where

	var count int
	err := r.db.QueryRow(query, args...).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// MaxCloseTime возвращает максимальное время закрытия среди сделок пары
// (uid, coin). Отсутствие сделок даёт 0.
func (r *TradeRepository) MaxCloseTime(uid, coin string) (int64, error) {
	query := `
		SELECT COALESCE(MAX(close_time), 0)
		FROM trades
		WHERE uid = $1 AND coin = $2`

	var maxTime int64
	err := r.db.QueryRow(query, uid, coin).Scan(&maxTime)
	if err != nil {
		return 0, err
	}

	return maxTime, nil
}

// DeleteByUID удаляет все сделки аккаунта (при отвязке)
func (r *TradeRepository) DeleteByUID(uid string) error {
	query := `DELETE FROM trades WHERE uid = $1`

	_, err := r.db.Exec(query, uid)
	return err
}

// buildTradeWhere собирает WHERE и аргументы по фильтру.
// UID и Coin обязательны, остальное опционально.
func buildTradeWhere(filter models.TradeFilter) (string, []interface{}) {
	conditions := []string{"uid = $1", "coin = $2"}
	args := []interface{}{filter.UID, filter.Coin}

	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		conditions = append(conditions, "symbol = $"+strconv.Itoa(len(args)))
	}
	if filter.FromTime > 0 {
		args = append(args, filter.FromTime)
		conditions = append(conditions, "close_time >= $"+strconv.Itoa(len(args)))
	}
	if filter.ToTime > 0 {
		args = append(args, filter.ToTime)
		conditions = append(conditions, "close_time <= $"+strconv.Itoa(len(args)))
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *TradeRepository) queryTrades(query string, args []interface{}) ([]*models.Trade, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade := &models.Trade{}
		err := rows.Scan(
			&trade.ID,
			&trade.AccountID,
			&trade.UID,
			&trade.PositionID,
			&trade.Coin,
			&trade.Symbol,
			&trade.Side,
			&trade.EntryPrice,
			&trade.ExitPrice,
			&trade.Quantity,
			&trade.Pnl,
			&trade.OpenTime,
			&trade.CloseTime,
			&trade.Win,
			&trade.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
