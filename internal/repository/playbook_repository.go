package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradejournal/internal/models"
)

// Ошибки репозитория плейбуков
var (
	ErrPlaybookNotFound = errors.New("playbook not found")
	ErrRuleNotFound     = errors.New("playbook rule not found")
)

// PlaybookRepository - работа с таблицами playbooks, playbook_rules
// и playbook_trade_checks
type PlaybookRepository struct {
	db *sql.DB
}

// NewPlaybookRepository создает новый экземпляр репозитория
func NewPlaybookRepository(db *sql.DB) *PlaybookRepository {
	return &PlaybookRepository{db: db}
}

// Create создает плейбук вместе с правилами в одной транзакции
func (r *PlaybookRepository) Create(playbook *models.Playbook) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	playbook.CreatedAt = time.Now()

	err = tx.QueryRow(
		`INSERT INTO playbooks (user_id, name, created_at) VALUES ($1, $2, $3) RETURNING id`,
		playbook.UserID,
		playbook.Name,
		playbook.CreatedAt,
	).Scan(&playbook.ID)
	if err != nil {
		return err
	}

	for i := range playbook.Rules {
		rule := &playbook.Rules[i]
		rule.PlaybookID = playbook.ID
		if rule.Position == 0 {
			rule.Position = i + 1
		}

		err = tx.QueryRow(
			`INSERT INTO playbook_rules (playbook_id, position, text) VALUES ($1, $2, $3) RETURNING id`,
			rule.PlaybookID,
			rule.Position,
			rule.Text,
		).Scan(&rule.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID возвращает плейбук с правилами, отсортированными по позиции
func (r *PlaybookRepository) GetByID(id int) (*models.Playbook, error) {
	playbook := &models.Playbook{}
	err := r.db.QueryRow(
		`SELECT id, user_id, name, created_at FROM playbooks WHERE id = $1`,
		id,
	).Scan(&playbook.ID, &playbook.UserID, &playbook.Name, &playbook.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlaybookNotFound
		}
		return nil, err
	}

	rules, err := r.getRules(playbook.ID)
	if err != nil {
		return nil, err
	}
	playbook.Rules = rules

	return playbook, nil
}

// GetByUserID возвращает все плейбуки пользователя с правилами
func (r *PlaybookRepository) GetByUserID(userID int) ([]*models.Playbook, error) {
	rows, err := r.db.Query(
		`SELECT id, user_id, name, created_at FROM playbooks WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playbooks []*models.Playbook
	for rows.Next() {
		playbook := &models.Playbook{}
		err := rows.Scan(&playbook.ID, &playbook.UserID, &playbook.Name, &playbook.CreatedAt)
		if err != nil {
			return nil, err
		}
		playbooks = append(playbooks, playbook)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	for _, playbook := range playbooks {
		rules, err := r.getRules(playbook.ID)
		if err != nil {
			return nil, err
		}
		playbook.Rules = rules
	}

	return playbooks, nil
}

// Delete удаляет плейбук (правила и отметки каскадом на уровне БД)
func (r *PlaybookRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM playbooks WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrPlaybookNotFound
	}

	return nil
}

// SetCheck устанавливает или снимает отметку правила для сделки
func (r *PlaybookRepository) SetCheck(tradeID, ruleID int, checked bool) error {
	if checked {
		query := `
			INSERT INTO playbook_trade_checks (trade_id, rule_id, checked_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (trade_id, rule_id) DO NOTHING`
		_, err := r.db.Exec(query, tradeID, ruleID, time.Now())
		return err
	}

	_, err := r.db.Exec(
		`DELETE FROM playbook_trade_checks WHERE trade_id = $1 AND rule_id = $2`,
		tradeID, ruleID,
	)
	return err
}

// GetProgress возвращает прогресс выполнения плейбука для сделки.
//
// Completion = отмеченные / всего правил * 100. Плейбук без правил
// даёт 0%, деления на ноль не происходит.
func (r *PlaybookRepository) GetProgress(tradeID, playbookID int) (*models.PlaybookTradeProgress, error) {
	rules, err := r.getRules(playbookID)
	if err != nil {
		return nil, err
	}

	progress := &models.PlaybookTradeProgress{
		TradeID:    tradeID,
		PlaybookID: playbookID,
		Checked:    make(map[int]bool),
		TotalRules: len(rules),
	}

	rows, err := r.db.Query(
		`SELECT c.rule_id
		 FROM playbook_trade_checks c
		 JOIN playbook_rules pr ON pr.id = c.rule_id
		 WHERE c.trade_id = $1 AND pr.playbook_id = $2`,
		tradeID, playbookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ruleID int
		if err := rows.Scan(&ruleID); err != nil {
			return nil, err
		}
		progress.Checked[ruleID] = true
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if progress.TotalRules > 0 {
		progress.Completion = float64(progress.CheckedCount()) / float64(progress.TotalRules) * 100
	}

	return progress, nil
}

// CountChecksByPlaybook возвращает по каждой сделке пользователя с отметками
// количество отмеченных правил плейбука (trade_id -> checked count)
func (r *PlaybookRepository) CountChecksByPlaybook(playbookID int) (map[int]int, error) {
	rows, err := r.db.Query(
		`SELECT c.trade_id, COUNT(*)
		 FROM playbook_trade_checks c
		 JOIN playbook_rules pr ON pr.id = c.rule_id
		 WHERE pr.playbook_id = $1
		 GROUP BY c.trade_id`,
		playbookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var tradeID, count int
		if err := rows.Scan(&tradeID, &count); err != nil {
			return nil, err
		}
		counts[tradeID] = count
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *PlaybookRepository) getRules(playbookID int) ([]models.PlaybookRule, error) {
	rows, err := r.db.Query(
		`SELECT id, playbook_id, position, text FROM playbook_rules WHERE playbook_id = $1 ORDER BY position`,
		playbookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.PlaybookRule
	for rows.Next() {
		var rule models.PlaybookRule
		err := rows.Scan(&rule.ID, &rule.PlaybookID, &rule.Position, &rule.Text)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return rules, nil
}
