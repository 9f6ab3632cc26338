package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradejournal/internal/models"
)

// SyncRepository - работа с таблицей account_syncs (watermark'и синхронизации).
//
// Watermark монотонен: единственный путь записи - условный upsert
// AdvanceWatermark, который продвигает значение только вперёд. Две
// конкурентные синхронизации одной пары (uid, coin) сходятся к
// максимальному из своих значений без потерянных обновлений.
type SyncRepository struct {
	db *sql.DB
}

// NewSyncRepository создает новый экземпляр репозитория
func NewSyncRepository(db *sql.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// GetWatermark возвращает watermark для пары (uid, coin).
// Отсутствие строки - не ошибка: новая пара начинает с 0 (полная история).
func (r *SyncRepository) GetWatermark(uid, coin string) (int64, error) {
	query := `
		SELECT last_sync_time
		FROM account_syncs
		WHERE uid = $1 AND coin = $2`

	var watermark int64
	err := r.db.QueryRow(query, uid, coin).Scan(&watermark)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}

	return watermark, nil
}

// Get возвращает запись синхронизации целиком
func (r *SyncRepository) Get(uid, coin string) (*models.AccountSync, error) {
	query := `
		SELECT id, uid, coin, last_sync_time, updated_at
		FROM account_syncs
		WHERE uid = $1 AND coin = $2`

	sync := &models.AccountSync{}
	err := r.db.QueryRow(query, uid, coin).Scan(
		&sync.ID,
		&sync.UID,
		&sync.Coin,
		&sync.LastSyncTime,
		&sync.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return sync, nil
}

// AdvanceWatermark продвигает watermark вперёд условным upsert'ом.
//
// WHERE в DO UPDATE гарантирует монотонность на уровне БД: запись
// меньшего или равного значения - no-op независимо от того, сколько
// конкурентных циклов пытаются её сделать. Возвращает true, если
// watermark был продвинут.
func (r *SyncRepository) AdvanceWatermark(uid, coin string, watermark int64) (bool, error) {
	query := `
		INSERT INTO account_syncs (uid, coin, last_sync_time, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uid, coin)
		DO UPDATE SET last_sync_time = EXCLUDED.last_sync_time, updated_at = EXCLUDED.updated_at
		WHERE account_syncs.last_sync_time < EXCLUDED.last_sync_time`

	result, err := r.db.Exec(query, uid, coin, watermark, time.Now())
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// GetAllByUID возвращает все watermark'и аккаунта (по одной на валюту)
func (r *SyncRepository) GetAllByUID(uid string) ([]*models.AccountSync, error) {
	query := `
		SELECT id, uid, coin, last_sync_time, updated_at
		FROM account_syncs
		WHERE uid = $1
		ORDER BY coin`

	rows, err := r.db.Query(query, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var syncs []*models.AccountSync
	for rows.Next() {
		sync := &models.AccountSync{}
		err := rows.Scan(
			&sync.ID,
			&sync.UID,
			&sync.Coin,
			&sync.LastSyncTime,
			&sync.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		syncs = append(syncs, sync)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return syncs, nil
}

// DeleteByUID удаляет все watermark'и аккаунта (при отвязке)
func (r *SyncRepository) DeleteByUID(uid string) error {
	query := `DELETE FROM account_syncs WHERE uid = $1`

	_, err := r.db.Exec(query, uid)
	return err
}
