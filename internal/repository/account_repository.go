// Package repository содержит слой доступа к данным (PostgreSQL).
package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"tradejournal/internal/models"
)

// Ошибки репозитория аккаунтов
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// AccountRepository - работа с таблицей accounts.
//
// Ключи хранятся только в зашифрованном виде (api_key_enc + api_key_iv),
// plaintext в эту таблицу не попадает никогда.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository создает новый экземпляр репозитория
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create создает новый привязанный аккаунт
func (r *AccountRepository) Create(account *models.Account) error {
	query := `
		INSERT INTO accounts (user_id, provider, label, uid, api_key_enc, api_key_iv, api_secret_enc, api_secret_iv, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	err := r.db.QueryRow(
		query,
		account.UserID,
		account.Provider,
		account.Label,
		account.UID,
		account.APIKeyEnc,
		account.APIKeyIV,
		account.APISecretEnc,
		account.APISecretIV,
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccountExists
		}
		return err
	}

	return nil
}

// GetByID возвращает аккаунт по ID
func (r *AccountRepository) GetByID(id int) (*models.Account, error) {
	query := `
		SELECT id, user_id, provider, label, uid, api_key_enc, api_key_iv, api_secret_enc, api_secret_iv, created_at, updated_at
		FROM accounts
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByUID возвращает аккаунт по uid провайдера
func (r *AccountRepository) GetByUID(uid string) (*models.Account, error) {
	query := `
		SELECT id, user_id, provider, label, uid, api_key_enc, api_key_iv, api_secret_enc, api_secret_iv, created_at, updated_at
		FROM accounts
		WHERE uid = $1`

	return r.scanOne(r.db.QueryRow(query, uid))
}

// GetByUserID возвращает все аккаунты пользователя
func (r *AccountRepository) GetByUserID(userID int) ([]*models.Account, error) {
	query := `
		SELECT id, user_id, provider, label, uid, api_key_enc, api_key_iv, api_secret_enc, api_secret_iv, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account := &models.Account{}
		err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.Provider,
			&account.Label,
			&account.UID,
			&account.APIKeyEnc,
			&account.APIKeyIV,
			&account.APISecretEnc,
			&account.APISecretIV,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}

// GetAll возвращает все привязанные аккаунты (для фоновой синхронизации)
func (r *AccountRepository) GetAll() ([]*models.Account, error) {
	query := `
		SELECT id, user_id, provider, label, uid, api_key_enc, api_key_iv, api_secret_enc, api_secret_iv, created_at, updated_at
		FROM accounts
		ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account := &models.Account{}
		err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.Provider,
			&account.Label,
			&account.UID,
			&account.APIKeyEnc,
			&account.APIKeyIV,
			&account.APISecretEnc,
			&account.APISecretIV,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}

// UpdateCredentials заменяет зашифрованные ключи аккаунта (ротация).
// Все четыре колонки обновляются атомарно одним UPDATE.
func (r *AccountRepository) UpdateCredentials(id int, keyEnc, keyIV, secretEnc, secretIV string) error {
	query := `
		UPDATE accounts
		SET api_key_enc = $1, api_key_iv = $2, api_secret_enc = $3, api_secret_iv = $4, updated_at = $5
		WHERE id = $6`

	result, err := r.db.Exec(query, keyEnc, keyIV, secretEnc, secretIV, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// UpdateLabel обновляет отображаемое имя аккаунта
func (r *AccountRepository) UpdateLabel(id int, label string) error {
	query := `
		UPDATE accounts
		SET label = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, label, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// Delete удаляет аккаунт
func (r *AccountRepository) Delete(id int) error {
	query := `DELETE FROM accounts WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// ExistsByUID проверяет, привязан ли уже аккаунт с таким uid
func (r *AccountRepository) ExistsByUID(uid string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE uid = $1)`

	var exists bool
	err := r.db.QueryRow(query, uid).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *AccountRepository) scanOne(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.Label,
		&account.UID,
		&account.APIKeyEnc,
		&account.APIKeyIV,
		&account.APISecretEnc,
		&account.APISecretIV,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return account, nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
