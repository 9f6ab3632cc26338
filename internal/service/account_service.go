package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"tradejournal/internal/models"
	"tradejournal/internal/provider"
	"tradejournal/pkg/crypto"
	"tradejournal/pkg/utils"
)

// Ошибки сервиса аккаунтов
var (
	// ErrInvalidAPICredentials - провайдер отклонил ключи. Клиентский
	// уровень отдаёт её отличимым кодом invalid_api_credentials, чтобы
	// UI мог показать форму переавторизации вместо общей ошибки.
	ErrInvalidAPICredentials = errors.New("invalid_api_credentials")

	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrAccountLinked       = errors.New("account already linked")
)

// LinkAccountRequest - запрос на привязку биржевого аккаунта
type LinkAccountRequest struct {
	UserID    int    `json:"user_id"`
	Provider  string `json:"provider"`
	Label     string `json:"label"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// AccountService управляет привязкой биржевых аккаунтов и хранением
// их учётных данных.
//
// Контракт работы с секретами:
// - plaintext ключи живут только в памяти на время операции
// - в БД попадают только шифротексты AES-256-GCM с отдельным IV
// - ключ шифрования приходит из конфигурации процесса, не из БД
// - ключи не логируются ни на одном уровне
type AccountService struct {
	accountRepo AccountRepositoryInterface
	syncRepo    SyncRepositoryInterface
	tradeRepo   TradeRepositoryInterface
	factory     ProviderFactory
	key         []byte // ключ шифрования, производный от passphrase процесса
	logger      *utils.Logger
}

// NewAccountService создает новый экземпляр AccountService
func NewAccountService(
	accountRepo AccountRepositoryInterface,
	syncRepo SyncRepositoryInterface,
	tradeRepo TradeRepositoryInterface,
	factory ProviderFactory,
	key []byte,
	logger *utils.Logger,
) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		syncRepo:    syncRepo,
		tradeRepo:   tradeRepo,
		factory:     factory,
		key:         key,
		logger:      logger,
	}
}

// Link привязывает биржевой аккаунт.
//
// Порядок важен: сначала тестовый вызов к провайдеру (GetAccountUID)
// проверяет валидность ключей и одновременно даёт uid - ключ
// синхронизации. Невалидные ключи никогда не сохраняются.
func (s *AccountService) Link(ctx context.Context, req *LinkAccountRequest) (*models.Account, error) {
	if err := s.validateLinkRequest(req); err != nil {
		return nil, err
	}

	client, err := s.factory.New(req.Provider, req.APIKey, req.APISecret)
	if err != nil {
		return nil, err
	}

	uid, err := client.GetAccountUID(ctx)
	if err != nil {
		if provider.IsAuthError(err) {
			s.logger.Warn("account link rejected: invalid credentials",
				zap.String("provider", req.Provider))
			return nil, ErrInvalidAPICredentials
		}
		return nil, err
	}

	exists, err := s.accountRepo.ExistsByUID(uid)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAccountLinked
	}

	keyEnc, keyIV, err := crypto.EncryptField(req.APIKey, s.key)
	if err != nil {
		return nil, err
	}
	secretEnc, secretIV, err := crypto.EncryptField(req.APISecret, s.key)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		UserID:       req.UserID,
		Provider:     req.Provider,
		Label:        req.Label,
		UID:          uid,
		APIKeyEnc:    keyEnc,
		APIKeyIV:     keyIV,
		APISecretEnc: secretEnc,
		APISecretIV:  secretIV,
	}

	if err := s.accountRepo.Create(account); err != nil {
		return nil, err
	}

	s.logger.Info("account linked",
		zap.String("provider", req.Provider),
		zap.String("uid", uid),
		zap.Int("user_id", req.UserID))

	return account, nil
}

// Unlink отвязывает аккаунт и удаляет связанные с ним данные:
// watermark'и и сделки. Операция необратима.
func (s *AccountService) Unlink(ctx context.Context, accountID int) error {
	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		return err
	}

	if err := s.tradeRepo.DeleteByUID(account.UID); err != nil {
		return err
	}
	if err := s.syncRepo.DeleteByUID(account.UID); err != nil {
		return err
	}
	if err := s.accountRepo.Delete(accountID); err != nil {
		return err
	}

	s.logger.Info("account unlinked",
		zap.String("provider", account.Provider),
		zap.String("uid", account.UID))

	return nil
}

// RotateCredentials заменяет ключи аккаунта новыми.
//
// Новые ключи сначала проверяются тестовым вызовом, причём uid должен
// совпасть с привязанным - нельзя подменить ключи чужого аккаунта.
func (s *AccountService) RotateCredentials(ctx context.Context, accountID int, apiKey, apiSecret string) error {
	if err := utils.ValidateAPIKey(apiKey); err != nil {
		return err
	}

	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		return err
	}

	client, err := s.factory.New(account.Provider, apiKey, apiSecret)
	if err != nil {
		return err
	}

	uid, err := client.GetAccountUID(ctx)
	if err != nil {
		if provider.IsAuthError(err) {
			return ErrInvalidAPICredentials
		}
		return err
	}
	if uid != account.UID {
		return ErrInvalidAPICredentials
	}

	keyEnc, keyIV, err := crypto.EncryptField(apiKey, s.key)
	if err != nil {
		return err
	}
	secretEnc, secretIV, err := crypto.EncryptField(apiSecret, s.key)
	if err != nil {
		return err
	}

	if err := s.accountRepo.UpdateCredentials(accountID, keyEnc, keyIV, secretEnc, secretIV); err != nil {
		return err
	}

	s.logger.Info("account credentials rotated",
		zap.String("uid", account.UID))

	return nil
}

// GetByUID возвращает аккаунт по uid провайдера
func (s *AccountService) GetByUID(uid string) (*models.Account, error) {
	return s.accountRepo.GetByUID(uid)
}

// GetByUserID возвращает все аккаунты пользователя
func (s *AccountService) GetByUserID(userID int) ([]*models.Account, error) {
	return s.accountRepo.GetByUserID(userID)
}

// Credentials расшифровывает ключи аккаунта. Результат живёт только
// в памяти вызывающего и не должен логироваться.
func (s *AccountService) Credentials(account *models.Account) (string, string, error) {
	apiKey, err := crypto.DecryptField(account.APIKeyEnc, account.APIKeyIV, s.key)
	if err != nil {
		return "", "", err
	}
	apiSecret, err := crypto.DecryptField(account.APISecretEnc, account.APISecretIV, s.key)
	if err != nil {
		return "", "", err
	}
	return apiKey, apiSecret, nil
}

func (s *AccountService) validateLinkRequest(req *LinkAccountRequest) error {
	var verrs utils.ValidationErrors

	if !models.IsSupportedProvider(req.Provider) {
		return ErrUnsupportedProvider
	}
	if err := utils.ValidateAPIKey(req.APIKey); err != nil {
		verrs.Add("api_key", err.Error())
	}
	if req.APISecret == "" {
		verrs.Add("api_secret", "must not be empty")
	}

	if verrs.HasErrors() {
		return verrs
	}
	return nil
}
