package service

import (
	"context"

	"tradejournal/internal/models"
	"tradejournal/internal/provider"
	"tradejournal/internal/repository"
)

// AccountRepositoryInterface определяет интерфейс репозитория аккаунтов
type AccountRepositoryInterface interface {
	Create(account *models.Account) error
	GetByID(id int) (*models.Account, error)
	GetByUID(uid string) (*models.Account, error)
	GetByUserID(userID int) ([]*models.Account, error)
	GetAll() ([]*models.Account, error)
	UpdateCredentials(id int, keyEnc, keyIV, secretEnc, secretIV string) error
	UpdateLabel(id int, label string) error
	Delete(id int) error
	ExistsByUID(uid string) (bool, error)
}

// SyncRepositoryInterface определяет интерфейс репозитория watermark'ов
type SyncRepositoryInterface interface {
	GetWatermark(uid, coin string) (int64, error)
	Get(uid, coin string) (*models.AccountSync, error)
	AdvanceWatermark(uid, coin string, watermark int64) (bool, error)
	GetAllByUID(uid string) ([]*models.AccountSync, error)
	DeleteByUID(uid string) error
}

// TradeRepositoryInterface определяет интерфейс репозитория сделок
type TradeRepositoryInterface interface {
	InsertIfAbsent(trade *models.Trade) (bool, error)
	GetByID(id int) (*models.Trade, error)
	List(filter models.TradeFilter) ([]*models.Trade, error)
	ListForStats(filter models.TradeFilter) ([]*models.Trade, error)
	Count(filter models.TradeFilter) (int, error)
	MaxCloseTime(uid, coin string) (int64, error)
	DeleteByUID(uid string) error
}

// PlaybookRepositoryInterface определяет интерфейс репозитория плейбуков
type PlaybookRepositoryInterface interface {
	Create(playbook *models.Playbook) error
	GetByID(id int) (*models.Playbook, error)
	GetByUserID(userID int) ([]*models.Playbook, error)
	Delete(id int) error
	SetCheck(tradeID, ruleID int, checked bool) error
	GetProgress(tradeID, playbookID int) (*models.PlaybookTradeProgress, error)
	CountChecksByPlaybook(playbookID int) (map[int]int, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ AccountRepositoryInterface = (*repository.AccountRepository)(nil)
var _ SyncRepositoryInterface = (*repository.SyncRepository)(nil)
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)
var _ PlaybookRepositoryInterface = (*repository.PlaybookRepository)(nil)

// ProviderFactory создает клиент провайдера из расшифрованных ключей.
// Абстракция нужна сервисам для подмены клиентов в тестах.
type ProviderFactory interface {
	New(name, apiKey, apiSecret string) (provider.Provider, error)
}

// DefaultProviderFactory - фабрика поверх общих Options процесса
// (один HTTP пул и rate limiter на все клиенты)
type DefaultProviderFactory struct {
	Opts provider.Options
}

func (f *DefaultProviderFactory) New(name, apiKey, apiSecret string) (provider.Provider, error) {
	return provider.NewProvider(name, apiKey, apiSecret, f.Opts)
}

var _ ProviderFactory = (*DefaultProviderFactory)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// AccountServiceInterface определяет интерфейс сервиса аккаунтов
type AccountServiceInterface interface {
	Link(ctx context.Context, req *LinkAccountRequest) (*models.Account, error)
	Unlink(ctx context.Context, accountID int) error
	RotateCredentials(ctx context.Context, accountID int, apiKey, apiSecret string) error
	GetByUID(uid string) (*models.Account, error)
	GetByUserID(userID int) ([]*models.Account, error)
	Credentials(account *models.Account) (string, string, error)
}

// SyncServiceInterface определяет интерфейс координатора синхронизации
type SyncServiceInterface interface {
	SyncAccount(ctx context.Context, uid, coin string) (*models.SyncResult, error)
	State(uid, coin string) string
}

// StatsServiceInterface определяет интерфейс сервиса статистики
type StatsServiceInterface interface {
	GetStatistics(ctx context.Context, req *StatsRequest) (*models.Statistics, error)
	GetOpenExposure(ctx context.Context, uid, coin string) (*models.ExposureResult, error)
}

// TradeServiceInterface определяет интерфейс сервиса журнала сделок
type TradeServiceInterface interface {
	ListTrades(filter models.TradeFilter) (*TradeListResult, error)
	GetTrade(id int) (*models.Trade, error)
}

// MarketServiceInterface определяет интерфейс живых данных провайдера
type MarketServiceInterface interface {
	GetOpenPositions(ctx context.Context, uid, coin string) ([]*models.OpenPosition, error)
	GetKlines(ctx context.Context, uid, symbol, interval string, since int64, limit int) ([]*models.Candle, error)
}

// PlaybookServiceInterface определяет интерфейс сервиса плейбуков
type PlaybookServiceInterface interface {
	Create(req *CreatePlaybookRequest) (*models.Playbook, error)
	GetByID(id int) (*models.Playbook, error)
	GetByUserID(userID int) ([]*models.Playbook, error)
	Delete(id int) error
	SetCheck(tradeID, ruleID int, checked bool) error
	Progress(tradeID, playbookID int) (*models.PlaybookTradeProgress, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ AccountServiceInterface = (*AccountService)(nil)
var _ SyncServiceInterface = (*SyncService)(nil)
var _ StatsServiceInterface = (*StatsService)(nil)
var _ TradeServiceInterface = (*TradeService)(nil)
var _ MarketServiceInterface = (*MarketService)(nil)
var _ PlaybookServiceInterface = (*PlaybookService)(nil)
