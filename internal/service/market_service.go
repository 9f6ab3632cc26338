package service

import (
	"context"

	"tradejournal/internal/models"
	"tradejournal/internal/provider"
	"tradejournal/pkg/utils"
)

// MarketService отдаёт живые данные провайдера: snapshot открытых
// позиций и свечи. Ничего из этого не сохраняется - позиции эфемерны
// и никогда не попадают в хранилище сделок.
type MarketService struct {
	accountSvc AccountServiceInterface
	factory    ProviderFactory
	logger     *utils.Logger
}

// NewMarketService создает новый экземпляр MarketService
func NewMarketService(accountSvc AccountServiceInterface, factory ProviderFactory, logger *utils.Logger) *MarketService {
	return &MarketService{
		accountSvc: accountSvc,
		factory:    factory,
		logger:     logger,
	}
}

// GetOpenPositions возвращает snapshot открытых позиций аккаунта
func (s *MarketService) GetOpenPositions(ctx context.Context, uid, coin string) ([]*models.OpenPosition, error) {
	if err := utils.ValidateCoin(coin); err != nil {
		var verr utils.ValidationErrors
		verr.Add("coin", err.Error())
		return nil, verr
	}

	client, err := s.clientFor(uid)
	if err != nil {
		return nil, err
	}

	positions, err := client.GetOpenPositions(ctx, coin)
	if err != nil {
		if provider.IsAuthError(err) {
			return nil, ErrInvalidAPICredentials
		}
		return nil, err
	}

	if positions == nil {
		positions = []*models.OpenPosition{}
	}
	return positions, nil
}

// GetKlines возвращает свечи по символу начиная с since.
// Интервал передаётся провайдеру как есть: допустимые значения
// определяет биржа, некорректный интервал вернётся как DataError.
func (s *MarketService) GetKlines(ctx context.Context, uid, symbol, interval string, since int64, limit int) ([]*models.Candle, error) {
	if err := utils.ValidateSymbol(symbol); err != nil {
		var verr utils.ValidationErrors
		verr.Add("symbol", err.Error())
		return nil, verr
	}
	if interval == "" {
		interval = "60" // часовые свечи по умолчанию
	}

	client, err := s.clientFor(uid)
	if err != nil {
		return nil, err
	}

	candles, err := client.GetKlines(ctx, symbol, interval, since, limit)
	if err != nil {
		if provider.IsAuthError(err) {
			return nil, ErrInvalidAPICredentials
		}
		return nil, err
	}

	if candles == nil {
		candles = []*models.Candle{}
	}
	return candles, nil
}

// clientFor собирает клиент провайдера для привязанного аккаунта
func (s *MarketService) clientFor(uid string) (provider.Provider, error) {
	account, err := s.accountSvc.GetByUID(uid)
	if err != nil {
		return nil, err
	}

	apiKey, apiSecret, err := s.accountSvc.Credentials(account)
	if err != nil {
		return nil, err
	}

	return s.factory.New(account.Provider, apiKey, apiSecret)
}
