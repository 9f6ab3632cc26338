package service

import (
	"tradejournal/internal/models"
	"tradejournal/pkg/utils"
)

// TradeListResult - страница журнала сделок с метаданными пагинации.
// Synced/Merged заполняются при sync-then-query (параметр sync=true):
// клиент видит, выполнялась ли синхронизация перед выборкой.
type TradeListResult struct {
	Trades []*models.Trade `json:"trades"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
	Synced bool            `json:"synced"`
	Merged int             `json:"merged"`
}

// TradeService предоставляет read-only доступ к журналу закрытых сделок.
//
// Сделки попадают в журнал только через синхронизацию (SyncService):
// ручное создание и редактирование не поддерживаются, провайдер -
// единственный источник истины.
type TradeService struct {
	tradeRepo TradeRepositoryInterface
	logger    *utils.Logger
}

// NewTradeService создает новый экземпляр TradeService
func NewTradeService(tradeRepo TradeRepositoryInterface, logger *utils.Logger) *TradeService {
	return &TradeService{
		tradeRepo: tradeRepo,
		logger:    logger,
	}
}

// ListTrades возвращает страницу сделок по фильтру.
// Страница отсортирована по close_time по убыванию (свежие первыми).
func (s *TradeService) ListTrades(filter models.TradeFilter) (*TradeListResult, error) {
	var verr utils.ValidationErrors
	if err := utils.ValidateCoin(filter.Coin); err != nil {
		verr.Add("coin", err.Error())
	}
	if filter.Symbol != "" {
		if err := utils.ValidateSymbol(filter.Symbol); err != nil {
			verr.Add("symbol", err.Error())
		}
	}
	if err := utils.ValidateTimeRange(filter.FromTime, filter.ToTime); err != nil {
		verr.Add("from", err.Error())
	}
	if verr.HasErrors() {
		return nil, verr
	}

	filter.Page, filter.Limit = utils.ValidatePagination(filter.Page, filter.Limit)

	trades, err := s.tradeRepo.List(filter)
	if err != nil {
		return nil, err
	}

	total, err := s.tradeRepo.Count(filter)
	if err != nil {
		return nil, err
	}

	if trades == nil {
		trades = []*models.Trade{}
	}

	return &TradeListResult{
		Trades: trades,
		Total:  total,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}, nil
}

// GetTrade возвращает одну сделку по внутреннему id
func (s *TradeService) GetTrade(id int) (*models.Trade, error) {
	return s.tradeRepo.GetByID(id)
}
