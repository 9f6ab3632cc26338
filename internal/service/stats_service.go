package service

import (
	"context"
	"math"
	"sort"
	"time"

	"tradejournal/internal/models"
	"tradejournal/internal/provider"
	"tradejournal/pkg/utils"
)

// StatsRequest - запрос агрегированной статистики
type StatsRequest struct {
	UID        string
	Coin       string
	Symbol     string // опциональный фильтр
	FromTime   int64  // epoch миллисекунды, 0 = без ограничения
	ToTime     int64
	Timezone   string // IANA имя для дневного бакетирования, пусто = UTC
	PlaybookID int    // 0 = без статистики плейбука
	SyncFirst  bool   // выполнить синхронизацию перед расчётом
	FillDays   bool   // заполнить нулями дни без сделок (требует FromTime и ToTime)
}

// StatsService вычисляет агрегированную статистику по сделкам.
//
// Ядро - чистые функции над выборкой: одна и та же выборка всегда даёт
// один и тот же результат. Статистика не кэшируется: пайплайн
// sync-then-stat означает, что клиент видит данные, актуальные на
// момент запроса.
type StatsService struct {
	tradeRepo    TradeRepositoryInterface
	playbookRepo PlaybookRepositoryInterface
	accountSvc   AccountServiceInterface
	syncSvc      SyncServiceInterface
	factory      ProviderFactory
	logger       *utils.Logger
}

// NewStatsService создает новый экземпляр StatsService
func NewStatsService(
	tradeRepo TradeRepositoryInterface,
	playbookRepo PlaybookRepositoryInterface,
	accountSvc AccountServiceInterface,
	syncSvc SyncServiceInterface,
	factory ProviderFactory,
	logger *utils.Logger,
) *StatsService {
	return &StatsService{
		tradeRepo:    tradeRepo,
		playbookRepo: playbookRepo,
		accountSvc:   accountSvc,
		syncSvc:      syncSvc,
		factory:      factory,
		logger:       logger,
	}
}

// GetStatistics возвращает полную статистику по выборке сделок.
//
// При SyncFirst сначала выполняется цикл синхронизации: расчёт идёт по
// данным, включающим только что закрытые сделки. Ошибка синхронизации
// не скрывается за устаревшей статистикой - она возвращается клиенту.
func (s *StatsService) GetStatistics(ctx context.Context, req *StatsRequest) (*models.Statistics, error) {
	var verr utils.ValidationErrors
	if err := utils.ValidateCoin(req.Coin); err != nil {
		verr.Add("coin", err.Error())
	}
	if err := utils.ValidateTimeRange(req.FromTime, req.ToTime); err != nil {
		verr.Add("from", err.Error())
	}
	if verr.HasErrors() {
		return nil, verr
	}

	loc, err := utils.ParseTimezone(req.Timezone)
	if err != nil {
		return nil, err
	}

	synced := false
	if req.SyncFirst {
		if _, err := s.syncSvc.SyncAccount(ctx, req.UID, req.Coin); err != nil {
			return nil, err
		}
		synced = true
	}

	trades, err := s.tradeRepo.ListForStats(models.TradeFilter{
		UID:      req.UID,
		Coin:     req.Coin,
		Symbol:   req.Symbol,
		FromTime: req.FromTime,
		ToTime:   req.ToTime,
	})
	if err != nil {
		return nil, err
	}

	winRate, wins, losses := ComputeWinRate(trades)

	perDay := ComputePerDay(trades, loc)
	if req.FillDays && req.FromTime > 0 && req.ToTime > 0 {
		perDay = FillPerDay(perDay, req.FromTime, req.ToTime, loc)
	}

	stats := &models.Statistics{
		NetPnl:    ComputeNetPnL(trades),
		WinRate:   winRate,
		Wins:      wins,
		Losses:    losses,
		PerSymbol: ComputePerSymbol(trades),
		PerDay:    perDay,
		Synced:    synced,
	}

	if req.PlaybookID > 0 {
		playbooks, err := s.computePlaybookStats(trades, req.PlaybookID)
		if err != nil {
			return nil, err
		}
		stats.Playbooks = playbooks
	}

	return stats, nil
}

// GetOpenExposure возвращает агрегат по snapshot'у открытых позиций.
// Данные запрашиваются у провайдера на каждый вызов и не сохраняются.
func (s *StatsService) GetOpenExposure(ctx context.Context, uid, coin string) (*models.ExposureResult, error) {
	account, err := s.accountSvc.GetByUID(uid)
	if err != nil {
		return nil, err
	}

	apiKey, apiSecret, err := s.accountSvc.Credentials(account)
	if err != nil {
		return nil, err
	}

	client, err := s.factory.New(account.Provider, apiKey, apiSecret)
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

	return ComputeExposure(positions), nil
}

// ============================================================
// Чистые функции расчёта
// ============================================================

// ComputeNetPnL возвращает суммарный реализованный PNL выборки
func ComputeNetPnL(trades []*models.Trade) models.NetPnLResult {
	result := models.NetPnLResult{TotalTrades: len(trades)}
	for _, t := range trades {
		result.Value += t.Pnl
	}
	return result
}

// ComputeWinRate возвращает долю выигрышных сделок [0..1] и счётчики.
//
// Выигрыш - строго pnl > 0: нулевой PNL считается проигрышем.
// Пустая выборка даёт 0, а не NaN.
func ComputeWinRate(trades []*models.Trade) (winRate float64, wins, losses int) {
	for _, t := range trades {
		if t.Pnl > 0 {
			wins++
		} else {
			losses++
		}
	}
	if len(trades) == 0 {
		return 0, 0, 0
	}
	return float64(wins) / float64(len(trades)), wins, losses
}

// ComputePerSymbol возвращает агрегаты по каждому символу,
// отсортированные по символу для стабильного вывода
func ComputePerSymbol(trades []*models.Trade) []models.SymbolStat {
	type acc struct {
		pnl   float64
		count int
		wins  int
	}

	bySymbol := make(map[string]*acc)
	for _, t := range trades {
		a, ok := bySymbol[t.Symbol]
		if !ok {
			a = &acc{}
			bySymbol[t.Symbol] = a
		}
		a.pnl += t.Pnl
		a.count++
		if t.Pnl > 0 {
			a.wins++
		}
	}

	stats := make([]models.SymbolStat, 0, len(bySymbol))
	for symbol, a := range bySymbol {
		stats = append(stats, models.SymbolStat{
			Symbol:      symbol,
			NetPnl:      a.pnl,
			TradesCount: a.count,
			WinRate:     float64(a.wins) / float64(a.count),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Symbol < stats[j].Symbol
	})

	return stats
}

// ComputePerDay бакетирует сделки по календарным дням в заданной
// таймзоне и возвращает дневные агрегаты по возрастанию даты.
//
// Время закрытия конвертируется в таймзону до определения дня:
// сделка, закрытая в 23:30 UTC, при таймзоне UTC-5 попадает в тот же
// календарный день, а не в следующий.
func ComputePerDay(trades []*models.Trade, loc *time.Location) []models.DayProfit {
	byDay := make(map[string]*models.DayProfit)
	for _, t := range trades {
		date := utils.LocalDate(t.CloseTime, loc)
		day, ok := byDay[date]
		if !ok {
			day = &models.DayProfit{Date: date}
			byDay[date] = day
		}
		day.NetPnl += t.Pnl
		day.TradesCount++
	}

	days := make([]models.DayProfit, 0, len(byDay))
	for _, day := range byDay {
		days = append(days, *day)
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})

	return days
}

// FillPerDay разворачивает разреженную дневную серию в сплошную:
// каждый календарный день диапазона [from, to] в заданной таймзоне
// получает бакет, дни без сделок - нулевой. Серия остаётся по
// возрастанию даты.
func FillPerDay(sparse []models.DayProfit, from, to int64, loc *time.Location) []models.DayProfit {
	byDate := make(map[string]models.DayProfit, len(sparse))
	for _, day := range sparse {
		byDate[day.Date] = day
	}

	dates := utils.DateRange(from, to, loc)
	days := make([]models.DayProfit, 0, len(dates))
	for _, date := range dates {
		if day, ok := byDate[date]; ok {
			days = append(days, day)
			continue
		}
		days = append(days, models.DayProfit{Date: date})
	}
	return days
}

// ComputeExposure возвращает агрегат по открытым позициям
func ComputeExposure(positions []*models.OpenPosition) *models.ExposureResult {
	result := &models.ExposureResult{Positions: len(positions)}
	for _, p := range positions {
		result.UnrealizedPnl += p.UnrealizedPnl
		result.TotalNotional += p.Size * p.MarkPrice
	}
	return result
}

// computePlaybookStats возвращает процент выполнения чек-листа по
// каждой сделке выборки. Проценты округляются до двух знаков.
func (s *StatsService) computePlaybookStats(trades []*models.Trade, playbookID int) ([]models.PlaybookCompletionStat, error) {
	playbook, err := s.playbookRepo.GetByID(playbookID)
	if err != nil {
		return nil, err
	}

	checks, err := s.playbookRepo.CountChecksByPlaybook(playbookID)
	if err != nil {
		return nil, err
	}

	totalRules := len(playbook.Rules)
	stats := make([]models.PlaybookCompletionStat, 0, len(trades))
	for _, t := range trades {
		completion := 0.0
		if totalRules > 0 {
			completion = float64(checks[t.ID]) / float64(totalRules) * 100
			completion = math.Round(completion*100) / 100
		}
		stats = append(stats, models.PlaybookCompletionStat{
			TradeID:    t.ID,
			PlaybookID: playbookID,
			Completion: completion,
		})
	}

	return stats, nil
}
