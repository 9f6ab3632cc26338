package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradejournal/internal/models"
	"tradejournal/internal/provider"
	"tradejournal/pkg/utils"
)

// Ошибки координатора синхронизации
var (
	ErrSyncInProgress = errors.New("sync already in progress for this account and coin")
)

// SyncBroadcaster - интерфейс для отправки обновлений синхронизации
// через WebSocket
type SyncBroadcaster interface {
	BroadcastSyncUpdate(uid, coin, state string, result *models.SyncResult)
}

// SyncService - координатор синхронизации сделок.
//
// Один цикл для пары (uid, coin) проходит состояния
// idle -> fetching -> merging -> advancing -> idle; любая ошибка
// переводит цикл в failed.
//
// Гарантии:
// - идемпотентность: повторный цикл без новых сделок у провайдера
//   ничего не меняет (дедупликация по position_id, условный upsert
//   watermark)
// - монотонность watermark: продвигается только вперёд и только после
//   успешного слияния всего батча
// - конкурентные циклы одной пары не запускаются (ErrSyncInProgress),
//   а гонка на уровне БД разрешается условным upsert'ом
type SyncService struct {
	accountSvc AccountServiceInterface
	syncRepo   SyncRepositoryInterface
	tradeRepo  TradeRepositoryInterface
	factory    ProviderFactory
	logger     *utils.Logger
	wsHub      SyncBroadcaster

	mu     sync.Mutex
	states map[string]string // "uid|coin" -> состояние цикла
}

// NewSyncService создает новый экземпляр SyncService
func NewSyncService(
	accountSvc AccountServiceInterface,
	syncRepo SyncRepositoryInterface,
	tradeRepo TradeRepositoryInterface,
	factory ProviderFactory,
	logger *utils.Logger,
) *SyncService {
	return &SyncService{
		accountSvc: accountSvc,
		syncRepo:   syncRepo,
		tradeRepo:  tradeRepo,
		factory:    factory,
		logger:     logger,
		states:     make(map[string]string),
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast
// прогресса синхронизации. Вызывается после инициализации Hub в main.
func (s *SyncService) SetWebSocketHub(hub SyncBroadcaster) {
	s.wsHub = hub
}

// State возвращает текущее состояние цикла для пары (uid, coin)
func (s *SyncService) State(uid, coin string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[stateKey(uid, coin)]
	if !ok {
		return models.SyncStateIdle
	}
	return state
}

// SyncAccount выполняет один цикл синхронизации для пары (uid, coin).
//
// Алгоритм:
//  1. прочитать watermark (отсутствие записи = 0, полная история)
//  2. fetching: выгрузить закрытые сделки с closeTime >= watermark
//  3. merging: вставить каждую через insert-if-absent, посчитать новые
//  4. advancing: продвинуть watermark до максимального closeTime батча
//     (только вперёд, условный upsert)
//
// Watermark никогда не продвигается при ошибке на любом шаге - пропуск
// сделок исключён, повторная выгрузка того же окна безопасна.
func (s *SyncService) SyncAccount(ctx context.Context, uid, coin string) (*models.SyncResult, error) {
	if err := utils.ValidateCoin(coin); err != nil {
		var verr utils.ValidationErrors
		verr.Add("coin", err.Error())
		return nil, verr
	}

	key := stateKey(uid, coin)
	if err := s.begin(key); err != nil {
		return nil, err
	}

	started := time.Now()

	account, err := s.accountSvc.GetByUID(uid)
	if err != nil {
		s.fail(key, uid, coin)
		return nil, err
	}

	result, err := s.runCycle(ctx, account, coin, key)
	if err != nil {
		s.fail(key, uid, coin)
		syncCyclesTotal.WithLabelValues(account.Provider, "error").Inc()

		if provider.IsAuthError(err) {
			s.logger.Warn("sync failed: provider rejected credentials",
				zap.String("uid", uid),
				zap.String("coin", coin),
				zap.String("provider", account.Provider))
			return nil, ErrInvalidAPICredentials
		}

		s.logger.Error("sync cycle failed",
			zap.String("uid", uid),
			zap.String("coin", coin),
			zap.Error(err))
		return nil, err
	}

	s.setState(key, uid, coin, models.SyncStateIdle, result)

	syncCyclesTotal.WithLabelValues(account.Provider, "ok").Inc()
	syncTradesMerged.WithLabelValues(account.Provider).Add(float64(result.Merged))
	syncDuration.WithLabelValues(account.Provider).Observe(time.Since(started).Seconds())
	syncWatermark.WithLabelValues(uid, coin).Set(float64(result.Watermark))

	s.logger.Info("sync cycle complete",
		zap.String("uid", uid),
		zap.String("coin", coin),
		zap.Int("fetched", result.Fetched),
		zap.Int("merged", result.Merged),
		zap.Int64("watermark", result.Watermark))

	return result, nil
}

// runCycle выполняет fetching/merging/advancing для уже загруженного аккаунта
func (s *SyncService) runCycle(ctx context.Context, account *models.Account, coin, key string) (*models.SyncResult, error) {
	apiKey, apiSecret, err := s.accountSvc.Credentials(account)
	if err != nil {
		return nil, err
	}

	client, err := s.factory.New(account.Provider, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}

	watermark, err := s.syncRepo.GetWatermark(account.UID, coin)
	if err != nil {
		return nil, err
	}

	trades, err := client.GetClosedTrades(ctx, coin, watermark)
	if err != nil {
		return nil, err
	}

	s.setState(key, account.UID, coin, models.SyncStateMerging, nil)

	merged := 0
	maxCloseTime := int64(0)
	for _, trade := range trades {
		trade.AccountID = account.ID
		trade.UID = account.UID

		inserted, err := s.tradeRepo.InsertIfAbsent(trade)
		if err != nil {
			return nil, err
		}
		if inserted {
			merged++
		}
		if trade.CloseTime > maxCloseTime {
			maxCloseTime = trade.CloseTime
		}
	}

	s.setState(key, account.UID, coin, models.SyncStateAdvancing, nil)

	// Watermark продвигается только после слияния всего батча и только
	// вперёд. Пустой батч оставляет его на месте.
	newWatermark := watermark
	if maxCloseTime > watermark {
		if _, err := s.syncRepo.AdvanceWatermark(account.UID, coin, maxCloseTime); err != nil {
			return nil, err
		}
		newWatermark = maxCloseTime
	}

	return &models.SyncResult{
		Synced:    merged > 0,
		Merged:    merged,
		Fetched:   len(trades),
		Watermark: newWatermark,
	}, nil
}

// begin переводит пару в fetching, отклоняя конкурентный запуск
func (s *SyncService) begin(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.states[key]
	if !ok {
		current = models.SyncStateIdle
	}
	if IsRunning(current) {
		return ErrSyncInProgress
	}

	s.states[key] = models.SyncStateFetching
	return nil
}

func (s *SyncService) fail(key, uid, coin string) {
	s.setState(key, uid, coin, models.SyncStateFailed, nil)
}

func (s *SyncService) setState(key, uid, coin, state string, result *models.SyncResult) {
	s.mu.Lock()
	current, ok := s.states[key]
	if !ok {
		current = models.SyncStateIdle
	}
	if CanTransition(current, state) || current == state {
		s.states[key] = state
	}
	s.mu.Unlock()

	if s.wsHub != nil {
		s.wsHub.BroadcastSyncUpdate(uid, coin, state, result)
	}
}

func stateKey(uid, coin string) string {
	return uid + "|" + coin
}
