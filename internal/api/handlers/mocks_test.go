package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradejournal/internal/models"
	"tradejournal/internal/repository"
	"tradejournal/internal/service"
)

// ============ Mock Account Service ============

// MockAccountService мок для AccountServiceInterface
type MockAccountService struct {
	accounts map[int]*models.Account
	linkErr  error
	getErr   error
	nextID   int
	mu       sync.RWMutex
}

// NewMockAccountService создает новый мок сервиса аккаунтов
func NewMockAccountService() *MockAccountService {
	return &MockAccountService{
		accounts: make(map[int]*models.Account),
		nextID:   1,
	}
}

func (m *MockAccountService) Link(ctx context.Context, req *service.LinkAccountRequest) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.linkErr != nil {
		return nil, m.linkErr
	}

	account := &models.Account{
		ID:        m.nextID,
		UserID:    req.UserID,
		Provider:  req.Provider,
		Label:     req.Label,
		UID:       "mock-uid",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.nextID++
	m.accounts[account.ID] = account
	return account, nil
}

func (m *MockAccountService) Unlink(ctx context.Context, accountID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.linkErr != nil {
		return m.linkErr
	}
	if _, ok := m.accounts[accountID]; !ok {
		return repository.ErrAccountNotFound
	}
	delete(m.accounts, accountID)
	return nil
}

func (m *MockAccountService) RotateCredentials(ctx context.Context, accountID int, apiKey, apiSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.linkErr != nil {
		return m.linkErr
	}
	if _, ok := m.accounts[accountID]; !ok {
		return repository.ErrAccountNotFound
	}
	return nil
}

func (m *MockAccountService) GetByUID(uid string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, a := range m.accounts {
		if a.UID == uid {
			return a, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (m *MockAccountService) GetByUserID(userID int) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MockAccountService) Credentials(account *models.Account) (string, string, error) {
	return "key", "secret", nil
}

// SetError устанавливает ошибку для указанной операции
func (m *MockAccountService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "link":
		m.linkErr = err
	case "get":
		m.getErr = err
	}
}

// AddAccount добавляет аккаунт напрямую (для настройки тестов)
func (m *MockAccountService) AddAccount(account *models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if account.ID == 0 {
		account.ID = m.nextID
		m.nextID++
	}
	m.accounts[account.ID] = account
}

// ============ Mock Sync Service ============

// MockSyncService мок для SyncServiceInterface
type MockSyncService struct {
	result  *models.SyncResult
	state   string
	syncErr error
	mu      sync.RWMutex
}

// NewMockSyncService создает новый мок координатора синхронизации
func NewMockSyncService() *MockSyncService {
	return &MockSyncService{
		result: &models.SyncResult{},
		state:  models.SyncStateIdle,
	}
}

func (m *MockSyncService) SyncAccount(ctx context.Context, uid, coin string) (*models.SyncResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.syncErr != nil {
		return nil, m.syncErr
	}
	return m.result, nil
}

func (m *MockSyncService) State(uid, coin string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetResult устанавливает результат синхронизации
func (m *MockSyncService) SetResult(result *models.SyncResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
}

// SetState устанавливает текущее состояние
func (m *MockSyncService) SetState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// SetError устанавливает ошибку синхронизации
func (m *MockSyncService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncErr = err
}

// ============ Mock Stats Service ============

// MockStatsService мок для StatsServiceInterface
type MockStatsService struct {
	stats    *models.Statistics
	exposure *models.ExposureResult
	statsErr error
	lastReq  *service.StatsRequest
	mu       sync.RWMutex
}

// NewMockStatsService создает новый мок сервиса статистики
func NewMockStatsService() *MockStatsService {
	return &MockStatsService{
		stats:    &models.Statistics{},
		exposure: &models.ExposureResult{},
	}
}

func (m *MockStatsService) GetStatistics(ctx context.Context, req *service.StatsRequest) (*models.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastReq = req
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

func (m *MockStatsService) GetOpenExposure(ctx context.Context, uid, coin string) (*models.ExposureResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.exposure, nil
}

// SetStats устанавливает статистику напрямую (для настройки тестов)
func (m *MockStatsService) SetStats(stats *models.Statistics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = stats
}

// SetError устанавливает ошибку сервиса
func (m *MockStatsService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsErr = err
}

// LastRequest возвращает последний StatsRequest (для проверки парсинга)
func (m *MockStatsService) LastRequest() *service.StatsRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReq
}

// ============ Mock Trade Service ============

// MockTradeService мок для TradeServiceInterface
type MockTradeService struct {
	trades  map[int]*models.Trade
	listErr error
	mu      sync.RWMutex
}

// NewMockTradeService создает новый мок сервиса журнала сделок
func NewMockTradeService() *MockTradeService {
	return &MockTradeService{
		trades: make(map[int]*models.Trade),
	}
}

func (m *MockTradeService) ListTrades(filter models.TradeFilter) (*service.TradeListResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.listErr != nil {
		return nil, m.listErr
	}

	result := make([]*models.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		if t.UID == filter.UID && t.Coin == filter.Coin {
			result = append(result, t)
		}
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	return &service.TradeListResult{
		Trades: result,
		Total:  len(result),
		Page:   page,
		Limit:  limit,
	}, nil
}

func (m *MockTradeService) GetTrade(id int) (*models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	if trade, ok := m.trades[id]; ok {
		return trade, nil
	}
	return nil, repository.ErrTradeNotFound
}

// AddTrade добавляет сделку напрямую (для настройки тестов)
func (m *MockTradeService) AddTrade(trade *models.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[trade.ID] = trade
}

// SetError устанавливает ошибку сервиса
func (m *MockTradeService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// ============ Mock Market Service ============

// MockMarketService мок для MarketServiceInterface
type MockMarketService struct {
	positions []*models.OpenPosition
	candles   []*models.Candle
	marketErr error
	mu        sync.RWMutex
}

// NewMockMarketService создает новый мок живых данных провайдера
func NewMockMarketService() *MockMarketService {
	return &MockMarketService{
		positions: []*models.OpenPosition{},
		candles:   []*models.Candle{},
	}
}

func (m *MockMarketService) GetOpenPositions(ctx context.Context, uid, coin string) ([]*models.OpenPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.marketErr != nil {
		return nil, m.marketErr
	}
	return m.positions, nil
}

func (m *MockMarketService) GetKlines(ctx context.Context, uid, symbol, interval string, since int64, limit int) ([]*models.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.marketErr != nil {
		return nil, m.marketErr
	}
	return m.candles, nil
}

// SetPositions устанавливает snapshot позиций напрямую
func (m *MockMarketService) SetPositions(positions []*models.OpenPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = positions
}

// SetCandles устанавливает свечи напрямую
func (m *MockMarketService) SetCandles(candles []*models.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles = candles
}

// SetError устанавливает ошибку сервиса
func (m *MockMarketService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketErr = err
}

// ============ Mock Playbook Service ============

// MockPlaybookService мок для PlaybookServiceInterface
type MockPlaybookService struct {
	playbooks map[int]*models.Playbook
	progress  *models.PlaybookTradeProgress
	createErr error
	checkErr  error
	nextID    int
	mu        sync.RWMutex
}

// NewMockPlaybookService создает новый мок сервиса плейбуков
func NewMockPlaybookService() *MockPlaybookService {
	return &MockPlaybookService{
		playbooks: make(map[int]*models.Playbook),
		nextID:    1,
	}
}

func (m *MockPlaybookService) Create(req *service.CreatePlaybookRequest) (*models.Playbook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, m.createErr
	}

	playbook := &models.Playbook{
		ID:     m.nextID,
		UserID: req.UserID,
		Name:   req.Name,
		Rules:  make([]models.PlaybookRule, 0, len(req.Rules)),
	}
	for i, text := range req.Rules {
		playbook.Rules = append(playbook.Rules, models.PlaybookRule{
			ID:         i + 1,
			PlaybookID: playbook.ID,
			Position:   i + 1,
			Text:       text,
		})
	}
	m.nextID++
	m.playbooks[playbook.ID] = playbook
	return playbook, nil
}

func (m *MockPlaybookService) GetByID(id int) (*models.Playbook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if playbook, ok := m.playbooks[id]; ok {
		return playbook, nil
	}
	return nil, repository.ErrPlaybookNotFound
}

func (m *MockPlaybookService) GetByUserID(userID int) ([]*models.Playbook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.Playbook
	for _, p := range m.playbooks {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockPlaybookService) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.playbooks[id]; !ok {
		return repository.ErrPlaybookNotFound
	}
	delete(m.playbooks, id)
	return nil
}

func (m *MockPlaybookService) SetCheck(tradeID, ruleID int, checked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkErr
}

func (m *MockPlaybookService) Progress(tradeID, playbookID int) (*models.PlaybookTradeProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.checkErr != nil {
		return nil, m.checkErr
	}
	if m.progress != nil {
		return m.progress, nil
	}
	return nil, repository.ErrPlaybookNotFound
}

// SetProgress устанавливает прогресс напрямую (для настройки тестов)
func (m *MockPlaybookService) SetProgress(progress *models.PlaybookTradeProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = progress
}

// SetError устанавливает ошибку для указанной операции
func (m *MockPlaybookService) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch operation {
	case "create":
		m.createErr = err
	case "check":
		m.checkErr = err
	}
}

// ============ Mock Stats Broadcaster ============

// MockStatsBroadcaster мок для StatsBroadcaster
type MockStatsBroadcaster struct {
	calls []string
	mu    sync.Mutex
}

func (m *MockStatsBroadcaster) BroadcastStatsUpdate(uid string, stats *models.Statistics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, uid)
}

// Calls возвращает uid'ы всех рассылок
func (m *MockStatsBroadcaster) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// ============ Helper errors for tests ============

var ErrMockService = errors.New("mock service error")

// ============ Проверяем, что моки реализуют интерфейсы ============

var _ service.AccountServiceInterface = (*MockAccountService)(nil)
var _ service.SyncServiceInterface = (*MockSyncService)(nil)
var _ service.StatsServiceInterface = (*MockStatsService)(nil)
var _ service.TradeServiceInterface = (*MockTradeService)(nil)
var _ service.MarketServiceInterface = (*MockMarketService)(nil)
var _ service.PlaybookServiceInterface = (*MockPlaybookService)(nil)
var _ StatsBroadcaster = (*MockStatsBroadcaster)(nil)
