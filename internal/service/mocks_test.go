package service

import (
	"context"
	"errors"
	"sync"

	"tradejournal/internal/models"
	"tradejournal/internal/provider"
)

// ============================================================
// In-memory моки репозиториев и провайдера для тестов сервисов
// ============================================================

type mockAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.Account // uid -> account
	nextID   int
	err      error
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[string]*models.Account), nextID: 1}
}

func (m *mockAccountRepo) Create(account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.accounts[account.UID]; ok {
		return errors.New("duplicate key")
	}
	account.ID = m.nextID
	m.nextID++
	m.accounts[account.UID] = account
	return nil
}

func (m *mockAccountRepo) GetByID(id int) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errors.New("account not found")
}

func (m *mockAccountRepo) GetByUID(uid string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[uid]
	if !ok {
		return nil, errors.New("account not found")
	}
	return a, nil
}

func (m *mockAccountRepo) GetByUserID(userID int) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAccountRepo) GetAll() ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Account
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAccountRepo) UpdateCredentials(id int, keyEnc, keyIV, secretEnc, secretIV string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID == id {
			a.APIKeyEnc, a.APIKeyIV = keyEnc, keyIV
			a.APISecretEnc, a.APISecretIV = secretEnc, secretIV
			return nil
		}
	}
	return errors.New("account not found")
}

func (m *mockAccountRepo) UpdateLabel(id int, label string) error { return nil }

func (m *mockAccountRepo) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, a := range m.accounts {
		if a.ID == id {
			delete(m.accounts, uid)
			return nil
		}
	}
	return errors.New("account not found")
}

func (m *mockAccountRepo) ExistsByUID(uid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[uid]
	return ok, nil
}

type mockSyncRepo struct {
	mu         sync.Mutex
	watermarks map[string]int64 // "uid|coin" -> watermark
	err        error
}

func newMockSyncRepo() *mockSyncRepo {
	return &mockSyncRepo{watermarks: make(map[string]int64)}
}

func (m *mockSyncRepo) GetWatermark(uid, coin string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.watermarks[uid+"|"+coin], nil
}

func (m *mockSyncRepo) Get(uid, coin string) (*models.AccountSync, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.AccountSync{UID: uid, Coin: coin, LastSyncTime: m.watermarks[uid+"|"+coin]}, nil
}

// AdvanceWatermark повторяет семантику условного upsert'а: только вперёд
func (m *mockSyncRepo) AdvanceWatermark(uid, coin string, watermark int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	key := uid + "|" + coin
	if watermark <= m.watermarks[key] {
		return false, nil
	}
	m.watermarks[key] = watermark
	return true, nil
}

func (m *mockSyncRepo) GetAllByUID(uid string) ([]*models.AccountSync, error) { return nil, nil }

func (m *mockSyncRepo) DeleteByUID(uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.watermarks {
		if len(key) > len(uid) && key[:len(uid)+1] == uid+"|" {
			delete(m.watermarks, key)
		}
	}
	return nil
}

type mockTradeRepo struct {
	mu     sync.Mutex
	trades []*models.Trade
	seen   map[string]bool // "uid|positionId"
	nextID int
	err    error
}

func newMockTradeRepo() *mockTradeRepo {
	return &mockTradeRepo{seen: make(map[string]bool), nextID: 1}
}

// InsertIfAbsent повторяет семантику ON CONFLICT DO NOTHING
func (m *mockTradeRepo) InsertIfAbsent(trade *models.Trade) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	key := trade.UID + "|" + trade.PositionID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	cp := *trade
	cp.ID = m.nextID
	m.nextID++
	m.trades = append(m.trades, &cp)
	return true, nil
}

func (m *mockTradeRepo) GetByID(id int) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trades {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, errors.New("trade not found")
}

func (m *mockTradeRepo) List(filter models.TradeFilter) ([]*models.Trade, error) {
	return m.ListForStats(filter)
}

func (m *mockTradeRepo) ListForStats(filter models.TradeFilter) ([]*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Trade
	for _, t := range m.trades {
		if t.UID != filter.UID || t.Coin != filter.Coin {
			continue
		}
		if filter.Symbol != "" && t.Symbol != filter.Symbol {
			continue
		}
		if filter.FromTime > 0 && t.CloseTime < filter.FromTime {
			continue
		}
		if filter.ToTime > 0 && t.CloseTime > filter.ToTime {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTradeRepo) Count(filter models.TradeFilter) (int, error) {
	trades, _ := m.ListForStats(filter)
	return len(trades), nil
}

func (m *mockTradeRepo) MaxCloseTime(uid, coin string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, t := range m.trades {
		if t.UID == uid && t.Coin == coin && t.CloseTime > max {
			max = t.CloseTime
		}
	}
	return max, nil
}

func (m *mockTradeRepo) DeleteByUID(uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*models.Trade
	for _, t := range m.trades {
		if t.UID != uid {
			kept = append(kept, t)
		}
	}
	m.trades = kept
	return nil
}

type mockPlaybookRepo struct {
	playbook *models.Playbook
	checks   map[int]int // trade_id -> checked count
}

func (m *mockPlaybookRepo) Create(playbook *models.Playbook) error { return nil }

func (m *mockPlaybookRepo) GetByID(id int) (*models.Playbook, error) {
	if m.playbook == nil || m.playbook.ID != id {
		return nil, errors.New("playbook not found")
	}
	return m.playbook, nil
}

func (m *mockPlaybookRepo) GetByUserID(userID int) ([]*models.Playbook, error) { return nil, nil }
func (m *mockPlaybookRepo) Delete(id int) error                                { return nil }
func (m *mockPlaybookRepo) SetCheck(tradeID, ruleID int, checked bool) error   { return nil }

func (m *mockPlaybookRepo) GetProgress(tradeID, playbookID int) (*models.PlaybookTradeProgress, error) {
	return nil, nil
}

func (m *mockPlaybookRepo) CountChecksByPlaybook(playbookID int) (map[int]int, error) {
	if m.checks == nil {
		return map[int]int{}, nil
	}
	return m.checks, nil
}

// mockProvider - подменный клиент провайдера
type mockProvider struct {
	name      string
	uid       string
	uidErr    error
	trades    []*models.Trade
	tradesErr error
	positions []*models.OpenPosition
	posErr    error
	candles   []*models.Candle
	klinesErr error

	mu         sync.Mutex
	fetchCalls int
	lastSince  int64
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) GetAccountUID(ctx context.Context) (string, error) {
	if m.uidErr != nil {
		return "", m.uidErr
	}
	return m.uid, nil
}

func (m *mockProvider) GetOpenPositions(ctx context.Context, coin string) ([]*models.OpenPosition, error) {
	if m.posErr != nil {
		return nil, m.posErr
	}
	return m.positions, nil
}

// GetClosedTrades повторяет контракт провайдера: инклюзивная граница since
func (m *mockProvider) GetClosedTrades(ctx context.Context, coin string, since int64) ([]*models.Trade, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.lastSince = since
	m.mu.Unlock()

	if m.tradesErr != nil {
		return nil, m.tradesErr
	}

	var out []*models.Trade
	for _, t := range m.trades {
		if t.CloseTime >= since {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockProvider) GetKlines(ctx context.Context, symbol, interval string, since int64, limit int) ([]*models.Candle, error) {
	if m.klinesErr != nil {
		return nil, m.klinesErr
	}
	return m.candles, nil
}

var _ provider.Provider = (*mockProvider)(nil)

// mockFactory возвращает заранее заданный клиент
type mockFactory struct {
	client *mockProvider
	err    error
}

func (f *mockFactory) New(name, apiKey, apiSecret string) (provider.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}
