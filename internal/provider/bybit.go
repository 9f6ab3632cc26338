package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradejournal/internal/models"
	"tradejournal/pkg/ratelimit"
	"tradejournal/pkg/retry"
)

const (
	bybitBaseURL    = "https://api.bybit.com"
	bybitRecvWindow = "5000"
	bybitPageLimit  = 100
)

// Коды Bybit API v5, означающие невалидные учётные данные
var bybitAuthCodes = map[int]bool{
	10003: true, // invalid api key
	10004: true, // error sign
	10005: true, // permission denied
	10010: true, // unmatched IP
	33004: true, // api key expired
}

// Коды Bybit, означающие rate-limit (retry с backoff)
var bybitRateLimitCodes = map[int]bool{
	10006: true, // too many visits
	10018: true, // exceeded IP rate limit
}

// Bybit реализует интерфейс Provider для биржи Bybit (API v5)
type Bybit struct {
	apiKey    string
	secretKey string

	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	retryCfg   retry.Config
	maxPages   int
}

// NewBybit создает новый экземпляр клиента Bybit
func NewBybit(apiKey, secretKey string, opts Options) *Bybit {
	opts.applyDefaults()
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = bybitBaseURL
	}
	return &Bybit{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: opts.HTTPClient.GetClient(),
		limiter:    opts.Limiter,
		retryCfg:   opts.Retry,
		maxPages:   opts.MaxPages,
	}
}

func (b *Bybit) Name() string {
	return models.ProviderBybit
}

// sign создает подпись для запроса к Bybit API v5
func (b *Bybit) sign(timestamp string, params string) string {
	message := timestamp + b.apiKey + bybitRecvWindow + params
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос с retry для временных ошибок.
// AuthError и DataError не retry'ятся.
func (b *Bybit) doRequest(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	cfg := b.retryCfg
	cfg.RetryIf = func(err error) bool {
		return retry.RetryIfNotContext(err) && retry.IsRetryable(err)
	}
	return retry.DoWithResult(ctx, func() ([]byte, error) {
		return b.doRequestOnce(ctx, method, endpoint, params, signed)
	}, cfg)
}

// doRequestOnce выполняет один HTTP запрос к Bybit API и классифицирует ошибку
func (b *Bybit) doRequestOnce(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	encoded := query.Encode()

	reqURL := b.baseURL + endpoint
	if encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(""))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if signed {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		signature := b.sign(timestamp, encoded)

		req.Header.Set("X-BAPI-API-KEY", b.apiKey)
		req.Header.Set("X-BAPI-SIGN", signature)
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: "bybit", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Provider: "bybit", Message: "failed to read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &TransientError{Provider: "bybit", Message: "rate limited"}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Provider: "bybit", Code: strconv.Itoa(resp.StatusCode), Message: "request rejected"}
	case resp.StatusCode >= 500:
		return nil, &TransientError{Provider: "bybit", Message: fmt.Sprintf("server error %d", resp.StatusCode)}
	}

	// Базовый ответ присутствует во всех endpoint'ах v5
	var baseResp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, &DataError{Provider: "bybit", Message: "unparseable response envelope", Err: err}
	}

	if baseResp.RetCode != 0 {
		code := strconv.Itoa(baseResp.RetCode)
		switch {
		case bybitAuthCodes[baseResp.RetCode]:
			return nil, &AuthError{Provider: "bybit", Code: code, Message: baseResp.RetMsg}
		case bybitRateLimitCodes[baseResp.RetCode]:
			return nil, &TransientError{Provider: "bybit", Message: baseResp.RetMsg}
		default:
			return nil, &DataError{Provider: "bybit", Message: fmt.Sprintf("api error %s: %s", code, baseResp.RetMsg)}
		}
	}

	return body, nil
}

// GetAccountUID возвращает userID, привязанный к API ключу
func (b *Bybit) GetAccountUID(ctx context.Context) (string, error) {
	body, err := b.doRequest(ctx, http.MethodGet, "/v5/user/query-api", nil, true)
	if err != nil {
		return "", err
	}

	var resp struct {
		Result struct {
			UserID int `json:"userID"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &DataError{Provider: "bybit", Message: "unparseable api key info", Err: err}
	}
	if resp.Result.UserID == 0 {
		return "", &DataError{Provider: "bybit", Message: "api key info has no userID"}
	}

	return strconv.Itoa(resp.Result.UserID), nil
}

// bybitPosition - wire-формат открытой позиции Bybit
type bybitPosition struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"` // Buy = long, Sell = short
	Size          string `json:"size"`
	AvgPrice      string `json:"avgPrice"`
	MarkPrice     string `json:"markPrice"`
	Leverage      string `json:"leverage"`
	UnrealisedPnl string `json:"unrealisedPnl"`
	LiqPrice      string `json:"liqPrice"`
	UpdatedTime   string `json:"updatedTime"`
}

func (b *Bybit) GetOpenPositions(ctx context.Context, coin string) ([]*models.OpenPosition, error) {
	params := map[string]string{
		"category":   "linear",
		"settleCoin": coin,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/position/list", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []bybitPosition `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DataError{Provider: "bybit", Message: "unparseable position list", Err: err}
	}

	positions := make([]*models.OpenPosition, 0, len(resp.Result.List))
	for _, item := range resp.Result.List {
		pos, err := b.normalizePosition(item)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}

	return positions, nil
}

// normalizePosition преобразует wire-формат Bybit в каноническую модель
func (b *Bybit) normalizePosition(item bybitPosition) (*models.OpenPosition, error) {
	size, err := b.parseFloat("size", item.Size)
	if err != nil {
		return nil, err
	}
	entry, err := b.parseFloat("avgPrice", item.AvgPrice)
	if err != nil {
		return nil, err
	}
	mark, err := b.parseFloat("markPrice", item.MarkPrice)
	if err != nil {
		return nil, err
	}
	upnl, err := b.parseFloat("unrealisedPnl", item.UnrealisedPnl)
	if err != nil {
		return nil, err
	}
	liq, err := b.parseFloat("liqPrice", item.LiqPrice)
	if err != nil {
		return nil, err
	}
	leverage, err := b.parseFloat("leverage", item.Leverage)
	if err != nil {
		return nil, err
	}
	updated, err := b.parseMillis("updatedTime", item.UpdatedTime)
	if err != nil {
		return nil, err
	}

	side := models.SideLong
	if item.Side == "Sell" {
		side = models.SideShort
	}

	return &models.OpenPosition{
		Symbol:           item.Symbol,
		Side:             side,
		Size:             size,
		EntryPrice:       entry,
		MarkPrice:        mark,
		Leverage:         int(leverage),
		UnrealizedPnl:    upnl,
		LiquidationPrice: liq,
		UpdatedAt:        updated,
	}, nil
}

// bybitClosedPnl - wire-формат записи closed-pnl Bybit
type bybitClosedPnl struct {
	Symbol        string `json:"symbol"`
	OrderID       string `json:"orderId"`
	Side          string `json:"side"` // сторона закрывающего ордера: Sell закрывает long
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avgEntryPrice"`
	AvgExitPrice  string `json:"avgExitPrice"`
	ClosedPnl     string `json:"closedPnl"`
	CreatedTime   string `json:"createdTime"`
	UpdatedTime   string `json:"updatedTime"`
}

// GetClosedTrades выгружает закрытые позиции начиная с since (инклюзивно).
//
// Пагинация по курсору проходится полностью. Провайдер может вернуть
// записи, уже слитые в прошлый цикл (граница инклюзивна) - дедупликация
// по positionId на стороне хранилища делает это безопасным.
func (b *Bybit) GetClosedTrades(ctx context.Context, coin string, since int64) ([]*models.Trade, error) {
	var trades []*models.Trade
	cursor := ""

	for page := 0; page < b.maxPages; page++ {
		params := map[string]string{
			"category": "linear",
			"limit":    strconv.Itoa(bybitPageLimit),
		}
		if since > 0 {
			params["startTime"] = strconv.FormatInt(since, 10)
		}
		if cursor != "" {
			params["cursor"] = cursor
		}

		body, err := b.doRequest(ctx, http.MethodGet, "/v5/position/closed-pnl", params, true)
		if err != nil {
			return nil, err
		}

		var resp struct {
			Result struct {
				List           []bybitClosedPnl `json:"list"`
				NextPageCursor string           `json:"nextPageCursor"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &DataError{Provider: "bybit", Message: "unparseable closed-pnl page", Err: err}
		}

		for _, item := range resp.Result.List {
			trade, err := b.normalizeClosedPnl(coin, item)
			if err != nil {
				return nil, err
			}
			trades = append(trades, trade)
		}

		cursor = resp.Result.NextPageCursor
		if cursor == "" || len(resp.Result.List) == 0 {
			break
		}
	}

	// Инклюзивная нижняя граница: сделка с closeTime == since включается,
	// её отсечёт дедупликация по positionId, а не фильтр по времени
	filtered := trades[:0]
	for _, t := range trades {
		if t.CloseTime >= since {
			filtered = append(filtered, t)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CloseTime < filtered[j].CloseTime
	})

	return filtered, nil
}

// normalizeClosedPnl преобразует запись closed-pnl в каноническую сделку
func (b *Bybit) normalizeClosedPnl(coin string, item bybitClosedPnl) (*models.Trade, error) {
	if item.OrderID == "" {
		return nil, &DataError{Provider: "bybit", Message: "closed-pnl entry has no orderId"}
	}

	qty, err := b.parseFloat("qty", item.Qty)
	if err != nil {
		return nil, err
	}
	entry, err := b.parseFloat("avgEntryPrice", item.AvgEntryPrice)
	if err != nil {
		return nil, err
	}
	exit, err := b.parseFloat("avgExitPrice", item.AvgExitPrice)
	if err != nil {
		return nil, err
	}
	pnl, err := b.parseFloat("closedPnl", item.ClosedPnl)
	if err != nil {
		return nil, err
	}
	openTime, err := b.parseMillis("createdTime", item.CreatedTime)
	if err != nil {
		return nil, err
	}
	closeTime, err := b.parseMillis("updatedTime", item.UpdatedTime)
	if err != nil {
		return nil, err
	}

	// Side в closed-pnl - сторона закрывающего ордера:
	// Sell закрывает длинную позицию, Buy - короткую
	side := models.SideShort
	if item.Side == "Sell" {
		side = models.SideLong
	}

	return &models.Trade{
		PositionID: item.OrderID,
		Coin:       coin,
		Symbol:     item.Symbol,
		Side:       side,
		EntryPrice: entry,
		ExitPrice:  exit,
		Quantity:   qty,
		Pnl:        pnl,
		OpenTime:   openTime,
		CloseTime:  closeTime,
		Win:        pnl > 0,
	}, nil
}

// GetKlines возвращает свечи по символу (публичный endpoint, без подписи)
func (b *Bybit) GetKlines(ctx context.Context, symbol, interval string, since int64, limit int) ([]*models.Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}
	if since > 0 {
		params["start"] = strconv.FormatInt(since, 10)
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/market/kline", params, false)
	if err != nil {
		return nil, err
	}

	// Каждая свеча - массив строк: [startTime, open, high, low, close, volume, turnover]
	var resp struct {
		Result struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DataError{Provider: "bybit", Message: "unparseable kline list", Err: err}
	}

	candles := make([]*models.Candle, 0, len(resp.Result.List))
	for _, row := range resp.Result.List {
		if len(row) < 6 {
			return nil, &DataError{Provider: "bybit", Message: fmt.Sprintf("kline row has %d fields, want 6+", len(row))}
		}

		start, err := b.parseMillis("kline.start", row[0])
		if err != nil {
			return nil, err
		}
		open, err := b.parseFloat("kline.open", row[1])
		if err != nil {
			return nil, err
		}
		high, err := b.parseFloat("kline.high", row[2])
		if err != nil {
			return nil, err
		}
		low, err := b.parseFloat("kline.low", row[3])
		if err != nil {
			return nil, err
		}
		closePrice, err := b.parseFloat("kline.close", row[4])
		if err != nil {
			return nil, err
		}
		volume, err := b.parseFloat("kline.volume", row[5])
		if err != nil {
			return nil, err
		}

		candles = append(candles, &models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			StartTime: start,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	// Bybit возвращает свечи от новых к старым - разворачиваем
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].StartTime < candles[j].StartTime
	})

	return candles, nil
}

// parseFloat разбирает числовое поле, приходящее строкой.
// Пустая строка трактуется как 0 (Bybit опускает незаполненные поля).
func (b *Bybit) parseFloat(field, value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &DataError{Provider: "bybit", Message: fmt.Sprintf("field %s: %q is not a number", field, value), Err: err}
	}
	return f, nil
}

// parseMillis разбирает таймстемп в миллисекундах, приходящий строкой
func (b *Bybit) parseMillis(field, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, &DataError{Provider: "bybit", Message: fmt.Sprintf("field %s: %q is not a timestamp", field, value), Err: err}
	}
	return ms, nil
}
