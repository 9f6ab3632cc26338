package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
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
	bitgetBaseURL   = "https://api.bitget.com"
	bitgetPageLimit = 100
)

// Коды Bitget API v2, означающие невалидные учётные данные
var bitgetAuthCodes = map[string]bool{
	"40001": true, // ACCESS_KEY header required
	"40006": true, // invalid ACCESS_KEY
	"40009": true, // signature error
	"40012": true, // invalid passphrase
	"40037": true, // api key does not exist
}

// Bitget реализует интерфейс Provider для биржи Bitget (API v2)
type Bitget struct {
	apiKey    string
	secretKey string

	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	retryCfg   retry.Config
	maxPages   int
}

// NewBitget создает новый экземпляр клиента Bitget
func NewBitget(apiKey, secretKey string, opts Options) *Bitget {
	opts.applyDefaults()
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = bitgetBaseURL
	}
	return &Bitget{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: opts.HTTPClient.GetClient(),
		limiter:    opts.Limiter,
		retryCfg:   opts.Retry,
		maxPages:   opts.MaxPages,
	}
}

func (b *Bitget) Name() string {
	return models.ProviderBitget
}

// sign создает подпись запроса: base64(HMAC-SHA256(timestamp + METHOD + path?query + body))
func (b *Bitget) sign(timestamp, method, pathWithQuery, body string) string {
	message := timestamp + strings.ToUpper(method) + pathWithQuery + body
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// bitgetProductType возвращает productType для валюты расчётов
func bitgetProductType(coin string) string {
	switch coin {
	case "USDC":
		return "USDC-FUTURES"
	case "USDT":
		return "USDT-FUTURES"
	default:
		return "COIN-FUTURES"
	}
}

// doRequest выполняет HTTP запрос с retry для временных ошибок
func (b *Bitget) doRequest(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	cfg := b.retryCfg
	cfg.RetryIf = func(err error) bool {
		return retry.RetryIfNotContext(err) && retry.IsRetryable(err)
	}
	return retry.DoWithResult(ctx, func() ([]byte, error) {
		return b.doRequestOnce(ctx, method, endpoint, params, signed)
	}, cfg)
}

// doRequestOnce выполняет один запрос к Bitget API и классифицирует ошибку
func (b *Bitget) doRequestOnce(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	encoded := query.Encode()

	pathWithQuery := endpoint
	if encoded != "" {
		pathWithQuery += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+pathWithQuery, strings.NewReader(""))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("locale", "en-US")

	if signed {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		signature := b.sign(timestamp, method, pathWithQuery, "")

		req.Header.Set("ACCESS-KEY", b.apiKey)
		req.Header.Set("ACCESS-SIGN", signature)
		req.Header.Set("ACCESS-TIMESTAMP", timestamp)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: "bitget", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Provider: "bitget", Message: "failed to read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &TransientError{Provider: "bitget", Message: "rate limited"}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Provider: "bitget", Code: strconv.Itoa(resp.StatusCode), Message: "request rejected"}
	case resp.StatusCode >= 500:
		return nil, &TransientError{Provider: "bitget", Message: fmt.Sprintf("server error %d", resp.StatusCode)}
	}

	var baseResp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, &DataError{Provider: "bitget", Message: "unparseable response envelope", Err: err}
	}

	if baseResp.Code != "00000" {
		if bitgetAuthCodes[baseResp.Code] {
			return nil, &AuthError{Provider: "bitget", Code: baseResp.Code, Message: baseResp.Msg}
		}
		return nil, &DataError{Provider: "bitget", Message: fmt.Sprintf("api error %s: %s", baseResp.Code, baseResp.Msg)}
	}

	return body, nil
}

// GetAccountUID возвращает userId, привязанный к API ключу
func (b *Bitget) GetAccountUID(ctx context.Context) (string, error) {
	body, err := b.doRequest(ctx, http.MethodGet, "/api/v2/spot/account/info", nil, true)
	if err != nil {
		return "", err
	}

	var resp struct {
		Data struct {
			UserID string `json:"userId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &DataError{Provider: "bitget", Message: "unparseable account info", Err: err}
	}
	if resp.Data.UserID == "" {
		return "", &DataError{Provider: "bitget", Message: "account info has no userId"}
	}

	return resp.Data.UserID, nil
}

// bitgetPosition - wire-формат открытой позиции Bitget
type bitgetPosition struct {
	Symbol           string `json:"symbol"`
	HoldSide         string `json:"holdSide"` // long или short
	Total            string `json:"total"`
	OpenPriceAvg     string `json:"openPriceAvg"`
	MarkPrice        string `json:"markPrice"`
	Leverage         string `json:"leverage"`
	UnrealizedPL     string `json:"unrealizedPL"`
	LiquidationPrice string `json:"liquidationPrice"`
	UTime            string `json:"uTime"`
}

func (b *Bitget) GetOpenPositions(ctx context.Context, coin string) ([]*models.OpenPosition, error) {
	params := map[string]string{
		"productType": bitgetProductType(coin),
		"marginCoin":  coin,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v2/mix/position/all-position", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []bitgetPosition `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DataError{Provider: "bitget", Message: "unparseable position list", Err: err}
	}

	positions := make([]*models.OpenPosition, 0, len(resp.Data))
	for _, item := range resp.Data {
		pos, err := b.normalizePosition(item)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}

	return positions, nil
}

func (b *Bitget) normalizePosition(item bitgetPosition) (*models.OpenPosition, error) {
	size, err := b.parseFloat("total", item.Total)
	if err != nil {
		return nil, err
	}
	entry, err := b.parseFloat("openPriceAvg", item.OpenPriceAvg)
	if err != nil {
		return nil, err
	}
	mark, err := b.parseFloat("markPrice", item.MarkPrice)
	if err != nil {
		return nil, err
	}
	upnl, err := b.parseFloat("unrealizedPL", item.UnrealizedPL)
	if err != nil {
		return nil, err
	}
	liq, err := b.parseFloat("liquidationPrice", item.LiquidationPrice)
	if err != nil {
		return nil, err
	}
	leverage, err := b.parseFloat("leverage", item.Leverage)
	if err != nil {
		return nil, err
	}
	updated, err := b.parseMillis("uTime", item.UTime)
	if err != nil {
		return nil, err
	}

	side := models.SideLong
	if item.HoldSide == "short" {
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

// bitgetHistoryPosition - wire-формат закрытой позиции Bitget
type bitgetHistoryPosition struct {
	PositionID   string `json:"positionId"`
	Symbol       string `json:"symbol"`
	HoldSide     string `json:"holdSide"`
	OpenAvgPrice string `json:"openAvgPrice"`
	CloseAvgPrice string `json:"closeAvgPrice"`
	OpenTotalPos string `json:"openTotalPos"`
	NetProfit    string `json:"netProfit"`
	CTime        string `json:"ctime"`
	UTime        string `json:"utime"`
}

// GetClosedTrades выгружает историю закрытых позиций начиная с since
// (инклюзивно). Пагинация по idLessThan проходится полностью.
func (b *Bitget) GetClosedTrades(ctx context.Context, coin string, since int64) ([]*models.Trade, error) {
	var trades []*models.Trade
	idLessThan := ""

	for page := 0; page < b.maxPages; page++ {
		params := map[string]string{
			"productType": bitgetProductType(coin),
			"limit":       strconv.Itoa(bitgetPageLimit),
		}
		if since > 0 {
			params["startTime"] = strconv.FormatInt(since, 10)
		}
		if idLessThan != "" {
			params["idLessThan"] = idLessThan
		}

		body, err := b.doRequest(ctx, http.MethodGet, "/api/v2/mix/position/history-position", params, true)
		if err != nil {
			return nil, err
		}

		var resp struct {
			Data struct {
				List  []bitgetHistoryPosition `json:"list"`
				EndID string                  `json:"endId"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &DataError{Provider: "bitget", Message: "unparseable history page", Err: err}
		}

		for _, item := range resp.Data.List {
			trade, err := b.normalizeHistoryPosition(coin, item)
			if err != nil {
				return nil, err
			}
			trades = append(trades, trade)
		}

		if resp.Data.EndID == "" || len(resp.Data.List) < bitgetPageLimit {
			break
		}
		idLessThan = resp.Data.EndID
	}

	// Инклюзивная нижняя граница, дубликаты отсекает дедупликация
	// по positionId на стороне хранилища
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

func (b *Bitget) normalizeHistoryPosition(coin string, item bitgetHistoryPosition) (*models.Trade, error) {
	if item.PositionID == "" {
		return nil, &DataError{Provider: "bitget", Message: "history entry has no positionId"}
	}

	qty, err := b.parseFloat("openTotalPos", item.OpenTotalPos)
	if err != nil {
		return nil, err
	}
	entry, err := b.parseFloat("openAvgPrice", item.OpenAvgPrice)
	if err != nil {
		return nil, err
	}
	exit, err := b.parseFloat("closeAvgPrice", item.CloseAvgPrice)
	if err != nil {
		return nil, err
	}
	pnl, err := b.parseFloat("netProfit", item.NetProfit)
	if err != nil {
		return nil, err
	}
	openTime, err := b.parseMillis("ctime", item.CTime)
	if err != nil {
		return nil, err
	}
	closeTime, err := b.parseMillis("utime", item.UTime)
	if err != nil {
		return nil, err
	}

	side := models.SideLong
	if item.HoldSide == "short" {
		side = models.SideShort
	}

	return &models.Trade{
		PositionID: item.PositionID,
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

// GetKlines возвращает свечи по символу (публичный endpoint)
func (b *Bitget) GetKlines(ctx context.Context, symbol, interval string, since int64, limit int) ([]*models.Candle, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	params := map[string]string{
		"productType": "USDT-FUTURES",
		"symbol":      symbol,
		"granularity": interval,
		"limit":       strconv.Itoa(limit),
	}
	if since > 0 {
		params["startTime"] = strconv.FormatInt(since, 10)
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v2/mix/market/candles", params, false)
	if err != nil {
		return nil, err
	}

	// Каждая свеча - массив строк: [ts, open, high, low, close, baseVol, quoteVol]
	var resp struct {
		Data [][]string `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DataError{Provider: "bitget", Message: "unparseable candle list", Err: err}
	}

	candles := make([]*models.Candle, 0, len(resp.Data))
	for _, row := range resp.Data {
		if len(row) < 6 {
			return nil, &DataError{Provider: "bitget", Message: fmt.Sprintf("candle row has %d fields, want 6+", len(row))}
		}

		start, err := b.parseMillis("candle.ts", row[0])
		if err != nil {
			return nil, err
		}
		open, err := b.parseFloat("candle.open", row[1])
		if err != nil {
			return nil, err
		}
		high, err := b.parseFloat("candle.high", row[2])
		if err != nil {
			return nil, err
		}
		low, err := b.parseFloat("candle.low", row[3])
		if err != nil {
			return nil, err
		}
		closePrice, err := b.parseFloat("candle.close", row[4])
		if err != nil {
			return nil, err
		}
		volume, err := b.parseFloat("candle.volume", row[5])
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

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].StartTime < candles[j].StartTime
	})

	return candles, nil
}

func (b *Bitget) parseFloat(field, value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &DataError{Provider: "bitget", Message: fmt.Sprintf("field %s: %q is not a number", field, value), Err: err}
	}
	return f, nil
}

func (b *Bitget) parseMillis(field, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, &DataError{Provider: "bitget", Message: fmt.Sprintf("field %s: %q is not a timestamp", field, value), Err: err}
	}
	return ms, nil
}
