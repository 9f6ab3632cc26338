package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tradejournal/internal/provider"
	"tradejournal/internal/repository"
	"tradejournal/internal/service"
	"tradejournal/pkg/utils"
)

// MarketHandler обрабатывает HTTP запросы за живыми данными провайдера.
//
// Endpoints:
// - GET /api/v1/accounts/{uid}/positions?coin=USDT - snapshot открытых позиций
// - GET /api/v1/accounts/{uid}/klines?symbol=BTCUSDT&interval=60 - свечи
//
// Данные запрашиваются у биржи на каждый вызов и нигде не сохраняются.
type MarketHandler struct {
	marketService service.MarketServiceInterface
}

// NewMarketHandler создает новый MarketHandler с внедрением зависимостей.
func NewMarketHandler(marketService service.MarketServiceInterface) *MarketHandler {
	return &MarketHandler{
		marketService: marketService,
	}
}

// GetOpenPositions возвращает snapshot открытых позиций аккаунта.
//
// GET /api/v1/accounts/{uid}/positions?coin=USDT
//
// Response 200 OK:
//
//	{
//	  "positions": [
//	    {
//	      "symbol": "BTCUSDT",
//	      "side": "long",
//	      "size": 0.5,
//	      "entry_price": 42000.5,
//	      "mark_price": 42100.0,
//	      "leverage": 10,
//	      "unrealized_pnl": 49.75,
//	      "liquidation_price": 38000.0
//	    }
//	  ]
//	}
//
// Response 401 Unauthorized:
//
//	{"error": "invalid_api_credentials"}
func (h *MarketHandler) GetOpenPositions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Проверяем, что сервис инициализирован
	if h.marketService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "market service not initialized",
		})
		return
	}

	uid := mux.Vars(r)["uid"]
	coin := r.URL.Query().Get("coin")
	if coin == "" {
		coin = "USDT"
	}

	positions, err := h.marketService.GetOpenPositions(r.Context(), uid, coin)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"positions": positions,
	})
}

// GetKlines возвращает свечи по символу.
//
// GET /api/v1/accounts/{uid}/klines?symbol=BTCUSDT&interval=60&since=0&limit=200
//
// Query Parameters:
// - symbol (required): торговая пара
// - interval (optional): интервал свечи в нотации провайдера, по умолчанию 60
// - since (optional): начало диапазона, epoch миллисекунды
// - limit (optional): максимум свечей, по умолчанию 200
func (h *MarketHandler) GetKlines(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.marketService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "market service not initialized",
		})
		return
	}

	uid := mux.Vars(r)["uid"]
	q := r.URL.Query()

	symbol := q.Get("symbol")
	if symbol == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "symbol query parameter is required",
		})
		return
	}

	interval := q.Get("interval")
	since := parseInt64Param(q.Get("since"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	candles, err := h.marketService.GetKlines(r.Context(), uid, symbol, interval, since, limit)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"candles": candles,
	})
}

// writeMarketError транслирует ошибки живых запросов к провайдеру в HTTP статусы
func writeMarketError(w http.ResponseWriter, err error) {
	var verr utils.ValidationErrors
	switch {
	case errors.Is(err, service.ErrInvalidAPICredentials):
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid_api_credentials",
		})
	case errors.Is(err, repository.ErrAccountNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "account not found",
		})
	case errors.As(err, &verr):
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
	case provider.IsTransientError(err), provider.IsDataError(err):
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "provider unavailable",
			"details": err.Error(),
		})
	default:
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to query provider",
			"details": err.Error(),
		})
	}
}
