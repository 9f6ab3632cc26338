package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tradejournal/internal/models"
	"tradejournal/internal/repository"
	"tradejournal/internal/service"
	"tradejournal/pkg/utils"
)

// TradeHandler обрабатывает HTTP запросы для журнала закрытых сделок.
//
// Endpoints:
// - GET /api/v1/trades?uid=...&coin=USDT - страница сделок по фильтру
// - GET /api/v1/trades/{id} - одна сделка по id
//
// Журнал read-only: сделки появляются только через синхронизацию.
// Параметр sync=true включает sync-then-query: перед выборкой
// выполняется цикл синхронизации, ответ содержит synced/merged.
type TradeHandler struct {
	tradeService service.TradeServiceInterface
	syncService  service.SyncServiceInterface
}

// NewTradeHandler создает новый TradeHandler с внедрением зависимостей.
// syncService может быть nil - тогда sync=true недоступен.
func NewTradeHandler(tradeService service.TradeServiceInterface, syncService service.SyncServiceInterface) *TradeHandler {
	return &TradeHandler{
		tradeService: tradeService,
		syncService:  syncService,
	}
}

// GetTrades возвращает страницу сделок по фильтру.
//
// GET /api/v1/trades?uid=100400500&coin=USDT&symbol=BTCUSDT&from=0&to=0&page=1&limit=50
//
// Query Parameters:
// - uid (required): uid аккаунта у провайдера
// - coin (required): валюта расчётов (USDT, USDC)
// - symbol (optional): фильтр по торговой паре
// - from, to (optional): диапазон close_time в epoch миллисекундах
// - page (optional): страница, по умолчанию 1
// - limit (optional): размер страницы, по умолчанию 50, максимум 500
//
// Response 200 OK:
//
//	{
//	  "trades": [
//	    {
//	      "id": 12,
//	      "uid": "100400500",
//	      "position_id": "pos-777",
//	      "coin": "USDT",
//	      "symbol": "BTCUSDT",
//	      "side": "long",
//	      "entry_price": 42000.5,
//	      "exit_price": 43100.0,
//	      "quantity": 0.5,
//	      "pnl": 549.75,
//	      "open_time": 1700000000000,
//	      "close_time": 1700003600000,
//	      "win": true
//	    }
//	  ],
//	  "total": 135,
//	  "page": 1,
//	  "limit": 50
//	}
//
// Response 400 Bad Request:
//
//	{"error": "validation failed: coin: invalid coin format"}
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Проверяем, что сервис инициализирован
	if h.tradeService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "trade service not initialized",
		})
		return
	}

	q := r.URL.Query()

	filter := models.TradeFilter{
		UID:    q.Get("uid"),
		Coin:   q.Get("coin"),
		Symbol: q.Get("symbol"),
	}

	if filter.UID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "uid query parameter is required",
		})
		return
	}
	if filter.Coin == "" {
		filter.Coin = "USDT"
	}

	filter.FromTime = parseInt64Param(q.Get("from"))
	filter.ToTime = parseInt64Param(q.Get("to"))
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	// sync-then-query: цикл синхронизации до выборки, чтобы страница
	// включала только что закрытые сделки
	synced := false
	merged := 0
	if q.Get("sync") == "true" {
		if h.syncService == nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "sync service not initialized",
			})
			return
		}

		syncResult, err := h.syncService.SyncAccount(r.Context(), filter.UID, filter.Coin)
		if err != nil {
			writeSyncError(w, err)
			return
		}
		synced = syncResult.Synced
		merged = syncResult.Merged
	}

	result, err := h.tradeService.ListTrades(filter)
	if err != nil {
		var verr utils.ValidationErrors
		if errors.As(err, &verr) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error": err.Error(),
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to get trades",
			"details": err.Error(),
		})
		return
	}

	result.Synced = synced
	result.Merged = merged

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// GetTrade возвращает одну сделку по внутреннему id.
//
// GET /api/v1/trades/{id}
//
// Response 404 Not Found:
//
//	{"error": "trade not found"}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.tradeService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "trade service not initialized",
		})
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid trade id",
		})
		return
	}

	trade, err := h.tradeService.GetTrade(id)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "trade not found",
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to get trade",
			"details": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(trade)
}

// parseInt64Param парсит числовой query-параметр, пустое или
// некорректное значение трактуется как 0 (без ограничения)
func parseInt64Param(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
