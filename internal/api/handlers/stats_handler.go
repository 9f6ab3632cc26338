package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tradejournal/internal/models"
	"tradejournal/internal/repository"
	"tradejournal/internal/service"
	"tradejournal/pkg/utils"
)

// StatsBroadcaster рассылает свежую статистику WebSocket клиентам.
// Реализуется websocket.Hub; nil отключает рассылку.
type StatsBroadcaster interface {
	BroadcastStatsUpdate(uid string, stats *models.Statistics)
}

// StatsHandler обрабатывает HTTP запросы для агрегированной статистики.
//
// Endpoints:
// - GET /api/v1/stats?uid=...&coin=USDT - полная статистика по выборке
// - GET /api/v1/stats/exposure?uid=...&coin=USDT - агрегат открытых позиций
//
// Статистика вычисляется на каждый запрос заново. Параметр sync=true
// включает пайплайн sync-then-stat: сначала цикл синхронизации, потом
// расчёт по свежим данным.
type StatsHandler struct {
	statsService service.StatsServiceInterface
	broadcaster  StatsBroadcaster
}

// NewStatsHandler создает новый StatsHandler с внедрением зависимостей.
func NewStatsHandler(statsService service.StatsServiceInterface, broadcaster StatsBroadcaster) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
		broadcaster:  broadcaster,
	}
}

// GetStatistics возвращает полную статистику по выборке сделок.
//
// GET /api/v1/stats?uid=100400500&coin=USDT&symbol=BTCUSDT&from=0&to=0&tz=Europe/Moscow&playbook_id=1&sync=true
//
// Query Parameters:
// - uid (required): uid аккаунта у провайдера
// - coin (optional): валюта расчётов, по умолчанию USDT
// - symbol (optional): фильтр по торговой паре
// - from, to (optional): диапазон close_time в epoch миллисекундах
// - tz (optional): IANA таймзона для дневного бакетирования, по умолчанию UTC
// - playbook_id (optional): добавить статистику выполнения плейбука
// - sync (optional): true = выполнить синхронизацию перед расчётом
// - fill (optional): true = сплошная дневная серия с нулевыми днями
//   (действует только вместе с from и to)
//
// Response 200 OK:
//
//	{
//	  "net_pnl": {"value": 1250.50, "total_trades": 135},
//	  "win_rate": 0.62,
//	  "wins": 84,
//	  "losses": 51,
//	  "per_symbol": [
//	    {"symbol": "BTCUSDT", "net_pnl": 800.25, "trades_count": 60, "win_rate": 0.65}
//	  ],
//	  "per_day": [
//	    {"date": "2025-11-30", "net_pnl": 45.20, "trades_count": 5}
//	  ],
//	  "synced": true
//	}
//
// Response 401 Unauthorized (при sync=true и отозванных ключах):
//
//	{"error": "invalid_api_credentials"}
//
// Response 409 Conflict (при sync=true и уже идущей синхронизации):
//
//	{"error": "sync already in progress"}
func (h *StatsHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Проверяем, что сервис инициализирован
	if h.statsService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "stats service not initialized",
		})
		return
	}

	q := r.URL.Query()

	req := &service.StatsRequest{
		UID:       q.Get("uid"),
		Coin:      q.Get("coin"),
		Symbol:    q.Get("symbol"),
		FromTime:  parseInt64Param(q.Get("from")),
		ToTime:    parseInt64Param(q.Get("to")),
		Timezone:  q.Get("tz"),
		SyncFirst: q.Get("sync") == "true",
		FillDays:  q.Get("fill") == "true",
	}
	if req.UID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "uid query parameter is required",
		})
		return
	}
	if req.Coin == "" {
		req.Coin = "USDT"
	}
	if pid := q.Get("playbook_id"); pid != "" {
		if v, err := strconv.Atoi(pid); err == nil && v > 0 {
			req.PlaybookID = v
		}
	}

	stats, err := h.statsService.GetStatistics(r.Context(), req)
	if err != nil {
		writeStatsError(w, err)
		return
	}

	// Убеждаемся, что пустые массивы возвращаются как [], а не null
	if stats.PerSymbol == nil {
		stats.PerSymbol = []models.SymbolStat{}
	}
	if stats.PerDay == nil {
		stats.PerDay = []models.DayProfit{}
	}

	// Подключённые вкладки получают те же данные без собственного запроса
	if h.broadcaster != nil {
		h.broadcaster.BroadcastStatsUpdate(req.UID, stats)
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

// GetExposure возвращает агрегат по snapshot'у открытых позиций.
//
// GET /api/v1/stats/exposure?uid=100400500&coin=USDT
//
// Данные запрашиваются у провайдера на каждый вызов и не сохраняются.
//
// Response 200 OK:
//
//	{"positions": 2, "unrealized_pnl": -15.30, "total_notional": 42100.00}
func (h *StatsHandler) GetExposure(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.statsService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "stats service not initialized",
		})
		return
	}

	uid := r.URL.Query().Get("uid")
	if uid == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "uid query parameter is required",
		})
		return
	}
	coin := r.URL.Query().Get("coin")
	if coin == "" {
		coin = "USDT"
	}

	exposure, err := h.statsService.GetOpenExposure(r.Context(), uid, coin)
	if err != nil {
		writeStatsError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(exposure)
}

// writeStatsError маппит доменные ошибки статистики на HTTP статусы
func writeStatsError(w http.ResponseWriter, err error) {
	var verr utils.ValidationErrors

	switch {
	case errors.Is(err, service.ErrInvalidAPICredentials):
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid_api_credentials",
		})
	case errors.Is(err, service.ErrSyncInProgress):
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "sync already in progress",
		})
	case errors.Is(err, repository.ErrAccountNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "account not found",
		})
	case errors.Is(err, repository.ErrPlaybookNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "playbook not found",
		})
	case errors.As(err, &verr), errors.Is(err, utils.ErrInvalidTimezone):
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
	default:
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to compute statistics",
			"details": err.Error(),
		})
	}
}
