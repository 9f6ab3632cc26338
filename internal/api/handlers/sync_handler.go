package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"tradejournal/internal/provider"
	"tradejournal/internal/repository"
	"tradejournal/internal/service"
	"tradejournal/pkg/utils"
)

// SyncHandler обрабатывает HTTP запросы для синхронизации сделок.
//
// Endpoints:
// - POST /api/v1/accounts/{uid}/sync?coin=USDT - запустить цикл синхронизации
// - GET  /api/v1/accounts/{uid}/sync/state?coin=USDT - текущее состояние
//
// Синхронизация выполняется синхронно в рамках запроса: ответ содержит
// итог цикла (merged/fetched/watermark). Прогресс по состояниям
// дополнительно транслируется через WebSocket.
type SyncHandler struct {
	syncService service.SyncServiceInterface
}

// NewSyncHandler создает новый SyncHandler с внедрением зависимостей.
func NewSyncHandler(syncService service.SyncServiceInterface) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

// SyncAccount запускает цикл синхронизации для пары (uid, coin).
//
// POST /api/v1/accounts/{uid}/sync?coin=USDT
//
// Response 200 OK:
//
//	{"synced": true, "merged": 3, "fetched": 5, "watermark": 1700000000000}
//
// Response 401 Unauthorized:
//
//	{"error": "invalid_api_credentials"}
//
// Response 404 Not Found:
//
//	{"error": "account not found"}
//
// Response 409 Conflict:
//
//	{"error": "sync already in progress"}
func (h *SyncHandler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Проверяем, что сервис инициализирован
	if h.syncService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "sync service not initialized",
		})
		return
	}

	uid := mux.Vars(r)["uid"]
	coin := r.URL.Query().Get("coin")
	if coin == "" {
		coin = "USDT" // валюта расчётов по умолчанию
	}

	result, err := h.syncService.SyncAccount(r.Context(), uid, coin)
	if err != nil {
		writeSyncError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// writeSyncError транслирует ошибки цикла синхронизации в HTTP статусы.
// Общий для прямого запуска синхронизации и sync-then-query в журнале.
func writeSyncError(w http.ResponseWriter, err error) {
	var verr utils.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSyncInProgress):
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "sync already in progress",
		})
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
		// Retry исчерпан либо провайдер вернул неразбираемый ответ:
		// watermark не тронут, следующий цикл безопасен
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "provider unavailable",
			"details": err.Error(),
		})
	default:
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "sync failed",
			"details": err.Error(),
		})
	}
}

// GetSyncState возвращает текущее состояние цикла синхронизации.
//
// GET /api/v1/accounts/{uid}/sync/state?coin=USDT
//
// Response 200 OK:
//
//	{"uid": "100400500", "coin": "USDT", "state": "idle"}
func (h *SyncHandler) GetSyncState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.syncService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "sync service not initialized",
		})
		return
	}

	uid := mux.Vars(r)["uid"]
	coin := r.URL.Query().Get("coin")
	if coin == "" {
		coin = "USDT"
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"uid":   uid,
		"coin":  coin,
		"state": h.syncService.State(uid, coin),
	})
}
