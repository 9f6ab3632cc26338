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

// AccountHandler обрабатывает HTTP запросы для привязанных биржевых аккаунтов.
//
// Endpoints:
// - POST   /api/v1/accounts - привязать аккаунт (link)
// - GET    /api/v1/accounts?user_id=N - список аккаунтов пользователя
// - DELETE /api/v1/accounts/{id} - отвязать аккаунт со всеми данными
// - PUT    /api/v1/accounts/{id}/credentials - ротация API ключей
//
// API ключи принимаются только в теле запроса и никогда не возвращаются
// в ответах (даже в зашифрованном виде).
type AccountHandler struct {
	accountService service.AccountServiceInterface
}

// NewAccountHandler создает новый AccountHandler с внедрением зависимостей.
func NewAccountHandler(accountService service.AccountServiceInterface) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// LinkAccount привязывает биржевой аккаунт по API ключам.
//
// POST /api/v1/accounts
//
// Request Body:
//
//	{
//	  "user_id": 1,
//	  "provider": "bybit",
//	  "label": "Main account",
//	  "api_key": "xxxxxxxxxxxx",
//	  "api_secret": "yyyyyyyyyyyy"
//	}
//
// Ключи проверяются тестовым запросом к провайдеру до сохранения.
// Невалидные ключи не сохраняются ни в каком виде.
//
// Response 201 Created:
//
//	{
//	  "id": 1,
//	  "user_id": 1,
//	  "provider": "bybit",
//	  "label": "Main account",
//	  "uid": "100400500",
//	  "created_at": "2025-12-01T12:00:00Z",
//	  "updated_at": "2025-12-01T12:00:00Z"
//	}
//
// Response 400 Bad Request:
//
//	{"error": "validation failed: provider: unsupported provider"}
//
// Response 401 Unauthorized:
//
//	{"error": "invalid_api_credentials"}
//
// Response 409 Conflict:
//
//	{"error": "account already linked"}
func (h *AccountHandler) LinkAccount(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Проверяем, что сервис инициализирован
	if h.accountService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "account service not initialized",
		})
		return
	}

	var req service.LinkAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	account, err := h.accountService.Link(r.Context(), &req)
	if err != nil {
		writeAccountError(w, err, "failed to link account")
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// GetAccounts возвращает список привязанных аккаунтов пользователя.
//
// GET /api/v1/accounts?user_id=1
//
// Response 200 OK:
//
//	[
//	  {"id": 1, "provider": "bybit", "label": "Main", "uid": "100400500", ...},
//	  {"id": 2, "provider": "bitget", "label": "Alt", "uid": "778899", ...}
//	]
func (h *AccountHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.accountService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "account service not initialized",
		})
		return
	}

	userID, err := strconv.Atoi(r.URL.Query().Get("user_id"))
	if err != nil || userID < 1 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "user_id query parameter is required",
		})
		return
	}

	accounts, err := h.accountService.GetByUserID(userID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to get accounts",
			"details": err.Error(),
		})
		return
	}

	// Убеждаемся, что пустой массив возвращается как [], а не null
	if accounts == nil {
		accounts = []*models.Account{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(accounts)
}

// UnlinkAccount отвязывает аккаунт и удаляет все связанные данные.
//
// DELETE /api/v1/accounts/{id}
//
// ВАЖНО: каскадно удаляются сделки и watermark'и аккаунта.
// Повторная привязка того же аккаунта начнёт синхронизацию с нуля.
//
// Response 200 OK:
//
//	{"message": "account unlinked"}
//
// Response 404 Not Found:
//
//	{"error": "account not found"}
func (h *AccountHandler) UnlinkAccount(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.accountService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "account service not initialized",
		})
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid account id",
		})
		return
	}

	if err := h.accountService.Unlink(r.Context(), id); err != nil {
		writeAccountError(w, err, "failed to unlink account")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "account unlinked",
	})
}

// RotateCredentials заменяет API ключи привязанного аккаунта.
//
// PUT /api/v1/accounts/{id}/credentials
//
// Request Body:
//
//	{"api_key": "new-key", "api_secret": "new-secret"}
//
// Новые ключи проверяются тестовым запросом и должны принадлежать тому
// же аккаунту провайдера (uid должен совпасть). История сделок и
// watermark'и сохраняются.
//
// Response 200 OK:
//
//	{"message": "credentials rotated"}
//
// Response 401 Unauthorized:
//
//	{"error": "invalid_api_credentials"}
func (h *AccountHandler) RotateCredentials(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.accountService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "account service not initialized",
		})
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid account id",
		})
		return
	}

	var req struct {
		APIKey    string `json:"api_key"`
		APISecret string `json:"api_secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.accountService.RotateCredentials(r.Context(), id, req.APIKey, req.APISecret); err != nil {
		writeAccountError(w, err, "failed to rotate credentials")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "credentials rotated",
	})
}

// writeAccountError маппит доменные ошибки аккаунтов на HTTP статусы
func writeAccountError(w http.ResponseWriter, err error, fallback string) {
	var verr utils.ValidationErrors

	switch {
	case errors.Is(err, service.ErrInvalidAPICredentials):
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid_api_credentials",
		})
	case errors.Is(err, service.ErrAccountLinked):
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "account already linked",
		})
	case errors.Is(err, repository.ErrAccountNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "account not found",
		})
	case errors.As(err, &verr), errors.Is(err, service.ErrUnsupportedProvider):
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
		})
	default:
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   fallback,
			"details": err.Error(),
		})
	}
}
