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

// PlaybookHandler обрабатывает HTTP запросы для торговых чек-листов.
//
// Endpoints:
// - POST   /api/v1/playbooks - создать плейбук с правилами
// - GET    /api/v1/playbooks?user_id=N - список плейбуков пользователя
// - GET    /api/v1/playbooks/{id} - плейбук с правилами
// - DELETE /api/v1/playbooks/{id} - удалить плейбук
// - PUT    /api/v1/trades/{tradeId}/checks/{ruleId} - отметить/снять правило
// - GET    /api/v1/trades/{tradeId}/playbooks/{playbookId}/progress - прогресс
type PlaybookHandler struct {
	playbookService service.PlaybookServiceInterface
}

// NewPlaybookHandler создает новый PlaybookHandler с внедрением зависимостей.
func NewPlaybookHandler(playbookService service.PlaybookServiceInterface) *PlaybookHandler {
	return &PlaybookHandler{
		playbookService: playbookService,
	}
}

// CreatePlaybook создает плейбук вместе с правилами.
//
// POST /api/v1/playbooks
//
// Request Body:
//
//	{
//	  "user_id": 1,
//	  "name": "Breakout checklist",
//	  "rules": ["Trend confirmed on 4h", "Volume above average", "Stop placed"]
//	}
//
// Порядок правил в запросе становится их позицией в чек-листе.
//
// Response 201 Created:
//
//	{
//	  "id": 1,
//	  "user_id": 1,
//	  "name": "Breakout checklist",
//	  "rules": [
//	    {"id": 1, "playbook_id": 1, "position": 1, "text": "Trend confirmed on 4h"},
//	    {"id": 2, "playbook_id": 1, "position": 2, "text": "Volume above average"},
//	    {"id": 3, "playbook_id": 1, "position": 3, "text": "Stop placed"}
//	  ]
//	}
//
// Response 400 Bad Request:
//
//	{"error": "validation failed: rules: at least one rule is required"}
func (h *PlaybookHandler) CreatePlaybook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Проверяем, что сервис инициализирован
	if h.playbookService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "playbook service not initialized",
		})
		return
	}

	var req service.CreatePlaybookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	playbook, err := h.playbookService.Create(&req)
	if err != nil {
		writePlaybookError(w, err, "failed to create playbook")
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(playbook)
}

// GetPlaybooks возвращает все плейбуки пользователя.
//
// GET /api/v1/playbooks?user_id=1
func (h *PlaybookHandler) GetPlaybooks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.playbookService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "playbook service not initialized",
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

	playbooks, err := h.playbookService.GetByUserID(userID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to get playbooks",
			"details": err.Error(),
		})
		return
	}

	// Убеждаемся, что пустой массив возвращается как [], а не null
	if playbooks == nil {
		playbooks = []*models.Playbook{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(playbooks)
}

// GetPlaybook возвращает плейбук с правилами.
//
// GET /api/v1/playbooks/{id}
//
// Response 404 Not Found:
//
//	{"error": "playbook not found"}
func (h *PlaybookHandler) GetPlaybook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.playbookService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "playbook service not initialized",
		})
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid playbook id",
		})
		return
	}

	playbook, err := h.playbookService.GetByID(id)
	if err != nil {
		writePlaybookError(w, err, "failed to get playbook")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(playbook)
}

// DeletePlaybook удаляет плейбук вместе с правилами и отметками.
//
// DELETE /api/v1/playbooks/{id}
func (h *PlaybookHandler) DeletePlaybook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.playbookService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "playbook service not initialized",
		})
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid playbook id",
		})
		return
	}

	if err := h.playbookService.Delete(id); err != nil {
		writePlaybookError(w, err, "failed to delete playbook")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "playbook deleted",
	})
}

// SetCheck отмечает или снимает выполнение правила для сделки.
//
// PUT /api/v1/trades/{tradeId}/checks/{ruleId}
//
// Request Body:
//
//	{"checked": true}
//
// Повторная отметка уже отмеченного правила - no-op, не ошибка.
//
// Response 200 OK:
//
//	{"message": "check updated"}
func (h *PlaybookHandler) SetCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.playbookService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "playbook service not initialized",
		})
		return
	}

	vars := mux.Vars(r)
	tradeID, err1 := strconv.Atoi(vars["tradeId"])
	ruleID, err2 := strconv.Atoi(vars["ruleId"])
	if err1 != nil || err2 != nil || tradeID < 1 || ruleID < 1 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid trade or rule id",
		})
		return
	}

	var req struct {
		Checked bool `json:"checked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.playbookService.SetCheck(tradeID, ruleID, req.Checked); err != nil {
		writePlaybookError(w, err, "failed to update check")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "check updated",
	})
}

// GetProgress возвращает прогресс выполнения чек-листа для сделки.
//
// GET /api/v1/trades/{tradeId}/playbooks/{playbookId}/progress
//
// Response 200 OK:
//
//	{
//	  "trade_id": 12,
//	  "playbook_id": 1,
//	  "checked": {"1": true, "3": true},
//	  "total_rules": 3,
//	  "completion": 66.67
//	}
func (h *PlaybookHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.playbookService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "playbook service not initialized",
		})
		return
	}

	vars := mux.Vars(r)
	tradeID, err1 := strconv.Atoi(vars["tradeId"])
	playbookID, err2 := strconv.Atoi(vars["playbookId"])
	if err1 != nil || err2 != nil || tradeID < 1 || playbookID < 1 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid trade or playbook id",
		})
		return
	}

	progress, err := h.playbookService.Progress(tradeID, playbookID)
	if err != nil {
		writePlaybookError(w, err, "failed to get progress")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(progress)
}

// writePlaybookError маппит доменные ошибки плейбуков на HTTP статусы
func writePlaybookError(w http.ResponseWriter, err error, fallback string) {
	var verr utils.ValidationErrors

	switch {
	case errors.Is(err, repository.ErrPlaybookNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "playbook not found",
		})
	case errors.Is(err, repository.ErrRuleNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "rule not found",
		})
	case errors.Is(err, repository.ErrTradeNotFound):
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "trade not found",
		})
	case errors.As(err, &verr):
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
