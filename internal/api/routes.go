package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradejournal/internal/api/handlers"
	"tradejournal/internal/api/middleware"
	"tradejournal/internal/service"
	"tradejournal/internal/websocket"
	"tradejournal/pkg/utils"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	AccountService  service.AccountServiceInterface
	SyncService     service.SyncServiceInterface
	StatsService    service.StatsServiceInterface
	TradeService    service.TradeServiceInterface
	MarketService   service.MarketServiceInterface
	PlaybookService service.PlaybookServiceInterface
	Hub             *websocket.Hub
	Logger          *utils.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /accounts/
//	│   ├── POST / - привязать биржевой аккаунт
//	│   ├── GET /?user_id=N - список аккаунтов пользователя
//	│   ├── DELETE /{id} - отвязать аккаунт
//	│   ├── PUT /{id}/credentials - ротация API ключей
//	│   ├── POST /{uid}/sync - запустить цикл синхронизации
//	│   ├── GET /{uid}/sync/state - текущее состояние синхронизации
//	│   ├── GET /{uid}/positions - snapshot открытых позиций
//	│   └── GET /{uid}/klines - свечи по символу
//	├── /trades/
//	│   ├── GET /?uid=...&coin=... - страница журнала (sync=true для sync-then-query)
//	│   ├── GET /{id} - одна сделка
//	│   ├── PUT /{tradeId}/checks/{ruleId} - отметка правила плейбука
//	│   └── GET /{tradeId}/playbooks/{playbookId}/progress - прогресс чек-листа
//	├── /stats/
//	│   ├── GET / - агрегированная статистика (sync=true для sync-then-stat)
//	│   └── GET /exposure - агрегат открытых позиций
//	└── /playbooks/
//	    ├── POST / - создать плейбук
//	    ├── GET /?user_id=N - список плейбуков
//	    ├── GET /{id} - плейбук с правилами
//	    └── DELETE /{id} - удалить плейбук
//
// /ws/stream - WebSocket для real-time обновлений (syncUpdate, statsUpdate)
// /metrics - Prometheus метрики
// /health - health check
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	logger := utils.NewNopLogger()
	if deps != nil && deps.Logger != nil {
		logger = deps.Logger
	}

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var accountHandler *handlers.AccountHandler
	if deps != nil && deps.AccountService != nil {
		accountHandler = handlers.NewAccountHandler(deps.AccountService)
	}

	var syncHandler *handlers.SyncHandler
	if deps != nil && deps.SyncService != nil {
		syncHandler = handlers.NewSyncHandler(deps.SyncService)
	}

	var statsHandler *handlers.StatsHandler
	if deps != nil && deps.StatsService != nil {
		var broadcaster handlers.StatsBroadcaster
		if deps.Hub != nil {
			broadcaster = deps.Hub
		}
		statsHandler = handlers.NewStatsHandler(deps.StatsService, broadcaster)
	}

	var tradeHandler *handlers.TradeHandler
	if deps != nil && deps.TradeService != nil {
		tradeHandler = handlers.NewTradeHandler(deps.TradeService, deps.SyncService)
	}

	var marketHandler *handlers.MarketHandler
	if deps != nil && deps.MarketService != nil {
		marketHandler = handlers.NewMarketHandler(deps.MarketService)
	}

	var playbookHandler *handlers.PlaybookHandler
	if deps != nil && deps.PlaybookService != nil {
		playbookHandler = handlers.NewPlaybookHandler(deps.PlaybookService)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Account routes
	if accountHandler != nil {
		api.HandleFunc("/accounts", accountHandler.LinkAccount).Methods("POST")
		api.HandleFunc("/accounts", accountHandler.GetAccounts).Methods("GET")
		api.HandleFunc("/accounts/{id:[0-9]+}", accountHandler.UnlinkAccount).Methods("DELETE")
		api.HandleFunc("/accounts/{id:[0-9]+}/credentials", accountHandler.RotateCredentials).Methods("PUT")
	}

	// Sync routes (uid - строковый идентификатор от провайдера)
	if syncHandler != nil {
		api.HandleFunc("/accounts/{uid}/sync", syncHandler.SyncAccount).Methods("POST")
		api.HandleFunc("/accounts/{uid}/sync/state", syncHandler.GetSyncState).Methods("GET")
	}

	// Trade routes
	if tradeHandler != nil {
		api.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")
		api.HandleFunc("/trades/{id:[0-9]+}", tradeHandler.GetTrade).Methods("GET")
	}

	// Market routes (живые данные провайдера, не сохраняются)
	if marketHandler != nil {
		api.HandleFunc("/accounts/{uid}/positions", marketHandler.GetOpenPositions).Methods("GET")
		api.HandleFunc("/accounts/{uid}/klines", marketHandler.GetKlines).Methods("GET")
	}

	// Stats routes
	if statsHandler != nil {
		api.HandleFunc("/stats", statsHandler.GetStatistics).Methods("GET")
		api.HandleFunc("/stats/exposure", statsHandler.GetExposure).Methods("GET")
	}

	// Playbook routes
	if playbookHandler != nil {
		api.HandleFunc("/playbooks", playbookHandler.CreatePlaybook).Methods("POST")
		api.HandleFunc("/playbooks", playbookHandler.GetPlaybooks).Methods("GET")
		api.HandleFunc("/playbooks/{id:[0-9]+}", playbookHandler.GetPlaybook).Methods("GET")
		api.HandleFunc("/playbooks/{id:[0-9]+}", playbookHandler.DeletePlaybook).Methods("DELETE")
		api.HandleFunc("/trades/{tradeId:[0-9]+}/checks/{ruleId:[0-9]+}", playbookHandler.SetCheck).Methods("PUT")
		api.HandleFunc("/trades/{tradeId:[0-9]+}/playbooks/{playbookId:[0-9]+}/progress", playbookHandler.GetProgress).Methods("GET")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
