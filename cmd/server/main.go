package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tradejournal/internal/api"
	"tradejournal/internal/config"
	"tradejournal/internal/provider"
	"tradejournal/internal/repository"
	"tradejournal/internal/service"
	"tradejournal/internal/websocket"
	"tradejournal/pkg/crypto"
	"tradejournal/pkg/ratelimit"
	"tradejournal/pkg/retry"
	"tradejournal/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логирования
	logger := utils.InitLogger(utils.LogConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputFile: cfg.Logging.File,
	})
	defer logger.Sync()

	// Вывод ключа шифрования из passphrase (scrypt).
	// Passphrase приходит только из окружения и дальше не используется.
	encryptionKey, err := crypto.DeriveKey(cfg.Security.EncryptionPassphrase)
	if err != nil {
		logger.Fatal("failed to derive encryption key", zap.Error(err))
	}

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	accountRepo := repository.NewAccountRepository(db)
	syncRepo := repository.NewSyncRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	playbookRepo := repository.NewPlaybookRepository(db)

	// Общая инфраструктура для клиентов провайдеров: один HTTP пул
	// и один rate limiter на процесс
	httpClient := provider.NewHTTPClient(provider.DefaultHTTPClientConfig())
	factory := &service.DefaultProviderFactory{
		Opts: provider.Options{
			HTTPClient: httpClient,
			Limiter:    ratelimit.NewRateLimiter(cfg.Sync.ProviderRate, cfg.Sync.ProviderBurst),
			Retry: retry.Config{
				MaxRetries:   cfg.Sync.MaxRetries,
				InitialDelay: cfg.Sync.RetryBackoff,
			},
			MaxPages: cfg.Sync.MaxPages,
		},
	}

	// Инициализация WebSocket hub
	hub := websocket.NewHub(logger.WithComponent("websocket"))
	go hub.Run()

	// Инициализация сервисов
	accountService := service.NewAccountService(
		accountRepo,
		syncRepo,
		tradeRepo,
		factory,
		encryptionKey,
		logger.WithComponent("account"),
	)
	syncService := service.NewSyncService(
		accountService,
		syncRepo,
		tradeRepo,
		factory,
		logger.WithComponent("sync"),
	)
	syncService.SetWebSocketHub(hub)

	statsService := service.NewStatsService(
		tradeRepo,
		playbookRepo,
		accountService,
		syncService,
		factory,
		logger.WithComponent("stats"),
	)
	tradeService := service.NewTradeService(tradeRepo, logger.WithComponent("trades"))
	marketService := service.NewMarketService(accountService, factory, logger.WithComponent("market"))
	playbookService := service.NewPlaybookService(playbookRepo, tradeRepo, logger.WithComponent("playbooks"))

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		AccountService:  accountService,
		SyncService:     syncService,
		StatsService:    statsService,
		TradeService:    tradeService,
		MarketService:   marketService,
		PlaybookService: playbookService,
		Hub:             hub,
		Logger:          logger.WithComponent("api"),
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // sync-then-stat может ждать цикл синхронизации
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	hub.Stop()
	httpClient.Close()

	logger.Info("server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
