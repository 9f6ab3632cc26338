// Package integration contains integration tests for the trade journal.
//
// These tests verify the correct interaction between components:
// - API integration tests: full HTTP request cycle
// - WebSocket tests: connection, broadcast messaging
// - Database tests: schema, constraints, repositories
//
// Tests skip themselves when the test database is not reachable.
// Run with: go test ./tests/integration/...
package integration

import (
	"database/sql"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"tradejournal/internal/api"
	"tradejournal/internal/models"
	"tradejournal/internal/repository"
	"tradejournal/internal/service"
	"tradejournal/internal/websocket"
	"tradejournal/pkg/utils"
)

// TestConfig contains configuration for integration tests
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// TestServer encapsulates all components needed for integration testing
type TestServer struct {
	DB      *sql.DB
	Router  *mux.Router
	Server  *httptest.Server
	Hub     *websocket.Hub
	Repos   *TestRepositories
	Cleanup func()
}

// TestRepositories contains all repository instances for testing
type TestRepositories struct {
	Account  *repository.AccountRepository
	Sync     *repository.SyncRepository
	Trade    *repository.TradeRepository
	Playbook *repository.PlaybookRepository
}

// getTestConfig returns configuration from environment variables or defaults
func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "tradejournal_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB creates a test database connection
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	config := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.DBHost, config.DBPort, config.DBUser, config.DBPassword, config.DBName, config.DBSSLMode,
	)

	db, err := sql.Open(config.DBDriver, connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	return db, cleanup
}

// SetupTestServer creates a complete test server with all components.
//
// Provider-backed services (account linking, sync) are not wired here:
// they require live exchange credentials. Their handlers respond 404
// through the router, which is expected for these tests.
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	if err := initTestTables(db); err != nil {
		t.Skipf("Skipping integration test: cannot initialize tables: %v", err)
		return nil
	}

	logger := utils.NewNopLogger()

	hub := websocket.NewHub(logger)
	go hub.Run()

	repos := &TestRepositories{
		Account:  repository.NewAccountRepository(db),
		Sync:     repository.NewSyncRepository(db),
		Trade:    repository.NewTradeRepository(db),
		Playbook: repository.NewPlaybookRepository(db),
	}

	tradeService := service.NewTradeService(repos.Trade, logger)
	playbookService := service.NewPlaybookService(repos.Playbook, repos.Trade, logger)
	statsService := service.NewStatsService(repos.Trade, repos.Playbook, nil, nil, nil, logger)

	deps := &api.Dependencies{
		StatsService:    statsService,
		TradeService:    tradeService,
		PlaybookService: playbookService,
		Hub:             hub,
		Logger:          logger,
	}
	router := api.SetupRoutes(deps)

	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		hub.Stop()
		cleanupTestTables(db)
		dbCleanup()
	}

	return &TestServer{
		DB:      db,
		Router:  router,
		Server:  server,
		Hub:     hub,
		Repos:   repos,
		Cleanup: cleanup,
	}
}

// initTestTables creates tables for testing (mirrors migrations/schema.sql)
func initTestTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id SERIAL PRIMARY KEY,
			user_id INT NOT NULL,
			provider VARCHAR(20) NOT NULL,
			label VARCHAR(100) NOT NULL DEFAULT '',
			uid VARCHAR(64) UNIQUE NOT NULL,
			api_key_enc TEXT NOT NULL,
			api_key_iv TEXT NOT NULL,
			api_secret_enc TEXT NOT NULL,
			api_secret_iv TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS account_syncs (
			id SERIAL PRIMARY KEY,
			uid VARCHAR(64) NOT NULL,
			coin VARCHAR(10) NOT NULL,
			last_sync_time BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (uid, coin)
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			account_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			uid VARCHAR(64) NOT NULL,
			position_id VARCHAR(64) NOT NULL,
			coin VARCHAR(10) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			exit_price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			quantity DECIMAL(20, 8) NOT NULL DEFAULT 0,
			pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			open_time BIGINT NOT NULL DEFAULT 0,
			close_time BIGINT NOT NULL DEFAULT 0,
			win BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (uid, position_id)
		)`,
		`CREATE TABLE IF NOT EXISTS playbooks (
			id SERIAL PRIMARY KEY,
			user_id INT NOT NULL,
			name VARCHAR(200) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS playbook_rules (
			id SERIAL PRIMARY KEY,
			playbook_id INT NOT NULL REFERENCES playbooks(id) ON DELETE CASCADE,
			position INT NOT NULL,
			text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playbook_trade_checks (
			id SERIAL PRIMARY KEY,
			trade_id INT NOT NULL REFERENCES trades(id) ON DELETE CASCADE,
			rule_id INT NOT NULL REFERENCES playbook_rules(id) ON DELETE CASCADE,
			checked_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (trade_id, rule_id)
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// cleanupTestTables truncates all test tables
func cleanupTestTables(db *sql.DB) {
	tables := []string{
		"playbook_trade_checks",
		"playbook_rules",
		"playbooks",
		"trades",
		"account_syncs",
		"accounts",
	}

	for _, table := range tables {
		db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}
}

// seedAccount inserts a linked account directly (bypassing the provider
// verification that real linking performs)
func seedAccount(t *testing.T, repos *TestRepositories, uid string) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:       1,
		Provider:     models.ProviderBybit,
		Label:        "integration",
		UID:          uid,
		APIKeyEnc:    "enc-key",
		APIKeyIV:     "iv-key",
		APISecretEnc: "enc-secret",
		APISecretIV:  "iv-secret",
	}
	if err := repos.Account.Create(account); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
	return account
}

// seedTrade inserts a closed trade for the given account
func seedTrade(t *testing.T, repos *TestRepositories, account *models.Account, positionID, symbol string, pnl float64, closeTime int64) *models.Trade {
	t.Helper()

	trade := &models.Trade{
		AccountID:  account.ID,
		UID:        account.UID,
		PositionID: positionID,
		Coin:       "USDT",
		Symbol:     symbol,
		Side:       models.SideLong,
		EntryPrice: 100,
		ExitPrice:  110,
		Quantity:   1,
		Pnl:        pnl,
		OpenTime:   closeTime - 3600_000,
		CloseTime:  closeTime,
		Win:        pnl > 0,
	}
	inserted, err := repos.Trade.InsertIfAbsent(trade)
	if err != nil {
		t.Fatalf("failed to seed trade: %v", err)
	}
	if !inserted {
		t.Fatalf("trade %s already present", positionID)
	}
	return trade
}
