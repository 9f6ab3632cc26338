package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradejournal/internal/models"
)

// ============================================================
// TradeRepository Tests
// ============================================================

func TestTradeRepositoryInsertIfAbsent(t *testing.T) {
	trade := &models.Trade{
		AccountID:  1,
		UID:        "uid-1",
		PositionID: "pos-100",
		Coin:       "USDT",
		Symbol:     "BTCUSDT",
		Side:       models.SideLong,
		EntryPrice: 50000,
		ExitPrice:  51000,
		Quantity:   0.5,
		Pnl:        500,
		OpenTime:   1000,
		CloseTime:  2000,
		Win:        true,
	}

	tests := []struct {
		name         string
		rowsAffected int64
		wantInserted bool
	}{
		{"new trade inserted", 1, true},
		{"duplicate position is no-op", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`INSERT INTO trades`).
				WithArgs(1, "uid-1", "pos-100", "USDT", "BTCUSDT", models.SideLong, 50000.0, 51000.0, 0.5, 500.0, int64(1000), int64(2000), true).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			repo := NewTradeRepository(db)
			inserted, err := repo.InsertIfAbsent(trade)
			if err != nil {
				t.Fatalf("InsertIfAbsent() error = %v", err)
			}
			if inserted != tt.wantInserted {
				t.Errorf("inserted = %v, want %v", inserted, tt.wantInserted)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "account_id", "uid", "position_id", "coin", "symbol", "side", "entry_price", "exit_price", "quantity", "pnl", "open_time", "close_time", "win", "created_at"}).
		AddRow(2, 1, "uid-1", "pos-2", "USDT", "BTCUSDT", "long", 50000.0, 51000.0, 0.5, 500.0, int64(1500), int64(2500), true, now).
		AddRow(1, 1, "uid-1", "pos-1", "USDT", "BTCUSDT", "short", 49000.0, 48000.0, 1.0, 1000.0, int64(1000), int64(2000), true, now)

	mock.ExpectQuery(`SELECT (.+) FROM trades`).
		WithArgs("uid-1", "USDT", "BTCUSDT").
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	trades, err := repo.List(models.TradeFilter{
		UID:    "uid-1",
		Coin:   "USDT",
		Symbol: "BTCUSDT",
		Page:   1,
		Limit:  50,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("len(trades) = %d, want 2", len(trades))
	}
	if trades[0].PositionID != "pos-2" {
		t.Errorf("trades[0] = %s, want pos-2 (DESC order)", trades[0].PositionID)
	}
}

func TestTradeRepositoryListTimeRange(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "account_id", "uid", "position_id", "coin", "symbol", "side", "entry_price", "exit_price", "quantity", "pnl", "open_time", "close_time", "win", "created_at"})

	// FromTime и ToTime попадают в args после uid и coin
	mock.ExpectQuery(`SELECT (.+) FROM trades`).
		WithArgs("uid-1", "USDT", int64(1000), int64(2000)).
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	_, err = repo.List(models.TradeFilter{
		UID:      "uid-1",
		Coin:     "USDT",
		FromTime: 1000,
		ToTime:   2000,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryMaxCloseTime(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
		want int64
	}{
		{
			name: "has trades",
			rows: sqlmock.NewRows([]string{"max"}).AddRow(int64(1700000000000)),
			want: 1700000000000,
		},
		{
			name: "no trades yields zero",
			rows: sqlmock.NewRows([]string{"max"}).AddRow(int64(0)),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectQuery(`SELECT COALESCE\(MAX\(close_time\), 0\)`).
				WithArgs("uid-1", "USDT").
				WillReturnRows(tt.rows)

			repo := NewTradeRepository(db)
			got, err := repo.MaxCloseTime("uid-1", "USDT")
			if err != nil {
				t.Fatalf("MaxCloseTime() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("maxCloseTime = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTradeRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM trades`).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewTradeRepository(db)
	_, err = repo.GetByID(99)
	if !errors.Is(err, ErrTradeNotFound) {
		t.Errorf("expected ErrTradeNotFound, got %v", err)
	}
}

func TestBuildTradeWhere(t *testing.T) {
	tests := []struct {
		name     string
		filter   models.TradeFilter
		wantArgs int
	}{
		{"uid and coin only", models.TradeFilter{UID: "u", Coin: "USDT"}, 2},
		{"with symbol", models.TradeFilter{UID: "u", Coin: "USDT", Symbol: "BTCUSDT"}, 3},
		{"full filter", models.TradeFilter{UID: "u", Coin: "USDT", Symbol: "BTCUSDT", FromTime: 1, ToTime: 2}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, args := buildTradeWhere(tt.filter)
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}
