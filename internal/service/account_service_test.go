package service

import (
	"context"
	"errors"
	"testing"

	"tradejournal/internal/models"
	"tradejournal/internal/provider"
)

// ============================================================
// AccountService Tests
// ============================================================

func TestAccountServiceLink(t *testing.T) {
	client := &mockProvider{name: models.ProviderBybit, uid: "uid-42"}
	accountRepo := newMockAccountRepo()
	accountSvc := newTestAccountService(t, accountRepo, newMockSyncRepo(), newMockTradeRepo(), &mockFactory{client: client})

	account, err := accountSvc.Link(context.Background(), &LinkAccountRequest{
		UserID:    1,
		Provider:  models.ProviderBybit,
		Label:     "main",
		APIKey:    "valid-api-key",
		APISecret: "valid-secret",
	})
	if err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	if account.UID != "uid-42" {
		t.Errorf("UID = %s, want uid-42", account.UID)
	}

	// Plaintext никогда не попадает в сохранённый аккаунт
	if account.APIKeyEnc == "valid-api-key" || account.APISecretEnc == "valid-secret" {
		t.Error("credentials stored as plaintext")
	}
	if account.APIKeyEnc == "" || account.APIKeyIV == "" || account.APISecretEnc == "" || account.APISecretIV == "" {
		t.Error("encrypted fields not populated")
	}

	// Расшифровка восстанавливает исходные ключи
	apiKey, apiSecret, err := accountSvc.Credentials(account)
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if apiKey != "valid-api-key" || apiSecret != "valid-secret" {
		t.Error("decrypted credentials do not match original")
	}
}

func TestAccountServiceLinkInvalidCredentials(t *testing.T) {
	client := &mockProvider{
		name:   models.ProviderBybit,
		uidErr: &provider.AuthError{Provider: "bybit", Code: "10003", Message: "invalid api key"},
	}
	accountRepo := newMockAccountRepo()
	accountSvc := newTestAccountService(t, accountRepo, newMockSyncRepo(), newMockTradeRepo(), &mockFactory{client: client})

	_, err := accountSvc.Link(context.Background(), &LinkAccountRequest{
		UserID:    1,
		Provider:  models.ProviderBybit,
		APIKey:    "rejected-key",
		APISecret: "rejected-secret",
	})
	if !errors.Is(err, ErrInvalidAPICredentials) {
		t.Fatalf("expected ErrInvalidAPICredentials, got %v", err)
	}

	// Отклонённые ключи не сохраняются
	if len(accountRepo.accounts) != 0 {
		t.Error("rejected credentials were persisted")
	}
}

func TestAccountServiceLinkValidation(t *testing.T) {
	client := &mockProvider{name: models.ProviderBybit, uid: "uid-1"}
	accountSvc := newTestAccountService(t, newMockAccountRepo(), newMockSyncRepo(), newMockTradeRepo(), &mockFactory{client: client})

	tests := []struct {
		name string
		req  *LinkAccountRequest
	}{
		{"unsupported provider", &LinkAccountRequest{Provider: "binance", APIKey: "valid-api-key", APISecret: "s"}},
		{"short api key", &LinkAccountRequest{Provider: models.ProviderBybit, APIKey: "abc", APISecret: "s"}},
		{"empty secret", &LinkAccountRequest{Provider: models.ProviderBybit, APIKey: "valid-api-key", APISecret: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := accountSvc.Link(context.Background(), tt.req); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestAccountServiceLinkDuplicate(t *testing.T) {
	client := &mockProvider{name: models.ProviderBybit, uid: "uid-42"}
	accountSvc := newTestAccountService(t, newMockAccountRepo(), newMockSyncRepo(), newMockTradeRepo(), &mockFactory{client: client})

	req := &LinkAccountRequest{
		UserID:    1,
		Provider:  models.ProviderBybit,
		APIKey:    "valid-api-key",
		APISecret: "valid-secret",
	}

	if _, err := accountSvc.Link(context.Background(), req); err != nil {
		t.Fatalf("first Link() error = %v", err)
	}
	if _, err := accountSvc.Link(context.Background(), req); !errors.Is(err, ErrAccountLinked) {
		t.Errorf("expected ErrAccountLinked, got %v", err)
	}
}

func TestAccountServiceRotateCredentials(t *testing.T) {
	client := &mockProvider{name: models.ProviderBybit, uid: "uid-42"}
	accountRepo := newMockAccountRepo()
	accountSvc := newTestAccountService(t, accountRepo, newMockSyncRepo(), newMockTradeRepo(), &mockFactory{client: client})

	account := linkTestAccount(t, accountSvc, client)
	oldEnc := account.APIKeyEnc

	if err := accountSvc.RotateCredentials(context.Background(), account.ID, "rotated-api-key", "rotated-secret"); err != nil {
		t.Fatalf("RotateCredentials() error = %v", err)
	}

	rotated, _ := accountRepo.GetByID(account.ID)
	if rotated.APIKeyEnc == oldEnc {
		t.Error("encrypted key not replaced")
	}

	apiKey, apiSecret, err := accountSvc.Credentials(rotated)
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if apiKey != "rotated-api-key" || apiSecret != "rotated-secret" {
		t.Error("rotated credentials do not decrypt to new values")
	}
}

func TestAccountServiceRotateCredentialsUIDMismatch(t *testing.T) {
	client := &mockProvider{name: models.ProviderBybit, uid: "uid-42"}
	accountSvc := newTestAccountService(t, newMockAccountRepo(), newMockSyncRepo(), newMockTradeRepo(), &mockFactory{client: client})

	account := linkTestAccount(t, accountSvc, client)

	// Новые ключи принадлежат другому аккаунту провайдера
	client.uid = "uid-other"

	err := accountSvc.RotateCredentials(context.Background(), account.ID, "foreign-api-key", "foreign-secret")
	if !errors.Is(err, ErrInvalidAPICredentials) {
		t.Errorf("expected ErrInvalidAPICredentials, got %v", err)
	}
}

func TestAccountServiceUnlink(t *testing.T) {
	client := &mockProvider{name: models.ProviderBybit, uid: "uid-42"}
	accountRepo := newMockAccountRepo()
	syncRepo := newMockSyncRepo()
	tradeRepo := newMockTradeRepo()
	accountSvc := newTestAccountService(t, accountRepo, syncRepo, tradeRepo, &mockFactory{client: client})

	account := linkTestAccount(t, accountSvc, client)

	// Наполняем связанные данные
	syncRepo.watermarks["uid-42|USDT"] = 100
	tradeRepo.InsertIfAbsent(&models.Trade{UID: "uid-42", PositionID: "p1", Coin: "USDT", CloseTime: 50})

	if err := accountSvc.Unlink(context.Background(), account.ID); err != nil {
		t.Fatalf("Unlink() error = %v", err)
	}

	if len(accountRepo.accounts) != 0 {
		t.Error("account not deleted")
	}
	if len(tradeRepo.trades) != 0 {
		t.Error("trades not deleted")
	}
	if len(syncRepo.watermarks) != 0 {
		t.Error("watermarks not deleted")
	}
}
