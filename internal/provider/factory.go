package provider

import (
	"fmt"

	"tradejournal/internal/models"
	"tradejournal/pkg/ratelimit"
	"tradejournal/pkg/retry"
)

// Options - общие зависимости клиентов провайдеров.
//
// HTTP клиент и rate limiter передаются явно из main: один пул
// соединений на процесс, без глобальных синглтонов.
type Options struct {
	BaseURL    string // переопределение базового URL (httptest в тестах)
	HTTPClient *HTTPClient
	Limiter    *ratelimit.RateLimiter
	Retry      retry.Config
	MaxPages   int // жёсткий предел страниц пагинации за один проход
}

// applyDefaults заполняет незаданные поля значениями по умолчанию
func (o *Options) applyDefaults() {
	if o.HTTPClient == nil {
		o.HTTPClient = NewHTTPClient(DefaultHTTPClientConfig())
	}
	if o.Limiter == nil {
		o.Limiter = ratelimit.NewRateLimiter(10, 20)
	}
	if o.Retry.MaxRetries == 0 && o.Retry.InitialDelay == 0 {
		o.Retry = retry.NetworkConfig()
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 100
	}
}

// NewProvider создает клиент провайдера по имени
func NewProvider(name, apiKey, apiSecret string, opts Options) (Provider, error) {
	switch name {
	case models.ProviderBybit:
		return NewBybit(apiKey, apiSecret, opts), nil
	case models.ProviderBitget:
		return NewBitget(apiKey, apiSecret, opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// IsSupported проверяет, поддерживается ли провайдер
func IsSupported(name string) bool {
	return models.IsSupportedProvider(name)
}
