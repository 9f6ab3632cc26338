package provider

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	"tradejournal/internal/models"
)

// json - быстрый drop-in вместо encoding/json для разбора ответов
// провайдеров (история сделок приходит страницами по 100 записей)
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Provider определяет унифицированный интерфейс клиента биржи.
//
// Каждая реализация владеет своей схемой подписи запросов и
// нормализацией формата ответов: вызывающие никогда не видят
// провайдеро-специфичных полей, только канонические модели.
type Provider interface {
	// Name возвращает имя провайдера (bybit, bitget)
	Name() string

	// GetAccountUID возвращает uid аккаунта, назначенный провайдером.
	// Используется как ключ синхронизации и как тестовый вызов
	// при привязке аккаунта (проверка валидности ключей).
	GetAccountUID(ctx context.Context) (string, error)

	// GetOpenPositions возвращает snapshot открытых позиций
	// для указанной валюты расчётов. Данные эфемерны и никогда
	// не сохраняются в хранилище сделок.
	GetOpenPositions(ctx context.Context, coin string) ([]*models.OpenPosition, error)

	// GetClosedTrades возвращает закрытые позиции с временем закрытия
	// >= since (epoch миллисекунды, инклюзивно), отсортированные по
	// времени закрытия по возрастанию. Пагинация провайдера проходится
	// полностью до возврата результата.
	GetClosedTrades(ctx context.Context, coin string, since int64) ([]*models.Trade, error)

	// GetKlines возвращает свечи по символу начиная с since,
	// по возрастанию времени открытия
	GetKlines(ctx context.Context, symbol, interval string, since int64, limit int) ([]*models.Candle, error)
}
