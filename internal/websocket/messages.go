// Package websocket обеспечивает real-time доставку обновлений
// синхронизации и статистики подключённым UI клиентам.
package websocket

import (
	"time"

	"tradejournal/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeSyncUpdate - прогресс цикла синхронизации.
	// Отправляется на каждом переходе состояния (fetching, merging,
	// advancing, idle, failed), чтобы UI показывал живой прогресс.
	MessageTypeSyncUpdate MessageType = "syncUpdate"

	// MessageTypeStatsUpdate - свежая агрегированная статистика.
	// Отправляется после пересчёта по запросу клиента.
	MessageTypeStatsUpdate MessageType = "statsUpdate"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// SyncUpdateMessage - сообщение о прогрессе синхронизации
type SyncUpdateMessage struct {
	BaseMessage
	UID    string             `json:"uid"`
	Coin   string             `json:"coin"`
	State  string             `json:"state"`
	Result *models.SyncResult `json:"result,omitempty"` // заполнен на финальном переходе
}

// StatsUpdateMessage - сообщение со свежей статистикой
type StatsUpdateMessage struct {
	BaseMessage
	UID  string             `json:"uid"`
	Data *models.Statistics `json:"data"`
}

// NewSyncUpdateMessage создает сообщение прогресса синхронизации
func NewSyncUpdateMessage(uid, coin, state string, result *models.SyncResult) *SyncUpdateMessage {
	return &SyncUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSyncUpdate,
			Timestamp: time.Now(),
		},
		UID:    uid,
		Coin:   coin,
		State:  state,
		Result: result,
	}
}

// NewStatsUpdateMessage создает сообщение обновления статистики
func NewStatsUpdateMessage(uid string, stats *models.Statistics) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatsUpdate,
			Timestamp: time.Now(),
		},
		UID:  uid,
		Data: stats,
	}
}
