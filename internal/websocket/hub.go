package websocket

import (
	"bytes"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"tradejournal/internal/models"
	"tradejournal/pkg/utils"
)

// Пул JSON буферов - убирает аллокации при каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями.
//
// Центральный менеджер для broadcast сообщений всем подключённым
// клиентам: регистрация/отмена регистрации, рассылка syncUpdate и
// statsUpdate, отключение медленных клиентов.
//
// Использование:
//  1. создать: hub := NewHub(logger)
//  2. запустить в горутине: go hub.Run()
//  3. отправлять: hub.BroadcastSyncUpdate(...)
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	logger     *utils.Logger

	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// Stop останавливает главный цикл Hub. Вызывается при graceful shutdown.
func (h *Hub) Stop() {
	close(h.stop)
}

// Run запускает главный цикл Hub. Должен работать в отдельной горутине.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			// Копируем список клиентов под коротким RLock, отправляем
			// без блокировки, удаляем медленных под Write Lock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				h.logger.Warn("removed slow websocket clients", zap.Int("count", len(toRemove)))
			}
		}
	}
}

// Broadcast сериализует сообщение и рассылает его всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.logger.Error("failed to marshal broadcast message", zap.Error(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Encode добавляет trailing newline - убираем
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// BroadcastSyncUpdate отправляет прогресс цикла синхронизации.
// Реализует service.SyncBroadcaster.
func (h *Hub) BroadcastSyncUpdate(uid, coin, state string, result *models.SyncResult) {
	h.Broadcast(NewSyncUpdateMessage(uid, coin, state, result))
}

// BroadcastStatsUpdate отправляет свежую статистику
func (h *Hub) BroadcastStatsUpdate(uid string, stats *models.Statistics) {
	h.Broadcast(NewStatsUpdateMessage(uid, stats))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
