package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"chargeguard/backend/services/fraud-service/internal/metrics"
	"chargeguard/backend/services/fraud-service/internal/models"
)

// Event is the envelope pushed to subscribers.
type Event struct {
	Type   string            `json:"type"`
	Report *models.RunReport `json:"report"`
}

const EventRunCompleted = "run.completed"

// Hub tracks run feed subscribers and fans run reports out to them.
type Hub struct {
	mu           sync.RWMutex
	connections  map[string]*Connection
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewHub builds connection hub.
func NewHub(pingInterval time.Duration, logger *zap.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		connections:  make(map[string]*Connection),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Add registers new connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID()] = conn
	metrics.WebsocketClients.Set(float64(len(h.connections)))
}

// Remove removes connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, id)
	metrics.WebsocketClients.Set(float64(len(h.connections)))
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// PublishRun broadcasts a run summary. Per-session verdicts are not sent.
func (h *Hub) PublishRun(report *models.RunReport) {
	summary := report.Summary()
	data, err := json.Marshal(Event{Type: EventRunCompleted, Report: &summary})
	if err != nil {
		h.logger.Error("marshal run event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.connections {
		conn.Send(data)
	}
}

// Start begins ping loop to keep connections active.
func (h *Hub) Start(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			for _, conn := range h.connections {
				_ = conn.Ping()
			}
			h.mu.RUnlock()
		}
	}
}
