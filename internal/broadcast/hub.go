// Package broadcast publishes pipeline state to observers. A slow
// observer loses messages; it never blocks the trading loop.
package broadcast

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/observability"
	"solana-auto-trader/internal/portfolio"
)

// MessageKind discriminates observer messages.
type MessageKind string

const (
	KindPositionOpened MessageKind = "POSITION_OPENED"
	KindTick           MessageKind = "TICK"
	KindSummary        MessageKind = "SUMMARY"
)

// Message is one observer notification.
type Message struct {
	Kind        MessageKind `json:"kind"`
	TimestampMs int64       `json:"timestamp_ms"`
	Payload     any         `json:"payload"`
}

// PositionOpenedPayload announces a fresh position with its exit plan.
type PositionOpenedPayload struct {
	Position domain.Position         `json:"position"`
	ExitPlan domain.ExitPlanSnapshot `json:"exit_plan"`
}

// TickPayload carries one price observation. Trade and ExitPlan are set
// only when the tick produced a fill.
type TickPayload struct {
	Mint     string                   `json:"mint"`
	Price    float64                  `json:"price"`
	Trade    *domain.TradeLogEntry    `json:"trade,omitempty"`
	Ledger   *portfolio.Snapshot      `json:"ledger,omitempty"`
	ExitPlan *domain.ExitPlanSnapshot `json:"exit_plan,omitempty"`
}

// SummaryPayload lists every token seen this session with its status.
type SummaryPayload struct {
	Trades []domain.TradeSummary `json:"trades"`
	Ledger portfolio.Snapshot    `json:"ledger"`
}

// HubOptions configures the broadcaster.
type HubOptions struct {
	BufferSize int                    // per-observer channel depth
	Metrics    *observability.Metrics // optional
	Logger     *log.Logger
}

// Hub fans messages out to registered observers over buffered channels.
// Delivery is best-effort per observer: a full buffer drops the message
// for that observer only.
type Hub struct {
	mu        sync.RWMutex
	observers map[string]chan Message
	bufSize   int
	metrics   *observability.Metrics
	logger    *log.Logger

	// resync state for late joiners
	lastSummary *Message
	openMsgs    map[string]Message // mint -> POSITION_OPENED
}

// NewHub creates a broadcaster.
func NewHub(opts HubOptions) *Hub {
	bufSize := opts.BufferSize
	if bufSize == 0 {
		bufSize = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		observers: make(map[string]chan Message),
		bufSize:   bufSize,
		metrics:   opts.Metrics,
		logger:    logger,
		openMsgs:  make(map[string]Message),
	}
}

// Register adds an observer and returns its ID and channel. The buffer
// is pre-loaded with the latest SUMMARY and a POSITION_OPENED resync
// for every active position.
func (h *Hub) Register() (string, <-chan Message) {
	id := uuid.NewString()
	ch := make(chan Message, h.bufSize)

	h.mu.Lock()
	if h.lastSummary != nil {
		ch <- *h.lastSummary
	}
	for _, msg := range h.openMsgs {
		select {
		case ch <- msg:
		default:
		}
	}
	h.observers[id] = ch
	count := len(h.observers)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ObserversConnected.Set(float64(count))
	}
	h.logger.Printf("[BROADCAST] observer %s registered", id)
	return id, ch
}

// Unregister removes an observer and closes its channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	ch, ok := h.observers[id]
	if ok {
		delete(h.observers, id)
		close(ch)
	}
	count := len(h.observers)
	h.mu.Unlock()

	if ok {
		if h.metrics != nil {
			h.metrics.ObserversConnected.Set(float64(count))
		}
		h.logger.Printf("[BROADCAST] observer %s unregistered", id)
	}
}

// ObserverCount reports the number of registered observers.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// PositionOpened announces a new position and records it for resync.
func (h *Hub) PositionOpened(pos domain.Position, plan domain.ExitPlanSnapshot) {
	msg := Message{
		Kind:        KindPositionOpened,
		TimestampMs: time.Now().UnixMilli(),
		Payload:     PositionOpenedPayload{Position: pos, ExitPlan: plan},
	}

	h.mu.Lock()
	h.openMsgs[pos.Mint] = msg
	h.publishLocked(msg)
	h.mu.Unlock()
}

// PositionClosed drops the position from the resync set.
func (h *Hub) PositionClosed(mint string) {
	h.mu.Lock()
	delete(h.openMsgs, mint)
	h.mu.Unlock()
}

// Tick publishes a price observation.
func (h *Hub) Tick(payload TickPayload) {
	msg := Message{
		Kind:        KindTick,
		TimestampMs: time.Now().UnixMilli(),
		Payload:     payload,
	}

	h.mu.Lock()
	h.publishLocked(msg)
	h.mu.Unlock()
}

// Summary publishes the session summary and retains it for late
// joiners. Publishing the same summary twice is harmless; observers
// replace, not accumulate.
func (h *Hub) Summary(payload SummaryPayload) {
	msg := Message{
		Kind:        KindSummary,
		TimestampMs: time.Now().UnixMilli(),
		Payload:     payload,
	}

	h.mu.Lock()
	h.lastSummary = &msg
	h.publishLocked(msg)
	h.mu.Unlock()
}

// publishLocked delivers to every observer without blocking. Callers
// hold h.mu.
func (h *Hub) publishLocked(msg Message) {
	for id, ch := range h.observers {
		select {
		case ch <- msg:
		default:
			h.logger.Printf("[BROADCAST] observer %s buffer full, dropped %s", id, msg.Kind)
			if h.metrics != nil {
				h.metrics.MessagesDropped.Inc()
			}
		}
	}
}
