package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"solana-auto-trader/internal/domain"
)

// WSSourceConfig configures WebSocket signal source behavior.
type WSSourceConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing frames.
	WriteTimeout time.Duration
}

// DefaultWSSourceConfig returns default WebSocket source configuration.
func DefaultWSSourceConfig() WSSourceConfig {
	return WSSourceConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// wsSignalPayload is the feed's wire format for one signal.
type wsSignalPayload struct {
	Mint              string   `json:"mint"`
	Symbol            string   `json:"symbol"`
	UniqueWalletCount int      `json:"unique_wallet_count"`
	WalletAddresses   []string `json:"wallet_addresses"`
	WindowStartMs     int64    `json:"window_start_ms"`
	WindowEndMs       int64    `json:"window_end_ms"`
	TriggeredAtMs     int64    `json:"triggered_at_ms"`
}

// WSSource subscribes to a push feed of signal payloads over a
// WebSocket connection, reconnecting with exponential backoff.
type WSSource struct {
	endpoint string
	config   WSSourceConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
}

// NewWSSource creates a WebSocket signal source for the endpoint.
func NewWSSource(endpoint string, config *WSSourceConfig, logger *log.Logger) *WSSource {
	cfg := DefaultWSSourceConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WSSource{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
	}
}

var _ Source = (*WSSource)(nil)

// Subscribe connects to the feed and returns a channel of validated
// signals. Invalid payloads are logged and dropped. The channel closes
// when ctx is cancelled.
func (s *WSSource) Subscribe(ctx context.Context) (<-chan *domain.Signal, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	out := make(chan *domain.Signal, 100)
	go s.readLoop(ctx, out)
	go s.pingLoop(ctx)
	return out, nil
}

// connect establishes the WebSocket connection.
func (s *WSSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn
	return nil
}

// readLoop reads payloads and reconnects with exponential backoff on
// connection errors.
func (s *WSSource) readLoop(ctx context.Context, out chan<- *domain.Signal) {
	defer close(out)
	defer s.closeConn()

	reconnectDelay := s.config.ReconnectDelay

	for ctx.Err() == nil {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}

			if err := s.connect(ctx); err != nil {
				s.logger.Printf("[SIGNAL-WS] reconnect failed: %v", err)
				reconnectDelay *= 2
				if reconnectDelay > s.config.MaxReconnectDelay {
					reconnectDelay = s.config.MaxReconnectDelay
				}
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Printf("[SIGNAL-WS] read error, reconnecting: %v", err)
			s.closeConn()
			continue
		}

		reconnectDelay = s.config.ReconnectDelay

		sig, err := parseSignalMessage(message)
		if err != nil {
			s.logger.Printf("[SIGNAL-WS] drop malformed payload: %v", err)
			continue
		}

		select {
		case out <- sig:
		case <-ctx.Done():
			return
		}
	}
}

// pingLoop keeps the connection alive with periodic ping frames.
func (s *WSSource) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				// A failed ping means a dead connection; the reader
				// will reconnect.
				_ = s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

func (s *WSSource) closeConn() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

// parseSignalMessage decodes and validates one feed payload.
func parseSignalMessage(message []byte) (*domain.Signal, error) {
	var payload wsSignalPayload
	if err := json.Unmarshal(message, &payload); err != nil {
		return nil, fmt.Errorf("decode signal: %w", err)
	}

	sig := &domain.Signal{
		Mint:       payload.Mint,
		Symbol:     payload.Symbol,
		ReceivedAt: time.Now().UnixMilli(),
		Metadata: domain.SignalMetadata{
			UniqueWalletCount: payload.UniqueWalletCount,
			WalletAddresses:   payload.WalletAddresses,
			WindowStartMs:     payload.WindowStartMs,
			WindowEndMs:       payload.WindowEndMs,
			TriggeredAtMs:     payload.TriggeredAtMs,
		},
	}
	if err := Validate(sig); err != nil {
		return nil, err
	}
	return sig, nil
}
