package display

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub fans frames out to the TV screens watching each zone. Screens are
// read-only consumers: they receive frames and pings, and anything they
// send back is logged and ignored.
type Hub struct {
	zoneScreens map[zoneKey]map[*screen]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   HubConfig

	broadcastCh chan broadcast
}

type zoneKey struct {
	localID  uuid.UUID
	zoneCode string
}

// screen is one connected TV client.
type screen struct {
	id   string
	key  zoneKey
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

type broadcast struct {
	key   zoneKey
	frame *Frame
}

// HubConfig holds the WebSocket tuning knobs.
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultHubConfig returns defaults sized for a handful of wall-mounted
// screens per venue.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			// Screens live on the venue LAN; no origin restriction.
			return true
		},
	}
}

// NewHub creates a screen hub.
func NewHub(config HubConfig) *Hub {
	return &Hub{
		zoneScreens: make(map[zoneKey]map[*screen]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcast, 256),
	}
}

// Start processes queued broadcasts until the context is cancelled.
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("screen hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("screen hub shutting down")
			return
		case b := <-h.broadcastCh:
			h.handleBroadcast(b)
		}
	}
}

// Upgrade turns an HTTP request into a screen connection for one zone.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, localID uuid.UUID, zoneCode string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	s := &screen{
		id:   uuid.New().String(),
		key:  zoneKey{localID: localID, zoneCode: zoneCode},
		conn: conn,
		send: make(chan []byte, 16),
		hub:  h,
	}
	h.register(s)

	go s.writePump()
	go s.readPump()

	log.Info().
		Str("screen_id", s.id).
		Str("local_id", localID.String()).
		Str("zone_code", zoneCode).
		Msg("screen connected")
	return nil
}

func (h *Hub) register(s *screen) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.zoneScreens[s.key] == nil {
		h.zoneScreens[s.key] = make(map[*screen]bool)
	}
	h.zoneScreens[s.key][s] = true
}

func (h *Hub) unregister(s *screen) {
	h.mu.Lock()
	defer h.mu.Unlock()
	screens, ok := h.zoneScreens[s.key]
	if !ok {
		return
	}
	if _, ok := screens[s]; !ok {
		return
	}
	delete(screens, s)
	close(s.send)
	if len(screens) == 0 {
		delete(h.zoneScreens, s.key)
	}
	log.Info().
		Str("screen_id", s.id).
		Str("zone_code", s.key.zoneCode).
		Msg("screen disconnected")
}

// Broadcast queues a frame for every screen watching the zone. Never blocks
// the caller; a full queue drops the frame, the next tick replaces it anyway.
func (h *Hub) Broadcast(localID uuid.UUID, zoneCode string, frame *Frame) {
	select {
	case h.broadcastCh <- broadcast{key: zoneKey{localID: localID, zoneCode: zoneCode}, frame: frame}:
	default:
		log.Warn().Str("zone_code", zoneCode).Msg("broadcast queue full, dropping frame")
	}
}

// Watchers reports how many screens are watching a zone.
func (h *Hub) Watchers(localID uuid.UUID, zoneCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.zoneScreens[zoneKey{localID: localID, zoneCode: zoneCode}])
}

func (h *Hub) handleBroadcast(b broadcast) {
	h.mu.RLock()
	screens := make([]*screen, 0, len(h.zoneScreens[b.key]))
	for s := range h.zoneScreens[b.key] {
		screens = append(screens, s)
	}
	h.mu.RUnlock()

	if len(screens) == 0 {
		return
	}

	data, err := json.Marshal(b.frame)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal frame")
		return
	}

	for _, s := range screens {
		select {
		case s.send <- data:
		default:
			// Slow or dead screen, drop it. It reconnects on its own.
			log.Warn().Str("screen_id", s.id).Msg("screen send buffer full, closing")
			h.unregister(s)
			s.conn.Close()
		}
	}
}

func (s *screen) writePump() {
	ticker := time.NewTicker(s.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.hub.unregister(s)
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.hub.config.WriteTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("screen_id", s.id).Msg("failed to write frame")
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.hub.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *screen) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(s.hub.config.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.hub.config.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("screen_id", s.id).Msg("unexpected screen close")
			}
			return
		}
		// Screens are not supposed to talk.
		log.Debug().Str("screen_id", s.id).RawJSON("message", message).Msg("ignoring screen message")
		s.conn.SetReadDeadline(time.Now().Add(s.hub.config.ReadTimeout))
	}
}
