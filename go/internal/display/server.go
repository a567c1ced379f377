package display

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/familypark/playzone/go/internal/directory"
	"github.com/familypark/playzone/go/internal/feed"
	"github.com/familypark/playzone/go/internal/models"
)

// LocalDirectory resolves venue codes from screen URLs.
type LocalDirectory interface {
	GetLocalByCode(ctx context.Context, code string) (*models.Local, error)
}

// Server is the HTTP surface screens connect to. A zone's render loop is
// started lazily when its first screen arrives and keeps running after the
// last one leaves; venues have a handful of zones at most.
type Server struct {
	store  Store
	locals LocalDirectory
	hub    *Hub
	nc     feed.Subscriber
	clock  clockwork.Clock

	mu          sync.Mutex
	controllers map[zoneKey]*Controller
	baseCtx     context.Context
}

// NewServer wires the screen server. nc may be nil when NATS is down; zone
// loops then rely on the fallback poll alone.
func NewServer(store Store, locals LocalDirectory, hub *Hub, nc feed.Subscriber, clock clockwork.Clock) *Server {
	return &Server{
		store:       store,
		locals:      locals,
		hub:         hub,
		nc:          nc,
		clock:       clock,
		controllers: make(map[zoneKey]*Controller),
	}
}

// Start runs the hub until the context is cancelled. Zone loops started
// later inherit this context.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	s.hub.Start(ctx)
}

// Handler returns the HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleScreen)
	mux.HandleFunc("/health", s.handleHealth)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)
}

// handleScreen upgrades ?local=<code>&zone=<code> requests into screen
// connections and pushes a first frame so the screen is not blank until the
// next tick.
func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	localCode := r.URL.Query().Get("local")
	zoneCode := r.URL.Query().Get("zone")
	if localCode == "" || zoneCode == "" {
		http.Error(w, "local and zone are required", http.StatusBadRequest)
		return
	}

	local, err := s.locals.GetLocalByCode(r.Context(), localCode)
	if err != nil {
		if errors.Is(err, directory.ErrLocalNotFound) {
			http.Error(w, "unknown local", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("local_code", localCode).Msg("failed to resolve local")
		http.Error(w, "failed to resolve local", http.StatusInternalServerError)
		return
	}

	controller, err := s.ensureController(local.ID, zoneCode)
	if err != nil {
		log.Error().Err(err).Str("zone_code", zoneCode).Msg("failed to start zone loop")
		http.Error(w, "failed to start zone", http.StatusInternalServerError)
		return
	}

	if err := s.hub.Upgrade(w, r, local.ID, zoneCode); err != nil {
		log.Error().Err(err).Str("zone_code", zoneCode).Msg("failed to upgrade screen connection")
		return
	}

	s.hub.Broadcast(local.ID, zoneCode, controller.Frame())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ensureController returns the zone's render loop, starting it on first use.
func (s *Server) ensureController(localID uuid.UUID, zoneCode string) (*Controller, error) {
	key := zoneKey{localID: localID, zoneCode: zoneCode}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.controllers[key]; ok {
		return c, nil
	}
	if s.baseCtx == nil {
		return nil, errors.New("server not started")
	}

	var events <-chan feed.ChangeEvent
	if s.nc != nil {
		sub, err := feed.Subscribe(s.nc, localID, zoneCode)
		if err != nil {
			// Degraded but workable: the fallback poll covers for the feed.
			log.Warn().Err(err).Str("zone_code", zoneCode).Msg("change feed unavailable, polling only")
		} else {
			events = sub.Events
			context.AfterFunc(s.baseCtx, func() { sub.Close() })
		}
	}

	c := NewController(s.store, s.hub, events, localID, zoneCode, s.clock)
	s.controllers[key] = c

	go func() {
		if err := c.Run(s.baseCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("zone_code", zoneCode).Msg("zone loop stopped")
		}
	}()

	log.Info().
		Str("local_id", localID.String()).
		Str("zone_code", zoneCode).
		Msg("zone render loop started")
	return c, nil
}
