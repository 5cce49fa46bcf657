package infra

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"p2p_go/internal/engine"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// CaptureStats counts gate and dispatch outcomes across all sessions.
// Readable at any time via Snapshot.
type CaptureStats struct {
	FramesSeen    atomic.Int64
	Admitted      atomic.Int64
	Rejected      atomic.Int64
	ListOverrides atomic.Int64
	Merged        atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	FramesSeen    int64 `json:"frames_seen"`
	Admitted      int64 `json:"admitted"`
	Rejected      int64 `json:"rejected"`
	ListOverrides int64 `json:"list_overrides"`
	Merged        int64 `json:"merged"`
}

func (s *CaptureStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		FramesSeen:    s.FramesSeen.Load(),
		Admitted:      s.Admitted.Load(),
		Rejected:      s.Rejected.Load(),
		ListOverrides: s.ListOverrides.Load(),
		Merged:        s.Merged.Load(),
	}
}

// CaptureServer accepts websocket connections from the browser extension
// and runs one ingestion session per connection. All sessions share one
// dedup gate and one order store; a failing session never touches its
// siblings or the accept loop.
type CaptureServer struct {
	addr  string
	gate  *engine.Deduper
	store *engine.OrderStore
	stats CaptureStats

	upgrader websocket.Upgrader
	srv      *http.Server
	wg       sync.WaitGroup

	mu        sync.Mutex
	boundAddr string
}

// Addr returns the bound listener address, useful when the configured
// address carried port 0.
func (s *CaptureServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// NewCaptureServer creates a capture server bound to addr on Start.
func NewCaptureServer(addr string, gate *engine.Deduper, store *engine.OrderStore) *CaptureServer {
	return &CaptureServer{
		addr:  addr,
		gate:  gate,
		store: store,
		upgrader: websocket.Upgrader{
			// The extension connects from a page origin; the listener is
			// loopback-only so origin checks add nothing here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stats exposes the shared counters.
func (s *CaptureServer) Stats() *CaptureStats { return &s.stats }

// Start binds the listener and serves in the background. A bind failure
// is returned synchronously; it is the caller's decision whether that is
// fatal.
func (s *CaptureServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.handleConn(ctx, w, r)
	})
	s.srv = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("Capture server stopped", slog.Any("error", err))
		}
	}()

	slog.Info("🎧 Capture server listening", slog.String("addr", s.addr))
	return nil
}

// Stop shuts the listener down and waits for the serve loop.
func (s *CaptureServer) Stop() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.srv.Shutdown(ctx)
	s.wg.Wait()
}

// handleConn performs the transport handshake and runs the session loop.
// net/http already gives each connection its own goroutine, so the loop
// runs inline; an error here ends only this session.
func (s *CaptureServer) handleConn(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Capture handshake failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := slog.With(slog.String("session", sessionID))
	log.Info("Capture session opened", slog.String("remote", r.RemoteAddr))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			log.Info("Capture session closed", slog.Any("reason", err))
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.handleFrame(log, raw)
	}
}

// handleFrame runs one message through decode, classify, gate, dispatch.
// Every failure mode drops just this frame.
func (s *CaptureServer) handleFrame(log *slog.Logger, raw []byte) {
	s.stats.FramesSeen.Add(1)

	env, err := engine.DecodeEnvelope(raw)
	if err != nil {
		log.Debug("Envelope decode failed", slog.Any("error", err))
		return
	}
	ev := env.CaptureEvent()
	if ev == nil {
		return // other traffic kinds pass through silently
	}

	kind := engine.ClassifyRoute(ev.Route)

	admitted := s.gate.Admit(ev.Fingerprint())
	if admitted {
		s.stats.Admitted.Add(1)
	} else {
		s.stats.Rejected.Add(1)
		// List responses are cheap to re-merge and carry the freshest
		// status, so they bypass the gate; everything else stops here.
		if kind != engine.RouteList {
			return
		}
		s.stats.ListOverrides.Add(1)
	}

	switch kind {
	case engine.RouteList:
		records := engine.ParseOrderList(ev.Body)
		if len(records) > 0 {
			s.store.UpsertSummaries(records, ev.TS)
			s.stats.Merged.Add(1)
		}

	case engine.RouteDetail:
		if d := engine.ParseOrderDetail(ev.Body); d != nil {
			s.store.UpsertDetail(d, ev.TS)
			s.stats.Merged.Add(1)
		}

	case engine.RouteQuickStatus:
		// The order id is not reliably present on this endpoint, so the
		// code is logged and nothing is merged.
		if code, ok := engine.ExtractQuickStatus(ev.Body); ok {
			log.Info("Quick status observed", slog.Int64("code", code), slog.String("route", ev.Route))
		}

	default:
		// unclassified route, ignore
	}
}
