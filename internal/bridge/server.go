// Package bridge exposes the reconciled order state to local consumers
// over a small REST surface.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"p2p_go/internal/engine"
	"p2p_go/internal/infra"
	"p2p_go/internal/infra/binance"
	"p2p_go/internal/storage"
)

// Options wires the bridge server's collaborators.
type Options struct {
	Addr    string
	Store   *engine.OrderStore
	Storage *storage.Storage
	QR      *infra.QRCache
	Stats   *infra.CaptureStats

	// RestURL is the Binance base URL used when credentials are swapped
	// in at runtime.
	RestURL string
	// SyncDays is the default backfill window when a sync request does
	// not name one.
	SyncDays int
}

// Server serves the consumer-facing API on a loopback address.
type Server struct {
	opts Options
	srv  *http.Server

	mu        sync.Mutex
	boundAddr string
	client    *binance.Client
}

func NewServer(opts Options) *Server {
	if opts.SyncDays <= 0 {
		opts.SyncDays = 30
	}
	return &Server{opts: opts}
}

// SetClient installs the active REST client, closing any previous one.
func (s *Server) SetClient(c *binance.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
	}
	s.client = c
}

func (s *Server) activeClient() *binance.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Addr returns the bound listen address, valid after Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// Start binds the listener and serves in the background. A bind failure
// is returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.srv = &http.Server{Handler: s.router()}
	s.mu.Unlock()

	slog.Info("🌉 Bridge API listening", "addr", s.boundAddr)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Bridge server stopped", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully and closes the active client.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.srv
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("Bridge shutdown", "error", err)
		}
	}
	if client != nil {
		client.Close()
	}
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/orders", s.handleOrders)
		api.GET("/orders/history", s.handleHistory)
		api.GET("/orders/:number/qr", s.handleOrderQR)
		api.GET("/stats", s.handleStats)
		api.POST("/nickname", s.handleNickname)
		api.POST("/credentials", s.handleCredentials)
		api.POST("/sync", s.handleSync)
	}
	return router
}
