package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"p2p_go/internal/app"
	"p2p_go/internal/bridge"
	"p2p_go/internal/domain"
	"p2p_go/internal/engine"
	"p2p_go/internal/infra"
	"p2p_go/internal/infra/binance"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config

	// 4. Reconciliation store, mirrored to sqlite after every merge
	store := engine.NewOrderStore()
	store.OnUpdate(func(o domain.Order) {
		if err := bootstrap.Storage.UpsertFromCapture(o); err != nil {
			slog.Warn("Order mirror write failed", "order", o.OrderNumber, "error", err)
		}
	})

	// 5. Capture ingestion server (websocket)
	gate := engine.NewDeduper(
		time.Duration(cfg.Capture.DedupWindowMS)*time.Millisecond,
		cfg.Capture.DedupMaxEntries,
	)
	capture := infra.NewCaptureServer(cfg.Capture.ListenAddr, gate, store)
	if err := capture.Start(ctx); err != nil {
		slog.Error("❌ Failed to start capture server", slog.Any("error", err))
		os.Exit(1)
	}
	defer capture.Stop()
	slog.InfoContext(ctx, "✅ Capture server started", slog.String("addr", capture.Addr()))

	// 6. Bridge API for local consumers
	bridgeSrv := bridge.NewServer(bridge.Options{
		Addr:     cfg.Bridge.ListenAddr,
		Store:    store,
		Storage:  bootstrap.Storage,
		QR:       bootstrap.QRCache,
		Stats:    capture.Stats(),
		RestURL:  cfg.API.Binance.RestURL,
		SyncDays: cfg.Sync.HistoryDays,
	})
	if err := bridgeSrv.Start(ctx); err != nil {
		slog.Error("❌ Failed to start bridge server", slog.Any("error", err))
		os.Exit(1)
	}
	defer bridgeSrv.Stop()

	// 7. Restore stored API credentials, if any
	if key, secret, ok, err := bootstrap.Storage.LatestCredential(); err != nil {
		slog.Warn("Credential restore failed", slog.Any("error", err))
	} else if ok {
		bridgeSrv.SetClient(binance.NewClient(key, secret, cfg.API.Binance.RestURL))
		slog.InfoContext(ctx, "✅ Stored API credentials restored")
	} else if cfg.API.Binance.APIKey != "" && cfg.API.Binance.APISecret != "" {
		bridgeSrv.SetClient(binance.NewClient(cfg.API.Binance.APIKey, cfg.API.Binance.APISecret, cfg.API.Binance.RestURL))
		slog.InfoContext(ctx, "✅ API credentials loaded from config")
	}

	slog.InfoContext(ctx, "✨ P2P order tracker fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
