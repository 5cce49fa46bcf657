// Package app wires the startup sequence.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"p2p_go/internal/infra"
	"p2p_go/internal/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	QRCache *infra.QRCache

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, dirs, DB).
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping P2P Go...")

	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data")
	logDir := filepath.Join(workDir, "logs")
	qrDir := filepath.Join(workDir, "assets", "qr")

	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(logDir); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	// 2. Setup Logger
	logger := infra.NewLogger(cfg, logDir)
	slog.SetDefault(logger)

	// 3. Singleton Instance Lock
	// Two processes sharing one sqlite file corrupt it sooner or later.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 4. Encrypted credential store + orders mirror
	box, err := storage.NewSecretBox(workDir)
	if err != nil {
		return fmt.Errorf("failed to init secret box: %w", err)
	}
	st, err := storage.NewStorage(dataDir, box)
	if err != nil {
		return err
	}
	b.Storage = st
	slog.Info("✅ Storage initialized", "path", filepath.Join(dataDir, "p2p.db"))

	// 5. QR image cache
	qr, err := infra.NewQRCache(qrDir)
	if err != nil {
		return err
	}
	b.QRCache = qr
	slog.Info("✅ QR cache ready", "path", qrDir)

	return nil
}

// Shutdown releases the resources Initialize acquired.
func (b *Bootstrap) Shutdown() {
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Storage close", "error", err)
		}
	}
	if b.unlock != nil {
		b.unlock()
	}
}
