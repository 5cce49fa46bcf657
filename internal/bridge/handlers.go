package bridge

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"p2p_go/internal/infra/binance"
)

func (s *Server) handleOrders(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Store.List())
}

func (s *Server) handleHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := s.opts.Storage.ListOrders(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Stats.Snapshot())
}

func (s *Server) handleNickname(c *gin.Context) {
	var req struct {
		Nickname string `json:"nickname" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nickname is required"})
		return
	}
	s.opts.Store.SetMyNickname(req.Nickname)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCredentials(c *gin.Context) {
	var req struct {
		Label     string `json:"label"`
		APIKey    string `json:"api_key" binding:"required"`
		APISecret string `json:"api_secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key and api_secret are required"})
		return
	}
	if req.Label == "" {
		req.Label = "default"
	}

	if err := s.opts.Storage.StoreCredential(req.Label, req.APIKey, req.APISecret); err != nil {
		slog.Error("Failed to store credential", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credential"})
		return
	}
	s.SetClient(binance.NewClient(req.APIKey, req.APISecret, s.opts.RestURL))

	slog.Info("🔑 API credentials updated", "label", req.Label)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSync(c *gin.Context) {
	var req struct {
		Days int `json:"days"`
	}
	// Body is optional; an empty one means the default window.
	_ = c.ShouldBindJSON(&req)
	if req.Days <= 0 {
		req.Days = s.opts.SyncDays
	}

	client := s.activeClient()
	if client == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no api credentials configured"})
		return
	}

	backfill := binance.NewBackfill(client, s.opts.Storage)
	if err := backfill.Run(c.Request.Context(), req.Days); err != nil {
		slog.Error("Backfill failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "days": req.Days})
}

func (s *Server) handleOrderQR(c *gin.Context) {
	number := c.Param("number")
	order, ok := s.opts.Store.Get(number)
	if !ok || order.QRCode == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no qr code for order"})
		return
	}

	path, err := s.opts.QR.Fetch(number, order.QRCode)
	if err != nil {
		slog.Warn("QR fetch failed", "order", number, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch qr image"})
		return
	}
	c.File(path)
}
