package infra

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// QRCache downloads and caches payment QR code images keyed by order
// number. Cached images are normalized to a fixed size so the consumer
// surface renders them uniformly.
type QRCache struct {
	basePath string
	client   *http.Client
}

const qrImageSize = 240

// NewQRCache creates a QRCache rooted at dir (created if missing).
func NewQRCache(dir string) (*QRCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create qr cache directory: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &QRCache{
		basePath: dir,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// Fetch downloads the QR image at url for orderNumber if it is not
// cached yet, and returns the local PNG path.
func (c *QRCache) Fetch(orderNumber, url string) (string, error) {
	// Security: Sanitize the key to prevent path traversal
	safeKey := sanitizeKey(orderNumber)
	if safeKey == "" {
		return "", fmt.Errorf("invalid order number: %s", orderNumber)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("unsupported qr url scheme")
	}

	filePath := filepath.Join(c.basePath, safeKey+".png")

	// Check if exists
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	resp, err := c.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Resize with high-quality Lanczos filter
	resizedImg := imaging.Resize(srcImg, qrImageSize, qrImageSize, imaging.Lanczos)

	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// Path returns the local cache path for an order's QR image without
// touching the network.
func (c *QRCache) Path(orderNumber string) (string, bool) {
	safeKey := sanitizeKey(orderNumber)
	if safeKey == "" {
		return "", false
	}
	p := filepath.Join(c.basePath, safeKey+".png")
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

func sanitizeKey(key string) string {
	res := make([]rune, 0, len(key))
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			res = append(res, r)
		}
	}
	return string(res)
}
