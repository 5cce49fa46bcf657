package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces Binance SAPI request signatures. Keys are stored as
// []byte so they can be wiped from memory once the client is replaced.
type Signer struct {
	apiKey    []byte
	apiSecret []byte
}

// NewSigner creates a new signer.
func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{
		apiKey:    []byte(apiKey),
		apiSecret: []byte(apiSecret),
	}
}

// APIKey returns the key for the X-MBX-APIKEY header.
func (s *Signer) APIKey() string {
	return string(s.apiKey)
}

// Sign returns the lowercase hex HMAC-SHA256 of the query string, as the
// SAPI signature parameter expects.
func (s *Signer) Sign(query string) string {
	mac := hmac.New(sha256.New, s.apiSecret)
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// Wipe clears the keys from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	wipeSlice(s.apiKey)
	wipeSlice(s.apiSecret)
}

func wipeSlice(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
