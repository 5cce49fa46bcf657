package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"p2p_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Source flags on the orders mirror: which kind of pipeline last touched
// the row.
const (
	SourceAPI     int64 = 1 << 0
	SourceCapture int64 = 1 << 1
)

// OrderRecord mirrors the latest known state of one order in sqlite. This
// is not an event log; every upsert replaces the row.
type OrderRecord struct {
	OrderNumber      string `gorm:"primaryKey" json:"order_number"`
	TradeType        string `json:"trade_type"`
	Asset            string `json:"asset"`
	Fiat             string `json:"fiat"`
	AmountAsset      string `json:"amount_asset"`
	TotalFiat        string `json:"total_fiat"`
	Price            string `json:"price"`
	StatusCode       int64  `json:"status_code"`
	StatusLabel      string `gorm:"-" json:"status_label"`
	CreateTimeMS     int64  `json:"create_time_ms"`
	UpdateTimeMS     int64  `json:"update_time_ms"`
	BuyerNickname    string `json:"buyer_nickname"`
	SellerNickname   string `json:"seller_nickname"`
	HasPaymentDetail bool   `json:"has_payment_detail"`
	LastSyncTS       int64  `json:"last_sync_ts"`
	SourceFlags      int64  `json:"source_flags"`
}

// Credential is one sealed API key pair. The newest row wins.
type Credential struct {
	ID           uint `gorm:"primaryKey"`
	Label        string
	APIKeyEnc    []byte
	APISecretEnc []byte
	CreatedAt    int64
	LastUsedAt   int64
}

// Storage is the sqlite persistence layer: the orders mirror plus
// encrypted credentials.
type Storage struct {
	db  *gorm.DB
	box *SecretBox
}

// NewStorage opens (or creates) the database under dataDir.
func NewStorage(dataDir string, box *SecretBox) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "p2p.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&OrderRecord{}, &Credential{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db, box: box}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================
// Orders mirror
// ======================================================================

// UpsertFromCapture mirrors a reconciled entity. Called from the store's
// post-merge hook; errors are the caller's to log, not to retry.
func (s *Storage) UpsertFromCapture(o domain.Order) error {
	existing, err := s.getOrder(o.OrderNumber)
	if err != nil {
		return err
	}

	rec := OrderRecord{
		OrderNumber:      o.OrderNumber,
		TradeType:        o.TradeType,
		Asset:            o.Asset,
		Fiat:             o.Fiat,
		AmountAsset:      o.AmountAsset,
		TotalFiat:        o.TotalFiat,
		Price:            o.Price,
		StatusCode:       o.Stage,
		CreateTimeMS:     o.CreateTimeMS,
		UpdateTimeMS:     o.LastUpdateTS,
		BuyerNickname:    o.BuyerNick,
		SellerNickname:   o.SellerNick,
		HasPaymentDetail: o.AccountName != "" || o.AccountNo != "" || o.BankName != "" || o.SubBank != "" || o.QRCode != "",
		LastSyncTS:       o.LastUpdateTS,
		SourceFlags:      SourceCapture,
	}
	if existing != nil {
		rec.SourceFlags |= existing.SourceFlags
		rec.HasPaymentDetail = rec.HasPaymentDetail || existing.HasPaymentDetail
	}
	return s.db.Save(&rec).Error
}

// UpsertRaw mirrors one raw order document from the REST backfill.
// Implements the backfill's sink. Documents without an orderNumber are
// skipped silently, same as the capture parsers.
func (s *Storage) UpsertRaw(order map[string]any, syncTS int64) error {
	orderNumber := rawString(order, "orderNumber")
	if orderNumber == "" {
		return nil
	}

	existing, err := s.getOrder(orderNumber)
	if err != nil {
		return err
	}

	rec := OrderRecord{
		OrderNumber:    orderNumber,
		TradeType:      rawString(order, "tradeType"),
		Asset:          rawString(order, "asset"),
		Fiat:           rawString(order, "fiat"),
		AmountAsset:    rawString(order, "amount"),
		TotalFiat:      rawString(order, "totalPrice"),
		Price:          rawString(order, "price"),
		StatusCode:     rawInt64(order, "orderStatus", -1),
		CreateTimeMS:   rawInt64(order, "createTime", 0),
		UpdateTimeMS:   syncTS,
		BuyerNickname:  rawString(order, "buyerNickname"),
		SellerNickname: rawString(order, "sellerNickname"),
		LastSyncTS:     syncTS,
		SourceFlags:    SourceAPI,
	}
	if existing != nil {
		rec.SourceFlags |= existing.SourceFlags
		rec.HasPaymentDetail = existing.HasPaymentDetail
	}
	return s.db.Save(&rec).Error
}

// ListOrders returns the newest orders first.
func (s *Storage) ListOrders(limit int) ([]OrderRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []OrderRecord
	err := s.db.Order("create_time_ms DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].StatusLabel = domain.StageLabel(rows[i].StatusCode)
	}
	return rows, nil
}

func (s *Storage) getOrder(orderNumber string) (*OrderRecord, error) {
	var rec OrderRecord
	err := s.db.First(&rec, "order_number = ?", orderNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ======================================================================
// Credentials
// ======================================================================

// StoreCredential seals and saves an API key pair.
func (s *Storage) StoreCredential(label, apiKey, apiSecret string) error {
	keyEnc, err := s.box.Seal([]byte(apiKey))
	if err != nil {
		return fmt.Errorf("failed to seal api key: %w", err)
	}
	secretEnc, err := s.box.Seal([]byte(apiSecret))
	if err != nil {
		return fmt.Errorf("failed to seal api secret: %w", err)
	}

	now := time.Now().UnixMilli()
	return s.db.Create(&Credential{
		Label:        label,
		APIKeyEnc:    keyEnc,
		APISecretEnc: secretEnc,
		CreatedAt:    now,
		LastUsedAt:   now,
	}).Error
}

// LatestCredential returns the newest stored key pair, or ok=false when
// none exists.
func (s *Storage) LatestCredential() (apiKey, apiSecret string, ok bool, err error) {
	var cred Credential
	e := s.db.Order("id DESC").First(&cred).Error
	if errors.Is(e, gorm.ErrRecordNotFound) {
		return "", "", false, nil
	}
	if e != nil {
		return "", "", false, e
	}

	key, e := s.box.Open(cred.APIKeyEnc)
	if e != nil {
		return "", "", false, fmt.Errorf("failed to unseal api key: %w", e)
	}
	secret, e := s.box.Open(cred.APISecretEnc)
	if e != nil {
		return "", "", false, fmt.Errorf("failed to unseal api secret: %w", e)
	}
	return string(key), string(secret), true, nil
}

// rawString / rawInt64 mirror the capture-side tolerant accessors for the
// backfill's raw documents.
func rawString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func rawInt64(m map[string]any, key string, def int64) int64 {
	switch n := m[key].(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		return def
	case float64:
		return int64(n)
	default:
		return def
	}
}
