package storage

import (
	"testing"

	"p2p_go/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	dir := t.TempDir()

	box, err := NewSecretBox(dir)
	if err != nil {
		t.Fatalf("secret box: %v", err)
	}
	s, err := NewStorage(dir, box)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorage_CaptureMirror(t *testing.T) {
	s := newTestStorage(t)

	err := s.UpsertFromCapture(domain.Order{
		OrderNumber:  "O1",
		TradeType:    "BUY",
		Asset:        "USDT",
		Fiat:         "VND",
		Stage:        1,
		CreateTimeMS: 5000,
		LastUpdateTS: 6000,
		BankName:     "VCB",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := s.ListOrders(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	r := rows[0]
	if r.OrderNumber != "O1" || !r.HasPaymentDetail || r.SourceFlags != SourceCapture {
		t.Errorf("unexpected row: %+v", r)
	}
	if r.StatusLabel != "Pending Payment" {
		t.Errorf("status label = %q", r.StatusLabel)
	}

	// Latest state replaces the row; payment-detail knowledge sticks.
	err = s.UpsertFromCapture(domain.Order{OrderNumber: "O1", Stage: 4, LastUpdateTS: 7000})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	rows, _ = s.ListOrders(10)
	if rows[0].StatusCode != 4 || !rows[0].HasPaymentDetail {
		t.Errorf("replace lost state: %+v", rows[0])
	}
}

func TestStorage_RawMirrorMergesSourceFlags(t *testing.T) {
	s := newTestStorage(t)

	s.UpsertFromCapture(domain.Order{OrderNumber: "O1", Stage: 1, LastUpdateTS: 1})

	err := s.UpsertRaw(map[string]any{
		"orderNumber": "O1",
		"tradeType":   "SELL",
		"orderStatus": float64(4),
		"createTime":  float64(9000),
	}, 2)
	if err != nil {
		t.Fatalf("raw upsert: %v", err)
	}

	rows, _ := s.ListOrders(10)
	if rows[0].SourceFlags != SourceAPI|SourceCapture {
		t.Errorf("source flags = %d", rows[0].SourceFlags)
	}
	if rows[0].StatusCode != 4 || rows[0].TradeType != "SELL" {
		t.Errorf("raw fields not applied: %+v", rows[0])
	}

	// Missing orderNumber is skipped, not an error.
	if err := s.UpsertRaw(map[string]any{"tradeType": "BUY"}, 3); err != nil {
		t.Fatalf("skip should not error: %v", err)
	}
	rows, _ = s.ListOrders(10)
	if len(rows) != 1 {
		t.Fatalf("rows = %d after skip", len(rows))
	}
}

func TestStorage_ListOrdersNewestFirst(t *testing.T) {
	s := newTestStorage(t)
	s.UpsertFromCapture(domain.Order{OrderNumber: "old", CreateTimeMS: 100})
	s.UpsertFromCapture(domain.Order{OrderNumber: "new", CreateTimeMS: 200})

	rows, err := s.ListOrders(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].OrderNumber != "new" {
		t.Errorf("unexpected order: %+v", rows)
	}
}

func TestStorage_CredentialRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	if _, _, ok, err := s.LatestCredential(); err != nil || ok {
		t.Fatalf("empty table: ok=%v err=%v", ok, err)
	}

	if err := s.StoreCredential("main", "key-1", "secret-1"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := s.StoreCredential("rotated", "key-2", "secret-2"); err != nil {
		t.Fatalf("store: %v", err)
	}

	key, secret, ok, err := s.LatestCredential()
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if key != "key-2" || secret != "secret-2" {
		t.Errorf("latest credential wrong: %q/%q", key, secret)
	}
}

func TestSecretBox_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	box, err := NewSecretBox(dir)
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := box.Seal([]byte("super secret"))
	if err != nil {
		t.Fatal(err)
	}
	if string(sealed) == "super secret" {
		t.Fatal("seal returned plaintext")
	}

	// A second box over the same workspace reuses the key file.
	box2, err := NewSecretBox(dir)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := box2.Open(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != "super secret" {
		t.Errorf("round trip = %q", plain)
	}

	if _, err := box.Open([]byte("short")); err == nil {
		t.Error("opening garbage must fail")
	}
}
