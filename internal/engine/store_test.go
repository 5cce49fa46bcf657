package engine

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"p2p_go/internal/domain"
)

func strptr(s string) *string { return &s }

func summary(orderNumber string, status int64) OrderSummary {
	return OrderSummary{
		OrderNumber: orderNumber,
		TradeType:   "BUY",
		Asset:       "USDT",
		Fiat:        "VND",
		AmountAsset: "100",
		TotalFiat:   "2550000",
		Price:       "25500",
		StatusCode:  status,
		BuyerNick:   "Alice",
		SellerNick:  "Bob",
	}
}

func TestUpsertSummaries_CreateAndOverwrite(t *testing.T) {
	s := NewOrderStore()
	s.UpsertSummaries([]OrderSummary{summary("O1", 1)}, 1000)

	o, ok := s.Get("O1")
	if !ok {
		t.Fatal("entity not created")
	}
	if o.Stage != 1 || o.LastUpdateTS != 1000 {
		t.Errorf("unexpected entity: %+v", o)
	}

	// Later summary overwrites status/amount/price/total and timestamp.
	next := summary("O1", 2)
	next.Price = "25600"
	s.UpsertSummaries([]OrderSummary{next}, 2000)

	o, _ = s.Get("O1")
	if o.Stage != 2 || o.Price != "25600" || o.LastUpdateTS != 2000 {
		t.Errorf("overwrite failed: %+v", o)
	}
}

func TestMergeMonotonicity_PaymentFields(t *testing.T) {
	s := NewOrderStore()

	withBank := summary("O1", 1)
	withBank.PaymentFields = []PaymentField{{Type: "bank", Value: strptr("VCB")}}
	s.UpsertSummaries([]OrderSummary{withBank}, 1000)

	// An update without that field type leaves it unchanged.
	s.UpsertSummaries([]OrderSummary{summary("O1", 2)}, 2000)
	o, _ := s.Get("O1")
	if o.BankName != "VCB" {
		t.Fatalf("bank_name regressed: %q", o.BankName)
	}

	// A valueless field slot leaves it unchanged too.
	valueless := summary("O1", 2)
	valueless.PaymentFields = []PaymentField{{Type: "bank", Value: nil}}
	s.UpsertSummaries([]OrderSummary{valueless}, 3000)
	o, _ = s.Get("O1")
	if o.BankName != "VCB" {
		t.Fatalf("bank_name cleared by valueless field: %q", o.BankName)
	}

	// An update that carries the field overwrites it.
	replacing := summary("O1", 2)
	replacing.PaymentFields = []PaymentField{{Type: "bank", Value: strptr("ACB")}}
	s.UpsertSummaries([]OrderSummary{replacing}, 4000)
	o, _ = s.Get("O1")
	if o.BankName != "ACB" {
		t.Fatalf("bank_name not overwritten: %q", o.BankName)
	}

	// Unrecognized field types are ignored.
	odd := summary("O1", 2)
	odd.PaymentFields = []PaymentField{{Type: "carrier_pigeon", Value: strptr("x")}}
	s.UpsertSummaries([]OrderSummary{odd}, 5000)
	o, _ = s.Get("O1")
	if o.BankName != "ACB" || o.AccountName != "" {
		t.Fatalf("unrecognized field type mutated entity: %+v", o)
	}
}

func TestUpsertDetail_CreatesAndCrossMerges(t *testing.T) {
	s := NewOrderStore()

	// Detail-first sighting creates the entity with empty display fields.
	s.UpsertDetail(&OrderDetail{
		OrderNumber: "O1",
		StatusCode:  2,
		Remark:      "please pay fast",
		PaymentFields: []PaymentField{
			{Type: "bank", Value: strptr("VCB")},
		},
	}, 1000)

	o, ok := s.Get("O1")
	if !ok {
		t.Fatal("detail-first entity not created")
	}
	if o.TradeType != "" || o.Asset != "" {
		t.Errorf("display fields must start empty: %+v", o)
	}
	if o.Remark != "please pay fast" || o.BankName != "VCB" || o.Stage != 2 {
		t.Errorf("detail fields not applied: %+v", o)
	}

	// A later summary fills identity fields without touching payment detail.
	s.UpsertSummaries([]OrderSummary{summary("O1", 3)}, 2000)
	o, _ = s.Get("O1")
	if o.TradeType != "BUY" || o.BuyerNick != "Alice" {
		t.Errorf("identity fields not filled by summary: %+v", o)
	}
	if o.BankName != "VCB" || o.Remark != "please pay fast" {
		t.Errorf("summary merge clobbered detail-owned fields: %+v", o)
	}
	if o.Stage != 3 {
		t.Errorf("status not overwritten by latest event: %d", o.Stage)
	}
}

func TestUpsertDetail_Idempotent(t *testing.T) {
	s := NewOrderStore()
	d := &OrderDetail{
		OrderNumber:       "O1",
		StatusCode:        2,
		Remark:            "r",
		ExpectedPayTimeMS: 42,
		PaymentFields:     []PaymentField{{Type: "payee", Value: strptr("A")}},
	}

	s.UpsertDetail(d, 1000)
	once, _ := s.Get("O1")

	s.UpsertDetail(d, 1000)
	twice, _ := s.Get("O1")

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("re-submitting the same detail changed the entity:\n%+v\n%+v", once, twice)
	}
}

func TestList_RoleDerivation(t *testing.T) {
	s := NewOrderStore()
	s.UpsertSummaries([]OrderSummary{summary("O1", 1)}, 1000)

	views := s.List()
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	if views[0].SideRole != domain.RoleUnknown {
		t.Errorf("nickname unset: role = %s, want UNKNOWN", views[0].SideRole)
	}

	s.SetMyNickname("Alice")
	if got := s.List()[0].SideRole; got != domain.RoleYouBuy {
		t.Errorf("buyer nickname: role = %s, want YOU_BUY", got)
	}

	s.SetMyNickname("Bob")
	if got := s.List()[0].SideRole; got != domain.RoleYouSell {
		t.Errorf("seller nickname: role = %s, want YOU_SELL", got)
	}

	s.SetMyNickname("Carol")
	if got := s.List()[0].SideRole; got != domain.RoleOther {
		t.Errorf("unrelated nickname: role = %s, want OTHER", got)
	}
}

func TestQuickUpdateStatus_UnknownOrderIgnored(t *testing.T) {
	s := NewOrderStore()
	s.QuickUpdateStatus("nope", 4, 1000)
	if s.Len() != 0 {
		t.Fatal("quick status must not create entities")
	}

	s.UpsertSummaries([]OrderSummary{summary("O1", 1)}, 1000)
	s.QuickUpdateStatus("O1", 4, 2000)
	o, _ := s.Get("O1")
	if o.Stage != 4 || o.LastUpdateTS != 2000 {
		t.Errorf("quick status not applied: %+v", o)
	}
}

func TestOnUpdate_ReceivesMergedCopies(t *testing.T) {
	s := NewOrderStore()
	var mu sync.Mutex
	var seen []string
	s.OnUpdate(func(o domain.Order) {
		mu.Lock()
		seen = append(seen, o.OrderNumber)
		mu.Unlock()
	})

	s.UpsertSummaries([]OrderSummary{summary("O1", 1), summary("O2", 1)}, 1000)
	s.UpsertDetail(&OrderDetail{OrderNumber: "O1", StatusCode: 2}, 2000)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("expected 3 callbacks, got %d (%v)", len(seen), seen)
	}
}

func TestStore_ConcurrentSessions(t *testing.T) {
	s := NewOrderStore()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n := fmt.Sprintf("O%d", i%20)
				if w%2 == 0 {
					s.UpsertSummaries([]OrderSummary{summary(n, int64(i%7))}, int64(i))
				} else {
					s.UpsertDetail(&OrderDetail{OrderNumber: n, StatusCode: int64(i%7)}, int64(i))
				}
				_ = s.List()
			}
		}(w)
	}
	wg.Wait()

	if s.Len() != 20 {
		t.Fatalf("expected 20 entities, got %d", s.Len())
	}
}
