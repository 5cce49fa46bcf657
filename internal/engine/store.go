package engine

import (
	"sync"

	"p2p_go/internal/domain"
)

// OrderStore is the concurrent reconciliation map from order number to
// merged entity. It is the single serialization point between capture
// sessions: writers are mutually exclusive, List snapshots under the read
// lock, and entities are never deleted.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order

	nickMu      sync.RWMutex
	myNickname  string
	nicknameSet bool

	// onUpdate, when set, receives a copy of each entity after a merge.
	// Boundary for fire-and-forget persistence; never called under mu.
	onUpdate func(domain.Order)
}

// NewOrderStore creates an empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*domain.Order)}
}

// OnUpdate registers the post-merge callback. Set once during bootstrap,
// before any session runs.
func (s *OrderStore) OnUpdate(fn func(domain.Order)) {
	s.onUpdate = fn
}

// SetMyNickname replaces the process-wide nickname. Takes effect on the
// next List call; stored entities are untouched.
func (s *OrderStore) SetMyNickname(nick string) {
	s.nickMu.Lock()
	s.myNickname = nick
	s.nicknameSet = true
	s.nickMu.Unlock()
}

// UpsertSummaries folds a batch of list-endpoint records into the store.
// Status, amount, total, price and the timestamp are overwritten
// unconditionally; payment fields are additive.
func (s *OrderStore) UpsertSummaries(records []OrderSummary, ts int64) {
	if len(records) == 0 {
		return
	}
	merged := make([]domain.Order, 0, len(records))

	s.mu.Lock()
	for _, r := range records {
		o, ok := s.orders[r.OrderNumber]
		if !ok {
			o = &domain.Order{
				OrderNumber:  r.OrderNumber,
				TradeType:    r.TradeType,
				Asset:        r.Asset,
				Fiat:         r.Fiat,
				CreateTimeMS: r.CreateTimeMS,
				BuyerNick:    r.BuyerNick,
				SellerNick:   r.SellerNick,
			}
			s.orders[r.OrderNumber] = o
		}

		o.Stage = r.StatusCode
		o.AmountAsset = r.AmountAsset
		o.TotalFiat = r.TotalFiat
		o.Price = r.Price
		o.LastUpdateTS = ts

		// Identity fields overwrite only with non-empty values, so an
		// entity created by a detail-first sighting gets filled in here
		// and nothing ever regresses to empty.
		if r.TradeType != "" {
			o.TradeType = r.TradeType
		}
		if r.Asset != "" {
			o.Asset = r.Asset
		}
		if r.Fiat != "" {
			o.Fiat = r.Fiat
		}
		if r.BuyerNick != "" {
			o.BuyerNick = r.BuyerNick
		}
		if r.SellerNick != "" {
			o.SellerNick = r.SellerNick
		}
		if r.CreateTimeMS != 0 {
			o.CreateTimeMS = r.CreateTimeMS
		}
		applyPaymentFields(o, r.PaymentFields)

		merged = append(merged, *o)
	}
	s.mu.Unlock()

	s.notify(merged)
}

// UpsertDetail folds a detail-endpoint record into the store, creating the
// entity with empty display fields on first sighting. Remark and expected
// pay time are detail-owned and overwritten on every call.
func (s *OrderStore) UpsertDetail(d *OrderDetail, ts int64) {
	if d == nil {
		return
	}

	s.mu.Lock()
	o, ok := s.orders[d.OrderNumber]
	if !ok {
		o = &domain.Order{OrderNumber: d.OrderNumber}
		s.orders[d.OrderNumber] = o
	}

	o.Stage = d.StatusCode
	o.Remark = d.Remark
	o.ExpectedPayTimeMS = d.ExpectedPayTimeMS
	o.LastUpdateTS = ts
	applyPaymentFields(o, d.PaymentFields)

	merged := *o
	s.mu.Unlock()

	s.notify([]domain.Order{merged})
}

// QuickUpdateStatus bumps the status of an already-known order. Unknown
// order numbers are ignored; the quick-status endpoint does not carry
// enough to create an entity.
func (s *OrderStore) QuickUpdateStatus(orderNumber string, code int64, ts int64) {
	s.mu.Lock()
	o, ok := s.orders[orderNumber]
	if ok {
		o.Stage = code
		o.LastUpdateTS = ts
	}
	var merged domain.Order
	if ok {
		merged = *o
	}
	s.mu.Unlock()

	if ok {
		s.notify([]domain.Order{merged})
	}
}

// List returns one projected view per entity. Views are built from copies
// taken under the read lock, so a concurrent merge can never surface a
// half-updated entity. Iteration order is map order and not stable.
func (s *OrderStore) List() []domain.OrderView {
	s.nickMu.RLock()
	nick, set := s.myNickname, s.nicknameSet
	s.nickMu.RUnlock()

	s.mu.RLock()
	views := make([]domain.OrderView, 0, len(s.orders))
	for _, o := range s.orders {
		views = append(views, o.View(nick, set))
	}
	s.mu.RUnlock()
	return views
}

// Get returns a copy of one entity, if known.
func (s *OrderStore) Get(orderNumber string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderNumber]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Len reports the number of tracked orders.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *OrderStore) notify(orders []domain.Order) {
	if s.onUpdate == nil {
		return
	}
	for _, o := range orders {
		s.onUpdate(o)
	}
}

// applyPaymentFields merges recognized payment fields additively: set only
// when the capture supplied a value, never cleared by its absence.
// Unrecognized field types are ignored.
func applyPaymentFields(o *domain.Order, fields []PaymentField) {
	for _, f := range fields {
		if f.Value == nil {
			continue
		}
		switch f.Type {
		case "payee":
			o.AccountName = *f.Value
		case "pay_account":
			o.AccountNo = *f.Value
		case "bank":
			o.BankName = *f.Value
		case "sub_bank":
			o.SubBank = *f.Value
		case "qr_code":
			o.QRCode = *f.Value
		}
	}
}
