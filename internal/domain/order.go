package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Side roles derived at projection time by comparing the configured
// nickname against the order's counterparties.
const (
	RoleYouBuy  = "YOU_BUY"
	RoleYouSell = "YOU_SELL"
	RoleOther   = "OTHER"
	RoleUnknown = "UNKNOWN"
)

// Order is the reconciled view of one P2P trade, merged from partial
// list and detail captures. All monetary values are display-grade strings
// exactly as the source endpoints emit them.
type Order struct {
	OrderNumber  string
	TradeType    string
	Asset        string
	Fiat         string
	AmountAsset  string
	TotalFiat    string
	Price        string
	Stage        int64 // raw source status code, opaque here
	CreateTimeMS int64
	BuyerNick    string
	SellerNick   string

	// Payment detail, populated field-by-field whenever a capture carries it.
	// Empty string means "never seen", not "cleared".
	AccountName string
	AccountNo   string
	BankName    string
	SubBank     string
	QRCode      string

	// Detail-endpoint only.
	Remark            string
	ExpectedPayTimeMS int64

	LastUpdateTS int64
}

// OrderView is the projection served to the consumer surface.
// Optional payment fields are always plain strings, empty when unset.
type OrderView struct {
	OrderNumber  string `json:"order_number"`
	SideRole     string `json:"side_role"`
	TradeType    string `json:"trade_type"`
	Fiat         string `json:"fiat"`
	Asset        string `json:"asset"`
	AmountAsset  string `json:"amount_asset"`
	TotalFiat    string `json:"total_fiat"`
	Price        string `json:"price"`
	StageCode    int64  `json:"stage_code"`
	StageLabel   string `json:"stage_label"`
	AccountName  string `json:"account_name"`
	AccountNo    string `json:"account_no"`
	BankName     string `json:"bank_name"`
	SubBank      string `json:"sub_bank"`
	QRCode       string `json:"qr_code"`
	Remark       string `json:"remark"`
	LastUpdateTS int64  `json:"last_update_ts"`
}

// StageLabel maps the raw status code to a human label.
// Unknown codes fall through to "Code<n>"; the code set is owned by the
// source, not by us.
func StageLabel(code int64) string {
	switch code {
	case 1:
		return "Pending Payment"
	case 2:
		return "Buyer Paid"
	case 4, 6:
		return "Completed"
	case 5:
		return "Cancelled"
	default:
		return "Code" + strconv.FormatInt(code, 10)
	}
}

// SideRole derives the viewer's relation to the order. An exact nickname
// match wins; an unset nickname means we cannot tell at all.
func (o *Order) SideRole(myNickname string, nicknameSet bool) string {
	if !nicknameSet {
		return RoleUnknown
	}
	switch myNickname {
	case o.BuyerNick:
		return RoleYouBuy
	case o.SellerNick:
		return RoleYouSell
	default:
		return RoleOther
	}
}

// ImpliedPrice computes total/amount for orders whose source rows omitted
// the unit price. Returns "" when either operand is absent or not numeric.
func (o *Order) ImpliedPrice() string {
	if o.AmountAsset == "" || o.TotalFiat == "" {
		return ""
	}
	amount, err := decimal.NewFromString(o.AmountAsset)
	if err != nil || amount.IsZero() {
		return ""
	}
	total, err := decimal.NewFromString(o.TotalFiat)
	if err != nil {
		return ""
	}
	return total.DivRound(amount, 8).String()
}

// View projects the order for the consumer surface.
func (o *Order) View(myNickname string, nicknameSet bool) OrderView {
	price := o.Price
	if price == "" {
		price = o.ImpliedPrice()
	}
	return OrderView{
		OrderNumber:  o.OrderNumber,
		SideRole:     o.SideRole(myNickname, nicknameSet),
		TradeType:    o.TradeType,
		Fiat:         o.Fiat,
		Asset:        o.Asset,
		AmountAsset:  o.AmountAsset,
		TotalFiat:    o.TotalFiat,
		Price:        price,
		StageCode:    o.Stage,
		StageLabel:   StageLabel(o.Stage),
		AccountName:  o.AccountName,
		AccountNo:    o.AccountNo,
		BankName:     o.BankName,
		SubBank:      o.SubBank,
		QRCode:       o.QRCode,
		Remark:       o.Remark,
		LastUpdateTS: o.LastUpdateTS,
	}
}
