package engine

// PaymentField is one entry of a payment method's field list. Value is nil
// when the source carried the field slot without a usable value; such
// fields must never overwrite previously merged state.
type PaymentField struct {
	Type  string
	Value *string
}

// OrderSummary is a partial order record extracted from a list-endpoint
// body. Scalar fields default independently; a malformed field never drops
// the record.
type OrderSummary struct {
	OrderNumber   string
	TradeType     string
	Asset         string
	Fiat          string
	AmountAsset   string
	TotalFiat     string
	Price         string
	StatusCode    int64
	CreateTimeMS  int64
	BuyerNick     string
	SellerNick    string
	PaymentFields []PaymentField
}

// ParseOrderList extracts summary records from a list-endpoint body.
// The expected shape is body.data.data -> array of summaries. A missing
// path, an empty array, or items without an orderNumber all yield fewer
// records, never an error.
func ParseOrderList(body any) []OrderSummary {
	arr, ok := asArray(dig(body, "data", "data"))
	if !ok {
		return nil
	}

	out := make([]OrderSummary, 0, len(arr))
	for _, it := range arr {
		item, ok := asObject(it)
		if !ok {
			continue
		}
		orderNumber := getString(item, "orderNumber")
		if orderNumber == "" {
			continue
		}

		out = append(out, OrderSummary{
			OrderNumber:   orderNumber,
			TradeType:     getString(item, "tradeType"),
			Asset:         getString(item, "asset"),
			Fiat:          getString(item, "fiat"),
			AmountAsset:   getString(item, "amount"),
			TotalFiat:     getString(item, "totalPrice"),
			Price:         getString(item, "price"),
			StatusCode:    getInt64(item, "orderStatus", -1),
			CreateTimeMS:  getInt64(item, "createTime", 0),
			BuyerNick:     getString(item, "buyerNickname"),
			SellerNick:    getString(item, "sellerNickname"),
			PaymentFields: parsePaymentFields(item),
		})
	}
	return out
}

// parsePaymentFields reads payMethods[0].fields[]. Only the first payment
// method entry counts; the frontend renders the same one.
func parsePaymentFields(item map[string]any) []PaymentField {
	methods, ok := asArray(item["payMethods"])
	if !ok || len(methods) == 0 {
		return nil
	}
	first, ok := asObject(methods[0])
	if !ok {
		return nil
	}
	rawFields, ok := asArray(first["fields"])
	if !ok {
		return nil
	}

	fields := make([]PaymentField, 0, len(rawFields))
	for _, rf := range rawFields {
		f, ok := asObject(rf)
		if !ok {
			continue
		}
		fields = append(fields, PaymentField{
			Type:  getString(f, "fieldContentType"),
			Value: getStringPtr(f, "fieldValue"),
		})
	}
	return fields
}
