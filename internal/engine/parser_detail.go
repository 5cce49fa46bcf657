package engine

// OrderDetail is a single-order record extracted from a detail-endpoint
// body. Remark and expected pay time only ever arrive on this shape.
type OrderDetail struct {
	OrderNumber       string
	StatusCode        int64
	PaymentFields     []PaymentField
	Remark            string
	ExpectedPayTimeMS int64
}

// ParseOrderDetail extracts the record at body.data.data. It returns nil
// when the order number is absent; that is the extraction-failure signal,
// not an error. Every other field defaults independently.
func ParseOrderDetail(body any) *OrderDetail {
	data, ok := asObject(dig(body, "data", "data"))
	if !ok {
		return nil
	}
	orderNumber := getString(data, "orderNumber")
	if orderNumber == "" {
		return nil
	}

	return &OrderDetail{
		OrderNumber:       orderNumber,
		StatusCode:        getInt64(data, "orderStatus", -1),
		PaymentFields:     parsePaymentFields(data),
		Remark:            getString(data, "remark"),
		ExpectedPayTimeMS: getInt64(data, "expectedPayTime", 0),
	}
}
