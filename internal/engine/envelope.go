package engine

import (
	"bytes"
	"encoding/json"
	"strings"
)

// KindNetCapture tags the envelopes this core consumes. The capture
// socket also carries other traffic kinds; those pass through silently.
const KindNetCapture = "NET_CAPTURE"

// Route signatures, matched by substring in priority order.
const (
	routeListSig        = "order/list"
	routeDetailSig      = "getOrderDetail"
	routeQuickStatusSig = "orderStatus"
)

// RouteKind classifies a captured route.
type RouteKind int

const (
	RouteOther RouteKind = iota
	RouteList
	RouteDetail
	RouteQuickStatus
)

func (k RouteKind) String() string {
	switch k {
	case RouteList:
		return "LIST"
	case RouteDetail:
		return "DETAIL"
	case RouteQuickStatus:
		return "QUICK_STATUS"
	default:
		return "OTHER"
	}
}

// ClassifyRoute matches the route against the known endpoint signatures,
// list first.
func ClassifyRoute(route string) RouteKind {
	switch {
	case strings.Contains(route, routeListSig):
		return RouteList
	case strings.Contains(route, routeDetailSig):
		return RouteDetail
	case strings.Contains(route, routeQuickStatusSig):
		return RouteQuickStatus
	default:
		return RouteOther
	}
}

// Envelope is the outer JSON wrapper on every capture socket message.
type Envelope struct {
	Kind    string
	Payload map[string]any
}

// CaptureEvent is one decoded capture with its fingerprint inputs
// already resolved.
type CaptureEvent struct {
	Route   string
	Status  int64
	TS      int64
	Body    any
	BodyLen int
}

// DecodeEnvelope parses a raw text frame. Numbers are kept as json.Number
// so millisecond timestamps survive untouched.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc struct {
		Kind    string `json:"kind"`
		Payload any    `json:"payload"`
	}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	payload, _ := asObject(doc.Payload)
	return &Envelope{Kind: doc.Kind, Payload: payload}, nil
}

// CaptureEvent extracts the capture from the envelope, or nil when the
// envelope is not a capture (wrong kind, or no payload object). The
// effective body is the payload's "data" field when present, else the
// whole payload; its serialized length feeds the fingerprint.
func (e *Envelope) CaptureEvent() *CaptureEvent {
	if e.Kind != KindNetCapture || e.Payload == nil {
		return nil
	}

	body := any(e.Payload)
	if d, ok := e.Payload["data"]; ok && d != nil {
		body = d
	}

	bodyLen := 0
	if raw, err := json.Marshal(body); err == nil {
		bodyLen = len(raw)
	}

	return &CaptureEvent{
		Route:   getString(e.Payload, "url"),
		Status:  getInt64(e.Payload, "status", 0),
		TS:      getInt64(e.Payload, "ts", 0),
		Body:    body,
		BodyLen: bodyLen,
	}
}

// Fingerprint computes the dedup digest for this capture.
func (c *CaptureEvent) Fingerprint() string {
	return Fingerprint(c.Route, c.Status, c.BodyLen)
}

// ExtractQuickStatus pulls the bare status code off a quick-status body.
// The order identifier is not reliably present on that endpoint, so this
// is observational only.
func ExtractQuickStatus(body any) (int64, bool) {
	if data, ok := asObject(dig(body, "data", "data")); ok {
		if _, present := data["orderStatus"]; present {
			return getInt64(data, "orderStatus", -1), true
		}
	}
	if m, ok := asObject(body); ok {
		if _, present := m["orderStatus"]; present {
			return getInt64(m, "orderStatus", -1), true
		}
	}
	return 0, false
}
