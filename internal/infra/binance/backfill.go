package binance

import (
	"context"
	"log/slog"
	"time"

	"p2p_go/internal/infra"
)

const backfillPageRows = 100

// OrderSink receives raw historical order documents. Implemented by the
// sqlite mirror.
type OrderSink interface {
	UpsertRaw(order map[string]any, syncTS int64) error
}

// Backfill pages through historical C2C orders and mirrors them into the
// sink. Runs once; callers decide when (bootstrap or an explicit sync
// request from the bridge).
type Backfill struct {
	client *Client
	sink   OrderSink
}

// NewBackfill creates a backfill job.
func NewBackfill(client *Client, sink OrderSink) *Backfill {
	return &Backfill{client: client, sink: sink}
}

// Run syncs the last `days` of BUY then SELL history. A page is retried
// with backoff a few times before the whole run fails; sink errors only
// skip the one document.
func (b *Backfill) Run(ctx context.Context, days int) error {
	now := time.Now().UnixMilli()
	start := time.Now().AddDate(0, 0, -days).UnixMilli()

	for _, tradeType := range []string{"BUY", "SELL"} {
		slog.Info("🔄 Backfill started", slog.String("trade_type", tradeType), slog.Int("days", days))

		for page := 1; ; page++ {
			doc, err := b.fetchPage(ctx, tradeType, start, now, page)
			if err != nil {
				return err
			}

			orders := ordersFromPage(doc)
			for _, o := range orders {
				if err := b.sink.UpsertRaw(o, now); err != nil {
					slog.Warn("Backfill upsert failed", slog.Any("error", err))
				}
			}
			slog.Info("Backfill page done",
				slog.String("trade_type", tradeType),
				slog.Int("page", page),
				slog.Int("orders", len(orders)))

			if len(orders) < backfillPageRows {
				break
			}
		}
	}
	return nil
}

func (b *Backfill) fetchPage(ctx context.Context, tradeType string, start, end int64, page int) (map[string]any, error) {
	var lastErr error
	for retry := 0; retry < 3; retry++ {
		doc, err := b.client.ListUserOrderHistory(ctx, tradeType, start, end, page, backfillPageRows)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(infra.CalculateBackoff(retry)):
		}
	}
	return nil, lastErr
}

// ordersFromPage digs data.data out of the page document. Shape drift
// yields an empty page, not an error.
func ordersFromPage(doc map[string]any) []map[string]any {
	data, ok := doc["data"].(map[string]any)
	if !ok {
		return nil
	}
	arr, ok := data["data"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if o, ok := it.(map[string]any); ok {
			out = append(out, o)
		}
	}
	return out
}
