package simstats

import (
	"context"
	"fmt"
	"math"

	"simstats-backend/internal/components/chrono"
	"simstats-backend/internal/components/telemetry"
	"simstats-backend/lib/kvstore"

	"github.com/tidwall/gjson"
)

const (
	report_latest_open = "latest.open"
	report_latest_read = "latest.read"
)

// Latest maps each provider's aggregate key to its most recent month total in
// MB, -1 when neither today nor yesterday has a record.
type Latest map[string]int64

type Aggregator struct {
	store     kvstore.Opener
	providers []ProviderConfig
	time      chrono.TimeAPI
	tel       telemetry.API
}

func NewAggregator(store kvstore.Opener, providers []ProviderConfig, time chrono.TimeAPI, tel telemetry.API) Aggregator {
	return Aggregator{
		store:     store,
		providers: providers,
		time:      time,
		tel:       tel,
	}
}

// parseRecord accepts only a non-negative integral json number.
func parseRecord(raw []byte) (int64, bool) {
	if kvstore.IsNull(raw) || !gjson.ValidBytes(raw) {
		return -1, false
	}
	res := gjson.ParseBytes(raw)
	if res.Type != gjson.Number {
		return -1, false
	}
	value := res.Float()
	if value < 0 || value != math.Trunc(value) || value >= math.MaxInt64 {
		return -1, false
	}
	return int64(value), true
}

func (a Aggregator) read(ctx context.Context, store kvstore.Store, path string) (int64, bool) {
	raw, err := store.Get(ctx, path)
	if err != nil {
		a.tel.ReportWarning(report_latest_read, fmt.Errorf("%w: %s: %w", ErrStoreRead, path, err))
		return -1, false
	}
	return parseRecord(raw)
}

// Latest never scrapes, it only reads what the writer has stored.
func (a Aggregator) Latest(ctx context.Context) Latest {
	ctx, span := tracer.Start(ctx, "Latest")
	defer span.End()

	out := Latest{}
	for _, p := range a.providers {
		out[p.AggregateKey] = -1
	}

	store, err := a.store.Open(ctx)
	if err != nil {
		a.tel.ReportBroken(report_latest_open, fmt.Errorf("%w: %w", ErrStoreRead, err))
		return out
	}
	defer store.Close()

	now := a.time.Now()
	today := DateKey(now)
	yesterday := YesterdayKey(now)
	for _, p := range a.providers {
		value, ok := a.read(ctx, store, RecordPath(p.Namespace, today, FieldMonthUsedCurrent))
		if !ok {
			value, ok = a.read(ctx, store, RecordPath(p.Namespace, yesterday, FieldMonthUsedCurrent))
		}
		if ok {
			out[p.AggregateKey] = value
		}
	}
	return out
}
