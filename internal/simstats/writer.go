package simstats

import (
	"context"
	"fmt"

	"simstats-backend/internal/components/telemetry"
	"simstats-backend/lib/kvstore"
)

const (
	report_store_open  = "store.open"
	report_store_write = "store.write"
	report_store_close = "store.close"
	report_store_skip  = "store.skip"
)

const (
	FieldMonthUsedCurrent = "month_used_current"
	FieldDayUsed          = "day_used"
)

type Outcome string

const (
	OK Outcome = "OK"
	NG Outcome = "NG"
)

// RecordDir is the parent of every field written for one provider on one day.
func RecordDir(namespace, dateKey string) string {
	return namespace + "/logs/" + dateKey
}

func RecordPath(namespace, dateKey, field string) string {
	return RecordDir(namespace, dateKey) + "/" + field
}

type Write struct {
	Path  string
	Value int64
}

// Writer persists usage figures, a store connection is held only for the
// duration of one batch.
type Writer struct {
	store kvstore.Opener
	tel   telemetry.API
}

func NewWriter(store kvstore.Opener, tel telemetry.API) Writer {
	return Writer{store: store, tel: tel}
}

// WriteBatch performs every write on one connection, the outcome of each write
// is independent of the others. Negative values are never written.
func (w Writer) WriteBatch(ctx context.Context, writes []Write) []Outcome {
	outcomes := make([]Outcome, len(writes))
	for i := range outcomes {
		outcomes[i] = NG
	}

	store, err := w.store.Open(ctx)
	if err != nil {
		w.tel.ReportBroken(report_store_open, fmt.Errorf("%w: %w", ErrStoreWrite, err))
		return outcomes
	}
	defer func() {
		err := store.Close()
		if err != nil {
			w.tel.ReportWarning(report_store_close, err)
		}
	}()

	for i, write := range writes {
		if write.Value < 0 {
			w.tel.ReportWarning(report_store_skip, write.Path, write.Value)
			continue
		}
		err := store.Put(ctx, write.Path, write.Value)
		if err != nil {
			w.tel.ReportBroken(report_store_write, fmt.Errorf("%w: %s: %w", ErrStoreWrite, write.Path, err))
			continue
		}
		outcomes[i] = OK
	}
	return outcomes
}

// Write stores a single field of a provider's day record.
func (w Writer) Write(ctx context.Context, namespace, dateKey, field string, value int64) Outcome {
	return w.WriteBatch(ctx, []Write{{
		Path:  RecordPath(namespace, dateKey, field),
		Value: value,
	}})[0]
}
