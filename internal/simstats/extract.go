package simstats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"simstats-backend/internal/browser"
	"simstats-backend/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

const (
	report_extract_detail   = "extract.detail"
	report_extract_document = "extract.document"
	report_extract_metric   = "extract.metric"
	report_extract_parse    = "extract.parse"
)

// UsageSnapshot is the result of one scrape, -1 marks a figure that could not
// be read.
type UsageSnapshot struct {
	Provider     string
	MonthUsedRaw string
	MonthUsedMb  int64
	DayUsedRaw   string
	DayUsedMb    int64
	CapturedAt   time.Time
	// Warnings holds the per metric failures that did not abort the scrape.
	Warnings []error
}

// Extract returns the text content of the first element matching selector
// exactly as rendered.
func Extract(doc *goquery.Document, selector string) (string, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrSelectorNotFound, selector)
	}
	return sel.Text(), nil
}

func runDetails(ctx context.Context, page browser.Page, provider ProviderConfig) error {
	for _, step := range provider.Details {
		var err error
		target := step.URL
		if step.Click != "" {
			target = step.Click
			err = page.ClickAndWait(ctx, step.Click)
		} else {
			err = page.Navigate(ctx, step.URL)
		}
		if err != nil {
			return &StepError{Provider: provider.ID, State: StateExtracting, Selector: target, Err: err}
		}

		err = page.WaitReady(ctx, step.Ready)
		if err != nil {
			return &StepError{Provider: provider.ID, State: StateExtracting, Selector: step.Ready, Err: err}
		}
	}
	return nil
}

func extractMetric(doc *goquery.Document, metric Metric, tel telemetry.API) (raw string, mb int64, err error) {
	raw, err = Extract(doc, metric.Selector)
	if err != nil {
		tel.ReportWarning(report_extract_metric, err)
		return "", -1, err
	}
	mb, err = ParseMb(raw, metric.Unit)
	if err != nil {
		tel.ReportWarning(report_extract_parse, err)
		return raw, -1, err
	}
	return raw, mb, nil
}

// ExtractUsage walks the provider's detail pages then reads both metrics from
// the rendered document. The month and day figures fail independently.
func ExtractUsage(ctx context.Context, page browser.Page, provider ProviderConfig, capturedAt time.Time, tel telemetry.API) (UsageSnapshot, error) {
	ctx, span := tracer.Start(ctx, "ExtractUsage")
	defer span.End()
	span.SetAttributes(attribute.String("provider", provider.ID))

	err := runDetails(ctx, page, provider)
	if err != nil {
		tel.ReportBroken(report_extract_detail, err)
		span.RecordError(err)
		return UsageSnapshot{}, err
	}

	html, err := page.HTML(ctx)
	if err != nil {
		err = &StepError{Provider: provider.ID, State: StateExtracting, Err: err}
		tel.ReportBroken(report_extract_document, err)
		span.RecordError(err)
		return UsageSnapshot{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		err = &StepError{Provider: provider.ID, State: StateExtracting, Err: err}
		tel.ReportBroken(report_extract_document, err)
		span.RecordError(err)
		return UsageSnapshot{}, err
	}

	snapshot := UsageSnapshot{
		Provider:   provider.ID,
		CapturedAt: capturedAt,
	}
	snapshot.MonthUsedRaw, snapshot.MonthUsedMb, err = extractMetric(doc, provider.Month, tel)
	if err != nil {
		snapshot.Warnings = append(snapshot.Warnings, fmt.Errorf("month: %w", err))
	}
	snapshot.DayUsedRaw, snapshot.DayUsedMb, err = extractMetric(doc, provider.Day, tel)
	if err != nil {
		snapshot.Warnings = append(snapshot.Warnings, fmt.Errorf("day: %w", err))
	}

	span.SetAttributes(
		attribute.Int64("month_used_mb", snapshot.MonthUsedMb),
		attribute.Int64("day_used_mb", snapshot.DayUsedMb),
	)
	return snapshot, nil
}
