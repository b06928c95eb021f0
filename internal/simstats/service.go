package simstats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"simstats-backend/internal/browser"
	"simstats-backend/internal/components/assert"
	"simstats-backend/internal/components/chrono"
	"simstats-backend/internal/components/telemetry"
	"simstats-backend/lib/kvstore"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("simstats.internal.simstats")

const (
	report_update_session = "update.session"
	report_update_result  = "update.result"
	report_update_panic   = "update.panic"
)

// Result is what a successful update reports back, the raw text is kept next
// to the stored values so that selector drift is visible to the caller.
type Result struct {
	MonthUsed     string  `json:"monthUsed"`
	YesterdayUsed string  `json:"yesterdayUsed"`
	TodayPath     string  `json:"todayPath"`
	YesterdayPath string  `json:"yesterdayPath"`
	TodayData     int64   `json:"todayData"`
	YesterdayData int64   `json:"yesterdayData"`
	TodayOkNg     Outcome `json:"todayOkNg"`
	YesterdayOkNg Outcome `json:"yesterdayOkNg"`
}

// Response marshals into either the fields of Result or {"error": ...}.
type Response struct {
	*Result
	Error string `json:"error,omitempty"`
}

func (r Response) Failed() bool {
	return r.Result == nil
}

type Options struct {
	Launcher browser.Launcher
	Store    kvstore.Opener
	// Providers can be scraped, empty means every known provider.
	Providers []ProviderConfig
	// Aggregated are read by Latest, empty means every known provider. Reading
	// needs no credentials so this is usually wider than Providers.
	Aggregated []ProviderConfig
	// Credentials are keyed by provider id.
	Credentials map[string]Credentials
	Time        chrono.TimeAPI
	// Timeout bounds every browser operation, zero means browser.DefaultTimeout.
	Timeout time.Duration
}

type Service struct {
	launcher    browser.Launcher
	writer      Writer
	aggregator  Aggregator
	providers   []ProviderConfig
	credentials map[string]Credentials
	time        chrono.TimeAPI
	timeout     time.Duration
	tel         telemetry.API
}

func NewService(opts Options, tel telemetry.API) (Service, error) {
	assert.NotNil(opts.Launcher, "launcher")
	assert.NotNil(opts.Store, "store")
	assert.NotNil(tel, "telemetry")

	if opts.Time == nil {
		opts.Time = chrono.StandardTime{}
	}
	if len(opts.Providers) == 0 {
		opts.Providers = Providers()
	}
	if len(opts.Aggregated) == 0 {
		opts.Aggregated = Providers()
	}
	for _, p := range opts.Providers {
		err := p.Validate()
		if err != nil {
			return Service{}, err
		}
	}

	tel = telemetry.NewScopedAPI("simstats", tel)
	return Service{
		launcher:    opts.Launcher,
		writer:      NewWriter(opts.Store, tel),
		aggregator:  NewAggregator(opts.Store, opts.Aggregated, opts.Time, tel),
		providers:   opts.Providers,
		credentials: opts.Credentials,
		time:        opts.Time,
		timeout:     opts.Timeout,
		tel:         tel,
	}, nil
}

func (s Service) Providers() []ProviderConfig {
	return s.providers
}

func (s Service) lookup(id string) (ProviderConfig, Credentials, error) {
	provider, ok := FindProvider(s.providers, id)
	if !ok {
		return ProviderConfig{}, Credentials{}, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	creds, ok := s.credentials[id]
	if !ok || creds.ID == "" || creds.Pass == "" {
		return ProviderConfig{}, Credentials{}, fmt.Errorf("%w: %s", ErrMissingCredentials, id)
	}
	return provider, creds, nil
}

// Scrape logs into the provider and reads its usage without writing anything.
// The browser is closed before Scrape returns.
func (s Service) Scrape(ctx context.Context, id string) (UsageSnapshot, error) {
	provider, creds, err := s.lookup(id)
	if err != nil {
		return UsageSnapshot{}, err
	}
	return s.scrape(ctx, provider, creds, s.tel)
}

func (s Service) scrape(ctx context.Context, provider ProviderConfig, creds Credentials, tel telemetry.API) (UsageSnapshot, error) {
	capturedAt := s.time.Now()

	session, err := s.launcher.Open(ctx, browser.Options{
		URLFilter: provider.URLFilter,
		Timeout:   s.timeout,
	})
	if err != nil {
		tel.ReportBroken(report_update_session, err, provider.ID)
		return UsageSnapshot{}, err
	}
	defer func() {
		err := session.Close()
		if err != nil {
			tel.ReportWarning(report_update_session, err, provider.ID)
		}
	}()

	err = Login(ctx, session, provider, creds, tel)
	if err != nil {
		return UsageSnapshot{}, err
	}
	return ExtractUsage(ctx, session, provider, capturedAt, tel)
}

func (s Service) update(ctx context.Context, id string, tel telemetry.API) (Result, error) {
	provider, creds, err := s.lookup(id)
	if err != nil {
		return Result{}, err
	}
	snapshot, err := s.scrape(ctx, provider, creds, tel)
	if err != nil {
		return Result{}, err
	}

	// the day figure shown by every portal is the total of the previous day
	todayPath := RecordDir(provider.Namespace, DateKey(snapshot.CapturedAt))
	yesterdayPath := RecordDir(provider.Namespace, YesterdayKey(snapshot.CapturedAt))
	outcomes := NewWriter(s.writer.store, tel).WriteBatch(ctx, []Write{
		{Path: todayPath + "/" + FieldMonthUsedCurrent, Value: snapshot.MonthUsedMb},
		{Path: yesterdayPath + "/" + FieldDayUsed, Value: snapshot.DayUsedMb},
	})

	return Result{
		MonthUsed:     snapshot.MonthUsedRaw,
		YesterdayUsed: snapshot.DayUsedRaw,
		TodayPath:     todayPath,
		YesterdayPath: yesterdayPath,
		TodayData:     snapshot.MonthUsedMb,
		YesterdayData: snapshot.DayUsedMb,
		TodayOkNg:     outcomes[0],
		YesterdayOkNg: outcomes[1],
	}, nil
}

// Update scrapes the provider and persists its figures. It never returns an
// error or panics, every failure is folded into Response.Error.
func (s Service) Update(ctx context.Context, id string) (res Response) {
	invocation := uuid.NewString()
	tel := telemetry.NewTaggedAPI(s.tel, "invocation", invocation)

	ctx, span := tracer.Start(ctx, "Update")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", id),
		attribute.String("invocation", invocation),
	)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("panic: %v", r)
		tel.ReportBroken(report_update_panic, err, id)
		span.SetStatus(codes.Error, err.Error())
		res = Response{Error: err.Error()}
	}()

	result, err := s.update(ctx, id, tel)
	if err != nil {
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			span.SetAttributes(attribute.String("state", string(stepErr.State)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tel.ReportBroken(report_update_result, err, id)
		return Response{Error: err.Error()}
	}

	tel.ReportDebug(
		"update finished", id,
		result.TodayData, result.TodayOkNg,
		result.YesterdayData, result.YesterdayOkNg,
	)
	return Response{Result: &result}
}

func (s Service) Latest(ctx context.Context) Latest {
	return s.aggregator.Latest(ctx)
}
