package kvstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"simstats-backend/internal/components/telemetry"
	libtelemetry "simstats-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

const (
	report_firebase_put = "firebase.put"
	report_firebase_get = "firebase.get"
)

type FirebaseConfig struct {
	// Url is the database root, ex. https://<project>.firebaseio.com
	Url string `json:"url"`
	// AuthToken is sent as the `auth` query parameter when set.
	AuthToken      string `json:"auth_token"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Firebase opens connections to a firebase realtime database through its REST api.
type Firebase struct {
	baseUrl   string
	authToken string
	timeout   time.Duration
	tel       telemetry.API
}

func NewFirebase(config FirebaseConfig, tel telemetry.API) (Firebase, error) {
	parsed, err := url.Parse(config.Url)
	if err != nil {
		return Firebase{}, fmt.Errorf("firebase: parse url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return Firebase{}, fmt.Errorf("firebase: url %q must be absolute", config.Url)
	}

	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return Firebase{
		baseUrl:   strings.TrimRight(config.Url, "/"),
		authToken: config.AuthToken,
		timeout:   timeout,
		tel:       telemetry.NewScopedAPI("kvstore", tel),
	}, nil
}

func (f Firebase) Open(ctx context.Context) (Store, error) {
	client := resty.New()
	client.SetBaseURL(f.baseUrl)
	client.SetTimeout(f.timeout)
	client.SetHeader("content-type", "application/json")
	if f.authToken != "" {
		client.SetQueryParam("auth", f.authToken)
	}
	telemetry.InstrumentResty(client, f.tel)
	libtelemetry.TraceResty(client, "simstats.lib.kvstore")

	return &firebaseStore{http: client, tel: f.tel}, nil
}

type firebaseStore struct {
	http *resty.Client
	tel  telemetry.API
}

func endpoint(path string) string {
	return "/" + strings.Trim(path, "/") + ".json"
}

func (s *firebaseStore) Put(ctx context.Context, path string, value int64) error {
	res, err := s.http.R().
		SetContext(ctx).
		SetBody([]byte(strconv.FormatInt(value, 10))).
		Put(endpoint(path))
	if err != nil {
		s.tel.ReportBroken(report_firebase_put, err, path)
		return err
	}
	if res.IsError() {
		err := fmt.Errorf("put %s: %s: %s", path, res.Status(), res.String())
		s.tel.ReportBroken(report_firebase_put, err)
		return err
	}
	return nil
}

func (s *firebaseStore) Get(ctx context.Context, path string) ([]byte, error) {
	res, err := s.http.R().
		SetContext(ctx).
		Get(endpoint(path))
	if err != nil {
		s.tel.ReportBroken(report_firebase_get, err, path)
		return nil, err
	}
	if res.IsError() {
		err := fmt.Errorf("get %s: %s: %s", path, res.Status(), res.String())
		s.tel.ReportBroken(report_firebase_get, err)
		return nil, err
	}
	return res.Body(), nil
}

// Close drops the pooled connections so that no authenticated client outlives
// the batch it was opened for.
func (s *firebaseStore) Close() error {
	s.http.GetClient().CloseIdleConnections()
	return nil
}
