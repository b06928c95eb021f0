package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestSetupWithoutExporters(t *testing.T) {
	tel, err := Setup(context.Background(), "simstats-test", Config{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestTraceResty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("1"))
	}))
	defer server.Close()

	client := resty.New().SetBaseURL(server.URL)
	TraceResty(client, "test")

	res, err := client.R().Get("/value.json")
	require.NoError(t, err)
	require.Equal(t, "1", res.String())

	res, err = client.R().Get("/missing.json")
	require.NoError(t, err)
	require.True(t, res.IsError())
}

func TestCountChromeProcesses(t *testing.T) {
	count, err := CountChromeProcesses(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, int64(0))
}
