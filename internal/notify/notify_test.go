package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"simstats-backend/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestNewWithoutSmtp(t *testing.T) {
	notifier := New(SmtpConfig{}, &telemetry.RecorderAPI{})
	require.IsType(t, Nop{}, notifier)
	require.NoError(t, notifier.NotifyFailure(context.Background(), Failure{Provider: "dcm"}))
}

func TestFailureBody(t *testing.T) {
	f := Failure{
		Provider: "dcm",
		Trigger:  "cron",
		Message:  "dcm: SecretSubmitted (section#mydcm_data_data): browser: navigation timeout",
		At:       time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC),
	}
	require.Equal(t, "[simstats] dcm update failed", f.subject())
	require.Contains(t, f.body(), "triggered by cron failed at 2024-03-01T00:05:00Z")
	require.Contains(t, f.body(), f.Message)
}

func TestEmailUnreachable(t *testing.T) {
	tel := &telemetry.RecorderAPI{}
	notifier := NewEmail(SmtpConfig{
		Server:       "127.0.0.1",
		Port:         1,
		EmailAddress: "simstats@example.com",
		To:           []string{"ops@example.com"},
	}, tel)

	err := notifier.NotifyFailure(context.Background(), Failure{Provider: "nuro", At: time.Now()})
	require.Error(t, err)
	require.Len(t, tel.Find("broken", report_notify_send), 1)
}

func TestEmailDelivery(t *testing.T) {
	if os.Getenv("SIMSTATS_CONTAINER_IT") == "" {
		t.Skip("SIMSTATS_CONTAINER_IT is not set")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	smtpContainer, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "haravich/fake-smtp-server",
				ExposedPorts: []string{"1025/tcp", "1080/tcp"},
				WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
			},
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		err := smtpContainer.Terminate(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	})

	host, err := smtpContainer.Host(ctx)
	require.NoError(t, err)
	smtpPort, err := smtpContainer.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)
	webPort, err := smtpContainer.MappedPort(ctx, "1080/tcp")
	require.NoError(t, err)

	notifier := NewEmail(SmtpConfig{
		Server:       host,
		Port:         smtpPort.Int(),
		EmailAddress: "simstats@example.com",
		Password:     "default",
		To:           []string{"ops@example.com"},
	}, &telemetry.RecorderAPI{})

	err = notifier.NotifyFailure(ctx, Failure{
		Provider: "zerosim",
		Trigger:  "http",
		Message:  "zerosim: AtEntryPage: browser: navigation timeout",
		At:       time.Now(),
	})
	require.NoError(t, err)

	res, err := resty.New().R().Get(fmt.Sprintf("http://%s:%s/messages/1.plain", host, webPort.Port()))
	require.NoError(t, err)
	require.Contains(t, res.String(), "zerosim: AtEntryPage")
}
