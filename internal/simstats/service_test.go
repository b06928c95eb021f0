package simstats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"simstats-backend/internal/browser"
	"simstats-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

var testCredentials = map[string]Credentials{
	ProviderDcm:     {ID: "dcm-user", Pass: "dcm-pass"},
	ProviderNuro:    {ID: "nuro-user", Pass: "nuro-pass"},
	ProviderZeroSim: {ID: "zero-user", Pass: "zero-pass"},
}

func newTestService(t testing.TB, launcher browser.Launcher, store *memoryStore) (Service, *telemetry.RecorderAPI) {
	tel := &telemetry.RecorderAPI{}
	service, err := NewService(Options{
		Launcher:    launcher,
		Store:       store,
		Credentials: testCredentials,
		Time:        march1,
	}, tel)
	require.NoError(t, err)
	return service, tel
}

func TestUpdateSuccess(t *testing.T) {
	launcher := &fakeLauncher{site: nuroSite(nuroLanding("12,345 MB", "678MB"))}
	store := newMemoryStore()
	service, _ := newTestService(t, launcher, store)

	res := service.Update(context.Background(), ProviderNuro)
	require.False(t, res.Failed(), res.Error)
	require.Equal(t, Result{
		MonthUsed:     "12,345 MB",
		YesterdayUsed: "678MB",
		TodayPath:     "nuro-sim-usage/logs/y2024/m3/d1",
		YesterdayPath: "nuro-sim-usage/logs/y2024/m2/d29",
		TodayData:     12345,
		YesterdayData: 678,
		TodayOkNg:     OK,
		YesterdayOkNg: OK,
	}, *res.Result)

	require.Equal(t, map[string]string{
		"nuro-sim-usage/logs/y2024/m3/d1/month_used_current": "12345",
		"nuro-sim-usage/logs/y2024/m2/d29/day_used":          "678",
	}, store.values)

	// one browser and one store connection, both released
	require.Len(t, launcher.opened, 1)
	require.Equal(t, "nuro", launcher.opened[0].URLFilter)
	require.Equal(t, 1, launcher.session.closed)
	require.Equal(t, 1, store.opened)
	require.Equal(t, 1, store.closed)

	encoded, err := json.Marshal(res)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"monthUsed": "12,345 MB",
		"yesterdayUsed": "678MB",
		"todayPath": "nuro-sim-usage/logs/y2024/m3/d1",
		"yesterdayPath": "nuro-sim-usage/logs/y2024/m2/d29",
		"todayData": 12345,
		"yesterdayData": 678,
		"todayOkNg": "OK",
		"yesterdayOkNg": "OK"
	}`, string(encoded))
}

func TestUpdateDcm(t *testing.T) {
	launcher := &fakeLauncher{site: dcmSite(dcmLanding)}
	store := newMemoryStore()
	service, _ := newTestService(t, launcher, store)

	res := service.Update(context.Background(), ProviderDcm)
	require.False(t, res.Failed(), res.Error)
	require.Equal(t, int64(3250), res.TodayData)
	require.Equal(t, int64(410), res.YesterdayData)
	require.Equal(t, "dcm-user", launcher.session.typed[`input[id="Di_Uid"]`])
	require.Equal(t, "docomo", launcher.opened[0].URLFilter)
}

func TestUpdateMissingElement(t *testing.T) {
	launcher := &fakeLauncher{site: nuroSite(nuroLanding("12,345 MB", ""))}
	store := newMemoryStore()
	service, _ := newTestService(t, launcher, store)

	res := service.Update(context.Background(), ProviderNuro)
	require.False(t, res.Failed(), res.Error)
	require.Equal(t, "12,345 MB", res.MonthUsed)
	require.Equal(t, "", res.YesterdayUsed)
	require.Equal(t, int64(12345), res.TodayData)
	require.Equal(t, int64(-1), res.YesterdayData)
	require.Equal(t, OK, res.TodayOkNg)
	require.Equal(t, NG, res.YesterdayOkNg)

	require.Equal(t, map[string]string{
		"nuro-sim-usage/logs/y2024/m3/d1/month_used_current": "12345",
	}, store.values)
}

func TestUpdateStoreFailureIsPartial(t *testing.T) {
	launcher := &fakeLauncher{site: nuroSite(nuroLanding("100MB", "7MB"))}
	store := newMemoryStore()
	store.failPut["nuro-sim-usage/logs/y2024/m3/d1/month_used_current"] = true
	service, _ := newTestService(t, launcher, store)

	res := service.Update(context.Background(), ProviderNuro)
	require.False(t, res.Failed(), res.Error)
	require.Equal(t, NG, res.TodayOkNg)
	require.Equal(t, OK, res.YesterdayOkNg)
}

func TestUpdateFailures(t *testing.T) {
	t.Run("launch failure", func(t *testing.T) {
		launcher := &fakeLauncher{err: browser.ErrLaunchFailure}
		store := newMemoryStore()
		service, tel := newTestService(t, launcher, store)

		res := service.Update(context.Background(), ProviderNuro)
		require.True(t, res.Failed())
		require.Contains(t, res.Error, "launch failure")
		require.Equal(t, 0, store.opened)
		require.NotEmpty(t, tel.Find("broken", report_update_result))
	})

	t.Run("login failure closes the browser", func(t *testing.T) {
		site := nuroSite(`<html><body>maintenance</body></html>`)
		launcher := &fakeLauncher{site: site}
		store := newMemoryStore()
		service, _ := newTestService(t, launcher, store)

		res := service.Update(context.Background(), ProviderNuro)
		require.True(t, res.Failed())
		require.Contains(t, res.Error, string(StateSecretSubmitted))
		require.Equal(t, 1, launcher.session.closed)
		require.Equal(t, 0, store.opened)

		encoded, err := json.Marshal(res)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(encoded, &decoded))
		require.Len(t, decoded, 1)
		require.Contains(t, decoded, "error")
	})

	t.Run("unknown provider", func(t *testing.T) {
		service, _ := newTestService(t, &fakeLauncher{}, newMemoryStore())
		res := service.Update(context.Background(), "rakuten")
		require.True(t, res.Failed())
		require.Contains(t, res.Error, ErrUnknownProvider.Error())
	})

	t.Run("panic is recovered", func(t *testing.T) {
		service, tel := newTestService(t, &fakeLauncher{panics: true}, newMemoryStore())
		res := service.Update(context.Background(), ProviderDcm)
		require.True(t, res.Failed())
		require.Contains(t, res.Error, "chrome exploded")
		require.Len(t, tel.Find("broken", report_update_panic), 1)
	})
}

func TestScrapeRequiresCredentials(t *testing.T) {
	tel := &telemetry.RecorderAPI{}
	service, err := NewService(Options{
		Launcher: &fakeLauncher{},
		Store:    newMemoryStore(),
	}, tel)
	require.NoError(t, err)

	_, err = service.Scrape(context.Background(), ProviderNuro)
	require.True(t, errors.Is(err, ErrMissingCredentials))
}

func TestProvidersAreValid(t *testing.T) {
	for _, p := range Providers() {
		require.NoError(t, p.Validate(), p.ID)
	}

	invalid := Nuro
	invalid.LoginButton = "button#login"
	invalid.LoginLink = &LoginLink{Prefix: "https://"}
	require.Error(t, invalid.Validate())
}
