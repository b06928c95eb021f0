package main

import (
	"fmt"
	"time"

	"simstats-backend/internal/browser"
	"simstats-backend/internal/components/telemetry"
	"simstats-backend/internal/notify"
	"simstats-backend/internal/server"
	"simstats-backend/internal/simstats"
	"simstats-backend/lib/kvstore"
)

type BrowserConfig struct {
	// ExecPath is the chrome binary, empty lets chromedp find one.
	ExecPath string `json:"exec_path"`
	// RemoteUrl attaches to an already running chrome instead of launching
	// one, ex. ws://127.0.0.1:9222
	RemoteUrl      string `json:"remote_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

const (
	backendFirebase = "firebase"
	backendSql      = "sql"
)

type StoreConfig struct {
	// Backend picks firebase or sql, it may only be left out when exactly one
	// of them is configured.
	Backend  string                 `json:"backend"`
	Firebase kvstore.FirebaseConfig `json:"firebase"`
	Sql      kvstore.SQLConfig      `json:"sql"`
}

func (c StoreConfig) backend() (string, error) {
	hasFirebase := c.Firebase.Url != ""
	hasSql := c.Sql.File != "" || c.Sql.Url != ""

	switch c.Backend {
	case backendFirebase:
		if !hasFirebase {
			return "", fmt.Errorf("store: backend is firebase but firebase.url is empty")
		}
		return backendFirebase, nil
	case backendSql:
		if !hasSql {
			return "", fmt.Errorf("store: backend is sql but neither sql.file nor sql.url is set")
		}
		return backendSql, nil
	case "":
	default:
		return "", fmt.Errorf("store: unknown backend %q", c.Backend)
	}

	switch {
	case hasFirebase && hasSql:
		return "", fmt.Errorf("store: both firebase and sql are configured, set store.backend to pick one")
	case hasFirebase:
		return backendFirebase, nil
	case hasSql:
		return backendSql, nil
	}
	return "", fmt.Errorf("store: one of firebase.url, sql.file or sql.url is required")
}

type ProviderConfig struct {
	ID   string `json:"id"`
	Pass string `json:"pass"`
	Cron string `json:"cron"`
}

type HttpConfig struct {
	Port                  int `json:"port"`
	UpdateIntervalSeconds int `json:"update_interval_seconds"`
	LatestTtlSeconds      int `json:"latest_ttl_seconds"`
}

type Config struct {
	Store   StoreConfig   `json:"store"`
	Browser BrowserConfig `json:"browser"`
	// Providers is keyed by provider id (dcm, nuro, zerosim).
	Providers map[string]ProviderConfig `json:"providers"`
	Http      HttpConfig                `json:"http"`
	Smtp      notify.SmtpConfig         `json:"smtp"`
}

func (c *Config) SetDefaults() {
	if c.Browser.TimeoutSeconds <= 0 {
		c.Browser.TimeoutSeconds = int(browser.DefaultTimeout / time.Second)
	}
	if c.Http.Port == 0 {
		c.Http.Port = 8080
	}
	if c.Store.Firebase.TimeoutSeconds <= 0 {
		c.Store.Firebase.TimeoutSeconds = 60
	}
	for id, p := range c.Providers {
		if p.Cron == "" {
			p.Cron = server.DefaultCron
			c.Providers[id] = p
		}
	}
}

func (c *Config) Validate() error {
	_, err := c.Store.backend()
	if err != nil {
		return err
	}
	for id := range c.Providers {
		_, ok := simstats.FindProvider(simstats.Providers(), id)
		if !ok {
			return fmt.Errorf("providers: %w: %q", simstats.ErrUnknownProvider, id)
		}
	}
	return nil
}

func (c Config) credentials() map[string]simstats.Credentials {
	out := map[string]simstats.Credentials{}
	for id, p := range c.Providers {
		out[id] = simstats.Credentials{ID: p.ID, Pass: p.Pass}
	}
	return out
}

func (c Config) cronSpecs() map[string]string {
	out := map[string]string{}
	for id, p := range c.Providers {
		out[id] = p.Cron
	}
	return out
}

func (c Config) openStore(tel telemetry.API) (kvstore.Opener, error) {
	backend, err := c.Store.backend()
	if err != nil {
		return nil, err
	}
	if backend == backendFirebase {
		return kvstore.NewFirebase(c.Store.Firebase, tel)
	}
	return kvstore.NewSQL(c.Store.Sql, tel)
}

func (c Config) launcher(tel telemetry.API) browser.Launcher {
	if c.Browser.RemoteUrl != "" {
		return browser.NewRemoteLauncher(c.Browser.RemoteUrl, tel)
	}
	return browser.NewChromeLauncher(c.Browser.ExecPath, tel)
}

// newService wires the scraping pipeline, only configured providers are
// scraped while latest stats always cover every known provider.
func (c Config) newService(tel telemetry.API) (simstats.Service, error) {
	store, err := c.openStore(tel)
	if err != nil {
		return simstats.Service{}, err
	}

	var providers []simstats.ProviderConfig
	for _, p := range simstats.Providers() {
		if _, ok := c.Providers[p.ID]; ok {
			providers = append(providers, p)
		}
	}
	if len(providers) == 0 {
		return simstats.Service{}, fmt.Errorf("no providers are configured")
	}

	return simstats.NewService(simstats.Options{
		Launcher:    c.launcher(tel),
		Store:       store,
		Providers:   providers,
		Aggregated:  simstats.Providers(),
		Credentials: c.credentials(),
		Timeout:     time.Duration(c.Browser.TimeoutSeconds) * time.Second,
	}, tel)
}
