package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"simstats-backend/internal/components/telemetry"
	"simstats-backend/lib/kvstore"
)

const stateDir = "dev/.state"

var localConfig = `// generated by go run ./dev, fill in the provider credentials
{
  // backend overrides a firebase url set in config.json5
  store: {backend: "sql", sql: {file: %q}},
  browser: {
    // remote_url: "ws://127.0.0.1:9222",
  },
  providers: {
    // dcm: {id: "", pass: ""},
    // nuro: {id: "", pass: ""},
    // zerosim: {id: "", pass: ""},
  },
}
`

// createStore creates the sqlite store the local config points to.
func createStore(ctx context.Context, path string) error {
	opener, err := kvstore.NewSQL(kvstore.SQLConfig{File: path}, telemetry.SlogAPI{})
	if err != nil {
		return err
	}
	store, err := opener.Open(ctx)
	if err != nil {
		return err
	}
	return store.Close()
}

func writeLocalConfig(dbpath string) error {
	_, err := os.Stat("config.local.json5")
	if err == nil {
		slog.Info("config.local.json5 already exists, leaving it alone")
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile("config.local.json5", []byte(fmt.Sprintf(localConfig, dbpath)), 0600)
}

func create(ctx context.Context, recreate bool) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll(stateDir)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	err = os.MkdirAll(stateDir, 0777)
	if err != nil {
		return err
	}

	dbpath := filepath.Join(stateDir, "simstats.db")
	err = createStore(ctx, dbpath)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	err = writeLocalConfig(dbpath)
	if err != nil {
		return fmt.Errorf("write local config: %w", err)
	}

	slog.Info("store", "path", dbpath)
	slog.Info("config", "path", "config.local.json5")
	return nil
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	flag.Parse()

	err := create(context.Background(), *recreate)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}

	slog.Info("dev environment created successfully!")
}
