package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"simstats-backend/internal/components/telemetry"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const (
	report_sql_open = "sql.open"
	report_sql_put  = "sql.put"
	report_sql_get  = "sql.get"
)

const Schema = `create table if not exists kv (
	path text primary key,
	value text not null,
	updated_at integer not null
);`

type SQLConfig struct {
	// File is a local sqlite database, created when missing.
	File string `json:"file"`
	// Url is a remote libsql database, it takes precedence over File.
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// SQL stores every path as a row, used for local runs and for hosting the
// store on libsql instead of firebase.
type SQL struct {
	config SQLConfig
	tel    telemetry.API
}

func NewSQL(config SQLConfig, tel telemetry.API) (SQL, error) {
	if config.File == "" && config.Url == "" {
		return SQL{}, fmt.Errorf("sql: neither a file nor a url was specified")
	}
	return SQL{
		config: config,
		tel:    telemetry.NewScopedAPI("kvstore", tel),
	}, nil
}

func (s SQL) openDB() (*sql.DB, error) {
	if s.config.Url != "" {
		dsn := s.config.Url
		if s.config.AuthToken != "" {
			parsed, err := url.Parse(dsn)
			if err != nil {
				return nil, err
			}
			query := parsed.Query()
			query.Set("authToken", s.config.AuthToken)
			parsed.RawQuery = query.Encode()
			dsn = parsed.String()
		}
		return sql.Open("libsql", dsn)
	}

	_, statErr := os.Stat(s.config.File)
	if os.IsNotExist(statErr) {
		f, err := os.Create(s.config.File)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite", s.config.File)
	if err != nil {
		return nil, err
	}
	// sqlite only supports a single writer
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s SQL) Open(ctx context.Context) (Store, error) {
	db, err := s.openDB()
	if err != nil {
		s.tel.ReportBroken(report_sql_open, err)
		return nil, err
	}

	_, err = db.ExecContext(ctx, Schema)
	if err != nil {
		db.Close()
		err = fmt.Errorf("apply schema: %w", err)
		s.tel.ReportBroken(report_sql_open, err)
		return nil, err
	}
	return &sqlStore{db: db, tel: s.tel}, nil
}

type sqlStore struct {
	db  *sql.DB
	tel telemetry.API
}

func (s *sqlStore) Put(ctx context.Context, path string, value int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into kv(path, value, updated_at) values (?, ?, ?)
		on conflict(path) do update set value = excluded.value, updated_at = excluded.updated_at`,
		strings.Trim(path, "/"),
		strconv.FormatInt(value, 10),
		time.Now().Unix(),
	)
	if err != nil {
		s.tel.ReportBroken(report_sql_put, err, path)
		return err
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, path string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(
		ctx,
		"select value from kv where path = ?",
		strings.Trim(path, "/"),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return null, nil
	}
	if err != nil {
		s.tel.ReportBroken(report_sql_get, err, path)
		return nil, err
	}
	return []byte(value), nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
