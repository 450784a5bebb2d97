package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"process-capex/db/clickhouse"
	"process-capex/db/postgres"
	"process-capex/db/runs"
)

// openRecorder opens the configured run store and creates its tables. It
// returns nil when no store is configured.
func (e *env) openRecorder(c *cli.Context) (runs.Recorder, error) {
	switch kind := c.String("store"); kind {
	case "", "none":
		return nil, nil

	case "clickhouse":
		var (
			store *clickhouse.Store
			err   error
		)
		if dsn := c.String("clickhouse-dsn"); dsn != "" {
			store, err = clickhouse.NewStoreFromDSN(dsn)
		} else {
			store, err = clickhouse.NewStore(clickhouseConfig(c))
		}
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(c.Context); err != nil {
			store.Close()
			return nil, err
		}
		e.logger.Debug().Str("store", kind).Msg("Run store ready")
		return store, nil

	case "postgres":
		url := c.String("database-url")
		if url == "" {
			return nil, fmt.Errorf("--store postgres needs --database-url or DATABASE_URL")
		}
		store, err := postgres.Connect(url)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(c.Context); err != nil {
			store.Close()
			return nil, err
		}
		e.logger.Debug().Str("store", kind).Msg("Run store ready")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store %q (want none, clickhouse or postgres)", kind)
	}
}

func clickhouseConfig(c *cli.Context) *clickhouse.Config {
	cfg := clickhouse.DefaultConfig()
	cfg.Host = c.String("clickhouse-host")
	cfg.Port = c.Int("clickhouse-port")
	cfg.Database = c.String("clickhouse-database")
	cfg.Username = c.String("clickhouse-user")
	cfg.Password = c.String("clickhouse-password")
	cfg.Debug = c.String("log-level") == "debug"
	return cfg
}

func parseRunID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("run id required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid run id %q: %w", s, err)
	}
	return id, nil
}
