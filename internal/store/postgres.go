package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/regionalert/internal/core"
)

// pgxDB is the subset of *pgxpool.Pool used by Postgres.
type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresConfig holds pool settings. Zero values keep pgxpool's defaults.
type PostgresConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Postgres is a pgx-backed store.
type Postgres struct {
	db     pgxDB
	logger *slog.Logger
}

// OpenPostgres connects a pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger = loggerOrDefault(logger)
	logger.Info("connected to database", "driver", "postgres", "database", poolConfig.ConnConfig.Database)
	return newPostgres(pool, logger), nil
}

func newPostgres(db pgxDB, logger *slog.Logger) *Postgres {
	return &Postgres{db: db, logger: loggerOrDefault(logger)}
}

// EnsureSchema creates missing tables and indexes.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ddl, err := schemaSQL("postgres.sql")
	if err != nil {
		return err
	}
	// Without arguments pgx uses the simple protocol, which accepts
	// several statements in one call.
	if _, err := p.db.Exec(ctx, ddl); err != nil {
		return core.PersistenceError("ensure schema", err)
	}
	return nil
}

// BulkInsert implements core.RecipientStore.
func (p *Postgres) BulkInsert(ctx context.Context, records []core.Recipient, chunkSize int) (inserted int, err error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, core.PersistenceError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				p.logger.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	chunks := chunk(records, chunkSize)
	for i, c := range chunks {
		tag, execErr := tx.Exec(ctx, insertSQL(len(c), dollar), insertArgs(c)...)
		if execErr != nil {
			return 0, core.PersistenceError(fmt.Sprintf("insert chunk %d/%d", i+1, len(chunks)), execErr)
		}
		inserted += int(tag.RowsAffected())
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, core.PersistenceError("commit", err)
	}

	p.logger.Debug("recipients inserted",
		"records", len(records),
		"inserted", inserted,
		"chunks", len(chunks),
	)
	return inserted, nil
}

// LookupPhonesByRegion implements core.RecipientStore.
func (p *Postgres) LookupPhonesByRegion(ctx context.Context, regionCode string) ([]string, error) {
	rows, err := p.db.Query(ctx,
		`SELECT DISTINCT phone_number FROM recipients WHERE region_code = $1 ORDER BY phone_number`,
		regionCode,
	)
	if err != nil {
		return nil, core.PersistenceError("lookup phones", err)
	}
	phones, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, core.PersistenceError("lookup phones", err)
	}
	if phones == nil {
		phones = []string{}
	}
	return phones, nil
}

// RecordImport implements core.HistoryRecorder.
func (p *Postgres) RecordImport(ctx context.Context, run core.ImportRun) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO import_runs (id, file_name, total_rows, valid_rows, error_rows, inserted_rows, duration_ms, imported_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.FileName, run.TotalRows, run.ValidRows, run.ErrorRows, run.InsertedRows, run.DurationMs, run.ImportedAt,
	)
	if err != nil {
		return core.PersistenceError("record import", err)
	}
	return nil
}

// ListImports returns the most recent import runs, newest first.
func (p *Postgres) ListImports(ctx context.Context, limit int) ([]core.ImportRun, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id::text, file_name, total_rows, valid_rows, error_rows, inserted_rows, duration_ms, imported_at
		 FROM import_runs ORDER BY imported_at DESC LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, core.PersistenceError("list imports", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ImportRun, error) {
		var r core.ImportRun
		err := row.Scan(&r.ID, &r.FileName, &r.TotalRows, &r.ValidRows, &r.ErrorRows, &r.InsertedRows, &r.DurationMs, &r.ImportedAt)
		return r, err
	})
	if err != nil {
		return nil, core.PersistenceError("list imports", err)
	}
	if runs == nil {
		runs = []core.ImportRun{}
	}
	return runs, nil
}

// PruneImports deletes runs imported before cutoff.
func (p *Postgres) PruneImports(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM import_runs WHERE imported_at < $1`, before)
	if err != nil {
		return 0, core.PersistenceError("prune imports", err)
	}
	return tag.RowsAffected(), nil
}

// CountRecipients returns the number of stored recipients.
func (p *Postgres) CountRecipients(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.QueryRow(ctx, `SELECT count(*) FROM recipients`).Scan(&n); err != nil {
		return 0, core.PersistenceError("count recipients", err)
	}
	return n, nil
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
