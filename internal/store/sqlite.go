package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/regionalert/internal/core"
)

// SQLiteConfig configures the embedded backend.
type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// SQLite is a single-file store for development and small deployments.
// It keeps one open connection, so writes are serialized.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database file at cfg.Path.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig, logger *slog.Logger) (*SQLite, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	logger = loggerOrDefault(logger)
	logger.Info("connected to database", "driver", "sqlite", "path", cfg.Path)
	return &SQLite{db: db, logger: logger}, nil
}

// EnsureSchema creates missing tables and indexes.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	ddl, err := schemaSQL("sqlite.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return core.PersistenceError("ensure schema", err)
	}
	return nil
}

// BulkInsert implements core.RecipientStore.
func (s *SQLite) BulkInsert(ctx context.Context, records []core.Recipient, chunkSize int) (inserted int, err error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, core.PersistenceError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	chunks := chunk(records, chunkSize)
	for i, c := range chunks {
		res, execErr := tx.ExecContext(ctx, insertSQL(len(c), question), insertArgs(c)...)
		if execErr != nil {
			return 0, core.PersistenceError(fmt.Sprintf("insert chunk %d/%d", i+1, len(chunks)), execErr)
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return 0, core.PersistenceError("rows affected", raErr)
		}
		inserted += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, core.PersistenceError("commit", err)
	}

	s.logger.Debug("recipients inserted",
		"records", len(records),
		"inserted", inserted,
		"chunks", len(chunks),
	)
	return inserted, nil
}

// LookupPhonesByRegion implements core.RecipientStore.
func (s *SQLite) LookupPhonesByRegion(ctx context.Context, regionCode string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT phone_number FROM recipients WHERE region_code = ? ORDER BY phone_number`,
		regionCode,
	)
	if err != nil {
		return nil, core.PersistenceError("lookup phones", err)
	}
	defer rows.Close()

	phones := []string{}
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, core.PersistenceError("lookup phones", err)
		}
		phones = append(phones, phone)
	}
	if err := rows.Err(); err != nil {
		return nil, core.PersistenceError("lookup phones", err)
	}
	return phones, nil
}

// RecordImport implements core.HistoryRecorder.
func (s *SQLite) RecordImport(ctx context.Context, run core.ImportRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, file_name, total_rows, valid_rows, error_rows, inserted_rows, duration_ms, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.FileName, run.TotalRows, run.ValidRows, run.ErrorRows, run.InsertedRows, run.DurationMs, run.ImportedAt.UnixMilli(),
	)
	if err != nil {
		return core.PersistenceError("record import", err)
	}
	return nil
}

// ListImports returns the most recent import runs, newest first.
func (s *SQLite) ListImports(ctx context.Context, limit int) ([]core.ImportRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, total_rows, valid_rows, error_rows, inserted_rows, duration_ms, imported_at
		 FROM import_runs ORDER BY imported_at DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, core.PersistenceError("list imports", err)
	}
	defer rows.Close()

	runs := []core.ImportRun{}
	for rows.Next() {
		var (
			r  core.ImportRun
			ms int64
		)
		if err := rows.Scan(&r.ID, &r.FileName, &r.TotalRows, &r.ValidRows, &r.ErrorRows, &r.InsertedRows, &r.DurationMs, &ms); err != nil {
			return nil, core.PersistenceError("list imports", err)
		}
		r.ImportedAt = time.UnixMilli(ms).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, core.PersistenceError("list imports", err)
	}
	return runs, nil
}

// PruneImports deletes runs imported before cutoff.
func (s *SQLite) PruneImports(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM import_runs WHERE imported_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, core.PersistenceError("prune imports", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.PersistenceError("prune imports", err)
	}
	return n, nil
}

// CountRecipients returns the number of stored recipients.
func (s *SQLite) CountRecipients(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM recipients`).Scan(&n); err != nil {
		return 0, core.PersistenceError("count recipients", err)
	}
	return n, nil
}

// Ping checks that the database file is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
