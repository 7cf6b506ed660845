package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/regionalert/internal/core"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := OpenSQLite(ctx, SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return s
}

func TestSQLite_BulkInsertIsIdempotent(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	records := []core.Recipient{{RegionCode: "75001", PhoneNumber: "+33612345678"}}

	first, err := s.BulkInsert(ctx, records, 25)
	if err != nil {
		t.Fatalf("first BulkInsert() error = %v", err)
	}
	second, err := s.BulkInsert(ctx, records, 25)
	if err != nil {
		t.Fatalf("second BulkInsert() error = %v", err)
	}

	if first != 1 || second != 0 {
		t.Errorf("inserted = %d then %d, want 1 then 0", first, second)
	}
}

func TestSQLite_BulkInsertDuplicatesWithinBatch(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	records := append(makeRecipients(30), makeRecipients(30)...)
	inserted, err := s.BulkInsert(ctx, records, 25)
	if err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	if inserted != 30 {
		t.Errorf("inserted = %d, want 30", inserted)
	}

	n, err := s.CountRecipients(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 30 {
		t.Errorf("CountRecipients() = %d, want 30", n)
	}
}

func TestSQLite_BulkInsertRollsBackOnFailure(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		CREATE TRIGGER reject_poison BEFORE INSERT ON recipients
		WHEN NEW.phone_number = '+33999999999'
		BEGIN SELECT RAISE(ABORT, 'poison row'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	records := makeRecipients(60)
	records[55] = core.Recipient{RegionCode: "75001", PhoneNumber: "+33999999999"}

	_, err = s.BulkInsert(ctx, records, 25)
	if !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("error = %v, want ErrPersistence", err)
	}

	n, err := s.CountRecipients(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("CountRecipients() = %d after rollback, want 0", n)
	}
}

func TestSQLite_LookupPhonesByRegion(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	_, err := s.BulkInsert(ctx, []core.Recipient{
		{RegionCode: "75001", PhoneNumber: "+33698765432"},
		{RegionCode: "75001", PhoneNumber: "+33612345678"},
		{RegionCode: "13001", PhoneNumber: "0611111111"},
	}, 2)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		region string
		want   []string
	}{
		{"75001", []string{"+33612345678", "+33698765432"}},
		{"13001", []string{"0611111111"}},
		{"99999", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			got, err := s.LookupPhonesByRegion(ctx, tt.region)
			if err != nil {
				t.Fatalf("LookupPhonesByRegion() error = %v", err)
			}
			if got == nil {
				t.Fatal("LookupPhonesByRegion() returned nil slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSQLite_ImportHistory(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	runs := []core.ImportRun{
		{ID: uuid.NewString(), FileName: "old.csv", TotalRows: 1, ImportedAt: now.Add(-100 * 24 * time.Hour)},
		{ID: uuid.NewString(), FileName: "mid.csv", TotalRows: 2, ImportedAt: now.Add(-time.Hour)},
		{ID: uuid.NewString(), FileName: "new.csv", TotalRows: 4, ValidRows: 3, ErrorRows: 1, InsertedRows: 2, DurationMs: 12, ImportedAt: now},
	}
	for _, r := range runs {
		if err := s.RecordImport(ctx, r); err != nil {
			t.Fatalf("RecordImport() error = %v", err)
		}
	}

	got, err := s.ListImports(ctx, 2)
	if err != nil {
		t.Fatalf("ListImports() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListImports(2) returned %d runs", len(got))
	}
	newest, want := got[0], runs[2]
	if !newest.ImportedAt.Equal(want.ImportedAt) {
		t.Errorf("ImportedAt = %v, want %v", newest.ImportedAt, want.ImportedAt)
	}
	newest.ImportedAt, want.ImportedAt = time.Time{}, time.Time{}
	if newest != want {
		t.Errorf("newest run = %+v, want %+v", newest, want)
	}
	if got[1].FileName != "mid.csv" {
		t.Errorf("second run = %q, want mid.csv", got[1].FileName)
	}

	deleted, err := s.PruneImports(ctx, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("PruneImports() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("PruneImports() deleted %d, want 1", deleted)
	}

	remaining, err := s.ListImports(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Errorf("%d runs remain, want 2", len(remaining))
	}
}

func TestSQLite_EnsureSchemaTwice(t *testing.T) {
	s := openTestSQLite(t)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema() error = %v", err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "mysql"}, nil); err == nil {
		t.Fatal("Open() accepted an unknown driver")
	}
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), Config{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "nested", "open.db"),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer st.Close()

	if err := st.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
