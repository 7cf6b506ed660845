package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipients.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImporter_Import(t *testing.T) {
	store := newMemStore()
	im := NewImporter(NewParser(discardLogger()), store, WithLogger(discardLogger()))

	path := writeCSV(t, "75001,+33612345678\n75002,0612345678\n75003,+336ABC5432\nbadrow\n")
	report, err := im.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if report.TotalRows != 4 || report.ValidRows != 2 || report.ErrorRows != 2 {
		t.Errorf("counts = %d/%d/%d, want 4/2/2", report.TotalRows, report.ValidRows, report.ErrorRows)
	}
	if report.InsertedRows != 2 {
		t.Errorf("InsertedRows = %d, want 2", report.InsertedRows)
	}
	if report.FileName != "recipients.csv" {
		t.Errorf("FileName = %q, want recipients.csv", report.FileName)
	}
	if report.ID == "" {
		t.Error("ID is empty")
	}
	if store.chunkSize != DefaultChunkSize {
		t.Errorf("chunk size = %d, want %d", store.chunkSize, DefaultChunkSize)
	}
}

func TestImporter_ImportTwiceInsertsOnce(t *testing.T) {
	store := newMemStore()
	im := NewImporter(NewParser(discardLogger()), store, WithLogger(discardLogger()))
	path := writeCSV(t, "75001,+33612345678\n")

	first, err := im.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("first Import() error = %v", err)
	}
	second, err := im.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}

	if first.InsertedRows != 1 {
		t.Errorf("first InsertedRows = %d, want 1", first.InsertedRows)
	}
	if second.InsertedRows != 0 {
		t.Errorf("second InsertedRows = %d, want 0", second.InsertedRows)
	}
	if second.ValidRows != 1 {
		t.Errorf("second ValidRows = %d, want 1", second.ValidRows)
	}
}

func TestImporter_NoValidRecordsSkipsStore(t *testing.T) {
	store := newMemStore()
	im := NewImporter(NewParser(discardLogger()), store, WithLogger(discardLogger()))

	report, err := im.ImportReader(context.Background(), "upload.csv", strings.NewReader("bad\n\n"))
	if err != nil {
		t.Fatalf("ImportReader() error = %v", err)
	}
	if store.calls != 0 {
		t.Errorf("BulkInsert called %d times, want 0", store.calls)
	}
	if report.ErrorRows != 2 || report.InsertedRows != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestImporter_ChunkSizeOption(t *testing.T) {
	store := newMemStore()
	im := NewImporter(NewParser(discardLogger()), store, WithChunkSize(7), WithChunkSize(0), WithLogger(discardLogger()))

	if _, err := im.ImportReader(context.Background(), "x.csv", strings.NewReader("75001,0612345678\n")); err != nil {
		t.Fatal(err)
	}
	if store.chunkSize != 7 {
		t.Errorf("chunk size = %d, want 7", store.chunkSize)
	}
}

func TestImporter_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		im := NewImporter(NewParser(discardLogger()), newMemStore(), WithLogger(discardLogger()))
		_, err := im.Import(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
		if KindOf(err) != KindNotFound {
			t.Fatalf("kind = %v, want %v (err %v)", KindOf(err), KindNotFound, err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemStore()
		store.failWith = errors.New("connection reset")
		history := &recordingHistory{}
		im := NewImporter(NewParser(discardLogger()), store, WithHistory(history), WithLogger(discardLogger()))

		_, err := im.ImportReader(context.Background(), "x.csv", strings.NewReader("75001,0612345678\n"))
		if !errors.Is(err, ErrPersistence) {
			t.Fatalf("error = %v, want ErrPersistence", err)
		}
		if len(history.runs) != 0 {
			t.Errorf("history recorded %d runs for a failed import", len(history.runs))
		}
	})
}

func TestImporter_RecordsHistory(t *testing.T) {
	history := &recordingHistory{}
	im := NewImporter(NewParser(discardLogger()), newMemStore(), WithHistory(history), WithLogger(discardLogger()))

	report, err := im.ImportReader(context.Background(), "batch.csv", strings.NewReader("75001,0612345678\nbad\n"))
	if err != nil {
		t.Fatal(err)
	}

	if len(history.runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(history.runs))
	}
	run := history.runs[0]
	if run.ID != report.ID || run.FileName != "batch.csv" {
		t.Errorf("run = %+v, report = %+v", run, report)
	}
	if run.TotalRows != 2 || run.ValidRows != 1 || run.ErrorRows != 1 || run.InsertedRows != 1 {
		t.Errorf("run counts = %+v", run)
	}
	if run.ImportedAt.IsZero() {
		t.Error("ImportedAt is zero")
	}
}

func TestImporter_HistoryFailureDoesNotFailImport(t *testing.T) {
	history := &recordingHistory{err: errors.New("table missing")}
	im := NewImporter(NewParser(discardLogger()), newMemStore(), WithHistory(history), WithLogger(discardLogger()))

	report, err := im.ImportReader(context.Background(), "x.csv", strings.NewReader("75001,0612345678\n"))
	if err != nil {
		t.Fatalf("ImportReader() error = %v", err)
	}
	if report.InsertedRows != 1 {
		t.Errorf("InsertedRows = %d, want 1", report.InsertedRows)
	}
}

func TestImporter_CancelledContextStillInserts(t *testing.T) {
	store := newMemStore()
	im := NewImporter(NewParser(discardLogger()), store, WithLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := im.ImportReader(ctx, "x.csv", strings.NewReader("75001,0612345678\n75002,0612345679\n"))
	if err != nil {
		t.Fatalf("ImportReader() error = %v", err)
	}
	if store.ctxErr != nil {
		t.Errorf("BulkInsert saw ctx.Err() = %v, want nil", store.ctxErr)
	}
	if report.InsertedRows != 2 {
		t.Errorf("InsertedRows = %d, want 2", report.InsertedRows)
	}
}
