package core

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/regionalert/internal/metrics"
)

// DefaultChunkSize is the number of records per multi-row insert.
const DefaultChunkSize = 25

// Importer wires the parser into the store.
type Importer struct {
	parser    *Parser
	store     RecipientStore
	history   HistoryRecorder
	chunkSize int
	logger    *slog.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithChunkSize overrides DefaultChunkSize. Values <= 0 are ignored.
func WithChunkSize(n int) ImporterOption {
	return func(im *Importer) {
		if n > 0 {
			im.chunkSize = n
		}
	}
}

// WithHistory records every successful import. Recording failures are
// logged and never fail the import.
func WithHistory(h HistoryRecorder) ImporterOption {
	return func(im *Importer) { im.history = h }
}

// WithLogger sets the importer's logger.
func WithLogger(l *slog.Logger) ImporterOption {
	return func(im *Importer) {
		if l != nil {
			im.logger = l
		}
	}
}

// NewImporter creates an Importer.
func NewImporter(parser *Parser, store RecipientStore, opts ...ImporterOption) *Importer {
	im := &Importer{
		parser:    parser,
		store:     store,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import parses the file at path and stores its valid records.
//
// Parser and store errors are returned unchanged. Row-level errors only show
// up in the report counts, so a file where every row fails still succeeds.
func (im *Importer) Import(ctx context.Context, path string) (ImportReport, error) {
	start := time.Now()
	im.logger.Info("import started", "file", path)

	summary, err := im.parser.Parse(path)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("failed").Inc()
		return ImportReport{}, err
	}
	return im.persist(ctx, filepath.Base(path), summary, start)
}

// ImportReader imports an uploaded stream. name is only used for reporting.
func (im *Importer) ImportReader(ctx context.Context, name string, r io.Reader) (ImportReport, error) {
	start := time.Now()
	im.logger.Info("import started", "file", name)

	summary, err := im.parser.ParseReader(r)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("failed").Inc()
		return ImportReport{}, err
	}
	return im.persist(ctx, name, summary, start)
}

func (im *Importer) persist(ctx context.Context, name string, summary ParseSummary, start time.Time) (ImportReport, error) {
	report := ImportReport{
		ID:        uuid.NewString(),
		FileName:  name,
		TotalRows: summary.TotalRows,
		ValidRows: summary.ValidRows,
		ErrorRows: summary.ErrorRows,
		RowErrors: summary.RowErrors,
	}

	if len(summary.Records) > 0 {
		// Once parsed, the file is stored or rolled back as a whole; a
		// cancelled caller does not abort the insert.
		inserted, err := im.store.BulkInsert(context.WithoutCancel(ctx), summary.Records, im.chunkSize)
		if err != nil {
			metrics.ImportsTotal.WithLabelValues("failed").Inc()
			return ImportReport{}, err
		}
		report.InsertedRows = inserted
	}
	report.Duration = time.Since(start)

	metrics.ImportsTotal.WithLabelValues("succeeded").Inc()
	metrics.ImportRows.WithLabelValues("valid").Add(float64(report.ValidRows))
	metrics.ImportRows.WithLabelValues("error").Add(float64(report.ErrorRows))
	metrics.ImportRows.WithLabelValues("inserted").Add(float64(report.InsertedRows))
	metrics.ImportDuration.Observe(report.Duration.Seconds())

	im.logger.Info("import completed",
		"import_id", report.ID,
		"file", name,
		"total_rows", report.TotalRows,
		"valid_rows", report.ValidRows,
		"error_rows", report.ErrorRows,
		"inserted_rows", report.InsertedRows,
		"duration_ms", report.Duration.Milliseconds(),
	)

	im.recordHistory(ctx, report)
	return report, nil
}

func (im *Importer) recordHistory(ctx context.Context, report ImportReport) {
	if im.history == nil {
		return
	}
	run := ImportRun{
		ID:           report.ID,
		FileName:     report.FileName,
		TotalRows:    report.TotalRows,
		ValidRows:    report.ValidRows,
		ErrorRows:    report.ErrorRows,
		InsertedRows: report.InsertedRows,
		DurationMs:   report.Duration.Milliseconds(),
		ImportedAt:   time.Now().UTC(),
	}
	if err := im.history.RecordImport(context.WithoutCancel(ctx), run); err != nil {
		im.logger.Warn("failed to record import history", "import_id", report.ID, "error", err)
	}
}
