package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// MaxRowErrors caps the rejected rows kept in a ParseSummary.
const MaxRowErrors = 1000

// Parser reads recipient CSV files. It keeps no state between calls and is
// safe for concurrent use.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger uses slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse reads the file at path and validates every row.
//
// Row-level problems are counted in the summary and never abort the parse.
// A missing or unreadable file fails with KindNotFound, a file that exists
// but cannot be opened with KindOpen, and an I/O failure mid-stream with KindRead.
func (p *Parser) Parse(path string) (ParseSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ParseSummary{}, &Error{Kind: KindNotFound, Op: "parse", Subject: path, Err: err}
	}
	if info.IsDir() {
		return ParseSummary{}, &Error{Kind: KindNotFound, Op: "parse", Subject: path, Err: errors.New("is a directory")}
	}

	f, err := os.Open(path)
	if err != nil {
		kind := KindOpen
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
			kind = KindNotFound
		}
		return ParseSummary{}, &Error{Kind: kind, Op: "parse", Subject: path, Err: err}
	}
	defer f.Close()

	summary, err := p.parse(f)
	if err != nil {
		return ParseSummary{}, &Error{Kind: KindRead, Op: "parse", Subject: path, Err: err}
	}
	return summary, nil
}

// ParseReader applies the same rules as Parse to an already open stream.
// The caller owns r and closes it.
func (p *Parser) ParseReader(r io.Reader) (ParseSummary, error) {
	summary, err := p.parse(r)
	if err != nil {
		return ParseSummary{}, &Error{Kind: KindRead, Op: "parse", Err: err}
	}
	return summary, nil
}

func (p *Parser) parse(r io.Reader) (ParseSummary, error) {
	counter := newLineCountingReader(r)

	// Backslash has no escape meaning. Inside a quoted field `\"` is a
	// literal backslash followed by the closing quote, so "7500\" ends the
	// field and the row.
	cr := csv.NewReader(skipBOM(counter))
	cr.Comma = ','
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	b := &summaryBuilder{logger: p.logger}
	nextLine := 1

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return ParseSummary{}, err
			}
			b.blankLines(pe.StartLine - nextLine)
			b.reject(fmt.Sprintf("malformed csv: %v", pe.Err))
			nextLine = pe.Line + 1
			continue
		}

		start, _ := cr.FieldPos(0)
		b.blankLines(start - nextLine)

		last := len(record) - 1
		lastLine, _ := cr.FieldPos(last)
		nextLine = lastLine + strings.Count(record[last], "\n") + 1

		if len(record) < 2 {
			b.reject(fmt.Sprintf("expected at least 2 fields, got %d", len(record)))
			continue
		}

		regionCode := strings.TrimSpace(record[0])
		phone := strings.TrimSpace(record[1])
		switch {
		case !IsValidRegionCode(regionCode):
			b.reject(fmt.Sprintf("invalid region code %q", regionCode))
		case !IsValidPhoneNumber(phone):
			b.reject(fmt.Sprintf("invalid phone number %q", phone))
		default:
			b.accept(Recipient{RegionCode: regionCode, PhoneNumber: phone})
		}
	}

	// Trailing blank lines are never reported by encoding/csv.
	b.blankLines(counter.Lines() - nextLine + 1)

	return b.summary, nil
}

// summaryBuilder accumulates counts for one parse call.
type summaryBuilder struct {
	logger  *slog.Logger
	summary ParseSummary
}

func (b *summaryBuilder) accept(rec Recipient) {
	b.summary.TotalRows++
	b.summary.ValidRows++
	b.summary.Records = append(b.summary.Records, rec)
}

func (b *summaryBuilder) reject(reason string) {
	b.summary.TotalRows++
	b.summary.ErrorRows++
	row := b.summary.TotalRows
	b.logger.Warn("row rejected", "row", row, "reason", reason)
	if len(b.summary.RowErrors) < MaxRowErrors {
		b.summary.RowErrors = append(b.summary.RowErrors, RowError{Row: row, Reason: reason})
	}
}

// blankLines counts n skipped empty lines as single-field rows.
func (b *summaryBuilder) blankLines(n int) {
	for i := 0; i < n; i++ {
		b.reject("expected at least 2 fields, got 1")
	}
}
