// Package store persists recipients and import history.
//
// Postgres and SQLite implement the same contract: BulkInsert runs one
// transaction with one multi-row INSERT per chunk and skips pairs that
// already exist, so re-importing a file is idempotent. Every failure is
// returned as a *core.Error of kind KindPersistence.
package store

import (
	"embed"
	"strconv"
	"strings"

	"github.com/JonMunkholm/regionalert/internal/core"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// DefaultListLimit is used by ListImports when limit <= 0.
const DefaultListLimit = 50

// MaxListLimit caps ListImports.
const MaxListLimit = 500

// placeholder renders the n-th (1-based) bind parameter.
type placeholder func(n int) string

func dollar(n int) string { return "$" + strconv.Itoa(n) }

func question(int) string { return "?" }

// chunk splits records into consecutive slices of at most size elements.
// The slices share records' backing array.
func chunk(records []core.Recipient, size int) [][]core.Recipient {
	if size <= 0 {
		size = core.DefaultChunkSize
	}
	out := make([][]core.Recipient, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}

// insertSQL builds a conflict-tolerant multi-row insert for n records.
func insertSQL(n int, ph placeholder) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO recipients (region_code, phone_number) VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		sb.WriteString(ph(2*i + 1))
		sb.WriteString(", ")
		sb.WriteString(ph(2*i + 2))
		sb.WriteString(")")
	}
	sb.WriteString(" ON CONFLICT (region_code, phone_number) DO NOTHING")
	return sb.String()
}

func insertArgs(records []core.Recipient) []any {
	args := make([]any, 0, 2*len(records))
	for _, r := range records {
		args = append(args, r.RegionCode, r.PhoneNumber)
	}
	return args
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func schemaSQL(name string) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
