package core

import (
	"context"
	"time"
)

// Recipient is a phone number registered under a region code.
// The (RegionCode, PhoneNumber) pair is unique in storage.
type Recipient struct {
	RegionCode  string `json:"regionCode"`
	PhoneNumber string `json:"phoneNumber"`
}

// RowError records why a single CSV row was rejected.
type RowError struct {
	Row    int    `json:"row"` // 1-based row number
	Reason string `json:"reason"`
}

// ParseSummary is the result of parsing one file.
// TotalRows always equals ValidRows + ErrorRows.
type ParseSummary struct {
	TotalRows int
	ValidRows int
	ErrorRows int
	Records   []Recipient

	// RowErrors lists rejected rows, capped at MaxRowErrors entries.
	// ErrorRows keeps counting past the cap.
	RowErrors []RowError
}

// ImportReport is returned by the Importer after a file has been processed.
type ImportReport struct {
	ID           string        `json:"id"`
	FileName     string        `json:"fileName"`
	TotalRows    int           `json:"totalRows"`
	ValidRows    int           `json:"validRows"`
	ErrorRows    int           `json:"errorRows"`
	InsertedRows int           `json:"insertedRows"`
	Duration     time.Duration `json:"durationNs"`
	RowErrors    []RowError    `json:"rowErrors,omitempty"`
}

// ImportRun is a persisted import history entry.
type ImportRun struct {
	ID           string    `json:"id"`
	FileName     string    `json:"fileName"`
	TotalRows    int       `json:"totalRows"`
	ValidRows    int       `json:"validRows"`
	ErrorRows    int       `json:"errorRows"`
	InsertedRows int       `json:"insertedRows"`
	DurationMs   int64     `json:"durationMs"`
	ImportedAt   time.Time `json:"importedAt"`
}

// AlertRequest is an inbound alert. A nil field means the key was absent
// from the request, which is reported differently from an invalid value.
type AlertRequest struct {
	RegionCode *string
	Message    *string
}

// DispatchResult is returned by a successful dispatch.
// SentCount is the number of recipients resolved, not delivered.
type DispatchResult struct {
	SentCount int `json:"sent"`
}

// NotificationMessage is one outbound SMS for one recipient.
type NotificationMessage struct {
	ID          string    `json:"id"`
	RegionCode  string    `json:"regionCode,omitempty"`
	Destination string    `json:"destination"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RecipientStore persists recipients and resolves them by region code.
type RecipientStore interface {
	// BulkInsert inserts records in chunks of at most chunkSize inside one
	// transaction, skipping pairs that already exist. It returns the number
	// of rows actually inserted.
	BulkInsert(ctx context.Context, records []Recipient, chunkSize int) (int, error)

	// LookupPhonesByRegion returns the distinct phone numbers registered
	// under regionCode. No match yields an empty slice and a nil error.
	LookupPhonesByRegion(ctx context.Context, regionCode string) ([]string, error)
}

// HistoryRecorder stores a completed import.
type HistoryRecorder interface {
	RecordImport(ctx context.Context, run ImportRun) error
}

// Publisher enqueues a notification for asynchronous delivery.
type Publisher interface {
	Publish(ctx context.Context, msg NotificationMessage) error
}
