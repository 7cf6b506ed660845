// Package core provides the business logic for recipient imports and alert fan-out.
//
// This package holds all domain logic independent of any transport, storage
// driver or queue. It can be used by the HTTP server, the CLI, or tests
// without modification.
//
// # Architecture
//
// The package is organized around two pipelines that share one entity,
// [Recipient], and one persistence contract, [RecipientStore]:
//
//   - Import: [Parser] streams a CSV file, checks every row with
//     [IsValidRegionCode] and [IsValidPhoneNumber], and returns an immutable
//     [ParseSummary]. [Importer] hands the valid records to the store and
//     returns an [ImportReport].
//   - Alert: [Dispatcher] validates an [AlertRequest], resolves the phone
//     numbers registered under the region code and publishes one
//     [NotificationMessage] per recipient to a [Publisher]. Delivery happens
//     elsewhere, asynchronously.
//
// # Import Flow
//
//  1. Caller invokes [Importer.Import] with a file path (CLI) or
//     [Importer.ImportReader] with an upload stream (HTTP)
//  2. Rows with fewer than two fields or invalid values are counted, never fatal
//  3. Valid records are inserted in chunks inside one transaction
//  4. Duplicate pairs are skipped by the store, so re-imports are idempotent
//
// # Error Handling
//
// Fatal failures are returned as [*Error] values carrying an [ErrorKind], so
// callers branch with [errors.Is] against the sentinels ([ErrMissingRegionCode],
// [ErrPersistence], ...) or with [KindOf]. [MapError] turns any error into a
// user-facing [UserMessage] with a support code:
//
//   - ALR001-ALR003: Alert request validation
//   - FILE001-FILE003: File access
//   - DB001: Storage failures
//   - Q001: Notification queue failures
package core
