// Package sde keeps a local relational mirror of the static data export.
//
// The package holds the refresh logic and nothing else: persistence is
// reached through the store package and the HTTP transport through the
// [Fetcher] interface, so it can be driven by the CLI, the browse server's
// scheduler or tests without modification.
//
// # Refresh Flow
//
//  1. [Updater.Update] compares the stored token with the remote one
//     ([IsCurrent]); equal tokens end the run unless force is set.
//  2. [Runner.Run] opens one transaction and defers referential checks.
//  3. Each [Pipeline] runs in order: extract the CSV, transform it, then
//     replace every row of its table.
//  4. Referential checks are restored, which verifies every reference made
//     while they were deferred.
//  5. The new token is written and the transaction commits.
//
// Any failure rolls the whole transaction back, so tables and token are
// left exactly as they were.
//
// One Updater runs one refresh at a time; a concurrent call fails with
// [ErrRefreshRunning]. Separate processes must be serialised by the caller.
//
// # Positional Columns
//
// Upstream header names change between dump releases. Pipelines therefore
// ignore the header row and name columns by position with [Rename];
// a CSV whose width differs from the expected layout is a [SchemaError].
//
// # Error Handling
//
// Failures are typed ([NetworkError], [SchemaError], [IntegrityError]) and
// mapped to user messages with [MapError]:
//
//   - NET001-NET002: upstream unreachable or bad status
//   - SCH001-SCH002: column count or value errors
//   - INT001-INT002: load rejected or dangling references
//   - RUN001: a refresh is already running
//   - TBL001: unknown table (browse server)
package sde
