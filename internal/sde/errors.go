package sde

// errors.go defines the failure taxonomy of a refresh and maps technical
// errors to short user-facing messages with a support code.
//
// Every error here is fatal to the current run. None are retried; all of them
// abort the enclosing transaction so no partial table replacement is visible.
//
// # Network Errors (NET001-NET099)
//
//	NET001 - Source unreachable: the remote token or a CSV resource could not be fetched
//	NET002 - Bad status: the remote answered with a non-2xx status
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Column count: a CSV row does not match the documented positional layout
//	SCH002 - Bad value: a cell could not be converted to its column type
//
// # Integrity Errors (INT001-INT099)
//
//	INT001 - Load rejected: the store refused a delete or bulk insert
//	INT002 - Dangling reference: a row references an id missing after the load
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Refresh running: another refresh holds the process slot
//
// # Browse Errors (TBL001-TBL099)
//
//	TBL001 - Unknown table: the requested table is not mirrored
//
// # Default Error (ERR000)

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

// NetworkError reports that a remote resource was unreachable or answered
// with a non-2xx status.
type NetworkError struct {
	URL    string
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SchemaError reports a CSV whose shape or values do not match the expected
// positional layout.
type SchemaError struct {
	Source string // pipeline or resource name
	Line   int    // 1-indexed CSV line, 0 when not tied to a line
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("schema %s line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("schema %s: %v", e.Source, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// IntegrityError reports a storage-layer rejection during load or when
// referential checks are restored.
type IntegrityError struct {
	Table string
	Err   error
}

func (e *IntegrityError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("integrity: %v", e.Err)
	}
	return fmt.Sprintf("integrity %s: %v", e.Table, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// ErrColumnCount is wrapped by SchemaError when a row has the wrong width.
var ErrColumnCount = errors.New("column count mismatch")

// ErrDanglingReference is wrapped by IntegrityError when restored
// referential checks find rows pointing at missing ids.
var ErrDanglingReference = store.ErrDanglingReference

// UserMessage is a user-facing rendering of an error.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for details",
	Code:    "ERR000",
}

// MapError converts a technical error into a user-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var netErr *NetworkError
	var schemaErr *SchemaError
	var integrityErr *IntegrityError

	switch {
	case errors.As(err, &netErr):
		if netErr.Status != 0 {
			return UserMessage{
				Message: fmt.Sprintf("Upstream answered %d for %s", netErr.Status, netErr.URL),
				Action:  "The dump may be mid-publish; try again later",
				Code:    "NET002",
			}
		}
		return UserMessage{
			Message: "Static data source is unreachable",
			Action:  "Check network access to " + netErr.URL,
			Code:    "NET001",
		}
	case errors.As(err, &schemaErr):
		if errors.Is(err, ErrColumnCount) {
			return UserMessage{
				Message: "Upstream CSV layout changed (" + schemaErr.Source + ")",
				Action:  "Update the positional column mapping for this source",
				Code:    "SCH001",
			}
		}
		return UserMessage{
			Message: "Upstream CSV contains an unexpected value (" + schemaErr.Source + ")",
			Action:  "Inspect the source file for malformed rows",
			Code:    "SCH002",
		}
	case errors.As(err, &integrityErr):
		if errors.Is(err, ErrDanglingReference) {
			return UserMessage{
				Message: "Loaded rows reference missing records",
				Action:  "The upstream dump is inconsistent; previous data was kept",
				Code:    "INT002",
			}
		}
		return UserMessage{
			Message: "The database rejected the refreshed data",
			Action:  "Previous data was kept; check the logs for the failing table",
			Code:    "INT001",
		}
	case errors.Is(err, ErrRefreshRunning):
		return UserMessage{
			Message: "A refresh is already running",
			Action:  "Wait for it to finish and check the run log",
			Code:    "RUN001",
		}
	case errors.Is(err, store.ErrUnknownTable):
		return UserMessage{
			Message: "Table not found",
			Action:  "Pick one of the mirrored tables",
			Code:    "TBL001",
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsFatal reports whether err belongs to the refresh failure taxonomy.
func IsFatal(err error) bool {
	var netErr *NetworkError
	var schemaErr *SchemaError
	var integrityErr *IntegrityError
	return errors.As(err, &netErr) || errors.As(err, &schemaErr) || errors.As(err, &integrityErr)
}
