package sde

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "unreachable source",
			err:      &NetworkError{URL: "https://example.com/x.csv", Err: errors.New("connection refused")},
			wantCode: "NET001",
		},
		{
			name:     "bad status",
			err:      &NetworkError{URL: "https://example.com/x.csv", Status: 503},
			wantCode: "NET002",
		},
		{
			name:     "column count through wrapping",
			err:      fmt.Errorf("type extract: %w", &SchemaError{Source: "type", Line: 4, Err: fmt.Errorf("%w: expected 14 columns, got 13", ErrColumnCount)}),
			wantCode: "SCH001",
		},
		{
			name:     "bad value",
			err:      &SchemaError{Source: "group", Err: errors.New("not an integer")},
			wantCode: "SCH002",
		},
		{
			name:     "load rejected",
			err:      &IntegrityError{Table: "sde_type", Err: errors.New("duplicate key")},
			wantCode: "INT001",
		},
		{
			name:     "dangling reference",
			err:      &IntegrityError{Err: fmt.Errorf("%w: sde_group", store.ErrDanglingReference)},
			wantCode: "INT002",
		},
		{
			name:     "refresh already running",
			err:      ErrRefreshRunning,
			wantCode: "RUN001",
		},
		{
			name:     "unknown table",
			err:      fmt.Errorf("browse: %w", store.ErrUnknownTable),
			wantCode: "TBL001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && (got.Message == "" || got.Action == "") {
				t.Errorf("MapError() = %+v, want message and action", got)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(&NetworkError{URL: "https://example.com/t.md5", Status: 404})
	if !strings.Contains(got, "(Code: NET002)") || !strings.Contains(got, "404") {
		t.Errorf("FormatUserError() = %q", got)
	}
}

func TestErrorStrings(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&NetworkError{URL: "u", Status: 500}, "fetch u: unexpected status 500"},
		{&NetworkError{URL: "u", Err: errors.New("boom")}, "fetch u: boom"},
		{&SchemaError{Source: "type", Line: 3, Err: errors.New("bad")}, "schema type line 3: bad"},
		{&SchemaError{Source: "type", Err: errors.New("bad")}, "schema type: bad"},
		{&IntegrityError{Table: "sde_group", Err: errors.New("bad")}, "integrity sde_group: bad"},
		{&IntegrityError{Err: errors.New("bad")}, "integrity: bad"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(fmt.Errorf("wrapped: %w", &SchemaError{Err: errors.New("x")})) {
		t.Error("wrapped SchemaError should be fatal")
	}
	if IsFatal(errors.New("plain")) {
		t.Error("plain error should not be fatal")
	}
}
