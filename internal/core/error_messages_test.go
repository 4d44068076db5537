package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "authorization", err: &AuthorizationError{Role: "viewer"}, wantCode: "AUTH001"},
		{name: "headers", err: &HeaderError{Missing: []string{"dob"}}, wantCode: "HDR001"},
		{name: "division bootstrap", err: &DivisionBootstrapError{EventID: 1, Missing: []string{"FEMALE"}}, wantCode: "DIV001"},
		{name: "commit abort", err: &CommitAbortError{RowIndex: 2, Reason: "division assignment missing"}, wantCode: "COM001"},
		{
			name:     "commit abort caused by validation",
			err:      &CommitAbortError{RowIndex: 2, Err: FieldErrors{{Field: "dob", Message: "required field is empty"}}},
			wantCode: "VAL001",
		},
		{
			name:     "commit abort caused by transient store",
			err:      &CommitAbortError{RowIndex: 0, Err: &TransientStoreError{Op: "insert", Err: errors.New("conn closed")}},
			wantCode: "DB001",
		},
		{name: "duplicate fis_num wrapped", err: fmt.Errorf("update athlete: %w", ErrDuplicateExternalID), wantCode: "COM002"},
		{name: "too many imports", err: ErrTooManyImports, wantCode: "IMP001"},
		{name: "empty file", err: ErrEmptyFile, wantCode: "IMP003"},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), wantCode: "IMP007"},
		{name: "body too large pattern", err: errors.New("http: request body too large"), wantCode: "IMP002"},
		{name: "connection refused pattern", err: errors.New("dial tcp: connection refused"), wantCode: "DB002"},
		{name: "pattern is case-insensitive", err: errors.New("DEADLOCK detected"), wantCode: "DB003"},
		{name: "unknown", err: errors.New("something odd"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
	got := FormatUserError(ErrTooManyImports)
	if !strings.Contains(got, "(Code: IMP001)") {
		t.Errorf("FormatUserError() = %q, want code suffix", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(ErrEmptyFile) {
		t.Error("ErrEmptyFile should be user facing")
	}
	if IsUserFacing(errors.New("panic: nil map")) {
		t.Error("unknown errors should not be user facing")
	}
}
