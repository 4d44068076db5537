package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below match them with errors.Is.
var (
	ErrValidation          = errors.New("row validation failed")
	ErrMissingHeaders      = errors.New("missing required column")
	ErrDivisionBootstrap   = errors.New("division bootstrap failed")
	ErrCommitAborted       = errors.New("commit aborted")
	ErrUnauthorized        = errors.New("not authorized")
	ErrTransientStore      = errors.New("store unavailable")
	ErrTooManyImports      = errors.New("too many concurrent imports, please try again later")
	ErrDuplicateExternalID = errors.New("fis_num already belongs to another athlete")
	ErrAthleteNotFound     = errors.New("athlete not found")
	ErrEmptyFile           = errors.New("empty file")
	ErrTooManyRows         = errors.New("too many rows")
	ErrInvalidCSV          = errors.New("invalid csv")
	ErrInvalidRequest      = errors.New("invalid request")
)

// HeaderError reports required columns absent from the input.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

func (e *HeaderError) Is(target error) bool {
	return target == ErrMissingHeaders
}

// DivisionBootstrapError means the catalog lacks a standard division the
// event needs. Nothing was linked.
type DivisionBootstrapError struct {
	EventID int64
	Missing []string
}

func (e *DivisionBootstrapError) Error() string {
	return fmt.Sprintf("division bootstrap failed for event %d: catalog has no division for %s",
		e.EventID, strings.Join(e.Missing, ", "))
}

func (e *DivisionBootstrapError) Is(target error) bool {
	return target == ErrDivisionBootstrap
}

// CommitAbortError means the whole batch was rolled back because of one row.
type CommitAbortError struct {
	RowIndex int
	Reason   string
	Err      error
}

func (e *CommitAbortError) Error() string {
	return fmt.Sprintf("commit aborted at row %d: %s", e.RowIndex, e.Reason)
}

func (e *CommitAbortError) Is(target error) bool {
	return target == ErrCommitAborted
}

func (e *CommitAbortError) Unwrap() error {
	return e.Err
}

// AuthorizationError means the caller's role is not on the allow-list.
type AuthorizationError struct {
	Role string
}

func (e *AuthorizationError) Error() string {
	if e.Role == "" {
		return "not authorized: no role presented"
	}
	return fmt.Sprintf("not authorized: role %q may not import rosters", e.Role)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrUnauthorized
}

// TransientStoreError wraps a store failure that is not caused by the data,
// such as a dropped connection. It is never retried.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Is(target error) bool {
	return target == ErrTransientStore
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}
