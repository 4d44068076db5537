// Package core provides the business logic for roster reconciliation and
// registration.
//
// This package contains all domain logic independent of any UI or transport
// layer. It is used by the HTTP server, the rosterctl CLI and tests without
// modification.
//
// # Pipeline
//
// Data flows one way through four read-side stages, then, after a human has
// reviewed the report, into the write side:
//
//  1. [RowValidator] turns each untyped [RawRecord] into an [ImportRow] or
//     field-level [FieldErrors]. Bad rows are reported, never thrown.
//  2. [Resolver] classifies valid rows as new, matched or conflict using at
//     most two batched store reads (fis_num and natural key).
//  3. [SuggestDivision] maps a gender token to one of the event's divisions.
//     [Service.EnsureDivisions] links the catalog's standard divisions to an
//     event that has none.
//  4. [BuildReport] assembles a [ReconcileReport] in input order.
//  5. [Registrar] commits the approved rows in one transaction. Any row that
//     cannot be resolved rolls the whole batch back.
//
// # Storage
//
// The [Store] interface abstracts the canonical athlete store.
// [PostgresStore] implements it on pgx; the memstore package provides an
// in-memory implementation for tests.
//
// # Error Handling
//
// Typed errors ([HeaderError], [DivisionBootstrapError], [CommitAbortError],
// [AuthorizationError], [TransientStoreError]) match package sentinels with
// errors.Is. [MapError] turns any error into a [UserMessage] with a support code.
package core
