// Package store provides SQLite-backed durable storage for block run logs.
//
// The store is an append-only log with two tables:
//   - runs: one row per executed block (run id, task, block label, timing,
//     final status)
//   - entries: one row per logged (group, field, value) triple
//
// # Ordering
//
// Entries are ordered by a per-run seq (logical clock), never by
// timestamp. Producers stamp wall-clock time at push; that time is stored
// verbatim in ts for analysis but plays no part in ordering. All reads use
// ORDER BY seq ASC.
//
// # Values
//
// Values are stored as CBOR blobs in Core Deterministic Encoding, so the
// same logical value always yields the same bytes. Group and field names
// are NFC-normalized before storage.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
