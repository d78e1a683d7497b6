// Package storage provides the daemon's durable state.
//
// It currently holds:
//   - The delivery ledger (which reminder instances were already sent)
//   - Daily check-in records
//
// Two drivers exist: a dependency-free file backend (journal + snapshot)
// and SQLite (optional build tag). Both enforce the ledger's uniqueness
// guarantee: marking a key that already exists is reported, not repeated.
package storage
