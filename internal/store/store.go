// Package store declares the optional local relational store this
// indexer can be wired to, per spec.md §9's "multiple source variants
// disagree on whether the local relational store exists at all" note
// and SPEC_FULL.md's Open Question decision: it stays interface-only,
// with no in-tree implementation; any connection pooling or write
// discipline belongs to the backend a deployment supplies.
package store

import "github.com/nearindexer/streamer/internal/model"

// Store persists the record lists a block transform produces. An
// implementation backed by DATABASE_URL (Postgres, per the upstream
// source's app-db crate) is left to the deployment that needs it; the
// driver runs without one.
type Store interface {
	PutGenesis(g model.GenesisBlockData) error
	PutBlock(b model.BlockData) error
	DeleteAccounts(accountIDs []string) error
	Close() error
}
