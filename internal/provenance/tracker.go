// Package provenance tracks the originating transaction hash of every
// receipt across a stream of blocks, per spec.md §4.1. A single Tracker
// is shared by the block transformer for the lifetime of a run.
package provenance

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// shardHintBuckets bounds the number of buckets ShardHint spreads receipt
// ids across, keeping debug/progress log fields compact.
const shardHintBuckets = 64

// DefaultMaxAge bounds how many blocks an R2T entry survives without a
// fresh propagation touching it. Parameterized per SPEC_FULL.md's
// Open Question decision #3 (PROVENANCE_MAX_AGE).
const DefaultMaxAge = 15

// DefaultFixedPointPasses bounds the number of passes the fixed-point
// step (rule 4) makes over the block's outcome-chain pairs.
const DefaultFixedPointPasses = 5

// entry is one R2T record: the originating transaction hash and how many
// blocks have elapsed since it was last refreshed.
type entry struct {
	txHash string
	age    int
}

// Tracker owns the two process-wide mappings R2T and D2T described in
// spec.md §4.1, plus the miss counter, behind a single RWMutex. Access is
// coarse: callers take the lock for the duration of one propagation step.
type Tracker struct {
	mu sync.RWMutex

	r2t map[string]entry  // receipt-id -> (tx-hash, age)
	d2t map[string]string // data-id -> tx-hash

	maxAge           int
	fixedPointPasses int
	misses           uint64
}

// New builds an empty Tracker. maxAge and fixedPointPasses fall back to
// DefaultMaxAge and DefaultFixedPointPasses when zero.
func New(maxAge, fixedPointPasses int) *Tracker {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if fixedPointPasses <= 0 {
		fixedPointPasses = DefaultFixedPointPasses
	}
	return &Tracker{
		r2t:              make(map[string]entry),
		d2t:              make(map[string]string),
		maxAge:           maxAge,
		fixedPointPasses: fixedPointPasses,
	}
}

// Lookup returns the originating tx-hash for receiptID, if known. A miss
// is not an error: callers increment their own bookkeeping via Miss.
func (t *Tracker) Lookup(receiptID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.r2t[receiptID]
	if !ok {
		return "", false
	}
	return e.txHash, true
}

// Miss records that a receipt's provenance could not be resolved.
func (t *Tracker) Miss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.misses++
}

// Misses returns the total number of unresolved provenance lookups
// observed since the tracker was created.
func (t *Tracker) Misses() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.misses
}

// Size reports the current number of live R2T entries, used by tests to
// assert the age-eviction bound in spec.md §8.
func (t *Tracker) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.r2t)
}

// ShardHint buckets a receipt id into a small, stable number, letting
// callers group log fields by bucket instead of logging raw receipt ids.
// It has no bearing on provenance resolution itself.
func ShardHint(receiptID string) uint32 {
	return uint32(xxhash.Sum64String(receiptID) % shardHintBuckets)
}

// seed inserts or refreshes an R2T entry at age zero. Callers must hold
// the write lock.
func (t *Tracker) seed(receiptID, txHash string) {
	t.r2t[receiptID] = entry{txHash: txHash, age: 0}
}

// OutcomeChainPair is one (executed-receipt-id, produced-receipt-id) link
// observed in a block's execution outcomes, consumed by PropagateOutcomes
// and the fixed-point pass.
type OutcomeChainPair struct {
	ExecutedReceiptID string
	ProducedReceiptID string
}

// PropagateOutcomes runs rule 1 of §4.1: for every pair whose executed
// side already has a known tx-hash, copy it to the produced side at age
// zero. Pairs whose executed side is unknown are returned unchanged so
// the caller can retry them in the fixed-point pass (rule 4).
func (t *Tracker) PropagateOutcomes(pairs []OutcomeChainPair) (remaining []OutcomeChainPair) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range pairs {
		if e, ok := t.r2t[p.ExecutedReceiptID]; ok {
			t.seed(p.ProducedReceiptID, e.txHash)
			continue
		}
		remaining = append(remaining, p)
	}
	return remaining
}

// SeedTransaction runs rule 2 of §4.1: insert txHash at age zero for the
// transaction's own outcome record and its first produced receipt, if
// any. Either id may be empty, in which case it is skipped.
func (t *Tracker) SeedTransaction(txHash, outcomeReceiptID, firstProducedReceiptID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if outcomeReceiptID != "" {
		t.seed(outcomeReceiptID, txHash)
	}
	if firstProducedReceiptID != "" {
		t.seed(firstProducedReceiptID, txHash)
	}
}

// RedeemDataID runs rule 3 of §4.1: if dataID has a pending tx-hash in
// D2T, remove it and seed receiptID in R2T with that tx-hash. Reports
// whether redemption happened so the caller can record a miss otherwise.
func (t *Tracker) RedeemDataID(receiptID, dataID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	txHash, ok := t.d2t[dataID]
	if !ok {
		return false
	}
	delete(t.d2t, dataID)
	t.seed(receiptID, txHash)
	return true
}

// FixedPoint runs rule 4 of §4.1 over the full set of outcome-chain pairs
// gathered across a block's shards. It removes and propagates pairs
// whose executed side becomes resolvable, for up to t.fixedPointPasses
// rounds, stopping early once a round makes no progress. Pairs still
// unresolved afterward are dropped and counted as misses.
func (t *Tracker) FixedPoint(pairs []OutcomeChainPair) {
	remaining := pairs
	for pass := 0; pass < t.fixedPointPasses && len(remaining) > 0; pass++ {
		next := t.resolvePass(remaining)
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}
	if len(remaining) > 0 {
		t.mu.Lock()
		t.misses += uint64(len(remaining))
		t.mu.Unlock()
	}
}

func (t *Tracker) resolvePass(pairs []OutcomeChainPair) (remaining []OutcomeChainPair) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range pairs {
		if e, ok := t.r2t[p.ExecutedReceiptID]; ok {
			t.seed(p.ProducedReceiptID, e.txHash)
			continue
		}
		remaining = append(remaining, p)
	}
	return remaining
}

// RegisterOutputData runs rule 5 of §4.1: whenever an ACTION receipt is
// successfully annotated with a tx-hash, every id in its
// output_data_receivers is registered in D2T so a later DATA receipt can
// be redeemed via RedeemDataID.
func (t *Tracker) RegisterOutputData(txHash string, outputDataIDs []string) {
	if len(outputDataIDs) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range outputDataIDs {
		t.d2t[id] = txHash
	}
}

// EvictAged runs rule 6 of §4.1: after a block is emitted, every R2T
// entry's age increments by one, and entries reaching maxAge are removed.
func (t *Tracker) EvictAged() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.r2t {
		e.age++
		if e.age >= t.maxAge {
			delete(t.r2t, id)
			continue
		}
		t.r2t[id] = e
	}
}
