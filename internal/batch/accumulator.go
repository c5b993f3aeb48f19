// Package batch buffers transformed blocks until a configurable
// threshold is reached, then hands the driver one payload to ship
// downstream, per spec.md §4.3.
package batch

import "github.com/nearindexer/streamer/internal/model"

// DefaultThreshold is the number of blocks buffered before a flush,
// per spec.md §9's "fix the default at 100; make it a runtime
// parameter" design note.
const DefaultThreshold = 100

// Payload is one flushed bundle: at most one genesis snapshot (only ever
// present at the head of the stream), the blocks accumulated since the
// last flush, and the deleted-account-ids collected across those blocks.
type Payload struct {
	Genesis        *model.GenesisBlockData
	Blocks         []model.BlockData
	DeletedAccountIDs []string
}

func (p Payload) empty() bool {
	return p.Genesis == nil && len(p.Blocks) == 0 && len(p.DeletedAccountIDs) == 0
}

// Accumulator buffers input until threshold blocks have been added,
// emitting exactly one Payload per flush. It is not safe for concurrent
// use — the driver owns it and calls Add sequentially from the one
// cooperative loop that also owns the upstream channel (spec.md §5).
type Accumulator struct {
	threshold int
	pending   Payload
}

// New builds an Accumulator that flushes every threshold blocks.
// threshold falls back to DefaultThreshold when zero or negative.
func New(threshold int) *Accumulator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Accumulator{threshold: threshold}
}

// AddGenesis stashes the one-shot genesis snapshot to be included in the
// next flush, whenever that happens. It does not itself trigger a flush.
func (a *Accumulator) AddGenesis(g model.GenesisBlockData) {
	a.pending.Genesis = &g
}

// Add appends one transformed block (and any deleted-account-ids
// observed while producing it) to the pending payload. It returns the
// flushed Payload and true once threshold blocks have accumulated;
// otherwise it returns a zero Payload and false.
func (a *Accumulator) Add(block model.BlockData, deletedAccountIDs []string) (Payload, bool) {
	a.pending.Blocks = append(a.pending.Blocks, block)
	a.pending.DeletedAccountIDs = append(a.pending.DeletedAccountIDs, deletedAccountIDs...)

	if len(a.pending.Blocks) < a.threshold {
		return Payload{}, false
	}
	return a.flush()
}

// Flush forces out whatever is pending, even under threshold. The
// driver calls this only when it chooses to (spec.md §4.3 treats a
// residual under-full batch at end-of-stream as droppable); it is not
// called automatically.
func (a *Accumulator) Flush() (Payload, bool) {
	if a.pending.empty() {
		return Payload{}, false
	}
	return a.flush()
}

func (a *Accumulator) flush() (Payload, bool) {
	out := a.pending
	a.pending = Payload{}
	return out, true
}
