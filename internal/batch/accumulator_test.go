package batch

import (
	"testing"

	"github.com/nearindexer/streamer/internal/model"
)

func TestAddFlushesAtThreshold(t *testing.T) {
	acc := New(3)
	for i := 0; i < 2; i++ {
		if _, flushed := acc.Add(model.BlockData{}, nil); flushed {
			t.Fatalf("expected no flush before threshold, block %d", i)
		}
	}
	payload, flushed := acc.Add(model.BlockData{}, nil)
	if !flushed {
		t.Fatalf("expected a flush at threshold")
	}
	if len(payload.Blocks) != 3 {
		t.Fatalf("expected 3 blocks in the flushed payload, got %d", len(payload.Blocks))
	}
}

func TestAddResetsAfterFlush(t *testing.T) {
	acc := New(2)
	acc.Add(model.BlockData{}, nil)
	acc.Add(model.BlockData{}, nil) // flushes

	if _, flushed := acc.Add(model.BlockData{}, nil); flushed {
		t.Fatalf("expected the accumulator to start a fresh batch after flushing")
	}
}

func TestGenesisIncludedInNextFlush(t *testing.T) {
	acc := New(1)
	acc.AddGenesis(model.GenesisBlockData{Accounts: []model.Account{{AccountID: "a"}}})

	payload, flushed := acc.Add(model.BlockData{}, nil)
	if !flushed {
		t.Fatalf("expected a flush")
	}
	if payload.Genesis == nil || len(payload.Genesis.Accounts) != 1 {
		t.Fatalf("expected genesis to be included in the flushed payload, got %+v", payload.Genesis)
	}
}

func TestDeletedAccountIDsAccumulateAcrossBlocks(t *testing.T) {
	acc := New(2)
	acc.Add(model.BlockData{}, []string{"a"})
	payload, flushed := acc.Add(model.BlockData{}, []string{"b", "c"})
	if !flushed {
		t.Fatalf("expected a flush")
	}
	if len(payload.DeletedAccountIDs) != 3 {
		t.Fatalf("expected 3 deleted account ids, got %d", len(payload.DeletedAccountIDs))
	}
}

func TestFlushForcesOutUnderfullBatch(t *testing.T) {
	acc := New(100)
	acc.Add(model.BlockData{}, nil)

	payload, flushed := acc.Flush()
	if !flushed {
		t.Fatalf("expected Flush to force out the pending batch")
	}
	if len(payload.Blocks) != 1 {
		t.Fatalf("expected 1 block in the forced flush, got %d", len(payload.Blocks))
	}
}

func TestFlushOnEmptyAccumulatorDoesNothing(t *testing.T) {
	acc := New(100)
	if _, flushed := acc.Flush(); flushed {
		t.Fatalf("expected no flush from an empty accumulator")
	}
}
