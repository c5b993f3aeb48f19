package provenance

import "testing"

func TestShardHintIsStableAndBounded(t *testing.T) {
	a := ShardHint("receipt-123")
	b := ShardHint("receipt-123")
	if a != b {
		t.Fatalf("expected ShardHint to be deterministic, got %d then %d", a, b)
	}
	if a >= shardHintBuckets {
		t.Fatalf("expected ShardHint < %d, got %d", shardHintBuckets, a)
	}
}

func TestSeedTransactionThenLookup(t *testing.T) {
	tr := New(0, 0)
	tr.SeedTransaction("tx1", "outcome-r1", "r2")

	if got, ok := tr.Lookup("outcome-r1"); !ok || got != "tx1" {
		t.Fatalf("expected outcome-r1 -> tx1, got %q ok=%v", got, ok)
	}
	if got, ok := tr.Lookup("r2"); !ok || got != "tx1" {
		t.Fatalf("expected r2 -> tx1, got %q ok=%v", got, ok)
	}
	if _, ok := tr.Lookup("unknown"); ok {
		t.Fatalf("expected unknown receipt to miss")
	}
}

func TestPropagateOutcomesCopiesKnownChains(t *testing.T) {
	tr := New(0, 0)
	tr.SeedTransaction("tx1", "r1", "")

	remaining := tr.PropagateOutcomes([]OutcomeChainPair{
		{ExecutedReceiptID: "r1", ProducedReceiptID: "r2"},
		{ExecutedReceiptID: "unknown", ProducedReceiptID: "r3"},
	})

	if got, ok := tr.Lookup("r2"); !ok || got != "tx1" {
		t.Fatalf("expected r2 -> tx1, got %q ok=%v", got, ok)
	}
	if len(remaining) != 1 || remaining[0].ProducedReceiptID != "r3" {
		t.Fatalf("expected r3's pair to remain unresolved, got %v", remaining)
	}
}

func TestRedeemDataIDConsumesPendingEntry(t *testing.T) {
	tr := New(0, 0)
	tr.RegisterOutputData("tx1", []string{"d1", "d2"})

	if !tr.RedeemDataID("receipt-for-d1", "d1") {
		t.Fatalf("expected redemption of d1 to succeed")
	}
	if got, ok := tr.Lookup("receipt-for-d1"); !ok || got != "tx1" {
		t.Fatalf("expected receipt-for-d1 -> tx1, got %q ok=%v", got, ok)
	}
	// d1 is consumed; redeeming again must fail.
	if tr.RedeemDataID("receipt-for-d1-again", "d1") {
		t.Fatalf("expected second redemption of d1 to fail")
	}
}

func TestRedeemDataIDMissesWhenNeverRegistered(t *testing.T) {
	tr := New(0, 0)
	if tr.RedeemDataID("r1", "never-registered") {
		t.Fatalf("expected redemption of an unregistered data-id to fail")
	}
}

func TestFixedPointResolvesChainAcrossPasses(t *testing.T) {
	tr := New(0, 3)
	tr.SeedTransaction("tx1", "r1", "")

	// A 3-hop chain: r1 -> r2 -> r3 -> r4, fed out of dependency order so
	// a single pass cannot resolve all of it.
	tr.FixedPoint([]OutcomeChainPair{
		{ExecutedReceiptID: "r3", ProducedReceiptID: "r4"},
		{ExecutedReceiptID: "r2", ProducedReceiptID: "r3"},
		{ExecutedReceiptID: "r1", ProducedReceiptID: "r2"},
	})

	for _, id := range []string{"r2", "r3", "r4"} {
		if got, ok := tr.Lookup(id); !ok || got != "tx1" {
			t.Fatalf("expected %s -> tx1, got %q ok=%v", id, got, ok)
		}
	}
}

func TestFixedPointDropsUnresolvableChainAsMiss(t *testing.T) {
	tr := New(0, 2)
	before := tr.Misses()

	tr.FixedPoint([]OutcomeChainPair{
		{ExecutedReceiptID: "ghost", ProducedReceiptID: "r1"},
	})

	if _, ok := tr.Lookup("r1"); ok {
		t.Fatalf("expected r1 to remain unresolved")
	}
	if got := tr.Misses(); got != before+1 {
		t.Fatalf("expected miss count to increase by 1, got %d -> %d", before, got)
	}
}

func TestEvictAgedRemovesEntriesAtMaxAge(t *testing.T) {
	tr := New(2, 0)
	tr.SeedTransaction("tx1", "r1", "")

	tr.EvictAged() // age 1
	if _, ok := tr.Lookup("r1"); !ok {
		t.Fatalf("expected r1 to survive age 1")
	}
	tr.EvictAged() // age 2, reaches maxAge
	if _, ok := tr.Lookup("r1"); ok {
		t.Fatalf("expected r1 to be evicted at age 2")
	}
}

func TestEvictAgedResetsOnRefresh(t *testing.T) {
	tr := New(2, 0)
	tr.SeedTransaction("tx1", "r1", "")
	tr.EvictAged() // age 1

	// Propagating from r1 seeds r2 fresh at age zero; r1 itself is not
	// refreshed by being read.
	tr.PropagateOutcomes([]OutcomeChainPair{{ExecutedReceiptID: "r1", ProducedReceiptID: "r2"}})
	tr.EvictAged() // r1 reaches age 2 and is evicted; r2 is age 1

	if _, ok := tr.Lookup("r2"); !ok {
		t.Fatalf("expected r2 to still be tracked")
	}
}

func TestBoundedSizeUnderRepeatedEviction(t *testing.T) {
	tr := New(15, 0)
	for i := 0; i < 100; i++ {
		tr.SeedTransaction("tx", "receipt-only-seen-once", "")
		tr.EvictAged()
	}
	if got := tr.Size(); got > 15 {
		t.Fatalf("expected size to stay bounded by maxAge, got %d", got)
	}
}
