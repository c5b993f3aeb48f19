package config

import (
	"os"
	"testing"

	"github.com/nearindexer/streamer/internal/testutil"
)

func TestLoadDefaults(t *testing.T) {
	clearIndexerEnv(t)

	cfg := FromEnv()
	if cfg.StartBlockHeight != 0 {
		t.Fatalf("expected default start height 0, got %d", cfg.StartBlockHeight)
	}
	if !cfg.IncludeGenesis() {
		t.Fatalf("expected genesis to be included at height 0")
	}
	if cfg.BatchThreshold != defaultBatchThreshold {
		t.Fatalf("expected default batch threshold %d, got %d", defaultBatchThreshold, cfg.BatchThreshold)
	}
	if cfg.EgressURL != defaultEgressURL {
		t.Fatalf("expected default egress URL, got %q", cfg.EgressURL)
	}
	if cfg.RpcURL != defaultRpcURL {
		t.Fatalf("expected default rpc URL, got %q", cfg.RpcURL)
	}
}

func TestLoadFromDotfile(t *testing.T) {
	clearIndexerEnv(t)

	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	dotfile := "START_BLOCK_HEIGHT=60000000\nBATCH_THRESHOLD=25\n"
	if err := sb.WriteFile(".env", []byte(dotfile), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(sb.Path(".env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StartBlockHeight != 60000000 {
		t.Fatalf("expected start height 60000000, got %d", cfg.StartBlockHeight)
	}
	if cfg.IncludeGenesis() {
		t.Fatalf("expected genesis to be excluded at a non-zero start height")
	}
	if cfg.BatchThreshold != 25 {
		t.Fatalf("expected batch threshold 25, got %d", cfg.BatchThreshold)
	}
}

func TestLoadMissingDotfileIsNotAnError(t *testing.T) {
	clearIndexerEnv(t)

	if _, err := Load("/nonexistent/path/.env"); err != nil {
		t.Fatalf("expected a missing dotfile to be tolerated, got %v", err)
	}
}

func clearIndexerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"START_BLOCK_HEIGHT", "DATABASE_URL", "BATCH_THRESHOLD",
		"PROVENANCE_MAX_AGE", "PROVENANCE_FIXED_POINT_PASSES",
		"EGRESS_URL", "EGRESS_MAX_RETRIES", "PROGRESS_MIN_INTERVAL_SECONDS", "RPC_URL",
	} {
		_ = os.Unsetenv(key)
	}
}
