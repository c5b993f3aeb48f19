// Package config loads the indexer's environment/dotfile configuration.
package config

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/nearindexer/streamer/pkg/utils"
)

// Config is the full set of runtime-tunable values read from the
// environment. Everything has a documented default so the indexer can run
// with a bare environment.
type Config struct {
	// StartBlockHeight is the first block the lake stream should deliver.
	// Zero means "from genesis", which also gates the one-shot genesis load.
	StartBlockHeight uint64

	// DatabaseURL, when non-empty, addresses the optional local relational
	// store. The core pipeline does not require it.
	DatabaseURL string

	// BatchThreshold is the number of transformed blocks the batching stage
	// accumulates before it emits a payload.
	BatchThreshold int

	// ProvenanceMaxAge bounds how many blocks a receipt→tx mapping survives
	// in the provenance tracker without being refreshed.
	ProvenanceMaxAge int

	// ProvenanceFixedPointPasses bounds the outcome/produced-receipt
	// fixed-point propagation pass count run once per block.
	ProvenanceFixedPointPasses int

	// EgressURL is the downstream HTTP GraphQL ingestion endpoint.
	EgressURL string

	// RpcURL is the upstream node's JSON-RPC endpoint the progress
	// reporter polls for the chain's head height.
	RpcURL string

	// EgressMaxRetries bounds the egress client's exponential backoff retry
	// loop for transport failures and 5xx responses.
	EgressMaxRetries int

	// ProgressMinIntervalSeconds is the minimum real-time gap, in seconds, between
	// two progress-reporter RPC polls.
	ProgressMinIntervalSeconds int
}

const (
	defaultBatchThreshold             = 100
	defaultProvenanceMaxAge           = 15
	defaultProvenanceFixedPointPasses = 5
	defaultEgressURL                  = "https://api.shrm.workers.dev"
	defaultRpcURL                     = "https://rpc.mainnet.near.org"
	defaultEgressMaxRetries           = 5
	defaultProgressMinIntervalSeconds = 10
)

// Load reads a dotfile at path (if present — a missing file is not an
// error, matching how the indexer runs fine in a container with only real
// environment variables set) and then resolves Config from the process
// environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return nil, utils.Wrap(err, "load dotfile")
	}
	return FromEnv(), nil
}

// FromEnv resolves Config directly from the process environment, skipping
// any dotfile.
func FromEnv() *Config {
	return &Config{
		StartBlockHeight:           utils.EnvOrDefaultUint64("START_BLOCK_HEIGHT", 0),
		DatabaseURL:                utils.EnvOrDefault("DATABASE_URL", ""),
		BatchThreshold:             utils.EnvOrDefaultInt("BATCH_THRESHOLD", defaultBatchThreshold),
		ProvenanceMaxAge:           utils.EnvOrDefaultInt("PROVENANCE_MAX_AGE", defaultProvenanceMaxAge),
		ProvenanceFixedPointPasses: utils.EnvOrDefaultInt("PROVENANCE_FIXED_POINT_PASSES", defaultProvenanceFixedPointPasses),
		EgressURL:                  utils.EnvOrDefault("EGRESS_URL", defaultEgressURL),
		RpcURL:                     utils.EnvOrDefault("RPC_URL", defaultRpcURL),
		EgressMaxRetries:           utils.EnvOrDefaultInt("EGRESS_MAX_RETRIES", defaultEgressMaxRetries),
		ProgressMinIntervalSeconds: utils.EnvOrDefaultInt("PROGRESS_MIN_INTERVAL_SECONDS", defaultProgressMinIntervalSeconds),
	}
}

// IncludeGenesis reports whether the one-shot genesis load should run,
// per spec.md: genesis is only fetched when starting from height zero.
func (c *Config) IncludeGenesis() bool {
	return c.StartBlockHeight == 0
}
