package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nearindexer/streamer/internal/batch"
	"github.com/nearindexer/streamer/internal/egress"
	"github.com/nearindexer/streamer/internal/genesis"
	"github.com/nearindexer/streamer/internal/lake"
	"github.com/nearindexer/streamer/internal/model"
	"github.com/nearindexer/streamer/internal/progress"
	"github.com/nearindexer/streamer/internal/provenance"
	"github.com/nearindexer/streamer/internal/rpc"
	"github.com/nearindexer/streamer/internal/store"
	"github.com/nearindexer/streamer/internal/transform"
	"github.com/nearindexer/streamer/pkg/config"
	"github.com/nearindexer/streamer/pkg/retry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "near-indexer",
		Short: "streams NEAR mainnet into the downstream GraphQL ingestion endpoint",
		RunE:  run,
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.StandardLogger()

	cfg, err := config.Load(".env")
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracker := provenance.New(cfg.ProvenanceMaxAge, cfg.ProvenanceFixedPointPasses)
	xf := transform.New(tracker)
	acc := batch.New(cfg.BatchThreshold)

	statusClient, err := rpc.New(cfg.RpcURL, nil, rate.NewLimiter(rate.Limit(1), 1), time.Second)
	if err != nil {
		log.WithError(err).Fatal("failed to build rpc status client")
	}
	reporter := progress.New(statusClient, log, tracker.Misses, time.Duration(cfg.ProgressMinIntervalSeconds)*time.Second)

	egressClient := egress.New(cfg.EgressURL, nil, log, retry.Policy{
		MaxAttempts:  cfg.EgressMaxRetries,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	})

	var localStore store.Store
	if cfg.DatabaseURL != "" {
		if NewStore == nil {
			log.WithField("database_url", cfg.DatabaseURL).
				Warn("DATABASE_URL is set but this build has no store.Store backend wired in; continuing without a local store")
		} else {
			localStore, err = NewStore(cfg.DatabaseURL)
			if err != nil {
				log.WithError(err).Fatal("failed to open local store")
			}
			defer localStore.Close()
		}
	}

	if cfg.IncludeGenesis() {
		genesisClient := genesis.New("", nil)
		accounts, accessKeys, err := genesisClient.Fetch(ctx)
		if err != nil {
			log.WithError(err).Fatal("failed to fetch genesis state")
		}
		acc.AddGenesis(model.GenesisBlockData{Accounts: accounts, AccessKeys: accessKeys})
		log.WithFields(logrus.Fields{"accounts": len(accounts), "access_keys": len(accessKeys)}).Info("genesis loaded")
	}

	messages, streamErrs := StreamFunc(ctx, lake.MainnetConfig(cfg.StartBlockHeight))

	for msg := range messages {
		blockData, deletedAccountIDs := xf.Transform(msg)

		if payload, flushed := acc.Add(blockData, deletedAccountIDs); flushed {
			writeToLocalStore(log, localStore, payload)
			if err := flushPayload(ctx, egressClient, payload); err != nil {
				log.WithError(err).Error("egress failed; aborting run")
				return err
			}
		}

		reporter.Tick(ctx, blockData.Block.Height)
	}

	if payload, flushed := acc.Flush(); flushed {
		writeToLocalStore(log, localStore, payload)
		if err := flushPayload(ctx, egressClient, payload); err != nil {
			log.WithError(err).Error("final egress failed")
			return err
		}
	}

	if err := <-streamErrs; err != nil {
		log.WithError(err).Error("upstream stream ended with an error")
		return err
	}
	return nil
}

func flushPayload(ctx context.Context, client *egress.Client, payload batch.Payload) error {
	if err := client.SendGenesis(ctx, payload.Genesis); err != nil {
		return err
	}
	if err := client.SendBlocks(ctx, payload.Blocks); err != nil {
		return err
	}
	return client.SendDeletedAccounts(ctx, payload.DeletedAccountIDs)
}

// writeToLocalStore mirrors a flushed payload into the optional local
// store, when one is wired in. A write failure here is logged and does
// not abort the run: spec.md §9 treats the local store as optional and
// out of the core pipeline, so only egress failures are fatal.
func writeToLocalStore(log logrus.FieldLogger, s store.Store, payload batch.Payload) {
	if s == nil {
		return
	}
	if payload.Genesis != nil {
		if err := s.PutGenesis(*payload.Genesis); err != nil {
			log.WithError(err).Warn("local store: failed to persist genesis data")
		}
	}
	for _, block := range payload.Blocks {
		if err := s.PutBlock(block); err != nil {
			log.WithError(err).WithField("block_height", block.Block.Height).
				Warn("local store: failed to persist block data")
		}
	}
	if len(payload.DeletedAccountIDs) > 0 {
		if err := s.DeleteAccounts(payload.DeletedAccountIDs); err != nil {
			log.WithError(err).Warn("local store: failed to persist deleted accounts")
		}
	}
}

// NewStore is set by the deployment's chosen store.Store backend (e.g. a
// Postgres implementation backed by DATABASE_URL, per the upstream
// source's app-db crate); it is a placeholder wiring point, since no
// concrete backend ships in this repository (spec.md §9 treats the
// local store as optional). Left nil, DATABASE_URL is accepted but
// unused.
var NewStore func(databaseURL string) (store.Store, error)

// StreamFunc is set by the deployment's chosen lake transport
// implementation (e.g. a near-lake-framework-equivalent client); it is
// a placeholder wiring point, since the upstream stream's concrete
// transport is outside this repository's scope (spec.md §6 describes
// its contract, not its implementation).
var StreamFunc lake.Stream = func(ctx context.Context, cfg lake.Config) (<-chan lake.StreamerMessage, <-chan error) {
	messages := make(chan lake.StreamerMessage)
	errs := make(chan error, 1)
	close(messages)
	errs <- nil
	close(errs)
	return messages, errs
}
