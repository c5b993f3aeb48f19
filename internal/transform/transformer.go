// Package transform turns one upstream StreamerMessage into the record
// lists the rest of the pipeline batches and ships downstream, per
// spec.md §4.2. It is the one package that reads (and, via registration,
// writes) the shared provenance tracker.
package transform

import (
	"runtime"
	"sort"
	"sync"

	"github.com/nearindexer/streamer/internal/action"
	"github.com/nearindexer/streamer/internal/lake"
	"github.com/nearindexer/streamer/internal/model"
	"github.com/nearindexer/streamer/internal/provenance"
)

// Transformer produces BlockData for one block at a time, using a shared
// Tracker to resolve receipt provenance across the stream.
type Transformer struct {
	tracker *provenance.Tracker
}

// New builds a Transformer backed by tracker, which must outlive the
// Transformer and be shared by nothing else.
func New(tracker *provenance.Tracker) *Transformer {
	return &Transformer{tracker: tracker}
}

// Transform implements the algorithm of spec.md §4.2: it runs the
// provenance pre-pass, fans out per-shard extraction across a bounded
// worker pool, derives account lifecycle events, then runs the
// fixed-point and age-eviction provenance steps before returning.
func (t *Transformer) Transform(msg lake.StreamerMessage) (model.BlockData, model.DeletedAccountIDs) {
	pending := t.runProvenancePrePass(msg)

	results := t.fanOutShards(msg)

	data := assemble(msg.Block, results)

	t.tracker.FixedPoint(pending)
	t.tracker.EvictAged()

	return data, collectDeletedAccounts(results)
}

// runProvenancePrePass runs §4.1 steps 1–3 synchronously over the whole
// block and returns the outcome-chain pairs step 1 could not resolve,
// for the caller to retry via the fixed-point pass once the block's
// transaction seeding (step 2) has run.
func (t *Transformer) runProvenancePrePass(msg lake.StreamerMessage) []provenance.OutcomeChainPair {
	var pairs []provenance.OutcomeChainPair
	for _, shard := range msg.Shards {
		for _, outcome := range shard.ReceiptExecutionOutcomes {
			for _, produced := range outcome.ProducedReceiptIDs {
				pairs = append(pairs, provenance.OutcomeChainPair{
					ExecutedReceiptID: outcome.ReceiptID,
					ProducedReceiptID: produced,
				})
			}
		}
	}
	remaining := t.tracker.PropagateOutcomes(pairs)

	for _, shard := range msg.Shards {
		if shard.Chunk == nil {
			continue
		}
		for _, tx := range shard.Chunk.Transactions {
			t.tracker.SeedTransaction(tx.Hash, tx.Hash, tx.Conversion.FirstProducedReceipt)
		}
	}

	for _, shard := range msg.Shards {
		if shard.Chunk == nil {
			continue
		}
		for _, r := range shard.Chunk.Receipts {
			if r.Data == nil {
				continue
			}
			// A failed redemption here is not itself counted as a miss:
			// the receipt's Receipt record is what's actually omitted,
			// and that omission is counted once, by extractReceipt's own
			// Lookup below.
			t.tracker.RedeemDataID(r.ReceiptID, r.Data.DataID)
		}
	}

	return remaining
}

// fanOutShards runs per-shard extraction concurrently, bounded to
// runtime.GOMAXPROCS workers, and returns results sorted by ascending
// shard-id so assembly is deterministic regardless of scheduling order.
func (t *Transformer) fanOutShards(msg lake.StreamerMessage) []shardResult {
	results := make([]shardResult, len(msg.Shards))

	sem := make(chan struct{}, max(1, runtime.GOMAXPROCS(0)))
	var wg sync.WaitGroup
	wg.Add(len(msg.Shards))

	for i, shard := range msg.Shards {
		i, shard := i, shard
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = t.extractShard(msg.Block, shard)
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].shardID < results[j].shardID })
	return results
}

// shardResult is everything one shard's extraction contributes to the
// block's BlockData, plus its shard-id for deterministic ordering.
type shardResult struct {
	shardID uint64

	chunks                   []model.Chunk
	transactions              []model.Transaction
	transactionActions        []model.TransactionAction
	receipts                  []model.Receipt
	dataReceipts              []model.DataReceipt
	actionReceipts            []model.ActionReceipt
	actionReceiptActions       []model.ActionReceiptAction
	actionReceiptInputData     []model.ActionReceiptInputData
	actionReceiptOutputData    []model.ActionReceiptOutputData
	executionOutcomes          []model.ExecutionOutcome
	executionOutcomeReceipts   []model.ExecutionOutcomeReceipt
	accountChanges             []model.AccountChange
	accounts                   []model.Account
	accessKeys                 []model.AccessKey
	deletedAccountIDs          []string
}

// extractShard runs step 2 (per-receipt and per-transaction record
// emission) and step 3 (account lifecycle derivation) of spec.md §4.2
// for one shard. An empty shard (no chunk) contributes nothing.
func (t *Transformer) extractShard(block lake.BlockView, shard lake.IndexerShard) shardResult {
	res := shardResult{shardID: shard.ShardID}
	if shard.Chunk == nil {
		return res
	}
	chunk := shard.Chunk

	res.chunks = append(res.chunks, model.Chunk{
		Hash:      chunk.Hash,
		BlockHash: block.Hash,
		ShardID:   shard.ShardID,
		Signature: chunk.Signature,
		GasLimit:  chunk.GasLimit,
		GasUsed:   chunk.GasUsed,
		Author:    chunk.Author,
	})

	outcomeByReceipt := make(map[string]lake.ExecutionOutcomeView, len(shard.ReceiptExecutionOutcomes))
	for _, o := range shard.ReceiptExecutionOutcomes {
		outcomeByReceipt[o.ReceiptID] = o
	}

	for indexInChunk, r := range chunk.Receipts {
		t.extractReceipt(block, shard, r, indexInChunk, outcomeByReceipt, &res)
	}

	for indexInChunk, tx := range chunk.Transactions {
		res.transactions = append(res.transactions, model.Transaction{
			Hash:           tx.Hash,
			BlockHash:      block.Hash,
			ChunkHash:      chunk.Hash,
			IndexInChunk:   indexInChunk,
			TimestampNanos: block.TimestampNanos,
			SignerID:       tx.SignerID,
			PublicKey:      tx.PublicKey,
			Nonce:          tx.Nonce,
			ReceiverID:     tx.ReceiverID,
			Signature:      tx.Signature,
			Conversion: model.ConversionOutcome{
				Status:               tx.Conversion.Status,
				FirstProducedReceipt: tx.Conversion.FirstProducedReceipt,
				GasBurnt:             tx.Conversion.GasBurnt,
				TokensBurnt:          tx.Conversion.TokensBurnt,
			},
		})
		for actionIndex, av := range tx.Actions {
			kind, args := action.Encode(toActionView(av))
			res.transactionActions = append(res.transactionActions, model.TransactionAction{
				TxHash:     tx.Hash,
				IndexInTx:  actionIndex,
				ActionKind: kind,
				Args:       args,
			})
		}
	}

	events := extractAccountEvents(shard.ReceiptExecutionOutcomes, chunk.Receipts, block.Height)
	res.accounts = append(res.accounts, events.accounts...)
	res.accessKeys = append(res.accessKeys, events.accessKeys...)
	res.deletedAccountIDs = append(res.deletedAccountIDs, events.deletedAccountIDs...)

	for indexInBlock, sc := range shard.StateChanges {
		if change, ok := extractAccountChange(sc, block.Hash, indexInBlock, block.TimestampNanos); ok {
			res.accountChanges = append(res.accountChanges, change)
		}
	}

	return res
}

// extractReceipt runs the per-receipt portion of step 2: one
// ActionReceipt or DataReceipt, the action receipt's children, the
// matching ExecutionOutcome (if any), and — if provenance is already
// known — a Receipt record. Successfully annotating an ACTION receipt
// with a tx-hash also registers its output data ids in D2T (§4.1 step 5).
func (t *Transformer) extractReceipt(block lake.BlockView, shard lake.IndexerShard, r lake.ReceiptView, indexInChunk int, outcomeByReceipt map[string]lake.ExecutionOutcomeView, res *shardResult) {
	txHash, known := t.tracker.Lookup(r.ReceiptID)
	if !known {
		t.tracker.Miss()
	} else {
		res.receipts = append(res.receipts, model.Receipt{
			ReceiptID:         r.ReceiptID,
			BlockHash:         block.Hash,
			ChunkHash:         shard.Chunk.Hash,
			IndexInChunk:      indexInChunk,
			TimestampNanos:    block.TimestampNanos,
			PredecessorID:     r.PredecessorID,
			ReceiverID:        r.ReceiverID,
			Kind:              receiptKind(r),
			OriginatingTxHash: txHash,
		})
	}

	switch {
	case r.Action != nil:
		res.actionReceipts = append(res.actionReceipts, model.ActionReceipt{
			ReceiptID:       r.ReceiptID,
			SignerID:        r.Action.SignerID,
			SignerPublicKey: r.Action.SignerPublicKey,
			GasPrice:        r.Action.GasPrice,
		})
		for i, av := range r.Action.Actions {
			kind, args := action.Encode(toActionView(av))
			res.actionReceiptActions = append(res.actionReceiptActions, model.ActionReceiptAction{
				ReceiptID:      r.ReceiptID,
				Index:          i,
				ActionKind:     kind,
				Args:           args,
				PredecessorID:  r.PredecessorID,
				ReceiverID:     r.ReceiverID,
				TimestampNanos: block.TimestampNanos,
			})
		}
		for _, dataID := range r.Action.InputDataIDs {
			res.actionReceiptInputData = append(res.actionReceiptInputData, model.ActionReceiptInputData{
				ReceiptID: r.ReceiptID,
				DataID:    dataID,
			})
		}
		for _, out := range r.Action.OutputDataReceivers {
			res.actionReceiptOutputData = append(res.actionReceiptOutputData, model.ActionReceiptOutputData{
				ReceiptID:  r.ReceiptID,
				DataID:     out.DataID,
				ReceiverID: out.ReceiverID,
			})
		}
		if known && len(r.Action.OutputDataReceivers) > 0 {
			ids := make([]string, len(r.Action.OutputDataReceivers))
			for i, out := range r.Action.OutputDataReceivers {
				ids[i] = out.DataID
			}
			t.tracker.RegisterOutputData(txHash, ids)
		}

	case r.Data != nil:
		res.dataReceipts = append(res.dataReceipts, model.DataReceipt{
			DataID:        r.Data.DataID,
			ReceiptID:     r.ReceiptID,
			PayloadBase64: r.Data.PayloadBase64,
		})
	}

	if outcome, ok := outcomeByReceipt[r.ReceiptID]; ok {
		res.executionOutcomes = append(res.executionOutcomes, model.ExecutionOutcome{
			ReceiptID:      outcome.ReceiptID,
			BlockHash:      block.Hash,
			ChunkIndex:     indexInChunk,
			TimestampNanos: block.TimestampNanos,
			GasBurnt:       outcome.GasBurnt,
			TokensBurnt:    outcome.TokensBurnt,
			ExecutorID:     outcome.ExecutorID,
			StatusTag:      outcome.Status,
			ShardID:        shard.ShardID,
		})
		for i, produced := range outcome.ProducedReceiptIDs {
			res.executionOutcomeReceipts = append(res.executionOutcomeReceipts, model.ExecutionOutcomeReceipt{
				ReceiptID:         outcome.ReceiptID,
				Index:             i,
				ProducedReceiptID: produced,
			})
		}
	}
}

func receiptKind(r lake.ReceiptView) model.ReceiptKind {
	if r.Data != nil {
		return model.ReceiptKindData
	}
	return model.ReceiptKindAction
}

// toActionView adapts the upstream lake.ActionView sum type to the
// action package's View, which the encoder consumes.
func toActionView(v lake.ActionView) action.View {
	out := action.View{}
	switch {
	case v.CreateAccount != nil:
		out.CreateAccount = &action.CreateAccountView{}
	case v.DeployContract != nil:
		out.DeployContract = &action.DeployContractView{CodeBase64: v.DeployContract.CodeBase64}
	case v.FunctionCall != nil:
		out.FunctionCall = &action.FunctionCallView{
			MethodName: v.FunctionCall.MethodName,
			ArgsBase64: v.FunctionCall.ArgsBase64,
			Gas:        v.FunctionCall.Gas,
			Deposit:    v.FunctionCall.Deposit,
		}
	case v.Transfer != nil:
		out.Transfer = &action.TransferView{Deposit: v.Transfer.Deposit}
	case v.Stake != nil:
		out.Stake = &action.StakeView{Stake: v.Stake.Stake, PublicKey: v.Stake.PublicKey}
	case v.AddKey != nil:
		out.AddKey = &action.AddKeyView{PublicKey: v.AddKey.PublicKey, AccessKey: v.AddKey.Permission}
	case v.Delegate != nil:
		out.Delegate = &action.DelegateView{DelegateAction: v.Delegate.DelegateAction, Signature: v.Delegate.Signature}
	case v.DeleteKey != nil:
		out.DeleteKey = &action.DeleteKeyView{PublicKey: v.DeleteKey.PublicKey}
	case v.DeleteAccount != nil:
		out.DeleteAccount = &action.DeleteAccountView{BeneficiaryID: v.DeleteAccount.BeneficiaryID}
	}
	return out
}

// assemble concatenates per-shard results, already sorted by ascending
// shard-id, into one BlockData (spec.md §4.2 "Determinism and ordering").
func assemble(block lake.BlockView, results []shardResult) model.BlockData {
	data := model.BlockData{
		Block: model.Block{
			Hash:           block.Hash,
			Height:         block.Height,
			PrevHash:       block.PrevHash,
			TimestampNanos: block.TimestampNanos,
			TotalSupply:    block.TotalSupply,
			GasPrice:       block.GasPrice,
			Author:         block.Author,
		},
	}
	for _, r := range results {
		data.Chunks = append(data.Chunks, r.chunks...)
		data.Transactions = append(data.Transactions, r.transactions...)
		data.TransactionActions = append(data.TransactionActions, r.transactionActions...)
		data.Receipts = append(data.Receipts, r.receipts...)
		data.DataReceipts = append(data.DataReceipts, r.dataReceipts...)
		data.ActionReceipts = append(data.ActionReceipts, r.actionReceipts...)
		data.ActionReceiptActions = append(data.ActionReceiptActions, r.actionReceiptActions...)
		data.ActionReceiptInputData = append(data.ActionReceiptInputData, r.actionReceiptInputData...)
		data.ActionReceiptOutputData = append(data.ActionReceiptOutputData, r.actionReceiptOutputData...)
		data.ExecutionOutcomes = append(data.ExecutionOutcomes, r.executionOutcomes...)
		data.ExecutionOutcomeReceipts = append(data.ExecutionOutcomeReceipts, r.executionOutcomeReceipts...)
		data.Accounts = append(data.Accounts, r.accounts...)
		data.AccessKeys = append(data.AccessKeys, r.accessKeys...)
		data.AccountChanges = append(data.AccountChanges, r.accountChanges...)
	}
	return data
}

func collectDeletedAccounts(results []shardResult) model.DeletedAccountIDs {
	var ids model.DeletedAccountIDs
	for _, r := range results {
		ids = append(ids, r.deletedAccountIDs...)
	}
	return ids
}
