// Package lake defines the upstream block-stream transport this indexer
// consumes: a typed channel of StreamerMessage values, one per finalized
// block, per spec.md §6's "Upstream" interface.
package lake

import (
	"context"

	"github.com/nearindexer/streamer/internal/model"
)

// Config selects which chain and starting height to stream from.
type Config struct {
	Network          string
	StartBlockHeight uint64
}

// MainnetConfig builds a Config for mainnet starting at height.
func MainnetConfig(startBlockHeight uint64) Config {
	return Config{Network: "mainnet", StartBlockHeight: startBlockHeight}
}

// BlockView is the subset of a finalized block's header the stream
// exposes, mirroring the Block entity of spec.md §3.
type BlockView struct {
	Hash           string
	Height         uint64
	PrevHash       string
	TimestampNanos int64
	TotalSupply    string
	GasPrice       string
	Author         string
}

// StateChangeCause tags why a state change was recorded, matching the
// update-reason enum of spec.md §3.
type StateChangeCause struct {
	Reason    model.UpdateReason
	TxHash    string // populated only for TRANSACTION_PROCESSING
	ReceiptID string // populated only for ACTION_RECEIPT_*, RECEIPT_PROCESSING and POSTPONED_RECEIPT
}

// AccountUpdateValue is the state-change value variant carrying a live
// account's balances and storage usage.
type AccountUpdateValue struct {
	AccountID    string
	NonStaked    string
	Staked       string
	StorageUsage uint64
}

// AccountDeletionValue is the state-change value variant recording an
// account's removal.
type AccountDeletionValue struct {
	AccountID string
}

// StateChangeValue is a sum type over the value variants this indexer
// consumes. Exactly one field is non-nil; all other upstream variants
// are represented by leaving both nil, which the account-change
// extractor filters out per spec.md §4.5.
type StateChangeValue struct {
	AccountUpdate   *AccountUpdateValue
	AccountDeletion *AccountDeletionValue
}

// StateChangeWithCause is one entry of a shard's state_changes list.
type StateChangeWithCause struct {
	Cause StateChangeCause
	Value StateChangeValue
}

// ChunkView is the per-shard body of a block: its header plus the
// transactions and receipts it carries.
type ChunkView struct {
	Hash         string
	ShardID      uint64
	Signature    string
	GasLimit     uint64
	GasUsed      uint64
	Author       string
	Transactions []TransactionView
	Receipts     []ReceiptView
}

// ConversionOutcomeView mirrors Transaction.conversion_outcome of spec.md §3.
type ConversionOutcomeView struct {
	Status               model.Status
	FirstProducedReceipt string
	GasBurnt              uint64
	TokensBurnt           string
}

// ActionView is the subset of an action's fields the pipeline needs to
// both encode it and drive account lifecycle derivation. Exactly one of
// the nine pointer fields is non-nil; see internal/action for the
// encoding of each.
type ActionView struct {
	CreateAccount  *CreateAccountActionView
	DeployContract *DeployContractActionView
	FunctionCall   *FunctionCallActionView
	Transfer       *TransferActionView
	Stake          *StakeActionView
	AddKey         *AddKeyActionView
	Delegate       *DelegateActionView
	DeleteKey      *DeleteKeyActionView
	DeleteAccount  *DeleteAccountActionView
}

type CreateAccountActionView struct{}
type DeployContractActionView struct{ CodeBase64 string }
type FunctionCallActionView struct {
	MethodName string
	ArgsBase64 string
	Gas        uint64
	Deposit    string
}
type TransferActionView struct{ Deposit string }
type StakeActionView struct {
	Stake     string
	PublicKey string
}
type AddKeyActionView struct {
	PublicKey string
	// Permission mirrors the access key permission granted, shaped for
	// direct JSON embedding into the ADD_KEY action's access_key field.
	Permission map[string]any
}
type DelegateActionView struct {
	DelegateAction map[string]any
	Signature      string
}
type DeleteKeyActionView struct{ PublicKey string }
type DeleteAccountActionView struct{ BeneficiaryID string }

// TransactionView is one signed transaction carried by a chunk.
type TransactionView struct {
	Hash       string
	SignerID   string
	PublicKey  string
	Nonce      uint64
	ReceiverID string
	Signature  string
	Actions    []ActionView
	Conversion ConversionOutcomeView
}

// ReceiptView is one cross-account message carried by a chunk.
// Exactly one of Action or Data is non-nil, matching ReceiptKind.
type ReceiptView struct {
	ReceiptID     string
	PredecessorID string
	ReceiverID    string
	Action        *ActionReceiptView
	Data          *DataReceiptView
}

// ActionReceiptView is the ACTION variant of ReceiptView.
type ActionReceiptView struct {
	SignerID         string
	SignerPublicKey  string
	GasPrice         string
	Actions          []ActionView
	InputDataIDs     []string
	OutputDataReceivers []DataReceiver
}

// DataReceiver is one entry of an action receipt's output_data_receivers,
// pairing a produced data-id with the account it's addressed to.
type DataReceiver struct {
	DataID     string
	ReceiverID string
}

// DataReceiptView is the DATA variant of ReceiptView.
type DataReceiptView struct {
	DataID        string
	PayloadBase64 *string
}

// ExecutionOutcomeView is the result of executing one receipt.
type ExecutionOutcomeView struct {
	ReceiptID         string
	ExecutorID        string
	GasBurnt          uint64
	TokensBurnt       string
	Status            model.Status
	ProducedReceiptIDs []string
}

// IndexerShard is one shard's contribution to a block message: its
// chunk (absent for an empty shard), the execution outcomes produced by
// receipts processed in it, and its observed state changes.
type IndexerShard struct {
	ShardID                  uint64
	Chunk                    *ChunkView
	ReceiptExecutionOutcomes []ExecutionOutcomeView
	StateChanges             []StateChangeWithCause
}

// StreamerMessage is the unit emitted by the upstream stream: one
// finalized block and all of its shards.
type StreamerMessage struct {
	Block  BlockView
	Shards []IndexerShard
}

// Stream opens the upstream block-stream transport and returns a channel
// of messages in strictly increasing block order, plus a channel that
// carries at most one terminal error. Both channels close when the
// stream ends; callers should drain messages until the message channel
// closes, and consult the error channel only afterward.
type Stream func(ctx context.Context, cfg Config) (<-chan StreamerMessage, <-chan error)
