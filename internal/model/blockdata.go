package model

// BlockData is everything the block transformer produces for one block
// message: the block itself plus every child record list, in the
// deterministic shard-then-chunk-then-action order spec.md requires.
type BlockData struct {
	Block                    Block                     `json:"block"`
	Chunks                   []Chunk                   `json:"chunks"`
	Transactions             []Transaction             `json:"transactions"`
	TransactionActions       []TransactionAction        `json:"transaction_actions"`
	Receipts                 []Receipt                 `json:"receipts"`
	DataReceipts             []DataReceipt              `json:"data_receipts"`
	ActionReceipts           []ActionReceipt            `json:"action_receipts"`
	ActionReceiptActions     []ActionReceiptAction       `json:"action_receipt_actions"`
	ActionReceiptInputData   []ActionReceiptInputData   `json:"action_receipt_input_data"`
	ActionReceiptOutputData  []ActionReceiptOutputData  `json:"action_receipt_output_data"`
	ExecutionOutcomes        []ExecutionOutcome         `json:"execution_outcomes"`
	ExecutionOutcomeReceipts []ExecutionOutcomeReceipt  `json:"execution_outcome_receipts"`
	Accounts                 []Account                  `json:"accounts"`
	AccessKeys               []AccessKey                `json:"access_keys"`
	AccountChanges           []AccountChange             `json:"account_changes"`
}

// DeletedAccountIDs are account ids observed being deleted in this block,
// reported alongside BlockData by the transformer (spec.md §4.2).
type DeletedAccountIDs []string

// GenesisBlockData is the one-shot pre-stream payload: the initial
// accounts and access keys read from the genesis state dump.
type GenesisBlockData struct {
	Accounts   []Account   `json:"accounts"`
	AccessKeys []AccessKey `json:"access_keys"`
}
