package model

// Receipt is a cross-account message annotated with the hash of the
// transaction that ultimately produced it. Only receipts for which
// provenance could be resolved are emitted — see the provenance package.
type Receipt struct {
	ReceiptID         string      `json:"receipt_id"`
	BlockHash         string      `json:"block_hash"`
	ChunkHash         string      `json:"chunk_hash"`
	IndexInChunk      int         `json:"index_in_chunk"`
	TimestampNanos    int64       `json:"timestamp"`
	PredecessorID     string      `json:"predecessor_id"`
	ReceiverID        string      `json:"receiver_id"`
	Kind              ReceiptKind `json:"receipt_kind"`
	OriginatingTxHash string      `json:"originating_tx_hash"`
}

// DataReceipt carries a value used as input to an action receipt.
type DataReceipt struct {
	DataID       string  `json:"data_id"`
	ReceiptID    string  `json:"receipt_id"`
	PayloadBase64 *string `json:"payload_base64,omitempty"`
}

// ActionReceipt is the per-receipt metadata for an ACTION receipt.
type ActionReceipt struct {
	ReceiptID       string `json:"receipt_id"`
	SignerID        string `json:"signer_id"`
	SignerPublicKey string `json:"signer_public_key"`
	GasPrice        string `json:"gas_price"`
}

// ActionReceiptAction is one action carried by an action receipt.
type ActionReceiptAction struct {
	ReceiptID      string         `json:"receipt_id"`
	Index          int            `json:"index"`
	ActionKind     ActionKind     `json:"action_kind"`
	Args           map[string]any `json:"args"`
	PredecessorID  string         `json:"predecessor_id"`
	ReceiverID     string         `json:"receiver_id"`
	TimestampNanos int64          `json:"timestamp"`
}

// ActionReceiptInputData names a data-id the action receipt waits on.
type ActionReceiptInputData struct {
	ReceiptID string `json:"receipt_id"`
	DataID    string `json:"data_id"`
}

// ActionReceiptOutputData names a data-id the action receipt will produce,
// and who will receive the resulting data receipt.
type ActionReceiptOutputData struct {
	ReceiptID  string `json:"receipt_id"`
	DataID     string `json:"data_id"`
	ReceiverID string `json:"receiver_id"`
}
