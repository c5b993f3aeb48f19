package model

// Block is a finalized NEAR block.
type Block struct {
	Hash         string `json:"block_hash"`
	Height       uint64 `json:"height"`
	PrevHash     string `json:"prev_hash"`
	TimestampNanos int64 `json:"timestamp"`
	TotalSupply  string `json:"total_supply"`
	GasPrice     string `json:"gas_price"`
	Author       string `json:"author"`
}

// Chunk is the per-shard body of a block.
type Chunk struct {
	Hash      string `json:"chunk_hash"`
	BlockHash string `json:"block_hash"`
	ShardID   uint64 `json:"shard_id"`
	Signature string `json:"signature"`
	GasLimit  uint64 `json:"gas_limit"`
	GasUsed   uint64 `json:"gas_used"`
	Author    string `json:"author"`
}
