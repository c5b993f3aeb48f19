package transform

import (
	"github.com/nearindexer/streamer/internal/lake"
	"github.com/nearindexer/streamer/internal/model"
)

// extractAccountChange projects one state-change cause/value pair into an
// AccountChange, per spec.md §4.5. The cause determines the update-reason
// tag and which provenance field (tx-hash or receipt-id) is populated;
// the value determines the reported balances. Returns false when the
// value variant is not one this indexer tracks.
func extractAccountChange(sc lake.StateChangeWithCause, blockHash string, indexInBlock int, timestampNanos int64) (model.AccountChange, bool) {
	var accountID, nonStaked, staked string
	var storageUsage uint64

	switch {
	case sc.Value.AccountUpdate != nil:
		v := sc.Value.AccountUpdate
		accountID = v.AccountID
		nonStaked = v.NonStaked
		staked = v.Staked
		storageUsage = v.StorageUsage

	case sc.Value.AccountDeletion != nil:
		v := sc.Value.AccountDeletion
		accountID = v.AccountID
		nonStaked = "0"
		staked = "0"
		storageUsage = 0

	default:
		return model.AccountChange{}, false
	}

	change := model.AccountChange{
		BlockHash:      blockHash,
		IndexInBlock:   indexInBlock,
		AccountID:      accountID,
		TimestampNanos: timestampNanos,
		UpdateReason:   sc.Cause.Reason,
		NonStaked:      nonStaked,
		Staked:         staked,
		StorageUsage:   storageUsage,
	}

	switch sc.Cause.Reason {
	case model.ReasonTransactionProcessing:
		change.TxHash = strPtr(sc.Cause.TxHash)
	case model.ReasonActionReceiptProcessingStarted,
		model.ReasonActionReceiptGasReward,
		model.ReasonReceiptProcessing,
		model.ReasonPostponedReceipt:
		change.ReceiptID = strPtr(sc.Cause.ReceiptID)
	}

	return change, true
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
