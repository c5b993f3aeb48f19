package transform

import (
	"github.com/nearindexer/streamer/internal/lake"
	"github.com/nearindexer/streamer/internal/model"
)

// fullAccountIDLength is the length of an implicit (hex-encoded ed25519
// public key) account-id, per spec.md §8's boundary case: a TRANSFER to
// a 64-character receiver creates an account, a 63-character one does
// not.
const fullAccountIDLength = 64

// accountEvents is what one successfully executed outcome's actions
// contribute to account lifecycle, mirroring the three-way optional
// tuple the source returns per action.
type accountEvents struct {
	accounts          []model.Account
	deletedAccountIDs []string
	accessKeys        []model.AccessKey
}

// extractAccountEvents derives Account, deleted-account-id, and
// AccessKey records from one shard's successful execution outcomes, per
// spec.md §4.2 step 3: a successful CREATE_ACCOUNT, or a successful
// TRANSFER to a 64-character account-id, emits an Account for the
// receiver; a successful DELETE_ACCOUNT emits a deleted-account-id; a
// successful ADD_KEY emits an AccessKey.
func extractAccountEvents(outcomes []lake.ExecutionOutcomeView, receipts []lake.ReceiptView, blockHeight uint64) accountEvents {
	var ev accountEvents

	receiptByID := make(map[string]lake.ReceiptView, len(receipts))
	for _, r := range receipts {
		receiptByID[r.ReceiptID] = r
	}

	for _, outcome := range outcomes {
		if !outcome.Status.Success() {
			continue
		}
		receipt, ok := receiptByID[outcome.ReceiptID]
		if !ok || receipt.Action == nil {
			continue
		}

		for _, action := range receipt.Action.Actions {
			switch {
			case action.CreateAccount != nil:
				ev.accounts = append(ev.accounts, model.NewAccount(receipt.ReceiverID, &receipt.ReceiptID, blockHeight))

			case action.Transfer != nil:
				if len(receipt.ReceiverID) == fullAccountIDLength {
					ev.accounts = append(ev.accounts, model.NewAccount(receipt.ReceiverID, &receipt.ReceiptID, blockHeight))
				}

			case action.DeleteAccount != nil:
				ev.deletedAccountIDs = append(ev.deletedAccountIDs, receipt.ReceiverID)

			case action.AddKey != nil:
				permission := permissionFromAddKey(action.AddKey)
				ev.accessKeys = append(ev.accessKeys, model.NewAccessKey(
					action.AddKey.PublicKey,
					receipt.ReceiverID,
					permission,
					&receipt.ReceiptID,
					blockHeight,
				))
			}
		}
	}

	return ev
}

// permissionFromAddKey reads the access-key permission tag the upstream
// ADD_KEY action carries, defaulting to FUNCTION_CALL when no explicit
// full-access marker is present.
func permissionFromAddKey(v *lake.AddKeyActionView) model.AccessKeyPermission {
	if tag, ok := v.Permission["FullAccess"]; ok && tag != nil {
		return model.PermissionFullAccess
	}
	if _, ok := v.Permission["full_access"]; ok {
		return model.PermissionFullAccess
	}
	return model.PermissionFunctionCall
}
