// Package action converts one typed NEAR action variant into an
// (action-kind tag, canonical JSON args) pair, per spec.md §4.2's encoding
// table. It is a pure function with no dependency on the rest of the
// pipeline.
package action

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/nearindexer/streamer/internal/model"
)

// View is the subset of an action's fields the encoder needs, mirroring
// the upstream ActionView union. Exactly one pointer field is non-nil.
type View struct {
	CreateAccount  *CreateAccountView
	DeployContract *DeployContractView
	FunctionCall   *FunctionCallView
	Transfer       *TransferView
	Stake          *StakeView
	AddKey         *AddKeyView
	Delegate       *DelegateView
	DeleteKey      *DeleteKeyView
	DeleteAccount  *DeleteAccountView
}

type CreateAccountView struct{}

type DeployContractView struct {
	// CodeBase64 is the contract WASM, base64-encoded by upstream.
	CodeBase64 string
}

type FunctionCallView struct {
	MethodName string
	ArgsBase64 string
	Gas        uint64
	Deposit    string
}

type TransferView struct {
	Deposit string
}

type StakeView struct {
	Stake     string
	PublicKey string
}

type AddKeyView struct {
	PublicKey string
	// AccessKey is inserted as-is; upstream already shapes it the way the
	// downstream schema expects.
	AccessKey map[string]any
}

type DelegateView struct {
	DelegateAction map[string]any
	Signature      string
}

type DeleteKeyView struct {
	PublicKey string
}

type DeleteAccountView struct {
	BeneficiaryID string
}

// Encode maps v to its action-kind tag and canonical JSON args, per the
// table in spec.md §4.2.
func Encode(v View) (model.ActionKind, map[string]any) {
	switch {
	case v.CreateAccount != nil:
		return model.ActionCreateAccount, map[string]any{}

	case v.DeployContract != nil:
		return model.ActionDeployContract, encodeDeployContract(v.DeployContract)

	case v.FunctionCall != nil:
		return model.ActionFunctionCall, encodeFunctionCall(v.FunctionCall)

	case v.Transfer != nil:
		return model.ActionTransfer, map[string]any{"deposit": v.Transfer.Deposit}

	case v.Stake != nil:
		return model.ActionStake, map[string]any{
			"stake":      v.Stake.Stake,
			"public_key": v.Stake.PublicKey,
		}

	case v.AddKey != nil:
		return model.ActionAddKey, map[string]any{
			"public_key": v.AddKey.PublicKey,
			"access_key": v.AddKey.AccessKey,
		}

	case v.Delegate != nil:
		return model.ActionDelegate, map[string]any{
			"delegate_action": v.Delegate.DelegateAction,
			"signature":       v.Delegate.Signature,
		}

	case v.DeleteKey != nil:
		return model.ActionDeleteKey, map[string]any{"public_key": v.DeleteKey.PublicKey}

	case v.DeleteAccount != nil:
		return model.ActionDeleteAccount, map[string]any{"beneficiary_id": v.DeleteAccount.BeneficiaryID}
	}
	// An upstream action kind not represented in View: encode as an empty
	// args object rather than panicking on a malformed View.
	return "", map[string]any{}
}

// encodeDeployContract reproduces the source's code_sha256 field exactly,
// bug and all: it is hex(base64_decode(code)), not hex(sha256(...)). See
// the "Open Question decisions" in SPEC_FULL.md §9 — byte-for-byte
// compatibility with the already-deployed downstream schema wins over
// fixing the field's name.
func encodeDeployContract(d *DeployContractView) map[string]any {
	decoded, err := base64.StdEncoding.DecodeString(d.CodeBase64)
	if err != nil {
		// Malformed upstream payload: fall back to hex-encoding the raw
		// (undecoded) string so the field is still present.
		decoded = []byte(d.CodeBase64)
	}
	return map[string]any{"code_sha256": hex.EncodeToString(decoded)}
}

func encodeFunctionCall(f *FunctionCallView) map[string]any {
	args := map[string]any{
		"method_name": escapeDefault(f.MethodName),
		"args_base64": f.ArgsBase64,
		"gas":         f.Gas,
		"deposit":     f.Deposit,
	}
	if decoded, err := base64.StdEncoding.DecodeString(f.ArgsBase64); err == nil {
		var parsed any
		if err := json.Unmarshal(decoded, &parsed); err == nil {
			args["args_json"] = escapeJSONLeaves(parsed)
		}
	}
	return args
}

// escapeJSONLeaves walks a parsed JSON value and escapes every string leaf
// with escapeDefault, matching the source's escape_json recursive pass.
func escapeJSONLeaves(v any) any {
	switch val := v.(type) {
	case string:
		return escapeDefault(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = escapeJSONLeaves(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = escapeJSONLeaves(e)
		}
		return out
	default:
		return val
	}
}

// escapeDefault backslash-escapes control characters and non-ASCII runes,
// mirroring Rust's str::escape_default: printable ASCII passes through
// unchanged, the handful of named escapes (\t \r \n \\ \' \") use their
// short form, and everything else becomes \u{XXXX}. Used on method_name
// and every string leaf of args_json so the downstream payload stays
// printable and injection-safe regardless of what a contract call embeds.
func escapeDefault(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		default:
			if r >= 0x20 && r < 0x7f {
				b.WriteRune(r)
			} else {
				b.WriteString(`\u{`)
				b.WriteString(strconv.FormatInt(int64(r), 16))
				b.WriteString(`}`)
			}
		}
	}
	return b.String()
}
