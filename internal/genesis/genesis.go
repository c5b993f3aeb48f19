// Package genesis fetches the mainnet genesis state dump once at startup
// and filters it down to the Account and AccessKey records the indexer
// cares about, per spec.md §6 and §4.1's "genesis records at most once
// per run" invariant.
package genesis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/nearindexer/streamer/internal/errs"
	"github.com/nearindexer/streamer/internal/model"
)

// DefaultURL is the upstream genesis dump consumed when no override is
// configured.
const DefaultURL = "https://s3-us-west-1.amazonaws.com/build.nearprotocol.com/nearcore-deploy/mainnet/genesis.json"

// stateRecord is one tagged entry of the genesis dump's records array.
// Only the Account and AccessKey variants are populated by upstream for
// the fields this indexer consumes; every other variant round-trips as
// an empty struct and is filtered out.
type stateRecord struct {
	Account   *accountRecord   `json:"Account,omitempty"`
	AccessKey *accessKeyRecord `json:"AccessKey,omitempty"`
}

type accountRecord struct {
	AccountID string `json:"account_id"`
}

type accessKeyRecord struct {
	AccountID string `json:"account_id"`
	PublicKey string `json:"public_key"`
	AccessKey struct {
		Permission json.RawMessage `json:"permission"`
	} `json:"access_key"`
}

type dump struct {
	GenesisHeight uint64        `json:"genesis_height"`
	Records       []stateRecord `json:"records"`
}

// Client fetches and parses the genesis dump over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// New builds a Client targeting url. An empty url falls back to
// DefaultURL.
func New(url string, httpClient *http.Client) *Client {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, httpClient: httpClient, log: logrus.StandardLogger()}
}

// Fetch downloads the genesis dump and partitions it into the Account
// and AccessKey records implied by its state records, stamped with
// genesis_height as their last-update height. There is no retry policy:
// a failure here is fatal at startup (spec.md §5, §7).
func (c *Client) Fetch(ctx context.Context) ([]model.Account, []model.AccessKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, nil, &errs.Upstream{Op: "genesis: build request", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &errs.Upstream{Op: "genesis: fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, nil, &errs.Upstream{
			Op:  "genesis: fetch",
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body),
		}
	}

	var d dump
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, nil, &errs.Upstream{Op: "genesis: decode", Err: err}
	}

	return c.partition(d)
}

// partition splits d's records into Account and AccessKey lists. A
// record that fails to parse is logged and dropped rather than aborting
// the whole genesis load: spec.md §3 treats public keys as opaque, so a
// key this indexer can't validate is a reason to skip that one record,
// not to fail startup over it.
func (c *Client) partition(d dump) ([]model.Account, []model.AccessKey, error) {
	accounts := make([]model.Account, 0)
	accessKeys := make([]model.AccessKey, 0)

	for _, rec := range d.Records {
		switch {
		case rec.Account != nil:
			accounts = append(accounts, model.NewAccount(rec.Account.AccountID, nil, d.GenesisHeight))

		case rec.AccessKey != nil:
			if err := validatePublicKey(rec.AccessKey.PublicKey); err != nil {
				c.log.WithFields(logrus.Fields{
					"account_id": rec.AccessKey.AccountID,
					"public_key": rec.AccessKey.PublicKey,
					"error":      err,
				}).Warn("genesis: skipping access key with unparseable public key")
				continue
			}
			permission, err := permissionKind(rec.AccessKey.AccessKey.Permission)
			if err != nil {
				c.log.WithFields(logrus.Fields{
					"account_id": rec.AccessKey.AccountID,
					"error":      err,
				}).Warn("genesis: skipping access key with unparseable permission")
				continue
			}
			accessKeys = append(accessKeys, model.NewAccessKey(
				rec.AccessKey.PublicKey,
				rec.AccessKey.AccountID,
				permission,
				nil,
				d.GenesisHeight,
			))
		}
		// Every other state record variant (Data, PostponedReceipt,
		// Contract, ...) is not consumed by this indexer and is skipped.
	}

	return accounts, accessKeys, nil
}

// validatePublicKey checks that a genesis access key's public key looks
// like a "<curve>:<base58-payload>" string with a decodable payload.
// Keys are otherwise opaque to this indexer (spec.md §3); this exists
// only to decide whether a record is worth logging and skipping, not to
// reject the genesis load over one bad record.
func validatePublicKey(key string) error {
	curve, payload, ok := strings.Cut(key, ":")
	if !ok || curve == "" || payload == "" {
		return fmt.Errorf("malformed public key %q: expected \"<curve>:<base58>\"", key)
	}
	if _, err := base58.Decode(payload); err != nil {
		return fmt.Errorf("malformed public key %q: %w", key, err)
	}
	return nil
}

// permissionKind decodes the genesis dump's access-key permission, which
// is either the bare string "FullAccess" or an object tagged
// {"FunctionCall": {...}}.
func permissionKind(raw json.RawMessage) (model.AccessKeyPermission, error) {
	var tag string
	if err := json.Unmarshal(raw, &tag); err == nil {
		if tag == "FullAccess" {
			return model.PermissionFullAccess, nil
		}
		return "", fmt.Errorf("unrecognized access key permission tag %q", tag)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("malformed access key permission: %w", err)
	}
	if _, ok := obj["FunctionCall"]; ok {
		return model.PermissionFunctionCall, nil
	}
	return "", fmt.Errorf("unrecognized access key permission shape: %s", raw)
}
