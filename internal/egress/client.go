// Package egress formats each flushed batch as GraphQL mutations and
// POSTs them to the downstream ingestion endpoint, per spec.md §4.4.
// The three operations mirror send.rs's send_blocks/send_chunks shape,
// generalized from the source's two-mutation (blocks, chunks) split to
// the three this indexer's data model needs.
package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nearindexer/streamer/internal/errs"
	"github.com/nearindexer/streamer/internal/model"
	"github.com/nearindexer/streamer/pkg/retry"
)

// DefaultURL is the downstream ingestion endpoint consumed when no
// override is configured.
const DefaultURL = "https://api.shrm.workers.dev"

const mutationAddGenesisBlockData = `mutation AddGenesisBlockData($block_data: [GenesisBlockData!]!) { addGenesisBlockData(blockData: $block_data) }`
const mutationAddBlockData = `mutation AddBlockData($block_data: [BlockData!]!) { addBlockData(blockData: $block_data) }`
const mutationDeleteAccounts = `mutation DeleteAccounts($account_ids: [String!]!) { deleteAccounts(accountIds: $account_ids) }`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Client POSTs GraphQL mutations to the ingestion endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	log        logrus.FieldLogger
	policy     retry.Policy
}

// New builds a Client targeting url with the given retry policy. An
// empty url falls back to DefaultURL.
func New(url string, httpClient *http.Client, log logrus.FieldLogger, policy retry.Policy) *Client {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{url: url, httpClient: httpClient, log: log, policy: policy}
}

// SendGenesis POSTs the AddGenesisBlockData mutation. A nil or empty
// genesis payload is skipped, per spec.md §4.4.
func (c *Client) SendGenesis(ctx context.Context, genesis *model.GenesisBlockData) error {
	if genesis == nil || (len(genesis.Accounts) == 0 && len(genesis.AccessKeys) == 0) {
		return nil
	}
	return c.post(ctx, "AddGenesisBlockData", mutationAddGenesisBlockData, map[string]any{
		"block_data": []model.GenesisBlockData{*genesis},
	})
}

// SendBlocks POSTs the AddBlockData mutation. An empty list is skipped.
func (c *Client) SendBlocks(ctx context.Context, blocks []model.BlockData) error {
	if len(blocks) == 0 {
		return nil
	}
	return c.post(ctx, "AddBlockData", mutationAddBlockData, map[string]any{
		"block_data": blocks,
	})
}

// SendDeletedAccounts POSTs the DeleteAccounts mutation. An empty list
// is skipped.
func (c *Client) SendDeletedAccounts(ctx context.Context, accountIDs []string) error {
	if len(accountIDs) == 0 {
		return nil
	}
	return c.post(ctx, "DeleteAccounts", mutationDeleteAccounts, map[string]any{
		"account_ids": accountIDs,
	})
}

// post wraps the actual POST in retry.Do so transport errors and 5xx
// responses get bounded exponential backoff (spec.md §9's "HTTP egress
// fault tolerance" design note). A 4xx is not retried and does not halt
// the run either: spec.md §4.4/§7 and SPEC_FULL §4.4 both require a
// non-2xx response to be logged and dropped rather than abort the
// pipeline, so only an exhausted Transport/5xx failure is returned to
// the caller as fatal.
func (c *Client) post(ctx context.Context, op, query string, variables map[string]any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return &errs.Transport{Op: op, Err: err}
	}

	// One request id per logical operation, not per attempt, so a
	// retried mutation still reads as a single operation downstream.
	requestID := uuid.NewString()

	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return &errs.Transport{Op: op, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-Id", requestID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &errs.Transport{Op: op, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			remote := &errs.Remote{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
			c.log.WithFields(logrus.Fields{
				"op":     op,
				"status": resp.StatusCode,
				"body":   string(respBody),
			}).Warn("egress: non-2xx response")
			return remote
		}
		return nil
	})

	var remote *errs.Remote
	if errors.As(err, &remote) && !remote.Retryable() {
		c.log.WithFields(logrus.Fields{"op": op, "status": remote.StatusCode}).
			Warn("egress: dropping non-retryable response, pipeline continues")
		return nil
	}
	return err
}

// String names the client for log lines that identify which egress
// endpoint a failure came from.
func (c *Client) String() string { return fmt.Sprintf("egress(%s)", c.url) }
