package chain

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// RPCClient talks to the Tendermint-style RPC endpoint (block, block_results,
// status). Every request is retried on 5xx and transport errors; the caller
// still owns overall deadline via ctx.
type RPCClient struct {
	http *resty.Client
}

func NewRPCClient(baseURL string) *RPCClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(300 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	return &RPCClient{http: c}
}

// Status returns the node's current head height.
func (c *RPCClient) Status(ctx context.Context) (int64, error) {
	var out StatusResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/status")
	if err != nil {
		return 0, fmt.Errorf("rpc status: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("rpc status: status %d: %s", resp.StatusCode(), resp.String())
	}
	h, err := strconv.ParseInt(out.Result.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rpc status: parse height: %w", err)
	}
	return h, nil
}

// Block fetches the raw block at height.
func (c *RPCClient) Block(ctx context.Context, height int64) (*BlockResponse, error) {
	var out BlockResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("height", strconv.FormatInt(height, 10)).
		SetResult(&out).
		Get("/block")
	if err != nil {
		return nil, fmt.Errorf("rpc block %d: %w", height, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("rpc block %d: status %d: %s", height, resp.StatusCode(), resp.String())
	}
	return &out, nil
}

// BlockResults fetches the per-tx and block-level events for height.
func (c *RPCClient) BlockResults(ctx context.Context, height int64) (*BlockResultsResponse, error) {
	var out BlockResultsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("height", strconv.FormatInt(height, 10)).
		SetResult(&out).
		Get("/block_results")
	if err != nil {
		return nil, fmt.Errorf("rpc block_results %d: %w", height, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("rpc block_results %d: status %d: %s", height, resp.StatusCode(), resp.String())
	}
	return &out, nil
}

// decodeB64 is the shared base64 decoder for RPC tx bytes and LCD smart-query
// payloads (both use standard, not URL-safe, encoding).
func decodeB64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// DecodeTx base64-decodes one of Block.Data.Txs' raw tx byte strings.
func DecodeTx(raw string) ([]byte, error) {
	return decodeB64(raw)
}
