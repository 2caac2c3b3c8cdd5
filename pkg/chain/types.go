// Package chain is the read-only client for the node's RPC and LCD
// endpoints: block fetch, block_results events, and the auxiliary queries
// the fast-track reactor and price engine need (token supply, pool
// reserves).
package chain

import "encoding/json"

// Block is the subset of RPC block fields the indexer consumes.
type Block struct {
	Header struct {
		Height string `json:"height"`
		Time   string `json:"time"`
	} `json:"header"`
	Data struct {
		Txs []string `json:"txs"` // base64-encoded raw tx bytes
	} `json:"data"`
}

// BlockResponse wraps the RPC /block envelope.
type BlockResponse struct {
	Result struct {
		Block Block `json:"block"`
	} `json:"result"`
}

// RawAttr is one ABCI event attribute as the node emits it.
type RawAttr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RawEvent is one ABCI event as the node emits it.
type RawEvent struct {
	Type       string    `json:"type"`
	Attributes []RawAttr `json:"attributes"`
}

// TxResult is one entry of block_results' txs_results, one per transaction
// in block order.
type TxResult struct {
	Code      uint32     `json:"code"`
	Log       string     `json:"log"`
	GasUsed   string     `json:"gas_used"`
	Events    []RawEvent `json:"events"`
}

// BlockResultsResponse wraps the RPC /block_results envelope. FinalizeBlockEvents
// holds events emitted at the block level (e.g. begin/end blockers); TxsResults
// holds the per-tx events the indexer cares about most.
type BlockResultsResponse struct {
	Result struct {
		Height              string     `json:"height"`
		TxsResults          []TxResult `json:"txs_results"`
		FinalizeBlockEvents []RawEvent `json:"finalize_block_events"`
	} `json:"result"`
}

// StatusResponse wraps the RPC /status envelope, used to learn the chain's
// current head height.
type StatusResponse struct {
	Result struct {
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
		} `json:"sync_info"`
	} `json:"result"`
}

// Flatten turns a RawAttr slice into a plain string map, the shape the
// parser package operates on.
func Flatten(attrs []RawAttr) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		out[a.Key] = a.Value
	}
	return out
}

// BankSupplyResponse is the LCD /cosmos/bank/v1beta1/supply/by_denom envelope.
type BankSupplyResponse struct {
	Amount struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"amount"`
}

// CW20TokenInfoResponse is the decoded result of a cw20 token_info smart
// query, reached via the LCD's wasm contract-query passthrough.
type CW20TokenInfoResponse struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	TotalSupply string `json:"total_supply"`
}

// WasmSmartQueryEnvelope wraps the LCD's base64-JSON smart-query response.
type WasmSmartQueryEnvelope struct {
	Data string `json:"data"` // base64-encoded JSON matching the queried contract's response shape
}

// DecodeSmart base64-decodes and JSON-unmarshals a wasm smart-query result
// into dst.
func DecodeSmart(b64 string, dst any) error {
	raw, err := decodeB64(b64)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
