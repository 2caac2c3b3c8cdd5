package chain

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// LCDClient talks to the node's REST/LCD endpoint: bank supply and wasm
// smart-contract queries. Used by the token registry's metadata enrichment
// and the fast-track reactor's holder/security stages.
type LCDClient struct {
	http *resty.Client
}

func NewLCDClient(baseURL string) *LCDClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	return &LCDClient{http: c}
}

// BankSupply returns the circulating supply of a native/factory denom.
func (c *LCDClient) BankSupply(ctx context.Context, denom string) (*BankSupplyResponse, error) {
	var out BankSupplyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/cosmos/bank/v1beta1/supply/by_denom?denom=" + url.QueryEscape(denom))
	if err != nil {
		return nil, fmt.Errorf("lcd bank supply %s: %w", denom, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("lcd bank supply %s: status %d: %s", denom, resp.StatusCode(), resp.String())
	}
	return &out, nil
}

// WasmSmartQuery runs a smart query against a cw20 or pair contract and
// decodes the response into dst. query is the plain JSON query object
// (e.g. `{"token_info":{}}`); the LCD expects it base64-encoded in the path.
func (c *LCDClient) WasmSmartQuery(ctx context.Context, contractAddr string, query []byte, dst any) error {
	encoded := base64URLEncode(query)
	var env WasmSmartQueryEnvelope
	path := fmt.Sprintf("/cosmwasm/wasm/v1/contract/%s/smart/%s", contractAddr, encoded)
	resp, err := c.http.R().SetContext(ctx).SetResult(&env).Get(path)
	if err != nil {
		return fmt.Errorf("lcd smart query %s: %w", contractAddr, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("lcd smart query %s: status %d: %s", contractAddr, resp.StatusCode(), resp.String())
	}
	return DecodeSmart(env.Data, dst)
}

// CW20TokenInfo queries a cw20 contract's token_info.
func (c *LCDClient) CW20TokenInfo(ctx context.Context, contractAddr string) (*CW20TokenInfoResponse, error) {
	var out CW20TokenInfoResponse
	if err := c.WasmSmartQuery(ctx, contractAddr, []byte(`{"token_info":{}}`), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PoolReserves queries an Astroport-style pair contract's pool assets.
func (c *LCDClient) PoolReserves(ctx context.Context, pairContract string) ([2]AssetAmount, error) {
	var out struct {
		Assets []struct {
			Info struct {
				NativeToken *struct {
					Denom string `json:"denom"`
				} `json:"native_token"`
				Token *struct {
					ContractAddr string `json:"contract_addr"`
				} `json:"token"`
			} `json:"info"`
			Amount string `json:"amount"`
		} `json:"assets"`
	}
	if err := c.WasmSmartQuery(ctx, pairContract, []byte(`{"pool":{}}`), &out); err != nil {
		return [2]AssetAmount{}, err
	}
	var legs [2]AssetAmount
	for i := 0; i < 2 && i < len(out.Assets); i++ {
		a := out.Assets[i]
		denom := ""
		switch {
		case a.Info.NativeToken != nil:
			denom = a.Info.NativeToken.Denom
		case a.Info.Token != nil:
			denom = a.Info.Token.ContractAddr
		}
		legs[i] = AssetAmount{Denom: denom, Amount: a.Amount}
	}
	return legs, nil
}

// AssetAmount is one reserve leg returned by a pair contract's pool query.
type AssetAmount struct {
	Denom  string
	Amount string
}

// HolderCount queries a cw20 contract's all_accounts, paginated once at a
// generous limit, and returns the number of holders observed. For native
// and factory denoms (no cw20 contract to query) it returns 0, ok=false —
// the chain does not expose a direct holder-count query for bank denoms.
func (c *LCDClient) HolderCount(ctx context.Context, denom string, isCW20 bool) (int, bool, error) {
	if !isCW20 {
		return 0, false, nil
	}
	var out struct {
		Accounts []string `json:"accounts"`
	}
	if err := c.WasmSmartQuery(ctx, denom, []byte(`{"all_accounts":{"limit":30}}`), &out); err != nil {
		return 0, false, fmt.Errorf("lcd holder count %s: %w", denom, err)
	}
	return len(out.Accounts), true, nil
}

// ContractInfo is the LCD's wasm contract metadata, fetched by the
// Fast-Track Reactor's security-scan stage; that stage does not persist or
// act on the admin address.
type ContractInfo struct {
	Admin string `json:"admin"`
}

// SecurityInfo fetches a contract's admin address. An empty Admin means the
// contract has renounced or never had migration admin rights.
func (c *LCDClient) SecurityInfo(ctx context.Context, contractAddr string) (*ContractInfo, error) {
	var out struct {
		ContractInfo ContractInfo `json:"contract_info"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/cosmwasm/wasm/v1/contract/" + contractAddr)
	if err != nil {
		return nil, fmt.Errorf("lcd contract info %s: %w", contractAddr, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("lcd contract info %s: status %d: %s", contractAddr, resp.StatusCode(), resp.String())
	}
	return &out.ContractInfo, nil
}

// base64URLEncode matches the LCD's expectation of a base64-encoded query
// object embedded directly in the URL path.
func base64URLEncode(query []byte) string {
	return base64.StdEncoding.EncodeToString(query)
}
