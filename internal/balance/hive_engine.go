package balance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Reader is the balance collaborator the stake intake consults before
// accepting MEDALS. The core never writes balances; settlement records what
// is owed and a separate distribution process moves tokens.
type Reader interface {
	GetBalance(ctx context.Context, account string) (decimal.Decimal, error)
}

// HiveEngineClient reads token balances from a Hive-Engine sidechain RPC node
type HiveEngineClient struct {
	httpClient *http.Client
	rpcURL     string
	symbol     string
}

func NewHiveEngineClient(rpcURL, symbol string) *HiveEngineClient {
	return &HiveEngineClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rpcURL: rpcURL,
		symbol: symbol,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Contract string                 `json:"contract"`
	Table    string                 `json:"table"`
	Query    map[string]interface{} `json:"query"`
}

type rpcResponse struct {
	Result *tokenBalance `json:"result"`
	Error  *rpcError     `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type tokenBalance struct {
	Account string `json:"account"`
	Symbol  string `json:"symbol"`
	Balance string `json:"balance"`
}

// GetBalance returns the account's liquid token balance. An account with no
// balance row holds zero tokens, not an error.
func (c *HiveEngineClient) GetBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "findOne",
		Params: rpcParams{
			Contract: "tokens",
			Table:    "balances",
			Query: map[string]interface{}{
				"account": account,
				"symbol":  c.symbol,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to reach hive-engine node: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return decimal.Zero, fmt.Errorf("hive-engine RPC error: %d - %s", resp.StatusCode, string(raw))
	}

	var result rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Error != nil {
		return decimal.Zero, fmt.Errorf("hive-engine RPC error: %d - %s", result.Error.Code, result.Error.Message)
	}

	if result.Result == nil {
		return decimal.Zero, nil
	}

	amount, err := decimal.NewFromString(result.Result.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed balance %q: %w", result.Result.Balance, err)
	}

	return amount, nil
}
