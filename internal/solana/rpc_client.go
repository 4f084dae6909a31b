package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// HealthTimeout bounds the getHealth probe.
	HealthTimeout = 5 * time.Second

	// TokenBalanceTimeout bounds the getTokenAccountsByOwner lookup.
	TokenBalanceTimeout = 10 * time.Second

	// LookupTimeout bounds the balance and signature-count lookups.
	LookupTimeout = 10 * time.Second

	// signaturePageLimit is the maximum page size of getSignaturesForAddress.
	signaturePageLimit = 1000
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint      string
	client        *http.Client
	maxRetries    int
	retryDelay    time.Duration
	maxDelay      time.Duration
	backoffMult   float64
	lookupTimeout time.Duration
	requestID     atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:      endpoint,
		client:        &http.Client{Timeout: DefaultTimeout},
		maxRetries:    DefaultMaxRetries,
		retryDelay:    DefaultRetryDelay,
		maxDelay:      DefaultMaxDelay,
		backoffMult:   DefaultBackoffMult,
		lookupTimeout: LookupTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error. Data carries method-specific
// detail; preflight failures put the simulation error there, not in Message.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("RPC error %d: %s %s", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	return c.callAttempts(ctx, method, params, result, c.maxRetries)
}

// callOnce performs a JSON-RPC call as a single round trip. Used for
// submissions where a transport failure leaves the outcome unknown and a
// blind retry could double-execute.
func (c *HTTPClient) callOnce(ctx context.Context, method string, params []interface{}, result interface{}) error {
	return c.callAttempts(ctx, method, params, result, 0)
}

func (c *HTTPClient) callAttempts(ctx context.Context, method string, params []interface{}, result interface{}, retries int) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.post(ctx, body, retries)
	if err != nil {
		return err
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		// RPC errors are not retried
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// callBatch sends several requests in one HTTP round trip and returns the
// responses keyed by request ID. Missing or failed entries are simply absent.
func (c *HTTPClient) callBatch(ctx context.Context, reqs []rpcRequest) (map[uint64]rpcResponse, error) {
	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	respBody, err := c.post(ctx, body, c.maxRetries)
	if err != nil {
		return nil, err
	}

	var rpcResps []rpcResponse
	if err := json.Unmarshal(respBody, &rpcResps); err != nil {
		return nil, fmt.Errorf("unmarshal batch response: %w", err)
	}

	out := make(map[uint64]rpcResponse, len(rpcResps))
	for _, r := range rpcResps {
		out[r.ID] = r
	}
	return out, nil
}

// post performs the HTTP round trip with up to retries additional attempts
// and exponential backoff. retries 0 means exactly one attempt.
func (c *HTTPClient) post(ctx context.Context, body []byte, retries int) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		return respBody, nil
	}

	if retries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// getBalanceResult is the raw RPC response for getBalance.
type getBalanceResult struct {
	Value uint64 `json:"value"`
}

// GetBalance retrieves an account balance in SOL.
func (c *HTTPClient) GetBalance(ctx context.Context, pubkey string) (float64, error) {
	var result getBalanceResult
	if err := c.call(ctx, "getBalance", []interface{}{pubkey}, &result); err != nil {
		return 0, err
	}
	return float64(result.Value) / LamportsPerSol, nil
}

// GetBatchBalances retrieves balances for many accounts in one batched
// request. Accounts whose sub-request errored are left out of the map.
func (c *HTTPClient) GetBatchBalances(ctx context.Context, pubkeys []string) (map[string]float64, error) {
	if len(pubkeys) == 0 {
		return map[string]float64{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	reqs := make([]rpcRequest, len(pubkeys))
	byID := make(map[uint64]string, len(pubkeys))
	for i, pk := range pubkeys {
		id := c.requestID.Add(1)
		reqs[i] = rpcRequest{
			JSONRPC: "2.0",
			ID:      id,
			Method:  "getBalance",
			Params:  []interface{}{pk},
		}
		byID[id] = pk
	}

	resps, err := c.callBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(pubkeys))
	for id, pk := range byID {
		resp, ok := resps[id]
		if !ok || resp.Error != nil || resp.Result == nil {
			continue
		}
		var result getBalanceResult
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			continue
		}
		out[pk] = float64(result.Value) / LamportsPerSol
	}
	return out, nil
}

// getSignaturesResult is the raw RPC response item for getSignaturesForAddress.
type getSignaturesResult struct {
	Signature string `json:"signature"`
}

// GetSignatureCount returns the number of recent signatures for an address,
// capped at the RPC page limit of 1000.
func (c *HTTPClient) GetSignatureCount(ctx context.Context, address string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	params := []interface{}{
		address,
		map[string]interface{}{"limit": signaturePageLimit},
	}

	var result []getSignaturesResult
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return 0, err
	}
	return len(result), nil
}

// tokenAccountsResult is the raw RPC response for getTokenAccountsByOwner
// with jsonParsed encoding.
type tokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						TokenAmount struct {
							UIAmount float64 `json:"uiAmount"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// GetTokenBalance returns the owner's balance of one SPL token in UI units,
// summed across token accounts. A missing account is a zero balance, not an
// error.
func (c *HTTPClient) GetTokenBalance(ctx context.Context, owner, mint string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, TokenBalanceTimeout)
	defer cancel()

	params := []interface{}{
		owner,
		map[string]interface{}{"mint": mint},
		map[string]interface{}{"encoding": "jsonParsed"},
	}

	var result tokenAccountsResult
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return 0, err
	}

	total := 0.0
	for _, acc := range result.Value {
		total += acc.Account.Data.Parsed.Info.TokenAmount.UIAmount
	}
	return total, nil
}

// GetHealth checks node health. Any answer other than "ok" is an error.
func (c *HTTPClient) GetHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	var result string
	if err := c.call(ctx, "getHealth", nil, &result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("node unhealthy: %s", result)
	}
	return nil
}

// SendTransaction submits a fully signed transaction. Preflight runs against
// confirmed state so freshly funded wallets don't trip simulation. The
// submission is posted exactly once: after a transport failure the node may
// already hold the transaction, so resubmitting is never safe.
func (c *HTTPClient) SendTransaction(ctx context.Context, signedTx []byte) (string, error) {
	params := []interface{}{
		base64.StdEncoding.EncodeToString(signedTx),
		map[string]interface{}{
			"encoding":            "base64",
			"preflightCommitment": "confirmed",
		},
	}

	var signature string
	if err := c.callOnce(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}
