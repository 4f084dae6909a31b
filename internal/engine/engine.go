package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"pump-deck/internal/domain"
	"pump-deck/internal/observability"
	"pump-deck/internal/solana"
	"pump-deck/internal/storage"
)

// State is the execution state machine position.
type State int32

const (
	StateIdle State = iota
	StateBuilding
	StateSigning
	StateSubmitting
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateSigning:
		return "signing"
	case StateSubmitting:
		return "submitting"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Trade parameter defaults matching the relay's conventions.
const (
	DefaultSlippage     = 10.0
	DefaultPriorityFee  = 0.005
	DefaultBuildTimeout = 30 * time.Second
)

// TradeRequest describes one buy or sell.
type TradeRequest struct {
	Mint   string
	Action string // domain.SideBuy | domain.SideSell
	// Amount is in SOL when DenominatedInSol, token units otherwise.
	Amount           float64
	DenominatedInSol bool
	Slippage         float64 // percent; 0 uses DefaultSlippage
	PriorityFee      float64 // SOL; 0 uses DefaultPriorityFee
	Pool             string  // empty uses domain.PoolAuto
}

// TradeResult is a confirmed submission.
type TradeResult struct {
	Signature string
	Wallet    string
}

// Engine builds a trade via the relay, signs it with the active wallet, and
// submits it to the RPC. One Execute call walks the full state machine;
// failures are classified and never retried here.
type Engine struct {
	relayURL string
	client   *http.Client
	rpc      solana.RPCClient
	wallets  storage.WalletStore
	logger   *log.Logger

	state atomic.Int32
}

// Options configures an Engine.
type Options struct {
	// RelayURL is the trade-build endpoint.
	RelayURL string
	// HTTPClient overrides the default 30s-timeout client.
	HTTPClient *http.Client
	// Logger defaults to log.Default.
	Logger *log.Logger
}

// New creates an execution engine.
func New(wallets storage.WalletStore, rpc solana.RPCClient, opts Options) *Engine {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultBuildTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		relayURL: opts.RelayURL,
		client:   client,
		rpc:      rpc,
		wallets:  wallets,
		logger:   logger,
	}
}

// State returns the engine's current state machine position.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// buildRequest is the relay's trade-build payload.
type buildRequest struct {
	PublicKey        string  `json:"publicKey"`
	Action           string  `json:"action"`
	Mint             string  `json:"mint"`
	DenominatedInSol string  `json:"denominatedInSol"`
	Amount           float64 `json:"amount"`
	Slippage         float64 `json:"slippage"`
	PriorityFee      float64 `json:"priorityFee"`
	Pool             string  `json:"pool"`
}

// Execute walks Building, Signing, Submitting for one trade and returns the
// confirmed signature. A transaction that was submitted with an unknown
// outcome is never resubmitted; the caller decides what to do.
func (e *Engine) Execute(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	e.setState(StateIdle)

	if err := validate(&req); err != nil {
		return nil, err
	}

	start := time.Now()

	wallet, err := e.wallets.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("no active wallet: %w", err)
	}
	keypair, err := solana.ParseKeypair(wallet.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("active wallet key: %w", err)
	}

	e.setState(StateBuilding)
	unsigned, err := e.buildTrade(ctx, wallet.PublicKey, wallet.APIKey, req)
	if err != nil {
		e.setState(StateFailed)
		observability.RecordTrade(req.Action, "failed", time.Since(start).Seconds())
		return nil, err
	}

	e.setState(StateSigning)
	signed, err := signTransaction(unsigned, keypair)
	if err != nil {
		e.setState(StateFailed)
		observability.RecordTrade(req.Action, "failed", time.Since(start).Seconds())
		return nil, &ExecutionError{Kind: RelayRejected, Err: fmt.Errorf("sign relay transaction: %w", err)}
	}

	e.setState(StateSubmitting)
	signature, err := e.rpc.SendTransaction(ctx, signed)
	if err != nil {
		e.setState(StateFailed)
		observability.RecordTrade(req.Action, "failed", time.Since(start).Seconds())
		return nil, classifySubmitError(err)
	}

	e.setState(StateConfirmed)
	observability.RecordTrade(req.Action, "confirmed", time.Since(start).Seconds())
	e.logger.Printf("trade confirmed: %s %s %s", req.Action, req.Mint, signature)
	return &TradeResult{Signature: signature, Wallet: wallet.PublicKey}, nil
}

// buildTrade asks the relay for an unsigned transaction blob.
func (e *Engine) buildTrade(ctx context.Context, publicKey, apiKey string, req TradeRequest) ([]byte, error) {
	denominated := "false"
	if req.DenominatedInSol {
		denominated = "true"
	}
	payload := buildRequest{
		PublicKey:        publicKey,
		Action:           req.Action,
		Mint:             req.Mint,
		DenominatedInSol: denominated,
		Amount:           req.Amount,
		Slippage:         req.Slippage,
		PriorityFee:      req.PriorityFee,
		Pool:             req.Pool,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.relayURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("api-key", apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, &ExecutionError{Kind: RelayRejected, Err: fmt.Errorf("relay request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExecutionError{Kind: RelayRejected, Err: fmt.Errorf("read relay response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ExecutionError{
			Kind: RelayRejected,
			Err:  fmt.Errorf("relay status %d: %s", resp.StatusCode, string(raw)),
		}
	}
	if len(raw) == 0 {
		return nil, &ExecutionError{Kind: RelayRejected, Err: fmt.Errorf("relay returned empty transaction")}
	}
	return raw, nil
}

// validate rejects bad parameters before any network call and fills
// defaults.
func validate(req *TradeRequest) error {
	if req.Mint == "" {
		return &ValidationError{Field: "mint", Reason: "empty"}
	}
	if req.Action != domain.SideBuy && req.Action != domain.SideSell {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("must be %s or %s", domain.SideBuy, domain.SideSell)}
	}
	if req.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if req.Slippage < 0 {
		return &ValidationError{Field: "slippage", Reason: "must not be negative"}
	}
	if req.PriorityFee < 0 {
		return &ValidationError{Field: "priorityFee", Reason: "must not be negative"}
	}

	if req.Slippage == 0 {
		req.Slippage = DefaultSlippage
	}
	if req.PriorityFee == 0 {
		req.PriorityFee = DefaultPriorityFee
	}
	if req.Pool == "" {
		req.Pool = domain.PoolAuto
	}
	return nil
}
