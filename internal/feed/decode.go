package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pump-deck/internal/domain"
)

// Decode errors.
var (
	ErrAckFrame     = errors.New("subscription ack frame")
	ErrMissingMint  = errors.New("frame missing mint")
	ErrUnknownFrame = errors.New("unknown frame shape")
)

// txType values on the wire.
const (
	txTypeCreate = "create"
	txTypeBuy    = "buy"
	txTypeSell   = "sell"
)

// rawFrame is the upstream wire shape shared by creation and trade events.
// Acks arrive as {"message": "Successfully subscribed ..."}.
type rawFrame struct {
	Message string `json:"message"`

	TxType          string  `json:"txType"`
	Mint            string  `json:"mint"`
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	URI             string  `json:"uri"`
	TraderPublicKey string  `json:"traderPublicKey"`
	SolAmount       float64 `json:"solAmount"`
	TokenAmount     float64 `json:"tokenAmount"`
	MarketCapSol    float64 `json:"marketCapSol"`
	Pool            string  `json:"pool"`
}

// decodeFrame validates and converts one upstream frame into a domain event.
// Ack frames return ErrAckFrame so the caller can drop them silently.
func decodeFrame(data []byte, receivedAt time.Time) (*domain.Event, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}

	if raw.Message != "" {
		return nil, ErrAckFrame
	}
	if raw.Mint == "" {
		return nil, ErrMissingMint
	}

	switch raw.TxType {
	case txTypeCreate:
		return &domain.Event{
			Kind: domain.KindCreation,
			Creation: &domain.CreationEvent{
				Mint:         raw.Mint,
				Name:         raw.Name,
				Symbol:       raw.Symbol,
				URI:          raw.URI,
				Creator:      raw.TraderPublicKey,
				MarketCapSol: raw.MarketCapSol,
				SolAmount:    raw.SolAmount,
				Pool:         raw.Pool,
				ReceivedAt:   receivedAt.UnixMilli(),
			},
		}, nil
	case txTypeBuy, txTypeSell, "":
		// Trades may omit txType; the side is then inferred from amounts.
		return &domain.Event{
			Kind: domain.KindTrade,
			Trade: &domain.TradeEvent{
				Mint:         raw.Mint,
				Trader:       raw.TraderPublicKey,
				Side:         raw.TxType,
				SolAmount:    raw.SolAmount,
				TokenAmount:  raw.TokenAmount,
				MarketCapSol: raw.MarketCapSol,
				Pool:         raw.Pool,
				ReceivedAt:   receivedAt.UnixMilli(),
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: txType %q", ErrUnknownFrame, raw.TxType)
	}
}
