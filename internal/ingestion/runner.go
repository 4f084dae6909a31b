package ingestion

import (
	"context"
	"log"
	"time"

	"pump-deck/internal/domain"
	"pump-deck/internal/ledger"
	"pump-deck/internal/observability"
	"pump-deck/internal/storage"
)

// FeedSource is the slice of the feed client the runner needs.
type FeedSource interface {
	Events() <-chan *domain.Event
	SubscribeCreations(ctx context.Context) error
	SubscribeTrades(ctx context.Context, keys []string) error
}

// BalanceRefresher is the slice of the wallet manager the runner needs.
type BalanceRefresher interface {
	RefreshBalances(ctx context.Context) error
}

// HealthChecker reports whether the RPC node is healthy.
type HealthChecker interface {
	GetHealth(ctx context.Context) error
}

// Default runner tuning.
const (
	DefaultQueueSize      = 1024
	DefaultTapeFlush      = 5 * time.Second
	DefaultTapeBatchSize  = 200
	DefaultHealthInterval = 30 * time.Second
)

// Runner wires the feed into the ledger and fans writes out to persistence.
// The feed path is never blocked: durable writes go through a bounded queue
// with a drop-oldest overflow policy and one drain goroutine, and the tape
// is batched on top of that.
type Runner struct {
	feed      FeedSource
	ledger    *ledger.Ledger
	stats     storage.TokenStatsStore
	tape      storage.TradeTapeStore // optional
	wallets   BalanceRefresher       // optional
	health    HealthChecker          // optional
	coalescer *ledger.Coalescer
	onView    func()
	logger    *log.Logger

	queue           chan *domain.Event
	refreshInterval time.Duration
	tapeFlush       time.Duration
	warmLoadLimit   int
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Feed   FeedSource
	Ledger *ledger.Ledger
	Stats  storage.TokenStatsStore
	// Tape is optional; nil disables the trade tape.
	Tape storage.TradeTapeStore
	// Wallets is optional; nil disables the balance refresh ticker.
	Wallets BalanceRefresher
	// Health is optional; nil disables the RPC health checks.
	Health          HealthChecker
	RefreshInterval time.Duration
	// QueueSize bounds the persistence queue. Default 1024.
	QueueSize int
	// OnView is called at most once per coalescing window after ledger
	// changes. Optional.
	OnView func()
	// CoalesceWindow overrides the view coalescing window.
	CoalesceWindow time.Duration
	// WarmLoadLimit caps how many recent tokens are loaded into the ledger
	// on startup. 0 disables warm load.
	WarmLoadLimit int
	Logger        *log.Logger
}

// NewRunner creates an ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	refreshInterval := opts.RefreshInterval
	if refreshInterval <= 0 {
		refreshInterval = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		feed:            opts.Feed,
		ledger:          opts.Ledger,
		stats:           opts.Stats,
		tape:            opts.Tape,
		wallets:         opts.Wallets,
		health:          opts.Health,
		coalescer:       ledger.NewCoalescer(opts.CoalesceWindow),
		onView:          opts.OnView,
		logger:          logger,
		queue:           make(chan *domain.Event, queueSize),
		refreshInterval: refreshInterval,
		tapeFlush:       DefaultTapeFlush,
		warmLoadLimit:   opts.WarmLoadLimit,
	}
}

// Run starts ingestion and blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Println("Starting ingestion runner...")

	if r.health != nil {
		if err := r.health.GetHealth(ctx); err != nil {
			// Ingestion works without the RPC; trades and balances won't.
			r.logger.Printf("rpc node unhealthy at startup: %v", err)
		}
		go r.healthLoop(ctx)
	}

	if r.warmLoadLimit > 0 {
		r.warmLoad(ctx)
	}

	if err := r.feed.SubscribeCreations(ctx); err != nil {
		return err
	}
	r.logger.Println("Subscribed to token creations")

	go r.drainQueue(ctx)
	go r.coalescer.Run(ctx, r.flushView)

	if r.wallets != nil {
		go r.refreshLoop(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("Ingestion runner stopping")
			return ctx.Err()
		case ev, ok := <-r.feed.Events():
			if !ok {
				r.logger.Println("Feed closed, ingestion runner stopping")
				return nil
			}
			r.handleEvent(ctx, ev)
		}
	}
}

// handleEvent applies one event to the ledger and queues the durable write.
func (r *Runner) handleEvent(ctx context.Context, ev *domain.Event) {
	applied := r.ledger.Apply(ev)

	switch ev.Kind {
	case domain.KindCreation:
		observability.RecordFeedEvent("creation")
		if applied && ev.Creation != nil {
			// Follow the new token's trades on the same connection.
			if err := r.feed.SubscribeTrades(ctx, []string{ev.Creation.Mint}); err != nil {
				r.logger.Printf("subscribe trades for %s: %v", ev.Creation.Mint, err)
			}
		}
	case domain.KindTrade:
		observability.RecordFeedEvent("trade")
		if !applied {
			observability.RecordUnknownMintTrade()
			return
		}
	}

	if applied {
		observability.UpdateLedgerSize(r.ledger.Len())
		r.coalescer.Notify()
		r.enqueue(ev)
	}
}

// enqueue adds a durable write without ever blocking the feed path. When
// the queue is full the oldest pending write is dropped in favor of the new
// one.
func (r *Runner) enqueue(ev *domain.Event) {
	for {
		select {
		case r.queue <- ev:
			observability.UpdatePersistQueueDepth(len(r.queue))
			return
		default:
		}

		select {
		case <-r.queue:
			observability.RecordPersistDropped()
		default:
		}
	}
}

// drainQueue is the single consumer of the persistence queue.
func (r *Runner) drainQueue(ctx context.Context) {
	var tapeBatch []*domain.TradeEvent
	flush := time.NewTicker(r.tapeFlush)
	defer flush.Stop()

	flushTape := func() {
		if r.tape == nil || len(tapeBatch) == 0 {
			return
		}
		if err := r.tape.AppendBatch(ctx, tapeBatch); err != nil {
			observability.RecordPersistError("trade_tape")
			r.logger.Printf("append trade tape: %v", err)
		}
		tapeBatch = tapeBatch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flushTape()
			return
		case <-flush.C:
			flushTape()
		case ev := <-r.queue:
			observability.UpdatePersistQueueDepth(len(r.queue))
			if err := r.stats.UpsertTokenEvent(ctx, ev); err != nil {
				observability.RecordPersistError("token_stats")
				r.logger.Printf("upsert token event: %v", err)
			}
			if ev.Kind == domain.KindTrade && ev.Trade != nil {
				tapeBatch = append(tapeBatch, ev.Trade)
				if len(tapeBatch) >= DefaultTapeBatchSize {
					flushTape()
				}
			}
		}
	}
}

// flushView forwards one coalesced change signal to the consumer.
func (r *Runner) flushView() {
	observability.RecordViewFlush()
	if r.onView != nil {
		r.onView()
	}
}

// refreshLoop periodically refreshes wallet balances.
func (r *Runner) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.wallets.RefreshBalances(ctx); err != nil {
				r.logger.Printf("refresh balances: %v", err)
			}
		}
	}
}

// healthLoop periodically probes the RPC node and logs state changes.
func (r *Runner) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(DefaultHealthInterval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := r.health.GetHealth(ctx)
			if err != nil && healthy {
				r.logger.Printf("rpc node unhealthy: %v", err)
			} else if err == nil && !healthy {
				r.logger.Println("rpc node healthy again")
			}
			healthy = err == nil
		}
	}
}

// warmLoad seeds the ledger with the most recently active persisted tokens
// and resubscribes to their trades.
func (r *Runner) warmLoad(ctx context.Context) {
	recent, err := r.stats.GetRecent(ctx, r.warmLoadLimit)
	if err != nil {
		r.logger.Printf("warm load: %v", err)
		return
	}
	if len(recent) == 0 {
		return
	}

	mints := make([]string, 0, len(recent))
	// GetRecent is newest first; apply oldest first so ledger insertion
	// order matches history.
	for i := len(recent) - 1; i >= 0; i-- {
		rec := recent[i]
		r.ledger.Apply(&domain.Event{
			Kind: domain.KindCreation,
			Creation: &domain.CreationEvent{
				Mint:         rec.Mint,
				Name:         rec.Name,
				Symbol:       rec.Symbol,
				Creator:      rec.Creator,
				Pool:         rec.Pool,
				MarketCapSol: rec.MarketCapSol,
				ReceivedAt:   rec.LastUpdated.UnixMilli(),
			},
		})
		mints = append(mints, rec.Mint)
	}

	if err := r.feed.SubscribeTrades(ctx, mints); err != nil {
		r.logger.Printf("warm load subscribe: %v", err)
	}
	observability.UpdateLedgerSize(r.ledger.Len())
	r.logger.Printf("Warm-loaded %d tokens", len(mints))
}
