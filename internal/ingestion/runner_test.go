package ingestion

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"pump-deck/internal/domain"
	"pump-deck/internal/ledger"
	"pump-deck/internal/storage"
	"pump-deck/internal/storage/memory"
)

// fakeFeed is an in-process FeedSource driven by the test.
type fakeFeed struct {
	mu         sync.Mutex
	events     chan *domain.Event
	tradeSubs  [][]string
	creations  int
	subscribed chan struct{}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		events:     make(chan *domain.Event, 64),
		subscribed: make(chan struct{}, 64),
	}
}

func (f *fakeFeed) Events() <-chan *domain.Event { return f.events }

func (f *fakeFeed) SubscribeCreations(context.Context) error {
	f.mu.Lock()
	f.creations++
	f.mu.Unlock()
	return nil
}

func (f *fakeFeed) SubscribeTrades(_ context.Context, keys []string) error {
	f.mu.Lock()
	f.tradeSubs = append(f.tradeSubs, keys)
	f.mu.Unlock()
	f.subscribed <- struct{}{}
	return nil
}

func (f *fakeFeed) tradeSubCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tradeSubs)
}

func creationEvent(mint string) *domain.Event {
	return &domain.Event{
		Kind: domain.KindCreation,
		Creation: &domain.CreationEvent{
			Mint:         mint,
			Name:         "Token " + mint,
			Symbol:       "TK",
			Creator:      "Creator1",
			MarketCapSol: 30,
			SolAmount:    1,
			ReceivedAt:   time.Now().UnixMilli(),
		},
	}
}

func tradeEvent(mint string, sol float64) *domain.Event {
	return &domain.Event{
		Kind: domain.KindTrade,
		Trade: &domain.TradeEvent{
			Mint:       mint,
			Trader:     "TraderA",
			Side:       domain.SideBuy,
			SolAmount:  sol,
			ReceivedAt: time.Now().UnixMilli(),
		},
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRunner_CreationFlowsToLedgerAndStore(t *testing.T) {
	feed := newFakeFeed()
	led := ledger.New(10)
	stats := memory.NewTokenStatsStore()

	r := NewRunner(RunnerOptions{
		Feed:   feed,
		Ledger: led,
		Stats:  stats,
		Logger: log.New(testWriter{t}, "", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	feed.events <- creationEvent("MintA")
	feed.events <- tradeEvent("MintA", 2.5)

	waitFor(t, func() bool { return led.Len() == 1 }, "creation never reached the ledger")
	waitFor(t, func() bool {
		rec, err := stats.GetByMint(context.Background(), "MintA")
		return err == nil && rec.TxCount == 1
	}, "events never drained to the store")

	// The new mint's trades should have been subscribed.
	select {
	case <-feed.subscribed:
	case <-time.After(time.Second):
		t.Fatal("trade subscription for new mint never sent")
	}

	entity := led.Get("MintA")
	if entity == nil {
		t.Fatal("MintA missing from ledger")
	}
	if entity.VolumeSol != 3.5 {
		t.Errorf("VolumeSol = %v, want 3.5", entity.VolumeSol)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}

func TestRunner_UnknownMintTradeDropped(t *testing.T) {
	feed := newFakeFeed()
	led := ledger.New(10)
	stats := memory.NewTokenStatsStore()

	r := NewRunner(RunnerOptions{Feed: feed, Ledger: led, Stats: stats, Logger: discardLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	feed.events <- tradeEvent("Ghost", 1)
	feed.events <- creationEvent("MintB")

	waitFor(t, func() bool { return led.Len() == 1 }, "creation never reached the ledger")

	// The ghost trade must not create a record.
	if _, err := stats.GetByMint(context.Background(), "Ghost"); err != storage.ErrNotFound {
		t.Errorf("ghost trade persisted: err = %v", err)
	}
}

func TestRunner_OnViewCoalesced(t *testing.T) {
	feed := newFakeFeed()
	led := ledger.New(10)

	var mu sync.Mutex
	flushes := 0

	r := NewRunner(RunnerOptions{
		Feed:   feed,
		Ledger: led,
		Stats:  memory.NewTokenStatsStore(),
		OnView: func() {
			mu.Lock()
			flushes++
			mu.Unlock()
		},
		CoalesceWindow: 50 * time.Millisecond,
		Logger:         discardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	// A burst of changes inside one window collapses to a single flush.
	feed.events <- creationEvent("MintC")
	feed.events <- tradeEvent("MintC", 1)
	feed.events <- tradeEvent("MintC", 2)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return flushes >= 1
	}, "view flush never fired")

	time.Sleep(120 * time.Millisecond)
	mu.Lock()
	got := flushes
	mu.Unlock()
	if got != 1 {
		t.Errorf("flushes = %d, want 1 for a single burst", got)
	}
}

func TestRunner_WarmLoadSeedsLedger(t *testing.T) {
	feed := newFakeFeed()
	led := ledger.New(10)
	stats := memory.NewTokenStatsStore()

	ctx := context.Background()
	for _, mint := range []string{"Old1", "Old2"} {
		if err := stats.UpsertTokenEvent(ctx, creationEvent(mint)); err != nil {
			t.Fatal(err)
		}
	}

	r := NewRunner(RunnerOptions{
		Feed:          feed,
		Ledger:        led,
		Stats:         stats,
		WarmLoadLimit: 10,
		Logger:        discardLogger(),
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = r.Run(runCtx) }()

	waitFor(t, func() bool { return led.Len() == 2 }, "warm load never populated the ledger")
	waitFor(t, func() bool { return feed.tradeSubCount() >= 1 }, "warm load never resubscribed trades")
}

func TestRunner_EnqueueDropsOldestWhenFull(t *testing.T) {
	r := NewRunner(RunnerOptions{QueueSize: 2, Logger: discardLogger()})

	// No drain goroutine running; fill past capacity.
	r.enqueue(creationEvent("M1"))
	r.enqueue(creationEvent("M2"))
	r.enqueue(creationEvent("M3"))

	if len(r.queue) != 2 {
		t.Fatalf("queue depth = %d, want 2", len(r.queue))
	}

	first := <-r.queue
	second := <-r.queue
	if first.Creation.Mint != "M2" || second.Creation.Mint != "M3" {
		t.Errorf("queue kept %s, %s; want M2, M3 (oldest dropped)", first.Creation.Mint, second.Creation.Mint)
	}
}

// testWriter routes runner logs through the test log.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func discardLogger() *log.Logger {
	return log.New(discard{}, "", 0)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
