package cmd

import (
	"fmt"

	"github.com/HKUDS/AI-Trader-sub000/config"
	"github.com/HKUDS/AI-Trader-sub000/ledger"
	"github.com/HKUDS/AI-Trader-sub000/lockfile"
	"github.com/HKUDS/AI-Trader-sub000/market"
	"github.com/HKUDS/AI-Trader-sub000/orders"
	"github.com/HKUDS/AI-Trader-sub000/pricefeed"
	"github.com/HKUDS/AI-Trader-sub000/settle"
)

// app bundles the wired engine with the collaborators commands query
// directly.
type app struct {
	cfg    *config.Config
	store  ledger.Store
	queue  *orders.FileQueue
	engine *settle.Engine
	close  func()
}

// newApp builds the engine from configuration: storage backend, order
// queue, price source, lock registry, simulated clock.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)

	var store ledger.Store
	closer := func() {}
	switch cfg.Storage.Backend {
	case "sqlite":
		s, err := ledger.NewSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open ledger db: %w", err)
		}
		store = s
		closer = func() { _ = s.Close() }
	default:
		s, err := ledger.NewFileStore(cfg.Storage.Root)
		if err != nil {
			return nil, fmt.Errorf("open ledger store: %w", err)
		}
		store = s
	}

	queue, err := orders.NewFileQueue(cfg.Storage.Root)
	if err != nil {
		closer()
		return nil, fmt.Errorf("open order queue: %w", err)
	}

	var prices market.RangeSource
	switch cfg.Pricefeed.Source {
	case "http":
		prices = pricefeed.NewClient(cfg.Pricefeed.BaseURL, cfg.Pricefeed.Token)
	default:
		prices = pricefeed.NewDir(cfg.Pricefeed.CSVDir)
	}

	timeout, err := cfg.Settlement.ParseLockTimeout()
	if err != nil {
		closer()
		return nil, err
	}
	locks, err := lockfile.NewRegistry(cfg.Storage.Root, timeout)
	if err != nil {
		closer()
		return nil, fmt.Errorf("open lock registry: %w", err)
	}

	engine := settle.NewEngine(store, queue, prices, locks)
	engine.SetClearQueue(cfg.Settlement.ClearQueue)
	if clock, err := cfg.Simulation.Date(); err == nil && !clock.IsZero() {
		engine.SetClock(clock)
	}

	return &app{cfg: cfg, store: store, queue: queue, engine: engine, close: closer}, nil
}

// portfolio returns the explicit flag value or the configured default.
func (a *app) portfolio(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Portfolio.ID
}
