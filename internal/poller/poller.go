// Package poller reconciles local state against the backend on fixed
// intervals: batch delivery statuses while work is tracked, plus a slower
// courier profile refresh for the affiliation label.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rotaouro/courier-agent/internal/backend"
	"github.com/rotaouro/courier-agent/internal/store"
)

type Config struct {
	CourierID           int64
	StatusInterval      time.Duration
	AffiliationInterval time.Duration
}

type Poller struct {
	cfg   Config
	api   backend.API
	store *store.AcceptedStore
	log   *slog.Logger

	// onDropped runs after a reconciliation pass removes deliveries
	// (draft cleanup).
	onDropped func(ctx context.Context, deliveryIDs []int64)

	mu          sync.Mutex
	affiliation string
}

func New(cfg Config, api backend.API, st *store.AcceptedStore, onDropped func(context.Context, []int64), log *slog.Logger) *Poller {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 3 * time.Second
	}
	if cfg.AffiliationInterval <= 0 {
		cfg.AffiliationInterval = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		cfg:       cfg,
		api:       api,
		store:     st,
		onDropped: onDropped,
		log:       log.With("component", "poller"),
	}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	status := time.NewTicker(p.cfg.StatusInterval)
	defer status.Stop()
	affiliation := time.NewTicker(p.cfg.AffiliationInterval)
	defer affiliation.Stop()

	p.refreshAffiliation(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-status.C:
			p.reconcile(ctx)
		case <-affiliation.C:
			p.refreshAffiliation(ctx)
		}
	}
}

// reconcile runs one batch-status pass. An empty listing is treated as a
// backend hiccup, not as "everything concluded": the pass is skipped rather
// than wiping the whole accepted list at once.
func (p *Poller) reconcile(ctx context.Context) {
	if p.store.Len() == 0 {
		return
	}
	entries := p.api.BatchStatuses(ctx)
	if len(entries) == 0 {
		p.log.Debug("empty status listing, skipping pass")
		return
	}
	dropped := p.store.ApplySnapshot(entries)
	if len(dropped) == 0 {
		return
	}
	p.log.Info("reconciliation dropped deliveries", "ids", dropped)
	if p.onDropped != nil {
		p.onDropped(ctx, dropped)
	}
}

func (p *Poller) refreshAffiliation(ctx context.Context) {
	cour := p.api.FetchCourier(ctx, p.cfg.CourierID)
	if cour == nil {
		return
	}
	label := cour.Affiliation()
	p.mu.Lock()
	changed := label != p.affiliation
	p.affiliation = label
	p.mu.Unlock()
	if changed {
		p.log.Info("affiliation changed", "label", label)
	}
}

// Affiliation returns the last label read from the courier profile; empty
// when unaffiliated or not yet fetched.
func (p *Poller) Affiliation() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.affiliation
}
