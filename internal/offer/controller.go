// Package offer owns the decision flow for inbound delivery offers: the
// single CURRENT offer shown to the courier, the FIFO queue behind it, the
// per-second countdown and the duplicate-event guard. An arrival never
// replaces the current offer; it waits its turn.
package offer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rotaouro/courier-agent/internal/alert"
	"github.com/rotaouro/courier-agent/internal/backend"
	"github.com/rotaouro/courier-agent/internal/model"
	"github.com/rotaouro/courier-agent/internal/offerkey"
	"github.com/rotaouro/courier-agent/internal/store"
)

var (
	// ErrNoOffer means accept/reject was pressed with nothing on screen.
	ErrNoOffer = errors.New("no current offer")
	// ErrActionRejected means the backend refused the action (most often
	// because the assignment hold expired server-side). Local state is
	// unchanged; the operator may retry while the countdown lasts.
	ErrActionRejected = errors.New("action rejected by backend")
)

// View hints emitted for the shell.
const (
	ViewOffer      = "offer"
	ViewDeliveries = "deliveries"
)

type Config struct {
	CourierID   int64
	CourierName string
	// TTL is the synthetic deadline assigned to offers that arrive without
	// expira_em; it mirrors the backend's assignment hold.
	TTL time.Duration
	// DedupeWindow collapses duplicate listener firings for one offer key.
	DedupeWindow time.Duration
	// CountdownTick is the countdown resolution. One second in production.
	CountdownTick time.Duration
}

type Controller struct {
	cfg     Config
	api     backend.API
	store   *store.AcceptedStore
	sounder alert.Sounder
	log     *slog.Logger
	now     func() time.Time

	dedupe *offerkey.Dedupe

	mu          sync.Mutex
	current     *model.Offer
	queue       []model.Offer
	secondsLeft int
	view        string
	ticking     chan struct{} // closed to cancel the countdown goroutine
}

// Snapshot is the shell-facing view of the offer state.
type Snapshot struct {
	Current     *model.Offer `json:"current,omitempty"`
	SecondsLeft *int         `json:"seconds_left,omitempty"`
	QueueLen    int          `json:"queue_len"`
	View        string       `json:"view"`
}

func NewController(cfg Config, api backend.API, st *store.AcceptedStore, sounder alert.Sounder, log *slog.Logger) *Controller {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Second
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = 150 * time.Millisecond
	}
	if cfg.CountdownTick <= 0 {
		cfg.CountdownTick = time.Second
	}
	if sounder == nil {
		sounder = alert.NewLogSounder(log)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		cfg:     cfg,
		api:     api,
		store:   st,
		sounder: sounder,
		log:     log.With("component", "offer"),
		now:     time.Now,
		dedupe:  offerkey.NewDedupe(cfg.DedupeWindow),
		view:    ViewDeliveries,
	}
}

// HandlePush processes one inbound push payload end to end: normalize,
// deduplicate, guard against stale assignment, then display or enqueue.
func (c *Controller) HandlePush(ctx context.Context, p *model.PushPayload) {
	if !p.IsOffer() {
		return
	}
	id := p.DeliveryID()
	if id == 0 {
		return
	}
	event := uuid.NewString()

	o := c.normalize(ctx, p)
	key := offerkey.Key(o.DeliveryID, o.ExpiresAt)
	if c.dedupe.Seen(key) {
		c.log.Debug("duplicate push collapsed", "event", event, "key", key)
		return
	}
	c.log.Info("offer arrived", "event", event, "entrega_id", id, "key", key)
	c.admit(ctx, o, event)
}

// PollPendingAssignment fetches assignments still inside their hold window
// (used on startup and whenever the shell returns to the foreground) and
// feeds the first one through the same pipeline as a push.
func (c *Controller) PollPendingAssignment(ctx context.Context) {
	list := c.api.PendingAssignments(ctx, c.cfg.CourierID)
	if len(list) == 0 {
		return
	}
	rec := &list[0]
	id := rec.DeliveryID()
	if id == 0 || c.hasOffer(id) {
		return
	}
	o := model.Offer{
		DeliveryID:     id,
		PublicCode:     rec.PublicCode(),
		ClientName:     rec.ClienteNome.String(),
		PickupAddress:  rec.ColetaEndereco.String(),
		DropoffAddress: rec.EntregaEndereco.String(),
		Commission:     rec.ValorTotalMotoboy.String(),
		Additional:     rec.ValorAdicionalMotoboy.String(),
		ExpiresAt:      rec.AssignDeadline(),
	}
	c.ensureExpiry(&o)
	key := offerkey.Key(o.DeliveryID, o.ExpiresAt)
	if c.dedupe.Seen(key) {
		return
	}
	c.admit(ctx, o, uuid.NewString())
}

// Accept confirms the current offer with the backend, optimistically tracks
// the delivery, then corrects it from the authoritative record.
func (c *Controller) Accept(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return ErrNoOffer
	}
	c.sounder.Stop()

	if !c.api.Accept(ctx, cur.DeliveryID, c.cfg.CourierID) {
		// Offer stays CURRENT; the countdown keeps running.
		return ErrActionRejected
	}

	// Optimistic insert; has_retorno only becomes trustworthy after the
	// corrective fetch below.
	c.store.Add(model.AcceptedDelivery{
		DeliveryID:     cur.DeliveryID,
		PublicCode:     cur.PublicCode,
		ClientName:     cur.ClientName,
		PickupAddress:  cur.PickupAddress,
		DropoffAddress: cur.DropoffAddress,
		Commission:     cur.Commission,
		HasReturn:      false,
		Provisional:    true,
	})

	if rec := c.api.FetchByID(ctx, cur.DeliveryID); rec != nil {
		c.store.Update(cur.DeliveryID, func(d *model.AcceptedDelivery) {
			d.PublicCode = rec.PublicCode()
			if !rec.ValorTotalMotoboy.Empty() {
				d.Commission = rec.ValorTotalMotoboy.String()
			}
			d.HasReturn = rec.HasReturnLeg()
			d.SignatureRequired = rec.SignatureRequired()
			d.Provisional = false
		})
	}

	// close lands on the deliveries view unless a queued offer takes over.
	c.close(ctx, cur)
	return nil
}

// Reject declines the current offer. On backend refusal the offer stays
// put, exactly like Accept.
func (c *Controller) Reject(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return ErrNoOffer
	}
	c.sounder.Stop()

	if !c.api.Reject(ctx, cur.DeliveryID, c.cfg.CourierID) {
		return ErrActionRejected
	}
	c.close(ctx, cur)
	return nil
}

// Snapshot returns the current offer (with seconds remaining), queue depth
// and view hint.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{QueueLen: len(c.queue), View: c.view}
	if c.current != nil {
		o := *c.current
		snap.Current = &o
		secs := c.secondsLeft
		snap.SecondsLeft = &secs
	}
	return snap
}

// Close tears the controller down: countdown cancelled, tone silenced.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopCountdownLocked()
	c.current = nil
	c.queue = nil
	c.mu.Unlock()
	c.sounder.Stop()
}

// normalize builds an Offer from a push payload, resolving the display code
// via the payload aliases first, a fetch-by-id second, and the raw id last.
func (c *Controller) normalize(ctx context.Context, p *model.PushPayload) model.Offer {
	id := p.DeliveryID()
	o := model.Offer{
		DeliveryID:     id,
		PublicCode:     p.PublicCode(),
		ClientName:     firstOf(p.ClienteNome, p.Cliente),
		PickupAddress:  firstOf(p.ColetaEndereco, p.Coleta),
		DropoffAddress: firstOf(p.EntregaEndereco, p.Entrega),
		Commission:     p.Commission(),
		Additional:     p.Additional(),
		ExpiresAt:      p.ExpiresAt(),
	}
	if !p.HasRetorno.Empty() {
		v := model.CoerceBoolStrict(p.HasRetorno.String())
		o.HasReturn = &v
	}
	if o.PublicCode == "" {
		if rec := c.api.FetchByID(ctx, id); rec != nil {
			o.PublicCode = rec.PublicCode()
		} else {
			o.PublicCode = strconv.FormatInt(id, 10)
		}
	}
	c.ensureExpiry(&o)
	return o
}

// ensureExpiry assigns the synthetic now+TTL deadline to offers that came
// without one, so distinct assignments of the same delivery stay distinct.
func (c *Controller) ensureExpiry(o *model.Offer) {
	if o.ExpiresAt == nil {
		t := c.now().Add(c.cfg.TTL)
		o.ExpiresAt = &t
	}
}

// admit runs the stale-assignment guard and then displays or enqueues.
func (c *Controller) admit(ctx context.Context, o model.Offer, event string) {
	if !c.api.CheckStillAssigned(ctx, o.DeliveryID, c.cfg.CourierID, c.cfg.CourierName) {
		// Not an error: the offer was reassigned or expired server-side.
		c.log.Info("offer no longer ours, discarding", "event", event, "entrega_id", o.DeliveryID)
		c.mu.Lock()
		if c.current == nil {
			c.view = ViewDeliveries
		}
		c.mu.Unlock()
		return
	}

	key := offerkey.Key(o.DeliveryID, o.ExpiresAt)
	c.mu.Lock()
	if c.current != nil {
		if offerkey.Key(c.current.DeliveryID, c.current.ExpiresAt) == key {
			c.mu.Unlock()
			return
		}
		for i := range c.queue {
			if offerkey.Key(c.queue[i].DeliveryID, c.queue[i].ExpiresAt) == key {
				c.mu.Unlock()
				return
			}
		}
		c.queue = append(c.queue, o)
		c.mu.Unlock()
		c.log.Info("offer queued", "event", event, "entrega_id", o.DeliveryID, "depth", c.QueueLen())
		return
	}
	c.displayLocked(o)
	c.mu.Unlock()
	c.sounder.Start()
}

func (c *Controller) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// hasOffer reports whether the delivery already occupies the screen or the
// queue under any identity key. The pending-assignment poll synthesizes a
// fresh expiry per pass, so the id is the only stable handle.
func (c *Controller) hasOffer(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.DeliveryID == id {
		return true
	}
	for i := range c.queue {
		if c.queue[i].DeliveryID == id {
			return true
		}
	}
	return false
}

// displayLocked makes o the CURRENT offer and arms its countdown.
func (c *Controller) displayLocked(o model.Offer) {
	c.stopCountdownLocked()
	c.current = &o
	c.view = ViewOffer
	if secs, ok := offerkey.SecondsRemaining(o.ExpiresAt, c.now()); ok {
		c.secondsLeft = secs
	}
	done := make(chan struct{})
	c.ticking = done
	go c.countdown(o, done)
}

func (c *Controller) countdown(o model.Offer, done chan struct{}) {
	key := offerkey.Key(o.DeliveryID, o.ExpiresAt)
	t := time.NewTicker(c.cfg.CountdownTick)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
		}
		secs, ok := offerkey.SecondsRemaining(o.ExpiresAt, c.now())
		if !ok {
			continue
		}
		c.mu.Lock()
		if c.current == nil || offerkey.Key(c.current.DeliveryID, c.current.ExpiresAt) != key {
			c.mu.Unlock()
			return
		}
		c.secondsLeft = secs
		c.mu.Unlock()
		if secs <= 0 {
			c.expire(&o)
			return
		}
	}
}

// expire closes the current offer without accept/reject once its countdown
// hits zero.
func (c *Controller) expire(o *model.Offer) {
	c.log.Info("offer expired", "entrega_id", o.DeliveryID)
	c.close(context.Background(), o)
}

// close resolves exactly the offer it was handed: if another offer took the
// screen in the meantime (countdown expiry racing a slow accept/reject call),
// the takeover is left alone. Otherwise it clears the current offer, silences
// the tone, releases the identity keys for the delivery and promotes the next
// queued offer, re-validating it defensively.
func (c *Controller) close(ctx context.Context, o *model.Offer) {
	key := offerkey.Key(o.DeliveryID, o.ExpiresAt)
	c.mu.Lock()
	if c.current == nil || offerkey.Key(c.current.DeliveryID, c.current.ExpiresAt) != key {
		c.mu.Unlock()
		return
	}
	c.stopCountdownLocked()
	c.current = nil
	c.secondsLeft = 0
	c.view = ViewDeliveries
	c.mu.Unlock()

	c.sounder.Stop()
	c.dedupe.Forget(o.DeliveryID)

	for {
		c.mu.Lock()
		if c.current != nil || len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		if !c.api.CheckStillAssigned(ctx, next.DeliveryID, c.cfg.CourierID, c.cfg.CourierName) {
			c.log.Info("queued offer went stale, skipping", "entrega_id", next.DeliveryID)
			c.dedupe.Forget(next.DeliveryID)
			continue
		}

		c.mu.Lock()
		if c.current != nil {
			// someone displayed an offer while we validated; put it back
			c.queue = append([]model.Offer{next}, c.queue...)
			c.mu.Unlock()
			return
		}
		c.displayLocked(next)
		c.mu.Unlock()
		c.sounder.Start()
		return
	}
}

func (c *Controller) stopCountdownLocked() {
	if c.ticking != nil {
		close(c.ticking)
		c.ticking = nil
	}
}

func firstOf(vals ...model.FlexString) string {
	for _, v := range vals {
		if !v.Empty() {
			return v.String()
		}
	}
	return ""
}
