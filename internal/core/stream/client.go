// Package stream maintains the single long-lived partner push channel:
// one connection per session, typed event decode, subscriber fan-out,
// and fixed-delay reconnect.
package stream

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
)

const DefaultReconnectDelay = 5 * time.Second

// Receiver yields raw named events from one open channel until the
// transport fails.
type Receiver interface {
	Next() (name string, data []byte, err error)
	Close() error
}

// Transport dials the push channel. Connect blocks until the channel
// is open or the context is done.
type Transport interface {
	Connect(ctx context.Context) (Receiver, error)
}

// State is the client's connection surface for the UI: the connection
// banner, the initial-load spinner, and the habit cache-invalidation
// stamp.
type State struct {
	Connected       bool
	Loading         bool
	LastError       string
	LastHabitUpdate time.Time
}

// Client owns the partner list. Nothing else mutates it: partner
// snapshots arrive only through initial_partners / partners_update
// events, each a wholesale replacement, so delivery order alone
// determines final state and no merge logic exists.
type Client struct {
	transport      Transport
	reconnectDelay time.Duration
	now            func() time.Time

	mu       sync.Mutex
	partners []domain.Partner
	state    State
	subs     []chan []domain.Partner
	started  bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewClient(transport Transport) *Client {
	return &Client{
		transport:      transport,
		reconnectDelay: DefaultReconnectDelay,
		now:            time.Now,
		state:          State{Loading: true},
		done:           make(chan struct{}),
	}
}

// SetReconnectDelay overrides the fixed delay between a channel error
// and the next connection attempt.
func (c *Client) SetReconnectDelay(d time.Duration) {
	if d > 0 {
		c.reconnectDelay = d
	}
}

// SetClock injects a clock for tests.
func (c *Client) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Start launches the connection loop. Idempotent; the second call is a
// no-op.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
}

// Close tears the channel down and cancels any pending reconnect. It
// blocks until the loop has stopped, then closes subscriber channels.
func (c *Client) Close() {
	c.mu.Lock()
	started := c.started
	cancel := c.cancel
	c.mu.Unlock()
	if !started {
		return
	}

	cancel()
	<-c.done

	c.mu.Lock()
	for _, sub := range c.subs {
		close(sub)
	}
	c.subs = nil
	c.mu.Unlock()
}

// Partners returns a snapshot of the current partner list.
func (c *Client) Partners() []domain.Partner {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ClonePartners(c.partners)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel receiving every partner-list snapshot.
// The channel is buffered one deep; a subscriber that falls behind
// loses intermediate snapshots and sees only the latest, which is
// safe because every snapshot is a full replacement.
func (c *Client) Subscribe() <-chan []domain.Partner {
	sub := make(chan []domain.Partner, 1)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// run is the connection loop: connect, drain events until the channel
// fails, wait the fixed delay, repeat. The loop structure itself is
// the single-connection invariant: a new attempt only starts after
// the previous receiver is closed.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		recv, err := c.transport.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.setDisconnected("connection error")
			log.Printf("Partner stream connect failed: %v", err)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		c.setConnected()

		c.consume(ctx, recv)
		recv.Close()

		if ctx.Err() != nil {
			return
		}
		c.setDisconnected("connection error")
		if !c.sleep(ctx) {
			return
		}
	}
}

func (c *Client) consume(ctx context.Context, recv Receiver) {
	for {
		name, data, err := recv.Next()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Partner stream closed: %v", err)
			}
			return
		}

		event, err := domain.DecodeStreamEvent(name, data, c.now())
		if err != nil {
			// One bad event is not a channel failure.
			log.Printf("Dropping malformed stream event: %v", err)
			continue
		}

		c.apply(event)
	}
}

func (c *Client) apply(event domain.StreamEvent) {
	switch e := event.(type) {
	case domain.InitialPartnersEvent:
		c.replacePartners(e.Partners)
	case domain.PartnersUpdateEvent:
		c.replacePartners(e.Partners)
	case domain.HabitUpdateEvent:
		c.mu.Lock()
		c.state.LastHabitUpdate = e.At
		c.mu.Unlock()
	}
}

func (c *Client) replacePartners(partners []domain.Partner) {
	c.mu.Lock()
	c.partners = domain.ClonePartners(partners)
	c.state.Loading = false

	for _, sub := range c.subs {
		snapshot := domain.ClonePartners(partners)
		select {
		case sub <- snapshot:
		default:
			// Drop the stale snapshot, deliver the fresh one.
			select {
			case <-sub:
			default:
			}
			sub <- snapshot
		}
	}
	c.mu.Unlock()
}

func (c *Client) setConnected() {
	c.mu.Lock()
	c.state.Connected = true
	c.state.LastError = ""
	c.mu.Unlock()
}

func (c *Client) setDisconnected(message string) {
	c.mu.Lock()
	c.state.Connected = false
	c.state.LastError = message
	c.mu.Unlock()
}

// sleep waits out the reconnect delay, returning false if the client
// was torn down first so no reconnect fires after Close.
func (c *Client) sleep(ctx context.Context) bool {
	timer := time.NewTimer(c.reconnectDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
