package central

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/chaz8081/blesensor/internal/ble"
)

type eventKind int

const (
	evConnect eventKind = iota
	evReconnect
	evSettled
	evReadNext
	evDisconnected
)

func (k eventKind) String() string {
	switch k {
	case evConnect:
		return "connect"
	case evReconnect:
		return "reconnect"
	case evSettled:
		return "settled"
	case evReadNext:
		return "read-next"
	case evDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// event is one input to a peripheral's state machine. Deferred events carry
// the connection cycle that scheduled them and are discarded once the cycle
// has moved on.
type event struct {
	kind  eventKind
	cycle ulid.ULID
}

// peripheral is the state record of one managed address. All fields below
// state are owned by the run goroutine.
type peripheral struct {
	c  *Central
	id PeripheralIdentity

	state atomic.Int32

	events chan event
	done   chan struct{}

	link    ble.Link
	cycle   ulid.ULID
	policy  backoff.BackOff
	pending []event // self-scheduled steps, run after queued external events

	settleTimer    *time.Timer
	reconnectTimer *time.Timer

	seq      *sequencer
	finished bool
}

func newPeripheral(c *Central, id PeripheralIdentity) *peripheral {
	return &peripheral{
		c:      c,
		id:     id,
		events: make(chan event, 16),
		done:   make(chan struct{}),
		policy: c.opts.newBackOff(),
		seq:    newSequencer(c.profile.Plan),
	}
}

func (p *peripheral) currentState() ConnectionState {
	return ConnectionState(p.state.Load())
}

func (p *peripheral) logger() *slog.Logger {
	return slog.With("addr", p.id.Address, "cycle", p.cycle.String())
}

// post queues an event from any goroutine. Events posted after the state
// machine has exited are dropped.
func (p *peripheral) post(ev event) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

// enqueue schedules a follow-up step from the run goroutine itself.
func (p *peripheral) enqueue(ev event) {
	p.pending = append(p.pending, ev)
}

func (p *peripheral) run() {
	defer close(p.done)
	ctx := p.c.ctx
	for !p.finished {
		// External events (disconnects in particular) take priority over
		// self-scheduled read steps.
		select {
		case ev := <-p.events:
			p.handle(ev)
			continue
		case <-ctx.Done():
			p.teardown()
			return
		default:
		}

		if len(p.pending) > 0 {
			ev := p.pending[0]
			p.pending = p.pending[1:]
			p.handle(ev)
			continue
		}

		select {
		case ev := <-p.events:
			p.handle(ev)
		case <-ctx.Done():
			p.teardown()
			return
		}
	}
}

func (p *peripheral) handle(ev event) {
	switch ev.kind {
	case evConnect, evDisconnected:
	default:
		if ev.cycle != p.cycle {
			p.logger().Debug("[BLE] dropping stale event", "event", ev.kind.String())
			return
		}
	}

	switch ev.kind {
	case evConnect:
		p.connect(true)
	case evReconnect:
		p.connect(false)
	case evSettled:
		p.discover()
	case evReadNext:
		p.readNext()
	case evDisconnected:
		p.disconnected()
	}
}

// setState records a transition and reports it to the shell.
func (p *peripheral) setState(s ConnectionState) {
	prev := ConnectionState(p.state.Swap(int32(s)))
	if prev == s {
		return
	}
	p.logger().Debug("[BLE] state change", "from", prev.String(), "to", s.String())
	p.c.shell.Status(s.statusText(p.id.Address))
}

// connect issues a connect request on the peripheral's link, allocating the
// link on the initial attempt and reusing it on reconnects.
func (p *peripheral) connect(initial bool) {
	p.cycle = ulid.Make()
	log := p.logger()
	p.setState(StateConnecting)

	if initial {
		link, err := p.c.adapter.Open(p.id.Address)
		if err != nil {
			p.connectFailed(fmt.Errorf("%w: open link: %v", ErrConnectFailed, err))
			return
		}
		p.link = link
		link.OnDisconnect(func() {
			p.post(event{kind: evDisconnected})
		})
	}

	ctx, cancel := context.WithTimeout(p.c.ctx, p.c.opts.ConnectTimeout)
	err := p.link.Connect(ctx)
	cancel()
	if err != nil {
		if p.c.ctx.Err() != nil {
			return
		}
		if initial {
			p.connectFailed(fmt.Errorf("%w: %v", ErrConnectFailed, err))
			return
		}
		log.Warn("[BLE] reconnect failed", "error", err)
		p.setState(StateDisconnected)
		p.scheduleReconnect()
		return
	}

	p.policy.Reset()
	p.setState(StateConnected)
	log.Info("[BLE] connected")

	// Both requests are best-effort. Stacks that negotiate these on their
	// own report errors.ErrUnsupported.
	if mtu, err := p.link.RequestMTU(p.c.opts.MTU); errors.Is(err, errors.ErrUnsupported) {
		log.Debug("[BLE] MTU left to the stack", "requested", p.c.opts.MTU)
	} else if err != nil {
		log.Warn("[BLE] MTU request failed", "requested", p.c.opts.MTU, "error", err)
	} else {
		log.Debug("[BLE] MTU negotiated", "mtu", mtu)
	}
	if err := p.link.RequestHighPriority(); errors.Is(err, errors.ErrUnsupported) {
		log.Debug("[BLE] connection priority left to the stack")
	} else if err != nil {
		log.Warn("[BLE] connection priority request failed", "error", err)
	}

	cycle := p.cycle
	p.settleTimer = time.AfterFunc(p.c.opts.SettleDelay, func() {
		p.post(event{kind: evSettled, cycle: cycle})
	})
}

// connectFailed handles a failed first attempt: the link is released
// immediately and the address stays managed without retry.
func (p *peripheral) connectFailed(err error) {
	p.logger().Error("[BLE] connection unsuccessful", "error", err)
	if p.link != nil {
		if cerr := p.link.Close(); cerr != nil {
			p.logger().Warn("[BLE] close link", "error", cerr)
		}
		p.link = nil
	}
	p.setState(StateDisconnected)
	p.c.shell.Status("Connection to Device " + p.id.Address + " failed")
}

func (p *peripheral) disconnected() {
	if p.link == nil || p.currentState() == StateDisconnected {
		return
	}
	p.stopTimer(&p.settleTimer)
	p.pending = nil
	p.seq.reset()
	p.logger().Warn("[BLE] disconnected, reconnecting...", "error", ErrLinkDropped)
	p.setState(StateDisconnected)
	p.scheduleReconnect()
}

func (p *peripheral) scheduleReconnect() {
	delay := p.policy.NextBackOff()
	if delay == backoff.Stop {
		p.giveUp()
		return
	}
	p.logger().Info("[BLE] reconnect scheduled", "delay", delay)
	cycle := p.cycle
	p.reconnectTimer = time.AfterFunc(delay, func() {
		p.post(event{kind: evReconnect, cycle: cycle})
	})
}

// giveUp stops managing the address once the reconnect policy is spent.
// The scanner may admit it again later.
func (p *peripheral) giveUp() {
	p.logger().Error("[BLE] giving up", "error", ErrLinkDropped)
	p.closeLink()
	p.c.release(p)
	p.c.shell.Status("Giving up on Device " + p.id.Address)
	p.finished = true
}

func (p *peripheral) stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (p *peripheral) closeLink() {
	p.stopTimer(&p.settleTimer)
	p.stopTimer(&p.reconnectTimer)
	if p.link == nil {
		return
	}
	if err := p.link.Close(); err != nil && !errors.Is(err, context.Canceled) {
		p.logger().Warn("[BLE] close link", "error", err)
	}
	p.link = nil
}

// teardown is the only transition that removes a live identity from the
// managed set. Timers are stopped before the link is released so no
// deferred step can touch it afterwards.
func (p *peripheral) teardown() {
	p.closeLink()
	p.pending = nil
	p.state.Store(int32(StateDisconnected))
	p.c.release(p)
	p.logger().Debug("[BLE] peripheral released")
}
