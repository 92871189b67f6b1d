// Package central discovers sensor peripherals, keeps a connection to each
// one and reads its characteristic plan every time the link comes up.
//
// Each managed peripheral owns a state record driven by a single goroutine,
// so callbacks for one address are serialized while different addresses
// proceed independently. Presentation updates leave the core through a
// queued dispatcher and never block protocol processing.
package central

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/chaz8081/blesensor/internal/ble"
	"github.com/chaz8081/blesensor/internal/ble/protocol"
)

// Options configures link negotiation and retry behavior.
type Options struct {
	MTU                  int           // requested data transfer unit
	SettleDelay          time.Duration // wait after connect before discovery
	ConnectTimeout       time.Duration // per connect attempt
	ReconnectDelay       time.Duration // fixed delay between reconnect attempts
	ReconnectMaxAttempts int           // 0 retries forever
	QueueSize            int           // max queued presentation updates
}

// DefaultOptions returns the standard link timings.
func DefaultOptions() Options {
	return Options{
		MTU:            512,
		SettleDelay:    500 * time.Millisecond,
		ConnectTimeout: 10 * time.Second,
		ReconnectDelay: 2 * time.Second,
		QueueSize:      64,
	}
}

// newBackOff returns the reconnect policy for one peripheral.
func (o Options) newBackOff() backoff.BackOff {
	var b backoff.BackOff = backoff.NewConstantBackOff(o.ReconnectDelay)
	if o.ReconnectMaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(o.ReconnectMaxAttempts))
	}
	return b
}

// Central wires the scanner to per-peripheral state machines.
type Central struct {
	adapter ble.Adapter
	profile protocol.Profile
	opts    Options
	shell   *dispatcher
	managed *ManagedSet
	scanner *Scanner

	ctx    context.Context
	cancel context.CancelFunc

	// scanMu orders scan status updates so a scan failure is never
	// reported before the scan start.
	scanMu sync.Mutex

	// mu serializes admission against teardown.
	mu       sync.Mutex
	tornDown bool
	wg       sync.WaitGroup
}

// New creates a Central for the given deployment profile. Zero option
// fields fall back to DefaultOptions.
func New(adapter ble.Adapter, profile protocol.Profile, shell Shell, opts Options) *Central {
	def := DefaultOptions()
	if opts.MTU <= 0 {
		opts.MTU = def.MTU
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = def.SettleDelay
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = def.ReconnectDelay
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Central{
		adapter: adapter,
		profile: profile,
		opts:    opts,
		shell:   newDispatcher(shell, opts.QueueSize),
		managed: &ManagedSet{},
		ctx:     ctx,
		cancel:  cancel,
	}
	c.scanner = NewScanner(adapter, c.managed, c.admit)
	c.scanner.OnScanError = c.scanFailed
	return c
}

// Managed exposes the set of peripherals under connection management.
func (c *Central) Managed() *ManagedSet { return c.managed }

// State returns the current state of a managed peripheral.
func (c *Central) State(address string) (ConnectionState, bool) {
	p, ok := c.managed.get(address)
	if !ok {
		return StateDisconnected, false
	}
	return p.currentState(), true
}

// StartScanning begins discovering peripherals that match filter. A
// disabled or missing radio is reported once to the shell and returned as
// ErrRadioUnavailable; nothing is retried.
func (c *Central) StartScanning(ctx context.Context, filter Filter) error {
	c.mu.Lock()
	tornDown := c.tornDown
	c.mu.Unlock()
	if tornDown {
		return context.Canceled
	}

	c.scanMu.Lock()
	defer c.scanMu.Unlock()
	if err := c.scanner.Start(ctx, filter); err != nil {
		slog.Error("[BLE] radio unavailable", "error", err)
		c.shell.Status("Bluetooth is not available")
		return err
	}
	c.shell.Status("Scanning for devices")
	return nil
}

// scanFailed reports a scan that ended on its own. Managed peripherals keep
// running; StartScanning may be called again.
func (c *Central) scanFailed(err error) {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()
	c.shell.Status("Scanning stopped: " + err.Error())
}

// StopScanning stops discovery. Peripherals already managed keep running.
func (c *Central) StopScanning() {
	c.scanner.Stop()
}

// admit puts a newly discovered identity under management and starts its
// state machine with an initial connect.
func (c *Central) admit(id PeripheralIdentity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return false
	}

	p := newPeripheral(c, id)
	if !c.managed.add(p) {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		p.run()
	}()
	p.post(event{kind: evConnect})
	return true
}

// release drops p from the managed set.
func (c *Central) release(p *peripheral) {
	c.managed.remove(p)
}

// Teardown stops scanning, cancels every pending timer, closes every link
// and waits for all state machines to exit. It is safe to call twice.
func (c *Central) Teardown() {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.tornDown = true
	c.mu.Unlock()

	c.scanner.Stop()
	c.cancel()
	c.wg.Wait()
	c.shell.Close()
	slog.Info("[BLE] teardown complete")
}
