package ble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter wraps tinygo-org/bluetooth. On macOS, device addresses are
// CoreBluetooth UUIDs rather than MAC addresses; the address string stores
// whichever form the platform reports.
type TinyGoAdapter struct {
	adapter        *bluetooth.Adapter
	watch          []bluetooth.UUID
	connectTimeout time.Duration

	connect    func(bluetooth.Address, bluetooth.ConnectionParams) (bluetooth.Device, error)
	disconnect func(bluetooth.Device) error

	// mu protects the links map.
	mu    sync.Mutex
	links map[string]*tinyGoLink // keyed by address
}

// NewTinyGoAdapter creates an adapter on the default radio. watch lists the
// service UUIDs that advertisement reports are checked for; tinygo only
// answers containment queries, not the full advertised list.
func NewTinyGoAdapter(watch []string, connectTimeout time.Duration) (*TinyGoAdapter, error) {
	uuids := make([]bluetooth.UUID, 0, len(watch))
	for _, s := range watch {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return nil, fmt.Errorf("ble: parse watch UUID %q: %w", s, err)
		}
		uuids = append(uuids, u)
	}
	a := &TinyGoAdapter{
		adapter:        bluetooth.DefaultAdapter,
		watch:          uuids,
		connectTimeout: connectTimeout,
		links:          make(map[string]*tinyGoLink),
		disconnect: func(d bluetooth.Device) error {
			return d.Disconnect()
		},
	}
	a.connect = a.adapter.Connect
	return a, nil
}

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// Route adapter-level disconnects to the link that owns the address.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		a.mu.Lock()
		link, ok := a.links[device.Address.String()]
		a.mu.Unlock()
		if ok {
			link.fireDisconnect()
		}
	})

	return nil
}

func (a *TinyGoAdapter) Scan(ctx context.Context, fn func(Advertisement)) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		adv := Advertisement{
			Address:   result.Address.String(),
			LocalName: result.LocalName(),
			RSSI:      int(result.RSSI),
		}
		for _, u := range a.watch {
			if result.HasServiceUUID(u) {
				adv.ServiceUUIDs = append(adv.ServiceUUIDs, strings.ToLower(u.String()))
			}
		}
		fn(adv)
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

func (a *TinyGoAdapter) StopScan() error {
	return a.adapter.StopScan()
}

func (a *TinyGoAdapter) Open(address string) (Link, error) {
	var addr bluetooth.Address
	addr.Set(address)

	link := &tinyGoLink{owner: a, address: address, addr: addr}

	a.mu.Lock()
	a.links[address] = link
	a.mu.Unlock()
	return link, nil
}

func (a *TinyGoAdapter) release(address string) {
	a.mu.Lock()
	delete(a.links, address)
	a.mu.Unlock()
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

// connParamsRequester is implemented by platforms whose Device can update
// connection parameters after connecting.
type connParamsRequester interface {
	RequestConnectionParams(params bluetooth.ConnectionParams) error
}

type tinyGoLink struct {
	owner   *TinyGoAdapter
	address string
	addr    bluetooth.Address

	mu           sync.Mutex
	device       *bluetooth.Device
	services     map[string]*tinyGoService
	disconnectCb func()
	closed       bool
}

func (l *tinyGoLink) Address() string { return l.address }

func (l *tinyGoLink) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return fmt.Errorf("ble: connect to %s: link closed", l.address)
	}
	l.mu.Unlock()

	params := bluetooth.ConnectionParams{}
	if l.owner.connectTimeout > 0 {
		params.ConnectionTimeout = bluetooth.NewDuration(l.owner.connectTimeout)
	}

	// tinygo/bluetooth's Connect blocks internally with its own timeout.
	// Wrap it so ctx cancellation returns early.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := l.owner.connect(l.addr, params)
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		// The abandoned attempt may still succeed; nobody owns that device.
		go func() {
			if result := <-ch; result.err == nil {
				if err := l.owner.disconnect(result.device); err != nil {
					slog.Warn("[BLE] disconnect abandoned connection", "addr", l.address, "error", err)
				}
			}
		}()
		return fmt.Errorf("ble: connect to %s: %w", l.address, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return fmt.Errorf("ble: connect to %s: %w", l.address, result.err)
		}
		l.mu.Lock()
		l.device = &result.device
		l.services = nil
		l.mu.Unlock()
		return nil
	}
}

// RequestMTU always fails with errors.ErrUnsupported: tinygo has no exchange
// request for centrals and negotiates the MTU itself. Reads size their
// buffers from the characteristic's MTU instead.
func (l *tinyGoLink) RequestMTU(mtu int) (int, error) {
	return 0, fmt.Errorf("ble: request MTU %d: %w", mtu, errors.ErrUnsupported)
}

func (l *tinyGoLink) RequestHighPriority() error {
	l.mu.Lock()
	device := l.device
	l.mu.Unlock()
	if device == nil {
		return fmt.Errorf("ble: request priority on %s: not connected", l.address)
	}
	r, ok := any(device).(connParamsRequester)
	if !ok {
		return fmt.Errorf("ble: request priority: %w", errors.ErrUnsupported)
	}
	return r.RequestConnectionParams(bluetooth.ConnectionParams{
		MinInterval: bluetooth.NewDuration(7500 * time.Microsecond),
		MaxInterval: bluetooth.NewDuration(15 * time.Millisecond),
	})
}

func (l *tinyGoLink) DiscoverServices(ctx context.Context) error {
	l.mu.Lock()
	device := l.device
	l.mu.Unlock()
	if device == nil {
		return fmt.Errorf("ble: discover services on %s: not connected", l.address)
	}

	svcs, err := device.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("ble: discover services: %w", err)
	}

	table := make(map[string]*tinyGoService, len(svcs))
	for i := range svcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		chars, err := svcs[i].DiscoverCharacteristics(nil)
		if err != nil {
			return fmt.Errorf("ble: discover characteristics: %w", err)
		}
		svc := &tinyGoService{
			uuid:  strings.ToLower(svcs[i].UUID().String()),
			chars: make(map[string]*tinyGoCharacteristic, len(chars)),
		}
		for j := range chars {
			svc.chars[strings.ToLower(chars[j].UUID().String())] = &tinyGoCharacteristic{char: &chars[j]}
		}
		table[svc.uuid] = svc
	}

	l.mu.Lock()
	l.services = table
	l.mu.Unlock()
	return nil
}

func (l *tinyGoLink) Service(uuid string) (Service, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	svc, ok := l.services[strings.ToLower(uuid)]
	if !ok {
		return nil, false
	}
	return svc, true
}

func (l *tinyGoLink) OnDisconnect(cb func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnectCb = cb
}

func (l *tinyGoLink) fireDisconnect() {
	l.mu.Lock()
	cb := l.disconnectCb
	closed := l.closed
	l.services = nil
	l.mu.Unlock()
	if cb != nil && !closed {
		cb()
	}
}

func (l *tinyGoLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	device := l.device
	l.device = nil
	l.services = nil
	l.mu.Unlock()

	l.owner.release(l.address)
	if device != nil {
		return l.owner.disconnect(*device)
	}
	return nil
}

type tinyGoService struct {
	uuid  string
	chars map[string]*tinyGoCharacteristic
}

func (s *tinyGoService) UUID() string { return s.uuid }

func (s *tinyGoService) Characteristic(uuid string) (Characteristic, bool) {
	c, ok := s.chars[strings.ToLower(uuid)]
	if !ok {
		return nil, false
	}
	return c, true
}

type tinyGoCharacteristic struct {
	char *bluetooth.DeviceCharacteristic
}

func (c *tinyGoCharacteristic) Read() ([]byte, error) {
	mtu, err := c.char.GetMTU()
	if err != nil || mtu == 0 {
		mtu = 23
	}
	buf := make([]byte, mtu)
	n, err := c.char.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ble: read characteristic: %w", err)
	}
	return buf[:n], nil
}
