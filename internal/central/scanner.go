package central

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chaz8081/blesensor/internal/ble"
)

// Scanner runs a continuous scan and hands each matching peripheral to its
// candidate callback. Reports from addresses the callback has already
// accepted are dropped.
type Scanner struct {
	adapter ble.Adapter
	managed *ManagedSet
	// onCandidate is called once per newly matching address and returns
	// whether the identity was admitted.
	onCandidate func(PeripheralIdentity) bool
	// OnScanError, if set, is called when a running scan fails. The scanner
	// is stopped by then and may be started again.
	OnScanError func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScanner creates a scanner that checks managed before emitting.
func NewScanner(adapter ble.Adapter, managed *ManagedSet, onCandidate func(PeripheralIdentity) bool) *Scanner {
	return &Scanner{
		adapter:     adapter,
		managed:     managed,
		onCandidate: onCandidate,
	}
}

// Start enables the radio and begins scanning in the background. It returns
// ErrRadioUnavailable if the adapter cannot be enabled. Calling Start while
// a scan is running is a no-op.
func (s *Scanner) Start(ctx context.Context, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("%w: %v", ErrRadioUnavailable, err)
	}

	scanCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	slog.Info("[BLE] scanning", "service", filter.ServiceUUID, "name", filter.Name)
	go func() {
		defer close(done)
		err := s.adapter.Scan(scanCtx, s.handler(filter))
		if err == nil || scanCtx.Err() != nil {
			return
		}
		slog.Error("[BLE] scan stopped", "error", err)

		s.mu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		cancel()

		if s.OnScanError != nil {
			s.OnScanError(err)
		}
	}()
	return nil
}

func (s *Scanner) handler(filter Filter) func(ble.Advertisement) {
	return func(adv ble.Advertisement) {
		if adv.Address == "" || s.managed.Contains(adv.Address) {
			return
		}
		id := IdentityFrom(adv)
		if !filter.Match(id) {
			return
		}
		if s.onCandidate(id) {
			slog.Info("[BLE] candidate discovered", "addr", id.Address, "name", id.Name, "rssi", adv.RSSI)
		}
	}
}

// Stop ends the scan and waits for the scan goroutine to exit.
func (s *Scanner) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
