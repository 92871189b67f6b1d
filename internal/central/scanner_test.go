package central

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/blesensor/internal/ble"
	"github.com/chaz8081/blesensor/internal/ble/protocol"
)

func TestScannerEmitsEachAddressOnce(t *testing.T) {
	adapter := newMockAdapter()
	adapter.advs = []ble.Advertisement{
		advert(testAddr),
		advert(testAddr),
		{Address: "11:11:11:11:11:11", LocalName: "no services"},
		advert(testAddr),
		advert("22:22:22:22:22:22"),
		{Address: "", ServiceUUIDs: []string{protocol.TargetServiceUUID}},
		advert("22:22:22:22:22:22"),
	}

	set := &ManagedSet{}
	var emitted []string
	s := NewScanner(adapter, set, func(id PeripheralIdentity) bool {
		emitted = append(emitted, id.Address)
		return set.add(&peripheral{id: id})
	})

	if err := s.Start(context.Background(), Filter{ServiceUUID: protocol.TargetServiceUUID}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()

	want := []string{testAddr, "22:22:22:22:22:22"}
	if len(emitted) != len(want) {
		t.Fatalf("emitted = %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Errorf("emitted[%d] = %s, want %s", i, emitted[i], want[i])
		}
	}
}

func TestScannerRadioUnavailable(t *testing.T) {
	adapter := newMockAdapter()
	adapter.enableErr = errors.New("no adapter")
	s := NewScanner(adapter, &ManagedSet{}, func(PeripheralIdentity) bool {
		t.Error("no candidate expected without a radio")
		return false
	})

	err := s.Start(context.Background(), Filter{})
	if !errors.Is(err, ErrRadioUnavailable) {
		t.Fatalf("Start() error = %v, want ErrRadioUnavailable", err)
	}
	s.Stop() // no scan running; must not block
}

func TestScannerStopEndsScan(t *testing.T) {
	adapter := newMockAdapter()
	s := NewScanner(adapter, &ManagedSet{}, func(PeripheralIdentity) bool { return true })

	if err := s.Start(context.Background(), Filter{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// A second Start while running is a no-op.
	if err := s.Start(context.Background(), Filter{}); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	s.Stop()
	s.Stop()

	if err := s.Start(context.Background(), Filter{}); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	s.Stop()
}

func TestScannerReportsScanErrorAndRestarts(t *testing.T) {
	adapter := newMockAdapter()
	adapter.scanErr = errors.New("adapter busy")
	s := NewScanner(adapter, &ManagedSet{}, func(PeripheralIdentity) bool { return true })

	failures := make(chan error, 2)
	s.OnScanError = func(err error) { failures <- err }

	if err := s.Start(context.Background(), Filter{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case err := <-failures:
		if err.Error() != "adapter busy" {
			t.Errorf("scan error = %v, want adapter busy", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scan error was never reported")
	}

	adapter.mu.Lock()
	adapter.scanErr = nil
	adapter.mu.Unlock()

	// A failed scan leaves the scanner stopped, so Start runs a new scan.
	waitFor(t, "scanner restart", func() bool {
		if err := s.Start(context.Background(), Filter{}); err != nil {
			t.Fatalf("restart error = %v", err)
		}
		return adapter.scanCount() == 2
	})
	s.Stop()

	select {
	case err := <-failures:
		t.Errorf("unexpected scan error after Stop: %v", err)
	default:
	}
}
