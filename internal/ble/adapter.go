// Package ble provides the GATT transport used by the sensor reader: an
// adapter that scans and opens links, and links that connect, discover
// services and read characteristics over Bluetooth Low Energy.
package ble

import "context"

// Advertisement is a single advertisement report observed while scanning.
type Advertisement struct {
	Address      string
	LocalName    string
	ServiceUUIDs []string // lower-case, 36-char form
	RSSI         int
}

// Characteristic represents a readable BLE GATT characteristic.
type Characteristic interface {
	// Read returns the current value of the characteristic.
	Read() ([]byte, error)
}

// Service represents a discovered GATT service.
type Service interface {
	// UUID returns the service UUID in lower-case 36-char form.
	UUID() string
	// Characteristic looks up a characteristic of this service by UUID.
	Characteristic(uuid string) (Characteristic, bool)
}

// Link is the per-peripheral link resource. It is allocated once by
// Adapter.Open and reused for every connect and reconnect attempt until
// Close releases it.
type Link interface {
	// Address returns the peripheral address this link was opened for.
	Address() string
	// Connect establishes (or re-establishes) the connection.
	Connect(ctx context.Context) error
	// RequestMTU asks for a larger data transfer unit and returns the
	// negotiated value.
	RequestMTU(mtu int) (int, error)
	// RequestHighPriority asks for a short connection interval.
	RequestHighPriority() error
	// DiscoverServices populates the service table of the connected peer.
	DiscoverServices(ctx context.Context) error
	// Service returns a discovered service by UUID.
	Service(uuid string) (Service, bool)
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
	// Close releases the link. Safe to call more than once.
	Close() error
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan reports every advertisement to fn until ctx is cancelled or
	// StopScan is called.
	Scan(ctx context.Context, fn func(Advertisement)) error
	// StopScan ends a running scan.
	StopScan() error
	// Open allocates a link resource for address without connecting.
	Open(address string) (Link, error)
}
