package central

import "errors"

// Failure conditions reported by the core. All of them are local to one
// peripheral except ErrRadioUnavailable.
var (
	// ErrRadioUnavailable is fatal: reported once at start, never retried.
	ErrRadioUnavailable = errors.New("ble: radio unavailable")
	// ErrConnectFailed is reported for a failed first connect, which is not retried.
	ErrConnectFailed = errors.New("ble: connect failed")
	// ErrLinkDropped triggers a scheduled reconnect.
	ErrLinkDropped = errors.New("ble: link dropped")
	// ErrDiscoveryFailed leaves the link connected and idle.
	ErrDiscoveryFailed = errors.New("ble: service discovery failed")
	// ErrServiceNotFound leaves the link connected and idle.
	ErrServiceNotFound = errors.New("ble: target service not found")
	// ErrReadFailed is reported per characteristic; the plan continues.
	ErrReadFailed = errors.New("ble: read failed")
)
