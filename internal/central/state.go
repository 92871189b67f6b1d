package central

// ConnectionState is the lifecycle state of one managed peripheral.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateServicesDiscovering
	StateServicesReady
	StateReading
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateServicesDiscovering:
		return "ServicesDiscovering"
	case StateServicesReady:
		return "ServicesReady"
	case StateReading:
		return "Reading"
	default:
		return "Unknown"
	}
}

// statusText is the human-readable line shown when a peripheral enters s.
func (s ConnectionState) statusText(addr string) string {
	switch s {
	case StateDisconnected:
		return "Disconnected from Device " + addr
	case StateConnecting:
		return "Connecting to Device " + addr
	case StateConnected:
		return "Connected to Device " + addr
	case StateServicesDiscovering:
		return "Discovering services on " + addr
	case StateServicesReady:
		return "Services ready on " + addr
	case StateReading:
		return "Reading sensor values from " + addr
	default:
		return addr + ": " + s.String()
	}
}
