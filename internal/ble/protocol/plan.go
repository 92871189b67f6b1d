// Package protocol defines the GATT identifiers, read plans and value
// decoding for the environmental sensor peripherals.
package protocol

import "fmt"

// Sensor GATT UUIDs. These must match the peripheral firmware bit-exact.
const (
	TargetServiceUUID  = "00000000-1111-2222-3333-444444444444"
	BatteryServiceUUID = "0000180f-0000-1000-8000-00805f9b34fb"

	BatteryCharUUID     = "00002a19-0000-1000-8000-00805f9b34fb"
	TemperatureCharUUID = "00002a19-0000-1000-8000-00805f9b34fc"
	HumidityCharUUID    = "00002a19-0000-1000-8000-00805f9b34fd"
)

// PeripheralName is the local name advertised by peripheral-role devices.
const PeripheralName = "BLE Client"

// Format is the wire format of a characteristic value.
type Format int

const (
	// FormatUint8 is a single unsigned byte, 0-255.
	FormatUint8 Format = iota
)

// CharacteristicSpec describes one readable value in a read plan.
type CharacteristicSpec struct {
	UUID   string
	Format Format
	Label  string
	Unit   string
}

var (
	Battery     = CharacteristicSpec{UUID: BatteryCharUUID, Format: FormatUint8, Label: "Battery", Unit: "%"}
	Temperature = CharacteristicSpec{UUID: TemperatureCharUUID, Format: FormatUint8, Label: "Temperature", Unit: "°C"}
	Humidity    = CharacteristicSpec{UUID: HumidityCharUUID, Format: FormatUint8, Label: "Humidity", Unit: "%"}
)

// Role selects a deployment profile.
type Role string

const (
	RoleCentral    Role = "central"
	RolePeripheral Role = "peripheral"
)

// Profile bundles how candidates are recognised, which service holds the
// values, and the order they are read in.
type Profile struct {
	Role Role
	// FilterServiceUUID, when set, requires the advertisement to list it.
	FilterServiceUUID string
	// FilterName, when set, requires an exact local name match.
	FilterName    string
	TargetService string
	Plan          []CharacteristicSpec
}

// ProfileFor returns the fixed profile for role.
func ProfileFor(role Role) (Profile, error) {
	switch role {
	case RoleCentral:
		return Profile{
			Role:              RoleCentral,
			FilterServiceUUID: TargetServiceUUID,
			TargetService:     TargetServiceUUID,
			Plan:              []CharacteristicSpec{Battery, Temperature, Humidity},
		}, nil
	case RolePeripheral:
		return Profile{
			Role:          RolePeripheral,
			FilterName:    PeripheralName,
			TargetService: BatteryServiceUUID,
			Plan:          []CharacteristicSpec{Battery},
		}, nil
	default:
		return Profile{}, fmt.Errorf("protocol: unknown role %q", role)
	}
}
