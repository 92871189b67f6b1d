package central

import (
	"testing"

	"github.com/chaz8081/blesensor/internal/ble"
	"github.com/chaz8081/blesensor/internal/ble/protocol"
)

func TestFilterMatch(t *testing.T) {
	central := Filter{ServiceUUID: protocol.TargetServiceUUID}
	named := Filter{Name: protocol.PeripheralName}

	tests := []struct {
		name   string
		filter Filter
		adv    ble.Advertisement
		want   bool
	}{
		{"service advertised", central, ble.Advertisement{Address: "a", ServiceUUIDs: []string{protocol.TargetServiceUUID}}, true},
		{"service upper case", Filter{ServiceUUID: protocol.BatteryServiceUUID}, ble.Advertisement{Address: "a", ServiceUUIDs: []string{"0000180F-0000-1000-8000-00805F9B34FB"}}, true},
		{"service among others", central, ble.Advertisement{Address: "a", ServiceUUIDs: []string{protocol.BatteryServiceUUID, protocol.TargetServiceUUID}}, true},
		{"service missing", central, ble.Advertisement{Address: "a", ServiceUUIDs: []string{protocol.BatteryServiceUUID}}, false},
		{"no services", central, ble.Advertisement{Address: "a", LocalName: protocol.PeripheralName}, false},
		{"name exact", named, ble.Advertisement{Address: "a", LocalName: "BLE Client"}, true},
		{"name prefix only", named, ble.Advertisement{Address: "a", LocalName: "BLE Client 2"}, false},
		{"name case differs", named, ble.Advertisement{Address: "a", LocalName: "ble client"}, false},
		{"empty filter", Filter{}, ble.Advertisement{Address: "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(IdentityFrom(tt.adv)); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdentityFromCopiesServices(t *testing.T) {
	adv := ble.Advertisement{Address: "a", ServiceUUIDs: []string{"ABC"}}
	id := IdentityFrom(adv)
	adv.ServiceUUIDs[0] = "changed"
	if !id.HasService("abc") {
		t.Errorf("identity services = %v, want [abc]", id.ServiceUUIDs)
	}
}

func TestManagedSetAddOnce(t *testing.T) {
	set := &ManagedSet{}
	first := &peripheral{id: PeripheralIdentity{Address: testAddr}}
	second := &peripheral{id: PeripheralIdentity{Address: testAddr}}

	if !set.add(first) {
		t.Fatal("first add should succeed")
	}
	if set.add(second) {
		t.Error("second add for the same address should be rejected")
	}

	set.remove(second) // not the stored record
	if !set.Contains(testAddr) {
		t.Error("removing a stale record must not evict the live one")
	}
	set.remove(first)
	if set.Len() != 0 {
		t.Errorf("Len() = %d, want 0", set.Len())
	}
}
