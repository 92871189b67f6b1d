package central

import (
	"strings"
	"sync"

	"github.com/chaz8081/blesensor/internal/ble"
	"github.com/chaz8081/blesensor/internal/ble/protocol"
)

// PeripheralIdentity is what one advertisement says about a peripheral.
// It is never modified after IdentityFrom returns it.
type PeripheralIdentity struct {
	Address      string
	Name         string
	ServiceUUIDs []string
}

// IdentityFrom builds an identity from an advertisement report.
func IdentityFrom(adv ble.Advertisement) PeripheralIdentity {
	uuids := make([]string, len(adv.ServiceUUIDs))
	for i, u := range adv.ServiceUUIDs {
		uuids[i] = strings.ToLower(u)
	}
	return PeripheralIdentity{
		Address:      adv.Address,
		Name:         adv.LocalName,
		ServiceUUIDs: uuids,
	}
}

// HasService reports whether uuid was advertised.
func (id PeripheralIdentity) HasService(uuid string) bool {
	uuid = strings.ToLower(uuid)
	for _, u := range id.ServiceUUIDs {
		if u == uuid {
			return true
		}
	}
	return false
}

// Filter selects candidate peripherals. Central-role deployments match on
// service UUID containment, peripheral-role deployments on exact name.
// Both fields may be set; an empty Filter matches every advertisement.
type Filter struct {
	ServiceUUID string
	Name        string
}

// FilterFor returns the filter configured by a deployment profile.
func FilterFor(p protocol.Profile) Filter {
	return Filter{ServiceUUID: p.FilterServiceUUID, Name: p.FilterName}
}

// Match reports whether id passes the filter.
func (f Filter) Match(id PeripheralIdentity) bool {
	if f.ServiceUUID != "" && !id.HasService(f.ServiceUUID) {
		return false
	}
	if f.Name != "" && id.Name != f.Name {
		return false
	}
	return true
}

// ManagedSet holds the state records of peripherals under connection
// management, keyed by address. Insertion is atomic per address, so a
// candidate is admitted at most once while it is managed.
type ManagedSet struct {
	m sync.Map // address -> *peripheral
}

// add inserts p unless its address is already managed.
func (s *ManagedSet) add(p *peripheral) bool {
	_, loaded := s.m.LoadOrStore(p.id.Address, p)
	return !loaded
}

func (s *ManagedSet) get(address string) (*peripheral, bool) {
	v, ok := s.m.Load(address)
	if !ok {
		return nil, false
	}
	return v.(*peripheral), true
}

// remove deletes p only if it is still the record stored for its address.
func (s *ManagedSet) remove(p *peripheral) {
	s.m.CompareAndDelete(p.id.Address, p)
}

// Contains reports whether address is managed.
func (s *ManagedSet) Contains(address string) bool {
	_, ok := s.m.Load(address)
	return ok
}

// Len returns the number of managed peripherals.
func (s *ManagedSet) Len() int {
	n := 0
	s.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Addresses returns the managed addresses in no particular order.
func (s *ManagedSet) Addresses() []string {
	var out []string
	s.m.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	return out
}
