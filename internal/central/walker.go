package central

import "fmt"

// discover runs once the settle delay after a connect has elapsed.
func (p *peripheral) discover() {
	if p.currentState() != StateConnected {
		return
	}
	log := p.logger()
	p.setState(StateServicesDiscovering)

	if err := p.link.DiscoverServices(p.c.ctx); err != nil {
		if p.c.ctx.Err() != nil {
			return
		}
		log.Error("[BLE] services discovery failed", "error", fmt.Errorf("%w: %v", ErrDiscoveryFailed, err))
		p.setState(StateConnected)
		p.c.shell.Status("Service discovery failed on " + p.id.Address)
		return
	}

	p.setState(StateServicesReady)
	p.walk()
}

// walk locates the target service and starts the read plan on it. Without
// the service the link stays up but idle until the next reconnect.
func (p *peripheral) walk() {
	uuid := p.c.profile.TargetService
	svc, ok := p.link.Service(uuid)
	if !ok {
		p.logger().Error("[BLE] target service missing", "service", uuid, "error", ErrServiceNotFound)
		p.c.shell.Status("Target service not found on " + p.id.Address)
		return
	}

	p.setState(StateReading)
	p.seq.start(svc)
	p.enqueue(event{kind: evReadNext, cycle: p.cycle})
}
