package central

import (
	"fmt"
	"log/slog"

	"github.com/chaz8081/blesensor/internal/ble"
	"github.com/chaz8081/blesensor/internal/ble/protocol"
)

// ReadResult is the outcome of one characteristic read.
type ReadResult struct {
	Spec  protocol.CharacteristicSpec
	Value int
	Err   error
}

// sequencer walks a fixed read plan one characteristic at a time.
type sequencer struct {
	plan []protocol.CharacteristicSpec
	svc  ble.Service
	next int
}

func newSequencer(plan []protocol.CharacteristicSpec) *sequencer {
	return &sequencer{plan: plan}
}

// start restarts the plan from the first entry against svc.
func (s *sequencer) start(svc ble.Service) {
	s.svc = svc
	s.next = 0
}

func (s *sequencer) reset() {
	s.svc = nil
	s.next = 0
}

// step performs the next read in the plan. Characteristics the service
// does not expose are skipped. It returns false once the plan is exhausted.
func (s *sequencer) step() (ReadResult, bool) {
	for s.svc != nil && s.next < len(s.plan) {
		spec := s.plan[s.next]
		s.next++

		char, ok := s.svc.Characteristic(spec.UUID)
		if !ok {
			slog.Debug("[BLE] characteristic not present, skipping", "label", spec.Label, "uuid", spec.UUID)
			continue
		}

		raw, err := char.Read()
		if err != nil {
			return ReadResult{Spec: spec, Err: fmt.Errorf("%w: %v", ErrReadFailed, err)}, true
		}
		value, err := protocol.Decode(spec, raw)
		if err != nil {
			return ReadResult{Spec: spec, Err: fmt.Errorf("%w: %v", ErrReadFailed, err)}, true
		}
		return ReadResult{Spec: spec, Value: value}, true
	}
	return ReadResult{}, false
}

// readNext issues the next read of the plan and hands its result to the
// shell. A failed read is reported and the plan moves on.
func (p *peripheral) readNext() {
	if p.currentState() != StateReading {
		return
	}

	res, ok := p.seq.step()
	if !ok {
		p.logger().Info("[BLE] read plan complete")
		p.setState(StateServicesReady)
		return
	}

	if res.Err != nil {
		p.logger().Warn("[BLE] characteristic read failed", "label", res.Spec.Label, "error", res.Err)
		p.c.shell.Failure(res.Spec.Label, res.Err.Error())
	} else {
		p.logger().Info("[BLE] characteristic read", "label", res.Spec.Label, "value", protocol.FormatValue(res.Value, res.Spec.Unit))
		p.c.shell.Value(res.Spec.Label, res.Value, res.Spec.Unit)
	}
	p.enqueue(event{kind: evReadNext, cycle: p.cycle})
}
