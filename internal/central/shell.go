package central

import (
	"log/slog"
	"sync"
)

// Shell receives presentation updates. Implementations may block; the core
// only ever calls them from the dispatcher goroutine.
type Shell interface {
	Status(text string)
	Value(label string, value int, unit string)
	Failure(label, reason string)
}

type updateKind int

const (
	updateStatus updateKind = iota
	updateValue
	updateFailure
)

type update struct {
	kind  updateKind
	text  string // status text or failure reason
	label string
	value int
	unit  string
}

// dispatcher decouples protocol processing from the shell. Updates are
// queued and delivered in order by a single goroutine; when the queue is
// full the oldest update is dropped.
type dispatcher struct {
	shell Shell
	size  int

	mu     sync.Mutex
	queue  []update
	closed bool

	signal  chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func newDispatcher(shell Shell, size int) *dispatcher {
	if size <= 0 {
		size = 64
	}
	d := &dispatcher{
		shell:   shell,
		size:    size,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) Status(text string) {
	d.push(update{kind: updateStatus, text: text})
}

func (d *dispatcher) Value(label string, value int, unit string) {
	d.push(update{kind: updateValue, label: label, value: value, unit: unit})
}

func (d *dispatcher) Failure(label, reason string) {
	d.push(update{kind: updateFailure, label: label, text: reason})
}

func (d *dispatcher) push(u update) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if len(d.queue) >= d.size {
		slog.Warn("[BLE] presentation queue full, dropping oldest update")
		d.queue = d.queue[1:]
	}
	d.queue = append(d.queue, u)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.stopped)
	for {
		var closing bool
		select {
		case <-d.signal:
		case <-d.done:
			closing = true
		}

		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			u := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()
			d.deliver(u)
		}

		if closing {
			return
		}
	}
}

func (d *dispatcher) deliver(u update) {
	if d.shell == nil {
		return
	}
	switch u.kind {
	case updateStatus:
		d.shell.Status(u.text)
	case updateValue:
		d.shell.Value(u.label, u.value, u.unit)
	case updateFailure:
		d.shell.Failure(u.label, u.text)
	}
}

// Close delivers whatever is queued and stops the dispatcher. Updates
// pushed afterwards are discarded.
func (d *dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.done)
	<-d.stopped
}
