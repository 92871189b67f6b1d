// Package display provides presentation sinks for sensor readings: a
// line-oriented console writer and a websocket broadcast hub.
package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chaz8081/blesensor/internal/ble/protocol"
	"github.com/chaz8081/blesensor/internal/central"
)

// Console writes one timestamped line per update.
type Console struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// Compile-time interface satisfaction check.
var _ central.Shell = (*Console)(nil)

// NewConsole creates a Console writing to w.
// Panics if w is nil (programmer error).
func NewConsole(w io.Writer) *Console {
	if w == nil {
		panic("display: NewConsole called with nil writer")
	}
	return &Console{w: w, now: time.Now}
}

func (c *Console) Status(text string) {
	c.printf("status   %s", text)
}

func (c *Console) Value(label string, value int, unit string) {
	c.printf("reading  %s: %s", label, protocol.FormatValue(value, unit))
}

func (c *Console) Failure(label, reason string) {
	c.printf("failure  %s: %s", label, reason)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s  "+format+"\n", append([]any{c.now().Format("15:04:05")}, args...)...)
}

// Multi fans every update out to several shells in order.
type Multi []central.Shell

var _ central.Shell = Multi(nil)

func (m Multi) Status(text string) {
	for _, s := range m {
		s.Status(text)
	}
}

func (m Multi) Value(label string, value int, unit string) {
	for _, s := range m {
		s.Value(label, value, unit)
	}
}

func (m Multi) Failure(label, reason string) {
	for _, s := range m {
		s.Failure(label, reason)
	}
}
