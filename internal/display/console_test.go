package display

import (
	"bytes"
	"testing"
	"time"
)

func fixedConsole(buf *bytes.Buffer) *Console {
	c := NewConsole(buf)
	c.now = func() time.Time { return time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC) }
	return c
}

func TestConsoleLines(t *testing.T) {
	var buf bytes.Buffer
	c := fixedConsole(&buf)

	c.Status("Connected to Device AA:BB")
	c.Value("Battery", 50, "%")
	c.Value("Temperature", 22, "°C")
	c.Failure("Humidity", "ble: read failed: timeout")

	want := "15:04:05  status   Connected to Device AA:BB\n" +
		"15:04:05  reading  Battery: 50%\n" +
		"15:04:05  reading  Temperature: 22°C\n" +
		"15:04:05  failure  Humidity: ble: read failed: timeout\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestNewConsolePanicsOnNilWriter(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewConsole(nil) should panic")
		}
	}()
	NewConsole(nil)
}

func TestMultiFansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{fixedConsole(&a), fixedConsole(&b)}

	m.Value("Humidity", 45, "%")

	if a.String() != b.String() || a.Len() == 0 {
		t.Errorf("sinks diverged: %q vs %q", a.String(), b.String())
	}
}
