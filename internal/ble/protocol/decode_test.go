package protocol

import (
	"errors"
	"testing"
)

func TestDecodeUint8(t *testing.T) {
	tests := []struct {
		name string
		spec CharacteristicSpec
		raw  []byte
		want int
		text string
	}{
		{"battery 50", Battery, []byte{0x32}, 50, "50%"},
		{"temperature 22", Temperature, []byte{22}, 22, "22°C"},
		{"humidity max", Humidity, []byte{0xff}, 255, "255%"},
		{"zero", Battery, []byte{0x00}, 0, "0%"},
		{"trailing bytes ignored", Humidity, []byte{45, 0x99, 0x01}, 45, "45%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.spec, tt.raw)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %d, want %d", got, tt.want)
			}
			if s := FormatValue(got, tt.spec.Unit); s != tt.text {
				t.Errorf("FormatValue() = %q, want %q", s, tt.text)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode(Battery, nil)
	if !errors.Is(err, ErrEmptyValue) {
		t.Errorf("Decode(nil) error = %v, want ErrEmptyValue", err)
	}
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	spec := CharacteristicSpec{UUID: BatteryCharUUID, Format: Format(99), Label: "Odd"}
	if _, err := Decode(spec, []byte{1}); err == nil {
		t.Error("Decode() with unknown format should fail")
	}
}

func TestProfileFor(t *testing.T) {
	central, err := ProfileFor(RoleCentral)
	if err != nil {
		t.Fatalf("ProfileFor(central) error = %v", err)
	}
	if central.FilterServiceUUID != TargetServiceUUID || central.TargetService != TargetServiceUUID {
		t.Errorf("central profile service = %q/%q", central.FilterServiceUUID, central.TargetService)
	}
	wantOrder := []string{BatteryCharUUID, TemperatureCharUUID, HumidityCharUUID}
	if len(central.Plan) != len(wantOrder) {
		t.Fatalf("central plan length = %d, want %d", len(central.Plan), len(wantOrder))
	}
	for i, uuid := range wantOrder {
		if central.Plan[i].UUID != uuid {
			t.Errorf("central plan[%d] = %s, want %s", i, central.Plan[i].UUID, uuid)
		}
	}

	periph, err := ProfileFor(RolePeripheral)
	if err != nil {
		t.Fatalf("ProfileFor(peripheral) error = %v", err)
	}
	if periph.FilterName != "BLE Client" {
		t.Errorf("peripheral FilterName = %q, want %q", periph.FilterName, "BLE Client")
	}
	if periph.TargetService != BatteryServiceUUID {
		t.Errorf("peripheral TargetService = %q, want %q", periph.TargetService, BatteryServiceUUID)
	}
	if len(periph.Plan) != 1 || periph.Plan[0].UUID != BatteryCharUUID {
		t.Errorf("peripheral plan = %v, want [Battery]", periph.Plan)
	}

	if _, err := ProfileFor("observer"); err == nil {
		t.Error("ProfileFor(observer) should fail")
	}
}
