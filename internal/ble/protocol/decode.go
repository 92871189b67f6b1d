package protocol

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrEmptyValue is returned when a characteristic read yields no bytes.
var ErrEmptyValue = errors.New("empty value")

// Decode interprets raw according to spec's format. Only the first byte is
// significant for FormatUint8; trailing bytes are ignored.
func Decode(spec CharacteristicSpec, raw []byte) (int, error) {
	switch spec.Format {
	case FormatUint8:
		if len(raw) == 0 {
			return 0, ErrEmptyValue
		}
		return int(raw[0]), nil
	default:
		return 0, fmt.Errorf("protocol: unsupported format %d for %s", spec.Format, spec.Label)
	}
}

// FormatValue renders a decoded value with its unit, e.g. "50%".
func FormatValue(value int, unit string) string {
	return strconv.Itoa(value) + unit
}
