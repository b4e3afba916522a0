package blelink

import (
	"testing"

	"github.com/rexisp/switch2gamepad/internal/device"
)

func TestMustUUIDParsesBuiltInConstants(t *testing.T) {
	for _, s := range []string{
		device.CharInputReport,
		device.CharCommandWrite,
		device.CharCommandResponse,
		device.CharVibrationLeft,
		device.CharVibrationRight,
		device.CharVibrationPro,
	} {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("mustUUID(%q) panicked: %v", s, r)
				}
			}()
			mustUUID(s)
		}()
	}
}
