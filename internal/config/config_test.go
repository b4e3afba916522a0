package config

import (
	"testing"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
)

func TestBuildButtonTablesRejectsUnknownName(t *testing.T) {
	c := &Config{TargetMode: "x360"}
	c.Buttons.DualJoycons = map[string]string{"NOT_A_BUTTON": "A"}
	if _, err := c.BuildButtonTables(buttonmap.EncodingBLE); err == nil {
		t.Fatal("expected error for unknown button name")
	}
}

func TestBuildButtonTablesAccepted(t *testing.T) {
	c := &Config{TargetMode: "ds4"}
	c.Buttons.Procon = map[string]string{"A": "A", "UP": "UP"}
	tables, err := c.BuildButtonTables(buttonmap.EncodingUSB)
	if err != nil {
		t.Fatal(err)
	}
	target, hat, _, _ := tables.Procon.ConvertDS4(buttonmap.USBButtonA | buttonmap.USBButtonUp)
	if target != buttonmap.DS4A {
		t.Fatalf("got target %#x", target)
	}
	if hat != buttonmap.DpadNorth {
		t.Fatalf("got hat %v", hat)
	}
}

func TestModeDefaultsToX360(t *testing.T) {
	c := &Config{}
	if c.Mode() != buttonmap.ModeX360 {
		t.Fatal("empty TargetMode should resolve to ModeX360")
	}
}
