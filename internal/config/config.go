// Package config defines the declarative, load-once-at-startup configuration
// for the bridge: combine-Joy-Cons policy, deadzone, motion/mouse flags, and
// the per-role button maps. Struct tags and the kong/kong-yaml/kong-toml
// loading chain follow sanjay900-VIIPER's cmd/viiper/viiper.go and
// internal/cmd/config.go.
package config

import (
	"fmt"

	"github.com/rexisp/switch2gamepad/internal/buttonmap"
)

// ButtonMapSet is the raw, as-loaded {buttons: {...}} config block: one
// name->target map per controller role, mirroring spec.md §6's
// `buttons: {dual_joycons, single_joycon_l, single_joycon_r, procon}`.
type ButtonMapSet struct {
	DualJoycons   map[string]string `yaml:"dual_joycons" help:"Button map used when two Joy-Cons are combined into one pad"`
	SingleJoyconL map[string]string `yaml:"single_joycon_l" help:"Button map used for a lone left Joy-Con"`
	SingleJoyconR map[string]string `yaml:"single_joycon_r" help:"Button map used for a lone right Joy-Con"`
	Procon        map[string]string `yaml:"procon" help:"Button map used for Pro Controller 2 / NSO GameCube controller"`
}

// MouseButtons names the three Switch buttons per Joy-Con consumed as
// left/middle/right mouse clicks when mouse mode is active.
type MouseButtons struct {
	LeftButton   string `yaml:"left_button" help:"Switch button mapped to the left mouse button"`
	MiddleButton string `yaml:"middle_button" help:"Switch button mapped to the middle mouse button"`
	RightButton  string `yaml:"right_button" help:"Switch button mapped to the right mouse button"`
}

// Mouse is the `mouse: {...}` config block (spec.md §6, §4.9).
type Mouse struct {
	Enabled           bool    `yaml:"enabled" help:"Enable optical-sensor mouse synthesis" default:"false"`
	Sensitivity       float64 `yaml:"sensitivity" help:"Cursor-move multiplier applied to sensor deltas" default:"1.0"`
	ScrollSensitivity float64 `yaml:"scroll_sensitivity" help:"Scroll-wheel multiplier applied to stick-derived scroll" default:"1.0"`
	Buttons           struct {
		LeftJoycon  MouseButtons `yaml:"left_joycon"`
		RightJoycon MouseButtons `yaml:"right_joycon"`
	} `yaml:"buttons"`
}

// Log is the ambient logging config block, grounded on VIIPER's cli.Log.
type Log struct {
	Level  string `help:"Log level: trace, debug, info, warn, error" enum:"trace,debug,info,warn,error,''" default:"info"`
	File   string `help:"Write logs to this file instead of stdout/stderr"`
	Raw    bool   `help:"Trace raw command-channel frames at trace level" default:"false"`
	RawLog string `help:"Write raw frame traces to this file instead of the main log" name:"raw-log"`
}

// Transport is the ambient transport-tuning config block: a seam for
// picking the local Bluetooth adapter and tuning USB claim behavior, which
// spec.md's non-goals exclude a full implementation of but still names as
// something the device session needs (AdapterAddress(), claim timeout).
type Transport struct {
	BLEAdapter     string `yaml:"ble_adapter" help:"Local Bluetooth adapter identifier (empty selects the default adapter)"`
	CommandTimeout int    `yaml:"command_timeout_ms" help:"Command-channel response timeout in milliseconds" default:"500"`
	USBClaimRetry  int    `yaml:"usb_claim_retry" help:"Number of USB interface claim retries before giving up" default:"3"`
}

// Config is the fully loaded, validated, immutable configuration consumed
// by discovery, the virtual controller, and the mouse synthesizer.
type Config struct {
	CombineJoycons bool      `yaml:"combine_joycons" help:"Combine a left+right Joy-Con pair into a single virtual pad" default:"true"`
	Deadzone       int       `yaml:"deadzone" help:"Raw-unit deadzone applied to both stick axes" default:"150"`
	MotionControls bool      `yaml:"motion_controls" help:"Forward accelerometer/gyroscope data to the virtual pad" default:"false"`
	TargetMode     string       `yaml:"target_mode" help:"Virtual pad report format: x360 or ds4" enum:"x360,ds4" default:"x360"`
	Mouse          Mouse        `yaml:"mouse" embed:"" prefix:"mouse."`
	Buttons        ButtonMapSet `yaml:"buttons" embed:"" prefix:"buttons."`
	Log            Log          `yaml:"log" embed:"" prefix:"log."`
	Transport      Transport    `yaml:"transport" embed:"" prefix:"transport."`

	ConfigPath string `yaml:"-" name:"config" help:"Path to a YAML/TOML/JSON config file" type:"path"`
}

// Mode resolves the configured target report format to a buttonmap.Mode.
func (c *Config) Mode() buttonmap.Mode {
	if c.TargetMode == "ds4" {
		return buttonmap.ModeDS4
	}
	return buttonmap.ModeX360
}

// ButtonTables is the set of resolved Table values for each controller
// role, built once after config load and reused for the process lifetime.
type ButtonTables struct {
	DualJoycons   buttonmap.Table
	SingleJoyconL buttonmap.Table
	SingleJoyconR buttonmap.Table
	Procon        buttonmap.Table
}

// BuildButtonTables resolves every configured button map against the given
// link-layer encoding, failing fast with ConfigInvalid-style errors if any
// name is unrecognized, matching config.py's raise-on-unknown-name behavior.
func (c *Config) BuildButtonTables(enc buttonmap.Encoding) (ButtonTables, error) {
	mode := c.Mode()
	var t ButtonTables
	var err error
	if t.DualJoycons, err = buttonmap.Build(enc, mode, c.Buttons.DualJoycons); err != nil {
		return ButtonTables{}, fmt.Errorf("config: buttons.dual_joycons: %w", err)
	}
	if t.SingleJoyconL, err = buttonmap.Build(enc, mode, c.Buttons.SingleJoyconL); err != nil {
		return ButtonTables{}, fmt.Errorf("config: buttons.single_joycon_l: %w", err)
	}
	if t.SingleJoyconR, err = buttonmap.Build(enc, mode, c.Buttons.SingleJoyconR); err != nil {
		return ButtonTables{}, fmt.Errorf("config: buttons.single_joycon_r: %w", err)
	}
	if t.Procon, err = buttonmap.Build(enc, mode, c.Buttons.Procon); err != nil {
		return ButtonTables{}, fmt.Errorf("config: buttons.procon: %w", err)
	}
	return t, nil
}
