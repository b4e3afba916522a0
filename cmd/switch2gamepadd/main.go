// Command switch2gamepadd is the bridge daemon: it discovers Nintendo
// Switch 2 controllers over BLE and USB, decodes their input frames, and
// re-emits them as virtual Xbox 360/DualShock 4 gamepads via /dev/uinput.
// The process shape (Manager-owned slot table, one goroutine per admitted
// device, signal-driven Cleanup) is adapted from the teacher driver's
// Manager/Scan/driverLoop/Cleanup in main.go; the kong/kong-yaml/kong-toml
// configuration chain follows sanjay900-VIIPER's cmd/viiper/viiper.go.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/google/gousb"
	"tinygo.org/x/bluetooth"

	"github.com/rexisp/switch2gamepad/internal/blelink"
	"github.com/rexisp/switch2gamepad/internal/buttonmap"
	"github.com/rexisp/switch2gamepad/internal/calibration"
	"github.com/rexisp/switch2gamepad/internal/codec"
	"github.com/rexisp/switch2gamepad/internal/config"
	"github.com/rexisp/switch2gamepad/internal/device"
	"github.com/rexisp/switch2gamepad/internal/discovery"
	"github.com/rexisp/switch2gamepad/internal/inputreport"
	"github.com/rexisp/switch2gamepad/internal/logging"
	"github.com/rexisp/switch2gamepad/internal/mouse"
	"github.com/rexisp/switch2gamepad/internal/rumble"
	"github.com/rexisp/switch2gamepad/internal/uinput"
	"github.com/rexisp/switch2gamepad/internal/usblink"
	"github.com/rexisp/switch2gamepad/internal/vpad"
)

// usbScanInterval mirrors the teacher's 2-second Manager.Scan poll.
const usbScanInterval = 2 * time.Second

func main() {
	userCfg := findUserConfig(os.Args[1:])

	var cfg config.Config
	_ = kong.Parse(&cfg,
		kong.Name("switch2gamepadd"),
		kong.Description("Nintendo Switch 2 controller to virtual gamepad bridge"),
		kong.UsageOnError(),
		kong.Configuration(kongyaml.Loader, userCfg),
		kong.Configuration(kongtoml.Loader, userCfg),
	)

	logger, closer, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, "switch2gamepadd: failed to set up logging:", err)
		os.Exit(2)
	}
	defer closer.Close()

	var rawLogger *logging.RawLogger
	if cfg.Log.Raw {
		rawLogger = logging.NewRaw(logger)
		if cfg.Log.RawLog != "" {
			rawLog, closer2, err := logging.Setup("trace", cfg.Log.RawLog)
			if err != nil {
				logger.Error("failed to open raw log file", "file", cfg.Log.RawLog, "error", err)
			} else {
				defer closer2.Close()
				rawLogger = logging.NewRaw(rawLog)
			}
		}
	}
	_ = rawLogger // reserved for a future per-frame trace hook into link.Channel

	sup, err := newSupervisor(&cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go sup.runUSBScan(ctx)
	go sup.runBLEScan(ctx)

	logger.Info("service ready, waiting for controllers")
	<-sigChan
	logger.Info("shutdown signal received, cleaning up")
	cancel()
	sup.cleanup()
	logger.Info("done")
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	if v := os.Getenv("SWITCH2GAMEPAD_CONFIG"); v != "" {
		return v
	}
	return ""
}

// supervisor owns the discovery manager, every admitted session, and the
// per-slot virtual-pad pipeline (Aggregator + uinput.Pad + rumble.Pump),
// generalizing the teacher's single-device ActiveDriver/Manager pairing to
// the multi-slot, dual-transport case.
type supervisor struct {
	cfg    *config.Config
	logger *slog.Logger

	profile calibration.Profile
	tables  config.ButtonTables

	manager *discovery.Manager

	mouseCfg mouse.Config
	mouseSink *mouse.UinputSink

	mu       sync.Mutex
	slots    map[int]*playerSlot
	sessions map[device.Session]*sessionState

	usbSeen map[string]bool
	bleSeen map[string]bool

	usbCtx *gousb.Context
}

// playerSlot is the fully wired output pipeline for one virtual pad.
type playerSlot struct {
	agg  *vpad.Aggregator
	pad  *uinput.Pad
	pump *rumble.Pump
}

// sessionState tracks the per-session mouse synthesizer and which slot it
// feeds, so the session's OnInput callback can route decoded frames.
type sessionState struct {
	kind    device.Kind
	player  int
	mouseFX *mouse.Synthesizer
}

func newSupervisor(cfg *config.Config, logger *slog.Logger) (*supervisor, error) {
	profile := calibration.Profile{Deadzone: cfg.Deadzone}

	tables, err := cfg.BuildButtonTables(buttonmap.EncodingBLE)
	if err != nil {
		return nil, fmt.Errorf("switch2gamepadd: %w", err)
	}

	mouseCfg, err := buildMouseConfig(cfg.Mouse, buttonmap.EncodingBLE)
	if err != nil {
		return nil, fmt.Errorf("switch2gamepadd: mouse config: %w", err)
	}

	var mouseSink *mouse.UinputSink
	if mouseCfg.Enabled {
		mouseSink, err = mouse.NewUinputSink()
		if err != nil {
			return nil, fmt.Errorf("switch2gamepadd: mouse sink: %w", err)
		}
	}

	usbCtx := gousb.NewContext()

	sup := &supervisor{
		cfg:       cfg,
		logger:    logger,
		profile:   profile,
		tables:    tables,
		mouseCfg:  mouseCfg,
		mouseSink: mouseSink,
		slots:     make(map[int]*playerSlot),
		sessions:  make(map[device.Session]*sessionState),
		usbSeen:   make(map[string]bool),
		bleSeen:   make(map[string]bool),
		usbCtx:    usbCtx,
	}
	sup.manager = discovery.NewManager(cfg.CombineJoycons, nil)
	return sup, nil
}

// buildMouseConfig resolves the configured button names into SwitchButton
// bitmasks, failing fast on an unknown name the way config.BuildButtonTables
// does for the regular button maps.
func buildMouseConfig(m config.Mouse, enc buttonmap.Encoding) (mouse.Config, error) {
	names := buttonmap.NamesFor(enc)
	resolve := func(name string) (buttonmap.SwitchButton, error) {
		if name == "" {
			return 0, nil
		}
		b, ok := names[name]
		if !ok {
			return 0, fmt.Errorf("unknown switch button %q", name)
		}
		return b, nil
	}

	var cfg mouse.Config
	cfg.Enabled = m.Enabled
	cfg.Sensitivity = m.Sensitivity
	cfg.ScrollSensitivity = m.ScrollSensitivity

	var err error
	if cfg.LeftJoyCon.Left, err = resolve(m.Buttons.LeftJoycon.LeftButton); err != nil {
		return cfg, err
	}
	if cfg.LeftJoyCon.Middle, err = resolve(m.Buttons.LeftJoycon.MiddleButton); err != nil {
		return cfg, err
	}
	if cfg.LeftJoyCon.Right, err = resolve(m.Buttons.LeftJoycon.RightButton); err != nil {
		return cfg, err
	}
	if cfg.RightJoyCon.Left, err = resolve(m.Buttons.RightJoycon.LeftButton); err != nil {
		return cfg, err
	}
	if cfg.RightJoyCon.Middle, err = resolve(m.Buttons.RightJoycon.MiddleButton); err != nil {
		return cfg, err
	}
	if cfg.RightJoyCon.Right, err = resolve(m.Buttons.RightJoycon.RightButton); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// tableFor picks the resolved button table matching a slot's composition.
func (sup *supervisor) tableFor(composition vpad.Composition) buttonmap.Table {
	switch composition {
	case vpad.CompositionSingleLeft:
		return sup.tables.SingleJoyconL
	case vpad.CompositionSingleRight:
		return sup.tables.SingleJoyconR
	case vpad.CompositionProCon:
		return sup.tables.Procon
	default:
		return sup.tables.DualJoycons
	}
}

// adapterAddress resolves the local adapter MAC used by the pairing
// handshake. Live OS adapter queries are an explicit non-goal (spec.md §2);
// the address is supplied through configuration instead.
func (sup *supervisor) adapterAddress() (uint64, error) {
	if sup.cfg.Transport.BLEAdapter == "" {
		return 0, fmt.Errorf("switch2gamepadd: no local adapter address configured (transport.ble_adapter)")
	}
	return codec.ParseMAC48(sup.cfg.Transport.BLEAdapter)
}

// onConnected is called once a transport has finished Session.Connect: it
// admits the session into a slot, (re)builds that slot's pipeline, and
// wires the input/disconnect callbacks.
func (sup *supervisor) onConnected(ctx context.Context, sess device.Session) {
	adm, err := sup.manager.Admit(sess)
	if err != nil {
		sup.logger.Warn("admission failed", "kind", sess.Kind(), "error", err)
		sess.Disconnect()
		return
	}

	kinds := make([]device.Kind, len(adm.Sessions))
	for i, s := range adm.Sessions {
		kinds[i] = s.Kind()
	}
	composition := vpad.CompositionFor(kinds)

	sup.mu.Lock()
	ps, ok := sup.slots[adm.Player]
	if !ok {
		pad, err := uinput.New(adm.Player, sup.cfg.Mode())
		if err != nil {
			sup.mu.Unlock()
			sup.logger.Error("failed to create virtual pad", "player", adm.Player, "error", err)
			sess.Disconnect()
			return
		}
		ps = &playerSlot{
			agg:  vpad.New(sup.tableFor(composition), composition),
			pad:  pad,
			pump: rumble.New(adm.Sessions),
		}
		sup.slots[adm.Player] = ps
	} else {
		ps.agg = vpad.New(sup.tableFor(composition), composition)
		ps.pump = rumble.New(adm.Sessions)
	}

	state := &sessionState{kind: sess.Kind(), player: adm.Player}
	if sup.mouseCfg.Enabled && sess.Kind().IsJoyCon() {
		state.mouseFX = mouse.New(sup.mouseCfg, sess.Kind(), sup.mouseSink)
	}
	sup.sessions[sess] = state
	sup.mu.Unlock()

	if err := sess.SetLEDs(ctx, adm.Player, adm.Reversed); err != nil {
		sup.logger.Warn("failed to set LEDs", "player", adm.Player, "error", err)
	}

	mask := uint32(0)
	if sup.cfg.MotionControls {
		mask |= device.FeatureMotion
	}
	if sup.mouseCfg.Enabled {
		mask |= device.FeatureMouse
	}
	if mask != 0 {
		if err := sess.EnableFeatures(ctx, mask); err != nil {
			sup.logger.Warn("failed to enable features", "player", adm.Player, "error", err)
		}
	}

	sess.OnInput(func(snap inputreport.Snapshot) {
		sup.handleInput(sess, snap)
	})
	sess.DisconnectCallback(func(s device.Session) {
		sup.handleDisconnect(s)
	})

	sup.logger.Info("controller connected", "player", adm.Player, "kind", sess.Kind(), "combined", adm.Combined)
}

func (sup *supervisor) handleInput(sess device.Session, snap inputreport.Snapshot) {
	sup.mu.Lock()
	state, ok := sup.sessions[sess]
	if !ok {
		sup.mu.Unlock()
		return
	}
	ps := sup.slots[state.player]
	sup.mu.Unlock()
	if ps == nil {
		return
	}

	if state.mouseFX != nil {
		snap = state.mouseFX.Apply(snap)
	}

	report := ps.agg.Update(sup.cfg.Mode(), state.kind, snap)
	if err := ps.pad.Emit(report); err != nil {
		sup.logger.Warn("failed to emit virtual pad report", "player", state.player, "error", err)
	}
}

func (sup *supervisor) handleDisconnect(sess device.Session) {
	sup.mu.Lock()
	state, ok := sup.sessions[sess]
	if ok {
		delete(sup.sessions, sess)
	}
	sup.mu.Unlock()
	if !ok {
		return
	}

	sup.manager.Remove(sess)
	sup.logger.Info("controller disconnected", "player", state.player, "kind", state.kind)

	_, stillOccupied := sup.manager.Snapshot()[state.player]
	if !stillOccupied {
		sup.mu.Lock()
		if ps := sup.slots[state.player]; ps != nil {
			ps.pump.Stop(context.Background())
			ps.pad.Close()
			delete(sup.slots, state.player)
		}
		sup.mu.Unlock()
	}
}

// runUSBScan polls for wired Pro Controller 2 devices, adapted from the
// teacher's Manager.Scan poll loop.
func (sup *supervisor) runUSBScan(ctx context.Context) {
	ticker := time.NewTicker(usbScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sup.scanUSBOnce(ctx)
		}
	}
}

func (sup *supervisor) scanUSBOnce(ctx context.Context) {
	devs, err := sup.usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(usblink.VendorID) && desc.Product == gousb.ID(device.ProductProController2)
	})
	if err != nil {
		sup.logger.Warn("usb scan failed", "error", err)
		return
	}
	for _, dev := range devs {
		uid := fmt.Sprintf("%d-%d", dev.Desc.Bus, dev.Desc.Address)
		sup.mu.Lock()
		seen := sup.usbSeen[uid]
		if !seen {
			sup.usbSeen[uid] = true
		}
		sup.mu.Unlock()
		if seen {
			dev.Close()
			continue
		}

		sess, err := usblink.New(dev, 1, usblink.InterfaceNumber, device.KindProController2, sup.profile, sup.adapterAddress)
		if err != nil {
			sup.logger.Warn("usb session init failed", "uid", uid, "error", err)
			dev.Close()
			continue
		}
		if err := sess.Connect(ctx); err != nil {
			sup.logger.Warn("usb connect failed", "uid", uid, "error", err)
			continue
		}
		sup.onConnected(ctx, sess)
	}
}

// runBLEScan drives the continuous BLE advertisement scan, filtering on
// Nintendo's manufacturer-specific payload the way
// original_source/discoverer.py's run_discovery callback does.
func (sup *supervisor) runBLEScan(ctx context.Context) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		sup.logger.Error("failed to enable bluetooth adapter", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		adapter.StopScan()
	}()

	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		for _, md := range result.AdvertisementPayload.ManufacturerData() {
			if md.CompanyID != device.AdvertisementManufacturerID {
				continue
			}
			adv, err := discovery.ParseAdvertisement(md.Data)
			if err != nil {
				continue
			}
			addr := result.Address.String()
			sup.mu.Lock()
			seen := sup.bleSeen[addr]
			if !seen {
				sup.bleSeen[addr] = true
			}
			sup.mu.Unlock()
			if seen {
				continue
			}
			kind, ok := discovery.KindForProduct(adv.ProductID)
			if !ok {
				continue
			}
			go sup.connectBLE(ctx, adapter, result, kind)
		}
	})
	if err != nil {
		sup.logger.Error("ble scan failed", "error", err)
	}
}

func (sup *supervisor) connectBLE(ctx context.Context, adapter *bluetooth.Adapter, result bluetooth.ScanResult, kind device.Kind) {
	dev, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		sup.logger.Warn("ble connect failed", "address", result.Address.String(), "error", err)
		return
	}

	sess := blelink.New(dev, kind, sup.profile, false, sup.adapterAddress)
	if err := sess.Connect(ctx); err != nil {
		sup.logger.Warn("ble session init failed", "address", result.Address.String(), "error", err)
		dev.Disconnect()
		return
	}
	sup.onConnected(ctx, sess)
}

// cleanup tears down every slot's virtual pad and rumble pump, mirroring
// the teacher's Manager.Cleanup.
func (sup *supervisor) cleanup() {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	for player, ps := range sup.slots {
		ps.pump.Stop(context.Background())
		ps.pad.Close()
		delete(sup.slots, player)
	}
	sup.usbCtx.Close()
}
