// Package discovery owns the fixed-capacity player-slot array and the
// combine-Joy-Cons admission policy, adapted from the teacher driver's
// Manager/findFreeSlot/driverLoop shape (mutex-guarded slot table, one
// goroutine per admitted device) but driven by GATT/USB advertisement
// events instead of a USB hotplug poll, mirroring
// original_source/discoverer.py's run_discovery/add_controller/callback.
package discovery

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/rexisp/switch2gamepad/internal/device"
)

// MaxSlots is the fixed player-slot capacity (spec.md §4.6: "8-slot array").
const MaxSlots = 8

// Advertisement is the decoded Nintendo manufacturer-specific payload from
// one BLE advertisement, per spec.md §6's advertisement filter.
type Advertisement struct {
	VendorID     uint16
	ProductID    uint16
	ReconnectMAC uint64
}

// ErrNotNintendo is returned by ParseAdvertisement when the payload does not
// match the expected manufacturer/vendor/product shape.
var ErrNotNintendo = fmt.Errorf("discovery: not a recognized Nintendo controller advertisement")

// ParseAdvertisement decodes manufacturer-specific data already filtered by
// company ID 0x0553 (the caller's BLE scan callback does that filtering, the
// way bleak's manufacturer_data dict does in original_source/discoverer.py).
// vendor id lives at bytes 3..5 (LE), product id at bytes 5..7 (LE), and the
// reconnect MAC at bytes 10..16 (big-endian, spec.md §6).
func ParseAdvertisement(payload []byte) (Advertisement, error) {
	if len(payload) < 16 {
		return Advertisement{}, ErrNotNintendo
	}
	vendor := binary.LittleEndian.Uint16(payload[3:5])
	product := binary.LittleEndian.Uint16(payload[5:7])
	if vendor != device.NintendoVendorID {
		return Advertisement{}, ErrNotNintendo
	}
	if _, ok := KindForProduct(product); !ok {
		return Advertisement{}, ErrNotNintendo
	}
	var mac uint64
	for _, b := range payload[10:16] {
		mac = mac<<8 | uint64(b)
	}
	return Advertisement{VendorID: vendor, ProductID: product, ReconnectMAC: mac}, nil
}

// KindForProduct maps an advertised product id to a device.Kind, per
// spec.md §6's product-id table.
func KindForProduct(productID uint16) (device.Kind, bool) {
	switch productID {
	case device.ProductJoyConRight:
		return device.KindJoyConRight, true
	case device.ProductJoyConLeft:
		return device.KindJoyConLeft, true
	case device.ProductProController2:
		return device.KindProController2, true
	case device.ProductGameCube:
		return device.KindGameCube, true
	default:
		return 0, false
	}
}

// slot holds the one or two device sessions sharing a virtual pad. A slot
// with two sessions always holds one left and one right Joy-Con, per
// virtual_controller.py's add_controller invariant.
type slot struct {
	player   int
	sessions []device.Session
}

func (s *slot) isSingleRightJoyCon() bool {
	return len(s.sessions) == 1 && s.sessions[0].Kind() == device.KindJoyConRight
}

func (s *slot) isSingleLeftJoyCon() bool {
	return len(s.sessions) == 1 && s.sessions[0].Kind() == device.KindJoyConLeft
}

// Admission is what the Manager reports back after successfully admitting a
// session, so the caller can initialize LEDs and build/attach the virtual
// pad (internal/vpad owns that; discovery only tracks slot membership).
type Admission struct {
	Player    int
	Combined  bool
	Reversed  bool // true for a lone right Joy-Con, which renders its LEDs mirrored
	Sessions  []device.Session
}

// Manager tracks the fixed player-slot array and applies the
// combine-Joy-Cons policy on admission, mirroring add_controller's locked
// section in original_source/discoverer.py.
type Manager struct {
	mu             sync.Mutex
	combineJoycons bool
	slots          [MaxSlots]*slot
	onChange       func()
}

// NewManager constructs a Manager. onChange, if non-nil, is called after
// every admission or disconnect, mirroring discoverer.py's
// update_controllers_threadsafe callback.
func NewManager(combineJoycons bool, onChange func()) *Manager {
	return &Manager{combineJoycons: combineJoycons, onChange: onChange}
}

// Admit assigns sess to a slot, combining it with a complementary lone
// Joy-Con when combine-Joy-Cons is enabled and the device's side buttons
// were not held during pairing (spec.md §4.6).
func (m *Manager) Admit(sess device.Session) (Admission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.combineJoycons && !sess.SideButtonsPressed() {
		switch sess.Kind() {
		case device.KindJoyConLeft:
			if s := m.findSlot((*slot).isSingleRightJoyCon); s != nil {
				return m.attach(s, sess)
			}
		case device.KindJoyConRight:
			if s := m.findSlot((*slot).isSingleLeftJoyCon); s != nil {
				return m.attach(s, sess)
			}
		}
	}

	for i := 0; i < MaxSlots; i++ {
		if m.slots[i] == nil {
			s := &slot{player: i + 1}
			m.slots[i] = s
			return m.attach(s, sess)
		}
	}
	return Admission{}, device.ErrCapacityExceeded
}

func (m *Manager) findSlot(pred func(*slot) bool) *slot {
	for _, s := range m.slots {
		if s != nil && pred(s) {
			return s
		}
	}
	return nil
}

func (m *Manager) attach(s *slot, sess device.Session) (Admission, error) {
	if len(s.sessions) >= 2 {
		return Admission{}, fmt.Errorf("discovery: slot %d already holds two controllers", s.player)
	}
	if len(s.sessions) == 1 {
		existing := s.sessions[0].Kind()
		ok := (existing == device.KindJoyConLeft && sess.Kind() == device.KindJoyConRight) ||
			(existing == device.KindJoyConRight && sess.Kind() == device.KindJoyConLeft)
		if !ok {
			return Admission{}, device.ErrIncompatibleCombination
		}
	}
	s.sessions = append(s.sessions, sess)
	if m.onChange != nil {
		m.onChange()
	}
	return Admission{
		Player:   s.player,
		Combined: len(s.sessions) == 2,
		Reversed: s.isSingleRightJoyCon(),
		Sessions: append([]device.Session(nil), s.sessions...),
	}, nil
}

// Remove detaches sess from whatever slot holds it, freeing the slot only
// once both its sessions (if any) are gone, mirroring
// virtual_controller.py's remove_controller.
func (m *Manager) Remove(sess device.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.slots {
		if s == nil {
			continue
		}
		for j, c := range s.sessions {
			if c == sess {
				s.sessions = append(s.sessions[:j], s.sessions[j+1:]...)
				if len(s.sessions) == 0 {
					m.slots[i] = nil
				}
				if m.onChange != nil {
					m.onChange()
				}
				return
			}
		}
	}
}

// Snapshot returns the current non-empty slots' player numbers and the
// device kinds occupying them, for status reporting.
func (m *Manager) Snapshot() map[int][]device.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int][]device.Kind)
	for _, s := range m.slots {
		if s == nil {
			continue
		}
		kinds := make([]device.Kind, len(s.sessions))
		for i, c := range s.sessions {
			kinds[i] = c.Kind()
		}
		out[s.player] = kinds
	}
	return out
}
