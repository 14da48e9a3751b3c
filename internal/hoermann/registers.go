package hoermann

import (
	"fmt"
	"sync"
)

// WriteHandler is called when the bus master writes a register.
// It receives the previous and the written value and returns the value
// to store.
type WriteHandler func(addr, prior, next uint16) uint16

// RegisterService is the register-level view of the bus used by the Engine.
type RegisterService interface {
	// Declare announces a block of registers this peer answers for.
	Declare(r Range)

	// OnWrite binds a handler to master writes of addr.
	OnWrite(addr uint16, h WriteHandler)

	// Read returns the stored value of addr.
	Read(addr uint16) uint16

	// Write stores value at addr for the master to read. It does not
	// invoke write handlers.
	Write(addr uint16, value uint16)
}

// RegisterBank is an in-memory RegisterService.
//
// The transport feeds master writes through Apply and serves master reads
// from ReadRange. Handlers run without the bank lock held so they may call
// back into Write.
type RegisterBank struct {
	mu       sync.RWMutex
	ranges   []Range
	values   map[uint16]uint16
	handlers map[uint16]WriteHandler
}

// NewRegisterBank creates an empty bank with no declared ranges.
func NewRegisterBank() *RegisterBank {
	return &RegisterBank{
		values:   make(map[uint16]uint16),
		handlers: make(map[uint16]WriteHandler),
	}
}

// Declare implements RegisterService.
func (b *RegisterBank) Declare(r Range) {
	if r.Count == 0 {
		return
	}
	b.mu.Lock()
	b.ranges = append(b.ranges, r)
	b.mu.Unlock()
}

// OnWrite implements RegisterService. A second call for the same address
// replaces the handler.
func (b *RegisterBank) OnWrite(addr uint16, h WriteHandler) {
	b.mu.Lock()
	if h == nil {
		delete(b.handlers, addr)
	} else {
		b.handlers[addr] = h
	}
	b.mu.Unlock()
}

// Read implements RegisterService.
func (b *RegisterBank) Read(addr uint16) uint16 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.values[addr]
}

// Write implements RegisterService.
func (b *RegisterBank) Write(addr uint16, value uint16) {
	b.mu.Lock()
	b.values[addr] = value
	b.mu.Unlock()
}

// Declared reports whether addr lies in a declared range.
func (b *RegisterBank) Declared(addr uint16) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.declaredLocked(addr, 1)
}

func (b *RegisterBank) declaredLocked(start, count uint16) bool {
	if count == 0 {
		return false
	}
	end := uint32(start) + uint32(count)
	for addr := uint32(start); addr < end; addr++ {
		found := false
		for _, r := range b.ranges {
			if addr <= 0xFFFF && r.Contains(uint16(addr)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply processes a master write of one register.
//
// Returns:
//   - error: ErrUnmappedRegister if addr is not declared
func (b *RegisterBank) Apply(addr, value uint16) error {
	return b.ApplyMany(addr, []uint16{value})
}

// ApplyMany processes a master write of consecutive registers starting at
// start. The whole block must be declared or nothing is written.
func (b *RegisterBank) ApplyMany(start uint16, values []uint16) error {
	if len(values) == 0 || len(values) > 0xFFFF {
		return fmt.Errorf("%w: write of %d registers at 0x%04X", ErrUnmappedRegister, len(values), start)
	}

	b.mu.RLock()
	ok := b.declaredLocked(start, uint16(len(values)))
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: write at 0x%04X+%d", ErrUnmappedRegister, start, len(values))
	}

	for i, v := range values {
		b.applyOne(start+uint16(i), v)
	}
	return nil
}

func (b *RegisterBank) applyOne(addr, value uint16) {
	b.mu.RLock()
	prior := b.values[addr]
	h := b.handlers[addr]
	b.mu.RUnlock()

	stored := value
	if h != nil {
		stored = h(addr, prior, value)
	}

	b.mu.Lock()
	b.values[addr] = stored
	b.mu.Unlock()
}

// ReadRange serves a master read of count registers starting at start.
//
// Returns:
//   - []uint16: The stored values
//   - error: ErrUnmappedRegister if any address is not declared
func (b *RegisterBank) ReadRange(start, count uint16) ([]uint16, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.declaredLocked(start, count) {
		return nil, fmt.Errorf("%w: read at 0x%04X+%d", ErrUnmappedRegister, start, count)
	}

	out := make([]uint16, count)
	for i := range out {
		out[i] = b.values[start+uint16(i)]
	}
	return out, nil
}
