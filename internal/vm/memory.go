package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/golang-wasm/zigvm/internal/decode"
	"github.com/golang-wasm/zigvm/internal/wasm"
)

// maxMemoryReservation mirrors the source's single large mmap reservation:
// linear memory never relocates, so memory.grow only ever extends the
// committed length, never reallocates the backing slice.
const maxMemoryReservation = 2 << 30 // 2 GiB

// Memory is the module's single linear memory: a large, lazily extended
// byte slice plus a committed length in bytes.
type Memory struct {
	data []byte
	len  uint32
	max  uint32
}

// NewMemory allocates a memory backed by limits (nil means the module
// declared none, which a required-shape module never does — see the
// binary reader's single-memory requirement).
func NewMemory(limits *wasm.Limits) *Memory {
	m := &Memory{max: maxMemoryReservation / decode.WasmPageSize}
	if limits != nil {
		m.len = limits.Min * decode.WasmPageSize
		if limits.HasMax && limits.Max < m.max {
			m.max = limits.Max
		}
	}
	m.data = make([]byte, m.len)
	return m
}

// Size returns the current length in pages, matching memory.size.
func (m *Memory) Size() uint32 {
	return m.len / decode.WasmPageSize
}

// Grow implements memory.grow: returns the previous page count on
// success, leaving memory_len unchanged and returning -1 (as an i32,
// i.e. 0xFFFFFFFF) if the requested growth would exceed the reservation.
func (m *Memory) Grow(pages uint32) uint32 {
	oldPages := m.Size()
	if uint64(oldPages)+uint64(pages) > uint64(m.max) {
		return 0xFFFFFFFF
	}
	newLen := m.len + pages*decode.WasmPageSize
	if uint32(len(m.data)) < newLen {
		m.data = append(m.data, make([]byte, newLen-uint32(len(m.data)))...)
	}
	m.len = newLen
	return oldPages
}

func (m *Memory) bounds(offset, n uint32) error {
	if uint64(offset)+uint64(n) > uint64(m.len) {
		return fmt.Errorf("%w: out-of-bounds memory access at %d, len %d", ErrTrap, offset, n)
	}
	return nil
}

func (m *Memory) u8(offset uint32) (uint8, error) {
	if err := m.bounds(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *Memory) u16(offset uint32) (uint16, error) {
	if err := m.bounds(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *Memory) u32(offset uint32) (uint32, error) {
	if err := m.bounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *Memory) u64(offset uint32) (uint64, error) {
	if err := m.bounds(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *Memory) putU8(offset uint32, v uint8) error {
	if err := m.bounds(offset, 1); err != nil {
		return err
	}
	m.data[offset] = v
	return nil
}

func (m *Memory) putU16(offset uint32, v uint16) error {
	if err := m.bounds(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[offset:], v)
	return nil
}

func (m *Memory) putU32(offset uint32, v uint32) error {
	if err := m.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], v)
	return nil
}

func (m *Memory) putU64(offset uint32, v uint64) error {
	if err := m.bounds(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], v)
	return nil
}

// Bytes exposes the committed region directly; the WASI host adaptor
// uses it to read/write guest buffers (iovecs, path strings) without
// going through the width-specific accessors above.
func (m *Memory) Bytes() []byte { return m.data[:m.len] }

// Len returns the current committed length in bytes.
func (m *Memory) Len() uint32 { return m.len }

// Uint32 and PutUint32 are the exported, bounds-checked mirrors of u32/
// putU32 used by the WASI host adaptor (a separate package, so it
// cannot reach the unexported accessors directly). A false/failed
// result means the guest offset is out of bounds, which the caller
// reports as WASI's ErrnoFault rather than the core interpreter's trap.
func (m *Memory) Uint32(offset uint32) (uint32, bool) {
	v, err := m.u32(offset)
	return v, err == nil
}

func (m *Memory) PutUint32(offset, v uint32) bool {
	return m.putU32(offset, v) == nil
}

// Uint64 and PutUint64 are the 64-bit counterparts of Uint32/PutUint32.
func (m *Memory) Uint64(offset uint32) (uint64, bool) {
	v, err := m.u64(offset)
	return v, err == nil
}

func (m *Memory) PutUint64(offset uint32, v uint64) bool {
	return m.putU64(offset, v) == nil
}

// Read returns the n bytes at offset, or false if that range falls
// outside the committed region. The returned slice aliases Memory's
// backing array; callers that retain it beyond the current host call
// must copy it first.
func (m *Memory) Read(offset, n uint32) ([]byte, bool) {
	if err := m.bounds(offset, n); err != nil {
		return nil, false
	}
	return m.data[offset : offset+n], true
}

// Write copies b into the guest memory at offset, or returns false if
// that range falls outside the committed region.
func (m *Memory) Write(offset uint32, b []byte) bool {
	if err := m.bounds(offset, uint32(len(b))); err != nil {
		return false
	}
	copy(m.data[offset:], b)
	return true
}

// Copy implements memory.copy: copies n bytes from src to dest. The
// source program never issues overlapping regions (the original traps
// on overlap); Go's copy is overlap-safe regardless, so this redesign
// permits it rather than rejecting it outright.
func (m *Memory) Copy(dest, src, n uint32) error {
	if err := m.bounds(dest, n); err != nil {
		return err
	}
	if err := m.bounds(src, n); err != nil {
		return err
	}
	copy(m.data[dest:dest+n], m.data[src:src+n])
	return nil
}

// Fill implements memory.fill: fills n bytes at dest with the low byte
// of value.
func (m *Memory) Fill(dest uint32, value byte, n uint32) error {
	if err := m.bounds(dest, n); err != nil {
		return err
	}
	region := m.data[dest : dest+n]
	for i := range region {
		region[i] = value
	}
	return nil
}
