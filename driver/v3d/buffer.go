// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"tilerlabs/v3d/driver"
)

// Buffer bindings keep to the non-coherent atom size so that tile
// buffer stores never share an atom with unrelated data.
const bufferAlign = 256

// buffer implements driver.Buffer.
type buffer struct {
	d      *Driver
	usg    driver.Usage
	size   int64
	cap    int64
	mem    *memory
	memOff int64
}

// NewBuffer creates a new buffer.
func (d *Driver) NewBuffer(size int64, usg driver.Usage) (driver.Buffer, error) {
	switch {
	case size < 1:
		panic("cannot create buffer with no size")
	case usg == 0:
		panic("cannot create buffer without a valid usage")
	case usg&(driver.UShaderSample|driver.URenderTarget) != 0:
		panic("cannot create buffer with image-only usage")
	}
	// GPU addresses are 32-bit.
	if size > 1<<32-bufferAlign {
		return nil, errNoDeviceMemory
	}
	return &buffer{
		d:    d,
		usg:  usg,
		size: size,
		cap:  alignUp(size, bufferAlign),
	}, nil
}

// Bind binds the buffer to a range of mem.
func (b *buffer) Bind(mem driver.Memory, off int64) error {
	m, ok := mem.(*memory)
	if !ok || m.d != b.d {
		panic("memory from a different driver")
	}
	switch {
	case b.mem != nil:
		panic("buffer bound more than once")
	case off%bufferAlign != 0:
		panic("misaligned buffer binding")
	case off < 0 || off+b.cap > m.Size():
		panic("buffer binding out of bounds")
	}
	m.b.ref()
	b.mem = m
	b.memOff = off
	return nil
}

// Cap returns the capacity of the buffer in bytes.
func (b *buffer) Cap() int64 { return b.cap }

// addrAt returns the GPU address of a byte offset into the buffer.
func (b *buffer) addrAt(off int64) addr {
	if b.mem == nil {
		panic("buffer not bound")
	}
	return addr{b.mem.b, uint32(b.memOff + off)}
}

// Destroy destroys the buffer.
// The backing memory is not touched and can be rebound.
func (b *buffer) Destroy() {
	if b == nil {
		return
	}
	if b.mem != nil {
		b.mem.b.unref()
	}
	*b = buffer{}
}
