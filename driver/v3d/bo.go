// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"math"
	"sync/atomic"
)

// BO sizes are always multiples of the GPU page.
const pageSize = 4096

// Timeout value meaning "wait forever" in kernel waits.
const waitForever = uint64(math.MaxInt64)

// alignUp rounds n up to a multiple of a.
// a must be a power of two.
func alignUp[T ~int | ~int32 | ~int64 | ~uint32 | ~uint64](n, a T) T {
	return (n + a - 1) &^ (a - 1)
}

// bo is an owning handle to a kernel GEM object.
// The GPU offset of a BO is fixed at creation and fits in
// 32 bits.
type bo struct {
	d      *Driver
	handle uint32
	size   uint32
	offset uint32
	// Host mapping, nil while unmapped.
	p      []byte
	name   string
	refcnt atomic.Int32
}

// newBO allocates a new BO of at least size bytes.
// The name is used in debug output only.
func (d *Driver) newBO(size int64, name string) (*bo, error) {
	aligned := alignUp(size, pageSize)
	if aligned > math.MaxUint32 || aligned < size {
		// BO sizes and GPU addresses are 32-bit.
		boLog.Debugf("alloc %q failed (size %d exceeds the BO limit)", name, size)
		return nil, errNoDeviceMemory
	}
	sz := uint32(aligned)
	handle, offset, err := v3dCreateBO(d.fd, sz)
	if err != nil {
		boLog.WithError(err).Debugf("alloc %q failed (size %d)", name, sz)
		return nil, errNoDeviceMemory
	}
	if offset%pageSize != 0 {
		panic("v3d: misaligned BO offset from kernel")
	}
	b := &bo{
		d:      d,
		handle: handle,
		size:   sz,
		offset: offset,
		name:   name,
	}
	b.refcnt.Store(1)
	if debugOn(debugBO) {
		boLog.Debugf("alloc %q: handle=%d size=%d offset=%#x", name, handle, sz, offset)
	}
	return b, nil
}

// importBO creates a BO referring to the GEM object behind
// a dma-buf file descriptor.
// The returned BO owns the handle; the caller keeps
// ownership of fd.
func (d *Driver) importBO(fd int, size int64, name string) (*bo, error) {
	aligned := alignUp(size, pageSize)
	if aligned > math.MaxUint32 || aligned < size {
		return nil, errExternalHandle
	}
	handle, err := drmPrimeFDToHandle(d.fd, fd)
	if err != nil {
		return nil, errExternalHandle
	}
	offset, err := v3dGetBOOffset(d.fd, handle)
	if err != nil {
		// The handle may be shared with other imports;
		// closing it here would invalidate those.
		return nil, errExternalHandle
	}
	b := &bo{
		d:      d,
		handle: handle,
		size:   uint32(aligned),
		offset: offset,
		name:   name,
	}
	b.refcnt.Store(1)
	if debugOn(debugBO) {
		boLog.Debugf("import %q: handle=%d size=%d offset=%#x", name, handle, b.size, offset)
	}
	return b, nil
}

// export returns a dma-buf file descriptor referring to
// the BO. The caller owns the descriptor.
func (b *bo) export() (int, error) {
	fd, err := drmPrimeHandleToFD(b.d.fd, b.handle)
	if err != nil {
		return -1, errExternalHandle
	}
	return fd, nil
}

// wait blocks until all kernel jobs referencing the BO
// complete, or until the timeout expires.
func (b *bo) wait(timeoutNS uint64) error {
	return v3dWaitBO(b.d.fd, b.handle, timeoutNS)
}

// mmapUnsync maps the BO without waiting for GPU work.
// Writes through the mapping while a job reads the BO are
// only safe for freshly allocated BOs that no submitted
// job references yet.
func (b *bo) mmapUnsync() error {
	if b.p != nil {
		return nil
	}
	off, err := v3dMmapBO(b.d.fd, b.handle)
	if err != nil {
		return errMMapFailed
	}
	p, err := drmMmap(b.d.fd, int64(off), int(b.size))
	if err != nil {
		return errMMapFailed
	}
	b.p = p
	return nil
}

// mmap maps the BO, blocking until all prior GPU work
// referencing it completes.
func (b *bo) mmap() error {
	if err := b.mmapUnsync(); err != nil {
		return err
	}
	if err := b.wait(waitForever); err != nil {
		b.unmap()
		return errMMapFailed
	}
	return nil
}

// unmap releases the host mapping, if any.
func (b *bo) unmap() {
	if b.p == nil {
		return
	}
	if err := drmMunmap(b.p); err != nil {
		boLog.WithError(err).Warnf("munmap %q (handle %d)", b.name, b.handle)
	}
	b.p = nil
}

// ref acquires a reference to the BO.
func (b *bo) ref() *bo {
	b.refcnt.Add(1)
	return b
}

// unref releases a reference to the BO, freeing it when
// the last one is dropped.
func (b *bo) unref() {
	if b == nil {
		return
	}
	switch n := b.refcnt.Add(-1); {
	case n == 0:
		b.free()
	case n < 0:
		panic("v3d: BO refcount underflow")
	}
}

// free unmaps and closes the BO. The kernel ignores close
// errors for all practical purposes, so they are logged
// and swallowed.
func (b *bo) free() {
	b.unmap()
	if err := drmGemClose(b.d.fd, b.handle); err != nil {
		boLog.WithError(err).Warnf("close %q (handle %d)", b.name, b.handle)
	}
	if debugOn(debugBO) {
		boLog.Debugf("free %q: handle=%d size=%d", b.name, b.handle, b.size)
	}
	b.p = nil
	b.handle = 0
}
