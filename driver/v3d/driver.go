// Copyright 2026 Tiler Labs. All rights reserved.

// Package v3d implements driver interfaces on the v3d
// kernel DRM interface, which drives the tile-based
// rasterizer GPUs of Raspberry Pi 4 class hardware.
package v3d

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"tilerlabs/v3d/driver"
)

const driverName = "v3d"

// DRM render nodes occupy a fixed minor range.
const (
	renderMinorFirst = 128
	renderMinorLast  = 191
)

// Driver implements driver.Driver and driver.GPU.
type Driver struct {
	f  *os.File
	fd uintptr
	// Kernel driver version.
	vers [2]int

	// Device parameters.
	uifcfg    uint32
	hubIdent  [3]uint32
	coreIdent [3]uint32
	hasTFU    bool
	hasCSD    bool
	hasFlush  bool

	qu  *queue
	lim driver.Limits
}

func init() {
	driver.Register(&Driver{})
}

// openRender locates and opens the render node of a v3d
// device. The V3D_DEVICE environment variable overrides
// the default search; it must name a DRM device file.
// It is a variable so tests can substitute a simulated
// device.
var openRender = func() (*os.File, [2]int, error) {
	open := func(path string) (*os.File, [2]int, error) {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, [2]int{}, driver.ErrNoDevice
		}
		name, major, minor, err := drmVersion(f.Fd())
		if err != nil || name != driverName {
			f.Close()
			return nil, [2]int{}, driver.ErrNoDevice
		}
		return f, [2]int{major, minor}, nil
	}
	if dev := os.Getenv("V3D_DEVICE"); dev != "" {
		return open(dev)
	}
	for i := renderMinorFirst; i <= renderMinorLast; i++ {
		f, vers, err := open(fmt.Sprintf("/dev/dri/renderD%d", i))
		if err == nil {
			return f, vers, nil
		}
	}
	return nil, [2]int{}, driver.ErrNoDevice
}

// open opens the device file.
func (d *Driver) open() error {
	f, vers, err := openRender()
	if err != nil {
		return err
	}
	d.f = f
	d.fd = f.Fd()
	d.vers = vers
	return nil
}

// initParams queries the device parameters.
// Kernels old enough to lack the TFU, CSD or cache flush
// interfaces cannot run this driver.
func (d *Driver) initParams() error {
	get := func(p uint32) uint32 {
		v, err := v3dGetParam(d.fd, p)
		if err != nil {
			return 0
		}
		return uint32(v)
	}
	d.uifcfg = get(paramUIFCfg)
	d.hubIdent = [3]uint32{get(paramHubIdent1), get(paramHubIdent2), get(paramHubIdent3)}
	d.coreIdent = [3]uint32{get(paramCoreIdent0), get(paramCoreIdent1), get(paramCoreIdent2)}
	d.hasTFU = get(paramSupportsTFU) != 0
	d.hasCSD = get(paramSupportsCSD) != 0
	d.hasFlush = get(paramSupportsCacheFlush) != 0
	if !d.hasTFU || !d.hasCSD || !d.hasFlush {
		return errInitFailed
	}
	return nil
}

// setLimits sets d.lim.
func (d *Driver) setLimits() {
	d.lim = driver.Limits{
		MaxImage1D:   4096,
		MaxImage2D:   4096,
		MaxImageCube: 4096,
		MaxImage3D:   4096,
		MaxLayers:    2048,

		MaxColorTargets: maxColorTargets,
		MaxFBSize:       [2]int{4096, 4096},
		MaxFBLayers:     256,

		MaxDBuffer:        8,
		MaxDImage:         4,
		MaxDConstant:      12,
		MaxDTexture:       16,
		MaxDSampler:       16,
		MaxDBufferRange:   1 << 27,
		MaxDConstantRange: 1 << 27,

		BufAlign: bufferAlign,
		ImgAlign: pageSize,
	}
}

// Open initializes the driver.
func (d *Driver) Open() (gpu driver.GPU, err error) {
	if d.f != nil {
		return d, nil
	}
	if err = d.open(); err != nil {
		goto fail
	}
	if err = d.initParams(); err != nil {
		goto fail
	}
	if d.qu, err = d.newQueue(); err != nil {
		goto fail
	}
	d.setLimits()
	return d, nil
fail:
	d.Close()
	return nil, err
}

// Name returns the driver name.
func (d *Driver) Name() string { return driverName }

// Close deinitializes the driver.
func (d *Driver) Close() {
	if d == nil {
		return
	}
	if d.f != nil {
		if d.qu != nil {
			d.qu.WaitIdle()
			d.qu.free()
		}
		d.f.Close()
	}
	*d = Driver{}
}

// Driver returns the receiver (for driver.GPU conformance).
func (d *Driver) Driver() driver.Driver { return d }

// Queue returns the GPU's command queue.
func (d *Driver) Queue() driver.Queue { return d.qu }

// Commit commits a batch of command buffers for execution
// and arranges for the result to be sent to ch when the
// batch completes.
func (d *Driver) Commit(cb []driver.CmdBuffer, ch chan<- error) {
	f, err := d.NewFence(false)
	if err != nil {
		ch <- err
		return
	}
	if err := d.qu.Submit([]driver.Work{{Buf: cb}}, f); err != nil {
		f.Destroy()
		ch <- err
		return
	}
	go func() {
		err := f.Wait(-1)
		f.Destroy()
		ch <- err
	}()
}

// WaitIdle blocks until all submitted work completes.
func (d *Driver) WaitIdle() error { return d.qu.WaitIdle() }

// Limits returns the implementation limits.
func (d *Driver) Limits() driver.Limits { return d.lim }

// memory implements driver.Memory.
type memory struct {
	d *Driver
	b *bo
}

// NewMemory allocates device memory.
func (d *Driver) NewMemory(size int64) (driver.Memory, error) {
	if size <= 0 {
		panic("NewMemory: size <= 0")
	}
	b, err := d.newBO(size, "memory")
	if err != nil {
		return nil, err
	}
	return &memory{d: d, b: b}, nil
}

// ImportMemory creates a memory allocation from a dma-buf
// file descriptor.
func (d *Driver) ImportMemory(fd int, size int64) (driver.Memory, error) {
	if size <= 0 {
		panic("ImportMemory: size <= 0")
	}
	b, err := d.importBO(fd, size, "imported memory")
	if err != nil {
		return nil, err
	}
	unix.Close(fd)
	return &memory{d: d, b: b}, nil
}

// Map maps a range of the memory for host access.
func (m *memory) Map(off, size int64) ([]byte, error) {
	if off < 0 || off > int64(m.b.size) {
		panic("Map: offset out of bounds")
	}
	if size < 0 {
		size = int64(m.b.size) - off
	} else if off+size > int64(m.b.size) {
		panic("Map: range out of bounds")
	}
	// The whole BO is mapped regardless of the range;
	// the returned slice just views into it.
	if err := m.b.mmap(); err != nil {
		return nil, err
	}
	return m.b.p[off : off+size : off+size], nil
}

// Unmap unmaps the memory.
func (m *memory) Unmap() { m.b.unmap() }

// Export returns a dma-buf file descriptor referring to
// the underlying BO.
func (m *memory) Export() (int, error) { return m.b.export() }

// Size returns the size of the allocation.
func (m *memory) Size() int64 { return int64(m.b.size) }

// Destroy destroys the memory.
func (m *memory) Destroy() {
	if m == nil {
		return
	}
	m.b.unref()
	*m = memory{}
}

// Common kernel interface errors.
var (
	errNoHostMemory   = driver.ErrNoHostMemory
	errNoDeviceMemory = driver.ErrNoDeviceMemory
	errInitFailed     = driver.ErrInitFailed
	errDeviceLost     = driver.ErrDeviceLost
	errMMapFailed     = driver.ErrMMapFailed
	errTooManyObjects = driver.ErrTooManyObjects
	errExternalHandle = driver.ErrExternalHandle
	errNoFormat       = driver.ErrNoFormat
	errNotReady       = driver.ErrNotReady
	errTimeout        = driver.ErrTimeout
	errIncomplete     = driver.ErrIncomplete
)
