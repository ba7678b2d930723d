// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"os"
	"sync"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"tilerlabs/v3d/driver"
)

// simKernel stands in for the kernel side of the DRM
// interface so tests can run without a device.
// Jobs complete instantly: a submit signals its out-sync
// before the ioctl returns.
type simKernel struct {
	mu sync.Mutex

	nextHandle uint32
	nextVA     uint32
	nextMapOff uint64
	bos        map[uint32]*simBO
	byMapOff   map[uint64]*simBO

	nextSync uint32
	syncs    map[uint32]*simSyncobj

	params  map[uint32]uint64
	version string

	// Fake descriptor numbers handed out by the prime and
	// syncobj export paths. Nothing real backs them, and
	// they start high enough that closing one cannot hit a
	// descriptor the test process actually holds open.
	nextFD  int
	expBO   map[int32]uint32
	expSync map[int32]*simSyncobj
	expFile map[int32]bool

	// Submission records for test assertions.
	cls   []sysSubmitCL
	clBOs [][]uint32
	tfus  []sysSubmitTFU

	// failNext makes the next submit ioctl fail.
	failNext error
	// failAlloc makes BO creation fail.
	failAlloc bool
}

type simBO struct {
	handle uint32
	size   uint32
	va     uint32
	mapOff uint64
	mem    []byte
	refs   int
}

type simSyncobj struct {
	signaled bool
	points   map[uint64]bool
}

func newSimKernel() *simKernel {
	return &simKernel{
		nextVA:     pageSize,
		nextMapOff: 1 << 16,
		bos:        make(map[uint32]*simBO),
		byMapOff:   make(map[uint64]*simBO),
		syncs:      make(map[uint32]*simSyncobj),
		params: map[uint32]uint64{
			paramUIFCfg:             0x104,
			paramHubIdent1:          0x101,
			paramHubIdent2:          0x102,
			paramHubIdent3:          0x103,
			paramCoreIdent0:         0x201,
			paramCoreIdent1:         0x202,
			paramCoreIdent2:         0x203,
			paramSupportsTFU:        1,
			paramSupportsCSD:        1,
			paramSupportsCacheFlush: 1,
		},
		version: "v3d",
		nextFD:  1 << 20,
		expBO:   make(map[int32]uint32),
		expSync: make(map[int32]*simSyncobj),
		expFile: make(map[int32]bool),
	}
}

func (k *simKernel) ioctl(fd uintptr, code uintptr, arg unsafe.Pointer) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	switch code {
	case uintptr(ioctlVersion):
		v := (*sysVersion)(arg)
		v.major, v.minor, v.patch = 1, 0, 0
		if v.name != 0 && v.nameLen >= uint64(len(k.version)) {
			dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(v.name))), len(k.version))
			copy(dst, k.version)
		}
		v.nameLen = uint64(len(k.version))
		return nil

	case uintptr(ioctlGemClose):
		a := (*sysGemClose)(arg)
		b := k.bos[a.handle]
		if b == nil {
			return unix.EINVAL
		}
		if b.refs--; b.refs == 0 {
			delete(k.bos, a.handle)
			delete(k.byMapOff, b.mapOff)
		}
		return nil

	case uintptr(ioctlPrimeHandleToFD):
		a := (*sysPrimeHandle)(arg)
		if k.bos[a.handle] == nil {
			return unix.EINVAL
		}
		a.fd = int32(k.nextFD)
		k.nextFD++
		k.expBO[a.fd] = a.handle
		return nil

	case uintptr(ioctlPrimeFDToHandle):
		a := (*sysPrimeHandle)(arg)
		h, ok := k.expBO[a.fd]
		if !ok {
			return unix.EBADF
		}
		k.bos[h].refs++
		a.handle = h
		return nil

	case uintptr(ioctlSyncobjCreate):
		a := (*sysSyncobjCreate)(arg)
		k.nextSync++
		k.syncs[k.nextSync] = &simSyncobj{
			signaled: a.flags&syncobjCreateSignaled != 0,
			points:   make(map[uint64]bool),
		}
		a.handle = k.nextSync
		return nil

	case uintptr(ioctlSyncobjDestroy):
		a := (*sysSyncobjDestroy)(arg)
		if k.syncs[a.handle] == nil {
			return unix.EINVAL
		}
		delete(k.syncs, a.handle)
		return nil

	case uintptr(ioctlSyncobjHandleToFD):
		a := (*sysSyncobjHandle)(arg)
		s := k.syncs[a.handle]
		if s == nil {
			return unix.EINVAL
		}
		a.fd = int32(k.nextFD)
		k.nextFD++
		if a.flags&syncobjExportSyncFile != 0 {
			k.expFile[a.fd] = s.signaled
		} else {
			k.expSync[a.fd] = s
		}
		return nil

	case uintptr(ioctlSyncobjFDToHandle):
		a := (*sysSyncobjHandle)(arg)
		if a.flags&syncobjImportSyncFile != 0 {
			state, ok := k.expFile[a.fd]
			if !ok {
				return unix.EBADF
			}
			s := k.syncs[a.handle]
			if s == nil {
				return unix.EINVAL
			}
			s.signaled = state
			return nil
		}
		s, ok := k.expSync[a.fd]
		if !ok {
			return unix.EBADF
		}
		k.nextSync++
		k.syncs[k.nextSync] = s
		a.handle = k.nextSync
		return nil

	case uintptr(ioctlSyncobjWait):
		a := (*sysSyncobjWait)(arg)
		hs := unsafe.Slice((*uint32)(unsafe.Pointer(uintptr(a.handles))), a.countHandles)
		return k.wait(hs, nil, a.flags, &a.firstSignaled)

	case uintptr(ioctlSyncobjTimelineWait):
		a := (*sysSyncobjTimelineWait)(arg)
		hs := unsafe.Slice((*uint32)(unsafe.Pointer(uintptr(a.handles))), a.countHandles)
		ps := unsafe.Slice((*uint64)(unsafe.Pointer(uintptr(a.points))), a.countHandles)
		return k.wait(hs, ps, a.flags, &a.firstSignaled)

	case uintptr(ioctlSyncobjReset):
		a := (*sysSyncobjArray)(arg)
		hs := unsafe.Slice((*uint32)(unsafe.Pointer(uintptr(a.handles))), a.countHandles)
		for _, h := range hs {
			s := k.syncs[h]
			if s == nil {
				return unix.EINVAL
			}
			s.signaled = false
			clear(s.points)
		}
		return nil

	case uintptr(ioctlSyncobjSignal):
		a := (*sysSyncobjArray)(arg)
		hs := unsafe.Slice((*uint32)(unsafe.Pointer(uintptr(a.handles))), a.countHandles)
		for _, h := range hs {
			s := k.syncs[h]
			if s == nil {
				return unix.EINVAL
			}
			s.signaled = true
		}
		return nil

	case uintptr(ioctlSyncobjTransfer):
		a := (*sysSyncobjTransfer)(arg)
		src, dst := k.syncs[a.srcHandle], k.syncs[a.dstHandle]
		if src == nil || dst == nil {
			return unix.EINVAL
		}
		state := src.signaled
		if a.srcPoint != 0 {
			state = src.points[a.srcPoint]
		}
		if a.dstPoint != 0 {
			dst.points[a.dstPoint] = state
		} else {
			dst.signaled = state
		}
		return nil

	case uintptr(ioctlV3DCreateBO):
		a := (*sysCreateBO)(arg)
		if a.size == 0 {
			return unix.EINVAL
		}
		if k.failAlloc {
			return unix.ENOMEM
		}
		sz := alignUp(a.size, uint32(pageSize))
		k.nextHandle++
		b := &simBO{
			handle: k.nextHandle,
			size:   sz,
			va:     k.nextVA,
			mapOff: k.nextMapOff,
			mem:    make([]byte, sz),
			refs:   1,
		}
		k.nextVA += sz
		k.nextMapOff += uint64(sz)
		k.bos[b.handle] = b
		k.byMapOff[b.mapOff] = b
		a.handle = b.handle
		a.offset = b.va
		return nil

	case uintptr(ioctlV3DMmapBO):
		a := (*sysMmapBO)(arg)
		b := k.bos[a.handle]
		if b == nil {
			return unix.ENOENT
		}
		a.offset = b.mapOff
		return nil

	case uintptr(ioctlV3DWaitBO):
		a := (*sysWaitBO)(arg)
		if k.bos[a.handle] == nil {
			return unix.EINVAL
		}
		return nil

	case uintptr(ioctlV3DGetParam):
		a := (*sysGetParam)(arg)
		v, ok := k.params[a.param]
		if !ok {
			return unix.EINVAL
		}
		a.value = v
		return nil

	case uintptr(ioctlV3DGetBOOffset):
		a := (*sysGetBOOffset)(arg)
		b := k.bos[a.handle]
		if b == nil {
			return unix.ENOENT
		}
		a.offset = b.va
		return nil

	case uintptr(ioctlV3DSubmitCL):
		a := (*sysSubmitCL)(arg)
		if err := k.failNext; err != nil {
			k.failNext = nil
			return err
		}
		var hs []uint32
		if a.boHandleCount > 0 {
			src := unsafe.Slice((*uint32)(unsafe.Pointer(uintptr(a.boHandles))), a.boHandleCount)
			hs = append(hs, src...)
			for _, h := range hs {
				if k.bos[h] == nil {
					return unix.EINVAL
				}
			}
		}
		k.cls = append(k.cls, *a)
		k.clBOs = append(k.clBOs, hs)
		if a.outSync != 0 {
			s := k.syncs[a.outSync]
			if s == nil {
				return unix.EINVAL
			}
			s.signaled = true
		}
		return nil

	case uintptr(ioctlV3DSubmitTFU):
		a := (*sysSubmitTFU)(arg)
		if err := k.failNext; err != nil {
			k.failNext = nil
			return err
		}
		k.tfus = append(k.tfus, *a)
		if a.outSync != 0 {
			s := k.syncs[a.outSync]
			if s == nil {
				return unix.EINVAL
			}
			s.signaled = true
		}
		return nil
	}
	return unix.ENOTTY
}

// wait implements the two syncobj wait ioctls.
// It never blocks: an unsatisfied wait expires right away.
func (k *simKernel) wait(hs []uint32, ps []uint64, flags uint32, first *uint32) error {
	signaled := func(i int) (bool, error) {
		s := k.syncs[hs[i]]
		if s == nil {
			return false, unix.EINVAL
		}
		if ps == nil || ps[i] == 0 {
			return s.signaled, nil
		}
		return s.points[ps[i]], nil
	}
	if flags&syncobjWaitAll != 0 {
		for i := range hs {
			ok, err := signaled(i)
			if err != nil {
				return err
			}
			if !ok {
				return unix.ETIME
			}
		}
		return nil
	}
	for i := range hs {
		ok, err := signaled(i)
		if err != nil {
			return err
		}
		if ok {
			*first = uint32(i)
			return nil
		}
	}
	return unix.ETIME
}

// mmap serves BO mappings from the anonymous memory that
// backs each simBO.
func (k *simKernel) mmap(fd uintptr, off int64, size int) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b := k.byMapOff[uint64(off)]
	if b == nil || size > len(b.mem) {
		return nil, unix.EINVAL
	}
	return b.mem[:size:size], nil
}

func (k *simKernel) munmap(p []byte) error { return nil }

// boCount returns the number of live BOs.
func (k *simKernel) boCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.bos)
}

// boMem returns the backing memory of the BO at the given
// GPU address, or nil.
func (k *simKernel) boMem(va uint32) []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, b := range k.bos {
		if va >= b.va && va < b.va+b.size {
			return b.mem[va-b.va:]
		}
	}
	return nil
}

// isSignaled reports whether a syncobj holds a signaled
// fence.
func (k *simKernel) isSignaled(h uint32) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	s := k.syncs[h]
	return s != nil && s.signaled
}

// failWith makes the next submit fail with err.
func (k *simKernel) failWith(err error) {
	k.mu.Lock()
	k.failNext = err
	k.mu.Unlock()
}

// submitted returns copies of the CL submission records.
func (k *simKernel) submitted() []sysSubmitCL {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]sysSubmitCL(nil), k.cls...)
}

// installSim routes the kernel interface seams to a fresh
// simKernel for the duration of a test.
// Tests that use it must not run in parallel.
func installSim(t *testing.T) *simKernel {
	t.Helper()
	sim := newSimKernel()
	origIoctl, origMmap, origMunmap, origOpen := drmIoctl, drmMmap, drmMunmap, openRender
	drmIoctl = sim.ioctl
	drmMmap = sim.mmap
	drmMunmap = sim.munmap
	openRender = func() (*os.File, [2]int, error) {
		// Any open file serves as the device node; its
		// descriptor is only ever passed back to the sim.
		r, w, err := os.Pipe()
		if err != nil {
			return nil, [2]int{}, err
		}
		t.Cleanup(func() {
			r.Close()
			w.Close()
		})
		return r, [2]int{1, 0}, nil
	}
	t.Cleanup(func() {
		drmIoctl, drmMmap, drmMunmap, openRender = origIoctl, origMmap, origMunmap, origOpen
	})
	return sim
}

// newTestDriver opens a Driver backed by a fresh simKernel.
func newTestDriver(t *testing.T) (*Driver, *simKernel) {
	t.Helper()
	sim := installSim(t)
	d := new(Driver)
	if _, err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(d.Close)
	return d, sim
}

// wantPanic fails the test unless fn panics.
func wantPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected a panic", name)
		}
	}()
	fn()
}

var _ driver.GPU = (*Driver)(nil)
