// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"unsafe"

	"github.com/NeowayLabs/drm"
	"github.com/NeowayLabs/drm/ioctl"
	"golang.org/x/sys/unix"
)

// Kernel interface of the v3d DRM driver.
// Structs here mirror the uapi layout bit for bit; do not
// reorder fields.

type (
	sysVersion struct {
		major   int32
		minor   int32
		patch   int32
		_       uint32
		nameLen uint64
		name    uint64
		dateLen uint64
		date    uint64
		descLen uint64
		desc    uint64
	}

	sysGemClose struct {
		handle uint32
		pad    uint32
	}

	sysPrimeHandle struct {
		handle uint32
		flags  uint32
		fd     int32
	}

	sysSyncobjCreate struct {
		handle uint32
		flags  uint32
	}

	sysSyncobjDestroy struct {
		handle uint32
		pad    uint32
	}

	sysSyncobjHandle struct {
		handle uint32
		flags  uint32
		fd     int32
		pad    uint32
	}

	sysSyncobjArray struct {
		handles      uint64
		countHandles uint32
		pad          uint32
	}

	sysSyncobjWait struct {
		handles       uint64
		timeoutNsec   int64
		countHandles  uint32
		flags         uint32
		firstSignaled uint32
		pad           uint32
	}

	sysSyncobjTimelineWait struct {
		handles       uint64
		points        uint64
		timeoutNsec   int64
		countHandles  uint32
		flags         uint32
		firstSignaled uint32
		pad           uint32
	}

	sysSyncobjTransfer struct {
		srcHandle uint32
		dstHandle uint32
		srcPoint  uint64
		dstPoint  uint64
		flags     uint32
		pad       uint32
	}

	sysSubmitCL struct {
		bclStart      uint32
		bclEnd        uint32
		rclStart      uint32
		rclEnd        uint32
		inSyncBCL     uint32
		inSyncRCL     uint32
		outSync       uint32
		qma           uint32
		qms           uint32
		qts           uint32
		boHandles     uint64
		boHandleCount uint32
		flags         uint32
	}

	sysWaitBO struct {
		handle    uint32
		pad       uint32
		timeoutNS uint64
	}

	sysCreateBO struct {
		size   uint32
		flags  uint32
		handle uint32
		offset uint32
	}

	sysMmapBO struct {
		handle uint32
		flags  uint32
		offset uint64
	}

	sysGetParam struct {
		param uint32
		pad   uint32
		value uint64
	}

	sysGetBOOffset struct {
		handle uint32
		offset uint32
	}

	sysSubmitTFU struct {
		icfg      uint32
		iia       uint32
		iis       uint32
		ica       uint32
		iua       uint32
		ioa       uint32
		ios       uint32
		coef      [4]uint32
		boHandles [4]uint32
		inSync    uint32
		outSync   uint32
	}
)

// Command numbers of the v3d driver start at the DRM
// device-specific range.
const v3dCommandBase = 0x40

var (
	// DRM_IOWR(0x00, struct drm_version)
	ioctlVersion = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysVersion{})), drm.IOCTLBase, 0x00)

	// DRM_IOW(0x09, struct drm_gem_close)
	ioctlGemClose = ioctl.NewCode(ioctl.Write,
		uint16(unsafe.Sizeof(sysGemClose{})), drm.IOCTLBase, 0x09)

	// DRM_IOWR(0x2d, struct drm_prime_handle)
	ioctlPrimeHandleToFD = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysPrimeHandle{})), drm.IOCTLBase, 0x2d)

	// DRM_IOWR(0x2e, struct drm_prime_handle)
	ioctlPrimeFDToHandle = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysPrimeHandle{})), drm.IOCTLBase, 0x2e)

	// DRM_IOWR(0xBF, struct drm_syncobj_create)
	ioctlSyncobjCreate = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSyncobjCreate{})), drm.IOCTLBase, 0xBF)

	// DRM_IOWR(0xC0, struct drm_syncobj_destroy)
	ioctlSyncobjDestroy = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSyncobjDestroy{})), drm.IOCTLBase, 0xC0)

	// DRM_IOWR(0xC1, struct drm_syncobj_handle)
	ioctlSyncobjHandleToFD = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSyncobjHandle{})), drm.IOCTLBase, 0xC1)

	// DRM_IOWR(0xC2, struct drm_syncobj_handle)
	ioctlSyncobjFDToHandle = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSyncobjHandle{})), drm.IOCTLBase, 0xC2)

	// DRM_IOWR(0xC3, struct drm_syncobj_wait)
	ioctlSyncobjWait = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSyncobjWait{})), drm.IOCTLBase, 0xC3)

	// DRM_IOWR(0xC4, struct drm_syncobj_array)
	ioctlSyncobjReset = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSyncobjArray{})), drm.IOCTLBase, 0xC4)

	// DRM_IOWR(0xC5, struct drm_syncobj_array)
	ioctlSyncobjSignal = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSyncobjArray{})), drm.IOCTLBase, 0xC5)

	// DRM_IOWR(0xCA, struct drm_syncobj_timeline_wait)
	ioctlSyncobjTimelineWait = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSyncobjTimelineWait{})), drm.IOCTLBase, 0xCA)

	// DRM_IOWR(0xCC, struct drm_syncobj_transfer)
	ioctlSyncobjTransfer = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSyncobjTransfer{})), drm.IOCTLBase, 0xCC)

	// DRM_IOWR(0x40, struct drm_v3d_submit_cl)
	ioctlV3DSubmitCL = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSubmitCL{})), drm.IOCTLBase, v3dCommandBase+0x00)

	// DRM_IOWR(0x41, struct drm_v3d_wait_bo)
	ioctlV3DWaitBO = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysWaitBO{})), drm.IOCTLBase, v3dCommandBase+0x01)

	// DRM_IOWR(0x42, struct drm_v3d_create_bo)
	ioctlV3DCreateBO = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysCreateBO{})), drm.IOCTLBase, v3dCommandBase+0x02)

	// DRM_IOWR(0x43, struct drm_v3d_mmap_bo)
	ioctlV3DMmapBO = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysMmapBO{})), drm.IOCTLBase, v3dCommandBase+0x03)

	// DRM_IOWR(0x44, struct drm_v3d_get_param)
	ioctlV3DGetParam = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetParam{})), drm.IOCTLBase, v3dCommandBase+0x04)

	// DRM_IOWR(0x45, struct drm_v3d_get_bo_offset)
	ioctlV3DGetBOOffset = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysGetBOOffset{})), drm.IOCTLBase, v3dCommandBase+0x05)

	// DRM_IOWR(0x46, struct drm_v3d_submit_tfu)
	ioctlV3DSubmitTFU = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(sysSubmitTFU{})), drm.IOCTLBase, v3dCommandBase+0x06)
)

// Parameters of the get-param ioctl.
const (
	paramUIFCfg = iota
	paramHubIdent1
	paramHubIdent2
	paramHubIdent3
	paramCoreIdent0
	paramCoreIdent1
	paramCoreIdent2
	paramSupportsTFU
	paramSupportsCSD
	paramSupportsCacheFlush
)

// Flags of the CL submit ioctl.
const submitCLFlushCache = 0x01

// Syncobj flags.
const (
	syncobjCreateSignaled = 1 << 0

	syncobjWaitAll       = 1 << 0
	syncobjWaitForSubmit = 1 << 1
	syncobjWaitAvailable = 1 << 2

	syncobjExportSyncFile = 1 << 0
	syncobjImportSyncFile = 1 << 0
)

// Prime flags.
const (
	primeCloexec = unix.O_CLOEXEC
	primeRDWR    = unix.O_RDWR
)

// drmIoctl issues an ioctl on the DRM device file,
// retrying while the call is interrupted.
// It is a variable so tests can route calls to a
// simulated kernel instead.
var drmIoctl = func(fd uintptr, code uintptr, arg unsafe.Pointer) error {
	for {
		err := ioctl.Do(fd, code, uintptr(arg))
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		return err
	}
}

// drmMmap maps a region of the DRM device file.
// It is a variable so tests can serve mappings from
// anonymous memory instead.
var drmMmap = func(fd uintptr, off int64, size int) ([]byte, error) {
	return unix.Mmap(int(fd), off, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// drmMunmap releases a mapping obtained from drmMmap.
var drmMunmap = func(p []byte) error { return unix.Munmap(p) }

// drmVersion returns the name and version of the kernel
// driver behind fd.
func drmVersion(fd uintptr) (name string, major, minor int, err error) {
	var v sysVersion
	if err = drmIoctl(fd, uintptr(ioctlVersion), unsafe.Pointer(&v)); err != nil {
		return
	}
	var b []byte
	if v.nameLen > 0 {
		b = make([]byte, v.nameLen)
		v.name = uint64(uintptr(unsafe.Pointer(&b[0])))
		v.dateLen = 0
		v.descLen = 0
		if err = drmIoctl(fd, uintptr(ioctlVersion), unsafe.Pointer(&v)); err != nil {
			return
		}
	}
	return string(b), int(v.major), int(v.minor), nil
}

// drmGemClose closes a GEM handle.
func drmGemClose(fd uintptr, handle uint32) error {
	arg := sysGemClose{handle: handle}
	return drmIoctl(fd, uintptr(ioctlGemClose), unsafe.Pointer(&arg))
}

// drmPrimeHandleToFD exports a GEM handle as a dma-buf
// file descriptor.
func drmPrimeHandleToFD(fd uintptr, handle uint32) (int, error) {
	arg := sysPrimeHandle{
		handle: handle,
		flags:  primeCloexec | primeRDWR,
	}
	if err := drmIoctl(fd, uintptr(ioctlPrimeHandleToFD), unsafe.Pointer(&arg)); err != nil {
		return -1, err
	}
	return int(arg.fd), nil
}

// drmPrimeFDToHandle imports a dma-buf file descriptor as
// a GEM handle.
func drmPrimeFDToHandle(fd uintptr, dmabuf int) (uint32, error) {
	arg := sysPrimeHandle{fd: int32(dmabuf)}
	if err := drmIoctl(fd, uintptr(ioctlPrimeFDToHandle), unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.handle, nil
}

// drmSyncobjCreate creates a new syncobj,
// optionally already signaled.
func drmSyncobjCreate(fd uintptr, signaled bool) (uint32, error) {
	var arg sysSyncobjCreate
	if signaled {
		arg.flags = syncobjCreateSignaled
	}
	if err := drmIoctl(fd, uintptr(ioctlSyncobjCreate), unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.handle, nil
}

// drmSyncobjDestroy destroys a syncobj.
func drmSyncobjDestroy(fd uintptr, handle uint32) error {
	arg := sysSyncobjDestroy{handle: handle}
	return drmIoctl(fd, uintptr(ioctlSyncobjDestroy), unsafe.Pointer(&arg))
}

// drmSyncobjHandleToFD exports a syncobj, either as a
// syncobj file descriptor or, when syncFile is set, as a
// sync file holding its current payload.
func drmSyncobjHandleToFD(fd uintptr, handle uint32, syncFile bool) (int, error) {
	arg := sysSyncobjHandle{handle: handle}
	if syncFile {
		arg.flags = syncobjExportSyncFile
	}
	if err := drmIoctl(fd, uintptr(ioctlSyncobjHandleToFD), unsafe.Pointer(&arg)); err != nil {
		return -1, err
	}
	return int(arg.fd), nil
}

// drmSyncobjFDToHandle imports a file descriptor into a
// syncobj. When syncFile is set, file is a sync file and
// its fence replaces the payload of handle; otherwise
// file must be a syncobj descriptor and a new handle is
// returned.
func drmSyncobjFDToHandle(fd uintptr, file int, handle uint32, syncFile bool) (uint32, error) {
	arg := sysSyncobjHandle{
		handle: handle,
		fd:     int32(file),
	}
	if syncFile {
		arg.flags = syncobjImportSyncFile
	}
	if err := drmIoctl(fd, uintptr(ioctlSyncobjFDToHandle), unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.handle, nil
}

// drmSyncobjWait waits until every (or any) syncobj in
// handles signals, or until timeoutNS nanoseconds of
// absolute CLOCK_MONOTONIC time pass.
func drmSyncobjWait(fd uintptr, handles []uint32, timeoutNS int64, flags uint32) error {
	arg := sysSyncobjWait{
		handles:      uint64(uintptr(unsafe.Pointer(&handles[0]))),
		timeoutNsec:  timeoutNS,
		countHandles: uint32(len(handles)),
		flags:        flags,
	}
	return drmIoctl(fd, uintptr(ioctlSyncobjWait), unsafe.Pointer(&arg))
}

// drmSyncobjTimelineWait waits until every (or any)
// syncobj in handles reaches its corresponding point.
func drmSyncobjTimelineWait(fd uintptr, handles []uint32, points []uint64, timeoutNS int64, flags uint32) error {
	arg := sysSyncobjTimelineWait{
		handles:      uint64(uintptr(unsafe.Pointer(&handles[0]))),
		points:       uint64(uintptr(unsafe.Pointer(&points[0]))),
		timeoutNsec:  timeoutNS,
		countHandles: uint32(len(handles)),
		flags:        flags,
	}
	return drmIoctl(fd, uintptr(ioctlSyncobjTimelineWait), unsafe.Pointer(&arg))
}

// drmSyncobjReset resets syncobjs to the unsignaled state.
func drmSyncobjReset(fd uintptr, handles []uint32) error {
	arg := sysSyncobjArray{
		handles:      uint64(uintptr(unsafe.Pointer(&handles[0]))),
		countHandles: uint32(len(handles)),
	}
	return drmIoctl(fd, uintptr(ioctlSyncobjReset), unsafe.Pointer(&arg))
}

// drmSyncobjSignal signals syncobjs from the host.
func drmSyncobjSignal(fd uintptr, handles []uint32) error {
	arg := sysSyncobjArray{
		handles:      uint64(uintptr(unsafe.Pointer(&handles[0]))),
		countHandles: uint32(len(handles)),
	}
	return drmIoctl(fd, uintptr(ioctlSyncobjSignal), unsafe.Pointer(&arg))
}

// drmSyncobjTransfer copies the fence at srcPoint of src
// into dst at dstPoint.
func drmSyncobjTransfer(fd uintptr, dst uint32, dstPoint uint64, src uint32, srcPoint uint64) error {
	arg := sysSyncobjTransfer{
		srcHandle: src,
		dstHandle: dst,
		srcPoint:  srcPoint,
		dstPoint:  dstPoint,
	}
	return drmIoctl(fd, uintptr(ioctlSyncobjTransfer), unsafe.Pointer(&arg))
}

// v3dCreateBO creates a new buffer object and returns its
// GEM handle and its offset in the GPU address space.
func v3dCreateBO(fd uintptr, size uint32) (handle, offset uint32, err error) {
	arg := sysCreateBO{size: size}
	if err = drmIoctl(fd, uintptr(ioctlV3DCreateBO), unsafe.Pointer(&arg)); err != nil {
		return
	}
	return arg.handle, arg.offset, nil
}

// v3dMmapBO returns the fake file offset at which a BO
// must be mapped.
func v3dMmapBO(fd uintptr, handle uint32) (uint64, error) {
	arg := sysMmapBO{handle: handle}
	if err := drmIoctl(fd, uintptr(ioctlV3DMmapBO), unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.offset, nil
}

// v3dWaitBO blocks until all jobs referencing the BO
// complete, or until timeoutNS nanoseconds pass.
func v3dWaitBO(fd uintptr, handle uint32, timeoutNS uint64) error {
	arg := sysWaitBO{
		handle:    handle,
		timeoutNS: timeoutNS,
	}
	return drmIoctl(fd, uintptr(ioctlV3DWaitBO), unsafe.Pointer(&arg))
}

// v3dGetParam queries a device parameter.
func v3dGetParam(fd uintptr, param uint32) (uint64, error) {
	arg := sysGetParam{param: param}
	if err := drmIoctl(fd, uintptr(ioctlV3DGetParam), unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.value, nil
}

// v3dGetBOOffset queries the GPU address space offset of
// a BO created by another process.
func v3dGetBOOffset(fd uintptr, handle uint32) (uint32, error) {
	arg := sysGetBOOffset{handle: handle}
	if err := drmIoctl(fd, uintptr(ioctlV3DGetBOOffset), unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.offset, nil
}

// v3dSubmitCL submits a binning/render job.
// args.boHandles must remain valid for the duration of
// the call.
func v3dSubmitCL(fd uintptr, args *sysSubmitCL) error {
	return drmIoctl(fd, uintptr(ioctlV3DSubmitCL), unsafe.Pointer(args))
}

// v3dSubmitTFU submits a texture formatting unit job.
func v3dSubmitTFU(fd uintptr, args *sysSubmitTFU) error {
	return drmIoctl(fd, uintptr(ioctlV3DSubmitTFU), unsafe.Pointer(args))
}
