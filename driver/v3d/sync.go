// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"math"
	"time"

	"golang.org/x/sys/unix"

	"tilerlabs/v3d/driver"
)

// fence implements driver.Fence as a kernel syncobj. Queue
// submissions import their out fence into it through a sync
// file, so the syncobj payload always tracks the batch the
// fence was submitted with.
type fence struct {
	d    *Driver
	sync uint32
}

// NewFence creates a new fence.
func (d *Driver) NewFence(signaled bool) (driver.Fence, error) {
	h, err := drmSyncobjCreate(d.fd, signaled)
	if err != nil {
		return nil, errNoHostMemory
	}
	return &fence{d: d, sync: h}, nil
}

// absTimeout converts a relative timeout into the absolute
// CLOCK_MONOTONIC deadline that kernel syncobj waits take.
func absTimeout(d time.Duration) int64 {
	if d < 0 {
		return math.MaxInt64
	}
	if d == 0 {
		return 0
	}
	var ts unix.Timespec
	unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	now := ts.Nano()
	if int64(d) > math.MaxInt64-now {
		return math.MaxInt64
	}
	return now + int64(d)
}

// Wait blocks until the fence signals or the timeout passes.
func (f *fence) Wait(timeout time.Duration) error {
	err := drmSyncobjWait(f.d.fd, []uint32{f.sync}, absTimeout(timeout),
		syncobjWaitAll|syncobjWaitForSubmit)
	switch {
	case err == nil:
		return nil
	case err != unix.ETIME:
		return errDeviceLost
	case timeout == 0:
		return errNotReady
	}
	return errTimeout
}

// Reset restores the fence to the unsignaled state.
func (f *fence) Reset() error {
	if err := drmSyncobjReset(f.d.fd, []uint32{f.sync}); err != nil {
		return errDeviceLost
	}
	return nil
}

// Import replaces the fence's payload with the given sync
// file, taking ownership of the descriptor. An fd of -1
// signals the fence instead.
func (f *fence) Import(fd int) error {
	if fd == -1 {
		if err := drmSyncobjSignal(f.d.fd, []uint32{f.sync}); err != nil {
			return errExternalHandle
		}
		return nil
	}
	if _, err := drmSyncobjFDToHandle(f.d.fd, fd, f.sync, true); err != nil {
		return errExternalHandle
	}
	unix.Close(fd)
	return nil
}

// Export returns the fence's current payload as a sync file.
// The caller owns the descriptor.
func (f *fence) Export() (int, error) {
	fd, err := drmSyncobjHandleToFD(f.d.fd, f.sync, true)
	if err != nil {
		return -1, errExternalHandle
	}
	return fd, nil
}

// Destroy releases the fence.
func (f *fence) Destroy() {
	if f == nil || f.d == nil {
		return
	}
	drmSyncobjDestroy(f.d.fd, f.sync)
	*f = fence{}
}

// semaphore implements driver.Semaphore as a kernel syncobj.
// The GPU ends of the contract live in queue.Submit, which
// chains submissions through the queue's last-job syncobj.
type semaphore struct {
	d    *Driver
	sync uint32
}

// NewSemaphore creates a new semaphore.
func (d *Driver) NewSemaphore() (driver.Semaphore, error) {
	h, err := drmSyncobjCreate(d.fd, false)
	if err != nil {
		return nil, errNoHostMemory
	}
	return &semaphore{d: d, sync: h}, nil
}

// Import replaces the semaphore's payload with the given
// sync file, taking ownership of the descriptor.
func (s *semaphore) Import(fd int) error {
	if _, err := drmSyncobjFDToHandle(s.d.fd, fd, s.sync, true); err != nil {
		return errExternalHandle
	}
	unix.Close(fd)
	return nil
}

// Export returns the semaphore's current payload as a sync
// file. The caller owns the descriptor.
func (s *semaphore) Export() (int, error) {
	fd, err := drmSyncobjHandleToFD(s.d.fd, s.sync, true)
	if err != nil {
		return -1, errExternalHandle
	}
	return fd, nil
}

// Destroy releases the semaphore.
func (s *semaphore) Destroy() {
	if s == nil || s.d == nil {
		return
	}
	drmSyncobjDestroy(s.d.fd, s.sync)
	*s = semaphore{}
}
