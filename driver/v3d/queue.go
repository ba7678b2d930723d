// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"math"
	"unsafe"

	"golang.org/x/sys/unix"

	"tilerlabs/v3d/driver"
)

// noopEntry tracks a no-op job submitted on behalf of a batch
// that had synchronization but no command buffers. The job's
// BOs must stay alive until the GPU consumes them, so entries
// are kept until their fence signals.
type noopEntry struct {
	j *job
	f *fence
}

// queue implements driver.Queue on the single hardware queue
// exposed by the kernel driver. driver.Queue makes the caller
// serialize submissions, so no locking happens here.
type queue struct {
	d *Driver

	// lastJob is reused as the out syncobj of every submission,
	// so its payload always refers to the job submitted most
	// recently. It starts out signaled so that waiting on an
	// idle queue completes immediately.
	lastJob uint32

	// idle is a timeline syncobj. WaitIdle materializes the
	// current lastJob fence at the next point of the timeline
	// and blocks on that point.
	idle   uint32
	idlePt uint64

	noops []noopEntry
}

func (d *Driver) newQueue() (*queue, error) {
	last, err := drmSyncobjCreate(d.fd, true)
	if err != nil {
		return nil, errInitFailed
	}
	idle, err := drmSyncobjCreate(d.fd, false)
	if err != nil {
		drmSyncobjDestroy(d.fd, last)
		return nil, errInitFailed
	}
	return &queue{d: d, lastJob: last, idle: idle}, nil
}

// free releases the queue's syncobjs and any no-op jobs still
// tracked. The caller must have waited for the queue to go
// idle first.
func (q *queue) free() {
	q.collectNoops(true)
	drmSyncobjDestroy(q.d.fd, q.idle)
	drmSyncobjDestroy(q.d.fd, q.lastJob)
}

// Submit commits a batch of work to the GPU.
func (q *queue) Submit(work []driver.Work, f driver.Fence) error {
	q.collectNoops(false)

	for i := range work {
		w := &work[i]
		wait := len(w.Wait) > 0
		submitted := false
		for _, b := range w.Buf {
			cb := b.(*cmdBuffer)
			if cb.status != statusExecutable {
				panic("cmd: Submit of command buffer not ended")
			}
			for _, j := range cb.jobs {
				if err := q.submitJob(j, wait); err != nil {
					return err
				}
				submitted = true
			}
		}

		// Synchronization of a batch without command buffers
		// still executes, so give it a job to latch onto.
		if !submitted && (wait || len(w.Signal) > 0) {
			j := q.newNoopJob()
			if err := q.submitJob(j, wait); err != nil {
				j.free()
				return err
			}
			e := noopEntry{j: j}
			if f != nil {
				e.f = f.(*fence)
			}
			q.noops = append(q.noops, e)
		}

		if len(w.Signal) > 0 {
			if err := q.exportLastJob(w.Signal); err != nil {
				return err
			}
		}
	}

	if f != nil {
		fd, err := drmSyncobjHandleToFD(q.d.fd, q.lastJob, true)
		if err != nil {
			return errDeviceLost
		}
		_, err = drmSyncobjFDToHandle(q.d.fd, fd, f.(*fence).sync, true)
		unix.Close(fd)
		if err != nil {
			return errDeviceLost
		}
	}
	return nil
}

// exportLastJob propagates the fence of the last submitted job
// into each semaphore by round-tripping it through a sync file.
func (q *queue) exportLastJob(sems []driver.Semaphore) error {
	if len(sems) == 0 {
		return nil
	}
	fd, err := drmSyncobjHandleToFD(q.d.fd, q.lastJob, true)
	if err != nil {
		return errDeviceLost
	}
	for _, s := range sems {
		if _, err := drmSyncobjFDToHandle(q.d.fd, fd, s.(*semaphore).sync, true); err != nil {
			unix.Close(fd)
			return errDeviceLost
		}
	}
	unix.Close(fd)
	return nil
}

// submitJob hands a single job to the kernel. With semWait set,
// binning stalls until the previously submitted job completes;
// this is how semaphore waits are honored, since the kernel
// interface takes a single in syncobj per stage.
//
// Render jobs are serialized against each other by the kernel
// already, so serialize only matters for jobs that may overlap
// with TFU work.
func (q *queue) submitJob(j *job, semWait bool) error {
	if j.tfu != nil {
		args := *j.tfu
		if semWait || j.serialize {
			args.inSync = q.lastJob
		}
		args.outSync = q.lastJob
		if debugOn(debugSubmit) {
			tfuLog.Debugf("submit tfu: icfg %#x ioa %#x", args.icfg, args.ioa)
		}
		if err := v3dSubmitTFU(q.d.fd, &args); err != nil {
			if submitLimit.Allow() {
				submitLog.Errorf("tfu submission failed: %v", err)
			}
			return errDeviceLost
		}
		return nil
	}

	args := sysSubmitCL{
		bclStart:      j.bcl.startAddr().value(),
		bclEnd:        j.bcl.addr().value(),
		rclStart:      j.rcl.startAddr().value(),
		rclEnd:        j.rcl.addr().value(),
		outSync:       q.lastJob,
		qma:           j.tileAlloc.offset,
		qms:           j.tileAlloc.size,
		qts:           j.tileState.offset,
		boHandles:     uint64(uintptr(unsafe.Pointer(&j.handles[0]))),
		boHandleCount: uint32(len(j.handles)),
	}
	if semWait {
		args.inSyncBCL = q.lastJob
	} else if j.serialize {
		args.inSyncRCL = q.lastJob
	}
	if j.tmuDirty && q.d.hasFlush {
		args.flags = submitCLFlushCache
	}
	if debugOn(debugSubmit) {
		submitLog.Debugf("submit cl: bcl %#x-%#x rcl %#x-%#x bos %d",
			args.bclStart, args.bclEnd, args.rclStart, args.rclEnd,
			args.boHandleCount)
	}
	if err := v3dSubmitCL(q.d.fd, &args); err != nil {
		if submitLimit.Allow() {
			submitLog.Errorf("cl submission failed: %v", err)
		}
		return errDeviceLost
	}
	return nil
}

// WaitIdle blocks until every submitted job completes.
func (q *queue) WaitIdle() error {
	q.idlePt++
	if err := drmSyncobjTransfer(q.d.fd, q.idle, q.idlePt, q.lastJob, 0); err != nil {
		return errDeviceLost
	}
	err := drmSyncobjTimelineWait(q.d.fd, []uint32{q.idle}, []uint64{q.idlePt},
		math.MaxInt64, syncobjWaitAll)
	if err != nil {
		return errDeviceLost
	}
	q.collectNoops(true)
	return nil
}

// collectNoops frees no-op jobs whose fence has signaled. With
// all set, every entry is freed regardless; only valid once the
// queue is known to be idle.
func (q *queue) collectNoops(all bool) {
	kept := q.noops[:0]
	for _, e := range q.noops {
		done := all
		if !done && e.f != nil {
			// Poll. Anything but a timeout means the job
			// completed or the device is gone.
			done = drmSyncobjWait(q.d.fd, []uint32{e.f.sync}, 0, syncobjWaitAll) != unix.ETIME
		}
		if done {
			e.j.free()
		} else {
			kept = append(kept, e)
		}
	}
	q.noops = kept
}

// newNoopJob builds a minimal job rendering a 1x1 frame that
// loads and stores nothing. It exists only to produce an out
// fence for batches that carry synchronization without work.
func (q *queue) newNoopJob() *job {
	j := q.d.newJob()
	j.startFrame(metaTiling(1, 1, 1, rtBPP32))
	emitFlush(&j.bcl)

	emitMetaProlog(j, rtType8, nil, nil, driver.AColor, 0)
	emitFrameSetup(j, 0, false)

	cl := &j.indirect
	cl.ensureSpace(64, 1, j)
	start := cl.addr()
	emitTileCoordsImplicit(cl)
	emitEndOfLoads(cl)
	pktPrimListFormat{Primitive: primListTriangles}.emit(cl)
	emitBranchToImplicitTileList(cl)
	pktStoreTileBufferGeneral{Buffer: tlbNone}.emit(cl)
	emitEndOfTileMarker(cl)
	emitReturnFromSubList(cl)
	pktStartAddrOfGenericList{Start: start, End: cl.addr()}.emit(&j.rcl)

	emitSupertileCoords(j, driver.Scissor{Width: 1, Height: 1})
	emitEndOfRendering(&j.rcl)
	return j
}
