// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"tilerlabs/v3d/driver"
)

// Command buffer recording states.
const (
	statusNew = iota
	statusInitialized
	statusRecording
	statusExecutable
)

// Binning scratch parameters. The PTB writes each layer's bin lists
// into the tile allocation BO and per-tile state into the TSDA BO.
const (
	tileAllocChunk = 8192       // two PTB block allocations, per layer
	tileAllocSlack = 512 * 1024 // keeps the kernel's OOM handling cold
	tileStateBytes = 256        // per tile and layer
)

// job is one complete frame of GPU work: a binning list, a render
// list and the BOs they reference. The queue consumes jobs in
// recording order.
type job struct {
	d        *Driver
	bcl      cl
	rcl      cl
	indirect cl

	// BO set referenced by the job, deduplicated by handle.
	// handles is the flat form handed to the kernel.
	bos     map[uint32]*bo
	handles []uint32

	tileAlloc *bo
	tileState *bo
	tiling    frameTiling

	// A TFU job carries a ready-made descriptor instead of
	// control lists.
	tfu *sysSubmitTFU

	// A subpass spans several jobs when something interrupts it
	// mid-recording. The flags tell the load/store logic which
	// fragment of the subpass this job is.
	firstSubpass    int
	subpassContinue bool
	subpassFinish   bool

	serialize bool
	tmuDirty  bool
}

func (d *Driver) newJob() *job {
	j := &job{d: d, bos: make(map[uint32]*bo)}
	j.bcl.init(d)
	j.rcl.init(d)
	j.indirect.init(d)
	return j
}

// addBO adds a BO to the job's reference set, keeping it alive
// until the job is freed.
func (j *job) addBO(b *bo) {
	if _, ok := j.bos[b.handle]; ok {
		return
	}
	j.bos[b.handle] = b.ref()
	j.handles = append(j.handles, b.handle)
}

// free releases the job's control lists, BO references and binning
// scratch.
func (j *job) free() {
	j.bcl.reset()
	j.rcl.reset()
	j.indirect.reset()
	for _, b := range j.bos {
		b.unref()
	}
	if j.tileAlloc != nil {
		j.tileAlloc.unref()
	}
	if j.tileState != nil {
		j.tileState.unref()
	}
	*j = job{}
}

// startFrame allocates the binning scratch for a frame with the
// given tile decomposition and emits the binning list prefix.
// Running out of memory for scratch mid-recording is unrecoverable.
func (j *job) startFrame(t frameTiling) {
	j.tiling = t
	layers := max(t.layers, 1)

	// The PTB consumes 64 bytes per tile up front and then grows
	// the bin lists in page-sized blocks.
	size := 64 * layers * t.drawTilesX * t.drawTilesY
	size = alignUp(size, pageSize)
	size += tileAllocChunk * layers
	size += tileAllocSlack

	var err error
	if j.tileAlloc, err = j.d.newBO(int64(size), "tile alloc"); err != nil {
		clLog.Fatalf("cannot allocate bin lists: %v", err)
	}
	j.addBO(j.tileAlloc)

	size = layers * t.drawTilesX * t.drawTilesY * tileStateBytes
	if j.tileState, err = j.d.newBO(int64(size), "TSDA"); err != nil {
		clLog.Fatalf("cannot allocate tile state: %v", err)
	}
	j.addBO(j.tileState)

	j.bcl.ensureSpaceWithBranch(256, j)

	// The layer count must precede the binning mode configuration.
	if t.layers > 1 {
		pktNumberOfLayers{Layers: t.layers}.emit(&j.bcl)
	}
	pktTileBinningModeCfg{
		RenderTargets: uint32(max(t.colorCount, 1)),
		MaxBPP:        t.internalBPP,
		MSAA4x:        t.msaa,
		Width:         t.width,
		Height:        t.height,
	}.emit(&j.bcl)

	emitFlushVCDCache(&j.bcl)
	// No queries here; a zero address disables the counter.
	pktOcclusionQueryCounter{}.emit(&j.bcl)
	emitStartTileBinning(&j.bcl)

	pktClipWindow{Width: t.width, Height: t.height}.emit(&j.bcl)
}

// emitFrameSetup opens the render list of one layer: it points the
// renderer at the layer's bin lists, configures the supertile grid
// and runs two dummy tiles to work around GFXH-1742. Tile buffer
// clears normally happen at the end of a tile's list, so frames
// that clear do so on the first dummy tile.
func emitFrameSetup(j *job, layer uint32, clear bool) {
	rcl := &j.rcl
	t := &j.tiling

	pktMulticoreTileListSetBase{
		Addr: addr{j.tileAlloc, 64 * layer * t.drawTilesX * t.drawTilesY},
	}.emit(rcl)
	pktMulticoreSupertileCfg{
		SupertileW:   t.supertileW,
		SupertileH:   t.supertileH,
		WSupertiles:  t.wSupertiles,
		HSupertiles:  t.hSupertiles,
		WTiles:       t.drawTilesX,
		HTiles:       t.drawTilesY,
		BinTileLists: 1,
	}.emit(rcl)

	for i := 0; i < 2; i++ {
		pktTileCoords{}.emit(rcl)
		emitEndOfLoads(rcl)
		pktStoreTileBufferGeneral{Buffer: tlbNone}.emit(rcl)
		if i == 0 && clear {
			pktClearTileBuffers{ClearZStencil: true, ClearAllRTs: true}.emit(rcl)
		}
		emitEndOfTileMarker(rcl)
	}

	emitFlushVCDCache(rcl)
}

// emitSupertileCoords schedules every supertile that intersects
// area, row by row.
func emitSupertileCoords(j *job, area driver.Scissor) {
	t := &j.tiling
	wPix := t.tileW * t.supertileW
	hPix := t.tileH * t.supertileH

	minX := uint32(area.X) / wPix
	minY := uint32(area.Y) / hPix
	maxX := uint32(area.X+max(area.Width, 1)-1) / wPix
	maxY := uint32(area.Y+max(area.Height, 1)-1) / hPix

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			pktSupertileCoords{Col: x, Row: y}.emit(&j.rcl)
		}
	}
}

// cmdPool implements driver.CmdPool.
// The pool owns every command buffer created from it.
type cmdPool struct {
	d    *Driver
	bufs []*cmdBuffer
}

// NewCmdPool creates a new command pool.
func (d *Driver) NewCmdPool() (driver.CmdPool, error) {
	return &cmdPool{d: d}, nil
}

// NewCmdBuffer creates a new command buffer.
func (p *cmdPool) NewCmdBuffer() (driver.CmdBuffer, error) {
	cb := &cmdBuffer{d: p.d, pool: p, status: statusNew}
	p.bufs = append(p.bufs, cb)
	return cb, nil
}

// Reset resets every command buffer in the pool.
// Recorded jobs and their BOs are released either way, so release
// adds nothing here.
func (p *cmdPool) Reset(release bool) error {
	for _, cb := range p.bufs {
		cb.reset()
	}
	return nil
}

// Destroy destroys the pool and every command buffer it owns.
func (p *cmdPool) Destroy() {
	if p == nil {
		return
	}
	for _, cb := range p.bufs {
		cb.discard()
		cb.pool = nil
		*cb = cmdBuffer{}
	}
	*p = cmdPool{}
}

// attClear is an attachment's clear value in hardware terms.
type attClear struct {
	color   [4]uint32
	depth   float32
	stencil uint8
}

// cmdBuffer implements driver.CmdBuffer.
type cmdBuffer struct {
	d      *Driver
	pool   *cmdPool
	status int
	usage  driver.CmdUsage

	// Finished jobs in recording order, plus the job being
	// recorded.
	jobs []*job
	cur  *job

	// State of the render pass being recorded.
	pass        *renderPass
	fb          *framebuf
	area        driver.Scissor
	clears      []attClear
	subpass     int
	tileAligned bool

	// Set by Barrier; the next job created serializes against
	// previously submitted work.
	barrier bool
}

// Destroy returns the command buffer to its pool.
func (cb *cmdBuffer) Destroy() {
	if cb == nil || cb.pool == nil {
		return
	}
	cb.discard()
	bufs := cb.pool.bufs
	for i := range bufs {
		if bufs[i] == cb {
			bufs[i] = bufs[len(bufs)-1]
			cb.pool.bufs = bufs[:len(bufs)-1]
			break
		}
	}
	*cb = cmdBuffer{}
}

// discard drops every recorded job, including the one being
// recorded.
func (cb *cmdBuffer) discard() {
	if cb.cur != nil {
		cb.cur.free()
		cb.cur = nil
	}
	for _, j := range cb.jobs {
		j.free()
	}
	cb.jobs = nil
}

// reset implements CmdBuffer.Reset and pool-level resets.
func (cb *cmdBuffer) reset() {
	if cb.status == statusInitialized {
		return
	}
	cb.discard()
	cb.usage = 0
	cb.pass = nil
	cb.fb = nil
	cb.clears = nil
	cb.subpass = 0
	cb.barrier = false
	cb.status = statusInitialized
}

// Begin prepares the command buffer for recording.
// Any previous recording is discarded.
func (cb *cmdBuffer) Begin(usg driver.CmdUsage) error {
	switch cb.status {
	case statusNew, statusInitialized, statusExecutable:
	default:
		panic("cmd: Begin on recording command buffer")
	}
	cb.reset()
	cb.usage = usg
	cb.status = statusRecording
	return nil
}

// End completes the recording.
func (cb *cmdBuffer) End() error {
	if cb.status != statusRecording {
		panic("cmd: End outside recording")
	}
	if cb.pass != nil {
		panic("cmd: End inside a render pass")
	}
	cb.finishJob()
	cb.status = statusExecutable
	return nil
}

// Reset discards the recording, readying the command buffer for a
// new one.
func (cb *cmdBuffer) Reset() error {
	cb.reset()
	return nil
}

// startJob returns the job being recorded, creating one if needed.
func (cb *cmdBuffer) startJob() *job {
	if cb.cur == nil {
		cb.cur = cb.d.newJob()
		cb.cur.firstSubpass = cb.subpass
		if cb.barrier {
			cb.cur.serialize = true
			cb.barrier = false
		}
	}
	return cb.cur
}

// finishJob seals the job being recorded and appends it to the
// job list. A job finished inside a render pass that has not
// recorded a render list yet gets the render list of the current
// subpass, and its binning list is terminated.
func (cb *cmdBuffer) finishJob() {
	j := cb.cur
	if j == nil {
		return
	}
	if cb.pass != nil {
		if len(j.rcl.bos) == 0 {
			cb.emitSubpassRCL(j)
		}
		emitFlush(&j.bcl)
	}
	cb.cur = nil
	cb.jobs = append(cb.jobs, j)
}

// BeginPass begins a render pass.
func (cb *cmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, area driver.Scissor, clear []driver.ClearValue) {
	if cb.status != statusRecording {
		panic("cmd: BeginPass outside recording")
	}
	if cb.pass != nil {
		panic("cmd: BeginPass inside a render pass")
	}
	p, ok := pass.(*renderPass)
	if !ok || p.d != cb.d {
		panic("cmd: render pass from a different driver")
	}
	f, ok := fb.(*framebuf)
	if !ok || f.pass != p {
		panic("cmd: framebuffer not created from the render pass")
	}

	cb.pass = p
	cb.fb = f
	cb.area = area
	cb.clears = make([]attClear, len(p.att))
	for i := range cb.clears {
		cb.clears[i].depth = 1
	}
	for i := 0; i < min(len(clear), len(p.att)); i++ {
		att := &p.att[i]
		if formatAspects(att.desc.Format)&driver.AColor != 0 {
			if att.desc.Load[0] == driver.LClear {
				cb.clears[i].color = packClearColor(f.att[i].internalType, clear[i].Color)
			}
			continue
		}
		if att.desc.Load[0] == driver.LClear {
			cb.clears[i].depth = clear[i].Depth
		}
		if att.desc.Load[1] == driver.LClear {
			cb.clears[i].stencil = uint8(clear[i].Stencil)
		}
	}

	cb.startSubpass(0)
}

// NextSubpass moves recording to the next subpass of the current
// render pass.
func (cb *cmdBuffer) NextSubpass() {
	if cb.pass == nil {
		panic("cmd: NextSubpass outside a render pass")
	}
	if cb.subpass+1 >= len(cb.pass.sub) {
		panic("cmd: NextSubpass past the last subpass")
	}
	cb.finishSubpass()
	cb.startSubpass(cb.subpass + 1)
}

// EndPass ends the current render pass.
func (cb *cmdBuffer) EndPass() {
	if cb.pass == nil {
		panic("cmd: EndPass outside a render pass")
	}
	cb.finishSubpass()
	cb.pass = nil
	cb.fb = nil
	cb.clears = nil
	cb.subpass = 0
}

// startSubpass starts recording the given subpass on a new job.
// The tile decomposition is recomputed per subpass because the
// subset of attachments in use constrains the tile size.
func (cb *cmdBuffer) startSubpass(idx int) {
	cb.subpass = idx
	s := &cb.pass.sub[idx]
	t := cb.fb.subpassTiling(s)
	cb.tileAligned = areaTileAligned(cb.area, &t)

	j := cb.startJob()
	if s.wait {
		j.serialize = true
	}
	j.startFrame(t)
}

// finishSubpass seals the subpass being recorded. The last job of
// the subpass emits the attachment stores that end it.
func (cb *cmdBuffer) finishSubpass() {
	if cb.cur != nil {
		cb.cur.subpassFinish = true
	}
	cb.finishJob()
}

// resumeSubpass continues a subpass whose job was interrupted, on a
// fresh job with the same tile decomposition.
func (cb *cmdBuffer) resumeSubpass(t frameTiling) {
	j := cb.startJob()
	j.subpassContinue = true
	j.startFrame(t)
}

// Barrier inserts a number of global barriers.
// Jobs already execute in submission order; a barrier additionally
// keeps later jobs from overlapping earlier ones in the hardware
// pipeline.
func (cb *cmdBuffer) Barrier(b []driver.Barrier) {
	if cb.status != statusRecording {
		panic("cmd: Barrier outside recording")
	}
	if len(b) == 0 {
		return
	}
	if cb.pass != nil {
		if cb.cur != nil {
			t := cb.cur.tiling
			cb.finishJob()
			cb.barrier = true
			cb.resumeSubpass(t)
		}
		return
	}
	cb.finishJob()
	cb.barrier = true
}

// areaTileAligned reports whether the render area starts and ends
// on tile boundaries. Partially covered tiles must preserve the
// pixels outside the area, which rules out tile buffer clears and
// forces loads.
func areaTileAligned(area driver.Scissor, t *frameTiling) bool {
	return uint32(area.X)%t.tileW == 0 && uint32(area.Y)%t.tileH == 0 &&
		(uint32(area.X+area.Width) == t.width || uint32(area.Width)%t.tileW == 0) &&
		(uint32(area.Y+area.Height) == t.height || uint32(area.Height)%t.tileH == 0)
}

// zsBuffer selects the tile buffer of a depth/stencil access.
func zsBuffer(depth, stencil bool) uint8 {
	switch {
	case depth && stencil:
		return tlbZStencil
	case depth:
		return tlbZ
	}
	return tlbStencil
}

// loadStoreHeight returns the height field of a TLB load or store:
// the padded height in UIF blocks for UIF layouts, the stride in
// bytes for raster, zero otherwise.
func loadStoreHeight(sl *slice) uint32 {
	switch sl.tiling {
	case tilingUIFNoXor, tilingUIFXor:
		return sl.paddedUB
	case tilingRaster:
		return sl.stride
	}
	return 0
}

// needsLoad decides whether an attachment aspect must be read back
// into the tile buffer at the start of each tile.
func (cb *cmdBuffer) needsLoad(j *job, aspect driver.Aspect, first int, op driver.LoadOp) bool {
	switch {
	case aspect == 0:
		return false
	case j.firstSubpass > first:
		// The attachment holds results of an earlier subpass.
		return true
	case j.subpassContinue:
		return true
	case !cb.tileAligned:
		return true
	}
	return op == driver.LLoad
}

// needsStore decides whether an attachment aspect must be written
// out at the end of each tile.
func (cb *cmdBuffer) needsStore(j *job, aspect driver.Aspect, last int, op driver.StoreOp) bool {
	switch {
	case aspect == 0:
		return false
	case cb.subpass < last:
		return true
	case !j.subpassFinish:
		return true
	}
	return op == driver.SStore
}

// needsClear decides whether an attachment aspect gets cleared by
// the tile buffer on its first use.
func (cb *cmdBuffer) needsClear(j *job, aspect driver.Aspect, first int, op driver.LoadOp) bool {
	switch {
	case aspect == 0:
		return false
	case j.subpassContinue:
		return false
	case !cb.tileAligned:
		return false
	case cb.subpass != first:
		return false
	}
	return op == driver.LClear
}

// emitAttLoad reads one attachment of the framebuffer into a tile
// buffer.
func (cb *cmdBuffer) emitAttLoad(j *job, v *imageView, layer uint32, buf uint8) {
	img := v.img
	sl := &img.slices[v.baseLevel]
	a := img.layerAddr(v.baseLevel, v.firstLayer+layer)
	j.addBO(a.bo)

	dec := uint8(decimateSample0)
	if img.samples > 1 {
		dec = decimateAllSamples
	}
	pktLoadTileBufferGeneral{
		Buffer:       buf,
		MemoryFormat: sl.tiling,
		DecimateMode: dec,
		Format:       img.fmt.rt,
		RBSwap:       v.swapRB,
		Height:       loadStoreHeight(sl),
		Addr:         a,
	}.emit(&j.indirect)
}

// emitAttStore writes one tile buffer out to an attachment of the
// framebuffer. Resolve stores average the samples of the tile
// buffer into a single-sampled attachment.
func (cb *cmdBuffer) emitAttStore(j *job, v *imageView, layer uint32, buf uint8, clear, resolve bool) {
	img := v.img
	sl := &img.slices[v.baseLevel]
	a := img.layerAddr(v.baseLevel, v.firstLayer+layer)
	j.addBO(a.bo)

	dec := uint8(decimateSample0)
	switch {
	case img.samples > 1:
		dec = decimateAllSamples
	case resolve:
		dec = decimate4x
	}
	pktStoreTileBufferGeneral{
		Buffer:       buf,
		MemoryFormat: sl.tiling,
		DecimateMode: dec,
		Format:       img.fmt.rt,
		RBSwap:       v.swapRB,
		Clear:        clear,
		Height:       loadStoreHeight(sl),
		Addr:         a,
	}.emit(&j.indirect)
}

// emitSubpassLoads emits the tile buffer loads of the current
// subpass, ending with END_OF_LOADS.
func (cb *cmdBuffer) emitSubpassLoads(j *job, layer uint32) {
	s := &cb.pass.sub[cb.subpass]
	for i, ci := range s.color {
		att := &cb.pass.att[ci]
		if cb.needsLoad(j, driver.AColor, att.first, att.desc.Load[0]) {
			cb.emitAttLoad(j, cb.fb.att[ci], layer, uint8(tlbRT0+i))
		}
	}
	if s.ds != -1 {
		att := &cb.pass.att[s.ds]
		aspects := formatAspects(att.desc.Format)
		depth := cb.needsLoad(j, aspects&driver.ADepth, att.first, att.desc.Load[0])
		stencil := cb.needsLoad(j, aspects&driver.AStencil, att.first, att.desc.Load[1])
		if depth || stencil {
			cb.emitAttLoad(j, cb.fb.att[s.ds], layer, zsBuffer(depth, stencil))
		}
	}
	emitEndOfLoads(&j.indirect)
}

// emitSubpassStores emits the tile buffer stores and clears of the
// current subpass.
func (cb *cmdBuffer) emitSubpassStores(j *job, layer uint32) {
	cl := &j.indirect
	s := &cb.pass.sub[cb.subpass]
	hasStores := false
	globalZSClear := false
	globalRTClear := false

	if s.ds != -1 {
		att := &cb.pass.att[s.ds]
		aspects := formatAspects(att.desc.Format)

		// Per-buffer Z/S clears trip GFXH-1689 on 4.x, so
		// depth/stencil always clears through the global
		// CLEAR_TILE_BUFFERS path.
		depthClear := cb.needsClear(j, aspects&driver.ADepth, att.first, att.desc.Load[0])
		stencilClear := cb.needsClear(j, aspects&driver.AStencil, att.first, att.desc.Load[1])
		if depthClear || stencilClear {
			globalZSClear = true
		}

		depth := cb.needsStore(j, aspects&driver.ADepth, att.last, att.desc.Store[0])
		stencil := cb.needsStore(j, aspects&driver.AStencil, att.last, att.desc.Store[1])
		if depth || stencil {
			cb.emitAttStore(j, cb.fb.att[s.ds], layer, zsBuffer(depth, stencil), false, false)
			hasStores = true
		}
	}

	for i, ci := range s.color {
		att := &cb.pass.att[ci]
		clear := cb.needsClear(j, driver.AColor, att.first, att.desc.Load[0])
		store := cb.needsStore(j, driver.AColor, att.last, att.desc.Store[0])

		if len(s.msr) > 0 && s.msr[i] != -1 {
			// The resolve store precedes the attachment's own
			// store and never carries the clear bit.
			cb.emitAttStore(j, cb.fb.att[s.msr[i]], layer, uint8(tlbRT0+i), false, true)
			hasStores = true
		}
		if store {
			cb.emitAttStore(j, cb.fb.att[ci], layer, uint8(tlbRT0+i), clear && !globalRTClear, false)
			hasStores = true
		} else if clear {
			globalRTClear = true
		}
	}

	if !hasStores {
		pktStoreTileBufferGeneral{Buffer: tlbNone}.emit(cl)
	}
	if globalZSClear || globalRTClear {
		pktClearTileBuffers{
			ClearZStencil: globalZSClear,
			ClearAllRTs:   globalRTClear,
		}.emit(cl)
	}
}

// emitSubpassPerTile emits the generic tile list of the current
// subpass for one layer and branches the render list to it.
func (cb *cmdBuffer) emitSubpassPerTile(j *job, layer uint32) {
	cl := &j.indirect
	cl.ensureSpace(200, 1, j)
	start := cl.addr()

	emitTileCoordsImplicit(cl)
	cb.emitSubpassLoads(j, layer)
	pktPrimListFormat{Primitive: primListTriangles}.emit(cl)
	emitBranchToImplicitTileList(cl)
	cb.emitSubpassStores(j, layer)
	emitEndOfTileMarker(cl)
	emitReturnFromSubList(cl)

	pktStartAddrOfGenericList{Start: start, End: cl.addr()}.emit(&j.rcl)
}

// emitSubpassRCL records the render list that runs the current
// subpass's fragment of work held by job j.
func (cb *cmdBuffer) emitSubpassRCL(j *job) {
	t := &j.tiling
	s := &cb.pass.sub[cb.subpass]
	rcl := &j.rcl

	layers := max(t.layers, 1)
	rcl.ensureSpaceWithBranch(200+layers*256*supertileCoordsLen, j)

	common := pktRenderingCfgCommon{
		RenderTargets: uint32(max(len(s.color), 1)),
		Width:         t.width,
		Height:        t.height,
		MSAA4x:        t.msaa,
		MaxBPP:        t.internalBPP,
		EarlyZDisable: true,
	}
	if s.ds != -1 {
		common.DepthType = cb.fb.att[s.ds].internalType
	}
	common.emit(rcl)

	for i, ci := range s.color {
		view := cb.fb.att[ci]
		sl := &view.img.slices[view.baseLevel]

		// When the height padding of a UIF image diverges too
		// far from what the hardware infers for the frame, the
		// clear must be told the real value.
		var clearPad uint32
		if sl.tiling == tilingUIFNoXor || sl.tiling == tilingUIFXor {
			ubh := 2 * utileHeight(view.img.cpp)
			implicit := alignUp(t.height, ubh) / ubh
			if sl.paddedUB-implicit >= 15 {
				clearPad = sl.paddedUB
			}
		}

		c := cb.clears[ci].color
		pktRenderingCfgClearPart1{
			RT:     uint32(i),
			Low32:  c[0],
			Next24: c[1] & 0xffffff,
		}.emit(rcl)
		if view.internalBPP >= rtBPP64 {
			pktRenderingCfgClearPart2{
				RT:      uint32(i),
				MidLow:  c[1]>>24 | c[2]<<8,
				MidHigh: c[2]>>24 | (c[3]&0xffff)<<8,
			}.emit(rcl)
		}
		if view.internalBPP >= rtBPP128 || clearPad != 0 {
			pktRenderingCfgClearPart3{
				RT:              uint32(i),
				High16:          c[3] >> 16,
				UIFPaddedHeight: clearPad,
			}.emit(rcl)
		}
	}

	var color pktRenderingCfgColor
	for i, ci := range s.color {
		view := cb.fb.att[ci]
		color.BPP[i] = view.internalBPP
		color.Type[i] = view.internalType
		color.Clamp[i] = rtClamp(view.img.fmt.rt, view.internalType)
	}
	color.emit(rcl)

	zs := pktRenderingCfgZSClear{Z: 1}
	if s.ds != -1 {
		zs.Z = cb.clears[s.ds].depth
		zs.S = cb.clears[s.ds].stencil
	}
	zs.emit(rcl)

	pktTileListInitialBlockSize{
		Size:        tileBlock64B,
		AutoChained: true,
	}.emit(rcl)

	for layer := uint32(0); layer < layers; layer++ {
		emitFrameSetup(j, layer, cb.tileAligned)
		cb.emitSubpassPerTile(j, layer)
		emitSupertileCoords(j, cb.area)
	}

	emitEndOfRendering(rcl)
}
