// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"tilerlabs/v3d/driver"
)

// Image clears render nothing: the clear value rides in the frame
// configuration, the tile buffer is cleared by the frame setup and
// a store writes it out. One job covers one layer of one level.

// ClearColorImage clears ranges of a color image.
func (cb *cmdBuffer) ClearColorImage(img driver.Image, value driver.ClearColor, rng []driver.ImageRange) {
	cb.transferCheck("ClearColorImage")
	im := img.(*image)
	ityp, bpp := internalTypeBPPForAspects(im.pf, driver.AColor)
	clear := attClear{color: packClearColor(ityp, value)}
	for i := range rng {
		cb.clearImage(im, &clear, driver.AColor, ityp, bpp, &rng[i])
	}
}

// ClearDSImage clears ranges of a depth/stencil image.
func (cb *cmdBuffer) ClearDSImage(img driver.Image, depth float32, stencil uint32, rng []driver.ImageRange) {
	cb.transferCheck("ClearDSImage")
	im := img.(*image)
	aspects := formatAspects(im.pf)
	ityp, bpp := internalTypeBPPForAspects(im.pf, aspects)
	clear := attClear{depth: depth, stencil: uint8(stencil)}
	for i := range rng {
		cb.clearImage(im, &clear, aspects, ityp, bpp, &rng[i])
	}
}

func (cb *cmdBuffer) clearImage(img *image, clear *attClear, aspects driver.Aspect, ityp, bpp uint8, rng *driver.ImageRange) {
	for l := 0; l < rng.Levels; l++ {
		level := uint32(rng.Level + l)
		w := minify(img.width, level)
		h := minify(img.height, level)

		base, layers := uint32(rng.Layer), uint32(rng.Layers)
		if img.typ == img3D {
			base, layers = 0, minify(img.depth, level)
		}

		for layer := base; layer < base+layers; layer++ {
			j := cb.startMetaJob(metaTiling(w, h, 1, bpp))
			emitMetaProlog(j, ityp, clear, img, aspects, level)
			emitFrameSetup(j, 0, true)
			emitClearImagePerTile(j, img, aspects, layer, level)
			emitSupertileCoords(j, driver.Scissor{Width: int(w), Height: int(h)})
			emitEndOfRendering(&j.rcl)
			cb.finishJob()
		}
	}
}

func emitClearImagePerTile(j *job, img *image, aspects driver.Aspect, layer, level uint32) {
	cl := &j.indirect
	cl.ensureSpace(200, 1, j)
	start := cl.addr()

	emitTileCoordsImplicit(cl)
	emitEndOfLoads(cl)
	emitBranchToImplicitTileList(cl)
	emitImageStore(j, img, aspects, layer, level, false, false)
	emitEndOfTileMarker(cl)
	emitReturnFromSubList(cl)

	pktStartAddrOfGenericList{Start: start, End: cl.addr()}.emit(&j.rcl)
}

// ClearAtts clears attachments of the current subpass. A single
// rect covering the whole framebuffer clears through the tile
// buffer: the current job is split and a standalone clear job runs
// between its two halves. Partial clears would have to be drawn as
// rects and are not supported.
func (cb *cmdBuffer) ClearAtts(clear []driver.ClearAtt, rect []driver.ClearRect) {
	if cb.status != statusRecording {
		panic("cmd: ClearAtts outside recording")
	}
	if cb.pass == nil {
		panic("cmd: ClearAtts outside a render pass")
	}
	if !cb.canClearWithTLB(rect) {
		panic("cmd: ClearAtts does not cover the framebuffer")
	}

	// The continuation job restores the tiling of the subpass,
	// which the clear job replaces with its own.
	t := cb.fb.subpassTiling(&cb.pass.sub[cb.subpass])

	cb.finishJob()
	j := cb.startJob()
	j.subpassContinue = true
	cb.emitClearJob(j, clear, uint32(rect[0].Layer), uint32(rect[0].Layers))
	cb.finishJob()

	cb.resumeSubpass(t)
}

// canClearWithTLB reports whether a clear writes every pixel of the
// framebuffer. The render area constrains the stores of the jobs
// recorded so far, so it must cover the framebuffer as well.
func (cb *cmdBuffer) canClearWithTLB(rect []driver.ClearRect) bool {
	if len(rect) != 1 {
		return false
	}
	w := int(cb.fb.tiling.width)
	h := int(cb.fb.tiling.height)
	return coversFrame(rect[0].Rect, w, h) && coversFrame(cb.area, w, h)
}

func coversFrame(r driver.Scissor, w, h int) bool {
	return r.X <= 0 && r.Y <= 0 && r.X+r.Width >= w && r.Y+r.Height >= h
}

// emitClearJob records a complete frame whose only work is clearing
// tile buffers and storing them to the attachments named by clear.
func (cb *cmdBuffer) emitClearJob(j *job, clear []driver.ClearAtt, base, count uint32) {
	s := &cb.pass.sub[cb.subpass]

	var colors [maxColorTargets]driver.ClearAtt
	n := 0
	var ds *driver.ClearValue
	for i := range clear {
		if clear[i].Aspect&(driver.ADepth|driver.AStencil) != 0 {
			ds = &clear[i].Value
		} else if clear[i].Aspect&driver.AColor != 0 {
			colors[n] = clear[i]
			n++
		}
	}

	fbt := &cb.fb.tiling
	subBPP := cb.fb.subpassTiling(s).internalBPP
	j.startFrame(computeFrameTiling(fbt.width, fbt.height, fbt.layers, n, subBPP, false))
	t := &j.tiling

	rcl := &j.rcl
	rcl.ensureSpaceWithBranch(200+count*256*supertileCoordsLen, j)

	pktRenderingCfgCommon{
		RenderTargets: uint32(max(n, 1)),
		Width:         t.width,
		Height:        t.height,
		MaxBPP:        t.internalBPP,
		EarlyZDisable: true,
	}.emit(rcl)

	for i := 0; i < n; i++ {
		ci := s.color[colors[i].Nr]
		if ci < 0 {
			continue
		}
		att := &cb.pass.att[ci]
		ityp, _ := internalTypeBPP(getFormat(att.desc.Format).rt)
		c := packClearColor(ityp, colors[i].Value.Color)

		view := cb.fb.att[ci]
		sl := &view.img.slices[view.baseLevel]
		var clearPad uint32
		if sl.tiling == tilingUIFNoXor || sl.tiling == tilingUIFXor {
			ubh := 2 * utileHeight(view.img.cpp)
			implicit := alignUp(t.height, ubh) / ubh
			if sl.paddedUB-implicit >= 15 {
				clearPad = sl.paddedUB
			}
		}

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
	if ds != nil {
		zs.Z = ds.Depth
		zs.S = uint8(ds.Stencil)
	}
	zs.emit(rcl)

	pktTileListInitialBlockSize{
		Size:        tileBlock64B,
		AutoChained: true,
	}.emit(rcl)

	for layer := base; layer < base+count; layer++ {
		emitFrameSetup(j, layer, true)
		cb.emitClearPerTile(j, clear, layer)
		emitSupertileCoords(j, driver.Scissor{Width: int(t.width), Height: int(t.height)})
	}

	emitEndOfRendering(rcl)
}

func (cb *cmdBuffer) emitClearPerTile(j *job, clear []driver.ClearAtt, layer uint32) {
	cl := &j.indirect
	cl.ensureSpace(200, 1, j)
	start := cl.addr()

	emitTileCoordsImplicit(cl)
	emitEndOfLoads(cl)
	pktPrimListFormat{Primitive: primListTriangles}.emit(cl)
	emitBranchToImplicitTileList(cl)

	s := &cb.pass.sub[cb.subpass]
	hasStores := false
	for i := range clear {
		var ci int
		var buf uint8
		if clear[i].Aspect&(driver.ADepth|driver.AStencil) != 0 {
			ci = s.ds
			buf = zsBuffer(clear[i].Aspect&driver.ADepth != 0, clear[i].Aspect&driver.AStencil != 0)
		} else {
			ci = s.color[clear[i].Nr]
			buf = uint8(tlbRT0 + clear[i].Nr)
		}
		if ci < 0 {
			continue
		}
		hasStores = true
		cb.emitAttStore(j, cb.fb.att[ci], layer, buf, false, false)
	}
	if !hasStores {
		pktStoreTileBufferGeneral{Buffer: tlbNone}.emit(cl)
	}

	emitEndOfTileMarker(cl)
	emitReturnFromSubList(cl)

	pktStartAddrOfGenericList{Start: start, End: cl.addr()}.emit(&j.rcl)
}
