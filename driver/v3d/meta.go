// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"tilerlabs/v3d/driver"
)

// Transfer commands run outside render passes. Each one synthesizes
// self-contained jobs with a trivial binning list and a hand-written
// render list that moves data through the tile buffer.

// transferCheck validates the recording state for a transfer command.
func (cb *cmdBuffer) transferCheck(name string) {
	if cb.status != statusRecording {
		panic("cmd: " + name + " outside recording")
	}
	if cb.pass != nil {
		panic("cmd: " + name + " inside a render pass")
	}
}

// metaTiling computes the tile decomposition of a transfer job.
// Transfers render into a single target and never multisample.
func metaTiling(width, height, layers uint32, bpp uint8) frameTiling {
	return computeFrameTiling(width, height, layers, 1, bpp, false)
}

// startMetaJob opens a fresh job for a transfer command. The binning
// list of a transfer does no real work; a lone flush terminates it.
func (cb *cmdBuffer) startMetaJob(t frameTiling) *job {
	cb.finishJob()
	j := cb.startJob()
	j.startFrame(t)
	emitFlush(&j.bcl)
	return j
}

// framebufferForPixelCount shapes a frame that covers n pixels.
// One frame renders at most 4096x4096 pixels; callers split larger
// workloads into several jobs.
func framebufferForPixelCount(n uint32) (width, height uint32) {
	const maxDim = 4096
	if n > maxDim*maxDim {
		return maxDim, maxDim
	}
	w, h := n, uint32(1)
	for w > maxDim || w%2 == 0 && w > 2*h {
		w >>= 1
		h <<= 1
	}
	return w, h
}

// emitMetaProlog opens the render list of a transfer job: the frame
// configuration for a single render target, clear colors when the
// job clears, and the depth/stencil clear values. img carries the
// UIF padding of the cleared level for clears of image memory; fill
// jobs clear without an image and pass nil.
func emitMetaProlog(j *job, ityp uint8, clear *attClear, img *image, aspects driver.Aspect, level uint32) {
	t := &j.tiling
	rcl := &j.rcl

	layers := max(t.layers, 1)
	rcl.ensureSpaceWithBranch(200+layers*256*supertileCoordsLen, j)

	pktRenderingCfgCommon{
		RenderTargets: 1,
		Width:         t.width,
		Height:        t.height,
		MaxBPP:        t.internalBPP,
		EarlyZDisable: true,
	}.emit(rcl)

	if clear != nil && aspects&driver.AColor != 0 {
		var clearPad uint32
		if img != nil {
			sl := &img.slices[level]
			if sl.tiling == tilingUIFNoXor || sl.tiling == tilingUIFXor {
				ubh := 2 * utileHeight(img.cpp)
				implicit := alignUp(t.height, ubh) / ubh
				if sl.paddedUB-implicit >= 15 {
					clearPad = sl.paddedUB
				}
			}
		}

		c := clear.color
		pktRenderingCfgClearPart1{
			Low32:  c[0],
			Next24: c[1] & 0xffffff,
		}.emit(rcl)
		if t.internalBPP >= rtBPP64 {
			pktRenderingCfgClearPart2{
				MidLow:  c[1]>>24 | c[2]<<8,
				MidHigh: c[2]>>24 | (c[3]&0xffff)<<8,
			}.emit(rcl)
		}
		if t.internalBPP >= rtBPP128 || clearPad != 0 {
			pktRenderingCfgClearPart3{
				High16:          c[3] >> 16,
				UIFPaddedHeight: clearPad,
			}.emit(rcl)
		}
	}

	var color pktRenderingCfgColor
	color.BPP[0] = t.internalBPP
	color.Type[0] = ityp
	color.Clamp[0] = rtClampNone
	color.emit(rcl)

	zs := pktRenderingCfgZSClear{Z: 1}
	if clear != nil {
		zs.Z = clear.depth
		zs.S = clear.stencil
	}
	zs.emit(rcl)

	pktTileListInitialBlockSize{
		Size:        tileBlock64B,
		AutoChained: true,
	}.emit(rcl)
}

// tlbFormat returns the tile buffer format for a transfer touching
// the given image aspect. The TLB cannot do raster loads or stores
// of depth/stencil formats, so buffer transfers remap those onto
// color formats of the same width. A D24S8 stencil-only transfer
// moves a single byte per pixel on the buffer side but all four
// bytes on the image side, which takes asymmetric formats for the
// load and store halves.
func tlbFormat(img *image, aspect driver.Aspect, forStore, toBuffer, fromBuffer bool) uint8 {
	if toBuffer || fromBuffer {
		switch img.pf {
		case driver.D16un:
			return outFmtR16UI
		case driver.D32f:
			return outFmtR32F
		case driver.D24unS8ui:
			if aspect&driver.ADepth != 0 {
				return outFmtRGBA8UI
			}
			if toBuffer {
				if forStore {
					return outFmtR8UI
				}
				return outFmtRGBA8UI
			}
			if forStore {
				return outFmtRGBA8UI
			}
			return outFmtR8UI
		}
	}
	return img.fmt.rt
}

// emitImageLoad loads one layer of an image into the tile buffer.
// Transfers between an image and a buffer always go through a color
// tile buffer, whatever the aspect. D24S8 depth loads bound for a
// buffer read the components reversed so that the depth bits land
// in the low bytes.
func emitImageLoad(j *job, img *image, aspect driver.Aspect, layer, level uint32, toBuffer, fromBuffer bool) {
	sl := &img.slices[level]
	a := img.layerAddr(level, layer)
	j.addBO(a.bo)

	buf := uint8(tlbRT0)
	if !toBuffer && !fromBuffer && aspect != driver.AColor {
		buf = zsBuffer(aspect&driver.ADepth != 0, aspect&driver.AStencil != 0)
	}

	var rbSwap, chanReverse bool
	switch {
	case toBuffer && img.pf == driver.D24unS8ui && aspect&driver.ADepth != 0:
		rbSwap = true
		chanReverse = true
	case !toBuffer && !fromBuffer && aspect&driver.AColor != 0:
		rbSwap = img.fmt.swz[0] == swzZ
	}

	dec := uint8(decimateSample0)
	if img.samples > 1 {
		dec = decimateAllSamples
	}

	pktLoadTileBufferGeneral{
		Buffer:         buf,
		MemoryFormat:   sl.tiling,
		DecimateMode:   dec,
		Format:         tlbFormat(img, aspect, false, toBuffer, fromBuffer),
		RBSwap:         rbSwap,
		ChannelReverse: chanReverse,
		Height:         loadStoreHeight(sl),
		Addr:           a,
	}.emit(&j.indirect)
}

// emitImageStore writes the tile buffer out to one layer of an
// image. The component swaps mirror emitImageLoad with the transfer
// direction inverted.
func emitImageStore(j *job, img *image, aspect driver.Aspect, layer, level uint32, toBuffer, fromBuffer bool) {
	sl := &img.slices[level]
	a := img.layerAddr(level, layer)
	j.addBO(a.bo)

	buf := uint8(tlbRT0)
	if !toBuffer && !fromBuffer && aspect != driver.AColor {
		buf = zsBuffer(aspect&driver.ADepth != 0, aspect&driver.AStencil != 0)
	}

	var rbSwap, chanReverse bool
	switch {
	case fromBuffer && img.pf == driver.D24unS8ui && aspect&driver.ADepth != 0:
		rbSwap = true
		chanReverse = true
	case !toBuffer && !fromBuffer && aspect&driver.AColor != 0:
		rbSwap = img.fmt.swz[0] == swzZ
	}

	dec := uint8(decimateSample0)
	if img.samples > 1 {
		dec = decimateAllSamples
	}

	pktStoreTileBufferGeneral{
		Buffer:         buf,
		MemoryFormat:   sl.tiling,
		DecimateMode:   dec,
		Format:         tlbFormat(img, aspect, true, toBuffer, fromBuffer),
		RBSwap:         rbSwap,
		ChannelReverse: chanReverse,
		Height:         loadStoreHeight(sl),
		Addr:           a,
	}.emit(&j.indirect)
}

// emitLinearLoad loads raster data from a BO into render target 0.
func emitLinearLoad(j *job, b *bo, offset, stride uint32, format uint8) {
	j.addBO(b)
	pktLoadTileBufferGeneral{
		Buffer:       tlbRT0,
		MemoryFormat: tilingRaster,
		DecimateMode: decimateSample0,
		Format:       format,
		Height:       stride,
		Addr:         addr{b, offset},
	}.emit(&j.indirect)
}

// emitLinearStore writes render target 0 out as raster data.
func emitLinearStore(j *job, b *bo, offset, stride uint32, msaa bool, format uint8) {
	j.addBO(b)
	dec := uint8(decimateSample0)
	if msaa {
		dec = decimateAllSamples
	}
	pktStoreTileBufferGeneral{
		Buffer:       tlbRT0,
		MemoryFormat: tilingRaster,
		DecimateMode: dec,
		Format:       format,
		Height:       stride,
		Addr:         addr{b, offset},
	}.emit(&j.indirect)
}

// bufImgLayout resolves the buffer-side layout of a buffer/image
// copy: pixels per row and rows per layer from the strides, falling
// back to the image extent for packed data, and the byte stride and
// per-layer offset that follow from them. Stencil transfers of a
// combined format move one byte per pixel.
func bufImgLayout(img *image, p *driver.BufImgCopy, layer uint32) (stride, offset uint32) {
	width := uint32(p.Size.Width)
	if p.Stride[0] != 0 {
		width = uint32(p.Stride[0])
	}
	height := uint32(p.Size.Height)
	if p.Stride[1] != 0 {
		height = uint32(p.Stride[1])
	}
	cpp := img.cpp
	if p.Aspect&driver.AStencil != 0 {
		cpp = 1
	}
	stride = width * cpp
	offset = height * stride * layer
	return stride, offset
}

// imgLayerRange returns the first layer and layer count addressed
// by a buffer/image copy. Copies into 3D images walk depth slices.
func imgLayerRange(img *image, p *driver.BufImgCopy) (base, count uint32) {
	if img.typ == img3D {
		return uint32(p.ImgOff.Z), uint32(p.Size.Depth)
	}
	return uint32(p.Layer), uint32(p.Layers)
}

// CopyBuffer copies data between buffer objects.
func (cb *cmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	cb.transferCheck("CopyBuffer")
	src := param.From.(*buffer).addrAt(param.FromOff)
	dst := param.To.(*buffer).addrAt(param.ToOff)
	cb.copyBuffer(dst, src, uint32(param.Size))
}

// copyBuffer records the jobs of a buffer copy and returns the last
// one. The copy renders items of the widest pixel format that still
// divides the size evenly and splits into multiple jobs when the
// item count exceeds one frame.
func (cb *cmdBuffer) copyBuffer(dst, src addr, size uint32) *job {
	itemSize := uint32(4)
	format := uint8(outFmtRGBA8UI)
	switch size % 4 {
	case 2:
		itemSize = 2
		format = outFmtRG8UI
	case 1, 3:
		itemSize = 1
		format = outFmtR8UI
	}
	numItems := size / itemSize

	var j *job
	srcOff, dstOff := src.off, dst.off
	for numItems > 0 {
		w, h := framebufferForPixelCount(numItems)

		j = cb.startMetaJob(metaTiling(w, h, 1, rtBPP32))
		emitMetaProlog(j, rtType8UI, nil, nil, driver.AColor, 0)
		emitFrameSetup(j, 0, false)
		emitCopyBufferPerTile(j, dst.bo, src.bo, dstOff, srcOff, w*4, format)
		emitSupertileCoords(j, driver.Scissor{Width: int(w), Height: int(h)})
		emitEndOfRendering(&j.rcl)
		cb.finishJob()

		items := w * h
		numItems -= items
		srcOff += items * itemSize
		dstOff += items * itemSize
	}
	return j
}

func emitCopyBufferPerTile(j *job, dst, src *bo, dstOff, srcOff, stride uint32, format uint8) {
	cl := &j.indirect
	cl.ensureSpace(200, 1, j)
	start := cl.addr()

	emitTileCoordsImplicit(cl)
	emitLinearLoad(j, src, srcOff, stride, format)
	emitEndOfLoads(cl)
	emitBranchToImplicitTileList(cl)
	emitLinearStore(j, dst, dstOff, stride, false, format)
	emitEndOfTileMarker(cl)
	emitReturnFromSubList(cl)

	pktStartAddrOfGenericList{Start: start, End: cl.addr()}.emit(&j.rcl)
}

// Fill fills a buffer range with a fixed 32-bit pattern. The fill
// renders the pattern as a frame clear color and stores it without
// loading anything.
func (cb *cmdBuffer) Fill(buf driver.Buffer, off int64, value uint32, size int64) {
	cb.transferCheck("Fill")
	b := buf.(*buffer)
	if size < 0 {
		// The offset may land anywhere; the remainder is
		// truncated to whole words.
		size = b.size - off
		size -= size % 4
	} else if size%4 != 0 {
		panic("cmd: Fill size not a multiple of 4")
	}
	if size == 0 {
		return
	}
	dst := b.addrAt(off)
	clear := attClear{color: [4]uint32{value}}

	numItems := uint32(size) / 4
	for numItems > 0 {
		w, h := framebufferForPixelCount(numItems)

		j := cb.startMetaJob(metaTiling(w, h, 1, rtBPP32))
		emitMetaProlog(j, rtType8UI, &clear, nil, driver.AColor, 0)
		emitFrameSetup(j, 0, true)
		emitFillBufferPerTile(j, dst.bo, dst.off, w*4)
		emitSupertileCoords(j, driver.Scissor{Width: int(w), Height: int(h)})
		emitEndOfRendering(&j.rcl)
		cb.finishJob()

		items := w * h
		numItems -= items
		dst.off += items * 4
	}
}

func emitFillBufferPerTile(j *job, b *bo, off, stride uint32) {
	cl := &j.indirect
	cl.ensureSpace(200, 1, j)
	start := cl.addr()

	emitTileCoordsImplicit(cl)
	emitEndOfLoads(cl)
	emitBranchToImplicitTileList(cl)
	emitLinearStore(j, b, off, stride, false, outFmtRGBA8UI)
	emitEndOfTileMarker(cl)
	emitReturnFromSubList(cl)

	pktStartAddrOfGenericList{Start: start, End: cl.addr()}.emit(&j.rcl)
}

// Update writes data into a buffer. The data lands in a scratch BO
// at recording time and a buffer copy moves it into place when the
// queue runs the jobs.
func (cb *cmdBuffer) Update(buf driver.Buffer, off int64, data []byte) {
	cb.transferCheck("Update")
	if off%4 != 0 || len(data)%4 != 0 || len(data) > 65536 {
		panic("cmd: Update range invalid")
	}
	if len(data) == 0 {
		return
	}
	b := buf.(*buffer)

	scratch, err := cb.d.newBO(int64(len(data)), "update scratch")
	if err != nil {
		boLog.Errorf("cannot allocate scratch for update: %v", err)
		return
	}
	if err := scratch.mmap(); err != nil {
		boLog.Errorf("cannot map scratch for update: %v", err)
		scratch.unref()
		return
	}
	copy(scratch.p, data)
	scratch.unmap()

	j := cb.copyBuffer(b.addrAt(off), addr{scratch, 0}, uint32(len(data)))
	j.addBO(scratch)
	scratch.unref()
}

// CopyImgToBuf copies image data to a buffer.
func (cb *cmdBuffer) CopyImgToBuf(param *driver.BufImgCopy) {
	cb.transferCheck("CopyImgToBuf")
	if param.ImgOff.X != 0 || param.ImgOff.Y != 0 {
		panic("cmd: CopyImgToBuf image offset not tile aligned")
	}
	img := param.Img.(*image)
	buf := param.Buf.(*buffer).addrAt(param.BufOff)

	base, layers := imgLayerRange(img, param)
	ityp, bpp := internalTypeBPPForAspects(img.pf, param.Aspect)

	j := cb.startMetaJob(metaTiling(uint32(param.Size.Width), uint32(param.Size.Height), layers, bpp))
	emitMetaProlog(j, ityp, nil, nil, param.Aspect, 0)
	for l := uint32(0); l < layers; l++ {
		emitFrameSetup(j, l, false)
		emitCopyImgToBufPerTile(j, buf, img, base, l, param)
		emitSupertileCoords(j, driver.Scissor{Width: param.Size.Width, Height: param.Size.Height})
	}
	emitEndOfRendering(&j.rcl)
	cb.finishJob()
}

func emitCopyImgToBufPerTile(j *job, buf addr, img *image, base, layer uint32, p *driver.BufImgCopy) {
	cl := &j.indirect
	cl.ensureSpace(200, 1, j)
	start := cl.addr()

	emitTileCoordsImplicit(cl)
	emitImageLoad(j, img, p.Aspect, base+layer, uint32(p.Level), true, false)
	emitEndOfLoads(cl)
	emitBranchToImplicitTileList(cl)

	stride, off := bufImgLayout(img, p, layer)
	format := tlbFormat(img, p.Aspect, true, true, false)
	emitLinearStore(j, buf.bo, buf.off+off, stride, img.samples > 1, format)

	emitEndOfTileMarker(cl)
	emitReturnFromSubList(cl)

	pktStartAddrOfGenericList{Start: start, End: cl.addr()}.emit(&j.rcl)
}

// CopyBufToImg copies buffer data into an image.
func (cb *cmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	cb.transferCheck("CopyBufToImg")
	if param.ImgOff.X != 0 || param.ImgOff.Y != 0 {
		panic("cmd: CopyBufToImg image offset not tile aligned")
	}
	img := param.Img.(*image)
	buf := param.Buf.(*buffer).addrAt(param.BufOff)

	base, layers := imgLayerRange(img, param)
	ityp, bpp := internalTypeBPPForAspects(img.pf, param.Aspect)

	j := cb.startMetaJob(metaTiling(uint32(param.Size.Width), uint32(param.Size.Height), layers, bpp))
	emitMetaProlog(j, ityp, nil, nil, param.Aspect, 0)
	for l := uint32(0); l < layers; l++ {
		emitFrameSetup(j, l, false)
		emitCopyBufToImgPerTile(j, buf, img, base, l, param)
		emitSupertileCoords(j, driver.Scissor{Width: param.Size.Width, Height: param.Size.Height})
	}
	emitEndOfRendering(&j.rcl)
	cb.finishJob()
}

// emitCopyBufToImgPerTile uploads one layer. Stores to a combined
// depth/stencil image write all four bytes of every pixel, which
// would clobber the aspect not being copied. A single-aspect upload
// first loads the other aspect into its own tile buffer and stores
// it back afterwards.
func emitCopyBufToImgPerTile(j *job, buf addr, img *image, base, layer uint32, p *driver.BufImgCopy) {
	cl := &j.indirect
	cl.ensureSpace(200, 1, j)
	start := cl.addr()

	emitTileCoordsImplicit(cl)

	stride, off := bufImgLayout(img, p, layer)
	format := tlbFormat(img, p.Aspect, false, false, true)
	emitLinearLoad(j, buf.bo, buf.off+off, stride, format)

	level := uint32(p.Level)
	if img.pf == driver.D24unS8ui {
		if p.Aspect&driver.ADepth != 0 {
			emitImageLoad(j, img, driver.AStencil, base+layer, level, false, false)
		} else {
			emitImageLoad(j, img, driver.ADepth, base+layer, level, false, false)
		}
	}

	emitEndOfLoads(cl)
	emitBranchToImplicitTileList(cl)

	emitImageStore(j, img, p.Aspect, base+layer, level, false, true)

	if img.pf == driver.D24unS8ui {
		if p.Aspect&driver.ADepth != 0 {
			emitImageStore(j, img, driver.AStencil, base+layer, level, false, false)
		} else {
			emitImageStore(j, img, driver.ADepth, base+layer, level, false, false)
		}
	}

	emitEndOfTileMarker(cl)
	emitReturnFromSubList(cl)

	pktStartAddrOfGenericList{Start: start, End: cl.addr()}.emit(&j.rcl)
}

// CopyImage copies data between images.
func (cb *cmdBuffer) CopyImage(param *driver.ImageCopy) {
	cb.transferCheck("CopyImage")
	if param.FromOff.X != 0 || param.FromOff.Y != 0 || param.ToOff.X != 0 || param.ToOff.Y != 0 {
		panic("cmd: CopyImage offsets not tile aligned")
	}
	cb.copyImage(param.To.(*image), param.From.(*image), param)
}

func (cb *cmdBuffer) copyImage(dst, src *image, p *driver.ImageCopy) {
	dstAspects := formatAspects(dst.pf)
	srcAspects := formatAspects(src.pf)

	dstBase, srcBase := uint32(p.ToLayer), uint32(p.FromLayer)
	layers := uint32(p.Layers)
	if dst.typ == img3D {
		dstBase = uint32(p.ToOff.Z)
	}
	if src.typ == img3D {
		srcBase = uint32(p.FromOff.Z)
	}
	if dst.typ == img3D || src.typ == img3D {
		layers = uint32(p.Size.Depth)
	}

	ityp, bpp := internalTypeBPPForAspects(dst.pf, dstAspects)

	j := cb.startMetaJob(metaTiling(uint32(p.Size.Width), uint32(p.Size.Height), layers, bpp))
	emitMetaProlog(j, ityp, nil, nil, dstAspects, 0)
	for l := uint32(0); l < layers; l++ {
		emitFrameSetup(j, l, false)
		emitCopyImagePerTile(j, dst, src, dstAspects, srcAspects,
			dstBase+l, srcBase+l, uint32(p.ToLevel), uint32(p.FromLevel))
		emitSupertileCoords(j, driver.Scissor{Width: p.Size.Width, Height: p.Size.Height})
	}
	emitEndOfRendering(&j.rcl)
	cb.finishJob()
}

func emitCopyImagePerTile(j *job, dst, src *image, dstAspects, srcAspects driver.Aspect, dstLayer, srcLayer, dstLevel, srcLevel uint32) {
	cl := &j.indirect
	cl.ensureSpace(200, 1, j)
	start := cl.addr()

	emitTileCoordsImplicit(cl)
	emitImageLoad(j, src, srcAspects, srcLayer, srcLevel, false, false)
	emitEndOfLoads(cl)
	emitBranchToImplicitTileList(cl)
	emitImageStore(j, dst, dstAspects, dstLayer, dstLevel, false, false)
	emitEndOfTileMarker(cl)
	emitReturnFromSubList(cl)

	pktStartAddrOfGenericList{Start: start, End: cl.addr()}.emit(&j.rcl)
}

// Blit copies between regions of two images, converting between
// their formats and scaling as needed. The fixed-function TFU
// handles the common mip generation shapes; an unscaled blit of
// matching formats degenerates into a plain copy. Anything else
// would need a render pipeline.
func (cb *cmdBuffer) Blit(param *driver.ImageBlit) {
	cb.transferCheck("Blit")
	src := param.From.(*image)
	dst := param.To.(*image)

	if cb.blitTFU(dst, src, param) {
		return
	}

	w := param.FromEnd.X - param.FromStart.X
	h := param.FromEnd.Y - param.FromStart.Y
	d := param.FromEnd.Z - param.FromStart.Z
	plain := src.pf == dst.pf && w > 0 && h > 0 && d >= 0 &&
		w == param.ToEnd.X-param.ToStart.X &&
		h == param.ToEnd.Y-param.ToStart.Y &&
		d == param.ToEnd.Z-param.ToStart.Z &&
		param.FromStart.X == 0 && param.FromStart.Y == 0 &&
		param.ToStart.X == 0 && param.ToStart.Y == 0
	if plain {
		cb.copyImage(dst, src, &driver.ImageCopy{
			From:      param.From,
			FromOff:   param.FromStart,
			FromLayer: param.FromLayer,
			FromLevel: param.FromLevel,
			To:        param.To,
			ToOff:     param.ToStart,
			ToLayer:   param.ToLayer,
			ToLevel:   param.ToLevel,
			Size:      driver.Dim3D{Width: w, Height: h, Depth: max(d, 1)},
			Layers:    param.Layers,
		})
		return
	}

	panic("cmd: Blit requires scaling or conversion")
}
