// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"tilerlabs/v3d/driver"
)

// The texture formatting unit converts between memory layouts a
// whole mip level at a time. It runs on its own hardware queue and
// needs no control lists, just one descriptor per conversion.

// TFU memory format codes. They follow the image tiling codes from
// linear-tile up, with raster valid on the input side only.
const (
	tfuInRaster     = 0
	tfuInLinearTile = 11

	tfuOutLinearTile = 3
)

// Descriptor field shifts.
const (
	tfuICfgTTypeShift  = 9
	tfuICfgFormatShift = 18
	tfuICfgOPadShift   = 22

	tfuIOAFormatShift = 3
)

// TFU texture data formats, one per pixel width.
const (
	texFmtR8      = 0
	texFmtR16     = 16
	texFmtRGBA16F = 18
	texFmtRGBA8   = 32
	texFmtRGBA32F = 34
)

// tfuTextureType returns the texture data format the TFU reads
// with. The unit moves bytes without interpreting them, so any
// format of the right width serves.
func tfuTextureType(cpp uint32) uint32 {
	switch cpp {
	case 16:
		return texFmtRGBA32F
	case 8:
		return texFmtRGBA16F
	case 4:
		return texFmtRGBA8
	case 2:
		return texFmtR16
	default:
		return texFmtR8
	}
}

// blitTFU performs a blit on the TFU when the parameters allow it:
// nearest filtering between identical color formats, no scaling, a
// source region at the origin and a destination region spanning its
// whole mip level. The TFU writes whole levels only and cannot
// write raster memory.
func (cb *cmdBuffer) blitTFU(dst, src *image, p *driver.ImageBlit) bool {
	if p.Filter != driver.FNearest || dst.pf != src.pf {
		return false
	}
	if formatAspects(dst.pf)&(driver.ADepth|driver.AStencil) != 0 {
		return false
	}
	if dst.typ == img3D || src.typ == img3D || dst.samples > 1 || src.samples > 1 {
		return false
	}
	dstLevel := uint32(p.ToLevel)
	if dst.slices[dstLevel].tiling == tilingRaster {
		return false
	}

	if p.FromStart.X != 0 || p.FromStart.Y != 0 || p.ToStart.X != 0 || p.ToStart.Y != 0 {
		return false
	}
	w := p.ToEnd.X
	h := p.ToEnd.Y
	if w != p.FromEnd.X || h != p.FromEnd.Y {
		return false
	}
	if uint32(w) != minify(dst.width, dstLevel) || uint32(h) != minify(dst.height, dstLevel) {
		return false
	}

	for l := 0; l < max(p.Layers, 1); l++ {
		cb.emitTFUJob(dst, src, uint32(p.ToLayer+l), uint32(p.FromLayer+l),
			dstLevel, uint32(p.FromLevel), uint32(w), uint32(h))
	}
	return true
}

// emitTFUJob records one TFU conversion as its own job.
func (cb *cmdBuffer) emitTFUJob(dst, src *image, dstLayer, srcLayer, dstLevel, srcLevel, width, height uint32) {
	srcSl := &src.slices[srcLevel]
	dstSl := &dst.slices[dstLevel]
	srcAddr := src.layerAddr(srcLevel, srcLayer)
	dstAddr := dst.layerAddr(dstLevel, dstLayer)

	tfu := sysSubmitTFU{
		iia: srcAddr.value(),
		ioa: dstAddr.value(),
		ios: height<<16 | width,
	}
	tfu.boHandles[0] = dstAddr.bo.handle
	if srcAddr.bo.handle != dstAddr.bo.handle {
		tfu.boHandles[1] = srcAddr.bo.handle
	}

	in := uint32(tfuInRaster)
	if srcSl.tiling != tilingRaster {
		in = tfuInLinearTile + uint32(srcSl.tiling-tilingLinearTile)
	}
	tfu.icfg = in << tfuICfgFormatShift
	tfu.icfg |= tfuTextureType(src.cpp) << tfuICfgTTypeShift

	tfu.ioa |= (tfuOutLinearTile + uint32(dstSl.tiling-tilingLinearTile)) << tfuIOAFormatShift

	switch srcSl.tiling {
	case tilingUIFNoXor, tilingUIFXor:
		tfu.iis = srcSl.paddedUB
	case tilingRaster:
		tfu.iis = srcSl.stride / src.cpp
	}

	// A UIF destination padded beyond what its height requires
	// must tell the TFU about the extra blocks.
	if dstSl.tiling == tilingUIFNoXor || dstSl.tiling == tilingUIFXor {
		ubh := 2 * utileHeight(dst.cpp)
		implicit := alignUp(height, ubh)
		tfu.icfg |= (dstSl.padded - implicit) / ubh << tfuICfgOPadShift
	}

	if debugOn(debugTFU) {
		tfuLog.Debugf("blit %dx%d cpp=%d 0x%08x -> 0x%08x", width, height, src.cpp, tfu.iia, tfu.ioa)
	}

	cb.finishJob()
	j := cb.startJob()
	j.tfu = &tfu
	j.addBO(srcAddr.bo)
	j.addBO(dstAddr.bo)
	cb.finishJob()
}
