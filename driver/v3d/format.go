// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"math"

	"tilerlabs/v3d/driver"
)

// Output image format codes of the TLB load/store packets.
const (
	outFmtSRGB8Alpha8 = 0
	outFmtRGBA32F     = 9
	outFmtRG32F       = 10
	outFmtR32F        = 11
	outFmtRGBA32I     = 12
	outFmtRG32I       = 13
	outFmtR32I        = 14
	outFmtRGBA32UI    = 15
	outFmtRG32UI      = 16
	outFmtR32UI       = 17
	outFmtRGBA16F     = 18
	outFmtRG16F       = 19
	outFmtR16F        = 20
	outFmtRGBA16I     = 21
	outFmtRG16I       = 22
	outFmtR16I        = 23
	outFmtRGBA16UI    = 24
	outFmtRG16UI      = 25
	outFmtR16UI       = 26
	outFmtRGBA8       = 27
	outFmtRG8         = 29
	outFmtR8          = 30
	outFmtRGBA8I      = 31
	outFmtRG8I        = 32
	outFmtR8I         = 33
	outFmtRGBA8UI     = 34
	outFmtRG8UI       = 35
	outFmtR8UI        = 36
	outFmtD16         = 39
	outFmtD24S8       = 40
	outFmtD32F        = 41
)

// Internal (tile buffer) type codes.
const (
	rtType8I   = 0
	rtType8UI  = 1
	rtType8    = 2
	rtType16I  = 4
	rtType16UI = 5
	rtType16F  = 6
	rtType32I  = 8
	rtType32UI = 9
	rtType32F  = 10
)

// Internal depth type codes.
const (
	depthType32F = 0
	depthType24  = 1
	depthType16  = 2
)

// Internal bits-per-pixel codes. The per-pixel tile buffer size in
// bytes is 4 << code.
const (
	rtBPP32 = iota
	rtBPP64
	rtBPP128
)

func internalSize(bpp uint8) uint32 { return 4 << bpp }

// Channel swizzle codes.
const (
	swzX = iota
	swzY
	swzZ
	swzW
	swz0
	swz1
)

var (
	swizXYZW = [4]uint8{swzX, swzY, swzZ, swzW}
	swizZYXW = [4]uint8{swzZ, swzY, swzX, swzW}
	swizXY01 = [4]uint8{swzX, swzY, swz0, swz1}
	swizX001 = [4]uint8{swzX, swz0, swz0, swz1}
	swizXXXX = [4]uint8{swzX, swzX, swzX, swzX}
)

// fmtInfo describes the hardware mapping of a pixel format.
type fmtInfo struct {
	ok      bool
	rt      uint8 // outFmt*
	swz     [4]uint8
	retSize uint8 // TMU return size
	cpp     uint32
}

var formatTable = [...]fmtInfo{
	driver.RGBA8un:   {true, outFmtRGBA8, swizXYZW, 16, 4},
	driver.RGBA8sRGB: {true, outFmtSRGB8Alpha8, swizXYZW, 16, 4},
	driver.RGBA8ui:   {true, outFmtRGBA8UI, swizXYZW, 16, 4},
	driver.RGBA8i:    {true, outFmtRGBA8I, swizXYZW, 16, 4},
	driver.BGRA8un:   {true, outFmtRGBA8, swizZYXW, 16, 4},
	driver.BGRA8sRGB: {true, outFmtSRGB8Alpha8, swizZYXW, 16, 4},
	driver.RG8un:     {true, outFmtRG8, swizXY01, 16, 2},
	driver.RG8ui:     {true, outFmtRG8UI, swizXY01, 16, 2},
	driver.RG8i:      {true, outFmtRG8I, swizXY01, 16, 2},
	driver.R8un:      {true, outFmtR8, swizX001, 16, 1},
	driver.R8ui:      {true, outFmtR8UI, swizX001, 16, 1},
	driver.R8i:       {true, outFmtR8I, swizX001, 16, 1},
	driver.RGBA16f:   {true, outFmtRGBA16F, swizXYZW, 16, 8},
	driver.RGBA16ui:  {true, outFmtRGBA16UI, swizXYZW, 16, 8},
	driver.RGBA16i:   {true, outFmtRGBA16I, swizXYZW, 16, 8},
	driver.RG16f:     {true, outFmtRG16F, swizXY01, 16, 4},
	driver.RG16ui:    {true, outFmtRG16UI, swizXY01, 16, 4},
	driver.RG16i:     {true, outFmtRG16I, swizXY01, 16, 4},
	driver.R16f:      {true, outFmtR16F, swizX001, 16, 2},
	driver.R16ui:     {true, outFmtR16UI, swizX001, 16, 2},
	driver.R16i:      {true, outFmtR16I, swizX001, 16, 2},
	driver.RGBA32f:   {true, outFmtRGBA32F, swizXYZW, 32, 16},
	driver.RGBA32ui:  {true, outFmtRGBA32UI, swizXYZW, 32, 16},
	driver.RGBA32i:   {true, outFmtRGBA32I, swizXYZW, 32, 16},
	driver.RG32f:     {true, outFmtRG32F, swizXY01, 32, 8},
	driver.RG32ui:    {true, outFmtRG32UI, swizXY01, 32, 8},
	driver.RG32i:     {true, outFmtRG32I, swizXY01, 32, 8},
	driver.R32f:      {true, outFmtR32F, swizX001, 32, 4},
	driver.R32ui:     {true, outFmtR32UI, swizX001, 32, 4},
	driver.R32i:      {true, outFmtR32I, swizX001, 32, 4},
	driver.D16un:     {true, outFmtD16, swizXXXX, 32, 2},
	driver.D32f:      {true, outFmtD32F, swizXXXX, 32, 4},
	// Separate stencil is not supported.
	driver.S8ui:      {},
	driver.D24unS8ui: {true, outFmtD24S8, swizXXXX, 32, 4},
}

// getFormat returns the hardware mapping of pf, or nil if the format
// is not supported.
func getFormat(pf driver.PixelFmt) *fmtInfo {
	if pf < 0 || int(pf) >= len(formatTable) || !formatTable[pf].ok {
		return nil
	}
	return &formatTable[pf]
}

// formatAspects returns the data planes pf contains.
func formatAspects(pf driver.PixelFmt) driver.Aspect {
	switch pf {
	case driver.D16un, driver.D32f:
		return driver.ADepth
	case driver.S8ui:
		return driver.AStencil
	case driver.D24unS8ui:
		return driver.ADepth | driver.AStencil
	}
	return driver.AColor
}

// internalTypeBPP returns the tile buffer type and per-pixel size
// class used to render to the given output format.
func internalTypeBPP(rt uint8) (typ, bpp uint8) {
	switch rt {
	case outFmtRGBA8, outFmtRG8, outFmtR8:
		return rtType8, rtBPP32
	case outFmtRGBA8I, outFmtRG8I, outFmtR8I:
		return rtType8I, rtBPP32
	case outFmtRGBA8UI, outFmtRG8UI, outFmtR8UI:
		return rtType8UI, rtBPP32
	case outFmtSRGB8Alpha8, outFmtRGBA16F:
		// sRGB lives in the tile buffer at 16F; conversion
		// happens at load/store.
		return rtType16F, rtBPP64
	case outFmtRG16F, outFmtR16F:
		// 64 bpp so the TLB keeps alpha around for alpha test.
		return rtType16F, rtBPP64
	case outFmtRGBA16I:
		return rtType16I, rtBPP64
	case outFmtRG16I, outFmtR16I:
		return rtType16I, rtBPP32
	case outFmtRGBA16UI:
		return rtType16UI, rtBPP64
	case outFmtRG16UI, outFmtR16UI:
		return rtType16UI, rtBPP32
	case outFmtRGBA32I:
		return rtType32I, rtBPP128
	case outFmtRG32I:
		return rtType32I, rtBPP64
	case outFmtR32I:
		return rtType32I, rtBPP32
	case outFmtRGBA32UI:
		return rtType32UI, rtBPP128
	case outFmtRG32UI:
		return rtType32UI, rtBPP64
	case outFmtR32UI:
		return rtType32UI, rtBPP32
	case outFmtRGBA32F:
		return rtType32F, rtBPP128
	case outFmtRG32F:
		return rtType32F, rtBPP64
	case outFmtR32F:
		return rtType32F, rtBPP32
	case outFmtD16:
		return depthType16, rtBPP32
	case outFmtD24S8:
		return depthType24, rtBPP32
	case outFmtD32F:
		return depthType32F, rtBPP32
	}
	return rtType8, rtBPP32
}

// rtClamp returns the clamping mode of a render target with the
// given output format and internal type.
func rtClamp(rt, typ uint8) uint8 {
	switch typ {
	case rtType8I, rtType8UI, rtType16I, rtType16UI, rtType32I, rtType32UI:
		return rtClampInt
	}
	if rt == outFmtSRGB8Alpha8 {
		return rtClampNorm
	}
	return rtClampNone
}

// internalDepthType returns the depth tile buffer type for a
// depth/stencil pixel format.
func internalDepthType(pf driver.PixelFmt) uint8 {
	switch pf {
	case driver.D16un:
		return depthType16
	case driver.D32f:
		return depthType32F
	}
	return depthType24
}

// internalTypeBPPForAspects returns the tile buffer configuration for
// copies and clears of a subset of an image's aspects. Depth/stencil
// data cannot reach the TLB as such, so those aspects are aliased to
// a color format of the same width.
func internalTypeBPPForAspects(pf driver.PixelFmt, aspects driver.Aspect) (typ, bpp uint8) {
	if aspects&(driver.ADepth|driver.AStencil) != 0 {
		switch pf {
		case driver.D16un:
			return rtType16UI, rtBPP64
		case driver.D32f:
			return rtType32F, rtBPP128
		case driver.D24unS8ui:
			// RGBA8UI so the S/X bits can land where the
			// linear layout wants them.
			return rtType8UI, rtBPP32
		}
	}
	f := getFormat(pf)
	return internalTypeBPP(f.rt)
}

// packClearColor packs a clear value the way the tile buffer stores
// it for the given internal type.
func packClearColor(typ uint8, v driver.ClearColor) [4]uint32 {
	var ch [4]uint32
	switch typ {
	case rtType8:
		for i, f := range v.Float {
			ch[i] = unorm8(f)
		}
	case rtType8I:
		for i, n := range v.Int {
			ch[i] = uint32(n) & 0xff
		}
	case rtType8UI:
		for i, u := range v.Uint {
			ch[i] = u & 0xff
		}
	case rtType16F:
		for i, f := range v.Float {
			ch[i] = uint32(f16(f))
		}
	case rtType16I:
		for i, n := range v.Int {
			ch[i] = uint32(n) & 0xffff
		}
	case rtType16UI:
		for i, u := range v.Uint {
			ch[i] = u & 0xffff
		}
	case rtType32F:
		for i, f := range v.Float {
			ch[i] = math.Float32bits(f)
		}
	case rtType32I:
		for i, n := range v.Int {
			ch[i] = uint32(n)
		}
	default:
		ch = v.Uint
	}
	var c [4]uint32
	switch typ {
	case rtType8, rtType8I, rtType8UI:
		c[0] = ch[0] | ch[1]<<8 | ch[2]<<16 | ch[3]<<24
	case rtType16F, rtType16I, rtType16UI:
		c[0] = ch[0] | ch[1]<<16
		c[1] = ch[2] | ch[3]<<16
	default:
		c = ch
	}
	return c
}

func unorm8(f float32) uint32 {
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 255
	}
	return uint32(f*255 + 0.5)
}

// f16 converts a float32 to half precision bits, rounding to nearest
// even.
func f16(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b >> 16 & 0x8000)
	exp := int(b >> 23 & 0xff)
	man := b & 0x7fffff
	switch {
	case exp == 0xff:
		if man != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp > 142:
		return sign | 0x7c00
	case exp >= 113:
		h := sign | uint16(exp-112)<<10 | uint16(man>>13)
		if man&0x1fff > 0x1000 || man&0x3fff == 0x3000 {
			h++
		}
		return h
	case exp >= 102:
		man |= 0x800000
		s := uint(126 - exp)
		h := sign | uint16(man>>s)
		if man>>(s-1)&1 != 0 && (man&(1<<(s-1)-1) != 0 || h&1 != 0) {
			h++
		}
		return h
	}
	return sign
}
