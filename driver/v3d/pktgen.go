// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import "math"

// Control-list packet encoding for the 4.2 hardware.
//
// Every packet is one opcode byte followed by a little-endian,
// bit-packed payload. The field offsets in the emitters below are
// bit positions into the payload. Packets that the hardware encodes
// minus one (sizes, counts) take the natural value and the emitter
// applies the bias.

// Packet opcodes.
const (
	opFlush                    = 4
	opStartTileBinning         = 6
	opEndOfRendering           = 13
	opBranch                   = 16
	opReturnFromSubList        = 18
	opFlushVCDCache            = 19
	opStartAddrOfGenericList   = 20
	opBranchToImplicitTileList = 21
	opSupertileCoords          = 23
	opClearTileBuffers         = 25
	opEndOfLoads               = 26
	opEndOfTileMarker          = 27
	opStoreTileBufferGeneral   = 29
	opLoadTileBufferGeneral    = 30
	opPrimListFormat           = 56
	opOcclusionQueryCounter    = 92
	opClipWindow               = 107
	opNumberOfLayers           = 119
	opTileBinningModeCfg       = 120
	opTileRenderingModeCfg     = 121
	opMulticoreSupertileCfg    = 122
	opMulticoreTileListSetBase = 123
	opTileCoords               = 124
	opTileCoordsImplicit       = 125
	opTileListInitialBlockSize = 126
)

// Packet lengths in bytes, opcode included.
const (
	flushLen                    = 1
	startTileBinningLen         = 1
	endOfRenderingLen           = 1
	branchLen                   = 5
	returnFromSubListLen        = 1
	flushVCDCacheLen            = 1
	startAddrOfGenericListLen   = 9
	branchToImplicitTileListLen = 1
	supertileCoordsLen          = 3
	clearTileBuffersLen         = 2
	endOfLoadsLen               = 1
	endOfTileMarkerLen          = 1
	storeTileBufferLen          = 13
	loadTileBufferLen           = 13
	primListFormatLen           = 2
	occlusionQueryCounterLen    = 5
	clipWindowLen               = 9
	numberOfLayersLen           = 2
	tileBinningModeCfgLen       = 9
	tileRenderingModeCfgLen     = 9
	multicoreSupertileCfgLen    = 9
	multicoreTileListSetBaseLen = 5
	tileCoordsLen               = 4
	tileCoordsImplicitLen       = 1
	tileListInitialBlockSizeLen = 2
)

// Values for the buffer field of the TLB load/store packets.
const (
	tlbRT0 = iota
	tlbRT1
	tlbRT2
	tlbRT3
	tlbRT4
	tlbRT5
	tlbRT6
	tlbRT7
	tlbNone
	tlbZ
	tlbStencil
	tlbZStencil
)

// Values for the decimate mode field of the TLB load/store packets.
const (
	decimateSample0 = iota
	decimate4x
	decimate16x
	decimateAllSamples
)

// Values for the dither mode field of the TLB store packet.
const (
	ditherNone = iota
	ditherOrdered4x4
	ditherOrdered64x64
)

// Primitive types of PRIM_LIST_FORMAT.
const (
	primListPoints = iota
	primListLines
	primListTriangles
)

// Render target clamping modes of TILE_RENDERING_MODE_CFG_COLOR.
const (
	rtClampNone = iota
	rtClampNorm
	rtClampPos
	rtClampInt
)

// Values for tile allocation and tile list block sizes.
const (
	tileBlock64B = iota
	tileBlock128B
	tileBlock256B
)

// Sub-packet ids of TILE_RENDERING_MODE_CFG.
const (
	renderingCfgCommon = iota
	renderingCfgColor
	renderingCfgZSClear
	renderingCfgClearPart1
	renderingCfgClearPart2
	renderingCfgClearPart3
)

// putBits ORs v into bits lo through hi of p, inclusive, LSB first.
// Packet payloads come from cl.emit zeroed, so ORing set bits is
// all that packing needs.
func putBits(p []byte, lo, hi uint, v uint64) {
	for i := lo; i <= hi; i++ {
		if v&1 != 0 {
			p[i>>3] |= 1 << (i & 7)
		}
		v >>= 1
	}
}

func putBit(p []byte, i uint, v bool) {
	if v {
		p[i>>3] |= 1 << (i & 7)
	}
}

func emitOp(c *cl, op uint8) { c.emit(1)[0] = op }

// Opcode-only packets.
func emitFlush(c *cl)                    { emitOp(c, opFlush) }
func emitStartTileBinning(c *cl)         { emitOp(c, opStartTileBinning) }
func emitEndOfRendering(c *cl)           { emitOp(c, opEndOfRendering) }
func emitReturnFromSubList(c *cl)        { emitOp(c, opReturnFromSubList) }
func emitFlushVCDCache(c *cl)            { emitOp(c, opFlushVCDCache) }
func emitBranchToImplicitTileList(c *cl) { emitOp(c, opBranchToImplicitTileList) }
func emitEndOfLoads(c *cl)               { emitOp(c, opEndOfLoads) }
func emitEndOfTileMarker(c *cl)          { emitOp(c, opEndOfTileMarker) }
func emitTileCoordsImplicit(c *cl)       { emitOp(c, opTileCoordsImplicit) }

// pktBranch redirects list execution to Addr.
type pktBranch struct {
	Addr addr
}

func (k pktBranch) emit(c *cl) {
	p := c.emit(branchLen)
	p[0] = opBranch
	putBits(p[1:], 0, 31, uint64(k.Addr.value()))
}

// pktStartAddrOfGenericList points the render list at a tile list
// subroutine spanning [Start, End).
type pktStartAddrOfGenericList struct {
	Start, End addr
}

func (k pktStartAddrOfGenericList) emit(c *cl) {
	p := c.emit(startAddrOfGenericListLen)
	p[0] = opStartAddrOfGenericList
	putBits(p[1:], 0, 31, uint64(k.Start.value()))
	putBits(p[1:], 32, 63, uint64(k.End.value()))
}

// pktSupertileCoords schedules one supertile of the current layer.
type pktSupertileCoords struct {
	Col, Row uint32
}

func (k pktSupertileCoords) emit(c *cl) {
	p := c.emit(supertileCoordsLen)
	p[0] = opSupertileCoords
	putBits(p[1:], 0, 7, uint64(k.Col))
	putBits(p[1:], 8, 15, uint64(k.Row))
}

type pktClearTileBuffers struct {
	ClearZStencil bool
	ClearAllRTs   bool
}

func (k pktClearTileBuffers) emit(c *cl) {
	p := c.emit(clearTileBuffersLen)
	p[0] = opClearTileBuffers
	putBit(p[1:], 0, k.ClearAllRTs)
	putBit(p[1:], 1, k.ClearZStencil)
}

// pktStoreTileBufferGeneral writes one tile buffer out to memory.
// Height holds the padded height in UIF blocks for UIF memory
// formats and the stride in bytes for raster.
type pktStoreTileBufferGeneral struct {
	Buffer         uint8
	MemoryFormat   uint8
	FlipY          bool
	DitherMode     uint8
	DecimateMode   uint8
	Format         uint8
	RBSwap         bool
	ChannelReverse bool
	Clear          bool
	Height         uint32
	Addr           addr
}

func (k pktStoreTileBufferGeneral) emit(c *cl) {
	p := c.emit(storeTileBufferLen)
	p[0] = opStoreTileBufferGeneral
	putBits(p[1:], 0, 3, uint64(k.Buffer))
	putBits(p[1:], 4, 6, uint64(k.MemoryFormat))
	putBit(p[1:], 7, k.FlipY)
	putBits(p[1:], 8, 9, uint64(k.DitherMode))
	putBits(p[1:], 10, 11, uint64(k.DecimateMode))
	putBits(p[1:], 12, 17, uint64(k.Format))
	putBit(p[1:], 18, k.RBSwap)
	putBit(p[1:], 19, k.ChannelReverse)
	putBit(p[1:], 20, k.Clear)
	putBits(p[1:], 24, 43, uint64(k.Height))
	putBits(p[1:], 64, 95, uint64(k.Addr.value()))
}

// pktLoadTileBufferGeneral reads memory into one tile buffer. The
// payload mirrors the store packet, minus dithering and clearing.
type pktLoadTileBufferGeneral struct {
	Buffer         uint8
	MemoryFormat   uint8
	FlipY          bool
	DecimateMode   uint8
	Format         uint8
	RBSwap         bool
	ChannelReverse bool
	Height         uint32
	Addr           addr
}

func (k pktLoadTileBufferGeneral) emit(c *cl) {
	p := c.emit(loadTileBufferLen)
	p[0] = opLoadTileBufferGeneral
	putBits(p[1:], 0, 3, uint64(k.Buffer))
	putBits(p[1:], 4, 6, uint64(k.MemoryFormat))
	putBit(p[1:], 7, k.FlipY)
	putBits(p[1:], 10, 11, uint64(k.DecimateMode))
	putBits(p[1:], 12, 17, uint64(k.Format))
	putBit(p[1:], 18, k.RBSwap)
	putBit(p[1:], 19, k.ChannelReverse)
	putBits(p[1:], 24, 43, uint64(k.Height))
	putBits(p[1:], 64, 95, uint64(k.Addr.value()))
}

type pktPrimListFormat struct {
	TriStripOrFan bool
	Primitive     uint8
}

func (k pktPrimListFormat) emit(c *cl) {
	p := c.emit(primListFormatLen)
	p[0] = opPrimListFormat
	putBits(p[1:], 0, 5, uint64(k.Primitive))
	putBit(p[1:], 7, k.TriStripOrFan)
}

// pktOcclusionQueryCounter sets the address query results accumulate
// at. A zero address disables counting.
type pktOcclusionQueryCounter struct {
	Addr addr
}

func (k pktOcclusionQueryCounter) emit(c *cl) {
	p := c.emit(occlusionQueryCounterLen)
	p[0] = opOcclusionQueryCounter
	putBits(p[1:], 0, 31, uint64(k.Addr.value()))
}

type pktClipWindow struct {
	Left, Bottom  uint32
	Width, Height uint32
}

func (k pktClipWindow) emit(c *cl) {
	p := c.emit(clipWindowLen)
	p[0] = opClipWindow
	putBits(p[1:], 0, 15, uint64(k.Left))
	putBits(p[1:], 16, 31, uint64(k.Bottom))
	putBits(p[1:], 32, 47, uint64(k.Width))
	putBits(p[1:], 48, 63, uint64(k.Height))
}

type pktNumberOfLayers struct {
	Layers uint32
}

func (k pktNumberOfLayers) emit(c *cl) {
	p := c.emit(numberOfLayersLen)
	p[0] = opNumberOfLayers
	putBits(p[1:], 0, 7, uint64(k.Layers-1))
}

// pktTileBinningModeCfg configures the binner for a frame.
type pktTileBinningModeCfg struct {
	AutoInitTileState bool
	InitialBlockSize  uint8 // tileBlock*
	BlockSize         uint8 // tileBlock*
	RenderTargets     uint32
	MaxBPP            uint8 // rtBPP*
	MSAA4x            bool
	DoubleBuffer      bool
	Width, Height     uint32 // pixels
}

func (k pktTileBinningModeCfg) emit(c *cl) {
	p := c.emit(tileBinningModeCfgLen)
	p[0] = opTileBinningModeCfg
	putBit(p[1:], 1, k.AutoInitTileState)
	putBits(p[1:], 2, 3, uint64(k.InitialBlockSize))
	putBits(p[1:], 4, 5, uint64(k.BlockSize))
	putBits(p[1:], 8, 11, uint64(k.RenderTargets-1))
	putBits(p[1:], 12, 13, uint64(k.MaxBPP))
	putBit(p[1:], 14, k.MSAA4x)
	putBit(p[1:], 15, k.DoubleBuffer)
	putBits(p[1:], 32, 47, uint64(k.Width-1))
	putBits(p[1:], 48, 63, uint64(k.Height-1))
}

// pktRenderingCfgCommon is the common sub-packet of
// TILE_RENDERING_MODE_CFG and must come first in a frame.
type pktRenderingCfgCommon struct {
	RenderTargets uint32
	Width, Height uint32 // pixels
	MSAA4x        bool
	DoubleBuffer  bool
	MaxBPP        uint8 // rtBPP*
	DepthType     uint8 // depthType*
	EarlyZDisable bool
}

func (k pktRenderingCfgCommon) emit(c *cl) {
	p := c.emit(tileRenderingModeCfgLen)
	p[0] = opTileRenderingModeCfg
	putBits(p[1:], 0, 3, renderingCfgCommon)
	putBits(p[1:], 4, 7, uint64(k.RenderTargets-1))
	putBits(p[1:], 8, 23, uint64(k.Width))
	putBits(p[1:], 24, 39, uint64(k.Height))
	putBit(p[1:], 40, k.MSAA4x)
	putBit(p[1:], 41, k.DoubleBuffer)
	putBits(p[1:], 42, 43, uint64(k.MaxBPP))
	putBits(p[1:], 44, 47, uint64(k.DepthType))
	putBit(p[1:], 48, k.EarlyZDisable)
}

// pktRenderingCfgColor describes the internal format of each render
// target.
type pktRenderingCfgColor struct {
	BPP   [4]uint8 // rtBPP*
	Type  [4]uint8 // rtType*
	Clamp [4]uint8
}

func (k pktRenderingCfgColor) emit(c *cl) {
	p := c.emit(tileRenderingModeCfgLen)
	p[0] = opTileRenderingModeCfg
	putBits(p[1:], 0, 3, renderingCfgColor)
	for i := uint(0); i < 4; i++ {
		base := 4 + 8*i
		putBits(p[1:], base, base+1, uint64(k.BPP[i]))
		putBits(p[1:], base+2, base+5, uint64(k.Type[i]))
		putBits(p[1:], base+6, base+7, uint64(k.Clamp[i]))
	}
}

type pktRenderingCfgZSClear struct {
	Z float32
	S uint8
}

func (k pktRenderingCfgZSClear) emit(c *cl) {
	p := c.emit(tileRenderingModeCfgLen)
	p[0] = opTileRenderingModeCfg
	putBits(p[1:], 0, 3, renderingCfgZSClear)
	putBits(p[1:], 8, 39, uint64(math.Float32bits(k.Z)))
	putBits(p[1:], 40, 47, uint64(k.S))
}

// The clear color sub-packets spread a 128-bit clear value over up
// to three packets. Part 1 is always present; parts 2 and 3 only for
// wide internal formats or when UIF padding must be cleared too.
type pktRenderingCfgClearPart1 struct {
	RT     uint32
	Low32  uint32
	Next24 uint32
}

func (k pktRenderingCfgClearPart1) emit(c *cl) {
	p := c.emit(tileRenderingModeCfgLen)
	p[0] = opTileRenderingModeCfg
	putBits(p[1:], 0, 3, renderingCfgClearPart1)
	putBits(p[1:], 4, 7, uint64(k.RT))
	putBits(p[1:], 8, 39, uint64(k.Low32))
	putBits(p[1:], 40, 63, uint64(k.Next24))
}

type pktRenderingCfgClearPart2 struct {
	RT      uint32
	MidLow  uint32
	MidHigh uint32
}

func (k pktRenderingCfgClearPart2) emit(c *cl) {
	p := c.emit(tileRenderingModeCfgLen)
	p[0] = opTileRenderingModeCfg
	putBits(p[1:], 0, 3, renderingCfgClearPart2)
	putBits(p[1:], 4, 7, uint64(k.RT))
	putBits(p[1:], 8, 39, uint64(k.MidLow))
	putBits(p[1:], 40, 63, uint64(k.MidHigh))
}

type pktRenderingCfgClearPart3 struct {
	RT              uint32
	High16          uint32
	UIFPaddedHeight uint32 // in UIF blocks
}

func (k pktRenderingCfgClearPart3) emit(c *cl) {
	p := c.emit(tileRenderingModeCfgLen)
	p[0] = opTileRenderingModeCfg
	putBits(p[1:], 0, 3, renderingCfgClearPart3)
	putBits(p[1:], 4, 7, uint64(k.RT))
	putBits(p[1:], 8, 23, uint64(k.High16))
	putBits(p[1:], 24, 36, uint64(k.UIFPaddedHeight))
}

// pktMulticoreSupertileCfg sets the supertile grid the render list
// walks with SUPERTILE_COORDINATES packets.
type pktMulticoreSupertileCfg struct {
	SupertileW, SupertileH   uint32 // in tiles
	WSupertiles, HSupertiles uint32
	WTiles, HTiles           uint32
	RasterOrder              bool
	BinTileLists             uint32
}

func (k pktMulticoreSupertileCfg) emit(c *cl) {
	p := c.emit(multicoreSupertileCfgLen)
	p[0] = opMulticoreSupertileCfg
	putBits(p[1:], 0, 7, uint64(k.SupertileW-1))
	putBits(p[1:], 8, 15, uint64(k.SupertileH-1))
	putBits(p[1:], 16, 23, uint64(k.WSupertiles))
	putBits(p[1:], 24, 31, uint64(k.HSupertiles))
	putBits(p[1:], 32, 43, uint64(k.WTiles))
	putBits(p[1:], 44, 55, uint64(k.HTiles))
	putBit(p[1:], 60, k.RasterOrder)
	putBits(p[1:], 61, 63, uint64(k.BinTileLists-1))
}

// pktMulticoreTileListSetBase points the renderer at the tile
// allocation of one layer. The address must be 64-byte aligned.
type pktMulticoreTileListSetBase struct {
	Set  uint32
	Addr addr
}

func (k pktMulticoreTileListSetBase) emit(c *cl) {
	p := c.emit(multicoreTileListSetBaseLen)
	p[0] = opMulticoreTileListSetBase
	putBits(p[1:], 0, 3, uint64(k.Set))
	putBits(p[1:], 6, 31, uint64(k.Addr.value())>>6)
}

type pktTileCoords struct {
	Col, Row uint32
}

func (k pktTileCoords) emit(c *cl) {
	p := c.emit(tileCoordsLen)
	p[0] = opTileCoords
	putBits(p[1:], 0, 11, uint64(k.Col))
	putBits(p[1:], 12, 23, uint64(k.Row))
}

type pktTileListInitialBlockSize struct {
	Size        uint8 // tileBlock*
	AutoChained bool
}

func (k pktTileListInitialBlockSize) emit(c *cl) {
	p := c.emit(tileListInitialBlockSizeLen)
	p[0] = opTileListInitialBlockSize
	putBits(p[1:], 0, 1, uint64(k.Size))
	putBit(p[1:], 2, k.AutoChained)
}
