// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"math/bits"

	"tilerlabs/v3d/driver"
)

// Tiling modes, from plain raster order to the UIF layouts.
// The values match the memory format field of the tile buffer
// load/store packets, so they can be programmed directly.
const (
	tilingRaster = iota
	tilingLinearTile
	tilingUBLinear1
	tilingUBLinear2
	tilingUIFNoXor
	tilingUIFXor
)

// Tiled layouts are built from u-tiles, the smallest tiling unit,
// whose pixel dimensions depend on the pixel size. A 2x2 arrangement
// of u-tiles forms a UIF block. UIF images lay blocks out in column
// pairs that alternate memory banks; padding between columns is
// measured in rows of UIF blocks, page geometry below likewise.
const (
	pageUBRows         = 8
	pageUBRows15       = pageUBRows * 3 / 2
	pageCacheUBRows    = 16
	pageCacheMinus15UB = pageCacheUBRows - pageUBRows15
)

// Enough for 4096x4096 down to 1x1.
const maxMipLevels = 13

// utileWidth returns the width of a u-tile in pixels.
func utileWidth(cpp uint32) uint32 { return 64 / cpp }

// utileHeight returns the height of a u-tile in pixels.
func utileHeight(cpp uint32) uint32 {
	switch cpp {
	case 1:
		return 8
	case 2, 4:
		return 4
	default:
		return 2
	}
}

// uifPad returns the padding, in rows of UIF blocks, that keeps the
// bottom of one block column and the top of the next from landing in
// the same lines of the page cache.
func uifPad(cpp, height uint32) uint32 {
	heightUB := height / (2 * utileHeight(cpp))
	off := heightUB % pageCacheUBRows
	switch {
	case off == 0:
		return 0
	case off < pageUBRows15:
		// Columns shorter than the page cache cannot alias.
		if heightUB < pageCacheUBRows {
			return 0
		}
		return pageUBRows15 - off
	case off > pageCacheMinus15UB:
		return pageCacheUBRows - off
	}
	return 0
}

func minify(n, level uint32) uint32 {
	if n >>= level; n > 0 {
		return n
	}
	return 1
}

func nextPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len32(n-1)
}

// slice describes the layout of a single mip level.
type slice struct {
	offset   uint32
	stride   uint32
	padded   uint32 // height in pixels after tiling pads
	size     uint32 // bytes in one layer or depth slice
	ubPad    uint32
	paddedUB uint32 // padded height in UIF blocks
	tiling   uint8
}

// Image dimensionality.
const (
	img1D = iota
	img2D
	img3D
)

// image implements driver.Image.
type image struct {
	d       *Driver
	typ     int
	pf      driver.PixelFmt
	fmt     *fmtInfo
	width   uint32
	height  uint32
	depth   uint32
	layers  uint32
	levels  uint32
	samples uint32
	tiled   bool
	usg     driver.Usage
	cpp     uint32
	slices  [maxMipLevels]slice
	size    int64
	// Distance from one mip tree to the next for arrays and
	// cubes. For 3D images, the level 0 depth slice pitch.
	layerStride uint32
	mem         *memory
	memOff      int64
}

// NewImage creates a new image.
func (d *Driver) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, linear bool, usg driver.Usage) (driver.Image, error) {
	f := getFormat(pf)
	if f == nil {
		return nil, errNoFormat
	}
	var typ int
	var w, h, dp uint32
	switch {
	case size.Depth >= 1:
		typ = img3D
		w, h, dp = uint32(size.Width), uint32(size.Height), uint32(size.Depth)
	case size.Height >= 1:
		typ = img2D
		w, h, dp = uint32(size.Width), uint32(size.Height), 1
	default:
		typ = img1D
		w, h, dp = uint32(size.Width), 1, 1
	}
	maxDim := d.lim.MaxImage2D
	switch typ {
	case img1D:
		maxDim = d.lim.MaxImage1D
	case img3D:
		maxDim = d.lim.MaxImage3D
	}
	switch {
	case size.Width < 1 || layers < 1 || levels < 1 || samples < 1:
		panic("cannot create image with zeroed parameter")
	case usg == 0:
		// Certainly a client error; such an image could
		// serve no purpose at all.
		panic("cannot create image without a valid usage")
	case int(w) > maxDim || int(h) > maxDim || int(dp) > maxDim:
		panic("cannot create image this large")
	case layers > d.lim.MaxLayers:
		panic("cannot create image with this many layers")
	case typ == img3D && layers != 1:
		panic("cannot create 3D image with multiple layers")
	case levels > bits.Len32(max(w, h, dp)):
		panic("cannot create image with this many levels")
	case samples != 1 && samples != 4:
		panic("image sample count must be 1 or 4")
	case samples != 1 && (typ != img2D || levels != 1):
		panic("cannot create multisample image of this type")
	case linear && (layers != 1 || levels != 1 || samples != 1):
		panic("cannot create linear image with multiple layers, levels or samples")
	}
	img := &image{
		d:       d,
		typ:     typ,
		pf:      pf,
		fmt:     f,
		width:   w,
		height:  h,
		depth:   dp,
		layers:  uint32(layers),
		levels:  uint32(levels),
		samples: uint32(samples),
		// 1D images are never tiled; the TFU cannot handle
		// them and they gain nothing from the layout.
		tiled: !linear && typ != img1D,
		usg:   usg,
		cpp:   f.cpp,
	}
	img.setupSlices()
	return img, nil
}

// setupSlices computes the layout of every mip level and the total
// backing size. Levels are laid out from the smallest up, each one
// padded to the granule of its tiling mode; levels 2+ use power of
// two dimensions so that they stay at offsets the hardware derives
// on its own.
func (img *image) setupSlices() {
	potW := 2 * nextPow2(minify(img.width, 1))
	potH := 2 * nextPow2(minify(img.height, 1))
	potD := 2 * nextPow2(minify(img.depth, 1))
	utw := utileWidth(img.cpp)
	uth := utileHeight(img.cpp)
	ubw := 2 * utw
	ubh := 2 * uth
	msaa := img.samples > 1
	// A multisampled base level is accessed through the TLB's
	// decimation path and must be UIF.
	uifTop := msaa

	var offset uint32
	for i := int(img.levels) - 1; i >= 0; i-- {
		sl := &img.slices[i]
		lv := uint32(i)
		var w, h, d uint32
		if i < 2 {
			w, h = minify(img.width, lv), minify(img.height, lv)
		} else {
			w, h = minify(potW, lv), minify(potH, lv)
		}
		if i < 1 {
			d = img.depth
		} else {
			d = minify(potD, lv)
		}
		if msaa {
			w *= 2
			h *= 2
		}
		switch {
		case !img.tiled:
			sl.tiling = tilingRaster
			if img.typ == img1D {
				w = alignUp(w, utw)
			}
		case (i != 0 || !uifTop) && (w <= utw || h <= uth):
			sl.tiling = tilingLinearTile
			w = alignUp(w, utw)
			h = alignUp(h, uth)
		case (i != 0 || !uifTop) && w <= ubw:
			sl.tiling = tilingUBLinear1
			w = alignUp(w, ubw)
			h = alignUp(h, ubh)
		case (i != 0 || !uifTop) && w <= 2*ubw:
			sl.tiling = tilingUBLinear2
			w = alignUp(w, 2*ubw)
			h = alignUp(h, ubh)
		default:
			w = alignUp(w, 4*ubw)
			h = alignUp(h, ubh)
			sl.ubPad = uifPad(img.cpp, h)
			h += sl.ubPad * ubh
			// When columns end up aligned to the page
			// cache, the XOR mode misaligns the banks
			// of odd columns instead.
			if h/ubh%pageCacheUBRows == 0 {
				sl.tiling = tilingUIFXor
			} else {
				sl.tiling = tilingUIFNoXor
			}
		}
		sl.offset = offset
		sl.stride = w * img.cpp
		sl.padded = h
		if sl.tiling == tilingUIFNoXor || sl.tiling == tilingUIFXor {
			sl.paddedUB = h / ubh
		}
		sl.size = h * sl.stride
		total := sl.size * d
		// Level 1 is padded to a page when level 0 is going
		// to be UIF, so that level 0 starts page aligned.
		if i == 1 && w > 4*ubw && h > pageCacheMinus15UB*ubh {
			total = alignUp(total, uint32(pageSize))
		}
		offset += total
	}
	size := offset

	// UIF and UBLINEAR levels must sit at UIF block boundaries,
	// but smaller LINEARTILE levels below them only guarantee
	// u-tile alignment. Page-align the base level and shift the
	// whole tree; 4K alignment also helps the XOR mode.
	pad := alignUp(img.slices[0].offset, uint32(pageSize)) - img.slices[0].offset
	if pad != 0 {
		size += pad
		for i := 0; i < int(img.levels); i++ {
			img.slices[i].offset += pad
		}
	}

	if img.typ != img3D {
		img.layerStride = alignUp(img.slices[0].offset+img.slices[0].size, 64)
		size += img.layerStride * (img.layers - 1)
	} else {
		img.layerStride = img.slices[0].size
	}
	img.size = int64(size)
}

// layerOffset returns the byte offset of a layer of a mip level
// within the image. For 3D images, layer selects a depth slice.
func (img *image) layerOffset(level, layer uint32) uint32 {
	sl := &img.slices[level]
	if img.typ == img3D {
		return sl.offset + layer*sl.size
	}
	return sl.offset + layer*img.layerStride
}

// layerAddr returns the GPU address of a layer of a mip level.
func (img *image) layerAddr(level, layer uint32) addr {
	if img.mem == nil {
		panic("image not bound")
	}
	return addr{img.mem.b, uint32(img.memOff) + img.layerOffset(level, layer)}
}

// Bind binds the image to a range of mem.
func (img *image) Bind(mem driver.Memory, off int64) error {
	m, ok := mem.(*memory)
	if !ok || m.d != img.d {
		panic("memory from a different driver")
	}
	switch {
	case img.mem != nil:
		panic("image bound more than once")
	case off%pageSize != 0:
		panic("misaligned image binding")
	case off < 0 || off+img.size > m.Size():
		panic("image binding out of bounds")
	}
	m.b.ref()
	img.mem = m
	img.memOff = off
	return nil
}

// Size returns the size in bytes required to back the image.
func (img *image) Size() int64 { return img.size }

// NewView creates a new image view.
func (img *image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	switch {
	case layer < 0 || layers < 1 || layer+layers > int(img.layers):
		panic("view layer range out of bounds")
	case level < 0 || levels < 1 || level+levels > int(img.levels):
		panic("view level range out of bounds")
	}
	ok := false
	switch typ {
	case driver.IView1D:
		ok = img.typ == img1D && layers == 1
	case driver.IView1DArray:
		ok = img.typ == img1D && layers > 1
	case driver.IView2D:
		ok = img.typ == img2D && img.samples == 1 && layers == 1
	case driver.IView2DArray:
		ok = img.typ == img2D && img.samples == 1 && layers > 1
	case driver.IView2DMS:
		ok = img.typ == img2D && img.samples > 1 && layers == 1
	case driver.IView2DMSArray:
		ok = img.typ == img2D && img.samples > 1 && layers > 1
	case driver.IViewCube:
		ok = img.typ == img2D && img.samples == 1 &&
			img.width == img.height && layers == 6
	case driver.IViewCubeArray:
		ok = img.typ == img2D && img.samples == 1 &&
			img.width == img.height && layers > 6 && layers%6 == 0
	case driver.IView3D:
		ok = img.typ == img3D
	}
	if !ok {
		panic("view type not valid for this image")
	}
	ityp, ibpp := internalTypeBPP(img.fmt.rt)
	return &imageView{
		img:          img,
		typ:          typ,
		aspects:      formatAspects(img.pf),
		width:        minify(img.width, uint32(level)),
		height:       minify(img.height, uint32(level)),
		firstLayer:   uint32(layer),
		layers:       uint32(layers),
		baseLevel:    uint32(level),
		levels:       uint32(levels),
		swapRB:       img.fmt.swz[0] == swzZ,
		internalType: ityp,
		internalBPP:  ibpp,
	}, nil
}

// Destroy destroys the image.
// The backing memory is not touched and can be rebound.
func (img *image) Destroy() {
	if img == nil {
		return
	}
	if img.mem != nil {
		img.mem.b.unref()
	}
	*img = image{}
}

// imageView implements driver.ImageView.
type imageView struct {
	img        *image
	typ        driver.ViewType
	aspects    driver.Aspect
	width      uint32 // of the base level
	height     uint32
	firstLayer uint32
	layers     uint32
	baseLevel  uint32
	levels     uint32
	// The TLB stores red and blue swapped for BGRA formats.
	swapRB       bool
	internalType uint8
	internalBPP  uint8
}

// Destroy destroys the image view.
func (v *imageView) Destroy() {
	if v == nil {
		return
	}
	*v = imageView{}
}

// sampler implements driver.Sampler.
type sampler struct {
	spln driver.Sampling
}

// NewSampler creates a new sampler.
// Sampler state is consumed when descriptor sets are written, so
// there is nothing to record besides the parameters themselves.
func (d *Driver) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	if spln == nil {
		panic("cannot create sampler from nil Sampling")
	}
	switch {
	case spln.MinLOD < 0 || spln.MaxLOD < spln.MinLOD:
		panic("cannot create sampler with invalid LOD range")
	case spln.MaxAniso < 0:
		panic("cannot create sampler with negative anisotropy")
	}
	return &sampler{spln: *spln}, nil
}

// Destroy destroys the sampler.
func (s *sampler) Destroy() {
	if s == nil {
		return
	}
	*s = sampler{}
}
