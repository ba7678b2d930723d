// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"testing"

	"tilerlabs/v3d/driver"
)

func TestUIFPad(t *testing.T) {
	cases := []struct {
		cpp    uint32
		height uint32
		want   uint32
	}{
		// cpp=4: u-tiles are 4 rows, UIF blocks 8.
		{4, 256, 0},
		{4, 224, 4},
		{4, 128, 0},
		{4, 64, 0},
		{4, 136, 11},
		{4, 120, 1},
		// cpp=1: UIF blocks are 16 rows.
		{1, 512, 0},
		{1, 448, 4},
		// cpp=16: UIF blocks are 4 rows.
		{16, 120, 2},
	}
	for _, c := range cases {
		if pad := uifPad(c.cpp, c.height); pad != c.want {
			t.Errorf("uifPad(%d, %d)\nhave %d\nwant %d", c.cpp, c.height, pad, c.want)
		}
	}
}

func TestImageSliceLayout(t *testing.T) {
	d, _ := newTestDriver(t)
	cases := []struct {
		name   string
		pf     driver.PixelFmt
		width  int
		height int
		want   slice
		size   int64
	}{
		{
			// w and h within one u-tile column.
			name: "lt", pf: driver.RGBA8un, width: 8, height: 8,
			want: slice{tiling: tilingLinearTile, stride: 64, padded: 8, size: 512},
			size: 512,
		},
		{
			// Short images tile linearly no matter the width.
			name: "lt wide", pf: driver.RGBA8un, width: 100, height: 4,
			want: slice{tiling: tilingLinearTile, stride: 448, padded: 4, size: 1792},
			size: 1792,
		},
		{
			name: "ublinear1", pf: driver.RGBA8un, width: 32, height: 32,
			want: slice{tiling: tilingUBLinear1, stride: 128, padded: 32, size: 4096},
			size: 4096,
		},
		{
			name: "ublinear2", pf: driver.RGBA8un, width: 64, height: 64,
			want: slice{tiling: tilingUBLinear2, stride: 256, padded: 64, size: 16384},
			size: 16384,
		},
		{
			name: "uif xor", pf: driver.RGBA8un, width: 128, height: 128,
			want: slice{tiling: tilingUIFXor, stride: 512, padded: 128, size: 65536, paddedUB: 16},
			size: 65536,
		},
		{
			// Padding rows land the height on the page cache.
			name: "uif padded", pf: driver.RGBA8un, width: 256, height: 224,
			want: slice{tiling: tilingUIFXor, stride: 1024, padded: 256, size: 262144, ubPad: 4, paddedUB: 32},
			size: 262144,
		},
		{
			name: "uif no xor", pf: driver.RGBA8un, width: 256, height: 64,
			want: slice{tiling: tilingUIFNoXor, stride: 1024, padded: 64, size: 65536, paddedUB: 8},
			size: 65536,
		},
		{
			// cpp=2 doubles the u-tile width.
			name: "ublinear1 16bpp", pf: driver.D16un, width: 64, height: 64,
			want: slice{tiling: tilingUBLinear1, stride: 128, padded: 64, size: 8192},
			size: 8192,
		},
		{
			name: "uif 64bpp", pf: driver.RGBA16f, width: 64, height: 64,
			want: slice{tiling: tilingUIFXor, stride: 512, padded: 64, size: 32768, paddedUB: 16},
			size: 32768,
		},
	}
	for _, c := range cases {
		i, err := d.NewImage(c.pf, driver.Dim3D{Width: c.width, Height: c.height}, 1, 1, 1, false, driver.UCopySrc)
		if err != nil {
			t.Fatalf("%s: d.NewImage failed: %v", c.name, err)
		}
		img := i.(*image)
		if img.slices[0] != c.want {
			t.Errorf("%s: slice 0\nhave %+v\nwant %+v", c.name, img.slices[0], c.want)
		}
		if img.size != c.size {
			t.Errorf("%s: image size\nhave %d\nwant %d", c.name, img.size, c.size)
		}
		img.Destroy()
	}
}

func TestImageMipOffsets(t *testing.T) {
	d, _ := newTestDriver(t)
	i, err := d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 64, Height: 64}, 1, 7, 1, false, driver.UCopySrc)
	if err != nil {
		t.Fatalf("d.NewImage failed: %v", err)
	}
	img := i.(*image)
	want := [7]slice{
		{offset: 8192, stride: 256, padded: 64, size: 16384, tiling: tilingUBLinear2},
		{offset: 4096, stride: 128, padded: 32, size: 4096, tiling: tilingUBLinear1},
		{offset: 3072, stride: 64, padded: 16, size: 1024, tiling: tilingLinearTile},
		{offset: 2560, stride: 64, padded: 8, size: 512, tiling: tilingLinearTile},
		{offset: 2304, stride: 64, padded: 4, size: 256, tiling: tilingLinearTile},
		{offset: 2048, stride: 64, padded: 4, size: 256, tiling: tilingLinearTile},
		{offset: 1792, stride: 64, padded: 4, size: 256, tiling: tilingLinearTile},
	}
	for l := range want {
		if img.slices[l] != want[l] {
			t.Errorf("level %d\nhave %+v\nwant %+v", l, img.slices[l], want[l])
		}
	}
	if img.size != 24576 {
		t.Errorf("image size\nhave %d\nwant 24576", img.size)
	}
	if img.layerStride != 24576 {
		t.Errorf("layer stride\nhave %d\nwant 24576", img.layerStride)
	}
	img.Destroy()
}

func TestImage3DLayout(t *testing.T) {
	d, _ := newTestDriver(t)
	i, err := d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 16, Height: 16, Depth: 8}, 1, 4, 1, false, driver.UCopySrc)
	if err != nil {
		t.Fatalf("d.NewImage failed: %v", err)
	}
	img := i.(*image)
	want := [4]slice{
		{offset: 4096, stride: 64, padded: 16, size: 1024, tiling: tilingLinearTile},
		{offset: 2048, stride: 64, padded: 8, size: 512, tiling: tilingLinearTile},
		{offset: 1536, stride: 64, padded: 4, size: 256, tiling: tilingLinearTile},
		{offset: 1280, stride: 64, padded: 4, size: 256, tiling: tilingLinearTile},
	}
	for l := range want {
		if img.slices[l] != want[l] {
			t.Errorf("level %d\nhave %+v\nwant %+v", l, img.slices[l], want[l])
		}
	}
	if img.size != 12288 {
		t.Errorf("image size\nhave %d\nwant 12288", img.size)
	}
	// 3D images use the level 0 slice size as the depth pitch.
	if img.layerStride != 1024 {
		t.Errorf("depth pitch\nhave %d\nwant 1024", img.layerStride)
	}
	cases := []struct {
		level, layer uint32
		want         uint32
	}{
		{0, 0, 4096},
		{0, 3, 7168},
		{1, 2, 3072},
		{3, 0, 1280},
	}
	for _, c := range cases {
		if off := img.layerOffset(c.level, c.layer); off != c.want {
			t.Errorf("layerOffset(%d, %d)\nhave %d\nwant %d", c.level, c.layer, off, c.want)
		}
	}
	img.Destroy()
}

func TestImageLayerStride(t *testing.T) {
	d, _ := newTestDriver(t)
	i, err := d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 32, Height: 32}, 5, 1, 1, false, driver.UCopySrc)
	if err != nil {
		t.Fatalf("d.NewImage failed: %v", err)
	}
	img := i.(*image)
	if img.layerStride != 4096 {
		t.Errorf("layer stride\nhave %d\nwant 4096", img.layerStride)
	}
	if img.size != 20480 {
		t.Errorf("image size\nhave %d\nwant 20480", img.size)
	}
	for l := uint32(0); l < 5; l++ {
		if off := img.layerOffset(0, l); off != l*4096 {
			t.Errorf("layerOffset(0, %d)\nhave %d\nwant %d", l, off, l*4096)
		}
	}
	img.Destroy()
}

func TestImageMultisample(t *testing.T) {
	d, _ := newTestDriver(t)
	i, err := d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 64, Height: 64}, 1, 1, 4, false, driver.URenderTarget)
	if err != nil {
		t.Fatalf("d.NewImage failed: %v", err)
	}
	img := i.(*image)
	// 4x images store a doubled extent and always tile as UIF.
	want := slice{tiling: tilingUIFXor, stride: 512, padded: 128, size: 65536, paddedUB: 16}
	if img.slices[0] != want {
		t.Errorf("slice 0\nhave %+v\nwant %+v", img.slices[0], want)
	}
	img.Destroy()
}

func TestImage1D(t *testing.T) {
	d, _ := newTestDriver(t)
	i, err := d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 100}, 1, 1, 1, false, driver.UCopySrc)
	if err != nil {
		t.Fatalf("d.NewImage failed: %v", err)
	}
	img := i.(*image)
	if img.typ != img1D || img.tiled {
		t.Errorf("1D image is not raster: typ %d, tiled %t", img.typ, img.tiled)
	}
	// Width rounds up to the u-tile width.
	want := slice{tiling: tilingRaster, stride: 448, padded: 1, size: 448}
	if img.slices[0] != want {
		t.Errorf("slice 0\nhave %+v\nwant %+v", img.slices[0], want)
	}
	img.Destroy()
}

func TestImageLinear(t *testing.T) {
	d, _ := newTestDriver(t)
	i, err := d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 100, Height: 50}, 1, 1, 1, true, driver.UCopySrc)
	if err != nil {
		t.Fatalf("d.NewImage failed: %v", err)
	}
	img := i.(*image)
	if img.tiled {
		t.Error("linear image marked tiled")
	}
	// Raster rows are packed tight.
	want := slice{tiling: tilingRaster, stride: 400, padded: 50, size: 20000}
	if img.slices[0] != want {
		t.Errorf("slice 0\nhave %+v\nwant %+v", img.slices[0], want)
	}
	if img.size != 20000 {
		t.Errorf("image size\nhave %d\nwant 20000", img.size)
	}
	img.Destroy()
}

// TestImageLayoutInvariants checks the layout rules that must hold
// for any shape: levels pack small to large, every slice fits the
// image, the base level starts page aligned, XOR tiling appears
// exactly when columns align to the page cache, and layers start at
// 64-byte boundaries.
func TestImageLayoutInvariants(t *testing.T) {
	d, _ := newTestDriver(t)
	formats := []driver.PixelFmt{
		driver.RGBA8un, driver.BGRA8un, driver.RG8ui, driver.R8un,
		driver.RGBA16f, driver.RG16f, driver.R16ui,
		driver.RGBA32f, driver.R32f,
		driver.D16un, driver.D32f, driver.D24unS8ui,
	}
	extents := []driver.Dim3D{
		{Width: 1, Height: 1},
		{Width: 3, Height: 1},
		{Width: 16, Height: 16},
		{Width: 64, Height: 64},
		{Width: 100, Height: 100},
		{Width: 256, Height: 224},
		{Width: 333, Height: 117},
		{Width: 4096, Height: 64},
	}
	for _, pf := range formats {
		for _, e := range extents {
			const layers = 3
			levels := 1
			for 1<<levels <= max(e.Width, e.Height) {
				levels++
			}
			i, err := d.NewImage(pf, e, layers, levels, 1, false, driver.UCopySrc)
			if err != nil {
				t.Fatalf("d.NewImage(%v, %dx%d) failed: %v", pf, e.Width, e.Height, err)
			}
			img := i.(*image)
			ubh := 2 * utileHeight(img.cpp)
			if img.slices[0].offset%pageSize != 0 {
				t.Errorf("%v %dx%d: base level offset %d not page aligned",
					pf, e.Width, e.Height, img.slices[0].offset)
			}
			for l := 0; l < levels; l++ {
				sl := &img.slices[l]
				// Smaller levels pack below larger ones.
				if l > 0 && sl.offset >= img.slices[l-1].offset {
					t.Errorf("%v %dx%d: level %d at %d not below level %d at %d",
						pf, e.Width, e.Height, l, sl.offset, l-1, img.slices[l-1].offset)
				}
				if int64(sl.offset)+int64(sl.size) > img.size {
					t.Errorf("%v %dx%d: level %d ends past the image (%d+%d > %d)",
						pf, e.Width, e.Height, l, sl.offset, sl.size, img.size)
				}
				switch sl.tiling {
				case tilingUIFXor:
					if sl.padded/ubh%pageCacheUBRows != 0 {
						t.Errorf("%v %dx%d: level %d XOR with %d block rows",
							pf, e.Width, e.Height, l, sl.padded/ubh)
					}
				case tilingUIFNoXor:
					if sl.padded/ubh%pageCacheUBRows == 0 {
						t.Errorf("%v %dx%d: level %d not XOR with %d block rows",
							pf, e.Width, e.Height, l, sl.padded/ubh)
					}
				}
				for la := uint32(0); la < layers; la++ {
					if off := img.layerOffset(uint32(l), la); off%64 != 0 {
						t.Errorf("%v %dx%d: layerOffset(%d, %d) = %d not 64-byte aligned",
							pf, e.Width, e.Height, l, la, off)
					}
				}
			}
			if top := img.layerOffset(0, layers-1); int64(top)+int64(img.slices[0].size) > img.size {
				t.Errorf("%v %dx%d: last layer ends past the image", pf, e.Width, e.Height)
			}
			img.Destroy()
		}
	}
}

func TestImageBind(t *testing.T) {
	d, k := newTestDriver(t)
	base := k.boCount()
	i, err := d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 64, Height: 64}, 1, 1, 1, false, driver.UCopySrc)
	if err != nil {
		t.Fatalf("d.NewImage failed: %v", err)
	}
	img := i.(*image)
	mem, err := d.NewMemory(32768)
	if err != nil {
		t.Fatalf("d.NewMemory failed: %v", err)
	}
	m := mem.(*memory)
	wantPanic(t, "misaligned bind", func() { img.Bind(mem, 100) })
	if err := img.Bind(mem, 4096); err != nil {
		t.Fatalf("img.Bind failed: %v", err)
	}
	wantPanic(t, "double bind", func() { img.Bind(mem, 0) })
	if a := img.layerAddr(0, 0); a.bo != m.b || a.off != 4096 {
		t.Errorf("layerAddr(0, 0)\nhave {%v %d}\nwant {%v 4096}", a.bo, a.off, m.b)
	}
	if v := img.layerAddr(0, 0).value(); v != m.b.offset+4096 {
		t.Errorf("layerAddr(0, 0).value()\nhave %#x\nwant %#x", v, m.b.offset+4096)
	}
	// The image keeps the BO alive after the memory is destroyed.
	mem.Destroy()
	if n := k.boCount(); n != base+1 {
		t.Errorf("BO count after mem.Destroy\nhave %d\nwant %d", n, base+1)
	}
	img.Destroy()
	if n := k.boCount(); n != base {
		t.Errorf("BO count after img.Destroy\nhave %d\nwant %d", n, base)
	}

	i, err = d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 64, Height: 64}, 1, 1, 1, false, driver.UCopySrc)
	if err != nil {
		t.Fatalf("d.NewImage failed: %v", err)
	}
	img = i.(*image)
	mem, err = d.NewMemory(16384)
	if err != nil {
		t.Fatalf("d.NewMemory failed: %v", err)
	}
	wantPanic(t, "bind out of bounds", func() { img.Bind(mem, 4096) })
	wantPanic(t, "unbound address", func() { img.layerAddr(0, 0) })
	mem.Destroy()
	img.Destroy()
}

func TestNewImagePanics(t *testing.T) {
	d, _ := newTestDriver(t)
	sz := driver.Dim3D{Width: 64, Height: 64}
	if _, err := d.NewImage(driver.S8ui, sz, 1, 1, 1, false, driver.UCopySrc); err != driver.ErrNoFormat {
		t.Errorf("separate stencil\nhave %v\nwant %v", err, driver.ErrNoFormat)
	}
	if _, err := d.NewImage(driver.PixelFmt(-1), sz, 1, 1, 1, false, driver.UCopySrc); err != driver.ErrNoFormat {
		t.Errorf("invalid format\nhave %v\nwant %v", err, driver.ErrNoFormat)
	}
	cases := []struct {
		name string
		fn   func()
	}{
		{"no usage", func() { d.NewImage(driver.RGBA8un, sz, 1, 1, 1, false, 0) }},
		{"zero width", func() { d.NewImage(driver.RGBA8un, driver.Dim3D{}, 1, 1, 1, false, driver.UCopySrc) }},
		{"zero layers", func() { d.NewImage(driver.RGBA8un, sz, 0, 1, 1, false, driver.UCopySrc) }},
		{"too large", func() {
			d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 5000, Height: 1}, 1, 1, 1, false, driver.UCopySrc)
		}},
		{"too many levels", func() { d.NewImage(driver.RGBA8un, sz, 1, 8, 1, false, driver.UCopySrc) }},
		{"3D layers", func() {
			d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 16, Height: 16, Depth: 4}, 2, 1, 1, false, driver.UCopySrc)
		}},
		{"bad sample count", func() { d.NewImage(driver.RGBA8un, sz, 1, 1, 2, false, driver.UCopySrc) }},
		{"multisample mips", func() { d.NewImage(driver.RGBA8un, sz, 1, 2, 4, false, driver.UCopySrc) }},
		{"linear layers", func() { d.NewImage(driver.RGBA8un, sz, 2, 1, 1, true, driver.UCopySrc) }},
	}
	for _, c := range cases {
		wantPanic(t, c.name, c.fn)
	}
}

func TestImageView(t *testing.T) {
	d, _ := newTestDriver(t)
	cases := []struct {
		name    string
		pf      driver.PixelFmt
		swapRB  bool
		ityp    uint8
		ibpp    uint8
		aspects driver.Aspect
	}{
		{"rgba8", driver.RGBA8un, false, rtType8, rtBPP32, driver.AColor},
		{"bgra8", driver.BGRA8un, true, rtType8, rtBPP32, driver.AColor},
		{"rgba16f", driver.RGBA16f, false, rtType16F, rtBPP64, driver.AColor},
		{"r32ui", driver.R32ui, false, rtType32UI, rtBPP32, driver.AColor},
		{"d24s8", driver.D24unS8ui, false, rtType8, rtBPP32, driver.ADepth | driver.AStencil},
	}
	for _, c := range cases {
		i, err := d.NewImage(c.pf, driver.Dim3D{Width: 64, Height: 64}, 1, 3, 1, false, driver.URenderTarget|driver.UCopySrc)
		if err != nil {
			t.Fatalf("%s: d.NewImage failed: %v", c.name, err)
		}
		iv, err := i.NewView(driver.IView2D, 0, 1, 2, 1)
		if err != nil {
			t.Fatalf("%s: i.NewView failed: %v", c.name, err)
		}
		v := iv.(*imageView)
		if v.swapRB != c.swapRB {
			t.Errorf("%s: swapRB\nhave %t\nwant %t", c.name, v.swapRB, c.swapRB)
		}
		if v.internalType != c.ityp || v.internalBPP != c.ibpp {
			t.Errorf("%s: internal type/bpp\nhave %d/%d\nwant %d/%d",
				c.name, v.internalType, v.internalBPP, c.ityp, c.ibpp)
		}
		if v.aspects != c.aspects {
			t.Errorf("%s: aspects\nhave %v\nwant %v", c.name, v.aspects, c.aspects)
		}
		if v.width != 16 || v.height != 16 {
			t.Errorf("%s: view extent\nhave %dx%d\nwant 16x16", c.name, v.width, v.height)
		}
		if v.baseLevel != 2 || v.levels != 1 || v.firstLayer != 0 || v.layers != 1 {
			t.Errorf("%s: view range\nhave %+v", c.name, v)
		}
		v.Destroy()
		i.Destroy()
	}
}

func TestImageViewPanics(t *testing.T) {
	d, _ := newTestDriver(t)
	i, err := d.NewImage(driver.RGBA8un, driver.Dim3D{Width: 64, Height: 64}, 6, 2, 1, false, driver.URenderTarget)
	if err != nil {
		t.Fatalf("d.NewImage failed: %v", err)
	}
	if _, err := i.NewView(driver.IViewCube, 0, 6, 0, 1); err != nil {
		t.Errorf("cube view failed: %v", err)
	}
	if _, err := i.NewView(driver.IView2DArray, 2, 4, 0, 2); err != nil {
		t.Errorf("array view failed: %v", err)
	}
	cases := []struct {
		name string
		fn   func()
	}{
		{"level out of bounds", func() { i.NewView(driver.IView2D, 0, 1, 2, 1) }},
		{"layer out of bounds", func() { i.NewView(driver.IView2DArray, 4, 3, 0, 1) }},
		{"3D view of 2D image", func() { i.NewView(driver.IView3D, 0, 1, 0, 1) }},
		{"2D view of many layers", func() { i.NewView(driver.IView2D, 0, 2, 0, 1) }},
		{"short cube", func() { i.NewView(driver.IViewCube, 0, 5, 0, 1) }},
		{"multisample view", func() { i.NewView(driver.IView2DMS, 0, 1, 0, 1) }},
	}
	for _, c := range cases {
		wantPanic(t, c.name, c.fn)
	}
	i.Destroy()
}
