// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"bytes"
	"testing"

	"tilerlabs/v3d/driver"
)

func TestFramebufferForPixelCount(t *testing.T) {
	cases := []struct {
		n, w, h uint32
	}{
		{1, 1, 1},
		{2, 2, 1},
		{3, 3, 1},
		{4, 2, 2},
		{7, 7, 1},
		{12, 3, 4},
		{64, 8, 8},
		{256, 16, 16},
		{4096, 64, 64},
		{1 << 20, 1024, 1024},
		{1 << 24, 4096, 4096},
		{1<<24 + 1, 4096, 4096},
	}
	for _, c := range cases {
		w, h := framebufferForPixelCount(c.n)
		if w != c.w || h != c.h {
			t.Errorf("framebufferForPixelCount(%d)\nhave (%d,%d)\nwant (%d,%d)",
				c.n, w, h, c.w, c.h)
		}
	}
}

// boundBuffer creates a buffer backed by its own memory allocation.
func boundBuffer(t *testing.T, d *Driver, size int64, usg driver.Usage) *buffer {
	t.Helper()
	bi, err := d.NewBuffer(size, usg)
	if err != nil {
		t.Fatalf("d.NewBuffer(%d) failed: %v", size, err)
	}
	b := bi.(*buffer)
	mem, err := d.NewMemory(b.Cap())
	if err != nil {
		t.Fatalf("d.NewMemory failed: %v", err)
	}
	if err := b.Bind(mem, 0); err != nil {
		t.Fatalf("b.Bind failed: %v", err)
	}
	t.Cleanup(func() {
		b.Destroy()
		mem.Destroy()
	})
	return b
}

// boundImage creates an image backed by its own memory allocation.
func boundImage(t *testing.T, d *Driver, pf driver.PixelFmt, size driver.Dim3D, layers, levels int, usg driver.Usage) *image {
	t.Helper()
	ii, err := d.NewImage(pf, size, layers, levels, 1, false, usg)
	if err != nil {
		t.Fatalf("d.NewImage failed: %v", err)
	}
	img := ii.(*image)
	mem, err := d.NewMemory(img.Size())
	if err != nil {
		t.Fatalf("d.NewMemory failed: %v", err)
	}
	if err := img.Bind(mem, 0); err != nil {
		t.Fatalf("img.Bind failed: %v", err)
	}
	t.Cleanup(func() {
		img.Destroy()
		mem.Destroy()
	})
	return img
}

// recordingBuffer returns a command buffer ready for recording.
func recordingBuffer(t *testing.T, d *Driver) *cmdBuffer {
	t.Helper()
	pool, err := d.NewCmdPool()
	if err != nil {
		t.Fatalf("d.NewCmdPool failed: %v", err)
	}
	t.Cleanup(pool.Destroy)
	cbi, err := pool.NewCmdBuffer()
	if err != nil {
		t.Fatalf("pool.NewCmdBuffer failed: %v", err)
	}
	if err := cbi.Begin(driver.COneTime); err != nil {
		t.Fatalf("cb.Begin failed: %v", err)
	}
	return cbi.(*cmdBuffer)
}

// hasBO reports whether the job references the given BO.
func hasBO(j *job, b *bo) bool {
	_, ok := j.bos[b.handle]
	return ok
}

func TestCopyBuffer(t *testing.T) {
	d, _ := newTestDriver(t)
	src := boundBuffer(t, d, 512, driver.UCopySrc)
	dst := boundBuffer(t, d, 512, driver.UCopyDst)
	cb := recordingBuffer(t, d)

	// Size picks the widest item that divides it; the frame
	// covers exactly one item per pixel.
	cases := []struct {
		size int64
		w, h uint32
	}{
		{256, 8, 8}, // 64 items of 4 bytes
		{8, 2, 1},   // 2 items of 4 bytes
		{6, 3, 1},   // 3 items of 2 bytes
		{5, 5, 1},   // 5 items of 1 byte
	}
	for i, c := range cases {
		cb.CopyBuffer(&driver.BufferCopy{
			From: src, FromOff: 128,
			To: dst, ToOff: 0,
			Size: c.size,
		})
		if n := len(cb.jobs); n != i+1 {
			t.Fatalf("job count after copy of %d bytes\nhave %d\nwant %d", c.size, n, i+1)
		}
		j := cb.jobs[i]
		if j.tiling.width != c.w || j.tiling.height != c.h {
			t.Errorf("frame for copy of %d bytes\nhave (%d,%d)\nwant (%d,%d)",
				c.size, j.tiling.width, j.tiling.height, c.w, c.h)
		}
		if !hasBO(j, src.addrAt(0).bo) || !hasBO(j, dst.addrAt(0).bo) {
			t.Errorf("copy of %d bytes does not reference both buffers", c.size)
		}
		if j.tfu != nil {
			t.Errorf("copy of %d bytes produced a TFU job", c.size)
		}
		if len(j.rcl.bos) == 0 || j.rcl.offset() == 0 {
			t.Errorf("copy of %d bytes recorded no render list", c.size)
		}
	}
	if err := cb.End(); err != nil {
		t.Fatalf("cb.End failed: %v", err)
	}
}

func TestCopyBufferSplit(t *testing.T) {
	d, _ := newTestDriver(t)
	// 8194 bytes copy as 4097 two-byte items. One frame cannot
	// cover an odd count above 4096, so the copy splits.
	src := boundBuffer(t, d, 8194, driver.UCopySrc)
	dst := boundBuffer(t, d, 8194, driver.UCopyDst)
	cb := recordingBuffer(t, d)

	cb.CopyBuffer(&driver.BufferCopy{From: src, To: dst, Size: 8194})
	if n := len(cb.jobs); n != 2 {
		t.Fatalf("job count\nhave %d\nwant 2", n)
	}
	j0, j1 := cb.jobs[0], cb.jobs[1]
	if j0.tiling.width != 64 || j0.tiling.height != 64 {
		t.Errorf("first frame\nhave (%d,%d)\nwant (64,64)", j0.tiling.width, j0.tiling.height)
	}
	if j1.tiling.width != 1 || j1.tiling.height != 1 {
		t.Errorf("second frame\nhave (%d,%d)\nwant (1,1)", j1.tiling.width, j1.tiling.height)
	}
}

func TestCopyBufferPanics(t *testing.T) {
	d, _ := newTestDriver(t)
	src := boundBuffer(t, d, 256, driver.UCopySrc)
	dst := boundBuffer(t, d, 256, driver.UCopyDst)
	pool, err := d.NewCmdPool()
	if err != nil {
		t.Fatalf("d.NewCmdPool failed: %v", err)
	}
	t.Cleanup(pool.Destroy)
	cbi, err := pool.NewCmdBuffer()
	if err != nil {
		t.Fatalf("pool.NewCmdBuffer failed: %v", err)
	}
	cb := cbi.(*cmdBuffer)
	wantPanic(t, "copy outside recording", func() {
		cb.CopyBuffer(&driver.BufferCopy{From: src, To: dst, Size: 256})
	})
}

func TestFill(t *testing.T) {
	d, _ := newTestDriver(t)
	// An unsized fill runs to the end of the buffer, truncated
	// to whole words: 1029-4 bytes round down to 1024.
	b := boundBuffer(t, d, 1029, driver.UCopyDst)
	cb := recordingBuffer(t, d)

	cb.Fill(b, 4, 0xdeadbeef, -1)
	if n := len(cb.jobs); n != 1 {
		t.Fatalf("job count\nhave %d\nwant 1", n)
	}
	j := cb.jobs[0]
	if j.tiling.width != 16 || j.tiling.height != 16 {
		t.Errorf("frame\nhave (%d,%d)\nwant (16,16)", j.tiling.width, j.tiling.height)
	}
	if !hasBO(j, b.addrAt(0).bo) {
		t.Error("fill does not reference the buffer")
	}

	// Less than a word left to fill records nothing.
	cb.Fill(b, 1028, 0, -1)
	if n := len(cb.jobs); n != 1 {
		t.Errorf("job count after empty fill\nhave %d\nwant 1", n)
	}

	cb.Fill(b, 1024, 0, -1)
	if n := len(cb.jobs); n != 2 {
		t.Fatalf("job count after tail fill\nhave %d\nwant 2", n)
	}
	if w, h := cb.jobs[1].tiling.width, cb.jobs[1].tiling.height; w != 1 || h != 1 {
		t.Errorf("tail frame\nhave (%d,%d)\nwant (1,1)", w, h)
	}

	wantPanic(t, "misaligned size", func() { cb.Fill(b, 0, 0, 6) })
}

func TestFillOddOffset(t *testing.T) {
	d, _ := newTestDriver(t)
	// The fill offset is a plain byte offset; only the resolved
	// size keeps word granularity. 1024 bytes remain past offset
	// 1, already a multiple of 4.
	b := boundBuffer(t, d, 1025, driver.UCopyDst)
	cb := recordingBuffer(t, d)

	cb.Fill(b, 1, 0xa5a5a5a5, -1)
	if n := len(cb.jobs); n != 1 {
		t.Fatalf("job count\nhave %d\nwant 1", n)
	}
	j := cb.jobs[0]
	if j.tiling.width != 16 || j.tiling.height != 16 {
		t.Errorf("frame\nhave (%d,%d)\nwant (16,16)", j.tiling.width, j.tiling.height)
	}
}

func TestUpdate(t *testing.T) {
	d, k := newTestDriver(t)
	b := boundBuffer(t, d, 256, driver.UCopyDst)
	cb := recordingBuffer(t, d)
	base := k.boCount()

	cb.Update(b, 0, nil)
	if n := len(cb.jobs); n != 0 {
		t.Errorf("job count after empty update\nhave %d\nwant 0", n)
	}

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	cb.Update(b, 8, data)
	if n := len(cb.jobs); n != 1 {
		t.Fatalf("job count\nhave %d\nwant 1", n)
	}
	j := cb.jobs[0]
	if j.tiling.width != 2 || j.tiling.height != 2 {
		t.Errorf("frame\nhave (%d,%d)\nwant (2,2)", j.tiling.width, j.tiling.height)
	}

	// The data was captured in a scratch BO owned by the job.
	found := false
	for _, bo := range j.bos {
		mem := k.boMem(bo.offset)
		if len(mem) >= len(data) && bytes.Equal(mem[:len(data)], data) {
			found = true
			break
		}
	}
	if !found {
		t.Error("no BO of the job holds the update data")
	}

	// Resetting the recording releases the scratch along with the
	// job's other BOs.
	if err := cb.Reset(); err != nil {
		t.Fatalf("cb.Reset failed: %v", err)
	}
	if n := k.boCount(); n != base {
		t.Errorf("BO count after reset\nhave %d\nwant %d", n, base)
	}

	if err := cb.Begin(driver.COneTime); err != nil {
		t.Fatalf("cb.Begin failed: %v", err)
	}
	wantPanic(t, "misaligned offset", func() { cb.Update(b, 2, data) })
	wantPanic(t, "misaligned size", func() { cb.Update(b, 0, data[:3]) })
	wantPanic(t, "oversized update", func() { cb.Update(b, 0, make([]byte, 65540)) })
}

func TestCopyImgToBuf(t *testing.T) {
	d, _ := newTestDriver(t)
	img := boundImage(t, d, driver.RGBA8un, driver.Dim3D{Width: 64, Height: 64}, 2, 1, driver.UCopySrc)
	buf := boundBuffer(t, d, 64*64*4*2, driver.UCopyDst)
	cb := recordingBuffer(t, d)

	cb.CopyImgToBuf(&driver.BufImgCopy{
		Buf: buf, Img: img,
		Layer: 0, Layers: 2,
		Size:   driver.Dim3D{Width: 64, Height: 64, Depth: 1},
		Aspect: driver.AColor,
	})
	if n := len(cb.jobs); n != 1 {
		t.Fatalf("job count\nhave %d\nwant 1", n)
	}
	j := cb.jobs[0]
	if j.tiling.width != 64 || j.tiling.height != 64 || j.tiling.layers != 2 {
		t.Errorf("frame\nhave (%d,%d,%d)\nwant (64,64,2)",
			j.tiling.width, j.tiling.height, j.tiling.layers)
	}
	if !hasBO(j, img.layerAddr(0, 0).bo) || !hasBO(j, buf.addrAt(0).bo) {
		t.Error("copy does not reference image and buffer")
	}

	wantPanic(t, "unaligned image offset", func() {
		cb.CopyImgToBuf(&driver.BufImgCopy{
			Buf: buf, Img: img,
			ImgOff: driver.Off3D{X: 4},
			Layers: 1,
			Size:   driver.Dim3D{Width: 8, Height: 8, Depth: 1},
			Aspect: driver.AColor,
		})
	})
}

func TestCopyBufToImg(t *testing.T) {
	d, _ := newTestDriver(t)
	img := boundImage(t, d, driver.D24unS8ui, driver.Dim3D{Width: 32, Height: 32}, 1, 1, driver.UCopyDst)
	buf := boundBuffer(t, d, 32*32*4, driver.UCopySrc)
	cb := recordingBuffer(t, d)

	// A single-aspect upload into a combined depth/stencil image
	// preserves the other aspect, so the image is both read and
	// written.
	cb.CopyBufToImg(&driver.BufImgCopy{
		Buf: buf, Img: img,
		Layers: 1,
		Size:   driver.Dim3D{Width: 32, Height: 32, Depth: 1},
		Aspect: driver.AStencil,
	})
	if n := len(cb.jobs); n != 1 {
		t.Fatalf("job count\nhave %d\nwant 1", n)
	}
	j := cb.jobs[0]
	if j.tiling.width != 32 || j.tiling.height != 32 {
		t.Errorf("frame\nhave (%d,%d)\nwant (32,32)", j.tiling.width, j.tiling.height)
	}
	if !hasBO(j, img.layerAddr(0, 0).bo) || !hasBO(j, buf.addrAt(0).bo) {
		t.Error("upload does not reference image and buffer")
	}
}

func TestCopyImage(t *testing.T) {
	d, _ := newTestDriver(t)
	cb := recordingBuffer(t, d)

	src := boundImage(t, d, driver.RGBA8un, driver.Dim3D{Width: 64, Height: 64}, 1, 1, driver.UCopySrc)
	dst := boundImage(t, d, driver.BGRA8un, driver.Dim3D{Width: 64, Height: 64}, 1, 1, driver.UCopyDst)
	cb.CopyImage(&driver.ImageCopy{
		From: src, To: dst,
		Size:   driver.Dim3D{Width: 64, Height: 64, Depth: 1},
		Layers: 1,
	})
	if n := len(cb.jobs); n != 1 {
		t.Fatalf("job count\nhave %d\nwant 1", n)
	}
	if l := cb.jobs[0].tiling.layers; l != 1 {
		t.Errorf("2D copy layers\nhave %d\nwant 1", l)
	}

	// Copies involving a 3D image walk depth slices.
	src3 := boundImage(t, d, driver.RGBA8un, driver.Dim3D{Width: 32, Height: 32, Depth: 8}, 1, 1, driver.UCopySrc)
	dst3 := boundImage(t, d, driver.RGBA8un, driver.Dim3D{Width: 32, Height: 32, Depth: 8}, 1, 1, driver.UCopyDst)
	cb.CopyImage(&driver.ImageCopy{
		From: src3, FromOff: driver.Off3D{Z: 2},
		To: dst3, ToOff: driver.Off3D{Z: 4},
		Size:   driver.Dim3D{Width: 32, Height: 32, Depth: 4},
		Layers: 1,
	})
	if n := len(cb.jobs); n != 2 {
		t.Fatalf("job count after 3D copy\nhave %d\nwant 2", n)
	}
	if l := cb.jobs[1].tiling.layers; l != 4 {
		t.Errorf("3D copy layers\nhave %d\nwant 4", l)
	}

	wantPanic(t, "unaligned offset", func() {
		cb.CopyImage(&driver.ImageCopy{
			From: src, To: dst,
			ToOff:  driver.Off3D{Y: 8},
			Size:   driver.Dim3D{Width: 8, Height: 8, Depth: 1},
			Layers: 1,
		})
	})
}

func TestBlitPlainCopy(t *testing.T) {
	d, k := newTestDriver(t)
	src := boundImage(t, d, driver.RGBA8un, driver.Dim3D{Width: 64, Height: 64}, 1, 1, driver.UCopySrc)
	dst := boundImage(t, d, driver.RGBA8un, driver.Dim3D{Width: 64, Height: 64}, 1, 1, driver.UCopyDst)
	cb := recordingBuffer(t, d)

	// Linear filtering keeps the blit off the TFU; with no
	// scaling and matching formats it degenerates to a copy.
	cb.Blit(&driver.ImageBlit{
		From: src, FromEnd: driver.Off3D{X: 64, Y: 64, Z: 1},
		To: dst, ToEnd: driver.Off3D{X: 64, Y: 64, Z: 1},
		Layers: 1,
		Filter: driver.FLinear,
	})
	if n := len(cb.jobs); n != 1 {
		t.Fatalf("job count\nhave %d\nwant 1", n)
	}
	if j := cb.jobs[0]; j.tfu != nil {
		t.Error("plain blit produced a TFU job")
	}
	if n := len(k.tfus); n != 0 {
		t.Errorf("TFU submissions\nhave %d\nwant 0", n)
	}

	wantPanic(t, "scaling blit", func() {
		cb.Blit(&driver.ImageBlit{
			From: src, FromEnd: driver.Off3D{X: 64, Y: 64, Z: 1},
			To: dst, ToEnd: driver.Off3D{X: 32, Y: 32, Z: 1},
			Layers: 1,
			Filter: driver.FLinear,
		})
	})
}
