// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"tilerlabs/v3d/driver"
)

// The tile buffer splits across at most four render targets.
const maxColorTargets = 4

// Tile dimensions by decreasing tile buffer demand. The index
// accounts for the number of color targets and their width.
var tileSizes = [...]uint32{
	64, 64,
	64, 32,
	32, 32,
	32, 16,
	16, 16,
}

// tileSizeIndex returns the first applicable entry of tileSizes.
func tileSizeIndex(colorCount int, bpp uint8) int {
	idx := 0
	if colorCount > 2 {
		idx += 2
	} else if colorCount > 1 {
		idx++
	}
	return idx + int(bpp)
}

func divUp(n, d uint32) uint32 { return (n + d - 1) / d }

// frameTiling is the tile and supertile decomposition of a frame.
// Jobs carry one; framebuffers precompute theirs at creation.
type frameTiling struct {
	width       uint32
	height      uint32
	layers      uint32
	colorCount  int
	internalBPP uint8
	msaa        bool
	tileW       uint32
	tileH       uint32
	drawTilesX  uint32
	drawTilesY  uint32
	supertileW  uint32 // in tiles
	supertileH  uint32
	wSupertiles uint32 // frame width in supertiles
	hSupertiles uint32
}

// computeFrameTiling derives the tile decomposition for a frame of
// the given dimensions, color target count and internal bpp.
func computeFrameTiling(width, height, layers uint32, colorCount int, bpp uint8, msaa bool) frameTiling {
	t := frameTiling{
		width:       width,
		height:      height,
		layers:      layers,
		colorCount:  colorCount,
		internalBPP: bpp,
		msaa:        msaa,
	}
	idx := tileSizeIndex(colorCount, bpp)
	t.tileW = tileSizes[idx*2]
	t.tileH = tileSizes[idx*2+1]
	t.drawTilesX = divUp(width, t.tileW)
	t.drawTilesY = divUp(height, t.tileH)

	// Size up the supertiles until the count fits the list limit,
	// growing the smaller dimension first.
	const maxSupertiles = 256
	t.supertileW, t.supertileH = 1, 1
	for {
		t.wSupertiles = divUp(t.drawTilesX, t.supertileW)
		t.hSupertiles = divUp(t.drawTilesY, t.supertileH)
		if t.wSupertiles*t.hSupertiles < maxSupertiles {
			break
		}
		if t.supertileW < t.supertileH {
			t.supertileW++
		} else {
			t.supertileH++
		}
	}
	return t
}

// passAttachment is an attachment description plus the range of
// subpasses that use it.
type passAttachment struct {
	desc  driver.Attachment
	first int
	last  int
}

// subpass mirrors driver.Subpass with the slices owned by the pass.
type subpass struct {
	color []int
	ds    int
	msr   []int
	wait  bool
}

// renderPass implements driver.RenderPass.
type renderPass struct {
	d   *Driver
	att []passAttachment
	sub []subpass
}

// NewRenderPass creates a new render pass.
func (d *Driver) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	if len(sub) == 0 {
		panic("cannot create render pass without subpasses")
	}
	for i := range att {
		if getFormat(att[i].Format) == nil {
			return nil, errNoFormat
		}
		if att[i].Samples != 1 && att[i].Samples != 4 {
			panic("attachment sample count must be 1 or 4")
		}
	}
	inRange := func(idx int) bool { return idx >= 0 && idx < len(att) }
	for i := range sub {
		s := &sub[i]
		if len(s.Color) > maxColorTargets {
			panic("subpass with too many color attachments")
		}
		for _, c := range s.Color {
			if !inRange(c) {
				panic("subpass color attachment out of range")
			}
		}
		if s.DS != -1 {
			if !inRange(s.DS) {
				panic("subpass depth/stencil attachment out of range")
			}
			if formatAspects(att[s.DS].Format)&(driver.ADepth|driver.AStencil) == 0 {
				panic("subpass depth/stencil attachment is a color format")
			}
		}
		if len(s.MSR) > 0 {
			if len(s.MSR) != len(s.Color) {
				panic("subpass resolve list does not match color list")
			}
			for j, r := range s.MSR {
				if r == -1 {
					continue
				}
				if !inRange(r) {
					panic("subpass resolve attachment out of range")
				}
				if att[s.Color[j]].Samples == 1 || att[r].Samples != 1 {
					panic("subpass resolve between mismatched sample counts")
				}
			}
		}
	}

	p := &renderPass{
		d:   d,
		att: make([]passAttachment, len(att)),
		sub: make([]subpass, len(sub)),
	}
	for i := range att {
		p.att[i] = passAttachment{desc: att[i], first: len(sub) - 1}
	}
	for i := range sub {
		p.sub[i] = subpass{
			color: append([]int(nil), sub[i].Color...),
			ds:    sub[i].DS,
			msr:   append([]int(nil), sub[i].MSR...),
			wait:  sub[i].Wait,
		}
	}
	p.findAttachmentRanges()
	return p, nil
}

// findAttachmentRanges records, for every attachment, the first and
// last subpass that uses it. Loads happen on first use and stores on
// last use.
func (p *renderPass) findAttachmentRanges() {
	use := func(att, sub int) {
		if att == -1 {
			return
		}
		if sub < p.att[att].first {
			p.att[att].first = sub
		}
		if sub > p.att[att].last {
			p.att[att].last = sub
		}
	}
	for i := range p.sub {
		for _, c := range p.sub[i].color {
			use(c, i)
		}
		use(p.sub[i].ds, i)
		for _, r := range p.sub[i].msr {
			use(r, i)
		}
	}
}

// Granularity returns the render area alignment of framebuffers
// created from the render pass.
// The tile size depends on the color attachment count and bpp of
// each subpass; only the count is known here, so the reported
// granularity may be slightly larger than the actual tile.
func (p *renderPass) Granularity() (width, height int) {
	maxColor := 0
	for i := range p.sub {
		maxColor = max(maxColor, len(p.sub[i].color))
	}
	idx := tileSizeIndex(maxColor, 0)
	return int(tileSizes[idx*2]), int(tileSizes[idx*2+1])
}

// Destroy destroys the render pass.
func (p *renderPass) Destroy() {
	if p == nil {
		return
	}
	*p = renderPass{}
}

// framebuf implements driver.Framebuf.
type framebuf struct {
	pass   *renderPass
	att    []*imageView
	tiling frameTiling
}

// NewFB creates a new framebuffer.
func (p *renderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	switch {
	case len(iv) != len(p.att):
		panic("framebuffer attachment count does not match the render pass")
	case width < 1 || height < 1 || layers < 1:
		panic("cannot create framebuffer with zeroed parameter")
	case width > p.d.lim.MaxFBSize[0] || height > p.d.lim.MaxFBSize[1]:
		panic("cannot create framebuffer this large")
	case layers > p.d.lim.MaxFBLayers:
		panic("cannot create framebuffer with this many layers")
	}
	f := &framebuf{
		pass: p,
		att:  make([]*imageView, len(iv)),
	}
	colorCount := 0
	bpp := uint8(rtBPP32)
	msaa := false
	for i, v := range iv {
		view, ok := v.(*imageView)
		if !ok {
			panic("image view from a different driver")
		}
		switch {
		case view.img.pf != p.att[i].desc.Format:
			panic("attachment format does not match the render pass")
		case int(view.img.samples) != p.att[i].desc.Samples:
			panic("attachment sample count does not match the render pass")
		case view.img.usg&driver.URenderTarget == 0:
			panic("attachment image lacks render target usage")
		case uint32(width) > view.width || uint32(height) > view.height:
			panic("framebuffer larger than its attachments")
		case uint32(layers) > view.layers:
			panic("framebuffer with more layers than its attachments")
		}
		if view.aspects&driver.AColor != 0 {
			colorCount++
			bpp = max(bpp, view.internalBPP)
		}
		if view.img.samples > 1 {
			msaa = true
		}
		f.att[i] = view
	}
	f.tiling = computeFrameTiling(uint32(width), uint32(height), uint32(layers), colorCount, bpp, msaa)
	return f, nil
}

// subpassTiling derives the tile decomposition in effect while the
// given subpass renders into the framebuffer. A subpass using fewer
// or narrower attachments than the framebuffer as a whole gets
// bigger tiles.
func (f *framebuf) subpassTiling(s *subpass) frameTiling {
	bpp := uint8(rtBPP32)
	msaa := false
	for _, ci := range s.color {
		v := f.att[ci]
		if v.aspects&driver.AColor != 0 {
			bpp = max(bpp, v.internalBPP)
		}
		if v.img.samples > 1 {
			msaa = true
		}
	}
	if s.ds != -1 && f.att[s.ds].img.samples > 1 {
		msaa = true
	}
	t := f.tiling
	return computeFrameTiling(t.width, t.height, t.layers, len(s.color), bpp, msaa)
}

// Destroy destroys the framebuffer.
func (f *framebuf) Destroy() {
	if f == nil {
		return
	}
	*f = framebuf{}
}
