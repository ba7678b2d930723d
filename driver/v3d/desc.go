// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"sort"

	"tilerlabs/v3d/driver"
	"tilerlabs/v3d/internal/bitvec"
)

// descriptor is one resolved resource slot of a descriptor set.
// Which fields are meaningful depends on typ.
type descriptor struct {
	typ  driver.DescType
	buf  *buffer
	off  int64
	size int64
	view *imageView
	splr *sampler
}

// descBinding is the precomputed layout of one binding.
type descBinding struct {
	typ driver.DescType
	nr  int
	len int

	// index locates the binding's first descriptor in a
	// set's descriptor table; dynIndex locates its first
	// dynamic offset in the offsets bound at draw time.
	index    int
	dynIndex int

	// Immutable samplers, when the binding has them.
	// Sampler writes to such a binding are ignored.
	splr []*sampler
}

func dynamicDescType(t driver.DescType) bool {
	return t == driver.DBufferDyn || t == driver.DConstantDyn
}

// descLayout implements driver.DescLayout.
type descLayout struct {
	d    *Driver
	bind []descBinding

	// Totals across bindings.
	count   int
	dynamic int
}

// NewDescLayout creates a new descriptor set layout.
// Bindings are kept sorted by binding number, with descriptor
// and dynamic-offset indices assigned in that order.
func (d *Driver) NewDescLayout(bind []driver.DescBinding) (driver.DescLayout, error) {
	lay := &descLayout{d: d, bind: make([]descBinding, len(bind))}
	for i := range bind {
		b := &lay.bind[i]
		b.typ = bind[i].Type
		b.nr = bind[i].Nr
		b.len = bind[i].Len
		if bind[i].Samplers == nil {
			continue
		}
		if bind[i].Type != driver.DSampler {
			panic("desc: immutable samplers on non-sampler binding")
		}
		if len(bind[i].Samplers) != bind[i].Len {
			panic("desc: immutable sampler count mismatch")
		}
		b.splr = make([]*sampler, len(bind[i].Samplers))
		for j, s := range bind[i].Samplers {
			b.splr[j] = s.(*sampler)
		}
	}
	sort.Slice(lay.bind, func(i, j int) bool {
		return lay.bind[i].nr < lay.bind[j].nr
	})
	for i := range lay.bind {
		b := &lay.bind[i]
		b.index = lay.count
		b.dynIndex = lay.dynamic
		lay.count += b.len
		if dynamicDescType(b.typ) {
			lay.dynamic += b.len
		}
	}
	return lay, nil
}

// binding looks up a binding by number.
func (l *descLayout) binding(nr int) *descBinding {
	for i := range l.bind {
		if l.bind[i].nr == nr {
			return &l.bind[i]
		}
	}
	panic("desc: no such binding")
}

// Destroy destroys the descriptor set layout.
func (l *descLayout) Destroy() {
	if l == nil {
		return
	}
	*l = descLayout{}
}

// descPool implements driver.DescPool.
//
// Pools that disallow individual frees carve their sets from
// arrays sized up front, so allocation never reaches the Go
// allocator. Pools that allow frees give each set a slot in a
// fixed table, with a bit vector tracking slot occupancy.
type descPool struct {
	d        *Driver
	maxSets  int
	freeable bool

	// Arena path.
	sets  []descSet
	arena []descriptor
	used  int
	pos   int

	// Freeable path.
	slots bitvec.V[uint32]
	table []*descSet
}

// NewDescPool creates a new descriptor pool.
// The pool can hold at most maxSets sets, drawing descriptors
// from the capacity given in size. Sampler descriptors take no
// storage of their own and do not count against pool capacity.
func (d *Driver) NewDescPool(maxSets int, size []driver.DescPoolSize, freeable bool) (driver.DescPool, error) {
	p := &descPool{d: d, maxSets: maxSets, freeable: freeable}
	if freeable {
		p.slots.Grow((maxSets + 31) / 32)
		p.table = make([]*descSet, maxSets)
		return p, nil
	}
	count := 0
	for i := range size {
		if size[i].Type != driver.DSampler {
			count += size[i].Count
		}
	}
	p.sets = make([]descSet, maxSets)
	p.arena = make([]descriptor, count)
	return p, nil
}

// Alloc allocates a descriptor set with the given layout.
func (p *descPool) Alloc(layout driver.DescLayout) (driver.DescSet, error) {
	lay := layout.(*descLayout)
	if p.freeable {
		i, ok := p.slots.Search()
		if !ok || i >= p.maxSets {
			return nil, errNoHostMemory
		}
		p.slots.Set(i)
		s := &descSet{pool: p, layout: lay, desc: make([]descriptor, lay.count)}
		p.table[i] = s
		return s, nil
	}
	if p.used >= p.maxSets || p.pos+lay.count > len(p.arena) {
		return nil, errNoHostMemory
	}
	s := &p.sets[p.used]
	p.used++
	desc := p.arena[p.pos : p.pos+lay.count]
	p.pos += lay.count
	clear(desc)
	*s = descSet{pool: p, layout: lay, desc: desc}
	return s, nil
}

// Free returns descriptor sets to the pool. The pool must have
// been created with individual frees enabled.
func (p *descPool) Free(ds ...driver.DescSet) error {
	if !p.freeable {
		panic("desc: Free on pool without individual frees")
	}
	for _, x := range ds {
		if x == nil {
			continue
		}
		s := x.(*descSet)
		for i, e := range p.table {
			if e == s {
				p.slots.Unset(i)
				p.table[i] = nil
				break
			}
		}
		*s = descSet{}
	}
	return nil
}

// Reset returns every set to the pool, restoring its full
// capacity. Previously allocated sets become invalid.
func (p *descPool) Reset() error {
	for i, s := range p.table {
		if s != nil {
			*s = descSet{}
			p.table[i] = nil
		}
	}
	p.slots.Clear()
	p.used = 0
	p.pos = 0
	return nil
}

// Destroy destroys the descriptor pool and every set
// allocated from it.
func (p *descPool) Destroy() {
	if p == nil {
		return
	}
	for _, s := range p.table {
		if s != nil {
			*s = descSet{}
		}
	}
	*p = descPool{}
}

// descSet implements driver.DescSet.
type descSet struct {
	pool   *descPool
	layout *descLayout
	desc   []descriptor
}

// slots returns the n descriptor slots of binding b starting
// at array element start.
func (s *descSet) slots(b *descBinding, start, n int) []descriptor {
	if start < 0 || start+n > b.len {
		panic("desc: binding array element out of range")
	}
	i := b.index + start
	return s.desc[i : i+n]
}

// SetBuffer updates the buffer ranges referred by a binding.
func (s *descSet) SetBuffer(nr, start int, buf []driver.Buffer, off, size []int64) {
	b := s.layout.binding(nr)
	switch b.typ {
	case driver.DBuffer, driver.DConstant, driver.DBufferDyn, driver.DConstantDyn:
	default:
		panic("desc: SetBuffer on non-buffer binding")
	}
	d := s.slots(b, start, len(buf))
	for i := range buf {
		if off[i]%bufferAlign != 0 {
			panic("desc: buffer range not aligned")
		}
		d[i] = descriptor{
			typ:  b.typ,
			buf:  buf[i].(*buffer),
			off:  off[i],
			size: size[i],
		}
	}
}

// SetImage updates the image views referred by a binding.
func (s *descSet) SetImage(nr, start int, iv []driver.ImageView) {
	b := s.layout.binding(nr)
	if b.typ != driver.DImage && b.typ != driver.DTexture {
		panic("desc: SetImage on non-image binding")
	}
	d := s.slots(b, start, len(iv))
	for i := range iv {
		d[i] = descriptor{typ: b.typ, view: iv[i].(*imageView)}
	}
}

// SetSampler updates the samplers referred by a binding.
func (s *descSet) SetSampler(nr, start int, splr []driver.Sampler) {
	b := s.layout.binding(nr)
	if b.typ != driver.DSampler {
		panic("desc: SetSampler on non-sampler binding")
	}
	if b.splr != nil {
		return
	}
	d := s.slots(b, start, len(splr))
	for i := range splr {
		d[i] = descriptor{typ: b.typ, splr: splr[i].(*sampler)}
	}
}
