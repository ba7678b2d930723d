// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

// Control lists are the packet streams the GPU consumes.
// A list is backed by a chain of BOs: when the current BO
// cannot fit the next packet, a new one is allocated and,
// for the binning and render lists, a BRANCH packet
// redirects the GPU to it. Indirect lists are not chained;
// their segments are self-contained subroutines referenced
// by address.

// addr is a GPU address under construction: a BO plus a
// byte offset into it. Packers resolve it when writing.
type addr struct {
	bo  *bo
	off uint32
}

// value resolves the address in the GPU address space.
func (a addr) value() uint32 {
	if a.bo == nil {
		return a.off
	}
	return a.bo.offset + a.off
}

// cl is an append-only control list.
type cl struct {
	d    *Driver
	bo   *bo    // current backing BO, last of bos
	bos  []*bo  // every BO in the chain, in list order
	next uint32 // write cursor within bo
	size uint32 // capacity of the current BO
}

func (c *cl) init(d *Driver) { *c = cl{d: d} }

// offset returns the write position within the current BO.
func (c *cl) offset() uint32 { return c.next }

// addr returns the GPU address of the write position.
func (c *cl) addr() addr { return addr{c.bo, c.next} }

// startAddr returns the GPU address of the first byte of
// the list.
func (c *cl) startAddr() addr {
	if len(c.bos) == 0 {
		return addr{}
	}
	return addr{c.bos[0], 0}
}

// begin readies an empty list for recording.
func (c *cl) begin() {
	if c.bo != nil && c.next != 0 {
		panic("cl: begin on non-empty list")
	}
}

// reset releases the BO chain and returns the list to its
// initial state.
func (c *cl) reset() {
	for _, b := range c.bos {
		b.unref()
	}
	c.init(c.d)
}

// ensureSpace makes room for at least space bytes aligned
// to align, moving to a fresh BO when the current one
// cannot fit them, and returns the offset at which they
// will be written.
func (c *cl) ensureSpace(space, align uint32, j *job) uint32 {
	off := alignUp(c.next, align)
	if off+space <= c.size {
		c.next = off
		return off
	}
	c.allocBO(space, false, j)
	return c.next
}

// ensureSpaceWithBranch guarantees that space bytes plus a
// trailing BRANCH fit in the current BO, chaining a fresh
// BO behind a BRANCH packet when they do not.
func (c *cl) ensureSpaceWithBranch(space uint32, j *job) {
	if c.next+space+branchLen <= c.size {
		return
	}
	c.allocBO(space, true, j)
}

// allocBO grows the list. Running out of memory for list
// bytes mid-recording is unrecoverable.
func (c *cl) allocBO(space uint32, branch bool, j *job) {
	b, err := c.d.newBO(int64(space), "cl")
	if err != nil {
		clLog.Fatalf("cannot grow control list: %v", err)
	}
	if err := b.mmap(); err != nil {
		clLog.Fatalf("cannot map control list: %v", err)
	}
	if branch && c.bo != nil {
		pktBranch{Addr: addr{b, 0}}.emit(c)
	}
	j.addBO(b)
	c.bo = b
	c.bos = append(c.bos, b)
	c.next = 0
	c.size = b.size
	if debugOn(debugCL) {
		clLog.Debugf("grew list to BO %d (%d B, chained=%v)", b.handle, b.size, branch)
	}
}

// emit appends n zeroed bytes to the list and returns the
// slice to write them into. The caller must have ensured
// space beforehand.
func (c *cl) emit(n uint32) []byte {
	if c.bo == nil || c.next+n > c.size {
		panic("cl: emit without space")
	}
	p := c.bo.p[c.next : c.next+n : c.next+n]
	c.next += n
	return p
}
