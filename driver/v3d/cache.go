// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"tilerlabs/v3d/driver"
)

// Vendor ID reported in cache blobs (Broadcom).
const cacheVendorID = 0x14e4

// Cache blobs start with four little-endian words, followed by
// the device UUID. The size word measures the words alone.
const (
	cacheHeaderSize = 16
	cacheVersion    = 1
	cacheBlobSize   = cacheHeaderSize + 16
)

// coreVersion returns the hardware revision encoded in the core
// ident registers, e.g. 42 for a V3D 4.2.
func (d *Driver) coreVersion() uint32 {
	major := d.coreIdent[0] >> 24 & 0xff
	minor := d.coreIdent[1] & 0xf
	return major*10 + minor
}

// cacheUUID derives a stable identity for cache blobs from the
// ident registers, so that blobs persisted on one device are
// rejected on any other.
func (d *Driver) cacheUUID() uuid.UUID {
	b := make([]byte, 0, len(driverName)+6*4)
	b = append(b, driverName...)
	for _, w := range d.hubIdent {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	for _, w := range d.coreIdent {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, b)
}

// pipelineCache implements driver.PipelineCache.
// Pipeline state is compiled anew each run, so the cache holds
// no entries beyond the identifying header; its blob still
// round-trips so callers can persist it unconditionally.
type pipelineCache struct {
	d  *Driver
	mu sync.Mutex
}

// NewPipelineCache creates a new pipeline cache, optionally
// seeded from a previously serialized blob.
func (d *Driver) NewPipelineCache(data []byte) (driver.PipelineCache, error) {
	c := &pipelineCache{d: d}
	c.load(data)
	return c, nil
}

// load seeds the cache from a serialized blob. Truncated blobs
// and blobs written by a different device or driver build are
// silently ignored.
func (c *pipelineCache) load(data []byte) {
	if len(data) < cacheBlobSize {
		return
	}
	if !bytes.Equal(data[:cacheBlobSize], c.blob()) {
		return
	}
	// Entries would be decoded here; none are persisted.
}

// blob serializes the cache contents.
func (c *pipelineCache) blob() []byte {
	le := binary.LittleEndian
	b := make([]byte, 0, cacheBlobSize)
	b = le.AppendUint32(b, cacheHeaderSize)
	b = le.AppendUint32(b, cacheVersion)
	b = le.AppendUint32(b, cacheVendorID)
	b = le.AppendUint32(b, c.d.coreVersion())
	u := c.d.cacheUUID()
	return append(b, u[:]...)
}

// Data serializes the contents of the cache into p.
func (c *pipelineCache) Data(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == nil {
		return cacheBlobSize, nil
	}
	b := c.blob()
	n := copy(p, b)
	if n < len(b) {
		return n, errIncomplete
	}
	return n, nil
}

// Merge merges the contents of the given caches into this one.
// With no entries persisted there is nothing to move, but the
// operation still succeeds so callers need not special-case it.
func (c *pipelineCache) Merge(src ...driver.PipelineCache) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return nil
}

// Destroy destroys the pipeline cache.
func (c *pipelineCache) Destroy() {
	if c == nil {
		return
	}
	c.d = nil
}
