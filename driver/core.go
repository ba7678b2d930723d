// Copyright 2026 Tiler Labs. All rights reserved.

package driver

import "time"

// GPU is the main interface to an underlying driver
// implementation.
// It is used to create other types and to execute commands.
// A GPU is obtained from a call to Driver.Open.
type GPU interface {
	// Driver returns the Driver that owns the GPU.
	Driver() Driver

	// Queue returns the GPU's command queue.
	// The queue is immutable for the lifetime of the GPU.
	Queue() Queue

	// Commit commits a batch of command buffers to the GPU
	// for execution.
	// It is a convenience wrapping Queue.Submit with an
	// internal fence. This method sends the result to ch
	// when all commands complete execution. Command buffers
	// in cb cannot be used for recording until then.
	Commit(cb []CmdBuffer, ch chan<- error)

	// NewCmdPool creates a new command pool.
	NewCmdPool() (CmdPool, error)

	// NewRenderPass creates a new render pass.
	NewRenderPass(att []Attachment, sub []Subpass) (RenderPass, error)

	// NewMemory allocates device memory.
	// Memory is unified, so every allocation can be mapped
	// for host access.
	NewMemory(size int64) (Memory, error)

	// ImportMemory creates a memory allocation referring to
	// the device memory identified by a dma-buf file
	// descriptor, usually one obtained from a call to
	// Memory.Export in another process.
	// The driver takes ownership of fd on success.
	ImportMemory(fd int, size int64) (Memory, error)

	// NewBuffer creates a new buffer.
	NewBuffer(size int64, usg Usage) (Buffer, error)

	// NewImage creates a new image.
	// If linear is set, image data is stored in raster
	// order and can be addressed directly through mapped
	// memory. Linear images are restricted to a single
	// layer, level and sample.
	NewImage(pf PixelFmt, size Dim3D, layers, levels, samples int, linear bool, usg Usage) (Image, error)

	// NewSampler creates a new Sampler.
	NewSampler(spln *Sampling) (Sampler, error)

	// NewDescLayout creates a new descriptor set layout.
	NewDescLayout(bind []DescBinding) (DescLayout, error)

	// NewDescPool creates a new descriptor pool with
	// enough storage for maxSets sets containing, in
	// total, at most size[i].Count descriptors of each
	// size[i].Type.
	// If freeable is set, sets allocated from the pool
	// can be freed individually, at the cost of a less
	// efficient allocation scheme.
	NewDescPool(maxSets int, size []DescPoolSize, freeable bool) (DescPool, error)

	// NewFence creates a new fence.
	NewFence(signaled bool) (Fence, error)

	// NewSemaphore creates a new semaphore.
	NewSemaphore() (Semaphore, error)

	// NewPipelineCache creates a new pipeline cache,
	// optionally initialized with the contents of a
	// previously serialized cache.
	// Unrecognized data is ignored, so it is valid to
	// call this method with a blob produced by another
	// driver version or device.
	NewPipelineCache(data []byte) (PipelineCache, error)

	// WaitIdle blocks until all work submitted to the
	// GPU completes execution.
	WaitIdle() error

	// Limits returns the implementation limits.
	// They are immutable for the lifetime of the GPU.
	Limits() Limits
}

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may allocate external
// memory that is not managed by GC, so Destroy must be
// called explicitly to ensure such memory is deallocated.
type Destroyer interface {
	Destroy()
}

// Queue is the interface that defines the GPU's command
// queue. Command buffers are executed in submission order
// with respect to each other; execution across separate
// Submit calls is ordered by the queue itself, so explicit
// synchronization is only necessary between queues or with
// the host.
// The queue must not be used for submission from multiple
// goroutines concurrently.
type Queue interface {
	// Submit commits a batch of work to the GPU for
	// execution and returns without waiting for the
	// GPU to finish.
	// If f is non-nil, it is signaled when every command
	// buffer in the batch completes execution.
	// Work entries that contain no command buffers are
	// valid; their synchronization operations still
	// execute, pending completion of prior work.
	Submit(work []Work, f Fence) error

	// WaitIdle blocks until all work submitted to the
	// queue completes execution.
	WaitIdle() error
}

// Work describes a number of command buffers to execute,
// along with synchronization to perform around them.
// Execution waits until every semaphore in Wait is
// signaled, then executes the command buffers in Buf in
// order, then signals every semaphore in Signal.
type Work struct {
	Wait   []Semaphore
	Buf    []CmdBuffer
	Signal []Semaphore
}

// CmdPool is the interface that defines a pool of command
// buffer storage.
// Pools, and the command buffers allocated from them, must
// not be used from multiple goroutines concurrently.
// Separate pools can be used concurrently.
type CmdPool interface {
	Destroyer

	// NewCmdBuffer allocates a new command buffer from
	// the pool.
	// Destroying the command buffer returns it to the
	// pool. Destroying the pool itself destroys every
	// command buffer allocated from it.
	NewCmdBuffer() (CmdBuffer, error)

	// Reset resets every command buffer allocated from
	// the pool, as if CmdBuffer.Reset had been called
	// on each one.
	// If release is set, buffer objects accumulated by
	// the command buffers are returned to the system.
	Reset(release bool) error
}

// CmdBuffer is the interface that defines a command buffer.
// Commands are recorded into command buffers and later
// committed to the GPU for execution. The usage is as
// follows: First, call Begin to prepare the command buffer
// for recording. Then, if it succeeds:
//
// To record rendering commands:
//	1. call BeginPass
//	2. call ClearAtts as needed
//	3. call NextSubpass (if using multiple subpasses)
//	4. repeat 2-3 as needed
//	5. call EndPass
//
// To record transfer commands, call the Copy*, Fill,
// Update, Blit and Clear*Image methods, outside of a
// render pass.
//
// Finally, call End and, if it succeeds, Queue.Submit or
// GPU.Commit. After the command buffer executes, or after
// a call to Reset, Begin must be called again before new
// commands can be recorded.
type CmdBuffer interface {
	Destroyer

	// Begin prepares the command buffer for recording.
	// This method must be called before any command is
	// recorded in the command buffer. Calling it on a
	// command buffer that has recorded commands discards
	// those commands.
	Begin(usg CmdUsage) error

	// BeginPass begins the first subpass of a given
	// render pass.
	// fb must have been created from pass. clear must
	// contain one entry for each attachment of the pass
	// whose load operation is LClear (entries of other
	// attachments are ignored). Rendering is restricted
	// to the given area; for stores to elide loads, the
	// area must be aligned to the tile grid of fb.
	BeginPass(pass RenderPass, fb Framebuf, area Scissor, clear []ClearValue)

	// NextSubpass ends the current subpass and begins
	// the next one.
	// It must not be called in the last subpass.
	NextSubpass()

	// EndPass ends the current render pass.
	EndPass()

	// ClearAtts clears regions of attachments of the
	// current subpass.
	// It must only be called during a render pass.
	ClearAtts(clear []ClearAtt, rect []ClearRect)

	// CopyBuffer copies data between buffers.
	// It must not be called during a render pass.
	CopyBuffer(param *BufferCopy)

	// CopyImage copies data between images.
	// The pixel formats of both images must have the
	// same size. It must not be called during a
	// render pass.
	CopyImage(param *ImageCopy)

	// CopyBufToImg copies data from a buffer to an
	// image.
	// It must not be called during a render pass.
	CopyBufToImg(param *BufImgCopy)

	// CopyImgToBuf copies data from an image to a
	// buffer.
	// It must not be called during a render pass.
	CopyImgToBuf(param *BufImgCopy)

	// Fill fills a buffer range with copies of a
	// 32-bit value.
	// off must be aligned to 4 bytes. If size is
	// negative, the range extends from off to the end
	// of the buffer, truncated to a multiple of 4;
	// otherwise size must be a multiple of 4.
	// It must not be called during a render pass.
	Fill(buf Buffer, off int64, value uint32, size int64)

	// Update writes data into a buffer range.
	// off must be aligned to 4 bytes. len(data) must be
	// a multiple of 4, no greater than 65536.
	// The data is consumed at record time, so it is
	// valid to reuse or discard data when Update
	// returns.
	// It must not be called during a render pass.
	Update(buf Buffer, off int64, data []byte)

	// Blit copies a region of one image into a region
	// of another, scaling and converting formats as
	// needed.
	// It must not be called during a render pass.
	Blit(param *ImageBlit)

	// ClearColorImage clears subresource ranges of a
	// color image.
	// It must not be called during a render pass.
	ClearColorImage(img Image, value ClearColor, rng []ImageRange)

	// ClearDSImage clears subresource ranges of a
	// depth/stencil image.
	// It must not be called during a render pass.
	ClearDSImage(img Image, depth float32, stencil uint32, rng []ImageRange)

	// Barrier inserts a number of global barriers in
	// the command buffer.
	Barrier(b []Barrier)

	// End ends command recording and prepares the
	// command buffer for execution.
	// New recordings are not allowed until the command
	// buffer is executed or reset.
	// Upon failure, the command buffer is reset.
	End() error

	// Reset discards all recorded commands from the
	// command buffer.
	Reset() error
}

// CmdUsage is a mask of command buffer usage flags.
type CmdUsage int

// Command buffer usage.
const (
	// The command buffer will be submitted once and
	// then reset or destroyed.
	COneTime CmdUsage = 1 << iota
	// The command buffer may be committed again while
	// a previous commit is still executing.
	CSimultaneous
)

// BufferCopy describes the parameters of a copy command
// that copies data from one buffer to another.
type BufferCopy struct {
	From    Buffer
	FromOff int64
	To      Buffer
	ToOff   int64
	Size    int64
}

// ImageCopy describes the parameters of a copy command
// that copies data from one image to another.
type ImageCopy struct {
	From      Image
	FromOff   Off3D
	FromLayer int
	FromLevel int
	To        Image
	ToOff     Off3D
	ToLayer   int
	ToLevel   int
	Size      Dim3D
	Layers    int
}

// BufImgCopy describes the parameters of a copy command
// that copies data between a buffer and an image.
type BufImgCopy struct {
	Buf    Buffer
	BufOff int64
	// Stride specifies the addressing of image data
	// in the buffer. It is given in pixels.
	// Stride[0] refers to the row length and Stride[1]
	// refers to the image height. A zero value means
	// tightly packed rows/images.
	Stride [2]int64
	Img    Image
	ImgOff Off3D
	Layer  int
	Layers int
	Level  int
	Size   Dim3D
	// Aspect selects the data to copy when Img has a
	// combined depth/stencil format. It must be either
	// ADepth or AStencil in that case, and AColor
	// otherwise.
	Aspect Aspect
}

// ImageBlit describes the parameters of a blit command.
// The source region is scaled to fit the destination
// region. If the corners of a region are swapped relative
// to the other, the copy is mirrored along that axis.
type ImageBlit struct {
	From      Image
	FromStart Off3D
	FromEnd   Off3D
	FromLayer int
	FromLevel int
	To        Image
	ToStart   Off3D
	ToEnd     Off3D
	ToLayer   int
	ToLevel   int
	Layers    int
	Filter    Filter
}

// ImageRange identifies a set of contiguous layers and
// levels of an image.
type ImageRange struct {
	Layer  int
	Layers int
	Level  int
	Levels int
}

// Aspect is a mask identifying data planes of an image.
type Aspect int

// Image aspects.
const (
	AColor Aspect = 1 << iota
	ADepth
	AStencil
)

// Sync is the type of a synchronization scope.
type Sync int

// Synchronization scopes.
const (
	SColorOutput Sync = 1 << iota
	SDSOutput
	SCopy
	SAll
	SNone Sync = 0
)

// Access is the type of a memory access scope.
type Access int

// Memory access scopes.
const (
	AColorRead Access = 1 << iota
	AColorWrite
	ADSRead
	ADSWrite
	ACopyRead
	ACopyWrite
	AAnyRead
	AAnyWrite
	ANone Access = 0
)

// Barrier represents a synchronization barrier.
// Commands recorded after the barrier do not begin the
// scopes in SyncAfter until commands recorded before it
// complete the scopes in SyncBefore, with the memory
// accesses of AccessBefore made visible to those of
// AccessAfter.
type Barrier struct {
	SyncBefore   Sync
	SyncAfter    Sync
	AccessBefore Access
	AccessAfter  Access
}

// LoadOp is the type of an attachment's load operation.
type LoadOp int

// Load operations.
const (
	LDontCare LoadOp = iota
	LClear
	LLoad
)

// StoreOp is the type of an attachment's store operation.
type StoreOp int

// Store operations.
const (
	SDontCare StoreOp = iota
	SStore
)

// Attachment describes the configuration of a single
// render target for use in a render pass.
// In the Load and Store arrays, [0] is for color or
// depth and [1] is for stencil.
type Attachment struct {
	Format  PixelFmt
	Samples int
	Load    [2]LoadOp
	Store   [2]StoreOp
}

// Subpass defines a subpass of a render pass.
// Render passes are split into a number of subpasses.
// The Color, DS (depth/stencil) and MSR (multisample
// resolve) fields contain indices in the render pass'
// attachment list indicating a subset of the render
// targets that the subpass will use. A DS value of -1
// means no depth/stencil attachment, and likewise -1 in
// MSR means the corresponding color attachment is not
// resolved. The Wait field controls whether or not the
// subpass stalls waiting for previous work to finish.
type Subpass struct {
	Color []int
	DS    int
	MSR   []int
	Wait  bool
}

// RenderPass is the interface that defines a render pass
// into which rendering commands operate.
type RenderPass interface {
	Destroyer

	// NewFB creates a new framebuffer.
	// Each image view in iv correspond to the render pass'
	// attachment of same index. A view's pixel format and
	// sample count must match the attachment's. Views whose
	// image was not created with URenderTarget as a valid
	// usage cannot be used in a framebuffer.
	// All framebuffers created from a given render pass
	// must be destroyed before the render pass itself
	// is destroyed.
	NewFB(iv []ImageView, width, height, layers int) (Framebuf, error)

	// Granularity returns the render area alignment of
	// framebuffers created from the render pass.
	// BeginPass areas aligned to these dimensions (or
	// reaching the framebuffer's edges) render without
	// a partial-tile penalty.
	Granularity() (width, height int)
}

// Framebuf is the interface that defines the render targets
// of a render pass.
type Framebuf interface {
	Destroyer
}

// ClearColor defines a clear value for the color aspect
// of a render target. The field that applies is determined
// by the target's pixel format: Int for signed integer
// formats, Uint for unsigned integer formats and Float
// for every other format.
type ClearColor struct {
	Float [4]float32
	Int   [4]int32
	Uint  [4]uint32
}

// ClearValue defines clear values for color or depth/stencil
// aspects of a render target.
type ClearValue struct {
	Color   ClearColor
	Depth   float32
	Stencil uint32
}

// ClearAtt identifies an attachment of the current subpass
// to clear, and the value to clear it with.
// For a color clear, Aspect must be AColor and Nr must
// index the current subpass' Color list. For a
// depth/stencil clear, Aspect must contain ADepth,
// AStencil or both, and Nr is ignored.
type ClearAtt struct {
	Aspect Aspect
	Nr     int
	Value  ClearValue
}

// ClearRect defines a region of attachment layers to clear.
type ClearRect struct {
	Rect   Scissor
	Layer  int
	Layers int
}

// Scissor defines a rectangle restricting rendering.
type Scissor struct {
	X, Y, Width, Height int
}

// DescType is the type of a descriptor.
type DescType int

// Descriptor types.
const (
	// Read/write buffer.
	DBuffer DescType = iota
	// Read/write image.
	DImage
	// Constant buffer.
	DConstant
	// Sampled texture.
	DTexture
	// Texture sampler.
	DSampler
	// Read/write buffer with dynamic offset.
	DBufferDyn
	// Constant buffer with dynamic offset.
	DConstantDyn
)

// DescBinding describes a single binding of a descriptor
// set layout.
// The meaning of the Nr field is shader-specific.
type DescBinding struct {
	Type DescType
	Nr   int
	// Len is the number of array elements in the
	// binding.
	Len int
	// Samplers, if non-nil, are immutable samplers
	// bound to each array element in order. It is
	// only valid for DSampler bindings, and its
	// length must equal Len.
	// Descriptor set writes to a binding that has
	// immutable samplers are ignored.
	Samplers []Sampler
}

// DescLayout is the interface that defines the shape of
// descriptor sets allocated from a pool.
type DescLayout interface {
	Destroyer
}

// DescPoolSize specifies a descriptor count contributing
// to a pool's capacity.
type DescPoolSize struct {
	Type  DescType
	Count int
}

// DescPool is the interface that defines a pool of
// descriptor set storage.
// Pools, and the descriptor sets allocated from them,
// must not be used from multiple goroutines concurrently.
// Separate pools can be used concurrently.
type DescPool interface {
	Destroyer

	// Alloc allocates a descriptor set with the given
	// layout from the pool.
	// It fails with ErrNoHostMemory when the pool's
	// remaining capacity cannot accommodate the set.
	Alloc(layout DescLayout) (DescSet, error)

	// Free returns descriptor sets to the pool.
	// It must only be called if the pool was created
	// with individual frees enabled.
	Free(ds ...DescSet) error

	// Reset returns all descriptor sets allocated from
	// the pool, restoring the pool's full capacity.
	// Sets allocated prior to the call become invalid.
	Reset() error
}

// DescSet is the interface that defines a set of
// descriptors for use in programmable pipeline stages.
type DescSet interface {
	// SetBuffer updates the buffer ranges referred by
	// the given binding, starting at array element
	// start.
	// The binding must be of type DBuffer, DConstant,
	// DBufferDyn or DConstantDyn.
	// Buffer ranges must be aligned to 256 bytes.
	SetBuffer(nr, start int, buf []Buffer, off, size []int64)

	// SetImage updates the image views referred by the
	// given binding, starting at array element start.
	// The binding must be of type DImage or DTexture.
	SetImage(nr, start int, iv []ImageView)

	// SetSampler updates the samplers referred by the
	// given binding, starting at array element start.
	// The binding must be of type DSampler.
	SetSampler(nr, start int, splr []Sampler)
}

// Fence is the interface that defines a synchronization
// primitive signaled by the GPU and awaited by the host.
type Fence interface {
	Destroyer

	// Wait blocks until the fence is signaled.
	// A zero timeout polls: if the fence is unsignaled,
	// Wait returns ErrNotReady immediately. A negative
	// timeout blocks indefinitely. Otherwise, if the
	// timeout expires before the fence signals, Wait
	// returns ErrTimeout.
	Wait(timeout time.Duration) error

	// Reset restores the fence to the unsignaled state.
	// It must not be called while the fence is pending
	// in a queue submission.
	Reset() error

	// Import replaces the fence's payload with the sync
	// file identified by fd, so that the fence signals
	// when that sync file does. An fd of -1 sets the
	// fence to the signaled state.
	// The driver takes ownership of fd on success.
	Import(fd int) error

	// Export returns the fence's current payload as a
	// sync file descriptor.
	// The caller owns the returned descriptor. If the
	// fence is already signaled, the descriptor refers
	// to an already-signaled sync file.
	Export() (int, error)
}

// Semaphore is the interface that defines a synchronization
// primitive signaled and awaited by the GPU.
// Every signal operation must be matched by exactly one
// wait operation, and the wait order across queues must
// give a signal for every wait.
type Semaphore interface {
	Destroyer

	// Import replaces the semaphore's payload with the
	// sync file identified by fd.
	// The driver takes ownership of fd on success.
	Import(fd int) error

	// Export returns the semaphore's current payload as
	// a sync file descriptor.
	// The caller owns the returned descriptor.
	Export() (int, error)
}

// PipelineCache is the interface that defines reusable
// pipeline state, merged and serialized across runs.
// It is safe for concurrent use.
type PipelineCache interface {
	Destroyer

	// Data serializes the contents of the cache into p.
	// If p is nil, it returns the size in bytes required
	// to hold the whole blob. If p is too small, Data
	// copies what fits and fails with ErrIncomplete.
	// Otherwise, it returns the number of bytes written.
	Data(p []byte) (int, error)

	// Merge merges the contents of the given caches
	// into this one.
	Merge(src ...PipelineCache) error
}

// Memory is the interface that defines a device memory
// allocation.
// Buffers and images have no storage of their own; they
// must be bound to a range of a Memory before use.
type Memory interface {
	Destroyer

	// Map maps a range of the memory into host address
	// space and returns a slice of length size referring
	// to it.
	// A negative size maps from off to the end of the
	// allocation. The mapping blocks until prior GPU
	// work using the memory completes.
	// The slice is valid until Unmap or Destroy is
	// called.
	Map(off, size int64) ([]byte, error)

	// Unmap unmaps the memory.
	// Unmapping memory that is not mapped has no effect.
	Unmap()

	// Export returns a dma-buf file descriptor referring
	// to the underlying device memory.
	// The caller owns the returned descriptor.
	Export() (int, error)

	// Size returns the size of the allocation in bytes,
	// which may be greater than the size requested.
	// This value is immutable.
	Size() int64
}

// Usage is a mask indicating valid uses for a resource.
type Usage int

// Usage flags for Buffer and Image.
const (
	// The resource can be the source of a copy.
	UCopySrc Usage = 1 << iota
	// The resource can be the destination of a copy.
	UCopyDst
	// The resource can be sampled in shaders.
	// Valid only for Image.
	UShaderSample
	// The resource can be read and written in shaders.
	UShaderStorage
	// The resource can provide constant data for shaders.
	// Valid only for Buffer.
	UShaderConst
	// The resource can be used as render target.
	// Valid only for Image.
	URenderTarget
	// The resource can be used for any purpose.
	UGeneric Usage = 1<<iota - 1
)

// Buffer is the interface that defines a GPU buffer.
// The size of the buffer is fixed. When a larger buffer
// is necessary, a new one must be created and the data
// must be copied explicitly.
type Buffer interface {
	Destroyer

	// Bind binds the buffer to a range of mem.
	// off must be aligned to 256 bytes and the range
	// [off, off+Cap()) must be within the allocation.
	// A buffer can only be bound once.
	Bind(mem Memory, off int64) error

	// Cap returns the capacity of the buffer in bytes.
	// This value is immutable.
	Cap() int64
}

// PixelFmt describes the format of a pixel.
type PixelFmt int

// Pixel formats.
const (
	// Color, 8-bit channels.
	RGBA8un PixelFmt = iota
	RGBA8sRGB
	RGBA8ui
	RGBA8i
	BGRA8un
	BGRA8sRGB
	RG8un
	RG8ui
	RG8i
	R8un
	R8ui
	R8i
	// Color, 16-bit channels.
	RGBA16f
	RGBA16ui
	RGBA16i
	RG16f
	RG16ui
	RG16i
	R16f
	R16ui
	R16i
	// Color, 32-bit channels.
	RGBA32f
	RGBA32ui
	RGBA32i
	RG32f
	RG32ui
	RG32i
	R32f
	R32ui
	R32i
	// Depth/Stencil.
	D16un
	D32f
	S8ui
	D24unS8ui
)

// Dim3D is a three-dimensional size.
type Dim3D struct {
	Width, Height, Depth int
}

// Off3D is a three-dimensional offset.
type Off3D struct {
	X, Y, Z int
}

// Image is the interface that defines a GPU image.
// Image memory is laid out in a hardware-specific tiled
// order, so copying data between the CPU and an image
// resource requires the use of a staging buffer (linear
// images being the exception).
type Image interface {
	Destroyer

	// Bind binds the image to a range of mem.
	// off must be aligned to 4096 bytes and the range
	// [off, off+Size()) must be within the allocation.
	// An image can only be bound once.
	Bind(mem Memory, off int64) error

	// Size returns the size in bytes required to back
	// the image.
	// This value is immutable.
	Size() int64

	// NewView creates a new image view.
	// Image views represent a typed view of image storage.
	// Its type must be valid according to the image from
	// which it is created and the parameters given when
	// calling this method (e.g, creating a view of 3D type
	// from a 2D image is not allowed, and neither is a
	// view of array type if the view is created from a
	// single layer).
	// All views created from a given image must be
	// detroyed before the image itself is destroyed.
	NewView(typ ViewType, layer, layers, level, levels int) (ImageView, error)
}

// ViewType is the type of a resource view.
type ViewType int

// View types.
const (
	IView1D ViewType = iota
	IView2D
	IView3D
	IViewCube
	IView1DArray
	IView2DArray
	IViewCubeArray
	IView2DMS
	IView2DMSArray
)

// ImageView is the interface that defines a typed view of
// an Image resource.
type ImageView interface {
	Destroyer
}

// Filter is the type of sampler filters.
type Filter int

// Filters.
const (
	FNearest Filter = iota
	FLinear
	// FNoMipmap forces mip level 0 to be used.
	// It is only valid as the mip filter of a sampler.
	FNoMipmap
)

// AddrMode is the type of sampler address modes.
type AddrMode int

// Address modes.
const (
	AWrap AddrMode = iota
	AMirror
	AClamp
)

// CmpFunc is the type of comparison functions.
type CmpFunc int

// Comparison functions.
const (
	CNever CmpFunc = iota
	CLess
	CEqual
	CLessEqual
	CGreater
	CNotEqual
	CGreaterEqual
	CAlways
)

// Sampler is the interface that defines an image sampler.
type Sampler interface {
	Destroyer
}

// Sampling describes image sampler state.
type Sampling struct {
	Min      Filter
	Mag      Filter
	Mipmap   Filter
	AddrU    AddrMode
	AddrV    AddrMode
	AddrW    AddrMode
	MaxAniso int
	Cmp      CmpFunc
	MinLOD   float32
	MaxLOD   float32
}

// Limits describes implementation limits.
// These may vary across drivers and devices.
type Limits struct {
	// Maximum width of 1D images.
	MaxImage1D int
	// Maximum width and height of 2D images.
	MaxImage2D int
	// Maximum width and height of cube images.
	MaxImageCube int
	// Maximum width, height and depth of 3D images.
	MaxImage3D int
	// Maximum number of layers in an image.
	MaxLayers int

	// Maximum number of color render targets in a
	// subpass of a render pass.
	MaxColorTargets int
	// Maximum width/height for a framebuffer.
	MaxFBSize [2]int
	// Maximum number of layers in a framebuffer.
	MaxFBLayers int

	// Maximum number of descriptors of each type in a
	// descriptor set layout.
	MaxDBuffer   int
	MaxDImage    int
	MaxDConstant int
	MaxDTexture  int
	MaxDSampler  int
	// Maximum range of buffer descriptors.
	MaxDBufferRange int64
	// Maximum range of constant descriptors.
	MaxDConstantRange int64

	// Required alignment of buffer bindings in a
	// memory allocation.
	BufAlign int64
	// Required alignment of image bindings in a
	// memory allocation.
	ImgAlign int64
}
