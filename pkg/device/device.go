// Package device emulates a data-parallel accelerator. A Device owns a worker
// budget and a memory budget; Buffers are exclusively owned allocations
// charged against that budget; Streams are ordered queues of kernels whose
// blocks run in parallel across the workers.
//
// Operations submitted to a stream are fire-and-forget. Results written by a
// kernel are only visible to the host after Stream.Synchronize returns or an
// Event recorded after the kernel has completed.
package device

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/georoute/pkg/config"
	"github.com/chazu/georoute/pkg/console"
)

var (
	// ErrOutOfMemory is returned when an allocation would exceed the
	// device memory limit.
	ErrOutOfMemory = errors.New("device: out of memory")

	// ErrReleased is returned by operations on a released buffer.
	ErrReleased = errors.New("device: buffer released")

	// ErrKernelPanic wraps a panic recovered from a kernel block.
	ErrKernelPanic = errors.New("device: kernel panic")
)

// DefaultBlockSize is the number of elements processed by one kernel block
// unless configured otherwise.
const DefaultBlockSize = 4096

// Device is a handle to the emulated accelerator.
type Device struct {
	workers     int
	blockSize   int
	memoryLimit int64
	log         *console.Logger

	allocated atomic.Int64
	launches  atomic.Int64

	mu            sync.Mutex
	nextStream    int
	defaultStream *Stream
}

// Option configures a Device.
type Option func(*Device)

// WithWorkers sets how many blocks may run at once. Values <= 0 select
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(d *Device) { d.workers = n }
}

// WithBlockSize sets the number of elements per kernel block.
func WithBlockSize(n int) Option {
	return func(d *Device) { d.blockSize = n }
}

// WithMemoryLimit caps the bytes allocated through buffers. Zero means no
// limit.
func WithMemoryLimit(bytes int64) Option {
	return func(d *Device) { d.memoryLimit = bytes }
}

// WithLogger sets the logger used for device diagnostics.
func WithLogger(l *console.Logger) Option {
	return func(d *Device) { d.log = l }
}

// FromConfig applies a config.Device section.
func FromConfig(c config.Device) Option {
	return func(d *Device) {
		d.workers = c.Workers
		d.blockSize = c.BlockSize
		d.memoryLimit = c.MemoryLimit
	}
}

// New creates a Device.
func New(opts ...Option) *Device {
	d := &Device{
		workers:   runtime.GOMAXPROCS(0),
		blockSize: DefaultBlockSize,
		log:       console.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers <= 0 {
		d.workers = runtime.GOMAXPROCS(0)
	}
	if d.blockSize <= 0 {
		d.blockSize = DefaultBlockSize
	}
	if d.log == nil {
		d.log = console.Nop()
	}
	d.defaultStream = d.NewStream()
	return d
}

// Logger returns the device logger. Geometries and planners created on this
// device log through it.
func (d *Device) Logger() *console.Logger { return d.log }

// Workers returns the number of blocks that may run concurrently.
func (d *Device) Workers() int { return d.workers }

// BlockSize returns the number of elements per kernel block.
func (d *Device) BlockSize() int { return d.blockSize }

// Allocated returns the bytes currently held by live buffers.
func (d *Device) Allocated() int64 { return d.allocated.Load() }

// MemoryLimit returns the configured allocation cap, 0 if unlimited.
func (d *Device) MemoryLimit() int64 { return d.memoryLimit }

// Launches returns the number of kernels submitted since the device was
// created. Zero-sized launches are not counted.
func (d *Device) Launches() int64 { return d.launches.Load() }

// DefaultStream returns the stream used by synchronous operations.
func (d *Device) DefaultStream() *Stream { return d.defaultStream }

// NewStream creates an independent execution stream.
func (d *Device) NewStream() *Stream {
	d.mu.Lock()
	id := d.nextStream
	d.nextStream++
	d.mu.Unlock()
	return newStream(d, id)
}

// Synchronize waits for the default stream.
func (d *Device) Synchronize() error {
	return d.defaultStream.Synchronize()
}

// reserve charges bytes against the memory limit.
func (d *Device) reserve(bytes int64) error {
	for {
		cur := d.allocated.Load()
		next := cur + bytes
		if d.memoryLimit > 0 && next > d.memoryLimit {
			return fmt.Errorf("%w: requested %d bytes, %d of %d in use",
				ErrOutOfMemory, bytes, cur, d.memoryLimit)
		}
		if d.allocated.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

func (d *Device) free(bytes int64) {
	d.allocated.Add(-bytes)
}

// blocks returns the number of blocks needed to cover n elements.
func (d *Device) blocks(n int) int {
	return (n + d.blockSize - 1) / d.blockSize
}

// runBlocks executes fn once per block, at most d.workers at a time. A panic
// in any block is returned as an error wrapping ErrKernelPanic.
func (d *Device) runBlocks(n int, fn func(block, lo, hi int)) error {
	var g errgroup.Group
	g.SetLimit(d.workers)
	nb := d.blocks(n)
	for b := 0; b < nb; b++ {
		lo := b * d.blockSize
		hi := min(lo+d.blockSize, n)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: block %d [%d,%d): %v", ErrKernelPanic, b, lo, hi, r)
				}
			}()
			fn(b, lo, hi)
			return nil
		})
	}
	return g.Wait()
}
