package device

import (
	"fmt"
	"unsafe"
)

// Buffer is a contiguous array of T resident on a device. A buffer is owned
// by exactly one geometry; it is not safe for concurrent writers.
type Buffer[T any] struct {
	dev      *Device
	data     []T
	released bool
}

func elemSize[T any]() int64 {
	var zero T
	return int64(unsafe.Sizeof(zero))
}

// NewBuffer allocates a zero-filled buffer of n elements.
func NewBuffer[T any](d *Device, n int) (*Buffer[T], error) {
	if n < 0 {
		return nil, fmt.Errorf("device: negative buffer length %d", n)
	}
	if err := d.reserve(int64(n) * elemSize[T]()); err != nil {
		return nil, err
	}
	return &Buffer[T]{dev: d, data: make([]T, n)}, nil
}

// FromHost allocates a buffer holding a copy of host.
func FromHost[T any](d *Device, host []T) (*Buffer[T], error) {
	b, err := NewBuffer[T](d, len(host))
	if err != nil {
		return nil, err
	}
	copy(b.data, host)
	return b, nil
}

// Device returns the owning device.
func (b *Buffer[T]) Device() *Device { return b.dev }

// Len returns the element count. A nil buffer has length 0.
func (b *Buffer[T]) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// IsEmpty reports whether the buffer holds no elements.
func (b *Buffer[T]) IsEmpty() bool { return b.Len() == 0 }

// Released reports whether Release has been called.
func (b *Buffer[T]) Released() bool { return b != nil && b.released }

// View returns the device-side storage for use inside kernels. The slice is
// invalidated by Resize and Release.
func (b *Buffer[T]) View() []T {
	if b == nil {
		return nil
	}
	return b.data
}

// Resize changes the length to n, preserving the common prefix. New
// elements are zero.
func (b *Buffer[T]) Resize(n int) error {
	if b.released {
		return ErrReleased
	}
	if n < 0 {
		return fmt.Errorf("device: negative buffer length %d", n)
	}
	if n == len(b.data) {
		return nil
	}
	delta := int64(n-len(b.data)) * elemSize[T]()
	if delta > 0 {
		if err := b.dev.reserve(delta); err != nil {
			return err
		}
	} else {
		b.dev.free(-delta)
	}
	if n <= cap(b.data) {
		old := len(b.data)
		b.data = b.data[:n]
		clear(b.data[min(old, n):])
		return nil
	}
	next := make([]T, n)
	copy(next, b.data)
	b.data = next
	return nil
}

// CopyFromHost resizes the buffer to len(host) and copies host into it.
func (b *Buffer[T]) CopyFromHost(host []T) error {
	if err := b.Resize(len(host)); err != nil {
		return err
	}
	copy(b.data, host)
	return nil
}

// CopyToHost returns a host copy of the contents. Callers synchronize the
// streams that write b first.
func (b *Buffer[T]) CopyToHost() []T {
	if b == nil {
		return []T{}
	}
	out := make([]T, len(b.data))
	copy(out, b.data)
	return out
}

// CopyToHostAsync copies the contents into *dst once earlier work on s has
// completed.
func (b *Buffer[T]) CopyToHostAsync(s *Stream, dst *[]T) {
	s.Enqueue(func() {
		*dst = b.CopyToHost()
	})
}

// Clone allocates a new buffer on the same device with the same contents.
func (b *Buffer[T]) Clone() (*Buffer[T], error) {
	if b.released {
		return nil, ErrReleased
	}
	return FromHost(b.dev, b.data)
}

// Fill sets every element to v on stream s.
func (b *Buffer[T]) Fill(s *Stream, v T) {
	data := b.data
	s.Launch(len(data), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			data[i] = v
		}
	})
}

// Release returns the memory to the device. Releasing twice is a no-op.
func (b *Buffer[T]) Release() {
	if b == nil || b.released {
		return
	}
	b.dev.free(int64(len(b.data)) * elemSize[T]())
	b.data = nil
	b.released = true
}
