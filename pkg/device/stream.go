package device

import (
	"sync"
)

// Stream is an ordered queue of device work. Operations on one stream run in
// submission order; different streams run concurrently.
type Stream struct {
	dev *Device
	id  int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func() error
	pending int
	running bool
	err     error
}

func newStream(d *Device, id int) *Stream {
	s := &Stream{dev: d, id: id}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// ID returns the stream number, unique per device.
func (s *Stream) ID() int { return s.id }

// Device returns the device the stream belongs to.
func (s *Stream) Device() *Device { return s.dev }

// enqueue appends op and starts a drain goroutine if none is running.
func (s *Stream) enqueue(op func() error) {
	s.mu.Lock()
	s.queue = append(s.queue, op)
	s.pending++
	if !s.running {
		s.running = true
		go s.drain()
	}
	s.mu.Unlock()
}

func (s *Stream) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		op := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		err := op()

		s.mu.Lock()
		s.pending--
		if err != nil && s.err == nil {
			s.err = err
		}
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// Launch submits kernel over n elements. The range is split into blocks of
// the device block size and kernel is called once per block with the
// half-open range [lo, hi). Blocks may run in parallel and must write
// disjoint outputs. Launch returns immediately; n <= 0 submits nothing.
func (s *Stream) Launch(n int, kernel func(lo, hi int)) {
	if n <= 0 {
		return
	}
	d := s.dev
	d.launches.Add(1)
	d.log.Debugf("device: stream %d launch n=%d blocks=%d", s.id, n, d.blocks(n))
	s.enqueue(func() error {
		return d.runBlocks(n, func(_, lo, hi int) { kernel(lo, hi) })
	})
}

// Enqueue submits a host callback that runs in stream order. It is used for
// host-side steps that must observe earlier kernels, such as copies.
func (s *Stream) Enqueue(fn func()) {
	s.enqueue(func() error {
		fn()
		return nil
	})
}

// Synchronize blocks until every operation submitted so far has completed.
// It returns the first kernel error since the previous Synchronize and
// clears it.
func (s *Stream) Synchronize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending > 0 {
		s.cond.Wait()
	}
	err := s.err
	s.err = nil
	return err
}

// Record inserts an event that completes once all prior work on s is done.
func (s *Stream) Record() *Event {
	e := &Event{done: make(chan struct{})}
	s.enqueue(func() error {
		close(e.done)
		return nil
	})
	return e
}

// WaitEvent makes later work on s wait until e has completed. It does not
// block the caller.
func (s *Stream) WaitEvent(e *Event) {
	s.enqueue(func() error {
		<-e.done
		return nil
	})
}

// Event marks a point in a stream's work.
type Event struct {
	done chan struct{}
}

// Wait blocks the caller until the event completes.
func (e *Event) Wait() { <-e.done }

// Done reports whether the event has completed.
func (e *Event) Done() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
