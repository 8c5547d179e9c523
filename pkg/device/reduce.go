package device

// Reduce computes one partial result per block of n elements and folds the
// partials in block order with combine, so the result does not depend on how
// blocks were scheduled. It waits for all earlier work on s. For n <= 0 it
// returns the zero R without launching.
func Reduce[R any](s *Stream, n int, block func(lo, hi int) R, combine func(a, b R) R) (R, error) {
	var zero R
	if n <= 0 {
		return zero, nil
	}
	d := s.dev
	partials := make([]R, d.blocks(n))
	d.launches.Add(1)
	d.log.Debugf("device: stream %d reduce n=%d blocks=%d", s.id, n, len(partials))
	s.enqueue(func() error {
		return d.runBlocks(n, func(b, lo, hi int) {
			partials[b] = block(lo, hi)
		})
	})
	if err := s.Synchronize(); err != nil {
		return zero, err
	}
	acc := partials[0]
	for _, p := range partials[1:] {
		acc = combine(acc, p)
	}
	return acc, nil
}
