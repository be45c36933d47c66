package cart

import "context"

// Sync is the pending backing-store write of a cart mutation.
// The in-memory cart is already updated when a Sync is returned.
type Sync struct {
	done chan struct{}
	err  error
}

func runSync(fn func() error) *Sync {
	s := &Sync{done: make(chan struct{})}
	go func() {
		defer close(s.done)
		s.err = fn()
	}()
	return s
}

func doneSync(err error) *Sync {
	s := &Sync{done: make(chan struct{}), err: err}
	close(s.done)
	return s
}

// Wait blocks until the write settled or ctx is done.
func (s *Sync) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the write settled.
func (s *Sync) Done() <-chan struct{} { return s.done }

// Err returns the write error; only meaningful once Done is closed.
func (s *Sync) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
