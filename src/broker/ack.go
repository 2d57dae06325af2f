package broker

import (
	"context"
	"sync"
)

// Ack is the pending outcome of a Publish call. Callers either attach a
// completion handler with Then or block with Wait.
type Ack struct {
	once     sync.Once
	done     chan struct{}
	delivery Delivery
	err      error
}

func newAck() *Ack {
	return &Ack{done: make(chan struct{})}
}

// NewPendingAck returns an Ack together with the function that completes it.
// Only the first call of complete has an effect.
func NewPendingAck() (*Ack, func(Delivery, error)) {
	a := newAck()
	return a, a.complete
}

// FailedAck returns an Ack that is already completed with err.
func FailedAck(d Delivery, err error) *Ack {
	a := newAck()
	a.complete(d, err)
	return a
}

// complete records the outcome. Only the first call has an effect.
func (a *Ack) complete(d Delivery, err error) {
	a.once.Do(func() {
		a.delivery = d
		a.err = err
		close(a.done)
	})
}

// Done is closed once the outcome is known.
func (a *Ack) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the outcome is known or ctx ends.
func (a *Ack) Wait(ctx context.Context) (Delivery, error) {
	select {
	case <-a.done:
		return a.delivery, a.err
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

// Then runs fn on its own goroutine once the outcome is known. fn never runs
// on the goroutine that called Then.
func (a *Ack) Then(fn func(Delivery, error)) {
	go func() {
		<-a.done
		fn(a.delivery, a.err)
	}()
}
