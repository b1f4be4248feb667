package store

import "sync/atomic"

// Peripherals bundles the process-global monotonic CAS id source with the
// shared Timer. One Peripherals is constructed at server startup and handed
// by reference into every backend call.
type Peripherals struct {
	casID *atomic.Uint64
	Timer Timer
}

// NewPeripherals builds a Peripherals whose CAS id counter starts at 1.
func NewPeripherals(timer Timer) *Peripherals {
	p := &Peripherals{casID: new(atomic.Uint64), Timer: timer}
	p.casID.Store(1)
	return p
}

// NextCas returns the next value from the monotonic CAS id counter. The
// fetch-add only needs to be unique across goroutines, not ordered with
// respect to anything else, so the default sync/atomic semantics suffice.
func (p *Peripherals) NextCas() uint64 {
	return p.casID.Add(1) - 1
}

func (p *Peripherals) timestamp() uint32 {
	return p.Timer.Now()
}
