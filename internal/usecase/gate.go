package usecase

// Gate is a single-slot semaphore: at most one generation run may be in
// flight process-wide. TryAcquire never blocks; callers that lose must fail
// fast rather than queue, so a second request gets an immediate busy signal.
type Gate struct {
	slot chan struct{}
}

func NewGate() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// TryAcquire reports whether the caller now holds the slot.
func (g *Gate) TryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the slot. Must only be called by the holder.
func (g *Gate) Release() {
	select {
	case <-g.slot:
	default:
	}
}
