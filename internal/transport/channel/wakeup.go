// Package channel carries in-process wake-up signals from the enqueue side
// to the polling worker pools.
package channel

// Wakeup is a coalescing edge trigger. Nudge never blocks: while a wake-up
// is still pending, further nudges merge into it. Workers drain one signal
// and re-poll the store, so a merged burst costs exactly one extra pass.
type Wakeup struct {
	ch chan struct{}
}

func NewWakeup() *Wakeup {
	return &Wakeup{ch: make(chan struct{}, 1)}
}

// Nudge wakes one idle receiver.
func (w *Wakeup) Nudge() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// C is the receive side, for worker idle loops.
func (w *Wakeup) C() <-chan struct{} {
	return w.ch
}
