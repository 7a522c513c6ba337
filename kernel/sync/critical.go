package sync

// InterruptMasker masks and restores interrupts on the calling core.
// DisableInterrupts returns an opaque token describing the previous state
// which must be handed back to RestoreInterrupts.
type InterruptMasker interface {
	DisableInterrupts() uintptr
	RestoreInterrupts(state uintptr)
}

// CriticalSection combines a Spinlock with interrupt masking on the calling
// core. Bookkeeping guarded by a CriticalSection can be inspected from
// diagnostic paths that run with interrupts masked.
//
// The section must only wrap bounded-time work.
type CriticalSection struct {
	lock Spinlock

	// Masker is used to mask interrupts while the section is held. A nil
	// Masker only takes the spinlock.
	Masker InterruptMasker
}

// Enter masks interrupts and acquires the section lock. The returned token
// must be passed to Exit.
func (cs *CriticalSection) Enter() uintptr {
	var state uintptr
	if cs.Masker != nil {
		state = cs.Masker.DisableInterrupts()
	}
	cs.lock.Acquire()
	return state
}

// Exit releases the section lock and restores the interrupt state captured by
// the matching Enter call.
func (cs *CriticalSection) Exit(state uintptr) {
	cs.lock.Release()
	if cs.Masker != nil {
		cs.Masker.RestoreInterrupts(state)
	}
}
