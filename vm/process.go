package vm

import (
	"sync"
	"sync/atomic"
)

// Process is the owner of an address space: a page directory of
// descriptors plus the hardware page-table view the core installs
// translations into.
type Process struct {
	ID uint32
	Dir *PageDirectory
	MMU PageTable

	// StackBase is the top of the process's stack region; the stack
	// grows downward from it, bounded by StackMax.
	StackBase uintptr
	// StackMax is the absolute limit on stack growth in bytes
	StackMax uint64

	// SavedSP is the user stack pointer captured on the transition into
	// the kernel. A kernel-mode fault cannot recover the user stack
	// pointer from the fault frame, so the fault path reads it here.
	SavedSP uintptr

	// probing marks that the process is inside a safe user-memory probe
	// (a kernel-side copy helper); a kernel fault during a probe is
	// converted to an error return instead of a panic.
	probing atomic.Bool

	// faultMutex serializes fault handling for this process, so two
	// threads racing a fault on the same page cannot both populate it
	faultMutex sync.Mutex
}

// NewProcess creates a process with an empty page directory and a
// software page-table view
func NewProcess(id uint32, stackBase uintptr, stackMax uint64) *Process {
	return &Process{
		ID: id,
		Dir: NewPageDirectory(),
		MMU: NewSoftMMU(),
		StackBase: stackBase,
		StackMax: stackMax,
	}
}

// EnterProbe marks the start of a safe user-memory probe
func (p *Process) EnterProbe() {
	p.probing.Store(true)
}

// ExitProbe marks the end of a safe user-memory probe
func (p *Process) ExitProbe() {
	p.probing.Store(false)
}

// InProbe reports whether the process is inside a safe probe
func (p *Process) InProbe() bool {
	return p.probing.Load()
}
