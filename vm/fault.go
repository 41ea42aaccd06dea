package vm

import (
	"fmt"
	"log/slog"
	"time"
)

// FaultAccess describes one page fault as reported by the hardware
type FaultAccess struct {
	NotPresent bool // True: not-present page, false: rights violation
	Write bool // True: access was write, false: access was read
	User bool // True: access by user code, false: by kernel code
	StackPtr uintptr // User stack pointer at fault time (user faults only)
}

// FaultOutcome is the fault coordinator's verdict on one fault
type FaultOutcome int

const (
	// FaultResolved means the page is now resident and mapped; the
	// faulting instruction can be resumed
	FaultResolved FaultOutcome = iota
	// FaultKillProcess means the fault is the process's fault: the
	// process has been torn down and must not be resumed
	FaultKillProcess
	// FaultProbeError means a kernel-mode safe probe touched bad user
	// memory; the probing code path receives an error sentinel instead
	// of process termination
	FaultProbeError
	// FaultKernelPanic means kernel code faulted outside a safe probe,
	// which is a kernel bug; the embedder must halt
	FaultKernelPanic
)

func (o FaultOutcome) String() string {
	switch o {
	case FaultResolved:
		return "resolved"
	case FaultKillProcess:
		return "kill"
	case FaultProbeError:
		return "probe-error"
	case FaultKernelPanic:
		return "kernel-panic"
	default:
		return "unknown"
	}
}

// stackSlack is how far below the stack pointer an access may land and
// still count as stack growth. Push-style instructions probe up to 32
// bytes below the pointer before adjusting it.
const stackSlack = 32

// FaultCoordinator drives demand paging: on each fault it decides
// between stack growth, lazy zero-fill, swap read-in, file read, or
// killing the faulting process, and works the frame registry to make
// the page resident.
type FaultCoordinator struct {
	registry *FrameRegistry
	swap SwapStore
	logger *slog.Logger
}

// NewFaultCoordinator creates a fault coordinator over a frame registry
// and its backing store. A nil logger falls back to slog.Default().
func NewFaultCoordinator(registry *FrameRegistry, swap SwapStore, logger *slog.Logger) *FaultCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FaultCoordinator{
		registry: registry,
		swap: swap,
		logger: logger,
	}
}

// HandleFault resolves one page fault for proc at vaddr.
//
// Faults of one process are handled one at a time: two threads racing a
// lazy load on the same page serialize here, the winner populates the
// frame, and the loser sees the now-resident page and resumes.
//
// On FaultKillProcess the process's frames, swap slots, and descriptors
// have already been torn down; nothing stays pinned or locked.
func (c *FaultCoordinator) HandleFault(proc *Process, vaddr uintptr, access FaultAccess) FaultOutcome {
	m := c.registry.Metrics()
	m.RecordPageFault()
	start := time.Now()

	// A kernel-mode fault cannot report the user stack pointer in the
	// fault frame; use the one saved on kernel entry.
	sp := access.StackPtr
	if !access.User {
		sp = proc.SavedSP
	}

	proc.faultMutex.Lock()
	defer proc.faultMutex.Unlock()

	if access.NotPresent {
		page, found := proc.Dir.Find(vaddr)

		// Stack growth: a miss just below the stack pointer, inside
		// the growth window, with no descriptor yet.
		if !found && c.stackAccess(proc, vaddr, sp) {
			created, err := proc.Dir.Create(proc, vaddr)
			if err == nil {
				created.Kind = PageZero
				created.Writable = true
				page, found = created, true
				m.RecordStackGrowth()
			}
		}

		if found {
			if c.registry.Resident(page) {
				// Another thread made the page resident while this
				// fault waited; nothing to do.
				m.RecordFaultResolved()
				m.RecordFaultLatency(time.Since(start))
				return FaultResolved
			}

			if err := c.populate(proc, page); err != nil {
				c.logger.Warn("page population failed",
					slog.Uint64("pid", uint64(proc.ID)),
					slog.String("vaddr", hexAddr(page.Vaddr)),
					slog.String("kind", page.Kind.String()),
					slog.String("error", err.Error()))
				return c.kill(proc)
			}

			m.RecordFaultResolved()
			m.RecordFaultLatency(time.Since(start))
			return FaultResolved
		}
	}

	// No way to satisfy the fault. Kernel code faulting here is either
	// a safe user-memory probe or a kernel bug.
	if !access.User {
		if proc.InProbe() {
			m.RecordProbeFault()
			return FaultProbeError
		}
		c.logger.Error("unexpected kernel fault",
			slog.Uint64("pid", uint64(proc.ID)),
			slog.String("vaddr", hexAddr(vaddr)),
			slog.Bool("not_present", access.NotPresent),
			slog.Bool("write", access.Write))
		return FaultKernelPanic
	}

	c.logger.Info("killing process on invalid access",
		slog.Uint64("pid", uint64(proc.ID)),
		slog.String("vaddr", hexAddr(vaddr)),
		slog.Bool("not_present", access.NotPresent),
		slog.Bool("write", access.Write))
	return c.kill(proc)
}

// stackAccess checks whether a faulting address looks like stack growth:
// within the growth window below the stack base, and no lower than
// stackSlack bytes below the current stack pointer
func (c *FaultCoordinator) stackAccess(proc *Process, vaddr, sp uintptr) bool {
	if proc.StackBase == 0 || uintptr(proc.StackMax) > proc.StackBase {
		return false
	}
	limit := proc.StackBase - uintptr(proc.StackMax)
	if sp < stackSlack {
		return false
	}
	return vaddr >= limit && vaddr < proc.StackBase && vaddr >= sp-stackSlack
}

// populate acquires a frame for page, fills its contents according to
// the page's kind, and installs the translation. The frame comes back
// from Acquire already locked; it is pinned for the span of population
// and unpinned and unlocked on every exit path.
func (c *FaultCoordinator) populate(proc *Process, page *PageDescriptor) error {
	m := c.registry.Metrics()

	f := c.registry.Acquire(page)
	f.TryPin()

	switch page.Kind {
	case PageZero:
		clear(f.block.Data)
		m.RecordZeroFill()

	case PageSwapped:
		if err := c.swap.ReadIn(page.Slot, f.block); err != nil {
			c.registry.Release(f)
			return ErrPopulateFailed("FaultCoordinator.populate", page.Vaddr, err)
		}
		// The frame now holds the only copy; the slot can go. Dirty
		// stays sticky so a later eviction writes the content out
		// again.
		c.swap.Release(page.Slot)
		m.RecordSwapIn()

	case PageFile:
		if page.FileSource == nil {
			c.registry.Release(f)
			return ErrPopulateFailed("FaultCoordinator.populate", page.Vaddr, ErrNoDescriptor("FaultCoordinator.populate", page.Vaddr))
		}
		n := page.ReadBytes
		if n > PageSize {
			n = PageSize
		}
		if n > 0 {
			if _, err := page.FileSource.ReadAt(f.block.Data[:n], page.FileOffset); err != nil {
				c.registry.Release(f)
				return ErrPopulateFailed("FaultCoordinator.populate", page.Vaddr, err)
			}
		}
		clear(f.block.Data[n:])

	default:
		c.registry.Release(f)
		return ErrPopulateFailed("FaultCoordinator.populate", page.Vaddr, nil)
	}

	proc.MMU.InstallMapping(page.Vaddr, f.block, page.Writable)

	f.Unpin()
	f.Unlock()
	return nil
}

// kill tears the process down and reports the kill outcome. All of the
// process's frames and swap slots are released, so nothing is left
// pinned or locked.
func (c *FaultCoordinator) kill(proc *Process) FaultOutcome {
	c.registry.ReleaseAll(proc)
	c.registry.Metrics().RecordFaultKilled()
	return FaultKillProcess
}

// hexAddr formats an address for log output
func hexAddr(vaddr uintptr) string {
	return fmt.Sprintf("%#x", vaddr)
}
