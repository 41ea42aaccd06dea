package vm

import (
	"container/list"
	"runtime"
	"sync"
	"time"
)

// FrameRegistry tracks every physical frame currently mapped into some
// process's address space. Frames live on a ring scanned by the clock
// eviction algorithm; a persistent hand cursor survives across scans.
//
// One table mutex serializes every structural change to the ring and
// every ownership transfer, including a full eviction with its swap
// write-out. That serializes all memory-pressure handling system-wide;
// a deliberate correctness-over-throughput trade, and the registry's
// documented chokepoint.
type FrameRegistry struct {
	allocator Allocator
	swap SwapStore
	metrics *Metrics

	ring *list.List // of *Frame
	hand *list.Element // Clock hand; nil means start from the front

	tableMutex sync.Mutex // Guards ring shape, hand, and ownership links
	pinMutex sync.Mutex // Guards every frame's pin flag
}

// NewFrameRegistry creates a registry drawing physical blocks from
// allocator and spilling evicted content to swap
func NewFrameRegistry(allocator Allocator, swap SwapStore) *FrameRegistry {
	return &FrameRegistry{
		allocator: allocator,
		swap: swap,
		metrics: NewMetrics(),
		ring: list.New(),
	}
}

// Metrics returns the registry's metrics tracker
func (r *FrameRegistry) Metrics() *Metrics {
	return r.metrics
}

// Len returns the number of frames currently on the ring
func (r *FrameRegistry) Len() int {
	r.tableMutex.Lock()
	defer r.tableMutex.Unlock()
	return r.ring.Len()
}

// Resident reports whether p currently occupies a frame. The frame link
// is written by evictions under the table mutex, so concurrent readers
// must go through here rather than reading the descriptor directly.
func (r *FrameRegistry) Resident(p *PageDescriptor) bool {
	r.tableMutex.Lock()
	defer r.tableMutex.Unlock()
	return p.Frame != nil
}

// Acquire obtains a frame for a non-resident page descriptor.
//
// The caller must be the goroutine faulting on behalf of the
// descriptor's owner, and the descriptor must not be resident. A direct
// allocation is tried first; on pool exhaustion a victim frame is
// reclaimed by the clock scan and repurposed, swapping its old content
// out if dirty.
//
// The returned frame is already locked by the caller, so its contents
// can be populated before anyone else can touch them. The caller
// unlocks once population and mapping installation are done.
func (r *FrameRegistry) Acquire(p *PageDescriptor) *Frame {
	if p == nil {
		panic("FrameRegistry: Acquire with nil descriptor")
	}
	if p.Owner == nil {
		panic("FrameRegistry: Acquire for an ownerless descriptor")
	}

	r.tableMutex.Lock()
	defer r.tableMutex.Unlock()

	if p.Frame != nil {
		panic("FrameRegistry: Acquire for an already resident descriptor")
	}

	for {
		if block, ok := r.allocator.TryAllocate(); ok {
			f := &Frame{
				block: block,
				owner: p.Owner,
				page: p,
				pinMutex: &r.pinMutex,
			}
			f.Lock()
			p.Frame = f
			f.elem = r.ring.PushBack(f)

			r.metrics.RecordFrameAlloc()
			return f
		}

		// Pool exhausted: reclaim a victim. The victim comes back
		// locked and off the ring; the transfer re-links it to p and
		// reinserts it.
		start := time.Now()
		if f, ok := r.getVictim(); ok {
			r.doEviction(f.page, p)
			r.metrics.RecordEvictionLatency(time.Since(start))
			return f
		}

		// Every frame is pinned or mid-operation. A releaser or
		// unpinner may be blocked on the table mutex right now, so
		// drop it, yield, and retry from the allocator.
		r.tableMutex.Unlock()
		runtime.Gosched()
		r.tableMutex.Lock()
	}
}

// advanceHand moves the clock hand one step, wrapping at the ring's end,
// and returns the frame under it. The table mutex must be held.
func (r *FrameRegistry) advanceHand() *Frame {
	if r.hand == nil {
		r.hand = r.ring.Front()
	} else {
		r.hand = r.hand.Next()
		if r.hand == nil {
			r.hand = r.ring.Front()
		}
	}
	return r.hand.Value.(*Frame)
}

// getVictim runs the clock scan for an evictable frame: unpinned, not
// locked by anyone, and with its accessed bit clear.
//
// Each candidate's lock is try-acquired, never waited on. A frame whose
// lock is held is mid-operation (often by this very goroutine, on a
// freshly acquired frame further up the call stack) and blocking here
// would deadlock. Pinned frames are skipped the same way with the lock
// released again.
//
// A frame whose accessed bit is set gets a second chance: the bit is
// cleared so the page must be re-referenced to survive the next sweep.
// A sweep that only spent second chances rescans immediately; a sweep
// that found every frame pinned or locked reports failure instead of
// spinning, because the holders may themselves be blocked on the table
// mutex and the caller must release it for them to finish.
//
// The victim is removed from the ring and returned still locked.
// The table mutex must be held.
func (r *FrameRegistry) getVictim() (*Frame, bool) {
	if r.ring.Len() == 0 {
		panic("FrameRegistry: eviction requested with no frames in use")
	}

	for {
		spentChance := false
		for i := 0; i < r.ring.Len(); i++ {
			f := r.advanceHand()
			if f.page == nil {
				panic("FrameRegistry: frame on ring without a page")
			}

			if !f.TryLock() {
				continue
			}
			if f.IsPinned() {
				f.Unlock()
				continue
			}

			mmu := f.page.Owner.MMU
			if mmu.IsAccessed(f.page.Vaddr) {
				mmu.ClearAccessed(f.page.Vaddr)
				f.Unlock()
				spentChance = true
				continue
			}

			r.removeFromRing(f)
			return f, true
		}
		if !spentChance {
			return nil, false
		}
	}
}

// doEviction transfers the victim's frame from descriptor src to
// descriptor dst. The table mutex must be held and the frame locked;
// the frame is off the ring and is reinserted at the end.
//
// The old owner's translation is invalidated first, so a racing access
// from it faults again instead of reading a frame mid-transfer. Only
// then is the hardware dirty bit merged and the content written out.
func (r *FrameRegistry) doEviction(src, dst *PageDescriptor) {
	if src == nil || src.Frame == nil || src.Frame.page != src {
		panic("FrameRegistry: eviction source is not resident")
	}
	if dst == nil || dst.Frame != nil {
		panic("FrameRegistry: eviction destination is already resident")
	}

	f := src.Frame
	mmu := src.Owner.MMU

	mmu.ClearMapping(src.Vaddr)
	src.Dirty = src.Dirty || mmu.IsDirty(src.Vaddr)

	if src.Dirty {
		slot, err := r.swap.WriteOut(f.block)
		if err != nil {
			// Nowhere to put a dirty page: the system cannot make
			// progress without losing data.
			panic("FrameRegistry: swap write-out failed: " + err.Error())
		}
		src.Slot = slot
		src.Kind = PageSwapped
		r.metrics.RecordSwapOut()
	}
	// A clean file-backed page needs no write-out: its content can be
	// re-read from the file on the next fault.

	// Transfer the ownership edge.
	f.page = dst
	src.Frame = nil
	dst.Frame = f
	f.owner = dst.Owner

	f.elem = r.ring.PushBack(f)
	r.metrics.RecordEviction()
}

// Release tears down a frame on explicit page free. The caller must
// hold the frame's lock. The entry leaves the ring, the descriptor is
// unlinked, and the physical block returns to the allocator. Eviction
// never uses this path: it repurposes entries instead of destroying
// them.
func (r *FrameRegistry) Release(f *Frame) {
	if f == nil {
		panic("FrameRegistry: Release of nil frame")
	}

	r.tableMutex.Lock()

	r.removeFromRing(f)
	if f.page != nil {
		f.page.Frame = nil
		f.page = nil
	}
	// The block goes back under the table mutex, so an exhausted
	// acquirer always sees either a free block or a frame on the ring.
	r.allocator.Free(f.block)
	f.block = nil

	r.tableMutex.Unlock()

	f.Unpin()
	f.Unlock()
	r.metrics.RecordFrameFree()
}

// ReleaseAll frees every frame owned by a process and every swap slot
// holding one of its evicted pages. Used on process teardown, including
// termination by the fault path.
func (r *FrameRegistry) ReleaseAll(proc *Process) {
	for _, p := range proc.Dir.All() {
		r.tableMutex.Lock()
		f := p.Frame
		r.tableMutex.Unlock()

		wasResident := false
		if f != nil {
			f.Lock()
			// The frame may have been evicted between the check and
			// the lock; only release it if p still owns it.
			r.tableMutex.Lock()
			stillOurs := f.page == p
			r.tableMutex.Unlock()
			if stillOurs {
				proc.MMU.ClearMapping(p.Vaddr)
				r.Release(f)
				wasResident = true
			} else {
				f.Unlock()
			}
		}

		// A swap slot is live only while the page sits in it. A page
		// that was resident at teardown released its slot back when it
		// was read in; its Slot field is stale and may have been reused.
		if !wasResident && p.Kind == PageSwapped {
			r.swap.Release(p.Slot)
		}
		proc.Dir.Remove(p.Vaddr)
	}
}

// removeFromRing detaches a frame, stepping the hand off it first so
// scan continuity survives the removal. The table mutex must be held.
func (r *FrameRegistry) removeFromRing(f *Frame) {
	if f.elem == nil {
		return
	}
	if r.hand == f.elem {
		r.hand = f.elem.Prev()
	}
	r.ring.Remove(f.elem)
	f.elem = nil
}

// Frames returns a snapshot of the ring (for testing and diagnostics)
func (r *FrameRegistry) Frames() []*Frame {
	r.tableMutex.Lock()
	defer r.tableMutex.Unlock()

	out := make([]*Frame, 0, r.ring.Len())
	for e := r.ring.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Frame))
	}
	return out
}
