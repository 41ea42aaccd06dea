package vm

import (
	"container/list"
	"sync"
)

// Frame is one entry in the frame registry: a physical block currently
// holding (or being handed over to) the content of some virtual page.
//
// Three orthogonal guards protect a frame:
//   - the registry's table lock covers the ring membership and the
//     page/owner links;
//   - the per-frame lock covers the physical contents, held by whichever
//     goroutine is populating, reading, evicting, or freeing the frame;
//   - the advisory pin flag marks the contents as immovable even while
//     the per-frame lock is briefly released (e.g. around buffered I/O).
type Frame struct {
	block *PhysBlock
	owner *Process // Mirrors page.Owner while page is set; diagnostics
	page *PageDescriptor
	pinned bool
	lock sync.Mutex
	elem *list.Element // Ring position; nil while off the ring

	// pinMutex is the registry-wide guard for the pinned flag,
	// shared by every frame of one registry
	pinMutex *sync.Mutex
}

// Block returns the frame's physical block
func (f *Frame) Block() *PhysBlock {
	return f.block
}

// Owner returns the process the frame is currently charged to
func (f *Frame) Owner() *Process {
	return f.owner
}

// Page returns the descriptor currently resident in the frame
func (f *Frame) Page() *PageDescriptor {
	return f.page
}

// Lock acquires the frame's content lock
func (f *Frame) Lock() {
	f.lock.Lock()
}

// TryLock attempts to acquire the frame's content lock without blocking.
// The eviction scan uses this so a goroutine that already holds one of
// its own frame locks (mid-populate) can never deadlock against itself.
func (f *Frame) TryLock() bool {
	return f.lock.TryLock()
}

// Unlock releases the frame's content lock
func (f *Frame) Unlock() {
	f.lock.Unlock()
}

// TryPin pins the frame if it is not already pinned. A pinned frame is
// skipped by the eviction scan, so its physical contents stay put even
// if the content lock is released mid-operation. Returns false if the
// frame was already pinned.
func (f *Frame) TryPin() bool {
	f.pinMutex.Lock()
	defer f.pinMutex.Unlock()

	if f.pinned {
		return false
	}
	f.pinned = true
	return true
}

// Unpin clears the pin flag. Unpinning an unpinned frame is harmless,
// so failure paths can unpin unconditionally.
func (f *Frame) Unpin() {
	f.pinMutex.Lock()
	defer f.pinMutex.Unlock()
	f.pinned = false
}

// IsPinned reports whether the frame is currently pinned
func (f *Frame) IsPinned() bool {
	f.pinMutex.Lock()
	defer f.pinMutex.Unlock()
	return f.pinned
}
