package vm

import (
	"io"
	"sync"
)

const (
	// PageSize is the size of one virtual page and one physical frame
	PageSize = 4096

	// DefaultStackMax is the absolute limit on stack growth, 8 MB
	DefaultStackMax = 8 * 1024 * 1024
)

// PageKind describes how a non-resident page's content is reconstructed
type PageKind int

const (
	// PageZero is a freshly demanded page, zero-filled on first touch
	PageZero PageKind = iota
	// PageSwapped content lives in the backing store at Descriptor.Slot
	PageSwapped
	// PageFile content is read from an executable or data file
	PageFile
)

func (k PageKind) String() string {
	switch k {
	case PageZero:
		return "zero"
	case PageSwapped:
		return "swapped"
	case PageFile:
		return "file"
	default:
		return "unknown"
	}
}

// PageDescriptor is the supplemental record for one virtual page that a
// process has touched or declared. It describes how to populate the page
// on a fault and, while the page is resident, links to its frame.
//
// The Frame link and the frame's Page back-link always agree: both are
// updated together under the registry's table lock.
type PageDescriptor struct {
	Vaddr uintptr // Page-aligned virtual address
	Kind PageKind
	Writable bool
	Dirty bool // Sticky: OR-ed from the hardware dirty bit at eviction
	Slot SlotID // Valid only while Kind == PageSwapped
	Frame *Frame // Non-nil iff the page is resident
	Owner *Process

	// File-backed source; valid only while Kind == PageFile.
	// ReadBytes are read at FileOffset, the rest of the page is zeroed.
	FileSource io.ReaderAt
	FileOffset int64
	ReadBytes int
}

// Resident reports whether the page currently occupies a physical frame.
// The frame link moves under the registry's table mutex; callers racing
// an eviction must use FrameRegistry.Resident instead.
func (p *PageDescriptor) Resident() bool {
	return p.Frame != nil
}

// PageDirectory is a process's table of page descriptors, keyed by
// page-aligned virtual address. It is the lookup the fault path uses to
// decide how to handle a not-present fault.
type PageDirectory struct {
	pages map[uintptr]*PageDescriptor
	mutex sync.Mutex
}

// NewPageDirectory creates an empty page directory
func NewPageDirectory() *PageDirectory {
	return &PageDirectory{
		pages: make(map[uintptr]*PageDescriptor),
	}
}

// Find returns the descriptor for a page-aligned virtual address, if any
func (d *PageDirectory) Find(vaddr uintptr) (*PageDescriptor, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	p, ok := d.pages[pageRoundDown(vaddr)]
	return p, ok
}

// Create makes a new descriptor for a page-aligned virtual address.
// Returns an error if one already exists.
func (d *PageDirectory) Create(owner *Process, vaddr uintptr) (*PageDescriptor, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	aligned := pageRoundDown(vaddr)
	if _, ok := d.pages[aligned]; ok {
		return nil, ErrDescriptorExists("PageDirectory.Create", aligned)
	}

	p := &PageDescriptor{
		Vaddr: aligned,
		Kind: PageZero,
		Owner: owner,
	}
	d.pages[aligned] = p
	return p, nil
}

// Remove deletes the descriptor for a page-aligned virtual address
func (d *PageDirectory) Remove(vaddr uintptr) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	delete(d.pages, pageRoundDown(vaddr))
}

// Len returns the number of descriptors in the directory
func (d *PageDirectory) Len() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.pages)
}

// All returns a snapshot of every descriptor in the directory
func (d *PageDirectory) All() []*PageDescriptor {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	out := make([]*PageDescriptor, 0, len(d.pages))
	for _, p := range d.pages {
		out = append(out, p)
	}
	return out
}

// pageRoundDown rounds a virtual address down to its page boundary
func pageRoundDown(vaddr uintptr) uintptr {
	return vaddr &^ (PageSize - 1)
}
