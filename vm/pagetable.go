package vm

import (
	"sync"
)

// PageTable is the hardware page-table adapter: the core uses it to
// install and remove virtual-to-physical translations and to read the
// accessed/dirty bits the hardware maintains per mapping.
type PageTable interface {
	// InstallMapping maps a virtual page to a physical block
	InstallMapping(vaddr uintptr, block *PhysBlock, writable bool)

	// ClearMapping removes the translation for a virtual page, so any
	// further access faults instead of reaching the old frame. The
	// accessed/dirty bits survive until the next InstallMapping, so the
	// eviction path can invalidate first and read the dirty bit after.
	ClearMapping(vaddr uintptr)

	// IsDirty reports the hardware dirty bit for a page
	IsDirty(vaddr uintptr) bool

	// IsAccessed reports the hardware accessed bit for a page
	IsAccessed(vaddr uintptr) bool

	// ClearAccessed clears the hardware accessed bit for a page
	ClearAccessed(vaddr uintptr)
}

// softEntry is one translation in a SoftMMU
type softEntry struct {
	block *PhysBlock
	present bool
	writable bool
	accessed bool
	dirty bool
}

// SoftMMU is a software page table that stands in for the hardware MMU:
// translations are a map, and the accessed/dirty bits are set by the
// Touch/Write access helpers instead of by the CPU. ClearMapping only
// drops the present bit, mirroring how real page-table entries keep
// their status bits after invalidation.
type SoftMMU struct {
	entries map[uintptr]*softEntry
	mutex sync.Mutex
}

// NewSoftMMU creates an empty software page table
func NewSoftMMU() *SoftMMU {
	return &SoftMMU{
		entries: make(map[uintptr]*softEntry),
	}
}

// InstallMapping maps a virtual page to a physical block with fresh
// accessed/dirty bits
func (m *SoftMMU) InstallMapping(vaddr uintptr, block *PhysBlock, writable bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.entries[pageRoundDown(vaddr)] = &softEntry{
		block: block,
		present: true,
		writable: writable,
	}
}

// ClearMapping invalidates the translation for a virtual page
func (m *SoftMMU) ClearMapping(vaddr uintptr) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if e, ok := m.entries[pageRoundDown(vaddr)]; ok {
		e.present = false
		e.block = nil
	}
}

// IsDirty reports the hardware dirty bit for a page
func (m *SoftMMU) IsDirty(vaddr uintptr) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if e, ok := m.entries[pageRoundDown(vaddr)]; ok {
		return e.dirty
	}
	return false
}

// IsAccessed reports the hardware accessed bit for a page
func (m *SoftMMU) IsAccessed(vaddr uintptr) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if e, ok := m.entries[pageRoundDown(vaddr)]; ok {
		return e.accessed
	}
	return false
}

// ClearAccessed clears the hardware accessed bit for a page
func (m *SoftMMU) ClearAccessed(vaddr uintptr) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if e, ok := m.entries[pageRoundDown(vaddr)]; ok {
		e.accessed = false
	}
}

// Lookup returns the physical block mapped at a virtual page, if the
// translation is present
func (m *SoftMMU) Lookup(vaddr uintptr) (*PhysBlock, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if e, ok := m.entries[pageRoundDown(vaddr)]; ok && e.present {
		return e.block, true
	}
	return nil, false
}

// Touch simulates a read access: sets the accessed bit.
// Returns false if the page is not present (the access would fault).
func (m *SoftMMU) Touch(vaddr uintptr) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	e, ok := m.entries[pageRoundDown(vaddr)]
	if !ok || !e.present {
		return false
	}
	e.accessed = true
	return true
}

// Write simulates a write access: sets the accessed and dirty bits.
// Returns false if the page is not present or the mapping is read-only.
func (m *SoftMMU) Write(vaddr uintptr) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	e, ok := m.entries[pageRoundDown(vaddr)]
	if !ok || !e.present || !e.writable {
		return false
	}
	e.accessed = true
	e.dirty = true
	return true
}
