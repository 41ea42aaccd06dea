package vm

import (
	"testing"
)

// TestSoftMMUAccessBits tests accessed/dirty bit maintenance
func TestSoftMMUAccessBits(t *testing.T) {
	mmu := NewSoftMMU()
	block := &PhysBlock{Data: make([]byte, PageSize)}

	mmu.InstallMapping(0x1000, block, true)

	if mmu.IsAccessed(0x1000) || mmu.IsDirty(0x1000) {
		t.Error("Fresh mapping should have clear status bits")
	}

	if !mmu.Touch(0x1000) {
		t.Fatal("Read of a present page should succeed")
	}
	if !mmu.IsAccessed(0x1000) {
		t.Error("Read should set the accessed bit")
	}
	if mmu.IsDirty(0x1000) {
		t.Error("Read should not set the dirty bit")
	}

	if !mmu.Write(0x1000) {
		t.Fatal("Write of a writable page should succeed")
	}
	if !mmu.IsDirty(0x1000) {
		t.Error("Write should set the dirty bit")
	}

	mmu.ClearAccessed(0x1000)
	if mmu.IsAccessed(0x1000) {
		t.Error("ClearAccessed should clear the accessed bit")
	}
	if !mmu.IsDirty(0x1000) {
		t.Error("ClearAccessed must not touch the dirty bit")
	}
}

// TestSoftMMUReadOnly tests write protection
func TestSoftMMUReadOnly(t *testing.T) {
	mmu := NewSoftMMU()
	block := &PhysBlock{Data: make([]byte, PageSize)}

	mmu.InstallMapping(0x1000, block, false)

	if mmu.Write(0x1000) {
		t.Error("Write to a read-only mapping should fault")
	}
	if !mmu.Touch(0x1000) {
		t.Error("Read of a read-only mapping should succeed")
	}
}

// TestSoftMMUClearKeepsBits tests that invalidation preserves the
// status bits until the next install
func TestSoftMMUClearKeepsBits(t *testing.T) {
	mmu := NewSoftMMU()
	block := &PhysBlock{Data: make([]byte, PageSize)}

	mmu.InstallMapping(0x1000, block, true)
	mmu.Write(0x1000)
	mmu.ClearMapping(0x1000)

	if _, present := mmu.Lookup(0x1000); present {
		t.Error("Cleared mapping should not translate")
	}
	if mmu.Touch(0x1000) {
		t.Error("Access through a cleared mapping should fault")
	}

	// The eviction path reads the dirty bit after invalidating
	if !mmu.IsDirty(0x1000) {
		t.Error("Dirty bit should survive invalidation")
	}

	// A fresh install starts the bits over
	mmu.InstallMapping(0x1000, block, true)
	if mmu.IsDirty(0x1000) || mmu.IsAccessed(0x1000) {
		t.Error("Reinstall should reset the status bits")
	}
}

// TestSoftMMUPageGranularity tests that lookups work at page granularity
func TestSoftMMUPageGranularity(t *testing.T) {
	mmu := NewSoftMMU()
	block := &PhysBlock{Data: make([]byte, PageSize)}

	mmu.InstallMapping(0x1000, block, true)

	if got, present := mmu.Lookup(0x1ABC); !present || got != block {
		t.Error("Lookup inside the page should resolve to its block")
	}
	if _, present := mmu.Lookup(0x2000); present {
		t.Error("Lookup in the next page should miss")
	}
}
