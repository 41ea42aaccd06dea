package vm

import (
	"sync"
)

// PhysBlock is one raw physical page, handed out by an Allocator.
// The Data slice aliases the pool's backing memory; it is allocated once
// and never reassigned while any frame holds the block.
type PhysBlock struct {
	ID uint32
	Data []byte
}

// Allocator hands out fixed-size physical blocks. TryAllocate never
// blocks: it either returns a block or reports exhaustion, at which
// point the caller falls back to eviction.
type Allocator interface {
	// TryAllocate returns a free block, or false on exhaustion
	TryAllocate() (*PhysBlock, bool)

	// Free returns a block to the pool
	Free(block *PhysBlock)

	// Capacity returns the total number of blocks in the pool
	Capacity() uint32
}

// PhysPool is a heap-backed physical memory pool: one contiguous backing
// slice carved into page-size blocks, with a free list of block indices
type PhysPool struct {
	backing []byte
	blocks []*PhysBlock
	freeList []uint32
	allocated []bool
	capacity uint32
	mutex sync.Mutex
}

// NewPhysPool creates a pool of capacity page-size blocks
func NewPhysPool(capacity uint32) *PhysPool {
	if capacity == 0 {
		panic("PhysPool: capacity must be greater than 0")
	}

	pool := &PhysPool{
		backing: make([]byte, int(capacity)*PageSize),
		blocks: make([]*PhysBlock, capacity),
		freeList: make([]uint32, 0, capacity),
		allocated: make([]bool, capacity),
		capacity: capacity,
	}

	for i := uint32(0); i < capacity; i++ {
		pool.blocks[i] = &PhysBlock{
			ID: i,
			Data: pool.backing[int(i)*PageSize : int(i+1)*PageSize],
		}
		pool.freeList = append(pool.freeList, i)
	}

	return pool
}

// TryAllocate returns a free block, or false on exhaustion
func (p *PhysPool) TryAllocate() (*PhysBlock, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.freeList) == 0 {
		return nil, false
	}

	id := p.freeList[0]
	p.freeList = p.freeList[1:]
	p.allocated[id] = true
	return p.blocks[id], true
}

// Free returns a block to the pool
func (p *PhysPool) Free(block *PhysBlock) {
	if block == nil {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if block.ID >= p.capacity || p.blocks[block.ID] != block {
		panic("PhysPool: Free called with a block from another pool")
	}
	if !p.allocated[block.ID] {
		panic("PhysPool: double free of physical block")
	}

	p.allocated[block.ID] = false
	p.freeList = append(p.freeList, block.ID)
}

// Capacity returns the total number of blocks in the pool
func (p *PhysPool) Capacity() uint32 {
	return p.capacity
}

// FreeCount returns the number of unallocated blocks (for testing)
func (p *PhysPool) FreeCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.freeList)
}
