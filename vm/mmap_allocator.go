package vm

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// MmapPool is a physical memory pool backed by an anonymous mmap region
// instead of the Go heap. The mapping is page-aligned by construction,
// which keeps block addresses stable and out of the garbage collector's
// way for the lifetime of the pool.
type MmapPool struct {
	backing []byte
	blocks []*PhysBlock
	freeList []uint32
	allocated []bool
	capacity uint32
	mutex sync.Mutex
}

// NewMmapPool creates a pool of capacity page-size blocks on an
// anonymous private mapping
func NewMmapPool(capacity uint32) (*MmapPool, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("pool capacity must be greater than 0")
	}

	backing, err := unix.Mmap(-1, 0, int(capacity)*PageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("failed to map pool memory: %w", err)
	}

	pool := &MmapPool{
		backing: backing,
		blocks: make([]*PhysBlock, capacity),
		freeList: make([]uint32, 0, capacity),
		allocated: make([]bool, capacity),
		capacity: capacity,
	}

	for i := uint32(0); i < capacity; i++ {
		pool.blocks[i] = &PhysBlock{
			ID: i,
			Data: backing[int(i)*PageSize : int(i+1)*PageSize],
		}
		pool.freeList = append(pool.freeList, i)
	}

	return pool, nil
}

// TryAllocate returns a free block, or false on exhaustion
func (p *MmapPool) TryAllocate() (*PhysBlock, bool) {
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
func (p *MmapPool) Free(block *PhysBlock) {
	if block == nil {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if block.ID >= p.capacity || p.blocks[block.ID] != block {
		panic("MmapPool: Free called with a block from another pool")
	}
	if !p.allocated[block.ID] {
		panic("MmapPool: double free of physical block")
	}

	p.allocated[block.ID] = false
	p.freeList = append(p.freeList, block.ID)
}

// Capacity returns the total number of blocks in the pool
func (p *MmapPool) Capacity() uint32 {
	return p.capacity
}

// Close unmaps the pool's backing memory. No block may be in use.
func (p *MmapPool) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.backing == nil {
		return nil
	}

	if len(p.freeList) != int(p.capacity) {
		return fmt.Errorf("cannot close pool: %d blocks still allocated",
			int(p.capacity)-len(p.freeList))
	}

	err := unix.Munmap(p.backing)
	p.backing = nil
	return err
}
