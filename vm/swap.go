package vm

import (
	"fmt"
	"os"
	"sync"
)

// SlotID identifies one slot in the backing store
type SlotID uint32

// SwapStore persists the contents of evicted frames. WriteOut picks a
// free slot, ReadIn restores it into a block, Release frees it.
// Release is idempotent: releasing an already free slot is a no-op, so
// teardown paths need not track slot state precisely.
type SwapStore interface {
	WriteOut(block *PhysBlock) (SlotID, error)
	ReadIn(slot SlotID, block *PhysBlock) error
	Release(slot SlotID)
}

// FileSwapStore is a swap file of fixed-size slots with a free list.
// Frame content is optionally compressed before hitting the disk; each
// slot record carries its own header and checksum, so a torn or stale
// slot is detected on read-in.
type FileSwapStore struct {
	file *os.File
	slots uint32
	compression CompressionType
	used []bool
	freeList []SlotID
	mutex sync.Mutex
}

// NewFileSwapStore creates a swap store of slotCount slots backed by the
// file at path
func NewFileSwapStore(path string, slotCount uint32, compression CompressionType) (*FileSwapStore, error) {
	if slotCount == 0 {
		return nil, fmt.Errorf("swap slot count must be greater than 0")
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open/create swap file %s: %w", path, err)
	}

	s := &FileSwapStore{
		file: file,
		slots: slotCount,
		compression: compression,
		used: make([]bool, slotCount),
		freeList: make([]SlotID, 0, slotCount),
	}

	for i := uint32(0); i < slotCount; i++ {
		s.freeList = append(s.freeList, SlotID(i))
	}

	return s, nil
}

// WriteOut writes a block's contents into a free slot and returns it
func (s *FileSwapStore) WriteOut(block *PhysBlock) (SlotID, error) {
	if block == nil || len(block.Data) != PageSize {
		return 0, fmt.Errorf("swap write requires a full %d-byte block", PageSize)
	}

	cs, err := CompressSlot(block.Data, s.compression)
	if err != nil {
		return 0, fmt.Errorf("failed to compress frame content: %w", err)
	}

	record, err := SerializeSlot(cs)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize slot record: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.freeList) == 0 {
		return 0, ErrSwapFull("FileSwapStore.WriteOut")
	}
	slot := s.freeList[0]

	offset := int64(slot) * SlotDiskSize
	if _, err := s.file.WriteAt(record, offset); err != nil {
		return 0, ErrSwapWriteIO("FileSwapStore.WriteOut", slot, err)
	}

	// Claim the slot only after the write succeeded
	s.freeList = s.freeList[1:]
	s.used[slot] = true

	return slot, nil
}

// ReadIn restores a slot's contents into a block. The slot stays
// allocated; callers release it once the content is safely resident.
func (s *FileSwapStore) ReadIn(slot SlotID, block *PhysBlock) error {
	if block == nil || len(block.Data) != PageSize {
		return fmt.Errorf("swap read requires a full %d-byte block", PageSize)
	}

	s.mutex.Lock()
	if uint32(slot) >= s.slots {
		s.mutex.Unlock()
		return ErrBadSlot("FileSwapStore.ReadIn", slot)
	}
	if !s.used[slot] {
		s.mutex.Unlock()
		return ErrBadSlot("FileSwapStore.ReadIn", slot)
	}

	record := make([]byte, SlotDiskSize)
	offset := int64(slot) * SlotDiskSize
	_, err := s.file.ReadAt(record, offset)
	s.mutex.Unlock()

	if err != nil {
		return ErrSwapReadIO("FileSwapStore.ReadIn", slot, err)
	}

	cs, err := DeserializeSlot(record)
	if err != nil {
		return ErrSlotCorrupted("FileSwapStore.ReadIn", slot)
	}

	data, err := DecompressSlot(cs)
	if err != nil {
		return ErrSlotCorrupted("FileSwapStore.ReadIn", slot)
	}

	copy(block.Data, data)
	return nil
}

// Release frees a slot. Releasing a slot that is already free (or out
// of range) is a no-op.
func (s *FileSwapStore) Release(slot SlotID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if uint32(slot) >= s.slots || !s.used[slot] {
		return
	}

	s.used[slot] = false
	s.freeList = append(s.freeList, slot)
}

// UsedSlots returns the number of allocated slots (for testing)
func (s *FileSwapStore) UsedSlots() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := 0
	for _, u := range s.used {
		if u {
			count++
		}
	}
	return count
}

// Close closes the swap store and its underlying file
func (s *FileSwapStore) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
