package vm

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// CompressionType represents the compression algorithm used for a slot
type CompressionType uint8

const (
	CompressionNone   CompressionType = 0
	CompressionLZ4    CompressionType = 1
	CompressionSnappy CompressionType = 2
)

// CompressedSlot represents compressed frame content with metadata
type CompressedSlot struct {
	CompressionType  CompressionType
	UncompressedSize uint16
	CompressedSize   uint16
	CompressedData   []byte
	OriginalChecksum uint32 // CRC32 of original frame content
}

// Slot header layout:
// [0-1]: Magic number (0x5A9E for swap slots)
// [2]: Compression type (0=none, 1=LZ4, 2=Snappy)
// [3]: Reserved
// [4-5]: Uncompressed size
// [6-7]: Compressed size
// [8-11]: Original checksum (CRC32)
// [12+]: Compressed data

const (
	SlotMagic      = 0x5A9E
	SlotHeaderSize = 12
	// SlotDiskSize is the fixed on-disk footprint of one slot: header
	// plus room for a whole incompressible page
	SlotDiskSize = SlotHeaderSize + PageSize
	// MinCompressionThreshold is the minimum bytes saved to keep a
	// compressed form over the raw page
	MinCompressionThreshold = 100
)

// CompressSlot compresses frame content using the specified algorithm
func CompressSlot(data []byte, compressionType CompressionType) (*CompressedSlot, error) {
	if len(data) != PageSize {
		return nil, fmt.Errorf("frame content must be exactly %d bytes, got %d", PageSize, len(data))
	}

	// Calculate checksum of original data
	checksum := crc32Checksum(data)

	var compressed []byte

	switch compressionType {
	case CompressionNone:
		compressed = data

	case CompressionLZ4:
		// LZ4 block compression
		compressed = make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("LZ4 compression failed: %w", err)
		}
		compressed = compressed[:n]

	case CompressionSnappy:
		// Snappy compression
		compressed = snappy.Encode(nil, data)

	default:
		return nil, fmt.Errorf("unsupported compression type: %d", compressionType)
	}

	compressedSize := uint16(len(compressed))

	// Check if compression is worthwhile. An LZ4 output of 0 bytes
	// means the block was incompressible.
	if compressionType != CompressionNone {
		savings := len(data) - len(compressed)
		if len(compressed) == 0 || savings < MinCompressionThreshold {
			compressionType = CompressionNone
			compressed = data
			compressedSize = uint16(len(data))
		}
	}

	return &CompressedSlot{
		CompressionType:  compressionType,
		UncompressedSize: uint16(len(data)),
		CompressedSize:   compressedSize,
		CompressedData:   compressed,
		OriginalChecksum: checksum,
	}, nil
}

// DecompressSlot decompresses slot content back into a full page
func DecompressSlot(cs *CompressedSlot) ([]byte, error) {
	var decompressed []byte
	var err error

	switch cs.CompressionType {
	case CompressionNone:
		decompressed = cs.CompressedData

	case CompressionLZ4:
		decompressed = make([]byte, cs.UncompressedSize)
		n, err := lz4.UncompressBlock(cs.CompressedData, decompressed)
		if err != nil {
			return nil, fmt.Errorf("LZ4 decompression failed: %w", err)
		}
		if n != int(cs.UncompressedSize) {
			return nil, fmt.Errorf("LZ4 decompression size mismatch: got %d, expected %d", n, cs.UncompressedSize)
		}

	case CompressionSnappy:
		decompressed, err = snappy.Decode(nil, cs.CompressedData)
		if err != nil {
			return nil, fmt.Errorf("snappy decompression failed: %w", err)
		}
		if len(decompressed) != int(cs.UncompressedSize) {
			return nil, fmt.Errorf("snappy decompression size mismatch: got %d, expected %d", len(decompressed), cs.UncompressedSize)
		}

	default:
		return nil, fmt.Errorf("unsupported compression type: %d", cs.CompressionType)
	}

	// Verify checksum
	checksum := crc32Checksum(decompressed)
	if checksum != cs.OriginalChecksum {
		return nil, fmt.Errorf("checksum mismatch: got %08x, expected %08x", checksum, cs.OriginalChecksum)
	}

	return decompressed, nil
}

// SerializeSlot serializes a compressed slot into its fixed on-disk form
func SerializeSlot(cs *CompressedSlot) ([]byte, error) {
	totalSize := SlotHeaderSize + len(cs.CompressedData)
	if totalSize > SlotDiskSize {
		return nil, fmt.Errorf("slot record too large: %d bytes (max %d)", totalSize, SlotDiskSize)
	}

	// Pad to the fixed slot size for disk writes
	buf := make([]byte, SlotDiskSize)

	// Write magic number
	binary.LittleEndian.PutUint16(buf[0:2], SlotMagic)

	// Write compression type
	buf[2] = uint8(cs.CompressionType)

	// Reserved byte
	buf[3] = 0

	// Write sizes
	binary.LittleEndian.PutUint16(buf[4:6], cs.UncompressedSize)
	binary.LittleEndian.PutUint16(buf[6:8], cs.CompressedSize)

	// Write checksum
	binary.LittleEndian.PutUint32(buf[8:12], cs.OriginalChecksum)

	// Write compressed data
	copy(buf[SlotHeaderSize:], cs.CompressedData)

	return buf, nil
}

// DeserializeSlot deserializes a slot record from its on-disk form
func DeserializeSlot(data []byte) (*CompressedSlot, error) {
	if len(data) < SlotHeaderSize {
		return nil, fmt.Errorf("data too short for slot header: %d bytes", len(data))
	}

	// Read magic number
	magic := binary.LittleEndian.Uint16(data[0:2])
	if magic != SlotMagic {
		return nil, fmt.Errorf("invalid magic number: got %04x, expected %04x", magic, SlotMagic)
	}

	// Read compression type
	compressionType := CompressionType(data[2])

	// Read sizes
	uncompressedSize := binary.LittleEndian.Uint16(data[4:6])
	compressedSize := binary.LittleEndian.Uint16(data[6:8])

	// Read checksum
	checksum := binary.LittleEndian.Uint32(data[8:12])

	// Read compressed data
	if SlotHeaderSize+int(compressedSize) > len(data) {
		return nil, fmt.Errorf("insufficient data for slot record: need %d bytes, have %d",
			SlotHeaderSize+int(compressedSize), len(data))
	}

	compressedData := make([]byte, compressedSize)
	copy(compressedData, data[SlotHeaderSize:SlotHeaderSize+int(compressedSize)])

	return &CompressedSlot{
		CompressionType:  compressionType,
		UncompressedSize: uncompressedSize,
		CompressedSize:   compressedSize,
		CompressedData:   compressedData,
		OriginalChecksum: checksum,
	}, nil
}

// GetCompressionRatio returns the compression ratio (original size / compressed size)
func (cs *CompressedSlot) GetCompressionRatio() float64 {
	if cs.CompressedSize == 0 {
		return 1.0
	}
	return float64(cs.UncompressedSize) / float64(cs.CompressedSize)
}

// ParseCompressionType maps a config string to a CompressionType
func ParseCompressionType(name string) (CompressionType, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "snappy":
		return CompressionSnappy, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression type: %s", name)
	}
}

// crc32Checksum computes the CRC32 (IEEE) of data
func crc32Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
