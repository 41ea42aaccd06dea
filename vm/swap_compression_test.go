package vm

import (
	"bytes"
	"math/rand"
	"testing"
)

// TestCompressRoundTrip tests compress/serialize/deserialize/decompress
// for every codec
func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("frame content "), PageSize)[:PageSize]

	for _, compression := range []CompressionType{CompressionNone, CompressionSnappy, CompressionLZ4} {
		cs, err := CompressSlot(data, compression)
		if err != nil {
			t.Fatalf("Compression %d: CompressSlot failed: %v", compression, err)
		}

		record, err := SerializeSlot(cs)
		if err != nil {
			t.Fatalf("Compression %d: SerializeSlot failed: %v", compression, err)
		}
		if len(record) != SlotDiskSize {
			t.Errorf("Compression %d: slot record should be %d bytes, got %d",
				compression, SlotDiskSize, len(record))
		}

		parsed, err := DeserializeSlot(record)
		if err != nil {
			t.Fatalf("Compression %d: DeserializeSlot failed: %v", compression, err)
		}

		out, err := DecompressSlot(parsed)
		if err != nil {
			t.Fatalf("Compression %d: DecompressSlot failed: %v", compression, err)
		}
		if !bytes.Equal(out, data) {
			t.Errorf("Compression %d: content mismatch after round trip", compression)
		}
	}
}

// TestCompressionShrinksRepetitiveData tests that both codecs actually
// compress repetitive frame content
func TestCompressionShrinksRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte{0}, PageSize)

	for _, compression := range []CompressionType{CompressionSnappy, CompressionLZ4} {
		cs, err := CompressSlot(data, compression)
		if err != nil {
			t.Fatalf("CompressSlot failed: %v", err)
		}
		if cs.CompressionType != compression {
			t.Errorf("Zero page should stay compressed with codec %d", compression)
		}
		if cs.GetCompressionRatio() <= 1.0 {
			t.Errorf("Codec %d: expected ratio above 1.0, got %f",
				compression, cs.GetCompressionRatio())
		}
	}
}

// TestIncompressibleFallsBack tests the fallback to raw storage when
// compression saves too little
func TestIncompressibleFallsBack(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := make([]byte, PageSize)
	rng.Read(data)

	for _, compression := range []CompressionType{CompressionSnappy, CompressionLZ4} {
		cs, err := CompressSlot(data, compression)
		if err != nil {
			t.Fatalf("CompressSlot failed: %v", err)
		}
		if cs.CompressionType != CompressionNone {
			t.Errorf("Codec %d: random data should fall back to raw storage", compression)
		}

		out, err := DecompressSlot(cs)
		if err != nil {
			t.Fatalf("DecompressSlot failed: %v", err)
		}
		if !bytes.Equal(out, data) {
			t.Error("Fallback round trip should preserve content")
		}
	}
}

// TestDecompressChecksumMismatch tests that tampered content fails the
// checksum
func TestDecompressChecksumMismatch(t *testing.T) {
	data := bytes.Repeat([]byte{0xAA}, PageSize)

	cs, err := CompressSlot(data, CompressionNone)
	if err != nil {
		t.Fatalf("CompressSlot failed: %v", err)
	}

	cs.CompressedData[0] ^= 0xFF
	if _, err := DecompressSlot(cs); err == nil {
		t.Error("Tampered content should fail the checksum")
	}
}

// TestDeserializeRejectsBadMagic tests record validation
func TestDeserializeRejectsBadMagic(t *testing.T) {
	record := make([]byte, SlotDiskSize)
	if _, err := DeserializeSlot(record); err == nil {
		t.Error("Zeroed record should be rejected")
	}

	if _, err := DeserializeSlot([]byte{0x01}); err == nil {
		t.Error("Truncated record should be rejected")
	}
}

// TestCompressRejectsShortInput tests the page-size precondition
func TestCompressRejectsShortInput(t *testing.T) {
	if _, err := CompressSlot([]byte("short"), CompressionNone); err == nil {
		t.Error("CompressSlot should reject non-page-size input")
	}
}

// TestParseCompressionType tests the config-string mapping
func TestParseCompressionType(t *testing.T) {
	cases := []struct {
		name string
		want CompressionType
		ok bool
	}{
		{"none", CompressionNone, true},
		{"", CompressionNone, true},
		{"snappy", CompressionSnappy, true},
		{"lz4", CompressionLZ4, true},
		{"zstd", CompressionNone, false},
	}

	for _, tc := range cases {
		got, err := ParseCompressionType(tc.name)
		if tc.ok && err != nil {
			t.Errorf("ParseCompressionType(%q) failed: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseCompressionType(%q) should fail", tc.name)
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParseCompressionType(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}
