package render

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func buildCacheBlob(t *testing.T, header cacheHeader) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	for _, field := range []any{header.Length, header.Version, header.VendorID, header.DeviceID, header.UUID} {
		if err := binary.Write(buf, common.ByteOrder, field); err != nil {
			t.Fatalf("building cache blob: %v", err)
		}
	}

	// Trailing opaque driver payload.
	buf.Write([]byte{0xde, 0xad, 0xbe, 0xef})
	return buf.Bytes()
}

func TestReadCacheHeaderRoundTrip(t *testing.T) {
	want := cacheHeader{
		Length:   32,
		Version:  core1_0.PipelineCacheHeaderVersionOne,
		VendorID: 0x10de,
		DeviceID: 0x2204,
		UUID:     uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
	}

	got, err := readCacheHeader(buildCacheBlob(t, want))
	if err != nil {
		t.Fatalf("reading cache header: %v", err)
	}
	if got != want {
		t.Errorf("got header %+v, wanted %+v", got, want)
	}
}

func TestReadCacheHeaderTruncated(t *testing.T) {
	_, err := readCacheHeader([]byte{0x20, 0x00})
	if err == nil {
		t.Error("expected an error for a truncated blob")
	}
}

func TestCacheHeaderMatchesDevice(t *testing.T) {
	cacheUUID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	header := cacheHeader{
		Length:   32,
		Version:  core1_0.PipelineCacheHeaderVersionOne,
		VendorID: 0x10de,
		DeviceID: 0x2204,
		UUID:     cacheUUID,
	}

	if !header.matchesDevice(0x10de, 0x2204, cacheUUID) {
		t.Error("header should match the device it was written by")
	}
	if header.matchesDevice(0x1002, 0x2204, cacheUUID) {
		t.Error("vendor mismatch accepted")
	}
	if header.matchesDevice(0x10de, 0x1111, cacheUUID) {
		t.Error("device mismatch accepted")
	}
	if header.matchesDevice(0x10de, 0x2204, uuid.Nil) {
		t.Error("UUID mismatch accepted")
	}

	zeroLength := header
	zeroLength.Length = 0
	if zeroLength.matchesDevice(0x10de, 0x2204, cacheUUID) {
		t.Error("zero header length accepted")
	}

	badVersion := header
	badVersion.Version = 99
	if badVersion.matchesDevice(0x10de, 0x2204, cacheUUID) {
		t.Error("unknown header version accepted")
	}
}

func TestBytesToBytecodeLittleEndianWords(t *testing.T) {
	words := bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	if len(words) != 2 {
		t.Fatalf("got %d words, wanted 2", len(words))
	}
	if words[0] != 0x07230203 {
		t.Errorf("first word 0x%08x, wanted the SPIR-V magic 0x07230203", words[0])
	}
	if words[1] != 0x00010000 {
		t.Errorf("second word 0x%08x, wanted 0x00010000", words[1])
	}
}
