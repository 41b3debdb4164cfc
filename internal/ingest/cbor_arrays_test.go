package ingest

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
)

func TestDecodeDepthArrayUint16LE(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{uint64(2), uint64(2)},
			cbor.Tag{
				Number:  tagUint16LE,
				Content: []byte{1, 0, 2, 0, 0x90, 0x01, 0xff, 0x07},
			},
		},
	}

	rows, cols, got, err := decodeDepthArray(value)
	if err != nil {
		t.Fatalf("decodeDepthArray error: %v", err)
	}
	if rows != 2 || cols != 2 {
		t.Fatalf("unexpected shape %dx%d", rows, cols)
	}
	if diff := cmp.Diff([]uint16{1, 2, 400, 2047}, got); diff != "" {
		t.Fatalf("decodeDepthArray mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTypedArrayVariants(t *testing.T) {
	cases := []struct {
		name string
		tag  cbor.Tag
		want []uint16
	}{
		{"uint8", cbor.Tag{Number: tagUint8, Content: []byte{1, 255}}, []uint16{1, 255}},
		{"uint16 big endian", cbor.Tag{Number: tagUint16BE, Content: []byte{0x01, 0x90}}, []uint16{400}},
		{"uint32 clamps", cbor.Tag{Number: tagUint32LE, Content: []byte{0x10, 0, 0, 0, 0, 0, 1, 0}}, []uint16{16, 65535}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeTypedArray(tc.tag)
			if err != nil {
				t.Fatalf("decodeTypedArray error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeDepthArrayDimensionMismatch(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{uint64(3), uint64(3)},
			cbor.Tag{Number: tagUint16LE, Content: []byte{1, 0}},
		},
	}
	if _, _, _, err := decodeDepthArray(value); !errors.Is(err, errDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestDecodeDepthArrayRejectsHugeDimensions(t *testing.T) {
	// 1<<32 * 1<<32 wraps to zero and would match an empty payload.
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{uint64(1 << 32), uint64(1 << 32)},
			cbor.Tag{Number: tagUint16LE, Content: []byte{}},
		},
	}
	if _, _, _, err := decodeDepthArray(value); !errors.Is(err, errDimensionTooLarge) {
		t.Fatalf("expected dimensions too large, got %v", err)
	}
}

func TestDecodeTypedArrayRejectsOddLength(t *testing.T) {
	if _, err := decodeTypedArray(cbor.Tag{Number: tagUint16LE, Content: []byte{1, 2, 3}}); err == nil {
		t.Fatalf("expected error for odd length")
	}
}
