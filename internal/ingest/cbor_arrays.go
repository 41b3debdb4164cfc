package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"kinect-track-go/internal/types"
)

// RFC 8746 tags.
const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagUint16BE      = 65
	tagUint16LE      = 69
	tagUint32LE      = 70
)

var (
	errDimensionMismatch = errors.New("dimension mismatch")
	errDimensionTooLarge = errors.New("depth array dimensions too large")
)

// decodeDepthArray unpacks a tag 40 row-major array into a flat uint16 slice.
func decodeDepthArray(value any) (int, int, []uint16, error) {
	tag, ok := value.(cbor.Tag)
	if !ok || tag.Number != tagMultiDimArray {
		return 0, 0, nil, fmt.Errorf("expected multidim tag 40")
	}

	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return 0, 0, nil, fmt.Errorf("invalid multidim array content")
	}

	dimsRaw, ok := items[0].([]any)
	if !ok || len(dimsRaw) != 2 {
		return 0, 0, nil, fmt.Errorf("invalid multidim dimensions")
	}

	rows, err := toInt(dimsRaw[0])
	if err != nil {
		return 0, 0, nil, err
	}
	cols, err := toInt(dimsRaw[1])
	if err != nil {
		return 0, 0, nil, err
	}
	if rows < 0 || cols < 0 {
		return 0, 0, nil, fmt.Errorf("negative dimensions %dx%d", rows, cols)
	}
	if rows > types.MaxDimension || cols > types.MaxDimension {
		return 0, 0, nil, fmt.Errorf("%w: %dx%d", errDimensionTooLarge, rows, cols)
	}

	flat, err := decodeTypedArray(items[1])
	if err != nil {
		return 0, 0, nil, err
	}
	if len(flat) != rows*cols {
		return 0, 0, nil, fmt.Errorf("%w: %dx%d with %d samples", errDimensionMismatch, rows, cols, len(flat))
	}
	return rows, cols, flat, nil
}

func decodeTypedArray(value any) ([]uint16, error) {
	tag, ok := value.(cbor.Tag)
	if !ok {
		return nil, fmt.Errorf("expected typed array tag")
	}

	data, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported typed array content %T", tag.Content)
	}

	switch tag.Number {
	case tagUint8:
		out := make([]uint16, len(data))
		for i, v := range data {
			out[i] = uint16(v)
		}
		return out, nil
	case tagUint16LE:
		return bytesToUint16(data, binary.LittleEndian)
	case tagUint16BE:
		return bytesToUint16(data, binary.BigEndian)
	case tagUint32LE:
		return bytesToClampedUint16(data)
	default:
		return nil, fmt.Errorf("unsupported typed array tag %d", tag.Number)
	}
}

func bytesToUint16(data []byte, order binary.ByteOrder) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("odd byte length %d for uint16 array", len(data))
	}
	out := make([]uint16, len(data)/2)
	for i := 0; i < len(out); i++ {
		out[i] = order.Uint16(data[i*2 : i*2+2])
	}
	return out, nil
}

func bytesToClampedUint16(data []byte) ([]uint16, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("byte length %d not a multiple of 4 for uint32 array", len(data))
	}
	out := make([]uint16, len(data)/4)
	for i := 0; i < len(out); i++ {
		v := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		if v > math.MaxUint16 {
			v = math.MaxUint16
		}
		out[i] = uint16(v)
	}
	return out, nil
}

func encodeDepthArray(rows, cols int, samples []uint16) cbor.Tag {
	buf := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{rows, cols},
			cbor.Tag{Number: tagUint16LE, Content: buf},
		},
	}
}
