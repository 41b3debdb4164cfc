package processing

import (
	"errors"
	"math"
)

var ErrBufferSize = errors.New("pixel buffer size does not match sample count")

// Visualize writes one RGBA pixel per sample into dst with the depth, divided
// by 8, in the alpha channel. dst is left untouched when samples is empty or
// when its length is not 4*len(samples).
func Visualize(dst []byte, samples []uint16) error {
	if len(samples) == 0 {
		return nil
	}
	if len(dst) != 4*len(samples) {
		return ErrBufferSize
	}
	for i, v := range samples {
		alpha := v / 8
		if alpha > math.MaxUint8 {
			alpha = math.MaxUint8
		}
		px := dst[i*4 : i*4+4]
		px[0] = 0
		px[1] = 0
		px[2] = 0
		px[3] = uint8(alpha)
	}
	return nil
}

// EnsurePixelBuffer returns buf if it already fits n samples, otherwise a new
// zeroed buffer of the right size.
func EnsurePixelBuffer(buf []byte, n int) []byte {
	if len(buf) == 4*n {
		return buf
	}
	return make([]byte, 4*n)
}
