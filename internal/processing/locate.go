package processing

import (
	"kinect-track-go/internal/types"
)

// DefaultThreshold is the depth below which a sample counts as near.
const DefaultThreshold = 400

// LocateBlob returns the midpoint of the bounding box of all samples closer
// than threshold. A frame with no near sample yields (0,0), which callers
// treat as no detection. A detection genuinely centred on (0,0) cannot be
// told apart from that.
func LocateBlob(frame types.DepthFrame, threshold uint16) types.ScreenPosition {
	return LocateBlobSamples(frame.Data, frame.Width, frame.Height, threshold)
}

func LocateBlobSamples(samples []uint16, width, height int, threshold uint16) types.ScreenPosition {
	if width <= 0 || height <= 0 || len(samples) != width*height {
		return types.ScreenPosition{}
	}

	left, _ := firstNearColumn(samples, width, height, threshold, false)
	right, _ := firstNearColumn(samples, width, height, threshold, true)
	top, _ := firstNearRow(samples, width, height, threshold, false)
	bottom, _ := firstNearRow(samples, width, height, threshold, true)

	return types.ScreenPosition{
		X: (left + right) / 2,
		Y: (top + bottom) / 2,
	}
}

func firstNearColumn(samples []uint16, width, height int, threshold uint16, reverse bool) (int, bool) {
	for i := 0; i < width; i++ {
		col := i
		if reverse {
			col = width - 1 - i
		}
		for row := 0; row < height; row++ {
			if samples[row*width+col] < threshold {
				return col, true
			}
		}
	}
	return 0, false
}

func firstNearRow(samples []uint16, width, height int, threshold uint16, reverse bool) (int, bool) {
	for i := 0; i < height; i++ {
		row := i
		if reverse {
			row = height - 1 - i
		}
		line := samples[row*width : (row+1)*width]
		for _, v := range line {
			if v < threshold {
				return row, true
			}
		}
	}
	return 0, false
}
