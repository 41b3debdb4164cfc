package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"kinect-track-go/internal/pipeline"
)

// TrackWriter appends one CSV row per mapped detection.
type TrackWriter struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

func NewTrackWriter(outputDir string) (*TrackWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_track.txt", time.Now().Format("20060102_150405")))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintln(w, "frame_id, timestamp, screen_x, screen_y, world_x, world_y"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &TrackWriter{f: f, w: w, path: filename}, nil
}

func (t *TrackWriter) Path() string {
	return t.path
}

func (t *TrackWriter) Write(d pipeline.Detection) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return fmt.Errorf("track writer is closed")
	}
	_, err := fmt.Fprintf(
		t.w,
		"%d, %.6f, %d, %d, %.3f, %.3f\n",
		d.FrameID,
		d.Timestamp,
		d.Screen.X,
		d.Screen.Y,
		d.World.X,
		d.World.Y,
	)
	return err
}

func (t *TrackWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return nil
	}
	err := t.w.Flush()
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	t.w = nil
	return err
}
