package output

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"

	"kinect-track-go/internal/pipeline"
	"kinect-track-go/internal/types"
)

func TestRawLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRawLogWriter(dir, "raw_cbor")
	if err != nil {
		t.Fatalf("NewRawLogWriter error: %v", err)
	}
	if err := w.Record([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := w.Record([]byte{4}); err == nil {
		t.Fatalf("expected error after close")
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*_raw_cbor.bin"))
	if len(files) != 1 {
		t.Fatalf("expected one raw log, got %v", files)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	reader, err := NewRawLogReader(f)
	if err != nil {
		t.Fatalf("NewRawLogReader error: %v", err)
	}
	rec, err := reader.Next()
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, rec.Payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestRawLogReaderBadMagic(t *testing.T) {
	if _, err := NewRawLogReader(strings.NewReader("BADMAGIC")); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestTrackWriter(t *testing.T) {
	w, err := NewTrackWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewTrackWriter error: %v", err)
	}
	d := pipeline.Detection{
		FrameID:   12,
		Timestamp: 3.5,
		Screen:    types.ScreenPosition{X: 320, Y: 240},
		World:     types.WorldPosition{X: 0.5, Y: -1},
	}
	if err := w.Write(d); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	want := []string{
		"frame_id, timestamp, screen_x, screen_y, world_x, world_y",
		"12, 3.500000, 320, 240, 0.500, -1.000",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("track log mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeJSONValue(t *testing.T) {
	in := map[any]any{
		uint64(1): []any{cbor.Tag{Number: 69, Content: []byte{1, 2}}},
		"name":    "kinect",
	}
	got := NormalizeJSONValue(in)
	want := map[string]any{
		"1":    []any{map[string]any{"tag": uint64(69), "value": "<2 bytes>"}},
		"name": "kinect",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalize mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(NormalizeJSONValue([]byte{1}).(string), "1 bytes") {
		t.Fatalf("bytes not summarised")
	}
}
