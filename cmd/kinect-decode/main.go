package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"kinect-track-go/internal/ingest"
	"kinect-track-go/internal/mapping"
	"kinect-track-go/internal/processing"
	"kinect-track-go/internal/types"
)

func main() {
	path := flag.String("path", "", "Path to CBOR file or directory")
	limit := flag.Int("limit", 5, "Max number of depth frames to summarize")
	threshold := flag.Int("threshold", processing.DefaultThreshold, "Near threshold for blob location")
	flag.Parse()

	if *path == "" {
		log.Fatal("missing -path")
	}

	files, err := listFiles(*path)
	if err != nil {
		log.Fatalf("list files: %v", err)
	}

	mapper := mapping.NewMapper(types.FrameWidth, types.FrameHeight)
	camera := mapping.OrthographicCamera(types.FrameWidth, types.FrameHeight, 1000)

	var depthCount, metaCount int
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Printf("read %s: %v", file, err)
			continue
		}

		msg, err := ingest.DecodeMessage(data)
		if err != nil {
			log.Printf("decode %s: %v", file, err)
			continue
		}

		if msg.Type != "depth" {
			metaCount++
			fmt.Printf("%s: %s\n", msg.Type, file)
			for k, v := range msg.Meta {
				fmt.Printf("  %s: %v\n", k, v)
			}
			continue
		}

		depthCount++
		if depthCount > *limit {
			continue
		}
		fmt.Printf("depth: %s\n", file)
		fmt.Print(summarize(msg.Frame, uint16(*threshold), mapper, camera))
	}

	fmt.Printf("summary: depth=%d meta=%d\n", depthCount, metaCount)
}

func summarize(frame types.DepthFrame, threshold uint16, mapper mapping.Mapper, camera mapping.Camera) string {
	out := fmt.Sprintf("  frame_id: %d\n  size: %dx%d (%d samples)\n", frame.FrameID, frame.Width, frame.Height, len(frame.Data))
	if !frame.Valid() {
		return out + "  invalid frame\n"
	}
	minV, maxV := frame.Data[0], frame.Data[0]
	for _, v := range frame.Data {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	out += fmt.Sprintf("  depth range: %d..%d\n", minV, maxV)
	pos := processing.LocateBlob(frame, threshold)
	if !pos.Valid() {
		return out + "  blob: none\n"
	}
	out += fmt.Sprintf("  blob: (%d, %d)\n", pos.X, pos.Y)
	if world, ok := mapper.ToWorld(pos, camera); ok {
		out += fmt.Sprintf("  world: (%.1f, %.1f)\n", world.X, world.Y)
	}
	return out
}

func listFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".cbor" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
