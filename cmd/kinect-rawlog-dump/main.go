package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"kinect-track-go/internal/ingest"
	"kinect-track-go/internal/output"
	"kinect-track-go/internal/processing"
)

func main() {
	var (
		path  = flag.String("path", "", "Path to rawlog .bin file")
		limit = flag.Int("limit", 1, "Number of records to dump (0 for all)")
		full  = flag.Bool("full", false, "Print the whole decoded message instead of a frame summary")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer f.Close()

	reader, err := output.NewRawLogReader(f)
	if err != nil {
		log.Fatalf("%v", err)
	}

	for count := 0; *limit <= 0 || count < *limit; count++ {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Fatalf("record %d: %v", count, err)
		}
		log.Printf("record %d timestamp=%s size=%d", count, rec.Time.Format(time.RFC3339Nano), len(rec.Payload))

		if !*full {
			if msg, err := ingest.DecodeMessage(rec.Payload); err == nil && msg.Type == "depth" {
				pos := processing.LocateBlob(msg.Frame, processing.DefaultThreshold)
				fmt.Printf("depth frame_id=%d size=%dx%d blob=(%d, %d) detected=%v\n",
					msg.Frame.FrameID, msg.Frame.Width, msg.Frame.Height, pos.X, pos.Y, pos.Valid())
				continue
			}
		}

		var decoded any
		if err := cbor.Unmarshal(rec.Payload, &decoded); err != nil {
			log.Printf("record %d: CBOR decode error: %v", count, err)
			continue
		}
		pretty, err := json.MarshalIndent(output.NormalizeJSONValue(decoded), "", "  ")
		if err != nil {
			log.Printf("record %d: JSON encode error: %v", count, err)
			continue
		}
		fmt.Println(string(pretty))
	}
}
