package record

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"petcare-console/internal/telemetry"
)

// Replay feeds status rows read from r to writer. A speed >0 scales the
// recorded gaps between rows (2 plays twice as fast); speed <= 0 replays
// without delay. It stops early when ctx is done.
func Replay(ctx context.Context, r io.Reader, writer Writer, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var row telemetry.StatusRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if !prev.IsZero() && speed > 0 {
			diff := time.Duration(float64(row.Timestamp.Sub(prev)) / speed)
			if diff > 0 {
				t := time.NewTimer(diff)
				select {
				case <-ctx.Done():
					t.Stop()
					return n, ctx.Err()
				case <-t.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := writer.WriteStatus(row); err != nil {
			return n, err
		}
		n++
		prev = row.Timestamp
	}
}

// ReplayFile opens a JSONL recording and replays it.
func ReplayFile(ctx context.Context, path string, writer Writer, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Replay(ctx, f, writer, speed)
}
