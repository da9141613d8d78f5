package main

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// RunMetrics logs a one-line mixer summary every interval until ctx is
// canceled, grounded on the teacher's RunMetrics(ctx, room, interval)
// ticker shape. It reads only the atomicSnapshot published by the
// mixer goroutine and the shared frame counter — never the registry
// itself.
func RunMetrics(ctx context.Context, snap *atomicSnapshot, frames *atomic.Int64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastFrames int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := frames.Load()
			delta := cur - lastFrames
			lastFrames = cur

			sources := snap.Sources()
			if len(sources) == 0 && delta == 0 {
				continue
			}

			var eligible, holdBack, starved, skip int
			for _, s := range sources {
				switch s.Classification {
				case "eligible":
					eligible++
				case "hold_back":
					holdBack++
				case "starved":
					starved++
				default:
					skip++
				}
			}

			log.Printf("[metrics] listeners=%d sources=%d eligible=%d hold_back=%d starved=%d skip=%d frames=%d (%.1f fps)",
				snap.ListenerCount(), len(sources), eligible, holdBack, starved, skip, cur,
				float64(delta)/interval.Seconds())
		}
	}
}
