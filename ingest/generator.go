package ingest

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"
)

var logTemplates = []string{
	"INFO: User {user} logged in from {ip}",
	"ERROR: Connection reset by peer on port {port}",
	"WARN: Disk usage at {percent}% on /dev/sda1",
	"DEBUG: Memory heap size at {mem}MB",
	"CRITICAL: Service {service} is unreachable",
	"INFO: File {file}.txt uploaded successfully by {user}",
	"ERROR: Database query failed: syntax error at {port}",
}

var (
	logUsers    = []string{"admin", "guest", "root", "dev_user"}
	logServices = []string{"auth_db", "api_gateway", "worker_pool"}
)

// LogGenerator produces synthetic log lines for demos and benchmarks.
type LogGenerator struct {
	rng *rand.Rand
}

// NewLogGenerator creates a generator with a fixed seed.
func NewLogGenerator(seed uint64) *LogGenerator {
	return &LogGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Line returns one synthetic log line.
func (g *LogGenerator) Line() string {
	r := strings.NewReplacer(
		"{user}", logUsers[g.rng.IntN(len(logUsers))],
		"{ip}", fmt.Sprintf("192.168.1.%d", 1+g.rng.IntN(254)),
		"{port}", fmt.Sprint(1024+g.rng.IntN(65535-1024+1)),
		"{percent}", fmt.Sprint(80+g.rng.IntN(20)),
		"{mem}", fmt.Sprint(100+g.rng.IntN(3901)),
		"{service}", logServices[g.rng.IntN(len(logServices))],
		"{file}", fmt.Sprint(100+g.rng.IntN(900)),
	)
	return r.Replace(logTemplates[g.rng.IntN(len(logTemplates))])
}

// Lines returns n synthetic log lines.
func (g *LogGenerator) Lines(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = g.Line()
	}
	return out
}

// Stream writes count lines to w, pausing interval between lines. A count
// <= 0 writes until ctx is cancelled.
func (g *LogGenerator) Stream(ctx context.Context, w io.Writer, count int, interval time.Duration) error {
	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	for i := 0; count <= 0 || i < count; i++ {
		if _, err := fmt.Fprintln(w, g.Line()); err != nil {
			return err
		}
		if ticker == nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
