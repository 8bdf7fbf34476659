//go:build e2e

package e2e

import (
	"bytes"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"distributor/internal/engine"
	"distributor/internal/testutil"
)

// BenchmarkIngest stress tests the intake path end to end.
// Run with: go test -tags=e2e -run=^$ -bench=BenchmarkIngest -benchtime=30s ./e2e/
func BenchmarkIngest(b *testing.B) {
	analyzers := []*analyzer{newAnalyzer(b), newAnalyzer(b)}
	server, eng, _ := startDistributor(b, engine.Config{
		Workers:  32,
		Capacity: 100000,
	}, []targetSpec{
		{name: "analyzer-1", weight: 0.6, analyzer: analyzers[0]},
		{name: "analyzer-2", weight: 0.4, analyzer: analyzers[1]},
	})

	var sent atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		client := &http.Client{Timeout: 10 * time.Second}
		for pb.Next() {
			i := sent.Add(1)
			body := fmt.Sprintf(`{"packet_id":"bench-%d","agent_id":"agent-bench","messages":[{"source":"app","message":"log line"}]}`, i)
			resp, err := client.Post(server.URL+"/v1/packets", "application/json",
				bytes.NewBufferString(body))
			if err != nil {
				b.Fatalf("POST failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusServiceUnavailable {
				b.Fatalf("unexpected status %d", resp.StatusCode)
			}
		}
	})
	b.StopTimer()

	accepted := eng.Stats().Accepted
	testutil.MustWaitFor(b, func() bool {
		s := eng.Stats()
		return s.Delivered+s.FailedExhausted+s.NoTargets == accepted
	}, testutil.WithTimeout(60*time.Second))

	s := eng.Stats()
	b.ReportMetric(float64(s.Delivered)/b.Elapsed().Seconds(), "packets/s")
	b.Logf("received=%d accepted=%d rejected=%d delivered=%d",
		s.Received, s.Accepted, s.RejectedOverload, s.Delivered)
}
