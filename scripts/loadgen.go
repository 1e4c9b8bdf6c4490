// Loadgen is a concurrent HTTP load testing tool that measures throughput,
// latency percentiles, and per-worker distribution for proxy testing.
//
// Usage:
//
//	go run loadgen.go -url http://localhost:8080/ -concurrency 10 -requests 1000
//	go run loadgen.go -url http://localhost:8080/ -concurrency 50 -requests 5000 -csv results.csv -out summary.json
//
// Features:
//   - Concurrent workers for high throughput testing
//   - Per-target latency and distribution statistics
//   - CSV output with per-request details
//   - JSON summary with percentiles (p50, p90, p95, p99)
//   - Fake IP rotation via X-Forwarded-For for sticky-routing testing
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// TargetStats tracks statistics for one upstream worker.
type TargetStats struct {
	Count     int32           `json:"count"`
	Success   int32           `json:"success"`
	Failure   int32           `json:"failure"`
	AvgMs     float64         `json:"avg_ms"`
	P50Ms     float64         `json:"p50_ms"`
	P90Ms     float64         `json:"p90_ms"`
	P95Ms     float64         `json:"p95_ms"`
	P99Ms     float64         `json:"p99_ms"`
	Latencies []time.Duration `json:"-"`
}

type Summary struct {
	Target      string                  `json:"target"`
	Requests    int                     `json:"requests"`
	Concurrency int                     `json:"concurrency"`
	Success     int32                   `json:"success"`
	Failure     int32                   `json:"failure"`
	DurationSec float64                 `json:"duration_sec"`
	Throughput  float64                 `json:"throughput_rps"`
	StatusCodes map[int]int32           `json:"status_codes"`
	Workers     map[string]*TargetStats `json:"workers"`
}

func main() {
	var (
		url         = flag.String("url", "http://localhost:8080/", "Target URL")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		timeoutSec  = flag.Int("timeout", 10, "Per-request timeout in seconds")
		spoofIPs    = flag.Int("ips", 50, "Number of distinct fake client IPs to rotate")
	)

	outJSON := flag.String("out", "", "Write JSON summary to this file (optional)")
	outCSV := flag.String("csv", "", "Write per-request CSV to this file (optional)")
	verbose := flag.Bool("v", false, "Verbose per-request logging to stdout")
	flag.Parse()

	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}

	jobs := make(chan int)
	var wg sync.WaitGroup

	var total int32
	var success int32
	var failure int32

	targetStats := make(map[string]*TargetStats)
	var targetMu sync.Mutex

	statusCodes := make(map[int]int32)
	var statusMu sync.Mutex

	var csvFile *os.File
	var csvWriter *csv.Writer
	var csvMu sync.Mutex
	if *outCSV != "" {
		f, err := os.Create(*outCSV)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create csv file: %v\n", err)
			os.Exit(1)
		}
		csvFile = f
		csvWriter = csv.NewWriter(f)
		csvWriter.Write([]string{"idx", "timestamp", "worker", "status", "duration_ms"})
	}

	testStart := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				atomic.AddInt32(&total, 1)
				start := time.Now()

				req, err := http.NewRequest(http.MethodGet, *url, nil)
				if err != nil {
					atomic.AddInt32(&failure, 1)
					continue
				}

				// Rotate source IPs so ip_hash spreads across workers.
				fakeIP := fmt.Sprintf("192.168.1.%d", (idx%*spoofIPs)+1)
				req.Header.Set("X-Forwarded-For", fakeIP)

				resp, err := client.Do(req)
				dur := time.Since(start)

				if err != nil {
					atomic.AddInt32(&failure, 1)
					if *verbose {
						fmt.Printf("[%d] idx=%d error=%v\n", workerID, idx, err)
					}
					continue
				}

				statusMu.Lock()
				statusCodes[resp.StatusCode]++
				statusMu.Unlock()

				ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
				if ok {
					atomic.AddInt32(&success, 1)
				} else {
					atomic.AddInt32(&failure, 1)
				}

				upstream := resp.Header.Get("X-Manifold-Backend")
				if upstream == "" {
					upstream = "(unknown)"
				}

				targetMu.Lock()
				ts, found := targetStats[upstream]
				if !found {
					ts = &TargetStats{}
					targetStats[upstream] = ts
				}
				ts.Count++
				if ok {
					ts.Success++
				} else {
					ts.Failure++
				}
				ts.Latencies = append(ts.Latencies, dur)
				targetMu.Unlock()

				if csvWriter != nil {
					csvMu.Lock()
					csvWriter.Write([]string{
						fmt.Sprintf("%d", idx),
						time.Now().Format(time.RFC3339Nano),
						upstream,
						fmt.Sprintf("%d", resp.StatusCode),
						fmt.Sprintf("%.3f", float64(dur.Microseconds())/1000.0),
					})
					csvMu.Unlock()
				}

				if *verbose {
					fmt.Printf("[%d] idx=%d worker=%s status=%d dur=%v\n", workerID, idx, upstream, resp.StatusCode, dur)
				}

				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}(i)
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	testEnd := time.Now()

	if csvWriter != nil {
		csvWriter.Flush()
		csvFile.Close()
	}

	totalDuration := testEnd.Sub(testStart)
	throughput := float64(total) / totalDuration.Seconds()

	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Target: %s\n", *url)
	fmt.Printf("Requests: %d  Concurrency: %d\n", *requests, *concurrency)
	fmt.Printf("Total sent: %d  Success: %d  Failure: %d\n", total, success, failure)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", totalDuration, throughput)

	fmt.Println("\nStatus codes:")
	var scKeys []int
	for k := range statusCodes {
		scKeys = append(scKeys, k)
	}
	sort.Ints(scKeys)
	for _, k := range scKeys {
		fmt.Printf("  %d -> %d\n", k, statusCodes[k])
	}

	fmt.Println("\nWorker distribution & stats:")
	var targetKeys []string
	for k := range targetStats {
		targetKeys = append(targetKeys, k)
	}
	sort.Strings(targetKeys)
	for _, k := range targetKeys {
		ts := targetStats[k]
		fillPercentiles(ts)
		share := float64(ts.Count) / float64(total) * 100
		fmt.Printf("  %s: count=%d (%.1f%%) success=%d failure=%d avg=%.2fms p50=%.2fms p95=%.2fms p99=%.2fms\n",
			k, ts.Count, share, ts.Success, ts.Failure, ts.AvgMs, ts.P50Ms, ts.P95Ms, ts.P99Ms)
	}

	if *outJSON != "" {
		summary := Summary{
			Target:      *url,
			Requests:    *requests,
			Concurrency: *concurrency,
			Success:     success,
			Failure:     failure,
			DurationSec: totalDuration.Seconds(),
			Throughput:  throughput,
			StatusCodes: statusCodes,
			Workers:     targetStats,
		}

		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal summary: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*outJSON, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nSummary written to %s\n", *outJSON)
	}
}

func fillPercentiles(ts *TargetStats) {
	n := len(ts.Latencies)
	if n == 0 {
		return
	}

	sorted := make([]time.Duration, n)
	copy(sorted, ts.Latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }

	ts.AvgMs = ms(sum / time.Duration(n))
	ts.P50Ms = ms(pick(sorted, 0.50))
	ts.P90Ms = ms(pick(sorted, 0.90))
	ts.P95Ms = ms(pick(sorted, 0.95))
	ts.P99Ms = ms(pick(sorted, 0.99))
}

func pick(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
