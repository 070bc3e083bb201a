// main.go - Load generator for the tracking endpoint
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"trafficlens/internal/events"
)

// LoadConfig holds the configuration for a load run
type LoadConfig struct {
	BaseURL      string
	Concurrency  int
	Duration     time.Duration
	EventsPerSec int
	Visitors     int
	Timeout      time.Duration
}

// Result captures the result of a single request
type Result struct {
	Duration   time.Duration
	StatusCode int
	Error      error
}

// LoadStats aggregates results. Only the collector goroutine touches it.
type LoadStats struct {
	Total       int
	Succeeded   int
	Failed      int
	Latencies   []time.Duration
	StatusCodes map[int]int
	StartTime   time.Time
	EndTime     time.Time
}

var (
	paths = []struct{ url, title string }{
		{"/", "Home"},
		{"/pricing", "Pricing"},
		{"/docs", "Documentation"},
		{"/blog", "Blog"},
		{"/blog/launch", "We launched"},
		{"/about", "About"},
		{"/contact", "Contact"},
	}
	referrerURLs = []string{
		"https://www.google.com/search",
		"https://news.ycombinator.com/",
		"https://twitter.com/",
		"https://github.com/",
		"https://duckduckgo.com/",
	}
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
	}
)

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "Base URL of the API")
	concurrency := flag.Int("c", 10, "Number of concurrent clients")
	duration := flag.Duration("d", 30*time.Second, "Duration of the run")
	eventsPerSec := flag.Int("rate", 0, "Target events per second (0 = unlimited)")
	visitors := flag.Int("visitors", 500, "Size of the simulated visitor population")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := &LoadConfig{
		BaseURL:      strings.TrimRight(*baseURL, "/"),
		Concurrency:  max(*concurrency, 1),
		Duration:     *duration,
		EventsPerSec: *eventsPerSec,
		Visitors:     max(*visitors, 1),
		Timeout:      *timeout,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runCtx, runCancel := context.WithTimeout(ctx, cfg.Duration)
	defer runCancel()

	logger.Info("Starting load run",
		slog.String("target", cfg.BaseURL+"/api/analytics/track"),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Duration("duration", cfg.Duration),
		slog.Int("rate", cfg.EventsPerSec))

	stats := &LoadStats{StatusCodes: make(map[int]int), StartTime: time.Now()}
	for result := range run(runCtx, cfg) {
		stats.add(result)
	}
	stats.EndTime = time.Now()

	stats.print(os.Stdout)
}

// run starts the workers and returns a channel that is closed once they all stop.
func run(ctx context.Context, cfg *LoadConfig) <-chan Result {
	results := make(chan Result, cfg.Concurrency*10)
	var wg sync.WaitGroup

	var perWorker time.Duration
	if cfg.EventsPerSec > 0 {
		perWorker = time.Duration(float64(time.Second) * float64(cfg.Concurrency) / float64(cfg.EventsPerSec))
	}

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{Timeout: cfg.Timeout}
			rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(workerID)))

			var ticker *time.Ticker
			if perWorker > 0 {
				ticker = time.NewTicker(perWorker)
				defer ticker.Stop()
			}

			for {
				if ticker != nil {
					select {
					case <-ticker.C:
					case <-ctx.Done():
						return
					}
				} else if ctx.Err() != nil {
					return
				}

				results <- send(ctx, client, cfg, randomView(rng, cfg.Visitors))
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// randomView builds a tracking payload. Visitor and session ids are drawn from a fixed
// population so repeat visits and multi-page sessions occur.
func randomView(rng *rand.Rand, population int) events.TrackInput {
	visitor := rng.IntN(population)
	page := paths[rng.IntN(len(paths))]

	input := events.TrackInput{
		PageURL:   page.url,
		PageTitle: page.title,
		VisitorID: fmt.Sprintf("load-visitor-%d", visitor),
		SessionID: fmt.Sprintf("load-session-%d-%d", visitor, rng.IntN(3)),
		UserAgent: userAgents[rng.IntN(len(userAgents))],
	}
	if rng.Float64() < 0.6 {
		input.Referrer = referrerURLs[rng.IntN(len(referrerURLs))]
	}
	return input
}

func send(ctx context.Context, client *http.Client, cfg *LoadConfig, input events.TrackInput) Result {
	payload, err := json.Marshal(input)
	if err != nil {
		return Result{Error: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/analytics/track", bytes.NewReader(payload))
	if err != nil {
		return Result{Error: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", input.UserAgent)

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Duration: elapsed, Error: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return Result{Duration: elapsed, StatusCode: resp.StatusCode}
}

func (s *LoadStats) add(r Result) {
	// Requests cut short by the end of the run are not counted.
	if r.Error != nil && r.StatusCode == 0 && strings.Contains(r.Error.Error(), context.DeadlineExceeded.Error()) {
		return
	}

	s.Total++
	if r.Error != nil {
		s.Failed++
		return
	}

	s.StatusCodes[r.StatusCode]++
	s.Latencies = append(s.Latencies, r.Duration)
	if r.StatusCode == http.StatusCreated {
		s.Succeeded++
	} else {
		s.Failed++
	}
}

func (s *LoadStats) percentile(p float64) time.Duration {
	if len(s.Latencies) == 0 {
		return 0
	}
	idx := int(float64(len(s.Latencies)-1) * p)
	return s.Latencies[idx]
}

func (s *LoadStats) print(out io.Writer) {
	elapsed := s.EndTime.Sub(s.StartTime)
	slices.Sort(s.Latencies)

	var total time.Duration
	for _, d := range s.Latencies {
		total += d
	}
	var avg time.Duration
	if len(s.Latencies) > 0 {
		avg = total / time.Duration(len(s.Latencies))
	}

	fmt.Fprintln(out, "\nLoad Run Results:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "METRIC\tVALUE\n")
	fmt.Fprintf(w, "------\t-----\n")
	fmt.Fprintf(w, "Duration\t%v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Total Requests\t%d\n", s.Total)
	fmt.Fprintf(w, "Successful Requests\t%d\n", s.Succeeded)
	fmt.Fprintf(w, "Failed Requests\t%d\n", s.Failed)
	if elapsed > 0 {
		fmt.Fprintf(w, "Requests Per Second\t%.2f\n", float64(s.Total)/elapsed.Seconds())
	}
	fmt.Fprintf(w, "Avg Latency\t%v\n", avg)
	fmt.Fprintf(w, "p50 Latency\t%v\n", s.percentile(0.50))
	fmt.Fprintf(w, "p95 Latency\t%v\n", s.percentile(0.95))
	fmt.Fprintf(w, "p99 Latency\t%v\n", s.percentile(0.99))
	w.Flush()

	if len(s.StatusCodes) == 0 {
		return
	}

	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	fmt.Fprintln(out, "\nStatus Code Distribution:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STATUS CODE\tCOUNT\tPERCENTAGE\n")
	for _, code := range codes {
		count := s.StatusCodes[code]
		fmt.Fprintf(w, "%d\t%d\t%.2f%%\n", code, count, 100*float64(count)/float64(s.Total))
	}
	w.Flush()
}
