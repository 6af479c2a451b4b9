// Command loadgen submits randomized scores against a running instance and
// reports the outcome distribution. Useful for smoke-testing rate limits and
// leaderboard churn.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Default configuration constants.
const (
	defaultSubmissions = 1000
	defaultWorkers     = 8
	defaultTopCount    = 10
	defaultTimeout     = 10 * time.Second
	defaultRunTimeout  = 5 * time.Minute

	maxSurvivalSeconds = 20.0
	tagAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type counters struct {
	accepted    atomic.Int64
	validation  atomic.Int64
	rateLimited atomic.Int64
	duplicates  atomic.Int64
	failures    atomic.Int64
}

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		submissions = flag.Int("n", defaultSubmissions, "Number of score submissions to send")
		workers     = flag.Int("workers", defaultWorkers, "Number of concurrent workers")
		topCount    = flag.Int("top", defaultTopCount, "Number of leaderboard entries to fetch at the end")
		players     = flag.Int("players", 50, "Size of the simulated player population")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	client := &http.Client{Timeout: *timeout}
	rng := rand.New(rand.NewSource(*seed))

	tags := make([]string, *players)
	for i := range tags {
		tags[i] = randomTag(rng)
	}

	jobs := make(chan submission, *workers)
	var c counters
	var wg sync.WaitGroup

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				submitOne(ctx, client, *baseURL, sub, &c)
			}
		}()
	}

	start := time.Now()
feed:
	for i := 0; i < *submissions; i++ {
		select {
		case jobs <- randomSubmission(rng, tags):
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("sent %d submissions in %s (%.0f/s)\n",
		*submissions, elapsed.Round(time.Millisecond),
		float64(*submissions)/elapsed.Seconds())
	fmt.Printf("  accepted:     %d\n", c.accepted.Load())
	fmt.Printf("  validation:   %d\n", c.validation.Load())
	fmt.Printf("  rate limited: %d\n", c.rateLimited.Load())
	fmt.Printf("  duplicates:   %d\n", c.duplicates.Load())
	fmt.Printf("  failures:     %d\n", c.failures.Load())

	if err := printTop(ctx, client, *baseURL, *topCount); err != nil {
		os.Stderr.WriteString("failed to fetch leaderboard: " + err.Error() + "\n")
	}
}

type submission struct {
	PlayerTag        string  `json:"playerTag"`
	SurvivalTime     float64 `json:"survivalTime"`
	SessionSignature string  `json:"sessionSignature"`
	ClientTimestamp  string  `json:"clientTimestamp"`
}

func randomTag(rng *rand.Rand) string {
	n := 1 + rng.Intn(3)
	b := make([]byte, n)
	for i := range b {
		b[i] = tagAlphabet[rng.Intn(len(tagAlphabet))]
	}
	return string(b)
}

func randomSubmission(rng *rand.Rand, tags []string) submission {
	survival := float64(rng.Intn(int(maxSurvivalSeconds*100))+5) / 100
	sig := sha256.Sum256([]byte(fmt.Sprintf("session-%d-%f", rng.Int63(), survival)))
	return submission{
		PlayerTag:        tags[rng.Intn(len(tags))],
		SurvivalTime:     survival,
		SessionSignature: hex.EncodeToString(sig[:]),
		ClientTimestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

func submitOne(ctx context.Context, client *http.Client, baseURL string, sub submission, c *counters) {
	body, err := json.Marshal(sub)
	if err != nil {
		c.failures.Add(1)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/scores", bytes.NewReader(body))
	if err != nil {
		c.failures.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		c.failures.Add(1)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		c.accepted.Add(1)
	case http.StatusBadRequest:
		c.validation.Add(1)
	case http.StatusTooManyRequests:
		c.rateLimited.Add(1)
	case http.StatusConflict:
		c.duplicates.Add(1)
	default:
		c.failures.Add(1)
	}
}

func printTop(ctx context.Context, client *http.Client, baseURL string, count int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/scores/top?count=%d", baseURL, count), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var top struct {
		Entries []struct {
			Rank         int     `json:"rank"`
			PlayerTag    string  `json:"playerTag"`
			SurvivalTime float64 `json:"survivalTime"`
		} `json:"entries"`
		TotalEntries int `json:"totalEntries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&top); err != nil {
		return err
	}

	fmt.Printf("leaderboard (%d entries):\n", top.TotalEntries)
	for _, e := range top.Entries {
		fmt.Printf("  #%-3d %-3s %6.2fs\n", e.Rank, e.PlayerTag, e.SurvivalTime)
	}
	return nil
}
