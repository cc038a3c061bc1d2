package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// Concurrent booking load driver. Workers fetch availability and race to
// book random windows against the same doctors; the conflict rate is the
// point, not a problem: it demonstrates that exactly one writer wins each
// (doctor, date, start_time) position.

type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	DoctorIDs  []uuid.UUID
	RangeDays  int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[len(latencies)*50/100]
	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]
	return
}

func main() {
	log.SetFlags(log.LstdFlags)
	log.Println("simulate starting")

	cfg, err := loadSimConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	availability := &OperationMetrics{}
	bookings := &OperationMetrics{}

	client := &http.Client{Timeout: 10 * time.Second}
	deadline := time.Now().Add(cfg.Duration)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))
			for time.Now().Before(deadline) {
				runIteration(client, cfg, rng, availability, bookings)
			}
		}(i)
	}
	wg.Wait()

	report("availability", availability)
	report("booking", bookings)

	if bookings.Error > 0 {
		os.Exit(1)
	}
}

type availabilityResponse struct {
	Days []struct {
		Date  string `json:"date"`
		Slots []struct {
			StartTime string `json:"start_time"`
		} `json:"slots"`
	} `json:"days"`
}

func runIteration(client *http.Client, cfg SimConfig, rng *rand.Rand, availability, bookings *OperationMetrics) {
	doctorID := cfg.DoctorIDs[rng.Intn(len(cfg.DoctorIDs))]

	start := time.Now().UTC()
	end := start.AddDate(0, 0, cfg.RangeDays)

	url := fmt.Sprintf("%s/slots/available?doctor_id=%s&start_date=%s&end_date=%s",
		cfg.APIBaseURL, doctorID, start.Format("02-01-2006"), end.Format("02-01-2006"))

	t0 := time.Now()
	resp, err := client.Get(url)
	availability.Record(time.Since(t0), err == nil && resp != nil && resp.StatusCode == http.StatusOK, false)
	if err != nil {
		return
	}

	var avail availabilityResponse
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &avail) != nil {
		return
	}

	// Collect the open windows and race for one of them.
	type candidate struct{ date, start string }
	var candidates []candidate
	for _, day := range avail.Days {
		for _, slot := range day.Slots {
			candidates = append(candidates, candidate{date: day.Date, start: slot.StartTime})
		}
	}
	if len(candidates) == 0 {
		return
	}
	pick := candidates[rng.Intn(len(candidates))]

	payload, _ := json.Marshal(map[string]string{
		"doctor_id":     doctorID.String(),
		"date":          pick.date,
		"start_time":    pick.start,
		"name":          gofakeit.Name(),
		"mobile_number": gofakeit.Phone(),
		"gender":        gofakeit.RandomString([]string{"male", "female", "other"}),
		"source":        "simulate",
	})

	t0 = time.Now()
	resp, err = client.Post(cfg.APIBaseURL+"/slots/book", "application/json", bytes.NewReader(payload))
	if err != nil {
		bookings.Record(time.Since(t0), false, false)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	bookings.Record(time.Since(t0),
		resp.StatusCode == http.StatusCreated,
		resp.StatusCode == http.StatusConflict)
}

func report(name string, m *OperationMetrics) {
	avg, min, max, p50, p95 := m.Stats()
	log.Printf("%s: total=%d success=%d conflict=%d error=%d", name, m.Total, m.Success, m.Conflict, m.Error)
	log.Printf("%s latency: avg=%s min=%s max=%s p50=%s p95=%s", name, avg, min, max, p50, p95)
}

func loadSimConfig() (SimConfig, error) {
	cfg := SimConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
		Duration:   30 * time.Second,
		Workers:    10,
		RangeDays:  7,
	}

	if v := os.Getenv("SIM_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SIM_DURATION: %w", err)
		}
		cfg.Duration = d
	}
	if v := os.Getenv("SIM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid SIM_WORKERS %q", v)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("SIM_RANGE_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid SIM_RANGE_DAYS %q", v)
		}
		cfg.RangeDays = n
	}

	raw := os.Getenv("DOCTOR_IDS")
	if raw == "" {
		return cfg, fmt.Errorf("DOCTOR_IDS is required (comma-separated UUIDs, see cmd/seed output)")
	}
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return cfg, fmt.Errorf("invalid doctor id %q: %w", part, err)
		}
		cfg.DoctorIDs = append(cfg.DoctorIDs, id)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
