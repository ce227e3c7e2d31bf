package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
)

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

// stockReport: сверка остатка после прогона.
type stockReport struct {
	Seeded     int  `json:"seeded"`
	Sold       int  `json:"sold"`
	Remaining  int  `json:"remaining"`
	Consistent bool `json:"consistent"`
}

type report struct {
	StartedAt       time.Time               `json:"started_at"`
	DurationSeconds float64                 `json:"duration_seconds"`
	TotalSells      int64                   `json:"total_sells"`
	AcceptedSells   int64                   `json:"accepted_sells"`
	RejectedSells   int64                   `json:"rejected_sells"`
	FailedSells     int64                   `json:"failed_sells"`
	ErrorRate       float64                 `json:"error_rate"`
	RPS             float64                 `json:"rps"`
	SellLatencyMs   latencySummary          `json:"sell_latency_ms"`
	Methods         map[string]methodReport `json:"methods"`
	Stock           stockReport             `json:"stock"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

// collector накапливает коды и задержки вызовов по методам.
type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

// buildReport сводит статистику SellSocks. FailedPrecondition (нехватка остатка)
// считается ожидаемым отказом, а не ошибкой.
func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	if sells := c.methods[methodSell]; sells != nil {
		result.TotalSells = sells.calls
		result.AcceptedSells = sells.success
		result.RejectedSells = sells.codes[codes.FailedPrecondition.String()]
		result.FailedSells = sells.failed - result.RejectedSells
		result.ErrorRate = ratio(result.FailedSells, result.TotalSells)
		result.SellLatencyMs = buildLatencySummary(sells.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalSells) / duration.Seconds()
	}

	return result
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	fmt.Fprintln(w, "Load test summary")
	fmt.Fprintf(w, "mode=%s run=%s sells=%d accepted=%d rejected=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalSells,
		result.AcceptedSells,
		result.RejectedSells,
		result.FailedSells,
		result.ErrorRate,
	)
	fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Fprintf(w, "sell latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.SellLatencyMs.Min,
		result.SellLatencyMs.Avg,
		result.SellLatencyMs.P50,
		result.SellLatencyMs.P95,
		result.SellLatencyMs.P99,
		result.SellLatencyMs.Max,
	)
	fmt.Fprintf(w, "stock: seeded=%d sold=%d remaining=%d consistent=%t\n",
		result.Stock.Seeded, result.Stock.Sold, result.Stock.Remaining, result.Stock.Consistent)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		codeNames := make([]string, 0, len(stats.Codes))
		for code, count := range stats.Codes {
			codeNames = append(codeNames, fmt.Sprintf("%s=%d", code, count))
		}
		sort.Strings(codeNames)
		fmt.Fprintf(w, "%s: calls=%d p95=%.2fms codes[%s]\n",
			name, stats.Calls, stats.LatencyMs.P95, strings.Join(codeNames, " "))
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile — линейная интерполяция по отсортированной выборке.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}
