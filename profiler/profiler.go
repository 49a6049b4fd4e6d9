// Package profiler - per-stage timing for the frame pipeline.
package profiler

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/montanaflynn/stats"
)

// Stage names recorded by the batch runner.
const (
	StageRead   = "read"
	StageDetect = "detect"
	StageRender = "render"
	StageEncode = "encode"
)

// DefaultMaxSamples bounds the durations kept per operation.
const DefaultMaxSamples = 10000

// Summary is the timing distribution of a single operation.
type Summary struct {
	Name  string
	Count int64
	Total time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: count=%d, total=%v, avg=%v, p50=%v, p95=%v, min=%v, max=%v",
		s.Name, s.Count,
		s.Total.Truncate(time.Millisecond),
		s.Mean.Truncate(time.Microsecond),
		s.P50.Truncate(time.Microsecond),
		s.P95.Truncate(time.Microsecond),
		s.Min.Truncate(time.Microsecond),
		s.Max.Truncate(time.Microsecond))
}

// timeTracker tracks operation timing statistics.
type timeTracker struct {
	durations []float64 // nanoseconds, newest last
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// Profiler records how long named operations take. It is safe for concurrent
// use.
type Profiler struct {
	mu             sync.Mutex
	maxSamples     int
	startTime      time.Time
	operationTimes map[string]*timeTracker
}

// New creates a profiler keeping at most maxSamples durations per operation
// for the percentile estimates. Zero selects DefaultMaxSamples.
func New(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Profiler{
		maxSamples:     maxSamples,
		startTime:      time.Now(),
		operationTimes: make(map[string]*timeTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func(): Call it when the operation completes. A nil profiler returns a no-op.
func (p *Profiler) StartOperation(name string) func() {
	if p == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Record adds one completed operation.
func (p *Profiler) Record(name string, duration time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operationTimes[name]
	if !exists {
		tracker = &timeTracker{
			minTime: duration,
			maxTime: duration,
		}
		p.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, float64(duration))
	if len(tracker.durations) > p.maxSamples {
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Summaries returns the timing distribution of every operation, sorted by name.
func (p *Profiler) Summaries() []Summary {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Summary, 0, len(p.operationTimes))
	for name, tracker := range p.operationTimes {
		s := Summary{
			Name:  name,
			Count: tracker.count,
			Total: tracker.totalTime,
			Min:   tracker.minTime,
			Max:   tracker.maxTime,
		}
		data := stats.Float64Data(tracker.durations)
		if mean, err := data.Mean(); err == nil {
			s.Mean = time.Duration(mean)
		}
		if p50, err := data.Percentile(50); err == nil {
			s.P50 = time.Duration(p50)
		}
		if p95, err := data.Percentile(95); err == nil {
			s.P95 = time.Duration(p95)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset discards all recorded operations.
func (p *Profiler) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.operationTimes = make(map[string]*timeTracker)
	p.startTime = time.Now()
}

// Report logs one line per operation plus the current heap size.
func (p *Profiler) Report(log logs.Log, title string) {
	if p == nil {
		return
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.mu.Lock()
	uptime := time.Since(p.startTime)
	p.mu.Unlock()

	log.Infof("Profile %s: uptime %v, heap %s, %d goroutines",
		title, uptime.Truncate(time.Millisecond), formatBytes(mem.HeapAlloc), runtime.NumGoroutine())
	for _, s := range p.Summaries() {
		log.Infof("  %s", s)
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
