// Package playback replays previously recorded request streams against a
// fresh handler sharing one MemcStore, aggregating latency and throughput
// statistics for deterministic benchmarking.
package playback

import (
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	timecache "github.com/agilira/go-timecache"

	"github.com/agilira/memcrs-go/pkg/recorder"
	"github.com/agilira/memcrs-go/pkg/server"
)

// Report aggregates one playback run's latency and throughput statistics,
// field for field matching the numbers the control plane's
// /playback-status endpoint reports.
type Report struct {
	Ops        uint64  `json:"ops"`
	Throughput float64 `json:"throughput"`
	Avg        float64 `json:"avg"`
	C50        uint64  `json:"c50"`
	C90        uint64  `json:"c90"`
	C99        uint64  `json:"c99"`
	C999       uint64  `json:"c99_9"`
	C9999      uint64  `json:"c99_99"`
	Min        uint64  `json:"min"`
	Max        uint64  `json:"max"`
}

// Status is the shared, mutex-guarded playback state: one playback may be
// in flight at a time.
type Status struct {
	mu       sync.Mutex
	name     string
	startMs  uint64
	finishMs *uint64
	report   *Report
}

// NewStatus builds a Status with no playback ever started (FinishTime set,
// so the first Start call succeeds).
func NewStatus() *Status {
	now := nowMs()
	return &Status{startMs: now, finishMs: &now}
}

// Start marks a playback named name as running. It refuses (returns false)
// if another playback is already in flight.
func (s *Status) Start(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishMs == nil {
		return false
	}
	s.name = name
	s.startMs = nowMs()
	s.finishMs = nil
	s.report = nil
	return true
}

// Stop records report and marks the playback finished.
func (s *Status) Stop(report Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishMs != nil {
		return
	}
	now := nowMs()
	s.finishMs = &now
	s.report = &report
}

// Snapshot is the JSON-friendly view returned by /playback-status.
type Snapshot struct {
	Name     string  `json:"name"`
	StartMs  uint64  `json:"start_time_ms"`
	FinishMs *uint64 `json:"finish_time_ms,omitempty"`
	Report   *Report `json:"report,omitempty"`
}

func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Name: s.name, StartMs: s.startMs, FinishMs: s.finishMs, Report: s.report}
}

func nowMs() uint64 {
	return uint64(timecache.CachedTimeNano() / 1e6)
}

// Player loads recordings and replays them.
type Player struct {
	dir         string
	concurrency int
}

// NewPlayer builds a Player reading recording files from dir with up to
// concurrency files loaded in parallel.
func NewPlayer(dir string, concurrency int) *Player {
	if concurrency <= 0 {
		concurrency = 16
	}
	return &Player{dir: dir, concurrency: concurrency}
}

// Dir returns the directory Play reads recording files from, and Dump
// (called from the control plane) writes them to.
func (p *Player) Dir() string {
	return p.dir
}

type connResult struct {
	latenciesNs []uint64
	ops         uint64
	elapsed     time.Duration
}

// Play loads every {name}-*.bin file, replays each connection's captured
// requests on its own goroutine (pinned to a core where the platform
// supports it, best-effort), and aggregates a Report.
func (p *Player) Play(name string, handlerFactory func() *server.Handler) (Report, error) {
	paths, err := filepath.Glob(filepath.Join(p.dir, name+"-*.bin"))
	if err != nil {
		return Report{}, err
	}

	type loaded struct {
		connID int
		reqs   []recordedRequest
	}

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var all []loaded

	for _, path := range paths {
		connID := parseConnID(path, name)
		sem <- struct{}{}
		wg.Add(1)
		go func(path string, connID int) {
			defer wg.Done()
			defer func() { <-sem }()
			reqs, err := recorder.LoadConnection(path)
			if err != nil {
				return
			}
			mu.Lock()
			all = append(all, loaded{connID: connID, reqs: toRecorded(reqs)})
			mu.Unlock()
		}(path, connID)
	}
	wg.Wait()

	numConns := len(all)
	numCores := runtime.NumCPU()

	results := make([]connResult, numConns)
	var replayWg sync.WaitGroup
	for i, l := range all {
		replayWg.Add(1)
		go func(i int, l loaded) {
			defer replayWg.Done()
			if numConns > 0 {
				core := (l.connID * (max1(numCores) / max1(numConns)))
				pinToCore(core) // advisory; failure is non-fatal
			}
			results[i] = replayConnection(l.reqs, handlerFactory())
		}(i, l)
	}
	replayWg.Wait()

	return aggregate(results), nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func parseConnID(path, name string) int {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".bin")
	base = strings.TrimPrefix(base, name+"-")
	id, _ := strconv.Atoi(base)
	return id
}

func aggregate(results []connResult) Report {
	var allLatencies []uint64
	var totalOps uint64
	var totalThroughput float64
	for _, r := range results {
		allLatencies = append(allLatencies, r.latenciesNs...)
		totalOps += r.ops
		if r.elapsed > 0 {
			totalThroughput += float64(r.ops) / r.elapsed.Seconds()
		}
	}
	if len(allLatencies) == 0 {
		return Report{}
	}
	sort.Slice(allLatencies, func(i, j int) bool { return allLatencies[i] < allLatencies[j] })

	var sum uint64
	for _, l := range allLatencies {
		sum += l
	}

	return Report{
		Ops:        totalOps,
		Throughput: totalThroughput,
		Avg:        float64(sum) / float64(len(allLatencies)),
		C50:        percentile(allLatencies, 0.50),
		C90:        percentile(allLatencies, 0.90),
		C99:        percentile(allLatencies, 0.99),
		C999:       percentile(allLatencies, 0.999),
		C9999:      percentile(allLatencies, 0.9999),
		Min:        allLatencies[0],
		Max:        allLatencies[len(allLatencies)-1],
	}
}

func percentile(sorted []uint64, p float64) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
