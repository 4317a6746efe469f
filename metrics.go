package reactor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks optional, low-overhead runtime statistics for a Reactor:
// dispatch latency, scheduler wheel depth, and stream byte high-water marks.
// A Reactor allocates a Metrics only when constructed WithMetrics(true), and
// then updates only Wheel itself; the other fields change only when code
// records into them directly. Nothing here is on the hot path unless
// explicitly enabled.
//
// All Metrics methods are safe for concurrent use, so an embedder can read
// them from a monitoring goroutine while the reactor thread keeps running.
type Metrics struct {
	Latency LatencyMetrics
	Wheel   WheelMetrics
	Stream  StreamMetrics

	mu  sync.Mutex
	TPS float64
}

// LatencyMetrics tracks dispatch-latency distribution (time from a
// readiness event or timer fire jiffy to callback invocation) using the
// P-Square algorithm for O(1) streaming percentile estimation.
type LatencyMetrics struct {
	psquare *pSquareMultiQuantile

	mu sync.RWMutex

	sampleIdx   int
	sampleCount int
	samples     [sampleSize]time.Duration

	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
	Max time.Duration

	Mean time.Duration
	Sum  time.Duration
}

// sampleSize bounds the rolling exact-percentile buffer used below five
// samples, where P-Square hasn't yet converged.
const sampleSize = 1000

// Record records one latency sample.
func (l *LatencyMetrics) Record(duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.psquare == nil {
		l.psquare = newPSquareMultiQuantile(0.50, 0.90, 0.95, 0.99)
	}
	l.psquare.Update(float64(duration))

	if l.sampleCount >= sampleSize {
		old := l.samples[l.sampleIdx]
		l.Sum -= old
	}
	l.samples[l.sampleIdx] = duration
	l.Sum += duration
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// Sample recomputes the cached percentile fields and returns the sample
// count used. Below five samples it falls back to exact sorting, since
// P-Square hasn't converged yet.
func (l *LatencyMetrics) Sample() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		return 0
	}

	if count < 5 || l.psquare == nil {
		sorted := make([]time.Duration, count)
		copy(sorted, l.samples[:count])
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		l.P50 = sorted[percentileIndex(count, 50)]
		l.P90 = sorted[percentileIndex(count, 90)]
		l.P95 = sorted[percentileIndex(count, 95)]
		l.P99 = sorted[percentileIndex(count, 99)]
		l.Max = sorted[count-1]
		l.Mean = l.Sum / time.Duration(count)
		return count
	}

	l.P50 = time.Duration(l.psquare.Quantile(0))
	l.P90 = time.Duration(l.psquare.Quantile(1))
	l.P95 = time.Duration(l.psquare.Quantile(2))
	l.P99 = time.Duration(l.psquare.Quantile(3))
	l.Max = time.Duration(l.psquare.Max())
	l.Mean = l.Sum / time.Duration(count)
	return count
}

func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

// WheelMetrics tracks how full the scheduler's near and far wheels are, an
// early-warning signal for a reactor that's accumulating more timers than
// it's retiring.
type WheelMetrics struct {
	mu sync.RWMutex

	NearCurrent int
	NearMax     int

	FarCurrent [4]int
	FarMax     [4]int

	nearEMAInit bool
	NearAvg     float64
}

// UpdateNear records the current occupied-slot count of the near wheel.
func (q *WheelMetrics) UpdateNear(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.NearCurrent = depth
	if depth > q.NearMax {
		q.NearMax = depth
	}
	if !q.nearEMAInit {
		q.NearAvg = float64(depth)
		q.nearEMAInit = true
	} else {
		q.NearAvg = 0.9*q.NearAvg + 0.1*float64(depth)
	}
}

// UpdateFar records the current occupied-slot count of far wheel level k.
func (q *WheelMetrics) UpdateFar(level int, depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if level < 0 || level >= len(q.FarCurrent) {
		return
	}
	q.FarCurrent[level] = depth
	if depth > q.FarMax[level] {
		q.FarMax[level] = depth
	}
}

// StreamMetrics tracks byte-level high-water behavior for one or more
// Stream instances feeding a reactor.
type StreamMetrics struct {
	mu sync.RWMutex

	BytesCurrent int
	BytesMax     int

	HighWaterCrossings int64
}

// UpdateBytes records a Stream's current buffered byte count; crossing
// highWater increments HighWaterCrossings.
func (q *StreamMetrics) UpdateBytes(size, highWater int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	wasAbove := q.BytesCurrent > highWater
	q.BytesCurrent = size
	if size > q.BytesMax {
		q.BytesMax = size
	}
	if size > highWater && !wasAbove {
		q.HighWaterCrossings++
	}
}

// TPSCounter tracks events-per-second (I/O dispatches, timer fires) with a
// rolling window of fixed-size time buckets.
type TPSCounter struct {
	lastRotation atomic.Value // time.Time
	buckets      []int64
	bucketSize   time.Duration
	windowSize   time.Duration
	mu           sync.Mutex
}

// NewTPSCounter creates a counter over windowSize, divided into
// bucketSize-wide buckets (bucketSize must be > 0 and <= windowSize).
func NewTPSCounter(windowSize, bucketSize time.Duration) *TPSCounter {
	if windowSize <= 0 {
		panic("reactor: windowSize must be positive")
	}
	if bucketSize <= 0 {
		panic("reactor: bucketSize must be positive")
	}
	if bucketSize > windowSize {
		panic("reactor: bucketSize cannot exceed windowSize")
	}

	bucketCount := int(windowSize / bucketSize)
	counter := &TPSCounter{
		buckets:    make([]int64, bucketCount),
		bucketSize: bucketSize,
		windowSize: windowSize,
	}
	counter.lastRotation.Store(time.Now())
	return counter
}

// Increment records one event.
func (t *TPSCounter) Increment() {
	t.rotate()
	t.mu.Lock()
	t.buckets[len(t.buckets)-1]++
	t.mu.Unlock()
}

func (t *TPSCounter) rotate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	lastRotation := t.lastRotation.Load().(time.Time)
	elapsed := now.Sub(lastRotation)

	bucketsToAdvanceInt64 := int64(elapsed) / int64(t.bucketSize)
	if bucketsToAdvanceInt64 < 0 {
		bucketsToAdvanceInt64 = int64(len(t.buckets))
	} else if bucketsToAdvanceInt64 > int64(len(t.buckets)) {
		bucketsToAdvanceInt64 = int64(len(t.buckets))
	}
	bucketsToAdvance := int(bucketsToAdvanceInt64)

	if bucketsToAdvance >= len(t.buckets) {
		for i := range t.buckets {
			t.buckets[i] = 0
		}
		t.lastRotation.Store(now)
		return
	}
	if bucketsToAdvance <= 0 {
		return
	}

	copy(t.buckets, t.buckets[bucketsToAdvance:])
	for i := len(t.buckets) - bucketsToAdvance; i < len(t.buckets); i++ {
		t.buckets[i] = 0
	}
	t.lastRotation.Store(lastRotation.Add(time.Duration(bucketsToAdvance) * t.bucketSize))
}

// TPS returns the current events-per-second rate.
func (t *TPSCounter) TPS() float64 {
	t.rotate()
	t.mu.Lock()
	defer t.mu.Unlock()

	var sum int64
	for _, count := range t.buckets {
		sum += count
	}
	if sum == 0 {
		return 0
	}
	monitoredDuration := float64(len(t.buckets)) * t.bucketSize.Seconds()
	return float64(sum) / monitoredDuration
}
