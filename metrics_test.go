package reactor

import (
	"testing"
	"time"
)

func TestLatencyMetricsRecordAndSample(t *testing.T) {
	var m LatencyMetrics
	for i := 1; i <= 100; i++ {
		m.Record(time.Duration(i) * time.Millisecond)
	}
	count := m.Sample()
	if count != 100 {
		t.Fatalf("Sample() count = %d, want 100", count)
	}
	if m.Max != 100*time.Millisecond {
		t.Fatalf("Max = %v, want 100ms", m.Max)
	}
	if m.P50 <= 0 {
		t.Fatalf("P50 should be positive after 100 samples, got %v", m.P50)
	}
}

func TestLatencyMetricsExactFallbackBelowFive(t *testing.T) {
	var m LatencyMetrics
	m.Record(10 * time.Millisecond)
	m.Record(20 * time.Millisecond)
	count := m.Sample()
	if count != 2 {
		t.Fatalf("Sample() count = %d, want 2", count)
	}
	if m.Max != 20*time.Millisecond {
		t.Fatalf("Max = %v, want 20ms", m.Max)
	}
}

func TestWheelMetricsUpdateNearFar(t *testing.T) {
	var m WheelMetrics
	m.UpdateNear(5)
	m.UpdateNear(12)
	if m.NearCurrent != 12 || m.NearMax != 12 {
		t.Fatalf("NearCurrent/NearMax = %d/%d, want 12/12", m.NearCurrent, m.NearMax)
	}
	m.UpdateNear(3)
	if m.NearMax != 12 {
		t.Fatalf("NearMax regressed to %d after a smaller sample", m.NearMax)
	}

	m.UpdateFar(0, 7)
	if m.FarCurrent[0] != 7 || m.FarMax[0] != 7 {
		t.Fatalf("FarCurrent[0]/FarMax[0] = %d/%d, want 7/7", m.FarCurrent[0], m.FarMax[0])
	}
}

func TestStreamMetricsHighWaterCrossings(t *testing.T) {
	var m StreamMetrics
	m.UpdateBytes(500, 1000)
	m.UpdateBytes(1500, 1000)
	m.UpdateBytes(1600, 1000)
	m.UpdateBytes(400, 1000)
	m.UpdateBytes(1200, 1000)

	if m.HighWaterCrossings != 2 {
		t.Fatalf("HighWaterCrossings = %d, want 2 (two rising crossings)", m.HighWaterCrossings)
	}
	if m.BytesMax != 1600 {
		t.Fatalf("BytesMax = %d, want 1600", m.BytesMax)
	}
}

func TestTPSCounterIncrementAndRate(t *testing.T) {
	c := NewTPSCounter(time.Second, 100*time.Millisecond)
	for i := 0; i < 10; i++ {
		c.Increment()
	}
	if tps := c.TPS(); tps <= 0 {
		t.Fatalf("TPS() = %v, want > 0 after 10 increments", tps)
	}
}

func TestTPSCounterPanicsOnBadWindow(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for bucketSize > windowSize")
		}
	}()
	NewTPSCounter(time.Second, 2*time.Second)
}
