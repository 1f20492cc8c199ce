package backend

import "sort"

// Rolling performance window used for ETA estimation.

// perfWindowSize is the capacity of each per-metric sample window.
const perfWindowSize = 8

// SampleWindow is a fixed-capacity FIFO of duration samples in seconds.
// Adding beyond capacity evicts the oldest sample.
type SampleWindow struct {
	samples []float64
	cap     int
}

// NewSampleWindow creates a window holding at most capacity samples.
func NewSampleWindow(capacity int) *SampleWindow {
	return &SampleWindow{cap: capacity}
}

// Add records a sample, evicting the oldest when the window is full.
func (w *SampleWindow) Add(seconds float64) {
	w.samples = append(w.samples, seconds)
	if len(w.samples) > w.cap {
		w.samples = w.samples[1:]
	}
}

// Samples returns a copy of the current window contents, oldest first.
func (w *SampleWindow) Samples() []float64 {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}

// Len returns the number of samples currently held.
func (w *SampleWindow) Len() int {
	return len(w.samples)
}

// FilteredAverage averages the samples after dropping outliers, where an
// outlier is any sample >= 2x the window median. Returns 0 for an empty
// input.
func FilteredAverage(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	var sum float64
	var n int
	for _, s := range samples {
		if s < 2*median {
			sum += s
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// PerformanceWindow tracks recent download and convert durations as two
// independent windows and derives a smoothed per-item estimate.
type PerformanceWindow struct {
	download *SampleWindow
	convert  *SampleWindow
}

// NewPerformanceWindow creates a window pair with the standard capacity.
func NewPerformanceWindow() *PerformanceWindow {
	return &PerformanceWindow{
		download: NewSampleWindow(perfWindowSize),
		convert:  NewSampleWindow(perfWindowSize),
	}
}

// Record adds one item's measured download and convert durations.
func (p *PerformanceWindow) Record(downloadSeconds, convertSeconds float64) {
	p.download.Add(downloadSeconds)
	p.convert.Add(convertSeconds)
}

// EstimateETA returns the estimated seconds remaining for the given
// number of unprocessed items.
func (p *PerformanceWindow) EstimateETA(itemsRemaining int) int {
	if itemsRemaining <= 0 {
		return 0
	}
	avg := FilteredAverage(p.download.Samples()) + FilteredAverage(p.convert.Samples())
	return int(avg * float64(itemsRemaining))
}
