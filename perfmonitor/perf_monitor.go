// Package perfmonitor measures wall-clock time between a Start and a Stop.
// The exchange orchestration uses it to report how long a full
// connect/send/receive run took.
package perfmonitor

import "time"

// PerformanceMonitor records one start/stop interval. It is not safe for
// concurrent use.
type PerformanceMonitor struct {
	startTime time.Time
	endTime   time.Time
}

// NewPerformanceMonitor returns a monitor with no interval recorded.
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{}
}

// Start records the start of the interval, overwriting any previous start.
func (p *PerformanceMonitor) Start() {
	p.startTime = time.Now()
}

// Stop records the end of the interval. It is ignored when Start has not been
// called since the last Reset.
func (p *PerformanceMonitor) Stop() {
	if p.startTime.IsZero() {
		return
	}

	p.endTime = time.Now()
}

// Reset clears the recorded interval.
func (p *PerformanceMonitor) Reset() {
	p.startTime = time.Time{}
	p.endTime = time.Time{}
}

// Elapsed returns the recorded interval, or 0 if it is incomplete.
func (p *PerformanceMonitor) Elapsed() time.Duration {
	if p.startTime.IsZero() || p.endTime.IsZero() {
		return 0
	}

	return p.endTime.Sub(p.startTime)
}

// ElapsedMilliseconds returns Elapsed as fractional milliseconds.
//
// Returns:
//   - The interval in milliseconds, or 0 if Start or Stop is missing
func (p *PerformanceMonitor) ElapsedMilliseconds() float64 {
	return float64(p.Elapsed()) / float64(time.Millisecond)
}
