package commons

import "time"

// TPSMonitor measures the tick rate of a game loop. Call Start once, then
// Update at the end of every tick; TPS reports the tick count of the last
// completed one-second window.
//
// A TPSMonitor belongs to its loop goroutine and is not safe for concurrent
// use.
type TPSMonitor struct {
	lastUpdate time.Time
	elapsed    time.Duration
	frames     int
	tps        int
}

// Start begins a measurement. It may be called again to reset.
func (m *TPSMonitor) Start() {
	m.lastUpdate = time.Now()
	m.elapsed = 0
	m.frames = 0
	m.tps = 0
}

// Update records one completed tick.
func (m *TPSMonitor) Update() {
	now := time.Now()
	m.elapsed += now.Sub(m.lastUpdate)
	m.lastUpdate = now
	m.frames++
	if m.elapsed >= time.Second {
		m.tps = m.frames
		m.frames = 0
		m.elapsed = 0
	}
}

// TPS returns the ticks counted in the last completed window, zero until
// the first window closes.
func (m *TPSMonitor) TPS() int {
	return m.tps
}
