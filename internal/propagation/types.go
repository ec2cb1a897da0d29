package propagation

import "time"

// Config holds stop-search configuration loaded from environment variables.
type Config struct {
	Workers int           // Worker pool size (default: runtime.NumCPU())
	Step    time.Duration // Sampling interval (default: 30s)
	Span    time.Duration // Search length (default: 24h)
}

// Job is one satellite's stop search.
type Job struct {
	NORADID int
	Start   time.Time
	Stops   []StopSpec
}

// Result is the outcome of a Job. Err is set when the search failed; any
// crossings found before the failure are still reported.
type Result struct {
	NORADID   int        `json:"norad_id"`
	Name      string     `json:"name"`
	Crossings []Crossing `json:"crossings"`
	Err       error      `json:"-"`
}
