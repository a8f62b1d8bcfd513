package breaker

// latencyRing is a fixed-size ring of the most recent latency samples for a
// provider. Zero value is unusable; construct with newLatencyRing.
type latencyRing struct {
	samples []int64
	next    int
	full    bool
}

func newLatencyRing(size int) *latencyRing {
	if size < 1 {
		size = 1
	}
	return &latencyRing{samples: make([]int64, size)}
}

func (r *latencyRing) Add(latencyMs int64) {
	r.samples[r.next] = latencyMs
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

// Snapshot returns the samples ordered oldest first.
func (r *latencyRing) Snapshot() []int64 {
	if !r.full {
		out := make([]int64, r.next)
		copy(out, r.samples[:r.next])
		return out
	}
	out := make([]int64, 0, len(r.samples))
	out = append(out, r.samples[r.next:]...)
	out = append(out, r.samples[:r.next]...)
	return out
}

func (r *latencyRing) seed(samples []int64) {
	for _, s := range samples {
		r.Add(s)
	}
}
