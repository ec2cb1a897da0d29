// Package ringbuf holds the fixed-capacity sample window fed to an interpolator.
package ringbuf

// Sample is one (epoch, value) observation of a tracked scalar.
type Sample struct {
	Epoch float64
	Value float64
}

// Buffer is a fixed-capacity ring of samples. The oldest sample is evicted
// when a new one is pushed into a full buffer.
type Buffer struct {
	data []Sample
	pos  int
	full bool
	cap  int
}

// New creates a Buffer with the given capacity. Capacities below 1 are
// raised to 1.
func New(cap int) *Buffer {
	if cap < 1 {
		cap = 1
	}
	return &Buffer{
		data: make([]Sample, cap),
		cap:  cap,
	}
}

// Push adds a sample, evicting the oldest when full.
func (b *Buffer) Push(s Sample) {
	b.data[b.pos] = s
	b.pos++
	if b.pos >= b.cap {
		b.pos = 0
		b.full = true
	}
}

// Reset empties the buffer without releasing storage.
func (b *Buffer) Reset() {
	clear(b.data)
	b.pos = 0
	b.full = false
}

// Len returns the number of samples held.
func (b *Buffer) Len() int {
	if b.full {
		return b.cap
	}
	return b.pos
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return b.cap
}

// Full reports whether the buffer holds Cap samples.
func (b *Buffer) Full() bool {
	return b.full
}

// Samples returns the buffer contents oldest first.
func (b *Buffer) Samples() []Sample {
	n := b.Len()
	out := make([]Sample, n)
	if b.full {
		copy(out, b.data[b.pos:])
		copy(out[b.cap-b.pos:], b.data[:b.pos])
	} else {
		copy(out, b.data[:b.pos])
	}
	return out
}

// Last returns the newest sample.
func (b *Buffer) Last() (Sample, bool) {
	if b.Len() == 0 {
		return Sample{}, false
	}
	i := b.pos - 1
	if i < 0 {
		i = b.cap - 1
	}
	return b.data[i], true
}

// ValueBounds returns the minimum and maximum sample values. ok is false
// for an empty buffer.
func (b *Buffer) ValueBounds() (lo, hi float64, ok bool) {
	n := b.Len()
	if n == 0 {
		return 0, 0, false
	}
	lo, hi = b.data[0].Value, b.data[0].Value
	for _, s := range b.data[:n] {
		if s.Value < lo {
			lo = s.Value
		}
		if s.Value > hi {
			hi = s.Value
		}
	}
	return lo, hi, true
}
