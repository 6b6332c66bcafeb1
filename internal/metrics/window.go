// Package metrics keeps the rolling CPU, memory and GPU history shown for
// an inspected job and converts Slurm's usage figures into percentages.
package metrics

import "math"

// DefaultCapacity is the number of samples kept per channel.
const DefaultCapacity = 60

// Channel names one metric series.
type Channel string

const (
	CPU    Channel = "cpu"
	Memory Channel = "mem"
	GPU    Channel = "gpu"
)

// Channels lists every channel in display order.
var Channels = []Channel{CPU, Memory, GPU}

// Window holds one bounded series per channel. Samples are clamped to
// [0, 100] and the oldest is evicted first. It is owned by the UI loop
// and is not safe for concurrent use.
type Window struct {
	capacity int
	series   map[Channel]*ringBuffer
}

// ringBuffer is a fixed-size circular buffer for float64 values.
type ringBuffer struct {
	data  []float64
	head  int
	count int
	size  int
}

// NewWindow returns an empty window. Non-positive capacity uses
// DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	w := &Window{capacity: capacity}
	w.Reset()
	return w
}

// Capacity returns the per-channel bound.
func (w *Window) Capacity() int {
	return w.capacity
}

// Append pushes one sample.
func (w *Window) Append(ch Channel, v float64) {
	w.buffer(ch).push(Clamp(v))
}

// Push appends one sample to every channel.
func (w *Window) Push(s Sample) {
	w.Append(CPU, s.CPU)
	w.Append(Memory, s.Memory)
	w.Append(GPU, s.GPU)
}

// Mirror replaces a channel with values, keeping only the most recent
// capacity entries.
func (w *Window) Mirror(ch Channel, values []float64) {
	r := newRingBuffer(w.capacity)
	if len(values) > w.capacity {
		values = values[len(values)-w.capacity:]
	}
	for _, v := range values {
		r.push(Clamp(v))
	}
	w.series[ch] = r
}

// Values returns the channel's samples, oldest first.
func (w *Window) Values(ch Channel) []float64 {
	r, ok := w.series[ch]
	if !ok {
		return nil
	}
	return r.getAll()
}

// Len returns the number of samples held for a channel.
func (w *Window) Len(ch Channel) int {
	r, ok := w.series[ch]
	if !ok {
		return 0
	}
	return r.count
}

// Latest returns the newest sample of a channel.
func (w *Window) Latest(ch Channel) (float64, bool) {
	vals := w.Values(ch)
	if len(vals) == 0 {
		return 0, false
	}
	return vals[len(vals)-1], true
}

// Reset drops every sample.
func (w *Window) Reset() {
	w.series = make(map[Channel]*ringBuffer, len(Channels))
}

func (w *Window) buffer(ch Channel) *ringBuffer {
	r, ok := w.series[ch]
	if !ok {
		r = newRingBuffer(w.capacity)
		w.series[ch] = r
	}
	return r
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		data: make([]float64, size),
		size: size,
	}
}

func (r *ringBuffer) push(value float64) {
	r.data[r.head] = value
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// getAll returns the stored values in chronological order.
func (r *ringBuffer) getAll() []float64 {
	if r.count == 0 {
		return nil
	}
	result := make([]float64, r.count)
	// head is the next write position, so the oldest value sits count
	// slots behind it.
	start := (r.head - r.count + r.size) % r.size
	for i := 0; i < r.count; i++ {
		result[i] = r.data[(start+i)%r.size]
	}
	return result
}

// Clamp bounds v to [0, 100]. NaN counts as 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
