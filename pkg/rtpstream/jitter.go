package rtpstream

import "container/heap"

// FrameSamples is the fixed frame size the jitter buffer stores and emits
// (one 20ms frame at 8kHz mono), spec §3.
const FrameSamples = 160

// Cap bounds the number of frames the jitter buffer holds before it starts
// evicting, spec §3.
const Cap = 10

// Frame is one decoded PCM frame tagged with its RTP sequence number.
type Frame struct {
	Sequence uint16
	Samples  [FrameSamples]int16
}

type frameHeap []Frame

func (h frameHeap) Len() int { return len(h) }
func (h frameHeap) Less(i, j int) bool {
	return sequenceLess(h[i].Sequence, h[j].Sequence)
}
func (h frameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *frameHeap) Push(x interface{}) { *h = append(*h, x.(Frame)) }
func (h *frameHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// sequenceLess orders RTP sequence numbers accounting for 16-bit wraparound,
// treating the gap as forward distance from i to j.
func sequenceLess(a, b uint16) bool {
	if a == b {
		return false
	}
	return uint16(a-b) > 0x8000
}

// Buffer is the spec §3 jitter buffer: bounded by Cap frames of FrameSamples
// each, holding at most one entry per sequence number, evicting the oldest
// entry on overflow, and on pop either returning the next-expected frame,
// a silence frame if absent, or (when full) the smallest-sequence frame
// with expected advanced past it to avoid starvation on persistent loss.
// Grounded on the teacher's container/heap-based packetHeap structure in
// pkg/media/jitter_buffer.go, with the spec's own eviction/starvation rules
// in place of the teacher's adaptive-delay algorithm.
type Buffer struct {
	heap        frameHeap
	present     map[uint16]bool
	expected    uint16
	expectedSet bool
	insertOrder []uint16 // FIFO of sequences still present, for oldest-eviction
}

// NewBuffer constructs an empty jitter buffer.
func NewBuffer() *Buffer {
	b := &Buffer{present: make(map[uint16]bool)}
	heap.Init(&b.heap)
	return b
}

// Push inserts a decoded frame. A duplicate sequence number is ignored
// (invariant i: at most one entry per sequence number). On overflow the
// oldest-inserted entry is evicted (invariant ii).
func (b *Buffer) Push(seq uint16, samples [FrameSamples]int16) {
	if b.present[seq] {
		return
	}
	if len(b.heap) >= Cap {
		oldest := b.insertOrder[0]
		b.insertOrder = b.insertOrder[1:]
		b.evict(oldest)
	}
	heap.Push(&b.heap, Frame{Sequence: seq, Samples: samples})
	b.present[seq] = true
	b.insertOrder = append(b.insertOrder, seq)
}

func (b *Buffer) evict(seq uint16) {
	for i, f := range b.heap {
		if f.Sequence == seq {
			heap.Remove(&b.heap, i)
			break
		}
	}
	delete(b.present, seq)
}

func (b *Buffer) removeFromInsertOrder(seq uint16) {
	for i, s := range b.insertOrder {
		if s == seq {
			b.insertOrder = append(b.insertOrder[:i], b.insertOrder[i+1:]...)
			return
		}
	}
}

// Pop returns the next frame for playout. The first call initializes the
// expected sequence to the minimum-held sequence (invariant iii). If the
// expected frame is absent, a silence frame is returned and expected
// advances by one (invariant iv) — unless the buffer is full, in which
// case the smallest-sequence stored frame is returned instead and expected
// is set to its sequence+1, avoiding permanent stall on persistent loss.
func (b *Buffer) Pop() [FrameSamples]int16 {
	if !b.expectedSet {
		if len(b.heap) > 0 {
			b.expected = b.heap[0].Sequence
		}
		b.expectedSet = true
	}

	if b.present[b.expected] {
		f := b.take(b.expected)
		b.expected++
		return f
	}

	if len(b.heap) >= Cap {
		smallest := b.heap[0]
		b.take(smallest.Sequence)
		b.expected = smallest.Sequence + 1
		return smallest.Samples
	}

	b.expected++
	return [FrameSamples]int16{}
}

func (b *Buffer) take(seq uint16) [FrameSamples]int16 {
	for i, f := range b.heap {
		if f.Sequence == seq {
			heap.Remove(&b.heap, i)
			delete(b.present, seq)
			b.removeFromInsertOrder(seq)
			return f.Samples
		}
	}
	return [FrameSamples]int16{}
}

// Len reports the number of frames currently held, for metrics.
func (b *Buffer) Len() int { return len(b.heap) }
