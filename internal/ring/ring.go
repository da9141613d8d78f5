// Package ring implements the per-source jitter-absorbing circular PCM
// store: a fixed-capacity mono sample buffer with modulo-capacity cursor
// arithmetic, replacing the raw read/write pointer pair of the original
// implementation with integer offsets into an owned contiguous slice.
package ring

import "log/slog"

// Buffer is a fixed-capacity circular store of signed 16-bit PCM samples.
// It is not safe for concurrent use: the mixer thread owns it exclusively.
type Buffer struct {
	data         []int16
	capacity     int
	randomAccess bool

	writePos int // "end of last write"
	readPos  int // "next output"

	started    bool
	starved    bool
	hasWritten bool
}

// New constructs a ring sized samplesPerFrame*ringFrames. randomAccess
// selects whether reads zero the positions they visit and whether
// Available reports an elastic "always enough" capacity.
func New(samplesPerFrame, ringFrames int, randomAccess bool) *Buffer {
	capacity := samplesPerFrame * ringFrames
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		data:         make([]int16, capacity),
		capacity:     capacity,
		randomAccess: randomAccess,
	}
}

// Capacity returns the fixed sample capacity.
func (b *Buffer) Capacity() int { return b.capacity }

// Started reports whether the mixer has begun consuming this buffer.
func (b *Buffer) Started() bool { return b.started }

// SetStarted updates the started flag (the eligibility gate transitions it).
func (b *Buffer) SetStarted(v bool) { b.started = v }

// Starved reports whether an overflow reset or Reset has marked the
// buffer starved. The flag stays set until SetStarved(false); mix-time
// starvation found by the eligibility gate does not set it.
func (b *Buffer) Starved() bool { return b.starved }

// HasWritten reports whether at least one sample has ever been
// written to this buffer.
func (b *Buffer) HasWritten() bool { return b.hasWritten }

// SetStarved explicitly sets the starved flag.
func (b *Buffer) SetStarved(v bool) { b.starved = v }

func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// Available returns the current readable sample count: (write-read) mod
// capacity. In random-access mode, once any write has occurred the
// buffer behaves as an elastic zero-padding window and always reports
// full capacity as available.
func (b *Buffer) Available() int {
	if b.randomAccess && b.hasWritten {
		return b.capacity
	}
	return mod(b.writePos-b.readPos, b.capacity)
}

// DiffLastWriteNextOutput is an alias for Available, named after the
// original cursor-difference accessor.
func (b *Buffer) DiffLastWriteNextOutput() int { return b.Available() }

// Write copies min(len(samples), capacity) samples into the buffer,
// wrapping at the end, and advances the write cursor. If the write
// would cross the read cursor while started, the buffer is reset
// instead (overflow): both cursors move to the origin, starved is set,
// and the incoming data is dropped. Returns the number of samples
// actually stored (0 on overflow).
func (b *Buffer) Write(samples []int16) int {
	n := len(samples)
	if n > b.capacity {
		n = b.capacity
	}
	samples = samples[:n]

	if b.started {
		free := b.capacity - mod(b.writePos-b.readPos, b.capacity)
		if n >= free {
			slog.Warn("ring buffer overflow", "capacity", b.capacity, "attempted", n, "free", free)
			b.writePos = 0
			b.readPos = 0
			b.starved = true
			return 0
		}
	}

	for i := 0; i < n; i++ {
		b.data[mod(b.writePos+i, b.capacity)] = samples[i]
	}
	b.writePos = mod(b.writePos+n, b.capacity)
	if n > 0 {
		b.hasWritten = true
	}
	return n
}

// Read copies samples into dst starting at the read cursor and
// advances it. In normal mode it reads min(len(dst), Available());
// in random-access mode it always reads exactly len(dst), zeroing the
// positions it visits. Returns the number of samples copied.
func (b *Buffer) Read(dst []int16) int {
	want := len(dst)

	if b.randomAccess {
		for i := 0; i < want; i++ {
			pos := mod(b.readPos+i, b.capacity)
			dst[i] = b.data[pos]
			b.data[pos] = 0
		}
		b.readPos = mod(b.readPos+want, b.capacity)
		return want
	}

	avail := mod(b.writePos-b.readPos, b.capacity)
	n := want
	if n > avail {
		n = avail
	}
	for i := 0; i < n; i++ {
		dst[i] = b.data[mod(b.readPos+i, b.capacity)]
	}
	b.readPos = mod(b.readPos+n, b.capacity)
	return n
}

// AddSilent appends n zero samples at the write cursor, wrapping, and
// advances it. It never triggers an overflow check or marks starvation.
func (b *Buffer) AddSilent(n int) {
	if n <= 0 {
		return
	}
	if n > b.capacity {
		n = b.capacity
	}
	for i := 0; i < n; i++ {
		b.data[mod(b.writePos+i, b.capacity)] = 0
	}
	b.writePos = mod(b.writePos+n, b.capacity)
}

// Reset moves both cursors to the origin and marks the buffer starved.
// started is left untouched.
func (b *Buffer) Reset() {
	b.writePos = 0
	b.readPos = 0
	b.starved = true
}

// ShiftRead advances the read cursor by n (which may be negative)
// without copying any samples.
func (b *Buffer) ShiftRead(n int) {
	b.readPos = mod(b.readPos+n, b.capacity)
}

// Index returns the sample at offset i (which may be negative, for
// look-back) from the current read cursor, wrapping.
func (b *Buffer) Index(i int) int16 {
	return b.data[mod(b.readPos+i, b.capacity)]
}

// SaturatingAdd adds in to out and clamps the result to the signed
// 16-bit range, performing true two-sided saturation.
func SaturatingAdd(out, in int16) int16 {
	sum := int32(out) + int32(in)
	switch {
	case sum > 32767:
		return 32767
	case sum < -32768:
		return -32768
	default:
		return int16(sum)
	}
}
