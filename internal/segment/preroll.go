package segment

// preRoll is a fixed-capacity ring of the most recent frames seen while the
// segmenter is idle. Once full, pushing a frame evicts the oldest. A snapshot
// copies the frame slice so the ring can keep evolving independently of the
// segment seeded from it.
type preRoll struct {
	frames [][]byte
	head   int // index of the oldest frame
	size   int
}

func newPreRoll(capacity int) *preRoll {
	if capacity < 0 {
		capacity = 0
	}
	return &preRoll{
		frames: make([][]byte, capacity),
	}
}

// Push appends a frame, evicting the oldest when the ring is full.
func (p *preRoll) Push(frame []byte) {
	if len(p.frames) == 0 {
		return
	}

	tail := (p.head + p.size) % len(p.frames)
	p.frames[tail] = frame

	if p.size < len(p.frames) {
		p.size++
	} else {
		p.head = (p.head + 1) % len(p.frames)
	}
}

// Snapshot returns the buffered frames oldest to newest. The returned slice
// is a copy; the frames themselves are shared but immutable by contract.
func (p *preRoll) Snapshot() [][]byte {
	out := make([][]byte, 0, p.size)
	for i := 0; i < p.size; i++ {
		out = append(out, p.frames[(p.head+i)%len(p.frames)])
	}
	return out
}

// Len returns the number of buffered frames.
func (p *preRoll) Len() int {
	return p.size
}

// Cap returns the ring capacity.
func (p *preRoll) Cap() int {
	return len(p.frames)
}
