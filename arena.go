package hashlink

type (
	// Arena hands out opcode operand slices carved from one large buffer.
	// When the buffer can't fit a request a new one is allocated,
	// slices handed out earlier stay valid.
	// Requests larger than the whole buffer get their own allocation.
	//
	// Arena is not safe for concurrent use.
	Arena struct {
		size int
		buf  []int32
		used int
	}
)

const DefaultArenaSize = 128 << 10

// NewArena creates an arena of size int32 slots.
// Zero size means every Alloc is a separate allocation.
func NewArena(size int) *Arena {
	return &Arena{size: size}
}

func (a *Arena) Alloc(n int) []int32 {
	if n == 0 {
		return nil
	}

	if a == nil || n > a.size {
		return make([]int32, n)
	}

	if a.buf == nil || a.used+n > len(a.buf) {
		a.buf = make([]int32, a.size)
		a.used = 0
	}

	r := a.buf[a.used : a.used+n : a.used+n]
	a.used += n

	return r
}

func (a *Arena) Size() int {
	if a == nil {
		return 0
	}

	return a.size
}
