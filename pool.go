package hashlink

type (
	IntHandle       int32
	FloatHandle     int32
	StringHandle    int32
	BytesHandle     int32
	DebugFileHandle int32
	TypeHandle      int32
	GlobalHandle    int32
	NativeHandle    int32
	FunctionHandle  int32
	ConstantHandle  int32

	Handle interface {
		~int32
	}

	// Optional is a handle which may be absent.
	// Negative raw values from the wire are stored as absent.
	Optional[H Handle] struct {
		Value H
		Valid bool
	}

	// Pool maps handles to elements.
	// Get panics on a handle out of range.
	Pool[H Handle, E any] interface {
		Get(h H) E
		Len() int
		Range(f func(h H, e E) bool)
	}

	// ListPool is an append-once pool addressed by index.
	// It's built from a decoded table and never changes after that.
	ListPool[H Handle, E any] struct {
		items []E
	}

	// HashPool deduplicates elements by value.
	// It is meant for building images, decoding uses ListPool.
	HashPool[H Handle, E comparable] struct {
		items []E
		index map[E]H
	}
)

var (
	_ Pool[IntHandle, int32]     = &ListPool[IntHandle, int32]{}
	_ Pool[StringHandle, string] = &HashPool[StringHandle, string]{}
)

func Some[H Handle](h H) Optional[H] {
	return Optional[H]{Value: h, Valid: true}
}

func None[H Handle]() Optional[H] {
	return Optional[H]{}
}

// OptionalFrom treats negative values as absent.
func OptionalFrom[H Handle](v int32) Optional[H] {
	if v < 0 {
		return Optional[H]{}
	}

	return Some(H(v))
}

func (o Optional[H]) Get() (H, bool) {
	return o.Value, o.Valid
}

func NewListPool[H Handle, E any](items []E) *ListPool[H, E] {
	return &ListPool[H, E]{items: items}
}

func (p *ListPool[H, E]) Get(h H) E {
	return p.items[h]
}

func (p *ListPool[H, E]) Len() int {
	if p == nil {
		return 0
	}

	return len(p.items)
}

func (p *ListPool[H, E]) Range(f func(h H, e E) bool) {
	if p == nil {
		return
	}

	for i, e := range p.items {
		if !f(H(i), e) {
			return
		}
	}
}

// Items returns a copy of the elements in handle order.
func (p *ListPool[H, E]) Items() []E {
	if p == nil {
		return nil
	}

	return append([]E(nil), p.items...)
}

func (p *ListPool[H, E]) valid(h H) bool {
	return h >= 0 && int(h) < p.Len()
}

func NewHashPool[H Handle, E comparable]() *HashPool[H, E] {
	return &HashPool[H, E]{index: make(map[E]H)}
}

// Add returns the handle of an equal element if there is one,
// or appends e and returns its new handle.
func (p *HashPool[H, E]) Add(e E) H {
	if h, ok := p.index[e]; ok {
		return h
	}

	if p.index == nil {
		p.index = make(map[E]H)
	}

	h := H(len(p.items))

	p.items = append(p.items, e)
	p.index[e] = h

	return h
}

func (p *HashPool[H, E]) Lookup(e E) (H, bool) {
	h, ok := p.index[e]
	return h, ok
}

func (p *HashPool[H, E]) Get(h H) E {
	return p.items[h]
}

func (p *HashPool[H, E]) Len() int {
	return len(p.items)
}

func (p *HashPool[H, E]) Range(f func(h H, e E) bool) {
	for i, e := range p.items {
		if !f(H(i), e) {
			return
		}
	}
}

// Items returns a copy of the elements in handle order.
func (p *HashPool[H, E]) Items() []E {
	return append([]E(nil), p.items...)
}

// Freeze returns an immutable pool with the same handles.
func (p *HashPool[H, E]) Freeze() *ListPool[H, E] {
	return NewListPool[H](p.Items())
}
