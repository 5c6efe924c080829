package hashlink

import (
	"bytes"
	"encoding/binary"
	stderrors "errors"
	"io"
	"math"
	"unicode/utf8"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	Decoder struct {
		FunctionDecoder
	}

	// LowDecoder reads primitives.
	// Methods take the buffer and the start position and return the next position.
	// On error the returned position is the start one.
	LowDecoder struct{}
)

var (
	ErrUnexpectedEOF      = io.ErrUnexpectedEOF
	ErrHeader             = stderrors.New("header mismatch")
	ErrUnsupportedVersion = stderrors.New("unsupported version")
	ErrOpcodeKind         = stderrors.New("invalid opcode kind")
	ErrTypeKind           = stderrors.New("invalid type kind")
	ErrMalformedUTF8      = stderrors.New("malformed utf8")
	ErrDataLayout         = stderrors.New("invalid data layout")

	// ErrMalformedVarint is never returned: every lead byte selects a valid width.
	ErrMalformedVarint = stderrors.New("malformed varint")
)

// NewDecoder creates a decoder with the given settings.
// The decoder must not be used concurrently.
func NewDecoder(s Settings) *Decoder {
	d := &Decoder{}

	d.StoreDebugInfo = s.StoreDebugInfo
	d.StoreFunctionAssigns = s.StoreFunctionAssigns
	d.Arena = NewArena(s.OpcodeArenaSize)

	return d
}

// Decode decodes a whole HashLink binary.
func Decode(b []byte, s Settings) (*Image, error) {
	var img Image

	err := NewDecoder(s).Image(b, &img)
	if err != nil {
		return nil, err
	}

	return &img, nil
}

// Image decodes b into img.
// img is only assigned if decoding succeeded.
func (d *Decoder) Image(b []byte, img *Image) (err error) {
	i := 0

	defer func() {
		if err == nil {
			return
		}

		err = errors.Wrap(err, "at pos 0x%x", i)
	}()

	var m Image

	if len(b) < len(Magic) {
		return ErrUnexpectedEOF
	}

	copy(m.Header[:], b)

	if m.Header != Magic {
		return ErrHeader
	}

	i += len(Magic)

	ver, i, err := d.Byte(b, i)
	if err != nil {
		return errors.Wrap(err, "version")
	}

	m.Version = int(ver)

	if m.Version < MinVersion || m.Version > MaxVersion {
		return errors.Wrap(ErrUnsupportedVersion, "version %d", m.Version)
	}

	flags, i, err := d.UIndex(b, i)
	if err != nil {
		return errors.Wrap(err, "flags")
	}

	m.Flags = Flags(flags)

	var nints, nfloats, nstrings, nbytes, ntypes, nglobals, nnatives, nfuncs, nconsts, entry int

	for _, c := range []struct {
		name string
		p    *int
		skip bool
	}{
		{name: "ints", p: &nints},
		{name: "floats", p: &nfloats},
		{name: "strings", p: &nstrings},
		{name: "bytes", p: &nbytes, skip: !m.HasBytes()},
		{name: "types", p: &ntypes},
		{name: "globals", p: &nglobals},
		{name: "natives", p: &nnatives},
		{name: "functions", p: &nfuncs},
		{name: "constants", p: &nconsts},
		{name: "entrypoint", p: &entry},
	} {
		if c.skip {
			continue
		}

		*c.p, i, err = d.UIndex(b, i)
		if err != nil {
			return errors.Wrap(err, "%v count", c.name)
		}
	}

	tlog.V("section").Printw("header", "version", m.Version, "flags", m.Flags, "ints", nints, "floats", nfloats, "strings", nstrings, "bytes", nbytes,
		"types", ntypes, "globals", nglobals, "natives", nnatives, "functions", nfuncs, "constants", nconsts, "entrypoint", entry)

	ints, i, err := d.ints(b, i, nints)
	if err != nil {
		return errors.Wrap(err, "ints")
	}

	m.Ints = NewListPool[IntHandle](ints)

	floats, i, err := d.floats(b, i, nfloats)
	if err != nil {
		return errors.Wrap(err, "floats")
	}

	m.Floats = NewListPool[FloatHandle](floats)

	strs, i, err := d.StringBlock(b, i, nstrings)
	if err != nil {
		return errors.Wrap(err, "strings")
	}

	m.Strings = NewListPool[StringHandle](strs)

	var blobs [][]byte

	if m.HasBytes() {
		blobs, i, err = d.ByteBlock(b, i, nbytes)
		if err != nil {
			return errors.Wrap(err, "bytes")
		}
	}

	m.Bytes = NewListPool[BytesHandle](blobs)

	var files []string

	if m.HasDebug() {
		var n int

		n, i, err = d.UIndex(b, i)
		if err != nil {
			return errors.Wrap(err, "debug files count")
		}

		files, i, err = d.StringBlock(b, i, n)
		if err != nil {
			return errors.Wrap(err, "debug files")
		}
	}

	m.DebugFiles = NewListPool[DebugFileHandle](files)

	tlog.V("section").Printw("constants", "ints", len(ints), "floats", len(floats), "strings", len(strs), "bytes", len(blobs), "debug_files", len(files), "pos", tlog.NextAsHex, i)

	types, i, err := d.types(b, i, ntypes)
	if err != nil {
		return errors.Wrap(err, "types")
	}

	m.Types = NewListPool[TypeHandle](types)

	globals, i, err := d.globals(b, i, nglobals)
	if err != nil {
		return errors.Wrap(err, "globals")
	}

	m.Globals = NewListPool[GlobalHandle](globals)

	natives, i, err := d.natives(b, i, nnatives)
	if err != nil {
		return errors.Wrap(err, "natives")
	}

	m.Natives = NewListPool[NativeHandle](natives)

	tlog.V("section").Printw("types", "types", len(types), "globals", len(globals), "natives", len(natives), "pos", tlog.NextAsHex, i)

	funcs, i, err := d.functions(b, i, nfuncs, m.HasDebug(), m.Version)
	if err != nil {
		return errors.Wrap(err, "functions")
	}

	m.Functions = NewListPool[FunctionHandle](funcs)

	consts, i, err := d.constants(b, i, nconsts)
	if err != nil {
		return errors.Wrap(err, "constants")
	}

	m.Constants = NewListPool[ConstantHandle](consts)

	m.Entrypoint = FunctionHandle(entry)

	tlog.V("section").Printw("functions", "functions", len(funcs), "constants", len(consts), "pos", tlog.NextAsHex, i)

	err = m.validate()
	if err != nil {
		return errors.Wrap(err, "validate")
	}

	*img = m

	return nil
}

func (d *LowDecoder) ints(b []byte, st, l int) (r []int32, i int, err error) {
	i = st

	if i+4*l > len(b) {
		return nil, st, ErrUnexpectedEOF
	}

	r = make([]int32, l)

	for n := range r {
		r[n], i, err = d.Int32(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "int %d", n)
		}
	}

	return r, i, nil
}

func (d *LowDecoder) floats(b []byte, st, l int) (r []float64, i int, err error) {
	i = st

	if i+8*l > len(b) {
		return nil, st, ErrUnexpectedEOF
	}

	r = make([]float64, l)

	for n := range r {
		r[n], i, err = d.Float64(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "float %d", n)
		}
	}

	return r, i, nil
}

func (d *LowDecoder) types(b []byte, st, l int) (r []TypeRecord, i int, err error) {
	i = st
	r = make([]TypeRecord, 0, capHint(l, len(b)-i))

	var t TypeRecord

	for n := 0; n < l; n++ {
		t, i, err = d.Type(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "type %d", n)
		}

		r = append(r, t)
	}

	return r, i, nil
}

func (d *LowDecoder) globals(b []byte, st, l int) (r []TypeHandle, i int, err error) {
	i = st
	r = make([]TypeHandle, 0, capHint(l, len(b)-i))

	var tp int32

	for n := 0; n < l; n++ {
		tp, i, err = d.Index(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "global %d", n)
		}

		r = append(r, TypeHandle(tp))
	}

	return r, i, nil
}

func (d *LowDecoder) natives(b []byte, st, l int) (r []Native, i int, err error) {
	i = st
	r = make([]Native, 0, capHint(l, len(b)-i))

	var x Native
	var v int32
	var f int

	for n := 0; n < l; n++ {
		v, i, err = d.Index(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "native %d: lib", n)
		}

		x.Lib = StringHandle(v)

		v, i, err = d.Index(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "native %d: name", n)
		}

		x.Name = StringHandle(v)

		v, i, err = d.Index(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "native %d: type", n)
		}

		x.Type = TypeHandle(v)

		f, i, err = d.UIndex(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "native %d: findex", n)
		}

		x.Func = int32(f)

		r = append(r, x)
	}

	return r, i, nil
}

func (d *FunctionDecoder) functions(b []byte, st, l int, debug bool, version int) (r []Function, i int, err error) {
	i = st
	r = make([]Function, 0, capHint(l, len(b)-i))

	var f Function

	for n := 0; n < l; n++ {
		f, i, err = d.Function(b, i, debug, version)
		if err != nil {
			return nil, st, errors.Wrap(err, "function %d", n)
		}

		r = append(r, f)
	}

	return r, i, nil
}

func (d *LowDecoder) constants(b []byte, st, l int) (r []Constant, i int, err error) {
	i = st
	r = make([]Constant, 0, capHint(l, len(b)-i))

	var g, nf, v int

	for n := 0; n < l; n++ {
		g, i, err = d.UIndex(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "constant %d: global", n)
		}

		nf, i, err = d.UIndex(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "constant %d: fields", n)
		}

		if nf > len(b)-i {
			return nil, st, errors.Wrap(ErrUnexpectedEOF, "constant %d: fields", n)
		}

		c := Constant{
			Global: GlobalHandle(g),
			Fields: make([]int32, nf),
		}

		for j := range c.Fields {
			v, i, err = d.UIndex(b, i)
			if err != nil {
				return nil, st, errors.Wrap(err, "constant %d: field %d", n, j)
			}

			c.Fields[j] = int32(v)
		}

		r = append(r, c)
	}

	return r, i, nil
}

// StringBlock reads the block size, the block, and count string lengths.
// Strings in the block are zero terminated.
func (d *LowDecoder) StringBlock(b []byte, st, count int) (r []string, i int, err error) {
	block, i, err := d.block(b, st)
	if err != nil {
		return nil, st, err
	}

	s := string(block)
	r = make([]string, 0, capHint(count, len(b)-i))
	off := 0

	var l int

	for n := 0; n < count; n++ {
		l, i, err = d.UIndex(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "string %d", n)
		}

		if off+l > len(s) {
			return nil, st, errors.Wrap(ErrUnexpectedEOF, "string %d: %d bytes at offset %d, block size %d", n, l, off, len(s))
		}

		x := s[off : off+l]

		if !utf8.ValidString(x) {
			return nil, st, errors.Wrap(ErrMalformedUTF8, "string %d", n)
		}

		r = append(r, x)
		off += l + 1
	}

	return r, i, nil
}

// ByteBlock reads the block size, the block, and count start offsets.
// Each blob ends at the first zero byte after its start.
// Blobs are sliced from a copy of the block.
func (d *LowDecoder) ByteBlock(b []byte, st, count int) (r [][]byte, i int, err error) {
	block, i, err := d.block(b, st)
	if err != nil {
		return nil, st, err
	}

	data := make([]byte, len(block))
	copy(data, block)

	r = make([][]byte, 0, capHint(count, len(b)-i))

	var start int

	for n := 0; n < count; n++ {
		start, i, err = d.UIndex(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "bytes %d", n)
		}

		if start >= len(data) {
			return nil, st, errors.Wrap(ErrDataLayout, "bytes %d: offset %d out of block size %d", n, start, len(data))
		}

		l := bytes.IndexByte(data[start:], 0)
		if l < 0 {
			return nil, st, errors.Wrap(ErrDataLayout, "bytes %d: no terminator after offset %d", n, start)
		}

		r = append(r, data[start:start+l:start+l])
	}

	return r, i, nil
}

func (d *LowDecoder) block(b []byte, st int) (block []byte, i int, err error) {
	size, i, err := d.Int32(b, st)
	if err != nil {
		return nil, st, errors.Wrap(err, "block size")
	}

	if size < 0 {
		return nil, st, errors.Wrap(ErrDataLayout, "negative block size: %d", size)
	}

	block, i, err = d.Bytes(b, i, int(size))
	if err != nil {
		return nil, st, errors.Wrap(err, "block")
	}

	return block, i, nil
}

func (d *LowDecoder) Byte(b []byte, st int) (r byte, i int, err error) {
	i = st

	if i >= len(b) {
		return 0, i, ErrUnexpectedEOF
	}

	return b[i], i + 1, nil
}

func (d *LowDecoder) Int32(b []byte, st int) (v int32, i int, err error) {
	if st+4 > len(b) {
		return 0, st, ErrUnexpectedEOF
	}

	return int32(binary.LittleEndian.Uint32(b[st:])), st + 4, nil
}

func (d *LowDecoder) Float64(b []byte, st int) (v float64, i int, err error) {
	if st+8 > len(b) {
		return 0, st, ErrUnexpectedEOF
	}

	return math.Float64frombits(binary.LittleEndian.Uint64(b[st:])), st + 8, nil
}

// Bytes returns n bytes of b, not a copy.
func (d *LowDecoder) Bytes(b []byte, st, n int) (v []byte, i int, err error) {
	if n < 0 || n > len(b)-st {
		return nil, st, ErrUnexpectedEOF
	}

	return b[st : st+n], st + n, nil
}

// Index reads a signed variable-length integer.
//
//	0xxxxxxx                             7 bit value
//	10sxxxxx xxxxxxxx                    13 bit magnitude, s is the sign
//	11sxxxxx xxxxxxxx xxxxxxxx xxxxxxxx  29 bit magnitude
func (d *LowDecoder) Index(b []byte, st int) (v int32, i int, err error) {
	v, neg, i, err := d.index(b, st)
	if neg {
		v = -v
	}

	return v, i, err
}

// UIndex reads an unsigned variable-length integer.
// The sign bit set is an ErrDataLayout.
func (d *LowDecoder) UIndex(b []byte, st int) (v int, i int, err error) {
	x, neg, i, err := d.index(b, st)
	if err != nil {
		return 0, st, err
	}

	if neg {
		return 0, st, errors.Wrap(ErrDataLayout, "negative unsigned index: -%d", x)
	}

	return int(x), i, nil
}

// SkipIndex advances over one variable-length integer.
func (d *LowDecoder) SkipIndex(b []byte, st int) (i int, err error) {
	if st >= len(b) {
		return st, ErrUnexpectedEOF
	}

	i = st + 1

	switch c := b[st]; {
	case c >= 0xc0:
		i += 3
	case c >= 0x80:
		i++
	}

	if i > len(b) {
		return st, ErrUnexpectedEOF
	}

	return i, nil
}

func (d *LowDecoder) index(b []byte, st int) (v int32, neg bool, i int, err error) {
	i = st

	if i >= len(b) {
		return 0, false, st, ErrUnexpectedEOF
	}

	c := b[i]
	i++

	switch {
	case c < 0x80:
		return int32(c), false, i, nil
	case c < 0xc0:
		if i+1 > len(b) {
			return 0, false, st, ErrUnexpectedEOF
		}

		v = int32(c&0x1f)<<8 | int32(b[i])
		i++
	default:
		if i+3 > len(b) {
			return 0, false, st, ErrUnexpectedEOF
		}

		v = int32(c&0x1f)<<24 | int32(b[i])<<16 | int32(b[i+1])<<8 | int32(b[i+2])
		i += 3
	}

	return v, c&0x20 != 0, i, nil
}

// capHint bounds preallocation by the bytes left,
// every element takes at least one byte.
func capHint(n, left int) int {
	if n > left {
		return left
	}

	return n
}
