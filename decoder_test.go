package hashlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(version int, debug bool) *Image {
	m := &Image{
		Header:  Magic,
		Version: version,

		Ints:    NewListPool[IntHandle]([]int32{0, 1, -7}),
		Floats:  NewListPool[FloatHandle]([]float64{1.5}),
		Strings: NewListPool[StringHandle]([]string{"main", "std", "print", "Point", "x", "y", "Color", "Red", "Rgb", "hello", "tmp"}),
		Types: NewListPool[TypeHandle]([]TypeRecord{
			PrimitiveType{Kind: HVoid},
			PrimitiveType{Kind: HI32},
			PrimitiveType{Kind: HF64},
			PrimitiveType{Kind: HBytes},
			PrimitiveType{Kind: HDyn},
			FunType{Kind: HFun, Args: []TypeHandle{1}, Ret: 1},
			FunType{Kind: HFun, Ret: 0},
			ObjType{
				Kind:   HObj,
				Name:   3,
				Global: Some[GlobalHandle](0),
				Fields: []ObjField{{Name: 4, Type: 1, Index: 0}, {Name: 5, Type: 2, Index: 1}},
				Protos: []ObjProto{{Name: 2, Func: 0, Slot: -1}},
			},
			WrapperType{Kind: HNull, Inner: 1},
			VirtualType{Fields: []ObjField{{Name: 4, Type: 1, Index: 0}}},
			AbstractType{Name: 9},
			EnumType{
				Name:   6,
				Global: Some[GlobalHandle](1),
				Constructs: []EnumConstruct{
					{Name: 7},
					{Name: 8, Params: []TypeHandle{1, 1, 1}},
				},
			},
		}),
		Globals: NewListPool[GlobalHandle]([]TypeHandle{7, 11, 1}),
		Natives: NewListPool[NativeHandle]([]Native{{Lib: 1, Name: 2, Type: 5, Func: 2}}),
		Functions: NewListPool[FunctionHandle]([]Function{
			{
				Type:  5,
				Index: 0,
				Regs:  []TypeHandle{1, 1},
				Ops: []Opcode{
					{Kind: Int, Args: []int32{1, 2}},
					{Kind: Add, Args: []int32{0, 0, 1}},
					{Kind: Call1, Args: []int32{1, 2, 0}},
					{Kind: Ret, Args: []int32{0}},
				},
				Debug: []DebugLine{
					{File: Some[DebugFileHandle](0), Line: 3},
					{File: Some[DebugFileHandle](0), Line: 3},
					{File: Some[DebugFileHandle](0), Line: 4},
					{File: Some[DebugFileHandle](0), Line: 5},
				},
				Assigns: []Assign{{Name: 4, Reg: 0}},
			},
			{
				Type:  6,
				Index: 1,
				Regs:  []TypeHandle{0, 2, 3, 7, 1},
				Ops: []Opcode{
					{Kind: Float, Args: []int32{1, 0}},
					{Kind: Bytes, Args: []int32{2, 0}},
					{Kind: GetGlobal, Args: []int32{3, 0}},
					{Kind: Switch, Args: []int32{4, 1, 0, 1}},
					{Kind: CallN, Args: []int32{4, 0, 1, 4}},
					{Kind: Ret, Args: []int32{0}},
				},
				Debug: []DebugLine{
					{File: Some[DebugFileHandle](1), Line: 100},
					{File: Some[DebugFileHandle](1), Line: 101},
					{File: Some[DebugFileHandle](1), Line: 101},
					{File: Some[DebugFileHandle](1), Line: 102},
					{File: Some[DebugFileHandle](0), Line: 9000},
					{File: Some[DebugFileHandle](0), Line: 9000},
				},
				Assigns: []Assign{{Name: 10, Reg: 4}, {Name: 9, Reg: -1}},
			},
		}),
		Constants: NewListPool[ConstantHandle]([]Constant{{Global: 2, Fields: []int32{0}}}),

		Entrypoint: 1,
	}

	var blobs [][]byte
	if version >= FeatureBytes {
		blobs = [][]byte{{1, 2, 3}}
	}

	m.Bytes = NewListPool[BytesHandle](blobs)

	var files []string
	if debug {
		m.Flags |= FlagDebug
		files = []string{"Main.hx", "Std.hx"}
	}

	m.DebugFiles = NewListPool[DebugFileHandle](files)

	funcs := m.Functions.items

	for j := range funcs {
		if !debug {
			funcs[j].Debug = nil
		}

		if version < FeatureFuncAssigns {
			funcs[j].Assigns = nil
		}
	}

	return m
}

func TestDecoderMinimal(tb *testing.T) {
	b := []byte{'H', 'L', 'B', 2, 0}
	b = append(b, make([]byte, 9)...) // counts and entrypoint
	b = append(b, 0, 0, 0, 0)         // empty strings block

	m, err := Decode(b, DefaultSettings)
	require.NoError(tb, err)

	assert.Equal(tb, 2, m.Version)
	assert.False(tb, m.HasDebug())
	assert.False(tb, m.HasBytes())
	assert.False(tb, m.HasAssigns())

	for _, l := range []int{m.Ints.Len(), m.Floats.Len(), m.Strings.Len(), m.Bytes.Len(), m.DebugFiles.Len(),
		m.Types.Len(), m.Globals.Len(), m.Natives.Len(), m.Functions.Len(), m.Constants.Len()} {
		assert.Equal(tb, 0, l)
	}

	assert.Equal(tb, FunctionHandle(0), m.Entrypoint)
}

func TestDecoderRoundTrip(tb *testing.T) {
	var e Encoder

	for version := MinVersion; version <= MaxVersion; version++ {
		for _, debug := range []bool{false, true} {
			exp := testImage(version, debug)
			b := e.Image(nil, exp)

			m, err := Decode(b, DefaultSettings)
			assert.NoError(tb, err)
			assert.Equal(tb, exp, m)

			if tb.Failed() {
				tb.Logf("version %d debug %v\nb: %x", version, debug, b)
				return
			}
		}
	}
}

func TestDecoderSettings(tb *testing.T) {
	var e Encoder

	exp := testImage(MaxVersion, true)
	b := e.Image(nil, exp)

	for _, s := range []Settings{
		{StoreDebugInfo: false, StoreFunctionAssigns: true},
		{StoreDebugInfo: true, StoreFunctionAssigns: false, OpcodeArenaSize: 3},
		{},
	} {
		m, err := Decode(b, s)
		require.NoError(tb, err)

		fs := exp.Functions.Items()
		got := m.Functions.Items()

		require.Len(tb, got, len(fs))

		for j, f := range got {
			assert.Equal(tb, fs[j].Ops, f.Ops)
			assert.Equal(tb, fs[j].Regs, f.Regs)

			if s.StoreDebugInfo {
				assert.Equal(tb, fs[j].Debug, f.Debug)
			} else {
				assert.Nil(tb, f.Debug)
			}

			if s.StoreFunctionAssigns {
				assert.Equal(tb, fs[j].Assigns, f.Assigns)
			} else {
				assert.Nil(tb, f.Assigns)
			}
		}

		assert.Equal(tb, exp.Constants, m.Constants)
	}
}

func TestDecoderReuse(tb *testing.T) {
	var e Encoder

	b := e.Image(nil, testImage(4, true))
	d := NewDecoder(Settings{StoreDebugInfo: true, StoreFunctionAssigns: true, OpcodeArenaSize: 8})

	var m1, m2 Image

	require.NoError(tb, d.Image(b, &m1))
	require.NoError(tb, d.Image(b, &m2))

	assert.Equal(tb, m1, m2)

	b2 := e.Image(nil, testImage(5, false))

	var m3 Image

	require.NoError(tb, d.Image(b2, &m3))

	assert.Equal(tb, m1, m2)
	assert.Equal(tb, 5, m3.Version)
}

func TestDecoderHeader(tb *testing.T) {
	var e Encoder

	b := e.Image(nil, testImage(3, false))

	for _, x := range []struct {
		mod func(b []byte) []byte
		err error
	}{
		{func(b []byte) []byte { b[0] = 'X'; return b }, ErrHeader},
		{func(b []byte) []byte { b[3] = 1; return b }, ErrUnsupportedVersion},
		{func(b []byte) []byte { b[3] = 6; return b }, ErrUnsupportedVersion},
		{func(b []byte) []byte { return b[:2] }, ErrUnexpectedEOF},
		{func(b []byte) []byte { return b[:3] }, ErrUnexpectedEOF},
	} {
		c := x.mod(append([]byte{}, b...))

		var m Image

		err := NewDecoder(DefaultSettings).Image(c, &m)
		assert.ErrorIs(tb, err, x.err)
		assert.Zero(tb, m.Version)
	}
}

func TestDecoderTruncated(tb *testing.T) {
	var e Encoder

	b := e.Image(nil, testImage(MaxVersion, true))
	d := NewDecoder(DefaultSettings)

	for l := 0; l < len(b); l++ {
		var m Image

		err := d.Image(b[:l], &m)
		assert.ErrorIs(tb, err, ErrUnexpectedEOF, "len %d", l)

		if tb.Failed() {
			tb.Logf("b: %x", b[:l])
			break
		}
	}
}

func TestDecoderValidate(tb *testing.T) {
	var e Encoder

	for _, x := range []struct {
		name    string
		version int
		mod     func(m *Image)
		err     error
	}{
		{"global_type", 5, func(m *Image) { m.Globals.items[0] = 99 }, ErrDataLayout},
		{"native_lib", 5, func(m *Image) { m.Natives.items[0].Lib = 50 }, ErrDataLayout},
		{"fun_arg", 5, func(m *Image) { m.Types.items[5] = FunType{Kind: HFun, Args: []TypeHandle{40}} }, ErrDataLayout},
		{"obj_super", 5, func(m *Image) {
			t := m.Types.items[7].(ObjType)
			t.Super = Some[TypeHandle](12)
			m.Types.items[7] = t
		}, ErrDataLayout},
		{"enum_global", 5, func(m *Image) {
			t := m.Types.items[11].(EnumType)
			t.Global = Some[GlobalHandle](3)
			m.Types.items[11] = t
		}, ErrDataLayout},
		{"reg_type", 5, func(m *Image) { m.Functions.items[0].Regs[1] = 12 }, ErrDataLayout},
		{"op_reg", 5, func(m *Image) { m.Functions.items[0].Ops[1].Args[2] = 2 }, ErrDataLayout},
		{"op_int", 5, func(m *Image) { m.Functions.items[0].Ops[0].Args[1] = 3 }, ErrDataLayout},
		{"op_call_arg", 5, func(m *Image) { m.Functions.items[1].Ops[4].Args[3] = 5 }, ErrDataLayout},
		{"op_bytes", 5, func(m *Image) { m.Functions.items[1].Ops[1].Args[1] = 1 }, ErrDataLayout},
		{"op_bytes_strings", 4, func(m *Image) { m.Functions.items[1].Ops[1].Args[1] = 1 }, nil},
		{"op_bytes_strings_out", 4, func(m *Image) { m.Functions.items[1].Ops[1].Args[1] = 11 }, ErrDataLayout},
		{"assign_name", 5, func(m *Image) { m.Functions.items[1].Assigns[0].Name = 11 }, ErrDataLayout},
		{"debug_file", 5, func(m *Image) { m.Functions.items[0].Debug[0].File = Some[DebugFileHandle](2) }, ErrDataLayout},
		{"constant_global", 5, func(m *Image) { m.Constants.items[0].Global = 3 }, ErrDataLayout},
		{"entrypoint_unchecked", 5, func(m *Image) { m.Entrypoint = 100 }, nil},
	} {
		tb.Run(x.name, func(tb *testing.T) {
			m := testImage(x.version, true)
			x.mod(m)

			b := e.Image(nil, m)

			_, err := Decode(b, DefaultSettings)
			if x.err == nil {
				assert.NoError(tb, err)
			} else {
				assert.ErrorIs(tb, err, x.err)
			}
		})
	}
}
