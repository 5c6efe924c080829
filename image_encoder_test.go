package hashlink

type (
	// Encoder writes test images the decoder reads back.
	Encoder struct {
		LowEncoder
	}
)

// Image appends the binary form of m.
// Debug lines are written if m has the debug flag,
// functions without them get line 0 and no file.
func (e *Encoder) Image(b []byte, m *Image) []byte {
	b = append(b, Magic[:]...)
	b = append(b, byte(m.Version))
	b = e.UIndex(b, int(m.Flags))

	b = e.UIndex(b, m.Ints.Len())
	b = e.UIndex(b, m.Floats.Len())
	b = e.UIndex(b, m.Strings.Len())

	if m.HasBytes() {
		b = e.UIndex(b, m.Bytes.Len())
	}

	b = e.UIndex(b, m.Types.Len())
	b = e.UIndex(b, m.Globals.Len())
	b = e.UIndex(b, m.Natives.Len())
	b = e.UIndex(b, m.Functions.Len())
	b = e.UIndex(b, m.Constants.Len())
	b = e.UIndex(b, int(m.Entrypoint))

	for _, v := range m.Ints.Items() {
		b = e.Int32(b, v)
	}

	for _, v := range m.Floats.Items() {
		b = e.Float64(b, v)
	}

	b = e.StringBlock(b, m.Strings.Items())

	if m.HasBytes() {
		b = e.ByteBlock(b, m.Bytes.Items())
	}

	if m.HasDebug() {
		b = e.UIndex(b, m.DebugFiles.Len())
		b = e.StringBlock(b, m.DebugFiles.Items())
	}

	for _, t := range m.Types.Items() {
		b = e.Type(b, t)
	}

	for _, g := range m.Globals.Items() {
		b = e.Index(b, int32(g))
	}

	for _, x := range m.Natives.Items() {
		b = e.Index(b, int32(x.Lib))
		b = e.Index(b, int32(x.Name))
		b = e.Index(b, int32(x.Type))
		b = e.UIndex(b, int(x.Func))
	}

	for _, f := range m.Functions.Items() {
		b = e.Function(b, &f, m.HasDebug(), m.Version)
	}

	for _, c := range m.Constants.Items() {
		b = e.UIndex(b, int(c.Global))
		b = e.UIndex(b, len(c.Fields))

		for _, v := range c.Fields {
			b = e.UIndex(b, int(v))
		}
	}

	return b
}

func (e *LowEncoder) Function(b []byte, f *Function, debug bool, version int) []byte {
	b = e.Index(b, int32(f.Type))
	b = e.UIndex(b, int(f.Index))
	b = e.UIndex(b, len(f.Regs))
	b = e.UIndex(b, len(f.Ops))

	for _, r := range f.Regs {
		b = e.Index(b, int32(r))
	}

	for _, op := range f.Ops {
		b = e.Opcode(b, op)
	}

	if debug {
		lines := f.Debug
		if len(lines) != len(f.Ops) {
			lines = make([]DebugLine, len(f.Ops))
		}

		b = e.DebugLines(b, lines)
	}

	if version >= FeatureFuncAssigns {
		b = e.UIndex(b, len(f.Assigns))

		for _, a := range f.Assigns {
			b = e.UIndex(b, int(a.Name))
			b = e.Index(b, a.Reg)
		}
	}

	return b
}

// DebugLines writes line records in the shortest forms.
// Lines must be in [0, 1<<21), files in [0, 1<<15).
func (e *LowEncoder) DebugLines(b []byte, lines []DebugLine) []byte {
	file := None[DebugFileHandle]()
	line := int32(0)

	for j := 0; j < len(lines); {
		l := lines[j]

		if l.File != file {
			f := l.File.Value
			b = append(b, byte(f>>8)<<1|1, byte(f))
			file = l.File
		}

		if l.Line == line {
			cnt := 1
			for cnt < 15 && j+cnt < len(lines) && lines[j+cnt] == l {
				cnt++
			}

			b = append(b, byte(cnt)<<2|2)
			j += cnt

			continue
		}

		if d := l.Line - line; d > 0 && d < 32 {
			b = append(b, byte(d)<<3|4)
		} else {
			b = append(b, byte(l.Line&0x1f)<<3, byte(l.Line>>5), byte(l.Line>>13))
		}

		line = l.Line
		j++
	}

	return b
}

// Opcode writes kind and operands in the layout Opcode decoding expects.
func (e *LowEncoder) Opcode(b []byte, op Opcode) []byte {
	b = e.UIndex(b, int(op.Kind))

	switch {
	case op.Kind.Arity() >= 0:
		for _, a := range op.Args {
			b = e.Index(b, a)
		}
	case op.Kind.IsCall():
		b = e.Index(b, op.Args[0])
		b = e.Index(b, op.Args[1])
		b = append(b, byte(len(op.Args)-3))

		for _, a := range op.Args[3:] {
			b = e.Index(b, a)
		}
	case op.Kind == Switch:
		for _, a := range op.Args {
			b = e.UIndex(b, int(a))
		}
	}

	return b
}

func (e *LowEncoder) Type(b []byte, t TypeRecord) []byte {
	b = append(b, byte(t.TypeKind()))

	switch t := t.(type) {
	case FunType:
		b = append(b, byte(len(t.Args)))

		for _, a := range t.Args {
			b = e.Index(b, int32(a))
		}

		b = e.Index(b, int32(t.Ret))
	case ObjType:
		b = e.Index(b, int32(t.Name))
		b = e.Index(b, optional(t.Super))
		b = e.UIndex(b, int(optional(t.Global)+1))
		b = e.UIndex(b, len(t.Fields))
		b = e.UIndex(b, len(t.Protos))
		b = e.UIndex(b, len(t.Bindings))
		b = e.fields(b, t.Fields)

		for _, p := range t.Protos {
			b = e.Index(b, int32(p.Name))
			b = e.UIndex(b, int(p.Func))
			b = e.Index(b, p.Slot)
		}

		for _, p := range t.Bindings {
			b = e.UIndex(b, int(p.Field))
			b = e.UIndex(b, int(p.Func))
		}
	case WrapperType:
		b = e.Index(b, int32(t.Inner))
	case VirtualType:
		b = e.UIndex(b, len(t.Fields))
		b = e.fields(b, t.Fields)
	case AbstractType:
		b = e.Index(b, int32(t.Name))
	case EnumType:
		b = e.Index(b, int32(t.Name))
		b = e.UIndex(b, int(optional(t.Global)+1))
		b = e.UIndex(b, len(t.Constructs))

		for _, c := range t.Constructs {
			b = e.Index(b, int32(c.Name))
			b = e.UIndex(b, len(c.Params))

			for _, p := range c.Params {
				b = e.Index(b, int32(p))
			}
		}
	}

	return b
}

func (e *LowEncoder) fields(b []byte, fs []ObjField) []byte {
	for _, f := range fs {
		b = e.Index(b, int32(f.Name))
		b = e.Index(b, int32(f.Type))
	}

	return b
}

func optional[H Handle](o Optional[H]) int32 {
	if !o.Valid {
		return -1
	}

	return int32(o.Value)
}
