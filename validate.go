package hashlink

import (
	"tlog.app/go/errors"
)

// validate checks every handle the image stores points into its pool.
// Function indexes aren't checked: they address functions and natives together.
func (m *Image) validate() (err error) {
	typ := func(h TypeHandle) bool { return m.Types.valid(h) }
	str := func(h StringHandle) bool { return m.Strings.valid(h) }

	for n, t := range m.Types.items {
		if err = m.validateType(t, typ, str); err != nil {
			return errors.Wrap(err, "type %d", n)
		}
	}

	for n, tp := range m.Globals.items {
		if !typ(tp) {
			return errors.Wrap(ErrDataLayout, "global %d: type %d", n, tp)
		}
	}

	for n, x := range m.Natives.items {
		if !str(x.Lib) || !str(x.Name) || !typ(x.Type) {
			return errors.Wrap(ErrDataLayout, "native %d: lib %d name %d type %d", n, x.Lib, x.Name, x.Type)
		}
	}

	for n, f := range m.Functions.items {
		if err = m.validateFunction(&f); err != nil {
			return errors.Wrap(err, "function %d (findex %d)", n, f.Index)
		}
	}

	for n, c := range m.Constants.items {
		if !m.Globals.valid(c.Global) {
			return errors.Wrap(ErrDataLayout, "constant %d: global %d", n, c.Global)
		}
	}

	return nil
}

func (m *Image) validateType(t TypeRecord, typ func(TypeHandle) bool, str func(StringHandle) bool) error {
	fields := func(fs []ObjField) error {
		for j, f := range fs {
			if !str(f.Name) || !typ(f.Type) {
				return errors.Wrap(ErrDataLayout, "field %d: name %d type %d", j, f.Name, f.Type)
			}
		}

		return nil
	}

	global := func(g Optional[GlobalHandle]) bool {
		h, ok := g.Get()
		return !ok || m.Globals.valid(h)
	}

	switch t := t.(type) {
	case FunType:
		for j, a := range t.Args {
			if !typ(a) {
				return errors.Wrap(ErrDataLayout, "arg %d: %d", j, a)
			}
		}

		if !typ(t.Ret) {
			return errors.Wrap(ErrDataLayout, "ret: %d", t.Ret)
		}
	case ObjType:
		if !str(t.Name) {
			return errors.Wrap(ErrDataLayout, "name: %d", t.Name)
		}

		if s, ok := t.Super.Get(); ok && !typ(s) {
			return errors.Wrap(ErrDataLayout, "super: %d", s)
		}

		if !global(t.Global) {
			return errors.Wrap(ErrDataLayout, "global: %d", t.Global.Value)
		}

		if err := fields(t.Fields); err != nil {
			return err
		}

		for j, p := range t.Protos {
			if !str(p.Name) {
				return errors.Wrap(ErrDataLayout, "proto %d: name %d", j, p.Name)
			}
		}
	case WrapperType:
		if !typ(t.Inner) {
			return errors.Wrap(ErrDataLayout, "inner: %d", t.Inner)
		}
	case VirtualType:
		return fields(t.Fields)
	case AbstractType:
		if !str(t.Name) {
			return errors.Wrap(ErrDataLayout, "name: %d", t.Name)
		}
	case EnumType:
		if !str(t.Name) {
			return errors.Wrap(ErrDataLayout, "name: %d", t.Name)
		}

		if !global(t.Global) {
			return errors.Wrap(ErrDataLayout, "global: %d", t.Global.Value)
		}

		for j, c := range t.Constructs {
			if !str(c.Name) {
				return errors.Wrap(ErrDataLayout, "construct %d: name %d", j, c.Name)
			}

			for k, p := range c.Params {
				if !typ(p) {
					return errors.Wrap(ErrDataLayout, "construct %d: param %d: %d", j, k, p)
				}
			}
		}
	}

	return nil
}

func (m *Image) validateFunction(f *Function) error {
	if !m.Types.valid(f.Type) {
		return errors.Wrap(ErrDataLayout, "type %d", f.Type)
	}

	for j, r := range f.Regs {
		if !m.Types.valid(r) {
			return errors.Wrap(ErrDataLayout, "reg %d: type %d", j, r)
		}
	}

	for j, op := range f.Ops {
		if err := m.validateOpcode(op, len(f.Regs)); err != nil {
			return errors.Wrap(err, "opcode %d: %v", j, op)
		}
	}

	for j, l := range f.Debug {
		if h, ok := l.File.Get(); ok && !m.DebugFiles.valid(h) {
			return errors.Wrap(ErrDataLayout, "debug %d: file %d", j, h)
		}
	}

	for j, a := range f.Assigns {
		if !m.Strings.valid(a.Name) {
			return errors.Wrap(ErrDataLayout, "assign %d: name %d", j, a.Name)
		}
	}

	return nil
}

func (m *Image) validateOpcode(op Opcode, nregs int) error {
	kinds := op.Kind.Operands()

	for j, a := range op.Args {
		k := OpReg
		if j < len(kinds) {
			k = kinds[j]
		} else if op.Kind == Switch {
			k = OpOffset
		}

		if !m.validOperand(k, a, nregs) {
			return errors.Wrap(ErrDataLayout, "operand %d (%v): %d", j, k, a)
		}
	}

	return nil
}

func (m *Image) validOperand(k Operand, a int32, nregs int) bool {
	switch k {
	case OpReg:
		return a >= 0 && int(a) < nregs
	case OpInt:
		return m.Ints.valid(IntHandle(a))
	case OpFloat:
		return m.Floats.valid(FloatHandle(a))
	case OpString:
		return m.Strings.valid(StringHandle(a))
	case OpBytes:
		if !m.HasBytes() {
			return m.Strings.valid(StringHandle(a))
		}

		return m.Bytes.valid(BytesHandle(a))
	case OpType:
		return m.Types.valid(TypeHandle(a))
	case OpGlobal:
		return m.Globals.valid(GlobalHandle(a))
	case OpCount:
		return a >= 0
	}

	return true
}
