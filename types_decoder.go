package hashlink

import (
	"tlog.app/go/errors"
)

// Type decodes one type record.
func (d *LowDecoder) Type(b []byte, st int) (t TypeRecord, i int, err error) {
	k, i, err := d.Byte(b, st)
	if err != nil {
		return nil, st, err
	}

	kind := TypeKind(k)

	switch kind {
	case HFun, HMethod:
		t, i, err = d.funType(b, i, kind)
	case HObj, HStruct:
		t, i, err = d.objType(b, i, kind)
	case HRef, HNull, HPacked:
		var v int32

		v, i, err = d.Index(b, i)
		t = WrapperType{Kind: kind, Inner: TypeHandle(v)}
	case HVirtual:
		var fields []ObjField

		fields, i, err = d.virtualFields(b, i)
		t = VirtualType{Fields: fields}
	case HAbstract:
		var v int32

		v, i, err = d.Index(b, i)
		t = AbstractType{Name: StringHandle(v)}
	case HEnum:
		t, i, err = d.enumType(b, i)
	default:
		if !kind.Valid() {
			return nil, st, errors.Wrap(ErrTypeKind, "kind %d", k)
		}

		t = PrimitiveType{Kind: kind}
	}

	if err != nil {
		return nil, st, errors.Wrap(err, "%v", kind)
	}

	return t, i, nil
}

func (d *LowDecoder) funType(b []byte, st int, kind TypeKind) (t FunType, i int, err error) {
	t.Kind = kind

	n, i, err := d.Byte(b, st)
	if err != nil {
		return t, st, errors.Wrap(err, "args count")
	}

	if n != 0 {
		t.Args = make([]TypeHandle, n)
	}

	var v int32

	for j := range t.Args {
		v, i, err = d.Index(b, i)
		if err != nil {
			return t, st, errors.Wrap(err, "arg %d", j)
		}

		t.Args[j] = TypeHandle(v)
	}

	v, i, err = d.Index(b, i)
	if err != nil {
		return t, st, errors.Wrap(err, "ret")
	}

	t.Ret = TypeHandle(v)

	return t, i, nil
}

func (d *LowDecoder) objType(b []byte, st int, kind TypeKind) (t ObjType, i int, err error) {
	t.Kind = kind

	name, i, err := d.Index(b, st)
	if err != nil {
		return t, st, errors.Wrap(err, "name")
	}

	t.Name = StringHandle(name)

	super, i, err := d.Index(b, i)
	if err != nil {
		return t, st, errors.Wrap(err, "super")
	}

	t.Super = OptionalFrom[TypeHandle](super)

	global, i, err := d.UIndex(b, i)
	if err != nil {
		return t, st, errors.Wrap(err, "global")
	}

	t.Global = OptionalFrom[GlobalHandle](int32(global) - 1)

	var nfields, nprotos, nbindings int

	for _, p := range []*int{&nfields, &nprotos, &nbindings} {
		*p, i, err = d.UIndex(b, i)
		if err != nil {
			return t, st, errors.Wrap(err, "counts")
		}
	}

	if nfields+nprotos+nbindings > len(b)-i {
		return t, st, errors.Wrap(ErrUnexpectedEOF, "fields %d protos %d bindings %d", nfields, nprotos, nbindings)
	}

	t.Fields, i, err = d.fields(b, i, nfields)
	if err != nil {
		return t, st, err
	}

	var v int32
	var f int

	if nprotos != 0 {
		t.Protos = make([]ObjProto, nprotos)
	}

	for j := range t.Protos {
		p := &t.Protos[j]

		v, i, err = d.Index(b, i)
		if err != nil {
			return t, st, errors.Wrap(err, "proto %d: name", j)
		}

		p.Name = StringHandle(v)

		f, i, err = d.UIndex(b, i)
		if err != nil {
			return t, st, errors.Wrap(err, "proto %d: findex", j)
		}

		p.Func = int32(f)

		p.Slot, i, err = d.Index(b, i)
		if err != nil {
			return t, st, errors.Wrap(err, "proto %d: slot", j)
		}
	}

	if nbindings != 0 {
		t.Bindings = make([]ObjBinding, nbindings)
	}

	for j := range t.Bindings {
		p := &t.Bindings[j]

		f, i, err = d.UIndex(b, i)
		if err != nil {
			return t, st, errors.Wrap(err, "binding %d: field", j)
		}

		p.Field = int32(f)

		f, i, err = d.UIndex(b, i)
		if err != nil {
			return t, st, errors.Wrap(err, "binding %d: findex", j)
		}

		p.Func = int32(f)
	}

	return t, i, nil
}

func (d *LowDecoder) virtualFields(b []byte, st int) (r []ObjField, i int, err error) {
	n, i, err := d.UIndex(b, st)
	if err != nil {
		return nil, st, errors.Wrap(err, "fields count")
	}

	if n > len(b)-i {
		return nil, st, errors.Wrap(ErrUnexpectedEOF, "fields %d", n)
	}

	return d.fields(b, i, n)
}

func (d *LowDecoder) fields(b []byte, st, n int) (r []ObjField, i int, err error) {
	i = st

	if n != 0 {
		r = make([]ObjField, n)
	}

	var v int32

	for j := range r {
		f := &r[j]

		v, i, err = d.Index(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "field %d: name", j)
		}

		f.Name = StringHandle(v)

		v, i, err = d.Index(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "field %d: type", j)
		}

		f.Type = TypeHandle(v)
		f.Index = j
	}

	return r, i, nil
}

func (d *LowDecoder) enumType(b []byte, st int) (t EnumType, i int, err error) {
	name, i, err := d.Index(b, st)
	if err != nil {
		return t, st, errors.Wrap(err, "name")
	}

	t.Name = StringHandle(name)

	global, i, err := d.UIndex(b, i)
	if err != nil {
		return t, st, errors.Wrap(err, "global")
	}

	t.Global = OptionalFrom[GlobalHandle](int32(global) - 1)

	n, i, err := d.UIndex(b, i)
	if err != nil {
		return t, st, errors.Wrap(err, "constructs count")
	}

	if n > len(b)-i {
		return t, st, errors.Wrap(ErrUnexpectedEOF, "constructs %d", n)
	}

	if n != 0 {
		t.Constructs = make([]EnumConstruct, n)
	}

	var v int32
	var np int

	for j := range t.Constructs {
		c := &t.Constructs[j]

		v, i, err = d.Index(b, i)
		if err != nil {
			return t, st, errors.Wrap(err, "construct %d: name", j)
		}

		c.Name = StringHandle(v)

		np, i, err = d.UIndex(b, i)
		if err != nil {
			return t, st, errors.Wrap(err, "construct %d: params count", j)
		}

		if np > len(b)-i {
			return t, st, errors.Wrap(ErrUnexpectedEOF, "construct %d: params %d", j, np)
		}

		if np != 0 {
			c.Params = make([]TypeHandle, np)
		}

		for k := range c.Params {
			v, i, err = d.Index(b, i)
			if err != nil {
				return t, st, errors.Wrap(err, "construct %d: param %d", j, k)
			}

			c.Params[k] = TypeHandle(v)
		}
	}

	return t, i, nil
}
