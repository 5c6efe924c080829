package hashlink

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	InstructionsDecoder struct {
		LowDecoder

		// Arena backs opcode arguments. nil means an allocation per opcode.
		Arena *Arena
	}
)

// Opcode decodes one instruction.
//
// Fixed arity opcodes are followed by arity signed indexes.
// Call-like opcodes have two indexes, a count byte, and count indexes; the count is kept in Args[2].
// Switch has unsigned register, count, count offsets, and the default offset; the count is kept in Args[1].
func (d *InstructionsDecoder) Opcode(b []byte, st int) (op Opcode, i int, err error) {
	k, i, err := d.UIndex(b, st)
	if err != nil {
		return op, st, errors.Wrap(err, "kind")
	}

	if k >= NumOpKinds {
		return op, st, errors.Wrap(ErrOpcodeKind, "kind %d", k)
	}

	op.Kind = OpKind(k)

	switch a := arity[op.Kind]; {
	case a >= 0:
		op.Args, i, err = d.fixed(b, i, int(a))
	case op.Kind.IsCall():
		op.Args, i, err = d.call(b, i)
	case op.Kind == Switch:
		op.Args, i, err = d.switchTable(b, i)
	default:
		panic(op.Kind)
	}

	if err != nil {
		return Opcode{}, st, errors.Wrap(err, "%v", op.Kind)
	}

	if l := tlog.V("opcode"); l != nil {
		l.Printw("opcode", "pos", tlog.NextAsHex, st, "op", op, "code", tlog.NextAsHex, b[st:i])
	}

	return op, i, nil
}

func (d *InstructionsDecoder) fixed(b []byte, st, n int) (args []int32, i int, err error) {
	i = st

	if n > len(b)-i {
		return nil, st, ErrUnexpectedEOF
	}

	args = d.Arena.Alloc(n)

	for j := range args {
		args[j], i, err = d.Index(b, i)
		if err != nil {
			return nil, st, err
		}
	}

	return args, i, nil
}

func (d *InstructionsDecoder) call(b []byte, st int) (args []int32, i int, err error) {
	dst, i, err := d.Index(b, st)
	if err != nil {
		return nil, st, err
	}

	fn, i, err := d.Index(b, i)
	if err != nil {
		return nil, st, err
	}

	n, i, err := d.Byte(b, i)
	if err != nil {
		return nil, st, err
	}

	if int(n) > len(b)-i {
		return nil, st, ErrUnexpectedEOF
	}

	args = d.Arena.Alloc(3 + int(n))
	args[0] = dst
	args[1] = fn
	args[2] = int32(n)

	for j := 3; j < len(args); j++ {
		args[j], i, err = d.Index(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "arg %d", j-3)
		}
	}

	return args, i, nil
}

func (d *InstructionsDecoder) switchTable(b []byte, st int) (args []int32, i int, err error) {
	reg, i, err := d.UIndex(b, st)
	if err != nil {
		return nil, st, err
	}

	n, i, err := d.UIndex(b, i)
	if err != nil {
		return nil, st, err
	}

	if n+1 > len(b)-i {
		return nil, st, errors.Wrap(ErrUnexpectedEOF, "cases %d", n)
	}

	args = d.Arena.Alloc(3 + n)
	args[0] = int32(reg)
	args[1] = int32(n)

	var off int

	for j := 2; j < len(args); j++ {
		off, i, err = d.UIndex(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "case %d", j-2)
		}

		args[j] = int32(off)
	}

	return args, i, nil
}
