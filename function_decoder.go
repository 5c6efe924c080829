package hashlink

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	FunctionDecoder struct {
		InstructionsDecoder

		// Skipped sections are consumed but not stored.
		StoreDebugInfo       bool
		StoreFunctionAssigns bool
	}
)

// Function decodes a function record.
// Debug lines follow if debug is set and assigns follow if the version supports them.
func (d *FunctionDecoder) Function(b []byte, st int, debug bool, version int) (f Function, i int, err error) {
	tp, i, err := d.Index(b, st)
	if err != nil {
		return f, st, errors.Wrap(err, "type")
	}

	f.Type = TypeHandle(tp)

	findex, i, err := d.UIndex(b, i)
	if err != nil {
		return f, st, errors.Wrap(err, "findex")
	}

	f.Index = int32(findex)

	nregs, i, err := d.UIndex(b, i)
	if err != nil {
		return f, st, errors.Wrap(err, "regs count")
	}

	nops, i, err := d.UIndex(b, i)
	if err != nil {
		return f, st, errors.Wrap(err, "opcodes count")
	}

	if nregs > len(b)-i || nops > len(b)-i {
		return f, st, errors.Wrap(ErrUnexpectedEOF, "regs %d opcodes %d", nregs, nops)
	}

	if nregs != 0 {
		f.Regs = make([]TypeHandle, nregs)
	}

	var v int32

	for j := range f.Regs {
		v, i, err = d.Index(b, i)
		if err != nil {
			return f, st, errors.Wrap(err, "reg %d", j)
		}

		f.Regs[j] = TypeHandle(v)
	}

	if nops != 0 {
		f.Ops = make([]Opcode, nops)
	}

	for j := range f.Ops {
		f.Ops[j], i, err = d.Opcode(b, i)
		if err != nil {
			return f, st, errors.Wrap(err, "opcode %d", j)
		}
	}

	if debug {
		if d.StoreDebugInfo {
			f.Debug, i, err = d.DebugLines(b, i, nops)
		} else {
			i, err = d.SkipDebugLines(b, i, nops)
		}

		if err != nil {
			return f, st, errors.Wrap(err, "debug")
		}
	}

	if version >= FeatureFuncAssigns {
		f.Assigns, i, err = d.assigns(b, i, d.StoreFunctionAssigns)
		if err != nil {
			return f, st, errors.Wrap(err, "assigns")
		}
	}

	tlog.V("function").Printw("function", "findex", f.Index, "type", f.Type, "regs", nregs, "ops", nops, "pos", tlog.NextAsHex, st)

	return f, i, nil
}

func (d *FunctionDecoder) assigns(b []byte, st int, store bool) (r []Assign, i int, err error) {
	n, i, err := d.UIndex(b, st)
	if err != nil {
		return nil, st, errors.Wrap(err, "count")
	}

	if !store {
		for j := 0; j < 2*n; j++ {
			i, err = d.SkipIndex(b, i)
			if err != nil {
				return nil, st, errors.Wrap(err, "assign %d", j/2)
			}
		}

		return nil, i, nil
	}

	if n > len(b)-i {
		return nil, st, errors.Wrap(ErrUnexpectedEOF, "assigns %d", n)
	}

	if n == 0 {
		return nil, i, nil
	}

	r = make([]Assign, n)

	var name int

	for j := range r {
		name, i, err = d.UIndex(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "assign %d: name", j)
		}

		r[j].Name = StringHandle(name)

		r[j].Reg, i, err = d.Index(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "assign %d: reg", j)
		}
	}

	return r, i, nil
}

// DebugLines decodes file and line for each of nops opcodes.
//
// Each record starts with a byte c:
//
//	c&1 != 0  file = (c>>1)<<8 | next byte
//	c&2 != 0  (c>>2)&15 opcodes at the current line, then line += c>>6
//	c&4 != 0  line += c>>3, one opcode
//	otherwise line = c>>3 | next<<5 | next<<13, one opcode
func (d *FunctionDecoder) DebugLines(b []byte, st, nops int) (r []DebugLine, i int, err error) {
	i = st

	if nops == 0 {
		return nil, i, nil
	}

	r = make([]DebugLine, nops)

	file := None[DebugFileHandle]()
	line := int32(0)
	op := 0

	var c, x, y byte

	for op < nops {
		c, i, err = d.Byte(b, i)
		if err != nil {
			return nil, st, errors.Wrap(err, "opcode %d", op)
		}

		switch {
		case c&1 != 0:
			x, i, err = d.Byte(b, i)
			if err != nil {
				return nil, st, errors.Wrap(err, "opcode %d: file", op)
			}

			file = Some(DebugFileHandle(c>>1)<<8 | DebugFileHandle(x))

			continue
		case c&2 != 0:
			delta := int32(c >> 6)
			cnt := int(c>>2) & 0xf

			if op+cnt > nops {
				return nil, st, errors.Wrap(ErrDataLayout, "opcode %d: line repeat %d overruns %d opcodes", op, cnt, nops)
			}

			for ; cnt > 0; cnt-- {
				r[op] = DebugLine{File: file, Line: line}
				op++
			}

			line += delta

			continue
		case c&4 != 0:
			line += int32(c >> 3)
		default:
			x, i, err = d.Byte(b, i)
			if err != nil {
				return nil, st, errors.Wrap(err, "opcode %d: line", op)
			}

			y, i, err = d.Byte(b, i)
			if err != nil {
				return nil, st, errors.Wrap(err, "opcode %d: line", op)
			}

			line = int32(c>>3) | int32(x)<<5 | int32(y)<<13
		}

		r[op] = DebugLine{File: file, Line: line}
		op++
	}

	if l := tlog.V("debug"); l != nil {
		l.Printw("debug lines", "ops", nops, "size", i-st, "pos", tlog.NextAsHex, st)
	}

	return r, i, nil
}

// SkipDebugLines consumes exactly the bytes DebugLines would.
func (d *FunctionDecoder) SkipDebugLines(b []byte, st, nops int) (i int, err error) {
	i = st
	op := 0

	var c byte

	for op < nops {
		c, i, err = d.Byte(b, i)
		if err != nil {
			return st, errors.Wrap(err, "opcode %d", op)
		}

		switch {
		case c&1 != 0:
			i++
		case c&2 != 0:
			cnt := int(c>>2) & 0xf

			if op+cnt > nops {
				return st, errors.Wrap(ErrDataLayout, "opcode %d: line repeat %d overruns %d opcodes", op, cnt, nops)
			}

			op += cnt
		case c&4 != 0:
			op++
		default:
			i += 2
			op++
		}

		if i > len(b) {
			return st, errors.Wrap(ErrUnexpectedEOF, "opcode %d", op)
		}
	}

	return i, nil
}
