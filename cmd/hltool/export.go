package main

import (
	"nikand.dev/go/hashlink"
)

type (
	// snapshot is the exported form of an image.
	// Handles are indexes into the matching lists.
	snapshot struct {
		File       string `cbor:"file"`
		Version    int    `cbor:"version"`
		Flags      int    `cbor:"flags"`
		Entrypoint int32  `cbor:"entrypoint"`

		Ints       []int32               `cbor:"ints"`
		Floats     []float64             `cbor:"floats"`
		Strings    []string              `cbor:"strings"`
		Bytes      [][]byte              `cbor:"bytes,omitempty"`
		DebugFiles []string              `cbor:"debug_files,omitempty"`
		Types      []typeRecord          `cbor:"types"`
		Globals    []hashlink.TypeHandle `cbor:"globals"`
		Natives    []hashlink.Native     `cbor:"natives"`
		Functions  []function            `cbor:"functions"`
		Constants  []hashlink.Constant   `cbor:"constants"`
	}

	typeRecord struct {
		Kind string `cbor:"kind"`
		Rec  any    `cbor:"rec,omitempty"`
	}

	function struct {
		Type    hashlink.TypeHandle   `cbor:"type"`
		Index   int32                 `cbor:"findex"`
		Regs    []hashlink.TypeHandle `cbor:"regs"`
		Ops     []opcode              `cbor:"ops"`
		Lines   []int32               `cbor:"lines,omitempty"`
		Files   []int32               `cbor:"files,omitempty"`
		Assigns []hashlink.Assign     `cbor:"assigns,omitempty"`
	}

	opcode struct {
		_    struct{} `cbor:",toarray"`
		Kind string
		Args []int32
	}
)

func newSnapshot(name string, m *hashlink.Image) *snapshot {
	s := &snapshot{
		File:       name,
		Version:    m.Version,
		Flags:      int(m.Flags),
		Entrypoint: int32(m.Entrypoint),

		Ints:       m.Ints.Items(),
		Floats:     m.Floats.Items(),
		Strings:    m.Strings.Items(),
		Bytes:      m.Bytes.Items(),
		DebugFiles: m.DebugFiles.Items(),
		Globals:    m.Globals.Items(),
		Natives:    m.Natives.Items(),
		Constants:  m.Constants.Items(),
	}

	m.Types.Range(func(_ hashlink.TypeHandle, t hashlink.TypeRecord) bool {
		r := typeRecord{Kind: t.TypeKind().String()}

		if _, ok := t.(hashlink.PrimitiveType); !ok {
			r.Rec = t
		}

		s.Types = append(s.Types, r)

		return true
	})

	m.Functions.Range(func(_ hashlink.FunctionHandle, f hashlink.Function) bool {
		x := function{
			Type:    f.Type,
			Index:   f.Index,
			Regs:    f.Regs,
			Ops:     make([]opcode, len(f.Ops)),
			Assigns: f.Assigns,
		}

		for j, op := range f.Ops {
			x.Ops[j] = opcode{Kind: op.Kind.String(), Args: op.Args}
		}

		if f.Debug != nil {
			x.Lines = make([]int32, len(f.Debug))
			x.Files = make([]int32, len(f.Debug))

			for j, l := range f.Debug {
				x.Lines[j] = l.Line
				x.Files[j] = -1

				if h, ok := l.File.Get(); ok {
					x.Files[j] = int32(h)
				}
			}
		}

		s.Functions = append(s.Functions, x)

		return true
	})

	return s
}
