package main

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nikand.dev/go/hashlink"
)

func TestSnapshot(tb *testing.T) {
	var e hashlink.LowEncoder

	b := append([]byte{}, hashlink.Magic[:]...)
	b = append(b, hashlink.MaxVersion)
	b = e.UIndex(b, int(hashlink.FlagDebug))

	for _, n := range []int{0, 0, 1, 1, 2, 0, 0, 1, 0, 0} { // counts and entrypoint
		b = e.UIndex(b, n)
	}

	b = e.StringBlock(b, []string{"main"})
	b = e.ByteBlock(b, [][]byte{{1, 2}})
	b = e.UIndex(b, 1)
	b = e.StringBlock(b, []string{"Main.hx"})

	b = append(b, byte(hashlink.HVoid))
	b = append(b, byte(hashlink.HFun), 0, 0) // no args, returns void

	b = e.Index(b, 1)  // type
	b = e.UIndex(b, 0) // findex
	b = e.UIndex(b, 1) // regs
	b = e.UIndex(b, 1) // ops
	b = e.Index(b, 0)
	b = e.UIndex(b, int(hashlink.Ret))
	b = e.Index(b, 0)
	b = append(b, 1, 0, 7<<3|4) // file 0, line 7
	b = e.UIndex(b, 0)          // assigns

	d, err := hashlink.Decode(b, hashlink.DefaultSettings)
	require.NoError(tb, err)

	s := newSnapshot("main.hl", d)

	assert.Equal(tb, "main.hl", s.File)
	assert.Equal(tb, []string{"main"}, s.Strings)
	assert.Equal(tb, []typeRecord{{Kind: "void"}, {Kind: "fun", Rec: d.Types.Get(1)}}, s.Types)

	require.Len(tb, s.Functions, 1)

	f := s.Functions[0]

	assert.Equal(tb, []opcode{{Kind: "Ret", Args: []int32{0}}}, f.Ops)
	assert.Equal(tb, []int32{7}, f.Lines)
	assert.Equal(tb, []int32{0}, f.Files)

	em, err := cbor.CanonicalEncOptions().EncMode()
	require.NoError(tb, err)

	data, err := em.Marshal(s)
	require.NoError(tb, err)

	var back map[string]any

	require.NoError(tb, cbor.Unmarshal(data, &back))

	assert.Equal(tb, uint64(hashlink.MaxVersion), back["version"])
	assert.Equal(tb, "main.hl", back["file"])
	assert.Len(tb, back["functions"], 1)
}
