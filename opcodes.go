package hashlink

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"
)

type (
	OpKind uint8

	// Operand tells what an opcode argument refers to.
	Operand uint8
)

// Opcodes.
const (
	Mov OpKind = iota
	Int
	Float
	Bool
	Bytes
	String
	Null

	Add
	Sub
	Mul
	SDiv
	UDiv
	SMod
	UMod
	Shl
	SShr
	UShr
	And
	Or
	Xor

	Neg
	Not
	Incr
	Decr

	Call0
	Call1
	Call2
	Call3
	Call4
	CallN
	CallMethod
	CallThis
	CallClosure

	StaticClosure
	InstanceClosure
	VirtualClosure

	GetGlobal
	SetGlobal
	Field
	SetField
	GetThis
	SetThis
	DynGet
	DynSet

	JTrue
	JFalse
	JNull
	JNotNull
	JSLt
	JSGte
	JSGt
	JSLte
	JULt
	JUGte
	JNotLt
	JNotGte
	JEq
	JNotEq
	JAlways

	ToDyn
	ToSFloat
	ToUFloat
	ToInt
	SafeCast
	UnsafeCast
	ToVirtual

	Label
	Ret
	Throw
	Rethrow
	Switch
	NullCheck
	Trap
	EndTrap

	GetI8
	GetI16
	GetMem
	GetArray
	SetI8
	SetI16
	SetMem
	SetArray

	New
	ArraySize
	Type
	GetType
	GetTID

	Ref
	Unref
	Setref

	MakeEnum
	EnumAlloc
	EnumIndex
	EnumField
	SetEnumField

	Assert
	RefData
	RefOffset
	Nop

	Prefetch
	Asm

	opLast
)

// Operand kinds.
const (
	OpValue Operand = iota // raw value
	OpReg
	OpInt
	OpFloat
	OpString
	OpBytes
	OpType
	OpGlobal
	OpFunc   // function index, natives share the index space
	OpField  // field or prototype index of a register type
	OpOffset // jump offset relative to the next opcode
	OpCount  // length of the trailing operand list
)

// Variable arity marker.
const VarArity = -1

// NumOpKinds is the number of known opcode kinds.
const NumOpKinds = int(opLast)

var arity = [opLast]int8{
	Mov: 2, Int: 2, Float: 2, Bool: 2, Bytes: 2, String: 2, Null: 1,

	Add: 3, Sub: 3, Mul: 3, SDiv: 3, UDiv: 3, SMod: 3, UMod: 3,
	Shl: 3, SShr: 3, UShr: 3, And: 3, Or: 3, Xor: 3,

	Neg: 2, Not: 2, Incr: 1, Decr: 1,

	Call0: 2, Call1: 3, Call2: 4, Call3: 5, Call4: 6,
	CallN: VarArity, CallMethod: VarArity, CallThis: VarArity, CallClosure: VarArity,

	StaticClosure: 2, InstanceClosure: 3, VirtualClosure: 3,

	GetGlobal: 2, SetGlobal: 2, Field: 3, SetField: 3, GetThis: 2, SetThis: 2, DynGet: 3, DynSet: 3,

	JTrue: 2, JFalse: 2, JNull: 2, JNotNull: 2,
	JSLt: 3, JSGte: 3, JSGt: 3, JSLte: 3, JULt: 3, JUGte: 3, JNotLt: 3, JNotGte: 3, JEq: 3, JNotEq: 3,
	JAlways: 1,

	ToDyn: 2, ToSFloat: 2, ToUFloat: 2, ToInt: 2, SafeCast: 2, UnsafeCast: 2, ToVirtual: 2,

	Label: 0, Ret: 1, Throw: 1, Rethrow: 1, Switch: VarArity, NullCheck: 1, Trap: 2, EndTrap: 1,

	GetI8: 3, GetI16: 3, GetMem: 3, GetArray: 3, SetI8: 3, SetI16: 3, SetMem: 3, SetArray: 3,

	New: 1, ArraySize: 2, Type: 2, GetType: 2, GetTID: 2,

	Ref: 2, Unref: 2, Setref: 2,

	MakeEnum: VarArity, EnumAlloc: 2, EnumIndex: 2, EnumField: 4, SetEnumField: 3,

	Assert: 0, RefData: 2, RefOffset: 3, Nop: 0,

	Prefetch: 3, Asm: 3,
}

var (
	rrr = []Operand{OpReg, OpReg, OpReg}
	rr  = []Operand{OpReg, OpReg}
	ro  = []Operand{OpReg, OpOffset}
	rro = []Operand{OpReg, OpReg, OpOffset}
)

// operands lists fixed operands. For variable arity kinds
// it's the prefix, the tail is registers for calls and offsets for Switch.
var operands = [opLast][]Operand{
	Mov:    rr,
	Int:    {OpReg, OpInt},
	Float:  {OpReg, OpFloat},
	Bool:   {OpReg, OpValue},
	Bytes:  {OpReg, OpBytes},
	String: {OpReg, OpString},
	Null:   {OpReg},

	Add: rrr, Sub: rrr, Mul: rrr, SDiv: rrr, UDiv: rrr, SMod: rrr, UMod: rrr,
	Shl: rrr, SShr: rrr, UShr: rrr, And: rrr, Or: rrr, Xor: rrr,

	Neg: rr, Not: rr, Incr: {OpReg}, Decr: {OpReg},

	Call0:       {OpReg, OpFunc},
	Call1:       {OpReg, OpFunc, OpReg},
	Call2:       {OpReg, OpFunc, OpReg, OpReg},
	Call3:       {OpReg, OpFunc, OpReg, OpReg, OpReg},
	Call4:       {OpReg, OpFunc, OpReg, OpReg, OpReg, OpReg},
	CallN:       {OpReg, OpFunc, OpCount},
	CallMethod:  {OpReg, OpField, OpCount},
	CallThis:    {OpReg, OpField, OpCount},
	CallClosure: {OpReg, OpReg, OpCount},

	StaticClosure:   {OpReg, OpFunc},
	InstanceClosure: {OpReg, OpFunc, OpReg},
	VirtualClosure:  {OpReg, OpReg, OpField},

	GetGlobal: {OpReg, OpGlobal},
	SetGlobal: {OpGlobal, OpReg},
	Field:     {OpReg, OpReg, OpField},
	SetField:  {OpReg, OpField, OpReg},
	GetThis:   {OpReg, OpField},
	SetThis:   {OpField, OpReg},
	DynGet:    {OpReg, OpReg, OpString},
	DynSet:    {OpReg, OpString, OpReg},

	JTrue: ro, JFalse: ro, JNull: ro, JNotNull: ro,
	JSLt: rro, JSGte: rro, JSGt: rro, JSLte: rro, JULt: rro, JUGte: rro, JNotLt: rro, JNotGte: rro, JEq: rro, JNotEq: rro,
	JAlways: {OpOffset},

	ToDyn: rr, ToSFloat: rr, ToUFloat: rr, ToInt: rr, SafeCast: rr, UnsafeCast: rr, ToVirtual: rr,

	Label:     {},
	Ret:       {OpReg},
	Throw:     {OpReg},
	Rethrow:   {OpReg},
	Switch:    {OpReg, OpCount},
	NullCheck: {OpReg},
	Trap:      ro,
	EndTrap:   {OpValue},

	GetI8: rrr, GetI16: rrr, GetMem: rrr, GetArray: rrr,
	SetI8: rrr, SetI16: rrr, SetMem: rrr, SetArray: rrr,

	New:       {OpReg},
	ArraySize: rr,
	Type:      {OpReg, OpType},
	GetType:   rr,
	GetTID:    rr,

	Ref: rr, Unref: rr, Setref: rr,

	MakeEnum:     {OpReg, OpValue, OpCount},
	EnumAlloc:    {OpReg, OpValue},
	EnumIndex:    rr,
	EnumField:    {OpReg, OpReg, OpValue, OpValue},
	SetEnumField: {OpReg, OpValue, OpReg},

	Assert:    {},
	RefData:   rr,
	RefOffset: rrr,
	Nop:       {},

	Prefetch: {OpReg, OpField, OpValue},
	Asm:      {OpValue, OpValue, OpValue},
}

func init() {
	if opLast != 101 {
		panic(opLast)
	}

	for k := OpKind(0); k < opLast; k++ {
		if a := arity[k]; a != VarArity && int(a) != len(operands[k]) {
			panic(k)
		}
	}
}

// Arity returns the number of fixed operands or VarArity.
func (k OpKind) Arity() int {
	if k >= opLast {
		return VarArity
	}

	return int(arity[k])
}

// Operands returns operand kinds of the fixed part of the opcode.
func (k OpKind) Operands() []Operand {
	if k >= opLast {
		return nil
	}

	return operands[k]
}

// IsCall tells if the kind carries a trailing register list.
func (k OpKind) IsCall() bool {
	switch k {
	case CallN, CallMethod, CallThis, CallClosure, MakeEnum:
		return true
	}

	return false
}

func (k OpKind) Valid() bool { return k < opLast }

func (k OpKind) String() string {
	if k < opLast {
		return opNames[k]
	}

	return fmt.Sprintf("op%d", int(k))
}

func (k OpKind) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendString(b, k.String())
}

var opNames = [opLast]string{
	Mov:    "Mov",
	Int:    "Int",
	Float:  "Float",
	Bool:   "Bool",
	Bytes:  "Bytes",
	String: "String",
	Null:   "Null",

	Add:  "Add",
	Sub:  "Sub",
	Mul:  "Mul",
	SDiv: "SDiv",
	UDiv: "UDiv",
	SMod: "SMod",
	UMod: "UMod",
	Shl:  "Shl",
	SShr: "SShr",
	UShr: "UShr",
	And:  "And",
	Or:   "Or",
	Xor:  "Xor",

	Neg:  "Neg",
	Not:  "Not",
	Incr: "Incr",
	Decr: "Decr",

	Call0:       "Call0",
	Call1:       "Call1",
	Call2:       "Call2",
	Call3:       "Call3",
	Call4:       "Call4",
	CallN:       "CallN",
	CallMethod:  "CallMethod",
	CallThis:    "CallThis",
	CallClosure: "CallClosure",

	StaticClosure:   "StaticClosure",
	InstanceClosure: "InstanceClosure",
	VirtualClosure:  "VirtualClosure",

	GetGlobal: "GetGlobal",
	SetGlobal: "SetGlobal",
	Field:     "Field",
	SetField:  "SetField",
	GetThis:   "GetThis",
	SetThis:   "SetThis",
	DynGet:    "DynGet",
	DynSet:    "DynSet",

	JTrue:    "JTrue",
	JFalse:   "JFalse",
	JNull:    "JNull",
	JNotNull: "JNotNull",
	JSLt:     "JSLt",
	JSGte:    "JSGte",
	JSGt:     "JSGt",
	JSLte:    "JSLte",
	JULt:     "JULt",
	JUGte:    "JUGte",
	JNotLt:   "JNotLt",
	JNotGte:  "JNotGte",
	JEq:      "JEq",
	JNotEq:   "JNotEq",
	JAlways:  "JAlways",

	ToDyn:      "ToDyn",
	ToSFloat:   "ToSFloat",
	ToUFloat:   "ToUFloat",
	ToInt:      "ToInt",
	SafeCast:   "SafeCast",
	UnsafeCast: "UnsafeCast",
	ToVirtual:  "ToVirtual",

	Label:     "Label",
	Ret:       "Ret",
	Throw:     "Throw",
	Rethrow:   "Rethrow",
	Switch:    "Switch",
	NullCheck: "NullCheck",
	Trap:      "Trap",
	EndTrap:   "EndTrap",

	GetI8:    "GetI8",
	GetI16:   "GetI16",
	GetMem:   "GetMem",
	GetArray: "GetArray",
	SetI8:    "SetI8",
	SetI16:   "SetI16",
	SetMem:   "SetMem",
	SetArray: "SetArray",

	New:       "New",
	ArraySize: "ArraySize",
	Type:      "Type",
	GetType:   "GetType",
	GetTID:    "GetTID",

	Ref:    "Ref",
	Unref:  "Unref",
	Setref: "Setref",

	MakeEnum:     "MakeEnum",
	EnumAlloc:    "EnumAlloc",
	EnumIndex:    "EnumIndex",
	EnumField:    "EnumField",
	SetEnumField: "SetEnumField",

	Assert:    "Assert",
	RefData:   "RefData",
	RefOffset: "RefOffset",
	Nop:       "Nop",

	Prefetch: "Prefetch",
	Asm:      "Asm",
}

func (o Operand) String() string {
	if int(o) < len(operandNames) {
		return operandNames[o]
	}

	return fmt.Sprintf("operand%d", int(o))
}

var operandNames = []string{
	OpValue:  "value",
	OpReg:    "reg",
	OpInt:    "int",
	OpFloat:  "float",
	OpString: "string",
	OpBytes:  "bytes",
	OpType:   "type",
	OpGlobal: "global",
	OpFunc:   "func",
	OpField:  "field",
	OpOffset: "offset",
	OpCount:  "count",
}
