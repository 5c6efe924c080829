package hashlink

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Image is a decoded HashLink binary.
	// Every handle stored in it is either absent or valid in its pool.
	Image struct {
		Header  [3]byte
		Version int
		Flags   Flags

		Ints       *ListPool[IntHandle, int32]
		Floats     *ListPool[FloatHandle, float64]
		Strings    *ListPool[StringHandle, string]
		Bytes      *ListPool[BytesHandle, []byte]
		DebugFiles *ListPool[DebugFileHandle, string]
		Types      *ListPool[TypeHandle, TypeRecord]
		Globals    *ListPool[GlobalHandle, TypeHandle]
		Natives    *ListPool[NativeHandle, Native]
		Functions  *ListPool[FunctionHandle, Function]
		Constants  *ListPool[ConstantHandle, Constant]

		Entrypoint FunctionHandle
	}

	Flags int

	TypeKind uint8

	// TypeRecord is one of PrimitiveType, FunType, ObjType,
	// WrapperType, VirtualType, AbstractType, EnumType.
	TypeRecord interface {
		TypeKind() TypeKind

		typeRecord()
	}

	PrimitiveType struct {
		Kind TypeKind
	}

	// FunType is HFun or HMethod.
	FunType struct {
		Kind TypeKind
		Args []TypeHandle
		Ret  TypeHandle
	}

	// ObjType is HObj or HStruct.
	ObjType struct {
		Kind     TypeKind
		Name     StringHandle
		Super    Optional[TypeHandle]
		Global   Optional[GlobalHandle]
		Fields   []ObjField
		Protos   []ObjProto
		Bindings []ObjBinding
	}

	ObjField struct {
		Name  StringHandle
		Type  TypeHandle
		Index int
	}

	ObjProto struct {
		Name StringHandle

		// Func is a function index, natives share the index space.
		Func int32

		// Slot is the virtual table slot, negative if the method isn't virtual.
		Slot int32
	}

	ObjBinding struct {
		Field int32
		Func  int32
	}

	// WrapperType is HRef, HNull or HPacked.
	WrapperType struct {
		Kind  TypeKind
		Inner TypeHandle
	}

	VirtualType struct {
		Fields []ObjField
	}

	AbstractType struct {
		Name StringHandle
	}

	EnumType struct {
		Name       StringHandle
		Global     Optional[GlobalHandle]
		Constructs []EnumConstruct
	}

	EnumConstruct struct {
		Name   StringHandle
		Params []TypeHandle
	}

	Native struct {
		Lib  StringHandle
		Name StringHandle
		Type TypeHandle

		// Func is the function index the native is bound to.
		Func int32
	}

	Function struct {
		Type TypeHandle

		// Index is the function index used by call opcodes.
		Index int32

		Regs []TypeHandle
		Ops  []Opcode

		// Debug has one entry per opcode. It's nil unless
		// the image has debug info and it was requested.
		Debug []DebugLine

		// Assigns is nil unless the version supports them and they were requested.
		Assigns []Assign
	}

	Opcode struct {
		Kind OpKind
		Args []int32
	}

	DebugLine struct {
		File Optional[DebugFileHandle]
		Line int32
	}

	Assign struct {
		Name StringHandle
		Reg  int32
	}

	Constant struct {
		Global GlobalHandle
		Fields []int32
	}
)

// Header magic.
var Magic = [3]byte{'H', 'L', 'B'}

// Versions.
const (
	MinVersion = 2
	MaxVersion = 5

	FeatureFuncAssigns = 3
	FeatureBytes       = 5
)

const (
	FlagDebug Flags = 1 << iota
)

// Type kinds.
const (
	HVoid TypeKind = iota
	HU8
	HU16
	HI32
	HI64
	HF32
	HF64
	HBool
	HBytes
	HDyn
	HFun
	HObj
	HArray
	HType
	HRef
	HVirtual
	HDynObj
	HAbstract
	HEnum
	HNull
	HMethod
	HStruct
	HPacked
	HGuid

	typeLast
)

// NumTypeKinds is the number of known type kinds.
const NumTypeKinds = int(typeLast)

func (img *Image) HasDebug() bool {
	return img.Flags&FlagDebug != 0
}

func (img *Image) HasBytes() bool {
	return img.Version >= FeatureBytes
}

func (img *Image) HasAssigns() bool {
	return img.Version >= FeatureFuncAssigns
}

func (t PrimitiveType) TypeKind() TypeKind { return t.Kind }
func (t FunType) TypeKind() TypeKind       { return t.Kind }
func (t ObjType) TypeKind() TypeKind       { return t.Kind }
func (t WrapperType) TypeKind() TypeKind   { return t.Kind }
func (t VirtualType) TypeKind() TypeKind   { return HVirtual }
func (t AbstractType) TypeKind() TypeKind  { return HAbstract }
func (t EnumType) TypeKind() TypeKind      { return HEnum }

func (PrimitiveType) typeRecord() {}
func (FunType) typeRecord()       {}
func (ObjType) typeRecord()       {}
func (WrapperType) typeRecord()   {}
func (VirtualType) typeRecord()   {}
func (AbstractType) typeRecord()  {}
func (EnumType) typeRecord()      {}

// Result returns the register the opcode stores its result into.
func (op Opcode) Result() (reg int32, ok bool) {
	ops := op.Kind.Operands()
	if len(ops) == 0 || ops[0] != OpReg || len(op.Args) == 0 {
		return 0, false
	}

	switch op.Kind {
	case Incr, Decr, Ret, Throw, Rethrow, NullCheck, Switch, JTrue, JFalse, JNull, JNotNull,
		JSLt, JSGte, JSGt, JSLte, JULt, JUGte, JNotLt, JNotGte, JEq, JNotEq,
		SetField, DynSet, SetI8, SetI16, SetMem, SetArray, Setref, SetEnumField, Prefetch:
		return 0, false
	}

	return op.Args[0], true
}

// Varargs returns the trailing register list of call-like opcodes.
func (op Opcode) Varargs() []int32 {
	if !op.Kind.IsCall() || len(op.Args) < 3 {
		return nil
	}

	return op.Args[3:]
}

// SwitchTargets returns Switch case offsets.
func (op Opcode) SwitchTargets() []int32 {
	if op.Kind != Switch || len(op.Args) < 3 {
		return nil
	}

	return op.Args[2 : len(op.Args)-1]
}

// Default returns Switch default offset.
func (op Opcode) Default() int32 {
	if op.Kind != Switch || len(op.Args) < 3 {
		return 0
	}

	return op.Args[len(op.Args)-1]
}

func (op Opcode) String() string {
	return fmt.Sprintf("%v %v", op.Kind, op.Args)
}

func (op Opcode) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendArray(b, 1+len(op.Args))
	b = e.AppendString(b, op.Kind.String())

	for _, a := range op.Args {
		b = e.AppendInt(b, int(a))
	}

	return b
}

func (k TypeKind) Valid() bool { return k < typeLast }

func (k TypeKind) String() string {
	if k < typeLast {
		return typeNames[k]
	}

	return fmt.Sprintf("type%d", int(k))
}

func (k TypeKind) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendString(b, k.String())
}

var typeNames = [typeLast]string{
	HVoid:     "void",
	HU8:       "u8",
	HU16:      "u16",
	HI32:      "i32",
	HI64:      "i64",
	HF32:      "f32",
	HF64:      "f64",
	HBool:     "bool",
	HBytes:    "bytes",
	HDyn:      "dyn",
	HFun:      "fun",
	HObj:      "obj",
	HArray:    "array",
	HType:     "type",
	HRef:      "ref",
	HVirtual:  "virtual",
	HDynObj:   "dynobj",
	HAbstract: "abstract",
	HEnum:     "enum",
	HNull:     "null",
	HMethod:   "method",
	HStruct:   "struct",
	HPacked:   "packed",
	HGuid:     "guid",
}
