// Package value defines the Language's runtime Value representation: a
// small tagged union rather than an interface hierarchy, so that dispatch on
// a value's kind is a direct switch instead of virtual indirection (see
// spec.md §9, "Dynamic dispatch on callable kinds").
package value

import "strconv"

// Kind identifies which variant of Value is populated.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// ObjKind identifies which heap-resident object kind an ObjectRef points to.
type ObjKind uint8

const (
	ObjString ObjKind = iota
	ObjFunction
	ObjNative
	ObjClosure
	ObjClass
	ObjInstance
	ObjBoundMethod
)

func (k ObjKind) String() string {
	switch k {
	case ObjString:
		return "string"
	case ObjFunction:
		return "function"
	case ObjNative:
		return "native function"
	case ObjClosure:
		return "closure"
	case ObjClass:
		return "class"
	case ObjInstance:
		return "instance"
	case ObjBoundMethod:
		return "bound method"
	default:
		return "unknown object"
	}
}

// ObjectRef is an opaque handle to a heap-resident object. For ObjString,
// Handle is the 32-bit content hash of the interned string (see
// lang/heap); for every other kind, Handle is a positional index into the
// heap's container for that kind. Resolution always requires the Heap;
// ObjectRef alone carries no data.
type ObjectRef struct {
	Kind   ObjKind
	Handle uint32
}

// Value is a trivially-copyable tagged union: Number, Bool, Nil, or Obj.
// All nontrivial storage lives behind an ObjectRef into the Heap.
type Value struct {
	kind Kind
	b    bool
	n    float64
	obj  ObjectRef
}

// Nil is the single nil value.
var Nil = Value{kind: KindNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Obj constructs a Value wrapping a heap object handle.
func Obj(ref ObjectRef) Value { return Value{kind: KindObj, obj: ref} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNil() bool  { return v.kind == KindNil }
func (v Value) IsBool() bool { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObj() bool  { return v.kind == KindObj }

// IsObjKind reports whether v holds an object of the given kind.
func (v Value) IsObjKind(k ObjKind) bool { return v.kind == KindObj && v.obj.Kind == k }

// AsBool returns v's boolean payload. It does not check the kind: for a
// non-Bool v it returns false, so callers check IsBool first.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns v's numeric payload. It does not check the kind: for a
// non-Number v it returns 0, so callers check IsNumber first.
func (v Value) AsNumber() float64 { return v.n }

// AsObj returns v's object handle. It does not check the kind: for a
// non-Obj v it returns the zero ObjectRef, so callers check IsObj first.
func (v Value) AsObj() ObjectRef { return v.obj }

// Truthy implements the Language's single truthiness convention, used
// uniformly by JumpIfFalse, Not, and the short-circuiting "and"/"or"
// operators (spec.md §9 resolves the Not-vs-JumpIfFalse ambiguity this way:
// both treat nil and false as falsy, everything else as truthy).
func Truthy(v Value) bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	default:
		return true
	}
}

// Equal reports whether a and b are the Language's notion of equal values.
// Object equality is by handle identity, except strings: since a String's
// handle IS its content hash (see lang/heap), two distinct String values
// with the same content always compare equal without special-casing.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindObj:
		return a.obj.Kind == b.obj.Kind && a.obj.Handle == b.obj.Handle
	default:
		return false
	}
}

// TypeName returns a short, user-facing description of v's type, used in
// runtime error messages.
func TypeName(v Value) string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindObj:
		return v.obj.Kind.String()
	default:
		return "unknown"
	}
}

// FormatNumber renders a float64 using the Language's minimal decimal form:
// integral values print without a fractional part.
func FormatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
