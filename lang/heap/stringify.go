package heap

import "github.com/mna/ember/lang/value"

// Stringify renders v the way Print and the "str" native do: minimal
// decimal numbers, bare (unquoted) string contents, and clox-style debug
// names for the callable/class object kinds (spec.md §6 only specifies the
// Number/Bool/Nil/String cases precisely; the rest follow the same
// convention the teacher uses for its own debug Stringers).
func (h *Heap) Stringify(v value.Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return value.FormatNumber(v.AsNumber())
	case v.IsObjKind(value.ObjString):
		return h.String(v.AsObj()).Chars
	case v.IsObjKind(value.ObjFunction):
		return "<fn " + h.Function(v.AsObj()).Name + ">"
	case v.IsObjKind(value.ObjClosure):
		return "<fn " + h.Function(h.Closure(v.AsObj()).Function).Name + ">"
	case v.IsObjKind(value.ObjNative):
		return "<native fn " + h.Native(v.AsObj()).Name + ">"
	case v.IsObjKind(value.ObjClass):
		return h.Class(v.AsObj()).Name
	case v.IsObjKind(value.ObjInstance):
		inst := h.Instance(v.AsObj())
		return h.Class(inst.Class).Name + " instance"
	case v.IsObjKind(value.ObjBoundMethod):
		bm := h.BoundMethod(v.AsObj())
		return "<fn " + h.Function(h.Closure(bm.Method).Function).Name + ">"
	default:
		return "<unknown>"
	}
}
