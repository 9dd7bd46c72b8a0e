package chunk

// OpCode identifies a single bytecode instruction. Operand encodings are
// fixed per opcode (see spec.md §4.2): most operands are a single byte, jump
// targets are two-byte big-endian relative offsets, and OpClosure is
// followed by a variable number of upvalue-descriptor byte pairs.
type OpCode byte

const (
	OpConstant OpCode = iota // 1-byte const idx: push constant

	OpNil   // push nil
	OpTrue  // push true
	OpFalse // push false

	OpPop // discard top of stack

	OpGetLocal // 1-byte slot: push frame-local slot
	OpSetLocal // 1-byte slot: store top of stack into frame-local slot (no pop)

	OpGetGlobal    // 1-byte name const idx: push global
	OpSetGlobal    // 1-byte name const idx: assign existing global (error if undefined)
	OpDefineGlobal // 1-byte name const idx: define/overwrite global

	OpGetUpvalue // 1-byte upvalue idx: push value referenced by the current closure's upvalue cell
	OpSetUpvalue // 1-byte upvalue idx: store top of stack into that cell (no pop)

	OpGetProperty // 1-byte name const idx: field lookup, falling back to method binding
	OpSetProperty // 1-byte name const idx: field assignment

	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide

	OpNot
	OpNegate

	OpPrint

	OpJump        // 2-byte big-endian: unconditional forward jump
	OpJumpIfFalse // 2-byte big-endian: conditional forward jump, peeks without popping
	OpLoop        // 2-byte big-endian: unconditional backward jump

	OpCall // 1-byte arg count

	OpClosure // 1-byte function const idx, then 2*upvalue_count bytes: (is_local, index) pairs
	OpCloseValue

	OpClass  // 1-byte name const idx
	OpMethod // 1-byte name const idx: pop closure, bind into class beneath it

	OpInvoke // 1-byte name const idx, 1-byte arg count

	OpReturn
)

var opCodeNames = [...]string{
	OpConstant:     "CONSTANT",
	OpNil:          "NIL",
	OpTrue:         "TRUE",
	OpFalse:        "FALSE",
	OpPop:          "POP",
	OpGetLocal:     "GET_LOCAL",
	OpSetLocal:     "SET_LOCAL",
	OpGetGlobal:    "GET_GLOBAL",
	OpSetGlobal:    "SET_GLOBAL",
	OpDefineGlobal: "DEFINE_GLOBAL",
	OpGetUpvalue:   "GET_UPVALUE",
	OpSetUpvalue:   "SET_UPVALUE",
	OpGetProperty:  "GET_PROPERTY",
	OpSetProperty:  "SET_PROPERTY",
	OpEqual:        "EQUAL",
	OpGreater:      "GREATER",
	OpLess:         "LESS",
	OpAdd:          "ADD",
	OpSubtract:     "SUBTRACT",
	OpMultiply:     "MULTIPLY",
	OpDivide:       "DIVIDE",
	OpNot:          "NOT",
	OpNegate:       "NEGATE",
	OpPrint:        "PRINT",
	OpJump:         "JUMP",
	OpJumpIfFalse:  "JUMP_IF_FALSE",
	OpLoop:         "LOOP",
	OpCall:         "CALL",
	OpClosure:      "CLOSURE",
	OpCloseValue:   "CLOSE_VALUE",
	OpClass:        "CLASS",
	OpMethod:       "METHOD",
	OpInvoke:       "INVOKE",
	OpReturn:       "RETURN",
}

func (op OpCode) String() string {
	if int(op) < len(opCodeNames) {
		return opCodeNames[op]
	}
	return "UNKNOWN"
}
