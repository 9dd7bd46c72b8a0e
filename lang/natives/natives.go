// Package natives implements the built-in functions spec.md §6 requires to
// be injected as VM globals: clock, str, writeFile, appendFile, plus a
// supplemental len used by its own tests and by SPEC_FULL.md's expansion of
// the native surface. Each is a thin Go closure over lang/heap, converted
// to a lang/value.ObjectRef native handle and bound by name (spec.md §9:
// native argument errors are surfaced as machine.RuntimeError, not panics).
package natives

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/machine"
	"github.com/mna/ember/lang/value"
)

// Register binds every native function as a global on vm.
func Register(vm *machine.VM) {
	h := vm.Heap()
	define(vm, h, "clock", 0, clock)
	define(vm, h, "str", 1, str)
	define(vm, h, "writeFile", 2, writeFile)
	define(vm, h, "appendFile", 2, appendFile)
	define(vm, h, "len", 1, length)
}

func define(vm *machine.VM, h *heap.Heap, name string, arity int, fn func(*heap.Heap, []value.Value) (value.Value, error)) {
	ref := h.NewNative(name, arity, fn)
	vm.DefineGlobal(name, value.Obj(ref))
}

func asString(h *heap.Heap, v value.Value, argName string) (string, error) {
	if !v.IsObjKind(value.ObjString) {
		return "", fmt.Errorf("%s must be a string, got %s", argName, value.TypeName(v))
	}
	return h.String(v.AsObj()).Chars, nil
}

// clock() returns seconds since the Unix epoch as a float64 (spec.md §6).
func clock(h *heap.Heap, args []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

// str(v) renders v using the same convention as the Print opcode: minimal
// decimal numbers, nil as "nil" (spec.md §6).
func str(h *heap.Heap, args []value.Value) (value.Value, error) {
	s := h.Stringify(args[0])
	return value.Obj(h.InternString(s)), nil
}

// writeFile(path, content) overwrites path with content, after splitting
// content on the two-character sequence \n into lines and rejoining with a
// real newline — the Language's strings have no escape sequences (spec.md
// §6), so a caller that wants a multi-line file on one source line spells
// the separator out literally as backslash-n.
func writeFile(h *heap.Heap, args []value.Value) (value.Value, error) {
	path, err := asString(h, args[0], "path")
	if err != nil {
		return value.Nil, err
	}
	content, err := asString(h, args[1], "content")
	if err != nil {
		return value.Nil, err
	}
	data := joinLines(content)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return value.Bool(false), nil
	}
	return value.Bool(true), nil
}

// appendFile(path, content) is writeFile's append-mode counterpart,
// creating path if it does not yet exist.
func appendFile(h *heap.Heap, args []value.Value) (value.Value, error) {
	path, err := asString(h, args[0], "path")
	if err != nil {
		return value.Nil, err
	}
	content, err := asString(h, args[1], "content")
	if err != nil {
		return value.Nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return value.Bool(false), nil
	}
	defer f.Close()
	if _, err := f.WriteString(joinLines(content)); err != nil {
		return value.Bool(false), nil
	}
	return value.Bool(true), nil
}

// joinLines does not add a trailing newline after the last line, unlike
// original_source/src/nativefn.rs's line-by-line writeln!; spec.md §8's
// expected-result column has no trailing newline either ("220", not
// "220\n"), so this follows the spec's convention over the original's.
func joinLines(content string) string {
	return strings.Join(strings.Split(content, `\n`), "\n")
}

// length(v) returns the byte length of a string operand.
func length(h *heap.Heap, args []value.Value) (value.Value, error) {
	s, err := asString(h, args[0], "argument")
	if err != nil {
		return value.Nil, err
	}
	return value.Number(float64(len(s))), nil
}
