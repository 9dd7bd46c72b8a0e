package natives_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/ember/lang/compiler"
	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/machine"
	"github.com/mna/ember/lang/natives"
	"github.com/mna/ember/lang/value"
)

func newVM(t *testing.T) *machine.VM {
	t.Helper()
	h := heap.New()
	vm := machine.New(h)
	natives.Register(vm)
	return vm
}

func runSrc(t *testing.T, vm *machine.VM, src string) {
	t.Helper()
	fnRef, err := compiler.Compile(vm.Heap(), "<test>", []byte(src))
	require.NoError(t, err)
	_, err = vm.Run(fnRef)
	require.NoError(t, err)
}

func TestClockReturnsNumber(t *testing.T) {
	vm := newVM(t)
	runSrc(t, vm, `var t = clock();`)
	v, ok := vm.Global("t")
	require.True(t, ok)
	require.True(t, v.IsNumber())
	require.Greater(t, v.AsNumber(), 0.0)
}

// TestStrRoundTrip checks invariant 6 from spec.md §8 for one value: str(3.5)
// renders exactly "3.5", the text that parses back to 3.5.
func TestStrRoundTrip(t *testing.T) {
	vm := newVM(t)
	runSrc(t, vm, `var s = str(3.5);`)
	v, ok := vm.Global("s")
	require.True(t, ok)
	require.True(t, v.IsObjKind(value.ObjString))
	require.Equal(t, "3.5", vm.Heap().String(v.AsObj()).Chars)
}

func TestStrOfIntegralNumberHasNoFraction(t *testing.T) {
	vm := newVM(t)
	runSrc(t, vm, `var s = str(4181);`)
	v, _ := vm.Global("s")
	require.Equal(t, "4181", vm.Heap().String(v.AsObj()).Chars)
}

func TestStrOfNil(t *testing.T) {
	vm := newVM(t)
	runSrc(t, vm, `var s = str(nil);`)
	v, _ := vm.Global("s")
	require.Equal(t, "nil", vm.Heap().String(v.AsObj()).Chars)
}

func TestWriteFileRoundTrip(t *testing.T) {
	vm := newVM(t)
	path := filepath.Join(t.TempDir(), "out.txt")
	runSrc(t, vm, `var ok = writeFile("`+path+`", "hello");`)

	v, _ := vm.Global("ok")
	require.Equal(t, value.Bool(true), v)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestWriteFileSplitsOnBackslashN(t *testing.T) {
	vm := newVM(t)
	path := filepath.Join(t.TempDir(), "out.txt")
	runSrc(t, vm, `var ok = writeFile("`+path+`", "line1\nline2");`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "line1\nline2", string(data))
}

func TestAppendFileAppends(t *testing.T) {
	vm := newVM(t)
	path := filepath.Join(t.TempDir(), "out.txt")
	runSrc(t, vm, `writeFile("`+path+`", "a");`)
	runSrc(t, vm, `appendFile("`+path+`", "b");`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "ab", string(data))
}

func TestLenOfString(t *testing.T) {
	vm := newVM(t)
	runSrc(t, vm, `var n = len("hello");`)
	v, _ := vm.Global("n")
	require.Equal(t, value.Number(5), v)
}

func TestNativeArgumentTypeErrorIsRuntimeError(t *testing.T) {
	vm := newVM(t)
	fnRef, err := compiler.Compile(vm.Heap(), "<test>", []byte(`len(42);`))
	require.NoError(t, err)
	_, err = vm.Run(fnRef)
	require.Error(t, err)
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
}
