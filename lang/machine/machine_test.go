package machine_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/ember/lang/compiler"
	"github.com/mna/ember/lang/heap"
	"github.com/mna/ember/lang/machine"
	"github.com/mna/ember/lang/value"
)

func run(t *testing.T, src string) (*machine.VM, *bytes.Buffer) {
	t.Helper()
	h := heap.New()
	fnRef, err := compiler.Compile(h, "<test>", []byte(src))
	require.NoError(t, err)

	var out bytes.Buffer
	vm := machine.New(h)
	vm.Stdout = &out
	_, err = vm.Run(fnRef)
	require.NoError(t, err)
	return vm, &out
}

func global(t *testing.T, vm *machine.VM, name string) value.Value {
	t.Helper()
	v, ok := vm.Global(name)
	require.True(t, ok, "global %q must be defined", name)
	return v
}

// Scenario 1: arithmetic precedence.
func TestScenarioArithmetic(t *testing.T) {
	vm, out := run(t, `print 10 + 10 + 20 * 10;`)
	_ = vm
	require.Equal(t, "220\n", out.String())
}

// Scenario 2: for loop accumulation.
func TestScenarioForLoop(t *testing.T) {
	vm, _ := run(t, `var sum=0; for(var i=0;i<100;i=i+1){sum=sum+1;} var result=sum;`)
	require.Equal(t, value.Number(100), global(t, vm, "result"))
}

// Scenario 3: recursive function calls.
func TestScenarioFibonacci(t *testing.T) {
	vm, _ := run(t, `fun fib(n){if(n<=1) return n; return fib(n-2)+fib(n-1);} var result=fib(19);`)
	require.Equal(t, value.Number(4181), global(t, vm, "result"))
}

// Scenario 4: closures over an enclosing local, outliving the enclosing
// call's return (open -> closed upvalue transition).
func TestScenarioClosureCapture(t *testing.T) {
	vm, _ := run(t, `
		fun outer(){var x="outside"; fun inner(){return x;} return inner;}
		var c=outer();
		var result=c();
	`)
	h := vm.Heap()
	result := global(t, vm, "result")
	require.True(t, result.IsObjKind(value.ObjString))
	require.Equal(t, "outside", h.String(result.AsObj()).Chars)
}

// Scenario 5: method call on an instance.
func TestScenarioMethodCall(t *testing.T) {
	vm, _ := run(t, `
		class Foo{hi(p){return "Hi "+p;}}
		var f=Foo();
		var result=f.hi("Wayne");
	`)
	h := vm.Heap()
	result := global(t, vm, "result")
	require.Equal(t, "Hi Wayne", h.String(result.AsObj()).Chars)
}

// Scenario 6: initializer sets a field visible after construction.
func TestScenarioInitializer(t *testing.T) {
	vm, _ := run(t, `
		class Foo{init(){this.name="Foo";}}
		var f=Foo();
		var result=f.name;
	`)
	h := vm.Heap()
	result := global(t, vm, "result")
	require.Equal(t, "Foo", h.String(result.AsObj()).Chars)
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	h := heap.New()
	fnRef, err := compiler.Compile(h, "<test>", []byte(`print missing;`))
	require.NoError(t, err)

	vm := machine.New(h)
	_, err = vm.Run(fnRef)
	require.Error(t, err)
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
}

func TestGlobalsSurviveRuntimeErrorAcrossRuns(t *testing.T) {
	h := heap.New()
	vm := machine.New(h)

	fn1, err := compiler.Compile(h, "<test>", []byte(`var x = 1;`))
	require.NoError(t, err)
	_, err = vm.Run(fn1)
	require.NoError(t, err)

	fn2, err := compiler.Compile(h, "<test>", []byte(`print oops;`))
	require.NoError(t, err)
	_, err = vm.Run(fn2)
	require.Error(t, err)

	v, ok := vm.Global("x")
	require.True(t, ok, "globals from a prior run must survive a later run's runtime error")
	require.Equal(t, value.Number(1), v)
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	h := heap.New()
	fnRef, err := compiler.Compile(h, "<test>", []byte(`var x = 1; x();`))
	require.NoError(t, err)
	vm := machine.New(h)
	_, err = vm.Run(fnRef)
	require.Error(t, err)
}

func TestArityMismatchIsRuntimeError(t *testing.T) {
	h := heap.New()
	fnRef, err := compiler.Compile(h, "<test>", []byte(`fun f(a,b){return a+b;} f(1);`))
	require.NoError(t, err)
	vm := machine.New(h)
	_, err = vm.Run(fnRef)
	require.Error(t, err)
}

func TestNotUsesTruthyConvention(t *testing.T) {
	vm, _ := run(t, `var a = !nil; var b = !0; var c = !false;`)
	require.Equal(t, value.Bool(true), global(t, vm, "a"))
	require.Equal(t, value.Bool(false), global(t, vm, "b"), "0 is truthy, so !0 is false")
	require.Equal(t, value.Bool(true), global(t, vm, "c"))
}
