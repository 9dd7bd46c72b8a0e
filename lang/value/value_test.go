package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/ember/lang/value"
)

func TestTruthy(t *testing.T) {
	require.False(t, value.Truthy(value.Nil))
	require.False(t, value.Truthy(value.Bool(false)))
	require.True(t, value.Truthy(value.Bool(true)))
	require.True(t, value.Truthy(value.Number(0)))
	require.True(t, value.Truthy(value.Obj(value.ObjectRef{Kind: value.ObjString, Handle: 1})))
}

func TestEqual(t *testing.T) {
	require.True(t, value.Equal(value.Nil, value.Nil))
	require.True(t, value.Equal(value.Number(1), value.Number(1)))
	require.False(t, value.Equal(value.Number(1), value.Number(2)))
	require.False(t, value.Equal(value.Number(1), value.Bool(true)))

	s1 := value.Obj(value.ObjectRef{Kind: value.ObjString, Handle: 42})
	s2 := value.Obj(value.ObjectRef{Kind: value.ObjString, Handle: 42})
	require.True(t, value.Equal(s1, s2), "strings with the same content hash must compare equal")

	i1 := value.Obj(value.ObjectRef{Kind: value.ObjInstance, Handle: 1})
	i2 := value.Obj(value.ObjectRef{Kind: value.ObjInstance, Handle: 2})
	require.False(t, value.Equal(i1, i2))
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "220", value.FormatNumber(220))
	require.Equal(t, "3.14", value.FormatNumber(3.14))
	require.Equal(t, "0", value.FormatNumber(0))
}

func TestTypeName(t *testing.T) {
	require.Equal(t, "nil", value.TypeName(value.Nil))
	require.Equal(t, "boolean", value.TypeName(value.Bool(true)))
	require.Equal(t, "number", value.TypeName(value.Number(1)))
	require.Equal(t, "string", value.TypeName(value.Obj(value.ObjectRef{Kind: value.ObjString})))
}
