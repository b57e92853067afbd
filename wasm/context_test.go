package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModuleContext_FunctionType(t *testing.T) {
	mc := NewModuleContext(0)
	mc.Types = []DefinedType{{Kind: DefinedTypeFunction, Function: FunctionType{
		Params:  []ValueVariant{i32v()},
		Results: []ValueVariant{i64v()},
	}}}
	mc.Functions = []Index{0}

	ft, ok := mc.FunctionType(0)
	require.True(t, ok)
	require.Equal(t, []ValueVariant{i32v()}, ft.Params)

	_, ok = mc.FunctionType(1)
	require.False(t, ok)
}

func TestModuleContext_FunctionType_NonFunctionDefinedType(t *testing.T) {
	mc := NewModuleContext(FeatureGC)
	mc.Types = []DefinedType{{Kind: DefinedTypeStruct}}
	mc.Functions = []Index{0}

	_, ok := mc.FunctionType(0)
	require.False(t, ok)
}

func TestModuleContext_IndexAccessors_OutOfRange(t *testing.T) {
	mc := NewModuleContext(0)
	_, ok := mc.TableAt(0)
	require.False(t, ok)
	_, ok = mc.MemoryAt(0)
	require.False(t, ok)
	_, ok = mc.GlobalAt(0)
	require.False(t, ok)
	_, ok = mc.EventAt(0)
	require.False(t, ok)
}

func TestModuleContext_FunctionCount(t *testing.T) {
	mc := NewModuleContext(0)
	mc.Functions = []Index{0, 0, 1}
	require.Equal(t, Index(3), mc.FunctionCount())
}
