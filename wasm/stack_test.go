package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func i32v() ValueVariant { return NumericValue(ValueTypeI32) }
func i64v() ValueVariant { return NumericValue(ValueTypeI64) }

func TestOpdStack_PushPopVal(t *testing.T) {
	ctx := NewCtx(0, nil)
	s := newOpdStack()
	s.pushCtrl(ctrlFunction, nil, []ValueVariant{i32v()})
	s.pushVal(i32v())
	v, ok, msg := s.popVal(ctx, nil)
	require.True(t, ok, msg)
	require.Equal(t, i32v(), v.Value)
}

func TestOpdStack_PopVal_TypeMismatch(t *testing.T) {
	ctx := NewCtx(0, nil)
	s := newOpdStack()
	s.pushCtrl(ctrlFunction, nil, nil)
	s.pushVal(i64v())
	expect := i32v()
	_, ok, msg := s.popVal(ctx, &expect)
	require.False(t, ok)
	require.Equal(t, "Expected stack to contain [i32], got [i64]", msg)
}

func TestOpdStack_PopVal_UnderflowWithoutUnreachable(t *testing.T) {
	ctx := NewCtx(0, nil)
	s := newOpdStack()
	s.pushCtrl(ctrlFunction, nil, nil)
	_, ok, msg := s.popVal(ctx, nil)
	require.False(t, ok)
	require.NotEmpty(t, msg)
}

func TestOpdStack_PopVal_PolymorphicAfterUnreachable(t *testing.T) {
	ctx := NewCtx(0, nil)
	s := newOpdStack()
	s.pushCtrl(ctrlFunction, nil, nil)
	s.markUnreachable()
	expect := i32v()
	v, ok, msg := s.popVal(ctx, &expect)
	require.True(t, ok, msg)
	require.True(t, v.IsAny)
}

func TestOpdStack_PopCtrl_LeftoverValueFails(t *testing.T) {
	ctx := NewCtx(0, nil)
	s := newOpdStack()
	s.pushCtrl(ctrlBlock, nil, nil)
	s.pushVal(i32v())
	_, ok, msg := s.popCtrl(ctx)
	require.False(t, ok)
	require.NotEmpty(t, msg)
}

func TestOpdStack_PopCtrl_MatchesEndTypes(t *testing.T) {
	ctx := NewCtx(0, nil)
	s := newOpdStack()
	s.pushCtrl(ctrlBlock, nil, []ValueVariant{i32v()})
	s.pushVal(i32v())
	frame, ok, msg := s.popCtrl(ctx)
	require.True(t, ok, msg)
	require.Equal(t, ctrlBlock, frame.kind)
}

func TestCtrlFrame_LabelTypes_LoopTargetsStart(t *testing.T) {
	loop := ctrlFrame{kind: ctrlLoop, startTypes: []ValueVariant{i32v()}, endTypes: []ValueVariant{i64v()}}
	require.Equal(t, loop.startTypes, loop.labelTypes())

	block := ctrlFrame{kind: ctrlBlock, startTypes: []ValueVariant{i32v()}, endTypes: []ValueVariant{i64v()}}
	require.Equal(t, block.endTypes, block.labelTypes())
}

func TestOpdStack_LabelResolvesByDepth(t *testing.T) {
	s := newOpdStack()
	s.pushCtrl(ctrlFunction, nil, nil)
	s.pushCtrl(ctrlBlock, nil, nil)
	s.pushCtrl(ctrlLoop, nil, nil)

	inner, ok := s.label(0)
	require.True(t, ok)
	require.Equal(t, ctrlLoop, inner.kind)

	outer, ok := s.label(2)
	require.True(t, ok)
	require.Equal(t, ctrlFunction, outer.kind)

	_, ok = s.label(3)
	require.False(t, ok)
}
