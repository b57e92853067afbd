package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeError_ErrorRendersFramesThenMessage(t *testing.T) {
	err := &DecodeError{
		Frames: []ContextFrame{
			{Offset: 4, Description: "type section"},
			{Offset: 10, Description: "type[2]"},
		},
		Message: "invalid form 0x99",
	}
	require.Equal(t, "type section: type[2]: invalid form 0x99", err.Error())
}

func TestErrorSink_RecordCapturesActiveContextStack(t *testing.T) {
	sink := NewErrorSink()
	sink.PushContext(0, "module")
	sink.PushContext(8, "function[1]")
	err := sink.Record(12, "unexpected opcode 0x%02x", 0xee)
	sink.PopContext()
	sink.PopContext()

	require.True(t, sink.HasErrors())
	require.Equal(t, "module: function[1]: unexpected opcode 0xee", err.Error())
	require.Len(t, sink.Errors(), 1)
}

func TestErrorSink_PopContextPastEmptyIsNoop(t *testing.T) {
	sink := NewErrorSink()
	sink.PopContext()
	require.False(t, sink.HasErrors())
}

func TestFeatureDisabledError_Message(t *testing.T) {
	err := &FeatureDisabledError{Feature: "gc"}
	require.Equal(t, `feature "gc" is disabled`, err.Error())
}
