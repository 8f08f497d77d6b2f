package agent

import (
	"testing"

	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
	"github.com/fansqz/go-jdwp/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSetRequest(t *testing.T) {
	w := protocol.NewWriter(8)
	w.Uint8(uint8(constants.EventBreakpoint))
	w.Uint8(uint8(constants.SuspendAll))
	w.Int32(3)
	w.Uint8(uint8(constants.ModifierLocationOnly))
	w.Location(loc(9, 12))
	w.Uint8(uint8(constants.ModifierCount))
	w.Int32(2)
	w.Uint8(uint8(constants.ModifierClassExclude))
	w.UTF8("java.*")

	req, err := DecodeSetRequest(protocol.NewReader(w.Bytes(), 8))
	require.NoError(t, err)
	assert.Equal(t, constants.EventBreakpoint, req.Kind)
	assert.Equal(t, constants.SuspendAll, req.SuspendPolicy)
	require.Len(t, req.Modifiers, 3)
	assert.Equal(t, LocationOnly{Location: loc(9, 12)}, req.Modifiers[0])
	assert.Equal(t, &Count{Remaining: 2}, req.Modifiers[1])
	assert.Equal(t, ClassExclude{Pattern: "java.*"}, req.Modifiers[2])
}

func TestEncodeSetRequestStep(t *testing.T) {
	req := NewEventRequest(constants.EventSingleStep, constants.SuspendEventThread,
		&Step{Thread: 3, Size: constants.StepLine, Depth: constants.StepOut},
		ExceptionOnly{Exception: 4, Caught: true},
		FieldOnly{Class: 1, Field: 2},
		InstanceOnly{Object: 8},
	)
	w := protocol.NewWriter(8)
	EncodeSetRequest(w, req)

	decoded, err := DecodeSetRequest(protocol.NewReader(w.Bytes(), 8))
	require.NoError(t, err)
	assert.Equal(t, req.Modifiers, decoded.Modifiers)
}

func TestDecodeSetRequestErrors(t *testing.T) {
	w := protocol.NewWriter(8)
	w.Uint8(uint8(constants.EventBreakpoint))
	w.Uint8(uint8(constants.SuspendAll))
	w.Int32(1)
	w.Uint8(99)
	_, err := DecodeSetRequest(protocol.NewReader(w.Bytes(), 8))
	assert.ErrorIs(t, err, e.ErrIllegalArgument)

	_, err = DecodeSetRequest(protocol.NewReader([]byte{2, 2, 0, 0, 0, 1, 7, 1}, 8))
	assert.ErrorIs(t, err, e.ErrIllegalArgument)

	_, err = DecodeSetRequest(protocol.NewReader([]byte{2, 2, 0xff, 0xff, 0xff, 0xff}, 8))
	assert.ErrorIs(t, err, e.ErrIllegalArgument)
}

func TestDecodeClearRequest(t *testing.T) {
	kind, id, err := DecodeClearRequest(protocol.NewReader([]byte{2, 0, 0, 0, 5}, 8))
	require.NoError(t, err)
	assert.Equal(t, constants.EventBreakpoint, kind)
	assert.Equal(t, protocol.RequestID(5), id)
}
