package agent

import (
	"testing"

	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
	"github.com/fansqz/go-jdwp/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepRequest(thread protocol.ThreadID, size constants.StepSize, depth constants.StepDepth) *EventRequest {
	return NewEventRequest(constants.EventSingleStep, constants.SuspendEventThread,
		&Step{Thread: thread, Size: size, Depth: depth})
}

func TestStepOverLine(t *testing.T) {
	frames := newFakeFrames()
	frames.move(1, 2, 10, loc(5, 0))
	m := NewRequestManager(Options{Inspector: frames})
	id, err := m.AddRequest(stepRequest(1, constants.StepLine, constants.StepOver))
	require.NoError(t, err)

	// 同一行的下一条指令
	frames.move(1, 2, 10, loc(5, 3))
	assert.Nil(t, m.HandleSingleStep(Site{Thread: 1, Location: loc(5, 3)}))
	// 进入被调用的方法
	frames.move(1, 3, 40, loc(6, 0))
	assert.Nil(t, m.HandleSingleStep(Site{Thread: 1, Location: loc(6, 0)}))
	// 返回之后到了下一行
	frames.move(1, 2, 11, loc(5, 9))
	composite := m.HandleSingleStep(Site{Thread: 1, Location: loc(5, 9)})
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{id}, composite.RequestIDs())
	assert.Equal(t, loc(5, 9), composite.Events[0].Location)

	// 触发之后以当前位置作为新的起点
	frames.move(1, 2, 11, loc(5, 12))
	assert.Nil(t, m.HandleSingleStep(Site{Thread: 1, Location: loc(5, 12)}))
}

func TestStepInto(t *testing.T) {
	frames := newFakeFrames()
	frames.move(1, 2, 10, loc(5, 0))
	m := NewRequestManager(Options{Inspector: frames})
	_, err := m.AddRequest(stepRequest(1, constants.StepLine, constants.StepInto))
	require.NoError(t, err)

	frames.move(1, 3, 40, loc(6, 0))
	assert.NotNil(t, m.HandleSingleStep(Site{Thread: 1, Location: loc(6, 0)}))
}

func TestStepOut(t *testing.T) {
	frames := newFakeFrames()
	frames.move(1, 3, 40, loc(6, 0))
	m := NewRequestManager(Options{Inspector: frames})
	_, err := m.AddRequest(stepRequest(1, constants.StepLine, constants.StepOut))
	require.NoError(t, err)

	frames.move(1, 3, 41, loc(6, 4))
	assert.Nil(t, m.HandleSingleStep(Site{Thread: 1, Location: loc(6, 4)}))
	frames.move(1, 4, 1, loc(7, 0))
	assert.Nil(t, m.HandleSingleStep(Site{Thread: 1, Location: loc(7, 0)}))
	frames.move(1, 2, 11, loc(5, 9))
	assert.NotNil(t, m.HandleSingleStep(Site{Thread: 1, Location: loc(5, 9)}))
}

func TestStepMinOnOtherThread(t *testing.T) {
	frames := newFakeFrames()
	frames.move(1, 1, 10, loc(5, 0))
	frames.move(2, 1, 10, loc(5, 0))
	m := NewRequestManager(Options{Inspector: frames})
	_, err := m.AddRequest(stepRequest(1, constants.StepMin, constants.StepOver))
	require.NoError(t, err)

	frames.move(2, 1, 10, loc(5, 1))
	assert.Nil(t, m.HandleSingleStep(Site{Thread: 2, Location: loc(5, 1)}))
	frames.move(1, 1, 10, loc(5, 1))
	assert.NotNil(t, m.HandleSingleStep(Site{Thread: 1, Location: loc(5, 1)}))
}

func TestStepNotificationPerThread(t *testing.T) {
	control := &fakeControl{}
	m := NewRequestManager(Options{Control: control})
	id, err := m.AddRequest(stepRequest(4, constants.StepLine, constants.StepOver))
	require.NoError(t, err)
	_, err = m.AddRequest(stepRequest(4, constants.StepLine, constants.StepInto))
	assert.ErrorIs(t, err, e.ErrDuplicate)
	_, err = m.AddRequest(stepRequest(5, constants.StepLine, constants.StepInto))
	require.NoError(t, err)

	require.NoError(t, m.DeleteRequest(constants.EventSingleStep, id))
	assert.Equal(t, []string{
		"notify SINGLE_STEP 4 true",
		"notify SINGLE_STEP 5 true",
		"notify SINGLE_STEP 4 false",
	}, control.Calls())
	assert.Nil(t, m.StepController().Active(4))
	assert.NotNil(t, m.StepController().Active(5))
}

func TestInternalStepRestoresUserStep(t *testing.T) {
	control := &fakeControl{}
	frames := newFakeFrames()
	frames.move(1, 3, 10, loc(5, 0))
	m := NewRequestManager(Options{Control: control, Inspector: frames})
	userID, err := m.AddRequest(stepRequest(1, constants.StepLine, constants.StepOver))
	require.NoError(t, err)
	userStep := m.StepController().Active(1)

	done, err := m.EnableInternalStepRequest(1)
	require.NoError(t, err)
	assert.True(t, m.StepController().Active(1).internal)
	_, err = m.EnableInternalStepRequest(1)
	assert.ErrorIs(t, err, e.ErrDuplicate)

	// 弹出栈帧之后回到调用者，只有内部单步请求生效
	frames.move(1, 2, 20, loc(4, 6))
	assert.Nil(t, m.HandleSingleStep(Site{Thread: 1, Location: loc(4, 6)}))
	select {
	case <-done:
	default:
		t.Fatal("internal step not completed")
	}

	// 内部单步完成后立即移除，用户的单步请求恢复生效
	assert.Same(t, userStep, m.StepController().Active(1))
	assert.Equal(t, 1, m.RequestCount(constants.EventSingleStep))
	require.NoError(t, m.DisableInternalStepRequest(1))
	assert.Same(t, userStep, m.StepController().Active(1))

	// 恢复后的用户请求以恢复时的位置为起点
	frames.move(1, 2, 21, loc(4, 9))
	composite := m.HandleSingleStep(Site{Thread: 1, Location: loc(4, 9)})
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{userID}, composite.RequestIDs())

	assert.Equal(t, []string{"notify SINGLE_STEP 1 true"}, control.Calls())
	require.NoError(t, m.DeleteRequest(constants.EventSingleStep, userID))
	assert.Equal(t, []string{"notify SINGLE_STEP 1 true", "notify SINGLE_STEP 1 false"}, control.Calls())
}

func TestInternalStepWithoutUserStep(t *testing.T) {
	control := &fakeControl{}
	m := NewRequestManager(Options{Control: control})
	done, err := m.EnableInternalStepRequest(2)
	require.NoError(t, err)

	require.NoError(t, m.DisableInternalStepRequest(2))
	_, ok := <-done
	assert.False(t, ok)
	assert.Nil(t, m.StepController().Active(2))
	assert.Equal(t, []string{"notify SINGLE_STEP 2 true", "notify SINGLE_STEP 2 false"}, control.Calls())
	assert.NoError(t, m.DisableInternalStepRequest(2))
}

func TestInternalStepCanBeEnabledAgainAfterFiring(t *testing.T) {
	control := &fakeControl{}
	frames := newFakeFrames()
	frames.move(6, 3, 10, loc(5, 0))
	m := NewRequestManager(Options{Control: control, Inspector: frames})

	done, err := m.EnableInternalStepRequest(6)
	require.NoError(t, err)
	frames.move(6, 2, 20, loc(4, 6))
	assert.Nil(t, m.HandleSingleStep(Site{Thread: 6, Location: loc(4, 6)}))
	_, ok := <-done
	assert.False(t, ok)
	assert.Equal(t, 0, m.RequestCount(constants.EventSingleStep))
	assert.Nil(t, m.StepController().Active(6))

	done, err = m.EnableInternalStepRequest(6)
	require.NoError(t, err)
	require.NoError(t, m.DisableInternalStepRequest(6))
	_, ok = <-done
	assert.False(t, ok)
	assert.Equal(t, []string{
		"notify SINGLE_STEP 6 true",
		"notify SINGLE_STEP 6 false",
		"notify SINGLE_STEP 6 true",
		"notify SINGLE_STEP 6 false",
	}, control.Calls())
}

func TestResetClosesPendingInternalStep(t *testing.T) {
	m := NewRequestManager(Options{})
	done, err := m.EnableInternalStepRequest(3)
	require.NoError(t, err)
	m.Reset()
	_, ok := <-done
	assert.False(t, ok)
	assert.Equal(t, 0, m.RequestCount(constants.EventSingleStep))
}
