package agent

import (
	"testing"

	"github.com/fansqz/go-jdwp/constants"
	"github.com/fansqz/go-jdwp/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/match"
)

func TestCountFiresOnceOnNthEvent(t *testing.T) {
	m := NewRequestManager(Options{})
	id, err := m.AddRequest(breakpoint(constants.SuspendAll, loc(1, 7), &Count{Remaining: 3}))
	require.NoError(t, err)

	site := Site{Thread: 1, Location: loc(1, 7)}
	assert.Nil(t, m.HandleBreakpoint(site))
	assert.Nil(t, m.HandleBreakpoint(site))
	composite := m.HandleBreakpoint(site)
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{id}, composite.RequestIDs())
	for i := 0; i < 5; i++ {
		assert.Nil(t, m.HandleBreakpoint(site))
	}
	assert.True(t, m.Requests(constants.EventBreakpoint)[0].Expired())
}

func TestCountIsEvaluatedLast(t *testing.T) {
	m := NewRequestManager(Options{})
	count := &Count{Remaining: 2}
	_, err := m.AddRequest(NewEventRequest(constants.EventThreadStart, constants.SuspendNone, count, ThreadOnly{Thread: 5}))
	require.NoError(t, err)

	assert.Nil(t, m.HandleThreadStart(6))
	assert.Nil(t, m.HandleThreadStart(6))
	assert.Equal(t, int32(2), count.Remaining)
	assert.Nil(t, m.HandleThreadStart(5))
	assert.NotNil(t, m.HandleThreadStart(5))
}

func TestSuspendPolicyIsMaxSeverity(t *testing.T) {
	m := NewRequestManager(Options{})
	var ids []protocol.RequestID
	for _, policy := range []constants.SuspendPolicy{constants.SuspendNone, constants.SuspendAll, constants.SuspendEventThread} {
		id, err := m.AddRequest(breakpoint(policy, loc(2, 0)))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	composite := m.HandleBreakpoint(Site{Thread: 1, Location: loc(2, 0)})
	require.NotNil(t, composite)
	assert.Equal(t, constants.SuspendAll, composite.SuspendPolicy)
	assert.Equal(t, ids, composite.RequestIDs())
	for _, ev := range composite.Events {
		assert.Equal(t, constants.EventBreakpoint, ev.Kind)
		assert.Equal(t, protocol.ThreadID(1), ev.Thread)
	}
}

func TestNoMatchEmitsNothing(t *testing.T) {
	dispatched := 0
	m := NewRequestManager(Options{Dispatcher: DispatcherFunc(func(*CompositeEvent) error {
		dispatched++
		return nil
	})})
	_, err := m.AddRequest(breakpoint(constants.SuspendAll, loc(2, 0)))
	require.NoError(t, err)
	assert.Nil(t, m.HandleBreakpoint(Site{Thread: 1, Location: loc(2, 1)}))
	assert.Nil(t, m.HandleMethodEntry(Site{Thread: 1, Location: loc(2, 1)}))
	assert.Equal(t, 0, dispatched)

	assert.NotNil(t, m.HandleBreakpoint(Site{Thread: 1, Location: loc(2, 0)}))
	assert.Equal(t, 1, dispatched)
}

func TestClassMatchAndExclude(t *testing.T) {
	m := NewRequestManager(Options{})
	matchID, err := m.AddRequest(NewEventRequest(constants.EventClassPrepare, constants.SuspendNone, ClassMatch{Pattern: "java.lang.*"}))
	require.NoError(t, err)
	excludeID, err := m.AddRequest(NewEventRequest(constants.EventClassPrepare, constants.SuspendAll, ClassExclude{Pattern: "java.*"}))
	require.NoError(t, err)

	composite := m.HandleClassPrepare(1, ClassInfo{Tag: constants.TypeTagClass, ID: 10, Signature: "Ljava/lang/String;"})
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{matchID}, composite.RequestIDs())
	assert.Equal(t, "Ljava/lang/String;", composite.Events[0].Signature)
	assert.Equal(t, protocol.ReferenceTypeID(10), composite.Events[0].TypeID)

	composite = m.HandleClassPrepare(1, ClassInfo{Tag: constants.TypeTagClass, ID: 11, Signature: "Lcom/example/Main;"})
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{excludeID}, composite.RequestIDs())
	assert.Equal(t, constants.SuspendAll, composite.SuspendPolicy)
}

func TestClassPatternWildcards(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		matched bool
	}{
		{"*", "java.lang.String", true},
		{"java.lang.*", "java.lang.String", true},
		{"*.String", "java.lang.String", true},
		{"java.lang.String", "java.lang.String", true},
		{"java.lang.Str?ng", "java.lang.String", false},
		{"java.lang.Str?ng", "java.lang.Str?ng", true},
		{"java.*.String", "java.lang.String", false},
		{"java.*.String", "java.*.String", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.matched, match.Match(tt.name, classPattern(tt.pattern)), tt.pattern)
	}

	m := NewRequestManager(Options{})
	_, err := m.AddRequest(NewEventRequest(constants.EventClassPrepare, constants.SuspendNone, ClassMatch{Pattern: "java.lang.Str?ng"}))
	require.NoError(t, err)
	assert.Nil(t, m.HandleClassPrepare(1, ClassInfo{Tag: constants.TypeTagClass, ID: 10, Signature: "Ljava/lang/String;"}))
}

func TestClassOnlyAndInstanceOnly(t *testing.T) {
	m := NewRequestManager(Options{})
	classID, err := m.AddRequest(NewEventRequest(constants.EventMethodEntry, constants.SuspendNone, ClassOnly{Class: 1}))
	require.NoError(t, err)
	instanceID, err := m.AddRequest(NewEventRequest(constants.EventMethodEntry, constants.SuspendNone, InstanceOnly{Object: 42}))
	require.NoError(t, err)

	composite := m.HandleMethodEntry(Site{Thread: 1, Location: loc(1, 0), This: 42})
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{classID, instanceID}, composite.RequestIDs())

	other := loc(1, 0)
	other.Class = 2
	composite = m.HandleMethodEntry(Site{Thread: 1, Location: other, This: 42})
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{instanceID}, composite.RequestIDs())
}

func TestExceptionOnly(t *testing.T) {
	m := NewRequestManager(Options{})
	caughtID, err := m.AddRequest(NewEventRequest(constants.EventException, constants.SuspendAll, ExceptionOnly{Caught: true}))
	require.NoError(t, err)
	uncaughtID, err := m.AddRequest(NewEventRequest(constants.EventException, constants.SuspendAll, ExceptionOnly{Exception: 30, Uncaught: true}))
	require.NoError(t, err)

	site := Site{Thread: 1, Location: loc(1, 3)}
	exception := protocol.TaggedObjectID{Tag: constants.TagObject, Object: 99}

	composite := m.HandleException(site, exception, 30, loc(4, 8))
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{caughtID}, composite.RequestIDs())
	assert.Equal(t, loc(4, 8), composite.Events[0].CatchLocation)
	assert.Equal(t, exception, composite.Events[0].Exception)

	composite = m.HandleException(site, exception, 30, protocol.Location{})
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{uncaughtID}, composite.RequestIDs())

	assert.Nil(t, m.HandleException(site, exception, 31, protocol.Location{}))
}

func TestConditional(t *testing.T) {
	m := NewRequestManager(Options{Evaluator: fakeEvaluator{1: true, 2: false}})
	yes, err := m.AddRequest(NewEventRequest(constants.EventThreadEnd, constants.SuspendNone, Conditional{ExprID: 1}))
	require.NoError(t, err)
	_, err = m.AddRequest(NewEventRequest(constants.EventThreadEnd, constants.SuspendNone, Conditional{ExprID: 2}))
	require.NoError(t, err)

	composite := m.HandleThreadEnd(3)
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{yes}, composite.RequestIDs())
}

func TestFieldEvents(t *testing.T) {
	m := NewRequestManager(Options{})
	id, err := m.AddRequest(NewEventRequest(constants.EventFieldModification, constants.SuspendEventThread, FieldOnly{Class: 5, Field: 6}))
	require.NoError(t, err)

	object := protocol.TaggedObjectID{Tag: constants.TagObject, Object: 7}
	value := protocol.Value{Tag: constants.TagInt, Bits: 12}
	composite := m.HandleFieldModification(Site{Thread: 1, Location: loc(1, 2)}, 5, 6, object, value)
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{id}, composite.RequestIDs())
	ev := composite.Events[0]
	assert.Equal(t, protocol.ReferenceTypeID(5), ev.TypeID)
	assert.Equal(t, constants.TypeTagClass, ev.RefTypeTag)
	assert.Equal(t, value, ev.Value)
	assert.Equal(t, object, ev.Object)

	assert.Nil(t, m.HandleFieldModification(Site{Thread: 1, Location: loc(1, 2)}, 5, 8, object, value))
	assert.Nil(t, m.HandleFieldAccess(Site{Thread: 1, Location: loc(1, 2)}, 5, 6, object))
}

func TestVMInitUsesStartPolicy(t *testing.T) {
	var got *CompositeEvent
	m := NewRequestManager(Options{
		StartPolicy: constants.SuspendAll,
		Dispatcher: DispatcherFunc(func(c *CompositeEvent) error {
			got = c
			return nil
		}),
	})
	composite := m.HandleVMInit(1)
	require.NotNil(t, composite)
	assert.Same(t, composite, got)
	assert.Equal(t, constants.SuspendAll, composite.SuspendPolicy)
	require.Len(t, composite.Events, 1)
	assert.Equal(t, constants.EventVMStart, composite.Events[0].Kind)
	assert.Equal(t, protocol.RequestID(0), composite.Events[0].RequestID)

	m.SetStartPolicy(constants.SuspendNone)
	assert.Equal(t, constants.SuspendNone, m.HandleVMInit(1).SuspendPolicy)
}

func TestVMDeathBroadcast(t *testing.T) {
	m := NewRequestManager(Options{})
	composite := m.HandleVMDeath()
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{0}, composite.RequestIDs())
	assert.Equal(t, constants.SuspendNone, composite.SuspendPolicy)

	first, err := m.AddRequest(NewEventRequest(constants.EventVMDeath, constants.SuspendNone))
	require.NoError(t, err)
	second, err := m.AddRequest(NewEventRequest(constants.EventVMDeath, constants.SuspendAll, ThreadOnly{Thread: 77}))
	require.NoError(t, err)

	composite = m.HandleVMDeath()
	require.NotNil(t, composite)
	assert.Equal(t, []protocol.RequestID{first, second}, composite.RequestIDs())
	assert.Equal(t, constants.SuspendAll, composite.SuspendPolicy)
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "java.lang.String", className("Ljava/lang/String;"))
	assert.Equal(t, "[I", className("[I"))
	assert.Equal(t, "", className(""))
}
