package agent

import (
	"fmt"
	"sync"

	"github.com/fansqz/go-jdwp/constants"
	"github.com/fansqz/go-jdwp/protocol"
)

type fakeControl struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeControl) record(format string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeControl) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeControl) SetEventNotification(kind constants.EventKind, thread protocol.ThreadID, enable bool) error {
	return f.record("notify %v %d %v", kind, uint64(thread), enable)
}

func (f *fakeControl) SetBreakpoint(location protocol.Location) error {
	return f.record("set breakpoint %d@%d", uint64(location.Method), location.Index)
}

func (f *fakeControl) ClearBreakpoint(location protocol.Location) error {
	return f.record("clear breakpoint %d@%d", uint64(location.Method), location.Index)
}

func (f *fakeControl) SetFieldWatch(kind constants.EventKind, class protocol.ReferenceTypeID, field protocol.FieldID) error {
	return f.record("watch %v %d.%d", kind, uint64(class), uint64(field))
}

func (f *fakeControl) ClearFieldWatch(kind constants.EventKind, class protocol.ReferenceTypeID, field protocol.FieldID) error {
	return f.record("unwatch %v %d.%d", kind, uint64(class), uint64(field))
}

// fakeFrames 模拟线程的栈信息
type fakeFrames struct {
	depth    map[protocol.ThreadID]int
	line     map[protocol.ThreadID]int
	location map[protocol.ThreadID]protocol.Location
}

func newFakeFrames() *fakeFrames {
	return &fakeFrames{
		depth:    make(map[protocol.ThreadID]int),
		line:     make(map[protocol.ThreadID]int),
		location: make(map[protocol.ThreadID]protocol.Location),
	}
}

func (f *fakeFrames) move(thread protocol.ThreadID, depth, line int, location protocol.Location) {
	f.depth[thread] = depth
	f.line[thread] = line
	f.location[thread] = location
}

func (f *fakeFrames) FrameCount(thread protocol.ThreadID) (int, error) {
	return f.depth[thread], nil
}

func (f *fakeFrames) CurrentLocation(thread protocol.ThreadID) (protocol.Location, int, error) {
	return f.location[thread], f.line[thread], nil
}

type fakeEvaluator map[int32]bool

func (f fakeEvaluator) Evaluate(exprID int32, _ *EventInfo) bool {
	return f[exprID]
}

func loc(method, index uint64) protocol.Location {
	return protocol.Location{
		Type:   constants.TypeTagClass,
		Class:  1,
		Method: protocol.MethodID(method),
		Index:  index,
	}
}

func breakpoint(policy constants.SuspendPolicy, location protocol.Location, modifiers ...Modifier) *EventRequest {
	return NewEventRequest(constants.EventBreakpoint, policy, append([]Modifier{LocationOnly{Location: location}}, modifiers...)...)
}
