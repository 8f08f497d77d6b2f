package agent

import (
	"github.com/fansqz/go-jdwp/constants"
	"github.com/fansqz/go-jdwp/protocol"
)

// EventControl 打开或关闭虚拟机底层的事件通知
type EventControl interface {
	// SetEventNotification thread为0时对所有线程生效
	SetEventNotification(kind constants.EventKind, thread protocol.ThreadID, enable bool) error
	SetBreakpoint(location protocol.Location) error
	ClearBreakpoint(location protocol.Location) error
	SetFieldWatch(kind constants.EventKind, class protocol.ReferenceTypeID, field protocol.FieldID) error
	ClearFieldWatch(kind constants.EventKind, class protocol.ReferenceTypeID, field protocol.FieldID) error
}

// ConditionEvaluator 条件表达式求值
type ConditionEvaluator interface {
	Evaluate(exprID int32, info *EventInfo) bool
}

// FrameInspector 查询线程当前的栈信息，单步调试使用
type FrameInspector interface {
	FrameCount(thread protocol.ThreadID) (int, error)
	// CurrentLocation 返回当前位置和源码行号，没有行号信息时返回-1
	CurrentLocation(thread protocol.ThreadID) (protocol.Location, int, error)
}

// EventDispatcher 接收生成的组合事件
type EventDispatcher interface {
	Dispatch(event *CompositeEvent) error
}

// NopEventControl 没有底层虚拟机时使用
type NopEventControl struct{}

func (NopEventControl) SetEventNotification(constants.EventKind, protocol.ThreadID, bool) error {
	return nil
}

func (NopEventControl) SetBreakpoint(protocol.Location) error {
	return nil
}

func (NopEventControl) ClearBreakpoint(protocol.Location) error {
	return nil
}

func (NopEventControl) SetFieldWatch(constants.EventKind, protocol.ReferenceTypeID, protocol.FieldID) error {
	return nil
}

func (NopEventControl) ClearFieldWatch(constants.EventKind, protocol.ReferenceTypeID, protocol.FieldID) error {
	return nil
}

// AlwaysTrue 所有条件都成立
type AlwaysTrue struct{}

func (AlwaysTrue) Evaluate(int32, *EventInfo) bool {
	return true
}

// DispatcherFunc 把函数适配为EventDispatcher
type DispatcherFunc func(event *CompositeEvent) error

func (f DispatcherFunc) Dispatch(event *CompositeEvent) error {
	return f(event)
}
