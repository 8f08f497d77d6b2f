package constants

import "fmt"

// EventKind JDWP事件类型
type EventKind uint8

const (
	EventSingleStep        EventKind = 1
	EventBreakpoint        EventKind = 2
	EventFramePop          EventKind = 3
	EventException         EventKind = 4
	EventUserDefined       EventKind = 5
	EventThreadStart       EventKind = 6
	EventThreadEnd         EventKind = 7
	EventClassPrepare      EventKind = 8
	EventClassUnload       EventKind = 9
	EventClassLoad         EventKind = 10
	EventFieldAccess       EventKind = 20
	EventFieldModification EventKind = 21
	EventExceptionCatch    EventKind = 30
	EventMethodEntry       EventKind = 40
	EventMethodExit        EventKind = 41
	EventVMInit            EventKind = 90
	EventVMDeath           EventKind = 99
	EventVMDisconnected    EventKind = 100

	// EventThreadDeath 和 EventThreadEnd 是同一个值
	EventThreadDeath = EventThreadEnd
	// EventVMStart 和 EventVMInit 是同一个值
	EventVMStart = EventVMInit
)

// RequestKinds 可以由调试器注册请求的事件类型，顺序与请求列表一致
var RequestKinds = []EventKind{
	EventSingleStep,
	EventBreakpoint,
	EventFramePop,
	EventException,
	EventUserDefined,
	EventThreadStart,
	EventThreadEnd,
	EventClassPrepare,
	EventClassUnload,
	EventClassLoad,
	EventFieldAccess,
	EventFieldModification,
	EventExceptionCatch,
	EventMethodEntry,
	EventMethodExit,
	EventVMDeath,
}

func (k EventKind) String() string {
	switch k {
	case EventSingleStep:
		return "SINGLE_STEP"
	case EventBreakpoint:
		return "BREAKPOINT"
	case EventFramePop:
		return "FRAME_POP"
	case EventException:
		return "EXCEPTION"
	case EventUserDefined:
		return "USER_DEFINED"
	case EventThreadStart:
		return "THREAD_START"
	case EventThreadEnd:
		return "THREAD_END"
	case EventClassPrepare:
		return "CLASS_PREPARE"
	case EventClassUnload:
		return "CLASS_UNLOAD"
	case EventClassLoad:
		return "CLASS_LOAD"
	case EventFieldAccess:
		return "FIELD_ACCESS"
	case EventFieldModification:
		return "FIELD_MODIFICATION"
	case EventExceptionCatch:
		return "EXCEPTION_CATCH"
	case EventMethodEntry:
		return "METHOD_ENTRY"
	case EventMethodExit:
		return "METHOD_EXIT"
	case EventVMInit:
		return "VM_INIT"
	case EventVMDeath:
		return "VM_DEATH"
	case EventVMDisconnected:
		return "VM_DISCONNECTED"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
}

// SuspendPolicy 事件触发时的挂起策略
type SuspendPolicy uint8

const (
	// SuspendNone 不挂起任何线程
	SuspendNone SuspendPolicy = 0
	// SuspendEventThread 挂起产生事件的线程
	SuspendEventThread SuspendPolicy = 1
	// SuspendAll 挂起所有线程
	SuspendAll SuspendPolicy = 2
)

func (p SuspendPolicy) String() string {
	switch p {
	case SuspendNone:
		return "NONE"
	case SuspendEventThread:
		return "EVENT_THREAD"
	case SuspendAll:
		return "ALL"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(p))
}

// Valid 判断挂起策略是否合法
func (p SuspendPolicy) Valid() bool {
	return p <= SuspendAll
}

// ModifierKind 事件请求的过滤条件类型
type ModifierKind uint8

const (
	ModifierCount         ModifierKind = 1
	ModifierConditional   ModifierKind = 2
	ModifierThreadOnly    ModifierKind = 3
	ModifierClassOnly     ModifierKind = 4
	ModifierClassMatch    ModifierKind = 5
	ModifierClassExclude  ModifierKind = 6
	ModifierLocationOnly  ModifierKind = 7
	ModifierExceptionOnly ModifierKind = 8
	ModifierFieldOnly     ModifierKind = 9
	ModifierStep          ModifierKind = 10
	ModifierInstanceOnly  ModifierKind = 11
)

// StepDepth 单步调试的深度
type StepDepth int32

const (
	StepInto StepDepth = 0
	StepOver StepDepth = 1
	StepOut  StepDepth = 2
)

func (d StepDepth) String() string {
	switch d {
	case StepInto:
		return "INTO"
	case StepOver:
		return "OVER"
	case StepOut:
		return "OUT"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(d))
}

// StepSize 单步调试的粒度
type StepSize int32

const (
	// StepMin 以字节码为单位
	StepMin StepSize = 0
	// StepLine 以源码行为单位
	StepLine StepSize = 1
)

// ClassStatus 类的状态
type ClassStatus int32

const (
	ClassStatusVerified    ClassStatus = 1
	ClassStatusPrepared    ClassStatus = 2
	ClassStatusInitialized ClassStatus = 4
	ClassStatusError       ClassStatus = 8
)
