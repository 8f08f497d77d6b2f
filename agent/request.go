package agent

import (
	"fmt"

	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
	"github.com/fansqz/go-jdwp/protocol"
)

// EventRequest 调试器或代理内部注册的事件请求
// 内部请求的ID为0，不会出现在发给调试器的事件中
type EventRequest struct {
	ID            protocol.RequestID
	Kind          constants.EventKind
	SuspendPolicy constants.SuspendPolicy
	Modifiers     []Modifier

	// expired 设置了Count的请求触发之后不再匹配
	expired bool
	// oneShot 触发一次之后失效
	oneShot bool
}

// NewEventRequest 创建事件请求
func NewEventRequest(kind constants.EventKind, policy constants.SuspendPolicy, modifiers ...Modifier) *EventRequest {
	return &EventRequest{
		Kind:          kind,
		SuspendPolicy: policy,
		Modifiers:     modifiers,
	}
}

// IsInternal 是否为代理内部请求
func (r *EventRequest) IsInternal() bool {
	return r.ID == 0
}

// Expired 请求是否已经失效
func (r *EventRequest) Expired() bool {
	return r.expired
}

func (r *EventRequest) String() string {
	return fmt.Sprintf("EventRequest{id=%d, kind=%v, suspend=%v, modifiers=%d}",
		r.ID, r.Kind, r.SuspendPolicy, len(r.Modifiers))
}

func (r *EventRequest) location() (protocol.Location, bool) {
	for _, mod := range r.Modifiers {
		if l, ok := mod.(LocationOnly); ok {
			return l.Location, true
		}
	}
	return protocol.Location{}, false
}

func (r *EventRequest) field() (FieldOnly, bool) {
	for _, mod := range r.Modifiers {
		if f, ok := mod.(FieldOnly); ok {
			return f, true
		}
	}
	return FieldOnly{}, false
}

func (r *EventRequest) step() *Step {
	for _, mod := range r.Modifiers {
		if s, ok := mod.(*Step); ok {
			return s
		}
	}
	return nil
}

// validate 检查请求的事件类型和过滤条件是否合法
func (r *EventRequest) validate() error {
	if !isRequestKind(r.Kind) {
		return fmt.Errorf("%w: %v", e.ErrInvalidEventType, r.Kind)
	}
	if !r.SuspendPolicy.Valid() {
		return fmt.Errorf("%w: suspend policy %d", e.ErrIllegalArgument, r.SuspendPolicy)
	}
	steps := 0
	for _, mod := range r.Modifiers {
		switch mod := mod.(type) {
		case nil:
			return fmt.Errorf("%w: nil modifier", e.ErrIllegalArgument)
		case *Count:
			if mod.Remaining <= 0 {
				return fmt.Errorf("%w: count %d", e.ErrIllegalArgument, mod.Remaining)
			}
		case *Step:
			if r.Kind != constants.EventSingleStep {
				return fmt.Errorf("%w: step modifier on %v request", e.ErrIllegalArgument, r.Kind)
			}
			if mod.Depth < constants.StepInto || mod.Depth > constants.StepOut ||
				mod.Size < constants.StepMin || mod.Size > constants.StepLine {
				return fmt.Errorf("%w: %v", e.ErrIllegalArgument, mod)
			}
			steps++
		}
	}
	switch r.Kind {
	case constants.EventSingleStep:
		if steps != 1 {
			return fmt.Errorf("%w: single step request needs exactly one step modifier", e.ErrIllegalArgument)
		}
	case constants.EventBreakpoint:
		if _, ok := r.location(); !ok {
			return fmt.Errorf("%w: breakpoint request without location", e.ErrIllegalArgument)
		}
	case constants.EventFieldAccess, constants.EventFieldModification:
		if _, ok := r.field(); !ok {
			return fmt.Errorf("%w: watchpoint request without field", e.ErrIllegalArgument)
		}
	}
	return nil
}

func isRequestKind(kind constants.EventKind) bool {
	for _, k := range constants.RequestKinds {
		if k == kind {
			return true
		}
	}
	return false
}
