package protocol

import (
	"fmt"

	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
)

// Event 组合事件中的单个事件
// 不同类型的事件只使用其中一部分字段
type Event struct {
	Kind      constants.EventKind
	RequestID RequestID
	Thread    ThreadID
	Location  Location
	// ClassPrepare、FieldAccess、FieldModification 使用
	RefTypeTag constants.TypeTag
	TypeID     ReferenceTypeID
	// ClassPrepare、ClassUnload 使用
	Signature string
	Status    constants.ClassStatus
	// Exception 使用
	Exception     TaggedObjectID
	CatchLocation Location
	// FieldAccess、FieldModification 使用
	Field  FieldID
	Object TaggedObjectID
	// FieldModification 的新值，MethodExit 的返回值
	Value Value
}

// EncodeComposite 编码 Event.Composite 命令的数据部分
func EncodeComposite(w *Writer, policy constants.SuspendPolicy, events []Event) {
	w.Uint8(uint8(policy))
	w.Int32(int32(len(events)))
	for _, ev := range events {
		w.Uint8(uint8(ev.Kind))
		w.Uint32(uint32(ev.RequestID))
		encodeEvent(w, ev)
	}
}

func encodeEvent(w *Writer, ev Event) {
	switch ev.Kind {
	case constants.EventVMStart, constants.EventThreadStart, constants.EventThreadEnd:
		w.ID(uint64(ev.Thread))
	case constants.EventVMDeath:
	case constants.EventSingleStep, constants.EventBreakpoint, constants.EventMethodEntry,
		constants.EventFramePop, constants.EventUserDefined, constants.EventMethodExit:
		w.ID(uint64(ev.Thread))
		w.Location(ev.Location)
	case constants.EventException, constants.EventExceptionCatch:
		w.ID(uint64(ev.Thread))
		w.Location(ev.Location)
		w.TaggedObject(ev.Exception)
		w.Location(ev.CatchLocation)
	case constants.EventClassPrepare, constants.EventClassLoad:
		w.ID(uint64(ev.Thread))
		w.Uint8(uint8(ev.RefTypeTag))
		w.ID(uint64(ev.TypeID))
		w.UTF8(ev.Signature)
		w.Int32(int32(ev.Status))
	case constants.EventClassUnload:
		w.UTF8(ev.Signature)
	case constants.EventFieldAccess:
		w.ID(uint64(ev.Thread))
		w.Location(ev.Location)
		w.Uint8(uint8(ev.RefTypeTag))
		w.ID(uint64(ev.TypeID))
		w.ID(uint64(ev.Field))
		w.TaggedObject(ev.Object)
	case constants.EventFieldModification:
		w.ID(uint64(ev.Thread))
		w.Location(ev.Location)
		w.Uint8(uint8(ev.RefTypeTag))
		w.ID(uint64(ev.TypeID))
		w.ID(uint64(ev.Field))
		w.TaggedObject(ev.Object)
		w.Value(ev.Value)
	}
}

// NewCompositePacket 创建 Event.Composite 命令包
func NewCompositePacket(id uint32, idSize int, policy constants.SuspendPolicy, events []Event) *Packet {
	w := NewWriter(idSize)
	EncodeComposite(w, policy, events)
	return NewCommand(id, constants.CommandSetEvent, constants.CommandEventComposite, w.Bytes())
}

// DecodeComposite 解码 Event.Composite 命令的数据部分，用于测试和调试工具
func DecodeComposite(r *Reader) (constants.SuspendPolicy, []Event, error) {
	policy := constants.SuspendPolicy(r.Uint8())
	n := int(r.Int32())
	if r.Err() != nil {
		return policy, nil, r.Err()
	}
	// 每个事件至少包含类型和请求ID
	if n < 0 || n > r.Remaining()/5 {
		return policy, nil, fmt.Errorf("%w: event count %d", e.ErrIllegalArgument, n)
	}
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ev := Event{Kind: constants.EventKind(r.Uint8()), RequestID: RequestID(r.Uint32())}
		switch ev.Kind {
		case constants.EventVMStart, constants.EventThreadStart, constants.EventThreadEnd:
			ev.Thread = ThreadID(r.ID())
		case constants.EventVMDeath:
		case constants.EventSingleStep, constants.EventBreakpoint, constants.EventMethodEntry,
			constants.EventFramePop, constants.EventUserDefined, constants.EventMethodExit:
			ev.Thread = ThreadID(r.ID())
			ev.Location = r.Location()
		case constants.EventException, constants.EventExceptionCatch:
			ev.Thread = ThreadID(r.ID())
			ev.Location = r.Location()
			ev.Exception = TaggedObjectID{Tag: constants.Tag(r.Uint8()), Object: ObjectID(r.ID())}
			ev.CatchLocation = r.Location()
		case constants.EventClassPrepare, constants.EventClassLoad:
			ev.Thread = ThreadID(r.ID())
			ev.RefTypeTag = constants.TypeTag(r.Uint8())
			ev.TypeID = ReferenceTypeID(r.ID())
			ev.Signature = r.UTF8()
			ev.Status = constants.ClassStatus(r.Int32())
		case constants.EventClassUnload:
			ev.Signature = r.UTF8()
		case constants.EventFieldAccess, constants.EventFieldModification:
			ev.Thread = ThreadID(r.ID())
			ev.Location = r.Location()
			ev.RefTypeTag = constants.TypeTag(r.Uint8())
			ev.TypeID = ReferenceTypeID(r.ID())
			ev.Field = FieldID(r.ID())
			ev.Object = TaggedObjectID{Tag: constants.Tag(r.Uint8()), Object: ObjectID(r.ID())}
			if ev.Kind == constants.EventFieldModification {
				ev.Value = r.Value()
			}
		}
		if r.Err() != nil {
			return policy, nil, r.Err()
		}
		events = append(events, ev)
	}
	return policy, events, nil
}
