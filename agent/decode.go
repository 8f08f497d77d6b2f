package agent

import (
	"fmt"

	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
	"github.com/fansqz/go-jdwp/protocol"
)

// DecodeSetRequest 解析 EventRequest.Set 命令的数据
func DecodeSetRequest(r *protocol.Reader) (*EventRequest, error) {
	kind := constants.EventKind(r.Uint8())
	policy := constants.SuspendPolicy(r.Uint8())
	count := r.Int32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if count < 0 || int(count) > r.Remaining() {
		return nil, fmt.Errorf("%w: modifier count %d", e.ErrIllegalArgument, count)
	}
	req := NewEventRequest(kind, policy)
	for i := int32(0); i < count; i++ {
		mod, err := decodeModifier(r)
		if err != nil {
			return nil, err
		}
		req.Modifiers = append(req.Modifiers, mod)
	}
	return req, r.Err()
}

func decodeModifier(r *protocol.Reader) (Modifier, error) {
	kind := constants.ModifierKind(r.Uint8())
	var mod Modifier
	switch kind {
	case constants.ModifierCount:
		mod = &Count{Remaining: r.Int32()}
	case constants.ModifierConditional:
		mod = Conditional{ExprID: r.Int32()}
	case constants.ModifierThreadOnly:
		mod = ThreadOnly{Thread: protocol.ThreadID(r.ID())}
	case constants.ModifierClassOnly:
		mod = ClassOnly{Class: protocol.ReferenceTypeID(r.ID())}
	case constants.ModifierClassMatch:
		mod = ClassMatch{Pattern: r.UTF8()}
	case constants.ModifierClassExclude:
		mod = ClassExclude{Pattern: r.UTF8()}
	case constants.ModifierLocationOnly:
		mod = LocationOnly{Location: r.Location()}
	case constants.ModifierExceptionOnly:
		mod = ExceptionOnly{
			Exception: protocol.ReferenceTypeID(r.ID()),
			Caught:    r.Bool(),
			Uncaught:  r.Bool(),
		}
	case constants.ModifierFieldOnly:
		mod = FieldOnly{
			Class: protocol.ReferenceTypeID(r.ID()),
			Field: protocol.FieldID(r.ID()),
		}
	case constants.ModifierStep:
		mod = &Step{
			Thread: protocol.ThreadID(r.ID()),
			Size:   constants.StepSize(r.Int32()),
			Depth:  constants.StepDepth(r.Int32()),
		}
	case constants.ModifierInstanceOnly:
		mod = InstanceOnly{Object: protocol.ObjectID(r.ID())}
	default:
		return nil, fmt.Errorf("%w: modifier kind %d", e.ErrIllegalArgument, kind)
	}
	return mod, r.Err()
}

// EncodeSetRequest 按 EventRequest.Set 的格式编码请求
func EncodeSetRequest(w *protocol.Writer, req *EventRequest) {
	w.Uint8(uint8(req.Kind))
	w.Uint8(uint8(req.SuspendPolicy))
	w.Int32(int32(len(req.Modifiers)))
	for _, mod := range req.Modifiers {
		w.Uint8(uint8(mod.Kind()))
		switch mod := mod.(type) {
		case *Count:
			w.Int32(mod.Remaining)
		case Conditional:
			w.Int32(mod.ExprID)
		case ThreadOnly:
			w.ID(uint64(mod.Thread))
		case ClassOnly:
			w.ID(uint64(mod.Class))
		case ClassMatch:
			w.UTF8(mod.Pattern)
		case ClassExclude:
			w.UTF8(mod.Pattern)
		case LocationOnly:
			w.Location(mod.Location)
		case ExceptionOnly:
			w.ID(uint64(mod.Exception))
			w.Bool(mod.Caught)
			w.Bool(mod.Uncaught)
		case FieldOnly:
			w.ID(uint64(mod.Class))
			w.ID(uint64(mod.Field))
		case *Step:
			w.ID(uint64(mod.Thread))
			w.Int32(int32(mod.Size))
			w.Int32(int32(mod.Depth))
		case InstanceOnly:
			w.ID(uint64(mod.Object))
		}
	}
}

// DecodeClearRequest 解析 EventRequest.Clear 命令的数据
func DecodeClearRequest(r *protocol.Reader) (constants.EventKind, protocol.RequestID, error) {
	kind := constants.EventKind(r.Uint8())
	id := protocol.RequestID(r.Uint32())
	return kind, id, r.Err()
}
