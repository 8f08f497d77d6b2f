package agent

import (
	"github.com/fansqz/go-jdwp/constants"
	"github.com/fansqz/go-jdwp/protocol"
)

// EventInfo 虚拟机产生的一个原始事件，不同类型的事件只使用其中一部分字段
type EventInfo struct {
	Kind     constants.EventKind
	Thread   protocol.ThreadID
	Location protocol.Location
	// Class 事件相关的类，位置类事件为位置所在的类，类加载事件为被加载的类
	Class     protocol.ReferenceTypeID
	TypeTag   constants.TypeTag
	Signature string
	Status    constants.ClassStatus
	// Instance 当前方法的this对象
	Instance protocol.ObjectID

	Exception      protocol.TaggedObjectID
	ExceptionClass protocol.ReferenceTypeID
	CatchLocation  protocol.Location

	FieldClass protocol.ReferenceTypeID
	Field      protocol.FieldID
	Object     protocol.TaggedObjectID
	Value      protocol.Value

	// 单步事件发生时的栈深度和行号
	Depth int
	Line  int
}

// Site 位置类事件发生的地点
type Site struct {
	Thread   protocol.ThreadID
	Location protocol.Location
	// Signature 位置所在类的签名
	Signature string
	This      protocol.ObjectID
}

// CompositeEvent 一次原始事件匹配到的所有请求
type CompositeEvent struct {
	SuspendPolicy constants.SuspendPolicy
	Events        []protocol.Event
}

// RequestIDs 返回组合事件中的请求ID
func (c *CompositeEvent) RequestIDs() []protocol.RequestID {
	ids := make([]protocol.RequestID, 0, len(c.Events))
	for _, ev := range c.Events {
		ids = append(ids, ev.RequestID)
	}
	return ids
}

func siteInfo(kind constants.EventKind, site Site) *EventInfo {
	return &EventInfo{
		Kind:      kind,
		Thread:    site.Thread,
		Location:  site.Location,
		Class:     site.Location.Class,
		TypeTag:   site.Location.Type,
		Signature: site.Signature,
		Instance:  site.This,
		Line:      -1,
	}
}

// caught 异常是否会被捕获
func (info *EventInfo) caught() bool {
	return info.CatchLocation.Method != 0
}

// event 转换为发给调试器的事件
func (info *EventInfo) event(id protocol.RequestID) protocol.Event {
	ev := protocol.Event{
		Kind:          info.Kind,
		RequestID:     id,
		Thread:        info.Thread,
		Location:      info.Location,
		RefTypeTag:    info.TypeTag,
		TypeID:        info.Class,
		Signature:     info.Signature,
		Status:        info.Status,
		Exception:     info.Exception,
		CatchLocation: info.CatchLocation,
		Field:         info.Field,
		Object:        info.Object,
		Value:         info.Value,
	}
	switch info.Kind {
	case constants.EventFieldAccess, constants.EventFieldModification:
		// 接口中不能声明实例字段
		ev.RefTypeTag = constants.TypeTagClass
		ev.TypeID = info.FieldClass
	case constants.EventExceptionCatch:
		ev.CatchLocation = info.Location
	}
	return ev
}
