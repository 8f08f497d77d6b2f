package protocol

import (
	"fmt"

	"github.com/fansqz/go-jdwp/constants"
)

// ObjectID 对象ID，0表示null
type ObjectID uint64

// ThreadID 线程ID，可以安全地转换为ObjectID
type ThreadID uint64

// ReferenceTypeID 引用类型（类、接口、数组类型）ID
type ReferenceTypeID uint64

// MethodID 方法ID
type MethodID uint64

// FieldID 字段ID
type FieldID uint64

// FrameID 栈帧ID
type FrameID uint64

// RequestID 事件请求ID，内部请求为0
type RequestID uint32

func (i ObjectID) String() string        { return fmt.Sprintf("ObjectID<%d>", uint64(i)) }
func (i ThreadID) String() string        { return fmt.Sprintf("ThreadID<%d>", uint64(i)) }
func (i ReferenceTypeID) String() string { return fmt.Sprintf("ReferenceTypeID<%d>", uint64(i)) }
func (i MethodID) String() string        { return fmt.Sprintf("MethodID<%d>", uint64(i)) }
func (i FieldID) String() string         { return fmt.Sprintf("FieldID<%d>", uint64(i)) }

// Location 代码位置
type Location struct {
	Type   constants.TypeTag
	Class  ReferenceTypeID
	Method MethodID
	Index  uint64
}

// SameAs 判断两个位置是否是同一个方法的同一个字节码偏移
func (l Location) SameAs(o Location) bool {
	return l.Method == o.Method && l.Index == o.Index
}

func (l Location) String() string {
	return fmt.Sprintf("%v:%v@%d", l.Class, l.Method, l.Index)
}

// TaggedObjectID 带类型标签的对象ID
type TaggedObjectID struct {
	Tag    constants.Tag
	Object ObjectID
}

// Value 带类型标签的值，基本类型保存在Bits中，对象类型Bits为ObjectID
type Value struct {
	Tag  constants.Tag
	Bits uint64
}

// ObjectValue 创建一个对象类型的值
func ObjectValue(tag constants.Tag, id ObjectID) Value {
	return Value{Tag: tag, Bits: uint64(id)}
}
