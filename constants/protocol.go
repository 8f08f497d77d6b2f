package constants

// 协议相关常量
const (
	// HandshakeString 连接建立后双方需要交换的握手字符串
	HandshakeString = "JDWP-Handshake"
	// PacketHeaderLength 数据包头部长度，同时也是最小的数据包长度
	PacketHeaderLength = 11
	// FlagReply 回复包标志位
	FlagReply uint8 = 0x80
	// DefaultIDSize 对象、类型、方法、字段、栈帧ID的默认字节长度
	DefaultIDSize = 8

	VersionMajor = 1
	VersionMinor = 5
)

// CommandSet 命令集
type CommandSet uint8

const (
	CommandSetVirtualMachine       CommandSet = 1
	CommandSetReferenceType        CommandSet = 2
	CommandSetClassType            CommandSet = 3
	CommandSetArrayType            CommandSet = 4
	CommandSetInterfaceType        CommandSet = 5
	CommandSetMethod               CommandSet = 6
	CommandSetField                CommandSet = 8
	CommandSetObjectReference      CommandSet = 9
	CommandSetStringReference      CommandSet = 10
	CommandSetThreadReference      CommandSet = 11
	CommandSetThreadGroupReference CommandSet = 12
	CommandSetArrayReference       CommandSet = 13
	CommandSetClassLoaderReference CommandSet = 14
	CommandSetEventRequest         CommandSet = 15
	CommandSetStackFrame           CommandSet = 16
	CommandSetClassObjectReference CommandSet = 17
	CommandSetEvent                CommandSet = 64
)

// Command 命令集内的命令
type Command uint8

const (
	CommandVMVersion      Command = 1
	CommandVMDispose      Command = 6
	CommandVMIDSizes      Command = 7
	CommandVMSuspend      Command = 8
	CommandVMResume       Command = 9
	CommandVMExit         Command = 10
	CommandVMCapabilities Command = 12

	CommandERSet                 Command = 1
	CommandERClear               Command = 2
	CommandERClearAllBreakpoints Command = 3

	CommandSFPopFrames Command = 4

	CommandEventComposite Command = 100
)

// ErrorCode JDWP回复包的错误码
type ErrorCode uint16

const (
	ErrorNone              ErrorCode = 0
	ErrorInvalidThread     ErrorCode = 10
	ErrorInvalidObject     ErrorCode = 20
	ErrorInvalidClass      ErrorCode = 21
	ErrorInvalidMethodID   ErrorCode = 23
	ErrorInvalidLocation   ErrorCode = 24
	ErrorInvalidFieldID    ErrorCode = 25
	ErrorInvalidFrameID    ErrorCode = 30
	ErrorDuplicate         ErrorCode = 40
	ErrorNotFound          ErrorCode = 41
	ErrorNotImplemented    ErrorCode = 99
	ErrorNullPointer       ErrorCode = 100
	ErrorAbsentInformation ErrorCode = 101
	ErrorInvalidEventType  ErrorCode = 102
	ErrorIllegalArgument   ErrorCode = 103
	ErrorOutOfMemory       ErrorCode = 110
	ErrorAccessDenied      ErrorCode = 111
	ErrorVMDead            ErrorCode = 112
	ErrorInternal          ErrorCode = 113
	ErrorInvalidTag        ErrorCode = 500
	ErrorInvalidLength     ErrorCode = 504
	ErrorInvalidCount      ErrorCode = 512
)

// TypeTag 引用类型的种类
type TypeTag uint8

const (
	TypeTagClass     TypeTag = 1
	TypeTagInterface TypeTag = 2
	TypeTagArray     TypeTag = 3
)

// Tag 值的类型标签
type Tag uint8

const (
	TagNone        Tag = 0
	TagArray       Tag = '['
	TagByte        Tag = 'B'
	TagChar        Tag = 'C'
	TagObject      Tag = 'L'
	TagFloat       Tag = 'F'
	TagDouble      Tag = 'D'
	TagInt         Tag = 'I'
	TagLong        Tag = 'J'
	TagShort       Tag = 'S'
	TagVoid        Tag = 'V'
	TagBoolean     Tag = 'Z'
	TagString      Tag = 's'
	TagThread      Tag = 't'
	TagThreadGroup Tag = 'g'
	TagClassLoader Tag = 'l'
	TagClassObject Tag = 'c'
)

// Size 返回该标签对应的值在数据包中的字节长度，对象类型返回idSize
func (t Tag) Size(idSize int) int {
	switch t {
	case TagByte, TagBoolean:
		return 1
	case TagChar, TagShort:
		return 2
	case TagInt, TagFloat:
		return 4
	case TagLong, TagDouble:
		return 8
	case TagVoid, TagNone:
		return 0
	}
	return idSize
}

// IsObject 判断标签是否表示对象引用
func (t Tag) IsObject() bool {
	switch t {
	case TagArray, TagObject, TagString, TagThread, TagThreadGroup, TagClassLoader, TagClassObject:
		return true
	}
	return false
}
