package agent

import (
	"fmt"
	"strings"

	"github.com/fansqz/go-jdwp/constants"
	"github.com/fansqz/go-jdwp/protocol"
)

// Modifier 事件请求的过滤条件，只能是本包定义的几种类型
type Modifier interface {
	Kind() constants.ModifierKind
	isModifier()
}

// Count 第Remaining次满足条件时触发，触发后请求失效
type Count struct {
	Remaining int32
}

// Conditional 由外部表达式求值器决定是否触发
type Conditional struct {
	ExprID int32
}

// ThreadOnly 只匹配指定线程
type ThreadOnly struct {
	Thread protocol.ThreadID
}

// ClassOnly 只匹配指定类
type ClassOnly struct {
	Class protocol.ReferenceTypeID
}

// ClassMatch 类名匹配模式，只支持出现在开头或结尾的*通配符
type ClassMatch struct {
	Pattern string
}

// ClassExclude 排除类名匹配模式的事件
type ClassExclude struct {
	Pattern string
}

// LocationOnly 只匹配指定位置
type LocationOnly struct {
	Location protocol.Location
}

// ExceptionOnly 只匹配指定异常，Exception为0表示任意异常
type ExceptionOnly struct {
	Exception protocol.ReferenceTypeID
	Caught    bool
	Uncaught  bool
}

// FieldOnly 只匹配指定字段
type FieldOnly struct {
	Class protocol.ReferenceTypeID
	Field protocol.FieldID
}

// Step 单步请求，开始时的栈深度和位置由StepController记录
type Step struct {
	Thread protocol.ThreadID
	Size   constants.StepSize
	Depth  constants.StepDepth

	internal      bool
	startDepth    int
	startLine     int
	startLocation protocol.Location
}

// InstanceOnly 只匹配this为指定对象的事件
type InstanceOnly struct {
	Object protocol.ObjectID
}

func (*Count) Kind() constants.ModifierKind        { return constants.ModifierCount }
func (Conditional) Kind() constants.ModifierKind   { return constants.ModifierConditional }
func (ThreadOnly) Kind() constants.ModifierKind    { return constants.ModifierThreadOnly }
func (ClassOnly) Kind() constants.ModifierKind     { return constants.ModifierClassOnly }
func (ClassMatch) Kind() constants.ModifierKind    { return constants.ModifierClassMatch }
func (ClassExclude) Kind() constants.ModifierKind  { return constants.ModifierClassExclude }
func (LocationOnly) Kind() constants.ModifierKind  { return constants.ModifierLocationOnly }
func (ExceptionOnly) Kind() constants.ModifierKind { return constants.ModifierExceptionOnly }
func (FieldOnly) Kind() constants.ModifierKind     { return constants.ModifierFieldOnly }
func (*Step) Kind() constants.ModifierKind         { return constants.ModifierStep }
func (InstanceOnly) Kind() constants.ModifierKind  { return constants.ModifierInstanceOnly }

func (*Count) isModifier()        {}
func (Conditional) isModifier()   {}
func (ThreadOnly) isModifier()    {}
func (ClassOnly) isModifier()     {}
func (ClassMatch) isModifier()    {}
func (ClassExclude) isModifier()  {}
func (LocationOnly) isModifier()  {}
func (ExceptionOnly) isModifier() {}
func (FieldOnly) isModifier()     {}
func (*Step) isModifier()         {}
func (InstanceOnly) isModifier()  {}

func (s *Step) String() string {
	return fmt.Sprintf("Step{thread=%d, size=%d, depth=%v}", s.Thread, s.Size, s.Depth)
}

// className 把类型签名转换为类名，例如 Ljava/lang/String; 转换为 java.lang.String
func className(signature string) string {
	if strings.HasPrefix(signature, "L") && strings.HasSuffix(signature, ";") {
		signature = signature[1 : len(signature)-1]
	}
	return strings.ReplaceAll(signature, "/", ".")
}

var patternEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// classPattern 把类名模式转换为match包的模式，开头或结尾以外的字符都按字面匹配
func classPattern(pattern string) string {
	body := strings.TrimPrefix(pattern, "*")
	leading := len(body) < len(pattern)
	trailing := strings.HasSuffix(body, "*")
	body = patternEscaper.Replace(strings.TrimSuffix(body, "*"))
	if leading {
		body = "*" + body
	}
	if trailing {
		body += "*"
	}
	return body
}
