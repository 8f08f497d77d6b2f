package agent

import (
	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/fansqz/go-jdwp/constants"
	"github.com/fansqz/go-jdwp/metrics"
	"github.com/fansqz/go-jdwp/protocol"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/match"
)

// GenerateEvents 按注册顺序匹配事件类型对应的所有请求，生成组合事件
// 内部请求匹配后只处理副作用，不会出现在组合事件中，没有匹配的请求时返回nil
func (m *RequestManager) GenerateEvents(info *EventInfo) *CompositeEvent {
	m.lock.Lock()
	defer m.lock.Unlock()
	list, ok := m.requests[info.Kind]
	if !ok {
		return nil
	}
	composite := &CompositeEvent{SuspendPolicy: constants.SuspendNone}
	var consumed []*EventRequest
	it := list.Iterator()
	for it.Next() {
		req := it.Value().(*EventRequest)
		if req.expired || !m.matchRequest(req, info) {
			continue
		}
		metrics.MatchedEvents.WithLabelValues(info.Kind.String()).Inc()
		if step := req.step(); step != nil && !req.expired {
			m.steps.rearm(step, info)
		}
		if req.IsInternal() {
			consumed = append(consumed, req)
			continue
		}
		composite.Events = append(composite.Events, info.event(req.ID))
		if req.SuspendPolicy > composite.SuspendPolicy {
			composite.SuspendPolicy = req.SuspendPolicy
		}
	}
	for _, req := range consumed {
		m.consumeInternal(list, req)
	}
	if len(composite.Events) == 0 {
		return nil
	}
	metrics.CompositeEvents.WithLabelValues(composite.SuspendPolicy.String()).Inc()
	return composite
}

// consumeInternal 内部单步请求完成后立即移除，通知等待的PopFrames并恢复线程上保存的用户单步请求
func (m *RequestManager) consumeInternal(list *arraylist.List, req *EventRequest) {
	i := list.IndexOf(req)
	if i < 0 {
		return
	}
	if err := m.removeLocked(list, i, req); err != nil {
		logrus.Errorf("[consumeInternal] remove %v fail, err = %v", req, err)
	}
}

// matchRequest 所有过滤条件都满足时请求才匹配，Count最后计算
func (m *RequestManager) matchRequest(req *EventRequest, info *EventInfo) bool {
	for _, mod := range req.Modifiers {
		if !m.matchModifier(mod, info) {
			return false
		}
	}
	fired, counted := true, false
	for _, mod := range req.Modifiers {
		if c, ok := mod.(*Count); ok {
			counted = true
			c.Remaining--
			if c.Remaining > 0 {
				fired = false
			}
		}
	}
	if !fired {
		return false
	}
	if counted || req.oneShot {
		req.expired = true
	}
	return true
}

func (m *RequestManager) matchModifier(mod Modifier, info *EventInfo) bool {
	switch mod := mod.(type) {
	case *Count:
		return true
	case Conditional:
		return m.evaluator.Evaluate(mod.ExprID, info)
	case ThreadOnly:
		return info.Thread == mod.Thread
	case ClassOnly:
		return info.Class == mod.Class
	case ClassMatch:
		return match.Match(className(info.Signature), classPattern(mod.Pattern))
	case ClassExclude:
		return !match.Match(className(info.Signature), classPattern(mod.Pattern))
	case LocationOnly:
		return info.Location.SameAs(mod.Location)
	case ExceptionOnly:
		if mod.Exception != 0 && mod.Exception != info.ExceptionClass {
			return false
		}
		if info.caught() {
			return mod.Caught
		}
		return mod.Uncaught
	case FieldOnly:
		return info.Field == mod.Field && (mod.Class == 0 || info.FieldClass == mod.Class)
	case *Step:
		return m.steps.matches(mod, info)
	case InstanceOnly:
		return info.Instance == mod.Object
	}
	return false
}

// dispatch 把组合事件交给EventDispatcher，调用时不能持有锁
func (m *RequestManager) dispatch(composite *CompositeEvent) *CompositeEvent {
	if composite == nil || m.dispatcher == nil {
		return composite
	}
	if err := m.dispatcher.Dispatch(composite); err != nil {
		logrus.Errorf("[dispatch] send composite event fail, err = %v", err)
	}
	return composite
}

func (m *RequestManager) handle(info *EventInfo) *CompositeEvent {
	return m.dispatch(m.GenerateEvents(info))
}

// HandleVMInit VM_START事件不经过请求匹配，使用隐式的0号请求
func (m *RequestManager) HandleVMInit(thread protocol.ThreadID) *CompositeEvent {
	m.lock.Lock()
	policy := m.startPolicy
	m.lock.Unlock()
	logrus.Infof("[HandleVMInit] thread %d, suspend %v", thread, policy)
	composite := &CompositeEvent{
		SuspendPolicy: policy,
		Events: []protocol.Event{{
			Kind:   constants.EventVMStart,
			Thread: thread,
		}},
	}
	metrics.CompositeEvents.WithLabelValues(policy.String()).Inc()
	return m.dispatch(composite)
}

// HandleVMDeath VM_DEATH事件发给所有VM_DEATH请求，忽略过滤条件
// 没有请求时发送隐式的0号事件
func (m *RequestManager) HandleVMDeath() *CompositeEvent {
	m.lock.Lock()
	composite := &CompositeEvent{SuspendPolicy: constants.SuspendNone}
	if list, ok := m.requests[constants.EventVMDeath]; ok {
		it := list.Iterator()
		for it.Next() {
			req := it.Value().(*EventRequest)
			if req.IsInternal() {
				continue
			}
			composite.Events = append(composite.Events, protocol.Event{
				Kind:      constants.EventVMDeath,
				RequestID: req.ID,
			})
			if req.SuspendPolicy > composite.SuspendPolicy {
				composite.SuspendPolicy = req.SuspendPolicy
			}
		}
	}
	m.lock.Unlock()
	if len(composite.Events) == 0 {
		composite.Events = []protocol.Event{{Kind: constants.EventVMDeath}}
	}
	logrus.Infof("[HandleVMDeath] %d events", len(composite.Events))
	metrics.CompositeEvents.WithLabelValues(composite.SuspendPolicy.String()).Inc()
	return m.dispatch(composite)
}

// HandleThreadStart 线程启动
func (m *RequestManager) HandleThreadStart(thread protocol.ThreadID) *CompositeEvent {
	return m.handle(&EventInfo{Kind: constants.EventThreadStart, Thread: thread})
}

// HandleThreadEnd 线程结束
func (m *RequestManager) HandleThreadEnd(thread protocol.ThreadID) *CompositeEvent {
	return m.handle(&EventInfo{Kind: constants.EventThreadEnd, Thread: thread})
}

// ClassInfo 类加载事件中的类信息
type ClassInfo struct {
	Tag       constants.TypeTag
	ID        protocol.ReferenceTypeID
	Signature string
	Status    constants.ClassStatus
}

func classInfo(kind constants.EventKind, thread protocol.ThreadID, class ClassInfo) *EventInfo {
	return &EventInfo{
		Kind:      kind,
		Thread:    thread,
		Class:     class.ID,
		TypeTag:   class.Tag,
		Signature: class.Signature,
		Status:    class.Status,
	}
}

// HandleClassPrepare 类准备完成
func (m *RequestManager) HandleClassPrepare(thread protocol.ThreadID, class ClassInfo) *CompositeEvent {
	return m.handle(classInfo(constants.EventClassPrepare, thread, class))
}

// HandleClassLoad 类加载
func (m *RequestManager) HandleClassLoad(thread protocol.ThreadID, class ClassInfo) *CompositeEvent {
	return m.handle(classInfo(constants.EventClassLoad, thread, class))
}

// HandleClassUnload 类卸载，只有签名可用
func (m *RequestManager) HandleClassUnload(signature string) *CompositeEvent {
	return m.handle(&EventInfo{Kind: constants.EventClassUnload, Signature: signature})
}

// HandleBreakpoint 断点
func (m *RequestManager) HandleBreakpoint(site Site) *CompositeEvent {
	return m.handle(siteInfo(constants.EventBreakpoint, site))
}

// HandleSingleStep 单步，匹配前先读取线程当前的栈深度和行号
func (m *RequestManager) HandleSingleStep(site Site) *CompositeEvent {
	info := siteInfo(constants.EventSingleStep, site)
	readFrame(m.inspector, info)
	return m.handle(info)
}

// HandleFramePop 栈帧弹出
func (m *RequestManager) HandleFramePop(site Site, poppedByException bool) *CompositeEvent {
	if poppedByException {
		logrus.Debugf("[HandleFramePop] thread %d popped by exception", site.Thread)
	}
	return m.handle(siteInfo(constants.EventFramePop, site))
}

// HandleMethodEntry 方法进入
func (m *RequestManager) HandleMethodEntry(site Site) *CompositeEvent {
	return m.handle(siteInfo(constants.EventMethodEntry, site))
}

// HandleMethodExit 方法退出
func (m *RequestManager) HandleMethodExit(site Site, returnValue protocol.Value) *CompositeEvent {
	info := siteInfo(constants.EventMethodExit, site)
	info.Value = returnValue
	return m.handle(info)
}

// HandleException 抛出异常，catch为零值表示异常不会被捕获
func (m *RequestManager) HandleException(site Site, exception protocol.TaggedObjectID,
	exceptionClass protocol.ReferenceTypeID, catch protocol.Location) *CompositeEvent {
	info := siteInfo(constants.EventException, site)
	info.Exception = exception
	info.ExceptionClass = exceptionClass
	info.CatchLocation = catch
	return m.handle(info)
}

// HandleExceptionCatch 异常被捕获
func (m *RequestManager) HandleExceptionCatch(site Site, exception protocol.TaggedObjectID,
	exceptionClass protocol.ReferenceTypeID) *CompositeEvent {
	info := siteInfo(constants.EventExceptionCatch, site)
	info.Exception = exception
	info.ExceptionClass = exceptionClass
	info.CatchLocation = site.Location
	return m.handle(info)
}

// HandleFieldAccess 字段读取
func (m *RequestManager) HandleFieldAccess(site Site, fieldClass protocol.ReferenceTypeID,
	field protocol.FieldID, object protocol.TaggedObjectID) *CompositeEvent {
	info := siteInfo(constants.EventFieldAccess, site)
	info.FieldClass = fieldClass
	info.Field = field
	info.Object = object
	return m.handle(info)
}

// HandleFieldModification 字段修改
func (m *RequestManager) HandleFieldModification(site Site, fieldClass protocol.ReferenceTypeID,
	field protocol.FieldID, object protocol.TaggedObjectID, value protocol.Value) *CompositeEvent {
	info := siteInfo(constants.EventFieldModification, site)
	info.FieldClass = fieldClass
	info.Field = field
	info.Object = object
	info.Value = value
	return m.handle(info)
}

// HandleUserDefined 用户自定义事件
func (m *RequestManager) HandleUserDefined(site Site) *CompositeEvent {
	return m.handle(siteInfo(constants.EventUserDefined, site))
}
