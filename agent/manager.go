package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/sets"
	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
	"github.com/fansqz/go-jdwp/metrics"
	"github.com/fansqz/go-jdwp/protocol"
	"github.com/fansqz/go-jdwp/utils"
	"github.com/sirupsen/logrus"
)

// physicalKinds 需要在虚拟机中按位置或字段单独开启的事件类型
var physicalKinds sets.Set = utils.NewSet(
	constants.EventBreakpoint,
	constants.EventFieldAccess,
	constants.EventFieldModification,
)

// Options RequestManager的外部依赖和配置
type Options struct {
	Control    EventControl
	Evaluator  ConditionEvaluator
	Inspector  FrameInspector
	Dispatcher EventDispatcher
	// StartPolicy VM_START事件的挂起策略
	StartPolicy constants.SuspendPolicy
	// MaxRequests 最多可以注册的请求数量，0表示不限制
	MaxRequests int
}

type fieldKey struct {
	kind  constants.EventKind
	class protocol.ReferenceTypeID
	field protocol.FieldID
}

type locationKey struct {
	method protocol.MethodID
	index  uint64
}

// RequestManager 管理一个调试会话中的所有事件请求，并把虚拟机事件匹配为组合事件
// 请求的增删和事件匹配由同一把锁串行化
type RequestManager struct {
	lock           sync.Mutex
	requestIDCount protocol.RequestID
	requests       map[constants.EventKind]*arraylist.List
	total          int

	kindRefs     map[constants.EventKind]int
	locationRefs map[locationKey]int
	fieldRefs    map[fieldKey]int
	// internalSteps 内部单步请求完成时关闭的channel
	internalSteps map[*EventRequest]chan struct{}

	steps      *StepController
	control    EventControl
	evaluator  ConditionEvaluator
	inspector  FrameInspector
	dispatcher EventDispatcher

	startPolicy constants.SuspendPolicy
	maxRequests int
}

// NewRequestManager 创建并初始化RequestManager
func NewRequestManager(opts Options) *RequestManager {
	if opts.Control == nil {
		opts.Control = NopEventControl{}
	}
	if opts.Evaluator == nil {
		opts.Evaluator = AlwaysTrue{}
	}
	m := &RequestManager{
		control:     opts.Control,
		evaluator:   opts.Evaluator,
		inspector:   opts.Inspector,
		dispatcher:  opts.Dispatcher,
		startPolicy: opts.StartPolicy,
		maxRequests: opts.MaxRequests,
	}
	m.Init()
	return m
}

// Init 初始化请求列表，可以重复调用
func (m *RequestManager) Init() {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.requests != nil {
		return
	}
	m.initLocked()
}

func (m *RequestManager) initLocked() {
	m.requestIDCount = 0
	m.total = 0
	m.requests = make(map[constants.EventKind]*arraylist.List, len(constants.RequestKinds))
	for _, kind := range constants.RequestKinds {
		m.requests[kind] = arraylist.New()
		metrics.ActiveRequests.WithLabelValues(kind.String()).Set(0)
	}
	m.kindRefs = make(map[constants.EventKind]int)
	m.locationRefs = make(map[locationKey]int)
	m.fieldRefs = make(map[fieldKey]int)
	m.internalSteps = make(map[*EventRequest]chan struct{})
	m.steps = NewStepController(m.control, m.inspector)
}

// Clean 释放所有请求，不再关闭底层通知，可以重复调用
func (m *RequestManager) Clean() {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, done := range m.internalSteps {
		close(done)
	}
	m.initLocked()
}

// Reset 删除所有请求并关闭对应的底层通知，请求ID从头开始计数
// 被调试程序重启或者调试器断开时调用
func (m *RequestManager) Reset() {
	m.lock.Lock()
	defer m.lock.Unlock()
	logrus.Infof("[RequestManager] reset")
	for _, kind := range constants.RequestKinds {
		if err := m.deleteAllLocked(kind); err != nil {
			logrus.Errorf("[Reset] delete %v requests fail, err = %v", kind, err)
		}
	}
	for _, done := range m.internalSteps {
		close(done)
	}
	m.initLocked()
}

// SetStartPolicy 设置VM_START事件的挂起策略
func (m *RequestManager) SetStartPolicy(policy constants.SuspendPolicy) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.startPolicy = policy
}

// AddRequest 注册调试器的事件请求并分配ID
func (m *RequestManager) AddRequest(req *EventRequest) (protocol.RequestID, error) {
	if req == nil {
		return 0, fmt.Errorf("%w: request is nil", e.ErrIllegalArgument)
	}
	if err := req.validate(); err != nil {
		return 0, err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if step := req.step(); step != nil && m.steps.hasUserStep(step.Thread) {
		return 0, fmt.Errorf("%w: step request for thread %d", e.ErrDuplicate, step.Thread)
	}
	m.requestIDCount++
	req.ID = m.requestIDCount
	if err := m.insertLocked(req); err != nil {
		logrus.Errorf("[AddRequest] add %v fail, err = %v", req, err)
		return 0, err
	}
	logrus.Debugf("[AddRequest] %v", req)
	return req.ID, nil
}

// AddInternalRequest 注册代理内部的事件请求，ID保持为0
func (m *RequestManager) AddInternalRequest(req *EventRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", e.ErrIllegalArgument)
	}
	if err := req.validate(); err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	req.ID = 0
	return m.insertLocked(req)
}

// insertLocked 先开启底层通知再加入列表，加入失败时关闭通知
func (m *RequestManager) insertLocked(req *EventRequest) error {
	list, err := m.list(req.Kind)
	if err != nil {
		return err
	}
	if err = m.enableLocked(req); err != nil {
		return err
	}
	if m.maxRequests > 0 && m.total >= m.maxRequests {
		if err = m.disableLocked(req); err != nil {
			logrus.Errorf("[insert] rollback %v fail, err = %v", req, err)
		}
		return fmt.Errorf("%w: too many requests (%d)", e.ErrOutOfMemory, m.total)
	}
	list.Add(req)
	m.total++
	metrics.ActiveRequests.WithLabelValues(req.Kind.String()).Inc()
	return nil
}

// DeleteRequest 删除指定类型和ID的请求，请求不存在时直接返回
func (m *RequestManager) DeleteRequest(kind constants.EventKind, id protocol.RequestID) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	list, err := m.list(kind)
	if err != nil {
		return err
	}
	for i, value := range list.Values() {
		req := value.(*EventRequest)
		if req.ID == id {
			return m.removeLocked(list, i, req)
		}
	}
	logrus.Debugf("[DeleteRequest] %v request %d not found", kind, id)
	return nil
}

// DeleteRequestPtr 按实例删除请求，用于没有ID的内部请求
func (m *RequestManager) DeleteRequestPtr(req *EventRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", e.ErrIllegalArgument)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	list, err := m.list(req.Kind)
	if err != nil {
		return err
	}
	if i := list.IndexOf(req); i >= 0 {
		return m.removeLocked(list, i, req)
	}
	return nil
}

// DeleteAllRequests 删除某个类型的所有请求
func (m *RequestManager) DeleteAllRequests(kind constants.EventKind) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.deleteAllLocked(kind)
}

// DeleteAllBreakpoints 删除所有断点请求
func (m *RequestManager) DeleteAllBreakpoints() error {
	return m.DeleteAllRequests(constants.EventBreakpoint)
}

func (m *RequestManager) deleteAllLocked(kind constants.EventKind) error {
	list, err := m.list(kind)
	if err != nil {
		return err
	}
	var errs []error
	for list.Size() > 0 {
		req, _ := list.Get(list.Size() - 1)
		if err = m.removeLocked(list, list.Size()-1, req.(*EventRequest)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// removeLocked 从列表中移除请求并关闭底层通知，即使关闭失败请求也会被移除
func (m *RequestManager) removeLocked(list *arraylist.List, index int, req *EventRequest) error {
	list.Remove(index)
	m.total--
	metrics.ActiveRequests.WithLabelValues(req.Kind.String()).Dec()
	if done, ok := m.internalSteps[req]; ok {
		delete(m.internalSteps, req)
		close(done)
	}
	return m.disableLocked(req)
}

// EnableInternalStepRequest 为PopFrames在线程上安装一个一次性的内部单步请求
// 线程上已有的用户单步请求会被暂时保存，内部单步完成时请求被移除、用户单步请求恢复，返回的channel关闭
func (m *RequestManager) EnableInternalStepRequest(thread protocol.ThreadID) (<-chan struct{}, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.findInternalStepLocked(thread) != nil {
		return nil, fmt.Errorf("%w: internal step for thread %d", e.ErrDuplicate, thread)
	}
	req := NewEventRequest(constants.EventSingleStep, constants.SuspendNone, &Step{
		Thread:   thread,
		Size:     constants.StepMin,
		Depth:    constants.StepInto,
		internal: true,
	})
	req.oneShot = true
	if err := m.insertLocked(req); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	m.internalSteps[req] = done
	logrus.Infof("[EnableInternalStepRequest] thread %d", thread)
	return done, nil
}

// DisableInternalStepRequest 移除线程上还没有完成的内部单步请求，并恢复之前保存的用户单步请求
func (m *RequestManager) DisableInternalStepRequest(thread protocol.ThreadID) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	req := m.findInternalStepLocked(thread)
	if req == nil {
		return nil
	}
	list, _ := m.list(constants.EventSingleStep)
	logrus.Infof("[DisableInternalStepRequest] thread %d", thread)
	return m.removeLocked(list, list.IndexOf(req), req)
}

func (m *RequestManager) findInternalStepLocked(thread protocol.ThreadID) *EventRequest {
	list, _ := m.list(constants.EventSingleStep)
	it := list.Iterator()
	for it.Next() {
		req := it.Value().(*EventRequest)
		if step := req.step(); step != nil && step.internal && step.Thread == thread {
			return req
		}
	}
	return nil
}

// GetEventKindName 获取事件类型的名称
func (m *RequestManager) GetEventKindName(kind constants.EventKind) string {
	return kind.String()
}

// RequestCount 某个类型的请求数量
func (m *RequestManager) RequestCount(kind constants.EventKind) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	if list, ok := m.requests[kind]; ok {
		return list.Size()
	}
	return 0
}

// Requests 某个类型的请求快照，按注册顺序排列
func (m *RequestManager) Requests(kind constants.EventKind) []*EventRequest {
	m.lock.Lock()
	defer m.lock.Unlock()
	list, ok := m.requests[kind]
	if !ok {
		return nil
	}
	result := make([]*EventRequest, 0, list.Size())
	it := list.Iterator()
	for it.Next() {
		result = append(result, it.Value().(*EventRequest))
	}
	return result
}

// StepController 获取单步控制器
func (m *RequestManager) StepController() *StepController {
	return m.steps
}

func (m *RequestManager) list(kind constants.EventKind) (*arraylist.List, error) {
	list, ok := m.requests[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %v", e.ErrInvalidEventType, kind)
	}
	return list, nil
}

// enableLocked 开启请求需要的底层通知
func (m *RequestManager) enableLocked(req *EventRequest) error {
	if physicalKinds.Contains(req.Kind) {
		switch req.Kind {
		case constants.EventBreakpoint:
			return m.controlBreakpoint(req, true)
		default:
			return m.controlWatchpoint(req, true)
		}
	}
	switch req.Kind {
	case constants.EventSingleStep:
		return m.steps.start(req.step())
	case constants.EventVMDeath:
		return nil
	}
	return m.controlEvent(req.Kind, true)
}

// disableLocked 关闭请求对应的底层通知
func (m *RequestManager) disableLocked(req *EventRequest) error {
	if physicalKinds.Contains(req.Kind) {
		switch req.Kind {
		case constants.EventBreakpoint:
			return m.controlBreakpoint(req, false)
		default:
			return m.controlWatchpoint(req, false)
		}
	}
	switch req.Kind {
	case constants.EventSingleStep:
		return m.steps.stop(req.step())
	case constants.EventVMDeath:
		return nil
	}
	return m.controlEvent(req.Kind, false)
}

// controlEvent 同类型请求数量在0和1之间变化时开关事件通知
func (m *RequestManager) controlEvent(kind constants.EventKind, enable bool) error {
	count := m.kindRefs[kind]
	if enable {
		if count == 0 {
			if err := m.control.SetEventNotification(kind, 0, true); err != nil {
				return err
			}
		}
		m.kindRefs[kind] = count + 1
		return nil
	}
	if count == 0 {
		return nil
	}
	if count == 1 {
		delete(m.kindRefs, kind)
		return m.control.SetEventNotification(kind, 0, false)
	}
	m.kindRefs[kind] = count - 1
	return nil
}

// controlBreakpoint 同一位置的断点请求数量在0和1之间变化时设置或清除断点
func (m *RequestManager) controlBreakpoint(req *EventRequest, enable bool) error {
	location, _ := req.location()
	key := locationKey{method: location.Method, index: location.Index}
	count := m.locationRefs[key]
	if enable {
		if count == 0 {
			if err := m.control.SetBreakpoint(location); err != nil {
				return err
			}
		}
		m.locationRefs[key] = count + 1
		return nil
	}
	if count == 0 {
		return nil
	}
	if count == 1 {
		delete(m.locationRefs, key)
		return m.control.ClearBreakpoint(location)
	}
	m.locationRefs[key] = count - 1
	return nil
}

// controlWatchpoint 同一字段的监视请求数量在0和1之间变化时设置或清除监视
func (m *RequestManager) controlWatchpoint(req *EventRequest, enable bool) error {
	field, _ := req.field()
	key := fieldKey{kind: req.Kind, class: field.Class, field: field.Field}
	count := m.fieldRefs[key]
	if enable {
		if count == 0 {
			if err := m.control.SetFieldWatch(req.Kind, field.Class, field.Field); err != nil {
				return err
			}
		}
		m.fieldRefs[key] = count + 1
		return nil
	}
	if count == 0 {
		return nil
	}
	if count == 1 {
		delete(m.fieldRefs, key)
		return m.control.ClearFieldWatch(req.Kind, field.Class, field.Field)
	}
	m.fieldRefs[key] = count - 1
	return nil
}
