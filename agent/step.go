package agent

import (
	"github.com/fansqz/go-jdwp/constants"
	"github.com/fansqz/go-jdwp/protocol"
	"github.com/sirupsen/logrus"
)

// StepController 管理每个线程当前生效的单步请求，每个线程最多一个
// 内部单步请求会临时覆盖用户的单步请求，移除后恢复
// 不是线程安全的，由RequestManager的锁保护
type StepController struct {
	control   EventControl
	inspector FrameInspector
	active    map[protocol.ThreadID]*Step
	saved     map[protocol.ThreadID]*Step
}

// NewStepController 创建单步控制器
func NewStepController(control EventControl, inspector FrameInspector) *StepController {
	return &StepController{
		control:   control,
		inspector: inspector,
		active:    make(map[protocol.ThreadID]*Step),
		saved:     make(map[protocol.ThreadID]*Step),
	}
}

// Active 线程当前生效的单步请求
func (s *StepController) Active(thread protocol.ThreadID) *Step {
	return s.active[thread]
}

// hasUserStep 线程上是否已经有用户的单步请求
func (s *StepController) hasUserStep(thread protocol.ThreadID) bool {
	if step, ok := s.active[thread]; ok && !step.internal {
		return true
	}
	_, ok := s.saved[thread]
	return ok
}

// start 让单步请求生效，记录开始时的栈深度和位置
func (s *StepController) start(step *Step) error {
	thread := step.Thread
	current, ok := s.active[thread]
	if ok && current.internal && !step.internal {
		s.record(step)
		s.saved[thread] = step
		return nil
	}
	if ok && !current.internal && step.internal {
		s.saved[thread] = current
	}
	s.record(step)
	s.active[thread] = step
	if ok {
		return nil
	}
	if err := s.control.SetEventNotification(constants.EventSingleStep, thread, true); err != nil {
		delete(s.active, thread)
		if step.internal {
			delete(s.saved, thread)
		}
		return err
	}
	return nil
}

// stop 让单步请求失效，内部请求失效时恢复之前保存的用户请求
func (s *StepController) stop(step *Step) error {
	thread := step.Thread
	if s.saved[thread] == step {
		delete(s.saved, thread)
		return nil
	}
	if s.active[thread] != step {
		return nil
	}
	delete(s.active, thread)
	if saved, ok := s.saved[thread]; ok {
		delete(s.saved, thread)
		s.record(saved)
		s.active[thread] = saved
		logrus.Infof("[StepController] restore %v", saved)
		return nil
	}
	return s.control.SetEventNotification(constants.EventSingleStep, thread, false)
}

// record 记录线程当前的栈深度和位置
func (s *StepController) record(step *Step) {
	step.startDepth, step.startLine, step.startLocation = 0, -1, protocol.Location{}
	if s.inspector == nil {
		return
	}
	depth, err := s.inspector.FrameCount(step.Thread)
	if err != nil {
		logrus.Errorf("[StepController] get frame count fail, err = %v", err)
		return
	}
	location, line, err := s.inspector.CurrentLocation(step.Thread)
	if err != nil {
		logrus.Errorf("[StepController] get location fail, err = %v", err)
		return
	}
	step.startDepth, step.startLine, step.startLocation = depth, line, location
}

// rearm 单步请求触发后，以当前位置作为下一次单步的起点
func (s *StepController) rearm(step *Step, info *EventInfo) {
	step.startDepth, step.startLine, step.startLocation = info.Depth, info.Line, info.Location
}

// readFrame 读取单步事件发生时的栈深度和行号
func readFrame(inspector FrameInspector, info *EventInfo) {
	if inspector == nil {
		return
	}
	if depth, err := inspector.FrameCount(info.Thread); err == nil {
		info.Depth = depth
	} else {
		logrus.Errorf("[readFrame] get frame count fail, err = %v", err)
	}
	if _, line, err := inspector.CurrentLocation(info.Thread); err == nil {
		info.Line = line
	}
}

// matches 判断单步事件是否完成了单步请求
func (s *StepController) matches(step *Step, info *EventInfo) bool {
	if info.Kind != constants.EventSingleStep || info.Thread != step.Thread || s.active[step.Thread] != step {
		return false
	}
	switch {
	case info.Depth < step.startDepth:
		return true
	case info.Depth > step.startDepth:
		return step.Depth == constants.StepInto
	case step.Depth == constants.StepOut:
		return false
	}
	if step.Size == constants.StepLine && info.Line >= 0 && step.startLine >= 0 {
		return info.Line != step.startLine || info.Location.Method != step.startLocation.Method
	}
	return !info.Location.SameAs(step.startLocation)
}
