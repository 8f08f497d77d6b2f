package utils

import (
	"sync"

	"github.com/fansqz/go-jdwp/constants"
)

// StatusManager 记录调试会话的状态
type StatusManager struct {
	lock   sync.RWMutex
	status constants.SessionStatus
}

func NewStatusManager() *StatusManager {
	return &StatusManager{
		status: constants.SessionInit,
	}
}

func (s *StatusManager) Set(status constants.SessionStatus) {
	defer s.lock.Unlock()
	s.lock.Lock()
	s.status = status
}

func (s *StatusManager) Get() constants.SessionStatus {
	defer s.lock.RUnlock()
	s.lock.RLock()
	return s.status
}

func (s *StatusManager) Is(statusList ...constants.SessionStatus) bool {
	defer s.lock.RUnlock()
	s.lock.RLock()
	for _, status := range statusList {
		if s.status == status {
			return true
		}
	}
	return false
}

// Transition 当前状态为from中的一个时切换到to，返回是否切换成功
func (s *StatusManager) Transition(to constants.SessionStatus, from ...constants.SessionStatus) bool {
	defer s.lock.Unlock()
	s.lock.Lock()
	for _, status := range from {
		if s.status == status {
			s.status = to
			return true
		}
	}
	return false
}
