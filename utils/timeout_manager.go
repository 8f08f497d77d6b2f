package utils

import (
	"context"
	"time"

	"github.com/fansqz/go-jdwp/utils/gosync"
	"github.com/sirupsen/logrus"
)

// TimeoutManager 空闲计时器
// 如果在timeout时间内没有执行Reset，就会执行fun函数
type TimeoutManager struct {
	timer         *time.Timer
	timeout       time.Duration
	resetChannel  chan struct{}
	cancelChannel chan struct{}
	fun           func()
}

// NewTimeoutManager 创建一个新的计时器实例
func NewTimeoutManager() *TimeoutManager {
	return &TimeoutManager{}
}

// Start 开始计时，ctx结束时计时器也会停止
func (t *TimeoutManager) Start(ctx context.Context, timeout time.Duration, option func()) {
	t.timer = time.NewTimer(timeout)
	t.timeout = timeout
	t.fun = option
	t.resetChannel = make(chan struct{}, 1)
	t.cancelChannel = make(chan struct{}, 1)
	gosync.Go(ctx, "idle-timer", func(ctx context.Context) {
		defer t.timer.Stop()
		for {
			select {
			case <-t.timer.C:
				logrus.Infof("[TimeoutManager] timer expired, performing action")
				t.fun()
				return
			case <-t.resetChannel:
				if !t.timer.Stop() {
					<-t.timer.C
				}
				t.timer.Reset(t.timeout)
			case <-t.cancelChannel:
				logrus.Debugf("[TimeoutManager] cancel")
				return
			case <-ctx.Done():
				return
			}
		}
	})
}

// Reset 重置计时器，计时器已经停止时不会阻塞
func (t *TimeoutManager) Reset() {
	if t.resetChannel == nil {
		return
	}
	select {
	case t.resetChannel <- struct{}{}:
	default:
	}
}

// Cancel 取消计时
func (t *TimeoutManager) Cancel() {
	if t.cancelChannel == nil {
		return
	}
	select {
	case t.cancelChannel <- struct{}{}:
	default:
	}
}
