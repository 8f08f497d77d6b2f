package gosync

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Go 启动一个会兜住panic的协程，name用于在日志中区分协程
func Go(ctx context.Context, name string, task func(ctx context.Context)) {
	go func() {
		defer func() {
			if err := recover(); err != nil {
				logrus.WithField("goroutine", name).Errorf("[gosync] panic recovered, err = %v\n%s", err, debug.Stack())
			}
		}()
		task(ctx)
	}()
}
