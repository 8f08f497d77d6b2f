package transport

import (
	"errors"
	"fmt"
	"os"

	e "github.com/fansqz/go-jdwp/error"
	"github.com/fansqz/go-jdwp/metrics"
)

// LastError 传输层最近一次失败的错误信息
type LastError struct {
	Message string
	// Status 系统错误码，没有时为0
	Status int
}

func (l *LastError) String() string {
	if l.Status != 0 {
		return fmt.Sprintf("%s (error code: %d)", l.Message, l.Status)
	}
	return l.Message
}

// setLastError 替换当前的错误信息，返回带有错误类型的error
func (t *SocketTransport) setLastError(kind error, message string, cause error) error {
	status := 0
	if cause != nil {
		status = errnoOf(cause)
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	t.errMu.Lock()
	t.lastError = &LastError{Message: message, Status: status}
	t.errMu.Unlock()
	metrics.TransportErrors.WithLabelValues(errorType(kind)).Inc()
	return fmt.Errorf("%w: %s", kind, message)
}

// setLastErrorPrefix 在当前错误信息前追加上下文，错误码保持不变
func (t *SocketTransport) setLastErrorPrefix(prefix string) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.lastError != nil {
		t.lastError.Message = prefix + t.lastError.Message
	}
}

// GetLastError 获取最近一次失败的错误信息
func (t *SocketTransport) GetLastError() (*LastError, error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.lastError == nil {
		return nil, e.ErrMsgNotAvailable
	}
	l := *t.lastError
	return &l, nil
}

func errorType(kind error) string {
	switch {
	case errors.Is(kind, e.ErrIllegalArgument):
		return "illegal_argument"
	case errors.Is(kind, e.ErrIllegalState):
		return "illegal_state"
	case errors.Is(kind, e.ErrTimeout):
		return "timeout"
	case errors.Is(kind, e.ErrOutOfMemory):
		return "out_of_memory"
	case errors.Is(kind, e.ErrIOError):
		return "io_error"
	}
	return "internal"
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
