package error

import (
	"errors"

	"github.com/fansqz/go-jdwp/constants"
)

// 传输层和代理核心使用的错误
var (
	ErrIllegalArgument  = errors.New("illegal argument")
	ErrIllegalState     = errors.New("illegal state")
	ErrIOError          = errors.New("io error")
	ErrTimeout          = errors.New("timeout")
	ErrOutOfMemory      = errors.New("out of memory")
	ErrVersionMismatch  = errors.New("version mismatch")
	ErrInternal         = errors.New("internal error")
	ErrMsgNotAvailable  = errors.New("message not available")
	ErrDuplicate        = errors.New("duplicate request")
	ErrNotFound         = errors.New("not found")
	ErrInvalidEventType = errors.New("invalid event type")
	ErrNotImplemented   = errors.New("not implemented")
	ErrVMDead           = errors.New("vm dead")
)

// ToJDWPError 将错误转换为回复包中的错误码
func ToJDWPError(err error) constants.ErrorCode {
	switch {
	case err == nil:
		return constants.ErrorNone
	case errors.Is(err, ErrIllegalArgument):
		return constants.ErrorIllegalArgument
	case errors.Is(err, ErrOutOfMemory):
		return constants.ErrorOutOfMemory
	case errors.Is(err, ErrDuplicate):
		return constants.ErrorDuplicate
	case errors.Is(err, ErrNotFound):
		return constants.ErrorNotFound
	case errors.Is(err, ErrInvalidEventType):
		return constants.ErrorInvalidEventType
	case errors.Is(err, ErrNotImplemented):
		return constants.ErrorNotImplemented
	case errors.Is(err, ErrIllegalState), errors.Is(err, ErrVMDead):
		return constants.ErrorVMDead
	}
	return constants.ErrorInternal
}
