package constants

// SessionStatus 调试会话的状态
type SessionStatus = string

const (
	// SessionInit 会话初始化状态
	SessionInit SessionStatus = "init"
	// SessionListening 正在等待调试器连接
	SessionListening SessionStatus = "listening"
	// SessionConnected 已经和调试器建立连接
	SessionConnected SessionStatus = "connected"
	// SessionFinish 会话结束
	SessionFinish SessionStatus = "finish"
)

// TransportVersion 传输层接口版本
const (
	TransportVersion10 = 0x00010000
)
