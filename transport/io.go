package transport

import (
	"errors"
	"io"
	"net"
	"time"

	e "github.com/fansqz/go-jdwp/error"
)

const (
	// readCycle 调用方没有指定超时时间时，一次读等待的时长
	readCycle = 1000 * time.Millisecond
	// sendCycle 调用方没有指定超时时间时，一次写等待的时长
	sendCycle = 100 * time.Millisecond
)

// waitSlice 计算本次等待的时长
// timeout为0时每次等待一个默认周期，否则在截止时间之前分多次等待
func waitSlice(cycle time.Duration, timeout time.Duration, deadline time.Time) (time.Duration, bool) {
	if timeout == 0 {
		return cycle, true
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, false
	}
	if remaining < cycle {
		return remaining, true
	}
	return cycle, true
}

// receiveData 读满buf，返回已经读取的字节数
// 对端在读取第一个字节之前关闭连接时返回io.EOF
func (t *SocketTransport) receiveData(conn net.Conn, buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	off := 0
	for off < len(buf) {
		slice, ok := waitSlice(readCycle, timeout, deadline)
		if !ok {
			return off, t.setLastError(e.ErrTimeout, "timeout occurred", nil)
		}
		if err := conn.SetReadDeadline(time.Now().Add(slice)); err != nil {
			return off, t.setLastError(e.ErrIOError, "socket error", err)
		}
		n, err := conn.Read(buf[off:])
		off += n
		if err == nil {
			continue
		}
		switch {
		case isInterrupted(err):
			continue
		case isTimeout(err):
			// 等待期间有数据到达，继续等待剩下的部分
			if n > 0 || timeout > 0 {
				continue
			}
			return off, t.setLastError(e.ErrTimeout, "timeout occurred", nil)
		case errors.Is(err, io.EOF):
			if off == 0 {
				return 0, io.EOF
			}
			return off, t.setLastError(e.ErrIOError, "premature EOF", nil)
		}
		return off, t.setLastError(e.ErrIOError, "data receiving failed", err)
	}
	return off, nil
}

// sendData 写出data中的全部数据
func (t *SocketTransport) sendData(conn net.Conn, data []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	off := 0
	for off < len(data) {
		slice, ok := waitSlice(sendCycle, timeout, deadline)
		if !ok {
			return t.setLastError(e.ErrTimeout, "timeout occurred", nil)
		}
		if err := conn.SetWriteDeadline(time.Now().Add(slice)); err != nil {
			return t.setLastError(e.ErrIOError, "socket error", err)
		}
		n, err := conn.Write(data[off:])
		off += n
		if err == nil {
			continue
		}
		switch {
		case isInterrupted(err):
			continue
		case isTimeout(err):
			if n > 0 || timeout > 0 {
				continue
			}
			return t.setLastError(e.ErrTimeout, "timeout occurred", nil)
		}
		return t.setLastError(e.ErrIOError, "send failed", err)
	}
	return nil
}
