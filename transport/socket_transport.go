package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
	"github.com/fansqz/go-jdwp/metrics"
	"github.com/fansqz/go-jdwp/protocol"
	"github.com/sirupsen/logrus"
)

// Allocator 为读取到的数据包分配数据区，返回nil表示内存不足
type Allocator func(size int) []byte

// Free 归还Allocator分配的数据区
type Free func(buf []byte)

// Capabilities 传输层支持的能力
type Capabilities struct {
	CanTimeoutAttach    bool
	CanTimeoutAccept    bool
	CanTimeoutHandshake bool
}

// SocketTransport 基于TCP的JDWP传输层
// 状态：Idle、Listening、Connected，同一时刻最多只有一个监听socket或者连接socket
// 读和写分别持有各自的锁，可以在两个goroutine中并发进行
type SocketTransport struct {
	// mu 保护client和server
	mu     sync.Mutex
	client net.Conn
	server *net.TCPListener

	readLock sync.Mutex
	sendLock sync.Mutex

	errMu     sync.Mutex
	lastError *LastError

	alloc Allocator
	free  Free
}

// NewSocketTransport 创建传输层实例，alloc和free为nil时使用默认实现
func NewSocketTransport(alloc Allocator, free Free) *SocketTransport {
	if alloc == nil {
		alloc = func(size int) []byte {
			return make([]byte, size)
		}
	}
	if free == nil {
		free = func([]byte) {}
	}
	return &SocketTransport{
		alloc: alloc,
		free:  free,
	}
}

// Load 按接口版本创建传输层，目前只支持1.0
func Load(version int, alloc Allocator, free Free) (*SocketTransport, error) {
	if version != constants.TransportVersion10 {
		return nil, fmt.Errorf("%w: transport version %#x", e.ErrVersionMismatch, version)
	}
	return NewSocketTransport(alloc, free), nil
}

// Unload 关闭连接和监听socket
func (t *SocketTransport) Unload() {
	if err := t.Close(); err != nil {
		logrus.Warnf("[Unload] close connection fail, err = %v", err)
	}
	if err := t.StopListening(); err != nil {
		logrus.Warnf("[Unload] stop listening fail, err = %v", err)
	}
}

// GetCapabilities 获取传输层能力
func (t *SocketTransport) GetCapabilities() Capabilities {
	return Capabilities{
		CanTimeoutAttach:    true,
		CanTimeoutAccept:    true,
		CanTimeoutHandshake: true,
	}
}

// IsOpen 是否存在已经建立的连接
func (t *SocketTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil
}

// IsListening 是否处于监听状态
func (t *SocketTransport) IsListening() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.server != nil
}

func (t *SocketTransport) conn() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

// Attach 主动连接调试器并完成握手
func (t *SocketTransport) Attach(address string, attachTimeout, handshakeTimeout time.Duration) error {
	if address == "" {
		return t.setLastError(e.ErrIllegalArgument, "address is missing", nil)
	}
	if attachTimeout < 0 {
		return t.setLastError(e.ErrIllegalArgument, "attach timeout is negative", nil)
	}
	if handshakeTimeout < 0 {
		return t.setLastError(e.ErrIllegalArgument, "handshake timeout is negative", nil)
	}
	if err := t.checkIdle(); err != nil {
		return err
	}
	addr, err := decodeAddress(address, false)
	if err != nil {
		return t.setLastError(e.ErrIllegalArgument, "invalid address", err)
	}

	dialer := net.Dialer{Timeout: attachTimeout, Control: controlSocket}
	conn, err := dialer.Dial("tcp", addr.String())
	if err != nil {
		if isTimeout(err) {
			return t.setLastError(e.ErrTimeout, "connect timed out", nil)
		}
		return t.setLastError(e.ErrIOError, "connect failed", err)
	}
	setNoDelay(conn)
	if err = t.setClient(conn); err != nil {
		_ = conn.Close()
		return err
	}
	if err = t.handshake(conn, handshakeTimeout); err != nil {
		logrus.Errorf("[Attach] handshake fail, err = %v", err)
		_ = t.Close()
		return err
	}
	logrus.Infof("[Attach] connected to %s", addr)
	return nil
}

// StartListening 开始监听，返回实际监听的端口
func (t *SocketTransport) StartListening(address string) (string, error) {
	if err := t.checkIdle(); err != nil {
		return "", err
	}
	addr, err := decodeAddress(address, true)
	if err != nil {
		return "", t.setLastError(e.ErrIllegalArgument, "invalid address", err)
	}
	lc := net.ListenConfig{Control: controlSocket}
	l, err := lc.Listen(context.Background(), "tcp", addr.String())
	if err != nil {
		return "", t.setLastError(e.ErrIOError, "listen failed", err)
	}
	listener := l.(*net.TCPListener)

	t.mu.Lock()
	if t.client != nil || t.server != nil {
		t.mu.Unlock()
		_ = listener.Close()
		return "", t.setLastError(e.ErrIllegalState, "already connected or listening", nil)
	}
	t.server = listener
	t.mu.Unlock()

	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	logrus.Infof("[StartListening] listening on %s", listener.Addr())
	return port, nil
}

// StopListening 关闭监听socket，没有在监听时直接返回
func (t *SocketTransport) StopListening() error {
	t.mu.Lock()
	server := t.server
	t.server = nil
	t.mu.Unlock()
	if server == nil {
		return nil
	}
	if err := server.Close(); err != nil {
		return t.setLastError(e.ErrIOError, "close failed", err)
	}
	return nil
}

// Accept 等待调试器连接并完成握手
// acceptTimeout为0时一直等待，连接建立后监听socket会被关闭
func (t *SocketTransport) Accept(acceptTimeout, handshakeTimeout time.Duration) error {
	if acceptTimeout < 0 {
		return t.setLastError(e.ErrIllegalArgument, "accept timeout is negative", nil)
	}
	if handshakeTimeout < 0 {
		return t.setLastError(e.ErrIllegalArgument, "handshake timeout is negative", nil)
	}
	t.mu.Lock()
	server, client := t.server, t.client
	t.mu.Unlock()
	if client != nil {
		return t.setLastError(e.ErrIllegalState, "already connected", nil)
	}
	if server == nil {
		return t.setLastError(e.ErrIllegalState, "connection not open", nil)
	}

	var deadline time.Time
	if acceptTimeout > 0 {
		deadline = time.Now().Add(acceptTimeout)
	}
	if err := server.SetDeadline(deadline); err != nil {
		return t.setLastError(e.ErrIOError, "socket error", err)
	}
	var conn *net.TCPConn
	for {
		var err error
		conn, err = server.AcceptTCP()
		if err == nil {
			break
		}
		if isInterrupted(err) {
			continue
		}
		if isTimeout(err) {
			return t.setLastError(e.ErrTimeout, "timeout waiting for connection", nil)
		}
		return t.setLastError(e.ErrIOError, "socket accept failed", err)
	}
	_ = t.StopListening()
	setNoDelay(conn)
	if err := t.setClient(conn); err != nil {
		_ = conn.Close()
		return err
	}
	if err := t.handshake(conn, handshakeTimeout); err != nil {
		logrus.Errorf("[Accept] handshake fail, err = %v", err)
		_ = t.Close()
		return err
	}
	logrus.Infof("[Accept] debugger connected from %s", conn.RemoteAddr())
	return nil
}

// Close 关闭连接，已经关闭时直接返回
func (t *SocketTransport) Close() error {
	t.mu.Lock()
	conn := t.client
	t.client = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return t.setLastError(e.ErrIOError, "close failed", err)
	}
	return nil
}

// ReadPacket 读取一个完整的数据包
// 对端正常关闭连接时返回nil数据包和nil错误
// 没有读到任何数据就超时返回ErrTimeout，读到一部分之后失败返回ErrIOError
func (t *SocketTransport) ReadPacket() (*protocol.Packet, error) {
	conn := t.conn()
	if conn == nil {
		return nil, t.setLastError(e.ErrIllegalState, "connection is closed", nil)
	}
	t.readLock.Lock()
	defer t.readLock.Unlock()

	header := make([]byte, constants.PacketHeaderLength)
	n, err := t.receiveData(conn, header, 0)
	if err != nil {
		if n == 0 {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		return nil, t.incomplete(err)
	}

	length := int(int32(binary.BigEndian.Uint32(header[0:4])))
	if length < constants.PacketHeaderLength {
		return nil, t.setLastError(e.ErrIOError, fmt.Sprintf("invalid length %d", length), nil)
	}
	p := &protocol.Packet{
		ID:    binary.BigEndian.Uint32(header[4:8]),
		Flags: header[8],
	}
	if p.IsReply() {
		p.ErrorCode = constants.ErrorCode(binary.BigEndian.Uint16(header[9:11]))
	} else {
		p.CommandSet = constants.CommandSet(header[9])
		p.Command = constants.Command(header[10])
	}

	if dataLength := length - constants.PacketHeaderLength; dataLength > 0 {
		data := t.alloc(dataLength)
		if data == nil || len(data) < dataLength {
			return nil, t.setLastError(e.ErrOutOfMemory, "allocation failed", nil)
		}
		data = data[:dataLength]
		if _, err = t.receiveData(conn, data, 0); err != nil {
			t.free(data)
			return nil, t.incomplete(err)
		}
		p.Data = data
	}
	metrics.PacketsRead.WithLabelValues(metrics.PacketType(p.IsReply())).Inc()
	logrus.Debugf("[ReadPacket] %s", p)
	return p, nil
}

// incomplete 数据包读到一半失败，数据流已经无法继续解析
func (t *SocketTransport) incomplete(err error) error {
	if errors.Is(err, e.ErrIOError) {
		return err
	}
	if errors.Is(err, io.EOF) {
		return t.setLastError(e.ErrIOError, "premature EOF", nil)
	}
	return t.setLastError(e.ErrIOError, "incomplete packet", err)
}

// ReleasePacket 把数据包的数据区归还给Allocator
func (t *SocketTransport) ReleasePacket(p *protocol.Packet) {
	if p == nil || p.Data == nil {
		return
	}
	t.free(p.Data)
	p.Data = nil
}

// WritePacket 写出一个完整的数据包
func (t *SocketTransport) WritePacket(p *protocol.Packet) error {
	if p == nil {
		return t.setLastError(e.ErrIllegalArgument, "packet is null", nil)
	}
	if len(p.Data) > math.MaxInt32-constants.PacketHeaderLength {
		return t.setLastError(e.ErrIllegalArgument, "packet is too large", nil)
	}
	conn := t.conn()
	if conn == nil {
		return t.setLastError(e.ErrIllegalState, "connection is closed", nil)
	}
	t.sendLock.Lock()
	defer t.sendLock.Unlock()
	if err := t.sendData(conn, protocol.Encode(p), 0); err != nil {
		t.setLastErrorPrefix("send packet: ")
		return err
	}
	metrics.PacketsWritten.WithLabelValues(metrics.PacketType(p.IsReply())).Inc()
	logrus.Debugf("[WritePacket] %s", p)
	return nil
}

// handshake 先发送握手字符串再读取对端的握手字符串，期间读写都被锁住
func (t *SocketTransport) handshake(conn net.Conn, timeout time.Duration) error {
	t.sendLock.Lock()
	defer t.sendLock.Unlock()
	t.readLock.Lock()
	defer t.readLock.Unlock()

	err := t.exchangeHandshake(conn, timeout)
	if err != nil {
		metrics.Handshakes.WithLabelValues("fail").Inc()
		return err
	}
	metrics.Handshakes.WithLabelValues("ok").Inc()
	return nil
}

func (t *SocketTransport) exchangeHandshake(conn net.Conn, timeout time.Duration) error {
	const prefix = "handshake failed - "
	if err := t.sendData(conn, []byte(constants.HandshakeString), timeout); err != nil {
		t.setLastErrorPrefix(prefix)
		return err
	}
	buf := make([]byte, len(constants.HandshakeString))
	if _, err := t.receiveData(conn, buf, timeout); err != nil {
		if errors.Is(err, io.EOF) {
			err = t.setLastError(e.ErrIOError, "premature EOF", nil)
		}
		t.setLastErrorPrefix(prefix)
		return err
	}
	if string(buf) != constants.HandshakeString {
		return t.setLastError(e.ErrIOError,
			fmt.Sprintf("%sreceived >%s< - expected >%s<", prefix, buf, constants.HandshakeString), nil)
	}
	return nil
}

func (t *SocketTransport) checkIdle() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.setLastError(e.ErrIllegalState, "already connected", nil)
	}
	if t.server != nil {
		return t.setLastError(e.ErrIllegalState, "already listening", nil)
	}
	return nil
}

func (t *SocketTransport) setClient(conn net.Conn) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil || t.server != nil {
		return t.setLastError(e.ErrIllegalState, "already connected or listening", nil)
	}
	t.client = conn
	return nil
}

func setNoDelay(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			logrus.Warnf("[setNoDelay] fail, err = %v", err)
		}
	}
}
