package main

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/fansqz/go-jdwp/agent"
	"github.com/fansqz/go-jdwp/config"
	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
	"github.com/fansqz/go-jdwp/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTestPacket(t *testing.T, conn net.Conn) *protocol.Packet {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	head := make([]byte, 4)
	_, err := io.ReadFull(conn, head)
	require.NoError(t, err)
	rest := make([]byte, binary.BigEndian.Uint32(head)-4)
	_, err = io.ReadFull(conn, rest)
	require.NoError(t, err)
	p, err := protocol.Decode(append(head, rest...))
	require.NoError(t, err)
	return p
}

func TestServerSession(t *testing.T) {
	cfg := &config.Config{
		Address:          "127.0.0.1:0",
		Server:           true,
		Suspend:          true,
		HandshakeTimeout: 5 * time.Second,
		IDSize:           8,
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	ports := make(chan string, 4)
	s.OnListening = func(port string) { ports <- port }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var port string
	select {
	case port = <-ports:
	case <-time.After(5 * time.Second):
		t.Fatal("server is not listening")
	}

	conn, err := net.Dial("tcp", "127.0.0.1:"+port)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(constants.HandshakeString))
	require.NoError(t, err)
	handshake := make([]byte, len(constants.HandshakeString))
	_, err = io.ReadFull(conn, handshake)
	require.NoError(t, err)
	assert.Equal(t, constants.HandshakeString, string(handshake))

	// VM_START
	p := readTestPacket(t, conn)
	assert.Equal(t, constants.SessionConnected, s.Status())
	assert.Equal(t, constants.CommandSetEvent, p.CommandSet)
	assert.Equal(t, constants.CommandEventComposite, p.Command)
	policy, events, err := protocol.DecodeComposite(protocol.NewReader(p.Data, 8))
	require.NoError(t, err)
	assert.Equal(t, constants.SuspendAll, policy)
	require.Len(t, events, 1)
	assert.Equal(t, constants.EventVMStart, events[0].Kind)

	location := protocol.Location{Type: constants.TypeTagClass, Class: 1, Method: 2, Index: 3}
	_, err = conn.Write(protocol.Encode(setBreakpointCommand(10, location)))
	require.NoError(t, err)
	reply := readTestPacket(t, conn)
	assert.True(t, reply.IsReply())
	assert.Equal(t, uint32(10), reply.ID)
	assert.Equal(t, constants.ErrorNone, reply.ErrorCode)

	// 事件源上报断点事件
	s.Manager().HandleBreakpoint(agent.Site{Thread: 7, Location: location})
	p = readTestPacket(t, conn)
	policy, events, err = protocol.DecodeComposite(protocol.NewReader(p.Data, 8))
	require.NoError(t, err)
	assert.Equal(t, constants.SuspendAll, policy)
	require.Len(t, events, 1)
	assert.Equal(t, constants.EventBreakpoint, events[0].Kind)
	assert.Equal(t, protocol.RequestID(1), events[0].RequestID)
	assert.Equal(t, protocol.ThreadID(7), events[0].Thread)

	_, err = conn.Write(protocol.Encode(protocol.NewCommand(11, constants.CommandSetVirtualMachine, constants.CommandVMDispose, nil)))
	require.NoError(t, err)
	reply = readTestPacket(t, conn)
	assert.Equal(t, uint32(11), reply.ID)

	// 会话结束后请求被清空，代理重新监听同一个端口
	assert.Eventually(t, func() bool {
		return s.Manager().RequestCount(constants.EventBreakpoint) == 0
	}, 5*time.Second, 10*time.Millisecond)
	select {
	case again := <-ports:
		assert.Equal(t, port, again)
		assert.Equal(t, constants.SessionListening, s.Status())
	case <-time.After(5 * time.Second):
		t.Fatal("server is not listening again")
	}

	cancel()
	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerListenFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	s, err := NewServer(&config.Config{
		Address:          occupied.Addr().String(),
		Server:           true,
		HandshakeTimeout: time.Second,
		IDSize:           8,
	})
	require.NoError(t, err)
	listened := false
	s.OnListening = func(string) { listened = true }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	err = s.Run(ctx)
	assert.ErrorIs(t, err, e.ErrIOError)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, listened)
	assert.Equal(t, constants.SessionFinish, s.Status())
}

func TestServerRetriesFailedHandshake(t *testing.T) {
	s, err := NewServer(&config.Config{
		Address:          "127.0.0.1:0",
		Server:           true,
		HandshakeTimeout: 5 * time.Second,
		IDSize:           8,
	})
	require.NoError(t, err)
	ports := make(chan string, 4)
	s.OnListening = func(port string) { ports <- port }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	port := <-ports

	// 握手失败后重新监听同一个端口
	conn, err := net.Dial("tcp", "127.0.0.1:"+port)
	require.NoError(t, err)
	_, err = conn.Write([]byte("JDWP-Handshak!"))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, conn)
	conn.Close()

	select {
	case again := <-ports:
		assert.Equal(t, port, again)
	case <-time.After(5 * time.Second):
		t.Fatal("server is not listening again")
	}
	cancel()
	assert.NoError(t, <-done)
}
