package main

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fansqz/go-jdwp/agent"
	"github.com/fansqz/go-jdwp/config"
	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
	"github.com/fansqz/go-jdwp/protocol"
	"github.com/fansqz/go-jdwp/transport"
	"github.com/fansqz/go-jdwp/utils"
	"github.com/fansqz/go-jdwp/utils/gosync"
	"github.com/sirupsen/logrus"
)

const (
	minRetryInterval = 100 * time.Millisecond
	maxRetryInterval = 5 * time.Second
)

// Server 调试代理，同一时刻只服务一个调试器
type Server struct {
	cfg       *config.Config
	transport *transport.SocketTransport
	manager   *agent.RequestManager
	handler   *CommandHandler
	status    *utils.StatusManager
	packetID  uint32
	address   string

	// OnListening 开始监听之后回调实际监听的端口
	OnListening func(port string)
}

func NewServer(cfg *config.Config) (*Server, error) {
	tr, err := transport.Load(constants.TransportVersion10, nil, nil)
	if err != nil {
		return nil, err
	}
	policy := constants.SuspendNone
	if cfg.Suspend {
		policy = constants.SuspendAll
	}
	s := &Server{
		cfg:       cfg,
		transport: tr,
		status:    utils.NewStatusManager(),
		address:   cfg.Address,
	}
	s.manager = agent.NewRequestManager(agent.Options{
		StartPolicy: policy,
		MaxRequests: cfg.MaxRequests,
		Dispatcher:  agent.DispatcherFunc(s.sendComposite),
	})
	s.handler = NewCommandHandler(s.manager, cfg.IDSize)
	return s, nil
}

// Run 依次服务每个调试会话，直到ctx结束
// 主动连接模式下只服务一个会话，监听失败时直接返回错误
func (s *Server) Run(ctx context.Context) error {
	gosync.Go(ctx, "transport-unload", func(ctx context.Context) {
		<-ctx.Done()
		s.transport.Unload()
	})
	defer s.transport.Unload()
	backoff := minRetryInterval
	for ctx.Err() == nil {
		if err := s.listen(); err != nil {
			logrus.Errorf("[Run] listen fail, err = %v", err)
			s.status.Set(constants.SessionFinish)
			return err
		}
		// ctx在监听之前结束时，监听socket由defer关闭
		if ctx.Err() != nil {
			return nil
		}
		if err := s.connect(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, e.ErrTimeout) {
				logrus.Warnf("[Run] connect fail, err = %v", err)
				continue
			}
			if s.cfg.Server && errors.Is(err, e.ErrIOError) {
				logrus.Warnf("[Run] connect fail, retry after %v, err = %v", backoff, err)
				if !wait(ctx, backoff) {
					return nil
				}
				backoff = min(2*backoff, maxRetryInterval)
				continue
			}
			s.status.Set(constants.SessionFinish)
			return err
		}
		backoff = minRetryInterval
		s.serve(ctx)
		if !s.cfg.Server {
			return nil
		}
	}
	return nil
}

// wait 等待一段时间，ctx结束时返回false
func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// listen 监听模式下开始监听，已经在监听时直接返回
func (s *Server) listen() error {
	if !s.cfg.Server || s.transport.IsListening() {
		return nil
	}
	port, err := s.transport.StartListening(s.address)
	if err != nil {
		return err
	}
	s.status.Transition(constants.SessionListening, constants.SessionInit, constants.SessionFinish)
	// 之后重新监听时使用同一个端口
	if i := strings.LastIndex(s.address, ":"); i >= 0 {
		s.address = s.address[:i+1] + port
	} else {
		s.address = port
	}
	if s.OnListening != nil {
		s.OnListening(port)
	}
	return nil
}

// connect 等待调试器连接或主动连接调试器，并完成握手
func (s *Server) connect() error {
	if !s.cfg.Server {
		return s.transport.Attach(s.address, s.cfg.AttachTimeout, s.cfg.HandshakeTimeout)
	}
	return s.transport.Accept(s.cfg.AcceptTimeout, s.cfg.HandshakeTimeout)
}

// serve 处理一个调试会话，会话结束时清空所有事件请求
func (s *Server) serve(ctx context.Context) {
	log := logrus.WithFields(logrus.Fields{"session": utils.GetUUID()})
	s.status.Set(constants.SessionConnected)
	log.Infof("[serve] session start")

	var idle *utils.TimeoutManager
	if s.cfg.IdleTimeout > 0 {
		idle = utils.NewTimeoutManager()
		idle.Start(ctx, s.cfg.IdleTimeout, func() {
			log.Warnf("[serve] no packet for %v, close connection", s.cfg.IdleTimeout)
			_ = s.transport.Close()
		})
		defer idle.Cancel()
	}

	s.manager.HandleVMInit(initialThread)
	for {
		p, err := s.transport.ReadPacket()
		if err != nil {
			if errors.Is(err, e.ErrTimeout) && ctx.Err() == nil {
				continue
			}
			log.Errorf("[serve] read packet fail, err = %v", err)
			break
		}
		if p == nil {
			log.Infof("[serve] debugger closed the connection")
			break
		}
		if idle != nil {
			idle.Reset()
		}
		if p.IsReply() {
			s.transport.ReleasePacket(p)
			continue
		}
		reply, dispose := s.handler.handle(p)
		s.transport.ReleasePacket(p)
		if err = s.transport.WritePacket(reply); err != nil {
			log.Errorf("[serve] write reply fail, err = %v", err)
			break
		}
		if dispose {
			break
		}
	}

	_ = s.transport.Close()
	s.manager.Reset()
	s.status.Set(constants.SessionFinish)
	log.Infof("[serve] session finish")
}

// sendComposite 把组合事件编码为 Event.Composite 命令发给调试器
func (s *Server) sendComposite(event *agent.CompositeEvent) error {
	if !s.status.Is(constants.SessionConnected) || !s.transport.IsOpen() {
		return nil
	}
	id := atomic.AddUint32(&s.packetID, 1)
	return s.transport.WritePacket(protocol.NewCompositePacket(id, s.cfg.IDSize, event.SuspendPolicy, event.Events))
}

// Status 获取当前会话状态
func (s *Server) Status() constants.SessionStatus {
	return s.status.Get()
}

// Manager 获取事件请求管理器，事件源通过它上报虚拟机事件
func (s *Server) Manager() *agent.RequestManager {
	return s.manager
}
