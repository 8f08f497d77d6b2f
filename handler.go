package main

import (
	"errors"
	"fmt"

	"github.com/fansqz/go-jdwp/agent"
	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
	"github.com/fansqz/go-jdwp/protocol"
	"github.com/sirupsen/logrus"
)

const (
	// initialThread VM_START事件中的线程
	initialThread protocol.ThreadID = 1
	vmName                          = "go-jdwp agent"
)

// CommandHandler 处理调试器发来的命令
type CommandHandler struct {
	manager *agent.RequestManager
	idSize  int
}

func NewCommandHandler(manager *agent.RequestManager, idSize int) *CommandHandler {
	return &CommandHandler{
		manager: manager,
		idSize:  idSize,
	}
}

// handle 处理一个命令包并返回回复包，dispose为true时需要结束会话
func (h *CommandHandler) handle(p *protocol.Packet) (reply *protocol.Packet, dispose bool) {
	r := protocol.NewReader(p.Data, h.idSize)
	w := protocol.NewWriter(h.idSize)
	var err error
	switch p.CommandSet {
	case constants.CommandSetVirtualMachine:
		switch p.Command {
		case constants.CommandVMVersion:
			h.handleVersionRequest(w)
		case constants.CommandVMIDSizes:
			h.handleIDSizesRequest(w)
		case constants.CommandVMDispose:
			logrus.Infof("[handle] debugger disposed the session")
			dispose = true
		default:
			err = notImplemented(p)
		}
	case constants.CommandSetEventRequest:
		switch p.Command {
		case constants.CommandERSet:
			err = h.handleSetRequest(r, w)
		case constants.CommandERClear:
			err = h.handleClearRequest(r)
		case constants.CommandERClearAllBreakpoints:
			err = h.manager.DeleteAllBreakpoints()
		default:
			err = notImplemented(p)
		}
	default:
		err = notImplemented(p)
	}
	if err != nil {
		if !errors.Is(err, e.ErrNotImplemented) {
			logrus.Errorf("[handle] %v fail, err = %v", p, err)
		}
		return protocol.NewReply(p.ID, e.ToJDWPError(err), nil), dispose
	}
	return protocol.NewReply(p.ID, constants.ErrorNone, w.Bytes()), dispose
}

func notImplemented(p *protocol.Packet) error {
	return fmt.Errorf("%w: command %d/%d", e.ErrNotImplemented, p.CommandSet, p.Command)
}

// handleVersionRequest VirtualMachine.Version
func (h *CommandHandler) handleVersionRequest(w *protocol.Writer) {
	w.UTF8(fmt.Sprintf("%s %s", vmName, Version))
	w.Int32(constants.VersionMajor)
	w.Int32(constants.VersionMinor)
	w.UTF8(Version)
	w.UTF8(vmName)
}

// handleIDSizesRequest VirtualMachine.IDSizes，所有ID使用同一个长度
func (h *CommandHandler) handleIDSizesRequest(w *protocol.Writer) {
	for i := 0; i < 5; i++ {
		w.Int32(int32(h.idSize))
	}
}

// handleSetRequest EventRequest.Set
func (h *CommandHandler) handleSetRequest(r *protocol.Reader, w *protocol.Writer) error {
	req, err := agent.DecodeSetRequest(r)
	if err != nil {
		return err
	}
	id, err := h.manager.AddRequest(req)
	if err != nil {
		return err
	}
	logrus.Infof("[handleSetRequest] add %v", req)
	w.Uint32(uint32(id))
	return nil
}

// handleClearRequest EventRequest.Clear
func (h *CommandHandler) handleClearRequest(r *protocol.Reader) error {
	kind, id, err := agent.DecodeClearRequest(r)
	if err != nil {
		return err
	}
	logrus.Infof("[handleClearRequest] clear %v request %d", kind, id)
	return h.manager.DeleteRequest(kind, id)
}
