package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
)

// Packet JDWP数据包，命令包和回复包共用同一个结构，通过Flags区分
// 数据包长度由Data长度推导，不单独保存
type Packet struct {
	ID    uint32
	Flags uint8
	// 命令包使用
	CommandSet constants.CommandSet
	Command    constants.Command
	// 回复包使用
	ErrorCode constants.ErrorCode
	Data      []byte
}

// NewCommand 创建命令包
func NewCommand(id uint32, set constants.CommandSet, cmd constants.Command, data []byte) *Packet {
	return &Packet{ID: id, CommandSet: set, Command: cmd, Data: data}
}

// NewReply 创建回复包
func NewReply(id uint32, code constants.ErrorCode, data []byte) *Packet {
	return &Packet{ID: id, Flags: constants.FlagReply, ErrorCode: code, Data: data}
}

// IsReply 是否为回复包
func (p *Packet) IsReply() bool {
	return p.Flags&constants.FlagReply != 0
}

// Length 数据包总长度，包含头部
// 对端正常关闭连接时读到的是nil数据包，长度为0
func (p *Packet) Length() int {
	if p == nil {
		return 0
	}
	return constants.PacketHeaderLength + len(p.Data)
}

func (p *Packet) String() string {
	if p == nil {
		return "Packet<closed>"
	}
	if p.IsReply() {
		return fmt.Sprintf("Reply{id=%d, error=%d, len=%d}", p.ID, p.ErrorCode, p.Length())
	}
	return fmt.Sprintf("Command{id=%d, %d/%d, len=%d}", p.ID, p.CommandSet, p.Command, p.Length())
}

// Header 返回数据包的11字节头部
func (p *Packet) Header() []byte {
	h := make([]byte, constants.PacketHeaderLength)
	binary.BigEndian.PutUint32(h[0:4], uint32(p.Length()))
	binary.BigEndian.PutUint32(h[4:8], p.ID)
	h[8] = p.Flags
	if p.IsReply() {
		binary.BigEndian.PutUint16(h[9:11], uint16(p.ErrorCode))
	} else {
		h[9] = uint8(p.CommandSet)
		h[10] = uint8(p.Command)
	}
	return h
}

// Encode 将数据包编码为字节序列
func Encode(p *Packet) []byte {
	b := make([]byte, 0, p.Length())
	b = append(b, p.Header()...)
	return append(b, p.Data...)
}

// Decode 从字节序列中解码一个完整的数据包
func Decode(b []byte) (*Packet, error) {
	if len(b) < constants.PacketHeaderLength {
		return nil, fmt.Errorf("%w: packet too short (%d bytes)", e.ErrIOError, len(b))
	}
	length := int(int32(binary.BigEndian.Uint32(b[0:4])))
	if length < constants.PacketHeaderLength {
		return nil, fmt.Errorf("%w: invalid packet length %d", e.ErrIOError, length)
	}
	if length > len(b) {
		return nil, fmt.Errorf("%w: packet length %d exceeds %d available bytes", e.ErrIOError, length, len(b))
	}
	p := &Packet{
		ID:    binary.BigEndian.Uint32(b[4:8]),
		Flags: b[8],
	}
	if p.IsReply() {
		p.ErrorCode = constants.ErrorCode(binary.BigEndian.Uint16(b[9:11]))
	} else {
		p.CommandSet = constants.CommandSet(b[9])
		p.Command = constants.Command(b[10])
	}
	if dataLength := length - constants.PacketHeaderLength; dataLength > 0 {
		p.Data = make([]byte, dataLength)
		copy(p.Data, b[constants.PacketHeaderLength:length])
	}
	return p, nil
}
