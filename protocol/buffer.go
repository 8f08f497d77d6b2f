package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fansqz/go-jdwp/constants"
	e "github.com/fansqz/go-jdwp/error"
)

// Writer 按照大端序写入数据包的数据部分
type Writer struct {
	buf    bytes.Buffer
	idSize int
}

func NewWriter(idSize int) *Writer {
	if idSize <= 0 {
		idSize = constants.DefaultIDSize
	}
	return &Writer{idSize: idSize}
}

func (w *Writer) Uint8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v))
}

func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// ID 写入一个idSize字节长度的ID
func (w *Writer) ID(v uint64) {
	w.sized(v, w.idSize)
}

func (w *Writer) sized(v uint64, size int) {
	for i := size - 1; i >= 0; i-- {
		w.buf.WriteByte(byte(v >> (8 * uint(i))))
	}
}

// UTF8 写入长度前缀的UTF-8字符串
func (w *Writer) UTF8(s string) {
	w.Uint32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *Writer) Location(l Location) {
	w.Uint8(uint8(l.Type))
	w.ID(uint64(l.Class))
	w.ID(uint64(l.Method))
	w.Uint64(l.Index)
}

func (w *Writer) TaggedObject(o TaggedObjectID) {
	w.Uint8(uint8(o.Tag))
	w.ID(uint64(o.Object))
}

func (w *Writer) Value(v Value) {
	w.Uint8(uint8(v.Tag))
	if v.Tag.IsObject() {
		w.ID(v.Bits)
		return
	}
	w.sized(v.Bits, v.Tag.Size(w.idSize))
}

func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Reader 按照大端序读取数据包的数据部分
// 读取过程中出现的第一个错误会被记录下来，之后的读取都返回零值
type Reader struct {
	data   []byte
	off    int
	idSize int
	err    error
}

func NewReader(data []byte, idSize int) *Reader {
	if idSize <= 0 {
		idSize = constants.DefaultIDSize
	}
	return &Reader{data: data, idSize: idSize}
}

func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", e.ErrIllegalArgument, n, r.off, len(r.data))
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Uint8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool {
	return r.Uint8() != 0
}

func (r *Reader) Uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *Reader) Uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *Reader) Int32() int32 {
	return int32(r.Uint32())
}

func (r *Reader) Uint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *Reader) ID() uint64 {
	return r.sized(r.idSize)
}

func (r *Reader) sized(size int) uint64 {
	b := r.next(size)
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func (r *Reader) UTF8() string {
	n := r.Uint32()
	if r.err != nil {
		return ""
	}
	return string(r.next(int(n)))
}

func (r *Reader) Location() Location {
	return Location{
		Type:   constants.TypeTag(r.Uint8()),
		Class:  ReferenceTypeID(r.ID()),
		Method: MethodID(r.ID()),
		Index:  r.Uint64(),
	}
}

func (r *Reader) Value() Value {
	tag := constants.Tag(r.Uint8())
	if tag.IsObject() {
		return Value{Tag: tag, Bits: r.ID()}
	}
	return Value{Tag: tag, Bits: r.sized(tag.Size(r.idSize))}
}

// Remaining 返回还未读取的字节数
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) Err() error {
	return r.err
}
