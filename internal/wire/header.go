// Package wire implements the fixed binary header layouts: a 20-byte
// request header and a 23-byte response header, both little-endian,
// both carrying a 4-byte instance prefix that is purely informational.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// RequestHeaderSize is the wire size of RequestHeader: pid_low16(2) +
// rnd(2) + req_id(4) + timestamp(8) = 16 bytes of fields, followed by
// 4 zero bytes of padding = 20 bytes.
const RequestHeaderSize = 20

// ResponseHeaderSize is the wire size of ResponseHeader: the same 16
// bytes of fields, zero padding up to offset 22, then is_error(1) at
// offset 22 = 23 bytes.
const ResponseHeaderSize = 23

// InstancePrefixSize is the size of the informational (pid_low16, rnd)
// prefix attached to every frame for observability only.
const InstancePrefixSize = 4

// InstancePrefix is a 4-byte (pid_low16, rnd) pair. It never affects
// response matching (RequestHeader.ReqID alone is the correctness key)
// and may be replaced by any 4-byte instance identifier.
type InstancePrefix [InstancePrefixSize]byte

// NewInstancePrefix packs (pidLow16, rnd) the way ClientInstancePrefix /
// ServerInstancePrefix are constructed once per protocol instance.
func NewInstancePrefix(pidLow16, rnd uint16) InstancePrefix {
	var p InstancePrefix
	binary.LittleEndian.PutUint16(p[0:2], pidLow16)
	binary.LittleEndian.PutUint16(p[2:4], rnd)
	return p
}

// RequestHeader is frame 1 of a request.
type RequestHeader struct {
	Prefix    InstancePrefix
	ReqID     uint32
	Timestamp float64
}

// Encode packs the header into exactly RequestHeaderSize bytes.
func (h RequestHeader) Encode() []byte {
	buf := make([]byte, 0, RequestHeaderSize)
	w := bytes.NewBuffer(buf)
	w.Write(h.Prefix[:])
	binary.Write(w, binary.LittleEndian, h.ReqID)
	binary.Write(w, binary.LittleEndian, h.Timestamp)
	w.Write(make([]byte, RequestHeaderSize-w.Len()))
	return w.Bytes()
}

// DecodeRequestHeader unpacks a RequestHeader from exactly
// RequestHeaderSize bytes.
func DecodeRequestHeader(b []byte) (RequestHeader, error) {
	var h RequestHeader
	if len(b) != RequestHeaderSize {
		return h, fmt.Errorf("wire: request header must be %d bytes, got %d", RequestHeaderSize, len(b))
	}
	copy(h.Prefix[:], b[0:4])
	r := bytes.NewReader(b[4:])
	if err := binary.Read(r, binary.LittleEndian, &h.ReqID); err != nil {
		return h, fmt.Errorf("wire: decode req_id: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Timestamp); err != nil {
		return h, fmt.Errorf("wire: decode timestamp: %w", err)
	}
	return h, nil
}

// ResponseHeader is frame 1 of a response.
type ResponseHeader struct {
	Prefix    InstancePrefix
	ReqID     uint32
	Timestamp float64
	IsError   bool
}

// Encode packs the header into exactly ResponseHeaderSize bytes.
func (h ResponseHeader) Encode() []byte {
	buf := make([]byte, 0, ResponseHeaderSize)
	w := bytes.NewBuffer(buf)
	w.Write(h.Prefix[:])
	binary.Write(w, binary.LittleEndian, h.ReqID)
	binary.Write(w, binary.LittleEndian, h.Timestamp)
	var isErr uint8
	if h.IsError {
		isErr = 1
	}
	w.Write(make([]byte, ResponseHeaderSize-1-w.Len()))
	w.WriteByte(isErr)
	return w.Bytes()
}

// DecodeResponseHeader unpacks a ResponseHeader from exactly
// ResponseHeaderSize bytes.
func DecodeResponseHeader(b []byte) (ResponseHeader, error) {
	var h ResponseHeader
	if len(b) != ResponseHeaderSize {
		return h, fmt.Errorf("wire: response header must be %d bytes, got %d", ResponseHeaderSize, len(b))
	}
	copy(h.Prefix[:], b[0:4])
	r := bytes.NewReader(b[4:20])
	if err := binary.Read(r, binary.LittleEndian, &h.ReqID); err != nil {
		return h, fmt.Errorf("wire: decode req_id: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Timestamp); err != nil {
		return h, fmt.Errorf("wire: decode timestamp: %w", err)
	}
	h.IsError = b[22] != 0
	return h, nil
}
