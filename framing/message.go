// Package framing implements the Message Framer & Dispatcher (C5): a
// fixed 24-byte header codec plus a type-keyed handler dispatch table.
//
// There is no length-prefixed streaming framer here by design — a
// transport-level segmentation layer is out of scope (spec §4.5). Each
// recv completion is assumed to carry one or more complete,
// back-to-back header-framed messages; any trailing partial message in
// a buffer is rejected rather than buffered for reassembly.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package framing

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed on-wire header length in bytes:
// u32 type | u64 connection_id | u64 timestamp_ms | u32 payload_size.
const HeaderSize = 24

// ErrShortBuffer is returned when a buffer is too small to contain a
// full header, or the header's declared payload_size overruns the
// buffer.
var ErrShortBuffer = errors.New("framing: buffer shorter than header + payload")

// Message is a decoded wire record. Payload is an owned copy.
type Message struct {
	Type         uint32
	ConnectionID uint64
	TimestampMs  uint64
	Payload      []byte
}

// CreateMessage emits the canonical wire form: the 24-byte
// little-endian header followed by payload.
func CreateMessage(msgType uint32, connectionID, timestampMs uint64, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], msgType)
	binary.LittleEndian.PutUint64(buf[4:12], connectionID)
	binary.LittleEndian.PutUint64(buf[12:20], timestampMs)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// ParseMessage decodes a single message from the front of raw. It
// requires len(raw) >= HeaderSize and len(raw) >= HeaderSize +
// payload_size, returning ErrShortBuffer otherwise. The returned
// Message.Payload is a fresh copy; consumed reports how many bytes of
// raw the message occupied.
func ParseMessage(raw []byte) (msg Message, consumed int, err error) {
	if len(raw) < HeaderSize {
		return Message{}, 0, ErrShortBuffer
	}
	payloadSize := binary.LittleEndian.Uint32(raw[20:24])
	total := HeaderSize + int(payloadSize)
	if len(raw) < total {
		return Message{}, 0, ErrShortBuffer
	}
	msg = Message{
		Type:         binary.LittleEndian.Uint32(raw[0:4]),
		ConnectionID: binary.LittleEndian.Uint64(raw[4:12]),
		TimestampMs:  binary.LittleEndian.Uint64(raw[12:20]),
	}
	if payloadSize > 0 {
		msg.Payload = append([]byte(nil), raw[HeaderSize:total]...)
	}
	return msg, total, nil
}

// ParseMessages decodes every complete, back-to-back message at the
// front of raw, stopping at the first short/partial remainder (which is
// dropped, per the no-streaming-framer design). It never returns a
// partial Message.
func ParseMessages(raw []byte) []Message {
	var out []Message
	for len(raw) >= HeaderSize {
		msg, consumed, err := ParseMessage(raw)
		if err != nil {
			break
		}
		out = append(out, msg)
		raw = raw[consumed:]
	}
	return out
}
