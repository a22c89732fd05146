package framing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMessageWireFormat(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}
	buf := CreateMessage(7, 0xDEADBEEFCAFEBABE, 0x0102030405060708, payload)

	expected := []byte{
		0x07, 0x00, 0x00, 0x00,
		0xBE, 0xBA, 0xFE, 0xCA, 0xEF, 0xBE, 0xAD, 0xDE,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0x03, 0x00, 0x00, 0x00,
		0xAA, 0xBB, 0xCC,
	}
	require.Len(t, buf, 27)
	assert.Equal(t, expected, buf)
}

func TestRoundTripFraming(t *testing.T) {
	cases := []struct {
		msgType uint32
		connID  uint64
		ts      uint64
		payload []byte
	}{
		{1, 42, 1000, []byte("hi")},
		{0, 0, 0, nil},
		{0xFFFFFFFF, ^uint64(0), ^uint64(0), []byte{0x00}},
	}
	for _, c := range cases {
		buf := CreateMessage(c.msgType, c.connID, c.ts, c.payload)
		msg, consumed, err := ParseMessage(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), consumed)
		assert.Equal(t, c.msgType, msg.Type)
		assert.Equal(t, c.connID, msg.ConnectionID)
		assert.Equal(t, c.ts, msg.TimestampMs)
		assert.Equal(t, c.payload, msg.Payload)
	}
}

func TestParseMessageRejectsShortBuffer(t *testing.T) {
	_, _, err := ParseMessage(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrShortBuffer)

	full := CreateMessage(1, 1, 1, []byte("hello"))
	_, _, err = ParseMessage(full[:HeaderSize+2])
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestParseMessagesMultipleBackToBack(t *testing.T) {
	a := CreateMessage(1, 1, 100, []byte("a"))
	b := CreateMessage(2, 2, 200, []byte("bb"))
	buf := append(append([]byte{}, a...), b...)

	msgs := ParseMessages(buf)
	require.Len(t, msgs, 2)
	assert.Equal(t, uint32(1), msgs[0].Type)
	assert.Equal(t, uint32(2), msgs[1].Type)
}

func TestEchoOneMessage(t *testing.T) {
	d := NewDispatcher()
	var got Message
	called := 0
	d.RegisterHandler(1, func(msg Message) {
		got = msg
		called++
	})

	buf := CreateMessage(1, 42, 1000, []byte("hi"))
	require.Len(t, buf, 26)

	delivered := d.Process(42, buf)
	assert.True(t, delivered)
	assert.Equal(t, 1, called)
	assert.Equal(t, uint64(42), got.ConnectionID)
	assert.Equal(t, []byte("hi"), got.Payload)
}

func TestUnregisterHandler(t *testing.T) {
	d := NewDispatcher()
	called := false
	d.RegisterHandler(5, func(Message) { called = true })
	d.UnregisterHandler(5)

	buf := CreateMessage(5, 1, 1, nil)
	delivered := d.Process(1, buf)
	assert.False(t, delivered)
	assert.False(t, called)
}
