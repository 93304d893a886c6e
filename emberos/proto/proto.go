package proto

import "encoding/binary"

// Kind identifies a service request. It is carried in the first two bytes of
// every service message.
type Kind uint16

const (
	MsgLogLine Kind = iota + 1
	MsgSleep
)

func (k Kind) String() string {
	switch k {
	case MsgLogLine:
		return "log_line"
	case MsgSleep:
		return "sleep"
	default:
		return "unknown"
	}
}

// HeaderSize is the framing overhead of a service message.
const HeaderSize = 2

// Frame prefixes body with its kind.
//
// Layout (little-endian):
//   - u16: kind
//   - bytes: body
func Frame(kind Kind, body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(kind))
	copy(buf[HeaderSize:], body)
	return buf
}

// Decode splits a framed message.
func Decode(msg []byte) (kind Kind, body []byte, ok bool) {
	if len(msg) < HeaderSize {
		return 0, nil, false
	}
	return Kind(binary.LittleEndian.Uint16(msg[0:2])), msg[HeaderSize:], true
}
