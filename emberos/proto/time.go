package proto

import "encoding/binary"

// SleepPayload encodes a MsgSleep request.
//
// Layout (little-endian):
//   - u32: pid to wake
//   - i64: wake time in microseconds
func SleepPayload(pid uint32, wakeAt int64) []byte {
	body := make([]byte, 12)
	binary.LittleEndian.PutUint32(body[0:4], pid)
	binary.LittleEndian.PutUint64(body[4:12], uint64(wakeAt))
	return Frame(MsgSleep, body)
}

// DecodeSleepPayload decodes the body of a MsgSleep request.
func DecodeSleepPayload(body []byte) (pid uint32, wakeAt int64, ok bool) {
	if len(body) < 12 {
		return 0, 0, false
	}
	pid = binary.LittleEndian.Uint32(body[0:4])
	wakeAt = int64(binary.LittleEndian.Uint64(body[4:12]))
	return pid, wakeAt, true
}
