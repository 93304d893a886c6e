package proto

// LogLinePayload encodes a MsgLogLine message carrying at most limit bytes in
// total. Longer lines are cut.
//
// Convention: the line is UTF-8 without a trailing newline.
func LogLinePayload(line []byte, limit int) []byte {
	if room := limit - HeaderSize; len(line) > room {
		if room < 0 {
			room = 0
		}
		line = line[:room]
	}
	return Frame(MsgLogLine, line)
}
