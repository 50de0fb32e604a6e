package handbrake

import (
	"bytes"
	"regexp"
	"strconv"
)

// HandBrakeCLI rewrites its progress line in place with carriage returns, so
// segments end on \r rather than \n. Interleaved log lines still end on \n.
var encodeProgressPattern = regexp.MustCompile(`^Encoding: task \d+ of \d+, (\d+)\.\d+ %`)

// Relay adapts the raw output stream of an external process into discrete
// percent-complete events. It buffers partial text until a segment boundary
// arrives, parses the segment, and fires the callback once per segment that
// carries a percentage. Segments without one are discarded. Relay is an
// io.Writer so it can sit directly on a command's combined output.
type Relay struct {
	emit func(percent int)
	buf  bytes.Buffer
}

// NewRelay builds a relay delivering events to emit. A nil emit drops events.
func NewRelay(emit func(percent int)) *Relay {
	return &Relay{emit: emit}
}

// Write consumes a chunk of process output. Never returns an error and never
// blocks beyond scanning the chunk, so it cannot stall the producer.
func (r *Relay) Write(p []byte) (int, error) {
	r.buf.Write(p)
	for {
		data := r.buf.Bytes()
		boundary := bytes.IndexAny(data, "\r\n")
		if boundary < 0 {
			return len(p), nil
		}
		segment := string(data[:boundary])
		r.buf.Next(boundary + 1)
		r.relaySegment(segment)
	}
}

// Flush parses any trailing text that never received a segment boundary.
func (r *Relay) Flush() {
	if r.buf.Len() == 0 {
		return
	}
	segment := r.buf.String()
	r.buf.Reset()
	r.relaySegment(segment)
}

func (r *Relay) relaySegment(segment string) {
	percent, ok := ParseEncodeProgress(segment)
	if !ok || r.emit == nil {
		return
	}
	r.emit(percent)
}

// ParseEncodeProgress extracts the integer percentage from one encode
// progress segment. Returns false for segments that carry none.
func ParseEncodeProgress(segment string) (int, bool) {
	match := encodeProgressPattern.FindStringSubmatch(segment)
	if match == nil {
		return 0, false
	}
	percent, err := strconv.Atoi(match[1])
	if err != nil || percent < 0 || percent > 100 {
		return 0, false
	}
	return percent, true
}
