package protocol

import (
	"bytes"
	"log/slog"
)

// FrameMarker is the literal prefix that identifies an event-bearing line.
// Lines without it (comments, keep-alives, blank lines) are discarded.
const FrameMarker = "data: "

// Decoder turns an incrementally-arriving byte stream into discrete events.
// It buffers a single partial line across chunk boundaries, so chunks may be
// split anywhere, including mid-line. Bytes are never dropped or reordered.
//
// A malformed payload is logged and skipped; a single bad line never aborts
// the decode.
type Decoder struct {
	buf []byte
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns all events completed by it, in arrival
// order. Any trailing partial line stays buffered for the next chunk.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]

		if ev := d.decodeLine(line); ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

// Close drains the buffer, treating any remaining bytes as a final line.
// Call it once the underlying source has signalled completion.
func (d *Decoder) Close() []Event {
	if len(d.buf) == 0 {
		return nil
	}
	line := d.buf
	d.buf = nil

	if ev := d.decodeLine(line); ev != nil {
		return []Event{ev}
	}
	return nil
}

// Buffered reports how many bytes of a partial line are pending.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) decodeLine(line []byte) Event {
	line = bytes.TrimRight(line, "\r")
	if !bytes.HasPrefix(line, []byte(FrameMarker)) {
		return nil
	}
	payload := line[len(FrameMarker):]

	ev, err := ParseEvent(payload)
	if err != nil {
		slog.Warn("skipping malformed agent event line", "error", err, "line", string(line))
		return nil
	}
	return ev
}
