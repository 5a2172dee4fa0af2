package sse

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"roofsite-go/pkg/log"
)

// DefaultMaxRequeue bounds how many times the same unparsable line is pushed
// back for another attempt before it is dropped.
const DefaultMaxRequeue = 3

// Decoder incrementally turns raw stream bytes into content deltas.
//
// Chunks may split anywhere: inside a UTF-8 sequence, inside a line, or inside
// a JSON payload. Incomplete trailing bytes and lines are carried over to the
// next Feed. A line that fails to parse is requeued at the front of the buffer
// and retried once more bytes arrive, up to maxRequeue times.
type Decoder struct {
	buf        string
	carry      []byte
	done       bool
	maxRequeue int

	requeued string
	attempts int
}

// NewDecoder returns a Decoder with the default requeue cap.
func NewDecoder() *Decoder {
	return &Decoder{maxRequeue: DefaultMaxRequeue}
}

// Done reports whether the [DONE] event has been seen.
func (d *Decoder) Done() bool { return d.done }

// Feed consumes one network chunk and returns the deltas completed by it.
func (d *Decoder) Feed(chunk []byte) []string {
	if d.done {
		return nil
	}
	d.buf += d.decode(chunk)
	return d.drain(false)
}

// Flush processes whatever is still buffered once the transport has closed.
// Lines that still fail to parse are discarded; there is no later chunk to wait for.
func (d *Decoder) Flush() []string {
	if d.done {
		return nil
	}
	if len(d.carry) > 0 {
		d.buf += strings.ToValidUTF8(string(d.carry), "\uFFFD")
		d.carry = nil
	}
	if d.buf != "" && !strings.HasSuffix(d.buf, "\n") {
		d.buf += "\n"
	}
	return d.drain(true)
}

// decode converts chunk to text, holding back a trailing partial rune.
func (d *Decoder) decode(chunk []byte) string {
	data := append(d.carry, chunk...)
	cut := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if data[i] < utf8.RuneSelf {
			break
		}
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	d.carry = append([]byte(nil), data[cut:]...)
	return strings.ToValidUTF8(string(data[:cut]), "\uFFFD")
}

func (d *Decoder) drain(final bool) []string {
	var out []string
	for !d.done {
		idx := strings.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]
		line = strings.TrimSuffix(line, "\r")

		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == donePayload {
			d.done = true
			break
		}

		content, err := parseDelta(payload)
		if err != nil {
			if final || !d.requeue(line) {
				log.Warnw("丢弃无法解析的流事件", "line", line, "error", err)
				continue
			}
			d.buf = line + "\n" + d.buf
			break
		}
		d.requeued, d.attempts = "", 0
		if content != "" {
			out = append(out, content)
		}
	}
	return out
}

// requeue records another attempt for line and reports whether it may be retried.
func (d *Decoder) requeue(line string) bool {
	if line == d.requeued {
		d.attempts++
	} else {
		d.requeued, d.attempts = line, 1
	}
	if d.attempts > d.maxRequeue {
		d.requeued, d.attempts = "", 0
		return false
	}
	return true
}

func parseDelta(payload string) (string, error) {
	var c Chunk
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return "", err
	}
	if len(c.Choices) == 0 {
		return "", nil
	}
	return c.Choices[0].Delta.Content, nil
}
