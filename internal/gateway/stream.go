package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	ssePrefix   = "data: "
	doneFrame   = "data: [DONE]\n\n"
	readBufSize = 4096
)

// clientGone wraps a write error toward the client so the caller can tell a
// broken client connection apart from an upstream failure.
type clientGone struct{ err error }

func (c clientGone) Error() string { return "client write: " + c.err.Error() }
func (c clientGone) Unwrap() error { return c.err }

// streamTransformer re-multiplexes the provider's SSE body into the minimal
// client event format. One instance serves exactly one in-flight request; the
// carry buffer holds the trailing partial line between network reads.
type streamTransformer struct {
	dst    io.Writer
	flush  func()
	carry  []byte
	frames int
}

func newStreamTransformer(dst io.Writer, flush func()) *streamTransformer {
	if flush == nil {
		flush = func() {}
	}
	return &streamTransformer{dst: dst, flush: flush}
}

// run consumes src until EOF, emitting one normalized frame per provider text
// delta as soon as it is complete. The terminal sentinel is NOT written here:
// the caller owns it so it can precede it with an error event when run fails.
func (t *streamTransformer) run(src io.Reader) error {
	chunk := make([]byte, readBufSize)
	for {
		n, err := src.Read(chunk)
		if n > 0 {
			t.carry = append(t.carry, chunk[:n]...)
			for {
				idx := bytes.IndexByte(t.carry, '\n')
				if idx < 0 {
					break
				}
				line := t.carry[:idx]
				t.carry = t.carry[idx+1:]
				if werr := t.emitLine(line); werr != nil {
					return werr
				}
			}
		}
		if err == io.EOF {
			// The body may end without a final newline; the residual
			// fragment goes through the same path.
			if len(t.carry) > 0 {
				line := t.carry
				t.carry = nil
				if werr := t.emitLine(line); werr != nil {
					return werr
				}
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("upstream read: %w", err)
		}
	}
}

// emitLine handles one complete SSE line. Lines without the data prefix
// (event names, comments, keep-alive blanks) are dropped; frames without a
// text delta (safety metadata, usage) are skipped silently.
func (t *streamTransformer) emitLine(line []byte) error {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte(ssePrefix)) {
		return nil
	}
	payload := bytes.TrimPrefix(line, []byte(ssePrefix))
	if len(payload) == 0 || bytes.Equal(payload, []byte("[DONE]")) {
		return nil
	}

	var chunk providerChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		// Malformed provider frame: skip rather than kill the stream.
		return nil
	}

	text := extractDelta(chunk)
	if text == "" {
		return nil
	}

	return t.writeEvent(streamEvent{Text: text})
}

func (t *streamTransformer) writeEvent(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(t.dst, "%s%s\n\n", ssePrefix, data); err != nil {
		return clientGone{err}
	}
	t.frames++
	t.flush()
	return nil
}

// finish terminates the client stream. Every path ends in the sentinel so
// stream readers always observe completion instead of hanging; an upstream
// failure is surfaced as one error event first. A gone client gets nothing.
func (t *streamTransformer) finish(runErr error) {
	if runErr != nil {
		var gone clientGone
		if errors.As(runErr, &gone) {
			return
		}
		// Best effort: the error event is advisory, the sentinel must
		// still follow.
		t.writeEvent(streamErrorEvent{Error: "stream interrupted"})
	}
	io.WriteString(t.dst, doneFrame)
	t.flush()
}

func extractDelta(chunk providerChunk) string {
	if len(chunk.Candidates) == 0 {
		return ""
	}
	parts := chunk.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}
