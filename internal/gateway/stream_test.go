package gateway

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

// chunkedReader yields the underlying data in fixed-size reads to exercise
// arbitrary byte-boundary reassembly.
type chunkedReader struct {
	data []byte
	size int
	pos  int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.size
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func providerBody(deltas ...string) string {
	var b strings.Builder
	for _, d := range deltas {
		fmt.Fprintf(&b, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":%q}]}}]}\n\n", d)
	}
	return b.String()
}

func collectFrames(t *testing.T, out string) []string {
	t.Helper()
	var frames []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	return frames
}

func runTransform(t *testing.T, src io.Reader) (string, error) {
	t.Helper()
	var out strings.Builder
	tr := newStreamTransformer(&out, nil)
	err := tr.run(src)
	tr.finish(err)
	return out.String(), err
}

func TestStream_ReassemblyIndependentOfReadBoundaries(t *testing.T) {
	body := providerBody("Hal", "lo", ", hoe", " gaat het?")

	var reference []string
	for _, size := range []int{len(body) / 2, 1, 7, 64, len(body)} {
		out, err := runTransform(t, &chunkedReader{data: []byte(body), size: size})
		if err != nil {
			t.Fatalf("size %d: run: %v", size, err)
		}
		frames := collectFrames(t, out)
		if reference == nil {
			reference = frames
			continue
		}
		if len(frames) != len(reference) {
			t.Fatalf("size %d: %d frames, want %d", size, len(frames), len(reference))
		}
		for i := range frames {
			if frames[i] != reference[i] {
				t.Errorf("size %d: frame[%d] = %q, want %q", size, i, frames[i], reference[i])
			}
		}
	}

	want := []string{
		`{"text":"Hal"}`,
		`{"text":"lo"}`,
		`{"text":", hoe"}`,
		`{"text":" gaat het?"}`,
		`[DONE]`,
	}
	if len(reference) != len(want) {
		t.Fatalf("frames = %v, want %v", reference, want)
	}
	for i := range want {
		if reference[i] != want[i] {
			t.Errorf("frame[%d] = %q, want %q", i, reference[i], want[i])
		}
	}
}

func TestStream_ExactlyOneSentinel(t *testing.T) {
	body := providerBody("a", "b")
	out, err := runTransform(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.Count(out, "data: [DONE]"); got != 1 {
		t.Errorf("sentinel count = %d, want exactly 1", got)
	}
	if !strings.HasSuffix(out, "data: [DONE]\n\n") {
		t.Error("stream must end with the sentinel")
	}
}

func TestStream_ResidualFragmentWithoutTrailingNewline(t *testing.T) {
	body := strings.TrimSuffix(providerBody("laatste"), "\n\n")
	out, err := runTransform(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, `{"text":"laatste"}`) {
		t.Errorf("residual line was dropped: %q", out)
	}
}

func TestStream_SkipsNonDeltaFrames(t *testing.T) {
	body := "event: ping\n\n" +
		"data: {\"candidates\":[{\"content\":{\"parts\":[]}}]}\n\n" +
		"data: not-json\n\n" +
		providerBody("echt") +
		"data: [DONE]\n\n"

	out, err := runTransform(t, strings.NewReader(body))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	frames := collectFrames(t, out)
	if len(frames) != 2 || frames[0] != `{"text":"echt"}` || frames[1] != "[DONE]" {
		t.Errorf("frames = %v", frames)
	}
}

// failingReader delivers some data and then a non-EOF error.
type failingReader struct {
	data []byte
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("connection reset")
}

func TestStream_UpstreamErrorEmitsErrorFrameThenSentinel(t *testing.T) {
	src := &failingReader{data: []byte(providerBody("deel"))}
	out, err := runTransform(t, src)
	if err == nil {
		t.Fatal("expected run error")
	}

	frames := collectFrames(t, out)
	want := []string{`{"text":"deel"}`, `{"error":"stream interrupted"}`, `[DONE]`}
	if len(frames) != len(want) {
		t.Fatalf("frames = %v, want %v", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame[%d] = %q, want %q", i, frames[i], want[i])
		}
	}
}

// brokenWriter fails every write, as a disconnected client does.
type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestStream_ClientDisconnectAborts(t *testing.T) {
	tr := newStreamTransformer(brokenWriter{}, nil)
	err := tr.run(strings.NewReader(providerBody("x", "y")))

	var gone clientGone
	if !errors.As(err, &gone) {
		t.Fatalf("err = %v, want clientGone", err)
	}
	// finish must not panic or write anything further for a gone client.
	tr.finish(err)
}
