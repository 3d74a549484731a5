package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithSessionAddsField(t *testing.T) {
	capture := &logCapture{}
	log := WithSession(newCaptureLogger(capture), "sample-3")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["session"] != "sample-3" {
		t.Fatalf("expected session field, got %+v", entry)
	}
}

func TestWithSessionSkipsEmpty(t *testing.T) {
	capture := &logCapture{}
	log := WithSession(newCaptureLogger(capture), "")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["session"]; ok {
		t.Fatalf("did not expect session field for empty id")
	}
}

func TestWithPlaygroundAddsField(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	log := WithPlayground(ctx, "pg1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["playground"] != "pg1" {
		t.Fatalf("expected playground field, got %+v", entry)
	}
}

func TestWithPlaygroundDeduplicates(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture).With("playground", "pg1")
	ctx := ContextWithPlaygroundLogger(context.Background(), logger, "pg1")
	WithPlayground(ctx, "pg1").Info("hello")

	line := bytes.TrimSpace(capture.buf.Bytes())
	if count := bytes.Count(line, []byte(`"playground"`)); count != 1 {
		t.Fatalf("expected single playground field, got %d in %s", count, line)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
