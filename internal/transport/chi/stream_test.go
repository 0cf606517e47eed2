package chi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/taskpilot/internal/delivery"
)

func startStreamServer(t *testing.T, reg *delivery.Registry, heartbeat time.Duration) *httptest.Server {
	t.Helper()
	s := NewServer(&mockChat{}, reg, &mockHealth{}, Options{Heartbeat: heartbeat}, nil)
	r := chi.NewRouter()
	s.Register(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func openStream(ctx context.Context, t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// nextData returns the payload of the next "data:" line.
func nextData(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			return strings.TrimSpace(data)
		}
	}
}

func TestStream_ReplaysQueuedMessages(t *testing.T) {
	reg := delivery.NewRegistry(delivery.Options{}, nil)
	reg.Publish("c1", delivery.AssistantMessage("queued answer", "FIND_TASK"))
	ts := startStreamServer(t, reg, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp := openStream(ctx, t, ts.URL+"/ui/chat/stream/c1")

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: got %q", ct)
	}

	var msg delivery.Message
	if err := json.Unmarshal([]byte(nextData(t, bufio.NewReader(resp.Body))), &msg); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if msg.Content != "queued answer" || msg.Author != delivery.AuthorAssistant {
		t.Errorf("event: got %+v", msg)
	}
}

func TestStream_Heartbeat(t *testing.T) {
	reg := delivery.NewRegistry(delivery.Options{}, nil)
	ts := startStreamServer(t, reg, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp := openStream(ctx, t, ts.URL+"/ui/chat/stream/c1")

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if line != ": heartbeat\n" {
		t.Errorf("first line: got %q, want heartbeat comment", line)
	}
}

func TestStream_EndsOnTimeout(t *testing.T) {
	reg := delivery.NewRegistry(delivery.Options{StreamTimeout: 20 * time.Millisecond}, nil)
	ts := startStreamServer(t, reg, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp := openStream(ctx, t, ts.URL+"/ui/chat/stream/c1")

	if _, err := io.ReadAll(resp.Body); err != nil {
		t.Fatalf("stream should end cleanly: %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("registry should forget the client, has %d", reg.Len())
	}
}

func TestStream_ReplacedByNewer(t *testing.T) {
	reg := delivery.NewRegistry(delivery.Options{}, nil)
	ts := startStreamServer(t, reg, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reg.Publish("c1", delivery.SystemMessage("hello"))
	first := openStream(ctx, t, ts.URL+"/ui/chat/stream/c1")
	nextData(t, bufio.NewReader(first.Body))

	openStream(ctx, t, ts.URL+"/ui/chat/stream/c1")

	if _, err := io.ReadAll(first.Body); err != nil {
		t.Fatalf("replaced stream should end cleanly: %v", err)
	}
}

// brokenWriter accepts headers and flushes but fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (w brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("write: broken pipe")
}

func TestStream_WriteFailureKeepsMessage(t *testing.T) {
	reg := delivery.NewRegistry(delivery.Options{}, nil)
	reg.Publish("c1", delivery.AssistantMessage("undelivered", "FIND_TASK"))
	s := NewServer(&mockChat{}, reg, &mockHealth{}, Options{Heartbeat: time.Minute}, nil)
	r := chi.NewRouter()
	s.Register(r)

	req := httptest.NewRequest(http.MethodGet, "/ui/chat/stream/c1", http.NoBody)
	r.ServeHTTP(brokenWriter{httptest.NewRecorder()}, req)

	got := reg.Drain("c1")
	if len(got) != 1 || got[0].Content != "undelivered" {
		t.Errorf("message lost after write failure: %v", got)
	}
}
