package subscriber

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

func init() {
	redeliverDelay = 10 * time.Millisecond
}

// setupTestNATS creates an embedded NATS server with JetStream for testing
func setupTestNATS(t *testing.T) string {
	t.Helper()
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1, // Random port
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create NATS server: %v", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

// recorder collects handled payloads and fails the first failures calls
type recorder struct {
	failures int
	calls    chan string
}

func newRecorder(failures int) *recorder {
	return &recorder{failures: failures, calls: make(chan string, 100)}
}

func (r *recorder) handle(_ context.Context, _ string, data []byte) error {
	r.calls <- string(data)
	if r.failures > 0 {
		r.failures--
		return errTransient
	}
	return nil
}

// next waits for one handler call
func (r *recorder) next(t *testing.T) string {
	t.Helper()
	select {
	case data := <-r.calls:
		return data
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

// quiet asserts no further handler call arrives within d
func (r *recorder) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case data := <-r.calls:
		t.Fatalf("unexpected delivery %q", data)
	case <-time.After(d):
	}
}
