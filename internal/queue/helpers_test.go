package queue

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// setupTestNATS creates an embedded NATS server with JetStream for testing
func setupTestNATS(t *testing.T) (string, func()) {
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

	// Wait for server to be ready
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	cleanup := func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	}

	return ns.ClientURL(), cleanup
}
