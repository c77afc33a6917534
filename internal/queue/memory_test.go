package queue

import (
	"context"
	"testing"
)

func TestMemoryPublisher_PublishAndDrain(t *testing.T) {
	p := NewMemoryPublisher()
	defer func() { _ = p.Close() }()

	ctx := context.Background()
	data := []byte("payload")
	if err := p.Publish(ctx, "tags.a", data); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	data[0] = 'X'

	got := p.Drain("tags.a")
	if len(got) != 1 || string(got[0]) != "payload" {
		t.Errorf("Drain = %q, want [payload]", got)
	}
	if len(p.Drain("tags.a")) != 0 {
		t.Error("Drain should empty the subject")
	}
}

func TestMemoryPublisher_PublishBatch(t *testing.T) {
	p := NewMemoryPublisher()

	n, err := p.PublishBatch(context.Background(), []BatchMessage{
		{Subject: "tags.a", Data: []byte("1")},
		{Subject: "tags.b", Data: []byte("2")},
		{Subject: "tags.a", Data: []byte("3")},
	})
	if err != nil {
		t.Fatalf("PublishBatch failed: %v", err)
	}
	if n != 3 {
		t.Errorf("published = %d, want 3", n)
	}
	if len(p.Subjects()) != 2 {
		t.Errorf("Subjects = %v, want 2 entries", p.Subjects())
	}
	if got := p.Drain("tags.a"); len(got) != 2 || string(got[1]) != "3" {
		t.Errorf("Drain(tags.a) = %q", got)
	}
}

func TestMemoryPublisher_Closed(t *testing.T) {
	p := NewMemoryPublisher()
	_ = p.Close()

	if err := p.Publish(context.Background(), "tags.a", []byte("x")); err == nil {
		t.Error("Expected error after Close")
	}
	if _, err := p.PublishBatch(context.Background(), []BatchMessage{{Subject: "tags.a"}}); err == nil {
		t.Error("Expected batch error after Close")
	}
}

func TestMemoryPublisher_CancelledContextStillBuffers(t *testing.T) {
	p := NewMemoryPublisher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A free buffer slot wins over the cancelled context in the select.
	if err := p.Publish(ctx, "tags.a", []byte("x")); err != nil && err != context.Canceled {
		t.Errorf("unexpected error: %v", err)
	}
}
