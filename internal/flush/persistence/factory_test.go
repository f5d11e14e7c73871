package persistence

import (
	"testing"
	"time"

	"flushnode/internal/flush/core"
)

func TestBuildPersister_DefaultMock(t *testing.T) {
	p, err := BuildPersister("", AdapterOptions{})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if p == nil {
		t.Fatalf("expected non-nil persister")
	}
	if err := p.FlushBatch([]core.FlushRecord{{Handler: "h", Target: "t", Serial: 1}}); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
}

func TestBuildPersister_RedisLoggingAndReal(t *testing.T) {
	p, err := BuildPersister("redis", AdapterOptions{RedisMarkerTTL: time.Hour})
	if err != nil || p == nil {
		t.Fatalf("unexpected: %v %v", p, err)
	}
	p2, err := BuildPersister("redis", AdapterOptions{RedisAddr: "127.0.0.1:0"})
	if err != nil || p2 == nil {
		t.Fatalf("unexpected: %v %v", p2, err)
	}
}

func TestBuildPersister_Kafka(t *testing.T) {
	p, err := BuildPersister("kafka", AdapterOptions{KafkaTopic: "t"})
	if err != nil || p == nil {
		t.Fatalf("unexpected: %v %v", p, err)
	}
}

func TestBuildPersister_PostgresReturnsError(t *testing.T) {
	p, err := BuildPersister("postgres", AdapterOptions{})
	if err == nil || p != nil {
		t.Fatalf("expected error for postgres adapter")
	}
}

func TestBuildPersister_UnknownAdapter(t *testing.T) {
	if _, err := BuildPersister("does-not-exist", AdapterOptions{}); err == nil {
		t.Fatalf("expected error for unknown adapter")
	}
}
