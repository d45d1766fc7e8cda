package requestctx

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryStore_BeginGetEnd(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rid := NewRequestID()
	if err := s.Begin(ctx, rid, Context{ActorUserID: "u1", IPAddress: "1.2.3.4"}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	rc, ok, err := s.Get(ctx, rid)
	if err != nil || !ok {
		t.Fatalf("expected entry, ok=%v err=%v", ok, err)
	}
	if rc.ActorUserID != "u1" || rc.IPAddress != "1.2.3.4" {
		t.Fatalf("unexpected context: %+v", rc)
	}

	// Get does not consume.
	if _, ok, _ := s.Get(ctx, rid); !ok {
		t.Fatalf("expected entry to survive a Get")
	}

	if err := s.End(ctx, rid); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, ok, _ := s.Get(ctx, rid); ok {
		t.Fatalf("expected entry removed")
	}
}

func TestMemoryStore_EndIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.End(ctx, "never-began"); err != nil {
		t.Fatalf("end on absent id: %v", err)
	}

	rid := NewRequestID()
	_ = s.Begin(ctx, rid, Context{})
	if err := s.End(ctx, rid); err != nil {
		t.Fatalf("first end: %v", err)
	}
	if err := s.End(ctx, rid); err != nil {
		t.Fatalf("second end must be a no-op, got %v", err)
	}
}

func TestMemoryStore_LastBeginWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Begin(ctx, "r1", Context{ActorUserID: "first"})
	_ = s.Begin(ctx, "r1", Context{ActorUserID: "second"})

	rc, ok, _ := s.Get(ctx, "r1")
	if !ok || rc.ActorUserID != "second" {
		t.Fatalf("expected overwrite semantics, got %+v ok=%v", rc, ok)
	}
}

func TestMemoryStore_RejectsEmptyRequestID(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Begin(context.Background(), "", Context{}); err == nil {
		t.Fatalf("expected error for empty request id")
	}
}

func TestMemoryStore_ConcurrentSlotsAreIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rid := NewRequestID()
			want := Context{ActorUserID: rid}
			if err := s.Begin(ctx, rid, want); err != nil {
				t.Errorf("begin: %v", err)
				return
			}
			rc, ok, err := s.Get(ctx, rid)
			if err != nil || !ok {
				t.Errorf("get: ok=%v err=%v", ok, err)
				return
			}
			if rc.ActorUserID != rid {
				t.Errorf("cross-contaminated slot: got %q want %q", rc.ActorUserID, rid)
			}
			_ = s.End(ctx, rid)
		}(i)
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Fatalf("expected all slots released, %d remain", s.Len())
	}
}

func TestNewRequestID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewRequestID()
		if id == "" {
			t.Fatalf("empty request id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = struct{}{}
	}
}
