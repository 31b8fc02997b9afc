package sessionstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
)

func newStore(t *testing.T, cfg Config) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cfg)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestSaveLoadDelete(t *testing.T) {
	s, _ := newStore(t, Config{})
	ctx := context.Background()

	st := engine.NewState()
	st.TurnCount = 3
	st.Phase = phase.Bargaining
	st.DetectedTactics = []rules.Tactic{rules.TacticAnchoring}
	st.Scores.ClaimingValue = 20

	if err := s.Save(ctx, "s1", st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TurnCount != 3 || got.Phase != phase.Bargaining || got.Scores.ClaimingValue != 20 {
		t.Errorf("unexpected state %+v", got)
	}
	if len(got.DetectedTactics) != 1 || got.DetectedTactics[0] != rules.TacticAnchoring {
		t.Errorf("tactics not preserved: %v", got.DetectedTactics)
	}

	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) || !errors.Is(err, engine.ErrSessionNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestSnapshotTTL(t *testing.T) {
	s, mr := newStore(t, Config{TTL: time.Minute})
	ctx := context.Background()
	s.Save(ctx, "s1", engine.NewState())

	mr.FastForward(2 * time.Minute)
	if _, err := s.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired snapshot, got %v", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	s, mr := newStore(t, Config{Prefix: "p"})
	mr.Set("p:session:bad", "{not json")
	if _, err := s.Load(context.Background(), "bad"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestIDs(t *testing.T) {
	s, mr := newStore(t, Config{})
	ctx := context.Background()
	s.Save(ctx, "a", engine.NewState())
	s.Save(ctx, "b", engine.NewState())
	mr.Set("other:session:c", "x")

	ids, err := s.IDs(ctx)
	if err != nil {
		t.Fatalf("IDs: %v", err)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if len(ids) != 2 || !seen["a"] || !seen["b"] {
		t.Errorf("expected [a b], got %v", ids)
	}
}

func TestLockExclusive(t *testing.T) {
	s, mr := newStore(t, Config{LockWait: 50 * time.Millisecond})
	ctx := context.Background()

	release, err := s.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := s.Lock(ctx, "s1"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	// Other sessions are independent.
	releaseOther, err := s.Lock(ctx, "s2")
	if err != nil {
		t.Fatalf("Lock s2: %v", err)
	}
	releaseOther()

	release()
	if mr.Exists("negotiation:lock:s1") {
		t.Fatal("lock key should be gone after release")
	}
	release2, err := s.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	release2()
}

func TestLockReleaseKeepsForeignToken(t *testing.T) {
	s, mr := newStore(t, Config{LockTTL: time.Second})
	ctx := context.Background()

	release, err := s.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	// Lease expires and another holder takes over.
	mr.FastForward(2 * time.Second)
	mr.Set("negotiation:lock:s1", "someone-else")

	release()
	if got, _ := mr.Get("negotiation:lock:s1"); got != "someone-else" {
		t.Fatalf("release removed a lock it did not own, got %q", got)
	}
}

func TestLockCancelled(t *testing.T) {
	s, _ := newStore(t, Config{LockWait: time.Minute})
	release, _ := s.Lock(context.Background(), "s1")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Lock(ctx, "s1"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestLockSerializesWriters(t *testing.T) {
	s, _ := newStore(t, Config{LockWait: 5 * time.Second})
	ctx := context.Background()
	s.Save(ctx, "s1", engine.NewState())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.Lock(ctx, "s1")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			defer release()
			st, _ := s.Load(ctx, "s1")
			st.TurnCount++
			s.Save(ctx, "s1", st)
		}()
	}
	wg.Wait()

	st, _ := s.Load(ctx, "s1")
	if st.TurnCount != 8 {
		t.Fatalf("expected 8 serialized increments, got %d", st.TurnCount)
	}
}

func TestDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "127.0.0.1:1", Config{}); err == nil {
		t.Fatal("expected dial error")
	}
}
