package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMemoryStoreHistoryFormatAndEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	id, err := store.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if h, _ := store.History(ctx, id); h != "" {
		t.Fatalf("expected empty history, got %q", h)
	}

	for i := 1; i <= 3; i++ {
		if err := store.Append(ctx, id, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := store.History(ctx, id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := "User: q2\nAssistant: a2\nUser: q3\nAssistant: a3"
	if got != want {
		t.Fatalf("unexpected history:\n got %q\nwant %q", got, want)
	}
}

func TestMemoryStoreUnknownSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if h, err := store.History(ctx, "missing"); err != nil || h != "" {
		t.Fatalf("expected empty history for unknown id, got %q %v", h, err)
	}
	if err := store.Append(ctx, "client-chosen", "q", "a"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if h, _ := store.History(ctx, "client-chosen"); h != "User: q\nAssistant: a" {
		t.Fatalf("append should create the session, got %q", h)
	}
	if err := store.Clear(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := store.Clear(ctx, "client-chosen"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if h, _ := store.History(ctx, "client-chosen"); h != "" {
		t.Fatalf("expected cleared history, got %q", h)
	}
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultMaxExchanges)

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		id := fmt.Sprintf("s%d", s)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = store.Append(ctx, id, "q", "a")
			}()
		}
	}
	wg.Wait()

	if store.Len() != 8 {
		t.Fatalf("expected 8 sessions, got %d", store.Len())
	}
	h, _ := store.History(ctx, "s0")
	if h != "User: q\nAssistant: a\nUser: q\nAssistant: a" {
		t.Fatalf("expected capped history, got %q", h)
	}
}

func TestMemoryStoreSessionsGauge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	before := testutil.ToFloat64(sessionsActive)

	id, _ := store.CreateSession(ctx)
	if err := store.Append(ctx, "implicit", "q", "a"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := testutil.ToFloat64(sessionsActive); got != before+2 {
		t.Fatalf("expected gauge %v, got %v", before+2, got)
	}
	for _, sid := range []string{id, "implicit"} {
		if err := store.Clear(ctx, sid); err != nil {
			t.Fatalf("clear %s: %v", sid, err)
		}
	}
	if got := testutil.ToFloat64(sessionsActive); got != before {
		t.Fatalf("expected gauge back at %v, got %v", before, got)
	}
}
