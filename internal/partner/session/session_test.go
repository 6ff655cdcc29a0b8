package session

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/quantfold/dealdesk/internal/partner"
)

func newTestClient(t *testing.T) *partner.Client {
	t.Helper()
	c, err := partner.NewClient("fo1", partner.ClientOptions{}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestInsertAndLookup(t *testing.T) {
	r := NewRegistry(time.Hour)
	client := newTestClient(t)

	handle := r.Insert(client)
	if handle == "" {
		t.Fatal("expected a non-empty handle")
	}
	got, ok := r.Lookup(handle)
	if !ok || got != client {
		t.Fatalf("expected the inserted client back, got %v ok=%v", got, ok)
	}
}

func TestLookupUnknownHandle(t *testing.T) {
	r := NewRegistry(time.Hour)
	if _, ok := r.Lookup("no-such-handle"); ok {
		t.Fatal("unknown handle must not resolve")
	}
}

func TestExpiredHandleIsInvalidAndPurged(t *testing.T) {
	r := NewRegistry(time.Hour)
	handle := r.Insert(newTestClient(t))

	// Advance the clock past the TTL without sleeping.
	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, ok := r.Lookup(handle); ok {
		t.Fatal("expired handle must be treated as invalid")
	}
	if r.Len() != 0 {
		t.Fatalf("expired entry must be purged on lookup, %d left", r.Len())
	}
}

func TestPurgeRemovesOnlyExpired(t *testing.T) {
	r := NewRegistry(time.Hour)
	old := r.Insert(newTestClient(t))

	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	fresh := r.Insert(newTestClient(t))
	r.Purge()

	if _, ok := r.Lookup(old); ok {
		t.Fatal("old handle should be gone")
	}
	if _, ok := r.Lookup(fresh); !ok {
		t.Fatal("fresh handle should survive the purge")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry(time.Hour)
	client := newTestClient(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle := r.Insert(client)
			if _, ok := r.Lookup(handle); !ok {
				t.Error("handle vanished under concurrent access")
			}
			r.Purge()
		}()
	}
	wg.Wait()
}
