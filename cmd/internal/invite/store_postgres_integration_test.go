package invite

import (
	"context"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are enabled when NEARME_DATABASE_URL is set.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_SendRespondList(t *testing.T) {
	t.Parallel()

	store := mustNewPostgresStore(t)
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	alice, bob := newTestULID(t), newTestULID(t)

	first, err := svc.Send(ctx, SendInput{SenderID: alice, ReceiverID: bob, Reason: "coffee?"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := svc.Send(ctx, SendInput{SenderID: alice, ReceiverID: bob, Reason: "lunch?"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	received, err := svc.ListReceived(ctx, bob)
	if err != nil {
		t.Fatalf("list received: %v", err)
	}
	if len(received) != 2 || received[0].ID != second.ID || received[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", received)
	}

	if _, err := svc.Respond(ctx, first.ID, ActionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Respond(ctx, first.ID, ActionAccept); err != nil {
		t.Fatalf("repeat accept: %v", err)
	}
	if _, err := svc.Respond(ctx, first.ID, ActionDecline); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}

	missing := newTestULID(t)
	if _, err := svc.Respond(ctx, missing, ActionAccept); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("respond on a missing id must not create it, got %v", err)
	}

	sent, err := svc.ListSent(ctx, alice)
	if err != nil {
		t.Fatalf("list sent: %v", err)
	}
	if len(sent) != 2 || sent[1].Status != StatusAccepted || sent[0].Status != StatusPending {
		t.Fatalf("unexpected sent list: %+v", sent)
	}
}

func TestPostgresStore_ConcurrentRespond_SingleWinner(t *testing.T) {
	t.Parallel()

	store := mustNewPostgresStore(t)
	svc, _ := NewService(store)
	ctx := context.Background()

	inv, err := svc.Send(ctx, SendInput{SenderID: newTestULID(t), ReceiverID: newTestULID(t), Reason: "race"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	const attempts = 6
	var wg sync.WaitGroup
	results := make(chan Status, attempts)
	for i := 0; i < attempts; i++ {
		action := ActionAccept
		if i%2 == 1 {
			action = ActionDecline
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Respond(ctx, inv.ID, action)
			if err != nil {
				if !errors.Is(err, ErrNotPending) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			results <- out.Status
		}()
	}
	wg.Wait()
	close(results)

	var final Status
	for st := range results {
		if final != "" && st != final {
			t.Fatalf("two different terminal statuses won: %s and %s", final, st)
		}
		final = st
	}
	if !final.Terminal() {
		t.Fatalf("expected a winner, got %q", final)
	}
}

// ---- helpers ----

func mustNewPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	pool := mustOpenTestPool(t)
	t.Cleanup(pool.Close)

	schema := "nearme_it_" + strings.ToLower(newTestULID(t))
	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("NEARME_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: NEARME_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (NEARME_DATABASE_URL set): %v", err)
		}
		t.Fatalf("ping: %v", err)
	}
	return pool
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func shouldSkipIntegration(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}

func newTestULID(t *testing.T) string {
	t.Helper()
	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), ulid.Monotonic(rand.Reader, 0)).String()
	if len(id) != 26 {
		t.Fatalf("expected ULID length 26, got %d", len(id))
	}
	return id
}
