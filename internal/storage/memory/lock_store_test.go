package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
)

func TestLockStore_TryAcquireRelease(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLockStore()

	ok, err := store.TryAcquire(ctx, "order:1", "token-a", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	ok, err = store.TryAcquire(ctx, "order:1", "token-b", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to be refused while lock is held")
	}

	// Чужой токен не снимает блокировку.
	released, err := store.Release(ctx, "order:1", "token-b")
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released {
		t.Fatal("expected release with foreign token to be refused")
	}

	released, err = store.Release(ctx, "order:1", "token-a")
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !released {
		t.Fatal("expected owner release to succeed")
	}

	ok, err = store.TryAcquire(ctx, "order:1", "token-b", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected acquire after release to succeed")
	}
}

func TestLockStore_ExpiredLockIsTakenOver(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLockStore()

	ok, err := store.TryAcquire(ctx, "order:1", "token-a", time.Nanosecond)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	time.Sleep(5 * time.Millisecond)

	ok, err = store.TryAcquire(ctx, "order:1", "token-b", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected expired lock to be taken over")
	}

	// Прежний владелец после перехвата снять блокировку уже не может.
	released, err := store.Release(ctx, "order:1", "token-a")
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released {
		t.Fatal("expected stale owner release to be refused")
	}
}
