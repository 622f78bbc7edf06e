package lockjanitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/service/lockjanitor"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
)

func TestDeleteExpired_RemovesOnlyExpiredLocks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLockStore()

	ok, err := store.TryAcquire(ctx, "order:expired", "token-1", time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("acquire expired: ok=%v err=%v", ok, err)
	}
	ok, err = store.TryAcquire(ctx, "order:live", "token-2", time.Hour)
	if err != nil || !ok {
		t.Fatalf("acquire live: ok=%v err=%v", ok, err)
	}

	time.Sleep(5 * time.Millisecond)

	worker := lockjanitor.NewCleanupWorker(store, lockjanitor.WithBatchSize(10))
	deleted, err := worker.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted record, got %d", deleted)
	}

	// Живая блокировка всё ещё удерживается.
	ok, err = store.TryAcquire(ctx, "order:live", "token-3", time.Minute)
	if err != nil {
		t.Fatalf("reacquire live: %v", err)
	}
	if ok {
		t.Fatal("expected live lock to survive cleanup")
	}
}

func TestDeleteExpired_BatchesUntilDrained(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLockStore()

	for i := 0; i < 7; i++ {
		key := "order:" + string(rune('a'+i))
		if ok, err := store.TryAcquire(ctx, key, "token", time.Millisecond); err != nil || !ok {
			t.Fatalf("acquire %s: ok=%v err=%v", key, ok, err)
		}
	}
	time.Sleep(5 * time.Millisecond)

	worker := lockjanitor.NewCleanupWorker(store, lockjanitor.WithBatchSize(3))
	deleted, err := worker.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("expected 7 deleted records, got %d", deleted)
	}
}

func TestDeleteExpired_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := lockjanitor.NewCleanupWorker(memory.NewLockStore())
	if _, err := worker.DeleteExpired(ctx, time.Now().UTC()); err == nil {
		t.Fatal("expected context error")
	}
}
