package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/lock"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
)

func TestManager_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	manager := lock.NewManager(memory.NewLockStore(), nil)

	release, acquired, err := manager.Acquire(ctx, "order:1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !acquired {
		t.Fatal("expected lock to be acquired")
	}

	// Пока блокировка удерживается, второй претендент получает отказ.
	_, second, err := manager.Acquire(ctx, "order:1", time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if second {
		t.Fatal("expected second acquire to fail while lock is held")
	}

	release()

	_, third, err := manager.Acquire(ctx, "order:1", time.Minute)
	if err != nil {
		t.Fatalf("third acquire: %v", err)
	}
	if !third {
		t.Fatal("expected acquire to succeed after release")
	}
}

func TestManager_IndependentKeys(t *testing.T) {
	ctx := context.Background()
	manager := lock.NewManager(memory.NewLockStore(), nil)

	_, first, err := manager.Acquire(ctx, "order:1", time.Minute)
	if err != nil || !first {
		t.Fatalf("acquire order:1: acquired=%v err=%v", first, err)
	}

	_, second, err := manager.Acquire(ctx, "order:2", time.Minute)
	if err != nil || !second {
		t.Fatalf("acquire order:2: acquired=%v err=%v", second, err)
	}
}

func TestManager_ReleaseAfterExpiryIsSafe(t *testing.T) {
	ctx := context.Background()
	manager := lock.NewManager(memory.NewLockStore(), nil)

	release, acquired, err := manager.Acquire(ctx, "order:1", time.Millisecond)
	if err != nil || !acquired {
		t.Fatalf("acquire: acquired=%v err=%v", acquired, err)
	}

	time.Sleep(5 * time.Millisecond)

	// Ключ истёк и перехвачен другим владельцем.
	_, taken, err := manager.Acquire(ctx, "order:1", time.Minute)
	if err != nil || !taken {
		t.Fatalf("takeover acquire: acquired=%v err=%v", taken, err)
	}

	// Release первого владельца не должен снять чужую блокировку.
	release()

	_, stolen, err := manager.Acquire(ctx, "order:1", time.Minute)
	if err != nil {
		t.Fatalf("post-release acquire: %v", err)
	}
	if stolen {
		t.Fatal("expected lock to remain held by the second owner")
	}
}
