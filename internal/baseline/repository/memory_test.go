package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"continuous-auth/backend/internal/behavior/domain"
)

func TestMemoryRepository_LoadMissing(t *testing.T) {
	r := NewMemoryRepository()
	b, err := r.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b != nil {
		t.Errorf("Load = %+v, want nil", b)
	}
}

func TestMemoryRepository_SaveLastWriteWins(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	first := domain.Baseline{WPM: 40, AvgHoldMs: 90, BackspaceCount: 2, EnrolledAt: time.Now().UTC()}
	second := domain.Baseline{WPM: 65, AvgHoldMs: 85, BackspaceCount: 5, EnrolledAt: time.Now().UTC()}

	if err := r.Save(ctx, "u1", first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := r.Save(ctx, "u1", second); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := r.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || *got != second {
		t.Errorf("Load = %+v, want %+v", got, second)
	}
}

func TestMemoryRepository_LoadReturnsCopy(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	_ = r.Save(ctx, "u1", domain.Baseline{WPM: 50})

	got, _ := r.Load(ctx, "u1")
	got.WPM = 1
	again, _ := r.Load(ctx, "u1")
	if again.WPM != 50 {
		t.Errorf("stored baseline mutated through Load: WPM = %v", again.WPM)
	}
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			_ = r.Save(ctx, "u"+string(rune('0'+id)), domain.Baseline{WPM: float64(id)})
		}(i)
		go func(id int) {
			defer wg.Done()
			_, _ = r.Load(ctx, "u"+string(rune('0'+id)))
		}(i)
	}
	wg.Wait()
	if err := r.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
