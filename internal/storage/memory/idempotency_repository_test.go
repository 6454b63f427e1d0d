package memory

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

func TestIdempotencyRepository_CreateAndReplay(t *testing.T) {
	repo := NewIdempotencyRepository()
	ctx := context.Background()

	record, err := repo.CreateProcessing(ctx, "key-1", "hash-1", time.Time{})
	if err != nil {
		t.Fatalf("create processing: %v", err)
	}
	if record.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("status = %s, want processing", record.Status)
	}

	// Повтор с тем же hash сообщает о существующей записи.
	existing, err := repo.CreateProcessing(ctx, "key-1", "hash-1", time.Time{})
	if !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected ErrIdempotencyKeyAlreadyExists, got %v", err)
	}
	if existing.Key != "key-1" {
		t.Fatalf("existing key = %s, want key-1", existing.Key)
	}

	// Тот же ключ с другим телом запроса — конфликт.
	if _, err := repo.CreateProcessing(ctx, "key-1", "hash-2", time.Time{}); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected ErrIdempotencyHashMismatch, got %v", err)
	}
}

func TestIdempotencyRepository_MarkDoneStoresResponse(t *testing.T) {
	repo := NewIdempotencyRepository()
	ctx := context.Background()

	if _, err := repo.CreateProcessing(ctx, "key-1", "hash-1", time.Time{}); err != nil {
		t.Fatalf("create processing: %v", err)
	}

	body := []byte(`{"id":"sale-1"}`)
	if err := repo.MarkDone(ctx, "key-1", body, http.StatusCreated); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	record, err := repo.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != domain.IdempotencyStatusDone {
		t.Fatalf("status = %s, want done", record.Status)
	}
	if record.HTTPStatus != http.StatusCreated {
		t.Fatalf("http status = %d, want 201", record.HTTPStatus)
	}
	if string(record.ResponseBody) != string(body) {
		t.Fatalf("body = %s, want %s", record.ResponseBody, body)
	}
}

func TestIdempotencyRepository_RequiredFields(t *testing.T) {
	repo := NewIdempotencyRepository()
	ctx := context.Background()

	if _, err := repo.CreateProcessing(ctx, "  ", "hash-1", time.Time{}); !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "key-1", "", time.Time{}); !errors.Is(err, domain.ErrIdempotencyRequestHashRequired) {
		t.Fatalf("expected ErrIdempotencyRequestHashRequired, got %v", err)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected ErrIdempotencyKeyNotFound, got %v", err)
	}
}

func TestIdempotencyRepository_DeleteExpired(t *testing.T) {
	repo := NewIdempotencyRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.CreateProcessing(ctx, "expired-1", "hash-1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("create expired-1: %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "expired-2", "hash-2", now.Add(-time.Minute)); err != nil {
		t.Fatalf("create expired-2: %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "alive", "hash-3", now.Add(time.Hour)); err != nil {
		t.Fatalf("create alive: %v", err)
	}

	deleted, err := repo.DeleteExpired(ctx, now, 0)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	if _, err := repo.Get(ctx, "alive"); err != nil {
		t.Fatalf("live record must survive: %v", err)
	}
	if _, err := repo.Get(ctx, "expired-1"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected expired-1 to be removed, got %v", err)
	}
}
