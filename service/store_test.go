package service

import (
	"context"
	"testing"
	"time"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/config"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/model"
)

func newTestStore(maxReviews int) *MemoryStore {
	return NewMemoryStore(&config.StoreConfig{MaxReviews: maxReviews})
}

func newTestSubmission(id, language, code string) *model.Submission {
	return &model.Submission{
		ID:             id,
		Language:       language,
		Code:           code,
		CodeHash:       model.HashCode(language, code),
		Status:         model.StatusPending,
		ClientIdentity: "127.0.0.1",
		CreatedAt:      time.Now(),
	}
}

func TestMemoryStoreInsertAndGet(t *testing.T) {
	store := newTestStore(0)
	ctx := context.Background()

	sub := newTestSubmission("test-id-1", "python", "print(1)")
	if err := store.Insert(ctx, sub); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	retrieved, err := store.Get(ctx, "test-id-1")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if retrieved.Language != "python" {
		t.Errorf("Expected language python, got %s", retrieved.Language)
	}
	if retrieved.Status != model.StatusPending {
		t.Errorf("Expected status pending, got %s", retrieved.Status)
	}

	// Duplicate insert is rejected
	if err := store.Insert(ctx, sub); err == nil {
		t.Error("Expected error for duplicate insert")
	}

	// Unknown id
	if _, err := store.Get(ctx, "non-existent"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := newTestStore(0)
	ctx := context.Background()

	store.Insert(ctx, newTestSubmission("copy-test", "go", "package main"))

	first, _ := store.Get(ctx, "copy-test")
	first.Status = model.StatusFailed

	second, _ := store.Get(ctx, "copy-test")
	if second.Status != model.StatusPending {
		t.Error("Mutating a returned snapshot must not affect the store")
	}
}

func TestMemoryStoreListFilterAndPaging(t *testing.T) {
	store := newTestStore(0)
	ctx := context.Background()

	base := time.Now()
	for i, lang := range []string{"go", "go", "python"} {
		sub := newTestSubmission(string(rune('a'+i)), lang, "code"+string(rune('a'+i)))
		sub.CreatedAt = base.Add(time.Duration(i) * time.Second)
		store.Insert(ctx, sub)
	}

	all, err := store.List(ctx, ListFilter{}, 0, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 submissions, got %d", len(all))
	}
	// Newest first
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("Expected newest-first order c..a, got %s..%s", all[0].ID, all[2].ID)
	}

	goOnly, _ := store.List(ctx, ListFilter{Language: "go"}, 0, 0)
	if len(goOnly) != 2 {
		t.Errorf("Expected 2 go submissions, got %d", len(goOnly))
	}

	paged, _ := store.List(ctx, ListFilter{}, 1, 1)
	if len(paged) != 1 || paged[0].ID != "b" {
		t.Errorf("Expected page [b], got %v", paged)
	}

	beyond, _ := store.List(ctx, ListFilter{}, 10, 5)
	if len(beyond) != 0 {
		t.Errorf("Expected empty page past the end, got %d items", len(beyond))
	}

	ranged, _ := store.List(ctx, ListFilter{From: base.Add(500 * time.Millisecond)}, 0, 0)
	if len(ranged) != 2 {
		t.Errorf("Expected 2 submissions in date range, got %d", len(ranged))
	}
}

func TestMemoryStoreFindCompletedByHash(t *testing.T) {
	store := newTestStore(0)
	ctx := context.Background()

	hash := model.HashCode("python", "print(1)")

	// Pending submission with matching hash must not be returned
	pending := newTestSubmission("pending-1", "python", "print(1)")
	store.Insert(ctx, pending)

	found, err := store.FindCompletedByHash(ctx, hash)
	if err != nil {
		t.Fatalf("FindCompletedByHash failed: %v", err)
	}
	if found != nil {
		t.Error("Expected no match while only a pending submission exists")
	}

	// Two completed submissions: newest wins
	older := newTestSubmission("completed-old", "python", "print(1)")
	older.Status = model.StatusCompleted
	older.Feedback = &model.Feedback{Score: 5}
	older.CreatedAt = time.Now().Add(-time.Hour)
	store.Insert(ctx, older)

	newer := newTestSubmission("completed-new", "python", "print(1)")
	newer.Status = model.StatusCompleted
	newer.Feedback = &model.Feedback{Score: 8}
	store.Insert(ctx, newer)

	found, err = store.FindCompletedByHash(ctx, hash)
	if err != nil {
		t.Fatalf("FindCompletedByHash failed: %v", err)
	}
	if found == nil {
		t.Fatal("Expected a cached match")
	}
	if found.ID != "completed-new" {
		t.Errorf("Expected newest completed submission, got %s", found.ID)
	}
	if found.Feedback.Score != 8 {
		t.Errorf("Expected feedback score 8, got %d", found.Feedback.Score)
	}
}

func TestMemoryStoreTransitions(t *testing.T) {
	store := newTestStore(0)
	ctx := context.Background()

	store.Insert(ctx, newTestSubmission("flow", "go", "package main"))

	snap, err := store.MarkInProgress(ctx, "flow")
	if err != nil {
		t.Fatalf("MarkInProgress failed: %v", err)
	}
	if snap.Status != model.StatusInProgress {
		t.Errorf("Expected in_progress, got %s", snap.Status)
	}

	// pending -> in_progress only happens once
	if _, err := store.MarkInProgress(ctx, "flow"); err == nil {
		t.Error("Expected error re-marking in_progress")
	}

	snap, err = store.MarkCompleted(ctx, "flow", &model.Feedback{Score: 9})
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if snap.Status != model.StatusCompleted {
		t.Errorf("Expected completed, got %s", snap.Status)
	}
	if snap.CompletedAt.IsZero() {
		t.Error("Expected completed_at to be set")
	}

	// Terminal states never transition again
	if _, err := store.MarkFailed(ctx, "flow", "nope"); err == nil {
		t.Error("Expected error failing a completed submission")
	}
	if _, err := store.MarkCompleted(ctx, "flow", &model.Feedback{Score: 1}); err == nil {
		t.Error("Expected error re-completing a completed submission")
	}

	final, _ := store.Get(ctx, "flow")
	if final.Feedback.Score != 9 {
		t.Errorf("Feedback must be stable once written, got score %d", final.Feedback.Score)
	}
}

func TestMemoryStoreMarkFailed(t *testing.T) {
	store := newTestStore(0)
	ctx := context.Background()

	store.Insert(ctx, newTestSubmission("fail-flow", "go", "x"))
	store.MarkInProgress(ctx, "fail-flow")

	snap, err := store.MarkFailed(ctx, "fail-flow", "provider exploded")
	if err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if snap.Status != model.StatusFailed {
		t.Errorf("Expected failed, got %s", snap.Status)
	}
	if snap.ErrorMsg != "provider exploded" {
		t.Errorf("Expected error message, got %q", snap.ErrorMsg)
	}
	if snap.FailedAt.IsZero() {
		t.Error("Expected failed_at to be set")
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	store := newTestStore(2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		sub := newTestSubmission(string(rune('a'+i)), "go", "code"+string(rune('a'+i)))
		sub.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		store.Insert(ctx, sub)
	}

	if store.Count() != 2 {
		t.Errorf("Expected store capped at 2, got %d", store.Count())
	}
	// Oldest removed first
	if _, err := store.Get(ctx, "a"); err != ErrNotFound {
		t.Error("Expected oldest submission to be cleaned up")
	}
	if _, err := store.Get(ctx, "d"); err != nil {
		t.Error("Expected newest submission to survive cleanup")
	}
}
