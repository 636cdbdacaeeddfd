package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/config"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/model"
)

// ListFilter narrows List and Stats queries. Zero values mean "any".
type ListFilter struct {
	Language string
	Status   string
	From     time.Time
	To       time.Time
}

// Matches reports whether a submission passes the filter
func (f ListFilter) Matches(s *model.Submission) bool {
	if f.Language != "" && s.Language != f.Language {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && s.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// ReviewStore is the durable record of submissions. Implementations must
// support concurrent writes to distinct submissions and concurrent reads of
// any submission. Mark* methods enforce the forward-only status path and
// return the snapshot they persisted.
type ReviewStore interface {
	Insert(ctx context.Context, sub *model.Submission) error
	Get(ctx context.Context, id string) (*model.Submission, error)
	List(ctx context.Context, filter ListFilter, skip, limit int) ([]*model.Submission, error)
	FindCompletedByHash(ctx context.Context, codeHash string) (*model.Submission, error)
	MarkInProgress(ctx context.Context, id string) (*model.Submission, error)
	MarkCompleted(ctx context.Context, id string, feedback *model.Feedback) (*model.Submission, error)
	MarkFailed(ctx context.Context, id string, errMsg string) (*model.Submission, error)
}

// MemoryStore is an in-memory ReviewStore, the default backend and the one
// used in tests. State is lost on restart.
type MemoryStore struct {
	reviews    map[string]*model.Submission
	mu         sync.RWMutex
	maxReviews int // Maximum reviews to keep, 0 = unlimited
}

func NewMemoryStore(cfg *config.StoreConfig) *MemoryStore {
	maxReviews := 0
	if cfg != nil && cfg.MaxReviews > 0 {
		maxReviews = cfg.MaxReviews
	}
	return &MemoryStore{
		reviews:    make(map[string]*model.Submission),
		maxReviews: maxReviews,
	}
}

func (s *MemoryStore) Insert(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reviews[sub.ID]; exists {
		return fmt.Errorf("submission %s already exists", sub.ID)
	}
	cp := *sub
	s.reviews[sub.ID] = &cp

	s.cleanupIfNeeded()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter, skip, limit int) ([]*model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*model.Submission, 0)
	for _, sub := range s.reviews {
		if filter.Matches(sub) {
			cp := *sub
			matched = append(matched, &cp)
		}
	}

	// Newest first
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if skip > 0 {
		if skip >= len(matched) {
			return []*model.Submission{}, nil
		}
		matched = matched[skip:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) FindCompletedByHash(_ context.Context, codeHash string) (*model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *model.Submission
	for _, sub := range s.reviews {
		if sub.CodeHash != codeHash || sub.Status != model.StatusCompleted {
			continue
		}
		if newest == nil || sub.CreatedAt.After(newest.CreatedAt) {
			newest = sub
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (s *MemoryStore) MarkInProgress(_ context.Context, id string) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sub.Status != model.StatusPending {
		return nil, fmt.Errorf("submission %s is %s, cannot move to in_progress", id, sub.Status)
	}
	sub.Status = model.StatusInProgress
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) MarkCompleted(_ context.Context, id string, feedback *model.Feedback) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	if model.IsTerminal(sub.Status) {
		return nil, fmt.Errorf("submission %s already %s", id, sub.Status)
	}
	sub.Status = model.StatusCompleted
	sub.Feedback = feedback
	sub.CompletedAt = time.Now()
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, errMsg string) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	if model.IsTerminal(sub.Status) {
		return nil, fmt.Errorf("submission %s already %s", id, sub.Status)
	}
	sub.Status = model.StatusFailed
	sub.ErrorMsg = errMsg
	sub.FailedAt = time.Now()
	cp := *sub
	return &cp, nil
}

// cleanupIfNeeded removes oldest reviews if store exceeds maxReviews
// Must be called with lock held
func (s *MemoryStore) cleanupIfNeeded() {
	if s.maxReviews <= 0 {
		return // Unlimited
	}

	if len(s.reviews) <= s.maxReviews {
		return
	}

	reviews := make([]*model.Submission, 0, len(s.reviews))
	for _, sub := range s.reviews {
		reviews = append(reviews, sub)
	}
	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.Before(reviews[j].CreatedAt)
	})

	removeCount := len(reviews) - s.maxReviews
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old review",
			"submission_id", reviews[i].ID,
			"created_at", reviews[i].CreatedAt,
		)
		delete(s.reviews, reviews[i].ID)
	}
}

// Count returns the number of reviews in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reviews)
}
