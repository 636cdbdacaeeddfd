package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/config"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/model"
)

// ReviewProcessor orchestrates one submission's lifecycle: synchronous
// intake (validate, dedup, rate limit, persist pending) and a detached
// continuation that drives the submission to a terminal state. Exactly one
// continuation is spawned per successful Submit, so each submission id has
// at most one in-flight task.
type ReviewProcessor struct {
	store       ReviewStore
	limiter     *RateLimiter
	provider    Reviewer
	broadcaster *StatusBroadcaster
	timeout     time.Duration
	wg          sync.WaitGroup
}

func NewReviewProcessor(store ReviewStore, limiter *RateLimiter, provider Reviewer, broadcaster *StatusBroadcaster, cfg *config.ProviderConfig) *ReviewProcessor {
	timeout := 120 * time.Second
	if cfg != nil && cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &ReviewProcessor{
		store:       store,
		limiter:     limiter,
		provider:    provider,
		broadcaster: broadcaster,
		timeout:     timeout,
	}
}

// Submit runs the synchronous intake and returns the created submission.
// A dedup hit returns a completed submission immediately; otherwise the
// submission is persisted as pending and the continuation is scheduled.
// Errors are ErrValidation, ErrRateLimited, or a store failure.
func (p *ReviewProcessor) Submit(ctx context.Context, language, code, clientIdentity, userID string) (*model.Submission, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		return nil, fmt.Errorf("%w: language is required", ErrValidation)
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}

	codeHash := model.HashCode(language, code)

	// Dedup before the rate limit so cache hits cost nothing
	cached, err := p.store.FindCompletedByHash(ctx, codeHash)
	if err != nil {
		slog.Warn("dedup lookup failed, treating as miss", "error", err)
	}
	if cached != nil {
		sub := &model.Submission{
			ID:             uuid.New().String(),
			Language:       language,
			Code:           code,
			CodeHash:       codeHash,
			Status:         model.StatusCompleted,
			Feedback:       cached.Feedback,
			ClientIdentity: clientIdentity,
			UserID:         userID,
			CreatedAt:      time.Now(),
			CompletedAt:    time.Now(),
		}
		if err := p.store.Insert(ctx, sub); err != nil {
			return nil, fmt.Errorf("saving cached submission: %w", err)
		}
		slog.Info("review served from cache",
			"submission_id", sub.ID,
			"cached_from", cached.ID,
			"code_hash", codeHash,
		)
		return sub, nil
	}

	if !p.limiter.Allow(clientIdentity) {
		return nil, ErrRateLimited
	}

	sub := &model.Submission{
		ID:             uuid.New().String(),
		Language:       language,
		Code:           code,
		CodeHash:       codeHash,
		Status:         model.StatusPending,
		ClientIdentity: clientIdentity,
		UserID:         userID,
		CreatedAt:      time.Now(),
	}
	if err := p.store.Insert(ctx, sub); err != nil {
		return nil, fmt.Errorf("saving submission: %w", err)
	}

	p.wg.Add(1)
	go p.process(sub.ID, language, code)

	return sub, nil
}

// process is the asynchronous continuation. It owns its submission id
// exclusively until a terminal state is persisted; failures are only
// observable through the store and the broadcaster.
func (p *ReviewProcessor) process(id, language, code string) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	snapshot, err := p.store.MarkInProgress(ctx, id)
	if err != nil {
		slog.Error("failed to mark submission in progress", "submission_id", id, "error", err)
		p.failBestEffort(ctx, id, "internal error before review started")
		return
	}
	p.broadcaster.Publish(*snapshot)

	feedback, reviewErr := p.provider.Review(ctx, language, code)
	if reviewErr != nil {
		slog.Error("review failed", "submission_id", id, "error", reviewErr)
		snapshot, err = p.store.MarkFailed(ctx, id, reviewErr.Error())
	} else {
		snapshot, err = p.store.MarkCompleted(ctx, id, feedback)
	}
	if err != nil {
		slog.Error("failed to persist terminal state", "submission_id", id, "error", err)
		p.failBestEffort(ctx, id, "internal error persisting review result")
		return
	}
	p.broadcaster.Publish(*snapshot)
}

// failBestEffort tries to leave the submission in a consistent failed
// state after a store error inside the continuation.
func (p *ReviewProcessor) failBestEffort(ctx context.Context, id, msg string) {
	snapshot, err := p.store.MarkFailed(ctx, id, msg)
	if err != nil {
		slog.Error("failed to record failure state", "submission_id", id, "error", err)
		return
	}
	p.broadcaster.Publish(*snapshot)
}

// Wait blocks until all in-flight continuations finish. Used on shutdown.
func (p *ReviewProcessor) Wait() {
	p.wg.Wait()
}
