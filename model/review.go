package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Submission represents one code review request and its evolving result
type Submission struct {
	ID             string    `json:"id" bson:"_id"`
	Language       string    `json:"language" bson:"language"`
	Code           string    `json:"code" bson:"code"`
	CodeHash       string    `json:"code_hash" bson:"code_hash"`
	Status         string    `json:"status" bson:"status"` // pending, in_progress, completed, failed
	Feedback       *Feedback `json:"feedback,omitempty" bson:"feedback,omitempty"`
	ErrorMsg       string    `json:"error,omitempty" bson:"error_msg,omitempty"`
	ClientIdentity string    `json:"-" bson:"client_identity"`
	UserID         string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	CompletedAt    time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	FailedAt       time.Time `json:"failed_at,omitempty" bson:"failed_at,omitempty"`
}

// Feedback is the structured review result returned by the AI provider
type Feedback struct {
	Score       int      `json:"score" bson:"score"`
	Issues      []string `json:"issues" bson:"issues"`
	Suggestions []string `json:"suggestions" bson:"suggestions"`
	Security    []string `json:"security" bson:"security"`
	Performance []string `json:"performance" bson:"performance"`
}

// Submission status constants
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IsTerminal reports whether a status admits no further transitions
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// HashCode computes the deduplication fingerprint for a (language, code) pair.
// The NUL separator keeps ("go", "x") and ("g", "ox") distinct.
func HashCode(language, code string) string {
	h := sha256.Sum256([]byte(language + "\x00" + code))
	return hex.EncodeToString(h[:])
}
