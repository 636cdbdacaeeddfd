package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/model"
)

// topIssueCount caps how many issue entries a summary reports
const topIssueCount = 5

// StatsSummary is the aggregate view over stored submissions
type StatsSummary struct {
	Total        int            `json:"total"`
	Completed    int            `json:"completed"`
	Failed       int            `json:"failed"`
	Pending      int            `json:"pending"`
	InProgress   int            `json:"in_progress"`
	AverageScore float64        `json:"average_score"`
	TopIssues    []IssueCount   `json:"top_issues"`
	ByLanguage   map[string]int `json:"by_language"`
}

// IssueCount pairs an issue text with how often it was reported
type IssueCount struct {
	Issue string `json:"issue"`
	Count int    `json:"count"`
}

// StatsAggregator derives metrics from the ReviewStore on demand. Pure
// read path, never touches the processing pipeline.
type StatsAggregator struct {
	store ReviewStore
}

func NewStatsAggregator(store ReviewStore) *StatsAggregator {
	return &StatsAggregator{store: store}
}

// Compute aggregates all submissions matching the filter. An empty result
// set yields a zero summary, not an error.
func (a *StatsAggregator) Compute(ctx context.Context, filter ListFilter) (*StatsSummary, error) {
	subs, err := a.store.List(ctx, filter, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("loading submissions for stats: %w", err)
	}

	summary := &StatsSummary{
		TopIssues:  []IssueCount{},
		ByLanguage: make(map[string]int),
	}

	scoreSum := 0
	scored := 0
	issueCounts := make(map[string]int)

	for _, sub := range subs {
		summary.Total++
		summary.ByLanguage[sub.Language]++

		switch sub.Status {
		case model.StatusCompleted:
			summary.Completed++
		case model.StatusFailed:
			summary.Failed++
		case model.StatusPending:
			summary.Pending++
		case model.StatusInProgress:
			summary.InProgress++
		}

		if sub.Feedback == nil {
			continue
		}
		if sub.Feedback.Score > 0 {
			scoreSum += sub.Feedback.Score
			scored++
		}
		for _, issue := range sub.Feedback.Issues {
			issueCounts[issue]++
		}
	}

	if scored > 0 {
		summary.AverageScore = float64(scoreSum) / float64(scored)
	}

	issues := make([]IssueCount, 0, len(issueCounts))
	for issue, count := range issueCounts {
		issues = append(issues, IssueCount{Issue: issue, Count: count})
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Count != issues[j].Count {
			return issues[i].Count > issues[j].Count
		}
		return issues[i].Issue < issues[j].Issue
	})
	if len(issues) > topIssueCount {
		issues = issues[:topIssueCount]
	}
	summary.TopIssues = issues

	return summary, nil
}
