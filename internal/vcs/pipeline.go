package vcs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codesherpa/internal/agents"
	"codesherpa/internal/logging"
	"codesherpa/internal/metrics"

	"go.uber.org/zap"
)

// Pull request review outcomes, recorded as metrics
const (
	OutcomePosted    = "posted"
	OutcomeEmptyDiff = "empty_diff"
	OutcomeFailed    = "failed"
)

// PullRequests is the subset of the GitHub API the pipeline uses
type PullRequests interface {
	GetPRDiff(ctx context.Context, repoFullName string, number int) (string, error)
	PostComment(ctx context.Context, repoFullName string, number int, body string) error
}

// Reviewer produces a structured review of a diff. *agents.ReviewAgent satisfies it.
type Reviewer interface {
	Review(ctx context.Context, title, diff, sessionID string) (*agents.ReviewResult, error)
}

// Archiver stores a finished review document and returns its location
type Archiver interface {
	Archive(ctx context.Context, repoFullName string, number int, document interface{}) (string, error)
}

// ArchivedReview is the document written to the review archive
type ArchivedReview struct {
	Repository string               `json:"repository"`
	Number     int                  `json:"number"`
	Title      string               `json:"title"`
	Review     *agents.ReviewResult `json:"review"`
	ReviewedAt time.Time            `json:"reviewed_at"`
}

// Pipeline fetches a pull request diff, reviews it, comments and archives
type Pipeline struct {
	prs      PullRequests
	reviewer Reviewer
	archiver Archiver
	now      func() time.Time
	log      *zap.Logger
}

// NewPipeline wires a review pipeline. archiver may be nil.
func NewPipeline(prs PullRequests, reviewer Reviewer, archiver Archiver) *Pipeline {
	return &Pipeline{
		prs:      prs,
		reviewer: reviewer,
		archiver: archiver,
		now:      time.Now,
		log:      logging.Named("review_pipeline"),
	}
}

// ReviewPullRequest reviews one pull request end to end. Archive failures are
// logged and do not fail the review.
func (p *Pipeline) ReviewPullRequest(ctx context.Context, repoFullName string, number int, title string) error {
	log := p.log.With(zap.String("repo", repoFullName), zap.Int("number", number))

	diff, err := p.prs.GetPRDiff(ctx, repoFullName, number)
	if err != nil {
		metrics.Get().RecordPRReview(OutcomeFailed)
		return err
	}
	if strings.TrimSpace(diff) == "" {
		log.Info("pull request has no diff, skipping review")
		metrics.Get().RecordPRReview(OutcomeEmptyDiff)
		return nil
	}

	sessionID := fmt.Sprintf("github_%s_%d", repoFullName, number)
	review, err := p.reviewer.Review(ctx, title, diff, sessionID)
	if err != nil {
		metrics.Get().RecordPRReview(OutcomeFailed)
		return fmt.Errorf("review %s#%d: %w", repoFullName, number, err)
	}

	if err := p.prs.PostComment(ctx, repoFullName, number, RenderComment(title, review)); err != nil {
		metrics.Get().RecordPRReview(OutcomeFailed)
		return err
	}
	metrics.Get().RecordPRReview(OutcomePosted)
	log.Info("posted pull request review",
		zap.Int("findings", len(review.Findings)),
		zap.Int("quality_score", review.QualityScore),
	)

	if p.archiver != nil {
		location, err := p.archiver.Archive(ctx, repoFullName, number, ArchivedReview{
			Repository: repoFullName,
			Number:     number,
			Title:      title,
			Review:     review,
			ReviewedAt: p.now().UTC(),
		})
		if err != nil {
			log.Warn("failed to archive review", zap.Error(err))
		} else if location != "" {
			log.Debug("archived review", zap.String("location", location))
		}
	}
	return nil
}
