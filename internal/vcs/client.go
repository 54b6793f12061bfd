// Package vcs connects pull request events to the Review Monk: it fetches
// diffs from GitHub, renders review comments and posts them back.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"codesherpa/internal/logging"

	"github.com/google/go-github/v68/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrInvalidRepo is returned for repository names not in owner/name form
var ErrInvalidRepo = errors.New("repository must be in owner/name form")

// Client wraps the GitHub REST API calls the review pipeline needs
type Client struct {
	gh  *github.Client
	log *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client) error

// WithBaseURL points the client at a different API root, such as GitHub
// Enterprise or a test server
func WithBaseURL(base string) ClientOption {
	return func(c *Client) error {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		c.gh.BaseURL = u
		return nil
	}
}

// NewClient creates a GitHub client. An empty token makes unauthenticated
// requests, which only work against public repositories.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	var gh *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		gh = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		gh = github.NewClient(nil)
	}

	c := &Client{gh: gh, log: logging.Named("github")}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// GetPRDiff returns the raw unified diff of a pull request
func (c *Client) GetPRDiff(ctx context.Context, repoFullName string, number int) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	diff, _, err := c.gh.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		c.log.Error("failed to fetch pull request diff",
			zap.String("repo", repoFullName),
			zap.Int("number", number),
			zap.Error(err),
		)
		return "", fmt.Errorf("fetch diff for %s#%d: %w", repoFullName, number, err)
	}
	return diff, nil
}

// PostComment adds a conversation comment to a pull request
func (c *Client) PostComment(ctx context.Context, repoFullName string, number int, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, _, err = c.gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: github.Ptr(body)})
	if err != nil {
		c.log.Error("failed to post pull request comment",
			zap.String("repo", repoFullName),
			zap.Int("number", number),
			zap.Error(err),
		)
		return fmt.Errorf("post comment on %s#%d: %w", repoFullName, number, err)
	}
	return nil
}

func splitRepo(fullName string) (string, string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepo, fullName)
	}
	return owner, repo, nil
}
