// Package github fetches issues and pull requests of one repository as
// documents for the pipeline.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/issuepilot/issuepilot/internal/core"
	"github.com/issuepilot/issuepilot/internal/logger"
)

// DefaultTimeout is the HTTP request timeout for GitHub calls.
const DefaultTimeout = 30 * time.Second

// Include selects which item kinds become documents.
type Include string

const (
	IncludeIssues Include = "issues"
	IncludePulls  Include = "pulls"
	IncludeBoth   Include = "both"
)

// Config holds the source configuration.
type Config struct {
	Owner   string
	Repo    string
	Token   string
	Include Include // defaults to IncludeIssues
	State   string  // "open", "closed" or "all"; defaults to "all"
}

// Source fetches documents from one GitHub repository.
type Source struct {
	cfg     Config
	gh      *gh.Client
	limiter *RateLimiter
}

// NewSource creates a source authenticated with a static access token.
func NewSource(ctx context.Context, cfg Config) *Source {
	if cfg.Include == "" {
		cfg.Include = IncludeIssues
	}
	if cfg.State == "" {
		cfg.State = "all"
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout

	return &Source{
		cfg:     cfg,
		gh:      gh.NewClient(tc),
		limiter: NewRateLimiter(),
	}
}

// Fetch retrieves the configured items, following pagination to exhaustion.
// Authentication and network failures are returned to the caller as-is;
// there is no retry or partial-result recovery.
func (s *Source) Fetch(ctx context.Context) ([]core.Document, error) {
	var docs []core.Document

	if s.cfg.Include == IncludeIssues || s.cfg.Include == IncludeBoth {
		issueDocs, err := s.fetchIssues(ctx)
		if err != nil {
			return nil, err
		}
		docs = append(docs, issueDocs...)
	}

	if s.cfg.Include == IncludePulls || s.cfg.Include == IncludeBoth {
		pullDocs, err := s.fetchPulls(ctx)
		if err != nil {
			return nil, err
		}
		docs = append(docs, pullDocs...)
	}

	logger.Info("Fetched %d documents from %s/%s", len(docs), s.cfg.Owner, s.cfg.Repo)
	return docs, nil
}

// fetchIssues lists issues (the endpoint also returns PRs; those are
// skipped here and handled by fetchPulls when requested).
func (s *Source) fetchIssues(ctx context.Context) ([]core.Document, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       s.cfg.State,
		Sort:        "updated",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var docs []core.Document
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		issues, resp, err := s.gh.Issues.ListByRepo(ctx, s.cfg.Owner, s.cfg.Repo, opts)
		if err != nil {
			return nil, s.wrapError(err, "list issues")
		}
		s.updateRateLimit(resp)

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}

			comments, err := s.fetchIssueComments(ctx, issue.GetNumber())
			if err != nil {
				return nil, err
			}

			docs = append(docs, documentFromIssue(s.cfg.Owner, s.cfg.Repo, issue, comments))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return docs, nil
}

// fetchIssueComments retrieves all comments for one issue.
func (s *Source) fetchIssueComments(ctx context.Context, number int) ([]*gh.IssueComment, error) {
	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var all []*gh.IssueComment
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		comments, resp, err := s.gh.Issues.ListComments(ctx, s.cfg.Owner, s.cfg.Repo, number, opts)
		if err != nil {
			return nil, s.wrapError(err, "list comments")
		}
		s.updateRateLimit(resp)

		all = append(all, comments...)
		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return all, nil
}

// fetchPulls lists pull requests.
func (s *Source) fetchPulls(ctx context.Context) ([]core.Document, error) {
	opts := &gh.PullRequestListOptions{
		State:       s.cfg.State,
		Sort:        "updated",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var docs []core.Document
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		pulls, resp, err := s.gh.PullRequests.List(ctx, s.cfg.Owner, s.cfg.Repo, opts)
		if err != nil {
			return nil, s.wrapError(err, "list pull requests")
		}
		s.updateRateLimit(resp)

		for _, pull := range pulls {
			docs = append(docs, documentFromPull(s.cfg.Owner, s.cfg.Repo, pull))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return docs, nil
}

func (s *Source) updateRateLimit(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	s.limiter.UpdateFromResponse(resp.Response)
}

// wrapError makes authentication failures recognizable; everything else is
// wrapped with the failing operation.
func (s *Source) wrapError(err error, operation string) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: authentication failed (status %d): %s",
				operation, ghErr.Response.StatusCode, ghErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// documentFromIssue converts an issue plus its comments into one document.
func documentFromIssue(owner, repo string, issue *gh.Issue, comments []*gh.IssueComment) core.Document {
	labels := make([]string, len(issue.Labels))
	for i, l := range issue.Labels {
		labels[i] = l.GetName()
	}

	return core.Document{
		ID:        fmt.Sprintf("%s/%s#%d", owner, repo, issue.GetNumber()),
		Title:     issue.GetTitle(),
		Source:    "github",
		URI:       issue.GetHTMLURL(),
		Text:      issueText(issue, comments),
		CreatedAt: issue.GetCreatedAt().Unix(),
		UpdatedAt: issue.GetUpdatedAt().Unix(),
		Metadata: map[string]interface{}{
			"type":   "issue",
			"owner":  owner,
			"repo":   repo,
			"number": issue.GetNumber(),
			"state":  issue.GetState(),
			"author": issue.GetUser().GetLogin(),
			"labels": labels,
		},
	}
}

// documentFromPull converts a pull request into one document.
func documentFromPull(owner, repo string, pull *gh.PullRequest) core.Document {
	return core.Document{
		ID:        fmt.Sprintf("%s/%s!%d", owner, repo, pull.GetNumber()),
		Title:     pull.GetTitle(),
		Source:    "github",
		URI:       pull.GetHTMLURL(),
		Text:      pullText(pull),
		CreatedAt: pull.GetCreatedAt().Unix(),
		UpdatedAt: pull.GetUpdatedAt().Unix(),
		Metadata: map[string]interface{}{
			"type":   "pull",
			"owner":  owner,
			"repo":   repo,
			"number": pull.GetNumber(),
			"state":  pull.GetState(),
			"author": pull.GetUser().GetLogin(),
		},
	}
}

func issueText(issue *gh.Issue, comments []*gh.IssueComment) string {
	var builder strings.Builder
	builder.WriteString(issue.GetTitle())
	builder.WriteString("\n\n")
	builder.WriteString(issue.GetBody())

	for _, c := range comments {
		builder.WriteString("\n\n")
		builder.WriteString(c.GetUser().GetLogin())
		builder.WriteString(": ")
		builder.WriteString(c.GetBody())
	}

	return builder.String()
}

func pullText(pull *gh.PullRequest) string {
	return pull.GetTitle() + "\n\n" + pull.GetBody()
}
