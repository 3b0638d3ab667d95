package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// newTestSource points the client at a fake API server and disables the
// proactive throttle so tests run at full speed.
func newTestSource(t *testing.T, serverURL string, cfg Config) *Source {
	t.Helper()

	s := NewSource(context.Background(), cfg)

	base, err := url.Parse(serverURL + "/")
	require.NoError(t, err)
	s.gh.BaseURL = base
	s.limiter.bucket = rate.NewLimiter(rate.Inf, 1)

	return s
}

func TestDocumentFromIssue(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)

	issue := &gh.Issue{
		Number:    gh.Ptr(42),
		Title:     gh.Ptr("Crash when config file is missing"),
		Body:      gh.Ptr("Startup panics if config.toml does not exist."),
		State:     gh.Ptr("open"),
		HTMLURL:   gh.Ptr("https://github.com/acme/widget/issues/42"),
		User:      &gh.User{Login: gh.Ptr("alice")},
		CreatedAt: &gh.Timestamp{Time: created},
		UpdatedAt: &gh.Timestamp{Time: updated},
		Labels: []*gh.Label{
			{Name: gh.Ptr("bug")},
			{Name: gh.Ptr("p1")},
		},
	}
	comments := []*gh.IssueComment{
		{User: &gh.User{Login: gh.Ptr("bob")}, Body: gh.Ptr("Reproduced on main.")},
	}

	doc := documentFromIssue("acme", "widget", issue, comments)

	assert.Equal(t, "acme/widget#42", doc.ID)
	assert.Equal(t, "Crash when config file is missing", doc.Title)
	assert.Equal(t, "github", doc.Source)
	assert.Equal(t, "https://github.com/acme/widget/issues/42", doc.URI)
	assert.Equal(t, created.Unix(), doc.CreatedAt)
	assert.Equal(t, updated.Unix(), doc.UpdatedAt)

	assert.Contains(t, doc.Text, "Crash when config file is missing")
	assert.Contains(t, doc.Text, "Startup panics if config.toml does not exist.")
	assert.Contains(t, doc.Text, "bob: Reproduced on main.")

	assert.Equal(t, "issue", doc.Metadata["type"])
	assert.Equal(t, 42, doc.Metadata["number"])
	assert.Equal(t, "alice", doc.Metadata["author"])
	assert.Equal(t, []string{"bug", "p1"}, doc.Metadata["labels"])
}

func TestDocumentFromPull(t *testing.T) {
	pull := &gh.PullRequest{
		Number:  gh.Ptr(7),
		Title:   gh.Ptr("Fix startup crash"),
		Body:    gh.Ptr("Handle missing config gracefully."),
		State:   gh.Ptr("closed"),
		HTMLURL: gh.Ptr("https://github.com/acme/widget/pull/7"),
		User:    &gh.User{Login: gh.Ptr("carol")},
	}

	doc := documentFromPull("acme", "widget", pull)

	assert.Equal(t, "acme/widget!7", doc.ID)
	assert.Equal(t, "Fix startup crash", doc.Title)
	assert.Contains(t, doc.Text, "Fix startup crash")
	assert.Contains(t, doc.Text, "Handle missing config gracefully.")
	assert.Equal(t, "pull", doc.Metadata["type"])
}

func TestIssueText_NoComments(t *testing.T) {
	issue := &gh.Issue{
		Title: gh.Ptr("Title only"),
		Body:  gh.Ptr("Body text."),
	}

	text := issueText(issue, nil)
	assert.Equal(t, "Title only\n\nBody text.", text)
}

func TestNewSource_Defaults(t *testing.T) {
	s := NewSource(context.Background(), Config{Owner: "acme", Repo: "widget", Token: "tok"})

	require.NotNil(t, s)
	assert.Equal(t, IncludeIssues, s.cfg.Include)
	assert.Equal(t, "all", s.cfg.State)
}

func TestFetch_FollowsPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/issues", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4998")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"number":2,"title":"second","body":"page two","state":"open"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(
			`<http://%s/repos/acme/widget/issues?page=2>; rel="next", <http://%s/repos/acme/widget/issues?page=2>; rel="last"`,
			r.Host, r.Host))
		fmt.Fprint(w, `[{"number":1,"title":"first","body":"page one","state":"open"}]`)
	})
	mux.HandleFunc("/repos/acme/widget/issues/1/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"user":{"login":"bob"},"body":"still happens"}]`)
	})
	mux.HandleFunc("/repos/acme/widget/issues/2/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestSource(t, server.URL, Config{Owner: "acme", Repo: "widget", Token: "tok"})

	docs, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2, "both pages become documents")

	assert.Equal(t, "acme/widget#1", docs[0].ID)
	assert.Contains(t, docs[0].Text, "bob: still happens")
	assert.Equal(t, "acme/widget#2", docs[1].ID)

	assert.Equal(t, 4998, s.limiter.Remaining(), "quota headers are tracked")
}

func TestFetch_CommentFailureIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"number":1,"title":"first","body":"body","state":"open"}]`)
	})
	mux.HandleFunc("/repos/acme/widget/issues/1/comments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestSource(t, server.URL, Config{Owner: "acme", Repo: "widget", Token: "expired"})

	docs, err := s.Fetch(context.Background())
	require.Error(t, err, "an issue must not be indexed without its comments")
	assert.Nil(t, docs)
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestWrapError_MapsAuthFailures(t *testing.T) {
	s := NewSource(context.Background(), Config{Owner: "acme", Repo: "widget", Token: "tok"})

	ghErr := &gh.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusUnauthorized},
		Message:  "Bad credentials",
	}

	err := s.wrapError(ghErr, "list issues")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
	assert.Contains(t, err.Error(), "Bad credentials")

	plain := s.wrapError(fmt.Errorf("connection reset"), "list issues")
	assert.Contains(t, plain.Error(), "list issues: connection reset")
}
