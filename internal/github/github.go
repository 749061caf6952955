// Package github looks up repository metadata over the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/kevinmichaelchen/gitvibe/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRepoNotFound = errors.New("repository not found")
	ErrInvalidRepo  = errors.New("invalid repository reference")
)

const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 20

	DefaultStatsDays = 30
	// GitHub's commit activity covers the last 52 weeks.
	MaxStatsDays = 364
)

// Client is a thin wrapper around the go-github REST client.
type Client struct {
	rest   *github.Client
	logger *log.Logger
	now    func() time.Time
}

type options struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

type Option func(*options)

// WithBaseURL points the client at a GitHub Enterprise API or a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewClient builds a client. An empty token gives unauthenticated access
// with GitHub's lower rate limits.
func NewClient(token string, opts ...Option) (*Client, error) {
	o := options{logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if token != "" {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		httpClient = &http.Client{
			Timeout: httpClient.Timeout,
			Transport: &oauth2.Transport{
				Base:   base,
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			},
		}
	}

	rest := github.NewClient(httpClient)
	if o.baseURL != "" {
		u := o.baseURL
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub API URL: %w", err)
		}
		rest.BaseURL = parsed
	}

	return &Client{rest: rest, logger: o.logger, now: time.Now}, nil
}

// GetRepo fetches one repository. A missing (or private) repository gives
// ErrRepoNotFound.
func (c *Client) GetRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: owner and name are required", ErrInvalidRepo)
	}

	c.logger.Printf("fetching repo %s/%s", owner, name)
	r, _, err := c.rest.Repositories.Get(ctx, owner, name)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrRepoNotFound, owner, name)
		}
		return nil, fmt.Errorf("fetching repo %s/%s: %w", owner, name, err)
	}

	repo := repoFromREST(r)
	repo.Contributors = c.countContributors(ctx, owner, name)
	return &repo, nil
}

// countContributors asks for one contributor per page and reads the count
// off the last-page link. Failures are logged and count as 0.
func (c *Client) countContributors(ctx context.Context, owner, name string) int {
	list, resp, err := c.rest.Repositories.ListContributors(ctx, owner, name, &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		c.logger.Printf("WARN: counting contributors of %s/%s: %v", owner, name, err)
		return 0
	}
	if resp != nil && resp.LastPage > 0 {
		return resp.LastPage
	}
	return len(list)
}

// GetRepoStats summarizes the last days of commit activity along with open
// issue and pull request counts. days outside [1, 364] falls back to 30 or
// is capped.
func (c *Client) GetRepoStats(ctx context.Context, owner, name string, days int) (*models.RepoStats, error) {
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: owner and name are required", ErrInvalidRepo)
	}
	switch {
	case days <= 0:
		days = DefaultStatsDays
	case days > MaxStatsDays:
		days = MaxStatsDays
	}

	now := c.now().UTC()
	stats := &models.RepoStats{
		AnalysisPeriod: models.Period{
			StartDate: now.AddDate(0, 0, -days),
			EndDate:   now,
			Days:      days,
		},
	}

	c.logger.Printf("fetching stats for %s/%s over %d days", owner, name, days)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		weeks, _, err := c.rest.Repositories.ListCommitActivity(gCtx, owner, name)
		var accepted *github.AcceptedError
		switch {
		case errors.As(err, &accepted):
			stats.CommitActivity = models.CommitActivity{Pending: true, DailyCommits: [][]int{}, Weeks: []models.Week{}}
			return nil
		case err != nil:
			return fmt.Errorf("fetching commit activity: %w", err)
		}
		stats.CommitActivity = commitActivitySince(weeks, stats.AnalysisPeriod.StartDate)
		return nil
	})
	g.Go(func() error {
		n, err := c.countOpen(gCtx, owner, name, "issue")
		stats.Issues.Open = n
		return err
	})
	g.Go(func() error {
		n, err := c.countOpen(gCtx, owner, name, "pr")
		stats.PullRequests.Open = n
		return err
	})

	if err := g.Wait(); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrRepoNotFound, owner, name)
		}
		return nil, fmt.Errorf("fetching stats for %s/%s: %w", owner, name, err)
	}
	return stats, nil
}

// countOpen returns the number of open issues or pull requests (kind is
// "issue" or "pr") via the search API.
func (c *Client) countOpen(ctx context.Context, owner, name, kind string) (int, error) {
	q := fmt.Sprintf("repo:%s/%s type:%s state:open", owner, name, kind)
	result, _, err := c.rest.Search.Issues(ctx, q, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("counting open %ss: %w", kind, err)
	}
	return result.GetTotal(), nil
}

// commitActivitySince keeps the weeks starting on or after start.
func commitActivitySince(weeks []*github.WeeklyCommitActivity, start time.Time) models.CommitActivity {
	activity := models.CommitActivity{DailyCommits: [][]int{}, Weeks: []models.Week{}}
	for _, w := range weeks {
		week := w.GetWeek().Time.UTC()
		if week.Before(start) {
			continue
		}
		days := w.Days
		if days == nil {
			days = []int{}
		}
		activity.TotalCommits += w.GetTotal()
		activity.DailyCommits = append(activity.DailyCommits, days)
		activity.Weeks = append(activity.Weeks, models.Week{Week: week, Days: days, Total: w.GetTotal()})
	}
	return activity
}

// SearchRepos returns up to limit repositories matching query, most starred
// first. A blank query returns no hits without calling GitHub.
func (c *Client) SearchRepos(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.SearchHit{}, nil
	}
	limit = clampLimit(limit)

	c.logger.Printf("searching repos q=%q limit=%d", query, limit)
	result, _, err := c.rest.Search.Repositories(ctx, query, &github.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, fmt.Errorf("searching repos: %w", err)
	}

	hits := make([]models.SearchHit, 0, min(limit, len(result.Repositories)))
	for _, r := range result.Repositories {
		if len(hits) == limit {
			break
		}
		hits = append(hits, hitFromREST(r))
	}
	return hits, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSearchLimit
	case limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return limit
	}
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

func repoFromREST(r *github.Repository) models.Repo {
	repo := models.Repo{
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Description: r.Description,
		HTMLURL:     r.GetHTMLURL(),
		Language:    r.Language,
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		OpenIssues:  r.GetOpenIssuesCount(),
		Watchers:    r.GetWatchersCount(),
		Subscribers: r.GetSubscribersCount(),
		CreatedAt:   r.GetCreatedAt().Time,
		UpdatedAt:   r.GetUpdatedAt().Time,
		PushedAt:    r.GetPushedAt().Time,
	}
	if r.License != nil && r.License.GetName() != "" {
		name := r.License.GetName()
		repo.License = &name
	}
	if repo.FullName == "" {
		repo.FullName = repo.Owner + "/" + repo.Name
	}
	return repo
}

func hitFromREST(r *github.Repository) models.SearchHit {
	return models.SearchHit{
		ID:          r.GetID(),
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Description: r.Description,
		HTMLURL:     r.GetHTMLURL(),
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		Language:    r.Language,
		Owner: models.Owner{
			Login:     r.GetOwner().GetLogin(),
			AvatarURL: r.GetOwner().GetAvatarURL(),
		},
	}
}
