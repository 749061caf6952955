package models

import (
	"time"

	"github.com/kevinmichaelchen/gitvibe/internal/vibescore"
)

type Repo struct {
	Owner        string    `json:"owner"`
	Name         string    `json:"name"`
	FullName     string    `json:"full_name"`
	Description  *string   `json:"description"`
	HTMLURL      string    `json:"html_url"`
	Language     *string   `json:"language"`
	License      *string   `json:"license"`
	Stars        int       `json:"stargazers_count"`
	Forks        int       `json:"forks_count"`
	OpenIssues   int       `json:"open_issues_count"`
	Watchers     int       `json:"watchers_count"`
	Subscribers  int       `json:"subscribers_count"`
	// Contributors is best effort; GitHub refuses to count them for very
	// large repositories, leaving it 0.
	Contributors int       `json:"contributors_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	PushedAt     time.Time `json:"pushed_at"`
}

// Metrics projects the fields the vibe score is computed from.
func (r Repo) Metrics() vibescore.Metrics {
	return vibescore.Metrics{
		Stars:      r.Stars,
		Forks:      r.Forks,
		OpenIssues: r.OpenIssues,
		UpdatedAt:  r.UpdatedAt,
	}
}

type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// SearchHit is one row of a repository search.
type SearchHit struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	Description *string `json:"description"`
	HTMLURL     string  `json:"html_url"`
	Stars       int     `json:"stargazers_count"`
	Forks       int     `json:"forks_count"`
	Language    *string `json:"language"`
	Owner       Owner   `json:"owner"`
}

// RepoStats is recent activity for one repository.
type RepoStats struct {
	CommitActivity CommitActivity `json:"commit_activity"`
	Issues         OpenCount      `json:"issues"`
	PullRequests   OpenCount      `json:"pull_requests"`
	AnalysisPeriod Period         `json:"analysis_period"`
}

type CommitActivity struct {
	TotalCommits int     `json:"total_commits"`
	DailyCommits [][]int `json:"daily_commits"`
	Weeks        []Week  `json:"weeks"`
	// Pending is set while GitHub is still computing the statistics. Asking
	// again a few seconds later usually succeeds.
	Pending bool `json:"pending,omitempty"`
}

// Week is one week of commits starting on Sunday; Days runs Sunday first.
type Week struct {
	Week  time.Time `json:"week"`
	Days  []int     `json:"days"`
	Total int       `json:"total"`
}

type OpenCount struct {
	Open int `json:"open"`
}

type Period struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int       `json:"days"`
}
