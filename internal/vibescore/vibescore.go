// Package vibescore turns a repository's public statistics into a 0-100
// "vibe score".
package vibescore

import (
	"math"
	"time"
)

// Metrics is the snapshot the score is computed from.
type Metrics struct {
	Stars      int       `json:"stargazers_count"`
	Forks      int       `json:"forks_count"`
	OpenIssues int       `json:"open_issues_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	baseScore = 50.0

	maxStarPoints   = 30.0
	starsForMax     = 1000.0
	maxForkPoints   = 20.0
	forksForMax     = 100.0
	maxRecency      = 20.0
	recencyPerMonth = 2.0
	maxIssuePenalty = 20.0
	issuesForMax    = 100.0

	daysPerMonth = 30.0
)

// Breakdown holds each term of the score before rounding.
type Breakdown struct {
	Base            float64 `json:"base"`
	Stars           float64 `json:"stars"`
	Forks           float64 `json:"forks"`
	Recency         float64 `json:"recency"`
	Issues          float64 `json:"issues"`
	DaysSinceUpdate float64 `json:"days_since_update"`
	Score           int     `json:"score"`
}

// Compute returns the vibe score for m evaluated at now.
func Compute(m Metrics, now time.Time) int {
	return Explain(m, now).Score
}

// Explain is Compute with the individual contributions exposed.
func Explain(m Metrics, now time.Time) Breakdown {
	days := now.Sub(m.UpdatedAt).Hours() / 24
	if days < 0 {
		days = 0
	}

	b := Breakdown{
		Base:            baseScore,
		Stars:           math.Min(maxStarPoints, nonNeg(m.Stars)/starsForMax*maxStarPoints),
		Forks:           math.Min(maxForkPoints, nonNeg(m.Forks)/forksForMax*maxForkPoints),
		Recency:         math.Max(0, maxRecency-(days/daysPerMonth)*recencyPerMonth),
		Issues:          -math.Min(maxIssuePenalty, nonNeg(m.OpenIssues)/issuesForMax*maxIssuePenalty),
		DaysSinceUpdate: days,
	}

	total := b.Base + b.Stars + b.Forks + b.Recency + b.Issues
	b.Score = clamp(int(math.Floor(total+0.5)), 0, 100)
	return b
}

// Label names the tier a score falls in.
func Label(score int) string {
	switch {
	case score >= 80:
		return "Active AF"
	case score >= 60:
		return "Peacefully Maintained"
	case score >= 40:
		return "Mid"
	case score >= 20:
		return "High Drama Zone"
	default:
		return "Dead on Arrival"
	}
}

// DaysSince returns whole days elapsed between t and now, never negative.
func DaysSince(t, now time.Time) int {
	if t.IsZero() || now.Before(t) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

func nonNeg(n int) float64 {
	if n < 0 {
		return 0
	}
	return float64(n)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
