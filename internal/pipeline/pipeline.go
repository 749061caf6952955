package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/kevinmichaelchen/gitvibe/internal/models"
	"github.com/kevinmichaelchen/gitvibe/internal/roast"
	"github.com/kevinmichaelchen/gitvibe/internal/vibescore"
	"golang.org/x/sync/errgroup"
)

// RepoSource looks repositories up by owner and name.
type RepoSource interface {
	GetRepo(ctx context.Context, owner, name string) (*models.Repo, error)
}

// Report is everything the repository detail view shows.
type Report struct {
	Repo       models.Repo         `json:"repo"`
	Score      int                 `json:"score"`
	Label      string              `json:"label"`
	Breakdown  vibescore.Breakdown `json:"breakdown"`
	DaysSince  int                 `json:"days_since_update"`
	Roast      *roast.Result       `json:"roast,omitempty"`
	RoastError string              `json:"roast_error,omitempty"`
}

// Inspector builds Reports. Roaster may be nil, in which case reports carry
// no roast.
type Inspector struct {
	Repos   RepoSource
	Roaster *roast.Pipeline
	Now     func() time.Time
	Logger  *log.Logger
}

func (in *Inspector) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

func (in *Inspector) logger() *log.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return log.New(io.Discard, "", 0)
}

// Inspect fetches the repository, then scores and roasts it concurrently.
// A failed roast is recorded on the report; a failed lookup fails the call.
func (in *Inspector) Inspect(ctx context.Context, owner, name string, vibe roast.Vibe) (*Report, error) {
	repo, err := in.Repos.GetRepo(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("looking up %s/%s: %w", owner, name, err)
	}

	now := in.now()
	report := &Report{Repo: *repo}

	var g errgroup.Group
	g.Go(func() error {
		report.Breakdown = vibescore.Explain(repo.Metrics(), now)
		report.Score = report.Breakdown.Score
		report.Label = vibescore.Label(report.Score)
		report.DaysSince = vibescore.DaysSince(repo.UpdatedAt, now)
		return nil
	})

	if in.Roaster != nil {
		g.Go(func() error {
			// The prompt carries the score, so compute it here rather than
			// wait on the other goroutine.
			score := vibescore.Compute(repo.Metrics(), now)
			res, err := in.Roaster.RequestRoast(ctx, roast.Request{
				Owner:          repo.Owner,
				RepoName:       repo.Name,
				Vibe:           vibe,
				Score:          score,
				Stars:          repo.Stars,
				Issues:         repo.OpenIssues,
				LastCommitDays: vibescore.DaysSince(repo.UpdatedAt, now),
			}, 0)
			if err != nil {
				in.logger().Printf("WARN: roasting %s: %v", repo.FullName, err)
				report.RoastError = err.Error()
				return nil
			}
			report.Roast = &res
			return nil
		})
	}

	_ = g.Wait()
	return report, nil
}

// Ref names one repository.
type Ref struct {
	Owner string
	Name  string
}

func (r Ref) String() string { return r.Owner + "/" + r.Name }

// Result pairs a Ref with its report or lookup error.
type Result struct {
	Ref    Ref
	Report *Report
	Err    error
}

const defaultConcurrency = 5

// InspectAll inspects every ref with at most five lookups in flight. Results
// come back in input order; one failure does not stop the others.
func (in *Inspector) InspectAll(ctx context.Context, refs []Ref, vibe roast.Vibe) []Result {
	results := make([]Result, len(refs))
	var done atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency)

	for i, ref := range refs {
		g.Go(func() error {
			report, err := in.Inspect(gCtx, ref.Owner, ref.Name, vibe)
			results[i] = Result{Ref: ref, Report: report, Err: err}
			if err != nil {
				in.logger().Printf("WARN: %v", err)
				return nil // continue with other repos
			}

			n := done.Add(1)
			in.logger().Printf("inspected %d/%d (%s)", n, len(refs), ref)
			return nil
		})
	}

	_ = g.Wait()
	return results
}
