package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevinmichaelchen/gitvibe/internal/github"
	"github.com/kevinmichaelchen/gitvibe/internal/llm"
	"github.com/kevinmichaelchen/gitvibe/internal/models"
	"github.com/kevinmichaelchen/gitvibe/internal/roast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepoSource struct {
	mock.Mock
}

func (m *mockRepoSource) GetRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	args := m.Called(ctx, owner, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Repo), args.Error(1)
}

type stubCompleter struct {
	text string
	err  error
}

func (s stubCompleter) Complete(ctx context.Context, c llm.Completion) (string, error) {
	return s.text, s.err
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func helloWorld() *models.Repo {
	return &models.Repo{
		Owner:      "octo",
		Name:       "hello-world",
		FullName:   "octo/hello-world",
		Stars:      340,
		Forks:      21,
		OpenIssues: 7,
		UpdatedAt:  fixedNow.Add(-3 * 24 * time.Hour),
	}
}

func TestInspector_Inspect(t *testing.T) {
	testCases := []struct {
		name           string
		completer      stubCompleter
		wantRoast      *roast.Result
		wantRoastError string
	}{
		{
			name:      "roast succeeds",
			completer: stubCompleter{text: "Hello, irrelevance."},
			wantRoast: &roast.Result{Text: "Hello, irrelevance.", AIEnhanced: true},
		},
		{
			name:      "service down still yields a roast",
			completer: stubCompleter{err: &llm.StatusError{StatusCode: 503}},
			wantRoast: &roast.Result{Text: roast.UnavailableText("hello-world")},
		},
		{
			name:           "rejected roast is recorded, not fatal",
			completer:      stubCompleter{err: &llm.StatusError{StatusCode: 401, Message: "bad key"}},
			wantRoastError: "upstream rejected: completion service returned 401: bad key",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repos := new(mockRepoSource)
			repos.On("GetRepo", mock.Anything, "octo", "hello-world").Return(helloWorld(), nil)

			in := &Inspector{
				Repos:   repos,
				Roaster: roast.New(tc.completer),
				Now:     func() time.Time { return fixedNow },
			}

			report, err := in.Inspect(context.Background(), "octo", "hello-world", roast.Quick)
			require.NoError(t, err)

			assert.Equal(t, "octo/hello-world", report.Repo.FullName)
			assert.Equal(t, 83, report.Score)
			assert.Equal(t, "Active AF", report.Label)
			assert.Equal(t, 83, report.Breakdown.Score)
			assert.Equal(t, 3, report.DaysSince)
			assert.Equal(t, tc.wantRoast, report.Roast)
			assert.Equal(t, tc.wantRoastError, report.RoastError)
			repos.AssertExpectations(t)
		})
	}
}

func TestInspector_Inspect_NoRoaster(t *testing.T) {
	repos := new(mockRepoSource)
	repos.On("GetRepo", mock.Anything, "octo", "hello-world").Return(helloWorld(), nil)

	in := &Inspector{Repos: repos, Now: func() time.Time { return fixedNow }}
	report, err := in.Inspect(context.Background(), "octo", "hello-world", roast.Quick)

	require.NoError(t, err)
	assert.Nil(t, report.Roast)
	assert.Empty(t, report.RoastError)
	assert.Equal(t, 83, report.Score)
}

func TestInspector_Inspect_LookupFails(t *testing.T) {
	repos := new(mockRepoSource)
	repos.On("GetRepo", mock.Anything, "octo", "missing").Return(nil, github.ErrRepoNotFound)

	in := &Inspector{Repos: repos, Roaster: roast.New(stubCompleter{text: "unused"})}
	report, err := in.Inspect(context.Background(), "octo", "missing", roast.Quick)

	assert.Nil(t, report)
	assert.ErrorIs(t, err, github.ErrRepoNotFound)
	assert.Contains(t, err.Error(), "looking up octo/missing")
}

func TestInspector_InspectAll(t *testing.T) {
	repos := new(mockRepoSource)
	repos.On("GetRepo", mock.Anything, "octo", "hello-world").Return(helloWorld(), nil)
	repos.On("GetRepo", mock.Anything, "octo", "missing").Return(nil, github.ErrRepoNotFound)
	boom := errors.New("connection reset")
	repos.On("GetRepo", mock.Anything, "octo", "flaky").Return(nil, boom)

	in := &Inspector{
		Repos:   repos,
		Roaster: roast.New(stubCompleter{text: "ok"}),
		Now:     func() time.Time { return fixedNow },
	}

	refs := []Ref{
		{Owner: "octo", Name: "missing"},
		{Owner: "octo", Name: "hello-world"},
		{Owner: "octo", Name: "flaky"},
	}
	results := in.InspectAll(context.Background(), refs, roast.Quick)

	require.Len(t, results, 3)
	for i, ref := range refs {
		assert.Equal(t, ref, results[i].Ref)
	}
	assert.ErrorIs(t, results[0].Err, github.ErrRepoNotFound)
	require.NoError(t, results[1].Err)
	assert.Equal(t, 83, results[1].Report.Score)
	assert.ErrorIs(t, results[2].Err, boom)
	repos.AssertExpectations(t)
}
