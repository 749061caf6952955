package api

import (
	"context"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/kevinmichaelchen/gitvibe/internal/github"
	"github.com/kevinmichaelchen/gitvibe/internal/models"
	"github.com/kevinmichaelchen/gitvibe/internal/pipeline"
	"github.com/kevinmichaelchen/gitvibe/internal/roast"
	"github.com/kevinmichaelchen/gitvibe/internal/vibescore"
)

// RepoService is the slice of the GitHub client the handlers use.
type RepoService interface {
	GetRepo(ctx context.Context, owner, name string) (*models.Repo, error)
	SearchRepos(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
	GetRepoStats(ctx context.Context, owner, name string, days int) (*models.RepoStats, error)
}

type Handler struct {
	repos     RepoService
	roaster   *roast.Pipeline
	inspector *pipeline.Inspector
	now       func() time.Time
	logger    *log.Logger
}

func NewHandler(repos RepoService, roaster *roast.Pipeline, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &Handler{
		repos:   repos,
		roaster: roaster,
		now:     time.Now,
		logger:  logger,
	}
	h.inspector = &pipeline.Inspector{
		Repos:   repos,
		Roaster: roaster,
		Now:     func() time.Time { return h.now() },
		Logger:  logger,
	}
	return h
}

// Health reports that the server is up.
func (h *Handler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"message": "gitvibe API is running",
	})
}

// RepoInfo returns repository metadata for ?repo_url= or ?owner=&repo=.
func (h *Handler) RepoInfo(c fiber.Ctx) error {
	owner, name, err := repoFromQuery(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	repo, err := h.repos.GetRepo(c.Context(), owner, name)
	if err != nil {
		return h.lookupError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "data": repo})
}

// VibeScore returns the score, its label and the per-term breakdown.
func (h *Handler) VibeScore(c fiber.Ctx) error {
	owner, name, err := repoFromQuery(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	repo, err := h.repos.GetRepo(c.Context(), owner, name)
	if err != nil {
		return h.lookupError(c, err)
	}

	b := vibescore.Explain(repo.Metrics(), h.now())
	return c.JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"score":     b.Score,
			"label":     vibescore.Label(b.Score),
			"breakdown": b,
		},
	})
}

// RepoStats returns commit activity over the last ?days= (default 30) along
// with open issue and pull request counts.
func (h *Handler) RepoStats(c fiber.Ctx) error {
	owner, name, err := repoFromQuery(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	days := github.DefaultStatsDays
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "query parameter 'days' must be an integer"})
		}
		days = n
	}

	stats, err := h.repos.GetRepoStats(c.Context(), owner, name, days)
	if err != nil {
		return h.lookupError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "data": stats})
}

// GenerateRoast roasts a repository from the numbers in the query string.
// It does not call GitHub.
func (h *Handler) GenerateRoast(c fiber.Ctx) error {
	vibe, err := roast.ParseVibe(c.Query("vibe"))
	if err != nil {
		return c.Status(roast.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	nums := map[string]int{"score": 50, "stars": 0, "issues": 0, "last_commit_days": 0}
	for key := range nums {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "query parameter '" + key + "' must be an integer"})
		}
		nums[key] = n
	}

	res, err := h.roaster.RequestRoast(c.Context(), roast.Request{
		Owner:          c.Query("owner"),
		RepoName:       c.Query("repo_name"),
		Vibe:           vibe,
		Score:          nums["score"],
		Stars:          nums["stars"],
		Issues:         nums["issues"],
		LastCommitDays: nums["last_commit_days"],
	}, 0)
	if err != nil {
		return c.Status(roast.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"status":      "success",
		"roast":       res.Text,
		"ai_enhanced": res.AIEnhanced,
	})
}

// SearchRepositories backs the search-as-you-type box.
func (h *Handler) SearchRepositories(c fiber.Ctx) error {
	limit := github.DefaultSearchLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "query parameter 'limit' must be an integer"})
		}
		limit = n
	}

	hits, err := h.repos.SearchRepos(c.Context(), c.Query("query"), limit)
	if err != nil {
		h.logger.Printf("search failed: %v", err)
		return c.Status(502).JSON(fiber.Map{"error": "failed to search GitHub: " + err.Error()})
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(hits),
		"items":  hits,
	})
}

// RepoReport returns the full detail view: metadata, score and roast.
func (h *Handler) RepoReport(c fiber.Ctx) error {
	vibe, err := roast.ParseVibe(c.Query("vibe"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	report, err := h.inspector.Inspect(c.Context(), c.Params("owner"), c.Params("repo"), vibe)
	if err != nil {
		return h.lookupError(c, err)
	}
	return c.JSON(report)
}

func repoFromQuery(c fiber.Ctx) (owner, name string, err error) {
	if u := strings.TrimSpace(c.Query("repo_url")); u != "" {
		return github.ParseRepoURL(u)
	}
	owner, name = strings.TrimSpace(c.Query("owner")), strings.TrimSpace(c.Query("repo"))
	if owner == "" || name == "" {
		return "", "", errors.New("either repo_url or both owner and repo are required")
	}
	return owner, name, nil
}

func (h *Handler) lookupError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, github.ErrRepoNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "repository not found"})
	case errors.Is(err, github.ErrInvalidRepo):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	default:
		h.logger.Printf("GitHub lookup failed: %v", err)
		return c.Status(502).JSON(fiber.Map{"error": "failed to fetch repository from GitHub: " + err.Error()})
	}
}
