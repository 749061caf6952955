package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
)

// NewApp builds the fiber app with middleware and every route registered.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "gitvibe API",
	})
	app.Use(recoverer.New())
	app.Use(cors.New())

	SetupRoutes(app, h)
	return app
}

func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")

	gh := v1.Group("/github")
	gh.Get("/repo-info", h.RepoInfo)
	gh.Get("/vibe-score", h.VibeScore)
	gh.Get("/repo-stats", h.RepoStats)

	v1.Get("/roast/generate", h.GenerateRoast)
	v1.Get("/search/repositories", h.SearchRepositories)

	v1.Get("/repos/:owner/:repo", h.RepoReport)
}
