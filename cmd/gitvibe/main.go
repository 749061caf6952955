package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kevinmichaelchen/gitvibe/internal/api"
	"github.com/kevinmichaelchen/gitvibe/internal/config"
	"github.com/kevinmichaelchen/gitvibe/internal/github"
	"github.com/kevinmichaelchen/gitvibe/internal/llm"
	"github.com/kevinmichaelchen/gitvibe/internal/pipeline"
	"github.com/kevinmichaelchen/gitvibe/internal/roast"
	"github.com/kevinmichaelchen/gitvibe/internal/vibescore"
	"github.com/spf13/cobra"
)

// globals holds the persistent flags.
type globals struct {
	configPath string
	verbose    bool
}

func main() {
	g := &globals{}

	root := &cobra.Command{
		Use:           "gitvibe",
		Short:         "Vibe scores and AI roasts for GitHub repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (overlays the environment)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log to stderr")

	root.AddCommand(serveCmd(g), scoreCmd(g), statsCmd(g), roastCmd(g), inspectCmd(g))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (g *globals) config() (*config.Config, error) {
	if g.configPath != "" {
		return config.LoadFile(g.configPath)
	}
	return config.Load(), nil
}

func (g *globals) logger() *log.Logger {
	if g.verbose {
		return log.New(os.Stderr, "gitvibe: ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// validate reports every configuration problem at once.
func validate(cfg *config.Config) error {
	errs := config.Validate(cfg)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration:\n%w", errors.Join(errs...))
}

func newGitHub(cfg *config.Config, logger *log.Logger) (*github.Client, error) {
	opts := []github.Option{github.WithLogger(logger)}
	if cfg.GitHubAPIURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.GitHubAPIURL))
	}
	return github.NewClient(cfg.GitHubToken, opts...)
}

func newRoaster(ctx context.Context, cfg *config.Config, logger *log.Logger) (*roast.Pipeline, error) {
	client, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return roast.New(client, roast.WithLogger(logger), roast.WithTimeout(cfg.RoastTimeout)), nil
}

func serveCmd(g *globals) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			if err := validate(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := log.New(os.Stderr, "gitvibe: ", log.LstdFlags)
			gh, err := newGitHub(cfg, logger)
			if err != nil {
				return err
			}
			roaster, err := newRoaster(ctx, cfg, logger)
			if err != nil {
				return err
			}

			app := api.NewApp(api.NewHandler(gh, roaster, logger))

			errCh := make(chan error, 1)
			go func() {
				logger.Printf("listening on :%s (completion provider %s)", cfg.Port, cfg.LLMProvider)
				errCh <- app.Listen(":" + cfg.Port)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Println("shutting down")
			return app.ShutdownWithTimeout(10 * time.Second)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")
	return cmd
}

func scoreCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "score owner/repo",
		Short: "Print a repository's vibe score and how it was reached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := github.ParseRepoURL(args[0])
			if err != nil {
				return err
			}
			cfg, err := g.config()
			if err != nil {
				return err
			}
			gh, err := newGitHub(cfg, g.logger())
			if err != nil {
				return err
			}

			repo, err := gh.GetRepo(cmd.Context(), owner, name)
			if err != nil {
				return err
			}

			b := vibescore.Explain(repo.Metrics(), time.Now())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %d/100  %s\n\n", repo.FullName, b.Score, vibescore.Label(b.Score))
			fmt.Fprintf(out, "  base     %+6.1f\n", b.Base)
			fmt.Fprintf(out, "  stars    %+6.1f  (★ %d)\n", b.Stars, repo.Stars)
			fmt.Fprintf(out, "  forks    %+6.1f  (%d)\n", b.Forks, repo.Forks)
			fmt.Fprintf(out, "  recency  %+6.1f  (%.0f days)\n", b.Recency, b.DaysSinceUpdate)
			fmt.Fprintf(out, "  issues   %+6.1f  (%d open)\n", b.Issues, repo.OpenIssues)
			return nil
		},
	}
}

func statsCmd(g *globals) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats owner/repo",
		Short: "Print recent commit activity and open issue and pull request counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := github.ParseRepoURL(args[0])
			if err != nil {
				return err
			}
			cfg, err := g.config()
			if err != nil {
				return err
			}
			gh, err := newGitHub(cfg, g.logger())
			if err != nil {
				return err
			}

			stats, err := gh.GetRepoStats(cmd.Context(), owner, name, days)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := stats.AnalysisPeriod
			fmt.Fprintf(out, "%s/%s  %s to %s (%d days)\n\n", owner, name,
				p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly), p.Days)
			if stats.CommitActivity.Pending {
				fmt.Fprintln(out, "  commits  still being computed by GitHub, try again shortly")
			} else {
				fmt.Fprintf(out, "  commits  %d\n", stats.CommitActivity.TotalCommits)
				for _, w := range stats.CommitActivity.Weeks {
					fmt.Fprintf(out, "    %s  %3d  %v\n", w.Week.Format(time.DateOnly), w.Total, w.Days)
				}
			}
			fmt.Fprintf(out, "  issues   %d open\n", stats.Issues.Open)
			fmt.Fprintf(out, "  PRs      %d open\n", stats.PullRequests.Open)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", github.DefaultStatsDays, "Days of commit activity to include")
	return cmd
}

func roastCmd(g *globals) *cobra.Command {
	var detailed bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "roast owner/repo",
		Short: "Roast a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := github.ParseRepoURL(args[0])
			if err != nil {
				return err
			}
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if err := validate(cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := g.logger()
			gh, err := newGitHub(cfg, logger)
			if err != nil {
				return err
			}
			roaster, err := newRoaster(ctx, cfg, logger)
			if err != nil {
				return err
			}

			repo, err := gh.GetRepo(ctx, owner, name)
			if err != nil {
				return err
			}

			vibe := roast.Quick
			if detailed {
				vibe = roast.Detailed
			}
			now := time.Now()
			res, err := roaster.RequestRoast(ctx, roast.Request{
				Owner:          repo.Owner,
				RepoName:       repo.Name,
				Vibe:           vibe,
				Score:          vibescore.Compute(repo.Metrics(), now),
				Stars:          repo.Stars,
				Issues:         repo.OpenIssues,
				LastCommitDays: vibescore.DaysSince(repo.UpdatedAt, now),
			}, timeout)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			if !res.AIEnhanced {
				logger.Println("roast is a canned fallback")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Longer roast")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Completion timeout (default ROAST_TIMEOUT)")
	return cmd
}

func inspectCmd(g *globals) *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "inspect owner/repo [owner/repo...]",
		Short: "Print metadata, vibe score and roast for one or more repositories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := make([]pipeline.Ref, 0, len(args))
			for _, arg := range args {
				owner, name, err := github.ParseRepoURL(arg)
				if err != nil {
					return err
				}
				refs = append(refs, pipeline.Ref{Owner: owner, Name: name})
			}

			cfg, err := g.config()
			if err != nil {
				return err
			}
			if err := validate(cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := g.logger()
			gh, err := newGitHub(cfg, logger)
			if err != nil {
				return err
			}
			roaster, err := newRoaster(ctx, cfg, logger)
			if err != nil {
				return err
			}

			vibe := roast.Quick
			if detailed {
				vibe = roast.Detailed
			}
			in := &pipeline.Inspector{Repos: gh, Roaster: roaster, Logger: logger}
			results := in.InspectAll(ctx, refs, vibe)

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "%s\n  error: %v\n\n", r.Ref, r.Err)
					continue
				}
				printReport(out, r.Report)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d repositories could not be inspected", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Longer roast")
	return cmd
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "%s  %d/100  %s\n", r.Repo.FullName, r.Score, r.Label)
	if r.Repo.Description != nil {
		fmt.Fprintf(w, "  %s\n", *r.Repo.Description)
	}
	var facts []string
	facts = append(facts, fmt.Sprintf("★ %d", r.Repo.Stars), fmt.Sprintf("forks %d", r.Repo.Forks), fmt.Sprintf("issues %d", r.Repo.OpenIssues))
	if r.Repo.Contributors > 0 {
		facts = append(facts, fmt.Sprintf("contributors %d", r.Repo.Contributors))
	}
	if r.Repo.Language != nil {
		facts = append(facts, *r.Repo.Language)
	}
	if r.Repo.License != nil {
		facts = append(facts, *r.Repo.License)
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(facts, "  "))
	fmt.Fprintf(w, "  updated %d days ago\n", r.DaysSince)

	switch {
	case r.Roast != nil:
		fmt.Fprintf(w, "  roast: %s\n", r.Roast.Text)
	case r.RoastError != "":
		fmt.Fprintf(w, "  roast unavailable: %s\n", r.RoastError)
	}
	fmt.Fprintln(w)
}
