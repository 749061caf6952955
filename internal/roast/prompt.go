package roast

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/kevinmichaelchen/gitvibe/internal/llm"
	"github.com/kevinmichaelchen/gitvibe/internal/vibescore"
)

const (
	systemPrompt = "You are a sarcastic but insightful GitHub repository critic."
	temperature  = 0.8
)

var vibeSettings = map[Vibe]struct {
	maxTokens   int
	instruction string
}{
	Quick: {
		maxTokens:   60,
		instruction: "Give a short, witty one-line roast of the GitHub repository %s. Keep it under 30 words. Clever, never cruel.",
	},
	Detailed: {
		maxTokens:   180,
		instruction: "Give a medium-length, witty and brutally honest roast of the GitHub repository %s in 3 to 5 sentences. Be creative, but not offensive.",
	},
}

func completionFor(req Request, starter string) llm.Completion {
	settings := vibeSettings[req.Vibe]

	var b strings.Builder
	fmt.Fprintf(&b, settings.instruction, req.fullName())
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Vibe score: %d/100 (%s)\n", req.Score, vibescore.Label(req.Score))
	fmt.Fprintf(&b, "Stars: %d\n", req.Stars)
	fmt.Fprintf(&b, "Open issues: %d\n", req.Issues)
	fmt.Fprintf(&b, "Days since last commit: %d\n", req.LastCommitDays)
	if starter != "" {
		fmt.Fprintf(&b, "Riff on this starter if it helps: %q\n", starter)
	}

	return llm.Completion{
		System:      systemPrompt,
		User:        b.String(),
		MaxTokens:   settings.maxTokens,
		Temperature: temperature,
	}
}

// StarterPicker returns an index in [0, n).
type StarterPicker func(n int) int

var starterTemplates = map[string][]string{
	"inactive": {
		"This repo is so inactive, even the README is collecting dust. {repo_name}? More like {repo_name}...'s been a while, huh?",
		"The last commit here is older than my grandma's fruitcake. {repo_name} needs some serious CPR.",
		"Is this repo a ghost town? Because I'm getting major abandoned amusement park vibes from {repo_name}.",
	},
	"active": {
		"Dang, {repo_name} is popping off! The devs are putting in work like it's a hackathon every day.",
		"Is this repository powered by coffee and existential dread? The commit history suggests yes.",
		"Someone's been busy! {repo_name} has more activity than a beehive in spring.",
	},
	"many_issues": {
		"{repo_name} has more open issues than my ex has problems. Time to close some tabs, buddy.",
		"With {issues_count} open issues, {repo_name} is the drama llama of GitHub repos.",
		"Is this a repository or a support group? {issues_count} open issues is a cry for help.",
	},
	"few_stars": {
		"{repo_name} has {stars_count} stars? Oof, that's rough. Even my cat's Instagram has more followers.",
		"With {stars_count} stars, this repo is like that one kid in group projects who doesn't get any credit.",
		"{repo_name} is the underdog we didn't know we needed. Keep shining, you beautiful, underappreciated codebase.",
	},
}

// starterFamily picks the template family from the repository's numbers.
// Issue drama beats star count, which beats activity.
func starterFamily(req Request) string {
	switch {
	case req.Issues > 100:
		return "many_issues"
	case req.Stars > 0 && req.Stars < 10:
		return "few_stars"
	case req.LastCommitDays > 90:
		return "inactive"
	default:
		return "active"
	}
}

// Starter renders a canned opening line for req using pick to choose within
// the family. A nil pick uses math/rand.
func Starter(req Request, pick StarterPicker) string {
	if pick == nil {
		pick = rand.IntN
	}
	family := starterTemplates[starterFamily(req)]
	i := pick(len(family))
	if i < 0 || i >= len(family) {
		i = 0
	}

	return strings.NewReplacer(
		"{repo_name}", req.RepoName,
		"{owner}", req.Owner,
		"{stars_count}", strconv.Itoa(req.Stars),
		"{issues_count}", strconv.Itoa(req.Issues),
		"{days_since_commit}", strconv.Itoa(req.LastCommitDays),
	).Replace(family[i])
}
