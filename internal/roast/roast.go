// Package roast asks a completion service for a short critique of a
// repository and degrades to canned text when the service is slow or down.
package roast

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Vibe selects the roast length.
type Vibe string

const (
	// Quick is the automatic one-liner shown when a repository page loads.
	Quick Vibe = "quick"
	// Detailed is the longer critique the user asks for explicitly.
	Detailed Vibe = "detailed"
)

// ParseVibe accepts the canonical names plus the short/full spelling older
// clients send. An empty string means Quick.
func ParseVibe(s string) (Vibe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quick", "short":
		return Quick, nil
	case "detailed", "full":
		return Detailed, nil
	default:
		return "", &Error{Kind: InvalidRequest, Detail: fmt.Sprintf("unknown vibe %q (want quick or detailed)", s)}
	}
}

// Request identifies the repository to roast and carries the numbers the
// prompt is built from.
type Request struct {
	Owner          string
	RepoName       string
	Vibe           Vibe
	Score          int
	Stars          int
	Issues         int
	LastCommitDays int
}

func (r Request) fullName() string {
	return r.Owner + "/" + r.RepoName
}

func (r Request) validate() error {
	switch {
	case strings.TrimSpace(r.Owner) == "" && strings.TrimSpace(r.RepoName) == "":
		return &Error{Kind: InvalidRequest, Detail: "repository name and owner are required"}
	case strings.TrimSpace(r.Owner) == "":
		return &Error{Kind: InvalidRequest, Detail: "owner is required"}
	case strings.TrimSpace(r.RepoName) == "":
		return &Error{Kind: InvalidRequest, Detail: "repository name is required"}
	}
	if _, ok := vibeSettings[r.Vibe]; !ok {
		return &Error{Kind: InvalidRequest, Detail: fmt.Sprintf("unknown vibe %q", r.Vibe)}
	}
	return nil
}

// Result is a roast the caller can show. AIEnhanced is false when Text is a
// canned stand-in rather than model output.
type Result struct {
	Text       string `json:"roast"`
	AIEnhanced bool   `json:"ai_enhanced"`
}

// Kind classifies why a roast could not be produced.
type Kind int

const (
	// InvalidRequest means the caller sent bad input.
	InvalidRequest Kind = iota + 1
	// UpstreamRejected means the completion service refused the request,
	// usually bad credentials or a bad model name.
	UpstreamRejected
	// TransientError covers network and decoding failures; retrying later
	// may help.
	TransientError
)

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "invalid request"
	case UpstreamRejected:
		return "upstream rejected"
	case TransientError:
		return "transient error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by RequestRoast for every failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of err, if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// HTTPStatus maps a roast failure to the status an HTTP caller should see.
func HTTPStatus(err error) int {
	kind, _ := KindOf(err)
	switch kind {
	case InvalidRequest:
		return http.StatusBadRequest
	case UpstreamRejected:
		return http.StatusBadGateway
	case TransientError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
