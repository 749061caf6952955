package roast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevinmichaelchen/gitvibe/internal/llm"
)

// DefaultTimeout bounds a completion call when the caller passes none.
const DefaultTimeout = 6 * time.Second

// NoRoast is shown when the service answered but said nothing.
const NoRoast = "No roast available."

// Completer is the completion service as the pipeline sees it.
type Completer interface {
	Complete(ctx context.Context, c llm.Completion) (string, error)
}

// Pipeline issues single-shot roast requests. It holds no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	completer Completer
	logger    *log.Logger
	timeout   time.Duration
	pick      StarterPicker
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets where per-request log lines go. They are discarded by
// default.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTimeout sets the timeout used when RequestRoast gets a non-positive one.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithStarters fixes how the starter line is chosen.
func WithStarters(pick StarterPicker) Option {
	return func(p *Pipeline) { p.pick = pick }
}

// New returns a Pipeline that sends prompts to c.
func New(c Completer, opts ...Option) *Pipeline {
	p := &Pipeline{
		completer: c,
		logger:    log.New(io.Discard, "", 0),
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type completion struct {
	text string
	err  error
}

// RequestRoast runs one roast request. The completion call is bounded by
// timeout (the pipeline default when timeout <= 0). A timeout or a 5xx from
// the service yields a canned Result; failures come back as *Error.
func (p *Pipeline) RequestRoast(ctx context.Context, req Request, timeout time.Duration) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if timeout <= 0 {
		timeout = p.timeout
	}

	id := uuid.NewString()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan completion, 1)
	go func() {
		text, err := p.completer.Complete(callCtx, completionFor(req, Starter(req, p.pick)))
		done <- completion{text: text, err: err}
	}()

	var c completion
	select {
	case c = <-done:
	case <-callCtx.Done():
		// The call may still be unwinding; cancel releases it and the
		// buffered channel lets the goroutine exit.
		c = completion{err: callCtx.Err()}
	}

	out := classify(callCtx, c)
	res, err := policy[out](req, c)

	p.logger.Printf("roast %s %s vibe=%s outcome=%s took=%s", id, req.fullName(), req.Vibe, out, time.Since(start).Round(time.Millisecond))
	if err != nil {
		p.logger.Printf("roast %s failed: %v", id, err)
	}
	return res, err
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeEmpty
	outcomeTimeout
	outcomeServerError
	outcomeClientError
	outcomeTransport
)

func (o outcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeEmpty:
		return "empty"
	case outcomeTimeout:
		return "timeout"
	case outcomeServerError:
		return "server_error"
	case outcomeClientError:
		return "client_error"
	case outcomeTransport:
		return "transport"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func classify(callCtx context.Context, c completion) outcome {
	if c.err == nil {
		if llm.CleanText(c.text) == "" {
			return outcomeEmpty
		}
		return outcomeOK
	}

	if errors.Is(c.err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return outcomeTimeout
	}

	var statusErr *llm.StatusError
	if errors.As(c.err, &statusErr) {
		switch {
		// Rate limiting passes with time, like a dropped connection.
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return outcomeTransport
		case statusErr.StatusCode >= 500:
			return outcomeServerError
		case statusErr.StatusCode >= 400:
			return outcomeClientError
		}
	}
	return outcomeTransport
}

// policy is the single place that decides what each outcome means to the
// caller.
var policy = map[outcome]func(req Request, c completion) (Result, error){
	outcomeOK: func(_ Request, c completion) (Result, error) {
		return Result{Text: llm.CleanText(c.text), AIEnhanced: true}, nil
	},
	outcomeEmpty: func(Request, completion) (Result, error) {
		return Result{Text: NoRoast}, nil
	},
	outcomeTimeout: func(req Request, _ completion) (Result, error) {
		return Result{Text: TimeoutText(req.RepoName)}, nil
	},
	outcomeServerError: func(req Request, _ completion) (Result, error) {
		return Result{Text: UnavailableText(req.RepoName)}, nil
	},
	outcomeClientError: func(_ Request, c completion) (Result, error) {
		detail := c.err.Error()
		var statusErr *llm.StatusError
		if errors.As(c.err, &statusErr) {
			detail = fmt.Sprintf("completion service returned %d: %s", statusErr.StatusCode, strings.TrimSpace(statusErr.Message))
		}
		return Result{}, &Error{Kind: UpstreamRejected, Detail: detail, Err: c.err}
	},
	outcomeTransport: func(_ Request, c completion) (Result, error) {
		return Result{}, &Error{Kind: TransientError, Detail: "roast generator unavailable, try again later", Err: c.err}
	},
}

// TimeoutText is the stand-in roast used when the service is too slow.
func TimeoutText(repoName string) string {
	return fmt.Sprintf("Hmm, %s is so complex it broke our roasting algorithm! (Our AI timed out, but the repo looks cool!)", repoName)
}

// UnavailableText is the stand-in roast used when the service is failing.
func UnavailableText(repoName string) string {
	return fmt.Sprintf("This %s repo has some serious potential. Keep up the good work!", repoName)
}
