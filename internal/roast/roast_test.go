package roast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevinmichaelchen/gitvibe/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter returns a canned answer, optionally after a delay. It
// records the last completion it was asked for.
type fakeCompleter struct {
	text        string
	err         error
	delay       time.Duration
	ignoreCtx   bool
	calls       atomic.Int32
	mu          sync.Mutex
	lastRequest llm.Completion
}

func (f *fakeCompleter) Complete(ctx context.Context, c llm.Completion) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastRequest = c
	f.mu.Unlock()

	if f.delay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return "", fmt.Errorf("chat completion: %w", ctx.Err())
			}
		}
	}
	return f.text, f.err
}

func (f *fakeCompleter) last() llm.Completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRequest
}

func firstStarter(int) int { return 0 }

func sampleRequest() Request {
	return Request{
		Owner:          "octo",
		RepoName:       "hello-world",
		Vibe:           Quick,
		Score:          72,
		Stars:          340,
		Issues:         12,
		LastCommitDays: 3,
	}
}

func newTestPipeline(c Completer) *Pipeline {
	return New(c, WithStarters(firstStarter))
}

func TestRequestRoast_Outcomes(t *testing.T) {
	testCases := []struct {
		name      string
		completer *fakeCompleter
		want      Result
		wantKind  Kind
	}{
		{
			name:      "model text is returned cleaned and enhanced",
			completer: &fakeCompleter{text: "  \"340 stars and still says hello world.\"  "},
			want:      Result{Text: "340 stars and still says hello world.", AIEnhanced: true},
		},
		{
			name:      "empty content becomes the no-roast placeholder",
			completer: &fakeCompleter{text: ""},
			want:      Result{Text: NoRoast},
		},
		{
			name:      "whitespace content becomes the no-roast placeholder",
			completer: &fakeCompleter{text: " \n\t "},
			want:      Result{Text: NoRoast},
		},
		{
			name:      "server error degrades to the encouraging fallback",
			completer: &fakeCompleter{err: &llm.StatusError{StatusCode: 503, Message: "overloaded"}},
			want:      Result{Text: UnavailableText("hello-world")},
		},
		{
			name:      "500 degrades too",
			completer: &fakeCompleter{err: fmt.Errorf("wrapped: %w", &llm.StatusError{StatusCode: 500})},
			want:      Result{Text: UnavailableText("hello-world")},
		},
		{
			name:      "deadline from the transport degrades to the timeout text",
			completer: &fakeCompleter{err: fmt.Errorf("chat completion: %w", context.DeadlineExceeded)},
			want:      Result{Text: TimeoutText("hello-world")},
		},
		{
			name:      "client error is surfaced as rejected",
			completer: &fakeCompleter{err: &llm.StatusError{StatusCode: 401, Message: "bad key"}},
			wantKind:  UpstreamRejected,
		},
		{
			name:      "404 model not found is rejected",
			completer: &fakeCompleter{err: &llm.StatusError{StatusCode: 404, Message: "no such model"}},
			wantKind:  UpstreamRejected,
		},
		{
			name:      "rate limit is transient",
			completer: &fakeCompleter{err: &llm.StatusError{StatusCode: 429, Message: "slow down"}},
			wantKind:  TransientError,
		},
		{
			name:      "connection reset is transient",
			completer: &fakeCompleter{err: errors.New("read tcp: connection reset by peer")},
			wantKind:  TransientError,
		},
		{
			name:      "decode failure is transient",
			completer: &fakeCompleter{err: fmt.Errorf("chat completion: %w", io.ErrUnexpectedEOF)},
			wantKind:  TransientError,
		},
		{
			name:      "redirect status is transient",
			completer: &fakeCompleter{err: &llm.StatusError{StatusCode: 302}},
			wantKind:  TransientError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPipeline(tc.completer)

			res, err := p.RequestRoast(context.Background(), sampleRequest(), time.Second)

			assert.EqualValues(t, 1, tc.completer.calls.Load())
			if tc.wantKind != 0 {
				require.Error(t, err)
				kind, ok := KindOf(err)
				require.True(t, ok)
				assert.Equal(t, tc.wantKind, kind)
				assert.Equal(t, Result{}, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, res)
		})
	}
}

func TestPolicy_CoversEveryOutcome(t *testing.T) {
	for o := outcomeOK; o <= outcomeTransport; o++ {
		_, ok := policy[o]
		assert.True(t, ok, "no policy for %s", o)
	}
}

func TestRequestRoast_UpstreamRejectedKeepsDetail(t *testing.T) {
	upstream := &llm.StatusError{StatusCode: 400, Message: "max_tokens is too large"}
	p := newTestPipeline(&fakeCompleter{err: upstream})

	_, err := p.RequestRoast(context.Background(), sampleRequest(), time.Second)

	var roastErr *Error
	require.ErrorAs(t, err, &roastErr)
	assert.Equal(t, UpstreamRejected, roastErr.Kind)
	assert.Contains(t, roastErr.Detail, "400")
	assert.Contains(t, roastErr.Detail, "max_tokens is too large")
	assert.ErrorIs(t, err, upstream)
}

func TestRequestRoast_InvalidRequest(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(r *Request)
	}{
		{"missing owner", func(r *Request) { r.Owner = "" }},
		{"blank owner", func(r *Request) { r.Owner = "   " }},
		{"missing repo", func(r *Request) { r.RepoName = "" }},
		{"missing both", func(r *Request) { r.Owner, r.RepoName = "", "" }},
		{"unknown vibe", func(r *Request) { r.Vibe = "neutral" }},
		{"zero vibe", func(r *Request) { r.Vibe = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			completer := &fakeCompleter{text: "unused"}
			req := sampleRequest()
			tc.mutate(&req)

			_, err := newTestPipeline(completer).RequestRoast(context.Background(), req, time.Second)

			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, InvalidRequest, kind)
			assert.EqualValues(t, 0, completer.calls.Load(), "no I/O for invalid input")
		})
	}
}

func TestRequestRoast_TimeoutReturnsPromptly(t *testing.T) {
	// The completer ignores cancellation entirely; the pipeline still has
	// to come back on time.
	completer := &fakeCompleter{text: "too late", delay: 2 * time.Second, ignoreCtx: true}
	p := newTestPipeline(completer)

	timeout := 50 * time.Millisecond
	start := time.Now()
	res, err := p.RequestRoast(context.Background(), sampleRequest(), timeout)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, res.AIEnhanced)
	assert.Contains(t, res.Text, "hello-world")
	assert.Equal(t, TimeoutText("hello-world"), res.Text)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
}

func TestRequestRoast_DefaultTimeout(t *testing.T) {
	completer := &fakeCompleter{text: "slow", delay: time.Second}
	p := New(completer, WithTimeout(30*time.Millisecond), WithStarters(firstStarter))

	res, err := p.RequestRoast(context.Background(), sampleRequest(), 0)

	require.NoError(t, err)
	assert.Equal(t, TimeoutText("hello-world"), res.Text)
}

func TestRequestRoast_ParentCanceledIsTransient(t *testing.T) {
	completer := &fakeCompleter{text: "never", delay: time.Second}
	p := newTestPipeline(completer)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := p.RequestRoast(ctx, sampleRequest(), 5*time.Second)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, TransientError, kind)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestRoast_Prompt(t *testing.T) {
	testCases := []struct {
		vibe          Vibe
		wantMaxTokens int
		wantPhrase    string
	}{
		{Quick, 60, "one-line roast"},
		{Detailed, 180, "3 to 5 sentences"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.vibe), func(t *testing.T) {
			completer := &fakeCompleter{text: "ok"}
			req := sampleRequest()
			req.Vibe = tc.vibe

			_, err := newTestPipeline(completer).RequestRoast(context.Background(), req, time.Second)
			require.NoError(t, err)

			got := completer.last()
			assert.Equal(t, "You are a sarcastic but insightful GitHub repository critic.", got.System)
			assert.Equal(t, tc.wantMaxTokens, got.MaxTokens)
			assert.InDelta(t, 0.8, got.Temperature, 1e-6)
			assert.Contains(t, got.User, tc.wantPhrase)
			assert.Contains(t, got.User, "octo/hello-world")
			assert.Contains(t, got.User, "Vibe score: 72/100 (Peacefully Maintained)")
			assert.Contains(t, got.User, "Stars: 340")
			assert.Contains(t, got.User, "Open issues: 12")
			assert.Contains(t, got.User, "Days since last commit: 3")
			assert.Contains(t, got.User, "Dang, hello-world is popping off!")
		})
	}
}

func TestRequestRoast_Concurrent(t *testing.T) {
	completer := &fakeCompleter{text: "shared roast", delay: 5 * time.Millisecond}
	p := newTestPipeline(completer)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := sampleRequest()
			req.RepoName = fmt.Sprintf("repo-%d", i)
			res, err := p.RequestRoast(context.Background(), req, time.Second)
			assert.NoError(t, err)
			assert.True(t, res.AIEnhanced)
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 20, completer.calls.Load())
}

// Through the real OpenAI client against a fake completion service.

func newServicePipeline(t *testing.T, handler http.HandlerFunc) *Pipeline {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := llm.NewOpenAIClient(server.URL+"/v1", "sk-test", "test-model", llm.WithHTTPClient(server.Client()))
	return newTestPipeline(client)
}

func TestRequestRoast_Service(t *testing.T) {
	testCases := []struct {
		name     string
		handler  http.HandlerFunc
		timeout  time.Duration
		want     Result
		wantKind Kind
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Hello, world. Goodbye, relevance."}}]}`)
			},
			want: Result{Text: "Hello, world. Goodbye, relevance.", AIEnhanced: true},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"choices":[]}`)
			},
			want: Result{Text: "No roast available."},
		},
		{
			name: "503",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"error":{"message":"overloaded"}}`)
			},
			want: Result{Text: UnavailableText("hello-world")},
		},
		{
			name: "502 from a proxy with html",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, "<h1>bad gateway</h1>")
			},
			want: Result{Text: UnavailableText("hello-world")},
		},
		{
			name: "400",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"message":"model not supported"}}`)
			},
			wantKind: UpstreamRejected,
		},
		{
			name: "429",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"error":{"message":"rate limit reached"}}`)
			},
			wantKind: TransientError,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"choices":[{"message":`)
			},
			wantKind: TransientError,
		},
		{
			name: "slow service",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(3 * time.Second):
				}
			},
			timeout: 100 * time.Millisecond,
			want:    Result{Text: TimeoutText("hello-world")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newServicePipeline(t, tc.handler)
			timeout := tc.timeout
			if timeout == 0 {
				timeout = 2 * time.Second
			}

			start := time.Now()
			res, err := p.RequestRoast(context.Background(), sampleRequest(), timeout)
			assert.Less(t, time.Since(start), timeout+time.Second)

			if tc.wantKind != 0 {
				kind, ok := KindOf(err)
				require.True(t, ok, "expected roast error, got %v", err)
				assert.Equal(t, tc.wantKind, kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, res)
		})
	}
}

func TestRequestRoast_GeminiService(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		want     Result
		wantKind Kind
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"role":"model","parts":[{"text":"\"Hello, irrelevance.\""}]}}]}`,
			want:   Result{Text: "Hello, irrelevance.", AIEnhanced: true},
		},
		{
			name:   "no candidates",
			status: http.StatusOK,
			body:   `{"candidates":[]}`,
			want:   Result{Text: NoRoast},
		},
		{
			name:   "overloaded",
			status: http.StatusServiceUnavailable,
			body:   `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`,
			want:   Result{Text: UnavailableText("hello-world")},
		},
		{
			name:     "bad key",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`,
			wantKind: UpstreamRejected,
		},
		{
			name:     "quota exhausted",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"code":429,"message":"Resource has been exhausted.","status":"RESOURCE_EXHAUSTED"}}`,
			wantKind: TransientError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			t.Cleanup(server.Close)

			client, err := llm.NewGeminiClient(context.Background(), "k", "m",
				llm.WithGeminiBaseURL(server.URL), llm.WithGeminiHTTPClient(server.Client()))
			require.NoError(t, err)

			res, err := newTestPipeline(client).RequestRoast(context.Background(), sampleRequest(), 2*time.Second)
			if tc.wantKind != 0 {
				kind, ok := KindOf(err)
				require.True(t, ok, "expected roast error, got %v", err)
				assert.Equal(t, tc.wantKind, kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, res)
		})
	}
}

func TestRequestRoast_ServiceUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := newTestPipeline(llm.NewOpenAIClient(url+"/v1", "k", "m"))
	_, err := p.RequestRoast(context.Background(), sampleRequest(), time.Second)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, TransientError, kind)
}

func TestParseVibe(t *testing.T) {
	testCases := []struct {
		in      string
		want    Vibe
		wantErr bool
	}{
		{"", Quick, false},
		{"quick", Quick, false},
		{"short", Quick, false},
		{"Detailed", Detailed, false},
		{"full", Detailed, false},
		{"neutral", "", true},
		{"spicy", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseVibe(tc.in)
			if tc.wantErr {
				kind, _ := KindOf(err)
				assert.Equal(t, InvalidRequest, kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&Error{Kind: InvalidRequest}))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(&Error{Kind: UpstreamRejected}))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(fmt.Errorf("x: %w", &Error{Kind: TransientError})))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "invalid request: owner is required", (&Error{Kind: InvalidRequest, Detail: "owner is required"}).Error())
	assert.Equal(t, "transient error", (&Error{Kind: TransientError}).Error())
}

func TestStarter(t *testing.T) {
	testCases := []struct {
		name string
		req  Request
		pick int
		want string
	}{
		{
			name: "many issues wins",
			req:  Request{RepoName: "drama", Issues: 250, Stars: 3, LastCommitDays: 400},
			pick: 1,
			want: "With 250 open issues, drama is the drama llama of GitHub repos.",
		},
		{
			name: "few stars",
			req:  Request{RepoName: "tiny", Stars: 4, LastCommitDays: 400},
			pick: 0,
			want: "tiny has 4 stars? Oof, that's rough. Even my cat's Instagram has more followers.",
		},
		{
			name: "zero stars is not few stars",
			req:  Request{RepoName: "fresh", Stars: 0, LastCommitDays: 1},
			pick: 2,
			want: "Someone's been busy! fresh has more activity than a beehive in spring.",
		},
		{
			name: "inactive",
			req:  Request{RepoName: "fossil", Stars: 50, LastCommitDays: 91},
			pick: 1,
			want: "The last commit here is older than my grandma's fruitcake. fossil needs some serious CPR.",
		},
		{
			name: "out of range pick falls back to first",
			req:  Request{RepoName: "busy", Stars: 50, LastCommitDays: 2},
			pick: 99,
			want: "Dang, busy is popping off! The devs are putting in work like it's a hackathon every day.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Starter(tc.req, func(int) int { return tc.pick })
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStarter_DefaultPicker(t *testing.T) {
	got := Starter(Request{RepoName: "any", Stars: 500}, nil)
	assert.NotEmpty(t, got)
}
