package textgen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	calls atomic.Int32
	errs  []error
	text  string
	block chan struct{}
}

func (f *fakeGenerator) GenerateText(ctx context.Context, _ string) (string, error) {
	n := int(f.calls.Add(1))
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return "", f.errs[n-1]
	}
	return f.text, nil
}

func newTestClient(gen Generator) (*Client, *[]time.Duration) {
	c := NewClient(gen)
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

const prompt = "Summarize today's headlines"

func TestGenerateSuccess(t *testing.T) {
	c, slept := newTestClient(&fakeGenerator{text: "summary"})

	got, err := c.Generate(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "summary", got)
	assert.Empty(t, *slept)
}

func TestGenerateValidation(t *testing.T) {
	gen := &fakeGenerator{text: "x"}
	c, _ := newTestClient(gen)

	_, err := c.Generate(context.Background(), "short")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = c.Generate(context.Background(), strings.Repeat("a", MaxPromptLength+1))
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = c.Generate(context.Background(), strings.Repeat("新", MinPromptLength))
	assert.NoError(t, err)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestGenerateNotConfigured(t *testing.T) {
	var c *Client
	_, err := c.Generate(context.Background(), prompt)
	assert.Equal(t, KindConfig, KindOf(err))

	_, err = NewGemini(context.Background(), "", "")
	assert.Equal(t, KindConfig, KindOf(err))
}

func TestGenerateRetriesTransientErrors(t *testing.T) {
	gen := &fakeGenerator{
		text: "ok",
		errs: []error{
			&Error{Kind: KindRateLimit, Msg: "quota"},
			context.DeadlineExceeded,
		},
	}
	c, slept := newTestClient(gen)

	got, err := c.Generate(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(3), gen.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	timeout := &Error{Kind: KindTimeout, Msg: "slow"}
	gen := &fakeGenerator{errs: []error{timeout, timeout, timeout, nil}, text: "late"}
	c, slept := newTestClient(gen)

	_, err := c.Generate(context.Background(), prompt)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, int32(maxAttempts), gen.calls.Load())
	assert.Len(t, *slept, maxAttempts-1)
}

func TestGenerateDoesNotRetryUpstreamErrors(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("bad request")}}
	c, slept := newTestClient(gen)

	_, err := c.Generate(context.Background(), prompt)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Empty(t, *slept)
}

func TestGenerateEmptyResponse(t *testing.T) {
	c, _ := newTestClient(&fakeGenerator{})

	_, err := c.Generate(context.Background(), prompt)
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestGenerateRateLimited(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	c, slept := newTestClient(gen)
	c.limiter = rate.NewLimiter(0, 0)

	_, err := c.Generate(context.Background(), prompt)
	assert.Equal(t, KindRateLimit, KindOf(err))
	assert.Equal(t, int32(0), gen.calls.Load())
	assert.Len(t, *slept, maxAttempts-1)
}

func TestGenerateConcurrencyLimit(t *testing.T) {
	gen := &fakeGenerator{text: "ok", block: make(chan struct{})}
	c, _ := newTestClient(gen)
	c.limiter = rate.NewLimiter(rate.Inf, 0)

	var wg sync.WaitGroup
	for i := 0; i < maxConcurrent+2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Generate(context.Background(), prompt)
		}()
	}

	require.Eventually(t, func() bool { return gen.calls.Load() == maxConcurrent }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(maxConcurrent), gen.calls.Load())

	close(gen.block)
	wg.Wait()
	assert.Equal(t, int32(maxConcurrent+2), gen.calls.Load())
}

func TestClassifyAPIError(t *testing.T) {
	cases := map[int]Kind{
		429: KindRateLimit,
		504: KindTimeout,
		403: KindConfig,
		500: KindUpstream,
	}
	for code, want := range cases {
		err := classifyAPIError(genai.APIError{Code: code, Message: "x"})
		assert.Equal(t, want, KindOf(err), "code %d", code)
	}

	plain := errors.New("dial tcp: refused")
	assert.Equal(t, plain, classifyAPIError(plain))
}
