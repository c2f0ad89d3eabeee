package textgen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/LJTian/NewsHub/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	MinPromptLength = 10
	MaxPromptLength = 30000

	maxConcurrent  = 5
	maxAttempts    = 3
	initialBackoff = time.Second
	callTimeout    = 30 * time.Second
)

// Kind 错误分类，HTTP 层据此选择状态码
type Kind string

const (
	KindConfig     Kind = "config"
	KindValidation Kind = "validation"
	KindRateLimit  Kind = "rate_limit"
	KindTimeout    Kind = "timeout"
	KindUpstream   Kind = "upstream"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("textgen: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("textgen: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindTimeout
}

// KindOf 非 *Error 一律视为上游错误
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUpstream
}

// Generator 具体的文本生成后端
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Client 在 Generator 之外加上校验、并发限制、限流与重试
type Client struct {
	gen     Generator
	sem     chan struct{}
	limiter *rate.Limiter
	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(gen Generator) *Client {
	return &Client{
		gen:     gen,
		sem:     make(chan struct{}, maxConcurrent),
		limiter: rate.NewLimiter(rate.Every(time.Second), maxConcurrent),
		backoff: initialBackoff,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func validatePrompt(prompt string) error {
	n := utf8.RuneCountInString(prompt)
	if n < MinPromptLength {
		return &Error{Kind: KindValidation, Msg: fmt.Sprintf("prompt must be at least %d characters", MinPromptLength)}
	}
	if n > MaxPromptLength {
		return &Error{Kind: KindValidation, Msg: fmt.Sprintf("prompt must be at most %d characters", MaxPromptLength)}
	}
	return nil
}

// Generate 仅对限流与超时重试，退避从 1s 开始翻倍
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := c.generate(ctx, prompt)
	if err != nil {
		metrics.GenerationTotal.WithLabelValues(string(KindOf(err))).Inc()
		return "", err
	}
	metrics.GenerationTotal.WithLabelValues("ok").Inc()
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.gen == nil {
		return "", &Error{Kind: KindConfig, Msg: "text generation is not configured"}
	}
	if err := validatePrompt(prompt); err != nil {
		return "", err
	}

	delay := c.backoff
	var lastErr *Error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := c.attempt(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = classify(err)
		if !lastErr.retryable() || attempt == maxAttempts {
			break
		}
		log.Printf("textgen: attempt %d failed (%s), retrying in %s", attempt, lastErr.Kind, delay)
		if err := c.sleep(ctx, delay); err != nil {
			return "", &Error{Kind: KindTimeout, Msg: "cancelled while waiting to retry", Err: err}
		}
		delay *= 2
	}
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, prompt string) (string, error) {
	if !c.limiter.Allow() {
		return "", &Error{Kind: KindRateLimit, Msg: "too many generation requests"}
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	text, err := c.gen.GenerateText(cctx, prompt)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", &Error{Kind: KindUpstream, Msg: "empty response"}
	}
	return text, nil
}

func classify(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Msg: "generation timed out", Err: err}
	}
	return &Error{Kind: KindUpstream, Msg: "generation failed", Err: err}
}
