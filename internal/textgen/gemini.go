package textgen

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

// Gemini 基于 Google GenAI SDK 的 Generator 实现
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, &Error{Kind: KindConfig, Msg: "GEMINI_API_KEY is not set"}
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &Error{Kind: KindConfig, Msg: "create gemini client", Err: err}
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", classifyAPIError(err)
	}
	return resp.Text(), nil
}

func classifyAPIError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, Msg: "gemini quota exceeded", Err: err}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &Error{Kind: KindTimeout, Msg: "gemini timed out", Err: err}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Kind: KindConfig, Msg: "gemini rejected the api key", Err: err}
	default:
		return &Error{Kind: KindUpstream, Msg: "gemini request failed", Err: err}
	}
}
