// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/model"
	"gemini-chat-gateway/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter forwards turns to the Gemini API. The safety policy and
// output cap are fixed per instance; the model id is passed through from the
// caller. A non-empty per-call credential replaces the server key.
type GeminiAdapter struct {
	serverKey string
	baseURL   string
	maxOut    int32
	client    *genai.Client // built with the server key
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL string, maxOutputTokens int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := newClient(ctx, apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{
		serverKey: apiKey,
		baseURL:   baseURL,
		maxOut:    int32(maxOutputTokens),
		client:    c,
	}, nil
}

func newClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
}

func (g *GeminiAdapter) Send(ctx context.Context, modelID string, turns []model.Turn, tools json.RawMessage, credential string) (*model.Turn, error) {
	if len(turns) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	contents, err := toGenAIContents(turns)
	if err != nil {
		return nil, err
	}

	client := g.client
	if credential != "" && credential != g.serverKey {
		// Caller-supplied key: a throwaway client bound to it.
		c, err := newClient(ctx, credential, g.baseURL)
		if err != nil {
			return nil, err
		}
		client = c
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: g.maxOut,
		SafetySettings:  blockNoneSafety(),
		Tools:           toGenAITools(tools),
	}

	resp, err := client.Models.GenerateContent(ctx, modelID, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &domain.UpstreamError{StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return nil, &domain.UpstreamError{StatusCode: http.StatusBadGateway, Message: err.Error()}
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}
	return fromGenAIContent(resp.Candidates[0].Content), nil
}

// The upstream filtering policy is intentionally wide open; the gateway's own
// admission rules are the gate, not the safety thresholds.
func blockNoneSafety() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		out = append(out, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return out
}

// toGenAITools maps the caller's tool declarations onto the typed request.
// The browser contract is the REST wire form (snake_case keys); declarations
// the backend does not know are left out rather than guessed at.
func toGenAITools(raw json.RawMessage) []*genai.Tool {
	if len(raw) == 0 {
		return nil
	}
	var decls []struct {
		GoogleSearchRetrieval *genai.GoogleSearchRetrieval `json:"google_search_retrieval"`
		GoogleSearch          *genai.GoogleSearch          `json:"google_search"`
	}
	if err := json.Unmarshal(raw, &decls); err != nil {
		return nil
	}
	out := make([]*genai.Tool, 0, len(decls))
	for _, d := range decls {
		if d.GoogleSearchRetrieval == nil && d.GoogleSearch == nil {
			continue
		}
		out = append(out, &genai.Tool{
			GoogleSearchRetrieval: d.GoogleSearchRetrieval,
			GoogleSearch:          d.GoogleSearch,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func toGenAIContents(turns []model.Turn) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if strings.ToLower(t.Role) == model.RoleModel {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(t.Parts))
		for _, p := range t.Parts {
			if p.InlineData != nil {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("inline data is not valid base64: %w", domain.ErrInvalidArgument)
				}
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: p.InlineData.MIMEType, Data: data},
				})
				continue
			}
			parts = append(parts, &genai.Part{Text: p.Text})
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out, nil
}

func fromGenAIContent(c *genai.Content) *model.Turn {
	t := &model.Turn{Role: model.RoleModel, Parts: make([]model.Part, 0, len(c.Parts))}
	for _, p := range c.Parts {
		if p == nil {
			continue
		}
		if p.InlineData != nil {
			t.Parts = append(t.Parts, model.Part{InlineData: &model.InlineData{
				MIMEType: p.InlineData.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
			}})
			continue
		}
		if p.Text != "" {
			t.Parts = append(t.Parts, model.Part{Text: p.Text})
		}
	}
	return t
}
