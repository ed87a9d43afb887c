package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"sift/internal/config"
)

// fakeModel is a scripted llms.Model for testing the client without a
// running backend.
type fakeModel struct {
	response    string
	err         error
	gotPrompt   string
	sawDeadline bool
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	_, f.sawDeadline = ctx.Deadline()
	if len(messages) > 0 {
		for _, part := range messages[0].Parts {
			if tc, ok := part.(llms.TextContent); ok {
				f.gotPrompt = tc.Text
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestClient(fake *fakeModel) *Client {
	return &Client{
		llm:     fake,
		model:   "test-model",
		timeout: 5 * time.Second,
	}
}

func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "bedrock"})
	if err == nil {
		t.Fatal("New() expected error for unsupported provider, got nil")
	}
}

func TestNew_CloudProviderRequiresAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		provider string
	}{
		{name: "openai", provider: "openai"},
		{name: "anthropic", provider: "anthropic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(config.LLMConfig{Provider: tt.provider, Model: "m"})
			if err == nil {
				t.Fatalf("New(%q) expected error without API key, got nil", tt.provider)
			}
		})
	}
}

func TestGenerateText(t *testing.T) {
	fake := &fakeModel{response: "a fine summary"}
	c := newTestClient(fake)

	got, err := c.GenerateText(context.Background(), "summarize this")
	if err != nil {
		t.Fatalf("GenerateText() unexpected error: %v", err)
	}
	if got != "a fine summary" {
		t.Errorf("GenerateText() = %q, want %q", got, "a fine summary")
	}
	if fake.gotPrompt != "summarize this" {
		t.Errorf("model received prompt %q, want %q", fake.gotPrompt, "summarize this")
	}
	if !fake.sawDeadline {
		t.Error("model call had no deadline, want per-call timeout applied")
	}
}

func TestGenerateText_PropagatesError(t *testing.T) {
	fake := &fakeModel{err: errors.New("backend down")}
	c := newTestClient(fake)

	_, err := c.GenerateText(context.Background(), "anything")
	if err == nil {
		t.Fatal("GenerateText() expected error, got nil")
	}
}

func TestGenerateJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{
			name:     "plain JSON",
			response: `{"score": 8, "decision": "KEEP"}`,
		},
		{
			name:     "JSON in json code fence",
			response: "```json\n{\"score\": 8, \"decision\": \"KEEP\"}\n```",
		},
		{
			name:     "JSON in plain code fence",
			response: "```\n{\"score\": 8, \"decision\": \"KEEP\"}\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(&fakeModel{response: tt.response})

			var dest struct {
				Score    int    `json:"score"`
				Decision string `json:"decision"`
			}
			if err := c.GenerateJSON(context.Background(), "rate this", &dest); err != nil {
				t.Fatalf("GenerateJSON() unexpected error: %v", err)
			}
			if dest.Score != 8 || dest.Decision != "KEEP" {
				t.Errorf("GenerateJSON() decoded %+v, want score 8 decision KEEP", dest)
			}
		})
	}
}

func TestGenerateJSON_InvalidJSON(t *testing.T) {
	c := newTestClient(&fakeModel{response: "not json at all"})

	var dest map[string]any
	if err := c.GenerateJSON(context.Background(), "rate this", &dest); err == nil {
		t.Fatal("GenerateJSON() expected error for invalid JSON, got nil")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain JSON object",
			input: `{"id": "a", "score": 7}`,
			want:  `{"id": "a", "score": 7}`,
		},
		{
			name:  "JSON wrapped in json code fence",
			input: "```json\n{\"id\": \"a\"}\n```",
			want:  `{"id": "a"}`,
		},
		{
			name:  "JSON wrapped in plain code fence",
			input: "```\n{\"id\": \"a\"}\n```",
			want:  `{"id": "a"}`,
		},
		{
			name:  "JSON with surrounding whitespace",
			input: "  \n  {\"id\": \"a\"}  \n  ",
			want:  `{"id": "a"}`,
		},
		{
			name:  "code fence with extra whitespace",
			input: "```json\n\n  {\"id\": \"a\"}\n\n```",
			want:  `{"id": "a"}`,
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractJSON(tt.input)
			if got != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
