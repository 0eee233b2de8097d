package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Config holds connection and model settings for the OpenAI-compatible API.
type Config struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	GradeModel     string
	STTModel       string
	TTSModel       string
	SpeechLanguage string
	// Language is the prose language requested from the models.
	Language string
}

// ErrNoAPIKey is returned by New when no credential is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	cfg     Config
	example *model.QuestionRecord
}

// New creates a new LLM client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4o
	}
	if cfg.GradeModel == "" {
		cfg.GradeModel = openai.GPT4oMini
	}
	if cfg.STTModel == "" {
		cfg.STTModel = openai.Whisper1
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = string(openai.TTSModel1)
	}
	if cfg.Language == "" {
		cfg.Language = "Korean"
	}
	return &Client{
		api: openai.NewClientWithConfig(config),
		cfg: cfg,
	}, nil
}

// SetStyleExample sets the curated problem shown to the generator as a few-shot example.
func (c *Client) SetStyleExample(rec model.QuestionRecord) {
	c.example = &rec
}

// Ping checks that the endpoint is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Generate asks the chat model for a new problem in the marker format.
func (c *Client) Generate(ctx context.Context, topic string, mode model.Category) (string, error) {
	system, user, err := prompts.BuildGeneratePrompts(prompts.GenerateData{
		Topic:    topic,
		Science:  mode == model.CategoryScience,
		Example:  c.example,
		Language: c.cfg.Language,
	})
	if err != nil {
		return "", err
	}

	raw, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("generate problem: %w", err)
	}
	return raw, nil
}

// Acknowledge produces the interviewer's reply to the latest answer.
func (c *Client) Acknowledge(ctx context.Context, req model.AckRequest) (string, error) {
	system, err := prompts.BuildInterviewerPrompt(req, c.cfg.Language)
	if err != nil {
		return "", err
	}

	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, u := range req.History {
		role := openai.ChatMessageRoleUser
		content := u.Text
		if u.Role == model.RoleInterviewer {
			role = openai.ChatMessageRoleAssistant
		} else {
			content = prompts.SanitizeAnswer(content)
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: content})
	}

	raw, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Messages:    msgs,
		Temperature: 0.5,
	})
	if err != nil {
		return "", fmt.Errorf("acknowledge answer: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

// Score sends an assembled grading prompt and returns the raw JSON reply.
func (c *Client) Score(ctx context.Context, prompt string) (string, error) {
	raw, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.GradeModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a professional grader."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("LLM grading API call: %w", err)
	}
	return raw, nil
}

// Transcribe converts recorded candidate audio to text.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.STTModel,
		FilePath: "input.wav",
		Reader:   bytes.NewReader(audio),
		Language: c.cfg.SpeechLanguage,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Synthesize renders interviewer text as MP3 audio in the given voice.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.cfg.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	return audio, nil
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", req.Model, "raw", raw)
	return raw, nil
}
