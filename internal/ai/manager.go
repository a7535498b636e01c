package ai

import (
	"context"
	"fmt"
	"strings"
)

// answerSystemPrompt keeps answers grounded in the retrieved context.
const answerSystemPrompt = "You answer questions using only the provided context. " +
	"Do not use outside knowledge. If the context does not contain enough information " +
	"to answer, say that the context is insufficient instead of guessing."

type ManagerConfig struct {
	MaxInputChars int
	MaxTokens     int
	Temperature   float32
	Retry         RetryConfig
}

// Manager owns the text generation side: answers and summaries.
type Manager struct {
	answerer   IGenerator
	summarizer IGenerator
	cfg        ManagerConfig
}

func NewManager(answerer IGenerator, summarizer IGenerator, cfg ManagerConfig) *Manager {
	if summarizer == nil {
		summarizer = answerer
	}
	return &Manager{
		answerer:   answerer,
		summarizer: summarizer,
		cfg:        cfg,
	}
}

// AnswerPrompt renders the user prompt for a question over context.
func AnswerPrompt(contextText, question string) string {
	return fmt.Sprintf("Answer the question using only the context below.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:", contextText, question)
}

func (m *Manager) Answer(ctx context.Context, contextText, question string) (string, error) {
	if m.answerer == nil {
		return "", fmt.Errorf("generator not configured")
	}
	return m.generateText(ctx, "answer", m.answerer, GenerateRequest{
		System:      answerSystemPrompt,
		Prompt:      AnswerPrompt(contextText, question),
		MaxTokens:   m.cfg.MaxTokens,
		Temperature: m.cfg.Temperature,
	})
}

func (m *Manager) Summarize(ctx context.Context, text string) (string, error) {
	if m.summarizer == nil {
		return "", fmt.Errorf("summarizer not configured")
	}
	if limit := m.cfg.MaxInputChars; limit > 0 {
		if runes := []rune(text); len(runes) > limit {
			text = string(runes[:limit])
		}
	}
	prompt := fmt.Sprintf(`You are a helpful assistant.
Summarize the following document into a concise paragraph (2-4 sentences).
- Use the same language as the content.
- Keep factual accuracy and key points.
- Output ONLY the summary text.

CONTENT:
%s`, text)
	return m.generateText(ctx, "summarize", m.summarizer, GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   m.cfg.MaxTokens,
		Temperature: m.cfg.Temperature,
	})
}

func (m *Manager) generateText(ctx context.Context, op string, gen IGenerator, req GenerateRequest) (string, error) {
	var text string
	err := m.cfg.Retry.Do(ctx, op, func(ctx context.Context) error {
		resp, err := gen.Generate(ctx, req)
		if err != nil {
			return err
		}
		resp = strings.TrimSpace(resp)
		if resp == "" {
			return fmt.Errorf("empty ai response")
		}
		text = resp
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
